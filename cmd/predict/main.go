// Command predict classifies a single leaf image with a previously trained
// model. It loads the model bundle (ensemble + vocabulary + feature
// configuration), extracts features exactly as training did and prints the
// predicted class with its confidence.
package main

import (
	"fmt"
	"os"

	"log/slog"

	"github.com/lmittmann/tint"

	"github.com/agrisphere/leafclass/internal/artifacts"
	"github.com/agrisphere/leafclass/internal/features"
)

func main() {
	logger := slog.New(
		tint.NewHandler(os.Stderr, &tint.Options{
			Level:      slog.LevelWarn,
			TimeFormat: "15:04:05",
		}),
	)

	modelDir := "model_output"
	var imagePath string
	for i := 1; i < len(os.Args); i++ {
		switch os.Args[i] {
		case "--model-dir":
			if i+1 < len(os.Args) {
				modelDir = os.Args[i+1]
				i++
			}
		case "--help", "-h":
			usage()
		default:
			if imagePath != "" {
				usage()
			}
			imagePath = os.Args[i]
		}
	}
	if imagePath == "" {
		usage()
	}

	model, err := artifacts.LoadModel(modelDir)
	if err != nil {
		logger.Error("cannot load model", "err", err)
		os.Exit(1)
	}

	extractor := features.New(model.Features)
	vec, err := extractor.Extract(imagePath)
	if err != nil {
		logger.Error("cannot process image", "err", err)
		os.Exit(1)
	}

	idx, confidence := model.Ensemble.Predict(vec)
	fmt.Printf("Predicted Disease: %s\n", model.Classes[idx])
	fmt.Printf("Confidence: %.2f%%\n", confidence*100)
}

func usage() {
	fmt.Println("Usage: predict [--model-dir <dir>] <image_path>")
	os.Exit(1)
}
