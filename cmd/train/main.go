// Command train runs the full batch training job: it assembles a dataset
// from one or more class-labeled image directory trees, trains the voting
// ensemble, evaluates it on a stratified held-out split and writes the
// model and evaluation artifacts to the output directory.
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"

	"log/slog"

	"github.com/lmittmann/tint"

	"github.com/agrisphere/leafclass/internal/artifacts"
	"github.com/agrisphere/leafclass/internal/classifier"
	"github.com/agrisphere/leafclass/internal/dataset"
	"github.com/agrisphere/leafclass/internal/evaluation"
	"github.com/agrisphere/leafclass/internal/features"
	"github.com/agrisphere/leafclass/internal/storage"
)

func main() {
	ctx := context.Background()

	logger := slog.New(
		tint.NewHandler(os.Stderr, &tint.Options{
			Level:      slog.LevelDebug,
			TimeFormat: "15:04:05",
		}),
	)

	featCfg := features.DefaultConfig()
	dsCfg := dataset.DefaultConfig()
	outputDir := "model_output"
	testFrac := 0.2
	storeDSN := ""

	var roots []string
	for i := 1; i < len(os.Args); i++ {
		switch os.Args[i] {
		case "--output":
			if i+1 < len(os.Args) {
				outputDir = os.Args[i+1]
				i++
			}
		case "--samples-per-class":
			if i+1 < len(os.Args) {
				dsCfg.SamplesPerClass = mustInt(os.Args[i+1])
				i++
			}
		case "--workers":
			if i+1 < len(os.Args) {
				dsCfg.Workers = mustInt(os.Args[i+1])
				i++
			}
		case "--seed":
			if i+1 < len(os.Args) {
				dsCfg.Seed = int64(mustInt(os.Args[i+1]))
				i++
			}
		case "--image-size":
			if i+1 < len(os.Args) {
				featCfg.ImageSize = mustInt(os.Args[i+1])
				i++
			}
		case "--test-frac":
			if i+1 < len(os.Args) {
				f, err := strconv.ParseFloat(os.Args[i+1], 64)
				if err != nil {
					usage()
				}
				testFrac = f
				i++
			}
		case "--store-dsn":
			if i+1 < len(os.Args) {
				storeDSN = os.Args[i+1]
				i++
			}
		case "--help", "-h":
			usage()
		default:
			roots = append(roots, os.Args[i])
		}
	}

	if len(roots) == 0 {
		usage()
	}

	extractor := features.New(featCfg)
	assembler := dataset.NewAssembler(dsCfg, extractor, logger)

	if storeDSN != "" {
		if err := storage.InitSchema(ctx, storeDSN); err != nil {
			logger.Error("feature store init failed", "err", err)
			os.Exit(1)
		}
		store, err := storage.Open(ctx, storeDSN, time.Now().Format("train-2006-01-02T15:04:05"))
		if err != nil {
			logger.Error("feature store open failed", "err", err)
			os.Exit(1)
		}
		defer store.Close()
		assembler.WithSink(store)
		logger.Info("feature store enabled", "run_id", store.RunID())
	}

	start := time.Now()
	ds, err := assembler.Assemble(ctx, roots)
	if err != nil {
		if errors.Is(err, dataset.ErrEmptyDataset) {
			logger.Error("no usable samples found; check the dataset roots", "roots", roots)
		} else {
			logger.Error("dataset assembly failed", "err", err)
		}
		os.Exit(1)
	}
	logger.Info("dataset assembled",
		"samples", len(ds.Features),
		"classes", len(ds.Classes),
		"took", time.Since(start))

	trainIdx, testIdx := evaluation.StratifiedSplit(ds.Labels, testFrac, dsCfg.Seed)
	trainX, trainY := subset(ds, trainIdx)
	testX, testY := subset(ds, testIdx)
	logger.Info("split dataset", "train", len(trainIdx), "test", len(testIdx))

	ensemble := classifier.NewVotingEnsemble(
		classifier.NewRandomForest(dsCfg.Seed),
		classifier.NewGradientBoosting(dsCfg.Seed),
	)
	logger.Info("training ensemble (random forest + gradient boosting)")
	start = time.Now()
	if err := ensemble.Fit(trainX, trainY, len(ds.Classes)); err != nil {
		logger.Error("training failed", "err", err)
		os.Exit(1)
	}
	logger.Info("training complete", "took", time.Since(start))

	report, cm := evaluation.Evaluate(ensemble, testX, testY, ds.Classes)
	logger.Info("evaluation complete", "test_accuracy", fmt.Sprintf("%.4f", report.Accuracy))

	writer, err := artifacts.NewWriter(outputDir, logger)
	if err != nil {
		logger.Error("cannot prepare output directory", "err", err)
		os.Exit(1)
	}

	model := &artifacts.Model{
		Ensemble: ensemble,
		Classes:  ds.Classes,
		Features: featCfg,
	}
	for _, step := range []func() error{
		func() error { return writer.SaveModel(model) },
		func() error { return writer.SaveLabels(ds.Classes) },
		func() error { return writer.SaveReport(report) },
		func() error { return writer.SaveConfusionMatrix(cm, ds.Classes) },
	} {
		if err := step(); err != nil {
			logger.Error("artifact write failed", "err", err)
			os.Exit(1)
		}
	}

	logger.Info("training run finished", "output", outputDir, "test_accuracy", fmt.Sprintf("%.4f", report.Accuracy))
}

func subset(ds *dataset.Dataset, idx []int) ([][]float64, []int) {
	X := make([][]float64, len(idx))
	y := make([]int, len(idx))
	for i, s := range idx {
		X[i] = ds.Features[s]
		y[i] = ds.Labels[s]
	}
	return X, y
}

func mustInt(s string) int {
	v, err := strconv.Atoi(s)
	if err != nil {
		usage()
	}
	return v
}

func usage() {
	fmt.Println("Usage: train [flags] <dataset_root> [<dataset_root>...]")
	fmt.Println()
	fmt.Println("Each root must contain one subdirectory per class holding .jpg/.jpeg/.png images.")
	fmt.Println()
	fmt.Println("Flags:")
	fmt.Println("  --output <dir>             artifact directory (default model_output)")
	fmt.Println("  --samples-per-class <n>    per-class sampling cap (default 1000)")
	fmt.Println("  --workers <n>              extraction workers (default: CPU count)")
	fmt.Println("  --seed <n>                 sampling/training seed (default 42)")
	fmt.Println("  --image-size <n>           square resize resolution (default 128)")
	fmt.Println("  --test-frac <f>            held-out fraction (default 0.2)")
	fmt.Println("  --store-dsn <dsn>          optional pgvector feature store DSN")
	os.Exit(1)
}
