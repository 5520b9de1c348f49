// Package artifacts persists and reloads the outputs of a training run:
// the fitted ensemble (always bundled with the class vocabulary and the
// feature configuration it was trained under), the vocabulary as JSON, the
// classification report and the rendered confusion matrix.
package artifacts

import (
	"encoding/gob"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/agrisphere/leafclass/internal/classifier"
	"github.com/agrisphere/leafclass/internal/evaluation"
	"github.com/agrisphere/leafclass/internal/features"
)

const (
	ModelFile           = "model.gob"
	LabelsFile          = "labels.json"
	ReportFile          = "classification_report.json"
	ConfusionMatrixFile = "confusion_matrix.png"
)

// Model bundles everything prediction needs. The ensemble is never stored
// apart from the vocabulary its outputs index into, nor from the feature
// configuration that defines its input space.
type Model struct {
	Ensemble *classifier.VotingEnsemble
	Classes  []string
	Features features.Config
}

// Writer writes the artifacts of one training run into a directory.
type Writer struct {
	dir string
	log *slog.Logger
}

// NewWriter creates the output directory and returns a Writer for it.
func NewWriter(dir string, log *slog.Logger) (*Writer, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("create output directory %q: %w", dir, err)
	}
	return &Writer{dir: dir, log: log}, nil
}

// SaveModel gob-encodes the model bundle.
func (w *Writer) SaveModel(m *Model) error {
	path := filepath.Join(w.dir, ModelFile)
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create model file: %w", err)
	}
	defer f.Close()

	if err := gob.NewEncoder(f).Encode(m); err != nil {
		return fmt.Errorf("encode model: %w", err)
	}
	w.log.Info("saved model", "path", path)
	return nil
}

// SaveLabels writes the class vocabulary in index order.
func (w *Writer) SaveLabels(classes []string) error {
	return w.saveJSON(LabelsFile, classes)
}

// SaveReport writes the classification report.
func (w *Writer) SaveReport(report *evaluation.Report) error {
	return w.saveJSON(ReportFile, report)
}

func (w *Writer) saveJSON(name string, v any) error {
	path := filepath.Join(w.dir, name)
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create %s: %w", name, err)
	}
	defer f.Close()

	enc := json.NewEncoder(f)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		return fmt.Errorf("encode %s: %w", name, err)
	}
	w.log.Info("saved artifact", "path", path)
	return nil
}

// LoadModel reads a model bundle previously written by SaveModel.
func LoadModel(dir string) (*Model, error) {
	path := filepath.Join(dir, ModelFile)
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open model file %q: %w", path, err)
	}
	defer f.Close()

	var m Model
	if err := gob.NewDecoder(f).Decode(&m); err != nil {
		return nil, fmt.Errorf("decode model %q: %w", path, err)
	}
	if m.Ensemble == nil || len(m.Classes) == 0 {
		return nil, fmt.Errorf("model %q is missing ensemble or vocabulary", path)
	}
	return &m, nil
}
