package dataset

import (
	"context"
	"errors"
	"runtime"
)

// ErrEmptyDataset is returned when no sample survives assembly: every root
// was missing or every extraction failed. Training cannot proceed on it.
var ErrEmptyDataset = errors.New("dataset: no samples survived assembly")

// Config holds the assembly parameters.
type Config struct {
	// SamplesPerClass caps how many images are taken from one class
	// directory. Classes above the cap are sampled without replacement.
	SamplesPerClass int

	// Workers sizes the extraction pool.
	Workers int

	// Seed drives the per-class sampling so a dataset is reproducible
	// across runs.
	Seed int64
}

// DefaultConfig returns the assembly defaults.
func DefaultConfig() Config {
	return Config{
		SamplesPerClass: 1000,
		Workers:         runtime.NumCPU(),
		Seed:            42,
	}
}

// Dataset is the assembled training input: Features[i] is the vector for
// the sample labeled Labels[i], and every label indexes into Classes.
type Dataset struct {
	Features [][]float64
	Labels   []int
	Classes  []string
}

// VectorSink receives every successfully extracted sample during assembly.
// Implementations must tolerate being called from the single-threaded merge
// step only.
type VectorSink interface {
	Add(ctx context.Context, path, class string, vec []float64) error
}

// task is one (image, label) extraction unit. index pairs the result back
// to the task after the pool join.
type task struct {
	index int
	path  string
	label int
}
