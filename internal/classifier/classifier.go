// Package classifier implements the trainable models behind the disease
// classifier: a random forest, a gradient-boosted tree model and the soft
// voting ensemble that combines them by averaging predicted class
// probabilities.
package classifier

import (
	"encoding/gob"
	"errors"
	"fmt"
	"io"
)

// Model predicts a class probability distribution for one feature vector.
type Model interface {
	PredictProba(x []float64) []float64
}

// TrainableModel is a Model that can be fitted to labeled vectors.
type TrainableModel interface {
	Model
	Fit(X [][]float64, y []int, numClasses int) error
}

func init() {
	// Concrete member types must be registered for the ensemble gob blob.
	gob.Register(&RandomForest{})
	gob.Register(&GradientBoosting{})
}

// VotingEnsemble averages the probability outputs of its members.
type VotingEnsemble struct {
	Members    []Model
	NumClasses int
}

// NewVotingEnsemble builds an ensemble over the given members.
func NewVotingEnsemble(members ...Model) *VotingEnsemble {
	return &VotingEnsemble{Members: members}
}

// Fit trains every trainable member on the same data.
func (e *VotingEnsemble) Fit(X [][]float64, y []int, numClasses int) error {
	if len(X) == 0 {
		return errors.New("classifier: empty training set")
	}
	e.NumClasses = numClasses
	for _, m := range e.Members {
		tm, ok := m.(TrainableModel)
		if !ok {
			continue
		}
		if err := tm.Fit(X, y, numClasses); err != nil {
			return fmt.Errorf("fit %T: %w", m, err)
		}
	}
	return nil
}

// PredictProba returns the member-averaged class distribution.
func (e *VotingEnsemble) PredictProba(x []float64) []float64 {
	probs := make([]float64, e.NumClasses)
	for _, m := range e.Members {
		for k, p := range m.PredictProba(x) {
			probs[k] += p
		}
	}
	for k := range probs {
		probs[k] /= float64(len(e.Members))
	}
	return probs
}

// Predict returns the most probable class index and its probability mass.
func (e *VotingEnsemble) Predict(x []float64) (int, float64) {
	probs := e.PredictProba(x)
	best := argmax(probs)
	return best, probs[best]
}

// Save gob-encodes the fitted ensemble to w.
func (e *VotingEnsemble) Save(w io.Writer) error {
	return gob.NewEncoder(w).Encode(e)
}

// LoadEnsemble decodes an ensemble previously written with Save.
func LoadEnsemble(r io.Reader) (*VotingEnsemble, error) {
	var e VotingEnsemble
	if err := gob.NewDecoder(r).Decode(&e); err != nil {
		return nil, fmt.Errorf("decode ensemble: %w", err)
	}
	return &e, nil
}

func argmax(vals []float64) int {
	best := 0
	for i, v := range vals {
		if v > vals[best] {
			best = i
		}
	}
	return best
}
