package classifier

import (
	"bytes"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// twoClusters builds a linearly separable two-class problem: class 0 around
// the origin, class 1 around (5, 5).
func twoClusters(n int, seed int64) ([][]float64, []int) {
	rng := rand.New(rand.NewSource(seed))
	X := make([][]float64, 0, 2*n)
	y := make([]int, 0, 2*n)
	for i := 0; i < n; i++ {
		X = append(X, []float64{rng.NormFloat64() * 0.5, rng.NormFloat64() * 0.5})
		y = append(y, 0)
		X = append(X, []float64{5 + rng.NormFloat64()*0.5, 5 + rng.NormFloat64()*0.5})
		y = append(y, 1)
	}
	return X, y
}

func accuracy(m Model, X [][]float64, y []int) float64 {
	correct := 0
	for i, x := range X {
		if argmax(m.PredictProba(x)) == y[i] {
			correct++
		}
	}
	return float64(correct) / float64(len(X))
}

func smallForest(seed int64) *RandomForest {
	f := NewRandomForest(seed)
	f.NumTrees = 25
	f.Workers = 2
	return f
}

func smallBooster(seed int64) *GradientBoosting {
	g := NewGradientBoosting(seed)
	g.Rounds = 25
	g.MinLeaf = 2
	return g
}

func TestRandomForestSeparatesClusters(t *testing.T) {
	X, y := twoClusters(40, 1)
	f := smallForest(7)
	require.NoError(t, f.Fit(X, y, 2))

	assert.Greater(t, accuracy(f, X, y), 0.95)

	probs := f.PredictProba([]float64{0, 0})
	require.Len(t, probs, 2)
	assert.Greater(t, probs[0], probs[1])
	assert.InDelta(t, 1.0, probs[0]+probs[1], 1e-9)
}

func TestRandomForestDeterministicForSeed(t *testing.T) {
	X, y := twoClusters(30, 2)

	a := smallForest(11)
	require.NoError(t, a.Fit(X, y, 2))
	b := smallForest(11)
	require.NoError(t, b.Fit(X, y, 2))

	probe := []float64{2.5, 2.5}
	assert.Equal(t, a.PredictProba(probe), b.PredictProba(probe),
		"same seed must yield the same forest regardless of worker scheduling")
}

func TestGradientBoostingSeparatesClusters(t *testing.T) {
	X, y := twoClusters(40, 3)
	g := smallBooster(7)
	require.NoError(t, g.Fit(X, y, 2))

	assert.Greater(t, accuracy(g, X, y), 0.95)

	probs := g.PredictProba([]float64{5, 5})
	require.Len(t, probs, 2)
	assert.Greater(t, probs[1], probs[0])
	assert.InDelta(t, 1.0, probs[0]+probs[1], 1e-9)
}

func TestGradientBoostingMulticlass(t *testing.T) {
	rng := rand.New(rand.NewSource(4))
	centers := [][]float64{{0, 0}, {6, 0}, {0, 6}}
	var X [][]float64
	var y []int
	for c, center := range centers {
		for i := 0; i < 30; i++ {
			X = append(X, []float64{
				center[0] + rng.NormFloat64()*0.5,
				center[1] + rng.NormFloat64()*0.5,
			})
			y = append(y, c)
		}
	}

	g := smallBooster(9)
	require.NoError(t, g.Fit(X, y, 3))
	assert.Greater(t, accuracy(g, X, y), 0.9)

	for c, center := range centers {
		pred := argmax(g.PredictProba(center))
		assert.Equal(t, c, pred, "center of class %d", c)
	}
}

func TestVotingEnsemble(t *testing.T) {
	X, y := twoClusters(40, 5)

	e := NewVotingEnsemble(smallForest(7), smallBooster(7))
	require.NoError(t, e.Fit(X, y, 2))

	assert.Greater(t, accuracy(e, X, y), 0.95)

	idx, confidence := e.Predict([]float64{5, 5})
	assert.Equal(t, 1, idx)
	assert.Greater(t, confidence, 0.5)
	assert.LessOrEqual(t, confidence, 1.0)
}

func TestEnsembleSaveLoadPredictionParity(t *testing.T) {
	X, y := twoClusters(30, 6)

	e := NewVotingEnsemble(smallForest(7), smallBooster(7))
	require.NoError(t, e.Fit(X, y, 2))

	var buf bytes.Buffer
	require.NoError(t, e.Save(&buf))

	loaded, err := LoadEnsemble(&buf)
	require.NoError(t, err)

	for _, probe := range [][]float64{{0, 0}, {5, 5}, {2.5, 2.5}, {-1, 6}} {
		assert.Equal(t, e.PredictProba(probe), loaded.PredictProba(probe),
			"loaded model must predict identically at %v", probe)
	}
}

func TestFitRejectsEmptyTrainingSet(t *testing.T) {
	e := NewVotingEnsemble(smallForest(1), smallBooster(1))
	require.Error(t, e.Fit(nil, nil, 2))
}
