package evaluation

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// echoModel predicts the class encoded in the first feature, which lets a
// test drive the evaluator with a fixed prediction sequence.
type echoModel struct {
	numClasses int
}

func (m echoModel) PredictProba(x []float64) []float64 {
	probs := make([]float64, m.numClasses)
	probs[int(x[0])] = 1.0
	return probs
}

func TestStratifiedSplitProportions(t *testing.T) {
	labels := make([]int, 0, 100)
	for i := 0; i < 80; i++ {
		labels = append(labels, 0)
	}
	for i := 0; i < 20; i++ {
		labels = append(labels, 1)
	}

	train, test := StratifiedSplit(labels, 0.25, 42)

	require.Len(t, train, 75)
	require.Len(t, test, 25)

	count := func(idx []int, class int) int {
		n := 0
		for _, i := range idx {
			if labels[i] == class {
				n++
			}
		}
		return n
	}
	assert.Equal(t, 20, count(test, 0))
	assert.Equal(t, 5, count(test, 1))
	assert.Equal(t, 60, count(train, 0))
	assert.Equal(t, 15, count(train, 1))
}

func TestStratifiedSplitKeepsRareClassOnBothSides(t *testing.T) {
	// Two samples of a rare class: one must land in test, one in train.
	labels := []int{0, 0, 0, 0, 0, 0, 0, 0, 1, 1}
	train, test := StratifiedSplit(labels, 0.2, 1)

	inTest, inTrain := 0, 0
	for _, i := range test {
		if labels[i] == 1 {
			inTest++
		}
	}
	for _, i := range train {
		if labels[i] == 1 {
			inTrain++
		}
	}
	assert.Equal(t, 1, inTest)
	assert.Equal(t, 1, inTrain)
}

func TestStratifiedSplitDisjointAndComplete(t *testing.T) {
	labels := []int{0, 1, 2, 0, 1, 2, 0, 1, 2, 0, 1, 2}
	train, test := StratifiedSplit(labels, 0.33, 7)

	seen := make(map[int]bool)
	for _, i := range append(append([]int{}, train...), test...) {
		require.False(t, seen[i], "index %d appears twice", i)
		seen[i] = true
	}
	assert.Len(t, seen, len(labels))
}

func TestStratifiedSplitDeterministic(t *testing.T) {
	labels := []int{0, 0, 1, 1, 0, 1, 0, 0, 1, 0}
	trainA, testA := StratifiedSplit(labels, 0.3, 42)
	trainB, testB := StratifiedSplit(labels, 0.3, 42)
	assert.Equal(t, trainA, trainB)
	assert.Equal(t, testA, testB)
}

func TestEvaluateReportAndConfusionMatrix(t *testing.T) {
	classes := []string{"blight", "healthy"}
	// actual:    0 0 0 1 1
	// predicted: 0 0 1 1 1
	X := [][]float64{{0}, {0}, {1}, {1}, {1}}
	y := []int{0, 0, 0, 1, 1}

	report, cm := Evaluate(echoModel{numClasses: 2}, X, y, classes)

	assert.Equal(t, [][]int{{2, 1}, {0, 2}}, cm)
	assert.InDelta(t, 0.8, report.Accuracy, 1e-9)

	blight := report.Classes["blight"]
	assert.InDelta(t, 1.0, blight.Precision, 1e-9)
	assert.InDelta(t, 2.0/3.0, blight.Recall, 1e-9)
	assert.Equal(t, 3, blight.Support)

	healthy := report.Classes["healthy"]
	assert.InDelta(t, 2.0/3.0, healthy.Precision, 1e-9)
	assert.InDelta(t, 1.0, healthy.Recall, 1e-9)
	assert.Equal(t, 2, healthy.Support)

	assert.InDelta(t, (1.0+2.0/3.0)/2, report.MacroAvg.Precision, 1e-9)
	assert.Equal(t, 5, report.MacroAvg.Support)
	assert.InDelta(t, (3*1.0+2*2.0/3.0)/5, report.WeightedAvg.Precision, 1e-9)
}

func TestEvaluateAbsentPredictionClass(t *testing.T) {
	// The model never predicts class 1; its precision is defined as 0.
	classes := []string{"a", "b"}
	X := [][]float64{{0}, {0}, {0}}
	y := []int{0, 1, 1}

	report, cm := Evaluate(echoModel{numClasses: 2}, X, y, classes)

	assert.Equal(t, [][]int{{1, 0}, {2, 0}}, cm)
	b := report.Classes["b"]
	assert.Zero(t, b.Precision)
	assert.Zero(t, b.Recall)
	assert.Zero(t, b.F1)
	assert.Equal(t, 2, b.Support)
}
