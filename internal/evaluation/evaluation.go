// Package evaluation holds the held-out evaluation of a fitted model:
// stratified train/test splitting, the per-class classification report and
// the confusion matrix.
package evaluation

import (
	"math"
	"math/rand"
	"sort"

	"gonum.org/v1/gonum/stat"

	"github.com/agrisphere/leafclass/internal/classifier"
)

// ClassMetrics mirrors one row of a classification report.
type ClassMetrics struct {
	Precision float64 `json:"precision"`
	Recall    float64 `json:"recall"`
	F1        float64 `json:"f1-score"`
	Support   int     `json:"support"`
}

// Report is the evaluation summary for one test set.
type Report struct {
	Accuracy    float64                 `json:"accuracy"`
	Classes     map[string]ClassMetrics `json:"classes"`
	MacroAvg    ClassMetrics            `json:"macro avg"`
	WeightedAvg ClassMetrics            `json:"weighted avg"`
}

// StratifiedSplit partitions the sample indices into train and test sets
// with each class represented proportionally in both. Rare classes could
// otherwise vanish from the test set entirely; any class with at least two
// samples lands on both sides.
func StratifiedSplit(labels []int, testFrac float64, seed int64) (train, test []int) {
	byClass := make(map[int][]int)
	for i, label := range labels {
		byClass[label] = append(byClass[label], i)
	}

	classes := make([]int, 0, len(byClass))
	for k := range byClass {
		classes = append(classes, k)
	}
	sort.Ints(classes)

	rng := rand.New(rand.NewSource(seed))
	for _, k := range classes {
		idx := byClass[k]
		rng.Shuffle(len(idx), func(i, j int) { idx[i], idx[j] = idx[j], idx[i] })

		nTest := int(math.Round(testFrac * float64(len(idx))))
		if len(idx) > 1 {
			if nTest == 0 {
				nTest = 1
			}
			if nTest == len(idx) {
				nTest = len(idx) - 1
			}
		}
		test = append(test, idx[:nTest]...)
		train = append(train, idx[nTest:]...)
	}

	sort.Ints(train)
	sort.Ints(test)
	return train, test
}

// Evaluate predicts every test vector and derives the report and the
// confusion matrix. cm[actual][predicted] counts samples.
func Evaluate(model classifier.Model, X [][]float64, y []int, classes []string) (*Report, [][]int) {
	k := len(classes)
	cm := make([][]int, k)
	for i := range cm {
		cm[i] = make([]int, k)
	}

	correct := 0
	for i, x := range X {
		probs := model.PredictProba(x)
		pred := 0
		for j, p := range probs {
			if p > probs[pred] {
				pred = j
			}
		}
		cm[y[i]][pred]++
		if pred == y[i] {
			correct++
		}
	}

	report := &Report{
		Classes: make(map[string]ClassMetrics, k),
	}
	if len(X) > 0 {
		report.Accuracy = float64(correct) / float64(len(X))
	}

	precisions := make([]float64, k)
	recalls := make([]float64, k)
	f1s := make([]float64, k)
	supports := make([]float64, k)
	for c := 0; c < k; c++ {
		tp := cm[c][c]
		fp, fn := 0, 0
		for j := 0; j < k; j++ {
			if j == c {
				continue
			}
			fp += cm[j][c]
			fn += cm[c][j]
		}

		m := ClassMetrics{Support: tp + fn}
		if tp+fp > 0 {
			m.Precision = float64(tp) / float64(tp+fp)
		}
		if tp+fn > 0 {
			m.Recall = float64(tp) / float64(tp+fn)
		}
		if m.Precision+m.Recall > 0 {
			m.F1 = 2 * m.Precision * m.Recall / (m.Precision + m.Recall)
		}
		report.Classes[classes[c]] = m

		precisions[c] = m.Precision
		recalls[c] = m.Recall
		f1s[c] = m.F1
		supports[c] = float64(m.Support)
	}

	total := 0
	for _, s := range supports {
		total += int(s)
	}
	report.MacroAvg = ClassMetrics{
		Precision: stat.Mean(precisions, nil),
		Recall:    stat.Mean(recalls, nil),
		F1:        stat.Mean(f1s, nil),
		Support:   total,
	}
	report.WeightedAvg = ClassMetrics{
		Precision: stat.Mean(precisions, supports),
		Recall:    stat.Mean(recalls, supports),
		F1:        stat.Mean(f1s, supports),
		Support:   total,
	}

	return report, cm
}
