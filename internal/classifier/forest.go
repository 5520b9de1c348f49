package classifier

import (
	"errors"
	"math"
	"math/rand"
	"runtime"
	"sync"
)

// RandomForest bags Gini decision trees over bootstrap samples, with a
// sqrt-sized random feature subset considered at every split.
type RandomForest struct {
	NumTrees        int
	MaxDepth        int // <= 0 grows trees to purity
	MinSamplesSplit int
	Seed            int64
	Workers         int

	NumClasses int
	Trees      []*TreeNode
}

// NewRandomForest returns a forest with the default training parameters.
func NewRandomForest(seed int64) *RandomForest {
	return &RandomForest{
		NumTrees:        300,
		MinSamplesSplit: 2,
		Seed:            seed,
		Workers:         runtime.NumCPU(),
	}
}

// Fit grows the trees. Tree growth is independent, so trees are trained on
// a worker pool; each tree derives its own rng from Seed and its index,
// keeping the fit deterministic regardless of worker scheduling.
func (f *RandomForest) Fit(X [][]float64, y []int, numClasses int) error {
	if len(X) == 0 {
		return errors.New("classifier: empty training set")
	}
	f.NumClasses = numClasses
	f.Trees = make([]*TreeNode, f.NumTrees)

	cfg := treeConfig{
		maxDepth:        f.MaxDepth,
		minSamplesSplit: f.MinSamplesSplit,
		maxFeatures:     int(math.Sqrt(float64(len(X[0])))),
	}

	workers := f.Workers
	if workers <= 0 {
		workers = 1
	}

	treeChan := make(chan int, f.NumTrees)
	var wg sync.WaitGroup
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for t := range treeChan {
				rng := rand.New(rand.NewSource(f.Seed + int64(t)))
				boot := make([]int, len(X))
				for i := range boot {
					boot[i] = rng.Intn(len(X))
				}
				f.Trees[t] = growTree(X, y, boot, numClasses, cfg, rng, 0)
			}
		}()
	}
	for t := 0; t < f.NumTrees; t++ {
		treeChan <- t
	}
	close(treeChan)
	wg.Wait()

	return nil
}

// PredictProba averages the leaf distributions of every tree.
func (f *RandomForest) PredictProba(x []float64) []float64 {
	probs := make([]float64, f.NumClasses)
	for _, tree := range f.Trees {
		for k, p := range tree.predict(x) {
			probs[k] += p
		}
	}
	for k := range probs {
		probs[k] /= float64(len(f.Trees))
	}
	return probs
}
