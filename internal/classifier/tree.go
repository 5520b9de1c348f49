package classifier

import (
	"math/rand"
	"sort"
)

// TreeNode is one node of a classification tree. Leaves carry a class
// probability distribution; internal nodes route on Feature < Threshold.
type TreeNode struct {
	Feature   int
	Threshold float64
	Left      *TreeNode
	Right     *TreeNode
	Probs     []float64
}

type treeConfig struct {
	maxDepth        int // <= 0 means unlimited
	minSamplesSplit int
	maxFeatures     int // candidate features per split; <= 0 means all
}

func (n *TreeNode) predict(x []float64) []float64 {
	for n.Probs == nil {
		if x[n.Feature] < n.Threshold {
			n = n.Left
		} else {
			n = n.Right
		}
	}
	return n.Probs
}

// growTree builds a CART tree over the samples in idx using Gini impurity.
func growTree(X [][]float64, y []int, idx []int, numClasses int, cfg treeConfig, rng *rand.Rand, depth int) *TreeNode {
	counts := make([]float64, numClasses)
	for _, i := range idx {
		counts[y[i]]++
	}

	if len(idx) < cfg.minSamplesSplit || isPure(counts) || (cfg.maxDepth > 0 && depth >= cfg.maxDepth) {
		return leaf(counts, len(idx))
	}

	feature, threshold, ok := bestGiniSplit(X, y, idx, numClasses, cfg, rng)
	if !ok {
		return leaf(counts, len(idx))
	}

	var left, right []int
	for _, i := range idx {
		if X[i][feature] < threshold {
			left = append(left, i)
		} else {
			right = append(right, i)
		}
	}
	if len(left) == 0 || len(right) == 0 {
		return leaf(counts, len(idx))
	}

	return &TreeNode{
		Feature:   feature,
		Threshold: threshold,
		Left:      growTree(X, y, left, numClasses, cfg, rng, depth+1),
		Right:     growTree(X, y, right, numClasses, cfg, rng, depth+1),
	}
}

func leaf(counts []float64, total int) *TreeNode {
	probs := make([]float64, len(counts))
	for k, c := range counts {
		probs[k] = c / float64(total)
	}
	return &TreeNode{Probs: probs}
}

func isPure(counts []float64) bool {
	nonzero := 0
	for _, c := range counts {
		if c > 0 {
			nonzero++
		}
	}
	return nonzero <= 1
}

// bestGiniSplit scans the candidate features for the split with the lowest
// weighted Gini impurity. Candidates are a random subset when maxFeatures is
// set, which is what decorrelates forest trees.
func bestGiniSplit(X [][]float64, y []int, idx []int, numClasses int, cfg treeConfig, rng *rand.Rand) (int, float64, bool) {
	numFeatures := len(X[idx[0]])
	candidates := make([]int, numFeatures)
	for f := range candidates {
		candidates[f] = f
	}
	if cfg.maxFeatures > 0 && cfg.maxFeatures < numFeatures {
		rng.Shuffle(numFeatures, func(i, j int) {
			candidates[i], candidates[j] = candidates[j], candidates[i]
		})
		candidates = candidates[:cfg.maxFeatures]
	}

	n := len(idx)
	parent := giniOf(y, idx, numClasses)

	type pair struct {
		val   float64
		label int
	}
	pairs := make([]pair, n)

	bestFeature, bestThreshold, bestImpurity := -1, 0.0, parent
	for _, f := range candidates {
		for i, s := range idx {
			pairs[i] = pair{val: X[s][f], label: y[s]}
		}
		sort.Slice(pairs, func(i, j int) bool { return pairs[i].val < pairs[j].val })

		leftCounts := make([]float64, numClasses)
		rightCounts := make([]float64, numClasses)
		for _, p := range pairs {
			rightCounts[p.label]++
		}

		for i := 0; i < n-1; i++ {
			leftCounts[pairs[i].label]++
			rightCounts[pairs[i].label]--
			if pairs[i].val == pairs[i+1].val {
				continue
			}

			nl, nr := float64(i+1), float64(n-i-1)
			impurity := (nl*gini(leftCounts, nl) + nr*gini(rightCounts, nr)) / float64(n)
			if impurity < bestImpurity {
				bestImpurity = impurity
				bestFeature = f
				bestThreshold = (pairs[i].val + pairs[i+1].val) / 2
			}
		}
	}

	return bestFeature, bestThreshold, bestFeature >= 0
}

func giniOf(y []int, idx []int, numClasses int) float64 {
	counts := make([]float64, numClasses)
	for _, i := range idx {
		counts[y[i]]++
	}
	return gini(counts, float64(len(idx)))
}

func gini(counts []float64, total float64) float64 {
	g := 1.0
	for _, c := range counts {
		p := c / total
		g -= p * p
	}
	return g
}
