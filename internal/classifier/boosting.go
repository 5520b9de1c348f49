package classifier

import (
	"errors"
	"math"
	"math/rand"
	"sort"
)

// RegNode is one node of a regression tree fitted to boosting residuals.
type RegNode struct {
	Feature   int
	Threshold float64
	Left      *RegNode
	Right     *RegNode
	Leaf      bool
	Value     float64
}

func (n *RegNode) predict(x []float64) float64 {
	for !n.Leaf {
		if x[n.Feature] < n.Threshold {
			n = n.Left
		} else {
			n = n.Right
		}
	}
	return n.Value
}

// GradientBoosting is a multiclass softmax booster: every round fits one
// shallow regression tree per class to the residual between the one-hot
// label and the current softmax probability, then steps the raw scores by
// LearningRate along the tree output.
type GradientBoosting struct {
	Rounds       int
	LearningRate float64
	MaxDepth     int
	MinLeaf      int
	Subsample    float64 // fraction of rows per round, (0,1]
	Seed         int64

	NumClasses int
	Trees      [][]*RegNode // Rounds x NumClasses
}

// NewGradientBoosting returns a booster with the default training
// parameters.
func NewGradientBoosting(seed int64) *GradientBoosting {
	return &GradientBoosting{
		Rounds:       100,
		LearningRate: 0.1,
		MaxDepth:     4,
		MinLeaf:      5,
		Subsample:    0.8,
		Seed:         seed,
	}
}

// Fit runs the boosting rounds.
func (g *GradientBoosting) Fit(X [][]float64, y []int, numClasses int) error {
	if len(X) == 0 {
		return errors.New("classifier: empty training set")
	}
	g.NumClasses = numClasses
	g.Trees = make([][]*RegNode, 0, g.Rounds)

	n := len(X)
	rng := rand.New(rand.NewSource(g.Seed))

	scores := make([][]float64, n)
	for i := range scores {
		scores[i] = make([]float64, numClasses)
	}

	residual := make([]float64, n)
	for round := 0; round < g.Rounds; round++ {
		idx := g.sampleRows(n, rng)
		roundTrees := make([]*RegNode, numClasses)

		probs := make([][]float64, n)
		for i := range probs {
			probs[i] = softmax(scores[i])
		}

		for k := 0; k < numClasses; k++ {
			for i := 0; i < n; i++ {
				target := 0.0
				if y[i] == k {
					target = 1.0
				}
				residual[i] = target - probs[i][k]
			}

			tree := growRegTree(X, residual, idx, regConfig{maxDepth: g.MaxDepth, minLeaf: g.MinLeaf}, 0)
			roundTrees[k] = tree

			for i := 0; i < n; i++ {
				scores[i][k] += g.LearningRate * tree.predict(X[i])
			}
		}
		g.Trees = append(g.Trees, roundTrees)
	}
	return nil
}

// PredictProba accumulates the tree scores and returns their softmax.
func (g *GradientBoosting) PredictProba(x []float64) []float64 {
	scores := make([]float64, g.NumClasses)
	for _, roundTrees := range g.Trees {
		for k, tree := range roundTrees {
			scores[k] += g.LearningRate * tree.predict(x)
		}
	}
	return softmax(scores)
}

func (g *GradientBoosting) sampleRows(n int, rng *rand.Rand) []int {
	if g.Subsample <= 0 || g.Subsample >= 1 {
		idx := make([]int, n)
		for i := range idx {
			idx[i] = i
		}
		return idx
	}
	count := int(math.Ceil(g.Subsample * float64(n)))
	idx := rng.Perm(n)[:count]
	sort.Ints(idx)
	return idx
}

func softmax(scores []float64) []float64 {
	maxS := scores[0]
	for _, s := range scores {
		if s > maxS {
			maxS = s
		}
	}
	out := make([]float64, len(scores))
	sum := 0.0
	for k, s := range scores {
		out[k] = math.Exp(s - maxS)
		sum += out[k]
	}
	for k := range out {
		out[k] /= sum
	}
	return out
}

type regConfig struct {
	maxDepth int
	minLeaf  int
}

// growRegTree fits a variance-reduction regression tree to targets over the
// samples in idx. Leaf value is the mean target of the leaf.
func growRegTree(X [][]float64, targets []float64, idx []int, cfg regConfig, depth int) *RegNode {
	if len(idx) <= cfg.minLeaf || (cfg.maxDepth > 0 && depth >= cfg.maxDepth) {
		return regLeaf(targets, idx)
	}

	feature, threshold, ok := bestSSESplit(X, targets, idx, cfg.minLeaf)
	if !ok {
		return regLeaf(targets, idx)
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
		return regLeaf(targets, idx)
	}

	return &RegNode{
		Feature:   feature,
		Threshold: threshold,
		Left:      growRegTree(X, targets, left, cfg, depth+1),
		Right:     growRegTree(X, targets, right, cfg, depth+1),
	}
}

func regLeaf(targets []float64, idx []int) *RegNode {
	sum := 0.0
	for _, i := range idx {
		sum += targets[i]
	}
	return &RegNode{Leaf: true, Value: sum / float64(len(idx))}
}

// bestSSESplit finds the split minimizing the summed squared error of the
// two children, via a single sorted sweep per feature using running sums.
func bestSSESplit(X [][]float64, targets []float64, idx []int, minLeaf int) (int, float64, bool) {
	n := len(idx)
	numFeatures := len(X[idx[0]])

	type pair struct {
		val    float64
		target float64
	}
	pairs := make([]pair, n)

	var totalSum, totalSq float64
	for _, i := range idx {
		totalSum += targets[i]
		totalSq += targets[i] * targets[i]
	}

	bestFeature, bestThreshold := -1, 0.0
	bestSSE := totalSq - totalSum*totalSum/float64(n)

	for f := 0; f < numFeatures; f++ {
		for i, s := range idx {
			pairs[i] = pair{val: X[s][f], target: targets[s]}
		}
		sort.Slice(pairs, func(i, j int) bool { return pairs[i].val < pairs[j].val })

		var leftSum, leftSq float64
		for i := 0; i < n-1; i++ {
			leftSum += pairs[i].target
			leftSq += pairs[i].target * pairs[i].target
			if pairs[i].val == pairs[i+1].val {
				continue
			}
			nl, nr := i+1, n-i-1
			if nl < minLeaf || nr < minLeaf {
				continue
			}

			rightSum := totalSum - leftSum
			rightSq := totalSq - leftSq
			sse := (leftSq - leftSum*leftSum/float64(nl)) + (rightSq - rightSum*rightSum/float64(nr))
			if sse < bestSSE {
				bestSSE = sse
				bestFeature = f
				bestThreshold = (pairs[i].val + pairs[i+1].val) / 2
			}
		}
	}

	return bestFeature, bestThreshold, bestFeature >= 0
}
