package ml

import (
	"errors"
	"fmt"
	"math"
	"math/rand"
	"sort"

	"callquality/internal/features"
)

// RegressionTree is a CART regressor split on squared error.
type RegressionTree struct {
	MaxDepth        int        `json:"max_depth"`
	MinSamplesSplit int        `json:"min_samples_split"`
	MinSamplesLeaf  int        `json:"min_samples_leaf"`
	MaxFeatures     int        `json:"max_features"`
	NFeatures       int        `json:"n_features"`
	Nodes           []TreeNode `json:"nodes"`
	Importances     []float64  `json:"importances"`
}

// TreeNode is one node of a flattened tree. Leaves carry Value.
type TreeNode struct {
	Feature   int     `json:"feature"`
	Threshold float64 `json:"threshold"`
	Left      int     `json:"left"`
	Right     int     `json:"right"`
	Value     float64 `json:"value"`
	Leaf      bool    `json:"leaf"`
}

// NewRegressionTree returns a tree with the given depth limit. maxDepth <= 0 means unlimited.
func NewRegressionTree(maxDepth int) *RegressionTree {
	return &RegressionTree{MaxDepth: maxDepth, MinSamplesSplit: 2, MinSamplesLeaf: 1}
}

func (t *RegressionTree) Name() string { return "Regression Tree" }
func (t *RegressionTree) Type() string { return TypeRegressionTree }

// Fit grows the tree on every row of X.
func (t *RegressionTree) Fit(X [][]float64, y []float64) error {
	idx := make([]int, len(X))
	for i := range idx {
		idx[i] = i
	}
	return t.fitIndices(X, y, idx, nil)
}

// fitIndices grows the tree on the rows named by idx. Repeated indices act as
// sample weights, which is how bootstrap samples are passed in.
func (t *RegressionTree) fitIndices(X [][]float64, y []float64, idx []int, rng *rand.Rand) error {
	width, err := validateTrainingSet(X, y)
	if err != nil {
		return err
	}
	if len(idx) == 0 {
		return errors.New("no training rows selected")
	}
	if t.MinSamplesSplit < 2 {
		t.MinSamplesSplit = 2
	}
	if t.MinSamplesLeaf < 1 {
		t.MinSamplesLeaf = 1
	}

	t.NFeatures = width
	t.Nodes = t.Nodes[:0]
	t.Importances = make([]float64, width)

	b := &treeBuilder{tree: t, X: X, y: y, rng: rng}
	b.build(idx, 0)
	normalize(t.Importances)
	return nil
}

// Predict walks the tree for one vector.
func (t *RegressionTree) Predict(v features.Vector) (float64, error) {
	if len(t.Nodes) == 0 {
		return 0, errors.New("model not trained")
	}
	if len(v) != t.NFeatures {
		return 0, fmt.Errorf("expected %d features, got %d", t.NFeatures, len(v))
	}
	i := 0
	for {
		node := t.Nodes[i]
		if node.Leaf {
			return node.Value, nil
		}
		if node.Feature < 0 || node.Feature >= len(v) {
			return 0, fmt.Errorf("node %d splits on feature %d outside %d inputs", i, node.Feature, len(v))
		}
		next := node.Right
		if v[node.Feature] <= node.Threshold {
			next = node.Left
		}
		// Children are appended after their parent, so walking forward always terminates.
		if next <= i || next >= len(t.Nodes) {
			return 0, errors.New("invalid tree state")
		}
		i = next
	}
}

// InputWidth is the feature count the tree was fitted on.
func (t *RegressionTree) InputWidth() int { return t.NFeatures }

// Verify checks split features and child links of a decoded tree.
func (t *RegressionTree) Verify() error {
	if len(t.Nodes) == 0 {
		return errors.New("model not trained")
	}
	if t.NFeatures <= 0 {
		return fmt.Errorf("invalid feature count %d", t.NFeatures)
	}
	for i, node := range t.Nodes {
		if node.Leaf {
			continue
		}
		if node.Feature < 0 || node.Feature >= t.NFeatures {
			return fmt.Errorf("node %d splits on feature %d, tree has %d", i, node.Feature, t.NFeatures)
		}
		for _, child := range []int{node.Left, node.Right} {
			if child <= i || child >= len(t.Nodes) {
				return fmt.Errorf("node %d links to invalid child %d", i, child)
			}
		}
	}
	return nil
}

// FeatureImportances returns the normalized impurity decrease per feature.
func (t *RegressionTree) FeatureImportances() []float64 {
	out := make([]float64, len(t.Importances))
	copy(out, t.Importances)
	return out
}

type treeBuilder struct {
	tree *RegressionTree
	X    [][]float64
	y    []float64
	rng  *rand.Rand
}

func (b *treeBuilder) build(idx []int, depth int) int {
	t := b.tree
	mean, sse := meanSSE(b.y, idx)
	self := len(t.Nodes)
	t.Nodes = append(t.Nodes, TreeNode{Feature: -1, Left: -1, Right: -1, Value: mean, Leaf: true})

	if (t.MaxDepth > 0 && depth >= t.MaxDepth) || len(idx) < t.MinSamplesSplit || sse <= 1e-9*float64(len(idx)) {
		return self
	}

	feature, threshold, childSSE, ok := b.bestSplit(idx)
	if !ok {
		return self
	}

	left := make([]int, 0, len(idx)/2)
	right := make([]int, 0, len(idx)/2)
	for _, i := range idx {
		if b.X[i][feature] <= threshold {
			left = append(left, i)
		} else {
			right = append(right, i)
		}
	}
	if len(left) == 0 || len(right) == 0 {
		return self
	}

	t.Importances[feature] += sse - childSSE

	l := b.build(left, depth+1)
	r := b.build(right, depth+1)
	t.Nodes[self] = TreeNode{Feature: feature, Threshold: threshold, Left: l, Right: r, Value: mean}
	return self
}

func (b *treeBuilder) candidateFeatures() []int {
	width := b.tree.NFeatures
	all := make([]int, width)
	for i := range all {
		all[i] = i
	}
	k := b.tree.MaxFeatures
	if k <= 0 || k >= width || b.rng == nil {
		return all
	}
	b.rng.Shuffle(width, func(i, j int) { all[i], all[j] = all[j], all[i] })
	return all[:k]
}

// bestSplit scans every candidate feature for the threshold with the lowest
// summed child squared error.
func (b *treeBuilder) bestSplit(idx []int) (int, float64, float64, bool) {
	n := len(idx)
	minLeaf := b.tree.MinSamplesLeaf
	bestFeature := -1
	bestThreshold := 0.0
	bestSSE := math.Inf(1)

	sorted := make([]int, n)
	for _, f := range b.candidateFeatures() {
		copy(sorted, idx)
		sort.SliceStable(sorted, func(i, j int) bool {
			return b.X[sorted[i]][f] < b.X[sorted[j]][f]
		})

		var totalSum, totalSq float64
		for _, i := range sorted {
			totalSum += b.y[i]
			totalSq += b.y[i] * b.y[i]
		}

		var leftSum, leftSq float64
		for k := 1; k < n; k++ {
			yi := b.y[sorted[k-1]]
			leftSum += yi
			leftSq += yi * yi

			lo := b.X[sorted[k-1]][f]
			hi := b.X[sorted[k]][f]
			if lo == hi || k < minLeaf || n-k < minLeaf {
				continue
			}
			nl := float64(k)
			nr := float64(n - k)
			rightSum := totalSum - leftSum
			rightSq := totalSq - leftSq
			sse := (leftSq - leftSum*leftSum/nl) + (rightSq - rightSum*rightSum/nr)
			if sse < bestSSE {
				bestSSE = sse
				bestFeature = f
				bestThreshold = lo + (hi-lo)/2
			}
		}
	}
	if bestFeature < 0 {
		return -1, 0, 0, false
	}
	return bestFeature, bestThreshold, bestSSE, true
}

func meanSSE(y []float64, idx []int) (float64, float64) {
	var sum, sq float64
	for _, i := range idx {
		sum += y[i]
		sq += y[i] * y[i]
	}
	n := float64(len(idx))
	mean := sum / n
	sse := sq - sum*sum/n
	if sse < 0 {
		sse = 0
	}
	return mean, sse
}

func normalize(v []float64) {
	var total float64
	for _, x := range v {
		total += x
	}
	if total <= 0 {
		return
	}
	for i := range v {
		v[i] /= total
	}
}
