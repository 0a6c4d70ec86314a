package ml

import (
	"errors"
	"fmt"
	"math/rand"
	"runtime"
	"sync"

	"callquality/internal/features"
)

// RandomForest averages bootstrap-trained regression trees.
type RandomForest struct {
	NTrees      int               `json:"n_trees"`
	MaxDepth    int               `json:"max_depth"`
	MaxFeatures int               `json:"max_features"`
	Seed        int64             `json:"seed"`
	Trees       []*RegressionTree `json:"trees"`
	Importances []float64         `json:"importances"`
}

// NewRandomForest returns an untrained forest.
func NewRandomForest(nTrees, maxDepth int, seed int64) *RandomForest {
	return &RandomForest{NTrees: nTrees, MaxDepth: maxDepth, Seed: seed}
}

func (f *RandomForest) Name() string { return "Random Forest" }
func (f *RandomForest) Type() string { return TypeRandomForest }

// Fit trains NTrees trees in parallel. Each tree draws its bootstrap sample
// from its own seeded source, so results do not depend on scheduling.
func (f *RandomForest) Fit(X [][]float64, y []float64) error {
	width, err := validateTrainingSet(X, y)
	if err != nil {
		return err
	}
	if f.NTrees <= 0 {
		return fmt.Errorf("invalid number of trees: %d", f.NTrees)
	}

	trees := make([]*RegressionTree, f.NTrees)
	errs := make([]error, f.NTrees)
	sem := make(chan struct{}, runtime.NumCPU())
	var wg sync.WaitGroup

	for t := 0; t < f.NTrees; t++ {
		wg.Add(1)
		sem <- struct{}{}
		go func(t int) {
			defer wg.Done()
			defer func() { <-sem }()

			rng := rand.New(rand.NewSource(f.Seed + int64(t)))
			idx := make([]int, len(X))
			for i := range idx {
				idx[i] = rng.Intn(len(X))
			}
			tree := NewRegressionTree(f.MaxDepth)
			tree.MaxFeatures = f.MaxFeatures
			errs[t] = tree.fitIndices(X, y, idx, rng)
			trees[t] = tree
		}(t)
	}
	wg.Wait()

	for t, err := range errs {
		if err != nil {
			return fmt.Errorf("tree %d: %w", t, err)
		}
	}

	f.Trees = trees
	f.Importances = make([]float64, width)
	for _, tree := range trees {
		for i, v := range tree.Importances {
			f.Importances[i] += v
		}
	}
	normalize(f.Importances)
	return nil
}

// Predict returns the mean prediction over all trees.
func (f *RandomForest) Predict(v features.Vector) (float64, error) {
	if len(f.Trees) == 0 {
		return 0, errors.New("model not trained")
	}
	var sum float64
	for _, tree := range f.Trees {
		p, err := tree.Predict(v)
		if err != nil {
			return 0, err
		}
		sum += p
	}
	return sum / float64(len(f.Trees)), nil
}

func (f *RandomForest) InputWidth() int {
	if len(f.Trees) == 0 || f.Trees[0] == nil {
		return 0
	}
	return f.Trees[0].NFeatures
}

func (f *RandomForest) Verify() error { return verifyTrees(f.Trees) }

// FeatureImportances returns the mean impurity importance across trees.
func (f *RandomForest) FeatureImportances() []float64 {
	out := make([]float64, len(f.Importances))
	copy(out, f.Importances)
	return out
}
