package ml

import (
	"errors"
	"fmt"

	"callquality/internal/features"
)

// GradientBoosting fits shallow trees to squared-error residuals.
type GradientBoosting struct {
	Rounds       int               `json:"rounds"`
	LearningRate float64           `json:"learning_rate"`
	MaxDepth     int               `json:"max_depth"`
	Init         float64           `json:"init"`
	Trees        []*RegressionTree `json:"trees"`
	Importances  []float64         `json:"importances"`
}

// NewGradientBoosting returns an untrained booster.
func NewGradientBoosting(rounds int, learningRate float64, maxDepth int) *GradientBoosting {
	return &GradientBoosting{Rounds: rounds, LearningRate: learningRate, MaxDepth: maxDepth}
}

func (g *GradientBoosting) Name() string { return "Gradient Boosting" }
func (g *GradientBoosting) Type() string { return TypeGradientBoosting }

// Fit starts from the target mean and adds one tree per round.
func (g *GradientBoosting) Fit(X [][]float64, y []float64) error {
	width, err := validateTrainingSet(X, y)
	if err != nil {
		return err
	}
	if g.Rounds <= 0 {
		return fmt.Errorf("invalid number of boosting rounds: %d", g.Rounds)
	}
	if g.LearningRate <= 0 || g.LearningRate > 1 {
		return fmt.Errorf("learning rate must be in (0, 1], got %v", g.LearningRate)
	}

	var sum float64
	for _, v := range y {
		sum += v
	}
	g.Init = sum / float64(len(y))

	current := make([]float64, len(y))
	for i := range current {
		current[i] = g.Init
	}
	residual := make([]float64, len(y))

	g.Trees = make([]*RegressionTree, 0, g.Rounds)
	g.Importances = make([]float64, width)
	for round := 0; round < g.Rounds; round++ {
		for i := range y {
			residual[i] = y[i] - current[i]
		}
		tree := NewRegressionTree(g.MaxDepth)
		if err := tree.Fit(X, residual); err != nil {
			return fmt.Errorf("round %d: %w", round, err)
		}
		for i, row := range X {
			p, err := tree.Predict(row)
			if err != nil {
				return fmt.Errorf("round %d: %w", round, err)
			}
			current[i] += g.LearningRate * p
		}
		for i, v := range tree.Importances {
			g.Importances[i] += v
		}
		g.Trees = append(g.Trees, tree)
	}
	normalize(g.Importances)
	return nil
}

// Predict sums the initial value and every scaled tree output.
func (g *GradientBoosting) Predict(v features.Vector) (float64, error) {
	if len(g.Trees) == 0 {
		return 0, errors.New("model not trained")
	}
	out := g.Init
	for _, tree := range g.Trees {
		p, err := tree.Predict(v)
		if err != nil {
			return 0, err
		}
		out += g.LearningRate * p
	}
	return out, nil
}

func (g *GradientBoosting) InputWidth() int {
	if len(g.Trees) == 0 || g.Trees[0] == nil {
		return 0
	}
	return g.Trees[0].NFeatures
}

func (g *GradientBoosting) Verify() error { return verifyTrees(g.Trees) }

func (g *GradientBoosting) FeatureImportances() []float64 {
	out := make([]float64, len(g.Importances))
	copy(out, g.Importances)
	return out
}
