package ml

import (
	"encoding/json"
	"fmt"
	"math/rand"
	"os"
	"path/filepath"
	"sort"
)

// FeatureScore is one feature with its importance.
type FeatureScore struct {
	Feature    string  `json:"feature"`
	Importance float64 `json:"importance"`
}

// ModelImportance reads impurity importances from models that expose them.
// The second result is false for models without native importances, such as
// LinearRegression whose coefficient magnitudes depend on feature scale.
func ModelImportance(m Regressor, names []string) ([]FeatureScore, bool) {
	r, ok := m.(ImportanceReporter)
	if !ok {
		return nil, false
	}
	values := r.FeatureImportances()
	if len(values) != len(names) {
		return nil, false
	}
	scores := make([]FeatureScore, len(names))
	for i, name := range names {
		scores[i] = FeatureScore{Feature: name, Importance: values[i]}
	}
	return scores, true
}

// PermutationImportance measures the R² drop when each column of X is shuffled.
// Negative drops are reported as 0.
func PermutationImportance(m Regressor, X [][]float64, y []float64, names []string, seed int64) ([]FeatureScore, error) {
	if len(X) == 0 {
		return nil, fmt.Errorf("no rows to permute")
	}
	if len(X[0]) != len(names) {
		return nil, fmt.Errorf("expected %d feature names, got %d", len(X[0]), len(names))
	}
	baseline, err := Score(m, X, y)
	if err != nil {
		return nil, err
	}

	rng := rand.New(rand.NewSource(seed))
	permuted := make([][]float64, len(X))
	for i := range X {
		permuted[i] = make([]float64, len(X[i]))
		copy(permuted[i], X[i])
	}
	column := make([]float64, len(X))

	scores := make([]FeatureScore, len(names))
	for f, name := range names {
		for i := range X {
			column[i] = X[i][f]
		}
		rng.Shuffle(len(column), func(i, j int) { column[i], column[j] = column[j], column[i] })
		for i := range permuted {
			permuted[i][f] = column[i]
		}

		s, err := Score(m, permuted, y)
		if err != nil {
			return nil, err
		}
		drop := baseline.R2 - s.R2
		if drop < 0 {
			drop = 0
		}
		scores[f] = FeatureScore{Feature: name, Importance: drop}

		for i := range permuted {
			permuted[i][f] = X[i][f]
		}
	}
	return scores, nil
}

// TopFeatures returns the n highest scores, ties kept in input order.
func TopFeatures(scores []FeatureScore, n int) []FeatureScore {
	sorted := make([]FeatureScore, len(scores))
	copy(sorted, scores)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].Importance > sorted[j].Importance
	})
	if n >= 0 && n < len(sorted) {
		sorted = sorted[:n]
	}
	return sorted
}

// SaveFeatureScores writes scores as indented JSON.
func SaveFeatureScores(path string, scores []FeatureScore) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	data, err := json.MarshalIndent(scores, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o600)
}

// LoadFeatureScores reads scores written by SaveFeatureScores.
func LoadFeatureScores(path string) ([]FeatureScore, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var scores []FeatureScore
	if err := json.Unmarshal(data, &scores); err != nil {
		return nil, err
	}
	return scores, nil
}
