package ml

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPermutationImportance_RanksInformativeFeature(t *testing.T) {
	X, y := stepData(200, 11)
	tree := NewRegressionTree(3)
	require.NoError(t, tree.Fit(X, y))

	scores, err := PermutationImportance(tree, X, y, []string{"signal", "noise"}, 42)
	require.NoError(t, err)
	require.Len(t, scores, 2)
	assert.Equal(t, "signal", scores[0].Feature)
	assert.Greater(t, scores[0].Importance, 0.5)
	assert.GreaterOrEqual(t, scores[1].Importance, 0.0)
	assert.Less(t, scores[1].Importance, scores[0].Importance)

	top := TopFeatures(scores, 1)
	require.Len(t, top, 1)
	assert.Equal(t, "signal", top[0].Feature)
}

func TestPermutationImportance_DoesNotMutateInput(t *testing.T) {
	X, y := linearData(50, 12)
	before := make([][]float64, len(X))
	for i := range X {
		before[i] = append([]float64(nil), X[i]...)
	}
	lr := NewLinearRegression()
	require.NoError(t, lr.Fit(X, y))
	_, err := PermutationImportance(lr, X, y, []string{"a", "b"}, 1)
	require.NoError(t, err)
	assert.Equal(t, before, X)
}

func TestPermutationImportance_NameMismatch(t *testing.T) {
	X, y := linearData(10, 13)
	lr := NewLinearRegression()
	require.NoError(t, lr.Fit(X, y))
	_, err := PermutationImportance(lr, X, y, []string{"only"}, 1)
	assert.Error(t, err)
	_, err = PermutationImportance(lr, nil, nil, nil, 1)
	assert.Error(t, err)
}

func TestModelImportance(t *testing.T) {
	X, y := stepData(100, 14)
	forest := NewRandomForest(5, 4, 42)
	require.NoError(t, forest.Fit(X, y))

	scores, ok := ModelImportance(forest, []string{"a", "b"})
	require.True(t, ok)
	assert.Equal(t, "a", scores[0].Feature)

	lr := NewLinearRegression()
	require.NoError(t, lr.Fit(X, y))
	_, isReporter := Regressor(lr).(ImportanceReporter)
	assert.False(t, isReporter, "linear coefficients are not reported as importances")
	_, ok = ModelImportance(lr, []string{"a", "b"})
	assert.False(t, ok)

	_, ok = ModelImportance(forest, []string{"a"})
	assert.False(t, ok)
}

func TestTopFeatures_StableAndBounded(t *testing.T) {
	scores := []FeatureScore{{"a", 0.1}, {"b", 0.3}, {"c", 0.3}, {"d", 0.05}}
	top := TopFeatures(scores, 3)
	assert.Equal(t, []FeatureScore{{"b", 0.3}, {"c", 0.3}, {"a", 0.1}}, top)
	assert.Len(t, TopFeatures(scores, 10), 4)
	assert.Equal(t, "a", scores[0].Feature, "input must not be reordered")
}

func TestFeatureScoresSaveLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "reports", "importance.json")
	scores := []FeatureScore{{"is_airtel", 0.4}, {"latitude", 0.2}}
	require.NoError(t, SaveFeatureScores(path, scores))
	loaded, err := LoadFeatureScores(path)
	require.NoError(t, err)
	assert.Equal(t, scores, loaded)
}
