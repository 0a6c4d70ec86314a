package ml

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"callquality/internal/features"
)

func trainedTestBundle(t *testing.T) *Bundle {
	t.Helper()
	b := testBundle(nil)
	schema := b.Schema()

	records := []features.CallRecord{
		features.NewCallRecord("Airtel", "4G", "Indoor", "Satisfactory", 12.97, 77.59, "Karnataka", "March"),
		features.NewCallRecord("RJio", "4G", "Outdoor", "Call Dropped", 19.07, 72.87, "Maharashtra", "April"),
		features.NewCallRecord("VI", "3G", "Travelling", "Poor Voice Quality", 30.3, 78.0, "Uttarakhand", "May"),
		features.NewCallRecord("BSNL", "2G", "Indoor", "Satisfactory", 10.0, 76.3, "Kerala", "June"),
		features.NewCallRecord("Airtel", "Unknown", "Outdoor", "Call Dropped", 26.9, 75.8, "Rajasthan", "July"),
		features.NewCallRecord("RJio", "4G", "Indoor", "Satisfactory", 25.6, 85.1, "Bihar", "August"),
	}
	ratings := []float64{5, 1, 2, 4, 1, 5}

	X := features.EncodeAll(records, schema)
	tree := NewRegressionTree(0)
	require.NoError(t, tree.Fit(X, ratings))

	baseline, err := BaselineFromMatrix(X, schema.Names())
	require.NoError(t, err)

	b.Model = tree
	b.ModelName = tree.Name()
	b.Baseline = baseline
	b.TrainedAt = time.Date(2023, 11, 1, 0, 0, 0, 0, time.UTC)
	b.TrainingRows = len(records)
	b.FeatureImportance = TopFeatures(mustImportance(t, tree, schema.Names()), 10)
	return b
}

func mustImportance(t *testing.T, m Regressor, names []string) []FeatureScore {
	t.Helper()
	scores, ok := ModelImportance(m, names)
	require.True(t, ok)
	return scores
}

func TestBundleRoundTrip(t *testing.T) {
	b := trainedTestBundle(t)
	path := filepath.Join(t.TempDir(), "models", "bundle.json")

	require.NoError(t, SaveBundle(path, b))
	assert.Equal(t, TypeRegressionTree, b.ModelType)

	loaded, err := LoadBundle(path)
	require.NoError(t, err)
	assert.Equal(t, b.FeatureColumns, loaded.FeatureColumns)
	assert.Equal(t, b.TopStates, loaded.TopStates)
	assert.Equal(t, b.Metrics, loaded.Metrics)
	assert.Equal(t, b.ModelName, loaded.ModelName)
	assert.True(t, b.TrainedAt.Equal(loaded.TrainedAt))
	assert.Len(t, loaded.FeatureImportance, 10)

	saved, err := NewService(b)
	require.NoError(t, err)
	restored, err := NewService(loaded)
	require.NoError(t, err)

	r := karnatakaRecord()
	want, err := saved.Predict(context.Background(), r)
	require.NoError(t, err)
	got, err := restored.Predict(context.Background(), r)
	require.NoError(t, err)
	assert.Equal(t, want.Rating, got.Rating)
	assert.NotNil(t, restored.Skew())
}

func TestSaveBundle_LeavesNoTempFiles(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "bundle.json")
	require.NoError(t, SaveBundle(path, trainedTestBundle(t)))
	require.NoError(t, SaveBundle(path, trainedTestBundle(t)))

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "bundle.json", entries[0].Name())
}

func TestSaveBundle_RequiresModel(t *testing.T) {
	assert.Error(t, SaveBundle(filepath.Join(t.TempDir(), "b.json"), testBundle(nil)))
	assert.Error(t, SaveBundle(filepath.Join(t.TempDir(), "b.json"), nil))
}

func TestLoadBundle_ConfigurationErrors(t *testing.T) {
	dir := t.TempDir()

	corrupt := filepath.Join(dir, "corrupt.json")
	require.NoError(t, os.WriteFile(corrupt, []byte("{not json"), 0o600))

	unknownModel := filepath.Join(dir, "unknown.json")
	require.NoError(t, os.WriteFile(unknownModel, []byte(`{"model":{"type":"svm","payload":{}},"feature_columns":["latitude"]}`), 0o600))

	mismatch := filepath.Join(dir, "mismatch.json")
	b := trainedTestBundle(t)
	require.NoError(t, SaveBundle(mismatch, b))
	var raw map[string]any
	data, err := os.ReadFile(mismatch)
	require.NoError(t, err)
	require.NoError(t, json.Unmarshal(data, &raw))
	raw["top_states"] = []string{"Goa"}
	data, err = json.Marshal(raw)
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(mismatch, data, 0o600))

	for name, path := range map[string]string{
		"missing":  filepath.Join(dir, "missing.json"),
		"corrupt":  corrupt,
		"unknown":  unknownModel,
		"mismatch": mismatch,
	} {
		t.Run(name, func(t *testing.T) {
			_, err := LoadBundle(path)
			var cerr *ConfigurationError
			require.True(t, errors.As(err, &cerr), "expected ConfigurationError, got %v", err)
			assert.Equal(t, path, cerr.Path)
		})
	}
}

func TestLoadBundle_RejectsModelWidthMismatch(t *testing.T) {
	wide := trainedTestBundle(t)
	require.Greater(t, len(wide.FeatureColumns), 17)

	// Same model, but a bundle whose schema has no state slots.
	narrow := &Bundle{
		ModelName:      wide.ModelName,
		Model:          wide.Model,
		FeatureColumns: features.NewSchema(nil).Names(),
		Metrics:        wide.Metrics,
	}
	require.Len(t, narrow.FeatureColumns, 17)

	path := filepath.Join(t.TempDir(), "narrow.json")
	require.NoError(t, SaveBundle(path, narrow))

	_, err := LoadBundle(path)
	var cerr *ConfigurationError
	require.True(t, errors.As(err, &cerr), "expected ConfigurationError, got %v", err)
	assert.Contains(t, cerr.Error(),
		fmt.Sprintf("model expects %d features, bundle schema has 17", len(wide.FeatureColumns)))
}

func TestLoadBundle_RejectsCorruptTreeNodes(t *testing.T) {
	b := trainedTestBundle(t)
	tree := b.Model.(*RegressionTree)
	require.False(t, tree.Nodes[0].Leaf)
	tree.Nodes[0].Feature = 99

	assert.Error(t, tree.Verify())
	assert.NotPanics(t, func() {
		_, err := tree.Predict(make(features.Vector, tree.NFeatures))
		assert.Error(t, err)
	})

	path := filepath.Join(t.TempDir(), "corrupt-tree.json")
	require.NoError(t, SaveBundle(path, b))
	_, err := LoadBundle(path)
	var cerr *ConfigurationError
	require.True(t, errors.As(err, &cerr), "expected ConfigurationError, got %v", err)

	tree.Nodes[0].Feature = 0
	tree.Nodes[0].Left = 0
	tree.Nodes[0].Right = 0
	assert.Error(t, tree.Verify())
	assert.NotPanics(t, func() {
		_, err := tree.Predict(make(features.Vector, tree.NFeatures))
		assert.Error(t, err)
	})
}

func TestVerifyModel(t *testing.T) {
	assert.NoError(t, VerifyModel(&constantModel{value: 3}, 18))

	lr := &LinearRegression{Coef: []float64{1, 2}, Intercept: 0.5}
	assert.NoError(t, VerifyModel(lr, 2))
	assert.Error(t, VerifyModel(lr, 3))
	assert.Error(t, VerifyModel(&LinearRegression{}, 0))

	tree := &RegressionTree{NFeatures: 2, Nodes: []TreeNode{
		{Feature: 1, Threshold: 0.5, Left: 1, Right: 2},
		{Leaf: true, Value: 1},
		{Leaf: true, Value: 5},
	}}
	assert.NoError(t, VerifyModel(tree, 2))

	other := &RegressionTree{NFeatures: 3, Nodes: []TreeNode{{Leaf: true, Value: 2}}}
	assert.NoError(t, VerifyModel(&RandomForest{Trees: []*RegressionTree{tree}}, 2))
	assert.Error(t, VerifyModel(&RandomForest{Trees: []*RegressionTree{tree, other}}, 2))
	assert.Error(t, VerifyModel(&GradientBoosting{}, 2))
}
