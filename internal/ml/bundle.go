package ml

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"callquality/internal/features"
)

// PerformanceMetrics are the held-out scores of the persisted model.
type PerformanceMetrics struct {
	R2     float64 `json:"r2_score"`
	RMSE   float64 `json:"rmse"`
	MAE    float64 `json:"mae"`
	CVMean float64 `json:"cv_r2_mean"`
	CVStd  float64 `json:"cv_r2_std"`
}

// Bundle pairs a trained model with the frozen schema it was trained on.
type Bundle struct {
	ModelName         string             `json:"model_name"`
	ModelType         string             `json:"model_type"`
	Model             Regressor          `json:"-"`
	FeatureColumns    []string           `json:"feature_columns"`
	TopStates         []string           `json:"top_states"`
	Metrics           PerformanceMetrics `json:"performance_metrics"`
	FeatureImportance []FeatureScore     `json:"feature_importance"`
	Baseline          []SlotStats        `json:"baseline,omitempty"`
	TrainedAt         time.Time          `json:"trained_at"`
	TrainingRows      int                `json:"training_rows"`
	Version           string             `json:"version,omitempty"`
}

// Schema rebuilds the feature schema from the bundle's top states.
func (b *Bundle) Schema() features.Schema {
	return features.NewSchema(b.TopStates)
}

type bundleFile struct {
	Bundle
	Model Envelope `json:"model"`
}

// SaveBundle writes b to path through a temp file and rename, so readers
// never observe a partial bundle.
func SaveBundle(path string, b *Bundle) error {
	if b == nil || b.Model == nil {
		return errors.New("bundle has no model")
	}
	env, err := EncodeModel(b.Model)
	if err != nil {
		return err
	}
	b.ModelType = env.Type

	data, err := json.Marshal(bundleFile{Bundle: *b, Model: env})
	if err != nil {
		return fmt.Errorf("marshal bundle: %w", err)
	}

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create bundle directory: %w", err)
	}
	tmp, err := os.CreateTemp(dir, ".bundle-*.tmp")
	if err != nil {
		return fmt.Errorf("create temp bundle: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("write bundle: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close bundle: %w", err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return fmt.Errorf("rename bundle: %w", err)
	}
	return nil
}

// LoadBundle reads a bundle and checks that its feature columns match the
// schema rebuilt from its top states and the width the model was fitted on. Every failure is a *ConfigurationError.
func LoadBundle(path string) (*Bundle, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, &ConfigurationError{Path: path, Err: err}
	}

	var f bundleFile
	if err := json.Unmarshal(data, &f); err != nil {
		return nil, &ConfigurationError{Path: path, Err: fmt.Errorf("decode bundle: %w", err)}
	}
	model, err := DecodeModel(f.Model)
	if err != nil {
		return nil, &ConfigurationError{Path: path, Err: err}
	}

	b := f.Bundle
	b.Model = model
	b.ModelType = f.Model.Type

	if len(b.FeatureColumns) == 0 {
		return nil, &ConfigurationError{Path: path, Err: errors.New("bundle has no feature columns")}
	}
	if !b.Schema().Matches(b.FeatureColumns) {
		return nil, &ConfigurationError{
			Path: path,
			Err:  errors.New("feature columns do not match the schema rebuilt from top states"),
		}
	}
	if err := VerifyModel(b.Model, len(b.FeatureColumns)); err != nil {
		return nil, &ConfigurationError{Path: path, Err: err}
	}
	return &b, nil
}

// ConfidenceInterval describes the typical error of a prediction.
func (p PerformanceMetrics) ConfidenceInterval() string {
	return fmt.Sprintf("±%.2f rating points", p.MAE)
}

// Accuracy renders held-out R² as a percentage.
func (p PerformanceMetrics) Accuracy() string {
	return fmt.Sprintf("%.1f%%", p.R2*100)
}

// ConfidenceLevel buckets held-out R² into High, Medium or Low.
func (p PerformanceMetrics) ConfidenceLevel() string {
	switch {
	case p.R2 >= 0.8:
		return "High"
	case p.R2 >= 0.5:
		return "Medium"
	default:
		return "Low"
	}
}
