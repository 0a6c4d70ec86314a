// Package ml trains, persists and serves the call-quality regressors.
//
// It holds the model implementations (regression tree, random forest,
// gradient boosting, linear regression), the persisted bundle that pairs a
// model with its frozen feature schema, and the prediction service that runs
// encode, predict and clamp for both batch checks and live requests.
package ml

import (
	"encoding/json"
	"errors"
	"fmt"

	"callquality/internal/features"
)

// Regressor is a trained model. Implementations must be safe for concurrent
// Predict calls once trained.
type Regressor interface {
	Predict(v features.Vector) (float64, error)
}

// ImportanceReporter is implemented by models that expose per-feature importances.
type ImportanceReporter interface {
	FeatureImportances() []float64
}

// Verifier is implemented by models that can check their own structure
// after being decoded from disk.
type Verifier interface {
	InputWidth() int
	Verify() error
}

// VerifyModel checks a decoded model against the width of the feature
// schema it will be fed. Models that do not implement Verifier pass.
func VerifyModel(m Regressor, width int) error {
	v, ok := m.(Verifier)
	if !ok {
		return nil
	}
	if err := v.Verify(); err != nil {
		return err
	}
	if got := v.InputWidth(); got != width {
		return fmt.Errorf("model expects %d features, bundle schema has %d", got, width)
	}
	return nil
}

// verifyTrees checks every tree and that they agree on input width.
func verifyTrees(trees []*RegressionTree) error {
	if len(trees) == 0 {
		return errors.New("model has no trees")
	}
	for i, tree := range trees {
		if tree == nil {
			return fmt.Errorf("tree %d is missing", i)
		}
		if err := tree.Verify(); err != nil {
			return fmt.Errorf("tree %d: %w", i, err)
		}
		if tree.NFeatures != trees[0].NFeatures {
			return fmt.Errorf("tree %d expects %d features, tree 0 expects %d", i, tree.NFeatures, trees[0].NFeatures)
		}
	}
	return nil
}

// Trainer is a model that can be fitted on a dense matrix.
type Trainer interface {
	Regressor
	Fit(X [][]float64, y []float64) error
	Name() string
	Type() string
}

// Model type identifiers used in persisted bundles.
const (
	TypeRandomForest     = "random_forest"
	TypeGradientBoosting = "gradient_boosting"
	TypeLinearRegression = "linear_regression"
	TypeRegressionTree   = "regression_tree"
)

// Envelope is the persisted form of a model: a type tag plus its JSON payload.
type Envelope struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload"`
}

// EncodeModel wraps a trained model in an Envelope.
func EncodeModel(m Regressor) (Envelope, error) {
	var typ string
	switch m.(type) {
	case *RandomForest:
		typ = TypeRandomForest
	case *GradientBoosting:
		typ = TypeGradientBoosting
	case *LinearRegression:
		typ = TypeLinearRegression
	case *RegressionTree:
		typ = TypeRegressionTree
	default:
		return Envelope{}, fmt.Errorf("unsupported model type %T", m)
	}
	payload, err := json.Marshal(m)
	if err != nil {
		return Envelope{}, fmt.Errorf("marshal %s: %w", typ, err)
	}
	return Envelope{Type: typ, Payload: payload}, nil
}

// DecodeModel rebuilds a model from its Envelope.
func DecodeModel(env Envelope) (Regressor, error) {
	var m Regressor
	switch env.Type {
	case TypeRandomForest:
		m = &RandomForest{}
	case TypeGradientBoosting:
		m = &GradientBoosting{}
	case TypeLinearRegression:
		m = &LinearRegression{}
	case TypeRegressionTree:
		m = &RegressionTree{}
	default:
		return nil, fmt.Errorf("unsupported model type %q", env.Type)
	}
	if err := json.Unmarshal(env.Payload, m); err != nil {
		return nil, fmt.Errorf("unmarshal %s: %w", env.Type, err)
	}
	return m, nil
}

func validateTrainingSet(X [][]float64, y []float64) (int, error) {
	if len(X) == 0 || len(y) == 0 {
		return 0, fmt.Errorf("features or targets empty")
	}
	if len(X) != len(y) {
		return 0, fmt.Errorf("features and targets size mismatch: %d vs %d", len(X), len(y))
	}
	width := len(X[0])
	if width == 0 {
		return 0, fmt.Errorf("feature rows are empty")
	}
	for i, row := range X {
		if len(row) != width {
			return 0, fmt.Errorf("row %d has %d features, expected %d", i, len(row), width)
		}
	}
	return width, nil
}
