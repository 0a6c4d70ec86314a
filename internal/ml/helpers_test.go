package ml

import (
	"errors"
	"sync"

	"callquality/internal/features"
)

// constantModel always predicts the same raw value.
type constantModel struct {
	value float64
	calls int
	mu    sync.Mutex
}

func (c *constantModel) Predict(features.Vector) (float64, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.calls++
	return c.value, nil
}

func (c *constantModel) callCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.calls
}

// failingModel always returns an error.
type failingModel struct{}

func (failingModel) Predict(features.Vector) (float64, error) {
	return 0, errors.New("model exploded")
}

// testTopStates is the state allowlist shared by ml tests.
var testTopStates = []string{
	"Karnataka", "Maharashtra", "Uttarakhand", "Kerala", "Rajasthan",
	"Bihar", "West Bengal", "Madhya Pradesh", "Uttar Pradesh", "Jharkhand",
}

func testBundle(m Regressor) *Bundle {
	schema := features.NewSchema(testTopStates)
	return &Bundle{
		ModelName:      "Test Model",
		Model:          m,
		FeatureColumns: schema.Names(),
		TopStates:      schema.TopStates(),
		Metrics:        PerformanceMetrics{R2: 0.5, RMSE: 0.9, MAE: 0.22},
	}
}
