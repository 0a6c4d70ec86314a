package ml

import (
	"fmt"
	"math"
	"sync"
	"time"

	"github.com/montanaflynn/stats"

	"callquality/internal/features"
)

// SlotStats is the training-time distribution of one feature slot.
type SlotStats struct {
	Name string  `json:"name"`
	Mean float64 `json:"mean"`
	Std  float64 `json:"std"`
}

// BaselineFromMatrix summarizes every column of X for skew monitoring.
func BaselineFromMatrix(X [][]float64, names []string) ([]SlotStats, error) {
	if len(X) == 0 {
		return nil, fmt.Errorf("empty training matrix")
	}
	if len(X[0]) != len(names) {
		return nil, fmt.Errorf("expected %d slot names, got %d", len(X[0]), len(names))
	}
	out := make([]SlotStats, len(names))
	column := make([]float64, len(X))
	for f, name := range names {
		for i := range X {
			column[i] = X[i][f]
		}
		mean, err := stats.Mean(column)
		if err != nil {
			return nil, err
		}
		std, err := stats.StandardDeviationPopulation(column)
		if err != nil {
			return nil, err
		}
		out[f] = SlotStats{Name: name, Mean: mean, Std: std}
	}
	return out, nil
}

// SkewConfig configures a SkewMonitor.
type SkewConfig struct {
	// IndicatorThreshold is the absolute mean shift that flags a 0/1 slot.
	IndicatorThreshold float64 `yaml:"indicator_threshold"`
	// NumericThreshold is the mean shift, in training standard deviations,
	// that flags a numeric slot.
	NumericThreshold float64 `yaml:"numeric_threshold"`
	// MinSamples is the number of served vectors required before reporting.
	MinSamples int64 `yaml:"min_samples"`
}

// DefaultSkewConfig returns the thresholds used by the service.
func DefaultSkewConfig() SkewConfig {
	return SkewConfig{IndicatorThreshold: 0.25, NumericThreshold: 1.0, MinSamples: 30}
}

// SlotSkew is the comparison of one slot between training and serving.
type SlotSkew struct {
	Name         string  `json:"name"`
	TrainingMean float64 `json:"training_mean"`
	ServingMean  float64 `json:"serving_mean"`
	Shift        float64 `json:"shift"`
	Threshold    float64 `json:"threshold"`
	Indicator    bool    `json:"indicator"`
}

// SkewReport lists slots whose serving distribution moved away from training.
type SkewReport struct {
	Timestamp time.Time  `json:"timestamp"`
	Samples   int64      `json:"samples"`
	Ready     bool       `json:"ready"`
	Skewed    []SlotSkew `json:"skewed"`
}

// SkewMonitor compares per-slot means of served vectors against the training
// baseline. It is safe for concurrent use.
type SkewMonitor struct {
	mu       sync.Mutex
	config   SkewConfig
	schema   features.Schema
	baseline []SlotStats
	sums     []float64
	count    int64
}

// NewSkewMonitor returns a monitor for baseline, which must follow schema order.
func NewSkewMonitor(schema features.Schema, baseline []SlotStats, config SkewConfig) (*SkewMonitor, error) {
	if len(baseline) != schema.Len() {
		return nil, fmt.Errorf("baseline has %d slots, schema has %d", len(baseline), schema.Len())
	}
	names := schema.Names()
	for i, b := range baseline {
		if b.Name != names[i] {
			return nil, fmt.Errorf("baseline slot %d is %q, schema slot is %q", i, b.Name, names[i])
		}
	}
	def := DefaultSkewConfig()
	if config.IndicatorThreshold <= 0 {
		config.IndicatorThreshold = def.IndicatorThreshold
	}
	if config.NumericThreshold <= 0 {
		config.NumericThreshold = def.NumericThreshold
	}
	if config.MinSamples <= 0 {
		config.MinSamples = def.MinSamples
	}
	return &SkewMonitor{
		config:   config,
		schema:   schema,
		baseline: baseline,
		sums:     make([]float64, len(baseline)),
	}, nil
}

// Observe records one served vector.
func (m *SkewMonitor) Observe(v features.Vector) {
	if len(v) != len(m.sums) {
		return
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	for i, x := range v {
		m.sums[i] += x
	}
	m.count++
}

// Report compares the serving means collected so far with the baseline.
func (m *SkewMonitor) Report() SkewReport {
	m.mu.Lock()
	defer m.mu.Unlock()

	report := SkewReport{Timestamp: time.Now(), Samples: m.count, Skewed: []SlotSkew{}}
	if m.count < m.config.MinSamples {
		return report
	}
	report.Ready = true

	for i, b := range m.baseline {
		mean := m.sums[i] / float64(m.count)
		diff := math.Abs(mean - b.Mean)
		indicator := m.schema.IsIndicator(i)

		threshold := m.config.IndicatorThreshold
		shift := diff
		if !indicator {
			threshold = m.config.NumericThreshold
			if b.Std > 0 {
				shift = diff / b.Std
			}
		}
		if shift > threshold {
			report.Skewed = append(report.Skewed, SlotSkew{
				Name:         b.Name,
				TrainingMean: b.Mean,
				ServingMean:  mean,
				Shift:        shift,
				Threshold:    threshold,
				Indicator:    indicator,
			})
		}
	}
	return report
}

// Reset clears the serving-side accumulators.
func (m *SkewMonitor) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i := range m.sums {
		m.sums[i] = 0
	}
	m.count = 0
}
