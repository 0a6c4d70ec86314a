package ml

import "sync"

// MockMetrics implements MetricsInterface for testing
type MockMetrics struct {
	mu               sync.Mutex
	predictions      int
	failures         int
	validationErrors int
	unavailable      int
	unknownStates    int
	cacheHits        int
	cacheMisses      int
	latencySum       float64
	ratings          []float64
	modelLoaded      bool
	modelAge         float64
	modelR2          float64
}

func (m *MockMetrics) PredictionsInc() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.predictions++
}

func (m *MockMetrics) PredictionFailuresInc() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.failures++
}

func (m *MockMetrics) ValidationErrorsInc() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.validationErrors++
}

func (m *MockMetrics) ModelUnavailableInc() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.unavailable++
}

func (m *MockMetrics) UnknownStateInc() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.unknownStates++
}

func (m *MockMetrics) CacheHitInc() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.cacheHits++
}

func (m *MockMetrics) CacheMissInc() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.cacheMisses++
}

func (m *MockMetrics) PredictionLatencyObserve(v float64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.latencySum += v
}

func (m *MockMetrics) PredictedRatingObserve(v float64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.ratings = append(m.ratings, v)
}

func (m *MockMetrics) ModelLoadedSet(v bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.modelLoaded = v
}

func (m *MockMetrics) ModelAgeSet(v float64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.modelAge = v
}

func (m *MockMetrics) ModelR2Set(v float64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.modelR2 = v
}
