package ml

import (
	"context"
	"encoding/binary"
	"encoding/hex"
	"errors"
	"fmt"
	"math"
	"sync/atomic"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
	"github.com/rs/zerolog/log"

	"callquality/internal/features"
)

// Rating bounds applied to every prediction.
const (
	MinRating = 1.0
	MaxRating = 5.0
)

// MetricsInterface defines the metrics the prediction service reports.
type MetricsInterface interface {
	PredictionsInc()
	PredictionFailuresInc()
	ValidationErrorsInc()
	ModelUnavailableInc()
	UnknownStateInc()
	CacheHitInc()
	CacheMissInc()
	PredictionLatencyObserve(float64)
	PredictedRatingObserve(float64)
	ModelLoadedSet(bool)
	ModelAgeSet(float64)
	ModelR2Set(float64)
}

type noopMetrics struct{}

func (noopMetrics) PredictionsInc()                  {}
func (noopMetrics) PredictionFailuresInc()           {}
func (noopMetrics) ValidationErrorsInc()             {}
func (noopMetrics) ModelUnavailableInc()             {}
func (noopMetrics) UnknownStateInc()                 {}
func (noopMetrics) CacheHitInc()                     {}
func (noopMetrics) CacheMissInc()                    {}
func (noopMetrics) PredictionLatencyObserve(float64) {}
func (noopMetrics) PredictedRatingObserve(float64)   {}
func (noopMetrics) ModelLoadedSet(bool)              {}
func (noopMetrics) ModelAgeSet(float64)              {}
func (noopMetrics) ModelR2Set(float64)               {}

// Result is the outcome of one prediction.
type Result struct {
	Rating       float64 `json:"rating"`
	Raw          float64 `json:"raw"`
	StateMatched bool    `json:"state_matched"`
	CacheHit     bool    `json:"cache_hit"`
}

// HealthStatus summarizes the service state for health endpoints.
type HealthStatus struct {
	Healthy         bool    `json:"healthy"`
	ModelLoaded     bool    `json:"model_loaded"`
	ModelVersion    string  `json:"model_version,omitempty"`
	PredictionCount int64   `json:"prediction_count"`
	ErrorRate       float64 `json:"error_rate"`
	CacheHitRate    float64 `json:"cache_hit_rate"`
	LastError       string  `json:"last_error,omitempty"`
	UptimeSeconds   float64 `json:"uptime_seconds"`
}

// Option configures a Service.
type Option func(*Service)

// WithMetrics sets the metrics sink.
func WithMetrics(m MetricsInterface) Option {
	return func(s *Service) {
		if m != nil {
			s.metrics = m
		}
	}
}

// WithCache enables an expiring LRU of raw model outputs keyed by feature
// vector. size <= 0 disables caching.
func WithCache(size int, ttl time.Duration) Option {
	return func(s *Service) {
		if size <= 0 {
			s.cache = nil
			return
		}
		s.cache = expirable.NewLRU[string, float64](size, nil, ttl)
	}
}

// WithSkewConfig overrides the thresholds of the skew monitor.
func WithSkewConfig(c SkewConfig) Option {
	return func(s *Service) { s.skewConfig = c }
}

// Service runs encode, predict, clamp and round against one frozen model.
// The model and schema never change after construction.
type Service struct {
	bundle     *Bundle
	model      Regressor
	schema     features.Schema
	loadErr    error
	metrics    MetricsInterface
	cache      *expirable.LRU[string, float64]
	skew       *SkewMonitor
	skewConfig SkewConfig
	started    time.Time

	predictions atomic.Int64
	failures    atomic.Int64
	cacheHits   atomic.Int64
	cacheMisses atomic.Int64
	lastError   atomic.Value // string
}

// NewService builds a healthy service around a loaded bundle.
func NewService(b *Bundle, opts ...Option) (*Service, error) {
	if b == nil || b.Model == nil {
		return nil, errors.New("bundle has no model")
	}
	schema := b.Schema()
	if !schema.Matches(b.FeatureColumns) {
		return nil, errors.New("bundle feature columns do not match its schema")
	}
	if err := VerifyModel(b.Model, len(b.FeatureColumns)); err != nil {
		return nil, fmt.Errorf("bundle model: %w", err)
	}

	s := &Service{
		bundle:     b,
		model:      b.Model,
		schema:     schema,
		metrics:    noopMetrics{},
		skewConfig: DefaultSkewConfig(),
		started:    time.Now(),
	}
	for _, opt := range opts {
		opt(s)
	}

	if len(b.Baseline) > 0 {
		skew, err := NewSkewMonitor(schema, b.Baseline, s.skewConfig)
		if err != nil {
			log.Warn().Err(err).Msg("skew monitoring disabled")
		} else {
			s.skew = skew
		}
	}

	s.metrics.ModelLoadedSet(true)
	s.metrics.ModelR2Set(b.Metrics.R2)
	if !b.TrainedAt.IsZero() {
		s.metrics.ModelAgeSet(time.Since(b.TrainedAt).Seconds())
	}
	return s, nil
}

// NewUnavailableService builds a service whose model failed to load. Every
// prediction fails with ErrModelUnavailable and health reports unhealthy.
func NewUnavailableService(loadErr error, opts ...Option) *Service {
	if loadErr == nil {
		loadErr = ErrModelUnavailable
	}
	s := &Service{loadErr: loadErr, metrics: noopMetrics{}, started: time.Now()}
	for _, opt := range opts {
		opt(s)
	}
	s.cache = nil
	s.metrics.ModelLoadedSet(false)
	s.lastError.Store(loadErr.Error())
	return s
}

// Healthy reports whether a model is loaded.
func (s *Service) Healthy() bool { return s.model != nil }

// LoadError returns the error recorded when the model failed to load.
func (s *Service) LoadError() error { return s.loadErr }

// Schema returns the frozen feature schema.
func (s *Service) Schema() features.Schema { return s.schema }

// Bundle returns the loaded bundle, or nil.
func (s *Service) Bundle() *Bundle { return s.bundle }

// Skew returns the skew monitor, or nil when the bundle carries no baseline.
func (s *Service) Skew() *SkewMonitor { return s.skew }

// Predict encodes r, runs the model and returns the clamped rating.
func (s *Service) Predict(ctx context.Context, r features.CallRecord) (Result, error) {
	if s.model == nil {
		s.metrics.ModelUnavailableInc()
		return Result{}, ErrModelUnavailable
	}
	if err := ctx.Err(); err != nil {
		return Result{}, err
	}
	if err := ValidateRecord(r); err != nil {
		s.metrics.ValidationErrorsInc()
		return Result{}, err
	}

	start := time.Now()
	v := features.Encode(r, s.schema)

	matched := s.schema.HasState(r.StateName)
	if !matched {
		log.Debug().Str("state", r.StateName).Msg("state outside trained top states, no state indicator set")
		s.metrics.UnknownStateInc()
	}
	if s.skew != nil {
		s.skew.Observe(v)
	}

	raw, hit, err := s.predictRaw(v)
	if err != nil {
		s.failures.Add(1)
		s.lastError.Store(err.Error())
		s.metrics.PredictionFailuresInc()
		return Result{}, err
	}

	rating := ClampRating(raw)
	s.predictions.Add(1)
	s.metrics.PredictionsInc()
	s.metrics.PredictionLatencyObserve(time.Since(start).Seconds())
	s.metrics.PredictedRatingObserve(rating)

	return Result{Rating: rating, Raw: raw, StateMatched: matched, CacheHit: hit}, nil
}

// PredictBatch predicts every record, stopping at the first failure.
func (s *Service) PredictBatch(ctx context.Context, records []features.CallRecord) ([]Result, error) {
	out := make([]Result, 0, len(records))
	for i, r := range records {
		res, err := s.Predict(ctx, r)
		if err != nil {
			return nil, fmt.Errorf("record %d: %w", i, err)
		}
		out = append(out, res)
	}
	return out, nil
}

func (s *Service) predictRaw(v features.Vector) (float64, bool, error) {
	var key string
	if s.cache != nil {
		key = vectorKey(v)
		if raw, ok := s.cache.Get(key); ok {
			s.cacheHits.Add(1)
			s.metrics.CacheHitInc()
			return raw, true, nil
		}
		s.cacheMisses.Add(1)
		s.metrics.CacheMissInc()
	}

	raw, err := s.model.Predict(v)
	if err != nil {
		return 0, false, &PredictionError{Err: err}
	}
	if math.IsNaN(raw) || math.IsInf(raw, 0) {
		return 0, false, &PredictionError{Err: fmt.Errorf("model returned non-finite value %v", raw)}
	}

	if s.cache != nil {
		s.cache.Add(key, raw)
	}
	return raw, false, nil
}

// Health returns a snapshot of the service state.
func (s *Service) Health() HealthStatus {
	predictions := s.predictions.Load()
	failures := s.failures.Load()
	hits := s.cacheHits.Load()
	misses := s.cacheMisses.Load()

	status := HealthStatus{
		Healthy:         s.Healthy(),
		ModelLoaded:     s.model != nil,
		PredictionCount: predictions,
		UptimeSeconds:   time.Since(s.started).Seconds(),
	}
	if s.bundle != nil {
		status.ModelVersion = s.bundle.Version
	}
	if total := predictions + failures; total > 0 {
		status.ErrorRate = float64(failures) / float64(total)
	}
	if total := hits + misses; total > 0 {
		status.CacheHitRate = float64(hits) / float64(total)
	}
	if msg, ok := s.lastError.Load().(string); ok {
		status.LastError = msg
	}
	return status
}

// ClampRating forces raw into [MinRating, MaxRating] and rounds to 2 decimals.
func ClampRating(raw float64) float64 {
	v := math.Max(MinRating, math.Min(MaxRating, raw))
	return math.Round(v*100) / 100
}

// ValidateRecord rejects coordinates outside their domain. Unrecognized
// categorical values are not errors; they encode as neutral indicators.
func ValidateRecord(r features.CallRecord) error {
	if math.IsNaN(r.Latitude) || math.IsInf(r.Latitude, 0) || r.Latitude < -90 || r.Latitude > 90 {
		return &ValidationError{Field: "latitude", Reason: fmt.Sprintf("%v is outside [-90, 90]", r.Latitude)}
	}
	if math.IsNaN(r.Longitude) || math.IsInf(r.Longitude, 0) || r.Longitude < -180 || r.Longitude > 180 {
		return &ValidationError{Field: "longitude", Reason: fmt.Sprintf("%v is outside [-180, 180]", r.Longitude)}
	}
	return nil
}

func vectorKey(v features.Vector) string {
	buf := make([]byte, 8*len(v))
	for i, x := range v {
		binary.LittleEndian.PutUint64(buf[i*8:], math.Float64bits(x))
	}
	return hex.EncodeToString(buf)
}
