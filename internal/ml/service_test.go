package ml

import (
	"context"
	"errors"
	"math"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"callquality/internal/features"
)

func karnatakaRecord() features.CallRecord {
	return features.NewCallRecord("Airtel", "4G", "Indoor", "Satisfactory", 12.97, 77.59, "Karnataka", "March")
}

func TestClampRating(t *testing.T) {
	tests := []struct {
		raw  float64
		want float64
	}{
		{6.3, 5.0},
		{0.4, 1.0},
		{3.456, 3.46},
		{3.454, 3.45},
		{1.0, 1.0},
		{5.0, 5.0},
		{-100, 1.0},
		{math.Inf(1), 5.0},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, ClampRating(tt.raw), "raw %v", tt.raw)
	}
}

func TestServicePredict_ClampsModelOutput(t *testing.T) {
	for raw, want := range map[float64]float64{6.3: 5.0, 0.4: 1.0, 4.127: 4.13} {
		svc, err := NewService(testBundle(&constantModel{value: raw}))
		require.NoError(t, err)

		res, err := svc.Predict(context.Background(), karnatakaRecord())
		require.NoError(t, err)
		assert.Equal(t, want, res.Rating)
		assert.Equal(t, raw, res.Raw)
		assert.True(t, res.StateMatched)
	}
}

func TestServicePredict_OutputAlwaysInRange(t *testing.T) {
	raws := []float64{-1e9, -3, 0, 0.99, 1, 2.5, 5, 5.01, 17, 1e9}
	for _, raw := range raws {
		svc, err := NewService(testBundle(&constantModel{value: raw}))
		require.NoError(t, err)
		res, err := svc.Predict(context.Background(), karnatakaRecord())
		require.NoError(t, err)
		assert.GreaterOrEqual(t, res.Rating, MinRating)
		assert.LessOrEqual(t, res.Rating, MaxRating)
	}
}

func TestServicePredict_ModelUnavailable(t *testing.T) {
	metrics := &MockMetrics{}
	loadErr := &ConfigurationError{Path: "missing.json", Err: errors.New("no such file")}
	svc := NewUnavailableService(loadErr, WithMetrics(metrics))

	assert.False(t, svc.Healthy())
	assert.Equal(t, loadErr, svc.LoadError())

	_, err := svc.Predict(context.Background(), karnatakaRecord())
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrModelUnavailable))

	var verr *ValidationError
	assert.False(t, errors.As(err, &verr), "unavailable must be distinct from validation failures")

	// even malformed input reports the missing model first
	_, err = svc.Predict(context.Background(), features.CallRecord{Latitude: 500})
	assert.True(t, errors.Is(err, ErrModelUnavailable))

	assert.Equal(t, 2, metrics.unavailable)
	assert.False(t, metrics.modelLoaded)

	health := svc.Health()
	assert.False(t, health.Healthy)
	assert.False(t, health.ModelLoaded)
	assert.Contains(t, health.LastError, "no such file")
}

func TestServicePredict_ValidationErrors(t *testing.T) {
	metrics := &MockMetrics{}
	model := &constantModel{value: 3}
	svc, err := NewService(testBundle(model), WithMetrics(metrics))
	require.NoError(t, err)

	tests := []struct {
		name  string
		lat   float64
		lon   float64
		field string
	}{
		{"latitude too high", 90.5, 77, "latitude"},
		{"latitude too low", -91, 77, "latitude"},
		{"longitude too high", 12, 180.01, "longitude"},
		{"longitude too low", 12, -200, "longitude"},
		{"latitude NaN", math.NaN(), 77, "latitude"},
		{"longitude infinite", 12, math.Inf(-1), "longitude"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := features.NewCallRecord("Airtel", "4G", "Indoor", "Satisfactory", tt.lat, tt.lon, "Kerala", "May")
			_, err := svc.Predict(context.Background(), r)
			var verr *ValidationError
			require.True(t, errors.As(err, &verr), "expected ValidationError, got %v", err)
			assert.Equal(t, tt.field, verr.Field)
			assert.False(t, errors.Is(err, ErrModelUnavailable))
		})
	}
	assert.Equal(t, len(tests), metrics.validationErrors)
	assert.Equal(t, 0, model.callCount(), "model must not run on invalid input")
}

func TestServicePredict_UnknownCategoriesAreNotErrors(t *testing.T) {
	metrics := &MockMetrics{}
	svc, err := NewService(testBundle(&constantModel{value: 3.2}), WithMetrics(metrics))
	require.NoError(t, err)

	r := features.NewCallRecord("Jio", "5G", "Underground", "Noise", 0, 0, "Atlantis", "Smarch")
	res, err := svc.Predict(context.Background(), r)
	require.NoError(t, err)
	assert.Equal(t, 3.2, res.Rating)
	assert.False(t, res.StateMatched)
	assert.Equal(t, 1, metrics.unknownStates)
}

func TestServicePredict_PredictionError(t *testing.T) {
	metrics := &MockMetrics{}
	svc, err := NewService(testBundle(failingModel{}), WithMetrics(metrics))
	require.NoError(t, err)

	_, err = svc.Predict(context.Background(), karnatakaRecord())
	var perr *PredictionError
	require.True(t, errors.As(err, &perr))
	assert.Contains(t, perr.Error(), "model exploded")
	assert.Equal(t, 1, metrics.failures)
	assert.True(t, svc.Healthy(), "a failing prediction does not make the service unhealthy")

	nan, err := NewService(testBundle(&constantModel{value: math.NaN()}))
	require.NoError(t, err)
	_, err = nan.Predict(context.Background(), karnatakaRecord())
	assert.True(t, errors.As(err, &perr))
}

func TestServicePredict_CanceledContext(t *testing.T) {
	svc, err := NewService(testBundle(&constantModel{value: 3}))
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = svc.Predict(ctx, karnatakaRecord())
	assert.ErrorIs(t, err, context.Canceled)
}

func TestServicePredict_Cache(t *testing.T) {
	metrics := &MockMetrics{}
	model := &constantModel{value: 3.3}
	svc, err := NewService(testBundle(model), WithMetrics(metrics), WithCache(16, time.Minute))
	require.NoError(t, err)

	first, err := svc.Predict(context.Background(), karnatakaRecord())
	require.NoError(t, err)
	second, err := svc.Predict(context.Background(), karnatakaRecord())
	require.NoError(t, err)

	assert.False(t, first.CacheHit)
	assert.True(t, second.CacheHit)
	assert.Equal(t, first.Rating, second.Rating)
	assert.Equal(t, 1, model.callCount())
	assert.Equal(t, 1, metrics.cacheHits)
	assert.Equal(t, 1, metrics.cacheMisses)

	// state name case differs but encodes identically
	r := karnatakaRecord()
	r.StateName = "KARNATAKA"
	third, err := svc.Predict(context.Background(), r)
	require.NoError(t, err)
	assert.True(t, third.CacheHit)

	health := svc.Health()
	assert.InDelta(t, 2.0/3.0, health.CacheHitRate, 1e-9)
	assert.Equal(t, int64(3), health.PredictionCount)
}

func TestServicePredict_CacheDisabled(t *testing.T) {
	model := &constantModel{value: 3.3}
	svc, err := NewService(testBundle(model), WithCache(0, time.Minute))
	require.NoError(t, err)
	for i := 0; i < 3; i++ {
		res, err := svc.Predict(context.Background(), karnatakaRecord())
		require.NoError(t, err)
		assert.False(t, res.CacheHit)
	}
	assert.Equal(t, 3, model.callCount())
}

func TestServicePredictBatch(t *testing.T) {
	svc, err := NewService(testBundle(&constantModel{value: 2.718}))
	require.NoError(t, err)

	records := []features.CallRecord{
		karnatakaRecord(),
		features.NewCallRecord("VI", "3G", "Outdoor", "Call Dropped", 25.6, 85.1, "Bihar", "June"),
	}
	results, err := svc.PredictBatch(context.Background(), records)
	require.NoError(t, err)
	require.Len(t, results, 2)
	for _, res := range results {
		assert.Equal(t, 2.72, res.Rating)
	}

	records = append(records, features.NewCallRecord("VI", "3G", "Outdoor", "Call Dropped", 99, 85.1, "Bihar", "June"))
	_, err = svc.PredictBatch(context.Background(), records)
	var verr *ValidationError
	assert.True(t, errors.As(err, &verr))
	assert.Contains(t, err.Error(), "record 2")
}

func TestServicePredict_Concurrent(t *testing.T) {
	svc, err := NewService(testBundle(&constantModel{value: 4.5}), WithCache(8, time.Minute))
	require.NoError(t, err)

	var wg sync.WaitGroup
	for i := 0; i < 32; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			res, err := svc.Predict(context.Background(), karnatakaRecord())
			assert.NoError(t, err)
			assert.Equal(t, 4.5, res.Rating)
		}()
	}
	wg.Wait()
}

func TestNewService_RejectsInconsistentBundle(t *testing.T) {
	_, err := NewService(nil)
	assert.Error(t, err)

	b := testBundle(&constantModel{value: 3})
	b.FeatureColumns = b.FeatureColumns[:17]
	_, err = NewService(b)
	assert.Error(t, err)
}

func TestNewService_SetsModelGauges(t *testing.T) {
	metrics := &MockMetrics{}
	b := testBundle(&constantModel{value: 3})
	b.TrainedAt = time.Now().Add(-time.Hour)
	_, err := NewService(b, WithMetrics(metrics))
	require.NoError(t, err)
	assert.True(t, metrics.modelLoaded)
	assert.Equal(t, 0.5, metrics.modelR2)
	assert.GreaterOrEqual(t, metrics.modelAge, 3600.0)
}

func TestNewService_RejectsModelWidthMismatch(t *testing.T) {
	b := testBundle(&LinearRegression{Coef: make([]float64, 17)})
	require.Greater(t, len(b.FeatureColumns), 17)
	_, err := NewService(b)
	assert.ErrorContains(t, err, "model expects 17 features")

	b.Model = &LinearRegression{Coef: make([]float64, len(b.FeatureColumns))}
	_, err = NewService(b)
	assert.NoError(t, err)
}
