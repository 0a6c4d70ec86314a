package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestNewWrapper(t *testing.T) {
	registry := prometheus.NewRegistry()
	metrics := NewWithRegistry(registry)
	wrapper := NewWrapper(metrics)

	if wrapper == nil {
		t.Fatal("NewWrapper returned nil")
	}
	if wrapper.m != metrics {
		t.Error("Wrapper does not contain correct metrics instance")
	}
}

func TestServiceWrapper_Counters(t *testing.T) {
	metrics := NewWithRegistry(prometheus.NewRegistry())
	wrapper := NewWrapper(metrics)

	tests := []struct {
		name    string
		inc     func()
		counter prometheus.Counter
	}{
		{"predictions", wrapper.PredictionsInc, metrics.Predictions},
		{"failures", wrapper.PredictionFailuresInc, metrics.PredictionFailures},
		{"validation", wrapper.ValidationErrorsInc, metrics.ValidationErrors},
		{"unavailable", wrapper.ModelUnavailableInc, metrics.ModelUnavailable},
		{"unknown states", wrapper.UnknownStateInc, metrics.UnknownStates},
		{"cache hits", wrapper.CacheHitInc, metrics.CacheHits},
		{"cache misses", wrapper.CacheMissInc, metrics.CacheMisses},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if v := testutil.ToFloat64(tt.counter); v != 0 {
				t.Fatalf("Expected initial counter value 0, got %f", v)
			}
			tt.inc()
			tt.inc()
			if v := testutil.ToFloat64(tt.counter); v != 2 {
				t.Errorf("Expected counter value 2, got %f", v)
			}
		})
	}
}

func TestServiceWrapper_Gauges(t *testing.T) {
	metrics := NewWithRegistry(prometheus.NewRegistry())
	wrapper := NewWrapper(metrics)

	wrapper.ModelLoadedSet(true)
	if v := testutil.ToFloat64(metrics.ModelLoaded); v != 1 {
		t.Errorf("Expected model loaded 1, got %f", v)
	}
	wrapper.ModelLoadedSet(false)
	if v := testutil.ToFloat64(metrics.ModelLoaded); v != 0 {
		t.Errorf("Expected model loaded 0, got %f", v)
	}

	wrapper.ModelAgeSet(3600)
	if v := testutil.ToFloat64(metrics.ModelAge); v != 3600 {
		t.Errorf("Expected model age 3600, got %f", v)
	}

	wrapper.ModelR2Set(0.42)
	if v := testutil.ToFloat64(metrics.ModelR2); v != 0.42 {
		t.Errorf("Expected R² 0.42, got %f", v)
	}
}

func TestServiceWrapper_Histograms(t *testing.T) {
	registry := prometheus.NewRegistry()
	metrics := NewWithRegistry(registry)
	wrapper := NewWrapper(metrics)

	wrapper.PredictionLatencyObserve(0.0004)
	wrapper.PredictedRatingObserve(3.5)
	wrapper.PredictedRatingObserve(4.25)

	if n := testutil.CollectAndCount(metrics.PredictedRatings); n != 1 {
		t.Errorf("Expected 1 rating histogram series, got %d", n)
	}

	families, err := registry.Gather()
	if err != nil {
		t.Fatalf("Gather failed: %v", err)
	}
	for _, mf := range families {
		if mf.GetName() == "callquality_predicted_rating" {
			if c := mf.Metric[0].GetHistogram().GetSampleCount(); c != 2 {
				t.Errorf("Expected 2 rating samples, got %d", c)
			}
			return
		}
	}
	t.Error("rating histogram not registered")
}

func TestObserveRequest(t *testing.T) {
	metrics := NewWithRegistry(prometheus.NewRegistry())

	metrics.ObserveRequest("/predict", "POST", 200, 5*time.Millisecond)
	metrics.ObserveRequest("/predict", "POST", 200, 7*time.Millisecond)
	metrics.ObserveRequest("", "GET", 404, time.Millisecond)

	if v := testutil.ToFloat64(metrics.HTTPRequests.WithLabelValues("/predict", "POST", "200")); v != 2 {
		t.Errorf("Expected 2 predict requests, got %f", v)
	}
	if v := testutil.ToFloat64(metrics.HTTPRequests.WithLabelValues("unmatched", "GET", "404")); v != 1 {
		t.Errorf("Expected 1 unmatched request, got %f", v)
	}
}

func TestNewWithRegistry_Isolated(t *testing.T) {
	// two registries must not collide on metric names
	a := NewWithRegistry(prometheus.NewRegistry())
	b := NewWithRegistry(prometheus.NewRegistry())
	a.Predictions.Inc()
	if v := testutil.ToFloat64(b.Predictions); v != 0 {
		t.Errorf("Expected isolated registries, got %f", v)
	}
}
