// Package metrics provides Prometheus metrics collection for the call-quality
// prediction service. It covers predictions, cache behaviour, model state and
// the HTTP surface, all exposed via the Prometheus metrics endpoint.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds all Prometheus metrics for the service.
type Metrics struct {
	// Prediction metrics
	Predictions        prometheus.Counter   // Total number of successful predictions
	PredictionFailures prometheus.Counter   // Total number of model failures
	ValidationErrors   prometheus.Counter   // Total number of rejected inputs
	ModelUnavailable   prometheus.Counter   // Predictions refused because no model is loaded
	UnknownStates      prometheus.Counter   // Records whose state has no trained slot
	PredictionLatency  prometheus.Histogram // Encode + predict latency in seconds
	PredictedRatings   prometheus.Histogram // Distribution of clamped ratings

	// Cache metrics
	CacheHits   prometheus.Counter
	CacheMisses prometheus.Counter

	// Model metrics
	ModelLoaded prometheus.Gauge // 1 when a model is loaded
	ModelAge    prometheus.Gauge // Seconds since the model was trained
	ModelR2     prometheus.Gauge // Held-out R² of the loaded model

	// HTTP metrics
	HTTPRequests        *prometheus.CounterVec   // Requests by route, method and status
	HTTPRequestDuration *prometheus.HistogramVec // Request duration by route
	WSClients           prometheus.Gauge         // Connected prediction feed clients
}

// New creates and registers all Prometheus metrics using the default registry.
func New() *Metrics {
	return NewWithRegistry(prometheus.DefaultRegisterer)
}

// NewWithRegistry creates metrics with a custom registry (useful for testing).
func NewWithRegistry(registerer prometheus.Registerer) *Metrics {
	factory := promauto.With(registerer)
	return &Metrics{
		Predictions: factory.NewCounter(prometheus.CounterOpts{
			Name: "callquality_predictions_total",
			Help: "Total number of successful rating predictions",
		}),
		PredictionFailures: factory.NewCounter(prometheus.CounterOpts{
			Name: "callquality_prediction_failures_total",
			Help: "Total number of predictions that failed inside the model",
		}),
		ValidationErrors: factory.NewCounter(prometheus.CounterOpts{
			Name: "callquality_validation_errors_total",
			Help: "Total number of prediction requests rejected as invalid",
		}),
		ModelUnavailable: factory.NewCounter(prometheus.CounterOpts{
			Name: "callquality_model_unavailable_total",
			Help: "Total number of predictions refused because no model is loaded",
		}),
		UnknownStates: factory.NewCounter(prometheus.CounterOpts{
			Name: "callquality_unknown_states_total",
			Help: "Total number of records whose state is outside the trained top states",
		}),
		PredictionLatency: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "callquality_prediction_latency_seconds",
			Help:    "Prediction latency in seconds (encode and model)",
			Buckets: []float64{0.00001, 0.00005, 0.0001, 0.0005, 0.001, 0.005, 0.01, 0.05, 0.1},
		}),
		PredictedRatings: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "callquality_predicted_rating",
			Help:    "Distribution of predicted ratings",
			Buckets: prometheus.LinearBuckets(1, 0.5, 9),
		}),
		CacheHits: factory.NewCounter(prometheus.CounterOpts{
			Name: "callquality_cache_hits_total",
			Help: "Total number of prediction cache hits",
		}),
		CacheMisses: factory.NewCounter(prometheus.CounterOpts{
			Name: "callquality_cache_misses_total",
			Help: "Total number of prediction cache misses",
		}),
		ModelLoaded: factory.NewGauge(prometheus.GaugeOpts{
			Name: "callquality_model_loaded",
			Help: "Whether a model is loaded (1) or not (0)",
		}),
		ModelAge: factory.NewGauge(prometheus.GaugeOpts{
			Name: "callquality_model_age_seconds",
			Help: "Age of the loaded model in seconds",
		}),
		ModelR2: factory.NewGauge(prometheus.GaugeOpts{
			Name: "callquality_model_r2",
			Help: "Held-out R² score of the loaded model",
		}),
		HTTPRequests: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "callquality_http_requests_total",
			Help: "Total number of HTTP requests",
		}, []string{"route", "method", "status"}),
		HTTPRequestDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "callquality_http_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: prometheus.DefBuckets,
		}, []string{"route"}),
		WSClients: factory.NewGauge(prometheus.GaugeOpts{
			Name: "callquality_ws_clients",
			Help: "Number of connected prediction feed clients",
		}),
	}
}
