package metrics

import (
	"strconv"
	"time"
)

// ServiceWrapper adapts Metrics to the method set the prediction service
// expects, so that package does not import Prometheus types.
type ServiceWrapper struct {
	m *Metrics
}

func NewWrapper(m *Metrics) *ServiceWrapper {
	return &ServiceWrapper{m: m}
}

func (w *ServiceWrapper) PredictionsInc()        { w.m.Predictions.Inc() }
func (w *ServiceWrapper) PredictionFailuresInc() { w.m.PredictionFailures.Inc() }
func (w *ServiceWrapper) ValidationErrorsInc()   { w.m.ValidationErrors.Inc() }
func (w *ServiceWrapper) ModelUnavailableInc()   { w.m.ModelUnavailable.Inc() }
func (w *ServiceWrapper) UnknownStateInc()       { w.m.UnknownStates.Inc() }
func (w *ServiceWrapper) CacheHitInc()           { w.m.CacheHits.Inc() }
func (w *ServiceWrapper) CacheMissInc()          { w.m.CacheMisses.Inc() }

func (w *ServiceWrapper) PredictionLatencyObserve(v float64) { w.m.PredictionLatency.Observe(v) }
func (w *ServiceWrapper) PredictedRatingObserve(v float64)   { w.m.PredictedRatings.Observe(v) }
func (w *ServiceWrapper) ModelAgeSet(v float64)              { w.m.ModelAge.Set(v) }
func (w *ServiceWrapper) ModelR2Set(v float64)               { w.m.ModelR2.Set(v) }

func (w *ServiceWrapper) ModelLoadedSet(loaded bool) {
	if loaded {
		w.m.ModelLoaded.Set(1)
		return
	}
	w.m.ModelLoaded.Set(0)
}

// ObserveRequest records one HTTP request.
func (m *Metrics) ObserveRequest(route, method string, status int, elapsed time.Duration) {
	if route == "" {
		route = "unmatched"
	}
	m.HTTPRequests.WithLabelValues(route, method, strconv.Itoa(status)).Inc()
	m.HTTPRequestDuration.WithLabelValues(route).Observe(elapsed.Seconds())
}
