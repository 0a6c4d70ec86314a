package api

import (
	"context"
	"errors"
	"math"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"

	"callquality/internal/features"
	"callquality/internal/ml"
	"callquality/internal/storage"
)

const (
	maxRecentLimit  = 1000
	topFeatureCount = 5
)

// fallbackStates is served by GET /states while no model is loaded.
var fallbackStates = []string{
	"Karnataka", "Maharashtra", "Uttarakhand", "Kerala", "Rajasthan",
	"Bihar", "West Bengal", "Madhya Pradesh", "Uttar Pradesh", "Jharkhand",
}

func timestamp() string { return time.Now().Format(time.RFC3339) }

func errorJSON(c *gin.Context, status int, detail string) {
	c.AbortWithStatusJSON(status, ErrorResponse{Detail: detail})
}

func (s *Server) handleRoot(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"message": "Voice Call Quality Prediction API",
		"version": "2.0.0",
		"endpoints": gin.H{
			"predict":            "/predict - Make call quality predictions",
			"health":             "/health - Check API health",
			"model-info":         "/model-info - Get model information",
			"model-info/skew":    "/model-info/skew - Compare live inputs with the training baseline",
			"predictions/recent": "/predictions/recent - Recently served predictions",
			"ws/predictions":     "/ws/predictions - Live prediction feed",
		},
	})
}

func (s *Server) handleHealth(c *gin.Context) {
	h := s.svc.Health()
	resp := HealthResponse{
		Status:          "healthy",
		Timestamp:       timestamp(),
		ModelLoaded:     h.ModelLoaded,
		ModelVersion:    h.ModelVersion,
		PredictionCount: h.PredictionCount,
		ErrorRate:       h.ErrorRate,
		UptimeSeconds:   h.UptimeSeconds,
		LastError:       h.LastError,
	}
	code := http.StatusOK
	if !h.Healthy {
		resp.Status = "unhealthy"
		code = http.StatusServiceUnavailable
		if err := s.svc.LoadError(); err != nil {
			resp.LastError = err.Error()
		}
	}
	c.JSON(code, resp)
}

func (s *Server) handleModelInfo(c *gin.Context) {
	b := s.svc.Bundle()
	if !s.svc.Healthy() || b == nil {
		errorJSON(c, http.StatusServiceUnavailable, "Model not loaded")
		return
	}

	top := ml.TopFeatures(b.FeatureImportance, topFeatureCount)
	feats := make([]FeatureImportance, len(top))
	for i, f := range top {
		feats[i] = FeatureImportance{Feature: f.Feature, Importance: round4(f.Importance)}
	}

	c.JSON(http.StatusOK, ModelInfoResponse{
		ModelName:    b.ModelName,
		ModelType:    b.ModelType,
		Version:      b.Version,
		Accuracy:     round4(b.Metrics.R2),
		RMSE:         round4(b.Metrics.RMSE),
		MAE:          round4(b.Metrics.MAE),
		CVMean:       round4(b.Metrics.CVMean),
		CVStd:        round4(b.Metrics.CVStd),
		FeatureCount: len(b.FeatureColumns),
		TopStates:    b.TopStates,
		TopFeatures:  feats,
		TrainedAt:    b.TrainedAt.Format(time.RFC3339),
		TrainingRows: b.TrainingRows,
	})
}

func (s *Server) handleSkew(c *gin.Context) {
	if !s.svc.Healthy() {
		errorJSON(c, http.StatusServiceUnavailable, "Model not loaded")
		return
	}
	mon := s.svc.Skew()
	if mon == nil {
		errorJSON(c, http.StatusNotFound, "model bundle has no training baseline")
		return
	}
	c.JSON(http.StatusOK, mon.Report())
}

func (s *Server) handlePredict(c *gin.Context) {
	var req PredictRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		errorJSON(c, http.StatusBadRequest, "invalid request: "+err.Error())
		return
	}

	res, err := s.svc.Predict(c.Request.Context(), req.Record())
	if err != nil {
		var verr *ml.ValidationError
		switch {
		case errors.As(err, &verr):
			errorJSON(c, http.StatusBadRequest, verr.Error())
		case errors.Is(err, ml.ErrModelUnavailable):
			errorJSON(c, http.StatusServiceUnavailable, "Model not loaded")
		case errors.Is(err, context.DeadlineExceeded):
			errorJSON(c, http.StatusGatewayTimeout, "Prediction timed out")
		case errors.Is(err, context.Canceled):
			errorJSON(c, http.StatusServiceUnavailable, "Request canceled")
		default:
			log.Error().Err(err).Msg("prediction failed")
			errorJSON(c, http.StatusInternalServerError, "Prediction failed: "+err.Error())
		}
		return
	}

	b := s.svc.Bundle()
	now := time.Now()
	resp := PredictResponse{
		PredictedRating:    res.Rating,
		ConfidenceInterval: b.Metrics.ConfidenceInterval(),
		InputSummary:       req.summary(),
		ModelInfo: ModelSummary{
			Model:                b.ModelName,
			Accuracy:             b.Metrics.Accuracy(),
			PredictionConfidence: b.Metrics.ConfidenceLevel(),
		},
		StateMatched: res.StateMatched,
		Timestamp:    now.Format(time.RFC3339),
	}

	log.Info().
		Float64("rating", res.Rating).
		Str("operator", *req.Operator).
		Str("state", *req.StateName).
		Bool("cache_hit", res.CacheHit).
		Msg("prediction made")

	s.record(req, res, b, now)
	c.JSON(http.StatusOK, resp)
}

// record appends the prediction to the log and pushes it to feed clients.
// Failures are logged; the response is already decided.
func (s *Server) record(req PredictRequest, res ml.Result, b *ml.Bundle, at time.Time) {
	rec := &storage.PredictionRecord{
		Timestamp:    at,
		Operator:     *req.Operator,
		NetworkType:  *req.NetworkType,
		Location:     *req.InoutTravelling,
		Quality:      *req.CalldropCategory,
		Latitude:     *req.Latitude,
		Longitude:    *req.Longitude,
		State:        *req.StateName,
		Month:        *req.Month,
		Rating:       res.Rating,
		Raw:          res.Raw,
		StateMatched: res.StateMatched,
		Model:        b.ModelName,
	}
	if s.store != nil {
		if err := s.store.StorePrediction(rec); err != nil {
			log.Warn().Err(err).Msg("failed to store prediction")
		}
	}

	s.hub.Broadcast(PredictionEvent{
		ID:           rec.ID,
		Timestamp:    at.Format(time.RFC3339),
		Operator:     rec.Operator,
		NetworkType:  rec.NetworkType,
		StateName:    rec.State,
		Rating:       rec.Rating,
		StateMatched: rec.StateMatched,
	})
}

func (s *Server) handleOperators(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"operators": features.OperatorLabels})
}

func (s *Server) handleNetworkTypes(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"network_types": features.NetworkTypeLabels})
}

func (s *Server) handleLocations(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"locations": features.LocationContextLabels})
}

func (s *Server) handleQualityCategories(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"quality_categories": features.CallQualityLabels})
}

func (s *Server) handleMonths(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"months": features.MonthNames})
}

func (s *Server) handleStates(c *gin.Context) {
	states := fallbackStates
	if s.svc.Healthy() {
		states = s.svc.Schema().TopStates()
	}
	c.JSON(http.StatusOK, gin.H{"states": states})
}

func (s *Server) handleRecent(c *gin.Context) {
	if s.store == nil {
		errorJSON(c, http.StatusServiceUnavailable, "prediction log is disabled")
		return
	}

	limit := s.cfg.RecentLimit
	if v := c.Query("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 || n > maxRecentLimit {
			errorJSON(c, http.StatusBadRequest, "limit must be an integer between 1 and 1000")
			return
		}
		limit = n
	}

	recs, err := s.store.RecentPredictions(limit)
	if err != nil {
		log.Error().Err(err).Msg("failed to read prediction log")
		errorJSON(c, http.StatusInternalServerError, "failed to read prediction log")
		return
	}
	if recs == nil {
		recs = []storage.PredictionRecord{}
	}
	c.JSON(http.StatusOK, gin.H{"predictions": recs, "count": len(recs)})
}

func round4(v float64) float64 {
	return math.Round(v*10000) / 10000
}
