package api

import (
	"fmt"

	"callquality/internal/features"
)

// PredictRequest is the body of POST /predict. Every field is a pointer so
// that a missing field is rejected while an empty or zero value is not.
type PredictRequest struct {
	Operator         *string  `json:"operator" binding:"required"`
	NetworkType      *string  `json:"network_type" binding:"required"`
	InoutTravelling  *string  `json:"inout_travelling" binding:"required"`
	CalldropCategory *string  `json:"calldrop_category" binding:"required"`
	Latitude         *float64 `json:"latitude" binding:"required"`
	Longitude        *float64 `json:"longitude" binding:"required"`
	StateName        *string  `json:"state_name" binding:"required"`
	Month            *string  `json:"month" binding:"required"`
}

// Record converts the request into the encoder input. It must only be called
// on a bound request.
func (r PredictRequest) Record() features.CallRecord {
	return features.NewCallRecord(*r.Operator, *r.NetworkType, *r.InoutTravelling, *r.CalldropCategory,
		*r.Latitude, *r.Longitude, *r.StateName, *r.Month)
}

func (r PredictRequest) summary() map[string]string {
	return map[string]string{
		"operator":    *r.Operator,
		"network":     *r.NetworkType,
		"location":    *r.InoutTravelling,
		"quality":     *r.CalldropCategory,
		"state":       *r.StateName,
		"coordinates": fmt.Sprintf("(%v, %v)", *r.Latitude, *r.Longitude),
	}
}

// ModelSummary is the model block of a prediction response.
type ModelSummary struct {
	Model                string `json:"model"`
	Accuracy             string `json:"accuracy"`
	PredictionConfidence string `json:"prediction_confidence"`
}

// PredictResponse is returned by POST /predict.
type PredictResponse struct {
	PredictedRating    float64           `json:"predicted_rating"`
	ConfidenceInterval string            `json:"confidence_interval"`
	InputSummary       map[string]string `json:"input_summary"`
	ModelInfo          ModelSummary      `json:"model_info"`
	StateMatched       bool              `json:"state_matched"`
	Timestamp          string            `json:"timestamp"`
}

// HealthResponse is returned by GET /health.
type HealthResponse struct {
	Status          string  `json:"status"`
	Timestamp       string  `json:"timestamp"`
	ModelLoaded     bool    `json:"model_loaded"`
	ModelVersion    string  `json:"model_version,omitempty"`
	PredictionCount int64   `json:"prediction_count"`
	ErrorRate       float64 `json:"error_rate"`
	UptimeSeconds   float64 `json:"uptime_seconds"`
	LastError       string  `json:"last_error,omitempty"`
}

// ModelInfoResponse is returned by GET /model-info.
type ModelInfoResponse struct {
	ModelName    string              `json:"model_name"`
	ModelType    string              `json:"model_type"`
	Version      string              `json:"version,omitempty"`
	Accuracy     float64             `json:"accuracy"`
	RMSE         float64             `json:"rmse"`
	MAE          float64             `json:"mae"`
	CVMean       float64             `json:"cv_r2_mean"`
	CVStd        float64             `json:"cv_r2_std"`
	FeatureCount int                 `json:"feature_count"`
	TopStates    []string            `json:"top_states"`
	TopFeatures  []FeatureImportance `json:"top_features"`
	TrainedAt    string              `json:"trained_at"`
	TrainingRows int                 `json:"training_rows"`
}

// FeatureImportance is one entry of ModelInfoResponse.TopFeatures.
type FeatureImportance struct {
	Feature    string  `json:"feature"`
	Importance float64 `json:"importance"`
}

// ErrorResponse carries a human readable failure reason.
type ErrorResponse struct {
	Detail string `json:"detail"`
}

// PredictionEvent is pushed to websocket subscribers after each prediction.
type PredictionEvent struct {
	ID           uint64  `json:"id,omitempty"`
	Timestamp    string  `json:"timestamp"`
	Operator     string  `json:"operator"`
	NetworkType  string  `json:"network_type"`
	StateName    string  `json:"state_name"`
	Rating       float64 `json:"predicted_rating"`
	StateMatched bool    `json:"state_matched"`
}
