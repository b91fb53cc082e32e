package models

import (
	"maps"
	"time"
)

// ModelInfo describes a registered forecasting model.
type ModelInfo struct {
	Name        string             `json:"name"`
	Family      string             `json:"family"`
	Params      map[string]float64 `json:"params,omitempty"`
	Fitted      bool               `json:"fitted"`
	Description string             `json:"description,omitempty"`
}

// ModelFailureInfo is the serializable view of a per-model failure.
type ModelFailureInfo struct {
	Model  string `json:"model"`
	Stage  string `json:"stage"`
	Reason string `json:"reason"`
}

// TrainingResult is the ensemble state produced by a training run.
type TrainingResult struct {
	ModelErrors  map[string]float64          `json:"model_errors"`
	ModelWeights map[string]float64          `json:"model_weights"`
	FailedModels []string                    `json:"failed_models"`
	Failures     map[string]ModelFailureInfo `json:"failures,omitempty"`
	SeriesLength int                         `json:"series_length"`
	HoldoutSize  int                         `json:"holdout_size"`
	InSample     bool                        `json:"in_sample"`
	TrainedAt    time.Time                   `json:"trained_at"`
}

// Clone returns a deep copy.
func (r *TrainingResult) Clone() *TrainingResult {
	if r == nil {
		return nil
	}
	out := *r
	out.ModelErrors = maps.Clone(r.ModelErrors)
	out.ModelWeights = maps.Clone(r.ModelWeights)
	out.FailedModels = append([]string(nil), r.FailedModels...)
	out.Failures = maps.Clone(r.Failures)
	return &out
}

// ForecastResult is a fused multi-step forecast with diagnostics.
type ForecastResult struct {
	RunID               string                      `json:"run_id,omitempty"`
	Key                 string                      `json:"key,omitempty"`
	Horizon             int                         `json:"horizon"`
	Predictions         []float64                   `json:"predictions"`
	Timestamps          []time.Time                 `json:"timestamps,omitempty"`
	ConfidenceScore     float64                     `json:"confidence_score"`
	Agreement           float64                     `json:"agreement"`
	Accuracy            float64                     `json:"accuracy"`
	ModelWeights        map[string]float64          `json:"model_weights"`
	TrainedWeights      map[string]float64          `json:"trained_weights"`
	PerModelPredictions map[string][]float64        `json:"per_model_predictions"`
	FailedModels        []string                    `json:"failed_models,omitempty"`
	Failures            map[string]ModelFailureInfo `json:"failures,omitempty"`
	GeneratedAt         time.Time                   `json:"generated_at"`
}
