package service

import (
	"context"

	"FinCast/internal/domain/models"
)

// ForecastModel is a univariate forecaster. Implementations must be safe
// for concurrent use; Fit replaces any previously fitted state.
type ForecastModel interface {
	Name() string
	Fit(ctx context.Context, data models.TimeSeriesData) error
	Predict(ctx context.Context, horizon int) ([]float64, error)
	Describe() models.ModelInfo
}

// InSampleModel exposes one-step-ahead fitted values for the last Fit,
// aligned with the training series.
type InSampleModel interface {
	ForecastModel
	Fitted() []float64
}

// ModelFactory builds a fresh set of models for one ensemble.
type ModelFactory func() ([]ForecastModel, error)
