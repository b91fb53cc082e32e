package repository

import (
	"context"

	"FinCast/internal/domain/models"
)

// SeriesStore reads historical series and persists forecasts.
type SeriesStore interface {
	GetLatestNCandles(ctx context.Context, symbol string, n int, tf Timeframe) ([]models.Candle, error)
	LatestSeries(ctx context.Context, symbol string, n int, tf Timeframe) (models.TimeSeriesData, error)
	SaveForecast(ctx context.Context, res *models.ForecastResult) error
}

// ForecastPublisher fans forecast results out to downstream consumers.
type ForecastPublisher interface {
	PublishForecast(ctx context.Context, res *models.ForecastResult) error
	Close() error
}

type Metrics interface {
	RecordTraining(key string, success bool)
	RecordModelFailure(model, stage string)
	RecordModelWeight(key, model string, weight float64)
	RecordConfidence(key string, confidence float64)
	RecordError(kind string)
	RecordLatency(op string, seconds float64)
}

// NopMetrics discards every observation.
type NopMetrics struct{}

func (NopMetrics) RecordTraining(string, bool)               {}
func (NopMetrics) RecordModelFailure(string, string)         {}
func (NopMetrics) RecordModelWeight(string, string, float64) {}
func (NopMetrics) RecordConfidence(string, float64)          {}
func (NopMetrics) RecordError(string)                        {}
func (NopMetrics) RecordLatency(string, float64)             {}
