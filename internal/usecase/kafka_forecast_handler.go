package usecase

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"FinCast/internal/domain/models"
	domrepo "FinCast/internal/domain/repository"
	"FinCast/internal/services/ensemble"
	pkgkafka "FinCast/pkg/kafka"
)

// KafkaForecastHandler serves forecast requests arriving on a topic. Results
// go out through the forecaster's publishers.
type KafkaForecastHandler struct {
	topic      string
	forecaster *Forecaster
	metrics    domrepo.Metrics
}

func NewKafkaForecastHandler(topic string, f *Forecaster, metrics domrepo.Metrics) *KafkaForecastHandler {
	if metrics == nil {
		metrics = domrepo.NopMetrics{}
	}
	return &KafkaForecastHandler{topic: topic, forecaster: f, metrics: metrics}
}

func (h *KafkaForecastHandler) Topic() string { return h.topic }

// message schema: {key, timestamps[], values[], horizon, retrain}
//
// Malformed messages and deterministic engine failures are returned as
// permanent so the consumer does not retry them.
func (h *KafkaForecastHandler) Handle(ctx context.Context, b []byte) error {
	var m models.ForecastRequestMessage
	if err := json.Unmarshal(b, &m); err != nil {
		h.metrics.RecordError("consumer_unmarshal")
		return pkgkafka.Permanent(err)
	}
	if m.Key == "" {
		m.Key = "default"
	}
	horizon := 1
	if m.Horizon != nil {
		horizon = *m.Horizon
	}
	if horizon < 1 {
		h.metrics.RecordError("consumer_validate")
		return pkgkafka.Permanent(models.NewValidationError("horizon", "must be >= 1, got %d", horizon))
	}
	data, err := models.NewTimeSeries(m.Timestamps, m.Values, nil)
	if err != nil {
		h.metrics.RecordError("consumer_validate")
		return pkgkafka.Permanent(fmt.Errorf("forecast request %s: %w", m.Key, err))
	}

	start := time.Now()
	defer func() { h.metrics.RecordLatency("kafka_forecast_seconds", time.Since(start).Seconds()) }()

	if m.Retrain || !h.trained(m.Key) {
		if _, err := h.forecaster.Train(ctx, m.Key, data); err != nil {
			h.metrics.RecordError("consumer_train")
			return classify(err)
		}
	}
	if _, err := h.forecaster.Predict(ctx, m.Key, data, horizon); err != nil {
		h.metrics.RecordError("consumer_predict")
		return classify(err)
	}
	return nil
}

// classify marks errors that a redelivery of the same message would repeat.
func classify(err error) error {
	switch {
	case errors.Is(err, models.ErrValidation),
		errors.Is(err, ensemble.ErrAllModelsFailed),
		errors.Is(err, ensemble.ErrNoContributingModels):
		return pkgkafka.Permanent(err)
	}
	return err
}

func (h *KafkaForecastHandler) trained(key string) bool {
	_, err := h.forecaster.Weights(key)
	return err == nil
}

var _ pkgkafka.MessageHandler = (*KafkaForecastHandler)(nil)
