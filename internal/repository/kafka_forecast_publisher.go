package repository

import (
	"context"
	"fmt"

	"FinCast/internal/domain/models"
	pkgkafka "FinCast/pkg/kafka"
)

// KafkaForecastPublisher writes forecast results to a topic keyed by series key.
type KafkaForecastPublisher struct {
	producer *pkgkafka.Producer
	topic    string
}

func NewKafkaForecastPublisher(producer *pkgkafka.Producer, topic string) *KafkaForecastPublisher {
	return &KafkaForecastPublisher{producer: producer, topic: topic}
}

func (p *KafkaForecastPublisher) PublishForecast(ctx context.Context, res *models.ForecastResult) error {
	err := p.producer.Publish(ctx, p.topic, []byte(res.Key), res,
		pkgkafka.Header{Key: "content-type", Value: "application/json"},
		pkgkafka.Header{Key: "run_id", Value: res.RunID},
	)
	if err != nil {
		return fmt.Errorf("publish forecast %s: %w", res.Key, err)
	}
	return nil
}

func (p *KafkaForecastPublisher) Close() error {
	return p.producer.Close()
}
