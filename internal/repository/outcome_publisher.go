package repository

import (
	"context"
	"fmt"

	"OptPull/internal/domain/models"
	drepo "OptPull/internal/domain/repository"
	pkgkafka "OptPull/pkg/kafka"
)

// KafkaOutcomePublisher implements the EventSink contract over Kafka.
// Outcomes are keyed by index so per-index ordering holds within a partition.
type KafkaOutcomePublisher struct {
	producer *pkgkafka.Producer
	topic    string
}

// NewKafkaOutcomePublisher creates a Kafka outcome publisher.
func NewKafkaOutcomePublisher(producer *pkgkafka.Producer, topic string) drepo.EventSink {
	return &KafkaOutcomePublisher{producer: producer, topic: topic}
}

func (p *KafkaOutcomePublisher) PublishOutcome(ctx context.Context, o models.UnitOutcome) error {
	key := []byte(fmt.Sprintf("%s:%s", o.Index, o.Rule))
	return p.producer.Publish(ctx, p.topic, key, o)
}

func (p *KafkaOutcomePublisher) Close() error {
	if p.producer != nil {
		return p.producer.Close()
	}
	return nil
}
