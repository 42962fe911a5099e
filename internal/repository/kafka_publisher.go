package repository

import (
	"context"

	"PatternPull/internal/domain/models"
	pkgkafka "PatternPull/pkg/kafka"
)

// KafkaSignalPublisher writes signal events keyed by symbol, so one symbol stays ordered.
type KafkaSignalPublisher struct {
	producer *pkgkafka.Producer
	topic    string
}

func NewKafkaSignalPublisher(producer *pkgkafka.Producer, topic string) *KafkaSignalPublisher {
	return &KafkaSignalPublisher{producer: producer, topic: topic}
}

func (p *KafkaSignalPublisher) PublishBatch(ctx context.Context, events []models.SignalEvent) error {
	if len(events) == 0 {
		return nil
	}
	msgs := make([]pkgkafka.Message, len(events))
	for i, e := range events {
		msgs[i] = pkgkafka.Message{Key: []byte(e.Symbol), Value: e, TraceID: e.ID}
	}
	return p.producer.PublishBatch(ctx, p.topic, msgs)
}

// Close is a no-op; the producer is shared.
func (p *KafkaSignalPublisher) Close() error { return nil }

// KafkaCandlePublisher forwards closed candles from the live stream to the candles topic.
type KafkaCandlePublisher struct {
	producer *pkgkafka.Producer
	topic    string
}

func NewKafkaCandlePublisher(producer *pkgkafka.Producer, topic string) *KafkaCandlePublisher {
	return &KafkaCandlePublisher{producer: producer, topic: topic}
}

func (p *KafkaCandlePublisher) Publish(ctx context.Context, c models.Candle) error {
	return p.producer.Publish(ctx, p.topic, []byte(c.Symbol), c)
}
