package kafka

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/Adithya-Monish-Kumar-K/Symptom-Search-Platform/pkg/config"
	"github.com/segmentio/kafka-go"
)

// Event is the unit of data published to Kafka. Key is used for partition
// hashing and Value is JSON-serialised.
type Event struct {
	Key   string
	Value any
}

// Publisher is the producer surface used by the indexer binary.
type Publisher interface {
	Publish(ctx context.Context, event Event) error
	Close() error
}

// BatchPublisher writes several events in one call. *Producer implements it.
type BatchPublisher interface {
	PublishBatch(ctx context.Context, events []Event) error
}

// Producer writes JSON events to one topic and waits for every in-sync
// replica to acknowledge them.
type Producer struct {
	writer *kafka.Writer
	logger *slog.Logger
}

// NewProducer creates a Producer for topic. Messages with the same key land
// on the same partition.
func NewProducer(cfg config.KafkaConfig, topic string) *Producer {
	return &Producer{
		writer: &kafka.Writer{
			Addr:         kafka.TCP(cfg.Brokers...),
			Topic:        topic,
			Balancer:     &kafka.Hash{},
			BatchTimeout: 10 * time.Millisecond,
			MaxAttempts:  3,
			RequiredAcks: kafka.RequireAll,
		},
		logger: slog.Default().With("component", "kafka-producer", "topic", topic),
	}
}

// Publish writes a single event synchronously.
func (p *Producer) Publish(ctx context.Context, event Event) error {
	return p.write(ctx, []Event{event})
}

// PublishBatch writes events with one WriteMessages call. Nothing is written
// if any value fails to encode.
func (p *Producer) PublishBatch(ctx context.Context, events []Event) error {
	if len(events) == 0 {
		return nil
	}
	return p.write(ctx, events)
}

func (p *Producer) write(ctx context.Context, events []Event) error {
	messages, err := encodeEvents(events)
	if err != nil {
		return err
	}
	start := time.Now()
	if err := p.writer.WriteMessages(ctx, messages...); err != nil {
		p.logger.Error("publish failed", "messages", len(messages), "error", err)
		return fmt.Errorf("publishing %d message(s) to %s: %w", len(messages), p.writer.Topic, err)
	}
	p.logger.Debug("published",
		"messages", len(messages),
		"first_key", events[0].Key,
		"duration_ms", time.Since(start).Milliseconds(),
	)
	return nil
}

// contentTypeHeader marks every message body as JSON for consumers that
// inspect headers before decoding.
var contentTypeHeader = kafka.Header{Key: "content-type", Value: []byte("application/json")}

func encodeEvents(events []Event) ([]kafka.Message, error) {
	messages := make([]kafka.Message, len(events))
	for i, event := range events {
		value, err := json.Marshal(event.Value)
		if err != nil {
			return nil, fmt.Errorf("marshaling event %q: %w", event.Key, err)
		}
		messages[i] = kafka.Message{
			Key:     []byte(event.Key),
			Value:   value,
			Headers: []kafka.Header{contentTypeHeader},
		}
	}
	return messages, nil
}

func (p *Producer) Close() error {
	return p.writer.Close()
}
