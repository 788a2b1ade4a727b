// Package kafka wraps segmentio/kafka-go for the platform's two topics:
// snapshot announcements from the indexer and query events from the
// searchers. Values travel as JSON.
package kafka

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/segmentio/kafka-go"

	"github.com/Adithya-Monish-Kumar-K/Symptom-Search-Platform/pkg/config"
)

// MessageHandler processes one message. A non-nil error leaves the message
// uncommitted.
type MessageHandler func(ctx context.Context, key []byte, value []byte) error

// messageReader is the part of *kafka.Reader the consume loop needs.
type messageReader interface {
	FetchMessage(ctx context.Context) (kafka.Message, error)
	CommitMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

const (
	minFetchBackoff = 100 * time.Millisecond
	maxFetchBackoff = 5 * time.Second
)

type ConsumerOption func(*kafka.ReaderConfig)

// FromEarliest makes a new consumer group start at the oldest retained
// message instead of the newest.
func FromEarliest() ConsumerOption {
	return func(rc *kafka.ReaderConfig) { rc.StartOffset = kafka.FirstOffset }
}

type Consumer struct {
	reader  messageReader
	handler MessageHandler
	logger  *slog.Logger
}

// NewConsumer reads topic as member of groupID. Searchers pass a group per
// host so each replica sees every snapshot announcement.
func NewConsumer(cfg config.KafkaConfig, topic, groupID string, handler MessageHandler, opts ...ConsumerOption) *Consumer {
	rc := kafka.ReaderConfig{
		Brokers:     cfg.Brokers,
		Topic:       topic,
		GroupID:     groupID,
		MinBytes:    1,
		MaxBytes:    1e6,
		MaxWait:     time.Second,
		StartOffset: kafka.LastOffset,
	}
	for _, opt := range opts {
		opt(&rc)
	}
	return newConsumer(kafka.NewReader(rc), handler,
		slog.Default().With("component", "kafka-consumer", "topic", topic, "group", groupID))
}

func newConsumer(r messageReader, handler MessageHandler, logger *slog.Logger) *Consumer {
	return &Consumer{reader: r, handler: handler, logger: logger}
}

// Start consumes until ctx is cancelled and returns nil on a clean stop.
// Fetch errors back off exponentially up to five seconds.
func (c *Consumer) Start(ctx context.Context) error {
	c.logger.Info("consumer started")
	backoff := minFetchBackoff
	for {
		msg, err := c.reader.FetchMessage(ctx)
		if err != nil {
			if ctx.Err() != nil {
				c.logger.Info("consumer stopping", "reason", ctx.Err())
				return nil
			}
			c.logger.Error("failed to fetch message", "error", err, "retry_in", backoff)
			select {
			case <-ctx.Done():
				return nil
			case <-time.After(backoff):
			}
			backoff = min(backoff*2, maxFetchBackoff)
			continue
		}
		backoff = minFetchBackoff
		c.process(ctx, msg)
	}
}

func (c *Consumer) process(ctx context.Context, msg kafka.Message) {
	c.logger.Debug("message received",
		"partition", msg.Partition,
		"offset", msg.Offset,
		"key", string(msg.Key),
		"value_size", len(msg.Value),
	)
	if err := c.handler(ctx, msg.Key, msg.Value); err != nil {
		c.logger.Error("failed to process message",
			"partition", msg.Partition,
			"offset", msg.Offset,
			"error", err,
		)
		return
	}
	if err := c.reader.CommitMessages(ctx, msg); err != nil {
		c.logger.Error("failed to commit message",
			"partition", msg.Partition,
			"offset", msg.Offset,
			"error", err,
		)
	}
}

func (c *Consumer) Close() error {
	return c.reader.Close()
}

// DecodeJSON unmarshals a message value into T.
func DecodeJSON[T any](value []byte) (T, error) {
	var result T
	if err := json.Unmarshal(value, &result); err != nil {
		return result, fmt.Errorf("decoding kafka message: %w", err)
	}
	return result, nil
}
