// Package consumer reads snapshot announcements from Kafka and reloads the
// serving engine's index when a newer snapshot is published.
package consumer

import (
	"context"
	"log/slog"

	"github.com/Adithya-Monish-Kumar-K/Symptom-Search-Platform/internal/indexer"
	"github.com/Adithya-Monish-Kumar-K/Symptom-Search-Platform/internal/indexer/index"
	"github.com/Adithya-Monish-Kumar-K/Symptom-Search-Platform/pkg/kafka"
)

// Reloader loads the configured snapshot and installs it when it differs
// from the installed one. *indexer.Engine implements it.
type Reloader interface {
	Reload() (*index.Index, bool, error)
	Current() *index.Index
}

// SnapshotConsumer wraps a Kafka consumer to drive reloads.
type SnapshotConsumer struct {
	consumer *kafka.Consumer
	logger   *slog.Logger
}

func New(kafkaConsumer *kafka.Consumer) *SnapshotConsumer {
	return &SnapshotConsumer{
		consumer: kafkaConsumer,
		logger:   slog.Default().With("component", "snapshot-consumer"),
	}
}

// Start begins consuming. It blocks until ctx is cancelled.
func (sc *SnapshotConsumer) Start(ctx context.Context) error {
	sc.logger.Info("snapshot consumer starting")
	return sc.consumer.Start(ctx)
}

// HandleMessage returns a MessageHandler that reloads r for every snapshot
// event newer than the installed index. Undecodable messages are logged and
// acknowledged. A failed reload is also acknowledged: the snapshot on disk
// is broken and retrying the same event would not fix it.
func HandleMessage(r Reloader) kafka.MessageHandler {
	logger := slog.Default().With("component", "snapshot-consumer")
	return func(ctx context.Context, key []byte, value []byte) error {
		event, err := kafka.DecodeJSON[indexer.SnapshotEvent](value)
		if err != nil {
			logger.Error("failed to decode snapshot event",
				"error", err,
				"key", string(key),
			)
			return nil
		}
		if cur := r.Current(); cur != nil && cur.ID() == event.SnapshotID {
			logger.Debug("snapshot already installed", "snapshot_id", event.SnapshotID)
			return nil
		}
		idx, changed, err := r.Reload()
		if err != nil {
			logger.Error("snapshot reload failed",
				"snapshot_id", event.SnapshotID,
				"prefix", event.Prefix,
				"error", err,
			)
			return nil
		}
		if idx.ID() != event.SnapshotID {
			logger.Warn("installed snapshot differs from announced one",
				"announced_snapshot_id", event.SnapshotID,
				"installed_snapshot_id", idx.ID(),
			)
		}
		logger.Info("snapshot event handled",
			"snapshot_id", idx.ID(),
			"changed", changed,
			"diseases", event.Summary.TotalDiseases,
		)
		return nil
	}
}
