package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/Adithya-Monish-Kumar-K/Symptom-Search-Platform/internal/corpus"
	"github.com/Adithya-Monish-Kumar-K/Symptom-Search-Platform/internal/indexer"
	"github.com/Adithya-Monish-Kumar-K/Symptom-Search-Platform/pkg/config"
	"github.com/Adithya-Monish-Kumar-K/Symptom-Search-Platform/pkg/kafka"
	"github.com/Adithya-Monish-Kumar-K/Symptom-Search-Platform/pkg/logger"
	"github.com/Adithya-Monish-Kumar-K/Symptom-Search-Platform/pkg/resilience"
	"github.com/Adithya-Monish-Kumar-K/Symptom-Search-Platform/pkg/tracing"
)

func main() {
	configPath := flag.String("config", "configs/development.yaml", "path to config file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}
	logger.Setup(cfg.Logging.Level, cfg.Logging.Format)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg); err != nil {
		slog.Error("indexer failed", "error", err)
		os.Exit(1)
	}
}

// run loads the corpus, builds and saves a snapshot, then announces it.
// Each step is traced and the span tree is logged once run returns.
func run(ctx context.Context, cfg *config.Config) (err error) {
	slog.Info("starting index build",
		"source", cfg.Corpus.Source,
		"prefix", cfg.Indexer.PrefixPath(),
	)
	ctx, root := tracing.StartSpan(ctx, "index.run")
	defer func() {
		root.End(err)
		root.Log(slog.Default())
	}()

	_, span := tracing.StartSpan(ctx, "corpus.load")
	records, stats, err := corpus.LoadConfigured(ctx, cfg)
	if span.End(err) != nil {
		return fmt.Errorf("loading corpus: %w", err)
	}
	span.SetAttr("records", stats.Records)

	engine, err := indexer.NewEngine(cfg.Indexer, indexer.WithCorpusOptions(corpus.OptionsFromConfig(cfg.Corpus)))
	if err != nil {
		return fmt.Errorf("creating engine: %w", err)
	}
	_, span = tracing.StartSpan(ctx, "index.build")
	idx, err := engine.Build(records)
	if span.End(err) != nil {
		return fmt.Errorf("building index: %w", err)
	}
	span.SetAttr("snapshot_id", idx.ID())

	_, span = tracing.StartSpan(ctx, "snapshot.save")
	if span.End(engine.Save("")) != nil {
		return fmt.Errorf("saving snapshot: %w", span.Err)
	}
	slog.Info("snapshot saved",
		"snapshot_id", idx.ID(),
		"prefix", engine.SnapshotPrefix(),
		"summary", idx.Summary(),
	)

	if !cfg.Kafka.Enabled {
		slog.Info("kafka disabled, snapshot not announced")
		return nil
	}
	producer := kafka.NewProducer(cfg.Kafka, cfg.Kafka.Topics.IndexComplete)
	defer producer.Close()
	_, span = tracing.StartSpan(ctx, "snapshot.announce")
	return span.End(announce(ctx, producer, indexer.NewSnapshotEvent(engine.SnapshotPrefix(), idx)))
}

func announce(ctx context.Context, p kafka.Publisher, event indexer.SnapshotEvent) error {
	err := resilience.Retry(ctx, "announce-snapshot", resilience.RetryConfig{
		MaxAttempts:    4,
		InitialDelay:   time.Second,
		JitterFraction: 0.1,
	}, func() error {
		return p.Publish(ctx, kafka.Event{
			Key:   fmt.Sprintf("%d", event.SnapshotID),
			Value: event,
		})
	})
	if err != nil {
		return fmt.Errorf("announcing snapshot %d: %w", event.SnapshotID, err)
	}
	slog.Info("snapshot announced", "snapshot_id", event.SnapshotID)
	return nil
}
