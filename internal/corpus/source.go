package corpus

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/Adithya-Monish-Kumar-K/Symptom-Search-Platform/pkg/config"
	"github.com/Adithya-Monish-Kumar-K/Symptom-Search-Platform/pkg/postgres"
	"github.com/Adithya-Monish-Kumar-K/Symptom-Search-Platform/pkg/resilience"
)

// OptionsFromConfig reads the column layout from the corpus section.
func OptionsFromConfig(cfg config.CorpusConfig) Options {
	return Options{
		DiseaseColumn: cfg.DiseaseColumn,
		SymptomPrefix: cfg.SymptomPrefix,
		MaxSymptoms:   cfg.MaxSymptoms,
	}
}

// LoadConfigured reads the corpus from the source named in cfg.Corpus: a
// CSV file, or a PostgreSQL table reached through cfg.Postgres. The
// database connection is retried with backoff.
func LoadConfigured(ctx context.Context, cfg *config.Config) ([]Record, LoadStats, error) {
	loader := NewLoader(OptionsFromConfig(cfg.Corpus))
	switch cfg.Corpus.Source {
	case "csv":
		return loader.LoadFile(cfg.Corpus.Path)
	case "postgres":
		var client *postgres.Client
		err := resilience.Retry(ctx, "postgres-connect", resilience.RetryConfig{
			MaxAttempts:    5,
			InitialDelay:   500 * time.Millisecond,
			MaxDelay:       10 * time.Second,
			JitterFraction: 0.1,
		}, func() error {
			var err error
			client, err = postgres.New(ctx, cfg.Postgres)
			return err
		})
		if err != nil {
			return nil, LoadStats{}, fmt.Errorf("connecting to corpus database: %w", err)
		}
		defer client.Close()
		slog.Default().With("component", "corpus-loader").Info("reading corpus from postgres",
			"host", cfg.Postgres.Host,
			"database", cfg.Postgres.Database,
			"table", cfg.Corpus.Table,
		)
		return loader.LoadSQL(ctx, client.DB, cfg.Corpus.Table)
	default:
		return nil, LoadStats{}, fmt.Errorf("unknown corpus source %q", cfg.Corpus.Source)
	}
}
