// Command analytics aggregates query events published by every searcher
// replica and serves the combined view at GET /api/v1/analytics.
//
// Usage:
//
//	go run ./cmd/analytics [-config configs/development.yaml] [-port 8083]
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"golang.org/x/sync/errgroup"

	"github.com/Adithya-Monish-Kumar-K/Symptom-Search-Platform/internal/analytics"
	"github.com/Adithya-Monish-Kumar-K/Symptom-Search-Platform/pkg/config"
	"github.com/Adithya-Monish-Kumar-K/Symptom-Search-Platform/pkg/health"
	"github.com/Adithya-Monish-Kumar-K/Symptom-Search-Platform/pkg/kafka"
	"github.com/Adithya-Monish-Kumar-K/Symptom-Search-Platform/pkg/logger"
	"github.com/Adithya-Monish-Kumar-K/Symptom-Search-Platform/pkg/middleware"
)

func main() {
	configPath := flag.String("config", "configs/development.yaml", "path to config file")
	port := flag.Int("port", 8083, "HTTP port of the analytics API")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}
	logger.Setup(cfg.Logging.Level, cfg.Logging.Format)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, *port); err != nil {
		slog.Error("analytics service failed", "error", err)
		os.Exit(1)
	}
	slog.Info("analytics service stopped")
}

func run(ctx context.Context, cfg *config.Config, port int) error {
	if !cfg.Kafka.Enabled {
		return errors.New("kafka must be enabled to aggregate query events")
	}
	aggregator := analytics.NewAggregator()
	consumer := kafka.NewConsumer(cfg.Kafka, cfg.Kafka.Topics.QueryEvents,
		cfg.Kafka.ConsumerGroup+"-analytics", analytics.HandleMessage(aggregator), kafka.FromEarliest())

	server := &http.Server{
		Addr:         fmt.Sprintf(":%d", port),
		Handler:      newServer(aggregator, cfg.Analytics.TopN),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		defer consumer.Close()
		slog.Info("consuming query events", "topic", cfg.Kafka.Topics.QueryEvents)
		return consumer.Start(gctx)
	})
	g.Go(func() error {
		slog.Info("analytics service listening", "addr", server.Addr)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer cancel()
		return server.Shutdown(shutdownCtx)
	})
	return g.Wait()
}

func newServer(aggregator *analytics.Aggregator, topN int) http.Handler {
	checker := health.NewChecker()
	mux := http.NewServeMux()
	analytics.NewHandler(aggregator, nil, topN).Register(mux)
	mux.HandleFunc("GET /health/live", checker.LiveHandler())
	mux.HandleFunc("GET /health/ready", checker.ReadyHandler())
	return middleware.RequestID(mux)
}
