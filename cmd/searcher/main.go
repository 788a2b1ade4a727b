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
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"golang.org/x/sync/errgroup"

	"github.com/Adithya-Monish-Kumar-K/Symptom-Search-Platform/internal/analytics"
	"github.com/Adithya-Monish-Kumar-K/Symptom-Search-Platform/internal/corpus"
	"github.com/Adithya-Monish-Kumar-K/Symptom-Search-Platform/internal/indexer"
	"github.com/Adithya-Monish-Kumar-K/Symptom-Search-Platform/internal/indexer/consumer"
	"github.com/Adithya-Monish-Kumar-K/Symptom-Search-Platform/internal/indexer/index"
	"github.com/Adithya-Monish-Kumar-K/Symptom-Search-Platform/internal/indexer/segment"
	"github.com/Adithya-Monish-Kumar-K/Symptom-Search-Platform/internal/indexer/watcher"
	"github.com/Adithya-Monish-Kumar-K/Symptom-Search-Platform/internal/searcher/cache"
	"github.com/Adithya-Monish-Kumar-K/Symptom-Search-Platform/internal/searcher/executor"
	"github.com/Adithya-Monish-Kumar-K/Symptom-Search-Platform/internal/searcher/handler"
	"github.com/Adithya-Monish-Kumar-K/Symptom-Search-Platform/internal/searcher/ranker"
	"github.com/Adithya-Monish-Kumar-K/Symptom-Search-Platform/internal/searcher/suggest"
	"github.com/Adithya-Monish-Kumar-K/Symptom-Search-Platform/pkg/config"
	apperrors "github.com/Adithya-Monish-Kumar-K/Symptom-Search-Platform/pkg/errors"
	"github.com/Adithya-Monish-Kumar-K/Symptom-Search-Platform/pkg/health"
	"github.com/Adithya-Monish-Kumar-K/Symptom-Search-Platform/pkg/kafka"
	"github.com/Adithya-Monish-Kumar-K/Symptom-Search-Platform/pkg/logger"
	"github.com/Adithya-Monish-Kumar-K/Symptom-Search-Platform/pkg/metrics"
	"github.com/Adithya-Monish-Kumar-K/Symptom-Search-Platform/pkg/middleware"
	"github.com/Adithya-Monish-Kumar-K/Symptom-Search-Platform/pkg/ratelimit"
	pkgredis "github.com/Adithya-Monish-Kumar-K/Symptom-Search-Platform/pkg/redis"
	"github.com/Adithya-Monish-Kumar-K/Symptom-Search-Platform/pkg/resilience"
)

func main() {
	configPath := flag.String("config", "configs/development.yaml", "path to config file")
	buildMissing := flag.Bool("build-if-missing", true, "build the index from the corpus when no snapshot exists")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}
	logger.Setup(cfg.Logging.Level, cfg.Logging.Format)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, *buildMissing); err != nil {
		slog.Error("search service failed", "error", err)
		os.Exit(1)
	}
	slog.Info("search service stopped")
}

func run(ctx context.Context, cfg *config.Config, buildMissing bool) error {
	m := metrics.New(prometheus.DefaultRegisterer)
	engine, err := indexer.NewEngine(cfg.Indexer,
		indexer.WithMetrics(m),
		indexer.WithCorpusOptions(corpus.OptionsFromConfig(cfg.Corpus)),
	)
	if err != nil {
		return fmt.Errorf("creating engine: %w", err)
	}
	if err := bootstrapIndex(ctx, cfg, engine, buildMissing); err != nil {
		// Serve unready; a reload event or POST /api/v1/index/reload can
		// install a snapshot later.
		slog.Warn("no index installed at startup", "error", err)
	}

	var queryCache *cache.QueryCache
	var redisClient *pkgredis.Client
	if cfg.Redis.Enabled {
		err := resilience.Retry(ctx, "redis-connect", resilience.RetryConfig{MaxAttempts: 3, JitterFraction: 0.1}, func() error {
			var err error
			redisClient, err = pkgredis.NewClient(ctx, cfg.Redis)
			return err
		})
		if err != nil {
			slog.Warn("redis unavailable, result caching disabled", "error", err)
		} else {
			defer redisClient.Close()
			queryCache = cache.New(redisClient, cfg.Redis,
				cache.WithMetrics(m),
				cache.WithBreaker(cache.NewBreaker()),
			)
			engine.OnSwap(invalidateOnSwap(queryCache))
			slog.Info("result cache enabled", "addr", cfg.Redis.Addr, "ttl", cfg.Redis.CacheTTL)
		}
	}

	exec := executor.New(engine,
		executor.WithWeights(ranker.WeightsFromConfig(cfg.Search)),
		executor.WithMetrics(m),
	)
	suggester := suggest.New(engine, exec,
		suggest.WithMaxSuggestions(cfg.Search.MaxSuggestions),
		suggest.WithSpellingThreshold(cfg.Search.SpellingThreshold),
		suggest.WithMetrics(m),
	)
	var handlerOpts []handler.Option
	var collector *analytics.Collector
	var aggregator *analytics.Aggregator
	if cfg.Analytics.Enabled {
		var publisher kafka.BatchPublisher
		if cfg.Analytics.Publish && cfg.Kafka.Enabled {
			producer := kafka.NewProducer(cfg.Kafka, cfg.Kafka.Topics.QueryEvents)
			defer producer.Close()
			publisher = producer
		}
		aggregator = analytics.NewAggregator()
		collector = analytics.NewCollector(aggregator, publisher, cfg.Analytics)
		handlerOpts = append(handlerOpts, handler.WithTracker(collector))
	}
	h := handler.New(engine, exec, suggester, queryCache, cfg.Search, m, handlerOpts...)

	checker := health.NewChecker()
	checker.Register("index", health.ReadyWhen(func() (bool, string) {
		idx := engine.Current()
		if idx == nil {
			return false, "no index installed"
		}
		return true, fmt.Sprintf("snapshot %d", idx.ID())
	}))
	var redisPing func(context.Context) error
	if redisClient != nil {
		redisPing = redisClient.Ping
	}
	checker.Register("redis", health.PingCheck(redisPing, health.StatusDegraded))

	mux := http.NewServeMux()
	h.Register(mux)
	if aggregator != nil {
		analytics.NewHandler(aggregator, collector, cfg.Analytics.TopN).Register(mux)
	}
	mux.HandleFunc("GET /health/live", checker.LiveHandler())
	mux.HandleFunc("GET /health/ready", checker.ReadyHandler())

	var limiter *ratelimit.Limiter
	if cfg.Server.RateLimit > 0 {
		limiter = ratelimit.New(cfg.Server.RateLimit, cfg.Server.RateLimitWindow)
	}

	var chain http.Handler = mux
	chain = middleware.Timeout(cfg.Server.WriteTimeout)(chain)
	chain = middleware.RateLimit(limiter)(chain)
	chain = middleware.CORS(middleware.DefaultCORSConfig(cfg.Server.CORSOrigins))(chain)
	chain = middleware.RequestID(chain)
	chain = middleware.Metrics(m)(chain)

	server := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      chain,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		slog.Info("search service listening", "addr", server.Addr)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})
	if cfg.Metrics.Enabled {
		g.Go(func() error {
			return metrics.Serve(gctx, cfg.Metrics.Port, prometheus.DefaultGatherer, cfg.Server.ShutdownTimeout)
		})
	}
	if collector != nil {
		g.Go(func() error { return collector.Run(gctx) })
	}
	if limiter != nil {
		g.Go(func() error {
			limiter.RunCleanup(gctx, 5*time.Minute)
			return nil
		})
	}
	if cfg.Kafka.Enabled {
		g.Go(func() error {
			return consumeSnapshotEvents(gctx, cfg, engine)
		})
	}
	if cfg.Indexer.WatchSnapshots {
		w, err := watcher.New(segment.ManifestPath(engine.SnapshotPrefix()), watcher.DefaultDebounce,
			func(context.Context) error {
				_, _, err := engine.Reload()
				return err
			})
		if err != nil {
			slog.Warn("snapshot watcher disabled", "error", err)
		} else {
			g.Go(func() error { return w.Run(gctx) })
		}
	}
	g.Go(func() error {
		<-gctx.Done()
		slog.Info("shutdown signal received")
		return shutdownWithin(cfg.Server.ShutdownTimeout, server.Shutdown)
	})
	return g.Wait()
}

// bootstrapIndex installs the configured snapshot, building and saving one
// from the corpus when none exists and buildMissing is set.
func bootstrapIndex(ctx context.Context, cfg *config.Config, engine *indexer.Engine, buildMissing bool) error {
	_, err := engine.Load("")
	if err == nil || !buildMissing || !apperrors.Is(err, apperrors.ErrSnapshotNotFound) {
		return err
	}
	slog.Info("no snapshot found, building from corpus", "source", cfg.Corpus.Source)
	records, stats, err := corpus.LoadConfigured(ctx, cfg)
	if err != nil {
		return fmt.Errorf("loading corpus: %w", err)
	}
	engine.RecordCorpusStats(stats)
	if _, err := engine.Build(records); err != nil {
		return fmt.Errorf("building index: %w", err)
	}
	if err := engine.Save(""); err != nil {
		return fmt.Errorf("saving snapshot: %w", err)
	}
	return nil
}

func consumeSnapshotEvents(ctx context.Context, cfg *config.Config, engine *indexer.Engine) error {
	// Every searcher must see every announcement, so each host gets its
	// own consumer group.
	host, err := os.Hostname()
	if err != nil {
		host = fmt.Sprintf("pid-%d", os.Getpid())
	}
	groupID := cfg.Kafka.ConsumerGroup + "-" + host
	kc := kafka.NewConsumer(cfg.Kafka, cfg.Kafka.Topics.IndexComplete, groupID, consumer.HandleMessage(engine))
	defer kc.Close()
	slog.Info("listening for snapshot events", "topic", cfg.Kafka.Topics.IndexComplete, "group", groupID)
	if err := consumer.New(kc).Start(ctx); err != nil && !errors.Is(err, context.Canceled) {
		return fmt.Errorf("snapshot consumer: %w", err)
	}
	return nil
}

// invalidateOnSwap clears cached results of the previous snapshot. It runs
// in the background so a slow Redis never holds up an install.
func invalidateOnSwap(qc *cache.QueryCache) indexer.SwapListener {
	return func(prev, next *index.Index) {
		if prev == nil {
			return
		}
		go func() {
			ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			if err := qc.Invalidate(ctx); err != nil {
				slog.Warn("cache invalidation after swap failed", "snapshot_id", next.ID(), "error", err)
			}
		}()
	}
}

func shutdownWithin(timeout time.Duration, shutdown func(context.Context) error) error {
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()
	if err := shutdown(ctx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	return nil
}
