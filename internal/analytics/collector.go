package analytics

import (
	"context"
	"log/slog"
	"strconv"
	"sync/atomic"
	"time"

	"github.com/Adithya-Monish-Kumar-K/Symptom-Search-Platform/pkg/config"
	"github.com/Adithya-Monish-Kumar-K/Symptom-Search-Platform/pkg/kafka"
)

// Collector takes events off the request path. Run feeds them to the
// aggregator and, with a publisher, flushes them to Kafka when a batch fills
// or the flush interval passes.
type Collector struct {
	aggregator    *Aggregator
	publisher     kafka.BatchPublisher
	events        chan QueryEvent
	batchSize     int
	flushInterval time.Duration
	pending       []kafka.Event
	failing       bool
	dropped       atomic.Int64
	logger        *slog.Logger
}

// NewCollector builds a collector. publisher may be nil.
func NewCollector(agg *Aggregator, publisher kafka.BatchPublisher, cfg config.AnalyticsConfig) *Collector {
	if cfg.BufferSize <= 0 {
		cfg.BufferSize = 10000
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = 100
	}
	if cfg.FlushInterval <= 0 {
		cfg.FlushInterval = 5 * time.Second
	}
	return &Collector{
		aggregator:    agg,
		publisher:     publisher,
		events:        make(chan QueryEvent, cfg.BufferSize),
		batchSize:     cfg.BatchSize,
		flushInterval: cfg.FlushInterval,
		logger:        slog.Default().With("component", "analytics-collector"),
	}
}

// Track enqueues ev without blocking. Events are dropped while the buffer
// is full.
func (c *Collector) Track(ev QueryEvent) {
	select {
	case c.events <- ev:
	default:
		if c.dropped.Add(1)%1000 == 1 {
			c.logger.Warn("analytics buffer full, dropping events", "dropped_total", c.dropped.Load())
		}
	}
}

func (c *Collector) Dropped() int64 {
	return c.dropped.Load()
}

// Run consumes events until ctx is done, then drains the buffer and makes a
// last flush bounded by five seconds.
func (c *Collector) Run(ctx context.Context) error {
	ticker := time.NewTicker(c.flushInterval)
	defer ticker.Stop()
	c.logger.Info("analytics collector started",
		"buffer_size", cap(c.events),
		"batch_size", c.batchSize,
		"publishing", c.publisher != nil,
	)
	for {
		select {
		case ev := <-c.events:
			c.handle(ctx, ev)
		case <-ticker.C:
			c.flush(ctx)
		case <-ctx.Done():
			c.drain()
			return nil
		}
	}
}

func (c *Collector) handle(ctx context.Context, ev QueryEvent) {
	c.aggregator.Record(ev)
	if c.publisher == nil {
		return
	}
	c.pending = append(c.pending, kafka.Event{
		Key:   strconv.FormatInt(ev.SnapshotID, 10),
		Value: ev,
	})
	// While the broker is failing only the ticker retries.
	if len(c.pending) >= c.batchSize && !c.failing {
		c.flush(ctx)
	}
}

func (c *Collector) drain() {
	flushCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	for {
		select {
		case ev := <-c.events:
			c.handle(flushCtx, ev)
		default:
			c.flush(flushCtx)
			return
		}
	}
}

// flush publishes pending events. A failed batch is kept for the next flush,
// up to three batches' worth.
func (c *Collector) flush(ctx context.Context) {
	if c.publisher == nil || len(c.pending) == 0 {
		return
	}
	if err := c.publisher.PublishBatch(ctx, c.pending); err != nil {
		c.failing = true
		c.logger.Error("analytics flush failed", "events", len(c.pending), "error", err)
		if limit := c.batchSize * 3; len(c.pending) > limit {
			dropped := len(c.pending) - limit
			c.pending = append(c.pending[:0], c.pending[dropped:]...)
			c.dropped.Add(int64(dropped))
			c.logger.Warn("analytics backlog trimmed", "dropped", dropped)
		}
		return
	}
	c.failing = false
	c.logger.Debug("analytics batch flushed", "events", len(c.pending))
	c.pending = c.pending[:0]
}
