// Package cache stores query and suggestion results in Redis. Keys carry
// the snapshot ID of the index that produced them, so an entry can never be
// served against a different index; Invalidate removes the stale ones.
package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"sync/atomic"
	"time"

	"github.com/cespare/xxhash/v2"
	"golang.org/x/sync/singleflight"

	"github.com/Adithya-Monish-Kumar-K/Symptom-Search-Platform/internal/searcher/executor"
	"github.com/Adithya-Monish-Kumar-K/Symptom-Search-Platform/pkg/config"
	"github.com/Adithya-Monish-Kumar-K/Symptom-Search-Platform/pkg/metrics"
	pkgredis "github.com/Adithya-Monish-Kumar-K/Symptom-Search-Platform/pkg/redis"
	"github.com/Adithya-Monish-Kumar-K/Symptom-Search-Platform/pkg/resilience"
)

const keyPrefix = "symptoms:"

// Kinds of cached results.
const (
	KindQuery   = "query"
	KindSuggest = "suggest"
)

// Store is the subset of *pkgredis.Client the cache uses. Get reports an
// absent key with pkgredis.Nil.
type Store interface {
	Get(ctx context.Context, key string) (string, error)
	Set(ctx context.Context, key string, value any, ttl time.Duration) error
	FlushByPattern(ctx context.Context, pattern string) (int64, error)
}

type Option func(*QueryCache)

func WithMetrics(m *metrics.Metrics) Option {
	return func(c *QueryCache) { c.metrics = m }
}

// WithBreaker routes every store call through cb. While cb is open the
// cache behaves as if empty and results are computed directly.
func WithBreaker(cb *resilience.CircuitBreaker) Option {
	return func(c *QueryCache) { c.breaker = cb }
}

type QueryCache struct {
	store   Store
	ttl     time.Duration
	group   singleflight.Group
	breaker *resilience.CircuitBreaker
	metrics *metrics.Metrics
	logger  *slog.Logger
	hits    atomic.Int64
	misses  atomic.Int64
}

func New(store Store, cfg config.RedisConfig, opts ...Option) *QueryCache {
	c := &QueryCache{
		store:  store,
		ttl:    cfg.CacheTTL,
		logger: slog.Default().With("component", "query-cache"),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// NewBreaker returns a breaker suited to the cache: key misses do not count
// as failures.
func NewBreaker() *resilience.CircuitBreaker {
	return resilience.NewCircuitBreaker("redis-cache", resilience.BreakerConfig{
		FailureThreshold: 5,
		ResetTimeout:     30 * time.Second,
		IsFailure:        func(err error) bool { return !pkgredis.IsNilError(err) },
	})
}

// Key identifies one result set. symptoms must already be normalized; their
// order is part of the key.
func Key(kind string, snapshotID int64, symptoms []string, n int) string {
	d := xxhash.New()
	for _, s := range symptoms {
		d.WriteString(s)
		d.Write([]byte{0x1f})
	}
	d.WriteString(strconv.Itoa(n))
	return fmt.Sprintf("%s%s:%d:%016x", keyPrefix, kind, snapshotID, d.Sum64())
}

// Queries returns the cached ranking for symptoms or computes and stores
// it. The bool reports a cache hit.
func (c *QueryCache) Queries(
	ctx context.Context,
	snapshotID int64,
	symptoms []string,
	topK int,
	compute func() ([]executor.QueryResult, error),
) ([]executor.QueryResult, bool, error) {
	return getOrCompute(ctx, c, Key(KindQuery, snapshotID, symptoms, topK), compute)
}

// Suggestions is Queries for follow-up symptom suggestions.
func (c *QueryCache) Suggestions(
	ctx context.Context,
	snapshotID int64,
	symptoms []string,
	topDiseases int,
	compute func() ([]string, error),
) ([]string, bool, error) {
	return getOrCompute(ctx, c, Key(KindSuggest, snapshotID, symptoms, topDiseases), compute)
}

// getOrCompute collapses concurrent misses on the same key into one
// compute call. Errors are never cached.
func getOrCompute[T any](ctx context.Context, c *QueryCache, key string, compute func() (T, error)) (T, bool, error) {
	var v T
	if c.get(ctx, key, &v) {
		return v, true, nil
	}
	res, err, _ := c.group.Do(key, func() (any, error) {
		var cached T
		if c.lookup(ctx, key, &cached) {
			return cached, nil
		}
		fresh, err := compute()
		if err != nil {
			return nil, err
		}
		c.set(ctx, key, fresh)
		return fresh, nil
	})
	if err != nil {
		var zero T
		return zero, false, err
	}
	return res.(T), false, nil
}

// get is lookup plus hit/miss accounting.
func (c *QueryCache) get(ctx context.Context, key string, v any) bool {
	ok := c.lookup(ctx, key, v)
	if ok {
		c.hits.Add(1)
		if c.metrics != nil {
			c.metrics.CacheHitsTotal.Inc()
		}
		c.logger.Debug("cache hit", "key", key)
	} else {
		c.misses.Add(1)
		if c.metrics != nil {
			c.metrics.CacheMissesTotal.Inc()
		}
	}
	return ok
}

func (c *QueryCache) lookup(ctx context.Context, key string, v any) bool {
	var data string
	err := c.call(func() error {
		var err error
		data, err = c.store.Get(ctx, key)
		return err
	})
	if err != nil {
		if !pkgredis.IsNilError(err) && !errors.Is(err, resilience.ErrCircuitOpen) {
			c.logger.Warn("cache get failed", "key", key, "error", err)
		}
		return false
	}
	if err := json.Unmarshal([]byte(data), v); err != nil {
		c.logger.Error("cache unmarshal failed", "key", key, "error", err)
		return false
	}
	return true
}

func (c *QueryCache) set(ctx context.Context, key string, v any) {
	data, err := json.Marshal(v)
	if err != nil {
		c.logger.Error("cache marshal failed", "key", key, "error", err)
		return
	}
	err = c.call(func() error {
		return c.store.Set(ctx, key, data, c.ttl)
	})
	if err != nil && !errors.Is(err, resilience.ErrCircuitOpen) {
		c.logger.Warn("cache set failed", "key", key, "error", err)
	}
}

func (c *QueryCache) call(fn func() error) error {
	if c.breaker == nil {
		return fn()
	}
	return c.breaker.Execute(fn)
}

// Invalidate deletes every cached entry.
func (c *QueryCache) Invalidate(ctx context.Context) error {
	var deleted int64
	err := c.call(func() error {
		var err error
		deleted, err = c.store.FlushByPattern(ctx, keyPrefix+"*")
		return err
	})
	if err != nil {
		return fmt.Errorf("invalidating cache: %w", err)
	}
	c.logger.Info("cache invalidated", "keys_deleted", deleted)
	return nil
}

// Stats are hit and miss counts since start.
func (c *QueryCache) Stats() (hits, misses int64) {
	return c.hits.Load(), c.misses.Load()
}
