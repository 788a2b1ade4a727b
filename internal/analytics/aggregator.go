package analytics

import (
	"context"
	"log/slog"
	"sort"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/Adithya-Monish-Kumar-K/Symptom-Search-Platform/internal/indexer/tokenizer"
	"github.com/Adithya-Monish-Kumar-K/Symptom-Search-Platform/pkg/kafka"
)

// maxLatencySamples bounds the latency window used for percentiles.
const maxLatencySamples = 10000

type Stats struct {
	Queries           int64   `json:"queries"`
	Suggestions       int64   `json:"suggestions"`
	CacheHits         int64   `json:"cache_hits"`
	CacheMisses       int64   `json:"cache_misses"`
	ZeroResults       int64   `json:"zero_results"`
	AvgLatencyMs      float64 `json:"avg_latency_ms"`
	P50LatencyMs      int64   `json:"p50_latency_ms"`
	P95LatencyMs      int64   `json:"p95_latency_ms"`
	P99LatencyMs      int64   `json:"p99_latency_ms"`
	TopSymptoms       []Count `json:"top_symptoms"`
	TopDiseases       []Count `json:"top_diseases"`
	ZeroResultQueries []Count `json:"zero_result_queries"`
	QueriesPerMinute  float64 `json:"queries_per_minute"`
}

type Count struct {
	Name  string `json:"name"`
	Count int64  `json:"count"`
}

// Aggregator keeps running totals over query events. It is safe for
// concurrent use.
type Aggregator struct {
	queries     atomic.Int64
	suggestions atomic.Int64
	cacheHits   atomic.Int64
	cacheMisses atomic.Int64
	zeroResults atomic.Int64

	mu          sync.RWMutex
	latencies   []int64
	next        int
	symptoms    map[string]int64
	diseases    map[string]int64
	zeroQueries map[string]int64
	started     time.Time
	now         func() time.Time
}

func NewAggregator() *Aggregator {
	return &Aggregator{
		latencies:   make([]int64, 0, 1024),
		symptoms:    make(map[string]int64),
		diseases:    make(map[string]int64),
		zeroQueries: make(map[string]int64),
		started:     time.Now(),
		now:         time.Now,
	}
}

func (a *Aggregator) Record(ev QueryEvent) {
	if ev.Kind == KindSuggest {
		a.suggestions.Add(1)
	} else {
		a.queries.Add(1)
	}
	if ev.CacheHit {
		a.cacheHits.Add(1)
	} else {
		a.cacheMisses.Add(1)
	}
	zero := ev.Results == 0 && len(ev.Symptoms) > 0
	if zero {
		a.zeroResults.Add(1)
	}

	a.mu.Lock()
	defer a.mu.Unlock()
	if len(a.latencies) < maxLatencySamples {
		a.latencies = append(a.latencies, ev.LatencyMs)
	} else {
		a.latencies[a.next] = ev.LatencyMs
		a.next = (a.next + 1) % maxLatencySamples
	}
	// A symptom repeated within one query counts once.
	for _, s := range tokenizer.Unique(ev.Symptoms) {
		a.symptoms[s]++
	}
	if ev.TopDisease != "" {
		a.diseases[ev.TopDisease]++
	}
	if zero {
		a.zeroQueries[strings.Join(ev.Symptoms, ",")]++
	}
}

// Stats summarizes everything recorded so far, listing at most topN entries
// per ranking.
func (a *Aggregator) Stats(topN int) Stats {
	stats := Stats{
		Queries:     a.queries.Load(),
		Suggestions: a.suggestions.Load(),
		CacheHits:   a.cacheHits.Load(),
		CacheMisses: a.cacheMisses.Load(),
		ZeroResults: a.zeroResults.Load(),
	}

	a.mu.RLock()
	sorted := append([]int64(nil), a.latencies...)
	stats.TopSymptoms = topCounts(a.symptoms, topN)
	stats.TopDiseases = topCounts(a.diseases, topN)
	stats.ZeroResultQueries = topCounts(a.zeroQueries, topN)
	elapsed := a.now().Sub(a.started).Minutes()
	a.mu.RUnlock()

	if len(sorted) > 0 {
		sort.Slice(sorted, func(i, j int) bool { return sorted[i] < sorted[j] })
		var sum int64
		for _, l := range sorted {
			sum += l
		}
		stats.AvgLatencyMs = float64(sum) / float64(len(sorted))
		stats.P50LatencyMs = percentile(sorted, 50)
		stats.P95LatencyMs = percentile(sorted, 95)
		stats.P99LatencyMs = percentile(sorted, 99)
	}
	if elapsed > 0 {
		stats.QueriesPerMinute = float64(stats.Queries) / elapsed
	}
	return stats
}

func percentile(sorted []int64, pct int) int64 {
	if len(sorted) == 0 {
		return 0
	}
	idx := (pct * len(sorted)) / 100
	if idx >= len(sorted) {
		idx = len(sorted) - 1
	}
	return sorted[idx]
}

// topCounts orders by count descending, then name ascending.
func topCounts(counts map[string]int64, n int) []Count {
	out := make([]Count, 0, len(counts))
	for name, c := range counts {
		out = append(out, Count{Name: name, Count: c})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Count != out[j].Count {
			return out[i].Count > out[j].Count
		}
		return out[i].Name < out[j].Name
	})
	if n > 0 && len(out) > n {
		out = out[:n]
	}
	return out
}

// HandleMessage records query events read from Kafka. Undecodable messages
// are logged and acknowledged.
func HandleMessage(agg *Aggregator) kafka.MessageHandler {
	logger := slog.Default().With("component", "analytics-aggregator")
	return func(ctx context.Context, key []byte, value []byte) error {
		ev, err := kafka.DecodeJSON[QueryEvent](value)
		if err != nil {
			logger.Error("failed to decode query event", "error", err, "key", string(key))
			return nil
		}
		agg.Record(ev)
		return nil
	}
}
