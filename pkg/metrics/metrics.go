// Package metrics defines the Prometheus metric collectors used by the index
// engine and the serving layer, and the scrape server.
package metrics

import "github.com/prometheus/client_golang/prometheus"

// Metrics holds all Prometheus collectors for the platform.
type Metrics struct {
	HTTPRequestsTotal    *prometheus.CounterVec
	HTTPRequestDuration  *prometheus.HistogramVec
	HTTPRequestsInFlight prometheus.Gauge
	QueriesTotal         *prometheus.CounterVec
	QueryLatency         *prometheus.HistogramVec
	QueryResultsCount    prometheus.Histogram
	SuggestionsTotal     *prometheus.CounterVec
	CacheHitsTotal       prometheus.Counter
	CacheMissesTotal     prometheus.Counter
	IndexBuildDuration   prometheus.Histogram
	IndexEntries         *prometheus.GaugeVec
	SnapshotOpsTotal     *prometheus.CounterVec
	CorpusRowsTotal      *prometheus.CounterVec
}

// New creates all collectors and registers them on reg. Passing
// prometheus.DefaultRegisterer exposes them through Handler.
func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		HTTPRequestsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "http_requests_total",
				Help: "Total number of HTTP requests by method, path, and status.",
			},
			[]string{"method", "path", "status"},
		),
		HTTPRequestDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "http_request_duration_seconds",
				Help:    "HTTP request latency in seconds.",
				Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5},
			},
			[]string{"method", "path"},
		),
		HTTPRequestsInFlight: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "http_requests_in_flight",
				Help: "Number of HTTP requests currently being processed.",
			},
		),
		QueriesTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "symptom_queries_total",
				Help: "Total disease queries by outcome (ok, empty_input, zero_result, error).",
			},
			[]string{"outcome"},
		),
		QueryLatency: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "symptom_query_latency_seconds",
				Help:    "Disease query latency in seconds.",
				Buckets: []float64{0.0001, 0.0005, 0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25},
			},
			[]string{"cache_status"},
		),
		QueryResultsCount: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "symptom_query_results_count",
				Help:    "Number of diseases returned per query.",
				Buckets: []float64{0, 1, 3, 5, 10, 25, 50, 100},
			},
		),
		SuggestionsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "symptom_suggestions_total",
				Help: "Total follow-up suggestion requests by outcome.",
			},
			[]string{"outcome"},
		),
		CacheHitsTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "cache_hits_total",
				Help: "Total number of query cache hits.",
			},
		),
		CacheMissesTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "cache_misses_total",
				Help: "Total number of query cache misses.",
			},
		),
		IndexBuildDuration: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "index_build_duration_seconds",
				Help:    "Wall time of a full index build.",
				Buckets: prometheus.ExponentialBuckets(0.01, 4, 8),
			},
		),
		IndexEntries: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "index_entries",
				Help: "Entries in the installed index by kind (diseases, symptoms, combinations, vocabulary).",
			},
			[]string{"kind"},
		),
		SnapshotOpsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "index_snapshot_operations_total",
				Help: "Snapshot save/load operations by op and status.",
			},
			[]string{"op", "status"},
		),
		CorpusRowsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "corpus_rows_total",
				Help: "Corpus rows read by the loader, by result (kept, skipped).",
			},
			[]string{"result"},
		),
	}

	reg.MustRegister(
		m.HTTPRequestsTotal,
		m.HTTPRequestDuration,
		m.HTTPRequestsInFlight,
		m.QueriesTotal,
		m.QueryLatency,
		m.QueryResultsCount,
		m.SuggestionsTotal,
		m.CacheHitsTotal,
		m.CacheMissesTotal,
		m.IndexBuildDuration,
		m.IndexEntries,
		m.SnapshotOpsTotal,
		m.CorpusRowsTotal,
	)

	return m
}
