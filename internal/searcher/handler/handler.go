// Package handler exposes the query, suggestion, spelling, stats and reload
// operations over HTTP.
package handler

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/Adithya-Monish-Kumar-K/Symptom-Search-Platform/internal/analytics"
	"github.com/Adithya-Monish-Kumar-K/Symptom-Search-Platform/internal/indexer/index"
	"github.com/Adithya-Monish-Kumar-K/Symptom-Search-Platform/internal/searcher/cache"
	"github.com/Adithya-Monish-Kumar-K/Symptom-Search-Platform/internal/searcher/executor"
	"github.com/Adithya-Monish-Kumar-K/Symptom-Search-Platform/internal/searcher/parser"
	"github.com/Adithya-Monish-Kumar-K/Symptom-Search-Platform/internal/searcher/ranker"
	"github.com/Adithya-Monish-Kumar-K/Symptom-Search-Platform/internal/searcher/suggest"
	"github.com/Adithya-Monish-Kumar-K/Symptom-Search-Platform/pkg/config"
	apperrors "github.com/Adithya-Monish-Kumar-K/Symptom-Search-Platform/pkg/errors"
	"github.com/Adithya-Monish-Kumar-K/Symptom-Search-Platform/pkg/logger"
	"github.com/Adithya-Monish-Kumar-K/Symptom-Search-Platform/pkg/metrics"
	"github.com/Adithya-Monish-Kumar-K/Symptom-Search-Platform/pkg/resilience"
)

const defaultCorrectLimit = 5

// IndexEngine is the part of *indexer.Engine the handlers use.
type IndexEngine interface {
	Current() *index.Index
	Reload() (*index.Index, bool, error)
	Stats() (index.Summary, error)
}

type QueryResponse struct {
	Symptoms   []string               `json:"symptoms"`
	TopK       int                    `json:"top_k"`
	SnapshotID int64                  `json:"snapshot_id"`
	Results    []executor.QueryResult `json:"results"`
	CacheHit   bool                   `json:"cache_hit"`
}

type SuggestResponse struct {
	Symptoms    []string `json:"symptoms"`
	Suggestions []string `json:"suggestions"`
	CacheHit    bool     `json:"cache_hit"`
}

type CorrectResponse struct {
	Query   string   `json:"query"`
	Matches []string `json:"matches"`
}

type StatsResponse struct {
	SnapshotID int64          `json:"snapshot_id"`
	Summary    index.Summary  `json:"summary"`
	Weights    ranker.Weights `json:"weights"`
}

type ReloadResponse struct {
	SnapshotID int64 `json:"snapshot_id"`
	Changed    bool  `json:"changed"`
}

// Tracker receives one event per answered query or suggestion request.
// *analytics.Collector implements it.
type Tracker interface {
	Track(analytics.QueryEvent)
}

type Option func(*Handler)

func WithTracker(t Tracker) Option {
	return func(h *Handler) { h.tracker = t }
}

type Handler struct {
	engine    IndexEngine
	executor  *executor.Executor
	suggester *suggest.Suggester
	cache     *cache.QueryCache
	cfg       config.SearchConfig
	metrics   *metrics.Metrics
	tracker   Tracker
	logger    *slog.Logger
}

// New wires the handlers. queryCache and m may be nil.
func New(
	engine IndexEngine,
	exec *executor.Executor,
	suggester *suggest.Suggester,
	queryCache *cache.QueryCache,
	cfg config.SearchConfig,
	m *metrics.Metrics,
	opts ...Option,
) *Handler {
	h := &Handler{
		engine:    engine,
		executor:  exec,
		suggester: suggester,
		cache:     queryCache,
		cfg:       cfg,
		metrics:   m,
		logger:    slog.Default().With("component", "search-handler"),
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// Register mounts every route on mux.
func (h *Handler) Register(mux *http.ServeMux) {
	mux.HandleFunc("GET /api/v1/query", h.Query)
	mux.HandleFunc("GET /api/v1/suggest", h.Suggest)
	mux.HandleFunc("GET /api/v1/symptoms/correct", h.Correct)
	mux.HandleFunc("GET /api/v1/stats", h.Stats)
	mux.HandleFunc("POST /api/v1/index/reload", h.Reload)
	mux.HandleFunc("GET /api/v1/cache/stats", h.CacheStats)
}

// Query serves GET /api/v1/query?symptoms=a,b&top_k=5.
func (h *Handler) Query(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	ctx := r.Context()
	log := logger.FromContext(ctx)

	symptoms := parser.ParseAll(r.URL.Query()["symptoms"])
	topK, err := intParam(r, "top_k", h.cfg.DefaultTopK)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	if h.cfg.MaxTopK > 0 && topK > h.cfg.MaxTopK {
		topK = h.cfg.MaxTopK
	}

	idx := h.engine.Current()
	var (
		results  []executor.QueryResult
		cacheHit bool
		status   = "bypass"
	)
	err = resilience.WithTimeout(ctx, h.cfg.QueryTimeout, "query", func(ctx context.Context) error {
		compute := func() ([]executor.QueryResult, error) {
			return h.executor.QueryIndex(idx, symptoms, topK)
		}
		if !h.cacheable(idx, symptoms, topK) {
			res, err := compute()
			results = res
			return err
		}
		res, hit, err := h.cache.Queries(ctx, idx.ID(), symptoms, topK, compute)
		results, cacheHit = res, hit
		status = "miss"
		if hit {
			status = "hit"
		}
		return err
	})
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	if h.metrics != nil {
		h.metrics.QueryLatency.WithLabelValues(status).Observe(time.Since(start).Seconds())
	}

	event := analytics.QueryEvent{
		Kind:     analytics.KindQuery,
		Symptoms: symptoms,
		TopK:     topK,
		Results:  len(results),
		CacheHit: cacheHit,
	}
	if len(results) > 0 {
		event.TopDisease = results[0].Disease
	}
	h.track(ctx, idx, start, event)

	log.Info("query served",
		"symptoms", len(symptoms),
		"top_k", topK,
		"results", len(results),
		"cache", status,
		"latency_ms", time.Since(start).Milliseconds(),
	)
	h.writeJSON(w, http.StatusOK, QueryResponse{
		Symptoms:   symptoms,
		TopK:       topK,
		SnapshotID: snapshotID(idx),
		Results:    results,
		CacheHit:   cacheHit,
	})
}

// Suggest serves GET /api/v1/suggest?symptoms=a,b&top=5.
func (h *Handler) Suggest(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	ctx := r.Context()
	current := parser.ParseAll(r.URL.Query()["symptoms"])
	top, err := intParam(r, "top", h.cfg.SuggestTopDiseases)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	if h.cfg.MaxTopK > 0 && top > h.cfg.MaxTopK {
		top = h.cfg.MaxTopK
	}

	idx := h.engine.Current()
	var (
		out      []string
		cacheHit bool
	)
	err = resilience.WithTimeout(ctx, h.cfg.QueryTimeout, "suggest", func(ctx context.Context) error {
		compute := func() ([]string, error) {
			return h.suggester.SuggestIndex(idx, current, top)
		}
		if !h.cacheable(idx, current, top) {
			res, err := compute()
			out = res
			return err
		}
		res, hit, err := h.cache.Suggestions(ctx, idx.ID(), current, top, compute)
		out, cacheHit = res, hit
		return err
	})
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	h.track(ctx, idx, start, analytics.QueryEvent{
		Kind:     analytics.KindSuggest,
		Symptoms: current,
		TopK:     top,
		Results:  len(out),
		CacheHit: cacheHit,
	})
	h.writeJSON(w, http.StatusOK, SuggestResponse{
		Symptoms:    current,
		Suggestions: out,
		CacheHit:    cacheHit,
	})
}

// Correct serves GET /api/v1/symptoms/correct?q=feaver&limit=5.
func (h *Handler) Correct(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query().Get("q")
	limit, err := intParam(r, "limit", defaultCorrectLimit)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	matches, err := h.suggester.Correct(q, limit)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	h.writeJSON(w, http.StatusOK, CorrectResponse{Query: q, Matches: matches})
}

func (h *Handler) Stats(w http.ResponseWriter, r *http.Request) {
	idx := h.engine.Current()
	summary, err := h.engine.Stats()
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	h.writeJSON(w, http.StatusOK, StatsResponse{
		SnapshotID: snapshotID(idx),
		Summary:    summary,
		Weights:    h.executor.Weights(),
	})
}

// Reload installs the snapshot on disk if it differs from the served one.
func (h *Handler) Reload(w http.ResponseWriter, r *http.Request) {
	idx, changed, err := h.engine.Reload()
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	logger.FromContext(r.Context()).Info("reload requested",
		"snapshot_id", idx.ID(),
		"changed", changed,
	)
	h.writeJSON(w, http.StatusOK, ReloadResponse{SnapshotID: idx.ID(), Changed: changed})
}

func (h *Handler) CacheStats(w http.ResponseWriter, r *http.Request) {
	if h.cache == nil {
		h.writeJSON(w, http.StatusOK, map[string]string{"status": "disabled"})
		return
	}

	hits, misses := h.cache.Stats()
	total := hits + misses
	var hitRate float64
	if total > 0 {
		hitRate = float64(hits) / float64(total) * 100
	}

	h.writeJSON(w, http.StatusOK, map[string]any{
		"hits":     hits,
		"misses":   misses,
		"total":    total,
		"hit_rate": fmt.Sprintf("%.1f%%", hitRate),
	})
}

func (h *Handler) track(ctx context.Context, idx *index.Index, start time.Time, ev analytics.QueryEvent) {
	if h.tracker == nil {
		return
	}
	ev.SnapshotID = snapshotID(idx)
	ev.LatencyMs = time.Since(start).Milliseconds()
	ev.RequestID = logger.RequestID(ctx)
	ev.Timestamp = time.Now().UTC()
	h.tracker.Track(ev)
}

// cacheable excludes requests whose answer does not depend on the index
// contents, and requests the executor will reject.
func (h *Handler) cacheable(idx *index.Index, symptoms []string, n int) bool {
	return h.cache != nil && idx.Fitted() && len(symptoms) > 0 && n > 0
}

func snapshotID(idx *index.Index) int64 {
	if idx == nil {
		return 0
	}
	return idx.ID()
}

func intParam(r *http.Request, name string, fallback int) (int, error) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return fallback, nil
	}
	v, err := strconv.Atoi(raw)
	if err != nil || v < 1 {
		return 0, apperrors.Newf(apperrors.ErrInvalidInput, http.StatusBadRequest, "%s must be a positive integer, got %q", name, raw)
	}
	return v, nil
}

func (h *Handler) writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		h.logger.Error("failed to write response", "error", err)
	}
}

func (h *Handler) writeError(w http.ResponseWriter, r *http.Request, err error) {
	status := apperrors.HTTPStatusCode(err)
	log := logger.FromContext(r.Context())
	message := err.Error()
	if status >= http.StatusInternalServerError && status != http.StatusServiceUnavailable {
		log.Error("request failed", "path", r.URL.Path, "error", err)
		message = "internal error"
	} else {
		log.Warn("request rejected", "path", r.URL.Path, "status", status, "error", err)
	}
	h.writeJSON(w, status, map[string]string{"error": message})
}
