package executor

import (
	"log/slog"
	"net/http"
	"sort"
	"strings"
	"time"

	"github.com/Adithya-Monish-Kumar-K/Symptom-Search-Platform/internal/indexer/index"
	"github.com/Adithya-Monish-Kumar-K/Symptom-Search-Platform/internal/indexer/tokenizer"
	"github.com/Adithya-Monish-Kumar-K/Symptom-Search-Platform/internal/searcher/ranker"
	apperrors "github.com/Adithya-Monish-Kumar-K/Symptom-Search-Platform/pkg/errors"
	"github.com/Adithya-Monish-Kumar-K/Symptom-Search-Platform/pkg/metrics"
)

// QueryResult is one ranked disease. Score is rounded to 4 decimals and the
// ratios to 3.
type QueryResult struct {
	Disease         string   `json:"disease"`
	Score           float64  `json:"score"`
	MatchedSymptoms []string `json:"matched_symptoms"`
	AllSymptoms     []string `json:"all_symptoms"`
	MatchRatio      float64  `json:"match_ratio"`
	CoverageRatio   float64  `json:"coverage_ratio"`
	TotalSymptoms   int      `json:"total_symptoms"`
}

// IndexSource hands out the installed index. *indexer.Engine implements it.
type IndexSource interface {
	Current() *index.Index
}

type Option func(*Executor)

func WithWeights(w ranker.Weights) Option {
	return func(e *Executor) { e.weights = w }
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(e *Executor) { e.metrics = m }
}

// Executor answers symptom queries against whatever index source currently
// holds. It keeps no per-query state and is safe for concurrent use.
type Executor struct {
	source  IndexSource
	weights ranker.Weights
	metrics *metrics.Metrics
	logger  *slog.Logger
}

func New(source IndexSource, opts ...Option) *Executor {
	e := &Executor{
		source:  source,
		weights: ranker.DefaultWeights(),
		logger:  slog.Default().With("component", "query-executor"),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Weights returns the scoring constants in use.
func (e *Executor) Weights() ranker.Weights {
	return e.weights
}

// Query ranks diseases for symptoms and returns at most topK of them. The
// installed index is read once, so a concurrent swap never mixes two
// snapshots within one call.
func (e *Executor) Query(symptoms []string, topK int) ([]QueryResult, error) {
	return e.QueryIndex(e.source.Current(), symptoms, topK)
}

// QueryIndex is Query against a specific index.
func (e *Executor) QueryIndex(idx *index.Index, symptoms []string, topK int) ([]QueryResult, error) {
	start := time.Now()
	results, outcome, err := e.query(idx, symptoms, topK)
	if e.metrics != nil {
		e.metrics.QueriesTotal.WithLabelValues(outcome).Inc()
		if err == nil {
			e.metrics.QueryResultsCount.Observe(float64(len(results)))
		}
	}
	e.logger.Debug("query executed",
		"symptoms", symptoms,
		"top_k", topK,
		"results", len(results),
		"outcome", outcome,
		"duration_us", time.Since(start).Microseconds(),
	)
	return results, err
}

func (e *Executor) query(idx *index.Index, symptoms []string, topK int) ([]QueryResult, string, error) {
	if topK <= 0 {
		return nil, "error", apperrors.Newf(apperrors.ErrInvalidInput, http.StatusBadRequest, "top_k must be positive, got %d", topK)
	}
	input := tokenizer.NormalizeAll(symptoms)
	if len(input) == 0 {
		return []QueryResult{}, "empty_input", nil
	}
	if !idx.Fitted() {
		return nil, "error", apperrors.ErrIndexNotBuilt
	}

	exact := exactScores(idx, input)
	combo := comboScores(idx, input, e.weights)
	semantic := semanticScores(idx, input, e.weights)

	ranked := ranker.Rank(ranker.Combine(exact, combo, semantic, e.weights), topK)
	distinct := tokenizer.Unique(input)
	results := make([]QueryResult, 0, len(ranked))
	for _, r := range ranked {
		results = append(results, format(idx, r, distinct, len(input)))
	}
	if len(results) == 0 {
		return results, "zero_result", nil
	}
	return results, "ok", nil
}

// exactScores sums freq(s, d) * idf(s) over input symptoms s known to the
// index. A repeated symptom is summed once per occurrence.
func exactScores(idx *index.Index, input []string) map[string]float64 {
	scores := make(map[string]float64)
	for _, s := range input {
		postings, idf, ok := idx.Postings(s)
		if !ok {
			continue
		}
		for _, p := range postings {
			scores[p.Disease] += float64(p.Frequency) * idf
		}
	}
	return scores
}

// comboScores adds boosted co-occurrence scores for every 2-subset of the
// input positions, and every 3-subset when there are at least three. A subset
// naming one symptom twice matches no entry.
func comboScores(idx *index.Index, input []string, w ranker.Weights) map[string]float64 {
	scores := make(map[string]float64)
	add := func(boost float64, symptoms ...string) {
		postings, ok := idx.Combination(index.MakeComboKey(symptoms...))
		if !ok {
			return
		}
		for _, p := range postings {
			scores[p.Disease] += float64(p.Frequency) * boost
		}
	}
	n := len(input)
	for i := 0; i < n; i++ {
		for j := i + 1; j < n; j++ {
			add(w.PairBoost, input[i], input[j])
		}
	}
	for i := 0; i < n; i++ {
		for j := i + 1; j < n; j++ {
			for k := j + 1; k < n; k++ {
				add(w.TripleBoost, input[i], input[j], input[k])
			}
		}
	}
	return scores
}

// semanticScores compares the bag of input words against every disease row
// and keeps similarities above the threshold, scaled.
func semanticScores(idx *index.Index, input []string, w ranker.Weights) map[string]float64 {
	space := idx.Space()
	sims := space.Similarities(strings.Join(input, " "))
	scores := make(map[string]float64)
	for i, sim := range sims {
		if sim > w.SemanticThreshold {
			scores[space.Name(i)] = sim * w.SemanticScale
		}
	}
	return scores
}

// format fills the result for r. distinct is the input without repeats;
// inputLen counts repeats and is the coverage denominator.
func format(idx *index.Index, r ranker.ScoredDisease, distinct []string, inputLen int) QueryResult {
	all := idx.DiseaseSymptoms(r.Disease)
	matched := make([]string, 0, len(distinct))
	for _, s := range distinct {
		if idx.HasSymptom(r.Disease, s) {
			matched = append(matched, s)
		}
	}
	sort.Strings(matched)
	return QueryResult{
		Disease:         r.Disease,
		Score:           ranker.Round(r.Score, 4),
		MatchedSymptoms: matched,
		AllSymptoms:     all,
		MatchRatio:      ranker.Round(ranker.Ratio(len(matched), len(all)), 3),
		CoverageRatio:   ranker.Round(ranker.Ratio(len(matched), inputLen), 3),
		TotalSymptoms:   len(all),
	}
}
