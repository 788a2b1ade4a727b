// Package suggest proposes follow-up symptoms to ask about, and corrects
// misspelled symptoms against the index vocabulary.
package suggest

import (
	"log/slog"
	"net/http"
	"sort"

	"github.com/hbollon/go-edlib"

	"github.com/Adithya-Monish-Kumar-K/Symptom-Search-Platform/internal/indexer/index"
	"github.com/Adithya-Monish-Kumar-K/Symptom-Search-Platform/internal/indexer/tokenizer"
	"github.com/Adithya-Monish-Kumar-K/Symptom-Search-Platform/internal/searcher/executor"
	apperrors "github.com/Adithya-Monish-Kumar-K/Symptom-Search-Platform/pkg/errors"
	"github.com/Adithya-Monish-Kumar-K/Symptom-Search-Platform/pkg/metrics"
)

const (
	DefaultMaxSuggestions    = 10
	DefaultSpellingThreshold = 0.85
)

type Option func(*Suggester)

// WithMaxSuggestions caps the length of Suggest's result.
func WithMaxSuggestions(n int) Option {
	return func(s *Suggester) {
		if n > 0 {
			s.maxSuggestions = n
		}
	}
}

// WithSpellingThreshold sets the minimum Jaro-Winkler similarity for Correct.
func WithSpellingThreshold(t float64) Option {
	return func(s *Suggester) {
		if t > 0 {
			s.spellingThreshold = t
		}
	}
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Suggester) { s.metrics = m }
}

type Suggester struct {
	source            executor.IndexSource
	executor          *executor.Executor
	maxSuggestions    int
	spellingThreshold float64
	metrics           *metrics.Metrics
	logger            *slog.Logger
}

func New(source executor.IndexSource, ex *executor.Executor, opts ...Option) *Suggester {
	s := &Suggester{
		source:            source,
		executor:          ex,
		maxSuggestions:    DefaultMaxSuggestions,
		spellingThreshold: DefaultSpellingThreshold,
		logger:            slog.Default().With("component", "suggester"),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

type weighted struct {
	symptom string
	weight  float64
}

// Suggest queries current with topDiseases results and ranks the symptoms
// of those diseases that the patient has not reported yet. Each candidate is
// weighted by the summed score of the diseases listing it. Symptoms in the
// normalized current set are never returned.
func (s *Suggester) Suggest(current []string, topDiseases int) ([]string, error) {
	return s.SuggestIndex(s.source.Current(), current, topDiseases)
}

// SuggestIndex is Suggest against a specific index.
func (s *Suggester) SuggestIndex(idx *index.Index, current []string, topDiseases int) ([]string, error) {
	out, outcome, err := s.suggest(idx, current, topDiseases)
	if s.metrics != nil {
		s.metrics.SuggestionsTotal.WithLabelValues(outcome).Inc()
	}
	s.logger.Debug("suggestions computed",
		"current", current,
		"top_diseases", topDiseases,
		"suggestions", len(out),
		"outcome", outcome,
	)
	return out, err
}

func (s *Suggester) suggest(idx *index.Index, current []string, topDiseases int) ([]string, string, error) {
	input := tokenizer.NormalizeAll(current)
	if len(input) == 0 {
		return []string{}, "empty_input", nil
	}
	results, err := s.executor.QueryIndex(idx, input, topDiseases)
	if err != nil {
		return nil, "error", err
	}

	have := make(map[string]struct{}, len(input))
	for _, sym := range input {
		have[sym] = struct{}{}
	}
	weights := make(map[string]float64)
	for _, r := range results {
		for _, sym := range r.AllSymptoms {
			if _, ok := have[sym]; ok {
				continue
			}
			weights[sym] += r.Score
		}
	}

	ranked := make([]weighted, 0, len(weights))
	for sym, w := range weights {
		ranked = append(ranked, weighted{symptom: sym, weight: w})
	}
	sortWeighted(ranked)
	if len(ranked) > s.maxSuggestions {
		ranked = ranked[:s.maxSuggestions]
	}
	out := make([]string, len(ranked))
	for i, c := range ranked {
		out[i] = c.symptom
	}
	if len(out) == 0 {
		return out, "zero_result", nil
	}
	return out, "ok", nil
}

// Correct maps symptom onto known symptoms. A known symptom is returned as
// is; otherwise up to limit known symptoms whose Jaro-Winkler similarity
// reaches the threshold are returned, most similar first.
func (s *Suggester) Correct(symptom string, limit int) ([]string, error) {
	if limit <= 0 {
		return nil, apperrors.Newf(apperrors.ErrInvalidInput, http.StatusBadRequest, "limit must be positive, got %d", limit)
	}
	idx := s.source.Current()
	if !idx.Fitted() {
		return nil, apperrors.ErrIndexNotBuilt
	}
	q := tokenizer.Normalize(symptom)
	if q == "" {
		return []string{}, nil
	}
	if _, _, ok := idx.Postings(q); ok {
		return []string{q}, nil
	}

	var matches []weighted
	for _, known := range idx.SymptomNames() {
		sim, err := edlib.StringsSimilarity(q, known, edlib.JaroWinkler)
		if err != nil {
			continue
		}
		if float64(sim) >= s.spellingThreshold {
			matches = append(matches, weighted{symptom: known, weight: float64(sim)})
		}
	}
	sortWeighted(matches)
	if len(matches) > limit {
		matches = matches[:limit]
	}
	out := make([]string, len(matches))
	for i, m := range matches {
		out[i] = m.symptom
	}
	return out, nil
}

// sortWeighted orders by weight descending, then symptom ascending.
func sortWeighted(ws []weighted) {
	sort.Slice(ws, func(i, j int) bool {
		if ws[i].weight != ws[j].weight {
			return ws[i].weight > ws[j].weight
		}
		return ws[i].symptom < ws[j].symptom
	})
}
