// Package ranker combines the exact, combination and semantic signals into
// one score per disease and orders the result deterministically.
package ranker

import (
	"math"
	"sort"

	"github.com/Adithya-Monish-Kumar-K/Symptom-Search-Platform/pkg/config"
)

// Weights are the scoring constants of the query pipeline.
type Weights struct {
	Exact    float64 `json:"exact"`
	Combo    float64 `json:"combo"`
	Semantic float64 `json:"semantic"`
	// PairBoost and TripleBoost multiply 2- and 3-symptom combination hits.
	PairBoost   float64 `json:"pair_boost"`
	TripleBoost float64 `json:"triple_boost"`
	// Only similarities strictly above SemanticThreshold count; they are
	// multiplied by SemanticScale.
	SemanticThreshold float64 `json:"semantic_threshold"`
	SemanticScale     float64 `json:"semantic_scale"`
}

func DefaultWeights() Weights {
	return Weights{
		Exact:             0.5,
		Combo:             0.3,
		Semantic:          0.2,
		PairBoost:         1.5,
		TripleBoost:       2.0,
		SemanticThreshold: 0.1,
		SemanticScale:     10,
	}
}

// WeightsFromConfig reads the search section.
func WeightsFromConfig(cfg config.SearchConfig) Weights {
	return Weights{
		Exact:             cfg.ExactWeight,
		Combo:             cfg.ComboWeight,
		Semantic:          cfg.SemanticWeight,
		PairBoost:         cfg.PairBoost,
		TripleBoost:       cfg.TripleBoost,
		SemanticThreshold: cfg.SemanticThreshold,
		SemanticScale:     cfg.SemanticScale,
	}
}

// Signals are the three per-disease scores before weighting.
type Signals struct {
	Exact    float64 `json:"exact"`
	Combo    float64 `json:"combo"`
	Semantic float64 `json:"semantic"`
}

type ScoredDisease struct {
	Disease string  `json:"disease"`
	Score   float64 `json:"score"`
	Signals Signals `json:"signals"`
}

// Combine scores every disease present in any of the three maps. Missing
// entries count as 0.
func Combine(exact, combo, semantic map[string]float64, w Weights) []ScoredDisease {
	signals := make(map[string]*Signals, len(exact)+len(combo)+len(semantic))
	get := func(d string) *Signals {
		s, ok := signals[d]
		if !ok {
			s = &Signals{}
			signals[d] = s
		}
		return s
	}
	for d, v := range exact {
		get(d).Exact = v
	}
	for d, v := range combo {
		get(d).Combo = v
	}
	for d, v := range semantic {
		get(d).Semantic = v
	}

	out := make([]ScoredDisease, 0, len(signals))
	for d, s := range signals {
		out = append(out, ScoredDisease{
			Disease: d,
			Score:   w.Exact*s.Exact + w.Combo*s.Combo + w.Semantic*s.Semantic,
			Signals: *s,
		})
	}
	return out
}

// Rank sorts by score descending, then disease name ascending, and keeps
// the first limit entries. limit <= 0 keeps everything. scored is sorted in
// place.
func Rank(scored []ScoredDisease, limit int) []ScoredDisease {
	sort.Slice(scored, func(i, j int) bool {
		if scored[i].Score != scored[j].Score {
			return scored[i].Score > scored[j].Score
		}
		return scored[i].Disease < scored[j].Disease
	})
	if limit > 0 && len(scored) > limit {
		scored = scored[:limit]
	}
	return scored
}

// Round rounds v half away from zero to places decimals.
func Round(v float64, places int) float64 {
	p := math.Pow(10, float64(places))
	return math.Round(v*p) / p
}

// Ratio is num/den, or 0 when den is 0.
func Ratio(num, den int) float64 {
	if den == 0 {
		return 0
	}
	return float64(num) / float64(den)
}
