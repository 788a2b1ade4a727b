// Package vectorspace implements the bag-of-symptoms TF-IDF model used by
// the semantic scorer: a vectorizer fitted over one document per disease and
// the matrix of L2-normalized disease rows.
package vectorspace

import (
	"fmt"
	"math"
	"sort"

	"github.com/Adithya-Monish-Kumar-K/Symptom-Search-Platform/internal/indexer/tokenizer"
)

// Vectorizer maps text to TF-IDF weighted, L2-normalized sparse vectors. The
// vocabulary is sorted so positions are stable across builds of the same
// corpus.
type Vectorizer struct {
	vocabulary map[string]int
	terms      []string
	idf        []float64
}

// VectorizerState is the serializable form of a fitted Vectorizer.
type VectorizerState struct {
	Terms []string  `json:"terms"`
	IDF   []float64 `json:"idf"`
}

// Fit learns the vocabulary and smoothed inverse document frequencies
// idf(t) = ln((1+n)/(1+df(t))) + 1 from docs.
func Fit(docs []string) *Vectorizer {
	df := make(map[string]int)
	for _, doc := range docs {
		seen := make(map[string]struct{})
		for _, term := range tokenizer.Terms(doc) {
			if _, ok := seen[term]; ok {
				continue
			}
			seen[term] = struct{}{}
			df[term]++
		}
	}
	terms := make([]string, 0, len(df))
	for term := range df {
		terms = append(terms, term)
	}
	sort.Strings(terms)

	n := float64(len(docs))
	idf := make([]float64, len(terms))
	for i, term := range terms {
		idf[i] = math.Log((1+n)/(1+float64(df[term]))) + 1
	}
	return newVectorizer(terms, idf)
}

// Restore rebuilds a Vectorizer from its saved state.
func Restore(state VectorizerState) (*Vectorizer, error) {
	if len(state.Terms) != len(state.IDF) {
		return nil, fmt.Errorf("vectorizer state has %d terms but %d idf values", len(state.Terms), len(state.IDF))
	}
	for i := 1; i < len(state.Terms); i++ {
		if state.Terms[i-1] >= state.Terms[i] {
			return nil, fmt.Errorf("vectorizer vocabulary not sorted at position %d", i)
		}
	}
	terms := append([]string(nil), state.Terms...)
	idf := append([]float64(nil), state.IDF...)
	return newVectorizer(terms, idf), nil
}

func newVectorizer(terms []string, idf []float64) *Vectorizer {
	vocab := make(map[string]int, len(terms))
	for i, term := range terms {
		vocab[term] = i
	}
	return &Vectorizer{vocabulary: vocab, terms: terms, idf: idf}
}

// State returns a copy of the fitted parameters.
func (v *Vectorizer) State() VectorizerState {
	return VectorizerState{
		Terms: append([]string(nil), v.terms...),
		IDF:   append([]float64(nil), v.idf...),
	}
}

// Dimension is the vocabulary size.
func (v *Vectorizer) Dimension() int {
	return len(v.terms)
}

// Contains reports whether term is in the fitted vocabulary.
func (v *Vectorizer) Contains(term string) bool {
	_, ok := v.vocabulary[term]
	return ok
}

// Transform weights raw term counts by idf and normalizes the result.
// Terms outside the vocabulary are ignored; text with no known term yields
// the zero vector.
func (v *Vectorizer) Transform(text string) Vector {
	counts := make(map[int]int)
	for _, term := range tokenizer.Terms(text) {
		if idx, ok := v.vocabulary[term]; ok {
			counts[idx]++
		}
	}
	vec := Vector{
		Indices: make([]int, 0, len(counts)),
		Values:  make([]float64, 0, len(counts)),
	}
	for idx := range counts {
		vec.Indices = append(vec.Indices, idx)
	}
	sort.Ints(vec.Indices)
	for _, idx := range vec.Indices {
		vec.Values = append(vec.Values, float64(counts[idx])*v.idf[idx])
	}
	normalize(vec)
	return vec
}
