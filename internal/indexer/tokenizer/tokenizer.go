// Package tokenizer normalizes disease and symptom identifiers and splits
// symptom documents into the terms used by the vector space.
//
// Normalization is shallow (control characters become spaces, then trim and
// lower-case) so that a symptom token compares equal to itself regardless of
// case or surrounding whitespace. Term splitting keeps runs of two or more word characters
// (letters, digits and underscore), so "runny_nose" stays a single term while
// "skin rash" yields "skin" and "rash".
package tokenizer

import (
	"strings"
	"unicode"
)

// nullValues are the missing-value markers a dataframe CSV reader treats as
// "no value" by default, in normalized form.
var nullValues = map[string]struct{}{
	"nan":      {},
	"-nan":     {},
	"na":       {},
	"n/a":      {},
	"#n/a":     {},
	"#n/a n/a": {},
	"#na":      {},
	"<na>":     {},
	"null":     {},
	"none":     {},
	"1.#ind":   {},
	"-1.#ind":  {},
	"1.#qnan":  {},
	"-1.#qnan": {},
}

// Normalize replaces control characters with spaces, trims surrounding
// whitespace and lower-cases s. The result never contains a control
// character.
func Normalize(s string) string {
	s = strings.Map(func(r rune) rune {
		if unicode.IsControl(r) {
			return ' '
		}
		return r
	}, s)
	return strings.ToLower(strings.TrimSpace(s))
}

// IsNull reports whether a normalized cell value carries no data.
func IsNull(normalized string) bool {
	if normalized == "" {
		return true
	}
	_, ok := nullValues[normalized]
	return ok
}

// NormalizeAll normalizes every value and drops empty ones. Order and
// repeats are kept: a symptom given twice weighs twice in a query.
func NormalizeAll(values []string) []string {
	out := make([]string, 0, len(values))
	for _, v := range values {
		if n := Normalize(v); n != "" {
			out = append(out, n)
		}
	}
	return out
}

// Unique returns values without repeats, keeping first-occurrence order.
func Unique(values []string) []string {
	out := make([]string, 0, len(values))
	seen := make(map[string]struct{}, len(values))
	for _, v := range values {
		if _, dup := seen[v]; dup {
			continue
		}
		seen[v] = struct{}{}
		out = append(out, v)
	}
	return out
}

// Terms lower-cases text and returns its terms in order of appearance.
// Terms shorter than two runes are dropped.
func Terms(text string) []string {
	text = strings.ToLower(text)
	words := strings.FieldsFunc(text, func(r rune) bool {
		return !isWordRune(r)
	})
	terms := make([]string, 0, len(words))
	for _, word := range words {
		if len([]rune(word)) < 2 {
			continue
		}
		terms = append(terms, word)
	}
	return terms
}

func isWordRune(r rune) bool {
	return r == '_' || unicode.IsLetter(r) || unicode.IsDigit(r)
}
