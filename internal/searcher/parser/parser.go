// Package parser turns the raw symptom lists accepted by the HTTP and CLI
// front ends into normalized symptom tokens.
package parser

import (
	"strings"

	"github.com/Adithya-Monish-Kumar-K/Symptom-Search-Platform/internal/indexer/tokenizer"
)

// Separator splits a raw list such as "fever, Cough,fatigue".
const Separator = ","

// ParseSymptoms splits raw on commas and normalizes the parts. Empty parts
// are dropped; order and repeats are kept.
func ParseSymptoms(raw string) []string {
	if strings.TrimSpace(raw) == "" {
		return []string{}
	}
	return tokenizer.NormalizeAll(strings.Split(raw, Separator))
}

// ParseAll flattens several raw lists, as produced by repeated query
// parameters or CLI arguments, into one normalized list.
func ParseAll(raws []string) []string {
	var parts []string
	for _, raw := range raws {
		parts = append(parts, strings.Split(raw, Separator)...)
	}
	return tokenizer.NormalizeAll(parts)
}
