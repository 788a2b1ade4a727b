// Package analytics aggregates served queries in process and optionally
// exports them to Kafka in batches.
package analytics

import "time"

type Kind string

const (
	KindQuery   Kind = "query"
	KindSuggest Kind = "suggest"
)

// QueryEvent describes one answered query or suggestion request. Results is
// the number of diseases or suggestions returned.
type QueryEvent struct {
	Kind       Kind      `json:"kind"`
	Symptoms   []string  `json:"symptoms"`
	TopK       int       `json:"top_k"`
	Results    int       `json:"results"`
	TopDisease string    `json:"top_disease,omitempty"`
	CacheHit   bool      `json:"cache_hit"`
	SnapshotID int64     `json:"snapshot_id"`
	LatencyMs  int64     `json:"latency_ms"`
	RequestID  string    `json:"request_id,omitempty"`
	Timestamp  time.Time `json:"timestamp"`
}
