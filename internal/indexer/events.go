package indexer

import (
	"time"

	"github.com/Adithya-Monish-Kumar-K/Symptom-Search-Platform/internal/indexer/index"
)

// SnapshotEvent announces that a snapshot was saved and is ready to load.
// The indexer publishes it on the index-complete topic; searchers reload
// when they receive it.
type SnapshotEvent struct {
	SnapshotID int64         `json:"snapshot_id"`
	Prefix     string        `json:"prefix"`
	Summary    index.Summary `json:"summary"`
	CreatedAt  time.Time     `json:"created_at"`
}

// NewSnapshotEvent describes idx saved under prefix.
func NewSnapshotEvent(prefix string, idx *index.Index) SnapshotEvent {
	return SnapshotEvent{
		SnapshotID: idx.ID(),
		Prefix:     prefix,
		Summary:    idx.Summary(),
		CreatedAt:  time.Now().UTC(),
	}
}
