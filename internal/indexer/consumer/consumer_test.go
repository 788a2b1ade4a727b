package consumer

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Adithya-Monish-Kumar-K/Symptom-Search-Platform/internal/corpus"
	"github.com/Adithya-Monish-Kumar-K/Symptom-Search-Platform/internal/indexer"
	"github.com/Adithya-Monish-Kumar-K/Symptom-Search-Platform/internal/indexer/index"
)

type fakeReloader struct {
	current *index.Index
	next    *index.Index
	err     error
	calls   int
}

func (f *fakeReloader) Current() *index.Index { return f.current }

func (f *fakeReloader) Reload() (*index.Index, bool, error) {
	f.calls++
	if f.err != nil {
		return nil, false, f.err
	}
	f.current = f.next
	return f.next, true, nil
}

func buildIndex(t *testing.T, id int64) *index.Index {
	t.Helper()
	idx, err := index.Build([]corpus.Record{
		{Disease: "flu", Symptoms: []string{"fever", "cough"}},
	}, index.BuildOptions{ID: id})
	require.NoError(t, err)
	return idx
}

func event(t *testing.T, idx *index.Index) []byte {
	t.Helper()
	b, err := json.Marshal(indexer.NewSnapshotEvent("data/index/medical_rag", idx))
	require.NoError(t, err)
	return b
}

func TestHandleMessageReloadsNewSnapshot(t *testing.T) {
	r := &fakeReloader{current: buildIndex(t, 1), next: buildIndex(t, 2)}
	err := HandleMessage(r)(context.Background(), []byte("medical_rag"), event(t, r.next))
	require.NoError(t, err)
	assert.Equal(t, 1, r.calls)
	assert.Equal(t, int64(2), r.current.ID())
}

func TestHandleMessageSkipsInstalledSnapshot(t *testing.T) {
	cur := buildIndex(t, 1)
	r := &fakeReloader{current: cur}
	require.NoError(t, HandleMessage(r)(context.Background(), nil, event(t, cur)))
	assert.Zero(t, r.calls)
}

func TestHandleMessageAcknowledgesBadInput(t *testing.T) {
	r := &fakeReloader{err: errors.New("boom")}
	h := HandleMessage(r)

	assert.NoError(t, h(context.Background(), nil, []byte("not json")))
	assert.Zero(t, r.calls)

	assert.NoError(t, h(context.Background(), nil, event(t, buildIndex(t, 3))))
	assert.Equal(t, 1, r.calls)
}
