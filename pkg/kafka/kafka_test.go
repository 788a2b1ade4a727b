package kafka

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type announcement struct {
	SnapshotID int64  `json:"snapshot_id"`
	Prefix     string `json:"prefix"`
}

func TestDecodeJSON(t *testing.T) {
	got, err := DecodeJSON[announcement]([]byte(`{"snapshot_id":7,"prefix":"data/index/medical_rag"}`))
	require.NoError(t, err)
	assert.Equal(t, announcement{SnapshotID: 7, Prefix: "data/index/medical_rag"}, got)
}

func TestDecodeJSONInvalid(t *testing.T) {
	_, err := DecodeJSON[announcement]([]byte(`{"snapshot_id":`))
	assert.ErrorContains(t, err, "decoding kafka message")
}

func TestEncodeEvents(t *testing.T) {
	msgs, err := encodeEvents([]Event{
		{Key: "7", Value: announcement{SnapshotID: 7, Prefix: "p"}},
		{Key: "8", Value: map[string]int{"n": 1}},
	})
	require.NoError(t, err)
	require.Len(t, msgs, 2)
	assert.Equal(t, []byte("7"), msgs[0].Key)
	assert.JSONEq(t, `{"snapshot_id":7,"prefix":"p"}`, string(msgs[0].Value))
	assert.JSONEq(t, `{"n":1}`, string(msgs[1].Value))
	assert.Equal(t, []kafka.Header{contentTypeHeader}, msgs[1].Headers)
}

func TestEncodeEventsRejectsUnencodable(t *testing.T) {
	_, err := encodeEvents([]Event{{Key: "bad", Value: make(chan int)}})
	assert.ErrorContains(t, err, `marshaling event "bad"`)
}

type fakeReader struct {
	mu        sync.Mutex
	msgs      []kafka.Message
	fetchErrs int
	committed []int64
	cancel    context.CancelFunc
}

func (f *fakeReader) FetchMessage(ctx context.Context) (kafka.Message, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.fetchErrs > 0 {
		f.fetchErrs--
		return kafka.Message{}, errors.New("broker not available")
	}
	if len(f.msgs) == 0 {
		f.cancel()
		return kafka.Message{}, ctx.Err()
	}
	msg := f.msgs[0]
	f.msgs = f.msgs[1:]
	return msg, nil
}

func (f *fakeReader) CommitMessages(_ context.Context, msgs ...kafka.Message) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, m := range msgs {
		f.committed = append(f.committed, m.Offset)
	}
	return nil
}

func (f *fakeReader) Close() error { return nil }

func TestConsumerCommitsHandledMessages(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	r := &fakeReader{
		msgs: []kafka.Message{
			{Offset: 1, Value: []byte("ok")},
			{Offset: 2, Value: []byte("fail")},
			{Offset: 3, Value: []byte("ok")},
		},
		fetchErrs: 1,
		cancel:    cancel,
	}
	var seen []string
	c := newConsumer(r, func(_ context.Context, _ []byte, value []byte) error {
		seen = append(seen, string(value))
		if string(value) == "fail" {
			return errors.New("handler failed")
		}
		return nil
	}, slog.New(slog.NewTextHandler(io.Discard, nil)))

	done := make(chan error, 1)
	go func() { done <- c.Start(ctx) }()
	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("consumer did not stop")
	}

	assert.Equal(t, []string{"ok", "fail", "ok"}, seen)
	assert.Equal(t, []int64{1, 3}, r.committed)
}
