package logger

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewJSON(t *testing.T) {
	var buf bytes.Buffer
	log := New(&buf, "debug", "json")
	log.Debug("index built", "diseases", 41)

	var entry map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, "index built", entry["msg"])
	assert.Equal(t, float64(41), entry["diseases"])
}

func TestNewLevelFilters(t *testing.T) {
	var buf bytes.Buffer
	log := New(&buf, "WARN", "text")
	log.Info("dropped")
	assert.Empty(t, buf.String())
	log.Warn("kept")
	assert.Contains(t, buf.String(), "kept")
}

func TestRequestIDRoundTrip(t *testing.T) {
	ctx := WithRequestID(context.Background(), "req-123")
	assert.Equal(t, "req-123", RequestID(ctx))
	assert.Empty(t, RequestID(context.Background()))
	assert.Equal(t, slog.LevelInfo, parseLevel("bogus"))
}
