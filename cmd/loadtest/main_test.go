package main

import (
	"bytes"
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestPercentile(t *testing.T) {
	sorted := []time.Duration{1, 2, 3, 4, 5, 6, 7, 8, 9, 10}
	assert.Equal(t, time.Duration(5), percentile(sorted, 50))
	assert.Equal(t, time.Duration(10), percentile(sorted, 99))
	assert.Equal(t, time.Duration(1), percentile(sorted, 0))
	assert.Zero(t, percentile(nil, 50))
}

func TestRunLoadTest(t *testing.T) {
	var calls atomic.Int64
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/v1/query", r.URL.Path)
		assert.Equal(t, "3", r.URL.Query().Get("top_k"))
		hit := calls.Add(1) > 1
		w.Header().Set("Content-Type", "application/json")
		if hit {
			w.Write([]byte(`{"results":[],"cache_hit":true}`))
			return
		}
		w.Write([]byte(`{"results":[],"cache_hit":false}`))
	}))
	defer srv.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()
	stats := runLoadTest(ctx, Config{
		BaseURL:     srv.URL,
		Concurrency: 2,
		TopK:        3,
		SymptomSets: []string{"fever,cough"},
	})

	assert.Positive(t, stats.successCount.Load())
	assert.Zero(t, stats.errorCount.Load())
	assert.Equal(t, stats.successCount.Load()-1, stats.cacheHits.Load())

	var out bytes.Buffer
	assert.True(t, printReport(&out, stats, 100*time.Millisecond))
	assert.Contains(t, out.String(), "200:")
}

func TestPrintReportNoRequests(t *testing.T) {
	var out bytes.Buffer
	assert.False(t, printReport(&out, NewStats(), time.Second))
	assert.Contains(t, out.String(), "No requests completed")
}
