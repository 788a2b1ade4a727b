package health

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRunAggregatesWorstStatus(t *testing.T) {
	c := NewChecker()
	c.Register("index", ReadyWhen(func() (bool, string) { return true, "snapshot 1" }))
	c.Register("redis", PingCheck(func(ctx context.Context) error { return errors.New("refused") }, StatusDegraded))

	report := c.Run(context.Background())
	assert.Equal(t, StatusDegraded, report.Status)
	assert.Equal(t, StatusUp, report.Components["index"].Status)
	assert.Equal(t, "refused", report.Components["redis"].Message)

	c.Register("index", ReadyWhen(func() (bool, string) { return false, "no index installed" }))
	assert.Equal(t, StatusDown, c.Run(context.Background()).Status)
}

func TestPingCheckNotConfigured(t *testing.T) {
	got := PingCheck(nil, StatusDown)(context.Background())
	assert.Equal(t, StatusDegraded, got.Status)
}

func TestReadyHandler(t *testing.T) {
	ready := false
	c := NewChecker()
	c.Register("index", ReadyWhen(func() (bool, string) { return ready, "" }))

	rec := httptest.NewRecorder()
	c.ReadyHandler()(rec, httptest.NewRequest(http.MethodGet, "/health/ready", nil))
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)

	ready = true
	rec = httptest.NewRecorder()
	c.ReadyHandler()(rec, httptest.NewRequest(http.MethodGet, "/health/ready", nil))
	assert.Equal(t, http.StatusOK, rec.Code)

	var report Report
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &report))
	assert.Equal(t, StatusUp, report.Status)
}

func TestLiveHandler(t *testing.T) {
	rec := httptest.NewRecorder()
	NewChecker().LiveHandler()(rec, httptest.NewRequest(http.MethodGet, "/health/live", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"alive"}`, rec.Body.String())
}

func TestRunBoundsSlowChecks(t *testing.T) {
	c := NewChecker()
	c.Register("slow", PingCheck(func(ctx context.Context) error {
		<-ctx.Done()
		return ctx.Err()
	}, StatusDegraded))

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	report := c.Run(ctx)
	assert.Equal(t, StatusDegraded, report.Status)
	assert.Equal(t, context.DeadlineExceeded.Error(), report.Components["slow"].Message)
}

func TestRegisterReplacesByName(t *testing.T) {
	c := NewChecker()
	c.Register("index", ReadyWhen(func() (bool, string) { return false, "" }))
	c.Register("index", ReadyWhen(func() (bool, string) { return true, "" }))
	report := c.Run(context.Background())
	assert.Len(t, report.Components, 1)
	assert.Equal(t, StatusUp, report.Status)
}
