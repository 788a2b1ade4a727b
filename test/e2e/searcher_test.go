//go:build e2e

// Package e2e runs against a deployed search service with an index
// installed from the bundled disease dataset.
//
// Run with:
//
//	E2E_SEARCHER_URL=http://localhost:8080 go test -v -tags=e2e -timeout=120s ./test/e2e/...
package e2e

import (
	"encoding/json"
	"net/http"
	"net/url"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var client = &http.Client{Timeout: 10 * time.Second}

func baseURL(t *testing.T) string {
	t.Helper()
	base := os.Getenv("E2E_SEARCHER_URL")
	if base == "" {
		base = "http://localhost:8080"
	}
	resp, err := client.Get(base + "/health/live")
	if err != nil {
		t.Skipf("search service unavailable: %v", err)
	}
	resp.Body.Close()
	return base
}

func getJSON(t *testing.T, target string, v any) int {
	t.Helper()
	resp, err := client.Get(target)
	require.NoError(t, err)
	defer resp.Body.Close()
	require.NoError(t, json.NewDecoder(resp.Body).Decode(v))
	return resp.StatusCode
}

func TestReady(t *testing.T) {
	base := baseURL(t)
	var body map[string]any
	assert.Equal(t, http.StatusOK, getJSON(t, base+"/health/ready", &body))
}

func TestQueryRanksResults(t *testing.T) {
	base := baseURL(t)
	var resp struct {
		Results []struct {
			Disease       string  `json:"disease"`
			Score         float64 `json:"score"`
			MatchRatio    float64 `json:"match_ratio"`
			CoverageRatio float64 `json:"coverage_ratio"`
		} `json:"results"`
		CacheHit bool `json:"cache_hit"`
	}
	q := url.Values{"symptoms": {"itching,skin_rash,nodal_skin_eruptions"}, "top_k": {"5"}}
	require.Equal(t, http.StatusOK, getJSON(t, base+"/api/v1/query?"+q.Encode(), &resp))
	require.NotEmpty(t, resp.Results)
	assert.LessOrEqual(t, len(resp.Results), 5)
	for i := 1; i < len(resp.Results); i++ {
		assert.GreaterOrEqual(t, resp.Results[i-1].Score, resp.Results[i].Score)
	}
	for _, r := range resp.Results {
		assert.True(t, r.MatchRatio >= 0 && r.MatchRatio <= 1)
		assert.True(t, r.CoverageRatio >= 0 && r.CoverageRatio <= 1)
	}
}

func TestSuggestExcludesInput(t *testing.T) {
	base := baseURL(t)
	var resp struct {
		Suggestions []string `json:"suggestions"`
	}
	require.Equal(t, http.StatusOK, getJSON(t, base+"/api/v1/suggest?symptoms=fever&top=3", &resp))
	assert.NotContains(t, resp.Suggestions, "fever")
}

func TestCorrectMisspelling(t *testing.T) {
	base := baseURL(t)
	var resp struct {
		Matches []string `json:"matches"`
	}
	require.Equal(t, http.StatusOK, getJSON(t, base+"/api/v1/symptoms/correct?q=itchng", &resp))
	assert.Contains(t, resp.Matches, "itching")
}

func TestStatsAndAnalytics(t *testing.T) {
	base := baseURL(t)
	var stats struct {
		SnapshotID int64 `json:"snapshot_id"`
		Summary    struct {
			TotalDiseases int `json:"total_diseases"`
		} `json:"summary"`
	}
	require.Equal(t, http.StatusOK, getJSON(t, base+"/api/v1/stats", &stats))
	assert.NotZero(t, stats.SnapshotID)
	assert.Positive(t, stats.Summary.TotalDiseases)

	var analytics map[string]any
	status := getJSON(t, base+"/api/v1/analytics", &analytics)
	if status == http.StatusNotFound {
		t.Skip("analytics disabled on this deployment")
	}
	assert.Contains(t, analytics, "queries")
}
