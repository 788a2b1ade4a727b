package metrics

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewRegistersOnGivenRegistry(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := New(reg)

	m.QueriesTotal.WithLabelValues("ok").Inc()
	m.IndexEntries.WithLabelValues("diseases").Set(41)
	assert.Equal(t, float64(1), testutil.ToFloat64(m.QueriesTotal.WithLabelValues("ok")))
	assert.Equal(t, float64(41), testutil.ToFloat64(m.IndexEntries.WithLabelValues("diseases")))

	families, err := reg.Gather()
	require.NoError(t, err)
	assert.NotEmpty(t, families)
}

func TestNewTwiceOnSeparateRegistries(t *testing.T) {
	assert.NotPanics(t, func() {
		New(prometheus.NewRegistry())
		New(prometheus.NewRegistry())
	})
}

func TestServeMuxExposesRegistry(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := New(reg)
	m.QueriesTotal.WithLabelValues("ok").Inc()

	rec := httptest.NewRecorder()
	NewServeMux(reg).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `outcome="ok"`)
}
