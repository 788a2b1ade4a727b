// Package middleware holds the HTTP middleware of the search service:
// request IDs, Prometheus request metrics and a per-request deadline.
package middleware

import (
	"net/http"
	"strconv"
	"time"

	"github.com/Adithya-Monish-Kumar-K/Symptom-Search-Platform/pkg/metrics"
)

// Metrics records request count and latency per route and status, and
// tracks requests in flight. Paths outside knownPaths share the "other"
// label so the series count stays bounded.
func Metrics(m *metrics.Metrics) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			m.HTTPRequestsInFlight.Inc()
			defer m.HTTPRequestsInFlight.Dec()

			rec := &statusRecorder{ResponseWriter: w}
			start := time.Now()
			next.ServeHTTP(rec, r)
			elapsed := time.Since(start)

			path := normalizePath(r.URL.Path)
			m.HTTPRequestsTotal.WithLabelValues(r.Method, path, strconv.Itoa(rec.Status())).Inc()
			m.HTTPRequestDuration.WithLabelValues(r.Method, path).Observe(elapsed.Seconds())
		})
	}
}

// statusRecorder remembers the first status code written. A handler that
// writes a body without calling WriteHeader has implicitly sent 200.
type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (sr *statusRecorder) WriteHeader(code int) {
	if sr.status == 0 {
		sr.status = code
	}
	sr.ResponseWriter.WriteHeader(code)
}

func (sr *statusRecorder) Write(b []byte) (int, error) {
	if sr.status == 0 {
		sr.status = http.StatusOK
	}
	return sr.ResponseWriter.Write(b)
}

func (sr *statusRecorder) Status() int {
	if sr.status == 0 {
		return http.StatusOK
	}
	return sr.status
}

// knownPaths bounds the path label; anything else is reported as "other".
var knownPaths = map[string]bool{
	"/api/v1/query":            true,
	"/api/v1/suggest":          true,
	"/api/v1/symptoms/correct": true,
	"/api/v1/stats":            true,
	"/api/v1/index/reload":     true,
	"/api/v1/cache/stats":      true,
	"/api/v1/analytics":        true,
	"/health/live":             true,
	"/health/ready":            true,
}

func normalizePath(path string) string {
	if knownPaths[path] {
		return path
	}
	return "other"
}
