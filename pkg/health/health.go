// Package health runs registered component checks in parallel and serves the
// aggregate as liveness and readiness probes. The search service is ready
// once an index is installed; optional dependencies such as Redis only
// degrade it.
package health

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"sync"
	"time"
)

type Status string

const (
	StatusUp       Status = "up"
	StatusDown     Status = "down"
	StatusDegraded Status = "degraded"
)

// Check probes one dependency.
type Check func(ctx context.Context) ComponentHealth

// ComponentHealth holds the result of a single component check.
type ComponentHealth struct {
	Status  Status `json:"status"`
	Message string `json:"message,omitempty"`
	Latency string `json:"latency,omitempty"`
}

// Report is the aggregated result of all component checks.
type Report struct {
	Status     Status                     `json:"status"`
	Components map[string]ComponentHealth `json:"components"`
	Timestamp  string                     `json:"timestamp"`
}

// checkTimeout bounds each individual check inside Run.
const checkTimeout = 2 * time.Second

type namedCheck struct {
	name  string
	check Check
}

// Checker runs registered checks concurrently.
type Checker struct {
	mu     sync.RWMutex
	checks []namedCheck
	logger *slog.Logger
}

func NewChecker() *Checker {
	return &Checker{logger: slog.Default().With("component", "health")}
}

// Register adds check under name, replacing any check of the same name.
func (c *Checker) Register(name string, check Check) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for i := range c.checks {
		if c.checks[i].name == name {
			c.checks[i].check = check
			return
		}
	}
	c.checks = append(c.checks, namedCheck{name: name, check: check})
}

// Run executes every check with its own timeout. The overall status is the
// worst component status.
func (c *Checker) Run(ctx context.Context) Report {
	c.mu.RLock()
	checks := append([]namedCheck(nil), c.checks...)
	c.mu.RUnlock()

	results := make([]ComponentHealth, len(checks))
	var wg sync.WaitGroup
	for i, nc := range checks {
		wg.Add(1)
		go func() {
			defer wg.Done()
			checkCtx, cancel := context.WithTimeout(ctx, checkTimeout)
			defer cancel()
			start := time.Now()
			results[i] = nc.check(checkCtx)
			results[i].Latency = time.Since(start).Round(time.Millisecond).String()
		}()
	}
	wg.Wait()

	report := Report{
		Status:     StatusUp,
		Components: make(map[string]ComponentHealth, len(checks)),
		Timestamp:  time.Now().UTC().Format(time.RFC3339),
	}
	for i, nc := range checks {
		report.Components[nc.name] = results[i]
		report.Status = worse(report.Status, results[i].Status)
	}
	return report
}

func worse(a, b Status) Status {
	rank := func(s Status) int {
		switch s {
		case StatusDown:
			return 2
		case StatusDegraded:
			return 1
		}
		return 0
	}
	if rank(b) > rank(a) {
		return b
	}
	return a
}

// PingCheck adapts a ping function. A failing ping reports failStatus, so
// optional dependencies can pass StatusDegraded instead of StatusDown.
func PingCheck(ping func(ctx context.Context) error, failStatus Status) Check {
	return func(ctx context.Context) ComponentHealth {
		if ping == nil {
			return ComponentHealth{Status: StatusDegraded, Message: "not configured"}
		}
		if err := ping(ctx); err != nil {
			return ComponentHealth{Status: failStatus, Message: err.Error()}
		}
		return ComponentHealth{Status: StatusUp}
	}
}

// ReadyWhen reports up while ready returns true, down otherwise.
func ReadyWhen(ready func() (bool, string)) Check {
	return func(ctx context.Context) ComponentHealth {
		ok, msg := ready()
		if ok {
			return ComponentHealth{Status: StatusUp, Message: msg}
		}
		return ComponentHealth{Status: StatusDown, Message: msg}
	}
}

// LiveHandler answers 200 while the process can serve HTTP at all.
func (c *Checker) LiveHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(`{"status":"alive"}` + "\n"))
	}
}

// ReadyHandler returns an HTTP handler for Kubernetes readiness probes. A
// degraded report still answers 200.
func (c *Checker) ReadyHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
		defer cancel()
		report := c.Run(ctx)
		status := http.StatusOK
		if report.Status == StatusDown {
			status = http.StatusServiceUnavailable
			c.logger.Warn("not ready", "components", report.Components)
		}
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		if err := json.NewEncoder(w).Encode(report); err != nil {
			c.logger.Error("failed to write readiness report", "error", err)
		}
	}
}
