// Package resilience provides the fault-tolerance helpers used around
// external dependencies: a circuit breaker for the result cache, retry with
// exponential backoff for bootstrap connections, and a timeout wrapper.
package resilience

import (
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"
)

// ErrCircuitOpen is returned while the breaker rejects calls.
var ErrCircuitOpen = errors.New("circuit breaker is open")

type State int

const (
	StateClosed State = iota
	StateOpen
	StateHalfOpen
)

func (s State) String() string {
	switch s {
	case StateClosed:
		return "closed"
	case StateOpen:
		return "open"
	case StateHalfOpen:
		return "half-open"
	default:
		return "unknown"
	}
}

// BreakerConfig controls when the breaker trips and how it recovers.
type BreakerConfig struct {
	FailureThreshold int
	ResetTimeout     time.Duration
	// HalfOpenProbes is how many calls may run while half-open.
	HalfOpenProbes int
	// IsFailure decides whether an error counts against the breaker. nil
	// counts every non-nil error.
	IsFailure func(error) bool
}

func defaultBreakerConfig() BreakerConfig {
	return BreakerConfig{
		FailureThreshold: 5,
		ResetTimeout:     30 * time.Second,
		HalfOpenProbes:   1,
	}
}

// CircuitBreaker counts consecutive failures of a dependency. Once the
// threshold is reached it rejects calls for ResetTimeout, then lets
// HalfOpenProbes calls through to decide whether to close again.
type CircuitBreaker struct {
	name   string
	cfg    BreakerConfig
	now    func() time.Time
	logger *slog.Logger

	mu          sync.Mutex
	state       State
	failures    int
	openedAt    time.Time
	probesInUse int
}

// NewCircuitBreaker fills zero config values with defaults.
func NewCircuitBreaker(name string, cfg BreakerConfig) *CircuitBreaker {
	def := defaultBreakerConfig()
	if cfg.FailureThreshold <= 0 {
		cfg.FailureThreshold = def.FailureThreshold
	}
	if cfg.ResetTimeout <= 0 {
		cfg.ResetTimeout = def.ResetTimeout
	}
	if cfg.HalfOpenProbes <= 0 {
		cfg.HalfOpenProbes = def.HalfOpenProbes
	}
	return &CircuitBreaker{
		name:   name,
		cfg:    cfg,
		now:    time.Now,
		state:  StateClosed,
		logger: slog.Default().With("component", "circuit-breaker", "name", name),
	}
}

// Execute runs fn unless the breaker is open and records its outcome.
func (cb *CircuitBreaker) Execute(fn func() error) error {
	if err := cb.allow(); err != nil {
		return err
	}
	err := fn()
	cb.record(err)
	return err
}

func (cb *CircuitBreaker) State() State {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	return cb.state
}

func (cb *CircuitBreaker) allow() error {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	switch cb.state {
	case StateOpen:
		wait := cb.cfg.ResetTimeout - cb.now().Sub(cb.openedAt)
		if wait > 0 {
			return fmt.Errorf("%w: %s (retry after %v)", ErrCircuitOpen, cb.name, wait)
		}
		cb.state = StateHalfOpen
		cb.probesInUse = 0
		cb.logger.Info("circuit half-open", "after", cb.cfg.ResetTimeout)
		fallthrough
	case StateHalfOpen:
		if cb.probesInUse >= cb.cfg.HalfOpenProbes {
			return fmt.Errorf("%w: %s (probe in flight)", ErrCircuitOpen, cb.name)
		}
		cb.probesInUse++
	}
	return nil
}

func (cb *CircuitBreaker) record(err error) {
	failed := err != nil
	if failed && cb.cfg.IsFailure != nil {
		failed = cb.cfg.IsFailure(err)
	}

	cb.mu.Lock()
	defer cb.mu.Unlock()
	if !failed {
		if cb.state == StateHalfOpen {
			cb.logger.Info("circuit closed")
		}
		cb.state = StateClosed
		cb.failures = 0
		cb.probesInUse = 0
		return
	}
	cb.failures++
	switch cb.state {
	case StateClosed:
		if cb.failures >= cb.cfg.FailureThreshold {
			cb.trip()
		}
	case StateHalfOpen:
		cb.trip()
	}
}

func (cb *CircuitBreaker) trip() {
	cb.state = StateOpen
	cb.openedAt = cb.now()
	cb.logger.Warn("circuit opened", "consecutive_failures", cb.failures, "threshold", cb.cfg.FailureThreshold)
}

// Reset forces the breaker closed.
func (cb *CircuitBreaker) Reset() {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	cb.state = StateClosed
	cb.failures = 0
	cb.probesInUse = 0
}
