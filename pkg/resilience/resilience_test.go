package resilience

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "github.com/Adithya-Monish-Kumar-K/Symptom-Search-Platform/pkg/errors"
)

var errBoom = errors.New("boom")

func fastRetry(attempts int) RetryConfig {
	return RetryConfig{MaxAttempts: attempts, InitialDelay: time.Millisecond, MaxDelay: 2 * time.Millisecond}
}

func TestRetrySucceedsAfterFailures(t *testing.T) {
	calls := 0
	err := Retry(context.Background(), "test", fastRetry(5), func() error {
		calls++
		if calls < 3 {
			return errBoom
		}
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, 3, calls)
}

func TestRetryGivesUp(t *testing.T) {
	calls := 0
	err := Retry(context.Background(), "test", fastRetry(3), func() error {
		calls++
		return errBoom
	})
	assert.ErrorIs(t, err, errBoom)
	assert.Equal(t, 3, calls)
}

func TestRetryStopsOnPermanent(t *testing.T) {
	calls := 0
	err := Retry(context.Background(), "test", fastRetry(5), func() error {
		calls++
		return Permanent(errBoom)
	})
	assert.Equal(t, errBoom, err)
	assert.Equal(t, 1, calls)
	assert.NoError(t, Permanent(nil))
}

func TestRetryHonoursContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err := Retry(ctx, "test", RetryConfig{MaxAttempts: 3, InitialDelay: time.Hour}, func() error {
		return errBoom
	})
	assert.ErrorIs(t, err, context.Canceled)
}

func TestWithTimeout(t *testing.T) {
	err := WithTimeout(context.Background(), time.Second, "fast", func(ctx context.Context) error {
		return nil
	})
	require.NoError(t, err)

	release := make(chan struct{})
	defer close(release)
	err = WithTimeout(context.Background(), 10*time.Millisecond, "slow", func(ctx context.Context) error {
		select {
		case <-release:
		case <-ctx.Done():
		}
		return nil
	})
	assert.ErrorIs(t, err, apperrors.ErrTimeout)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestWithTimeoutZeroRunsInline(t *testing.T) {
	err := WithTimeout(context.Background(), 0, "inline", func(ctx context.Context) error {
		return errBoom
	})
	assert.Equal(t, errBoom, err)
}

func TestCircuitBreakerTripsAndRecovers(t *testing.T) {
	now := time.Unix(1000, 0)
	cb := NewCircuitBreaker("redis", BreakerConfig{FailureThreshold: 2, ResetTimeout: time.Minute})
	cb.now = func() time.Time { return now }

	fail := func() error { return errBoom }
	ok := func() error { return nil }

	assert.ErrorIs(t, cb.Execute(fail), errBoom)
	assert.Equal(t, StateClosed, cb.State())
	assert.ErrorIs(t, cb.Execute(fail), errBoom)
	assert.Equal(t, StateOpen, cb.State())

	called := false
	err := cb.Execute(func() error { called = true; return nil })
	assert.ErrorIs(t, err, ErrCircuitOpen)
	assert.False(t, called)

	now = now.Add(time.Minute)
	require.NoError(t, cb.Execute(ok))
	assert.Equal(t, StateClosed, cb.State())
}

func TestCircuitBreakerHalfOpenFailureReopens(t *testing.T) {
	now := time.Unix(1000, 0)
	cb := NewCircuitBreaker("redis", BreakerConfig{FailureThreshold: 1, ResetTimeout: time.Second})
	cb.now = func() time.Time { return now }

	_ = cb.Execute(func() error { return errBoom })
	require.Equal(t, StateOpen, cb.State())
	now = now.Add(time.Second)
	_ = cb.Execute(func() error { return errBoom })
	assert.Equal(t, StateOpen, cb.State())

	cb.Reset()
	assert.Equal(t, StateClosed, cb.State())
}

func TestCircuitBreakerIgnoresNonFailures(t *testing.T) {
	errMiss := errors.New("miss")
	cb := NewCircuitBreaker("redis", BreakerConfig{
		FailureThreshold: 1,
		IsFailure:        func(err error) bool { return !errors.Is(err, errMiss) },
	})
	for i := 0; i < 3; i++ {
		assert.ErrorIs(t, cb.Execute(func() error { return errMiss }), errMiss)
	}
	assert.Equal(t, StateClosed, cb.State())
}
