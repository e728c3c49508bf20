package retry

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/najicham/nba-stats-scraper-sub021/internal/exception"
)

func TestExponentialPolicy_BackoffDoubles(t *testing.T) {
	p := NewExponentialPolicy(5, 100*time.Millisecond)

	assert.Equal(t, 200*time.Millisecond, p.BackoffInterval(1))
	assert.Equal(t, 400*time.Millisecond, p.BackoffInterval(2))
	assert.Equal(t, 800*time.Millisecond, p.BackoffInterval(3))
	// Invalid attempt numbers are treated as the first attempt.
	assert.Equal(t, 200*time.Millisecond, p.BackoffInterval(0))
}

func TestSchedulePolicy_ReusesLastEntry(t *testing.T) {
	p := NewSchedulePolicy(4, []time.Duration{10 * time.Second, 30 * time.Second})

	assert.Equal(t, 10*time.Second, p.BackoffInterval(1))
	assert.Equal(t, 30*time.Second, p.BackoffInterval(2))
	assert.Equal(t, 30*time.Second, p.BackoffInterval(3))

	empty := NewSchedulePolicy(3, nil)
	assert.Equal(t, time.Duration(0), empty.BackoffInterval(1))
}

func TestPolicy_ShouldRetryClassification(t *testing.T) {
	p := NewExponentialPolicy(3, time.Millisecond)

	assert.True(t, p.ShouldRetry(errors.New("dial tcp: connection refused")))
	assert.True(t, p.ShouldRetry(exception.NewRetryableError("queue", "publish failed", errors.New("redis down"))))
	assert.False(t, p.ShouldRetry(exception.NewFatalError("worker", "decode failed", errors.New("bad payload"))))
	assert.False(t, p.ShouldRetry(errors.New("validation failed")))
}

func TestDo_RetriesUntilSuccess(t *testing.T) {
	p := NewExponentialPolicy(3, time.Millisecond)

	calls := 0
	err := p.Do(context.Background(), "flaky", func(ctx context.Context) error {
		calls++
		if calls < 3 {
			return exception.NewRetryableError("test", "transient failure", errors.New("transient"))
		}
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, 3, calls)
}

func TestDo_FatalErrorStopsImmediately(t *testing.T) {
	p := NewExponentialPolicy(3, time.Millisecond)

	calls := 0
	err := p.Do(context.Background(), "fatal", func(ctx context.Context) error {
		calls++
		return exception.NewFatalError("test", "unrecoverable failure", errors.New("unrecoverable"))
	})
	require.Error(t, err)
	assert.Equal(t, 1, calls)
}

func TestDo_ExhaustsAttempts(t *testing.T) {
	p := NewExponentialPolicy(3, time.Millisecond)

	calls := 0
	err := p.Do(context.Background(), "always-failing", func(ctx context.Context) error {
		calls++
		return exception.NewRetryableError("test", "still down", errors.New("still down"))
	})
	require.Error(t, err)
	assert.Equal(t, 3, calls)
}

func TestDo_HonorsContextCancellation(t *testing.T) {
	p := NewExponentialPolicy(3, time.Hour)

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(20 * time.Millisecond)
		cancel()
	}()

	err := p.Do(ctx, "slow-backoff", func(ctx context.Context) error {
		return exception.NewRetryableError("test", "transient failure", errors.New("transient"))
	})
	assert.ErrorIs(t, err, context.Canceled)
}

func TestCircuitBreaker_OpensAfterThreshold(t *testing.T) {
	cb := NewCircuitBreaker(3, time.Minute)

	for i := 0; i < 2; i++ {
		cb.OnFailure()
	}
	assert.Equal(t, BreakerClosed, cb.State())
	assert.True(t, cb.Allow())

	cb.OnFailure()
	assert.Equal(t, BreakerOpen, cb.State())
	assert.False(t, cb.Allow())
}

func TestCircuitBreaker_HalfOpenProbeCycle(t *testing.T) {
	base := time.Date(2026, 1, 15, 12, 0, 0, 0, time.UTC)
	current := base

	cb := NewCircuitBreaker(1, time.Minute)
	cb.now = func() time.Time { return current }

	cb.OnFailure()
	require.Equal(t, BreakerOpen, cb.State())
	assert.False(t, cb.Allow())

	// After the reset interval exactly one probe is admitted.
	current = base.Add(61 * time.Second)
	assert.True(t, cb.Allow())
	assert.Equal(t, BreakerHalfOpen, cb.State())
	assert.False(t, cb.Allow())

	// A failed probe reopens the circuit immediately.
	cb.OnFailure()
	assert.Equal(t, BreakerOpen, cb.State())
	assert.False(t, cb.Allow())

	// A successful probe after another wait closes it.
	current = current.Add(61 * time.Second)
	require.True(t, cb.Allow())
	cb.OnSuccess()
	assert.Equal(t, BreakerClosed, cb.State())
	assert.True(t, cb.Allow())
}

func TestCircuitBreaker_SuccessResetsFailureCount(t *testing.T) {
	cb := NewCircuitBreaker(3, time.Minute)

	cb.OnFailure()
	cb.OnFailure()
	cb.OnSuccess()
	cb.OnFailure()
	cb.OnFailure()
	assert.Equal(t, BreakerClosed, cb.State())
}

func TestCircuitBreaker_DisabledThresholdAlwaysAllows(t *testing.T) {
	cb := NewCircuitBreaker(0, time.Minute)

	for i := 0; i < 10; i++ {
		cb.OnFailure()
	}
	assert.True(t, cb.Allow())
	assert.Equal(t, BreakerClosed, cb.State())
}

func TestBreakerSet_IsolatesSystems(t *testing.T) {
	set := NewBreakerSet(1, time.Minute)

	set.For("sys-a").OnFailure()
	assert.False(t, set.For("sys-a").Allow())
	assert.True(t, set.For("sys-b").Allow())

	// Same system id returns the same breaker.
	assert.Same(t, set.For("sys-a"), set.For("sys-a"))
}
