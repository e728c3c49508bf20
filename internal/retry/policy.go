// Package retry implements the cross-cutting retry and circuit-breaker layer.
// Three independent tiers compose: job-level (owned by the trigger around the
// coordinator), message-level (owned by the queue redelivery schedule) and
// adapter-level (owned by RetryPolicy.Do around each prediction-system call).
package retry

import (
	"context"
	"math"
	"time"

	"github.com/najicham/nba-stats-scraper-sub021/internal/exception"
	"github.com/najicham/nba-stats-scraper-sub021/internal/logger"
)

// RetryPolicy defines retry logic for a single tier: whether an error is
// retryable, how long to back off, and how many attempts are allowed.
type RetryPolicy interface {
	// ShouldRetry determines if a given error is retryable.
	ShouldRetry(err error) bool
	// BackoffInterval returns the wait before the next attempt.
	// attempt is the attempt number that just failed, starting from 1.
	BackoffInterval(attempt int) time.Duration
	// MaxAttempts returns the total number of attempts allowed, including the first.
	MaxAttempts() int
	// Do runs op with this policy, sleeping the backoff interval between
	// attempts and honoring context cancellation.
	Do(ctx context.Context, name string, op func(ctx context.Context) error) error
}

// NewExponentialPolicy creates a RetryPolicy with exponential backoff:
// initialInterval doubles after every failed attempt.
func NewExponentialPolicy(maxAttempts int, initialInterval time.Duration) RetryPolicy {
	return &exponentialPolicy{
		maxAttempts:     maxAttempts,
		initialInterval: initialInterval,
		factor:          2.0,
	}
}

// NewSchedulePolicy creates a RetryPolicy whose backoff follows a fixed
// per-attempt schedule (e.g. 10s then 30s for queue redelivery). Attempts
// beyond the schedule reuse its last entry.
func NewSchedulePolicy(maxAttempts int, schedule []time.Duration) RetryPolicy {
	return &schedulePolicy{maxAttempts: maxAttempts, schedule: schedule}
}

type exponentialPolicy struct {
	maxAttempts     int
	initialInterval time.Duration
	factor          float64
}

func (p *exponentialPolicy) MaxAttempts() int {
	return p.maxAttempts
}

func (p *exponentialPolicy) ShouldRetry(err error) bool {
	return exception.IsTemporary(err)
}

func (p *exponentialPolicy) BackoffInterval(attempt int) time.Duration {
	if attempt < 1 {
		attempt = 1
	}
	return time.Duration(float64(p.initialInterval) * math.Pow(p.factor, float64(attempt)))
}

func (p *exponentialPolicy) Do(ctx context.Context, name string, op func(ctx context.Context) error) error {
	return run(ctx, p, name, op)
}

type schedulePolicy struct {
	maxAttempts int
	schedule    []time.Duration
}

func (p *schedulePolicy) MaxAttempts() int {
	return p.maxAttempts
}

func (p *schedulePolicy) ShouldRetry(err error) bool {
	return exception.IsTemporary(err)
}

func (p *schedulePolicy) BackoffInterval(attempt int) time.Duration {
	if len(p.schedule) == 0 {
		return 0
	}
	idx := attempt - 1
	if idx < 0 {
		idx = 0
	}
	if idx >= len(p.schedule) {
		idx = len(p.schedule) - 1
	}
	return p.schedule[idx]
}

func (p *schedulePolicy) Do(ctx context.Context, name string, op func(ctx context.Context) error) error {
	return run(ctx, p, name, op)
}

// run executes op under the given policy. The last error is returned when
// attempts are exhausted or the error is not retryable.
func run(ctx context.Context, p RetryPolicy, name string, op func(ctx context.Context) error) error {
	var lastErr error
	for attempt := 1; attempt <= p.MaxAttempts(); attempt++ {
		lastErr = op(ctx)
		if lastErr == nil {
			return nil
		}
		if !p.ShouldRetry(lastErr) {
			return lastErr
		}
		if attempt == p.MaxAttempts() {
			break
		}

		backoff := p.BackoffInterval(attempt)
		logger.Debugf("Retry '%s': attempt %d/%d failed (%v). Backing off %s.", name, attempt, p.MaxAttempts(), lastErr, backoff)
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(backoff):
		}
	}
	return lastErr
}

// Verify interfaces.
var (
	_ RetryPolicy = (*exponentialPolicy)(nil)
	_ RetryPolicy = (*schedulePolicy)(nil)
)
