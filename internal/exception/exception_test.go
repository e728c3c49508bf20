// Package exception_test provides unit tests for the error classification
// utilities shared by the retry tiers.
package exception_test

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/najicham/nba-stats-scraper-sub021/internal/exception"
)

func TestBatchError_ErrorAndUnwrap(t *testing.T) {
	original := errors.New("dial tcp: connection refused")
	err := exception.NewBatchError("queue", "failed to publish work item", original, false, true)

	assert.Equal(t, "[queue] failed to publish work item: dial tcp: connection refused", err.Error())
	assert.ErrorIs(t, err, original)
	assert.True(t, err.IsRetryable())
	assert.False(t, err.IsSkippable())
	assert.NotEmpty(t, err.StackTrace)

	bare := exception.NewBatchErrorf("config", "invalid dispatch mode '%s'", "BOTH")
	assert.Equal(t, "[config] invalid dispatch mode 'BOTH'", bare.Error())
	assert.Nil(t, errors.Unwrap(bare))
}

func TestIsTemporary(t *testing.T) {
	cases := []struct {
		name string
		err  error
		want bool
	}{
		{"nil", nil, false},
		{"retryable batch error", exception.NewRetryableError("queue", "publish failed", errors.New("down")), true},
		{"fatal batch error", exception.NewFatalError("worker", "bad payload", nil), false},
		{"retryable flag wins over fatal-looking text", exception.NewRetryableError("db", "permission denied", nil), true},
		{"deadline exceeded", context.DeadlineExceeded, true},
		{"wrapped deadline", fmt.Errorf("query: %w", context.DeadlineExceeded), true},
		{"timeout text", errors.New("i/o timeout"), true},
		{"connection refused text", errors.New("dial tcp: connection refused"), true},
		{"connection reset text", errors.New("read: connection reset by peer"), true},
		{"eof text", errors.New("unexpected EOF"), true},
		{"plain error", errors.New("validation failed"), false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, exception.IsTemporary(tc.err))
		})
	}
}

func TestIsFatal(t *testing.T) {
	assert.True(t, exception.IsFatal(exception.NewFatalError("worker", "corrupt vector", nil)))
	assert.False(t, exception.IsFatal(exception.NewRetryableError("queue", "transient", nil)))
	assert.False(t, exception.IsFatal(exception.NewBatchError("worker", "skipped", nil, true, false)))
	assert.True(t, exception.IsFatal(errors.New("rpc error: invalid argument")))
	assert.False(t, exception.IsFatal(errors.New("temporarily unavailable")))
	assert.False(t, exception.IsFatal(nil))
}

func TestExtractErrorMessage(t *testing.T) {
	wrapped := exception.NewBatchError("gate", "upstream completion check failed", errors.New("connection refused"), false, true)
	assert.Equal(t, "upstream completion check failed", exception.ExtractErrorMessage(wrapped))

	// Wrapping a BatchError deeper still surfaces its message.
	deeper := fmt.Errorf("while polling: %w", wrapped)
	assert.Equal(t, "upstream completion check failed", exception.ExtractErrorMessage(deeper))

	assert.Equal(t, "plain failure", exception.ExtractErrorMessage(errors.New("plain failure")))
	assert.Equal(t, "", exception.ExtractErrorMessage(nil))
}

func TestSentinelErrorsAreDistinct(t *testing.T) {
	sentinels := []error{
		exception.ErrUpstreamNotReady,
		exception.ErrInsufficientSystems,
		exception.ErrCircuitOpen,
		exception.ErrFeaturesNotFound,
		exception.ErrHistoryUnavailable,
	}
	for i, a := range sentinels {
		for j, b := range sentinels {
			if i == j {
				continue
			}
			require.False(t, errors.Is(a, b))
		}
	}
}
