// Package exception provides custom error types and error classification
// utilities for the prediction batch system. It standardizes errors so that
// retry, skip and dead-letter decisions can be made uniformly at component
// boundaries.
package exception

import (
	"context"
	"errors"
	"fmt"
	"runtime"
	"strings"
)

// BatchError is a custom error type for failures during batch processing.
// It holds the module where the error occurred, a message, the wrapped
// original error, and flags indicating whether it is retryable or skippable.
type BatchError struct {
	// Module indicates the component where the error occurred (e.g., "gate", "dispatch", "worker").
	Module string
	// Message is a concise description of the error.
	Message string
	// OriginalErr is the wrapped original error.
	OriginalErr error
	// isRetryable indicates whether this error is retryable.
	isRetryable bool
	// isSkippable indicates whether this error is skippable.
	isSkippable bool
	// StackTrace is the stack trace at the time of the error (for debugging).
	StackTrace string
}

// NewBatchError creates a new BatchError instance.
// module: The component where the error occurred.
// message: The error message.
// originalErr: The original error to wrap (may be nil).
// isSkippable: Whether this error is skippable.
// isRetryable: Whether this error is retryable.
func NewBatchError(module, message string, originalErr error, isSkippable, isRetryable bool) *BatchError {
	buf := make([]byte, 2048)
	n := runtime.Stack(buf, false)

	return &BatchError{
		Module:      module,
		Message:     message,
		OriginalErr: originalErr,
		isRetryable: isRetryable,
		isSkippable: isSkippable,
		StackTrace:  string(buf[:n]),
	}
}

// NewBatchErrorf creates a new BatchError with a formatted message.
// The resulting error is neither retryable nor skippable.
func NewBatchErrorf(module, format string, a ...interface{}) *BatchError {
	return NewBatchError(module, fmt.Sprintf(format, a...), nil, false, false)
}

// NewRetryableError creates a BatchError flagged as retryable.
func NewRetryableError(module, message string, originalErr error) *BatchError {
	return NewBatchError(module, message, originalErr, false, true)
}

// NewFatalError creates a BatchError that is neither retryable nor skippable.
func NewFatalError(module, message string, originalErr error) *BatchError {
	return NewBatchError(module, message, originalErr, false, false)
}

// Error implements the error interface.
func (e *BatchError) Error() string {
	if e.OriginalErr != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Module, e.Message, e.OriginalErr)
	}
	return fmt.Sprintf("[%s] %s", e.Module, e.Message)
}

// Unwrap returns the original error for errors.Unwrap.
func (e *BatchError) Unwrap() error {
	return e.OriginalErr
}

// IsRetryable returns whether this error is retryable.
func (e *BatchError) IsRetryable() bool {
	return e.isRetryable
}

// IsSkippable returns whether this error is skippable.
func (e *BatchError) IsSkippable() bool {
	return e.isSkippable
}

// Sentinel errors shared across components.
var (
	// ErrUpstreamNotReady indicates the dependency gate found upstream data
	// missing or below the configured quality floor.
	ErrUpstreamNotReady = errors.New("upstream data not ready")

	// ErrInsufficientSystems indicates fewer base prediction systems produced
	// results than the configured ensemble quorum.
	ErrInsufficientSystems = errors.New("insufficient systems for ensemble")

	// ErrCircuitOpen indicates a prediction system call was suppressed because
	// its circuit breaker is open.
	ErrCircuitOpen = errors.New("circuit breaker open")

	// ErrFeaturesNotFound indicates no feature row exists for a player/date.
	ErrFeaturesNotFound = errors.New("features not found")

	// ErrHistoryUnavailable indicates game history could not be loaded.
	ErrHistoryUnavailable = errors.New("history unavailable")
)

// IsTemporary determines if an error is temporary (network error, timeout,
// transient DB connection issue). Retry logic uses this classification.
// For a BatchError the IsRetryable flag takes precedence.
func IsTemporary(err error) bool {
	if err == nil {
		return false
	}
	var be *BatchError
	if errors.As(err, &be) {
		return be.IsRetryable()
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	errStr := err.Error()
	return strings.Contains(errStr, "timeout") ||
		strings.Contains(errStr, "connection refused") ||
		strings.Contains(errStr, "connection reset") ||
		strings.Contains(errStr, "EOF")
}

// IsFatal determines if an error is fatal (neither retryable nor skippable).
// Fatal errors fail the work item without redelivery.
func IsFatal(err error) bool {
	if err == nil {
		return false
	}
	var be *BatchError
	if errors.As(err, &be) {
		return !be.IsRetryable() && !be.IsSkippable()
	}
	errStr := err.Error()
	return strings.Contains(errStr, "invalid argument") ||
		strings.Contains(errStr, "permission denied") ||
		strings.Contains(errStr, "data corruption")
}

// ExtractErrorMessage extracts a clean message string from an error.
// For BatchError it returns the Message field; otherwise the Error() string.
func ExtractErrorMessage(err error) string {
	if err == nil {
		return ""
	}
	var be *BatchError
	if errors.As(err, &be) {
		return be.Message
	}
	return err.Error()
}
