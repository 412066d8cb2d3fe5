// Package domain contains the core domain models and types.
package domain

import (
	"errors"
	"fmt"
	"time"
)

// Sentinel errors for common failure cases.
var (
	// ErrInvalidOperation indicates the operation is malformed or cannot be rendered into a prompt.
	ErrInvalidOperation = errors.New("invalid operation")

	// ErrOverloaded indicates no admission slot became free before the deadline.
	ErrOverloaded = errors.New("AI orchestrator overloaded")

	// ErrSchemaViolation indicates a provider response does not match the result schema.
	ErrSchemaViolation = errors.New("response violates result schema")

	// ErrEmptyText indicates the submitted text is empty or whitespace only.
	ErrEmptyText = errors.New("text is empty")

	// ErrTextTooShort indicates the submitted text is below the minimum length.
	ErrTextTooShort = errors.New("text is too short")

	// ErrTextTooLong indicates the submitted text exceeds the maximum length.
	ErrTextTooLong = errors.New("text exceeds maximum length")

	// ErrNotFound indicates a stored record does not exist.
	ErrNotFound = errors.New("not found")

	// ErrInvalidConfig indicates invalid configuration.
	ErrInvalidConfig = errors.New("invalid configuration")
)

// FailureReason classifies a failed provider call.
type FailureReason string

const (
	ReasonTimeout         FailureReason = "timeout"
	ReasonRateLimited     FailureReason = "rate_limited"
	ReasonTransportError  FailureReason = "transport_error"
	ReasonInvalidResponse FailureReason = "invalid_response"
)

// ProviderError describes a single failed provider call.
type ProviderError struct {
	// Provider is the adapter name that produced the error.
	Provider string

	// Reason is the failure class.
	Reason FailureReason

	// Retryable reports whether repeating the same call may succeed.
	Retryable bool

	// RetryAfter is the server-requested wait, zero when absent.
	RetryAfter time.Duration

	// Err is the underlying error.
	Err error
}

// Error implements the error interface.
func (e *ProviderError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("%s: %s", e.Provider, e.Reason)
	}
	return fmt.Sprintf("%s: %s: %v", e.Provider, e.Reason, e.Err)
}

// Unwrap returns the underlying error.
func (e *ProviderError) Unwrap() error {
	return e.Err
}

// NewProviderError creates a ProviderError.
func NewProviderError(provider string, reason FailureReason, retryable bool, err error) *ProviderError {
	return &ProviderError{
		Provider:  provider,
		Reason:    reason,
		Retryable: retryable,
		Err:       err,
	}
}

// Error wraps an error with the operation that failed.
type Error struct {
	// Op is the operation that failed.
	Op string

	// Err is the underlying error.
	Err error
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.Op != "" {
		return fmt.Sprintf("%s: %v", e.Op, e.Err)
	}
	return e.Err.Error()
}

// Unwrap returns the underlying error.
func (e *Error) Unwrap() error {
	return e.Err
}

// WrapError creates a new Error with context.
func WrapError(op string, err error) *Error {
	return &Error{Op: op, Err: err}
}

// IsRetryable checks if an error is a retryable provider failure.
func IsRetryable(err error) bool {
	var pe *ProviderError
	if errors.As(err, &pe) {
		return pe.Retryable
	}
	return false
}

// ReasonOf returns the failure reason carried by err, or transport_error when err
// is not a ProviderError.
func ReasonOf(err error) FailureReason {
	var pe *ProviderError
	if errors.As(err, &pe) {
		return pe.Reason
	}
	return ReasonTransportError
}
