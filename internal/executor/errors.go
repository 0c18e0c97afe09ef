package executor

import (
	"errors"
	"strings"
)

// ErrorClass categorizes delegate errors for retry decisions.
type ErrorClass string

const (
	// ErrorClassInvalidInput indicates the request itself is malformed.
	// Never retried.
	ErrorClassInvalidInput ErrorClass = "INVALID_INPUT"

	// ErrorClassPermissionDenied indicates the delegate refused the
	// operation. Never retried.
	ErrorClassPermissionDenied ErrorClass = "PERMISSION_DENIED"

	// ErrorClassTimeout indicates the attempt exceeded its deadline.
	ErrorClassTimeout ErrorClass = "TIMEOUT"

	// ErrorClassTransient covers everything retryable that is not a
	// timeout: connection failures, delegate-side crashes, overload.
	ErrorClassTransient ErrorClass = "TRANSIENT"

	// ErrorClassFallbackRequired means the breaker rejected the call
	// before the delegate was contacted. Surfaced immediately; the
	// caller decides further action.
	ErrorClassFallbackRequired ErrorClass = "FALLBACK_REQUIRED"
)

// ErrFallbackRequired is returned when the circuit breaker is open.
var ErrFallbackRequired = errors.New("delegate circuit open: fallback required")

// ClassifyError categorizes a delegate error by inspecting its message
// for known patterns, most specific first.
func ClassifyError(err error) ErrorClass {
	if err == nil {
		return ErrorClassTransient
	}
	if errors.Is(err, ErrFallbackRequired) {
		return ErrorClassFallbackRequired
	}
	msg := strings.ToLower(err.Error())

	// Invalid input: malformed arguments, unknown module/operation.
	if strings.Contains(msg, "invalid input") ||
		strings.Contains(msg, "invalid argument") ||
		strings.Contains(msg, "malformed") ||
		strings.Contains(msg, "unknown module") ||
		strings.Contains(msg, "unknown operation") ||
		strings.Contains(msg, "bad request") {
		return ErrorClassInvalidInput
	}

	// Permission: denied operations, auth failures.
	if strings.Contains(msg, "permission denied") ||
		strings.Contains(msg, "unauthorized") ||
		strings.Contains(msg, "forbidden") ||
		strings.Contains(msg, "not allowed") {
		return ErrorClassPermissionDenied
	}

	// Timeout: deadline exceeded, timed out.
	if strings.Contains(msg, "deadline exceeded") ||
		strings.Contains(msg, "timeout") ||
		strings.Contains(msg, "timed out") {
		return ErrorClassTimeout
	}

	return ErrorClassTransient
}

// Retryable reports whether an error class feeds the retry loop.
func Retryable(class ErrorClass) bool {
	switch class {
	case ErrorClassInvalidInput, ErrorClassPermissionDenied, ErrorClassFallbackRequired:
		return false
	default:
		return true
	}
}
