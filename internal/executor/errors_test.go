package executor

import (
	"context"
	"errors"
	"fmt"
	"testing"
)

func TestClassifyError(t *testing.T) {
	cases := []struct {
		name string
		err  error
		want ErrorClass
	}{
		{"invalid_input", errors.New("invalid input: args[0] must be a string"), ErrorClassInvalidInput},
		{"invalid_argument", errors.New("grpc: invalid argument"), ErrorClassInvalidInput},
		{"malformed", errors.New("malformed request body"), ErrorClassInvalidInput},
		{"unknown_module", errors.New("unknown module: telepathy"), ErrorClassInvalidInput},
		{"unknown_operation", errors.New("unknown operation: fly"), ErrorClassInvalidInput},
		{"permission_denied", errors.New("permission denied for module crypto"), ErrorClassPermissionDenied},
		{"unauthorized", errors.New("401 Unauthorized"), ErrorClassPermissionDenied},
		{"forbidden", errors.New("operation forbidden by policy"), ErrorClassPermissionDenied},
		{"deadline", context.DeadlineExceeded, ErrorClassTimeout},
		{"timed_out", errors.New("delegate call timed out"), ErrorClassTimeout},
		{"connection_refused", errors.New("dial tcp: connection refused"), ErrorClassTransient},
		{"internal", errors.New("delegate crashed"), ErrorClassTransient},
		{"nil", nil, ErrorClassTransient},
		{"fallback", ErrFallbackRequired, ErrorClassFallbackRequired},
		{"wrapped_fallback", fmt.Errorf("execute: %w", ErrFallbackRequired), ErrorClassFallbackRequired},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			if got := ClassifyError(c.err); got != c.want {
				t.Errorf("ClassifyError(%v) = %s, want %s", c.err, got, c.want)
			}
		})
	}
}

func TestRetryable(t *testing.T) {
	if Retryable(ErrorClassInvalidInput) {
		t.Error("invalid input must not retry")
	}
	if Retryable(ErrorClassPermissionDenied) {
		t.Error("permission denied must not retry")
	}
	if Retryable(ErrorClassFallbackRequired) {
		t.Error("breaker rejection must not retry")
	}
	if !Retryable(ErrorClassTimeout) {
		t.Error("timeout should retry")
	}
	if !Retryable(ErrorClassTransient) {
		t.Error("transient errors should retry")
	}
}
