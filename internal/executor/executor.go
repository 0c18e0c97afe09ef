// Package executor runs one delegated request against the delegate
// environment, retrying transient failures with linearly increasing
// delay behind the shared circuit breaker. All retry and backoff logic
// is contained here; callers only ever see terminal outcomes.
package executor

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/anvil/offbridge/internal/breaker"
	"github.com/anvil/offbridge/internal/bus"
	"github.com/anvil/offbridge/internal/delegate"
	"github.com/anvil/offbridge/internal/otel"
	"github.com/anvil/offbridge/internal/task"
)

const (
	// DefaultMaxAttempts is the per-request attempt budget.
	DefaultMaxAttempts = 3
	// DefaultBaseDelay is multiplied by the attempt number between retries.
	DefaultBaseDelay = 1 * time.Second
)

// Config holds the executor's tunables and collaborators.
type Config struct {
	MaxAttempts int
	BaseDelay   time.Duration
	Bus         *bus.Bus
	Metrics     *otel.Metrics
	Logger      *slog.Logger
}

// Executor executes delegated requests with retry and breaker guarding.
type Executor struct {
	client  delegate.Client
	breaker *breaker.Breaker

	maxAttempts int
	baseDelay   time.Duration
	events      *bus.Bus
	metrics     *otel.Metrics
	logger      *slog.Logger
}

// New creates an Executor around the given delegate client and breaker.
func New(client delegate.Client, brk *breaker.Breaker, cfg Config) *Executor {
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = DefaultMaxAttempts
	}
	if cfg.BaseDelay <= 0 {
		cfg.BaseDelay = DefaultBaseDelay
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Executor{
		client:      client,
		breaker:     brk,
		maxAttempts: cfg.MaxAttempts,
		baseDelay:   cfg.BaseDelay,
		events:      cfg.Bus,
		metrics:     cfg.Metrics,
		logger:      logger,
	}
}

// Execute runs one request to a terminal outcome. The returned Result
// is always non-nil: either a success payload or a single error
// classification. The breaker is consulted once up front and updated
// once per terminal outcome.
func (e *Executor) Execute(ctx context.Context, req *task.Request, execCtx task.ExecContext) *task.Result {
	start := time.Now()

	if !e.breaker.Allow() {
		if e.metrics != nil {
			e.metrics.BreakerRejects.Add(ctx, 1)
		}
		e.logger.Warn("request rejected: circuit open", "request_id", req.ID, "module", req.Module)
		return &task.Result{
			RequestID:  req.ID,
			Module:     req.Module,
			Success:    false,
			Error:      ErrFallbackRequired.Error(),
			ErrorClass: string(ErrorClassFallbackRequired),
			Elapsed:    time.Since(start),
		}
	}

	timeout := req.Timeout
	if timeout <= 0 {
		timeout = execCtx.Timeout
	}
	if timeout <= 0 {
		timeout = 2 * time.Minute
	}

	envelope := delegate.ExecuteRequest{
		ID:             req.ID,
		Module:         req.Module,
		Operation:      req.Operation,
		Args:           req.Args,
		TimeoutMs:      timeout.Milliseconds(),
		Priority:       req.Priority.String(),
		RequireGPU:     execCtx.RequireGPU,
		MaxMemoryMB:    execCtx.MaxMemoryMB,
		NetworkAllowed: execCtx.NetworkAllowed,
		Sandboxed:      execCtx.Sandboxed,
		Env:            execCtx.Env,
	}

	var lastErr error
	var lastClass ErrorClass
	attempts := 0

	for attempt := 1; attempt <= e.maxAttempts; attempt++ {
		attempts = attempt

		callStart := time.Now()
		callCtx, cancel := context.WithTimeout(ctx, timeout)
		res, err := e.client.Execute(callCtx, envelope)
		cancel()
		if e.metrics != nil {
			e.metrics.DelegateDuration.Record(ctx, time.Since(callStart).Seconds())
		}

		if err == nil && res.Success {
			e.breaker.RecordSuccess()
			return &task.Result{
				RequestID: req.ID,
				Module:    req.Module,
				Success:   true,
				Output:    res.Result,
				Elapsed:   time.Since(start),
				Attempts:  attempt,
				Metadata:  res.Metadata,
			}
		}

		if err == nil {
			// Delegate-reported failure.
			err = errors.New(res.Error)
		}
		lastErr = err
		lastClass = ClassifyError(err)

		if !Retryable(lastClass) {
			e.logger.Warn("non-retryable delegate error",
				"request_id", req.ID,
				"module", req.Module,
				"error_class", string(lastClass),
				"error", err,
			)
			break
		}

		e.logger.Warn("delegate attempt failed",
			"request_id", req.ID,
			"module", req.Module,
			"attempt", attempt,
			"error_class", string(lastClass),
			"error", err,
		)

		if attempt == e.maxAttempts {
			break
		}
		if e.events != nil {
			e.events.Publish(bus.TopicRequestRetrying, bus.RequestRetryingEvent{
				RequestID: req.ID,
				Module:    req.Module,
				Attempt:   attempt + 1,
				Error:     err.Error(),
			})
		}
		if e.metrics != nil {
			e.metrics.RetryCount.Add(ctx, 1)
		}
		// Linear backoff: baseDelay × attempt number.
		select {
		case <-time.After(e.baseDelay * time.Duration(attempt)):
		case <-ctx.Done():
			e.breaker.RecordFailure()
			canceled := ctx.Err()
			return &task.Result{
				RequestID:  req.ID,
				Module:     req.Module,
				Success:    false,
				Error:      canceled.Error(),
				ErrorClass: string(ClassifyError(canceled)),
				Elapsed:    time.Since(start),
				Attempts:   attempt,
			}
		}
	}

	e.breaker.RecordFailure()
	return &task.Result{
		RequestID:  req.ID,
		Module:     req.Module,
		Success:    false,
		Error:      lastErr.Error(),
		ErrorClass: string(lastClass),
		Elapsed:    time.Since(start),
		Attempts:   attempts,
	}
}
