// Package bridge owns the dispatcher: it admits queued requests into
// execution slots under the concurrency cap, tracks active requests,
// and derives the aggregate bridge status. Admission and execution are
// decoupled so a slow in-flight request never stalls new enqueues.
package bridge

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/anvil/offbridge/internal/breaker"
	"github.com/anvil/offbridge/internal/bus"
	"github.com/anvil/offbridge/internal/delegate"
	"github.com/anvil/offbridge/internal/executor"
	"github.com/anvil/offbridge/internal/metrics"
	"github.com/anvil/offbridge/internal/otel"
	"github.com/anvil/offbridge/internal/persistence"
	"github.com/anvil/offbridge/internal/queue"
	"github.com/anvil/offbridge/internal/task"
)

// DefaultMaxConcurrent caps simultaneously active delegate requests.
const DefaultMaxConcurrent = 5

// ErrNotInitialized is returned by Submit before a successful Initialize.
var ErrNotInitialized = errors.New("bridge not initialized")

// Config holds the bridge's tunables and collaborators.
type Config struct {
	MaxConcurrent  int
	SweepInterval  time.Duration
	DefaultTimeout time.Duration
	Bus            *bus.Bus
	Metrics        *otel.Metrics
	Logger         *slog.Logger
	Store          *persistence.Store // optional delegation history
}

// Bridge wires the queue, breaker, executor and metrics tracker
// together behind Submit and Status.
type Bridge struct {
	client  delegate.Client
	exec    *executor.Executor
	brk     *breaker.Breaker
	queue   *queue.Queue
	tracker *metrics.Tracker

	cfg    Config
	events *bus.Bus
	logger *slog.Logger

	mu          sync.Mutex
	active      map[string]*ActiveRequest
	initialized bool
	maintenance bool
	lastStatus  Status

	runCtx context.Context
	cancel context.CancelFunc
	wake   chan struct{}
	once   sync.Once
	wg     sync.WaitGroup
}

// New creates a Bridge. The executor must share the given breaker.
func New(client delegate.Client, brk *breaker.Breaker, exec *executor.Executor, cfg Config) *Bridge {
	if cfg.MaxConcurrent <= 0 {
		cfg.MaxConcurrent = DefaultMaxConcurrent
	}
	if cfg.SweepInterval <= 0 {
		cfg.SweepInterval = 250 * time.Millisecond
	}
	if cfg.DefaultTimeout <= 0 {
		cfg.DefaultTimeout = 2 * time.Minute
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Bridge{
		client:  client,
		exec:    exec,
		brk:     brk,
		queue:   queue.New(),
		tracker: metrics.NewTracker(),
		cfg:     cfg,
		events:  cfg.Bus,
		logger:  logger,
		active:  make(map[string]*ActiveRequest),
		wake:    make(chan struct{}, 1),
		runCtx:  context.Background(),
	}
}

// Initialize performs one connectivity probe against the delegate.
// Failure leaves the bridge in the error state and blocks dispatch
// until re-initialized.
func (b *Bridge) Initialize(ctx context.Context) error {
	err := b.client.Probe(ctx)

	b.mu.Lock()
	b.initialized = err == nil
	b.mu.Unlock()

	if err != nil {
		b.logger.Error("delegate connectivity probe failed", "error", err)
		b.publishStatus()
		return fmt.Errorf("initialize bridge: %w", err)
	}
	b.logger.Info("delegate connectivity probe succeeded")
	b.publishStatus()
	return nil
}

// Start launches the dispatcher loop. Safe to call once.
func (b *Bridge) Start(ctx context.Context) {
	b.once.Do(func() {
		b.runCtx, b.cancel = context.WithCancel(ctx)
		b.wg.Add(1)
		go b.loop(b.runCtx)
		b.logger.Info("dispatcher started",
			"max_concurrent", b.cfg.MaxConcurrent,
			"sweep_interval", b.cfg.SweepInterval,
		)
	})
}

// Drain stops the dispatcher and waits for in-flight requests to
// finish, bounded by the given timeout.
func (b *Bridge) Drain(timeout time.Duration) {
	if b.cancel != nil {
		b.cancel()
	}
	done := make(chan struct{})
	go func() {
		b.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(timeout):
		b.logger.Warn("drain timeout: abandoning in-flight requests")
	}
}

// Submit enqueues a request for dispatch. Critical requests are
// admitted directly when a slot is free; everything else (and Critical
// overflow) waits in the priority queue. Returns the request ID.
func (b *Bridge) Submit(req *task.Request, execCtx task.ExecContext, cb task.Callback) (string, error) {
	if req == nil {
		return "", errors.New("nil request")
	}
	b.mu.Lock()
	if !b.initialized {
		b.mu.Unlock()
		return "", ErrNotInitialized
	}
	if req.Timeout <= 0 {
		req.Timeout = b.cfg.DefaultTimeout
	}

	// Fast path: a Critical request takes a free slot immediately.
	if req.Priority == task.PriorityCritical && !b.maintenance && len(b.active) < b.cfg.MaxConcurrent {
		item := &queue.QueuedRequest{
			Request:    req,
			Context:    execCtx,
			EnqueuedAt: time.Now(),
			Callback:   cb,
		}
		b.admitLocked(item)
		b.mu.Unlock()
		return req.ID, nil
	}
	b.mu.Unlock()

	id := b.queue.Enqueue(req, execCtx, cb)
	if b.cfg.Metrics != nil {
		b.cfg.Metrics.QueueDepth.Add(b.runCtx, 1)
	}
	if b.events != nil {
		b.events.Publish(bus.TopicRequestQueued, bus.RequestQueuedEvent{
			RequestID: id,
			Module:    req.Module,
			Priority:  req.Priority.String(),
			Depth:     b.queue.Depth(),
		})
	}
	b.kick()
	return id, nil
}

// kick nudges the dispatcher without blocking.
func (b *Bridge) kick() {
	select {
	case b.wake <- struct{}{}:
	default:
	}
}

// loop is the dispatcher: it fills free slots on every enqueue kick and
// on a periodic tick that catches slots freed by completions.
func (b *Bridge) loop(ctx context.Context) {
	defer b.wg.Done()

	ticker := time.NewTicker(b.cfg.SweepInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-b.wake:
			b.sweep()
		case <-ticker.C:
			b.sweep()
		}
	}
}

// sweep admits as many queued requests as there are free slots.
func (b *Bridge) sweep() {
	b.mu.Lock()
	if !b.initialized || b.maintenance {
		b.mu.Unlock()
		return
	}
	free := b.cfg.MaxConcurrent - len(b.active)
	if free <= 0 {
		b.mu.Unlock()
		return
	}
	batch := b.queue.DequeueBatch(free)
	for _, item := range batch {
		b.admitLocked(item)
	}
	b.mu.Unlock()

	if len(batch) > 0 && b.cfg.Metrics != nil {
		b.cfg.Metrics.QueueDepth.Add(b.runCtx, -int64(len(batch)))
	}
}

// admitLocked moves one request into the active set and starts its
// execution goroutine. Caller must hold b.mu.
func (b *Bridge) admitLocked(item *queue.QueuedRequest) {
	ar := &ActiveRequest{
		ID:        item.Request.ID,
		Module:    item.Request.Module,
		Priority:  item.Request.Priority,
		StartedAt: time.Now(),
		Timeout:   item.Request.Timeout,
	}
	b.active[ar.ID] = ar

	if b.cfg.Metrics != nil {
		b.cfg.Metrics.ActiveRequests.Add(b.runCtx, 1)
	}
	if b.events != nil {
		b.events.Publish(bus.TopicRequestStarted, bus.RequestStartedEvent{
			RequestID: ar.ID,
			Module:    ar.Module,
			Active:    len(b.active),
		})
	}

	b.wg.Add(1)
	go b.run(item)
}

// run executes one admitted request to completion and reports back.
// Once admitted, a request runs to completion, failure or timeout;
// there is no caller-side cancellation.
func (b *Bridge) run(item *queue.QueuedRequest) {
	defer b.wg.Done()

	res := b.exec.Execute(b.runCtx, item.Request, item.Context)
	b.finish(item, res)
}

// finish records the terminal outcome and invokes the callback exactly once.
func (b *Bridge) finish(item *queue.QueuedRequest, res *task.Result) {
	b.mu.Lock()
	delete(b.active, item.Request.ID)
	b.mu.Unlock()

	if res.Success {
		b.tracker.RecordSuccess(item.Request.Module, res.Elapsed)
	} else {
		b.tracker.RecordFailure(item.Request.Module)
	}

	if b.cfg.Metrics != nil {
		b.cfg.Metrics.ActiveRequests.Add(b.runCtx, -1)
		b.cfg.Metrics.RequestsTotal.Add(b.runCtx, 1)
		b.cfg.Metrics.RequestDuration.Record(b.runCtx, res.Elapsed.Seconds())
		if !res.Success {
			b.cfg.Metrics.RequestErrors.Add(b.runCtx, 1)
		}
	}

	if b.cfg.Store != nil {
		if err := b.cfg.Store.RecordResult(b.runCtx, item.Request, res); err != nil {
			b.logger.Warn("record delegation history", "request_id", res.RequestID, "error", err)
		}
	}

	if b.events != nil {
		topic := bus.TopicRequestCompleted
		if !res.Success {
			topic = bus.TopicRequestFailed
		}
		b.events.Publish(topic, bus.RequestDoneEvent{
			RequestID:  res.RequestID,
			Module:     res.Module,
			Success:    res.Success,
			ErrorClass: res.ErrorClass,
			ElapsedMs:  res.Elapsed.Milliseconds(),
			Attempts:   res.Attempts,
		})
	}
	b.publishStatus()

	if item.Callback != nil {
		item.Callback(res)
	}

	// A slot just freed; pull the next waiting request without waiting
	// for the tick.
	b.kick()
}

// SetMaintenance toggles maintenance mode. While set, dispatch is
// paused; submissions still enqueue.
func (b *Bridge) SetMaintenance(on bool) {
	b.mu.Lock()
	b.maintenance = on
	b.mu.Unlock()
	b.publishStatus()
	if !on {
		b.kick()
	}
}

// RecordProbe feeds a scheduled connectivity probe outcome into the
// bridge: a failed probe marks the bridge uninitialized so dispatch
// stops until the next successful probe or Initialize.
func (b *Bridge) RecordProbe(err error) {
	b.mu.Lock()
	b.initialized = err == nil
	b.mu.Unlock()
	if err != nil {
		b.logger.Warn("scheduled delegate probe failed", "error", err)
	}
	b.publishStatus()
	if err == nil {
		b.kick()
	}
}

// Status derives the aggregate bridge status. The circuit-open state
// mirrors the breaker's open flag exactly; error and maintenance are
// reported only when the breaker is closed.
func (b *Bridge) Status() Status {
	snap := b.brk.State()
	if snap.Open {
		return StatusCircuitOpen
	}

	b.mu.Lock()
	initialized := b.initialized
	maintenance := b.maintenance
	b.mu.Unlock()

	if !initialized {
		return StatusError
	}
	if maintenance {
		return StatusMaintenance
	}

	var total, successful int64
	for _, m := range b.tracker.Snapshot() {
		total += m.Total
		successful += m.Successful
	}
	if total >= degradedMinTotal {
		if rate := float64(total-successful) / float64(total); rate > degradedErrorRate {
			return StatusDegraded
		}
	}
	return StatusActive
}

// Report returns the full read-only snapshot for the status interface.
func (b *Bridge) Report() Report {
	b.mu.Lock()
	active := make([]ActiveRequest, 0, len(b.active))
	for _, ar := range b.active {
		active = append(active, *ar)
	}
	b.mu.Unlock()

	return Report{
		Status:      b.Status(),
		Breaker:     b.brk.State(),
		ActiveCount: len(active),
		QueueDepth:  b.queue.Depth(),
		Active:      active,
		Modules:     b.tracker.Snapshot(),
	}
}

// Tracker exposes the per-module metrics tracker.
func (b *Bridge) Tracker() *metrics.Tracker {
	return b.tracker
}

// publishStatus emits a status-changed event when the derived status moves.
func (b *Bridge) publishStatus() {
	status := b.Status()

	b.mu.Lock()
	old := b.lastStatus
	b.lastStatus = status
	b.mu.Unlock()

	if old == status || b.events == nil {
		return
	}
	b.events.Publish(bus.TopicBridgeStatusChanged, bus.StatusChangedEvent{
		OldStatus: string(old),
		NewStatus: string(status),
	})
	b.logger.Info("bridge status changed", "old", string(old), "new", string(status))
}
