// Package breaker implements the shared circuit breaker guarding the
// delegate link. One Breaker exists per bridge; every completed
// execution mutates it through the atomic methods here, never by direct
// field access.
package breaker

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync"
	"time"

	"github.com/anvil/offbridge/internal/bus"
)

const (
	// DefaultThreshold is the consecutive-failure count that opens the breaker.
	DefaultThreshold = 5
	// DefaultCooldown is the window after the last failure before an
	// open breaker lazily resets on the next call.
	DefaultCooldown = 5 * time.Minute

	stateKey = "breaker:delegate"
)

// KVStore is the minimal interface needed for breaker state persistence.
type KVStore interface {
	KVSet(ctx context.Context, key, val string) error
	KVGet(ctx context.Context, key string) (string, error)
}

// Snapshot is a point-in-time copy of the breaker state.
type Snapshot struct {
	Open        bool      `json:"open"`
	Failures    int       `json:"failures"`
	LastFailure time.Time `json:"last_failure,omitzero"`
	Successes   int64     `json:"successes"`
	Total       int64     `json:"total"`
}

// Breaker tracks consecutive failures on the delegate link and rejects
// calls once the threshold is reached. There is no half-open probe
// state: once the cooldown elapses past the last failure, the next
// Allow() resets the breaker and the call proceeds as a normal attempt.
type Breaker struct {
	mu          sync.Mutex
	open        bool
	failures    int
	lastFailure time.Time
	successes   int64
	total       int64

	threshold int
	cooldown  time.Duration

	kvStore KVStore
	events  *bus.Bus
}

// New creates a Breaker. Zero or negative threshold/cooldown fall back
// to the defaults.
func New(threshold int, cooldown time.Duration) *Breaker {
	if threshold <= 0 {
		threshold = DefaultThreshold
	}
	if cooldown <= 0 {
		cooldown = DefaultCooldown
	}
	return &Breaker{
		threshold: threshold,
		cooldown:  cooldown,
	}
}

// SetKVStore enables persistent breaker state across restarts.
func (b *Breaker) SetKVStore(store KVStore) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.kvStore = store
}

// SetBus enables breaker open/reset events.
func (b *Breaker) SetBus(events *bus.Bus) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.events = events
}

// Allow reports whether a call may proceed. While open, calls are
// rejected until the cooldown has elapsed past the last failure; then
// the breaker optimistically resets and the call is admitted.
func (b *Breaker) Allow() bool {
	b.mu.Lock()
	defer b.mu.Unlock()

	if !b.open {
		return true
	}
	if time.Since(b.lastFailure) >= b.cooldown {
		b.open = false
		b.failures = 0
		slog.Info("circuit breaker reset after cooldown")
		if b.events != nil {
			b.events.Publish(bus.TopicBreakerReset, bus.BreakerEvent{Open: false})
		}
		b.persistLocked()
		return true
	}
	return false
}

// RecordSuccess resets the consecutive-failure count.
func (b *Breaker) RecordSuccess() {
	b.mu.Lock()
	defer b.mu.Unlock()

	wasOpen := b.open
	b.failures = 0
	b.open = false
	b.successes++
	b.total++
	if wasOpen && b.events != nil {
		b.events.Publish(bus.TopicBreakerReset, bus.BreakerEvent{Open: false})
	}
	b.persistLocked()
}

// RecordFailure increments the consecutive-failure count and opens the
// breaker when the threshold is reached.
func (b *Breaker) RecordFailure() {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.failures++
	b.total++
	b.lastFailure = time.Now()
	if b.failures >= b.threshold && !b.open {
		b.open = true
		slog.Warn("circuit breaker opened", "failures", b.failures)
		if b.events != nil {
			b.events.Publish(bus.TopicBreakerOpened, bus.BreakerEvent{Failures: b.failures, Open: true})
		}
	}
	b.persistLocked()
}

// IsOpen reports the current open flag without triggering a lazy reset.
func (b *Breaker) IsOpen() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.open
}

// State returns a point-in-time copy of the breaker counters.
func (b *Breaker) State() Snapshot {
	b.mu.Lock()
	defer b.mu.Unlock()
	return Snapshot{
		Open:        b.open,
		Failures:    b.failures,
		LastFailure: b.lastFailure,
		Successes:   b.successes,
		Total:       b.total,
	}
}

// persistLocked saves the breaker state to the KV store. Must be called
// with b.mu held.
func (b *Breaker) persistLocked() {
	if b.kvStore == nil {
		return
	}
	state := Snapshot{
		Open:        b.open,
		Failures:    b.failures,
		LastFailure: b.lastFailure,
		Successes:   b.successes,
		Total:       b.total,
	}
	data, err := json.Marshal(state)
	if err != nil {
		return
	}
	_ = b.kvStore.KVSet(context.Background(), stateKey, string(data))
}

// Load restores breaker state from the KV store, if any was persisted.
func (b *Breaker) Load(ctx context.Context) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.kvStore == nil {
		return
	}
	val, err := b.kvStore.KVGet(ctx, stateKey)
	if err != nil || val == "" {
		return
	}
	var state Snapshot
	if err := json.Unmarshal([]byte(val), &state); err != nil {
		return
	}
	b.open = state.Open
	b.failures = state.Failures
	b.lastFailure = state.LastFailure
	b.successes = state.Successes
	b.total = state.Total
}
