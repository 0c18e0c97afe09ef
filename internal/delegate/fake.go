package delegate

import (
	"context"
	"sync"
	"time"
)

// Fake is a deterministic in-memory delegate for tests. Latency and
// failures are injected through the function fields; unset fields
// succeed immediately.
type Fake struct {
	ExecuteFn func(ctx context.Context, req ExecuteRequest) (*ExecuteResult, error)
	ProbeFn   func(ctx context.Context) error
	// Latency is applied before ExecuteFn (and before the default reply).
	Latency time.Duration

	mu       sync.Mutex
	calls    []ExecuteRequest
	probeCnt int
}

func (f *Fake) Execute(ctx context.Context, req ExecuteRequest) (*ExecuteResult, error) {
	f.mu.Lock()
	f.calls = append(f.calls, req)
	f.mu.Unlock()

	if f.Latency > 0 {
		select {
		case <-time.After(f.Latency):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if f.ExecuteFn != nil {
		return f.ExecuteFn(ctx, req)
	}
	return &ExecuteResult{Success: true, Result: "ok", ElapsedMs: f.Latency.Milliseconds()}, nil
}

func (f *Fake) Probe(ctx context.Context) error {
	f.mu.Lock()
	f.probeCnt++
	f.mu.Unlock()
	if f.ProbeFn != nil {
		return f.ProbeFn(ctx)
	}
	return nil
}

// Calls returns a copy of all Execute requests seen so far.
func (f *Fake) Calls() []ExecuteRequest {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]ExecuteRequest, len(f.calls))
	copy(out, f.calls)
	return out
}

// CallCount returns the number of Execute calls.
func (f *Fake) CallCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.calls)
}

// ProbeCount returns the number of Probe calls.
func (f *Fake) ProbeCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.probeCnt
}
