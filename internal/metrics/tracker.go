// Package metrics keeps per-capability rolling counters for the bridge:
// totals, success counts, running average latency and error rate.
package metrics

import (
	"sort"
	"sync"
	"time"
)

// ModuleStats is a snapshot of one capability module's counters.
type ModuleStats struct {
	Module     string        `json:"module"`
	Total      int64         `json:"total"`
	Successful int64         `json:"successful"`
	AvgElapsed time.Duration `json:"avg_elapsed"`
	ErrorRate  float64       `json:"error_rate"`
	LastUsed   time.Time     `json:"last_used"`
}

// Tracker accumulates per-module statistics. Entries are created lazily
// on first use. All methods are safe for concurrent use.
type Tracker struct {
	mu      sync.Mutex
	modules map[string]*moduleEntry
}

type moduleEntry struct {
	total      int64
	successful int64
	avgElapsed time.Duration
	lastUsed   time.Time
}

// NewTracker creates an empty tracker.
func NewTracker() *Tracker {
	return &Tracker{modules: make(map[string]*moduleEntry)}
}

// RecordSuccess folds one successful execution into the module's
// running average: newAvg = (oldAvg×oldTotal + elapsed) / newTotal.
func (t *Tracker) RecordSuccess(module string, elapsed time.Duration) {
	t.mu.Lock()
	defer t.mu.Unlock()

	e := t.entry(module)
	oldTotal := e.total
	e.total++
	e.successful++
	e.avgElapsed = time.Duration((int64(e.avgElapsed)*oldTotal + int64(elapsed)) / e.total)
	e.lastUsed = time.Now()
}

// RecordFailure counts one failed execution against the module.
func (t *Tracker) RecordFailure(module string) {
	t.mu.Lock()
	defer t.mu.Unlock()

	e := t.entry(module)
	e.total++
	e.lastUsed = time.Now()
}

// entry returns the module's counters, creating them on first use.
// Must be called with t.mu held.
func (t *Tracker) entry(module string) *moduleEntry {
	e, ok := t.modules[module]
	if !ok {
		e = &moduleEntry{}
		t.modules[module] = e
	}
	return e
}

// Stats returns the snapshot for one module.
func (t *Tracker) Stats(module string) (ModuleStats, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()

	e, ok := t.modules[module]
	if !ok {
		return ModuleStats{}, false
	}
	return snapshotEntry(module, e), true
}

// Snapshot returns all module stats, sorted by module ID for stable output.
func (t *Tracker) Snapshot() []ModuleStats {
	t.mu.Lock()
	defer t.mu.Unlock()

	out := make([]ModuleStats, 0, len(t.modules))
	for module, e := range t.modules {
		out = append(out, snapshotEntry(module, e))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Module < out[j].Module })
	return out
}

func snapshotEntry(module string, e *moduleEntry) ModuleStats {
	s := ModuleStats{
		Module:     module,
		Total:      e.total,
		Successful: e.successful,
		AvgElapsed: e.avgElapsed,
		LastUsed:   e.lastUsed,
	}
	if e.total > 0 {
		s.ErrorRate = float64(e.total-e.successful) / float64(e.total)
	}
	return s
}
