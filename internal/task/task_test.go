package task

import (
	"testing"
	"time"
)

func TestPriorityString(t *testing.T) {
	cases := []struct {
		p    Priority
		want string
	}{
		{PriorityBatch, "batch"},
		{PriorityLow, "low"},
		{PriorityNormal, "normal"},
		{PriorityHigh, "high"},
		{PriorityCritical, "critical"},
		{Priority(42), "unknown"},
	}
	for _, c := range cases {
		if got := c.p.String(); got != c.want {
			t.Errorf("Priority(%d).String() = %q, want %q", c.p, got, c.want)
		}
	}
}

func TestParsePriority(t *testing.T) {
	if got := ParsePriority("critical"); got != PriorityCritical {
		t.Errorf("expected critical, got %v", got)
	}
	if got := ParsePriority("batch"); got != PriorityBatch {
		t.Errorf("expected batch, got %v", got)
	}
	// Unknown names fall back to normal.
	if got := ParsePriority("urgent"); got != PriorityNormal {
		t.Errorf("expected normal fallback, got %v", got)
	}
	if got := ParsePriority(""); got != PriorityNormal {
		t.Errorf("expected normal fallback for empty, got %v", got)
	}
}

func TestPriorityOrdering(t *testing.T) {
	if !(PriorityCritical > PriorityHigh && PriorityHigh > PriorityNormal &&
		PriorityNormal > PriorityLow && PriorityLow > PriorityBatch) {
		t.Fatal("priority values must order batch < low < normal < high < critical")
	}
}

func TestNewRequestAssignsID(t *testing.T) {
	r1 := NewRequest("statistics", "describe", []any{"col"}, time.Minute, PriorityNormal)
	r2 := NewRequest("statistics", "describe", []any{"col"}, time.Minute, PriorityNormal)

	if r1.ID == "" || r2.ID == "" {
		t.Fatal("expected non-empty request IDs")
	}
	if r1.ID == r2.ID {
		t.Fatal("expected unique request IDs")
	}
	if r1.Module != "statistics" || r1.Operation != "describe" {
		t.Errorf("target not preserved: %+v", r1)
	}
}

func TestDefaultExecContext(t *testing.T) {
	crit := DefaultExecContext(PriorityCritical)
	if crit.Timeout != 5*time.Minute || crit.MaxMemoryMB != 2048 {
		t.Errorf("critical envelope wrong: %+v", crit)
	}
	high := DefaultExecContext(PriorityHigh)
	if high.Timeout != 3*time.Minute || high.MaxMemoryMB != 1024 {
		t.Errorf("high envelope wrong: %+v", high)
	}
	batch := DefaultExecContext(PriorityBatch)
	if batch.Timeout != 10*time.Minute || batch.MaxMemoryMB != 256 {
		t.Errorf("batch envelope wrong: %+v", batch)
	}
	normal := DefaultExecContext(PriorityNormal)
	if normal.Timeout != 2*time.Minute || normal.MaxMemoryMB != 512 {
		t.Errorf("normal envelope wrong: %+v", normal)
	}
	if !normal.Sandboxed || !normal.NetworkAllowed {
		t.Errorf("expected sandboxed with network by default: %+v", normal)
	}
}
