// Package task defines the unit of work the bridge offloads to the
// delegate environment, plus the resource envelope it travels with.
package task

import (
	"time"

	"github.com/google/uuid"
)

// Priority orders requests for dispatch. Higher values are admitted first.
type Priority int

const (
	PriorityBatch    Priority = 0
	PriorityLow      Priority = 1
	PriorityNormal   Priority = 2
	PriorityHigh     Priority = 3
	PriorityCritical Priority = 4
)

func (p Priority) String() string {
	switch p {
	case PriorityBatch:
		return "batch"
	case PriorityLow:
		return "low"
	case PriorityNormal:
		return "normal"
	case PriorityHigh:
		return "high"
	case PriorityCritical:
		return "critical"
	default:
		return "unknown"
	}
}

// ParsePriority maps a priority name to its value. Unknown names map to
// PriorityNormal.
func ParsePriority(s string) Priority {
	switch s {
	case "batch":
		return PriorityBatch
	case "low":
		return PriorityLow
	case "normal":
		return PriorityNormal
	case "high":
		return PriorityHigh
	case "critical":
		return PriorityCritical
	default:
		return PriorityNormal
	}
}

// Request is one unit of work to offload. Immutable once created and
// consumed exactly once.
type Request struct {
	ID        string        `json:"id"`
	Module    string        `json:"module"`    // target capability module
	Operation string        `json:"operation"` // operation within the module
	Args      []any         `json:"args"`      // ordered argument list
	Timeout   time.Duration `json:"timeout"`
	Priority  Priority      `json:"priority"`
}

// NewRequest creates a Request with a fresh ID and the given target.
func NewRequest(module, operation string, args []any, timeout time.Duration, priority Priority) *Request {
	return &Request{
		ID:        uuid.New().String(),
		Module:    module,
		Operation: operation,
		Args:      args,
		Timeout:   timeout,
		Priority:  priority,
	}
}

// ExecContext is the resource and policy envelope for one request.
type ExecContext struct {
	Timeout        time.Duration     `json:"timeout"`
	Priority       Priority          `json:"priority"`
	RequireGPU     bool              `json:"require_gpu"`
	MaxMemoryMB    int64             `json:"max_memory_mb"`
	NetworkAllowed bool              `json:"network_allowed"`
	Sandboxed      bool              `json:"sandboxed"`
	Env            map[string]string `json:"env,omitempty"` // environment overrides for the delegate
}

// DefaultExecContext derives an envelope from the request priority.
// Critical work gets a longer timeout and more memory headroom; batch
// work is squeezed.
func DefaultExecContext(p Priority) ExecContext {
	ec := ExecContext{
		Timeout:        2 * time.Minute,
		Priority:       p,
		MaxMemoryMB:    512,
		NetworkAllowed: true,
		Sandboxed:      true,
	}
	switch p {
	case PriorityCritical:
		ec.Timeout = 5 * time.Minute
		ec.MaxMemoryMB = 2048
	case PriorityHigh:
		ec.Timeout = 3 * time.Minute
		ec.MaxMemoryMB = 1024
	case PriorityBatch:
		ec.Timeout = 10 * time.Minute
		ec.MaxMemoryMB = 256
	}
	return ec
}

// Result is the terminal outcome delivered to the originating caller.
// A caller receives either Success with Output, or a single error
// classification; never a mid-retry failure.
type Result struct {
	RequestID  string         `json:"request_id"`
	Module     string         `json:"module"`
	Success    bool           `json:"success"`
	Output     any            `json:"output,omitempty"`
	Error      string         `json:"error,omitempty"`
	ErrorClass string         `json:"error_class,omitempty"`
	Elapsed    time.Duration  `json:"elapsed"`
	Attempts   int            `json:"attempts"`
	Metadata   map[string]any `json:"metadata,omitempty"`
}

// Callback delivers the terminal Result for a submitted request.
// Invoked exactly once per request.
type Callback func(*Result)
