package bridge

import (
	"time"

	"github.com/anvil/offbridge/internal/breaker"
	"github.com/anvil/offbridge/internal/metrics"
	"github.com/anvil/offbridge/internal/task"
)

// Status is the aggregate health of the offload subsystem.
type Status string

const (
	StatusActive      Status = "active"
	StatusDegraded    Status = "degraded"
	StatusCircuitOpen Status = "circuit_open"
	StatusMaintenance Status = "maintenance"
	StatusError       Status = "error"
)

// degradedErrorRate is the aggregate error rate above which the bridge
// reports Degraded, once enough completions exist to be meaningful.
const (
	degradedErrorRate = 0.5
	degradedMinTotal  = 10
)

// ActiveRequest describes one request currently executing.
type ActiveRequest struct {
	ID        string        `json:"id"`
	Module    string        `json:"module"`
	Priority  task.Priority `json:"priority"`
	StartedAt time.Time     `json:"started_at"`
	Timeout   time.Duration `json:"timeout"`
}

// Report is the read-only snapshot exposed by the status interface.
type Report struct {
	Status      Status                `json:"status"`
	Breaker     breaker.Snapshot      `json:"breaker"`
	ActiveCount int                   `json:"active_count"`
	QueueDepth  int                   `json:"queue_depth"`
	Active      []ActiveRequest       `json:"active,omitempty"`
	Modules     []metrics.ModuleStats `json:"modules,omitempty"`
}
