package bus

// Request lifecycle topics.
const (
	TopicRequestQueued    = "request.queued"
	TopicRequestStarted   = "request.started"
	TopicRequestRetrying  = "request.retrying"
	TopicRequestCompleted = "request.completed"
	TopicRequestFailed    = "request.failed"
)

// Breaker and bridge health topics.
const (
	TopicBreakerOpened       = "breaker.opened"
	TopicBreakerReset        = "breaker.reset"
	TopicBridgeStatusChanged = "bridge.status_changed"
)

// RequestQueuedEvent is published when a request enters the dispatch queue.
type RequestQueuedEvent struct {
	RequestID string
	Module    string
	Priority  string
	Depth     int // queue depth after enqueue
}

// RequestStartedEvent is published when a request is admitted to a slot.
type RequestStartedEvent struct {
	RequestID string
	Module    string
	Active    int // active count after admission
}

// RequestRetryingEvent is published before each retry attempt.
type RequestRetryingEvent struct {
	RequestID string
	Module    string
	Attempt   int
	Error     string
}

// RequestDoneEvent is published on terminal completion or failure.
type RequestDoneEvent struct {
	RequestID  string
	Module     string
	Success    bool
	ErrorClass string
	ElapsedMs  int64
	Attempts   int
}

// BreakerEvent is published when the circuit breaker opens or resets.
type BreakerEvent struct {
	Failures int
	Open     bool
}

// StatusChangedEvent is published when the aggregate bridge status moves.
type StatusChangedEvent struct {
	OldStatus string
	NewStatus string
}
