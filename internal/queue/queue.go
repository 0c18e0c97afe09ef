// Package queue implements the priority dispatch queue: requests wait
// here, ordered descending by priority with FIFO tie-break, until the
// dispatcher has free execution slots.
package queue

import (
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/anvil/offbridge/internal/task"
)

// QueuedRequest is one request awaiting a free execution slot.
type QueuedRequest struct {
	Request    *task.Request
	Context    task.ExecContext
	EnqueuedAt time.Time
	Callback   task.Callback
}

// Queue is an unbounded, non-blocking priority queue. Enqueue and
// DequeueBatch are mutually exclusive; the ordering invariant (front is
// always the highest-priority, oldest item) depends on that.
type Queue struct {
	mu    sync.Mutex
	items []*QueuedRequest
}

// New creates an empty queue.
func New() *Queue {
	return &Queue{}
}

// Enqueue inserts the request behind every already-queued item of equal
// or higher priority and ahead of the first strictly-lower one, keeping
// the queue sorted descending with stable FIFO order among equals.
// Returns the request ID (assigning one if the request has none).
func (q *Queue) Enqueue(req *task.Request, execCtx task.ExecContext, cb task.Callback) string {
	if req.ID == "" {
		req.ID = uuid.New().String()
	}
	item := &QueuedRequest{
		Request:    req,
		Context:    execCtx,
		EnqueuedAt: time.Now(),
		Callback:   cb,
	}

	q.mu.Lock()
	defer q.mu.Unlock()

	pos := 0
	for pos < len(q.items) && q.items[pos].Request.Priority >= req.Priority {
		pos++
	}
	q.items = append(q.items, nil)
	copy(q.items[pos+1:], q.items[pos:])
	q.items[pos] = item
	return req.ID
}

// DequeueBatch removes and returns up to maxCount requests from the
// front of the queue, i.e. highest priority first.
func (q *Queue) DequeueBatch(maxCount int) []*QueuedRequest {
	if maxCount <= 0 {
		return nil
	}

	q.mu.Lock()
	defer q.mu.Unlock()

	n := maxCount
	if n > len(q.items) {
		n = len(q.items)
	}
	if n == 0 {
		return nil
	}
	batch := make([]*QueuedRequest, n)
	copy(batch, q.items[:n])
	// Clear the moved-out slots so dequeued requests are not retained.
	remaining := copy(q.items, q.items[n:])
	for i := remaining; i < len(q.items); i++ {
		q.items[i] = nil
	}
	q.items = q.items[:remaining]
	return batch
}

// Depth returns the number of waiting requests.
func (q *Queue) Depth() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.items)
}
