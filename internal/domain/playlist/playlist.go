// Package playlist provides the bounded pending-track queue.
package playlist

import (
	"github.com/cockroachdb/errors"

	"github.com/osa030/decobox/internal/domain/track"
)

// DefaultCapacity is the number of pending requests a queue holds.
const DefaultCapacity = 10

// Errors
var (
	ErrDuplicate = errors.New("track already queued")
	ErrCapacity  = errors.New("queue is full")
)

// Queue is a FIFO of track requests with a fixed capacity.
// A source can appear at most once.
type Queue struct {
	items    []track.Request
	capacity int
}

// New creates a queue. A non-positive capacity selects DefaultCapacity.
func New(capacity int) *Queue {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	return &Queue{
		items:    make([]track.Request, 0, capacity),
		capacity: capacity,
	}
}

// Push appends req at the tail and returns its 1-based position.
func (q *Queue) Push(req track.Request) (int, error) {
	if q.Contains(req.Source) {
		return 0, errors.Wrapf(ErrDuplicate, "source %q", req.Source)
	}
	if len(q.items) >= q.capacity {
		return 0, errors.Wrapf(ErrCapacity, "capacity %d", q.capacity)
	}
	q.items = append(q.items, req)
	return len(q.items), nil
}

// Pop removes and returns the head.
func (q *Queue) Pop() (track.Request, bool) {
	if len(q.items) == 0 {
		return track.Request{}, false
	}
	head := q.items[0]
	copy(q.items, q.items[1:])
	q.items[len(q.items)-1] = track.Request{}
	q.items = q.items[:len(q.items)-1]
	return head, true
}

// Peek returns the head without removing it.
func (q *Queue) Peek() (track.Request, bool) {
	if len(q.items) == 0 {
		return track.Request{}, false
	}
	return q.items[0], true
}

// Contains reports whether source is pending.
func (q *Queue) Contains(source string) bool {
	for _, r := range q.items {
		if r.Source == source {
			return true
		}
	}
	return false
}

// Len returns the number of pending requests.
func (q *Queue) Len() int {
	return len(q.items)
}

// Cap returns the queue capacity.
func (q *Queue) Cap() int {
	return q.capacity
}

// IsFull reports whether another Push would fail with ErrCapacity.
func (q *Queue) IsFull() bool {
	return len(q.items) >= q.capacity
}

// Items returns a copy of the pending requests in order.
func (q *Queue) Items() []track.Request {
	result := make([]track.Request, len(q.items))
	copy(result, q.items)
	return result
}

// Clear removes all pending requests and returns them.
func (q *Queue) Clear() []track.Request {
	removed := q.items
	q.items = make([]track.Request, 0, q.capacity)
	return removed
}
