// Package queue holds the bounded hand-off buffer between the drive loop
// and the telemetry writers. Telemetry is lossy by contract: when a sink
// stalls, the oldest samples are dropped rather than blocking the loop.
package queue

import (
	"sync"
)

// Queue is a generic thread-safe FIFO with a fixed capacity.
type Queue[T any] struct {
	mu      sync.Mutex
	items   []T
	cap     int
	dropped uint64
}

// New creates an empty queue holding at most capacity items. capacity <= 0
// panics; an unbounded telemetry buffer is never what the caller wants.
func New[T any](capacity int) *Queue[T] {
	if capacity <= 0 {
		panic("queue: capacity must be positive")
	}
	return &Queue[T]{
		items: make([]T, 0, capacity),
		cap:   capacity,
	}
}

// Push appends items, evicting the oldest entries once capacity is reached.
func (q *Queue[T]) Push(items ...T) {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.items = append(q.items, items...)
	if over := len(q.items) - q.cap; over > 0 {
		q.dropped += uint64(over)
		q.items = q.items[over:]
	}
}

// Len returns the number of buffered items.
func (q *Queue[T]) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.items)
}

// Empty returns true if the queue has no items.
func (q *Queue[T]) Empty() bool {
	return q.Len() == 0
}

// Dropped returns how many items were evicted since creation.
func (q *Queue[T]) Dropped() uint64 {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.dropped
}

// Drain returns all buffered items and leaves the queue empty.
func (q *Queue[T]) Drain() []T {
	q.mu.Lock()
	defer q.mu.Unlock()
	result := q.items
	q.items = make([]T, 0, q.cap)
	return result
}
