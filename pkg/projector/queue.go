package projector

import (
	"context"
	"sync"
)

// Queue is a FIFO drained by at most one goroutine at a time.
// Push never blocks; the drain goroutine is started on demand and exits
// once the queue runs dry. Items are handled strictly one after another.
type Queue[T any] struct {
	mu      sync.Mutex
	items   []T
	running bool
	closed  bool
	idle    chan struct{}
	handle  func(T)
}

// NewQueue creates a queue that passes each item to handle.
func NewQueue[T any](handle func(T)) *Queue[T] {
	idle := make(chan struct{})
	close(idle)
	return &Queue[T]{handle: handle, idle: idle}
}

// Push appends item and starts the drain if it is not running.
// It reports false once the queue is closed.
func (q *Queue[T]) Push(item T) bool {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed {
		return false
	}
	q.items = append(q.items, item)
	if !q.running {
		q.running = true
		q.idle = make(chan struct{})
		go q.drain()
	}
	return true
}

func (q *Queue[T]) drain() {
	for {
		item, ok := q.pop()
		if !ok {
			return
		}
		q.handle(item)
	}
}

// pop takes the head item, or marks the queue idle when there is none.
func (q *Queue[T]) pop() (T, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()

	var zero T
	if len(q.items) == 0 || q.closed {
		q.items = nil
		q.running = false
		close(q.idle)
		return zero, false
	}
	item := q.items[0]
	q.items[0] = zero
	q.items = q.items[1:]
	return item, true
}

// Purge drops every pending item and returns how many were dropped.
// The item currently being handled is not affected.
func (q *Queue[T]) Purge() int {
	q.mu.Lock()
	defer q.mu.Unlock()

	n := len(q.items)
	q.items = nil
	return n
}

// Len returns the number of pending items.
func (q *Queue[T]) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.items)
}

// Busy reports whether the drain goroutine is running.
func (q *Queue[T]) Busy() bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.running
}

// WaitIdle blocks until the drain goroutine has exited or ctx is done.
func (q *Queue[T]) WaitIdle(ctx context.Context) error {
	q.mu.Lock()
	idle := q.idle
	q.mu.Unlock()

	select {
	case <-idle:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Close rejects further pushes and drops pending items. The item being
// handled, if any, runs to completion.
func (q *Queue[T]) Close() {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.closed = true
	q.items = nil
}
