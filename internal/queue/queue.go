// Package queue provides a fixed-capacity blocking FIFO used to hand
// accepted connections from the acceptor to the worker pool.
//
// Insert blocks while the queue is full and Remove blocks while it is empty.
// The queue never grows; a full queue stalls the producer, which is how the
// proxy applies backpressure to accept().
package queue

import "sync"

// Queue is a bounded ring buffer safe for concurrent use.
type Queue[T any] struct {
	mu    sync.Mutex
	slots sync.Cond // signaled when a slot frees up
	items sync.Cond // signaled when an item arrives

	buf    []T
	front  int // index of the oldest item
	rear   int // index of the next free slot
	count  int
	closed bool
}

// New returns an empty queue holding at most capacity items.
func New[T any](capacity int) *Queue[T] {
	if capacity < 1 {
		panic("queue: capacity must be positive")
	}
	q := &Queue[T]{buf: make([]T, capacity)}
	q.slots.L = &q.mu
	q.items.L = &q.mu
	return q
}

// Insert appends item at the rear, blocking until a slot is free.
//
// It returns false without inserting if the queue is closed.
func (q *Queue[T]) Insert(item T) bool {
	q.mu.Lock()
	defer q.mu.Unlock()

	for q.count == len(q.buf) && !q.closed {
		q.slots.Wait()
	}
	if q.closed {
		return false
	}

	q.buf[q.rear] = item
	q.rear = (q.rear + 1) % len(q.buf)
	q.count++
	q.items.Signal()
	return true
}

// Remove takes the oldest item, blocking until one is available.
//
// After Close, Remove keeps returning buffered items and then reports false
// once the queue is drained.
func (q *Queue[T]) Remove() (T, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()

	for q.count == 0 && !q.closed {
		q.items.Wait()
	}

	var zero T
	if q.count == 0 {
		return zero, false
	}

	item := q.buf[q.front]
	q.buf[q.front] = zero
	q.front = (q.front + 1) % len(q.buf)
	q.count--
	q.slots.Signal()
	return item, true
}

// Len returns the number of items waiting to be removed.
func (q *Queue[T]) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.count
}

// Cap returns the fixed capacity.
func (q *Queue[T]) Cap() int {
	return len(q.buf)
}

// Close wakes every blocked Insert and Remove. Inserts fail from then on.
func (q *Queue[T]) Close() {
	q.mu.Lock()
	defer q.mu.Unlock()

	q.closed = true
	q.slots.Broadcast()
	q.items.Broadcast()
}
