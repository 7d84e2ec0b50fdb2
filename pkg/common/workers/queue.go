package workers

import (
	"errors"
	"sync"
)

// DefaultQueueCapacity bounds the number of pending work items when no
// capacity is configured.
const DefaultQueueCapacity = 100

// ErrQueueClosed is returned by blocking queue operations once the queue has
// been closed and can no longer satisfy the caller.
var ErrQueueClosed = errors.New("queue closed")

// BoundedQueue is a FIFO of pending items with a hard capacity limit.
//
// Producers block in Push while the queue is full and consumers block in
// WaitAndPop while it is empty. The capacity check, the wait and the append
// all happen under the same mutex, so the length can never exceed the
// capacity regardless of how many producers race on a full queue.
//
// Close wakes every blocked producer and consumer. Items already queued stay
// poppable after Close; Push fails with ErrQueueClosed.
type BoundedQueue[T any] struct {
	mu       sync.Mutex
	notEmpty *sync.Cond
	notFull  *sync.Cond
	items    []T
	head     int
	capacity int
	closed   bool
}

// NewBoundedQueue creates a queue holding at most capacity items.
// A non-positive capacity falls back to DefaultQueueCapacity.
func NewBoundedQueue[T any](capacity int) *BoundedQueue[T] {
	if capacity <= 0 {
		capacity = DefaultQueueCapacity
	}
	q := &BoundedQueue[T]{
		items:    make([]T, 0, capacity),
		capacity: capacity,
	}
	q.notEmpty = sync.NewCond(&q.mu)
	q.notFull = sync.NewCond(&q.mu)
	return q
}

// Push appends item at the tail, blocking while the queue is full.
func (q *BoundedQueue[T]) Push(item T) error {
	q.mu.Lock()
	defer q.mu.Unlock()

	for !q.closed && q.lenLocked() >= q.capacity {
		q.notFull.Wait()
	}
	if q.closed {
		return ErrQueueClosed
	}

	q.items = append(q.items, item)
	q.notEmpty.Signal()
	return nil
}

// TryPop removes and returns the head item without blocking.
// The boolean is false when the queue is empty.
func (q *BoundedQueue[T]) TryPop() (T, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.lenLocked() == 0 {
		var zero T
		return zero, false
	}
	return q.popLocked(), true
}

// WaitAndPop blocks until an item is available and returns it in FIFO
// order. It returns ErrQueueClosed once the queue is closed and drained.
func (q *BoundedQueue[T]) WaitAndPop() (T, error) {
	q.mu.Lock()
	defer q.mu.Unlock()

	for !q.closed && q.lenLocked() == 0 {
		q.notEmpty.Wait()
	}
	if q.lenLocked() == 0 {
		var zero T
		return zero, ErrQueueClosed
	}
	return q.popLocked(), nil
}

// IsEmpty reports whether the queue currently holds no items. The answer
// may be stale by the time the caller acts on it.
func (q *BoundedQueue[T]) IsEmpty() bool {
	return q.Len() == 0
}

// Len returns the number of queued items.
func (q *BoundedQueue[T]) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.lenLocked()
}

// Cap returns the capacity bound.
func (q *BoundedQueue[T]) Cap() int {
	return q.capacity
}

// Close marks the queue closed and wakes all waiters. It is safe to call
// more than once.
func (q *BoundedQueue[T]) Close() {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed {
		return
	}
	q.closed = true
	q.notEmpty.Broadcast()
	q.notFull.Broadcast()
}

// Drain removes and returns every queued item.
func (q *BoundedQueue[T]) Drain() []T {
	q.mu.Lock()
	defer q.mu.Unlock()

	drained := make([]T, 0, q.lenLocked())
	for q.lenLocked() > 0 {
		drained = append(drained, q.popLocked())
	}
	return drained
}

func (q *BoundedQueue[T]) lenLocked() int {
	return len(q.items) - q.head
}

// popLocked assumes the queue is non-empty.
func (q *BoundedQueue[T]) popLocked() T {
	var zero T
	item := q.items[q.head]
	q.items[q.head] = zero
	q.head++

	// Compact once the consumed prefix dominates the backing array.
	if q.head == len(q.items) {
		q.items = q.items[:0]
		q.head = 0
	} else if q.head >= q.capacity {
		n := copy(q.items, q.items[q.head:])
		clear(q.items[n:])
		q.items = q.items[:n]
		q.head = 0
	}

	q.notFull.Signal()
	return item
}
