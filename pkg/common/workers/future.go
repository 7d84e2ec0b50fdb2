package workers

import (
	"context"
	"sync"
)

// Future is the caller's handle on a submitted task. It resolves exactly
// once, either with the task's value or with the error the task returned,
// the panic it raised, or the reason it was abandoned.
type Future[T any] struct {
	id    string
	done  chan struct{}
	once  sync.Once
	value T
	err   error
}

func newFuture[T any](id string) *Future[T] {
	return &Future[T]{
		id:   id,
		done: make(chan struct{}),
	}
}

// ID returns the task identifier assigned at submission.
func (f *Future[T]) ID() string {
	return f.id
}

// Done is closed once the future has resolved.
func (f *Future[T]) Done() <-chan struct{} {
	return f.done
}

// Get blocks until the task resolves or ctx is done.
func (f *Future[T]) Get(ctx context.Context) (T, error) {
	select {
	case <-f.done:
		return f.value, f.err
	case <-ctx.Done():
		var zero T
		return zero, ctx.Err()
	}
}

// TryGet returns the result without blocking. ok is false while the task
// is still pending.
func (f *Future[T]) TryGet() (value T, ok bool, err error) {
	select {
	case <-f.done:
		return f.value, true, f.err
	default:
		var zero T
		return zero, false, nil
	}
}

func (f *Future[T]) resolve(value T, err error) {
	f.once.Do(func() {
		f.value = value
		f.err = err
		close(f.done)
	})
}
