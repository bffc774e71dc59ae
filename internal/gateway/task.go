package gateway

import (
	"context"
	"sync"
)

// Task is the pending outcome of an asynchronous gateway call.
//
// A Task completes exactly once. Cancel stops waiting on the backend by
// cancelling the call's context; whatever the call returns after that is
// still recorded.
type Task[T any] struct {
	done   chan struct{}
	cancel context.CancelFunc
	once   sync.Once

	value T
	err   error
}

// Go runs fn in a new goroutine with a cancellable child of ctx.
func Go[T any](ctx context.Context, fn func(context.Context) (T, error)) *Task[T] {
	ctx, cancel := context.WithCancel(ctx)
	t := &Task[T]{done: make(chan struct{}), cancel: cancel}
	go func() {
		defer cancel()
		value, err := fn(ctx)
		t.finish(value, err)
	}()
	return t
}

// Failed returns a task that has already completed with err.
func Failed[T any](err error) *Task[T] {
	t := &Task[T]{done: make(chan struct{}), cancel: func() {}}
	var zero T
	t.finish(zero, err)
	return t
}

func (t *Task[T]) finish(value T, err error) {
	t.once.Do(func() {
		t.value = value
		t.err = err
		close(t.done)
	})
}

// Done is closed when the task completes.
func (t *Task[T]) Done() <-chan struct{} {
	return t.done
}

// Wait blocks until the task completes or ctx is done. Giving up on ctx does
// not cancel the task.
func (t *Task[T]) Wait(ctx context.Context) (T, error) {
	select {
	case <-t.done:
		return t.value, t.err
	case <-ctx.Done():
		var zero T
		return zero, ctx.Err()
	}
}

// Result blocks until the task completes.
func (t *Task[T]) Result() (T, error) {
	<-t.done
	return t.value, t.err
}

// Cancel cancels the task's context. It is safe to call more than once and
// after completion.
func (t *Task[T]) Cancel() {
	t.cancel()
}
