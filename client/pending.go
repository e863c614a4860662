package client

import (
	"context"
)

// Awaiter is the part of a [Pending] operation that combinators need,
// independent of its result type.
type Awaiter interface {
	// Done returns a channel closed once the operation settles.
	Done() <-chan struct{}
	// Err blocks until the operation settles and returns its error.
	Err() error
}

// Pending is an in-flight or settled asynchronous request.
type Pending[T any] struct {
	done   chan struct{}
	val    T
	err    error
	cancel context.CancelFunc
}

// start runs fn on its own goroutine and returns a handle to its outcome.
func start[T any](ctx context.Context, fn func(context.Context) (T, error)) *Pending[T] {
	ctx, cancel := context.WithCancel(ctx)
	p := &Pending[T]{
		done:   make(chan struct{}),
		cancel: cancel,
	}

	go func() {
		defer func() {
			cancel()
			close(p.done)
		}()

		p.val, p.err = fn(ctx)
	}()

	return p
}

// failed returns an already settled Pending holding err.
func failed[T any](err error) *Pending[T] {
	done := make(chan struct{})
	close(done)

	return &Pending[T]{
		done:   done,
		err:    err,
		cancel: func() {},
	}
}

// Done returns a channel that is closed when the operation settles.
func (p *Pending[T]) Done() <-chan struct{} {
	if p == nil {
		return closedChan
	}
	return p.done
}

// Wait blocks until the operation settles and returns its outcome.
func (p *Pending[T]) Wait() (T, error) {
	if p == nil {
		var zero T
		return zero, errNilPending
	}

	<-p.done
	return p.val, p.err
}

// Err blocks until the operation settles and returns its error.
func (p *Pending[T]) Err() error {
	_, err := p.Wait()
	return err
}

// Value blocks until the operation settles and returns its result, the
// zero value if it failed.
func (p *Pending[T]) Value() T {
	v, _ := p.Wait()
	return v
}

// Cancel cancels the operation's context. It has no effect once the
// operation has settled.
func (p *Pending[T]) Cancel() {
	if p == nil {
		return
	}
	p.cancel()
}

var closedChan = func() chan struct{} {
	ch := make(chan struct{})
	close(ch)
	return ch
}()
