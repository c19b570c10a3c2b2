package promise

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"
)

var (
	// ErrTimeout is used to fail a promise whose OrTimeout duration elapsed
	ErrTimeout = errors.New("request timed out")

	errNilFailure = errors.New("promise failed with nil error")
)

// --------------------------------------------------------------------------
// Executors
// --------------------------------------------------------------------------

// Executor runs continuations
type Executor interface {
	Execute(fn func())
}

// ExecutorFunc adapts a function to the Executor interface
type ExecutorFunc func(fn func())

func (f ExecutorFunc) Execute(fn func()) {
	f(fn)
}

var (
	// Synchronous runs a continuation on the goroutine that settled the promise
	Synchronous Executor = ExecutorFunc(func(fn func()) { fn() })

	// Goroutine runs every continuation on its own goroutine
	Goroutine Executor = ExecutorFunc(func(fn func()) { go fn() })
)

// --------------------------------------------------------------------------
// Promise
// --------------------------------------------------------------------------

// Promise is a single-assignment, externally completable asynchronous result
type Promise[T any] struct {
	mu        sync.Mutex
	done      chan struct{}
	completed bool
	value     T
	err       error
	callbacks []func()
	timer     *time.Timer
}

// New creates a pending promise
func New[T any]() *Promise[T] {
	return &Promise[T]{done: make(chan struct{})}
}

// Resolved creates a promise that is already completed with value
func Resolved[T any](value T) *Promise[T] {
	p := New[T]()
	p.Complete(value)
	return p
}

// Rejected creates a promise that is already failed with err
func Rejected[T any](err error) *Promise[T] {
	p := New[T]()
	p.Fail(err)
	return p
}

// Complete settles the promise with value. It returns false if the promise was already settled.
func (p *Promise[T]) Complete(value T) bool {
	return p.settle(value, nil)
}

// Fail settles the promise with err. It returns false if the promise was already settled.
func (p *Promise[T]) Fail(err error) bool {
	if err == nil {
		err = errNilFailure
	}
	var zero T
	return p.settle(zero, err)
}

// CompleteWith settles the promise with the outcome of other, once other is settled
func (p *Promise[T]) CompleteWith(other *Promise[T]) *Promise[T] {
	other.whenDone(func() {
		p.settle(other.value, other.err)
	})
	return p
}

// OrTimeout fails the promise with ErrTimeout if it is not settled within d.
// A non-positive duration disables the timeout. The promise itself is returned.
func (p *Promise[T]) OrTimeout(d time.Duration) *Promise[T] {
	if d <= 0 {
		return p
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	if p.completed {
		return p
	}
	if p.timer != nil {
		p.timer.Stop()
	}
	p.timer = time.AfterFunc(d, func() {
		p.Fail(ErrTimeout)
	})
	return p
}

// Then registers fn to run inline once the promise is settled. The returned promise
// settles with the same outcome after fn returned.
func (p *Promise[T]) Then(fn func(value T, err error)) *Promise[T] {
	return p.ThenOn(Synchronous, fn)
}

// ThenOn is like Then but runs fn on the given executor
func (p *Promise[T]) ThenOn(executor Executor, fn func(value T, err error)) *Promise[T] {
	next := New[T]()
	p.whenDone(func() {
		executor.Execute(func() {
			defer func() {
				if r := recover(); r != nil {
					next.Fail(fmt.Errorf("promise: continuation panicked: %v", r))
				}
			}()
			fn(p.value, p.err)
			next.settle(p.value, p.err)
		})
	})
	return next
}

// Catch registers fn to run inline if the promise fails
func (p *Promise[T]) Catch(fn func(err error)) *Promise[T] {
	return p.Then(func(_ T, err error) {
		if err != nil {
			fn(err)
		}
	})
}

// Done returns a channel that is closed once the promise is settled
func (p *Promise[T]) Done() <-chan struct{} {
	return p.done
}

// IsDone reports whether the promise is settled
func (p *Promise[T]) IsDone() bool {
	select {
	case <-p.done:
		return true
	default:
		return false
	}
}

// Await blocks until the promise is settled or ctx is done
func (p *Promise[T]) Await(ctx context.Context) (T, error) {
	select {
	case <-p.done:
		return p.value, p.err
	case <-ctx.Done():
		var zero T
		return zero, ctx.Err()
	}
}

// --------------------------------------------------------------------------
// Composition
// --------------------------------------------------------------------------

// Map derives a promise whose value is fn applied to the value of p.
// A failure of p or of fn fails the derived promise.
func Map[T, U any](p *Promise[T], fn func(T) (U, error)) *Promise[U] {
	next := New[U]()
	p.whenDone(func() {
		if p.err != nil {
			next.Fail(p.err)
			return
		}
		value, err := fn(p.value)
		if err != nil {
			next.Fail(err)
			return
		}
		next.Complete(value)
	})
	return next
}

// Compose chains an asynchronous step onto p
func Compose[T, U any](p *Promise[T], fn func(T) *Promise[U]) *Promise[U] {
	next := New[U]()
	p.whenDone(func() {
		if p.err != nil {
			next.Fail(p.err)
			return
		}
		step := fn(p.value)
		if step == nil {
			next.Fail(errors.New("promise: compose step returned nil"))
			return
		}
		next.CompleteWith(step)
	})
	return next
}

// --------------------------------------------------------------------------
// Helper Methods
// --------------------------------------------------------------------------

func (p *Promise[T]) settle(value T, err error) bool {
	p.mu.Lock()
	if p.completed {
		p.mu.Unlock()
		return false
	}
	p.completed = true
	p.value = value
	p.err = err
	if p.timer != nil {
		p.timer.Stop()
		p.timer = nil
	}
	callbacks := p.callbacks
	p.callbacks = nil
	close(p.done)
	p.mu.Unlock()

	for _, cb := range callbacks {
		cb()
	}
	return true
}

// whenDone runs cb once the promise is settled, inline if it already is
func (p *Promise[T]) whenDone(cb func()) {
	p.mu.Lock()
	if !p.completed {
		p.callbacks = append(p.callbacks, cb)
		p.mu.Unlock()
		return
	}
	p.mu.Unlock()
	cb()
}
