// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

// Package operation is a dependency-aware unit-of-work engine.
//
// An Operation runs its body once every dependency has settled. A Wrapper
// bundles a target operation with the transitive closure of its
// dependencies so a Queue can schedule the whole pipeline at once, running
// independent branches concurrently on a bounded worker pool.
//
// Results are written once. Cancellation is monotonic: a cancelled
// operation never runs again, and every operation downstream of it settles
// with ErrParentCancelled without running its body.
package operation

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
)

// State is the lifecycle position of an operation.
type State int32

const (
	Pending State = iota
	Running
	Succeeded
	Failed
	Cancelled
)

var stateNames = [...]string{"pending", "running", "succeeded", "failed", "cancelled"}

func (s State) String() string {
	if s >= 0 && int(s) < len(stateNames) {
		return stateNames[s]
	}
	return fmt.Sprintf("State(%d)", int32(s))
}

// Terminal reports whether s is a settled state.
func (s State) Terminal() bool { return s >= Succeeded }

// Node is anything that can be scheduled or depended upon: operations and
// wrappers (through their target).
type Node interface {
	node() *core
}

var nextID atomic.Uint64

// core is the type-erased state shared by every Operation[T].
type core struct {
	id        uint64
	name      string
	body      func(ctx context.Context) (any, error)
	configure []func() error

	cancelled atomic.Bool
	claimed   atomic.Bool

	mu        sync.Mutex
	deps      []*core
	state     State
	value     any
	err       error
	stop      context.CancelFunc
	callbacks []func()
	done      chan struct{}
}

func newCore(name string, body func(ctx context.Context) (any, error)) *core {
	return &core{
		id:   nextID.Add(1),
		name: name,
		body: body,
		done: make(chan struct{}),
	}
}

func (c *core) snapshot() (State, any, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state, c.value, c.err
}

func (c *core) dependencies() []*core {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]*core(nil), c.deps...)
}

// begin moves a pending operation to running. It fails if the operation was
// cancelled or settled in the meantime.
func (c *core) begin(stop context.CancelFunc) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state != Pending || c.cancelled.Load() {
		return false
	}
	c.state = Running
	c.stop = stop
	return true
}

// settle writes the result once. Later calls are ignored.
func (c *core) settle(state State, value any, err error) bool {
	c.mu.Lock()
	if c.state.Terminal() {
		c.mu.Unlock()
		return false
	}
	c.state, c.value, c.err = state, value, err
	c.stop = nil
	callbacks := c.callbacks
	c.callbacks = nil
	close(c.done)
	c.mu.Unlock()

	for _, cb := range callbacks {
		cb()
	}
	return true
}

// finish settles a running operation with its body's outcome. A cancel that
// arrived while the body ran wins over the outcome.
func (c *core) finish(value any, err error) {
	switch {
	case c.cancelled.Load():
		c.settle(Cancelled, nil, ErrCancelled)
	case err != nil:
		c.settle(Failed, nil, err)
	default:
		c.settle(Succeeded, value, nil)
	}
}

func (c *core) cancel() {
	if c.cancelled.Swap(true) {
		return
	}
	c.mu.Lock()
	state, stop := c.state, c.stop
	c.mu.Unlock()

	switch state {
	case Pending:
		c.settle(Cancelled, nil, ErrCancelled)
	case Running:
		if stop != nil {
			stop()
		}
	}
}

func (c *core) onComplete(fn func()) {
	c.mu.Lock()
	if !c.state.Terminal() {
		c.callbacks = append(c.callbacks, fn)
		c.mu.Unlock()
		return
	}
	c.mu.Unlock()
	fn()
}

// poisoned reports whether dependents of c must settle as parent-cancelled.
func (c *core) poisoned() bool {
	state, _, err := c.snapshot()
	return state == Cancelled || (state == Failed && errors.Is(err, ErrParentCancelled))
}

// Operation is a unit of work producing a T.
type Operation[T any] struct {
	c *core
}

// New returns an operation that runs body once its dependencies settle.
// The context passed to body is cancelled when the operation is cancelled
// or its queue closes.
func New[T any](name string, body func(ctx context.Context) (T, error)) *Operation[T] {
	return &Operation[T]{c: newCore(name, func(ctx context.Context) (any, error) {
		return body(ctx)
	})}
}

// NewResult returns an operation that has already succeeded with v.
func NewResult[T any](name string, v T) *Operation[T] {
	op := New(name, func(context.Context) (T, error) { return v, nil })
	op.c.settle(Succeeded, v, nil)
	return op
}

func (o *Operation[T]) node() *core { return o.c }

func (o *Operation[T]) Name() string { return o.c.name }

// AddDependency makes o wait for deps. It must be called before o is
// enqueued.
func (o *Operation[T]) AddDependency(deps ...Node) {
	o.c.mu.Lock()
	defer o.c.mu.Unlock()
	for _, d := range deps {
		o.c.deps = append(o.c.deps, d.node())
	}
}

// Dependencies returns the number of declared dependencies.
func (o *Operation[T]) Dependencies() int {
	return len(o.c.dependencies())
}

// Configure registers fn to run after all dependencies have settled and
// before the body. It may read dependency results with Extract and adjust
// the inputs the body closes over. An error from fn fails the operation.
func (o *Operation[T]) Configure(fn func() error) {
	o.c.mu.Lock()
	defer o.c.mu.Unlock()
	o.c.configure = append(o.c.configure, fn)
}

// Cancel cancels o. A pending operation settles immediately; a running one
// has its context cancelled and settles as cancelled when the body returns,
// discarding the body's result.
func (o *Operation[T]) Cancel() { o.c.cancel() }

func (o *Operation[T]) IsCancelled() bool { return o.c.cancelled.Load() }

func (o *Operation[T]) State() State {
	state, _, _ := o.c.snapshot()
	return state
}

// Done is closed once o settles.
func (o *Operation[T]) Done() <-chan struct{} { return o.c.done }

// OnComplete calls fn exactly once after o settles, immediately if it
// already has.
func (o *Operation[T]) OnComplete(fn func()) { o.c.onComplete(fn) }

// Result returns o's own outcome. Before o settles it returns
// ErrMissingResult.
func (o *Operation[T]) Result() (T, error) {
	var zero T
	state, value, err := o.c.snapshot()
	switch state {
	case Succeeded:
		v, _ := value.(T)
		return v, nil
	case Failed, Cancelled:
		return zero, err
	}
	return zero, fmt.Errorf("%w: %q is %s", ErrMissingResult, o.c.name, state)
}

// Wait blocks until o settles or ctx is done.
func (o *Operation[T]) Wait(ctx context.Context) (T, error) {
	select {
	case <-o.c.done:
		return o.Result()
	case <-ctx.Done():
		var zero T
		return zero, ctx.Err()
	}
}

// Extract reads the result of a dependency from within a dependent's
// configure step or body. Failures are reported as ErrParentCancelled,
// *ParentFailedError or ErrMissingResult.
func Extract[T any](dep *Operation[T]) (T, error) {
	var zero T
	state, value, err := dep.c.snapshot()
	switch {
	case state == Succeeded:
		v, _ := value.(T)
		return v, nil
	case state == Cancelled, state == Failed && errors.Is(err, ErrParentCancelled):
		return zero, fmt.Errorf("%w: %q", ErrParentCancelled, dep.c.name)
	case state == Failed:
		return zero, &ParentFailedError{Parent: dep.c.name, Err: err}
	}
	return zero, fmt.Errorf("%w: %q is %s", ErrMissingResult, dep.c.name, state)
}
