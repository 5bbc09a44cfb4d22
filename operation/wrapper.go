// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package operation

import "context"

// Wrapper is a target operation together with every operation it
// transitively depends on. Enqueuing a wrapper schedules the whole closure
// as one unit.
type Wrapper[T any] struct {
	Target *Operation[T]
}

// NewWrapper wraps target. Any deps given are added as dependencies of
// target first.
func NewWrapper[T any](target *Operation[T], deps ...Node) *Wrapper[T] {
	if len(deps) > 0 {
		target.AddDependency(deps...)
	}
	return &Wrapper[T]{Target: target}
}

func (w *Wrapper[T]) node() *core { return w.Target.c }

// Operations returns the size of the wrapper's closure, target included.
func (w *Wrapper[T]) Operations() int {
	return newArena(w.Target.c).len()
}

// Cancel cancels every operation of the closure that has not settled.
func (w *Wrapper[T]) Cancel() {
	for _, c := range newArena(w.Target.c).nodes {
		c.cancel()
	}
}

// Wait blocks until the target settles or ctx is done.
func (w *Wrapper[T]) Wait(ctx context.Context) (T, error) {
	return w.Target.Wait(ctx)
}

// Map returns a wrapper whose target runs fn on w's result. Failures of w
// reach fn's operation as a *ParentFailedError or ErrParentCancelled.
func Map[A, B any](w *Wrapper[A], name string, fn func(ctx context.Context, a A) (B, error)) *Wrapper[B] {
	parent := w.Target
	op := New(name, func(ctx context.Context) (B, error) {
		a, err := Extract(parent)
		if err != nil {
			var zero B
			return zero, err
		}
		return fn(ctx, a)
	})
	return NewWrapper(op, parent)
}
