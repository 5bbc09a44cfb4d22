// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package operation

import (
	"context"
	"fmt"
	"runtime"
	"sync"

	"github.com/hashicorp/go-hclog"
	"golang.org/x/sync/semaphore"
)

// QueueOption configures a Queue.
type QueueOption func(*queueOptions)

type queueOptions struct {
	workers int64
	logger  hclog.Logger
}

// WithWorkers bounds the number of operation bodies running at once.
func WithWorkers(n int) QueueOption {
	return func(o *queueOptions) {
		if n > 0 {
			o.workers = int64(n)
		}
	}
}

// WithLogger sets the logger used for settle events.
func WithLogger(l hclog.Logger) QueueOption {
	return func(o *queueOptions) {
		if l != nil {
			o.logger = l
		}
	}
}

// Queue executes wrappers on a bounded worker pool.
type Queue struct {
	sem    *semaphore.Weighted
	log    hclog.Logger
	ctx    context.Context
	cancel context.CancelFunc
	mu     sync.Mutex
	closed bool
	wg     sync.WaitGroup
}

// NewQueue returns a running queue. It defaults to one worker per CPU.
func NewQueue(opts ...QueueOption) *Queue {
	o := queueOptions{
		workers: int64(runtime.GOMAXPROCS(0)),
		logger:  hclog.L().Named("operation"),
	}
	for _, opt := range opts {
		opt(&o)
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Queue{
		sem:    semaphore.NewWeighted(o.workers),
		log:    o.logger,
		ctx:    ctx,
		cancel: cancel,
	}
}

// Add schedules each node with the transitive closure of its dependencies.
// Operations already claimed by another scheduling pass are awaited rather
// than run twice. If the closure contains a cycle, every unclaimed
// operation in it fails with ErrCycle.
func (q *Queue) Add(nodes ...Node) error {
	roots := make([]*core, len(nodes))
	for i, n := range nodes {
		roots[i] = n.node()
	}
	a := newArena(roots...)

	if _, err := a.order(); err != nil {
		a.abandon(err)
		return err
	}

	q.mu.Lock()
	defer q.mu.Unlock()
	if q.closed {
		a.abandon(fmt.Errorf("%w: %w", ErrCancelled, ErrQueueClosed))
		return ErrQueueClosed
	}
	q.wg.Add(1)
	go q.schedule(a)
	return nil
}

// abandon fails every unclaimed, unsettled operation of the arena with err.
func (a *arena) abandon(err error) {
	for _, c := range a.nodes {
		if !c.claimed.CompareAndSwap(false, true) {
			continue
		}
		if IsCancellation(err) {
			c.settle(Cancelled, nil, err)
		} else {
			c.settle(Failed, nil, err)
		}
	}
}

// schedule launches ready operations as their dependencies settle. It
// returns once the whole arena has settled.
func (q *Queue) schedule(a *arena) {
	defer q.wg.Done()

	n := a.len()
	events := make(chan int, n)
	for i, c := range a.nodes {
		c.onComplete(func() { events <- i })
	}

	remaining := append([]int(nil), a.indeg...)
	launch := func(i int) {
		c := a.nodes[i]
		if !c.claimed.CompareAndSwap(false, true) {
			return
		}
		if state, _, _ := c.snapshot(); state.Terminal() {
			return
		}
		q.wg.Add(1)
		go q.execute(c)
	}
	for i, d := range remaining {
		if d == 0 {
			launch(i)
		}
	}

	for range n {
		u := <-events
		c := a.nodes[u]
		if q.log.IsTrace() {
			state, _, err := c.snapshot()
			q.log.Trace("operation settled", "name", c.name, "id", c.id, "state", state, "error", err)
		}
		for _, v := range a.dependents[u] {
			remaining[v]--
			if remaining[v] == 0 {
				launch(v)
			}
		}
	}
}

func (q *Queue) execute(c *core) {
	defer q.wg.Done()

	for _, d := range c.dependencies() {
		if d.poisoned() {
			c.settle(Failed, nil, fmt.Errorf("%w: %q", ErrParentCancelled, d.name))
			return
		}
	}
	if c.cancelled.Load() {
		c.settle(Cancelled, nil, ErrCancelled)
		return
	}

	if err := q.sem.Acquire(q.ctx, 1); err != nil {
		c.settle(Cancelled, nil, fmt.Errorf("%w: %w", ErrCancelled, ErrQueueClosed))
		return
	}
	defer q.sem.Release(1)

	ctx, stop := context.WithCancel(q.ctx)
	defer stop()
	if !c.begin(stop) {
		c.settle(Cancelled, nil, ErrCancelled)
		return
	}

	defer func() {
		if r := recover(); r != nil {
			q.log.Error("operation panicked", "name", c.name, "panic", r)
			c.settle(Failed, nil, fmt.Errorf("operation: %q panicked: %v", c.name, r))
		}
	}()

	c.mu.Lock()
	configure := append([]func() error(nil), c.configure...)
	c.mu.Unlock()
	for _, fn := range configure {
		if err := fn(); err != nil {
			c.finish(nil, err)
			return
		}
	}
	value, err := c.body(ctx)
	c.finish(value, err)
}

// Close stops the queue. Operations waiting for a worker settle as
// cancelled and running bodies see their context cancelled. Close waits for
// every scheduling pass to finish.
func (q *Queue) Close() {
	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		return
	}
	q.closed = true
	q.mu.Unlock()

	q.cancel()
	q.wg.Wait()
}

// Enqueue schedules w on q and calls exactly one of onSuccess or onError
// once w's target settles. Cancellation is reported through onError.
func Enqueue[T any](q *Queue, w *Wrapper[T], onSuccess func(T), onError func(error)) {
	target := w.Target
	target.OnComplete(func() {
		v, err := target.Result()
		if err != nil {
			if onError != nil {
				onError(err)
			}
			return
		}
		if onSuccess != nil {
			onSuccess(v)
		}
	})
	_ = q.Add(w)
}
