// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package operation

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/hashicorp/go-hclog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestQueue(t *testing.T, workers int) *Queue {
	t.Helper()
	q := NewQueue(WithWorkers(workers), WithLogger(hclog.NewNullLogger()))
	t.Cleanup(q.Close)
	return q
}

func waitCtx(t *testing.T) context.Context {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	t.Cleanup(cancel)
	return ctx
}

func TestChainRunsInDependencyOrder(t *testing.T) {
	q := newTestQueue(t, 4)

	var mu sync.Mutex
	var order []string
	record := func(name string) {
		mu.Lock()
		order = append(order, name)
		mu.Unlock()
	}

	a := New("a", func(context.Context) (int, error) {
		record("a")
		return 2, nil
	})
	b := New("b", func(context.Context) (int, error) {
		record("b")
		return 3, nil
	})
	sum := New("sum", func(context.Context) (int, error) {
		record("sum")
		x, err := Extract(a)
		if err != nil {
			return 0, err
		}
		y, err := Extract(b)
		if err != nil {
			return 0, err
		}
		return x + y, nil
	})
	w := NewWrapper(sum, a, b)
	assert.Equal(t, 3, w.Operations())

	require.NoError(t, q.Add(w))
	v, err := w.Wait(waitCtx(t))
	require.NoError(t, err)
	assert.Equal(t, 5, v)
	assert.Equal(t, Succeeded, sum.State())

	mu.Lock()
	defer mu.Unlock()
	require.Len(t, order, 3)
	assert.Equal(t, "sum", order[2])
}

func TestCancelRootOfThreeLevelChain(t *testing.T) {
	q := newTestQueue(t, 2)

	var ran atomic.Int32
	root := New("root", func(context.Context) (int, error) {
		ran.Add(1)
		return 1, nil
	})
	mid := New("mid", func(context.Context) (int, error) {
		ran.Add(1)
		return 2, nil
	})
	leaf := New("leaf", func(context.Context) (int, error) {
		ran.Add(1)
		return 3, nil
	})
	mid.AddDependency(root)
	w := NewWrapper(leaf, mid)

	root.Cancel()
	require.NoError(t, q.Add(w))

	_, err := w.Wait(waitCtx(t))
	require.ErrorIs(t, err, ErrParentCancelled)
	assert.Equal(t, Cancelled, root.State())
	assert.Equal(t, Failed, mid.State())
	assert.Equal(t, Failed, leaf.State())
	assert.Zero(t, ran.Load())

	_, err = Extract(mid)
	assert.ErrorIs(t, err, ErrParentCancelled)
	assert.False(t, IsParentFailed(err))
	assert.True(t, IsCancellation(err))
}

func TestCancelRunningOperationDiscardsResult(t *testing.T) {
	q := newTestQueue(t, 1)

	started := make(chan struct{})
	op := New("slow", func(ctx context.Context) (string, error) {
		close(started)
		<-ctx.Done()
		return "late", nil
	})
	var childRan atomic.Bool
	child := New("child", func(context.Context) (string, error) {
		childRan.Store(true)
		return "", nil
	})
	w := NewWrapper(child, op)
	require.NoError(t, q.Add(w))

	<-started
	op.Cancel()
	op.Cancel()

	_, err := op.Wait(waitCtx(t))
	assert.ErrorIs(t, err, ErrCancelled)
	_, err = w.Wait(waitCtx(t))
	assert.ErrorIs(t, err, ErrParentCancelled)
	assert.False(t, childRan.Load())
	assert.True(t, op.IsCancelled())
}

func TestParentFailure(t *testing.T) {
	q := newTestQueue(t, 2)

	boom := errors.New("boom")
	parent := New("parent", func(context.Context) (int, error) { return 0, boom })
	child := Map(NewWrapper(parent), "child", func(_ context.Context, v int) (int, error) {
		return v + 1, nil
	})

	require.NoError(t, q.Add(child))
	_, err := child.Wait(waitCtx(t))
	require.Error(t, err)
	assert.ErrorIs(t, err, boom)

	var pf *ParentFailedError
	require.ErrorAs(t, err, &pf)
	assert.Equal(t, "parent", pf.Parent)
	assert.False(t, IsCancellation(err))
}

func TestExtractMissingResult(t *testing.T) {
	op := New("never", func(context.Context) (int, error) { return 1, nil })
	_, err := Extract(op)
	assert.ErrorIs(t, err, ErrMissingResult)
	_, err = op.Result()
	assert.ErrorIs(t, err, ErrMissingResult)

	done := NewResult("done", 7)
	v, err := Extract(done)
	require.NoError(t, err)
	assert.Equal(t, 7, v)
}

func TestConfigureReadsDependencies(t *testing.T) {
	q := newTestQueue(t, 2)

	name := New("name", func(context.Context) (string, error) { return "System", nil })
	var prefix string
	op := New("prefix", func(context.Context) (string, error) { return prefix + "/Account", nil })
	op.AddDependency(name)
	op.Configure(func() error {
		var err error
		prefix, err = Extract(name)
		return err
	})

	require.NoError(t, q.Add(op))
	v, err := op.Wait(waitCtx(t))
	require.NoError(t, err)
	assert.Equal(t, "System/Account", v)

	failing := New("failing", func(context.Context) (int, error) { return 1, nil })
	failing.Configure(func() error { return errors.New("bad input") })
	require.NoError(t, q.Add(failing))
	_, err = failing.Wait(waitCtx(t))
	assert.EqualError(t, err, "bad input")
}

func TestSharedDependencyRunsOnce(t *testing.T) {
	q := newTestQueue(t, 4)

	var runs atomic.Int32
	release := make(chan struct{})
	shared := New("shared", func(context.Context) (int, error) {
		runs.Add(1)
		<-release
		return 10, nil
	})
	double := func(name string) *Wrapper[int] {
		return Map(NewWrapper(shared), name, func(_ context.Context, v int) (int, error) { return 2 * v, nil })
	}
	w1, w2 := double("w1"), double("w2")
	require.NoError(t, q.Add(w1))
	require.NoError(t, q.Add(w2))
	close(release)

	for _, w := range []*Wrapper[int]{w1, w2} {
		v, err := w.Wait(waitCtx(t))
		require.NoError(t, err)
		assert.Equal(t, 20, v)
	}
	assert.Equal(t, int32(1), runs.Load())
}

func TestWorkersBoundConcurrency(t *testing.T) {
	q := newTestQueue(t, 2)

	var cur, peak atomic.Int32
	ops := make([]Node, 8)
	for i := range ops {
		ops[i] = New("leaf", func(context.Context) (int, error) {
			n := cur.Add(1)
			for {
				p := peak.Load()
				if n <= p || peak.CompareAndSwap(p, n) {
					break
				}
			}
			time.Sleep(5 * time.Millisecond)
			cur.Add(-1)
			return 0, nil
		})
	}
	join := NewWrapper(New("join", func(context.Context) (int, error) { return 0, nil }), ops...)
	require.NoError(t, q.Add(join))
	_, err := join.Wait(waitCtx(t))
	require.NoError(t, err)
	assert.LessOrEqual(t, peak.Load(), int32(2))
}

func TestCycleFailsEveryOperation(t *testing.T) {
	q := newTestQueue(t, 1)

	a := New("a", func(context.Context) (int, error) { return 0, nil })
	b := New("b", func(context.Context) (int, error) { return 0, nil })
	a.AddDependency(b)
	b.AddDependency(a)

	err := q.Add(a)
	require.ErrorIs(t, err, ErrCycle)
	_, err = a.Result()
	assert.ErrorIs(t, err, ErrCycle)
	_, err = b.Result()
	assert.ErrorIs(t, err, ErrCycle)
}

func TestEnqueueCallsExactlyOnce(t *testing.T) {
	q := newTestQueue(t, 2)

	var successes, failures atomic.Int32
	done := make(chan struct{}, 3)
	onSuccess := func(int) { successes.Add(1); done <- struct{}{} }
	onError := func(error) { failures.Add(1); done <- struct{}{} }

	Enqueue(q, NewWrapper(New("ok", func(context.Context) (int, error) { return 1, nil })), onSuccess, onError)
	Enqueue(q, NewWrapper(New("err", func(context.Context) (int, error) { return 0, errors.New("x") })), onSuccess, onError)

	cancelled := New("cancelled", func(context.Context) (int, error) { return 1, nil })
	cancelled.Cancel()
	Enqueue(q, NewWrapper(cancelled), onSuccess, onError)

	ctx := waitCtx(t)
	for range 3 {
		select {
		case <-done:
		case <-ctx.Done():
			t.Fatal("timed out waiting for callbacks")
		}
	}
	time.Sleep(10 * time.Millisecond)
	assert.Equal(t, int32(1), successes.Load())
	assert.Equal(t, int32(2), failures.Load())
}

func TestClosedQueue(t *testing.T) {
	q := NewQueue(WithWorkers(1), WithLogger(hclog.NewNullLogger()))
	q.Close()

	op := New("late", func(context.Context) (int, error) { return 1, nil })
	var got error
	Enqueue(q, NewWrapper(op), nil, func(err error) { got = err })
	assert.ErrorIs(t, got, ErrQueueClosed)
	assert.ErrorIs(t, got, ErrCancelled)
	assert.Equal(t, Cancelled, op.State())
}

func TestPanicFailsOperation(t *testing.T) {
	q := newTestQueue(t, 1)
	op := New("panics", func(context.Context) (int, error) { panic("kaboom") })
	require.NoError(t, q.Add(op))
	_, err := op.Wait(waitCtx(t))
	assert.ErrorContains(t, err, "kaboom")
	assert.Equal(t, Failed, op.State())
}

func TestStateString(t *testing.T) {
	assert.Equal(t, "running", Running.String())
	assert.Equal(t, "State(9)", State(9).String())
	assert.True(t, Cancelled.Terminal())
	assert.False(t, Running.Terminal())
}
