// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package rpc

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/hashicorp/go-hclog"
	"github.com/hashicorp/go-multierror"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/luxfi/substrate-rpc/operation"
)

func newQueue(t *testing.T) *operation.Queue {
	t.Helper()
	q := operation.NewQueue(operation.WithWorkers(4), operation.WithLogger(hclog.NewNullLogger()))
	t.Cleanup(q.Close)
	return q
}

func TestCallOperation(t *testing.T) {
	node := newNode(t)
	c := endpoints(t, node)["ws"]
	q := newQueue(t)

	key := operation.New("key", func(context.Context) (string, error) { return "0x26aa", nil })
	call := NewCallOperation[string](c, "echo")
	call.AddDependency(key)
	call.Configure(func() error {
		k, err := operation.Extract(key)
		call.Params = []any{k}
		return err
	})

	require.NoError(t, q.Add(call))
	v, err := call.Wait(testContext(t))
	require.NoError(t, err)
	assert.Equal(t, "0x26aa", v)

	skipped := NewCallOperation[string](c, "fail")
	skipped.Configure(func() error {
		skipped.Skip = true
		return nil
	})
	require.NoError(t, q.Add(skipped))
	v, err = skipped.Wait(testContext(t))
	require.NoError(t, err)
	assert.Empty(t, v)
	assert.Zero(t, node.Calls("fail"))

	failing := NewCallOperation[string](c, "fail")
	require.NoError(t, q.Add(failing))
	_, err = failing.Wait(testContext(t))
	var rpcErr *Error
	assert.ErrorAs(t, err, &rpcErr)
	assert.Equal(t, 1, node.Calls("fail"))
}

func TestListOperation(t *testing.T) {
	node := newNode(t)
	node.Handle("double", func(params []json.RawMessage) (any, error) {
		var n int
		if err := json.Unmarshal(params[0], &n); err != nil {
			return nil, err
		}
		return 2 * n, nil
	})
	q := newQueue(t)

	for name, c := range endpoints(t, node) {
		t.Run(name, func(t *testing.T) {
			list := NewListOperation[int](c, "double", []any{1}, []any{2}, []any{3})
			require.NoError(t, q.Add(list))
			v, err := list.Wait(testContext(t))
			require.NoError(t, err)
			assert.Equal(t, []int{2, 4, 6}, v)

			empty := NewListOperation[int](c, "double")
			require.NoError(t, q.Add(empty))
			v, err = empty.Wait(testContext(t))
			require.NoError(t, err)
			assert.Empty(t, v)

			bad := NewListOperation[int](c, "double", []any{1}, []any{"x"}, []any{"y"})
			require.NoError(t, q.Add(bad))
			_, err = bad.Wait(testContext(t))
			var merr *multierror.Error
			require.ErrorAs(t, err, &merr)
			assert.Len(t, merr.Errors, 2)
		})
	}
}
