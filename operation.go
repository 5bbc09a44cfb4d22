// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package rpc

import (
	"context"
	"fmt"

	"github.com/hashicorp/go-multierror"

	"github.com/luxfi/substrate-rpc/operation"
)

// CallOperation is an operation that performs one RPC call. Method and
// Params may be changed by a configure step before the call is sent. A
// configure step that sets Skip makes the operation succeed with the zero
// T without calling the node.
type CallOperation[T any] struct {
	*operation.Operation[T]

	Method string
	Params []any
	Skip   bool
}

// NewCallOperation returns an operation that calls method on c and
// decodes the result into a T.
func NewCallOperation[T any](c Client, method string, params ...any) *CallOperation[T] {
	op := &CallOperation[T]{Method: method, Params: params}
	op.Operation = operation.New(method, func(ctx context.Context) (T, error) {
		var reply T
		if op.Skip {
			return reply, nil
		}
		if err := c.Call(ctx, op.Method, op.Params, &reply); err != nil {
			return reply, fmt.Errorf("%s: %w", op.Method, err)
		}
		return reply, nil
	})
	return op
}

// ListOperation expands into one batch of calls to the same method, one
// per params entry. Results keep the order of Params.
type ListOperation[T any] struct {
	*operation.Operation[[]T]

	Method string
	Params [][]any
}

// NewListOperation returns an operation that batches method over every
// params entry. If any sub-request fails the operation fails with all
// failures aggregated.
func NewListOperation[T any](c Client, method string, params ...[]any) *ListOperation[T] {
	op := &ListOperation[T]{Method: method, Params: params}
	op.Operation = operation.New(method+"[]", func(ctx context.Context) ([]T, error) {
		out := make([]T, len(op.Params))
		if len(op.Params) == 0 {
			return out, nil
		}
		batch := make([]BatchElem, len(op.Params))
		for i, p := range op.Params {
			batch[i] = BatchElem{Method: op.Method, Params: p, Result: &out[i]}
		}
		if err := c.BatchCall(ctx, batch); err != nil {
			return nil, fmt.Errorf("%s: %w", op.Method, err)
		}

		var errs *multierror.Error
		for i, elem := range batch {
			if elem.Error != nil {
				errs = multierror.Append(errs, fmt.Errorf("%s[%d]: %w", op.Method, i, elem.Error))
			}
		}
		if err := errs.ErrorOrNil(); err != nil {
			return nil, err
		}
		return out, nil
	})
	return op
}
