//go:build grpc

// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package rpc

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"sync/atomic"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/status"
)

// grpcMethod is the unary method that carries one JSON-RPC frame each way.
const grpcMethod = "/substrate.JSONRPC/Call"

func init() {
	// Register gRPC transport when build tag is enabled
	registerTransport(TransportGRPC, dialGRPC, "grpc")
}

// rawCodec passes pre-encoded JSON-RPC frames through gRPC unchanged.
type rawCodec struct{}

func (rawCodec) Name() string { return "jsonrpc" }

func (rawCodec) Marshal(v any) ([]byte, error) {
	b, ok := v.(*[]byte)
	if !ok {
		return nil, fmt.Errorf("grpc: unexpected message type %T", v)
	}
	return *b, nil
}

func (rawCodec) Unmarshal(data []byte, v any) error {
	b, ok := v.(*[]byte)
	if !ok {
		return fmt.Errorf("grpc: unexpected message type %T", v)
	}
	*b = append((*b)[:0], data...)
	return nil
}

func dialGRPC(_ context.Context, endpoint *url.URL, o *dialOptions) (Client, error) {
	conn, err := grpc.NewClient(endpoint.Host,
		grpc.WithTransportCredentials(insecure.NewCredentials()),
		grpc.WithDefaultCallOptions(grpc.ForceCodec(rawCodec{})),
	)
	if err != nil {
		return nil, fmt.Errorf("grpc dial: %w", err)
	}
	return &grpcClient{conn: conn}, nil
}

type grpcClient struct {
	conn   *grpc.ClientConn
	nextID atomic.Uint64
}

func (c *grpcClient) invoke(ctx context.Context, v any) ([]*message, error) {
	req, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("encode request: %w", err)
	}
	var resp []byte
	if err := c.conn.Invoke(ctx, grpcMethod, &req, &resp); err != nil {
		switch status.Code(err) {
		case codes.DeadlineExceeded:
			return nil, fmt.Errorf("%w: %w", ErrTimeout, err)
		case codes.Canceled:
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			fallthrough
		default:
			return nil, fmt.Errorf("%w: %w", ErrConnectionLost, err)
		}
	}
	return decodeFrame(resp)
}

func (c *grpcClient) Call(ctx context.Context, method string, params []any, reply any) error {
	msgs, err := c.invoke(ctx, newRequest(c.nextID.Add(1), method, params))
	if err != nil {
		return err
	}
	if len(msgs) != 1 {
		return fmt.Errorf("%w: expected one response, got %d", ErrMalformedResponse, len(msgs))
	}
	return decodeResult(msgs[0], reply)
}

func (c *grpcClient) BatchCall(ctx context.Context, batch []BatchElem) error {
	if len(batch) == 0 {
		return nil
	}
	reqs := make([]*request, len(batch))
	index := make(map[uint64]int, len(batch))
	for i, elem := range batch {
		reqs[i] = newRequest(c.nextID.Add(1), elem.Method, elem.Params)
		index[reqs[i].ID] = i
	}
	msgs, err := c.invoke(ctx, reqs)
	if err != nil {
		return err
	}
	return fillBatch(batch, index, msgs)
}

func (c *grpcClient) Close() error {
	return c.conn.Close()
}
