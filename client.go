// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package rpc

import (
	"context"
	"net/http"

	"github.com/hashicorp/go-hclog"
)

// Client is the transport-agnostic JSON-RPC client interface.
// All application code should use this interface.
type Client interface {
	// Call sends one request and decodes its result into reply. A null
	// result leaves reply untouched.
	Call(ctx context.Context, method string, params []any, reply any) error

	// BatchCall sends every element in one batch. Per-element failures are
	// stored in the element; the returned error is for the batch as a whole.
	BatchCall(ctx context.Context, batch []BatchElem) error

	// Close closes the connection
	Close() error
}

// SubscriptionClient is a Client on a persistent connection that can
// receive server pushed notifications.
type SubscriptionClient interface {
	Client

	// Subscribe calls method and routes the notifications of the returned
	// subscription id to the Subscription. unsubscribeMethod is called by
	// Subscription.Unsubscribe.
	Subscribe(ctx context.Context, method, unsubscribeMethod string, params []any) (*Subscription, error)
}

// BatchElem is one request of a batch.
type BatchElem struct {
	Method string
	Params []any
	// Result is decoded into when the call succeeds. It may be nil.
	Result any
	// Error is set per element after BatchCall returns nil.
	Error error
}

// DialOption configures client connections
type DialOption func(*dialOptions)

type dialOptions struct {
	transport  string // "http", "ws", "grpc"; inferred from the URL scheme when empty
	header     http.Header
	httpClient *http.Client
	logger     hclog.Logger
	bufferSize int
}

func newDialOptions(opts []DialOption) *dialOptions {
	o := &dialOptions{
		header:     make(http.Header),
		bufferSize: 64,
	}
	for _, opt := range opts {
		opt(o)
	}
	if o.logger == nil {
		o.logger = hclog.L().Named("rpc")
	}
	return o
}

// WithTransport explicitly sets the transport type
func WithTransport(t string) DialOption {
	return func(o *dialOptions) { o.transport = t }
}

// WithHeader adds a header to every HTTP request and to the websocket
// handshake.
func WithHeader(key, value string) DialOption {
	return func(o *dialOptions) { o.header.Add(key, value) }
}

// WithHTTPClient sets the client used by the HTTP transport.
func WithHTTPClient(c *http.Client) DialOption {
	return func(o *dialOptions) { o.httpClient = c }
}

// WithLogger sets the logger.
func WithLogger(l hclog.Logger) DialOption {
	return func(o *dialOptions) { o.logger = l }
}

// WithSubscriptionBuffer sets how many notifications a subscription buffers
// before further ones are dropped.
func WithSubscriptionBuffer(n int) DialOption {
	return func(o *dialOptions) {
		if n > 0 {
			o.bufferSize = n
		}
	}
}
