// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package rpc

import (
	"context"
	"fmt"
	"net/url"
)

// Dial connects to a node. The transport follows the endpoint's scheme
// (http, https, ws, wss, and grpc when built with -tags grpc) unless
// WithTransport names one explicitly.
func Dial(ctx context.Context, endpoint string, opts ...DialOption) (Client, error) {
	u, err := url.Parse(endpoint)
	if err != nil {
		return nil, fmt.Errorf("parse endpoint: %w", err)
	}
	o := newDialOptions(opts)
	if o.transport == "" {
		o.transport = transportForScheme(u.Scheme)
	}

	dial, ok := lookupTransport(o.transport)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownTransport, o.transport)
	}
	o.logger = o.logger.With("transport", o.transport)
	return dial(ctx, u, o)
}

// DialSubscriptions connects over a transport that supports subscriptions.
func DialSubscriptions(ctx context.Context, endpoint string, opts ...DialOption) (SubscriptionClient, error) {
	c, err := Dial(ctx, endpoint, opts...)
	if err != nil {
		return nil, err
	}
	sc, ok := c.(SubscriptionClient)
	if !ok {
		_ = c.Close()
		return nil, fmt.Errorf("%w: %s has no subscriptions", ErrUnknownTransport, endpoint)
	}
	return sc, nil
}

// rescheme maps an endpoint onto the scheme family a transport speaks, so
// WithTransport can override the scheme of the URL.
func rescheme(u *url.URL, plain, secure string) *url.URL {
	out := *u
	switch u.Scheme {
	case "https", "wss":
		out.Scheme = secure
	default:
		out.Scheme = plain
	}
	return &out
}
