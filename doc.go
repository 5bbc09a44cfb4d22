// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

// Package rpc is a JSON-RPC client for Substrate-style nodes.
//
// # Transport Selection
//
// The transport follows the endpoint's URL scheme:
//
//	http://, https://   one POST per call or batch
//	ws://, wss://       shared connection, supports subscriptions
//	grpc://             JSON-RPC frames over gRPC (go build -tags grpc)
//
// WithTransport overrides the scheme.
//
// # Usage
//
//	client, err := rpc.Dial(ctx, "wss://rpc.example.org")
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer client.Close()
//
//	var version runtime.Version
//	err = client.Call(ctx, "state_getRuntimeVersion", nil, &version)
//
// Calls compose with the operation package:
//
//	head := rpc.NewCallOperation[string](client, "chain_getFinalizedHead")
//	values := rpc.NewListOperation[rpc.HexBytes](client, "state_getStorage", keys...)
//
// # Errors
//
// Transport failures are ErrConnectionLost, ErrTimeout and
// ErrMalformedResponse. An error object returned by the node inside a
// well-formed response is an *Error. Nothing is retried.
//
// # Architecture
//
//   - client.go: Client and SubscriptionClient interfaces, dial options
//   - codec.go: JSON-RPC envelopes and response decoding
//   - transport.go: Transport registry for build-tag extensibility
//   - dial.go: Dial factory functions
//   - json.go: HTTP transport
//   - ws.go: websocket transport and subscriptions
//   - dial_grpc.go: gRPC transport (requires -tags grpc)
//   - operation.go: call and list operations
package rpc
