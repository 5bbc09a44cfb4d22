// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package rpc

import (
	"context"
	"net/url"
	"sort"
	"sync"
)

// Transport types
const (
	TransportHTTP = "http" // one POST per call or batch
	TransportWS   = "ws"   // shared websocket, supports subscriptions
	TransportGRPC = "grpc" // JSON-RPC envelopes over gRPC, requires build tag
)

type dialFunc func(ctx context.Context, endpoint *url.URL, o *dialOptions) (Client, error)

var (
	transportsMu sync.RWMutex
	transports   = map[string]dialFunc{
		TransportHTTP: dialHTTP,
		TransportWS:   dialWS,
	}
	schemes = map[string]string{
		"http":  TransportHTTP,
		"https": TransportHTTP,
		"ws":    TransportWS,
		"wss":   TransportWS,
	}
)

// registerTransport registers a new transport (used by build tags)
func registerTransport(name string, dial dialFunc, urlSchemes ...string) {
	transportsMu.Lock()
	defer transportsMu.Unlock()
	transports[name] = dial
	for _, s := range urlSchemes {
		schemes[s] = name
	}
}

func lookupTransport(name string) (dialFunc, bool) {
	transportsMu.RLock()
	defer transportsMu.RUnlock()
	dial, ok := transports[name]
	return dial, ok
}

func transportForScheme(scheme string) string {
	transportsMu.RLock()
	defer transportsMu.RUnlock()
	if name, ok := schemes[scheme]; ok {
		return name
	}
	return scheme
}

// AvailableTransports returns list of available transport types
func AvailableTransports() []string {
	transportsMu.RLock()
	defer transportsMu.RUnlock()
	result := make([]string, 0, len(transports))
	for name := range transports {
		result = append(result, name)
	}
	sort.Strings(result)
	return result
}

// HasTransport checks if a transport is available
func HasTransport(name string) bool {
	_, ok := lookupTransport(name)
	return ok
}
