// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package runtime

import (
	"context"
	"encoding/binary"
	"encoding/json"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/gorilla/rpc/v2/json2"
	"github.com/hashicorp/go-hclog"
	"github.com/stretchr/testify/require"

	rpc "github.com/luxfi/substrate-rpc"
	"github.com/luxfi/substrate-rpc/metadata/metadatatest"
	"github.com/luxfi/substrate-rpc/rpctest"
)

// chain is a node serving the metadatatest runtime.
type chain struct {
	*rpctest.Node

	spec atomic.Uint32
	gate atomic.Pointer[chan struct{}]

	mu      sync.Mutex
	storage map[string][]byte
	failing int // metadata requests left to fail
}

func newChain(t *testing.T) *chain {
	t.Helper()
	c := &chain{Node: rpctest.NewNode(), storage: make(map[string][]byte)}
	t.Cleanup(c.Close)
	t.Cleanup(c.open)
	c.spec.Store(metadatatest.SpecVersion)

	c.Handle("chain_getBlockHash", func([]json.RawMessage) (any, error) {
		return blockHash(c.spec.Load()), nil
	})
	c.Handle("state_getRuntimeVersion", func(params []json.RawMessage) (any, error) {
		if len(params) == 0 {
			return c.version(), nil
		}
		spec, err := specAt(params[0])
		if err != nil {
			return nil, err
		}
		return versionOf(spec), nil
	})
	c.Handle("state_getMetadata", func([]json.RawMessage) (any, error) {
		if g := c.gate.Load(); g != nil {
			<-*g
		}
		c.mu.Lock()
		defer c.mu.Unlock()
		if c.failing > 0 {
			c.failing--
			return nil, &json2.Error{Code: -32000, Message: "metadata not ready"}
		}
		return rpc.HexBytes(metadatatest.Bytes()), nil
	})
	c.Handle("state_getStorage", func(params []json.RawMessage) (any, error) {
		var key string
		if err := json.Unmarshal(params[0], &key); err != nil {
			return nil, err
		}
		c.mu.Lock()
		defer c.mu.Unlock()
		v, ok := c.storage[key]
		if !ok {
			return nil, nil
		}
		return rpc.HexBytes(v), nil
	})
	return c
}

// blockHash is the hash of the block that enacted spec. The chain has one
// block per runtime version.
func blockHash(spec uint32) string { return fmt.Sprintf("0x%064x", spec) }

func specAt(param json.RawMessage) (uint32, error) {
	var hash string
	if err := json.Unmarshal(param, &hash); err != nil {
		return 0, err
	}
	var spec uint32
	if _, err := fmt.Sscanf(hash, "0x%x", &spec); err != nil {
		return 0, &json2.Error{Code: -32602, Message: "unknown block " + hash}
	}
	return spec, nil
}

func (c *chain) version() map[string]any { return versionOf(c.spec.Load()) }

func versionOf(spec uint32) map[string]any {
	return map[string]any{
		"specName":           metadatatest.SpecName,
		"implName":           "lux-node",
		"authoringVersion":   1,
		"specVersion":        spec,
		"implVersion":        0,
		"apis":               [][]any{{"0xdf6acb689907609b", 4}},
		"transactionVersion": 1,
		"stateVersion":       1,
	}
}

// hold makes metadata requests block until open is called.
func (c *chain) hold() {
	g := make(chan struct{})
	c.gate.Store(&g)
}

func (c *chain) open() {
	if g := c.gate.Swap(nil); g != nil {
		close(*g)
	}
}

func (c *chain) failMetadata(n int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.failing = n
}

func (c *chain) set(key string, value []byte) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.storage[key] = value
}

func testContext(t *testing.T) context.Context {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	t.Cleanup(cancel)
	return ctx
}

func dial(t *testing.T, endpoint string) rpc.Client {
	t.Helper()
	c, err := rpc.Dial(testContext(t), endpoint, rpc.WithLogger(hclog.NewNullLogger()))
	require.NoError(t, err)
	t.Cleanup(func() { _ = c.Close() })
	return c
}

func newTestService(t *testing.T, client rpc.Client, opts ...Option) *Service {
	t.Helper()
	opts = append([]Option{WithLogger(hclog.NewNullLogger()), WithWorkers(4)}, opts...)
	s := NewService(client, opts...)
	t.Cleanup(s.Close)
	return s
}

func u32(v uint32) []byte { return binary.LittleEndian.AppendUint32(nil, v) }

func account(b byte) []byte {
	id := make([]byte, 32)
	for i := range id {
		id[i] = b
	}
	return id
}

// accountInfo encodes a frame_system AccountInfo with the given nonce and
// zero balances.
func accountInfo(nonce uint32) []byte {
	out := u32(nonce)
	out = append(out, make([]byte, 3*4+4*16)...)
	return out
}
