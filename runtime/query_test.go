// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package runtime

import (
	"encoding/json"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/luxfi/substrate-rpc/operation"
	"github.com/luxfi/substrate-rpc/storagekey"
)

func TestStorageQuery(t *testing.T) {
	c := newChain(t)
	s := newTestService(t, dial(t, c.URL()))
	ctx := testContext(t)

	number, err := storagekey.Plain("System", "Number")
	require.NoError(t, err)
	c.set(number.Hex(), u32(42))

	q := NewStorageQuery(s, "System", "Number")
	require.NoError(t, s.Queue().Add(q))
	v, err := q.Wait(ctx)
	require.NoError(t, err)
	assert.Equal(t, uint32(42), v)

	q = NewStorageQuery(s, "System", "ExecutionPhase")
	require.NoError(t, s.Queue().Add(q))
	v, err = q.Wait(ctx)
	require.NoError(t, err)
	assert.Nil(t, v)

	q = NewStorageQuery(s, "System", "Missing")
	require.NoError(t, s.Queue().Add(q))
	_, err = q.Wait(ctx)
	assert.ErrorIs(t, err, ErrUnknownStorage)
	assert.True(t, operation.IsParentFailed(err))
	assert.Equal(t, 1, c.Calls("state_getMetadata"))
}

func TestTypedStorageQuery(t *testing.T) {
	c := newChain(t)
	s := newTestService(t, dial(t, c.URL()))
	ctx := testContext(t)

	number, err := storagekey.Plain("System", "Number")
	require.NoError(t, err)
	c.set(number.Hex(), u32(7))

	q := NewTypedStorageQuery[uint32](s, "System", "Number")
	require.NoError(t, s.Queue().Add(q))
	v, err := q.Wait(ctx)
	require.NoError(t, err)
	assert.Equal(t, uint32(7), v)

	phase := NewTypedStorageQuery[uint8](s, "System", "ExecutionPhase")
	require.NoError(t, s.Queue().Add(phase))
	_, err = phase.Wait(ctx)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestStorageQueryThroughEnqueue(t *testing.T) {
	c := newChain(t)
	s := newTestService(t, dial(t, c.URL()))
	alice := account(0xa1)
	key, err := storagekey.Map("System", "Account", storagekey.Blake128Concat, alice)
	require.NoError(t, err)
	c.set(key.Hex(), accountInfo(3))

	results := make(chan any, 1)
	operation.Enqueue(s.Queue(), NewStorageQuery(s, "System", "Account", alice),
		func(v any) { results <- v },
		func(err error) { t.Errorf("unexpected error: %v", err) },
	)
	select {
	case v := <-results:
		info, ok := v.(map[string]any)
		require.True(t, ok)
		assert.Equal(t, uint32(3), info["nonce"])
	case <-testContext(t).Done():
		t.Fatal("query did not complete")
	}
}

func TestMultiStorageQuery(t *testing.T) {
	c := newChain(t)
	s := newTestService(t, dial(t, c.URL()))
	alice, bob := account(0xa1), account(0xb0)
	key, err := storagekey.Map("System", "Account", storagekey.Blake128Concat, alice)
	require.NoError(t, err)
	c.set(key.Hex(), accountInfo(5))

	q := NewMultiStorageQuery(s, "System", "Account", []any{alice}, []any{bob})
	require.NoError(t, s.Queue().Add(q))
	v, err := q.Wait(testContext(t))
	require.NoError(t, err)
	require.Len(t, v, 2)
	assert.Equal(t, uint32(5), v[0].(map[string]any)["nonce"])
	assert.Equal(t, uint32(0), v[1].(map[string]any)["nonce"])
	assert.Equal(t, 2, c.Calls("state_getStorage"))
}

func TestKeysPagedOperation(t *testing.T) {
	c := newChain(t)
	s := newTestService(t, dial(t, c.URL()))

	prefix, err := storagekey.Plain("System", "Account")
	require.NoError(t, err)
	k1, err := storagekey.Map("System", "Account", storagekey.Blake128Concat, account(1))
	require.NoError(t, err)
	k2, err := storagekey.Map("System", "Account", storagekey.Blake128Concat, account(2))
	require.NoError(t, err)

	var (
		mu  sync.Mutex
		got []json.RawMessage
	)
	c.Handle("state_getKeysPaged", func(params []json.RawMessage) (any, error) {
		mu.Lock()
		defer mu.Unlock()
		got = params
		return []string{k1.Hex(), k2.Hex()}, nil
	})

	q := NewKeysPagedOperation(s, "System", "Account", 2, k1)
	require.NoError(t, s.Queue().Add(q))
	keys, err := q.Wait(testContext(t))
	require.NoError(t, err)
	require.Len(t, keys, 2)
	assert.Equal(t, k1, keys[0])
	assert.True(t, keys[1].HasPrefix(prefix))

	mu.Lock()
	defer mu.Unlock()
	require.Len(t, got, 3)
	assert.JSONEq(t, `"`+prefix.Hex()+`"`, string(got[0]))
	assert.JSONEq(t, `2`, string(got[1]))
	assert.JSONEq(t, `"`+k1.Hex()+`"`, string(got[2]))

	tail, err := storagekey.Tail(keys[1], 32, storagekey.Blake128Concat)
	require.NoError(t, err)
	assert.Equal(t, account(2), tail)
}
