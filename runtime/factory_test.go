// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package runtime

import (
	"encoding/json"
	"math/big"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/luxfi/substrate-rpc/metadata/metadatatest"
	"github.com/luxfi/substrate-rpc/storagekey"
)

func newFactory(t *testing.T) *CoderFactory {
	t.Helper()
	f, err := NewCoderFactory(Version{SpecName: metadatatest.SpecName, SpecVersion: metadatatest.SpecVersion}, metadatatest.Metadata())
	require.NoError(t, err)
	return f
}

func TestFactoryStorageKey(t *testing.T) {
	f := newFactory(t)
	alice := account(0x01)

	key, err := f.StorageKey("System", "Account", alice)
	require.NoError(t, err)
	want, err := storagekey.Map("System", "Account", storagekey.Blake128Concat, alice)
	require.NoError(t, err)
	assert.Equal(t, want, key)

	prefix, err := f.StorageKey("System", "Account")
	require.NoError(t, err)
	assert.True(t, key.HasPrefix(prefix))

	key, err = f.StorageKey("Staking", "ErasStakers", uint32(7), alice)
	require.NoError(t, err)
	want, err = storagekey.DoubleMap("Staking", "ErasStakers",
		storagekey.Twox64Concat, u32(7), storagekey.Twox64Concat, alice)
	require.NoError(t, err)
	assert.Equal(t, want, key)

	plain, err := f.StorageKey("Timestamp", "Now")
	require.NoError(t, err)
	want, err = storagekey.Plain("Timestamp", "Now")
	require.NoError(t, err)
	assert.Equal(t, want, plain)
}

func TestFactoryStorageKeyErrors(t *testing.T) {
	f := newFactory(t)

	_, err := f.StorageKey("System", "Missing")
	assert.ErrorIs(t, err, ErrUnknownStorage)
	_, err = f.StorageKey("Nope", "Account")
	assert.ErrorIs(t, err, ErrUnknownStorage)
	_, err = f.StorageKey("System", "Number", 1)
	assert.ErrorIs(t, err, ErrKeyCount)
	_, err = f.StorageKey("System", "Account", "not an account")
	assert.Error(t, err)
}

func TestFactoryDecodeStorage(t *testing.T) {
	f := newFactory(t)

	v, err := f.DecodeStorage("System", "Number", u32(42))
	require.NoError(t, err)
	assert.Equal(t, uint32(42), v)

	v, err = f.DecodeStorage("System", "Number", nil)
	require.NoError(t, err)
	assert.Equal(t, uint32(0), v)

	v, err = f.DecodeStorage("System", "ExecutionPhase", nil)
	require.NoError(t, err)
	assert.Nil(t, v)

	v, err = f.DecodeStorage("System", "ExecutionPhase", []byte{0, 3, 0, 0, 0})
	require.NoError(t, err)
	assert.Equal(t, map[string]any{"ApplyExtrinsic": uint32(3)}, v)

	v, err = f.DecodeStorage("System", "Account", accountInfo(9))
	require.NoError(t, err)
	info, ok := v.(map[string]any)
	require.True(t, ok)
	assert.Equal(t, uint32(9), info["nonce"])

	_, err = f.DecodeStorage("System", "Number", []byte{1})
	assert.Error(t, err)
}

func TestFactoryConstant(t *testing.T) {
	f := newFactory(t)

	v, err := f.Constant("System", "BlockHashCount")
	require.NoError(t, err)
	assert.Equal(t, uint32(2400), v)

	v, err = f.Constant("Balances", "ExistentialDeposit")
	require.NoError(t, err)
	deposit, ok := v.(*big.Int)
	require.True(t, ok)
	assert.Zero(t, deposit.Cmp(big.NewInt(1000)))

	_, err = f.Constant("Balances", "Missing")
	assert.ErrorIs(t, err, ErrUnknownConstant)
}

func TestVersionJSON(t *testing.T) {
	var v Version
	require.NoError(t, json.Unmarshal([]byte(`{
		"specName": "lux-dex", "implName": "lux-node", "authoringVersion": 1,
		"specVersion": 1020, "implVersion": 0, "transactionVersion": 2,
		"stateVersion": 1, "apis": [["0xdf6acb689907609b", 4]]
	}`), &v))
	assert.Equal(t, "lux-dex/1020", v.String())
	require.Len(t, v.APIs, 1)
	assert.Equal(t, uint32(4), v.APIs[0].Version)
	assert.True(t, v.Same(Version{SpecName: "lux-dex", SpecVersion: 1020, ImplVersion: 3}))
	assert.False(t, v.Same(Version{SpecName: "lux-dex", SpecVersion: 1021}))

	out, err := json.Marshal(v.APIs[0])
	require.NoError(t, err)
	assert.JSONEq(t, `["0xdf6acb689907609b", 4]`, string(out))
}
