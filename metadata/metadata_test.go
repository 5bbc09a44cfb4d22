// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package metadata_test

import (
	"math/big"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/luxfi/substrate-rpc/metadata"
	"github.com/luxfi/substrate-rpc/metadata/metadatatest"
	"github.com/luxfi/substrate-rpc/scale"
	"github.com/luxfi/substrate-rpc/storagekey"
)

func TestDecodeRoundTrip(t *testing.T) {
	raw := metadatatest.Bytes()
	assert.Equal(t, []byte("meta"), raw[:4])
	assert.Equal(t, metadata.Version, raw[4])

	md, err := metadata.Decode(raw)
	require.NoError(t, err)

	again, err := metadata.Encode(md)
	require.NoError(t, err)
	assert.Equal(t, raw, again)

	require.Len(t, md.Pallets, 4)
	system, ok := md.Pallet("System")
	require.True(t, ok)
	account, ok := system.StorageEntry("Account")
	require.True(t, ok)
	assert.Equal(t, metadata.Default, account.Modifier)
	assert.Equal(t, []storagekey.Hasher{storagekey.Blake128Concat}, account.Type.Hashers)
	assert.Equal(t, metadatatest.TypeAccountInfo, account.Type.Value)
	assert.Len(t, account.Default, 80)

	number, ok := system.StorageEntry("Number")
	require.True(t, ok)
	assert.True(t, number.Type.Plain())

	_, ok = system.StorageEntry("Missing")
	assert.False(t, ok)
	_, ok = md.Pallet("Missing")
	assert.False(t, ok)
}

func TestDecodeRejects(t *testing.T) {
	raw := metadatatest.Bytes()

	bad := append([]byte{}, raw...)
	bad[0] = 'x'
	_, err := metadata.Decode(bad)
	assert.ErrorIs(t, err, metadata.ErrInvalidMagic)

	bad = append([]byte{}, raw...)
	bad[4] = 15
	_, err = metadata.Decode(bad)
	assert.ErrorIs(t, err, metadata.ErrUnsupportedVersion)

	_, err = metadata.Decode(raw[:len(raw)-3])
	assert.ErrorIs(t, err, scale.ErrBufferUnderrun)

	_, err = metadata.Decode(append(append([]byte{}, raw...), 0))
	assert.ErrorIs(t, err, scale.ErrTypeMismatch)
}

func newRegistry(t *testing.T) *metadata.Registry {
	t.Helper()
	reg, err := metadata.NewRegistry(metadatatest.Metadata().Types)
	require.NoError(t, err)
	return reg
}

func TestRegistryComposite(t *testing.T) {
	reg := newRegistry(t)

	free := new(big.Int).Lsh(big.NewInt(1), 70)
	info := map[string]any{
		"nonce":       uint32(7),
		"consumers":   1,
		"providers":   2,
		"sufficients": 0,
		"data": map[string]any{
			"free":     free,
			"reserved": 0,
			"frozen":   0,
			"flags":    0,
		},
	}
	raw, err := reg.Encode(metadatatest.TypeAccountInfo, info)
	require.NoError(t, err)
	assert.Len(t, raw, 80)

	v, err := reg.Decode(metadatatest.TypeAccountInfo, raw)
	require.NoError(t, err)
	got := v.(map[string]any)
	assert.Equal(t, uint32(7), got["nonce"])
	assert.Equal(t, uint32(2), got["providers"])
	data := got["data"].(map[string]any)
	assert.Zero(t, free.Cmp(data["free"].(*big.Int)))
}

func TestRegistryNewtypeAndTuple(t *testing.T) {
	reg := newRegistry(t)
	account := make([]byte, 32)
	account[0] = 0xaa

	raw, err := reg.Encode(metadatatest.TypeAccountID, account)
	require.NoError(t, err)
	assert.Equal(t, account, raw)

	v, err := reg.Decode(metadatatest.TypeAccountID, raw)
	require.NoError(t, err)
	assert.Equal(t, account, v)

	_, err = reg.Encode(metadatatest.TypeAccountID, account[:31])
	assert.ErrorIs(t, err, scale.ErrBufferOverrun)

	raw, err = reg.Encode(metadatatest.TypeEraKey, []any{uint32(9), account})
	require.NoError(t, err)
	assert.Len(t, raw, 36)

	v, err = reg.Decode(metadatatest.TypeEraKey, raw)
	require.NoError(t, err)
	assert.Equal(t, []any{uint32(9), account}, v)
}

func TestRegistryVariant(t *testing.T) {
	reg := newRegistry(t)

	raw, err := reg.Encode(metadatatest.TypePhase, map[string]any{"ApplyExtrinsic": 3})
	require.NoError(t, err)
	assert.Equal(t, []byte{0, 3, 0, 0, 0}, raw)

	v, err := reg.Decode(metadatatest.TypePhase, raw)
	require.NoError(t, err)
	assert.Equal(t, map[string]any{"ApplyExtrinsic": uint32(3)}, v)

	v, err = reg.Decode(metadatatest.TypePhase, []byte{2})
	require.NoError(t, err)
	assert.Equal(t, "Initialization", v)

	_, err = reg.Decode(metadatatest.TypePhase, []byte{9})
	assert.ErrorIs(t, err, scale.ErrInvalidTag)

	_, err = reg.Encode(metadatatest.TypePhase, "Unknown")
	assert.ErrorIs(t, err, scale.ErrInvalidTag)
}

func TestRegistryCompactAndErrors(t *testing.T) {
	reg := newRegistry(t)

	raw, err := reg.Encode(metadatatest.TypeCompactU128, uint64(64))
	require.NoError(t, err)
	assert.Equal(t, []byte{0x01, 0x01}, raw)

	v, err := reg.Decode(metadatatest.TypeCompactU128, raw)
	require.NoError(t, err)
	assert.Equal(t, uint64(64), v)

	_, err = reg.Decode(metadata.TypeID(999), raw)
	assert.ErrorIs(t, err, metadata.ErrUnknownType)

	_, err = reg.Encode(metadatatest.TypeBool, "yes")
	assert.ErrorIs(t, err, scale.ErrTypeMismatch)

	_, err = reg.Encode(metadatatest.TypeU32, uint64(1)<<40)
	assert.ErrorIs(t, err, scale.ErrTypeMismatch)
}

func TestDuplicateTypeID(t *testing.T) {
	types := metadatatest.Metadata().Types
	types = append(types, types[0])
	_, err := metadata.NewRegistry(types)
	assert.Error(t, err)
}

func TestRegistryZeroSizedElements(t *testing.T) {
	reg, err := metadata.NewRegistry([]metadata.PortableType{
		{ID: 0, Type: metadata.Type{Def: metadata.TypeDef{Kind: metadata.KindTuple}}},
		{ID: 1, Type: metadata.Type{Def: metadata.TypeDef{Kind: metadata.KindSequence, Elem: 0}}},
		{ID: 2, Type: metadata.Type{Def: metadata.TypeDef{Kind: metadata.KindArray, Len: 1 << 31, Elem: 0}}},
		{ID: 3, Type: metadata.Type{Def: metadata.TypeDef{Kind: metadata.KindArray, Len: 2, Elem: 0}}},
	})
	require.NoError(t, err)

	v, err := reg.Decode(1, []byte{0x0c})
	require.NoError(t, err)
	assert.Equal(t, []any{[]any{}, []any{}, []any{}}, v)

	v, err = reg.Decode(3, nil)
	require.NoError(t, err)
	assert.Len(t, v, 2)

	_, err = reg.Decode(2, nil)
	assert.ErrorIs(t, err, scale.ErrTypeMismatch)

	// Two account ids need 64 bytes.
	_, err = newRegistry(t).Decode(metadatatest.TypeVecAccountID, append([]byte{0x08}, make([]byte, 40)...))
	assert.ErrorIs(t, err, scale.ErrBufferUnderrun)
}
