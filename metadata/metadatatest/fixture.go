// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

// Package metadatatest provides a small but realistic runtime metadata
// document for tests of packages that consume metadata.
package metadatatest

import (
	"encoding/binary"

	"github.com/luxfi/substrate-rpc/metadata"
	"github.com/luxfi/substrate-rpc/storagekey"
)

// Type ids of the fixture registry.
const (
	TypeU8 metadata.TypeID = iota
	TypeBytes32
	TypeAccountID
	TypeU32
	TypeU128
	TypeAccountData
	TypeAccountInfo
	TypeU64
	TypeVecU8
	TypePhase
	TypeEraKey
	TypeCompactU128
	TypeStr
	TypeBool
	TypeVecAccountID
)

// SpecName and SpecVersion describe the runtime the fixture belongs to.
const (
	SpecName    = "lux-dex"
	SpecVersion = 1020
)

func name(s string) *string { return &s }

func named(n string, id metadata.TypeID) metadata.Field {
	return metadata.Field{Name: name(n), Type: id}
}

func primitive(id metadata.TypeID, p metadata.Primitive) metadata.PortableType {
	return metadata.PortableType{ID: id, Type: metadata.Type{Def: metadata.TypeDef{Kind: metadata.KindPrimitive, Primitive: p}}}
}

// Metadata returns a fresh copy of the fixture.
func Metadata() *metadata.Metadata {
	u32 := func(v uint32) []byte { return binary.LittleEndian.AppendUint32(nil, v) }
	return &metadata.Metadata{
		Types: []metadata.PortableType{
			primitive(TypeU8, metadata.U8),
			{ID: TypeBytes32, Type: metadata.Type{Def: metadata.TypeDef{Kind: metadata.KindArray, Len: 32, Elem: TypeU8}}},
			{ID: TypeAccountID, Type: metadata.Type{
				Path: []string{"sp_core", "crypto", "AccountId32"},
				Def:  metadata.TypeDef{Kind: metadata.KindComposite, Fields: []metadata.Field{{Type: TypeBytes32, TypeName: name("[u8; 32]")}}},
			}},
			primitive(TypeU32, metadata.U32),
			primitive(TypeU128, metadata.U128),
			{ID: TypeAccountData, Type: metadata.Type{
				Path: []string{"pallet_balances", "types", "AccountData"},
				Def: metadata.TypeDef{Kind: metadata.KindComposite, Fields: []metadata.Field{
					named("free", TypeU128),
					named("reserved", TypeU128),
					named("frozen", TypeU128),
					named("flags", TypeU128),
				}},
			}},
			{ID: TypeAccountInfo, Type: metadata.Type{
				Path: []string{"frame_system", "AccountInfo"},
				Def: metadata.TypeDef{Kind: metadata.KindComposite, Fields: []metadata.Field{
					named("nonce", TypeU32),
					named("consumers", TypeU32),
					named("providers", TypeU32),
					named("sufficients", TypeU32),
					named("data", TypeAccountData),
				}},
			}},
			primitive(TypeU64, metadata.U64),
			{ID: TypeVecU8, Type: metadata.Type{Def: metadata.TypeDef{Kind: metadata.KindSequence, Elem: TypeU8}}},
			{ID: TypePhase, Type: metadata.Type{
				Path: []string{"frame_system", "Phase"},
				Def: metadata.TypeDef{Kind: metadata.KindVariant, Variants: []metadata.Variant{
					{Name: "ApplyExtrinsic", Index: 0, Fields: []metadata.Field{{Type: TypeU32}}},
					{Name: "Finalization", Index: 1},
					{Name: "Initialization", Index: 2},
				}},
			}},
			{ID: TypeEraKey, Type: metadata.Type{Def: metadata.TypeDef{Kind: metadata.KindTuple, Tuple: []metadata.TypeID{TypeU32, TypeAccountID}}}},
			{ID: TypeCompactU128, Type: metadata.Type{Def: metadata.TypeDef{Kind: metadata.KindCompact, Elem: TypeU128}}},
			primitive(TypeStr, metadata.Str),
			primitive(TypeBool, metadata.Bool),
			{ID: TypeVecAccountID, Type: metadata.Type{Def: metadata.TypeDef{Kind: metadata.KindSequence, Elem: TypeAccountID}}},
		},
		Pallets: []metadata.Pallet{
			{
				Name:  "System",
				Index: 0,
				Storage: &metadata.PalletStorage{Prefix: "System", Entries: []metadata.StorageEntry{
					{
						Name:     "Account",
						Modifier: metadata.Default,
						Type:     metadata.StorageEntryType{Hashers: []storagekey.Hasher{storagekey.Blake128Concat}, Key: TypeAccountID, Value: TypeAccountInfo},
						Default:  make([]byte, 4*4+4*16),
						Docs:     []string{" The full account information for a particular account ID."},
					},
					{Name: "Number", Modifier: metadata.Default, Type: metadata.StorageEntryType{Value: TypeU32}, Default: u32(0)},
					{Name: "ExecutionPhase", Modifier: metadata.Optional, Type: metadata.StorageEntryType{Value: TypePhase}},
				}},
				Constants: []metadata.Constant{
					{Name: "BlockHashCount", Type: TypeU32, Value: u32(2400)},
				},
			},
			{
				Name:  "Timestamp",
				Index: 3,
				Storage: &metadata.PalletStorage{Prefix: "Timestamp", Entries: []metadata.StorageEntry{
					{Name: "Now", Modifier: metadata.Default, Type: metadata.StorageEntryType{Value: TypeU64}, Default: make([]byte, 8)},
				}},
			},
			{
				Name:  "Balances",
				Index: 5,
				Storage: &metadata.PalletStorage{Prefix: "Balances", Entries: []metadata.StorageEntry{
					{Name: "TotalIssuance", Modifier: metadata.Default, Type: metadata.StorageEntryType{Value: TypeU128}, Default: make([]byte, 16)},
				}},
				Constants: []metadata.Constant{
					{Name: "ExistentialDeposit", Type: TypeU128, Value: append([]byte{0xe8, 0x03}, make([]byte, 14)...)},
				},
			},
			{
				Name:  "Staking",
				Index: 7,
				Storage: &metadata.PalletStorage{Prefix: "Staking", Entries: []metadata.StorageEntry{
					{
						Name:     "ErasStakers",
						Modifier: metadata.Optional,
						Type: metadata.StorageEntryType{
							Hashers: []storagekey.Hasher{storagekey.Twox64Concat, storagekey.Twox64Concat},
							Key:     TypeEraKey,
							Value:   TypeCompactU128,
						},
					},
					{Name: "Invulnerables", Modifier: metadata.Default, Type: metadata.StorageEntryType{Value: TypeVecAccountID}, Default: []byte{0}},
				}},
			},
		},
		Extrinsic: metadata.Extrinsic{
			Type:    TypeVecU8,
			Version: 4,
			SignedExtensions: []metadata.SignedExtension{
				{Identifier: "CheckNonce", Type: TypeCompactU128, AdditionalSigned: TypeBool},
			},
		},
		Runtime: TypeBool,
	}
}

// Bytes returns the encoded fixture, as state_getMetadata would return it.
func Bytes() []byte {
	raw, err := metadata.Encode(Metadata())
	if err != nil {
		panic(err)
	}
	return raw
}
