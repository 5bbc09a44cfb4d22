// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

// Package metadata models version 14 runtime metadata: the portable type
// registry, pallet storage layouts and constants that describe how a given
// runtime encodes its state.
package metadata

import (
	"errors"
	"fmt"

	"github.com/luxfi/substrate-rpc/scale"
	"github.com/luxfi/substrate-rpc/storagekey"
)

// Magic prefixes every metadata blob ("meta" in little-endian).
const Magic uint32 = 0x6174656d

// Version is the metadata version this package understands.
const Version uint8 = 14

var (
	ErrInvalidMagic       = errors.New("metadata: invalid magic")
	ErrUnsupportedVersion = errors.New("metadata: unsupported version")
	ErrUnknownType        = errors.New("metadata: unknown type id")
)

type TypeID uint32

type Metadata struct {
	Types     []PortableType
	Pallets   []Pallet
	Extrinsic Extrinsic
	Runtime   TypeID `scale:"compact"`
}

type PortableType struct {
	ID   TypeID `scale:"compact"`
	Type Type
}

type Type struct {
	Path   []string
	Params []TypeParam
	Def    TypeDef
	Docs   []string
}

type TypeParam struct {
	Name string
	Type *TypeID `scale:"compact"`
}

type Field struct {
	Name     *string
	Type     TypeID `scale:"compact"`
	TypeName *string
	Docs     []string
}

type Variant struct {
	Name   string
	Fields []Field
	Index  uint8
	Docs   []string
}

type Pallet struct {
	Name      string
	Storage   *PalletStorage
	Calls     *TypeID `scale:"compact"`
	Event     *TypeID `scale:"compact"`
	Constants []Constant
	Error     *TypeID `scale:"compact"`
	Index     uint8
}

type PalletStorage struct {
	Prefix  string
	Entries []StorageEntry
}

// Modifier tells whether a missing storage value reads as absent or as the
// entry's default.
type Modifier uint8

const (
	Optional Modifier = iota
	Default
)

func (m Modifier) String() string {
	switch m {
	case Optional:
		return "optional"
	case Default:
		return "default"
	default:
		return fmt.Sprintf("Modifier(%d)", uint8(m))
	}
}

func (m Modifier) MarshalSCALE(e *scale.Encoder) error {
	if m > Default {
		return fmt.Errorf("%w: storage modifier %d", scale.ErrInvalidTag, m)
	}
	return e.WriteVariant(uint8(m))
}

func (m *Modifier) UnmarshalSCALE(d *scale.Decoder) error {
	v, err := d.ReadVariant(2)
	*m = Modifier(v)
	return err
}

type StorageEntry struct {
	Name     string
	Modifier Modifier
	Type     StorageEntryType
	Default  []byte
	Docs     []string
}

// StorageEntryType is Plain when Hashers is empty, otherwise a map keyed by
// one value per hasher. For more than one hasher Key is a tuple type.
type StorageEntryType struct {
	Hashers []storagekey.Hasher
	Key     TypeID
	Value   TypeID
}

func (t StorageEntryType) Plain() bool { return len(t.Hashers) == 0 }

func (t StorageEntryType) MarshalSCALE(e *scale.Encoder) error {
	if t.Plain() {
		if err := e.WriteVariant(0); err != nil {
			return err
		}
		return e.WriteCompact(uint64(t.Value))
	}
	if err := e.WriteVariant(1); err != nil {
		return err
	}
	if err := e.Encode(t.Hashers); err != nil {
		return err
	}
	if err := e.WriteCompact(uint64(t.Key)); err != nil {
		return err
	}
	return e.WriteCompact(uint64(t.Value))
}

func (t *StorageEntryType) UnmarshalSCALE(d *scale.Decoder) error {
	tag, err := d.ReadVariant(2)
	if err != nil {
		return err
	}
	*t = StorageEntryType{}
	if tag == 1 {
		if err := d.Decode(&t.Hashers); err != nil {
			return err
		}
		if len(t.Hashers) == 0 {
			return fmt.Errorf("%w: map storage entry without hashers", scale.ErrTypeMismatch)
		}
		if t.Key, err = readID(d); err != nil {
			return err
		}
	}
	t.Value, err = readID(d)
	return err
}

type Constant struct {
	Name  string
	Type  TypeID `scale:"compact"`
	Value []byte
	Docs  []string
}

type Extrinsic struct {
	Type             TypeID `scale:"compact"`
	Version          uint8
	SignedExtensions []SignedExtension
}

type SignedExtension struct {
	Identifier       string
	Type             TypeID `scale:"compact"`
	AdditionalSigned TypeID `scale:"compact"`
}

// Decode parses a metadata blob as returned by state_getMetadata.
func Decode(raw []byte) (*Metadata, error) {
	d := scale.NewDecoder(raw)
	magic, err := d.ReadU32()
	if err != nil {
		return nil, err
	}
	if magic != Magic {
		return nil, fmt.Errorf("%w: 0x%08x", ErrInvalidMagic, magic)
	}
	version, err := d.ReadU8()
	if err != nil {
		return nil, err
	}
	if version != Version {
		return nil, fmt.Errorf("%w: v%d", ErrUnsupportedVersion, version)
	}
	md := new(Metadata)
	if err := d.Decode(md); err != nil {
		return nil, fmt.Errorf("metadata v%d: %w", version, err)
	}
	if d.Remaining() != 0 {
		return nil, fmt.Errorf("metadata v%d: %w: %d trailing bytes", version, scale.ErrTypeMismatch, d.Remaining())
	}
	return md, nil
}

// Encode is the inverse of Decode.
func Encode(md *Metadata) ([]byte, error) {
	e := scale.NewEncoder()
	if err := e.WriteU32(Magic); err != nil {
		return nil, err
	}
	if err := e.WriteU8(Version); err != nil {
		return nil, err
	}
	if err := e.Encode(md); err != nil {
		return nil, err
	}
	return e.Bytes(), nil
}

// Pallet returns the pallet named name.
func (md *Metadata) Pallet(name string) (*Pallet, bool) {
	for i := range md.Pallets {
		if md.Pallets[i].Name == name {
			return &md.Pallets[i], true
		}
	}
	return nil, false
}

// StorageEntry returns the storage entry named name, if the pallet has storage.
func (p *Pallet) StorageEntry(name string) (*StorageEntry, bool) {
	if p.Storage == nil {
		return nil, false
	}
	for i := range p.Storage.Entries {
		if p.Storage.Entries[i].Name == name {
			return &p.Storage.Entries[i], true
		}
	}
	return nil, false
}

func (p *Pallet) Constant(name string) (*Constant, bool) {
	for i := range p.Constants {
		if p.Constants[i].Name == name {
			return &p.Constants[i], true
		}
	}
	return nil, false
}

func readID(d *scale.Decoder) (TypeID, error) {
	v, err := d.ReadCompact()
	if err != nil {
		return 0, err
	}
	if v > 1<<32-1 {
		return 0, fmt.Errorf("%w: type id %d", scale.ErrTypeMismatch, v)
	}
	return TypeID(v), nil
}
