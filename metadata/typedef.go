// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package metadata

import (
	"fmt"

	"github.com/luxfi/substrate-rpc/scale"
)

// DefKind is the variant of a TypeDef.
type DefKind uint8

const (
	KindComposite DefKind = iota
	KindVariant
	KindSequence
	KindArray
	KindTuple
	KindPrimitive
	KindCompact
	KindBitSequence
)

var defKindNames = [...]string{"composite", "variant", "sequence", "array", "tuple", "primitive", "compact", "bitsequence"}

func (k DefKind) String() string {
	if int(k) < len(defKindNames) {
		return defKindNames[k]
	}
	return fmt.Sprintf("DefKind(%d)", uint8(k))
}

type Primitive uint8

const (
	Bool Primitive = iota
	Char
	Str
	U8
	U16
	U32
	U64
	U128
	U256
	I8
	I16
	I32
	I64
	I128
	I256
)

var primitiveNames = [...]string{"bool", "char", "str", "u8", "u16", "u32", "u64", "u128", "u256", "i8", "i16", "i32", "i64", "i128", "i256"}

func (p Primitive) String() string {
	if int(p) < len(primitiveNames) {
		return primitiveNames[p]
	}
	return fmt.Sprintf("Primitive(%d)", uint8(p))
}

// Size is the encoded width of a fixed-size integer primitive, 0 otherwise.
func (p Primitive) Size() int {
	switch p {
	case U8, I8:
		return 1
	case U16, I16:
		return 2
	case U32, I32, Char:
		return 4
	case U64, I64:
		return 8
	case U128, I128:
		return 16
	case U256, I256:
		return 32
	}
	return 0
}

func (p Primitive) Signed() bool { return p >= I8 && p <= I256 }

// TypeDef describes the shape of a type. Only the fields of its Kind are set.
type TypeDef struct {
	Kind      DefKind
	Fields    []Field   // composite
	Variants  []Variant // variant
	Elem      TypeID    // sequence, array, compact
	Len       uint32    // array
	Tuple     []TypeID
	Primitive Primitive
	BitStore  TypeID
	BitOrder  TypeID
}

func (t TypeDef) MarshalSCALE(e *scale.Encoder) error {
	if err := e.WriteVariant(uint8(t.Kind)); err != nil {
		return err
	}
	switch t.Kind {
	case KindComposite:
		return e.Encode(t.Fields)
	case KindVariant:
		return e.Encode(t.Variants)
	case KindSequence, KindCompact:
		return e.WriteCompact(uint64(t.Elem))
	case KindArray:
		if err := e.WriteU32(t.Len); err != nil {
			return err
		}
		return e.WriteCompact(uint64(t.Elem))
	case KindTuple:
		if err := e.WriteCompact(uint64(len(t.Tuple))); err != nil {
			return err
		}
		for _, id := range t.Tuple {
			if err := e.WriteCompact(uint64(id)); err != nil {
				return err
			}
		}
		return nil
	case KindPrimitive:
		if int(t.Primitive) >= len(primitiveNames) {
			return fmt.Errorf("%w: primitive %d", scale.ErrInvalidTag, t.Primitive)
		}
		return e.WriteVariant(uint8(t.Primitive))
	case KindBitSequence:
		if err := e.WriteCompact(uint64(t.BitStore)); err != nil {
			return err
		}
		return e.WriteCompact(uint64(t.BitOrder))
	}
	return fmt.Errorf("%w: type def kind %d", scale.ErrInvalidTag, t.Kind)
}

func (t *TypeDef) UnmarshalSCALE(d *scale.Decoder) error {
	tag, err := d.ReadVariant(len(defKindNames))
	if err != nil {
		return err
	}
	*t = TypeDef{Kind: DefKind(tag)}
	switch t.Kind {
	case KindComposite:
		return d.Decode(&t.Fields)
	case KindVariant:
		return d.Decode(&t.Variants)
	case KindSequence, KindCompact:
		t.Elem, err = readID(d)
		return err
	case KindArray:
		if t.Len, err = d.ReadU32(); err != nil {
			return err
		}
		t.Elem, err = readID(d)
		return err
	case KindTuple:
		n, err := d.ReadLen()
		if err != nil {
			return err
		}
		t.Tuple = make([]TypeID, n)
		for i := range t.Tuple {
			if t.Tuple[i], err = readID(d); err != nil {
				return err
			}
		}
		return nil
	case KindPrimitive:
		p, err := d.ReadVariant(len(primitiveNames))
		t.Primitive = Primitive(p)
		return err
	default:
		if t.BitStore, err = readID(d); err != nil {
			return err
		}
		t.BitOrder, err = readID(d)
		return err
	}
}
