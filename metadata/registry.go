// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package metadata

import (
	"fmt"
	"math"
	"math/big"
	"reflect"

	"github.com/luxfi/substrate-rpc/scale"
)

// maxDepth bounds recursion through self-referential types.
const maxDepth = 128

// Registry resolves type ids and converts between encoded bytes and plain
// Go values:
//
//	composite     map[string]any (named fields), []any (unnamed), or the
//	              inner value when there is a single unnamed field
//	variant       string for unit variants, else map[string]any{name: payload}
//	sequence      []byte for u8 elements, else []any
//	array         []byte for u8 elements, else []any
//	tuple         []any
//	primitive     bool, string, uint8..uint64, int8..int64, *big.Int above 64 bits
//	compact       uint64, or *big.Int when it does not fit
//	bitsequence   []byte (u8 store)
type Registry struct {
	types map[TypeID]*Type
	sizes map[TypeID]int
}

func NewRegistry(types []PortableType) (*Registry, error) {
	r := &Registry{types: make(map[TypeID]*Type, len(types))}
	for i := range types {
		id := types[i].ID
		if _, dup := r.types[id]; dup {
			return nil, fmt.Errorf("metadata: duplicate type id %d", id)
		}
		r.types[id] = &types[i].Type
	}
	r.sizes = make(map[TypeID]int, len(types))
	visiting := make(map[TypeID]bool)
	for id := range r.types {
		r.sizeOf(id, visiting)
	}
	return r, nil
}

func (r *Registry) Len() int { return len(r.types) }

func (r *Registry) Lookup(id TypeID) (*Type, error) {
	t, ok := r.types[id]
	if !ok {
		return nil, fmt.Errorf("%w: %d", ErrUnknownType, id)
	}
	return t, nil
}

// Decode decodes data as type id. All of data must be consumed.
func (r *Registry) Decode(id TypeID, data []byte) (any, error) {
	d := scale.NewDecoder(data)
	v, err := r.DecodeFrom(d, id)
	if err != nil {
		return nil, err
	}
	if d.Remaining() != 0 {
		return nil, fmt.Errorf("%w: %d trailing bytes after type %d", scale.ErrTypeMismatch, d.Remaining(), id)
	}
	return v, nil
}

func (r *Registry) DecodeFrom(d *scale.Decoder, id TypeID) (any, error) {
	return r.decode(d, id, 0)
}

func (r *Registry) decode(d *scale.Decoder, id TypeID, depth int) (any, error) {
	if depth > maxDepth {
		return nil, fmt.Errorf("%w: type %d nested deeper than %d", scale.ErrTypeMismatch, id, maxDepth)
	}
	t, err := r.Lookup(id)
	if err != nil {
		return nil, err
	}
	def := t.Def
	switch def.Kind {
	case KindComposite:
		return r.decodeFields(d, def.Fields, depth)
	case KindVariant:
		tag, err := d.ReadU8()
		if err != nil {
			return nil, err
		}
		for _, v := range def.Variants {
			if v.Index != tag {
				continue
			}
			if len(v.Fields) == 0 {
				return v.Name, nil
			}
			payload, err := r.decodeFields(d, v.Fields, depth)
			if err != nil {
				return nil, fmt.Errorf("%s: %w", v.Name, err)
			}
			return map[string]any{v.Name: payload}, nil
		}
		return nil, fmt.Errorf("%w: variant %d of type %d", scale.ErrInvalidTag, tag, id)
	case KindSequence:
		if r.isByte(def.Elem) {
			b, err := d.ReadBytes()
			return append([]byte{}, b...), err
		}
		n, err := d.ReadLenOf(r.minSize(def.Elem))
		if err != nil {
			return nil, err
		}
		return r.decodeList(d, n, def.Elem, depth)
	case KindArray:
		if r.isByte(def.Elem) {
			b, err := d.ReadFixed(int(def.Len))
			return append([]byte{}, b...), err
		}
		n, err := d.CheckLen(uint64(def.Len), r.minSize(def.Elem))
		if err != nil {
			return nil, err
		}
		return r.decodeList(d, n, def.Elem, depth)
	case KindTuple:
		out := make([]any, len(def.Tuple))
		for i, elem := range def.Tuple {
			if out[i], err = r.decode(d, elem, depth+1); err != nil {
				return nil, err
			}
		}
		return out, nil
	case KindPrimitive:
		return decodePrimitive(d, def.Primitive)
	case KindCompact:
		v, err := d.ReadCompactBig()
		if err != nil {
			return nil, err
		}
		if v.IsUint64() {
			return v.Uint64(), nil
		}
		return v, nil
	case KindBitSequence:
		bits, err := d.ReadCompact()
		if err != nil {
			return nil, err
		}
		b, err := d.ReadFixed(int((bits + 7) / 8))
		return append([]byte{}, b...), err
	}
	return nil, fmt.Errorf("%w: type def kind %d", scale.ErrInvalidTag, def.Kind)
}

func (r *Registry) decodeList(d *scale.Decoder, n int, elem TypeID, depth int) ([]any, error) {
	out := make([]any, 0, n)
	for i := 0; i < n; i++ {
		v, err := r.decode(d, elem, depth+1)
		if err != nil {
			return nil, err
		}
		out = append(out, v)
	}
	return out, nil
}

func (r *Registry) decodeFields(d *scale.Decoder, fields []Field, depth int) (any, error) {
	if len(fields) == 1 && fields[0].Name == nil {
		return r.decode(d, fields[0].Type, depth+1)
	}
	if namedFields(fields) {
		out := make(map[string]any, len(fields))
		for _, f := range fields {
			v, err := r.decode(d, f.Type, depth+1)
			if err != nil {
				return nil, fmt.Errorf("%s: %w", *f.Name, err)
			}
			out[*f.Name] = v
		}
		return out, nil
	}
	out := make([]any, len(fields))
	for i, f := range fields {
		v, err := r.decode(d, f.Type, depth+1)
		if err != nil {
			return nil, err
		}
		out[i] = v
	}
	return out, nil
}

// sizeOf is the fewest bytes a value of type id can decode from. Unknown
// types and types reached again through a cycle count as one byte.
func (r *Registry) sizeOf(id TypeID, visiting map[TypeID]bool) int {
	if n, ok := r.sizes[id]; ok {
		return n
	}
	t, ok := r.types[id]
	if !ok || visiting[id] {
		return 1
	}
	visiting[id] = true
	defer delete(visiting, id)

	n := 1
	def := t.Def
	switch def.Kind {
	case KindComposite:
		n = 0
		for _, f := range def.Fields {
			n = addSize(n, r.sizeOf(f.Type, visiting))
		}
	case KindArray:
		elem := r.sizeOf(def.Elem, visiting)
		if elem > 0 && uint64(def.Len) > uint64(math.MaxInt/elem) {
			n = math.MaxInt
		} else {
			n = int(def.Len) * elem
		}
	case KindTuple:
		n = 0
		for _, elem := range def.Tuple {
			n = addSize(n, r.sizeOf(elem, visiting))
		}
	case KindPrimitive:
		n = max(def.Primitive.Size(), 1)
	}
	r.sizes[id] = n
	return n
}

func (r *Registry) minSize(id TypeID) int {
	if n, ok := r.sizes[id]; ok {
		return n
	}
	return 1
}

func addSize(a, b int) int {
	if a > math.MaxInt-b {
		return math.MaxInt
	}
	return a + b
}

func decodePrimitive(d *scale.Decoder, p Primitive) (any, error) {
	switch p {
	case Bool:
		return d.ReadBool()
	case Char:
		c, err := d.ReadU32()
		return string(rune(c)), err
	case Str:
		return d.ReadString()
	case U8:
		return d.ReadU8()
	case U16:
		return d.ReadU16()
	case U32:
		return d.ReadU32()
	case U64:
		return d.ReadU64()
	case U128, U256:
		return d.ReadBigUint(p.Size())
	case I8:
		return d.ReadI8()
	case I16:
		return d.ReadI16()
	case I32:
		return d.ReadI32()
	case I64:
		return d.ReadI64()
	case I128, I256:
		return d.ReadBigInt(p.Size())
	}
	return nil, fmt.Errorf("%w: primitive %d", scale.ErrInvalidTag, p)
}

// Encode encodes v as type id using the value shapes Decode produces.
// Integers of any Go kind are accepted wherever the width allows.
func (r *Registry) Encode(id TypeID, v any) ([]byte, error) {
	e := scale.NewEncoder()
	if err := r.EncodeTo(e, id, v); err != nil {
		return nil, err
	}
	return e.Bytes(), nil
}

func (r *Registry) EncodeTo(e *scale.Encoder, id TypeID, v any) error {
	return r.encode(e, id, v, 0)
}

func (r *Registry) encode(e *scale.Encoder, id TypeID, v any, depth int) error {
	if depth > maxDepth {
		return fmt.Errorf("%w: type %d nested deeper than %d", scale.ErrTypeMismatch, id, maxDepth)
	}
	t, err := r.Lookup(id)
	if err != nil {
		return err
	}
	def := t.Def
	switch def.Kind {
	case KindComposite:
		return r.encodeFields(e, def.Fields, v, depth)
	case KindVariant:
		name, payload, err := variantOf(v)
		if err != nil {
			return fmt.Errorf("type %d: %w", id, err)
		}
		for _, vr := range def.Variants {
			if vr.Name != name {
				continue
			}
			if err := e.WriteVariant(vr.Index); err != nil {
				return err
			}
			if len(vr.Fields) == 0 {
				return nil
			}
			return r.encodeFields(e, vr.Fields, payload, depth)
		}
		return fmt.Errorf("%w: no variant %q in type %d", scale.ErrInvalidTag, name, id)
	case KindSequence:
		if b, ok := v.([]byte); ok && r.isByte(def.Elem) {
			return e.WriteBytes(b)
		}
		items, err := listOf(v)
		if err != nil {
			return fmt.Errorf("type %d: %w", id, err)
		}
		if err := e.WriteCompact(uint64(len(items))); err != nil {
			return err
		}
		return r.encodeList(e, def.Elem, items, depth)
	case KindArray:
		if b, ok := bytesOf(v); ok && r.isByte(def.Elem) {
			return e.WriteFixedLen(b, int(def.Len))
		}
		items, err := listOf(v)
		if err != nil {
			return fmt.Errorf("type %d: %w", id, err)
		}
		if len(items) != int(def.Len) {
			return fmt.Errorf("%w: array of %d given %d items", scale.ErrBufferOverrun, def.Len, len(items))
		}
		return r.encodeList(e, def.Elem, items, depth)
	case KindTuple:
		items, err := listOf(v)
		if err != nil {
			return fmt.Errorf("type %d: %w", id, err)
		}
		if len(items) != len(def.Tuple) {
			return fmt.Errorf("%w: tuple of %d given %d items", scale.ErrTypeMismatch, len(def.Tuple), len(items))
		}
		for i, elem := range def.Tuple {
			if err := r.encode(e, elem, items[i], depth+1); err != nil {
				return err
			}
		}
		return nil
	case KindPrimitive:
		return encodePrimitive(e, def.Primitive, v)
	case KindCompact:
		n, err := bigOf(v)
		if err != nil {
			return err
		}
		return e.WriteCompactBig(n)
	case KindBitSequence:
		b, ok := v.([]byte)
		if !ok {
			return fmt.Errorf("%w: bit sequence from %T", scale.ErrTypeMismatch, v)
		}
		if err := e.WriteCompact(uint64(len(b) * 8)); err != nil {
			return err
		}
		return e.WriteFixed(b)
	}
	return fmt.Errorf("%w: type def kind %d", scale.ErrInvalidTag, def.Kind)
}

func (r *Registry) encodeList(e *scale.Encoder, elem TypeID, items []any, depth int) error {
	for _, item := range items {
		if err := r.encode(e, elem, item, depth+1); err != nil {
			return err
		}
	}
	return nil
}

func (r *Registry) encodeFields(e *scale.Encoder, fields []Field, v any, depth int) error {
	switch {
	case len(fields) == 0:
		return nil
	case len(fields) == 1:
		if _, isMap := v.(map[string]any); !isMap || fields[0].Name == nil {
			return r.encode(e, fields[0].Type, v, depth+1)
		}
	}
	if namedFields(fields) {
		m, ok := v.(map[string]any)
		if !ok {
			return fmt.Errorf("%w: named fields from %T", scale.ErrTypeMismatch, v)
		}
		for _, f := range fields {
			fv, ok := m[*f.Name]
			if !ok {
				return fmt.Errorf("%w: missing field %q", scale.ErrTypeMismatch, *f.Name)
			}
			if err := r.encode(e, f.Type, fv, depth+1); err != nil {
				return fmt.Errorf("%s: %w", *f.Name, err)
			}
		}
		return nil
	}
	items, err := listOf(v)
	if err != nil {
		return err
	}
	if len(items) != len(fields) {
		return fmt.Errorf("%w: %d fields given %d values", scale.ErrTypeMismatch, len(fields), len(items))
	}
	for i, f := range fields {
		if err := r.encode(e, f.Type, items[i], depth+1); err != nil {
			return err
		}
	}
	return nil
}

func encodePrimitive(e *scale.Encoder, p Primitive, v any) error {
	switch p {
	case Bool:
		b, ok := v.(bool)
		if !ok {
			return fmt.Errorf("%w: bool from %T", scale.ErrTypeMismatch, v)
		}
		return e.WriteBool(b)
	case Char:
		s, ok := v.(string)
		if !ok || len([]rune(s)) != 1 {
			return fmt.Errorf("%w: char from %v", scale.ErrTypeMismatch, v)
		}
		return e.WriteU32(uint32([]rune(s)[0]))
	case Str:
		s, ok := v.(string)
		if !ok {
			return fmt.Errorf("%w: str from %T", scale.ErrTypeMismatch, v)
		}
		return e.WriteString(s)
	}
	n, err := bigOf(v)
	if err != nil {
		return err
	}
	if p.Signed() {
		return e.WriteBigInt(n, p.Size())
	}
	if p.Size() == 0 {
		return fmt.Errorf("%w: primitive %d", scale.ErrInvalidTag, p)
	}
	return e.WriteBigUint(n, p.Size())
}

func (r *Registry) isByte(id TypeID) bool {
	t, ok := r.types[id]
	return ok && t.Def.Kind == KindPrimitive && t.Def.Primitive == U8
}

func namedFields(fields []Field) bool {
	for _, f := range fields {
		if f.Name == nil {
			return false
		}
	}
	return len(fields) > 0
}

func variantOf(v any) (string, any, error) {
	switch x := v.(type) {
	case string:
		return x, nil, nil
	case map[string]any:
		if len(x) == 1 {
			for name, payload := range x {
				return name, payload, nil
			}
		}
	}
	return "", nil, fmt.Errorf("%w: variant from %T", scale.ErrTypeMismatch, v)
}

func bytesOf(v any) ([]byte, bool) {
	if b, ok := v.([]byte); ok {
		return b, true
	}
	rv := reflect.ValueOf(v)
	if rv.Kind() == reflect.Array && rv.Type().Elem().Kind() == reflect.Uint8 {
		out := make([]byte, rv.Len())
		reflect.Copy(reflect.ValueOf(out), rv)
		return out, true
	}
	return nil, false
}

func listOf(v any) ([]any, error) {
	if items, ok := v.([]any); ok {
		return items, nil
	}
	rv := reflect.ValueOf(v)
	if rv.Kind() != reflect.Slice && rv.Kind() != reflect.Array {
		return nil, fmt.Errorf("%w: list from %T", scale.ErrTypeMismatch, v)
	}
	out := make([]any, rv.Len())
	for i := range out {
		out[i] = rv.Index(i).Interface()
	}
	return out, nil
}

func bigOf(v any) (*big.Int, error) {
	if n, ok := v.(*big.Int); ok && n != nil {
		return n, nil
	}
	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return big.NewInt(rv.Int()), nil
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return new(big.Int).SetUint64(rv.Uint()), nil
	}
	return nil, fmt.Errorf("%w: integer from %T", scale.ErrTypeMismatch, v)
}
