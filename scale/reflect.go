// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package scale

import (
	"fmt"
	"math/big"
	"reflect"
	"strings"
)

// Marshaler is implemented by types that write their own encoding, usually
// enums.
type Marshaler interface {
	MarshalSCALE(e *Encoder) error
}

// Unmarshaler is implemented by types that read their own encoding.
type Unmarshaler interface {
	UnmarshalSCALE(d *Decoder) error
}

var (
	marshalerType   = reflect.TypeFor[Marshaler]()
	unmarshalerType = reflect.TypeFor[Unmarshaler]()
	bigIntType      = reflect.TypeFor[big.Int]()
)

// Marshal encodes v.
//
// Supported kinds: bool, sized signed and unsigned integers, string, slices
// (compact length prefix), arrays (no prefix), structs (exported fields in
// declaration order), pointers (option) and *big.Int (u128). A pointer
// passed to Marshal itself is dereferenced, so Marshal(&v) and
// Unmarshal(data, &v) are inverses. A struct field
// tagged `scale:"compact"` encodes its integers in compact form, including
// through pointers and slices; `scale:"-"` skips the field. Platform-sized
// int and uint, floats, maps, channels and funcs are rejected with
// ErrTypeMismatch.
func Marshal(v any) ([]byte, error) {
	e := NewEncoder()
	if err := e.Encode(v); err != nil {
		return nil, err
	}
	return e.Bytes(), nil
}

// Unmarshal decodes data into the value pointed to by v. All of data must be
// consumed.
func Unmarshal(data []byte, v any) error {
	d := NewDecoder(data)
	if err := d.Decode(v); err != nil {
		return err
	}
	if d.Remaining() != 0 {
		return fmt.Errorf("%w: %d trailing bytes after %T", ErrTypeMismatch, d.Remaining(), v)
	}
	return nil
}

func encodeTarget(v any) (reflect.Value, error) {
	rv := reflect.ValueOf(v)
	if rv.Kind() != reflect.Pointer {
		return rv, nil
	}
	if rv.IsNil() {
		return reflect.Value{}, fmt.Errorf("%w: cannot encode nil %T", ErrTypeMismatch, v)
	}
	return rv.Elem(), nil
}

func pointerTarget(v any) (reflect.Value, error) {
	rv := reflect.ValueOf(v)
	if rv.Kind() != reflect.Pointer || rv.IsNil() {
		return reflect.Value{}, fmt.Errorf("%w: decode target must be a non-nil pointer, got %T", ErrTypeMismatch, v)
	}
	return rv.Elem(), nil
}

func fieldOptions(f reflect.StructField) (skip, compact bool) {
	tag, ok := f.Tag.Lookup("scale")
	if !ok {
		return false, false
	}
	for _, opt := range strings.Split(tag, ",") {
		switch strings.TrimSpace(opt) {
		case "-":
			skip = true
		case "compact":
			compact = true
		}
	}
	return skip, compact
}

func encodeValue(e *Encoder, v reflect.Value, compact bool) error {
	if !v.IsValid() {
		return fmt.Errorf("%w: cannot encode nil", ErrTypeMismatch)
	}
	t := v.Type()
	if t.Kind() != reflect.Pointer && t.Kind() != reflect.Interface {
		if t.Implements(marshalerType) {
			return v.Interface().(Marshaler).MarshalSCALE(e)
		}
		if reflect.PointerTo(t).Implements(marshalerType) {
			p := reflect.New(t)
			p.Elem().Set(v)
			return p.Interface().(Marshaler).MarshalSCALE(e)
		}
	}

	switch t.Kind() {
	case reflect.Bool:
		return e.WriteBool(v.Bool())
	case reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		if compact {
			return e.WriteCompact(v.Uint())
		}
		switch t.Kind() {
		case reflect.Uint8:
			return e.WriteU8(uint8(v.Uint()))
		case reflect.Uint16:
			return e.WriteU16(uint16(v.Uint()))
		case reflect.Uint32:
			return e.WriteU32(uint32(v.Uint()))
		}
		return e.WriteU64(v.Uint())
	case reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		if compact {
			return fmt.Errorf("%w: compact signed integer %s", ErrTypeMismatch, t)
		}
		switch t.Kind() {
		case reflect.Int8:
			return e.WriteI8(int8(v.Int()))
		case reflect.Int16:
			return e.WriteI16(int16(v.Int()))
		case reflect.Int32:
			return e.WriteI32(int32(v.Int()))
		}
		return e.WriteI64(v.Int())
	case reflect.String:
		return e.WriteString(v.String())
	case reflect.Slice:
		if t.Elem().Kind() == reflect.Uint8 && !compact && !t.Elem().Implements(marshalerType) {
			return e.WriteBytes(v.Bytes())
		}
		if err := e.WriteCompact(uint64(v.Len())); err != nil {
			return err
		}
		for i := 0; i < v.Len(); i++ {
			if err := encodeValue(e, v.Index(i), compact); err != nil {
				return err
			}
		}
		return nil
	case reflect.Array:
		for i := 0; i < v.Len(); i++ {
			if err := encodeValue(e, v.Index(i), compact); err != nil {
				return err
			}
		}
		return nil
	case reflect.Struct:
		if t == bigIntType {
			x := v.Interface().(big.Int)
			return encodeBig(e, &x, compact)
		}
		for i := 0; i < t.NumField(); i++ {
			f := t.Field(i)
			if !f.IsExported() {
				continue
			}
			skip, fc := fieldOptions(f)
			if skip {
				continue
			}
			if err := encodeValue(e, v.Field(i), fc); err != nil {
				return fmt.Errorf("%s.%s: %w", t.Name(), f.Name, err)
			}
		}
		return nil
	case reflect.Pointer:
		if t.Elem() == bigIntType {
			if v.IsNil() {
				return fmt.Errorf("%w: nil *big.Int", ErrTypeMismatch)
			}
			return encodeBig(e, v.Interface().(*big.Int), compact)
		}
		if v.IsNil() {
			return e.WriteOption(false)
		}
		if err := e.WriteOption(true); err != nil {
			return err
		}
		return encodeValue(e, v.Elem(), compact)
	case reflect.Interface:
		if v.IsNil() {
			return fmt.Errorf("%w: nil interface", ErrTypeMismatch)
		}
		return encodeValue(e, v.Elem(), compact)
	}
	return fmt.Errorf("%w: unsupported type %s", ErrTypeMismatch, t)
}

func encodeBig(e *Encoder, x *big.Int, compact bool) error {
	if compact {
		return e.WriteCompactBig(x)
	}
	return e.WriteBigUint(x, 16)
}

func decodeValue(d *Decoder, v reflect.Value, compact bool) error {
	t := v.Type()
	if t.Kind() != reflect.Pointer && reflect.PointerTo(t).Implements(unmarshalerType) {
		return v.Addr().Interface().(Unmarshaler).UnmarshalSCALE(d)
	}

	switch t.Kind() {
	case reflect.Bool:
		b, err := d.ReadBool()
		if err != nil {
			return err
		}
		v.SetBool(b)
		return nil
	case reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		var (
			x   uint64
			err error
		)
		switch {
		case compact:
			x, err = d.ReadCompact()
		case t.Kind() == reflect.Uint8:
			var u uint8
			u, err = d.ReadU8()
			x = uint64(u)
		case t.Kind() == reflect.Uint16:
			var u uint16
			u, err = d.ReadU16()
			x = uint64(u)
		case t.Kind() == reflect.Uint32:
			var u uint32
			u, err = d.ReadU32()
			x = uint64(u)
		default:
			x, err = d.ReadU64()
		}
		if err != nil {
			return err
		}
		if v.OverflowUint(x) {
			return fmt.Errorf("%w: %d overflows %s", ErrTypeMismatch, x, t)
		}
		v.SetUint(x)
		return nil
	case reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		if compact {
			return fmt.Errorf("%w: compact signed integer %s", ErrTypeMismatch, t)
		}
		var (
			x   int64
			err error
		)
		switch t.Kind() {
		case reflect.Int8:
			var i int8
			i, err = d.ReadI8()
			x = int64(i)
		case reflect.Int16:
			var i int16
			i, err = d.ReadI16()
			x = int64(i)
		case reflect.Int32:
			var i int32
			i, err = d.ReadI32()
			x = int64(i)
		default:
			x, err = d.ReadI64()
		}
		if err != nil {
			return err
		}
		v.SetInt(x)
		return nil
	case reflect.String:
		s, err := d.ReadString()
		if err != nil {
			return err
		}
		v.SetString(s)
		return nil
	case reflect.Slice:
		if t.Elem().Kind() == reflect.Uint8 && !compact && !reflect.PointerTo(t.Elem()).Implements(unmarshalerType) {
			b, err := d.ReadBytes()
			if err != nil {
				return err
			}
			v.SetBytes(append([]byte{}, b...))
			return nil
		}
		n, err := d.ReadLenOf(minSize(t.Elem(), compact))
		if err != nil {
			return err
		}
		out := reflect.MakeSlice(t, n, n)
		for i := 0; i < n; i++ {
			if err := decodeValue(d, out.Index(i), compact); err != nil {
				return err
			}
		}
		v.Set(out)
		return nil
	case reflect.Array:
		for i := 0; i < v.Len(); i++ {
			if err := decodeValue(d, v.Index(i), compact); err != nil {
				return err
			}
		}
		return nil
	case reflect.Struct:
		if t == bigIntType {
			x, err := decodeBig(d, compact)
			if err != nil {
				return err
			}
			v.Addr().Interface().(*big.Int).Set(x)
			return nil
		}
		for i := 0; i < t.NumField(); i++ {
			f := t.Field(i)
			if !f.IsExported() {
				continue
			}
			skip, fc := fieldOptions(f)
			if skip {
				continue
			}
			if err := decodeValue(d, v.Field(i), fc); err != nil {
				return fmt.Errorf("%s.%s: %w", t.Name(), f.Name, err)
			}
		}
		return nil
	case reflect.Pointer:
		if t.Elem() == bigIntType {
			x, err := decodeBig(d, compact)
			if err != nil {
				return err
			}
			v.Set(reflect.ValueOf(x))
			return nil
		}
		present, err := d.ReadOption()
		if err != nil {
			return err
		}
		if !present {
			v.Set(reflect.Zero(t))
			return nil
		}
		p := reflect.New(t.Elem())
		if err := decodeValue(d, p.Elem(), compact); err != nil {
			return err
		}
		v.Set(p)
		return nil
	}
	return fmt.Errorf("%w: unsupported type %s", ErrTypeMismatch, t)
}

func decodeBig(d *Decoder, compact bool) (*big.Int, error) {
	if compact {
		return d.ReadCompactBig()
	}
	return d.ReadBigUint(16)
}

// minSize is the fewest bytes a value of type t can decode from. Types with
// their own decoder are assumed to read at least one byte.
func minSize(t reflect.Type, compact bool) int {
	if reflect.PointerTo(t).Implements(unmarshalerType) {
		return 1
	}
	switch t.Kind() {
	case reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64,
		reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		if compact {
			return 1
		}
		return int(t.Size())
	case reflect.Array:
		return t.Len() * minSize(t.Elem(), compact)
	case reflect.Struct:
		if t == bigIntType {
			if compact {
				return 1
			}
			return 16
		}
		n := 0
		for i := 0; i < t.NumField(); i++ {
			f := t.Field(i)
			if !f.IsExported() {
				continue
			}
			skip, fc := fieldOptions(f)
			if !skip {
				n += minSize(f.Type, fc)
			}
		}
		return n
	}
	return 1
}
