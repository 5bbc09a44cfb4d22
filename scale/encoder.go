// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package scale

import (
	"encoding/binary"
	"fmt"
	"math/big"
)

// Encoder appends encoded values to a growing buffer. An encoder created
// with NewFixedEncoder refuses writes past its size.
type Encoder struct {
	buf   []byte
	limit int
}

// NewEncoder returns an encoder with an unbounded buffer.
func NewEncoder() *Encoder {
	return &Encoder{limit: -1}
}

// NewFixedEncoder returns an encoder that fails with ErrBufferOverrun once
// more than size bytes are written.
func NewFixedEncoder(size int) *Encoder {
	return &Encoder{buf: make([]byte, 0, size), limit: size}
}

// Bytes returns the encoded bytes. The slice aliases the encoder's buffer.
func (e *Encoder) Bytes() []byte { return e.buf }

// Len returns the number of bytes written so far.
func (e *Encoder) Len() int { return len(e.buf) }

func (e *Encoder) write(p ...byte) error {
	if e.limit >= 0 && len(e.buf)+len(p) > e.limit {
		return fmt.Errorf("%w: writing %d bytes at offset %d exceeds %d", ErrBufferOverrun, len(p), len(e.buf), e.limit)
	}
	e.buf = append(e.buf, p...)
	return nil
}

func (e *Encoder) WriteU8(v uint8) error { return e.write(v) }

func (e *Encoder) WriteU16(v uint16) error {
	return e.write(binary.LittleEndian.AppendUint16(nil, v)...)
}

func (e *Encoder) WriteU32(v uint32) error {
	return e.write(binary.LittleEndian.AppendUint32(nil, v)...)
}

func (e *Encoder) WriteU64(v uint64) error {
	return e.write(binary.LittleEndian.AppendUint64(nil, v)...)
}

func (e *Encoder) WriteI8(v int8) error   { return e.WriteU8(uint8(v)) }
func (e *Encoder) WriteI16(v int16) error { return e.WriteU16(uint16(v)) }
func (e *Encoder) WriteI32(v int32) error { return e.WriteU32(uint32(v)) }
func (e *Encoder) WriteI64(v int64) error { return e.WriteU64(uint64(v)) }

func (e *Encoder) WriteBool(v bool) error {
	if v {
		return e.write(1)
	}
	return e.write(0)
}

// WriteBigUint writes v as an unsigned little-endian integer of size bytes.
func (e *Encoder) WriteBigUint(v *big.Int, size int) error {
	if v == nil || v.Sign() < 0 || v.BitLen() > size*8 {
		return fmt.Errorf("%w: %v does not fit u%d", ErrTypeMismatch, v, size*8)
	}
	out := v.FillBytes(make([]byte, size))
	reverse(out)
	return e.write(out...)
}

// WriteBigInt writes v as a two's complement little-endian integer of size bytes.
func (e *Encoder) WriteBigInt(v *big.Int, size int) error {
	if v == nil {
		return fmt.Errorf("%w: nil i%d", ErrTypeMismatch, size*8)
	}
	bits := uint(size * 8)
	limit := new(big.Int).Lsh(big.NewInt(1), bits-1)
	if v.Cmp(limit) >= 0 || v.Cmp(new(big.Int).Neg(limit)) < 0 {
		return fmt.Errorf("%w: %v does not fit i%d", ErrTypeMismatch, v, bits)
	}
	u := new(big.Int).Set(v)
	if u.Sign() < 0 {
		u.Add(u, new(big.Int).Lsh(big.NewInt(1), bits))
	}
	return e.WriteBigUint(u, size)
}

// WriteFixed writes p verbatim, without a length prefix.
func (e *Encoder) WriteFixed(p []byte) error { return e.write(p...) }

// WriteFixedLen writes p verbatim and fails if it is not exactly n bytes.
func (e *Encoder) WriteFixedLen(p []byte, n int) error {
	if len(p) != n {
		return fmt.Errorf("%w: fixed field of %d bytes given %d", ErrBufferOverrun, n, len(p))
	}
	return e.write(p...)
}

// WriteBytes writes p prefixed with its compact length.
func (e *Encoder) WriteBytes(p []byte) error {
	if err := e.WriteCompact(uint64(len(p))); err != nil {
		return err
	}
	return e.write(p...)
}

func (e *Encoder) WriteString(s string) error { return e.WriteBytes([]byte(s)) }

// WriteOption writes the presence flag of an option. The caller writes the
// value afterwards when present is true.
func (e *Encoder) WriteOption(present bool) error { return e.WriteBool(present) }

// WriteVariant writes an enum variant index.
func (e *Encoder) WriteVariant(index uint8) error { return e.write(index) }

// Encode appends v using the reflection rules of Marshal. A top-level
// pointer is followed, matching Decode; nested pointers are options.
func (e *Encoder) Encode(v any) error {
	rv, err := encodeTarget(v)
	if err != nil {
		return err
	}
	return encodeValue(e, rv, false)
}

func reverse(b []byte) {
	for i, j := 0, len(b)-1; i < j; i, j = i+1, j-1 {
		b[i], b[j] = b[j], b[i]
	}
}
