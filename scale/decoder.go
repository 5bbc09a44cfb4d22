// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package scale

import (
	"encoding/binary"
	"fmt"
	"math/big"
)

// Decoder reads values from a byte slice, tracking its read position.
type Decoder struct {
	buf []byte
	pos int
}

func NewDecoder(b []byte) *Decoder {
	return &Decoder{buf: b}
}

// Offset returns the current read position.
func (d *Decoder) Offset() int { return d.pos }

// Remaining returns the number of unread bytes.
func (d *Decoder) Remaining() int { return len(d.buf) - d.pos }

func (d *Decoder) read(n int) ([]byte, error) {
	if n < 0 || d.Remaining() < n {
		return nil, fmt.Errorf("%w: need %d bytes at offset %d, have %d", ErrBufferUnderrun, n, d.pos, d.Remaining())
	}
	out := d.buf[d.pos : d.pos+n]
	d.pos += n
	return out, nil
}

func (d *Decoder) peek() (byte, error) {
	if d.Remaining() < 1 {
		return 0, fmt.Errorf("%w: need 1 byte at offset %d", ErrBufferUnderrun, d.pos)
	}
	return d.buf[d.pos], nil
}

func (d *Decoder) ReadU8() (uint8, error) {
	b, err := d.read(1)
	if err != nil {
		return 0, err
	}
	return b[0], nil
}

func (d *Decoder) ReadU16() (uint16, error) {
	b, err := d.read(2)
	if err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint16(b), nil
}

func (d *Decoder) ReadU32() (uint32, error) {
	b, err := d.read(4)
	if err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint32(b), nil
}

func (d *Decoder) ReadU64() (uint64, error) {
	b, err := d.read(8)
	if err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint64(b), nil
}

func (d *Decoder) ReadI8() (int8, error) {
	v, err := d.ReadU8()
	return int8(v), err
}

func (d *Decoder) ReadI16() (int16, error) {
	v, err := d.ReadU16()
	return int16(v), err
}

func (d *Decoder) ReadI32() (int32, error) {
	v, err := d.ReadU32()
	return int32(v), err
}

func (d *Decoder) ReadI64() (int64, error) {
	v, err := d.ReadU64()
	return int64(v), err
}

func (d *Decoder) ReadBool() (bool, error) {
	b, err := d.ReadU8()
	if err != nil {
		return false, err
	}
	switch b {
	case 0:
		return false, nil
	case 1:
		return true, nil
	}
	return false, fmt.Errorf("%w: bool byte 0x%02x at offset %d", ErrInvalidTag, b, d.pos-1)
}

// ReadBigUint reads an unsigned little-endian integer of size bytes.
func (d *Decoder) ReadBigUint(size int) (*big.Int, error) {
	b, err := d.read(size)
	if err != nil {
		return nil, err
	}
	be := make([]byte, size)
	copy(be, b)
	reverse(be)
	return new(big.Int).SetBytes(be), nil
}

// ReadBigInt reads a two's complement little-endian integer of size bytes.
func (d *Decoder) ReadBigInt(size int) (*big.Int, error) {
	v, err := d.ReadBigUint(size)
	if err != nil {
		return nil, err
	}
	bits := uint(size * 8)
	if v.Bit(int(bits-1)) == 1 {
		v.Sub(v, new(big.Int).Lsh(big.NewInt(1), bits))
	}
	return v, nil
}

// ReadFixed reads exactly n bytes. The result aliases the input.
func (d *Decoder) ReadFixed(n int) ([]byte, error) { return d.read(n) }

// MaxZeroSizedLen bounds the element count of sequences whose elements
// consume no input.
const MaxZeroSizedLen = 1 << 16

// ReadLen reads a compact length prefix and checks it against the remaining
// input, assuming every element takes at least one byte.
func (d *Decoder) ReadLen() (int, error) { return d.ReadLenOf(1) }

// ReadLenOf reads a compact length prefix for elements of at least elemSize
// bytes each.
func (d *Decoder) ReadLenOf(elemSize int) (int, error) {
	n, err := d.ReadCompact()
	if err != nil {
		return 0, err
	}
	return d.CheckLen(n, elemSize)
}

// CheckLen verifies that n elements of at least elemSize bytes each can be
// read from the remaining input. With elemSize 0 the count is capped at
// MaxZeroSizedLen instead.
func (d *Decoder) CheckLen(n uint64, elemSize int) (int, error) {
	if elemSize <= 0 {
		if n > MaxZeroSizedLen {
			return 0, fmt.Errorf("%w: %d zero-sized elements exceed %d", ErrTypeMismatch, n, MaxZeroSizedLen)
		}
		return int(n), nil
	}
	if n > uint64(d.Remaining()/elemSize) {
		return 0, fmt.Errorf("%w: length prefix %d exceeds %d remaining bytes", ErrBufferUnderrun, n, d.Remaining())
	}
	return int(n), nil
}

// ReadBytes reads a compact-length-prefixed byte string. The result aliases
// the input.
func (d *Decoder) ReadBytes() ([]byte, error) {
	n, err := d.ReadLen()
	if err != nil {
		return nil, err
	}
	return d.read(n)
}

func (d *Decoder) ReadString() (string, error) {
	b, err := d.ReadBytes()
	if err != nil {
		return "", err
	}
	return string(b), nil
}

// ReadOption reads an option presence flag.
func (d *Decoder) ReadOption() (bool, error) {
	b, err := d.ReadU8()
	if err != nil {
		return false, err
	}
	switch b {
	case 0:
		return false, nil
	case 1:
		return true, nil
	}
	return false, fmt.Errorf("%w: option flag 0x%02x at offset %d", ErrInvalidTag, b, d.pos-1)
}

// ReadVariant reads an enum variant index and checks it is below count.
func (d *Decoder) ReadVariant(count int) (uint8, error) {
	b, err := d.ReadU8()
	if err != nil {
		return 0, err
	}
	if int(b) >= count {
		return 0, fmt.Errorf("%w: variant %d of %d at offset %d", ErrInvalidTag, b, count, d.pos-1)
	}
	return b, nil
}

// Decode reads into the value pointed to by v using the rules of Unmarshal.
func (d *Decoder) Decode(v any) error {
	rv, err := pointerTarget(v)
	if err != nil {
		return err
	}
	return decodeValue(d, rv, false)
}
