// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package scale

import (
	"encoding/binary"
	"fmt"
	"math/big"
	"math/bits"
)

const (
	modeSingle = 0b00
	modeTwo    = 0b01
	modeFour   = 0b10
	modeBig    = 0b11

	maxSingle = 1<<6 - 1
	maxTwo    = 1<<14 - 1
	maxFour   = 1<<30 - 1

	// 6 bits of (n - 4) in the big-mode header.
	maxBigBytes = 63 + 4
)

// CompactLen returns the number of bytes WriteCompact uses for v.
func CompactLen(v uint64) int {
	switch {
	case v <= maxSingle:
		return 1
	case v <= maxTwo:
		return 2
	case v <= maxFour:
		return 4
	}
	return 1 + bigModeLen(v)
}

func bigModeLen(v uint64) int {
	n := (bits.Len64(v) + 7) / 8
	if n < 4 {
		n = 4
	}
	return n
}

func (e *Encoder) WriteCompact(v uint64) error {
	switch {
	case v <= maxSingle:
		return e.write(byte(v)<<2 | modeSingle)
	case v <= maxTwo:
		return e.WriteU16(uint16(v)<<2 | modeTwo)
	case v <= maxFour:
		return e.WriteU32(uint32(v)<<2 | modeFour)
	}
	n := bigModeLen(v)
	out := make([]byte, 1, 1+8)
	out[0] = byte(n-4)<<2 | modeBig
	out = binary.LittleEndian.AppendUint64(out, v)
	return e.write(out[:1+n]...)
}

// WriteCompactBig writes a non-negative integer of up to 67 bytes in
// compact form.
func (e *Encoder) WriteCompactBig(v *big.Int) error {
	if v == nil || v.Sign() < 0 {
		return fmt.Errorf("%w: compact of %v", ErrTypeMismatch, v)
	}
	if v.IsUint64() {
		return e.WriteCompact(v.Uint64())
	}
	n := (v.BitLen() + 7) / 8
	if n > maxBigBytes {
		return fmt.Errorf("%w: compact of %d bytes exceeds %d", ErrTypeMismatch, n, maxBigBytes)
	}
	le := v.FillBytes(make([]byte, n))
	reverse(le)
	if err := e.write(byte(n-4)<<2 | modeBig); err != nil {
		return err
	}
	return e.write(le...)
}

func (d *Decoder) ReadCompact() (uint64, error) {
	b0, err := d.peek()
	if err != nil {
		return 0, err
	}
	switch b0 & 0b11 {
	case modeSingle:
		d.pos++
		return uint64(b0 >> 2), nil
	case modeTwo:
		v, err := d.ReadU16()
		return uint64(v >> 2), err
	case modeFour:
		v, err := d.ReadU32()
		return uint64(v >> 2), err
	}
	n := int(b0>>2) + 4
	if n > 8 {
		return 0, fmt.Errorf("%w: compact of %d bytes overflows uint64", ErrTypeMismatch, n)
	}
	raw, err := d.read(1 + n)
	if err != nil {
		return 0, err
	}
	var le [8]byte
	copy(le[:], raw[1:])
	return binary.LittleEndian.Uint64(le[:]), nil
}

// ReadCompactBig reads a compact integer of any width.
func (d *Decoder) ReadCompactBig() (*big.Int, error) {
	b0, err := d.peek()
	if err != nil {
		return nil, err
	}
	if b0&0b11 != modeBig {
		v, err := d.ReadCompact()
		if err != nil {
			return nil, err
		}
		return new(big.Int).SetUint64(v), nil
	}
	d.pos++
	return d.ReadBigUint(int(b0>>2) + 4)
}
