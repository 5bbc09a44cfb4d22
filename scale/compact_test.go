// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package scale

import (
	"math"
	"math/big"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCompactBoundaries(t *testing.T) {
	cases := []struct {
		value uint64
		size  int
	}{
		{0, 1},
		{63, 1},
		{64, 2},
		{16383, 2},
		{16384, 4},
		{1<<30 - 1, 4},
		{1 << 30, 5},
		{1<<32 - 1, 5},
		{1 << 32, 6},
		{math.MaxUint64, 9},
	}
	for _, tc := range cases {
		e := NewEncoder()
		require.NoError(t, e.WriteCompact(tc.value))
		assert.Len(t, e.Bytes(), tc.size, "value %d", tc.value)
		assert.Equal(t, tc.size, CompactLen(tc.value), "value %d", tc.value)

		d := NewDecoder(e.Bytes())
		got, err := d.ReadCompact()
		require.NoError(t, err)
		assert.Equal(t, tc.value, got)
		assert.Zero(t, d.Remaining())
	}
}

func TestCompactWireBytes(t *testing.T) {
	cases := []struct {
		value uint64
		want  []byte
	}{
		{1, []byte{0x04}},
		{63, []byte{0xfc}},
		{64, []byte{0x01, 0x01}},
		{16383, []byte{0xfd, 0xff}},
		{16384, []byte{0x02, 0x00, 0x01, 0x00}},
		{1 << 30, []byte{0x03, 0x00, 0x00, 0x00, 0x40}},
	}
	for _, tc := range cases {
		e := NewEncoder()
		require.NoError(t, e.WriteCompact(tc.value))
		assert.Equal(t, tc.want, e.Bytes(), "value %d", tc.value)
	}
}

func TestCompactBig(t *testing.T) {
	huge := new(big.Int).Lsh(big.NewInt(1), 200)
	e := NewEncoder()
	require.NoError(t, e.WriteCompactBig(huge))
	// 201 bits need 26 bytes, plus the header.
	assert.Len(t, e.Bytes(), 27)

	d := NewDecoder(e.Bytes())
	got, err := d.ReadCompactBig()
	require.NoError(t, err)
	assert.Zero(t, huge.Cmp(got))

	_, err = NewDecoder(e.Bytes()).ReadCompact()
	assert.ErrorIs(t, err, ErrTypeMismatch)

	assert.ErrorIs(t, NewEncoder().WriteCompactBig(big.NewInt(-1)), ErrTypeMismatch)
}

func TestCompactUnderrun(t *testing.T) {
	for _, raw := range [][]byte{
		{},
		{0x01},
		{0x02, 0x00},
		{0x03, 0x00, 0x00},
	} {
		_, err := NewDecoder(raw).ReadCompact()
		assert.ErrorIs(t, err, ErrBufferUnderrun, "input %x", raw)
	}
}
