// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package storagekey

import (
	"encoding/binary"
	"errors"
	"fmt"

	"github.com/cespare/xxhash/v2"
	"golang.org/x/crypto/blake2b"

	"github.com/luxfi/substrate-rpc/scale"
)

var (
	ErrUnknownHasher = errors.New("storagekey: unknown hasher")
	ErrEmptyName     = errors.New("storagekey: empty module or item name")
)

// Hasher names the rule applied to one indexed key of a storage entry.
// Values match the hasher indices of runtime metadata.
type Hasher uint8

const (
	Blake128 Hasher = iota
	Blake256
	Blake128Concat
	Twox128
	Twox256
	Twox64Concat
	Identity
)

var hasherNames = [...]string{
	Blake128:       "Blake2_128",
	Blake256:       "Blake2_256",
	Blake128Concat: "Blake2_128Concat",
	Twox128:        "Twox128",
	Twox256:        "Twox256",
	Twox64Concat:   "Twox64Concat",
	Identity:       "Identity",
}

func (h Hasher) String() string {
	if h.Valid() {
		return hasherNames[h]
	}
	return fmt.Sprintf("Hasher(%d)", uint8(h))
}

func (h Hasher) Valid() bool { return int(h) < len(hasherNames) }

// ParseHasher maps a metadata hasher name to its Hasher.
func ParseHasher(name string) (Hasher, error) {
	for i, n := range hasherNames {
		if n == name {
			return Hasher(i), nil
		}
	}
	return 0, fmt.Errorf("%w: %q", ErrUnknownHasher, name)
}

// HashLen is the number of hash bytes h emits before any raw key bytes.
func (h Hasher) HashLen() int {
	switch h {
	case Blake128, Blake128Concat, Twox128:
		return 16
	case Blake256, Twox256:
		return 32
	case Twox64Concat:
		return 8
	}
	return 0
}

// Concat reports whether h appends the raw key after the hash, which makes
// the key recoverable from the storage key.
func (h Hasher) Concat() bool {
	return h == Blake128Concat || h == Twox64Concat || h == Identity
}

// Apply returns h applied to key.
func (h Hasher) Apply(key []byte) ([]byte, error) {
	var sum []byte
	switch h {
	case Blake128, Blake128Concat:
		sum = blake2b128(key)
	case Blake256:
		s := blake2b.Sum256(key)
		sum = s[:]
	case Twox128:
		sum = twox(key, 2)
	case Twox256:
		sum = twox(key, 4)
	case Twox64Concat:
		sum = twox(key, 1)
	case Identity:
	default:
		return nil, fmt.Errorf("%w: %d", ErrUnknownHasher, uint8(h))
	}
	out := make([]byte, 0, len(sum)+len(key))
	out = append(out, sum...)
	if h.Concat() {
		out = append(out, key...)
	}
	return out, nil
}

func (h Hasher) MarshalSCALE(e *scale.Encoder) error {
	if !h.Valid() {
		return fmt.Errorf("%w: %d", ErrUnknownHasher, uint8(h))
	}
	return e.WriteVariant(uint8(h))
}

func (h *Hasher) UnmarshalSCALE(d *scale.Decoder) error {
	v, err := d.ReadVariant(len(hasherNames))
	if err != nil {
		return fmt.Errorf("%w: %w", ErrUnknownHasher, err)
	}
	*h = Hasher(v)
	return nil
}

func blake2b128(data []byte) []byte {
	h, err := blake2b.New(16, nil)
	if err != nil {
		panic(err) // only for invalid sizes
	}
	h.Write(data)
	return h.Sum(nil)
}

// twox concatenates rounds little-endian xxhash64 digests seeded 0..rounds-1.
func twox(data []byte, rounds int) []byte {
	out := make([]byte, 0, rounds*8)
	for seed := 0; seed < rounds; seed++ {
		d := xxhash.NewWithSeed(uint64(seed))
		d.Write(data)
		out = binary.LittleEndian.AppendUint64(out, d.Sum64())
	}
	return out
}
