// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

// Package storagekey derives the byte keys under which chain storage values
// live.
//
// A key is laid out as
//
//	twox128(module) || twox128(item) || hasher1(key1) || hasher2(key2) ...
//
// Derivation is pure: equal inputs always produce equal keys.
package storagekey

import (
	"bytes"
	"encoding/hex"
	"fmt"
)

// StorageKey is a derived storage key.
type StorageKey []byte

// Hex returns the 0x-prefixed hex form used on the wire.
func (k StorageKey) Hex() string {
	return "0x" + hex.EncodeToString(k)
}

func (k StorageKey) String() string { return k.Hex() }

// HasPrefix reports whether k lies under prefix.
func (k StorageKey) HasPrefix(prefix StorageKey) bool {
	return bytes.HasPrefix(k, prefix)
}

// Key is one indexed key of a map entry and the hasher applied to it.
type Key struct {
	Hasher Hasher
	Data   []byte
}

// Hash16 is the 16-byte name hash used for module and item prefixes.
func Hash16(name string) []byte {
	return twox([]byte(name), 2)
}

// Derive returns the storage key of item in module indexed by keys, in order.
func Derive(module, item string, keys ...Key) (StorageKey, error) {
	if module == "" || item == "" {
		return nil, fmt.Errorf("%w: module=%q item=%q", ErrEmptyName, module, item)
	}
	out := make([]byte, 0, 32+len(keys)*48)
	out = append(out, Hash16(module)...)
	out = append(out, Hash16(item)...)
	for i, k := range keys {
		part, err := k.Hasher.Apply(k.Data)
		if err != nil {
			return nil, fmt.Errorf("key %d of %s.%s: %w", i, module, item, err)
		}
		out = append(out, part...)
	}
	return out, nil
}

// Plain returns the key of a single-value entry. It is also the iteration
// prefix of a map entry.
func Plain(module, item string) (StorageKey, error) {
	return Derive(module, item)
}

func Map(module, item string, h Hasher, key []byte) (StorageKey, error) {
	return Derive(module, item, Key{Hasher: h, Data: key})
}

// DoubleMap applies h1 to key1 and h2 to key2. The order is significant.
func DoubleMap(module, item string, h1 Hasher, key1 []byte, h2 Hasher, key2 []byte) (StorageKey, error) {
	return Derive(module, item, Key{Hasher: h1, Data: key1}, Key{Hasher: h2, Data: key2})
}

// Tail recovers the raw bytes of the last indexed key from a full storage
// key, given the length of everything before that key's hash. Only
// concatenating hashers can be inverted.
func Tail(key StorageKey, offset int, h Hasher) ([]byte, error) {
	if !h.Valid() {
		return nil, fmt.Errorf("%w: %d", ErrUnknownHasher, uint8(h))
	}
	if !h.Concat() {
		return nil, fmt.Errorf("storagekey: %s does not keep the raw key", h)
	}
	if offset < 0 {
		return nil, fmt.Errorf("storagekey: negative offset %d", offset)
	}
	start := offset + h.HashLen()
	if start > len(key) {
		return nil, fmt.Errorf("storagekey: key of %d bytes shorter than %d", len(key), start)
	}
	return key[start:], nil
}
