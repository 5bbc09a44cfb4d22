// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

// Package scale implements the compact binary codec used for chain values.
//
// Fixed-width integers are little-endian. Unsigned integers in compact form
// carry a 2-bit mode tag in the low bits of the first byte:
//
//	0b00  single byte, value in the upper six bits      (0 ..= 63)
//	0b01  two bytes, value in the upper fourteen bits   (64 ..= 2^14-1)
//	0b10  four bytes, value in the upper thirty bits    (2^14 ..= 2^30-1)
//	0b11  upper six bits hold (n - 4), followed by n little-endian bytes
//
// Byte strings, strings and sequences are prefixed with their compact
// length. Options are a one-byte presence flag followed by the value.
// Enums are a one-byte variant index followed by the variant payload.
//
// Structs are encoded field by field in declaration order by Marshal and
// Unmarshal. Types that need a custom layout (enums, mostly) implement
// Marshaler and Unmarshaler.
package scale
