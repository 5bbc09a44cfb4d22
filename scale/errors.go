// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package scale

import "errors"

var (
	// ErrBufferUnderrun is returned when a read needs more bytes than remain.
	ErrBufferUnderrun = errors.New("scale: buffer underrun")
	// ErrBufferOverrun is returned when an encode does not fit the declared size.
	ErrBufferOverrun = errors.New("scale: buffer overrun")
	// ErrInvalidTag is returned for an unknown compact mode, option flag,
	// bool byte or enum variant.
	ErrInvalidTag = errors.New("scale: invalid tag")
	// ErrTypeMismatch is returned when a value cannot be represented by the
	// requested type.
	ErrTypeMismatch = errors.New("scale: type mismatch")
)
