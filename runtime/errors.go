// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package runtime

import "errors"

var (
	// ErrTimeout is returned to a caller whose wait for the coder factory
	// ran out. The fetch itself keeps running.
	ErrTimeout = errors.New("runtime: coder factory fetch timeout")
	// ErrMetadataUnavailable is returned when the runtime version or
	// metadata could not be fetched or decoded.
	ErrMetadataUnavailable = errors.New("runtime: metadata unavailable")
	// ErrCancelled is returned when the fetch or the waiting caller was
	// cancelled.
	ErrCancelled = errors.New("runtime: fetch cancelled")

	ErrUnknownStorage  = errors.New("runtime: unknown storage entry")
	ErrUnknownConstant = errors.New("runtime: unknown constant")
	ErrKeyCount        = errors.New("runtime: wrong number of storage keys")
	ErrNotFound        = errors.New("runtime: storage value not found")
)
