// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package operation

import (
	"errors"
	"fmt"
)

var (
	// ErrCancelled is the result of an operation that was itself cancelled.
	ErrCancelled = errors.New("operation: cancelled")
	// ErrParentCancelled is the result of an operation whose dependency was
	// cancelled. Its body never runs.
	ErrParentCancelled = errors.New("operation: parent cancelled")
	// ErrMissingResult is returned when a dependency result is read before
	// the dependency settled. It indicates a wiring bug.
	ErrMissingResult = errors.New("operation: missing result")
	// ErrCycle is returned when a wrapper's dependency graph is not a DAG.
	ErrCycle = errors.New("operation: dependency cycle")
	// ErrQueueClosed is returned when enqueuing on a closed queue.
	ErrQueueClosed = errors.New("operation: queue closed")
)

// ParentFailedError is returned when reading the result of a dependency
// that failed.
type ParentFailedError struct {
	Parent string
	Err    error
}

func (e *ParentFailedError) Error() string {
	return fmt.Sprintf("operation: parent %q failed: %v", e.Parent, e.Err)
}

func (e *ParentFailedError) Unwrap() error { return e.Err }

// IsParentFailed reports whether err carries a failed dependency.
func IsParentFailed(err error) bool {
	var pf *ParentFailedError
	return errors.As(err, &pf)
}

// IsCancellation reports whether err means the operation or one of its
// ancestors was cancelled.
func IsCancellation(err error) bool {
	return errors.Is(err, ErrCancelled) || errors.Is(err, ErrParentCancelled)
}
