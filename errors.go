// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package rpc

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"strings"
	"syscall"

	"github.com/gorilla/rpc/v2/json2"
)

// Transport-level failures. Method-level failures are reported as *Error.
var (
	ErrConnectionLost    = errors.New("rpc: connection lost")
	ErrTimeout           = errors.New("rpc: request timeout")
	ErrMalformedResponse = errors.New("rpc: malformed response")
	ErrClosed            = errors.New("rpc: client closed")
	ErrUnknownTransport  = errors.New("rpc: unknown transport")
)

// Error is an error object returned by the node inside a well-formed
// response envelope.
type Error struct {
	Code    int
	Message string
	Data    any
}

func (e *Error) Error() string {
	return fmt.Sprintf("rpc error %d: %s", e.Code, e.Message)
}

func fromJSON2(e *json2.Error) *Error {
	return &Error{Code: int(e.Code), Message: e.Message, Data: e.Data}
}

// IsTransportError reports whether err is a transport-level failure rather
// than an error returned by the node.
func IsTransportError(err error) bool {
	return errors.Is(err, ErrConnectionLost) ||
		errors.Is(err, ErrTimeout) ||
		errors.Is(err, ErrMalformedResponse) ||
		errors.Is(err, ErrClosed)
}

// isConnectionError checks if an error means the peer went away.
func isConnectionError(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) ||
		errors.Is(err, syscall.ECONNRESET) || errors.Is(err, syscall.ECONNREFUSED) ||
		errors.Is(err, syscall.EPIPE) || errors.Is(err, net.ErrClosed) {
		return true
	}
	errStr := err.Error()
	return strings.Contains(errStr, "connection reset") ||
		strings.Contains(errStr, "connection refused") ||
		strings.Contains(errStr, "broken pipe")
}

// classify maps an error from the underlying transport onto the transport
// taxonomy. Caller cancellation is returned unchanged.
func classify(ctx context.Context, err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, ErrConnectionLost) || errors.Is(err, ErrTimeout) ||
		errors.Is(err, ErrMalformedResponse) || errors.Is(err, ErrClosed) {
		return err
	}
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return fmt.Errorf("%w: %w", ErrTimeout, err)
	}
	if errors.Is(err, context.Canceled) {
		return err
	}
	var ne net.Error
	if errors.As(err, &ne) && ne.Timeout() {
		return fmt.Errorf("%w: %w", ErrTimeout, err)
	}
	return fmt.Errorf("%w: %w", ErrConnectionLost, err)
}
