// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package rpc

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/gorilla/rpc/v2/json2"
)

const jsonrpcVersion = "2.0"

// request is a JSON-RPC 2.0 request envelope.
type request struct {
	Version string `json:"jsonrpc"`
	ID      uint64 `json:"id"`
	Method  string `json:"method"`
	Params  []any  `json:"params"`
}

func newRequest(id uint64, method string, params []any) *request {
	if params == nil {
		params = []any{}
	}
	return &request{Version: jsonrpcVersion, ID: id, Method: method, Params: params}
}

// message is any inbound frame: a response, or a subscription notification
// when ID is absent and Method is set.
type message struct {
	Version string          `json:"jsonrpc"`
	ID      *uint64         `json:"id,omitempty"`
	Method  string          `json:"method,omitempty"`
	Params  json.RawMessage `json:"params,omitempty"`
	Result  json.RawMessage `json:"result,omitempty"`
	Error   *json2.Error    `json:"error,omitempty"`
}

func (m *message) isResponse() bool { return m.ID != nil }

func (m *message) isNotification() bool { return m.ID == nil && m.Method != "" }

// notification is the params object of a subscription notification.
type notification struct {
	Subscription json.RawMessage `json:"subscription"`
	Result       json.RawMessage `json:"result"`
}

// decodeFrame parses one inbound frame, which may be a batch array.
func decodeFrame(data []byte) ([]*message, error) {
	data = bytes.TrimSpace(data)
	if len(data) == 0 {
		return nil, fmt.Errorf("%w: empty frame", ErrMalformedResponse)
	}
	if data[0] == '[' {
		var batch []*message
		if err := json.Unmarshal(data, &batch); err != nil {
			return nil, fmt.Errorf("%w: %w", ErrMalformedResponse, err)
		}
		return batch, nil
	}
	m := new(message)
	if err := json.Unmarshal(data, m); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrMalformedResponse, err)
	}
	return []*message{m}, nil
}

// decodeResult unmarshals a response into reply. A null result leaves reply
// untouched.
func decodeResult(m *message, reply any) error {
	if m.Error != nil {
		return fromJSON2(m.Error)
	}
	if len(m.Result) == 0 {
		return fmt.Errorf("%w: neither result nor error", ErrMalformedResponse)
	}
	if reply == nil || bytes.Equal(m.Result, []byte("null")) {
		return nil
	}
	if err := json.Unmarshal(m.Result, reply); err != nil {
		return fmt.Errorf("%w: %w", ErrMalformedResponse, err)
	}
	return nil
}

// subscriptionID normalizes a subscription id, which nodes send as either a
// string or a number.
func subscriptionID(raw json.RawMessage) (string, error) {
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s, nil
	}
	var n json.Number
	if err := json.Unmarshal(raw, &n); err != nil {
		return "", fmt.Errorf("%w: subscription id %s", ErrMalformedResponse, raw)
	}
	return n.String(), nil
}
