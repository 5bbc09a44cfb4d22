// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package rpc

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"sync/atomic"
	"time"

	"github.com/gorilla/rpc/v2/json2"
	"github.com/hashicorp/go-hclog"
)

// maxResponseSize bounds a response body. Full runtime metadata is a few
// megabytes.
const maxResponseSize = 64 * 1024 * 1024

func newHTTPClient() *http.Client {
	return &http.Client{Timeout: 30 * time.Second}
}

// CleanlyCloseBody drains and closes an HTTP response body to prevent
// HTTP/2 GOAWAY errors caused by closing bodies with unread data.
// See: https://github.com/golang/go/issues/46071
func CleanlyCloseBody(body io.ReadCloser) error {
	if body == nil {
		return nil
	}
	_, _ = io.Copy(io.Discard, body)
	return body.Close()
}

// httpClient implements Client with one POST per call or batch.
type httpClient struct {
	endpoint string
	client   *http.Client
	header   http.Header
	log      hclog.Logger
	nextID   atomic.Uint64
	closed   atomic.Bool
}

func dialHTTP(_ context.Context, endpoint *url.URL, o *dialOptions) (Client, error) {
	client := o.httpClient
	if client == nil {
		client = newHTTPClient()
	}
	return &httpClient{
		endpoint: rescheme(endpoint, "http", "https").String(),
		client:   client,
		header:   o.header.Clone(),
		log:      o.logger,
	}, nil
}

func (c *httpClient) Call(ctx context.Context, method string, params []any, reply any) error {
	if c.closed.Load() {
		return ErrClosed
	}
	if params == nil {
		params = []any{}
	}
	body, err := json2.EncodeClientRequest(method, params)
	if err != nil {
		return fmt.Errorf("failed to encode client params: %w", err)
	}
	c.log.Debug("sending request", "method", method)

	resp, err := c.post(ctx, body)
	if err != nil {
		return err
	}
	defer CleanlyCloseBody(resp.Body)

	if reply == nil {
		reply = new(json.RawMessage)
	}
	err = json2.DecodeClientResponse(io.LimitReader(resp.Body, maxResponseSize), reply)
	var rpcErr *json2.Error
	switch {
	case err == nil, errors.Is(err, json2.ErrNullResult):
		return nil
	case errors.As(err, &rpcErr):
		return fromJSON2(rpcErr)
	default:
		return fmt.Errorf("%w: %w", ErrMalformedResponse, err)
	}
}

func (c *httpClient) BatchCall(ctx context.Context, batch []BatchElem) error {
	if c.closed.Load() {
		return ErrClosed
	}
	if len(batch) == 0 {
		return nil
	}
	reqs := make([]*request, len(batch))
	index := make(map[uint64]int, len(batch))
	for i, elem := range batch {
		id := c.nextID.Add(1)
		reqs[i] = newRequest(id, elem.Method, elem.Params)
		index[id] = i
	}
	body, err := json.Marshal(reqs)
	if err != nil {
		return fmt.Errorf("failed to encode batch: %w", err)
	}
	c.log.Debug("sending batch", "size", len(batch))

	resp, err := c.post(ctx, body)
	if err != nil {
		return err
	}
	defer CleanlyCloseBody(resp.Body)

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseSize))
	if err != nil {
		return classify(ctx, err)
	}
	msgs, err := decodeFrame(raw)
	if err != nil {
		return err
	}
	return fillBatch(batch, index, msgs)
}

// fillBatch matches responses to batch elements by id.
func fillBatch(batch []BatchElem, index map[uint64]int, msgs []*message) error {
	seen := make([]bool, len(batch))
	for _, m := range msgs {
		if !m.isResponse() {
			continue
		}
		i, ok := index[*m.ID]
		if !ok || seen[i] {
			return fmt.Errorf("%w: unexpected id %d in batch", ErrMalformedResponse, *m.ID)
		}
		seen[i] = true
		batch[i].Error = decodeResult(m, batch[i].Result)
	}
	for i, ok := range seen {
		if !ok {
			batch[i].Error = fmt.Errorf("%w: no response for %s", ErrMalformedResponse, batch[i].Method)
		}
	}
	return nil
}

func (c *httpClient) post(ctx context.Context, body []byte) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header = c.header.Clone()
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, classify(ctx, err)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		CleanlyCloseBody(resp.Body)
		if resp.StatusCode >= 500 {
			return nil, fmt.Errorf("%w: received status code %d", ErrConnectionLost, resp.StatusCode)
		}
		return nil, fmt.Errorf("%w: received status code %d", ErrMalformedResponse, resp.StatusCode)
	}
	return resp, nil
}

func (c *httpClient) Close() error {
	c.closed.Store(true)
	c.client.CloseIdleConnections()
	return nil
}
