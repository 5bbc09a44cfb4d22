// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

// Package rpctest runs an in-process JSON-RPC node for tests. It answers
// HTTP POSTs and websocket frames, single or batched, and can push
// subscription notifications.
package rpctest

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/gorilla/rpc/v2/json2"
	"github.com/gorilla/websocket"
)

// Handler answers one method call. Returning a *json2.Error sends it as the
// response's error object; any other error becomes an internal error.
type Handler func(params []json.RawMessage) (any, error)

type request struct {
	ID     json.RawMessage   `json:"id"`
	Method string            `json:"method"`
	Params []json.RawMessage `json:"params"`
}

type response struct {
	Version string          `json:"jsonrpc"`
	ID      json.RawMessage `json:"id"`
	Result  any             `json:"result,omitempty"`
	Error   *json2.Error    `json:"error,omitempty"`
}

// nullResult marshals as an explicit JSON null.
type nullResult struct{}

func (nullResult) MarshalJSON() ([]byte, error) { return []byte("null"), nil }

// Node is a scriptable JSON-RPC node.
type Node struct {
	server   *httptest.Server
	upgrader websocket.Upgrader

	mu       sync.Mutex
	handlers map[string]Handler
	calls    map[string]int
	conns    map[*wsPeer]struct{}
	subs     map[string]*wsPeer
	openers  map[string]bool

	nextSub atomic.Uint64
}

type wsPeer struct {
	conn *websocket.Conn
	mu   sync.Mutex
}

func (p *wsPeer) write(v any) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.conn.WriteJSON(v)
}

// NewNode starts a node. Close it when done.
func NewNode() *Node {
	n := &Node{
		handlers: make(map[string]Handler),
		calls:    make(map[string]int),
		conns:    make(map[*wsPeer]struct{}),
		subs:     make(map[string]*wsPeer),
		openers:  make(map[string]bool),
	}
	n.server = httptest.NewServer(http.HandlerFunc(n.serveHTTP))
	return n
}

// URL returns the HTTP endpoint.
func (n *Node) URL() string { return n.server.URL }

// WSURL returns the websocket endpoint.
func (n *Node) WSURL() string { return "ws" + strings.TrimPrefix(n.server.URL, "http") }

// Handle sets the handler of method.
func (n *Node) Handle(method string, h Handler) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.handlers[method] = h
}

// HandleResult makes method always return v.
func (n *Node) HandleResult(method string, v any) {
	n.Handle(method, func([]json.RawMessage) (any, error) { return v, nil })
}

// HandleSubscription makes method open a subscription and unsubscribe
// close it. The returned ids can be passed to Notify.
func (n *Node) HandleSubscription(method, unsubscribe string) {
	n.mu.Lock()
	n.openers[method] = true
	n.mu.Unlock()
	n.Handle(method, func([]json.RawMessage) (any, error) {
		return strconv.FormatUint(n.nextSub.Add(1), 10), nil
	})
	n.Handle(unsubscribe, func(params []json.RawMessage) (any, error) {
		var id string
		if len(params) > 0 {
			_ = json.Unmarshal(params[0], &id)
		}
		n.mu.Lock()
		defer n.mu.Unlock()
		_, ok := n.subs[id]
		delete(n.subs, id)
		return ok, nil
	})
}

// Calls returns how many times method was called.
func (n *Node) Calls(method string) int {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.calls[method]
}

// Notify pushes result to the subscription with the given id.
func (n *Node) Notify(method, subscription string, result any) bool {
	n.mu.Lock()
	peer, ok := n.subs[subscription]
	n.mu.Unlock()
	if !ok {
		return false
	}
	err := peer.write(map[string]any{
		"jsonrpc": "2.0",
		"method":  method,
		"params":  map[string]any{"subscription": subscription, "result": result},
	})
	return err == nil
}

// Subscriptions returns the ids of the open subscriptions.
func (n *Node) Subscriptions() []string {
	n.mu.Lock()
	defer n.mu.Unlock()
	ids := make([]string, 0, len(n.subs))
	for id := range n.subs {
		ids = append(ids, id)
	}
	return ids
}

// DropConnections closes every websocket connection.
func (n *Node) DropConnections() {
	n.mu.Lock()
	defer n.mu.Unlock()
	for p := range n.conns {
		_ = p.conn.Close()
	}
}

// Close stops the node.
func (n *Node) Close() {
	n.DropConnections()
	n.server.Close()
}

func (n *Node) serveHTTP(w http.ResponseWriter, r *http.Request) {
	if websocket.IsWebSocketUpgrade(r) {
		n.serveWS(w, r)
		return
	}
	body, err := io.ReadAll(r.Body)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	out, _ := n.handleFrame(body, nil)
	w.Header().Set("Content-Type", "application/json")
	_, _ = w.Write(out)
}

func (n *Node) serveWS(w http.ResponseWriter, r *http.Request) {
	conn, err := n.upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}
	peer := &wsPeer{conn: conn}
	n.mu.Lock()
	n.conns[peer] = struct{}{}
	n.mu.Unlock()
	defer func() {
		n.mu.Lock()
		delete(n.conns, peer)
		for id, p := range n.subs {
			if p == peer {
				delete(n.subs, id)
			}
		}
		n.mu.Unlock()
		_ = conn.Close()
	}()

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			return
		}
		go func() {
			out, subs := n.handleFrame(data, peer)
			n.mu.Lock()
			for _, id := range subs {
				n.subs[id] = peer
			}
			n.mu.Unlock()
			peer.mu.Lock()
			defer peer.mu.Unlock()
			_ = conn.WriteMessage(websocket.TextMessage, out)
		}()
	}
}

// handleFrame answers a single request or a batch, returning the ids of any
// subscriptions it opened on a websocket peer.
func (n *Node) handleFrame(data []byte, peer *wsPeer) ([]byte, []string) {
	trimmed := strings.TrimSpace(string(data))
	if strings.HasPrefix(trimmed, "[") {
		var reqs []request
		if err := json.Unmarshal(data, &reqs); err != nil {
			return n.parseError(), nil
		}
		resps := make([]response, len(reqs))
		var subs []string
		for i, req := range reqs {
			var sub string
			resps[i], sub = n.handle(req, peer)
			if sub != "" {
				subs = append(subs, sub)
			}
		}
		out, _ := json.Marshal(resps)
		return out, subs
	}
	var req request
	if err := json.Unmarshal(data, &req); err != nil {
		return n.parseError(), nil
	}
	resp, sub := n.handle(req, peer)
	out, _ := json.Marshal(resp)
	if sub != "" {
		return out, []string{sub}
	}
	return out, nil
}

func (n *Node) parseError() []byte {
	out, _ := json.Marshal(response{
		Version: "2.0",
		ID:      json.RawMessage("null"),
		Error:   &json2.Error{Code: json2.E_PARSE, Message: "parse error"},
	})
	return out
}

func (n *Node) handle(req request, peer *wsPeer) (response, string) {
	n.mu.Lock()
	h, ok := n.handlers[req.Method]
	opens := n.openers[req.Method]
	n.calls[req.Method]++
	n.mu.Unlock()

	resp := response{Version: "2.0", ID: req.ID}
	if !ok {
		resp.Error = &json2.Error{Code: json2.E_NO_METHOD, Message: "Method not found"}
		return resp, ""
	}
	result, err := h(req.Params)
	if err != nil {
		var rpcErr *json2.Error
		if errors.As(err, &rpcErr) {
			resp.Error = rpcErr
		} else {
			resp.Error = &json2.Error{Code: json2.E_INTERNAL, Message: err.Error()}
		}
		return resp, ""
	}
	if result == nil {
		resp.Result = nullResult{}
	} else {
		resp.Result = result
	}

	var sub string
	if peer != nil && opens {
		sub, _ = result.(string)
	}
	return resp, sub
}
