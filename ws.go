// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package rpc

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"sync"
	"sync/atomic"

	"github.com/gorilla/websocket"
	"github.com/hashicorp/go-hclog"
)

// wsConn is a shared websocket connection. Requests are correlated with
// responses by id, and notifications are routed to subscriptions by
// subscription id.
type wsConn struct {
	conn       *websocket.Conn
	writeMu    sync.Mutex
	pending    sync.Map // request id -> *pendingCall
	subs       sync.Map // subscription id -> *Subscription
	nextID     atomic.Uint64
	closed     atomic.Bool
	readDone   chan struct{}
	log        hclog.Logger
	bufferSize int
}

// pendingCall awaits one response. When sub is set the response carries a
// subscription id and the read loop registers sub before reading on, so no
// early notification is lost.
type pendingCall struct {
	ch  chan *message
	sub *Subscription
}

func dialWS(ctx context.Context, endpoint *url.URL, o *dialOptions) (Client, error) {
	endpoint = rescheme(endpoint, "ws", "wss")
	conn, _, err := websocket.DefaultDialer.DialContext(ctx, endpoint.String(), o.header)
	if err != nil {
		return nil, classify(ctx, fmt.Errorf("ws dial: %w", err))
	}
	c := &wsConn{
		conn:       conn,
		readDone:   make(chan struct{}),
		log:        o.logger,
		bufferSize: o.bufferSize,
	}
	go c.readLoop()
	return c, nil
}

func (c *wsConn) Call(ctx context.Context, method string, params []any, reply any) error {
	m, err := c.roundTrip(ctx, newRequest(c.nextID.Add(1), method, params), nil)
	if err != nil {
		return err
	}
	return decodeResult(m, reply)
}

func (c *wsConn) roundTrip(ctx context.Context, req *request, sub *Subscription) (*message, error) {
	if c.closed.Load() {
		return nil, ErrClosed
	}
	p := &pendingCall{ch: make(chan *message, 1), sub: sub}
	c.pending.Store(req.ID, p)
	defer c.pending.Delete(req.ID)

	c.log.Debug("sending request", "id", req.ID, "method", req.Method)
	if err := c.write(req); err != nil {
		return nil, err
	}

	select {
	case <-ctx.Done():
		return nil, classify(ctx, ctx.Err())
	case m := <-p.ch:
		return m, nil
	case <-c.readDone:
		return nil, ErrConnectionLost
	}
}

func (c *wsConn) BatchCall(ctx context.Context, batch []BatchElem) error {
	if c.closed.Load() {
		return ErrClosed
	}
	if len(batch) == 0 {
		return nil
	}
	reqs := make([]*request, len(batch))
	index := make(map[uint64]int, len(batch))
	ch := make(chan *message, len(batch))
	for i, elem := range batch {
		reqs[i] = newRequest(c.nextID.Add(1), elem.Method, elem.Params)
		index[reqs[i].ID] = i
		c.pending.Store(reqs[i].ID, &pendingCall{ch: ch})
	}
	defer func() {
		for id := range index {
			c.pending.Delete(id)
		}
	}()

	c.log.Debug("sending batch", "size", len(batch))
	if err := c.write(reqs); err != nil {
		return err
	}

	msgs := make([]*message, 0, len(batch))
	for len(msgs) < len(batch) {
		select {
		case <-ctx.Done():
			return classify(ctx, ctx.Err())
		case m := <-ch:
			msgs = append(msgs, m)
		case <-c.readDone:
			return ErrConnectionLost
		}
	}
	return fillBatch(batch, index, msgs)
}

func (c *wsConn) write(v any) error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	if err := c.conn.WriteJSON(v); err != nil {
		return fmt.Errorf("%w: ws write: %w", ErrConnectionLost, err)
	}
	return nil
}

func (c *wsConn) readLoop() {
	defer c.shutdown()

	for {
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			if !c.closed.Load() && !isConnectionError(err) &&
				!websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				c.log.Warn("ws read failed", "error", err)
			}
			return
		}
		msgs, err := decodeFrame(data)
		if err != nil {
			c.log.Warn("dropping frame", "error", err)
			continue
		}
		for _, m := range msgs {
			c.dispatch(m)
		}
	}
}

func (c *wsConn) dispatch(m *message) {
	switch {
	case m.isResponse():
		v, ok := c.pending.Load(*m.ID)
		if !ok {
			c.log.Debug("dropping response without caller", "id", *m.ID)
			return
		}
		p := v.(*pendingCall)
		if p.sub != nil && m.Error == nil {
			id, err := subscriptionID(m.Result)
			if err == nil {
				p.sub.ID = id
				c.subs.Store(id, p.sub)
			}
		}
		select {
		case p.ch <- m:
		default:
			c.log.Warn("dropping duplicate response", "id", *m.ID)
		}
	case m.isNotification():
		var n notification
		if err := json.Unmarshal(m.Params, &n); err != nil {
			c.log.Warn("dropping notification", "method", m.Method, "error", err)
			return
		}
		id, err := subscriptionID(n.Subscription)
		if err != nil {
			c.log.Warn("dropping notification", "method", m.Method, "error", err)
			return
		}
		v, ok := c.subs.Load(id)
		if !ok {
			c.log.Debug("dropping notification for unknown subscription", "subscription", id)
			return
		}
		v.(*Subscription).deliver(n.Result)
	default:
		c.log.Warn("dropping message without id or method")
	}
}

// shutdown releases every waiter once the read loop stops.
func (c *wsConn) shutdown() {
	close(c.readDone)
	err := ErrConnectionLost
	if c.closed.Load() {
		err = ErrClosed
	}
	c.subs.Range(func(key, v any) bool {
		v.(*Subscription).fail(err)
		c.subs.Delete(key)
		return true
	})
}

func (c *wsConn) Subscribe(ctx context.Context, method, unsubscribeMethod string, params []any) (*Subscription, error) {
	sub := newSubscription(c, unsubscribeMethod, c.bufferSize)
	m, err := c.roundTrip(ctx, newRequest(c.nextID.Add(1), method, params), sub)
	if err != nil {
		return nil, err
	}
	if m.Error != nil {
		return nil, fromJSON2(m.Error)
	}
	if sub.ID == "" {
		return nil, fmt.Errorf("%w: %s returned no subscription id", ErrMalformedResponse, method)
	}
	c.log.Debug("subscribed", "method", method, "subscription", sub.ID)
	return sub, nil
}

func (c *wsConn) unsubscribe(ctx context.Context, sub *Subscription) error {
	c.subs.Delete(sub.ID)
	if sub.unsubscribeMethod == "" || c.closed.Load() {
		return nil
	}
	var ok bool
	return c.Call(ctx, sub.unsubscribeMethod, []any{sub.ID}, &ok)
}

// Close closes the connection
func (c *wsConn) Close() error {
	if c.closed.Swap(true) {
		return nil
	}
	c.writeMu.Lock()
	_ = c.conn.WriteMessage(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
	c.writeMu.Unlock()
	err := c.conn.Close()
	<-c.readDone
	return err
}

// Subscription receives the notifications of one server-side subscription.
type Subscription struct {
	ID string

	conn              *wsConn
	unsubscribeMethod string
	log               hclog.Logger

	mu     sync.Mutex
	done   bool
	notify chan json.RawMessage
	err    chan error
}

func newSubscription(c *wsConn, unsubscribeMethod string, size int) *Subscription {
	return &Subscription{
		conn:              c,
		unsubscribeMethod: unsubscribeMethod,
		log:               c.log,
		notify:            make(chan json.RawMessage, size),
		err:               make(chan error, 1),
	}
}

// Notifications yields the result of every notification. It is closed when
// the subscription ends.
func (s *Subscription) Notifications() <-chan json.RawMessage { return s.notify }

// Err yields at most one error, when the subscription ends abnormally.
func (s *Subscription) Err() <-chan error { return s.err }

func (s *Subscription) deliver(result json.RawMessage) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.done {
		return
	}
	select {
	case s.notify <- result:
	default:
		s.log.Warn("subscription buffer full, dropping notification", "subscription", s.ID)
	}
}

func (s *Subscription) fail(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.done {
		return
	}
	s.done = true
	if err != nil {
		s.err <- err
	}
	close(s.notify)
}

// Unsubscribe ends the subscription and tells the node to stop sending.
func (s *Subscription) Unsubscribe(ctx context.Context) error {
	s.fail(nil)
	return s.conn.unsubscribe(ctx, s)
}
