// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

// Package runtime serves the coder factory of the chain's current runtime
// to many concurrent consumers.
//
// The Service moves through Idle, Fetching and Ready. Concurrent callers
// share one in-flight fetch; a caller that gives up waiting does not stop
// it. A refresh builds a new factory and swaps it in atomically, and the
// previous factory is served until then.
//
// A forced refresh that arrives while another fetch is running starts its
// own fetch alongside, without cancelling the running one. Fetches are
// numbered in start order and a result is only installed over an older
// one, so a slow stale fetch cannot replace a newer factory.
package runtime

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/hashicorp/go-hclog"

	rpc "github.com/luxfi/substrate-rpc"
	"github.com/luxfi/substrate-rpc/cache"
	"github.com/luxfi/substrate-rpc/metadata"
	"github.com/luxfi/substrate-rpc/operation"
)

// State is the position of the Service in its fetch cycle.
type State int32

const (
	Idle State = iota
	Fetching
	Ready
)

func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case Fetching:
		return "fetching"
	case Ready:
		return "ready"
	default:
		return fmt.Sprintf("State(%d)", int32(s))
	}
}

const fetchWorkers = 2

// Option configures a Service.
type Option func(*options)

type options struct {
	logger       hclog.Logger
	store        cache.Store
	queue        *operation.Queue
	workers      int
	pollInterval time.Duration
	fetchTimeout time.Duration
}

// WithLogger sets the logger.
func WithLogger(l hclog.Logger) Option {
	return func(o *options) { o.logger = l }
}

// WithCache persists raw metadata in store, keyed by runtime version.
func WithCache(store cache.Store) Option {
	return func(o *options) { o.store = store }
}

// WithQueue runs queries on q. The Service does not close it.
func WithQueue(q *operation.Queue) Option {
	return func(o *options) { o.queue = q }
}

// WithWorkers sizes the queue the Service creates when WithQueue is not
// given.
func WithWorkers(n int) Option {
	return func(o *options) { o.workers = n }
}

// WithPollInterval sets how often Watch polls the runtime version when the
// client cannot subscribe.
func WithPollInterval(d time.Duration) Option {
	return func(o *options) { o.pollInterval = d }
}

// WithFetchTimeout bounds how long queries wait for the coder factory.
func WithFetchTimeout(d time.Duration) Option {
	return func(o *options) { o.fetchTimeout = d }
}

// installed is a factory together with the number of the fetch that built
// it.
type installed struct {
	factory *CoderFactory
	seq     uint64
}

// fetch is one run of the fetch pipeline.
type fetch struct {
	seq     uint64
	expect  uint32 // spec version that triggered the fetch, 0 if none
	wrapper *operation.Wrapper[*CoderFactory]
	done    chan struct{}
	factory *CoderFactory
	err     error
}

// Service fetches, caches and serves the coder factory.
type Service struct {
	client       rpc.Client
	store        cache.Store
	queue        *operation.Queue // queries
	ownsQueue    bool
	fetches      *operation.Queue // fetch pipelines, apart from queries blocked on them
	log          hclog.Logger
	pollInterval time.Duration
	fetchTimeout time.Duration

	current atomic.Pointer[installed]

	mu       sync.Mutex
	state    State
	inflight *fetch // most recently started unfinished fetch
	running  map[uint64]*fetch
	seq      uint64
	closed   bool
}

// NewService returns an Idle service reading from client.
func NewService(client rpc.Client, opts ...Option) *Service {
	o := options{
		logger:       hclog.L().Named("runtime"),
		pollInterval: 6 * time.Second,
		fetchTimeout: 30 * time.Second,
	}
	for _, opt := range opts {
		opt(&o)
	}
	s := &Service{
		client:       client,
		store:        o.store,
		queue:        o.queue,
		log:          o.logger,
		pollInterval: o.pollInterval,
		fetchTimeout: o.fetchTimeout,
		running:      make(map[uint64]*fetch),
	}
	if s.queue == nil {
		s.queue = operation.NewQueue(operation.WithWorkers(o.workers), operation.WithLogger(o.logger.Named("queue")))
		s.ownsQueue = true
	}
	s.fetches = operation.NewQueue(operation.WithWorkers(fetchWorkers), operation.WithLogger(o.logger.Named("fetch")))
	return s
}

// State returns the current state.
func (s *Service) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// CoderFactory returns the installed factory without waiting, or nil.
func (s *Service) CoderFactory() *CoderFactory {
	if cur := s.current.Load(); cur != nil {
		return cur.factory
	}
	return nil
}

// Client returns the client the service reads from.
func (s *Service) Client() rpc.Client { return s.client }

// Queue returns the queue the service schedules on.
func (s *Service) Queue() *operation.Queue { return s.queue }

// FetchCoderFactory returns the installed factory, or waits up to timeout
// for the in-flight fetch, starting one if none is running. A timeout of
// zero or less only returns a result that is already available.
func (s *Service) FetchCoderFactory(ctx context.Context, timeout time.Duration) (*CoderFactory, error) {
	if f := s.CoderFactory(); f != nil {
		return f, nil
	}

	s.mu.Lock()
	if f := s.CoderFactory(); f != nil {
		s.mu.Unlock()
		return f, nil
	}
	if s.closed {
		s.mu.Unlock()
		return nil, ErrCancelled
	}
	fe, started := s.inflight, false
	if fe == nil {
		fe, started = s.startLocked(0), true
	}
	s.mu.Unlock()

	if started {
		s.launch(fe)
	}
	return s.wait(ctx, fe, timeout)
}

// Refresh starts a new fetch and waits up to timeout for its factory.
// Callers of FetchCoderFactory keep getting the installed factory until
// the new one replaces it.
func (s *Service) Refresh(ctx context.Context, timeout time.Duration) (*CoderFactory, error) {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil, ErrCancelled
	}
	fe := s.startLocked(0)
	s.mu.Unlock()

	s.launch(fe)
	return s.wait(ctx, fe, timeout)
}

func (s *Service) wait(ctx context.Context, fe *fetch, timeout time.Duration) (*CoderFactory, error) {
	if timeout <= 0 {
		select {
		case <-fe.done:
			return fe.factory, fe.err
		default:
			return nil, ErrTimeout
		}
	}

	timer := time.NewTimer(timeout)
	defer timer.Stop()
	select {
	case <-fe.done:
		return fe.factory, fe.err
	case <-timer.C:
		return nil, ErrTimeout
	case <-ctx.Done():
		return nil, fmt.Errorf("%w: %w", ErrCancelled, ctx.Err())
	}
}

// startLocked registers a new fetch and moves the service to Fetching.
// s.mu must be held; the caller launches the fetch after releasing it.
func (s *Service) startLocked(expect uint32) *fetch {
	s.seq++
	fe := &fetch{seq: s.seq, expect: expect, done: make(chan struct{})}
	fe.wrapper = s.pipeline()
	s.inflight = fe
	s.running[fe.seq] = fe
	s.state = Fetching
	return fe
}

func (s *Service) launch(fe *fetch) {
	s.log.Debug("fetching coder factory", "seq", fe.seq, "expect", fe.expect)
	operation.Enqueue(s.fetches, fe.wrapper,
		func(f *CoderFactory) { s.finish(fe, f, nil) },
		func(err error) { s.finish(fe, nil, err) },
	)
}

func (s *Service) finish(fe *fetch, f *CoderFactory, err error) {
	if err != nil {
		if operation.IsCancellation(err) || errors.Is(err, context.Canceled) {
			err = fmt.Errorf("%w: %w", ErrCancelled, err)
		} else if !errors.Is(err, ErrMetadataUnavailable) {
			err = fmt.Errorf("%w: %w", ErrMetadataUnavailable, err)
		}
	}

	s.mu.Lock()
	if err == nil {
		if cur := s.current.Load(); cur == nil || cur.seq < fe.seq {
			s.current.Store(&installed{factory: f, seq: fe.seq})
			s.log.Info("installed coder factory", "version", f.Version().String(), "seq", fe.seq)
		} else {
			s.log.Debug("discarding stale coder factory", "seq", fe.seq, "installed", cur.seq)
			f = cur.factory
		}
	} else {
		s.log.Warn("coder factory fetch failed", "seq", fe.seq, "error", err)
	}
	delete(s.running, fe.seq)
	if s.inflight == fe {
		s.inflight = nil
		if s.current.Load() != nil {
			s.state = Ready
		} else {
			s.state = Idle
		}
	}
	fe.factory, fe.err = f, err
	close(fe.done)
	s.mu.Unlock()
}

// versionChanged reacts to an observed runtime version. A fetch is started
// unless the installed factory already matches or a fetch for v is already
// running.
func (s *Service) versionChanged(v Version) {
	if cur := s.current.Load(); cur != nil && cur.factory.Version().Same(v) {
		return
	}
	s.mu.Lock()
	if s.closed || s.inflight != nil && (s.inflight.expect == v.SpecVersion || s.current.Load() == nil) {
		s.mu.Unlock()
		return
	}
	fe := s.startLocked(v.SpecVersion)
	s.mu.Unlock()

	s.log.Info("runtime version changed", "version", v.String())
	s.launch(fe)
}

// Watch follows the chain's runtime version until ctx is done, starting a
// fetch whenever the spec version moves away from the installed factory.
// It subscribes when the client supports subscriptions and polls every
// poll interval otherwise. Watch returns ctx's error, or the error that
// ended the subscription.
func (s *Service) Watch(ctx context.Context) error {
	if sc, ok := s.client.(rpc.SubscriptionClient); ok {
		return s.watchSubscription(ctx, sc)
	}
	return s.watchPoll(ctx)
}

func (s *Service) watchSubscription(ctx context.Context, sc rpc.SubscriptionClient) error {
	sub, err := sc.Subscribe(ctx, "state_subscribeRuntimeVersion", "state_unsubscribeRuntimeVersion", nil)
	if err != nil {
		return err
	}
	s.log.Debug("watching runtime version", "subscription", sub.ID)
	defer func() {
		ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), time.Second)
		defer cancel()
		if err := sub.Unsubscribe(ctx); err != nil {
			s.log.Debug("unsubscribe runtime version", "error", err)
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case raw, ok := <-sub.Notifications():
			if !ok {
				select {
				case err := <-sub.Err():
					return err
				default:
					return rpc.ErrClosed
				}
			}
			var v Version
			if err := json.Unmarshal(raw, &v); err != nil {
				s.log.Warn("undecodable runtime version notification", "error", err)
				continue
			}
			s.versionChanged(v)
		}
	}
}

func (s *Service) watchPoll(ctx context.Context) error {
	ticker := time.NewTicker(s.pollInterval)
	defer ticker.Stop()
	for {
		var v Version
		if err := s.client.Call(ctx, "state_getRuntimeVersion", nil, &v); err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			s.log.Warn("polling runtime version failed", "error", err)
		} else {
			s.versionChanged(v)
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}

// Close cancels running fetches and stops the service's own queue.
func (s *Service) Close() {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.closed = true
	running := make([]*fetch, 0, len(s.running))
	for _, fe := range s.running {
		running = append(running, fe)
	}
	s.mu.Unlock()

	for _, fe := range running {
		fe.wrapper.Cancel()
	}
	s.fetches.Close()
	if s.ownsQueue {
		s.queue.Close()
	}
}

// rawMetadata is metadata bytes and where they came from.
type rawMetadata struct {
	version Version
	at      string
	bytes   []byte
	cached  bool
	decoded *metadata.Metadata
}

// atBlock is the params of a state call pinned to block hash, or none for
// the node's best block.
func atBlock(hash string) []any {
	if hash == "" {
		return nil
	}
	return []any{hash}
}

// pipeline builds the fetch: a block hash, then the runtime version at that
// block, then metadata bytes at the same block from the cache or the node,
// then decode, then the factory. Pinning both state calls to one block keeps
// the version and the metadata from straddling a runtime upgrade.
func (s *Service) pipeline() *operation.Wrapper[*CoderFactory] {
	head := rpc.NewCallOperation[string](s.client, "chain_getBlockHash")

	version := rpc.NewCallOperation[Version](s.client, "state_getRuntimeVersion")
	version.AddDependency(head)
	version.Configure(func() error {
		hash, err := operation.Extract(head.Operation)
		version.Params = atBlock(hash)
		return err
	})

	lookup := operation.New("load metadata", func(ctx context.Context) (rawMetadata, error) {
		hash, err := operation.Extract(head.Operation)
		if err != nil {
			return rawMetadata{}, err
		}
		v, err := operation.Extract(version.Operation)
		if err != nil {
			return rawMetadata{}, err
		}
		raw := rawMetadata{version: v, at: hash}
		if s.store == nil {
			return raw, nil
		}
		b, ok, err := s.store.Get(ctx, v.cacheKey())
		switch {
		case err != nil:
			s.log.Warn("metadata cache read failed", "key", v.cacheKey(), "error", err)
		case ok:
			s.log.Debug("metadata cache hit", "key", v.cacheKey())
			raw.bytes, raw.cached = b, true
		}
		return raw, nil
	})
	lookup.AddDependency(head, version)

	fetch := rpc.NewCallOperation[rpc.HexBytes](s.client, "state_getMetadata")
	fetch.AddDependency(lookup)
	fetch.Configure(func() error {
		raw, err := operation.Extract(lookup)
		fetch.Skip = raw.cached
		fetch.Params = atBlock(raw.at)
		return err
	})

	decode := operation.New("decode metadata", func(ctx context.Context) (rawMetadata, error) {
		raw, err := operation.Extract(lookup)
		if err != nil {
			return rawMetadata{}, err
		}
		if !raw.cached {
			b, err := operation.Extract(fetch.Operation)
			if err != nil {
				return rawMetadata{}, fmt.Errorf("%w: %w", ErrMetadataUnavailable, err)
			}
			if b == nil {
				return rawMetadata{}, fmt.Errorf("%w: node returned no metadata", ErrMetadataUnavailable)
			}
			raw.bytes = b
		}
		md, err := metadata.Decode(raw.bytes)
		if err != nil && raw.cached {
			s.log.Warn("dropping undecodable cached metadata", "key", raw.version.cacheKey(), "error", err)
			if err := s.store.Delete(ctx, raw.version.cacheKey()); err != nil {
				s.log.Warn("metadata cache delete failed", "key", raw.version.cacheKey(), "error", err)
			}
			if raw.bytes, err = s.fetchMetadata(ctx, raw.at); err != nil {
				return rawMetadata{}, err
			}
			raw.cached = false
			md, err = metadata.Decode(raw.bytes)
		}
		if err != nil {
			return rawMetadata{}, fmt.Errorf("%w: %w", ErrMetadataUnavailable, err)
		}
		raw.decoded = md
		return raw, nil
	})
	decode.AddDependency(lookup, fetch)

	build := operation.New("coder factory", func(ctx context.Context) (*CoderFactory, error) {
		raw, err := operation.Extract(decode)
		if err != nil {
			return nil, err
		}
		f, err := NewCoderFactory(raw.version, raw.decoded)
		if err != nil {
			return nil, fmt.Errorf("%w: %w", ErrMetadataUnavailable, err)
		}
		if s.store != nil && !raw.cached {
			if err := s.store.Put(ctx, raw.version.cacheKey(), raw.bytes); err != nil {
				s.log.Warn("metadata cache write failed", "key", raw.version.cacheKey(), "error", err)
			}
		}
		return f, nil
	})
	return operation.NewWrapper(build, decode)
}

// fetchMetadata refetches metadata at block hash after a cached copy
// failed to decode.
func (s *Service) fetchMetadata(ctx context.Context, hash string) ([]byte, error) {
	var raw rpc.HexBytes
	if err := s.client.Call(ctx, "state_getMetadata", atBlock(hash), &raw); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrMetadataUnavailable, err)
	}
	if raw == nil {
		return nil, fmt.Errorf("%w: node returned no metadata", ErrMetadataUnavailable)
	}
	return raw, nil
}
