// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package runtime

import (
	"context"
	"fmt"

	rpc "github.com/luxfi/substrate-rpc"
	"github.com/luxfi/substrate-rpc/operation"
	"github.com/luxfi/substrate-rpc/scale"
	"github.com/luxfi/substrate-rpc/storagekey"
)

// factoryOperation resolves the current coder factory, waiting at most the
// service's fetch timeout.
func (s *Service) factoryOperation() *operation.Operation[*CoderFactory] {
	return operation.New("coder factory", func(ctx context.Context) (*CoderFactory, error) {
		return s.FetchCoderFactory(ctx, s.fetchTimeout)
	})
}

// storageRead is the shared front of the storage queries: factory, key,
// then state_getStorage.
type storageRead struct {
	factory *operation.Operation[*CoderFactory]
	key     *operation.Operation[storagekey.StorageKey]
	fetch   *rpc.CallOperation[rpc.HexBytes]
}

func (s *Service) storageRead(module, item string, args []any) storageRead {
	factory := s.factoryOperation()

	key := operation.New("storage key", func(context.Context) (storagekey.StorageKey, error) {
		f, err := operation.Extract(factory)
		if err != nil {
			return nil, err
		}
		return f.StorageKey(module, item, args...)
	})
	key.AddDependency(factory)

	fetch := rpc.NewCallOperation[rpc.HexBytes](s.client, "state_getStorage")
	fetch.AddDependency(key)
	fetch.Configure(func() error {
		k, err := operation.Extract(key)
		if err != nil {
			return err
		}
		fetch.Params = []any{k.Hex()}
		return nil
	})
	return storageRead{factory: factory, key: key, fetch: fetch}
}

// NewStorageQuery reads item of module under args and decodes it with the
// current coder factory. An absent value decodes as the entry default, or
// nil for optional entries.
func NewStorageQuery(s *Service, module, item string, args ...any) *operation.Wrapper[any] {
	r := s.storageRead(module, item, args)
	decode := operation.New(module+"."+item, func(context.Context) (any, error) {
		f, err := operation.Extract(r.factory)
		if err != nil {
			return nil, err
		}
		raw, err := operation.Extract(r.fetch.Operation)
		if err != nil {
			return nil, err
		}
		return f.DecodeStorage(module, item, raw)
	})
	return operation.NewWrapper(decode, r.factory, r.fetch)
}

// NewTypedStorageQuery is NewStorageQuery decoding into a T with
// scale.Unmarshal. An absent optional value fails with ErrNotFound.
func NewTypedStorageQuery[T any](s *Service, module, item string, args ...any) *operation.Wrapper[T] {
	r := s.storageRead(module, item, args)
	decode := operation.New(module+"."+item, func(context.Context) (T, error) {
		var v T
		f, err := operation.Extract(r.factory)
		if err != nil {
			return v, err
		}
		raw, err := operation.Extract(r.fetch.Operation)
		if err != nil {
			return v, err
		}
		_, e, err := f.StorageEntry(module, item)
		if err != nil {
			return v, err
		}
		b, ok := storageBytes(e, raw)
		if !ok {
			return v, fmt.Errorf("%w: %s.%s", ErrNotFound, module, item)
		}
		if err := scale.Unmarshal(b, &v); err != nil {
			return v, fmt.Errorf("%s.%s: %w", module, item, err)
		}
		return v, nil
	})
	return operation.NewWrapper(decode, r.factory, r.fetch)
}

// NewMultiStorageQuery reads item of module once per key set in one batch.
// Results keep the order of keys.
func NewMultiStorageQuery(s *Service, module, item string, keys ...[]any) *operation.Wrapper[[]any] {
	factory := s.factoryOperation()

	derive := operation.New("storage keys", func(context.Context) ([]storagekey.StorageKey, error) {
		f, err := operation.Extract(factory)
		if err != nil {
			return nil, err
		}
		out := make([]storagekey.StorageKey, len(keys))
		for i, args := range keys {
			if out[i], err = f.StorageKey(module, item, args...); err != nil {
				return nil, err
			}
		}
		return out, nil
	})
	derive.AddDependency(factory)

	fetch := rpc.NewListOperation[rpc.HexBytes](s.client, "state_getStorage")
	fetch.AddDependency(derive)
	fetch.Configure(func() error {
		ks, err := operation.Extract(derive)
		if err != nil {
			return err
		}
		fetch.Params = make([][]any, len(ks))
		for i, k := range ks {
			fetch.Params[i] = []any{k.Hex()}
		}
		return nil
	})

	decode := operation.New(module+"."+item+"[]", func(context.Context) ([]any, error) {
		f, err := operation.Extract(factory)
		if err != nil {
			return nil, err
		}
		raws, err := operation.Extract(fetch.Operation)
		if err != nil {
			return nil, err
		}
		out := make([]any, len(raws))
		for i, raw := range raws {
			if out[i], err = f.DecodeStorage(module, item, raw); err != nil {
				return nil, fmt.Errorf("%s.%s[%d]: %w", module, item, i, err)
			}
		}
		return out, nil
	})
	return operation.NewWrapper(decode, factory, fetch)
}

// NewKeysPagedOperation lists up to count keys of item in module that lie
// under the prefix formed by args, starting after startKey when it is set.
func NewKeysPagedOperation(s *Service, module, item string, count uint32, startKey storagekey.StorageKey, args ...any) *operation.Wrapper[[]storagekey.StorageKey] {
	factory := s.factoryOperation()

	prefix := operation.New("storage prefix", func(context.Context) (storagekey.StorageKey, error) {
		f, err := operation.Extract(factory)
		if err != nil {
			return nil, err
		}
		return f.StorageKey(module, item, args...)
	})
	prefix.AddDependency(factory)

	page := rpc.NewCallOperation[[]rpc.HexBytes](s.client, "state_getKeysPaged")
	page.AddDependency(prefix)
	page.Configure(func() error {
		p, err := operation.Extract(prefix)
		if err != nil {
			return err
		}
		page.Params = []any{p.Hex(), count}
		if startKey != nil {
			page.Params = append(page.Params, startKey.Hex())
		}
		return nil
	})

	keys := operation.New("keys", func(context.Context) ([]storagekey.StorageKey, error) {
		raw, err := operation.Extract(page.Operation)
		if err != nil {
			return nil, err
		}
		out := make([]storagekey.StorageKey, len(raw))
		for i, k := range raw {
			out[i] = storagekey.StorageKey(k)
		}
		return out, nil
	})
	return operation.NewWrapper(keys, page)
}
