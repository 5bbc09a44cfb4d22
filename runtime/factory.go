// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package runtime

import (
	"fmt"

	"github.com/luxfi/substrate-rpc/metadata"
	"github.com/luxfi/substrate-rpc/storagekey"
)

// CoderFactory encodes and decodes chain values for one runtime version.
// It is immutable once built; a refresh builds a new one.
type CoderFactory struct {
	version  Version
	metadata *metadata.Metadata
	registry *metadata.Registry
}

// NewCoderFactory builds a factory over md for runtime version v.
func NewCoderFactory(v Version, md *metadata.Metadata) (*CoderFactory, error) {
	reg, err := metadata.NewRegistry(md.Types)
	if err != nil {
		return nil, err
	}
	return &CoderFactory{version: v, metadata: md, registry: reg}, nil
}

func (f *CoderFactory) Version() Version { return f.version }

func (f *CoderFactory) SpecVersion() uint32 { return f.version.SpecVersion }

// Metadata returns the decoded metadata. Callers must not modify it.
func (f *CoderFactory) Metadata() *metadata.Metadata { return f.metadata }

func (f *CoderFactory) Registry() *metadata.Registry { return f.registry }

// StorageEntry looks up item in module.
func (f *CoderFactory) StorageEntry(module, item string) (*metadata.PalletStorage, *metadata.StorageEntry, error) {
	p, ok := f.metadata.Pallet(module)
	if !ok || p.Storage == nil {
		return nil, nil, fmt.Errorf("%w: %s.%s", ErrUnknownStorage, module, item)
	}
	e, ok := p.StorageEntry(item)
	if !ok {
		return nil, nil, fmt.Errorf("%w: %s.%s", ErrUnknownStorage, module, item)
	}
	return p.Storage, e, nil
}

// keyTypes returns the type of each indexed key of e, in hasher order.
func (f *CoderFactory) keyTypes(e *metadata.StorageEntry) ([]metadata.TypeID, error) {
	switch n := len(e.Type.Hashers); n {
	case 0:
		return nil, nil
	case 1:
		return []metadata.TypeID{e.Type.Key}, nil
	default:
		t, err := f.registry.Lookup(e.Type.Key)
		if err != nil {
			return nil, err
		}
		if t.Def.Kind != metadata.KindTuple || len(t.Def.Tuple) != n {
			return nil, fmt.Errorf("%w: %s has %d hashers but key type %d is not a %d-tuple",
				ErrKeyCount, e.Name, n, e.Type.Key, n)
		}
		return t.Def.Tuple, nil
	}
}

// StorageKey derives the key of item in module. Each arg is encoded with
// the entry's key type and hashed with its hasher. Fewer args than the
// entry has keys give the iteration prefix over the remaining keys.
func (f *CoderFactory) StorageKey(module, item string, args ...any) (storagekey.StorageKey, error) {
	storage, e, err := f.StorageEntry(module, item)
	if err != nil {
		return nil, err
	}
	hashers := e.Type.Hashers
	if len(args) > len(hashers) {
		return nil, fmt.Errorf("%w: %s.%s takes %d, got %d", ErrKeyCount, module, item, len(hashers), len(args))
	}
	types, err := f.keyTypes(e)
	if err != nil {
		return nil, err
	}

	keys := make([]storagekey.Key, len(args))
	for i, arg := range args {
		data, err := f.registry.Encode(types[i], arg)
		if err != nil {
			return nil, fmt.Errorf("key %d of %s.%s: %w", i, module, item, err)
		}
		keys[i] = storagekey.Key{Hasher: hashers[i], Data: data}
	}
	return storagekey.Derive(storage.Prefix, e.Name, keys...)
}

// DecodeStorage decodes a value read from item in module. A nil raw value
// means the key is absent: entries with a default decode their default,
// optional entries yield nil.
func (f *CoderFactory) DecodeStorage(module, item string, raw []byte) (any, error) {
	_, e, err := f.StorageEntry(module, item)
	if err != nil {
		return nil, err
	}
	raw, ok := storageBytes(e, raw)
	if !ok {
		return nil, nil
	}
	return f.registry.Decode(e.Type.Value, raw)
}

// storageBytes applies the entry's modifier to a possibly absent value.
func storageBytes(e *metadata.StorageEntry, raw []byte) ([]byte, bool) {
	if raw != nil {
		return raw, true
	}
	if e.Modifier == metadata.Default {
		return e.Default, true
	}
	return nil, false
}

func (f *CoderFactory) Decode(id metadata.TypeID, raw []byte) (any, error) {
	return f.registry.Decode(id, raw)
}

func (f *CoderFactory) Encode(id metadata.TypeID, v any) ([]byte, error) {
	return f.registry.Encode(id, v)
}

// Constant decodes the value of constant name in module.
func (f *CoderFactory) Constant(module, name string) (any, error) {
	p, ok := f.metadata.Pallet(module)
	if !ok {
		return nil, fmt.Errorf("%w: %s.%s", ErrUnknownConstant, module, name)
	}
	c, ok := p.Constant(name)
	if !ok {
		return nil, fmt.Errorf("%w: %s.%s", ErrUnknownConstant, module, name)
	}
	return f.registry.Decode(c.Type, c.Value)
}
