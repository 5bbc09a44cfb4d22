// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

// Package cache defines the read/write-by-key contract the chain-state
// layer needs from a persistent store, with an in-memory implementation.
package cache

import (
	"context"
	"fmt"

	lru "github.com/hashicorp/golang-lru/v2"
)

// Store is a byte store addressed by string keys. Implementations must be
// safe for concurrent use.
type Store interface {
	// Get returns the value of key. ok is false when key is absent.
	Get(ctx context.Context, key string) (value []byte, ok bool, err error)
	Put(ctx context.Context, key string, value []byte) error
	Delete(ctx context.Context, key string) error
}

// DefaultEntries is the capacity of a Memory store when none is given.
const DefaultEntries = 32

// Memory is a bounded in-memory Store that evicts the least recently used
// entry.
type Memory struct {
	entries *lru.Cache[string, []byte]
}

var _ Store = (*Memory)(nil)

// NewMemory returns a Memory holding at most size entries.
func NewMemory(size int) (*Memory, error) {
	if size <= 0 {
		size = DefaultEntries
	}
	entries, err := lru.New[string, []byte](size)
	if err != nil {
		return nil, fmt.Errorf("cache: %w", err)
	}
	return &Memory{entries: entries}, nil
}

func (m *Memory) Get(_ context.Context, key string) ([]byte, bool, error) {
	v, ok := m.entries.Get(key)
	if !ok {
		return nil, false, nil
	}
	return append([]byte(nil), v...), true, nil
}

func (m *Memory) Put(_ context.Context, key string, value []byte) error {
	m.entries.Add(key, append([]byte(nil), value...))
	return nil
}

func (m *Memory) Delete(_ context.Context, key string) error {
	m.entries.Remove(key)
	return nil
}

// Len returns the number of entries.
func (m *Memory) Len() int { return m.entries.Len() }
