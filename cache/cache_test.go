// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package cache

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemory(t *testing.T) {
	ctx := context.Background()
	m, err := NewMemory(2)
	require.NoError(t, err)

	_, ok, err := m.Get(ctx, "a")
	require.NoError(t, err)
	assert.False(t, ok)

	value := []byte{1, 2, 3}
	require.NoError(t, m.Put(ctx, "a", value))
	value[0] = 9

	got, ok, err := m.Get(ctx, "a")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, []byte{1, 2, 3}, got)
	got[1] = 9

	again, _, _ := m.Get(ctx, "a")
	assert.Equal(t, []byte{1, 2, 3}, again)

	require.NoError(t, m.Delete(ctx, "a"))
	_, ok, _ = m.Get(ctx, "a")
	assert.False(t, ok)
	require.NoError(t, m.Delete(ctx, "a"))
}

func TestMemoryEvictsLeastRecentlyUsed(t *testing.T) {
	ctx := context.Background()
	m, err := NewMemory(2)
	require.NoError(t, err)

	require.NoError(t, m.Put(ctx, "a", []byte("a")))
	require.NoError(t, m.Put(ctx, "b", []byte("b")))
	_, _, _ = m.Get(ctx, "a")
	require.NoError(t, m.Put(ctx, "c", []byte("c")))

	assert.Equal(t, 2, m.Len())
	_, ok, _ := m.Get(ctx, "b")
	assert.False(t, ok)
	_, ok, _ = m.Get(ctx, "a")
	assert.True(t, ok)
}

func TestNewMemoryDefaultSize(t *testing.T) {
	m, err := NewMemory(0)
	require.NoError(t, err)
	for i := range DefaultEntries + 1 {
		require.NoError(t, m.Put(context.Background(), string(rune('a'+i)), nil))
	}
	assert.Equal(t, DefaultEntries, m.Len())
}
