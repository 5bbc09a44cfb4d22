// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// unsetEnv clears the chainstate variables for the test.
func unsetEnv(t *testing.T) {
	t.Helper()
	for _, key := range []string{EnvEndpoint, EnvTimeout, EnvLogLevel, EnvWorkers, EnvCacheEntries} {
		t.Setenv(key, "")
		require.NoError(t, os.Unsetenv(key))
	}
}

func writeEnv(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), ".env")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestDefaults(t *testing.T) {
	unsetEnv(t)
	t.Chdir(t.TempDir())

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, DefaultEndpoint, cfg.Endpoint)
	assert.Equal(t, DefaultTimeout, cfg.Timeout)
	assert.Equal(t, DefaultLogLevel, cfg.LogLevel)
	assert.Equal(t, 0, cfg.Workers)
	assert.Equal(t, DefaultCacheEntries, cfg.CacheEntries)
}

func TestEnvFile(t *testing.T) {
	unsetEnv(t)
	path := writeEnv(t, "CHAINSTATE_ENDPOINT=https://rpc.lux.network\nCHAINSTATE_TIMEOUT=5s\nCHAINSTATE_WORKERS=3\n")

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "https://rpc.lux.network", cfg.Endpoint)
	assert.Equal(t, 5*time.Second, cfg.Timeout)
	assert.Equal(t, 3, cfg.Workers)
}

func TestEnvironmentWinsOverFile(t *testing.T) {
	unsetEnv(t)
	path := writeEnv(t, "CHAINSTATE_LOG_LEVEL=debug\nCHAINSTATE_CACHE_ENTRIES=8\n")
	t.Setenv(EnvLogLevel, "trace")

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "trace", cfg.LogLevel)
	assert.Equal(t, 8, cfg.CacheEntries)
}

func TestInvalidValues(t *testing.T) {
	tests := []struct {
		key, value string
	}{
		{EnvTimeout, "soon"},
		{EnvTimeout, "-1s"},
		{EnvWorkers, "many"},
		{EnvCacheEntries, "-4"},
	}
	for _, tt := range tests {
		t.Run(tt.key+"="+tt.value, func(t *testing.T) {
			unsetEnv(t)
			t.Setenv(tt.key, tt.value)
			_, err := Load(writeEnv(t, ""))
			assert.ErrorContains(t, err, tt.key)
		})
	}
}

func TestMissingEnvFile(t *testing.T) {
	unsetEnv(t)
	_, err := Load(filepath.Join(t.TempDir(), "missing.env"))
	assert.Error(t, err)
}
