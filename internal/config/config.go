// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

// Package config loads chainstate settings from the environment and an
// optional .env file. Variables already set in the environment win over the
// file.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

const (
	EnvEndpoint     = "CHAINSTATE_ENDPOINT"
	EnvTimeout      = "CHAINSTATE_TIMEOUT"
	EnvLogLevel     = "CHAINSTATE_LOG_LEVEL"
	EnvWorkers      = "CHAINSTATE_WORKERS"
	EnvCacheEntries = "CHAINSTATE_CACHE_ENTRIES"
)

const (
	DefaultEndpoint     = "ws://127.0.0.1:9944"
	DefaultTimeout      = 30 * time.Second
	DefaultLogLevel     = "info"
	DefaultCacheEntries = 32
)

type Config struct {
	Endpoint     string
	Timeout      time.Duration
	LogLevel     string
	Workers      int // 0 means one per CPU
	CacheEntries int
}

// Load reads the given .env files, or ./.env when none are given and it
// exists, then the environment.
func Load(files ...string) (*Config, error) {
	fileVars, err := readEnvFiles(files)
	if err != nil {
		return nil, err
	}
	lookup := func(key string) string {
		if v, ok := os.LookupEnv(key); ok {
			return strings.TrimSpace(v)
		}
		return strings.TrimSpace(fileVars[key])
	}

	cfg := &Config{
		Endpoint:     firstNonEmpty(lookup(EnvEndpoint), DefaultEndpoint),
		Timeout:      DefaultTimeout,
		LogLevel:     firstNonEmpty(lookup(EnvLogLevel), DefaultLogLevel),
		CacheEntries: DefaultCacheEntries,
	}
	if raw := lookup(EnvTimeout); raw != "" {
		d, err := time.ParseDuration(raw)
		if err != nil || d <= 0 {
			return nil, fmt.Errorf("config: %s=%q is not a positive duration", EnvTimeout, raw)
		}
		cfg.Timeout = d
	}
	if cfg.Workers, err = intVar(lookup, EnvWorkers, 0); err != nil {
		return nil, err
	}
	if cfg.CacheEntries, err = intVar(lookup, EnvCacheEntries, DefaultCacheEntries); err != nil {
		return nil, err
	}
	return cfg, nil
}

func readEnvFiles(files []string) (map[string]string, error) {
	if len(files) == 0 {
		vars, err := godotenv.Read()
		if errors.Is(err, fs.ErrNotExist) {
			return map[string]string{}, nil
		}
		return vars, err
	}
	vars, err := godotenv.Read(files...)
	if err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}
	return vars, nil
}

func intVar(lookup func(string) string, key string, def int) (int, error) {
	raw := lookup(key)
	if raw == "" {
		return def, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 0 {
		return 0, fmt.Errorf("config: %s=%q is not a non-negative integer", key, raw)
	}
	return n, nil
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
