// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

// Package cli implements the chainstate command.
package cli

import (
	"context"
	"fmt"
	"time"

	"github.com/hashicorp/go-hclog"
	"github.com/spf13/cobra"

	rpc "github.com/luxfi/substrate-rpc"
	"github.com/luxfi/substrate-rpc/cache"
	"github.com/luxfi/substrate-rpc/internal/config"
	"github.com/luxfi/substrate-rpc/runtime"
)

// RootOptions holds global flags for all commands.
type RootOptions struct {
	EnvFile      string
	Endpoint     string
	Timeout      time.Duration
	LogLevel     string
	Workers      int
	CacheEntries int

	cfg *config.Config
	log hclog.Logger
}

// NewRootCommand creates the root command of the chainstate CLI.
func NewRootCommand() *cobra.Command {
	opts := &RootOptions{}

	cmd := &cobra.Command{
		Use:   "chainstate",
		Short: "Read Substrate chain state over JSON-RPC",
		Long: `Read runtime metadata, storage keys and storage values from a
Substrate-style node. Settings come from CHAINSTATE_* variables and an
optional .env file; flags override both.`,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return opts.load(cmd)
		},
	}

	flags := cmd.PersistentFlags()
	flags.StringVar(&opts.EnvFile, "env-file", "", "read settings from this file instead of ./.env")
	flags.StringVarP(&opts.Endpoint, "endpoint", "e", config.DefaultEndpoint, "node endpoint (ws, wss, http, https)")
	flags.DurationVar(&opts.Timeout, "timeout", config.DefaultTimeout, "request timeout")
	flags.StringVar(&opts.LogLevel, "log-level", config.DefaultLogLevel, "log level (trace|debug|info|warn|error)")
	flags.IntVar(&opts.Workers, "workers", 0, "operation workers, 0 for one per CPU")
	flags.IntVar(&opts.CacheEntries, "cache-entries", config.DefaultCacheEntries, "metadata versions kept in memory")

	cmd.AddCommand(NewVersionCommand(opts))
	cmd.AddCommand(NewMetadataCommand(opts))
	cmd.AddCommand(NewKeyCommand(opts))
	cmd.AddCommand(NewStorageCommand(opts))

	return cmd
}

// load resolves settings and builds the logger. Flags set on the command
// line override the environment.
func (o *RootOptions) load(cmd *cobra.Command) error {
	var files []string
	if o.EnvFile != "" {
		files = append(files, o.EnvFile)
	}
	cfg, err := config.Load(files...)
	if err != nil {
		return err
	}

	flags := cmd.Flags()
	if flags.Changed("endpoint") {
		cfg.Endpoint = o.Endpoint
	}
	if flags.Changed("timeout") {
		cfg.Timeout = o.Timeout
	}
	if flags.Changed("log-level") {
		cfg.LogLevel = o.LogLevel
	}
	if flags.Changed("workers") {
		cfg.Workers = o.Workers
	}
	if flags.Changed("cache-entries") {
		cfg.CacheEntries = o.CacheEntries
	}

	level := hclog.LevelFromString(cfg.LogLevel)
	if level == hclog.NoLevel {
		return fmt.Errorf("invalid log level %q", cfg.LogLevel)
	}
	o.cfg = cfg
	o.log = hclog.New(&hclog.LoggerOptions{
		Name:   "chainstate",
		Level:  level,
		Output: cmd.ErrOrStderr(),
	})
	return nil
}

// Config returns the resolved settings. It is nil before the command runs.
func (o *RootOptions) Config() *config.Config { return o.cfg }

// session is a connection and runtime service for one command run.
type session struct {
	client  rpc.Client
	service *runtime.Service
}

func (o *RootOptions) connect(ctx context.Context) (*session, error) {
	client, err := rpc.Dial(ctx, o.cfg.Endpoint, rpc.WithLogger(o.log.Named("rpc")))
	if err != nil {
		return nil, fmt.Errorf("connecting to %s: %w", o.cfg.Endpoint, err)
	}
	store, err := cache.NewMemory(o.cfg.CacheEntries)
	if err != nil {
		_ = client.Close()
		return nil, err
	}
	service := runtime.NewService(client,
		runtime.WithLogger(o.log.Named("runtime")),
		runtime.WithCache(store),
		runtime.WithWorkers(o.cfg.Workers),
		runtime.WithFetchTimeout(o.cfg.Timeout),
	)
	return &session{client: client, service: service}, nil
}

func (s *session) Close() {
	s.service.Close()
	_ = s.client.Close()
}

// commandContext bounds a command run by the configured timeout.
func (o *RootOptions) commandContext(cmd *cobra.Command) (context.Context, context.CancelFunc) {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	return context.WithTimeout(ctx, o.cfg.Timeout)
}
