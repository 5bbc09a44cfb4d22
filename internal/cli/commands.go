// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/luxfi/substrate-rpc/metadata"
	"github.com/luxfi/substrate-rpc/runtime"
)

// NewVersionCommand creates the version command.
func NewVersionCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the node's runtime version",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, cancel := rootOpts.commandContext(cmd)
			defer cancel()
			s, err := rootOpts.connect(ctx)
			if err != nil {
				return err
			}
			defer s.Close()

			var v runtime.Version
			if err := s.client.Call(ctx, "state_getRuntimeVersion", nil, &v); err != nil {
				return err
			}
			return writeJSON(cmd.OutOrStdout(), v)
		},
	}
}

// NewMetadataCommand creates the metadata command.
func NewMetadataCommand(rootOpts *RootOptions) *cobra.Command {
	var pallet string
	cmd := &cobra.Command{
		Use:   "metadata",
		Short: "Summarize the runtime metadata",
		Long: `Summarize the runtime metadata: one line per pallet, or the storage
entries and constants of one pallet with --pallet.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, cancel := rootOpts.commandContext(cmd)
			defer cancel()
			s, err := rootOpts.connect(ctx)
			if err != nil {
				return err
			}
			defer s.Close()

			f, err := s.service.FetchCoderFactory(ctx, rootOpts.cfg.Timeout)
			if err != nil {
				return err
			}
			if pallet == "" {
				return writePallets(cmd.OutOrStdout(), f)
			}
			p, ok := f.Metadata().Pallet(pallet)
			if !ok {
				return fmt.Errorf("no pallet %q in %s", pallet, f.Version())
			}
			return writePallet(cmd.OutOrStdout(), p)
		},
	}
	cmd.Flags().StringVarP(&pallet, "pallet", "p", "", "list the entries of this pallet")
	return cmd
}

func writePallets(out io.Writer, f *runtime.CoderFactory) error {
	w := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintf(w, "# %s\n", f.Version())
	fmt.Fprintln(w, "PALLET\tINDEX\tSTORAGE\tCONSTANTS")
	for _, p := range f.Metadata().Pallets {
		entries := 0
		if p.Storage != nil {
			entries = len(p.Storage.Entries)
		}
		fmt.Fprintf(w, "%s\t%d\t%d\t%d\n", p.Name, p.Index, entries, len(p.Constants))
	}
	return w.Flush()
}

func writePallet(out io.Writer, p *metadata.Pallet) error {
	w := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	if p.Storage != nil {
		fmt.Fprintln(w, "STORAGE\tMODIFIER\tHASHERS")
		for _, e := range p.Storage.Entries {
			hashers := make([]string, len(e.Type.Hashers))
			for i, h := range e.Type.Hashers {
				hashers[i] = h.String()
			}
			fmt.Fprintf(w, "%s\t%s\t%s\n", e.Name, e.Modifier, strings.Join(hashers, ","))
		}
	}
	if len(p.Constants) > 0 {
		fmt.Fprintln(w, "CONSTANT\tTYPE")
		for _, c := range p.Constants {
			fmt.Fprintf(w, "%s\t%d\n", c.Name, c.Type)
		}
	}
	return w.Flush()
}

// NewKeyCommand creates the key command.
func NewKeyCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "key <pallet> <item> [keys...]",
		Short: "Derive a storage key",
		Long: `Derive the storage key of an item, hashing each key with the hasher
the runtime declares for it. Keys are 0x-prefixed hex, integers, true or
false, or plain strings. Fewer keys than the entry takes give the prefix
shared by all its values.`,
		Args: cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := rootOpts.commandContext(cmd)
			defer cancel()
			s, err := rootOpts.connect(ctx)
			if err != nil {
				return err
			}
			defer s.Close()

			f, err := s.service.FetchCoderFactory(ctx, rootOpts.cfg.Timeout)
			if err != nil {
				return err
			}
			keys, err := parseArgs(args[2:])
			if err != nil {
				return err
			}
			key, err := f.StorageKey(args[0], args[1], keys...)
			if err != nil {
				return err
			}
			_, err = fmt.Fprintln(cmd.OutOrStdout(), key.Hex())
			return err
		},
	}
}

// NewStorageCommand creates the storage command.
func NewStorageCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "storage <pallet> <item> [keys...]",
		Short: "Read and decode a storage value",
		Args:  cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := rootOpts.commandContext(cmd)
			defer cancel()
			s, err := rootOpts.connect(ctx)
			if err != nil {
				return err
			}
			defer s.Close()

			keys, err := parseArgs(args[2:])
			if err != nil {
				return err
			}
			query := runtime.NewStorageQuery(s.service, args[0], args[1], keys...)
			if err := s.service.Queue().Add(query); err != nil {
				return err
			}
			v, err := query.Wait(ctx)
			if err != nil {
				return err
			}
			return writeJSON(cmd.OutOrStdout(), render(v))
		},
	}
}

func writeJSON(out io.Writer, v any) error {
	enc := json.NewEncoder(out)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
