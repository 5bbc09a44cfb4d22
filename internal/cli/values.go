// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package cli

import (
	"math/big"
	"strconv"
	"strings"

	rpc "github.com/luxfi/substrate-rpc"
)

// parseArgs turns command line keys into values the registry can encode.
func parseArgs(args []string) ([]any, error) {
	out := make([]any, len(args))
	for i, arg := range args {
		v, err := parseArg(arg)
		if err != nil {
			return nil, err
		}
		out[i] = v
	}
	return out, nil
}

func parseArg(arg string) (any, error) {
	switch {
	case strings.HasPrefix(arg, "0x"):
		b, err := rpc.ParseHex(arg)
		if err != nil {
			return nil, err
		}
		return []byte(b), nil
	case arg == "true" || arg == "false":
		return arg == "true", nil
	}
	if n, err := strconv.ParseUint(arg, 10, 64); err == nil {
		return n, nil
	}
	if n, err := strconv.ParseInt(arg, 10, 64); err == nil {
		return n, nil
	}
	if n, ok := new(big.Int).SetString(arg, 10); ok {
		return n, nil
	}
	return arg, nil
}

// render makes a decoded value printable as JSON: bytes become hex and
// big integers decimal strings.
func render(v any) any {
	switch x := v.(type) {
	case []byte:
		return rpc.HexBytes(x).String()
	case *big.Int:
		return x.String()
	case map[string]any:
		out := make(map[string]any, len(x))
		for k, e := range x {
			out[k] = render(e)
		}
		return out
	case []any:
		out := make([]any, len(x))
		for i, e := range x {
			out[i] = render(e)
		}
		return out
	}
	return v
}
