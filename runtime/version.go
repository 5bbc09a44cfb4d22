// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package runtime

import (
	"encoding/json"
	"fmt"

	rpc "github.com/luxfi/substrate-rpc"
)

// Version is the result of state_getRuntimeVersion.
type Version struct {
	SpecName           string `json:"specName"`
	ImplName           string `json:"implName"`
	AuthoringVersion   uint32 `json:"authoringVersion"`
	SpecVersion        uint32 `json:"specVersion"`
	ImplVersion        uint32 `json:"implVersion"`
	TransactionVersion uint32 `json:"transactionVersion"`
	StateVersion       uint8  `json:"stateVersion"`
	APIs               []API  `json:"apis"`
}

// Same reports whether v and o describe the same runtime metadata.
func (v Version) Same(o Version) bool {
	return v.SpecName == o.SpecName && v.SpecVersion == o.SpecVersion
}

func (v Version) String() string {
	return fmt.Sprintf("%s/%d", v.SpecName, v.SpecVersion)
}

// cacheKey addresses the raw metadata of v in a cache.Store.
func (v Version) cacheKey() string {
	return "metadata/" + v.String()
}

// API is a runtime API id and version, sent as a two element array.
type API struct {
	ID      rpc.HexBytes
	Version uint32
}

func (a API) MarshalJSON() ([]byte, error) {
	return json.Marshal([]any{a.ID, a.Version})
}

func (a *API) UnmarshalJSON(data []byte) error {
	var pair []json.RawMessage
	if err := json.Unmarshal(data, &pair); err != nil {
		return err
	}
	if len(pair) != 2 {
		return fmt.Errorf("runtime: api entry has %d elements", len(pair))
	}
	if err := json.Unmarshal(pair[0], &a.ID); err != nil {
		return err
	}
	return json.Unmarshal(pair[1], &a.Version)
}
