package idserver

import (
	"bytes"
	"encoding/json"
	"fmt"
	"sort"
)

// DeletionResult is the body of DELETE /admin/user-idv-data.
type DeletionResult struct {
	Message *string `json:"message,omitempty"`
	Error   *string `json:"error,omitempty"`
}

// Known per-chain keys of a transfer-funds response.
const (
	ChainOptimism  = "optimism"
	ChainFantom    = "fantom"
	ChainAvalanche = "avalanche"
)

// TransferResult is the body of POST /admin/transfer-funds.
//
// Per-chain values are opaque JSON: their shape is whatever the server's
// chain SDK returned (an EVM receipt, a tx hash string, ...). Chains other
// than the three named fields (ethereum, base, sui, <chain>_payment_contract,
// ...) are kept in Other.
type TransferResult struct {
	Optimism  json.RawMessage
	Fantom    json.RawMessage
	Avalanche json.RawMessage
	Error     *string

	Other map[string]json.RawMessage
}

// ChainValue is one present per-chain entry of a TransferResult.
type ChainValue struct {
	Chain string
	Value json.RawMessage
}

func (r *TransferResult) UnmarshalJSON(b []byte) error {
	var m map[string]json.RawMessage
	if err := json.Unmarshal(b, &m); err != nil {
		return err
	}
	if m == nil {
		return errNullBody
	}

	var out TransferResult
	for k, v := range m {
		switch k {
		case "error":
			if err := json.Unmarshal(v, &out.Error); err != nil {
				return fmt.Errorf("field error: %w", err)
			}
		case ChainOptimism:
			out.Optimism = nonNull(v)
		case ChainFantom:
			out.Fantom = nonNull(v)
		case ChainAvalanche:
			out.Avalanche = nonNull(v)
		default:
			if v = nonNull(v); v != nil {
				if out.Other == nil {
					out.Other = map[string]json.RawMessage{}
				}
				out.Other[k] = v
			}
		}
	}
	*r = out
	return nil
}

// MarshalJSON flattens Other back next to the named fields so the logged
// response looks like what the server sent.
func (r TransferResult) MarshalJSON() ([]byte, error) {
	m := make(map[string]any, len(r.Other)+4)
	for k, v := range r.Other {
		m[k] = v
	}
	if r.Optimism != nil {
		m[ChainOptimism] = r.Optimism
	}
	if r.Fantom != nil {
		m[ChainFantom] = r.Fantom
	}
	if r.Avalanche != nil {
		m[ChainAvalanche] = r.Avalanche
	}
	if r.Error != nil {
		m["error"] = *r.Error
	}
	return json.Marshal(m)
}

// Chains lists present chain values: the named chains first, then Other in
// key order.
func (r *TransferResult) Chains() []ChainValue {
	out := make([]ChainValue, 0, 3+len(r.Other))
	for _, c := range []ChainValue{
		{ChainOptimism, r.Optimism},
		{ChainFantom, r.Fantom},
		{ChainAvalanche, r.Avalanche},
	} {
		if c.Value != nil {
			out = append(out, c)
		}
	}
	keys := make([]string, 0, len(r.Other))
	for k := range r.Other {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		out = append(out, ChainValue{Chain: k, Value: r.Other[k]})
	}
	return out
}

func nonNull(v json.RawMessage) json.RawMessage {
	if len(v) == 0 || bytes.Equal(bytes.TrimSpace(v), []byte("null")) {
		return nil
	}
	return v
}
