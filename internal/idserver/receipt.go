package idserver

import (
	"bytes"
	"encoding/json"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"

	logx "iddaemon/pkg/logx"
)

// explorerTxURL maps a base chain name to its explorer tx URL prefix.
var explorerTxURL = map[string]string{
	"ethereum":  "https://etherscan.io/tx",
	"optimism":  "https://optimistic.etherscan.io/tx",
	"fantom":    "https://ftmscan.com/tx",
	"avalanche": "https://snowtrace.io/tx",
	"base":      "https://basescan.org/tx",
	"aurora":    "https://explorer.aurora.dev/tx",
	"stellar":   "https://stellar.expert/explorer/public/tx",
	"sui":       "https://suiscan.xyz/mainnet/tx",
}

// Kinds of per-chain values.
const (
	OutcomeReceipt = "evm_receipt"
	OutcomeTxID    = "tx_id"
	OutcomeOpaque  = "opaque"
)

// ChainOutcome is a best-effort summary of one per-chain transfer value.
type ChainOutcome struct {
	Chain string
	Kind  string

	TxHash      common.Hash
	TxID        string
	From        common.Address
	To          common.Address
	BlockNumber uint64
	Status      *uint64
	GasUsed     *big.Int
	Explorer    string
}

// evmReceipt is the subset of an ethers TransactionReceipt we read.
type evmReceipt struct {
	TransactionHash string          `json:"transactionHash"`
	From            string          `json:"from"`
	To              string          `json:"to"`
	BlockNumber     json.RawMessage `json:"blockNumber"`
	Status          json.RawMessage `json:"status"`
	GasUsed         json.RawMessage `json:"gasUsed"`
}

// baseChain strips the server's suffixes ("optimism_payment_contract",
// "fantom_admin_wallet") down to the chain name.
func baseChain(key string) string {
	for _, suffix := range []string{"_payment_contract", "_admin_wallet"} {
		if strings.HasSuffix(key, suffix) {
			return strings.TrimSuffix(key, suffix)
		}
	}
	return key
}

// SummarizeChain never fails: values it can't read are reported as opaque.
func SummarizeChain(chain string, raw json.RawMessage) ChainOutcome {
	out := ChainOutcome{Chain: chain, Kind: OutcomeOpaque}
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 {
		return out
	}

	switch raw[0] {
	case '"':
		var s string
		if err := json.Unmarshal(raw, &s); err != nil || s == "" {
			return out
		}
		out.Kind = OutcomeTxID
		out.TxID = s
		if isTxHash(s) {
			out.TxHash = common.HexToHash(s)
		}
	case '{':
		var r evmReceipt
		if err := json.Unmarshal(raw, &r); err != nil || !isTxHash(r.TransactionHash) {
			return out
		}
		out.Kind = OutcomeReceipt
		out.TxHash = common.HexToHash(r.TransactionHash)
		out.TxID = out.TxHash.Hex()
		if common.IsHexAddress(r.From) {
			out.From = common.HexToAddress(r.From)
		}
		if common.IsHexAddress(r.To) {
			out.To = common.HexToAddress(r.To)
		}
		if n := parseQuantity(r.BlockNumber); n != nil && n.IsUint64() {
			out.BlockNumber = n.Uint64()
		}
		if n := parseQuantity(r.Status); n != nil && n.IsUint64() {
			st := n.Uint64()
			out.Status = &st
		}
		out.GasUsed = parseQuantity(r.GasUsed)
	default:
		return out
	}

	if prefix, ok := explorerTxURL[baseChain(chain)]; ok && out.TxID != "" {
		out.Explorer = prefix + "/" + out.TxID
	}
	return out
}

// Succeeded reports whether the summary carries an EVM status of 1. Non-EVM
// and opaque values report false with known=false.
func (o ChainOutcome) Succeeded() (ok, known bool) {
	if o.Status == nil {
		return false, false
	}
	return *o.Status == 1, true
}

// Fields renders the summary for a log line.
func (o ChainOutcome) Fields() []logx.Field {
	f := []logx.Field{logx.String("chain", o.Chain), logx.String("kind", o.Kind)}
	if o.TxID != "" {
		f = append(f, logx.String("tx", o.TxID))
	}
	if o.Kind == OutcomeReceipt {
		f = append(f, logx.Uint64("block", o.BlockNumber))
		if o.From != (common.Address{}) {
			f = append(f, logx.String("from", o.From.Hex()))
		}
		if o.To != (common.Address{}) {
			f = append(f, logx.String("to", o.To.Hex()))
		}
		if o.Status != nil {
			f = append(f, logx.Uint64("status", *o.Status))
		}
		if o.GasUsed != nil {
			f = append(f, logx.String("gas_used", o.GasUsed.String()))
		}
	}
	if o.Explorer != "" {
		f = append(f, logx.String("explorer", o.Explorer))
	}
	return f
}

func isTxHash(s string) bool {
	if len(s) != 2+2*common.HashLength {
		return false
	}
	b, err := hexutil.Decode(s)
	return err == nil && len(b) == common.HashLength
}

// parseQuantity reads an ethers quantity: a JSON number, a hex string
// ("0x5208" or zero-padded "0x05"), or a serialized BigNumber
// {"type":"BigNumber","hex":"0x..."}.
func parseQuantity(raw json.RawMessage) *big.Int {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 {
		return nil
	}
	switch raw[0] {
	case '{':
		var bn struct {
			Hex string `json:"hex"`
		}
		if err := json.Unmarshal(raw, &bn); err != nil {
			return nil
		}
		return parseHexQuantity(bn.Hex)
	case '"':
		var s string
		if err := json.Unmarshal(raw, &s); err != nil {
			return nil
		}
		if strings.HasPrefix(s, "0x") || strings.HasPrefix(s, "0X") {
			return parseHexQuantity(s)
		}
		return parseDecimal(s)
	default:
		return parseDecimal(string(raw))
	}
}

func parseHexQuantity(s string) *big.Int {
	if n, err := hexutil.DecodeBig(s); err == nil {
		return n
	}
	// ethers pads to whole bytes ("0x05"), which DecodeBig rejects.
	if b, err := hexutil.Decode(s); err == nil {
		return new(big.Int).SetBytes(b)
	}
	return nil
}

func parseDecimal(s string) *big.Int {
	n, ok := new(big.Int).SetString(strings.TrimSpace(s), 10)
	if !ok {
		return nil
	}
	return n
}
