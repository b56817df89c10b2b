package idserver

import (
	"encoding/json"
	"testing"

	"github.com/ethereum/go-ethereum/common"
)

const (
	testHash = "0x5c504ed432cb51138bcf09aa5e8a410dd4a1e204ef84bfed1be16dfba1b22060"
	testFrom = "0x8ba1f109551bD432803012645Ac136ddd64DBA72"
	testTo   = "0x000000000000000000000000000000000000dEaD"
)

func TestSummarizeEVMReceipt(t *testing.T) {
	t.Parallel()
	raw := json.RawMessage(`{
		"to": "` + testTo + `",
		"from": "` + testFrom + `",
		"transactionHash": "` + testHash + `",
		"blockNumber": 118021337,
		"status": 1,
		"gasUsed": {"type": "BigNumber", "hex": "0x5208"},
		"logs": []
	}`)
	o := SummarizeChain("optimism", raw)
	if o.Kind != OutcomeReceipt {
		t.Fatalf("Kind = %s", o.Kind)
	}
	if o.TxHash != common.HexToHash(testHash) {
		t.Fatalf("TxHash = %s", o.TxHash.Hex())
	}
	if o.From != common.HexToAddress(testFrom) || o.To != common.HexToAddress(testTo) {
		t.Fatalf("From/To = %s/%s", o.From.Hex(), o.To.Hex())
	}
	if o.BlockNumber != 118021337 {
		t.Fatalf("BlockNumber = %d", o.BlockNumber)
	}
	if ok, known := o.Succeeded(); !ok || !known {
		t.Fatalf("Succeeded = %v,%v", ok, known)
	}
	if o.GasUsed == nil || o.GasUsed.Int64() != 21000 {
		t.Fatalf("GasUsed = %v", o.GasUsed)
	}
	if o.Explorer != "https://optimistic.etherscan.io/tx/"+testHash {
		t.Fatalf("Explorer = %s", o.Explorer)
	}
}

func TestSummarizePaymentContractKey(t *testing.T) {
	t.Parallel()
	raw := json.RawMessage(`{"transactionHash":"` + testHash + `","status":0,"gasUsed":{"hex":"0x05"},"blockNumber":"0x10"}`)
	o := SummarizeChain("fantom_payment_contract", raw)
	if o.Kind != OutcomeReceipt {
		t.Fatalf("Kind = %s", o.Kind)
	}
	if ok, known := o.Succeeded(); ok || !known {
		t.Fatalf("Succeeded = %v,%v, want false,true", ok, known)
	}
	if o.GasUsed == nil || o.GasUsed.Int64() != 5 {
		t.Fatalf("GasUsed = %v", o.GasUsed)
	}
	if o.BlockNumber != 16 {
		t.Fatalf("BlockNumber = %d", o.BlockNumber)
	}
	if o.Explorer != "https://ftmscan.com/tx/"+testHash {
		t.Fatalf("Explorer = %s", o.Explorer)
	}
}

func TestSummarizeTxIDString(t *testing.T) {
	t.Parallel()
	o := SummarizeChain("sui", json.RawMessage(`"8Kq9kRDjzT1b2W3y"`))
	if o.Kind != OutcomeTxID || o.TxID != "8Kq9kRDjzT1b2W3y" {
		t.Fatalf("outcome = %+v", o)
	}
	if o.TxHash != (common.Hash{}) {
		t.Fatalf("non-hex id produced TxHash %s", o.TxHash.Hex())
	}
	if o.Explorer != "https://suiscan.xyz/mainnet/tx/8Kq9kRDjzT1b2W3y" {
		t.Fatalf("Explorer = %s", o.Explorer)
	}
	if _, known := o.Succeeded(); known {
		t.Fatal("string id should not report a status")
	}
}

func TestSummarizeOpaque(t *testing.T) {
	t.Parallel()
	for _, raw := range []string{`42`, `[]`, `{"hash":"nope"}`, `{"transactionHash":"0x1234"}`, `""`, ``} {
		o := SummarizeChain("avalanche", json.RawMessage(raw))
		if o.Kind != OutcomeOpaque {
			t.Fatalf("%s: Kind = %s, want opaque", raw, o.Kind)
		}
		if o.Explorer != "" {
			t.Fatalf("%s: Explorer = %s", raw, o.Explorer)
		}
		if len(o.Fields()) != 2 {
			t.Fatalf("%s: Fields = %d", raw, len(o.Fields()))
		}
	}
}

func TestParseQuantity(t *testing.T) {
	t.Parallel()
	tests := []struct {
		raw  string
		want int64
		ok   bool
	}{
		{`21000`, 21000, true},
		{`"21000"`, 21000, true},
		{`"0x5208"`, 21000, true},
		{`"0x05"`, 5, true},
		{`{"type":"BigNumber","hex":"0x00"}`, 0, true},
		{`"zz"`, 0, false},
		{`true`, 0, false},
	}
	for _, tt := range tests {
		n := parseQuantity(json.RawMessage(tt.raw))
		if !tt.ok {
			if n != nil {
				t.Fatalf("parseQuantity(%s) = %v, want nil", tt.raw, n)
			}
			continue
		}
		if n == nil || n.Int64() != tt.want {
			t.Fatalf("parseQuantity(%s) = %v, want %d", tt.raw, n, tt.want)
		}
	}
}
