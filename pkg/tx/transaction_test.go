package tx

import (
	"bytes"
	"encoding/hex"
	"errors"
	"testing"

	"github.com/stackmint/stackmint-core/pkg/script"
	"github.com/stackmint/stackmint-core/pkg/types"
)

// The Bitcoin genesis coinbase: a full external vector covering the wire
// layout, compact sizes and the byte-reversed txid in one shot.
const genesisCoinbaseHex = "01000000010000000000000000000000000000000000000000000000000000000000000000ffffffff4d04ffff001d0104455468652054696d65732030332f4a616e2f32303039204368616e63656c6c6f72206f6e206272696e6b206f66207365636f6e64206261696c6f757420666f722062616e6b73ffffffff0100f2052a01000000434104678afdb0fe5548271967f1a67130b7105cd6a828e03909a67962e0ea1f61deb649f6bc3f4cef38c4f35504e51ec112de5c384df7ba0b8d578a4c702b6bf11d5fac00000000"

const genesisCoinbaseTxID = "4a5e1e4baab89f3a32518a88c31bc87f618f76673e2cc77ab2127b7afdeda33b"

func TestParse_GenesisCoinbase(t *testing.T) {
	raw, err := hex.DecodeString(genesisCoinbaseHex)
	if err != nil {
		t.Fatalf("DecodeString: %v", err)
	}

	tr, err := Parse(raw)
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if tr.Version != 1 {
		t.Errorf("Version = %d, want 1", tr.Version)
	}
	if len(tr.Inputs) != 1 || len(tr.Outputs) != 1 {
		t.Fatalf("shape = %d in / %d out, want 1/1", len(tr.Inputs), len(tr.Outputs))
	}
	if !tr.Inputs[0].PrevTxID.IsZero() || tr.Inputs[0].Vout != 0xffffffff {
		t.Errorf("coinbase prevout = %s:%d", tr.Inputs[0].PrevTxID, tr.Inputs[0].Vout)
	}
	if tr.Outputs[0].Value != 50_0000_0000 {
		t.Errorf("output value = %d, want 50 BTC in satoshis", tr.Outputs[0].Value)
	}

	if got := tr.TxID().String(); got != genesisCoinbaseTxID {
		t.Errorf("TxID = %s, want %s", got, genesisCoinbaseTxID)
	}
	if !bytes.Equal(tr.Serialize(), raw) {
		t.Error("Serialize(Parse(raw)) != raw")
	}
	if tr.SerializedSize() != len(raw) {
		t.Errorf("SerializedSize = %d, want %d", tr.SerializedSize(), len(raw))
	}
}

func TestSerialize_Roundtrip(t *testing.T) {
	prev, _ := types.HexToHash("4a5e1e4baab89f3a32518a88c31bc87f618f76673e2cc77ab2127b7afdeda33b")
	tr := &Transaction{
		Version: 2,
		Inputs: []Input{
			{PrevTxID: prev, Vout: 1, Sequence: SequenceFinal},
			{PrevTxID: prev, Vout: 0, Script: []byte{0x51}, Sequence: SequenceRBF},
		},
		Outputs: []Output{
			{Value: 12345, Script: script.PayToPubKeyHash([types.AddressHashSize]byte{1, 2, 3})},
			{Value: 0, Script: []byte{script.OpReturn, 2, 0xca, 0xfe}},
		},
		LockTime: 500_000,
	}

	raw := tr.Serialize()
	back, err := Parse(raw)
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if back.Version != tr.Version || back.LockTime != tr.LockTime {
		t.Errorf("header roundtrip: %d/%d", back.Version, back.LockTime)
	}
	if len(back.Inputs) != 2 || len(back.Outputs) != 2 {
		t.Fatalf("shape roundtrip: %d/%d", len(back.Inputs), len(back.Outputs))
	}
	if back.Inputs[0].PrevTxID != prev {
		t.Error("txid reversal must cancel out across serialize/parse")
	}
	if back.Inputs[1].Sequence != SequenceRBF {
		t.Errorf("sequence = %#x", back.Inputs[1].Sequence)
	}
	if !bytes.Equal(back.Serialize(), raw) {
		t.Error("re-serialization differs")
	}
}

func TestSerialize_TxIDByteReversal(t *testing.T) {
	prev, _ := types.HexToHash("0102030405060708091011121314151617181920212223242526272829303132")
	tr := &Transaction{
		Version:  2,
		Inputs:   []Input{{PrevTxID: prev, Vout: 0, Sequence: SequenceFinal}},
		Outputs:  []Output{{Value: 1, Script: []byte{0x51}}},
		LockTime: 0,
	}
	raw := tr.Serialize()

	// The wire carries the txid byte-reversed: first input txid bytes
	// start right after the version and input count.
	wire := raw[5 : 5+32]
	rev := prev.Reversed()
	if !bytes.Equal(wire, rev[:]) {
		t.Errorf("wire txid = %x, want %x", wire, rev[:])
	}
}

func TestCompactSize_Thresholds(t *testing.T) {
	tests := []struct {
		n    uint64
		want []byte
	}{
		{0, []byte{0x00}},
		{252, []byte{0xfc}},
		{253, []byte{0xfd, 0xfd, 0x00}},
		{0xffff, []byte{0xfd, 0xff, 0xff}},
		{0x10000, []byte{0xfe, 0x00, 0x00, 0x01, 0x00}},
		{0xffffffff, []byte{0xfe, 0xff, 0xff, 0xff, 0xff}},
		{0x100000000, []byte{0xff, 0x00, 0x00, 0x00, 0x00, 0x01, 0x00, 0x00, 0x00}},
	}
	for _, tt := range tests {
		got := appendCompactSize(nil, tt.n)
		if !bytes.Equal(got, tt.want) {
			t.Errorf("appendCompactSize(%d) = %x, want %x", tt.n, got, tt.want)
		}
		if compactSizeLen(tt.n) != len(tt.want) {
			t.Errorf("compactSizeLen(%d) = %d, want %d", tt.n, compactSizeLen(tt.n), len(tt.want))
		}

		r := &reader{buf: got}
		back, err := r.compactSize()
		if err != nil {
			t.Fatalf("compactSize(%x): %v", got, err)
		}
		if back != tt.n {
			t.Errorf("compactSize(%x) = %d, want %d", got, back, tt.n)
		}
	}
}

func TestParse_Malformed(t *testing.T) {
	raw, _ := hex.DecodeString(genesisCoinbaseHex)

	cases := map[string][]byte{
		"empty":     {},
		"truncated": raw[:len(raw)-3],
		"trailing":  append(append([]byte{}, raw...), 0x00),
		"bad count": {0x01, 0x00, 0x00, 0x00, 0xff, 0xff, 0xff, 0xff, 0xff, 0xff, 0xff, 0xff, 0xff},
	}
	for name, data := range cases {
		if _, err := Parse(data); !errors.Is(err, ErrMalformed) {
			t.Errorf("%s: err = %v, want ErrMalformed", name, err)
		}
	}
}

func TestTotalOutputValue_Overflow(t *testing.T) {
	tr := &Transaction{Outputs: []Output{
		{Value: ^uint64(0)},
		{Value: 1},
	}}
	if _, err := tr.TotalOutputValue(); err == nil {
		t.Error("overflow should be rejected")
	}
}
