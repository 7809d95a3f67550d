// Package tx constructs and serializes spendable-output-consuming
// transactions: coin selection, script assembly and the binary wire
// format. It does not sign or broadcast.
package tx

import (
	"encoding/binary"
	"errors"
	"fmt"

	"github.com/stackmint/stackmint-core/pkg/crypto"
	"github.com/stackmint/stackmint-core/pkg/types"
)

// Sequence values. The RBF sequence opts an input into replacement under
// BIP 125 while keeping locktime enforceable.
const (
	SequenceFinal uint32 = 0xffffffff
	SequenceRBF   uint32 = 0xfffffffd
)

// ErrMalformed reports a byte stream that is not a valid serialized
// transaction.
var ErrMalformed = errors.New("tx: malformed transaction")

// Input spends a previous output. PrevTxID is held in display order; the
// wire format stores it byte-reversed. Value is the spent output's amount,
// carried for fee accounting only and never serialized.
type Input struct {
	PrevTxID types.Hash `json:"prev_txid"`
	Vout     uint32     `json:"vout"`
	Script   []byte     `json:"script,omitempty"`
	Sequence uint32     `json:"sequence"`
	Value    uint64     `json:"value,omitempty"`
}

// Output creates a new spendable (or data-carrier) output.
// Address is informational; only Script goes on the wire.
type Output struct {
	Value   uint64 `json:"value"`
	Script  []byte `json:"script"`
	Address string `json:"address,omitempty"`
}

// Transaction is the mutable form a Builder assembles. Serialize produces
// the wire encoding consumed by an external signer/broadcaster.
type Transaction struct {
	Version  uint32   `json:"version"`
	Inputs   []Input  `json:"inputs"`
	Outputs  []Output `json:"outputs"`
	LockTime uint32   `json:"locktime"`
}

// Serialize encodes the transaction in the binary wire format:
// version(4 LE) | varint(#in) | inputs | varint(#out) | outputs | locktime(4 LE).
// Each input is reversed-txid(32) | vout(4 LE) | varint-prefixed script |
// sequence(4 LE); each output is value(8 LE) | varint-prefixed script.
func (t *Transaction) Serialize() []byte {
	buf := make([]byte, 0, t.SerializedSize())
	buf = binary.LittleEndian.AppendUint32(buf, t.Version)

	buf = appendCompactSize(buf, uint64(len(t.Inputs)))
	for i := range t.Inputs {
		in := &t.Inputs[i]
		rev := in.PrevTxID.Reversed()
		buf = append(buf, rev[:]...)
		buf = binary.LittleEndian.AppendUint32(buf, in.Vout)
		buf = appendCompactSize(buf, uint64(len(in.Script)))
		buf = append(buf, in.Script...)
		buf = binary.LittleEndian.AppendUint32(buf, in.Sequence)
	}

	buf = appendCompactSize(buf, uint64(len(t.Outputs)))
	for i := range t.Outputs {
		out := &t.Outputs[i]
		buf = binary.LittleEndian.AppendUint64(buf, out.Value)
		buf = appendCompactSize(buf, uint64(len(out.Script)))
		buf = append(buf, out.Script...)
	}

	buf = binary.LittleEndian.AppendUint32(buf, t.LockTime)
	return buf
}

// SerializedSize returns the exact byte length Serialize will produce.
func (t *Transaction) SerializedSize() int {
	size := 4 + 4 // version + locktime
	size += compactSizeLen(uint64(len(t.Inputs)))
	for i := range t.Inputs {
		size += 32 + 4 + 4
		size += compactSizeLen(uint64(len(t.Inputs[i].Script))) + len(t.Inputs[i].Script)
	}
	size += compactSizeLen(uint64(len(t.Outputs)))
	for i := range t.Outputs {
		size += 8
		size += compactSizeLen(uint64(len(t.Outputs[i].Script))) + len(t.Outputs[i].Script)
	}
	return size
}

// TxID returns the transaction id: sha256d of the serialization,
// byte-reversed into display order.
func (t *Transaction) TxID() types.Hash {
	d := crypto.Sha256d(t.Serialize())
	return types.Hash(d).Reversed()
}

// TotalOutputValue returns the sum of all output values, or an error on
// uint64 overflow.
func (t *Transaction) TotalOutputValue() (uint64, error) {
	var total uint64
	for i := range t.Outputs {
		v := t.Outputs[i].Value
		if total > ^uint64(0)-v {
			return 0, fmt.Errorf("tx: output value overflow")
		}
		total += v
	}
	return total, nil
}

// Parse decodes a serialized transaction and rejects trailing bytes.
func Parse(raw []byte) (*Transaction, error) {
	r := &reader{buf: raw}

	version, err := r.uint32()
	if err != nil {
		return nil, fmt.Errorf("%w: version: %v", ErrMalformed, err)
	}
	t := &Transaction{Version: version}

	nIn, err := r.compactSize()
	if err != nil {
		return nil, fmt.Errorf("%w: input count: %v", ErrMalformed, err)
	}
	for i := uint64(0); i < nIn; i++ {
		var in Input
		txid, err := r.bytes(32)
		if err != nil {
			return nil, fmt.Errorf("%w: input %d txid: %v", ErrMalformed, i, err)
		}
		var wire types.Hash
		copy(wire[:], txid)
		in.PrevTxID = wire.Reversed()
		if in.Vout, err = r.uint32(); err != nil {
			return nil, fmt.Errorf("%w: input %d vout: %v", ErrMalformed, i, err)
		}
		if in.Script, err = r.varBytes(); err != nil {
			return nil, fmt.Errorf("%w: input %d script: %v", ErrMalformed, i, err)
		}
		if in.Sequence, err = r.uint32(); err != nil {
			return nil, fmt.Errorf("%w: input %d sequence: %v", ErrMalformed, i, err)
		}
		t.Inputs = append(t.Inputs, in)
	}

	nOut, err := r.compactSize()
	if err != nil {
		return nil, fmt.Errorf("%w: output count: %v", ErrMalformed, err)
	}
	for i := uint64(0); i < nOut; i++ {
		var out Output
		if out.Value, err = r.uint64(); err != nil {
			return nil, fmt.Errorf("%w: output %d value: %v", ErrMalformed, i, err)
		}
		if out.Script, err = r.varBytes(); err != nil {
			return nil, fmt.Errorf("%w: output %d script: %v", ErrMalformed, i, err)
		}
		t.Outputs = append(t.Outputs, out)
	}

	if t.LockTime, err = r.uint32(); err != nil {
		return nil, fmt.Errorf("%w: locktime: %v", ErrMalformed, err)
	}
	if r.remaining() != 0 {
		return nil, fmt.Errorf("%w: %d trailing bytes", ErrMalformed, r.remaining())
	}
	return t, nil
}

// appendCompactSize appends a Bitcoin varint: one byte below 0xfd, then
// 0xfd+u16, 0xfe+u32 or 0xff+u64 little-endian markers by magnitude.
func appendCompactSize(buf []byte, n uint64) []byte {
	switch {
	case n < 0xfd:
		return append(buf, byte(n))
	case n <= 0xffff:
		buf = append(buf, 0xfd)
		return binary.LittleEndian.AppendUint16(buf, uint16(n))
	case n <= 0xffffffff:
		buf = append(buf, 0xfe)
		return binary.LittleEndian.AppendUint32(buf, uint32(n))
	default:
		buf = append(buf, 0xff)
		return binary.LittleEndian.AppendUint64(buf, n)
	}
}

// compactSizeLen returns the encoded length of a varint.
func compactSizeLen(n uint64) int {
	switch {
	case n < 0xfd:
		return 1
	case n <= 0xffff:
		return 3
	case n <= 0xffffffff:
		return 5
	default:
		return 9
	}
}

// reader walks a byte slice with bounds checking.
type reader struct {
	buf []byte
	off int
}

func (r *reader) remaining() int { return len(r.buf) - r.off }

func (r *reader) bytes(n int) ([]byte, error) {
	if r.remaining() < n {
		return nil, fmt.Errorf("need %d bytes, have %d", n, r.remaining())
	}
	b := r.buf[r.off : r.off+n]
	r.off += n
	return b, nil
}

func (r *reader) uint32() (uint32, error) {
	b, err := r.bytes(4)
	if err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint32(b), nil
}

func (r *reader) uint64() (uint64, error) {
	b, err := r.bytes(8)
	if err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint64(b), nil
}

func (r *reader) compactSize() (uint64, error) {
	b, err := r.bytes(1)
	if err != nil {
		return 0, err
	}
	switch b[0] {
	case 0xfd:
		v, err := r.bytes(2)
		if err != nil {
			return 0, err
		}
		return uint64(binary.LittleEndian.Uint16(v)), nil
	case 0xfe:
		v, err := r.bytes(4)
		if err != nil {
			return 0, err
		}
		return uint64(binary.LittleEndian.Uint32(v)), nil
	case 0xff:
		v, err := r.bytes(8)
		if err != nil {
			return 0, err
		}
		return binary.LittleEndian.Uint64(v), nil
	default:
		return uint64(b[0]), nil
	}
}

func (r *reader) varBytes() ([]byte, error) {
	n, err := r.compactSize()
	if err != nil {
		return nil, err
	}
	if n > uint64(r.remaining()) {
		return nil, fmt.Errorf("declared %d bytes, have %d", n, r.remaining())
	}
	b := make([]byte, n)
	copy(b, r.buf[r.off:r.off+int(n)])
	r.off += int(n)
	return b, nil
}
