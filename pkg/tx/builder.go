package tx

import (
	"errors"
	"fmt"
	"math/rand"
	"sort"
	"time"

	"github.com/stackmint/stackmint-core/pkg/script"
	"github.com/stackmint/stackmint-core/pkg/types"
)

// Builder failure sentinels.
var (
	ErrInsufficientFunds = errors.New("tx: insufficient funds")
	ErrInvalidAddress    = errors.New("tx: invalid address")
	ErrNoOutputs         = errors.New("tx: transaction has no outputs")
)

// Strategy orders the candidate pool during coin selection.
type Strategy string

const (
	SelectLargestFirst  Strategy = "largest_first"
	SelectSmallestFirst Strategy = "smallest_first"
	SelectOldestFirst   Strategy = "oldest_first"
	SelectRandom        Strategy = "random"
)

// Dust and fee defaults.
const (
	DefaultFeeRate       = 1   // satoshis per byte
	DefaultDustThreshold = 546 // below this, change is absorbed into the fee
	DefaultVersion       = 2
)

// Options configures a Builder. The zero value of each field falls back
// to its default; cross-cutting knobs are always passed here explicitly,
// never read from globals.
type Options struct {
	Network       types.Network
	FeeRate       uint64 // satoshis per byte
	DustThreshold uint64
	Strategy      Strategy
	Version       uint32
	LockTime      uint32
	EnableRBF     bool
	ChangeAddress string     // base58check; empty disables change outputs
	Rand          *rand.Rand // source for SelectRandom; nil seeds from the clock
}

// DefaultOptions returns the standard mainnet configuration.
func DefaultOptions() Options {
	return Options{
		Network:       types.Mainnet,
		FeeRate:       DefaultFeeRate,
		DustThreshold: DefaultDustThreshold,
		Strategy:      SelectLargestFirst,
		Version:       DefaultVersion,
	}
}

// UTXO is a spendable candidate supplied by an external wallet or indexer.
type UTXO struct {
	TxID          types.Hash `json:"txid"`
	Vout          uint32     `json:"vout"`
	Value         uint64     `json:"value"`
	Script        []byte     `json:"script"`
	Confirmations uint64     `json:"confirmations"`
}

// Outpoint returns the UTXO's outpoint.
func (u UTXO) Outpoint() types.Outpoint {
	return types.Outpoint{TxID: u.TxID, Vout: u.Vout}
}

// Selection is the outcome of coin selection.
type Selection struct {
	UTXOs  []UTXO
	Total  uint64 // sum of selected values
	Fee    uint64 // estimated fee the selection budgets for
	Change uint64 // leftover after target+fee; 0 when below dust
}

// Builder accumulates outputs and funding, then assembles a transaction.
// A Builder is not safe for concurrent use; independent builders are.
type Builder struct {
	opts    Options
	pool    []UTXO
	inputs  []Input
	outputs []Output
}

// NewBuilder creates a builder, filling unset options with defaults.
func NewBuilder(opts Options) *Builder {
	if opts.Network.Name == "" {
		opts.Network = types.Mainnet
	}
	if opts.FeeRate == 0 {
		opts.FeeRate = DefaultFeeRate
	}
	if opts.DustThreshold == 0 {
		opts.DustThreshold = DefaultDustThreshold
	}
	if opts.Strategy == "" {
		opts.Strategy = SelectLargestFirst
	}
	if opts.Version == 0 {
		opts.Version = DefaultVersion
	}
	return &Builder{opts: opts}
}

// AddUTXO registers a spendable candidate for automatic coin selection.
func (b *Builder) AddUTXO(u UTXO) *Builder {
	b.pool = append(b.pool, u)
	return b
}

// AddUTXOs registers several spendable candidates.
func (b *Builder) AddUTXOs(us []UTXO) *Builder {
	b.pool = append(b.pool, us...)
	return b
}

// AddInput registers an already-chosen input. Explicit inputs and the
// candidate pool are mutually exclusive: once any explicit input exists,
// Build skips coin selection entirely.
func (b *Builder) AddInput(u UTXO) *Builder {
	b.inputs = append(b.inputs, Input{
		PrevTxID: u.TxID,
		Vout:     u.Vout,
		Sequence: b.sequence(),
		Value:    u.Value,
	})
	return b
}

// AddOutput appends a payment with an explicit locking script.
func (b *Builder) AddOutput(value uint64, lockScript []byte) *Builder {
	b.outputs = append(b.outputs, Output{Value: value, Script: lockScript})
	return b
}

// AddP2PKHOutput appends a payment to a base58check address.
// Returns ErrInvalidAddress if the address fails to decode or its version
// byte does not belong to the configured network.
func (b *Builder) AddP2PKHOutput(addr string, value uint64) error {
	a, err := types.DecodeAddress(addr)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidAddress, err)
	}
	if !b.opts.Network.IsAddressVersion(a.Version) {
		return fmt.Errorf("%w: version %#x is not valid on %s", ErrInvalidAddress, a.Version, b.opts.Network.Name)
	}
	b.outputs = append(b.outputs, Output{
		Value:   value,
		Script:  script.PayToAddress(b.opts.Network, a),
		Address: addr,
	})
	return nil
}

// AddOpReturnOutput appends a zero-value unspendable data-carrier output.
func (b *Builder) AddOpReturnOutput(data []byte) error {
	return b.AddDataOutput(data)
}

// AddDataOutput appends an OP_RETURN output carrying one or more pushes
// (e.g. a protocol tag followed by a payload).
func (b *Builder) AddDataOutput(chunks ...[]byte) error {
	s, err := script.NullData(chunks...)
	if err != nil {
		return err
	}
	b.outputs = append(b.outputs, Output{Value: 0, Script: s})
	return nil
}

// AddMultisigOutput appends an m-of-n multisig payment.
// Surfaces script.ErrThreshold when threshold exceeds the key count.
func (b *Builder) AddMultisigOutput(value uint64, threshold int, pubKeys [][]byte, sortedKeys bool) error {
	s, err := script.Multisig(threshold, pubKeys, sortedKeys)
	if err != nil {
		return err
	}
	b.outputs = append(b.outputs, Output{Value: value, Script: s})
	return nil
}

// SelectCoins orders the candidate pool by the configured strategy and
// accumulates UTXOs until their value covers target plus the estimated fee
// for the transaction shape implied so far (current outputs plus a change
// output). Returns ErrInsufficientFunds when the pool is exhausted first.
func (b *Builder) SelectCoins(target uint64) (*Selection, error) {
	candidates := b.orderedPool()

	numOutputs := len(b.outputs) + 1 // room for change
	sel := &Selection{}
	for _, u := range candidates {
		if u.Value == 0 {
			continue
		}
		sel.UTXOs = append(sel.UTXOs, u)
		sel.Total += u.Value
		sel.Fee = EstimateFee(len(sel.UTXOs), numOutputs, b.opts.FeeRate)
		if sel.Total >= target+sel.Fee {
			change := sel.Total - target - sel.Fee
			if change >= b.opts.DustThreshold {
				sel.Change = change
			}
			// Sub-dust leftover is absorbed into the fee rather than
			// producing an uneconomical output.
			return sel, nil
		}
	}

	var have uint64
	for _, u := range b.pool {
		have += u.Value
	}
	return nil, fmt.Errorf("%w: have %d, need %d plus fees", ErrInsufficientFunds, have, target)
}

// Build assembles the final transaction. With no explicit inputs it runs
// coin selection against the configured outputs and appends a change
// output when change clears the dust threshold and a change address is
// set. The result is a detached snapshot; the builder can keep mutating
// without affecting it.
func (b *Builder) Build() (*BuiltTransaction, error) {
	if len(b.outputs) == 0 {
		return nil, ErrNoOutputs
	}

	t := Transaction{
		Version:  b.opts.Version,
		LockTime: b.opts.LockTime,
		Outputs:  make([]Output, len(b.outputs)),
	}
	copy(t.Outputs, b.outputs)

	target, err := t.TotalOutputValue()
	if err != nil {
		return nil, err
	}

	var totalIn, change uint64
	switch {
	case len(b.inputs) > 0:
		t.Inputs = make([]Input, len(b.inputs))
		copy(t.Inputs, b.inputs)
		for i := range t.Inputs {
			totalIn += t.Inputs[i].Value
		}
		if totalIn > 0 && totalIn < target {
			return nil, fmt.Errorf("%w: explicit inputs carry %d, outputs need %d", ErrInsufficientFunds, totalIn, target)
		}
	case len(b.pool) > 0:
		sel, err := b.SelectCoins(target)
		if err != nil {
			return nil, err
		}
		for _, u := range sel.UTXOs {
			t.Inputs = append(t.Inputs, Input{
				PrevTxID: u.TxID,
				Vout:     u.Vout,
				Sequence: b.sequence(),
				Value:    u.Value,
			})
		}
		totalIn = sel.Total
		if sel.Change > 0 && b.opts.ChangeAddress != "" {
			a, err := types.DecodeAddress(b.opts.ChangeAddress)
			if err != nil {
				return nil, fmt.Errorf("%w: change: %v", ErrInvalidAddress, err)
			}
			change = sel.Change
			t.Outputs = append(t.Outputs, Output{
				Value:   change,
				Script:  script.PayToAddress(b.opts.Network, a),
				Address: b.opts.ChangeAddress,
			})
		}
	default:
		return nil, fmt.Errorf("%w: no inputs or candidates supplied", ErrInsufficientFunds)
	}

	raw := t.Serialize()
	var fee uint64
	if totalIn > 0 {
		fee = totalIn - target - change
	}
	return &BuiltTransaction{
		Tx:     t,
		Raw:    raw,
		TxID:   t.TxID(),
		Size:   len(raw),
		Fee:    fee,
		Change: change,
	}, nil
}

// BuiltTransaction is the immutable outcome of Build.
type BuiltTransaction struct {
	Tx     Transaction
	Raw    []byte
	TxID   types.Hash
	Size   int
	Fee    uint64 // total input value minus total output value
	Change uint64
}

func (b *Builder) sequence() uint32 {
	if b.opts.EnableRBF {
		return SequenceRBF
	}
	return SequenceFinal
}

// orderedPool returns a copy of the candidate pool ordered per strategy.
func (b *Builder) orderedPool() []UTXO {
	out := make([]UTXO, len(b.pool))
	copy(out, b.pool)

	switch b.opts.Strategy {
	case SelectSmallestFirst:
		sort.SliceStable(out, func(i, j int) bool { return out[i].Value < out[j].Value })
	case SelectOldestFirst:
		sort.SliceStable(out, func(i, j int) bool { return out[i].Confirmations > out[j].Confirmations })
	case SelectRandom:
		rng := b.opts.Rand
		if rng == nil {
			rng = rand.New(rand.NewSource(time.Now().UnixNano()))
		}
		rng.Shuffle(len(out), func(i, j int) { out[i], out[j] = out[j], out[i] })
	default: // SelectLargestFirst
		sort.SliceStable(out, func(i, j int) bool { return out[i].Value > out[j].Value })
	}
	return out
}
