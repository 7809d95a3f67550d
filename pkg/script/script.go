// Package script assembles the canonical locking-script templates used by
// the transaction builder: pay-to-pubkey-hash, pay-to-script-hash,
// OP_RETURN data carriers and m-of-n multisig.
package script

import (
	"bytes"
	"errors"
	"fmt"
	"sort"

	"github.com/stackmint/stackmint-core/pkg/types"
)

// Script opcodes (Bitcoin wire values).
const (
	Op0             = 0x00
	OpPushData1     = 0x4c
	OpPushData2     = 0x4d
	OpPushData4     = 0x4e
	Op1             = 0x51
	Op16            = 0x60
	OpReturn        = 0x6a
	OpDup           = 0x76
	OpEqual         = 0x87
	OpEqualVerify   = 0x88
	OpHash160       = 0xa9
	OpCheckSig      = 0xac
	OpCheckMultiSig = 0xae
)

// MaxDataCarrierSize caps the payload of a single OP_RETURN push.
const MaxDataCarrierSize = 80

// Script construction failure sentinels.
var (
	// ErrThreshold reports a multisig threshold outside 1..len(keys).
	ErrThreshold = errors.New("script: threshold exceeds key count")
	// ErrDataTooLarge reports an OP_RETURN push beyond MaxDataCarrierSize.
	ErrDataTooLarge = errors.New("script: data push too large")
)

// PayToPubKeyHash returns the canonical P2PKH locking script:
// OP_DUP OP_HASH160 <20-byte hash> OP_EQUALVERIFY OP_CHECKSIG.
func PayToPubKeyHash(hash [types.AddressHashSize]byte) []byte {
	s := make([]byte, 0, 25)
	s = append(s, OpDup, OpHash160, types.AddressHashSize)
	s = append(s, hash[:]...)
	s = append(s, OpEqualVerify, OpCheckSig)
	return s
}

// PayToScriptHash returns the canonical P2SH locking script:
// OP_HASH160 <20-byte hash> OP_EQUAL.
func PayToScriptHash(hash [types.AddressHashSize]byte) []byte {
	s := make([]byte, 0, 23)
	s = append(s, OpHash160, types.AddressHashSize)
	s = append(s, hash[:]...)
	s = append(s, OpEqual)
	return s
}

// PayToAddress returns the locking script matching the address version on
// the given network: P2SH for the script-hash version, P2PKH otherwise.
func PayToAddress(net types.Network, addr types.Address) []byte {
	if addr.IsPayToScriptHash(net) {
		return PayToScriptHash(addr.Hash)
	}
	return PayToPubKeyHash(addr.Hash)
}

// NullData returns an unspendable OP_RETURN script carrying one or more
// length-prefixed data pushes. A protocol tag, when used, is simply the
// first chunk.
func NullData(chunks ...[]byte) ([]byte, error) {
	s := []byte{OpReturn}
	for _, c := range chunks {
		if len(c) > MaxDataCarrierSize {
			return nil, fmt.Errorf("%w: %d bytes (max %d)", ErrDataTooLarge, len(c), MaxDataCarrierSize)
		}
		s = appendPush(s, c)
	}
	return s, nil
}

// Multisig returns an m-of-n locking script:
// OP_m <pubkey>... OP_n OP_CHECKMULTISIG.
// When sortedKeys is set, keys are ordered lexicographically before
// encoding so any permutation of the same key set yields the same script.
func Multisig(threshold int, pubKeys [][]byte, sortedKeys bool) ([]byte, error) {
	if len(pubKeys) == 0 || len(pubKeys) > 16 {
		return nil, fmt.Errorf("script: key count %d out of range 1..16", len(pubKeys))
	}
	if threshold < 1 || threshold > len(pubKeys) {
		return nil, fmt.Errorf("%w: %d of %d", ErrThreshold, threshold, len(pubKeys))
	}

	keys := pubKeys
	if sortedKeys {
		keys = make([][]byte, len(pubKeys))
		copy(keys, pubKeys)
		sort.Slice(keys, func(i, j int) bool {
			return bytes.Compare(keys[i], keys[j]) < 0
		})
	}

	s := []byte{smallInt(threshold)}
	for _, k := range keys {
		s = appendPush(s, k)
	}
	s = append(s, smallInt(len(keys)), OpCheckMultiSig)
	return s, nil
}

// IsPayToPubKeyHash reports whether s matches the canonical P2PKH template.
func IsPayToPubKeyHash(s []byte) bool {
	return len(s) == 25 &&
		s[0] == OpDup && s[1] == OpHash160 && s[2] == types.AddressHashSize &&
		s[23] == OpEqualVerify && s[24] == OpCheckSig
}

// IsNullData reports whether s is an OP_RETURN data carrier.
func IsNullData(s []byte) bool {
	return len(s) >= 1 && s[0] == OpReturn
}

// ExtractPubKeyHash returns the hash160 embedded in a P2PKH script.
func ExtractPubKeyHash(s []byte) ([types.AddressHashSize]byte, bool) {
	var h [types.AddressHashSize]byte
	if !IsPayToPubKeyHash(s) {
		return h, false
	}
	copy(h[:], s[3:23])
	return h, true
}

// appendPush appends data with the minimal push encoding.
func appendPush(s, data []byte) []byte {
	n := len(data)
	switch {
	case n == 0:
		s = append(s, Op0)
		return s
	case n < OpPushData1:
		s = append(s, byte(n))
	case n <= 0xff:
		s = append(s, OpPushData1, byte(n))
	case n <= 0xffff:
		s = append(s, OpPushData2, byte(n), byte(n>>8))
	default:
		s = append(s, OpPushData4, byte(n), byte(n>>8), byte(n>>16), byte(n>>24))
	}
	return append(s, data...)
}

// smallInt encodes 1..16 as OP_1..OP_16.
func smallInt(n int) byte {
	return byte(Op1 + n - 1)
}
