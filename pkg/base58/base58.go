// Package base58 implements the Bitcoin base58 text encoding and its
// checksum-protected base58check variant.
//
// Encoding treats the input as a big-endian big integer over a 58-character
// alphabet. Leading zero bytes are not representable in the integer and are
// carried as leading '1' characters instead, so every byte string round-trips
// exactly, including empty and all-zero inputs.
package base58

import (
	"errors"
	"fmt"
	"math/big"

	"github.com/stackmint/stackmint-core/pkg/crypto"
)

const alphabet = "123456789ABCDEFGHJKLMNPQRSTUVWXYZabcdefghijkmnopqrstuvwxyz"

// Decode failure sentinels.
var (
	// ErrDecode reports a character outside the base58 alphabet.
	ErrDecode = errors.New("base58: invalid character")
	// ErrChecksum reports a base58check payload whose 4-byte checksum
	// does not match its content.
	ErrChecksum = errors.New("base58: checksum mismatch")
)

// decodeMap maps an ASCII byte to its alphabet index, or 0xff.
var decodeMap [256]byte

func init() {
	for i := range decodeMap {
		decodeMap[i] = 0xff
	}
	for i := 0; i < len(alphabet); i++ {
		decodeMap[alphabet[i]] = byte(i)
	}
}

// Encode returns the base58 encoding of b.
func Encode(b []byte) string {
	zeros := 0
	for zeros < len(b) && b[zeros] == 0 {
		zeros++
	}

	n := new(big.Int).SetBytes(b)
	radix := big.NewInt(58)
	mod := new(big.Int)

	// Worst case: log(256)/log(58) ≈ 1.37 characters per byte.
	out := make([]byte, 0, len(b)*137/100+1)
	for n.Sign() > 0 {
		n.DivMod(n, radix, mod)
		out = append(out, alphabet[mod.Int64()])
	}
	for i := 0; i < zeros; i++ {
		out = append(out, '1')
	}

	// Digits were produced least-significant first.
	for i, j := 0, len(out)-1; i < j; i, j = i+1, j-1 {
		out[i], out[j] = out[j], out[i]
	}
	return string(out)
}

// Decode returns the bytes represented by the base58 string s.
// Returns ErrDecode if s contains a character outside the alphabet.
func Decode(s string) ([]byte, error) {
	zeros := 0
	for zeros < len(s) && s[zeros] == '1' {
		zeros++
	}

	n := new(big.Int)
	radix := big.NewInt(58)
	for i := 0; i < len(s); i++ {
		d := decodeMap[s[i]]
		if d == 0xff {
			return nil, fmt.Errorf("%w: %q at offset %d", ErrDecode, s[i], i)
		}
		n.Mul(n, radix)
		n.Add(n, big.NewInt(int64(d)))
	}

	body := n.Bytes()
	out := make([]byte, zeros+len(body))
	copy(out[zeros:], body)
	return out, nil
}

// CheckEncode returns the base58check encoding of payload:
// base58(payload || sha256d(payload)[0:4]).
func CheckEncode(payload []byte) string {
	sum := crypto.Checksum(payload)
	buf := make([]byte, 0, len(payload)+4)
	buf = append(buf, payload...)
	buf = append(buf, sum[:]...)
	return Encode(buf)
}

// CheckDecode decodes a base58check string and verifies its checksum.
// Returns ErrDecode for invalid characters and ErrChecksum when the
// trailing 4 bytes do not match the payload.
func CheckDecode(s string) ([]byte, error) {
	raw, err := Decode(s)
	if err != nil {
		return nil, err
	}
	if len(raw) < 4 {
		return nil, fmt.Errorf("%w: %d bytes is too short to carry a checksum", ErrChecksum, len(raw))
	}
	payload, sum := raw[:len(raw)-4], raw[len(raw)-4:]
	want := crypto.Checksum(payload)
	if !crypto.ConstantTimeCompare(sum, want[:]) {
		return nil, ErrChecksum
	}
	return payload, nil
}
