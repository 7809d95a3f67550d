package types

import (
	"errors"
	"fmt"
	"math/big"
)

// Amount is an arbitrary-precision, non-negative token quantity in the
// token's smallest unit. The zero value is zero. Amounts are immutable;
// arithmetic returns new values.
//
// Floating point is never used for token quantities. JSON encodes amounts
// as decimal strings so consumers cannot silently round them.
type Amount struct {
	v *big.Int
}

// ErrNegativeAmount reports arithmetic that would produce a quantity
// below zero.
var ErrNegativeAmount = errors.New("amount: result would be negative")

// NewAmount returns an Amount holding v.
func NewAmount(v uint64) Amount {
	return Amount{v: new(big.Int).SetUint64(v)}
}

// ParseAmount parses a non-negative decimal string.
func ParseAmount(s string) (Amount, error) {
	v, ok := new(big.Int).SetString(s, 10)
	if !ok {
		return Amount{}, fmt.Errorf("amount: invalid decimal %q", s)
	}
	if v.Sign() < 0 {
		return Amount{}, fmt.Errorf("amount: %q is negative", s)
	}
	return Amount{v: v}, nil
}

func (a Amount) bigInt() *big.Int {
	if a.v == nil {
		return new(big.Int)
	}
	return a.v
}

// Add returns a + b.
func (a Amount) Add(b Amount) Amount {
	return Amount{v: new(big.Int).Add(a.bigInt(), b.bigInt())}
}

// Sub returns a - b, or ErrNegativeAmount if b exceeds a.
func (a Amount) Sub(b Amount) (Amount, error) {
	r := new(big.Int).Sub(a.bigInt(), b.bigInt())
	if r.Sign() < 0 {
		return Amount{}, fmt.Errorf("%w: %s - %s", ErrNegativeAmount, a, b)
	}
	return Amount{v: r}, nil
}

// Cmp compares a and b: -1 if a < b, 0 if equal, 1 if a > b.
func (a Amount) Cmp(b Amount) int {
	return a.bigInt().Cmp(b.bigInt())
}

// IsZero reports whether the amount is zero.
func (a Amount) IsZero() bool {
	return a.bigInt().Sign() == 0
}

// Float64 returns the amount as a float64 for valuation display only.
// Never use the result for balance arithmetic.
func (a Amount) Float64() float64 {
	f, _ := new(big.Float).SetInt(a.bigInt()).Float64()
	return f
}

// String returns the decimal representation.
func (a Amount) String() string {
	return a.bigInt().String()
}

// MarshalJSON encodes the amount as a decimal string.
func (a Amount) MarshalJSON() ([]byte, error) {
	return []byte(`"` + a.String() + `"`), nil
}

// UnmarshalJSON decodes a decimal string (or bare number) into an amount.
func (a *Amount) UnmarshalJSON(data []byte) error {
	s := string(data)
	if len(s) >= 2 && s[0] == '"' && s[len(s)-1] == '"' {
		s = s[1 : len(s)-1]
	}
	if s == "" || s == "null" {
		*a = Amount{}
		return nil
	}
	parsed, err := ParseAmount(s)
	if err != nil {
		return err
	}
	*a = parsed
	return nil
}
