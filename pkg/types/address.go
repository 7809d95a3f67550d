package types

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/stackmint/stackmint-core/pkg/base58"
	"github.com/stackmint/stackmint-core/pkg/crypto"
)

// AddressHashSize is the length of the hash160 payload in an address.
const AddressHashSize = 20

// ErrAddressFormat reports a base58check payload that is not a version
// byte followed by a 20-byte hash.
var ErrAddressFormat = errors.New("address: payload must be 21 bytes")

// Address is a version byte plus a 20-byte hash160 payload.
// Its text form is the base58check encoding of the two together.
type Address struct {
	Version byte
	Hash    [AddressHashSize]byte
}

// NewAddress builds an address from a version byte and hash160 payload.
func NewAddress(version byte, hash [AddressHashSize]byte) Address {
	return Address{Version: version, Hash: hash}
}

// AddressFromPubKey derives the pay-to-pubkey-hash address of a serialized
// public key on the given network.
func AddressFromPubKey(net Network, pubKey []byte) Address {
	return Address{Version: net.PubKeyHashVersion, Hash: crypto.Hash160(pubKey)}
}

// AddressFromScript derives the pay-to-script-hash address of a locking
// script on the given network.
func AddressFromScript(net Network, script []byte) Address {
	return Address{Version: net.ScriptHashVersion, Hash: crypto.Hash160(script)}
}

// DecodeAddress parses a base58check address string.
// Returns base58.ErrDecode / base58.ErrChecksum for malformed text and
// ErrAddressFormat when the payload is not exactly 21 bytes.
func DecodeAddress(s string) (Address, error) {
	payload, err := base58.CheckDecode(s)
	if err != nil {
		return Address{}, fmt.Errorf("decode address %q: %w", s, err)
	}
	if len(payload) != 1+AddressHashSize {
		return Address{}, fmt.Errorf("%w, got %d", ErrAddressFormat, len(payload))
	}
	a := Address{Version: payload[0]}
	copy(a.Hash[:], payload[1:])
	return a, nil
}

// IsZero returns true if the address is the zero value.
func (a Address) IsZero() bool {
	return a == Address{}
}

// IsPayToScriptHash reports whether the address carries a script hash on
// the given network.
func (a Address) IsPayToScriptHash(net Network) bool {
	return a.Version == net.ScriptHashVersion
}

// String returns the base58check-encoded address.
func (a Address) String() string {
	payload := make([]byte, 1+AddressHashSize)
	payload[0] = a.Version
	copy(payload[1:], a.Hash[:])
	return base58.CheckEncode(payload)
}

// MarshalJSON encodes the address as its base58check string.
func (a Address) MarshalJSON() ([]byte, error) {
	return json.Marshal(a.String())
}

// UnmarshalJSON decodes a base58check string into an address.
func (a *Address) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	if s == "" {
		*a = Address{}
		return nil
	}
	parsed, err := DecodeAddress(s)
	if err != nil {
		return err
	}
	*a = parsed
	return nil
}
