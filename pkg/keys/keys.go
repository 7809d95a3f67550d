// Package keys handles private-key text encodings and address derivation.
// It deliberately does no signing; keys pass through here only on their way
// to an external signer.
package keys

import (
	"errors"
	"fmt"

	"github.com/decred/dcrd/dcrec/secp256k1/v4"

	"github.com/stackmint/stackmint-core/pkg/base58"
	"github.com/stackmint/stackmint-core/pkg/crypto"
	"github.com/stackmint/stackmint-core/pkg/types"
)

// PrivateKeySize is the length of a raw secp256k1 private key.
const PrivateKeySize = 32

// compressionFlag marks a WIF key whose public key serializes compressed.
const compressionFlag = 0x01

// ErrWIFFormat reports a WIF payload of unexpected shape.
var ErrWIFFormat = errors.New("wif: payload must be a version byte, 32-byte key and optional compression flag")

// EncodeWIF encodes a raw private key in wallet import format:
// base58check(version || key || [0x01 if compressed]).
func EncodeWIF(net types.Network, priv []byte, compressed bool) (string, error) {
	if len(priv) != PrivateKeySize {
		return "", fmt.Errorf("wif: key must be %d bytes, got %d", PrivateKeySize, len(priv))
	}
	payload := make([]byte, 0, 1+PrivateKeySize+1)
	payload = append(payload, net.WIFVersion)
	payload = append(payload, priv...)
	if compressed {
		payload = append(payload, compressionFlag)
	}
	s := base58.CheckEncode(payload)
	crypto.SecureZero(payload)
	return s, nil
}

// DecodeWIF decodes a wallet-import-format string into the raw key, its
// compression flag and the version byte it was encoded under.
// The caller owns the returned key bytes and should SecureZero them when
// done.
func DecodeWIF(s string) (priv []byte, compressed bool, version byte, err error) {
	payload, err := base58.CheckDecode(s)
	if err != nil {
		return nil, false, 0, fmt.Errorf("decode wif: %w", err)
	}
	defer crypto.SecureZero(payload)

	switch len(payload) {
	case 1 + PrivateKeySize:
	case 1 + PrivateKeySize + 1:
		if payload[len(payload)-1] != compressionFlag {
			return nil, false, 0, fmt.Errorf("%w: trailing byte %#x", ErrWIFFormat, payload[len(payload)-1])
		}
		compressed = true
	default:
		return nil, false, 0, fmt.Errorf("%w: got %d bytes", ErrWIFFormat, len(payload))
	}

	priv = make([]byte, PrivateKeySize)
	copy(priv, payload[1:1+PrivateKeySize])
	return priv, compressed, payload[0], nil
}

// PubKeyBytes derives the serialized public key for a raw private key.
func PubKeyBytes(priv []byte, compressed bool) ([]byte, error) {
	if len(priv) != PrivateKeySize {
		return nil, fmt.Errorf("keys: private key must be %d bytes, got %d", PrivateKeySize, len(priv))
	}
	key := secp256k1.PrivKeyFromBytes(priv)
	defer key.Zero()
	pub := key.PubKey()
	if compressed {
		return pub.SerializeCompressed(), nil
	}
	return pub.SerializeUncompressed(), nil
}

// AddressFromPrivateKey derives the pay-to-pubkey-hash address controlled
// by a raw private key on the given network.
func AddressFromPrivateKey(net types.Network, priv []byte, compressed bool) (types.Address, error) {
	pub, err := PubKeyBytes(priv, compressed)
	if err != nil {
		return types.Address{}, err
	}
	return types.AddressFromPubKey(net, pub), nil
}

// AddressFromWIF decodes a WIF string and derives its address, resolving
// the network from the WIF version byte.
func AddressFromWIF(wif string) (types.Address, error) {
	priv, compressed, version, err := DecodeWIF(wif)
	if err != nil {
		return types.Address{}, err
	}
	defer crypto.SecureZero(priv)

	var net types.Network
	switch version {
	case types.Mainnet.WIFVersion:
		net = types.Mainnet
	case types.Testnet.WIFVersion:
		net = types.Testnet
	default:
		return types.Address{}, fmt.Errorf("wif: unknown version byte %#x", version)
	}
	return AddressFromPrivateKey(net, priv, compressed)
}
