package types

import "fmt"

// Network carries the version bytes that distinguish address and key
// encodings across chains. Passed explicitly wherever an encoding
// decision is made; there is no package-level active network.
type Network struct {
	Name              string
	PubKeyHashVersion byte
	ScriptHashVersion byte
	WIFVersion        byte
}

// Standard networks.
var (
	Mainnet = Network{
		Name:              "mainnet",
		PubKeyHashVersion: 0x00,
		ScriptHashVersion: 0x05,
		WIFVersion:        0x80,
	}
	Testnet = Network{
		Name:              "testnet",
		PubKeyHashVersion: 0x6f,
		ScriptHashVersion: 0xc4,
		WIFVersion:        0xef,
	}
)

// NetworkByName resolves "mainnet" or "testnet".
func NetworkByName(name string) (Network, error) {
	switch name {
	case Mainnet.Name:
		return Mainnet, nil
	case Testnet.Name:
		return Testnet, nil
	default:
		return Network{}, fmt.Errorf("unknown network %q", name)
	}
}

// IsAddressVersion reports whether v is one of this network's address
// version bytes.
func (n Network) IsAddressVersion(v byte) bool {
	return v == n.PubKeyHashVersion || v == n.ScriptHashVersion
}
