package types

import (
	"encoding/hex"
	"encoding/json"
	"errors"
	"testing"

	"github.com/stackmint/stackmint-core/pkg/base58"
)

func mustHash20(t *testing.T, s string) [AddressHashSize]byte {
	t.Helper()
	b, err := hex.DecodeString(s)
	if err != nil || len(b) != AddressHashSize {
		t.Fatalf("bad hash160 literal %q", s)
	}
	var h [AddressHashSize]byte
	copy(h[:], b)
	return h
}

func TestAddress_KnownVector(t *testing.T) {
	// hash160 of the canonical uncompressed pubkey example.
	a := NewAddress(Mainnet.PubKeyHashVersion, mustHash20(t, "010966776006953d5567439e5e39f86a0d273bee"))
	want := "16UwLL9Risc3QfPqBUvKofHmBQ7wMtjvM"
	if got := a.String(); got != want {
		t.Errorf("String() = %q, want %q", got, want)
	}
}

func TestAddress_Roundtrip(t *testing.T) {
	versions := []byte{
		Mainnet.PubKeyHashVersion, Mainnet.ScriptHashVersion,
		Testnet.PubKeyHashVersion, Testnet.ScriptHashVersion,
	}
	for _, v := range versions {
		var h [AddressHashSize]byte
		for i := range h {
			h[i] = byte(i * 7)
		}
		a := NewAddress(v, h)
		back, err := DecodeAddress(a.String())
		if err != nil {
			t.Fatalf("DecodeAddress(%q): %v", a.String(), err)
		}
		if back != a {
			t.Errorf("roundtrip version %#x: got %+v, want %+v", v, back, a)
		}
	}
}

func TestDecodeAddress_CorruptedChecksum(t *testing.T) {
	a := NewAddress(Mainnet.PubKeyHashVersion, mustHash20(t, "010966776006953d5567439e5e39f86a0d273bee"))
	s := a.String()
	c := byte('2')
	if s[len(s)-1] == '2' {
		c = '3'
	}
	corrupted := s[:len(s)-1] + string(c)
	if _, err := DecodeAddress(corrupted); !errors.Is(err, base58.ErrChecksum) {
		t.Errorf("DecodeAddress(%q) err = %v, want ErrChecksum", corrupted, err)
	}
}

func TestDecodeAddress_WrongPayloadLength(t *testing.T) {
	// Valid base58check over a 20-byte payload (missing version byte).
	short := base58.CheckEncode(make([]byte, 20))
	if _, err := DecodeAddress(short); !errors.Is(err, ErrAddressFormat) {
		t.Errorf("DecodeAddress(short) err = %v, want ErrAddressFormat", err)
	}

	long := base58.CheckEncode(make([]byte, 22))
	if _, err := DecodeAddress(long); !errors.Is(err, ErrAddressFormat) {
		t.Errorf("DecodeAddress(long) err = %v, want ErrAddressFormat", err)
	}
}

func TestAddress_JSON(t *testing.T) {
	a := NewAddress(Testnet.PubKeyHashVersion, mustHash20(t, "010966776006953d5567439e5e39f86a0d273bee"))
	data, err := json.Marshal(a)
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}
	var back Address
	if err := json.Unmarshal(data, &back); err != nil {
		t.Fatalf("Unmarshal: %v", err)
	}
	if back != a {
		t.Errorf("JSON roundtrip: got %+v, want %+v", back, a)
	}
}

func TestNetworkByName(t *testing.T) {
	n, err := NetworkByName("testnet")
	if err != nil {
		t.Fatalf("NetworkByName: %v", err)
	}
	if n.PubKeyHashVersion != 0x6f || n.WIFVersion != 0xef {
		t.Errorf("testnet versions = %#x/%#x", n.PubKeyHashVersion, n.WIFVersion)
	}
	if _, err := NetworkByName("regtest"); err == nil {
		t.Error("NetworkByName(regtest) should fail")
	}
}
