package crypto

import (
	"encoding/hex"
	"strings"
	"testing"
)

// Vectors from the RIPEMD-160 reference publication.
func TestRipemd160_Vectors(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"", "9c1185a5c5e9fc54612808977ee8f548b2258d31"},
		{"a", "0bdc9d2d256b3ee9daae347be6f4dc835a467ffe"},
		{"abc", "8eb208f7e05d987a9b044a8e98c6b087f15a0bfc"},
		{"message digest", "5d0689ef49d2fae572b881b123a85ffa21595f36"},
		{"abcdefghijklmnopqrstuvwxyz", "f71c27109c692c1b56bbdceb5b9d2865b3708dbc"},
		{"abcdbcdecdefdefgefghfghighijhijkijkljklmklmnlmnomnopnopq",
			"12a053384a9c0c88e405a06c27dcf49ada62eb2b"},
		{"ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz0123456789",
			"b0e20b6e3116640286ed3a87a5713079b21f5189"},
	}

	for _, tt := range tests {
		got := Ripemd160([]byte(tt.in))
		if hex.EncodeToString(got[:]) != tt.want {
			t.Errorf("Ripemd160(%q) = %x, want %s", tt.in, got, tt.want)
		}
	}
}

func TestRipemd160_EightDigits(t *testing.T) {
	// 8 repetitions of "1234567890", from the reference vector set.
	in := []byte(strings.Repeat("1234567890", 8))
	got := Ripemd160(in)
	want := "9b752e45573d4b39f4dbd3323cab82bf63326bfb"
	if hex.EncodeToString(got[:]) != want {
		t.Errorf("Ripemd160(8*digits) = %x, want %s", got, want)
	}
}

func TestHash160_KnownPubKey(t *testing.T) {
	// The canonical uncompressed-pubkey example: its hash160 is the
	// payload of address 16UwLL9Risc3QfPqBUvKofHmBQ7wMtjvM.
	pubKey, err := hex.DecodeString(
		"0450863ad64a87ae8a2fe83c1af1a8403cb53f53e486d8511dad8a04887e5b2352" +
			"2cd470243453a299fa9e77237716103abc11a1df38855ed6f2ee187e9c582ba6")
	if err != nil {
		t.Fatalf("DecodeString: %v", err)
	}
	got := Hash160(pubKey)
	want := "010966776006953d5567439e5e39f86a0d273bee"
	if hex.EncodeToString(got[:]) != want {
		t.Errorf("Hash160 = %x, want %s", got, want)
	}
}
