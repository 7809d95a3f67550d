package crypto

import (
	"bytes"
	"encoding/hex"
	"strings"
	"testing"
)

// FIPS 180-4 / NIST test vectors.
func TestSha256_Vectors(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"", "e3b0c44298fc1c149afbf4c8996fb92427ae41e4649b934ca495991b7852b855"},
		{"abc", "ba7816bf8f01cfea414140de5dae2223b00361a396177a9cb410ff61f20015ad"},
		{"abcdbcdecdefdefgefghfghighijhijkijkljklmklmnlmnomnopnopq",
			"248d6a61d20638b8e5c026930c3e6039a33ce45964ff2167f6ecedd419db06c1"},
		{"The quick brown fox jumps over the lazy dog",
			"d7a8fbb307d7809469ca9abcb0082e4f8d5651e46d3cdb762d02d0bf37c9e592"},
	}

	for _, tt := range tests {
		got := Sha256([]byte(tt.in))
		if hex.EncodeToString(got[:]) != tt.want {
			t.Errorf("Sha256(%q) = %x, want %s", tt.in, got, tt.want)
		}
	}
}

// Padding boundaries: 55 bytes fits one block, 56 forces a second,
// 64 is an exact block.
func TestSha256_BlockBoundaries(t *testing.T) {
	tests := []struct {
		n    int
		want string
	}{
		{55, "9f4390f8d30c2dd92ec9f095b65e2b9ae9b0a925a5258e241c9f1e910f734318"},
		{56, "b35439a4ac6f0948b6d6f9e3c6af0f5f590ce20f1bde7090ef7970686ec6738a"},
		{64, "ffe054fe7ae0cb6dc65c3af9b61d5209f439851db43d0ba5997337df154668eb"},
	}
	for _, tt := range tests {
		in := []byte(strings.Repeat("a", tt.n))
		got := Sha256(in)
		if hex.EncodeToString(got[:]) != tt.want {
			t.Errorf("Sha256(%d*'a') = %x, want %s", tt.n, got, tt.want)
		}
	}
}

func TestSha256_Million(t *testing.T) {
	in := bytes.Repeat([]byte{'a'}, 1_000_000)
	got := Sha256(in)
	want := "cdc76e5c9914fb9281a1c7e284d73e67f1809a48a497200e046d39ccc7112cd0"
	if hex.EncodeToString(got[:]) != want {
		t.Errorf("Sha256(1M*'a') = %x, want %s", got, want)
	}
}

func TestSha256d(t *testing.T) {
	// sha256d("hello") is a widely published double-hash vector.
	got := Sha256d([]byte("hello"))
	want := "9595c9df90075148eb06860365df33584b75bff782a510c6cd4883a419833d50"
	if hex.EncodeToString(got[:]) != want {
		t.Errorf("Sha256d(hello) = %x, want %s", got, want)
	}
}

func TestChecksum(t *testing.T) {
	payload := []byte{0x00, 0x01, 0x02}
	d := Sha256d(payload)
	c := Checksum(payload)
	if !bytes.Equal(c[:], d[:4]) {
		t.Errorf("Checksum = %x, want first 4 bytes of %x", c, d)
	}
}
