package crypto

// Hash160 computes RIPEMD-160(SHA-256(data)), the digest behind standard
// pay-to-pubkey-hash and pay-to-script-hash addresses.
func Hash160(data []byte) [Ripemd160Size]byte {
	s := Sha256(data)
	return Ripemd160(s[:])
}
