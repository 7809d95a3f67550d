package crypto

// ConstantTimeCompare reports whether a and b are equal without leaking
// where they differ through timing. Slices of different length compare
// unequal in time proportional to the shorter one.
func ConstantTimeCompare(a, b []byte) bool {
	if len(a) != len(b) {
		return false
	}
	var diff byte
	for i := range a {
		diff |= a[i] ^ b[i]
	}
	return diff == 0
}

// SecureZero overwrites buf with zeros. Best-effort scrubbing for key
// material; the write is kept observable so the compiler cannot elide it.
func SecureZero(buf []byte) {
	for i := range buf {
		buf[i] = 0
	}
	// Reading the slice back keeps the zeroing live.
	if len(buf) > 0 {
		_ = buf[len(buf)-1]
	}
}
