package trackgw

// Binary-coded decimal helpers. Device identifiers, timestamps and
// the odd coordinate field arrive as packed decimal digits, two per
// byte, sometimes with an odd digit count.

// readBcd reads digits decimal digits from the reader and returns
// them as an integer. An odd count consumes the final byte's high
// nibble only; the protocols here never split a field mid-byte.
func readBcd(r *frameReader, digits int) int64 {
	var result int64
	for i := 0; i < digits/2; i++ {
		b := r.ReadU8()
		result = result*10 + int64(b>>4)
		result = result*10 + int64(b&0x0f)
	}
	if digits%2 != 0 {
		b := r.ReadU8()
		result = result*10 + int64(b>>4)
	}
	return result
}

// encodeBcd packs an even-length decimal string into BCD bytes.
// Non-digit characters produce undefined nibbles; callers validate.
func encodeBcd(digits string) []byte {
	if len(digits)%2 != 0 {
		digits = "0" + digits
	}
	out := make([]byte, len(digits)/2)
	for i := 0; i < len(out); i++ {
		out[i] = (digits[i*2]-'0')<<4 | (digits[i*2+1] - '0')
	}
	return out
}
