package trackgw

// bitCheck reports whether bit n of value is set, counting from the
// least significant bit.
func bitCheck(value uint64, n uint) bool {
	return value&(1<<n) != 0
}

// bitsTo extracts the n least significant bits of value.
func bitsTo(value uint64, n uint) uint64 {
	return value & ((1 << n) - 1)
}
