package trackgw

// xorChecksum is the longitudinal XOR over a message's type field
// through its last body byte.
func xorChecksum(data []byte) byte {
	var sum byte
	for _, b := range data {
		sum ^= b
	}
	return sum
}

// luhnDigit computes the check digit appended to a 14-digit IMEI
// body: double every second digit starting from the rightmost, sum
// the decimal digits, and take the tens complement.
func luhnDigit(number uint64) int {
	sum := 0
	for i := 0; number != 0; i++ {
		digit := int(number % 10)
		if i%2 == 0 {
			digit *= 2
			if digit > 9 {
				digit -= 9
			}
		}
		sum += digit
		number /= 10
	}
	return (10 - sum%10) % 10
}
