package trackgw

import (
	"fmt"
	"strings"
)

// hexDump renders a frame as offset-prefixed hex rows with a printable
// column, for debug logging of messages the decoders reject.
func hexDump(p []byte) string {
	var b strings.Builder
	var offset = 0

	for len(p) > 0 {
		var n = min(len(p), 16)

		fmt.Fprintf(&b, "  %03x: ", offset)

		for i := 0; i < n; i++ {
			fmt.Fprintf(&b, " %02x", p[i])
		}

		for i := n; i < 16; i++ {
			b.WriteString("   ")
		}

		b.WriteString("  ")

		for i := 0; i < n; i++ {
			if p[i] >= 0x20 && p[i] <= 0x7E {
				b.WriteByte(p[i])
			} else {
				b.WriteByte('.')
			}
		}

		b.WriteByte('\n')

		p = p[n:]
		offset += n
	}

	return b.String()
}
