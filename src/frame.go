package trackgw

/*------------------------------------------------------------------
 *
 * Purpose:	Frame codec for the Huabao (JT/T 808 style) binary
 *		protocol.
 *
 * Description:	A message starts and ends with a delimiter byte, 0x7E
 *		in the standard framing. Delimiter and escape bytes
 *		occurring inside the payload are stuffed:
 *
 *			0x7E  ->  7D 02
 *			0x7D  ->  7D 01
 *
 *		Some terminal firmware uses an alternative framing
 *		with delimiter 0xE7 and two escape bytes:
 *
 *			0xE7  ->  E6 02		0xE6  ->  E6 01
 *			0x3D  ->  3E 02		0x3E  ->  3E 01
 *
 *		The framing in use is decided by the first byte of the
 *		stream. Messages starting with '(' are plain text up
 *		to the matching ')' and pass through unmodified.
 *
 *---------------------------------------------------------------*/

import (
	"bytes"
	"errors"
)

// errNeedMoreData tells the transport the buffer does not yet hold a
// complete message; it keeps the bytes and retries after the next
// read.
var errNeedMoreData = errors.New("incomplete frame")

const (
	frameDelimiter    = 0x7e
	frameEscape       = 0x7d
	altFrameDelimiter = 0xe7
)

// HuabaoFrameDecoder carves one unescaped message per call out of a
// raw byte stream. The delimiter choice is latched per connection
// from the first byte seen, so each connection gets its own decoder.
type HuabaoFrameDecoder struct {
	alternative bool
	latched     bool
}

func NewHuabaoFrameDecoder() *HuabaoFrameDecoder {
	return &HuabaoFrameDecoder{}
}

// Alternative reports whether the connection latched the 0xE7
// framing. Meaningless before the first successful Decode.
func (d *HuabaoFrameDecoder) Alternative() bool {
	return d.alternative
}

// Decode extracts the next complete message from data. It returns
// the unescaped frame, delimiters included, and the number of raw
// bytes consumed. errNeedMoreData means no complete message yet.
func (d *HuabaoFrameDecoder) Decode(data []byte) ([]byte, int, error) {
	if len(data) < 2 {
		return nil, 0, errNeedMoreData
	}

	if data[0] == '(' {
		end := bytes.IndexByte(data[1:], ')')
		if end < 0 {
			return nil, 0, errNeedMoreData
		}
		consumed := end + 2
		return data[:consumed], consumed, nil
	}

	delimiter := data[0]
	if !d.latched {
		d.alternative = delimiter == altFrameDelimiter
		d.latched = true
	}

	end := bytes.IndexByte(data[1:], delimiter)
	if end < 0 {
		return nil, 0, errNeedMoreData
	}
	consumed := end + 2

	result := make([]byte, 0, consumed)
	for i := 0; i < consumed; i++ {
		b := data[i]
		switch {
		case d.alternative && (b == 0xe6 || b == 0x3e):
			i++
			if i >= consumed {
				break
			}
			switch {
			case b == 0xe6 && data[i] == 0x01:
				result = append(result, 0xe6)
			case b == 0xe6 && data[i] == 0x02:
				result = append(result, 0xe7)
			case b == 0x3e && data[i] == 0x01:
				result = append(result, 0x3e)
			case b == 0x3e && data[i] == 0x02:
				result = append(result, 0x3d)
			}
			// unexpected second byte: drop the pair
		case !d.alternative && b == frameEscape:
			i++
			if i >= consumed {
				break
			}
			switch data[i] {
			case 0x01:
				result = append(result, frameEscape)
			case 0x02:
				result = append(result, frameDelimiter)
			}
		default:
			result = append(result, b)
		}
	}

	return result, consumed, nil
}

// HuabaoFrameEncoder applies the byte-stuffing pass to an outbound
// message. The leading and trailing delimiter bytes stay unescaped.
type HuabaoFrameEncoder struct{}

func NewHuabaoFrameEncoder() *HuabaoFrameEncoder {
	return &HuabaoFrameEncoder{}
}

func (e *HuabaoFrameEncoder) Encode(msg []byte) []byte {
	if len(msg) == 0 {
		return msg
	}
	alternative := msg[0] == altFrameDelimiter

	out := make([]byte, 0, len(msg)+8)
	for i, b := range msg {
		last := i == len(msg)-1
		switch {
		case alternative && (b == 0xe6 || b == 0x3d || b == 0x3e):
			if b == 0xe6 {
				out = append(out, 0xe6)
			} else {
				out = append(out, 0x3e)
			}
			if b == 0x3d {
				out = append(out, 0x02)
			} else {
				out = append(out, 0x01)
			}
		case alternative && b == altFrameDelimiter && i != 0 && !last:
			out = append(out, 0xe6, 0x02)
		case !alternative && b == frameEscape:
			out = append(out, frameEscape, 0x01)
		case !alternative && b == frameDelimiter && i != 0 && !last:
			out = append(out, frameEscape, 0x02)
		default:
			out = append(out, b)
		}
	}
	return out
}

// lineFrameDecoder yields newline-terminated text messages, used by
// the TR900 protocol. The terminator is stripped.
type lineFrameDecoder struct{}

func (lineFrameDecoder) Decode(data []byte) ([]byte, int, error) {
	end := bytes.IndexByte(data, '\n')
	if end < 0 {
		return nil, 0, errNeedMoreData
	}
	frame := data[:end]
	if len(frame) > 0 && frame[len(frame)-1] == '\r' {
		frame = frame[:len(frame)-1]
	}
	return frame, end + 1, nil
}

// charFrameDecoder yields messages terminated by a single delimiter
// character, used by the ManPower protocol (';').
type charFrameDecoder struct {
	delimiter byte
}

func (d charFrameDecoder) Decode(data []byte) ([]byte, int, error) {
	end := bytes.IndexByte(data, d.delimiter)
	if end < 0 {
		return nil, 0, errNeedMoreData
	}
	return data[:end], end + 1, nil
}
