package trackgw

/*------------------------------------------------------------------
 *
 * Purpose:	Cursor-style reader over a decoded frame.
 *
 * Description:	Binary protocol bodies are dense sequences of
 *		big-endian fields and TLV records whose lengths come
 *		from the wire. Reads past the end saturate to zero and
 *		mark the reader short instead of failing each call;
 *		the decoder checks Short() once per message. TLV loops
 *		use Seek to land exactly on the next record no matter
 *		how much of the value was interpreted.
 *
 *---------------------------------------------------------------*/

import (
	"encoding/binary"
	"encoding/hex"
)

type frameReader struct {
	data  []byte
	pos   int
	short bool
}

func newFrameReader(data []byte) *frameReader {
	return &frameReader{data: data}
}

func (r *frameReader) Remaining() int { return len(r.data) - r.pos }
func (r *frameReader) Pos() int       { return r.pos }
func (r *frameReader) Short() bool    { return r.short }

// Seek moves the cursor to an absolute offset. Moving backward is
// allowed; TLV handlers rely on it after speculative reads.
func (r *frameReader) Seek(pos int) {
	if pos > len(r.data) {
		pos = len(r.data)
		r.short = true
	}
	if pos < 0 {
		pos = 0
	}
	r.pos = pos
}

func (r *frameReader) Skip(n int) {
	r.Seek(r.pos + n)
}

func (r *frameReader) ReadBytes(n int) []byte {
	if r.pos+n > len(r.data) {
		r.short = true
		out := make([]byte, n)
		copy(out, r.data[r.pos:])
		r.pos = len(r.data)
		return out
	}
	out := r.data[r.pos : r.pos+n]
	r.pos += n
	return out
}

func (r *frameReader) ReadU8() uint8 {
	return r.ReadBytes(1)[0]
}

func (r *frameReader) ReadI8() int8 {
	return int8(r.ReadU8())
}

func (r *frameReader) ReadU16() uint16 {
	return binary.BigEndian.Uint16(r.ReadBytes(2))
}

func (r *frameReader) ReadI16() int16 {
	return int16(r.ReadU16())
}

func (r *frameReader) ReadU32() uint32 {
	return binary.BigEndian.Uint32(r.ReadBytes(4))
}

func (r *frameReader) ReadI32() int32 {
	return int32(r.ReadU32())
}

func (r *frameReader) ReadString(n int) string {
	return string(r.ReadBytes(n))
}

func (r *frameReader) ReadHex(n int) string {
	return hex.EncodeToString(r.ReadBytes(n))
}

func (r *frameReader) PeekU8(offset int) uint8 {
	if r.pos+offset >= len(r.data) {
		return 0
	}
	return r.data[r.pos+offset]
}

func (r *frameReader) PeekU16() uint16 {
	if r.pos+2 > len(r.data) {
		return 0
	}
	return binary.BigEndian.Uint16(r.data[r.pos : r.pos+2])
}

func (r *frameReader) PeekString(n int) string {
	if r.pos+n > len(r.data) {
		n = len(r.data) - r.pos
	}
	return string(r.data[r.pos : r.pos+n])
}

// readSignedMagnitude reads a 16-bit field whose top bit carries the
// sign and the low 15 bits the magnitude. Several TLVs use this
// instead of two's complement.
func (r *frameReader) readSignedMagnitude() int {
	value := int(r.ReadU16())
	if value&0x8000 != 0 {
		return -(value & 0x7fff)
	}
	return value
}
