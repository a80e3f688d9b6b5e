package wire

import (
	"bytes"
	"encoding/binary"
	"time"
)

// Writer accumulates encoded fields into a growable byte buffer, mirroring
// Reader's field set on the encode side.
type Writer struct {
	buf bytes.Buffer
}

// NewWriter returns an empty Writer.
func NewWriter() *Writer {
	return &Writer{}
}

// Bytes returns the accumulated output.
func (w *Writer) Bytes() []byte { return w.buf.Bytes() }

// Len returns the number of bytes written so far.
func (w *Writer) Len() int { return w.buf.Len() }

// WriteU8 appends a single byte.
func (w *Writer) WriteU8(v uint8) { w.buf.WriteByte(v) }

// WriteU16LE appends a little-endian 16-bit unsigned integer.
func (w *Writer) WriteU16LE(v uint16) {
	var b [2]byte
	binary.LittleEndian.PutUint16(b[:], v)
	w.buf.Write(b[:])
}

// WriteU16BE appends a big-endian 16-bit unsigned integer.
func (w *Writer) WriteU16BE(v uint16) {
	var b [2]byte
	binary.BigEndian.PutUint16(b[:], v)
	w.buf.Write(b[:])
}

// WriteU32LE appends a little-endian 32-bit unsigned integer.
func (w *Writer) WriteU32LE(v uint32) {
	var b [4]byte
	binary.LittleEndian.PutUint32(b[:], v)
	w.buf.Write(b[:])
}

// WriteU32BE appends a big-endian 32-bit unsigned integer.
func (w *Writer) WriteU32BE(v uint32) {
	var b [4]byte
	binary.BigEndian.PutUint32(b[:], v)
	w.buf.Write(b[:])
}

// WriteU64LE appends a little-endian 64-bit unsigned integer.
func (w *Writer) WriteU64LE(v uint64) {
	var b [8]byte
	binary.LittleEndian.PutUint64(b[:], v)
	w.buf.Write(b[:])
}

// WriteU64BE appends a big-endian 64-bit unsigned integer.
func (w *Writer) WriteU64BE(v uint64) {
	var b [8]byte
	binary.BigEndian.PutUint64(b[:], v)
	w.buf.Write(b[:])
}

// WriteBytes appends raw bytes verbatim.
func (w *Writer) WriteBytes(b []byte) { w.buf.Write(b) }

// WriteGUID appends g in the KMS mixed-endian wire form: Data1/2/3
// byte-swapped to little-endian, Data4 copied verbatim.
func (w *Writer) WriteGUID(g GUID) {
	var b [16]byte
	b[0], b[1], b[2], b[3] = g[3], g[2], g[1], g[0]
	b[4], b[5] = g[5], g[4]
	b[6], b[7] = g[7], g[6]
	copy(b[8:], g[8:])
	w.buf.Write(b[:])
}

// WriteFixedUTF16LE appends s encoded as UTF-16LE, NUL-padded (and
// truncated, should it not fit) to exactly nbytes.
func (w *Writer) WriteFixedUTF16LE(s string, nbytes int) {
	units := utf16Encode([]rune(s))
	field := make([]byte, nbytes)
	for i, u := range units {
		if i*2+2 > nbytes {
			break
		}
		binary.LittleEndian.PutUint16(field[i*2:i*2+2], u)
	}
	w.buf.Write(field)
}

// WriteFixedASCII appends s, NUL-padded (and truncated) to exactly nbytes.
func (w *Writer) WriteFixedASCII(s string, nbytes int) {
	field := make([]byte, nbytes)
	copy(field, s)
	w.buf.Write(field)
}

// WriteFileTime appends t as a little-endian FILETIME tick count.
func (w *Writer) WriteFileTime(t time.Time) {
	w.WriteU64LE(FileTimeTicks(t))
}

func utf16Encode(runes []rune) []uint16 {
	units := make([]uint16, 0, len(runes))
	for _, r := range runes {
		switch {
		case r < 0 || r > 0x10FFFF || (r >= 0xD800 && r <= 0xDFFF):
			units = append(units, 0xFFFD)
		case r <= 0xFFFF:
			units = append(units, uint16(r))
		default:
			r -= 0x10000
			units = append(units, uint16(0xD800+(r>>10)), uint16(0xDC00+(r&0x3FF)))
		}
	}
	return units
}
