// Package wire implements the primitive byte codec the KMS protocol is
// layered on: fixed-width integers in both endiannesses, the mixed-endian
// GUID encoding, fixed-width NUL-padded strings, and Windows FILETIME.
//
// Every decode operation consumes from a Reader positioned over an
// in-memory buffer (KMS PDUs are small and fully buffered before
// decoding begins, unlike the streaming XDR codec this package is
// modeled on) and fails with ErrShortBuffer if too few bytes remain.
package wire

import (
	"encoding/binary"
	"fmt"
	"time"
)

// Reader decodes fixed-width fields from an in-memory buffer, tracking
// how many bytes have been consumed so callers can report offsets in
// error messages.
type Reader struct {
	buf []byte
	pos int
}

// NewReader wraps buf for sequential decoding.
func NewReader(buf []byte) *Reader {
	return &Reader{buf: buf}
}

// Pos returns the number of bytes consumed so far.
func (r *Reader) Pos() int { return r.pos }

// Remaining returns the number of unconsumed bytes.
func (r *Reader) Remaining() int { return len(r.buf) - r.pos }

func (r *Reader) take(n int) ([]byte, error) {
	if r.Remaining() < n {
		return nil, fmt.Errorf("%w: need %d bytes at offset %d, have %d", ErrShortBuffer, n, r.pos, r.Remaining())
	}
	b := r.buf[r.pos : r.pos+n]
	r.pos += n
	return b, nil
}

// ReadU8 reads a single byte.
func (r *Reader) ReadU8() (uint8, error) {
	b, err := r.take(1)
	if err != nil {
		return 0, err
	}
	return b[0], nil
}

// ReadU16LE reads a little-endian 16-bit unsigned integer.
func (r *Reader) ReadU16LE() (uint16, error) {
	b, err := r.take(2)
	if err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint16(b), nil
}

// ReadU16BE reads a big-endian 16-bit unsigned integer.
func (r *Reader) ReadU16BE() (uint16, error) {
	b, err := r.take(2)
	if err != nil {
		return 0, err
	}
	return binary.BigEndian.Uint16(b), nil
}

// ReadU32LE reads a little-endian 32-bit unsigned integer.
func (r *Reader) ReadU32LE() (uint32, error) {
	b, err := r.take(4)
	if err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint32(b), nil
}

// ReadU32BE reads a big-endian 32-bit unsigned integer.
func (r *Reader) ReadU32BE() (uint32, error) {
	b, err := r.take(4)
	if err != nil {
		return 0, err
	}
	return binary.BigEndian.Uint32(b), nil
}

// ReadU64LE reads a little-endian 64-bit unsigned integer.
func (r *Reader) ReadU64LE() (uint64, error) {
	b, err := r.take(8)
	if err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint64(b), nil
}

// ReadU64BE reads a big-endian 64-bit unsigned integer.
func (r *Reader) ReadU64BE() (uint64, error) {
	b, err := r.take(8)
	if err != nil {
		return 0, err
	}
	return binary.BigEndian.Uint64(b), nil
}

// ReadBytes reads n raw bytes, returning a copy so the caller may retain
// it beyond the lifetime of the underlying decode buffer.
func (r *Reader) ReadBytes(n int) ([]byte, error) {
	b, err := r.take(n)
	if err != nil {
		return nil, err
	}
	out := make([]byte, n)
	copy(out, b)
	return out, nil
}

// ReadGUID reads a 16-byte GUID in the KMS mixed-endian wire form.
// Data1/2/3 are stored little-endian on the wire and are byte-swapped
// into big-endian order for GUID's canonical in-memory layout; Data4 (the
// trailing 8 bytes) is copied verbatim since it is already big-endian on
// the wire.
func (r *Reader) ReadGUID() (GUID, error) {
	b, err := r.take(16)
	if err != nil {
		return GUID{}, err
	}
	var g GUID
	g[0], g[1], g[2], g[3] = b[3], b[2], b[1], b[0]
	g[4], g[5] = b[5], b[4]
	g[6], g[7] = b[7], b[6]
	copy(g[8:], b[8:16])
	return g, nil
}

// ReadFixedUTF16LE reads an nbytes-wide field of UTF-16LE code units,
// returning the string truncated at the first NUL code unit. Every byte
// pair from the first NUL to the end of the field must itself be zero;
// a non-zero pad byte yields ErrMalformedField (spec invariant: trailing
// padding must be all-zero, never garbage left over from a shorter prior
// value).
func (r *Reader) ReadFixedUTF16LE(nbytes int) (string, error) {
	b, err := r.take(nbytes)
	if err != nil {
		return "", err
	}
	units := nbytes / 2
	codeUnits := make([]uint16, 0, units)
	nulAt := -1
	for i := 0; i < units; i++ {
		u := binary.LittleEndian.Uint16(b[i*2 : i*2+2])
		if u == 0 && nulAt == -1 {
			nulAt = i
		}
		if nulAt == -1 {
			codeUnits = append(codeUnits, u)
		} else if u != 0 {
			return "", fmt.Errorf("%w: non-zero byte after NUL terminator in fixed UTF-16LE field", ErrMalformedField)
		}
	}
	return string(utf16Decode(codeUnits)), nil
}

// ReadFixedASCII reads an nbytes-wide NUL-padded ASCII field with the
// same trimming and validation rules as ReadFixedUTF16LE.
func (r *Reader) ReadFixedASCII(nbytes int) (string, error) {
	b, err := r.take(nbytes)
	if err != nil {
		return "", err
	}
	nulAt := -1
	for i, c := range b {
		if c == 0 && nulAt == -1 {
			nulAt = i
		}
		if nulAt != -1 && c != 0 {
			return "", fmt.Errorf("%w: non-zero byte after NUL terminator in fixed ASCII field", ErrMalformedField)
		}
	}
	if nulAt == -1 {
		return string(b), nil
	}
	return string(b[:nulAt]), nil
}

// filetimeEpoch is 1601-01-01 00:00:00 UTC, the FILETIME epoch.
var filetimeEpoch = time.Date(1601, 1, 1, 0, 0, 0, 0, time.UTC)

// ReadFileTime reads a Windows FILETIME: 100-nanosecond ticks since
// 1601-01-01 UTC, little-endian on the wire.
func (r *Reader) ReadFileTime() (time.Time, error) {
	ticks, err := r.ReadU64LE()
	if err != nil {
		return time.Time{}, err
	}
	return filetimeEpoch.Add(time.Duration(ticks) * 100), nil
}

// FileTimeTicks converts t to the raw 100-ns tick count since the
// FILETIME epoch, as stored on the wire.
func FileTimeTicks(t time.Time) uint64 {
	return uint64(t.Sub(filetimeEpoch) / 100)
}

// FileTimeFromTicks is the inverse of FileTimeTicks, used by callers
// that already have a decoded tick count (e.g. from a Request) and need
// a time.Time without re-reading the wire.
func FileTimeFromTicks(ticks uint64) time.Time {
	return filetimeEpoch.Add(time.Duration(ticks) * 100)
}

func utf16Decode(units []uint16) []rune {
	runes := make([]rune, 0, len(units))
	for i := 0; i < len(units); i++ {
		u := units[i]
		switch {
		case u < 0xD800 || u > 0xDFFF:
			runes = append(runes, rune(u))
		case u <= 0xDBFF && i+1 < len(units) && units[i+1] >= 0xDC00 && units[i+1] <= 0xDFFF:
			r := (rune(u)-0xD800)<<10 | (rune(units[i+1]) - 0xDC00) + 0x10000
			runes = append(runes, r)
			i++
		default:
			runes = append(runes, 0xFFFD)
		}
	}
	return runes
}
