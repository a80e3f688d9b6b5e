package wire

// GUID is a 128-bit identifier held in canonical big-endian byte order
// (the order String prints). On the wire it uses the Windows mixed-endian
// representation: Data1, Data2, Data3 are little-endian; Data4 (the
// trailing 8 bytes) is big-endian, byte order reproduced verbatim.
//
// Parsers must never reorder GUID bytes ad hoc — always round-trip
// through ReadGUID/WriteGUID so the mixed endianness stays in one place.
type GUID [16]byte

// String renders the GUID in the canonical
// "AAAAAAAA-BBBB-CCCC-DDDD-EEEEEEEEEEEE" hyphenated hex form.
func (g GUID) String() string {
	const hex = "0123456789abcdef"
	buf := make([]byte, 36)
	pos := 0
	writeHex := func(b byte) {
		buf[pos] = hex[b>>4]
		buf[pos+1] = hex[b&0x0f]
		pos += 2
	}
	for i, b := range g {
		switch i {
		case 4, 6, 8, 10:
			buf[pos] = '-'
			pos++
		}
		writeHex(b)
	}
	return string(buf)
}
