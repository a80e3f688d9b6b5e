package kmscrypto

// Version identifies one of the three KMS protocol generations, each
// carrying its own request/response cryptographic construction and
// (per spec) its own compiled-in 128-bit AES key.
type Version uint8

const (
	V4 Version = 4
	V5 Version = 5
	V6 Version = 6
)

// defaultKeys holds the compiled-in AES-128 key material per protocol
// version. These are public, documented constants baked into every KMS
// client and host — not a secret this server protects. They are the
// only key source; no configuration field overrides them.
var defaultKeys = map[Version][16]byte{
	V4: {0xCD, 0x77, 0x89, 0xC9, 0xB7, 0xDB, 0x4D, 0x7E, 0x72, 0x2D, 0x92, 0xB0, 0x7C, 0xD8, 0x7A, 0x77},
	V5: {0x05, 0x97, 0x55, 0x85, 0x0E, 0x10, 0xE3, 0x45, 0xA8, 0x79, 0xD8, 0x9D, 0x0C, 0xA5, 0xF5, 0x7E},
	V6: {0x7C, 0xE8, 0x5C, 0x66, 0x35, 0x85, 0xAE, 0x9A, 0xC2, 0xDF, 0x03, 0xA6, 0xE8, 0x76, 0x7A, 0x2B},
}

// DefaultKey returns the compiled-in key for v.
func DefaultKey(v Version) [16]byte {
	return defaultKeys[v]
}
