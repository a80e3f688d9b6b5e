package kmsproto

import (
	"github.com/shalu066900/pykms/internal/wire"
)

// Response is the decoded/to-be-encoded KMS activation response
// plaintext, before the V4/V5/V6 cryptographic wrapping is applied.
type Response struct {
	Version              Version
	ClientMachineID      wire.GUID
	ResponseTimeTicks    uint64 // echoes the request's requestTime
	CurrentClientCount   uint32
	VLActivationInterval uint32 // minutes
	VLRenewalInterval    uint32 // minutes
	KMSEpid              string
	RandomSalt           [16]byte          // V5/V6 only
	HWID                 [8]byte           // V6 only
	HMACTag              [32]byte          // V6 only; neither EncodeResponse nor DecodeResponse touches it
}

// EncodeResponse serializes resp's plaintext body per spec.md §4.3. The
// returned bytes do not include the V6 HMAC trailer — callers append
// TagV6's output themselves once the ciphertext is known, since the tag
// covers the encrypted wire form, not this plaintext.
func EncodeResponse(resp Response) []byte {
	w := wire.NewWriter()
	w.WriteU32LE(uint32(resp.Version))
	w.WriteGUID(resp.ClientMachineID)
	w.WriteU64LE(resp.ResponseTimeTicks)
	w.WriteU32LE(resp.CurrentClientCount)
	w.WriteU32LE(resp.VLActivationInterval)
	w.WriteU32LE(resp.VLRenewalInterval)

	epidUTF16Bytes := utf16ByteLen(resp.KMSEpid) + 2 // + NUL terminator
	w.WriteU16LE(uint16(epidUTF16Bytes))
	w.WriteFixedUTF16LE(resp.KMSEpid, epidUTF16Bytes)

	if resp.Version == VersionV5 || resp.Version == VersionV6 {
		w.WriteBytes(resp.RandomSalt[:])
	}
	if resp.Version == VersionV6 {
		w.WriteBytes(resp.HWID[:])
	}
	return w.Bytes()
}

// utf16ByteLen returns the number of bytes s occupies once encoded as
// UTF-16LE (2 bytes per code unit; code points above the BMP take two
// code units).
func utf16ByteLen(s string) int {
	n := 0
	for _, r := range s {
		if r > 0xFFFF {
			n += 4
		} else {
			n += 2
		}
	}
	return n
}
