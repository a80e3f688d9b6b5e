package kmscrypto

import (
	"crypto/aes"
	"crypto/hmac"
	"crypto/sha256"
)

// DeriveHMACKeyV6 computes the V6 HMAC key per spec §4.4: derive16
// concatenates the high 8 bytes of salt with the 8-byte little-endian
// requestTime filetime tick count into one 16-byte block, which is
// encrypted once (single AES block, ECB — there is no chaining, this is
// a one-shot key-derivation primitive, not a mode of operation) under
// the V6 key to produce the 16-byte HMAC key.
func DeriveHMACKeyV6(v6Key [16]byte, salt [16]byte, requestTimeTicksLE [8]byte) ([16]byte, error) {
	block, err := aes.NewCipher(v6Key[:])
	if err != nil {
		return [16]byte{}, err
	}
	var derived [16]byte
	copy(derived[:8], salt[8:16])
	copy(derived[8:], requestTimeTicksLE[:])

	var hmacKey [16]byte
	block.Encrypt(hmacKey[:], derived[:])
	return hmacKey, nil
}

// TagV6 computes the 32-byte HMAC-SHA256 trailer over body under
// hmacKey. The dispatcher passes the encrypted response (IV plus
// ciphertext), excluding the trailer itself.
func TagV6(hmacKey [16]byte, body []byte) [32]byte {
	mac := hmac.New(sha256.New, hmacKey[:])
	mac.Write(body)
	var tag [32]byte
	copy(tag[:], mac.Sum(nil))
	return tag
}

// VerifyTagV6 recomputes the HMAC trailer and compares it against tag in
// constant time, returning ErrAuthFailure on mismatch.
func VerifyTagV6(hmacKey [16]byte, body []byte, tag [32]byte) error {
	got := TagV6(hmacKey, body)
	if !hmac.Equal(got[:], tag[:]) {
		return ErrAuthFailure
	}
	return nil
}
