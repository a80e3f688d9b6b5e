package kmscrypto

import (
	"bytes"
	"crypto/aes"
)

// HashV4 computes the AES-ECB-chained 16-byte authentication hash over
// body: starting from a zero 16-byte state, each block is XORed into the
// running state and AES-encrypted under key; the final state is the
// hash. This is the V4 request/response integrity check — the request
// travels in the clear and this hash is its only protection.
func HashV4(key [16]byte, body []byte) ([16]byte, error) {
	block, err := aes.NewCipher(key[:])
	if err != nil {
		return [16]byte{}, err
	}
	padded := pad(body)
	var state [16]byte
	for off := 0; off < len(padded); off += blockSize {
		var xored [16]byte
		for i := range xored {
			xored[i] = state[i] ^ padded[off+i]
		}
		block.Encrypt(state[:], xored[:])
	}
	return state, nil
}

// VerifyV4 recomputes the V4 hash over body and compares it against tag,
// returning ErrAuthFailure on mismatch.
func VerifyV4(key [16]byte, body []byte, tag [16]byte) error {
	got, err := HashV4(key, body)
	if err != nil {
		return err
	}
	if !bytes.Equal(got[:], tag[:]) {
		return ErrAuthFailure
	}
	return nil
}
