package kmscrypto

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
)

// EncryptV5 CBC-encrypts the padded plaintext under key using iv, and
// returns iv prepended to the ciphertext as the wire form — the IV
// travels as the first ciphertext block, per spec.
func EncryptV5(key, iv [16]byte, plaintext []byte) ([]byte, error) {
	block, err := aes.NewCipher(key[:])
	if err != nil {
		return nil, err
	}
	padded := pad(plaintext)
	out := make([]byte, blockSize+len(padded))
	copy(out[:blockSize], iv[:])
	mode := cipher.NewCBCEncrypter(block, iv[:])
	mode.CryptBlocks(out[blockSize:], padded)
	return out, nil
}

// DecryptV5 takes the wire form produced by EncryptV5 (leading IV block
// followed by ciphertext), decrypts it, and strips the pad.
func DecryptV5(key [16]byte, wire []byte) ([]byte, error) {
	if len(wire) < blockSize || (len(wire)-blockSize)%blockSize != 0 {
		return nil, ErrAuthFailure
	}
	block, err := aes.NewCipher(key[:])
	if err != nil {
		return nil, err
	}
	iv := wire[:blockSize]
	ciphertext := wire[blockSize:]
	if len(ciphertext) == 0 {
		return nil, ErrAuthFailure
	}
	plaintext := make([]byte, len(ciphertext))
	mode := cipher.NewCBCDecrypter(block, iv)
	mode.CryptBlocks(plaintext, ciphertext)
	return unpad(plaintext)
}

// RandomSalt draws a fresh 16-byte CSPRNG value, used both as the V5/V6
// response IV and as the echoed randomSalt wire field.
func RandomSalt() ([16]byte, error) {
	var salt [16]byte
	if _, err := rand.Read(salt[:]); err != nil {
		return salt, err
	}
	return salt, nil
}

// CheckVersionEcho verifies the first 4 bytes of a decrypted plaintext
// (the inner version field) match the outer request version, per the V5
// decryption fidelity check.
func CheckVersionEcho(plaintext []byte, wantVersion uint32) error {
	if len(plaintext) < 4 {
		return ErrDecryptMismatch
	}
	var got uint32
	got = uint32(plaintext[0]) | uint32(plaintext[1])<<8 | uint32(plaintext[2])<<16 | uint32(plaintext[3])<<24
	if got != wantVersion {
		return ErrDecryptMismatch
	}
	return nil
}
