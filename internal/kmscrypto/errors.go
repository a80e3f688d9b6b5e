package kmscrypto

import "errors"

var (
	// ErrAuthFailure is returned when a V4 ECB-chained hash or a V6 HMAC
	// tag does not match what the server recomputed.
	ErrAuthFailure = errors.New("kmscrypto: authentication failure")

	// ErrDecryptMismatch is returned when a V5/V6 decrypted plaintext's
	// inner version field does not match the outer request version.
	ErrDecryptMismatch = errors.New("kmscrypto: decrypt mismatch")
)
