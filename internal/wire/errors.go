package wire

import "errors"

// Sentinel errors returned by the byte codec. Callers use errors.Is to
// classify a failure; the RPC and dispatcher layers translate these into
// the appropriate Fault status or connection action.
var (
	// ErrShortBuffer is returned when a reader does not contain enough
	// bytes to satisfy the requested field.
	ErrShortBuffer = errors.New("wire: short buffer")

	// ErrMalformedField is returned when a field's bytes are structurally
	// present but violate a format constraint (e.g. a non-zero pad byte
	// in a fixed-width string).
	ErrMalformedField = errors.New("wire: malformed field")
)
