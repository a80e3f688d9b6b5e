// Package epid synthesizes the KMS EPID string and per-process HWID, per
// spec §4.5.
package epid

import (
	"crypto/rand"
	"fmt"
	"io"
	"time"

	"github.com/shalu066900/pykms/internal/wire"
)

// groupID is the KMS group ID field (BBBBB); it is not product-specific
// and has a single well-known value across the protocol.
const groupID = "00206"

// Generate builds an EPID of the form
// AAAAA-BBBBB-CCC-DDDEEE-FF-GGGG for appID.
//
// If fixed is non-empty, it is returned unchanged (operator override —
// generation is deterministic). Otherwise the platform ID and SKU style
// code come from the compiled-in catalog, the license count and
// language fields are drawn from rng, and the year is now's UTC year.
func Generate(appID wire.GUID, fixed string, rng io.Reader, now time.Time) (string, error) {
	if fixed != "" {
		return fixed, nil
	}
	p := lookup(appID)

	var randBytes [2]byte
	if _, err := io.ReadFull(rng, randBytes[:]); err != nil {
		return "", fmt.Errorf("epid: read random fields: %w", err)
	}
	licenseCount := int(randBytes[0]) % 1000 // CCC: 3-digit field; one random byte gives 000-255
	langHigh := int(randBytes[1]) % 100      // FF: 2-digit

	return fmt.Sprintf("%s-%s-%03d-%s-%02d-%04d",
		p.platformID, groupID, licenseCount, p.skuStyle, langHigh, now.Year()), nil
}

// HWID resolves the 8-byte hardware identifier: overrideHex (already
// hex-decoded by the caller) if non-nil, otherwise a fresh CSPRNG value
// generated once at process start and retained for every response.
func HWID(override []byte) ([8]byte, error) {
	var h [8]byte
	if override != nil {
		if len(override) != 8 {
			return h, fmt.Errorf("epid: hwid override must be exactly 8 bytes, got %d", len(override))
		}
		copy(h[:], override)
		return h, nil
	}
	if _, err := rand.Read(h[:]); err != nil {
		return h, fmt.Errorf("epid: generate hwid: %w", err)
	}
	return h, nil
}
