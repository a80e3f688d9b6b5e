// Package kmsproto decodes a KMS activation Request and encodes the
// matching Response, per spec.md §4.3. It operates purely on the NDR
// byte-array payload the RPC framer hands it — it knows nothing about
// PDUs, fragmentation, or sockets.
package kmsproto

import (
	"fmt"

	"github.com/shalu066900/pykms/internal/wire"
)

// Version is the KMS protocol generation carried in the request's
// version field (major<<16 | minor).
type Version uint32

const (
	VersionV4 Version = 0x00040000
	VersionV5 Version = 0x00050000
	VersionV6 Version = 0x00060000
)

// Major returns the version's major component (4, 5, or 6).
func (v Version) Major() uint32 { return uint32(v) >> 16 }

// ErrUnknownVersion is returned when a request's version field is not
// one of the three supported generations.
var ErrUnknownVersion = fmt.Errorf("kmsproto: %w", wire.ErrMalformedField)

const (
	machineNameBytes = 128
	hwInfoBytes      = 8

	// plaintextSizeV4V5 and plaintextSizeV6 are the total request
	// plaintext sizes before AES padding (spec.md §4.3).
	plaintextSizeV4V5 = 236
	plaintextSizeV6   = 236 + hwInfoBytes
)

// Request is the decoded KMS activation request.
type Request struct {
	Version                 Version
	IsClientVM              uint32
	LicenseStatus           uint32
	GraceTime               uint32
	ApplicationID           wire.GUID
	SkuID                   wire.GUID
	KMSCountedID            wire.GUID
	ClientMachineID         wire.GUID
	RequiredClientCount     uint32
	RequestTimeTicks        uint64 // raw FILETIME ticks, preserved for exact echo
	PreviousClientMachineID wire.GUID
	MachineName             string
	HWInfo                  [hwInfoBytes]byte // V6 only
}

// DecodeRequest parses a KMS request from its plaintext NDR byte-array
// payload (already AES-decrypted / hash-verified by the caller for
// V5/V6/V4 respectively).
func DecodeRequest(body []byte) (Request, error) {
	r := wire.NewReader(body)
	var req Request

	rawVersion, err := r.ReadU32LE()
	if err != nil {
		return Request{}, err
	}
	req.Version = Version(rawVersion)
	switch req.Version {
	case VersionV4, VersionV5, VersionV6:
	default:
		return Request{}, fmt.Errorf("%w: version 0x%08x", ErrUnknownVersion, rawVersion)
	}

	if req.IsClientVM, err = r.ReadU32LE(); err != nil {
		return Request{}, err
	}
	if req.LicenseStatus, err = r.ReadU32LE(); err != nil {
		return Request{}, err
	}
	if req.GraceTime, err = r.ReadU32LE(); err != nil {
		return Request{}, err
	}
	if req.ApplicationID, err = r.ReadGUID(); err != nil {
		return Request{}, err
	}
	if req.SkuID, err = r.ReadGUID(); err != nil {
		return Request{}, err
	}
	if req.KMSCountedID, err = r.ReadGUID(); err != nil {
		return Request{}, err
	}
	if req.ClientMachineID, err = r.ReadGUID(); err != nil {
		return Request{}, err
	}
	if req.RequiredClientCount, err = r.ReadU32LE(); err != nil {
		return Request{}, err
	}
	if req.RequestTimeTicks, err = r.ReadU64LE(); err != nil {
		return Request{}, err
	}
	if req.PreviousClientMachineID, err = r.ReadGUID(); err != nil {
		return Request{}, err
	}
	if req.MachineName, err = r.ReadFixedUTF16LE(machineNameBytes); err != nil {
		return Request{}, err
	}
	if req.Version == VersionV6 {
		hwInfo, err := r.ReadBytes(hwInfoBytes)
		if err != nil {
			return Request{}, err
		}
		copy(req.HWInfo[:], hwInfo)
	}
	return req, nil
}

// PlaintextSize returns the expected unpadded plaintext size for the
// request's version (spec.md §4.3).
func (r Request) PlaintextSize() int {
	if r.Version == VersionV6 {
		return plaintextSizeV6
	}
	return plaintextSizeV4V5
}
