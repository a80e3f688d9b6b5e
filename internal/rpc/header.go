package rpc

import (
	"fmt"

	"github.com/shalu066900/pykms/internal/wire"
)

const commonHeaderSize = 16

// decodeCommonHeader parses the 16-byte header shared by every PDU and
// returns it along with the reader positioned right after it.
func decodeCommonHeader(r *wire.Reader) (CommonHeader, error) {
	verMajor, err := r.ReadU8()
	if err != nil {
		return CommonHeader{}, err
	}
	verMinor, err := r.ReadU8()
	if err != nil {
		return CommonHeader{}, err
	}
	if verMajor != 5 || verMinor != 0 {
		return CommonHeader{}, fmt.Errorf("%w: unsupported RPC version %d.%d", wire.ErrMalformedField, verMajor, verMinor)
	}
	ptypeByte, err := r.ReadU8()
	if err != nil {
		return CommonHeader{}, err
	}
	pfcFlags, err := r.ReadU8()
	if err != nil {
		return CommonHeader{}, err
	}
	if _, err := r.ReadBytes(4); err != nil { // packed_drep, not validated byte-for-byte
		return CommonHeader{}, err
	}
	fragLen, err := r.ReadU16LE()
	if err != nil {
		return CommonHeader{}, err
	}
	authLen, err := r.ReadU16LE()
	if err != nil {
		return CommonHeader{}, err
	}
	callID, err := r.ReadU32LE()
	if err != nil {
		return CommonHeader{}, err
	}
	return CommonHeader{
		PType:    PType(ptypeByte),
		PFCFlags: pfcFlags,
		FragLen:  fragLen,
		AuthLen:  authLen,
		CallID:   callID,
	}, nil
}

func encodeCommonHeader(w *wire.Writer, h CommonHeader) {
	w.WriteU8(5) // rpc_vers
	w.WriteU8(0) // rpc_vers_minor
	w.WriteU8(uint8(h.PType))
	w.WriteU8(h.PFCFlags)
	w.WriteBytes(packedDataRepresentation[:])
	w.WriteU16LE(h.FragLen)
	w.WriteU16LE(h.AuthLen)
	w.WriteU32LE(h.CallID)
}
