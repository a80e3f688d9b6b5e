package rpc

import "github.com/shalu066900/pykms/internal/wire"

// RequestPDU is a parsed Request PDU carrying one KMS call.
type RequestPDU struct {
	Header    CommonHeader
	AllocHint uint32
	ContextID uint16
	Opnum     uint16
	Stub      []byte
}

// DecodeRequest parses a Request PDU body (reader positioned right
// after the common header). The stub is NDR-framed as a conformant
// byte array, mirroring EncodeResponse's framing on the way out: a
// 4-byte max_count header, that many data bytes, then padding to
// 4-byte alignment (measured from the start of the array, i.e. from
// max_count). Continuation fragments (PFC_FIRST_FRAG unset) carry no
// max_count of their own — they are a raw continuation of the
// previous fragment's array bytes — so the header is only read on the
// first fragment of a call.
func DecodeRequest(header CommonHeader, r *wire.Reader) (RequestPDU, error) {
	allocHint, err := r.ReadU32LE()
	if err != nil {
		return RequestPDU{}, err
	}
	contextID, err := r.ReadU16LE()
	if err != nil {
		return RequestPDU{}, err
	}
	opnum, err := r.ReadU16LE()
	if err != nil {
		return RequestPDU{}, err
	}

	if header.PFCFlags&PFCFirstFrag == 0 {
		stub, err := r.ReadBytes(r.Remaining())
		if err != nil {
			return RequestPDU{}, err
		}
		return RequestPDU{Header: header, AllocHint: allocHint, ContextID: contextID, Opnum: opnum, Stub: stub}, nil
	}

	maxCount, err := r.ReadU32LE()
	if err != nil {
		return RequestPDU{}, err
	}
	n := int(maxCount)
	last := header.PFCFlags&PFCLastFrag != 0
	if !last && n > r.Remaining() {
		// More fragments follow; this one only carries the leading
		// portion of the array.
		n = r.Remaining()
	}
	stub, err := r.ReadBytes(n)
	if err != nil {
		return RequestPDU{}, err
	}
	if last {
		if pad := (4 - (4+int(maxCount))%4) % 4; pad > 0 {
			if _, err := r.ReadBytes(pad); err != nil {
				return RequestPDU{}, err
			}
		}
	}
	return RequestPDU{
		Header:    header,
		AllocHint: allocHint,
		ContextID: contextID,
		Opnum:     opnum,
		Stub:      stub,
	}, nil
}

// EncodeResponse wraps a KMS response stub (the already-encrypted
// kmsproto.Response body) in a Response PDU, NDR-framed as a
// conformant byte array: a 4-byte max-count header followed by the
// bytes and padding to 4-byte alignment.
func EncodeResponse(callID uint32, contextID uint16, stub []byte) []byte {
	body := wire.NewWriter()
	body.WriteU32LE(0) // alloc_hint, filled in below
	body.WriteU16LE(contextID)
	body.WriteU8(0) // cancel_count
	body.WriteU8(0) // reserved

	ndr := wire.NewWriter()
	ndr.WriteU32LE(uint32(len(stub))) // conformant array max_count
	ndr.WriteBytes(stub)
	if pad := (4 - ndr.Len()%4) % 4; pad > 0 {
		ndr.WriteBytes(make([]byte, pad))
	}

	full := body.Bytes()
	allocHint := uint32(ndr.Len())
	full[0] = byte(allocHint)
	full[1] = byte(allocHint >> 8)
	full[2] = byte(allocHint >> 16)
	full[3] = byte(allocHint >> 24)

	out := wire.NewWriter()
	header := CommonHeader{
		PType:    PTypeResponse,
		PFCFlags: PFCFirstFrag | PFCLastFrag,
		FragLen:  uint16(commonHeaderSize + len(full) + ndr.Len()),
		AuthLen:  0,
		CallID:   callID,
	}
	encodeCommonHeader(out, header)
	out.WriteBytes(full)
	out.WriteBytes(ndr.Bytes())
	return out.Bytes()
}

// EncodeFault builds a Fault PDU reporting an NCA status code.
func EncodeFault(callID uint32, contextID uint16, status uint32) []byte {
	body := wire.NewWriter()
	body.WriteU32LE(0) // alloc_hint
	body.WriteU16LE(contextID)
	body.WriteU8(0) // cancel_count
	body.WriteU8(0) // reserved
	body.WriteU32LE(status)
	body.WriteU32LE(0) // reserved, aligns the fault body to 8 bytes

	out := wire.NewWriter()
	header := CommonHeader{
		PType:    PTypeFault,
		PFCFlags: PFCFirstFrag | PFCLastFrag,
		FragLen:  uint16(commonHeaderSize + body.Len()),
		AuthLen:  0,
		CallID:   callID,
	}
	encodeCommonHeader(out, header)
	out.WriteBytes(body.Bytes())
	return out.Bytes()
}
