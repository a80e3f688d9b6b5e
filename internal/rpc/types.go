// Package rpc implements the subset of the DCE/RPC 5.0 connection-oriented
// PDU format KMS requires: Bind/BindAck negotiation, Request/Response
// framing with fragmentation, and Fault reporting. It is layered
// directly on internal/wire and knows nothing about the KMS message
// payload it carries — that's internal/kmsproto's job.
package rpc

import "github.com/shalu066900/pykms/internal/wire"

// PType is the PDU type byte at common-header offset 2.
type PType uint8

const (
	PTypeRequest  PType = 0x00
	PTypeResponse PType = 0x02
	PTypeFault    PType = 0x03
	PTypeBind     PType = 0x0B
	PTypeBindAck  PType = 0x0C
)

// PFC flags (common header offset 3).
const (
	PFCFirstFrag uint8 = 0x01
	PFCLastFrag  uint8 = 0x02
)

// packedDataRepresentation is the little-endian/ASCII/IEEE NDR
// transfer format identifier KMS always negotiates.
var packedDataRepresentation = [4]byte{0x10, 0x00, 0x00, 0x00}

// NCA fault status codes (common-header-trailing Fault body field).
const (
	NCAOpRngError uint32 = 0x1C010002
	NCAProtoError uint32 = 0x1C010001
)

// Presentation-result codes used in BindAck's p_result_list.
const (
	PresResultAcceptance        uint16 = 0
	PresResultProviderRejection uint16 = 2
)

// KMS's well-known abstract and transfer syntax identifiers.
var (
	// KMSInterfaceUUID is the abstract syntax UUID
	// 51C82175-844E-4750-B0D8-EC255555BC06, version 1.0.
	KMSInterfaceUUID = guidFromCanonical("51c82175-844e-4750-b0d8-ec255555bc06")
	// NDRTransferSyntaxUUID is 8A885D04-1CEB-11C9-9FE8-08002B104860,
	// version 2.0.
	NDRTransferSyntaxUUID = guidFromCanonical("8a885d04-1ceb-11c9-9fe8-08002b104860")
)

func guidFromCanonical(s string) wire.GUID {
	var g wire.GUID
	var b [16]byte
	n := 0
	hi := -1
	for i := 0; i < len(s); i++ {
		c := s[i]
		if c == '-' {
			continue
		}
		v := hexVal(c)
		if hi == -1 {
			hi = int(v)
			continue
		}
		b[n] = byte(hi<<4) | v
		n++
		hi = -1
	}
	copy(g[:], b[:])
	return g
}

func hexVal(c byte) byte {
	switch {
	case c >= '0' && c <= '9':
		return c - '0'
	case c >= 'a' && c <= 'f':
		return c - 'a' + 10
	case c >= 'A' && c <= 'F':
		return c - 'A' + 10
	default:
		return 0
	}
}

// CommonHeader is the 16-byte header shared by every PDU type.
type CommonHeader struct {
	PType    PType
	PFCFlags uint8
	FragLen  uint16
	AuthLen  uint16
	CallID   uint32
}

// PresentationContext is one negotiated abstract+transfer syntax pair,
// created during Bind and referenced by subsequent Requests on the same
// connection.
type PresentationContext struct {
	ContextID      uint16
	AbstractSyntax wire.GUID
	TransferSyntax wire.GUID
	Result         uint16
}
