package rpc

import (
	"crypto/rand"
	"encoding/binary"

	"github.com/shalu066900/pykms/internal/wire"
)

// BindRequest is a parsed Bind PDU: the negotiation request for one or
// more presentation contexts.
type BindRequest struct {
	Header       CommonHeader
	MaxXmitFrag  uint16
	MaxRecvFrag  uint16
	AssocGroupID uint32
	Contexts     []requestedContext
}

type requestedContext struct {
	ContextID      uint16
	AbstractSyntax wire.GUID
	// TransferSyntaxes lists every transfer syntax the client offered
	// for this context; the framer accepts the first NDR match.
	TransferSyntaxes []wire.GUID
}

// DecodeBind parses a Bind PDU body (the reader positioned right after
// the common header).
func DecodeBind(header CommonHeader, r *wire.Reader) (BindRequest, error) {
	maxXmit, err := r.ReadU16LE()
	if err != nil {
		return BindRequest{}, err
	}
	maxRecv, err := r.ReadU16LE()
	if err != nil {
		return BindRequest{}, err
	}
	assocGroup, err := r.ReadU32LE()
	if err != nil {
		return BindRequest{}, err
	}
	nContextElem, err := r.ReadU8()
	if err != nil {
		return BindRequest{}, err
	}
	if _, err := r.ReadBytes(3); err != nil { // reserved
		return BindRequest{}, err
	}

	contexts := make([]requestedContext, 0, nContextElem)
	for i := uint8(0); i < nContextElem; i++ {
		contextID, err := r.ReadU16LE()
		if err != nil {
			return BindRequest{}, err
		}
		nTransferSyn, err := r.ReadU8()
		if err != nil {
			return BindRequest{}, err
		}
		if _, err := r.ReadBytes(1); err != nil { // reserved
			return BindRequest{}, err
		}
		abstractUUID, err := r.ReadGUID()
		if err != nil {
			return BindRequest{}, err
		}
		if _, err := r.ReadBytes(4); err != nil { // abstract syntax version (major+minor)
			return BindRequest{}, err
		}
		transferSyntaxes := make([]wire.GUID, 0, nTransferSyn)
		for j := uint8(0); j < nTransferSyn; j++ {
			tsUUID, err := r.ReadGUID()
			if err != nil {
				return BindRequest{}, err
			}
			if _, err := r.ReadBytes(4); err != nil { // transfer syntax version
				return BindRequest{}, err
			}
			transferSyntaxes = append(transferSyntaxes, tsUUID)
		}
		contexts = append(contexts, requestedContext{
			ContextID:        contextID,
			AbstractSyntax:   abstractUUID,
			TransferSyntaxes: transferSyntaxes,
		})
	}

	return BindRequest{
		Header:       header,
		MaxXmitFrag:  maxXmit,
		MaxRecvFrag:  maxRecv,
		AssocGroupID: assocGroup,
		Contexts:     contexts,
	}, nil
}

// Negotiate evaluates each requested context against the KMS interface
// and NDR transfer syntax, producing the PresentationContext list the
// server keeps (for Request validation) and the BindAck result codes to
// send back.
func Negotiate(req BindRequest) []PresentationContext {
	out := make([]PresentationContext, 0, len(req.Contexts))
	for _, c := range req.Contexts {
		pc := PresentationContext{ContextID: c.ContextID, AbstractSyntax: c.AbstractSyntax, Result: PresResultProviderRejection}
		if c.AbstractSyntax == KMSInterfaceUUID {
			for _, ts := range c.TransferSyntaxes {
				if ts == NDRTransferSyntaxUUID {
					pc.TransferSyntax = ts
					pc.Result = PresResultAcceptance
					break
				}
			}
		}
		out = append(out, pc)
	}
	return out
}

// secondaryAddress is the BindAck sec_addr field: port 135, the RPC
// endpoint mapper's well-known port, NUL-terminated.
const secondaryAddress = "135"

// EncodeBindAck builds a BindAck PDU for the given negotiated contexts.
// assocGroupID is the incoming value if non-zero, or a freshly allocated
// one (the client tolerates any non-zero value).
func EncodeBindAck(callID uint32, assocGroupID uint32, maxXmitFrag, maxRecvFrag uint16, contexts []PresentationContext) []byte {
	if assocGroupID == 0 {
		var b [4]byte
		_, _ = rand.Read(b[:])
		assocGroupID = binary.LittleEndian.Uint32(b[:]) | 1
	}
	body := wire.NewWriter()
	body.WriteU16LE(maxXmitFrag)
	body.WriteU16LE(maxRecvFrag)
	body.WriteU32LE(assocGroupID)

	secAddr := secondaryAddress + "\x00"
	body.WriteU16LE(uint16(len(secAddr)))
	body.WriteBytes([]byte(secAddr))
	// Pad to 4-byte alignment measured from the start of the PDU body.
	if pad := (4 - body.Len()%4) % 4; pad > 0 {
		body.WriteBytes(make([]byte, pad))
	}

	body.WriteU8(uint8(len(contexts)))
	body.WriteBytes(make([]byte, 3)) // reserved
	for _, pc := range contexts {
		body.WriteU16LE(pc.Result)
		body.WriteU16LE(0) // reason
		body.WriteGUID(pc.TransferSyntax)
		body.WriteU32LE(2) // transfer syntax version 2.0
	}

	header := CommonHeader{
		PType:    PTypeBindAck,
		PFCFlags: PFCFirstFrag | PFCLastFrag,
		FragLen:  uint16(commonHeaderSize + body.Len()),
		AuthLen:  0,
		CallID:   callID,
	}
	out := wire.NewWriter()
	encodeCommonHeader(out, header)
	out.WriteBytes(body.Bytes())
	return out.Bytes()
}
