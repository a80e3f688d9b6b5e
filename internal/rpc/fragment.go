package rpc

import "github.com/shalu066900/pykms/internal/wire"

// Reassembler accumulates Request PDU fragments by call_id until the
// fragment marked PFC_LAST_FRAG arrives, handing back the concatenated
// stub data. KMS activation requests fit in a single fragment in
// practice, but the framer does not assume that.
type Reassembler struct {
	pending map[uint32]*pendingRequest
}

type pendingRequest struct {
	contextID uint16
	opnum     uint16
	stub      []byte
}

// NewReassembler returns an empty Reassembler.
func NewReassembler() *Reassembler {
	return &Reassembler{pending: make(map[uint32]*pendingRequest)}
}

// Feed consumes one Request PDU fragment. It returns ok=true once the
// final fragment for that call_id has arrived, along with the fully
// reassembled RequestPDU.
func (r *Reassembler) Feed(pdu RequestPDU) (complete RequestPDU, ok bool) {
	callID := pdu.Header.CallID
	first := pdu.Header.PFCFlags&PFCFirstFrag != 0
	last := pdu.Header.PFCFlags&PFCLastFrag != 0

	p, exists := r.pending[callID]
	if first || !exists {
		p = &pendingRequest{contextID: pdu.ContextID, opnum: pdu.Opnum}
		r.pending[callID] = p
	}
	p.stub = append(p.stub, pdu.Stub...)

	if !last {
		return RequestPDU{}, false
	}
	delete(r.pending, callID)
	return RequestPDU{
		Header:    pdu.Header,
		ContextID: p.contextID,
		Opnum:     p.opnum,
		Stub:      p.stub,
	}, true
}

// SplitResponse builds the Response PDU(s) carrying stub. When stub fits
// in one fragment of maxFrag bytes it returns EncodeResponse's single
// PDU; otherwise it cuts the raw stub into chunks and gives each its own
// Response header with the correct PFC_FIRST_FRAG/PFC_LAST_FRAG flags
// and frag_length (these chunks carry no NDR max_count prefix). Callers
// write the returned frames to the wire in order.
//
// In practice a KMS response body (well under 300 bytes) never exceeds
// a realistic max_xmit_frag, so this only matters for adversarially
// small negotiated fragment sizes.
func SplitResponse(callID uint32, contextID uint16, stub []byte, maxFrag int) [][]byte {
	const responseHeaderOverhead = commonHeaderSize + 8 // alloc_hint+context_id+cancel_count+reserved
	chunkSize := maxFrag - responseHeaderOverhead
	if chunkSize <= 0 || len(stub) <= chunkSize {
		return [][]byte{EncodeResponse(callID, contextID, stub)}
	}

	var frames [][]byte
	for offset := 0; offset < len(stub); offset += chunkSize {
		end := offset + chunkSize
		if end > len(stub) {
			end = len(stub)
		}
		chunk := stub[offset:end]

		flags := uint8(0)
		if offset == 0 {
			flags |= PFCFirstFrag
		}
		if end == len(stub) {
			flags |= PFCLastFrag
		}

		body := wire.NewWriter()
		body.WriteU32LE(uint32(len(stub) - offset))
		body.WriteU16LE(contextID)
		body.WriteU8(0)
		body.WriteU8(0)
		body.WriteBytes(chunk)

		out := wire.NewWriter()
		header := CommonHeader{
			PType:    PTypeResponse,
			PFCFlags: flags,
			FragLen:  uint16(commonHeaderSize + body.Len()),
			CallID:   callID,
		}
		encodeCommonHeader(out, header)
		out.WriteBytes(body.Bytes())
		frames = append(frames, out.Bytes())
	}
	return frames
}
