package rpc

import (
	"bytes"
	"testing"

	"github.com/shalu066900/pykms/internal/wire"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func buildBindBody(t *testing.T, abstractSyntax, transferSyntax wire.GUID) []byte {
	t.Helper()
	w := wire.NewWriter()
	w.WriteU16LE(5840) // max_xmit_frag
	w.WriteU16LE(5840) // max_recv_frag
	w.WriteU32LE(0)    // assoc_group_id
	w.WriteU8(1)       // n_context_elem
	w.WriteBytes(make([]byte, 3))
	w.WriteU16LE(0) // context_id
	w.WriteU8(1)    // n_transfer_syn
	w.WriteBytes(make([]byte, 1))
	w.WriteGUID(abstractSyntax)
	w.WriteU32LE(0x00010000) // version 1.0
	w.WriteGUID(transferSyntax)
	w.WriteU32LE(0x00020000) // version 2.0
	return w.Bytes()
}

func TestBindAcceptsKMSInterface(t *testing.T) {
	body := buildBindBody(t, KMSInterfaceUUID, NDRTransferSyntaxUUID)
	req, err := DecodeBind(CommonHeader{PType: PTypeBind, CallID: 1}, wire.NewReader(body))
	require.NoError(t, err)
	require.Len(t, req.Contexts, 1)

	acked := Negotiate(req)
	require.Len(t, acked, 1)
	assert.Equal(t, PresResultAcceptance, acked[0].Result)
	assert.Equal(t, NDRTransferSyntaxUUID, acked[0].TransferSyntax)
}

func TestBindRejectsUnknownInterface(t *testing.T) {
	var otherInterface wire.GUID
	otherInterface[0] = 0xFF
	body := buildBindBody(t, otherInterface, NDRTransferSyntaxUUID)
	req, err := DecodeBind(CommonHeader{PType: PTypeBind, CallID: 1}, wire.NewReader(body))
	require.NoError(t, err)

	acked := Negotiate(req)
	require.Len(t, acked, 1)
	assert.Equal(t, PresResultProviderRejection, acked[0].Result)
}

func TestBindAckEncodingRoundTripsThroughReadFrame(t *testing.T) {
	contexts := []PresentationContext{{ContextID: 0, Result: PresResultAcceptance, TransferSyntax: NDRTransferSyntaxUUID}}
	frame := EncodeBindAck(42, 7, 5840, 5840, contexts)

	header, body, err := ReadFrame(bytes.NewReader(frame))
	require.NoError(t, err)
	assert.Equal(t, PTypeBindAck, header.PType)
	assert.Equal(t, uint32(42), header.CallID)

	maxXmit, err := body.ReadU16LE()
	require.NoError(t, err)
	assert.Equal(t, uint16(5840), maxXmit)
}

func TestDecodeCommonHeaderRejectsBadVersion(t *testing.T) {
	w := wire.NewWriter()
	w.WriteU8(4) // wrong rpc_vers
	w.WriteU8(0)
	w.WriteU8(uint8(PTypeBind))
	w.WriteU8(PFCFirstFrag | PFCLastFrag)
	w.WriteBytes(packedDataRepresentation[:])
	w.WriteU16LE(16)
	w.WriteU16LE(0)
	w.WriteU32LE(1)

	_, _, err := ReadFrame(bytes.NewReader(w.Bytes()))
	assert.ErrorIs(t, err, wire.ErrMalformedField)
}

func TestRequestDecodeAndOpnumValidation(t *testing.T) {
	stub := []byte("stubdata")
	body := wire.NewWriter()
	body.WriteU32LE(20) // alloc_hint
	body.WriteU16LE(0)  // context_id
	body.WriteU16LE(0)  // opnum 0 is the only valid KMS opnum
	body.WriteU32LE(uint32(len(stub)))
	body.WriteBytes(stub)
	// pad the conformant array (4-byte max_count + data) to 4-byte alignment
	if pad := (4 - (4+len(stub))%4) % 4; pad > 0 {
		body.WriteBytes(make([]byte, pad))
	}

	header := CommonHeader{PType: PTypeRequest, PFCFlags: PFCFirstFrag | PFCLastFrag, CallID: 3}
	pdu, err := DecodeRequest(header, wire.NewReader(body.Bytes()))
	require.NoError(t, err)
	assert.Equal(t, uint16(0), pdu.Opnum)
	assert.Equal(t, stub, pdu.Stub)
}

func TestResponseEncodeDecodeRoundTrip(t *testing.T) {
	stub := []byte("kms-response-stub-bytes")
	frame := EncodeResponse(99, 0, stub)

	header, body, err := ReadFrame(bytes.NewReader(frame))
	require.NoError(t, err)
	assert.Equal(t, PTypeResponse, header.PType)
	assert.Equal(t, uint32(99), header.CallID)

	if _, err := body.ReadU32LE(); err != nil { // alloc_hint
		t.Fatal(err)
	}
	if _, err := body.ReadU16LE(); err != nil { // context_id
		t.Fatal(err)
	}
	if _, err := body.ReadU8(); err != nil { // cancel_count
		t.Fatal(err)
	}
	if _, err := body.ReadU8(); err != nil { // reserved
		t.Fatal(err)
	}
	maxCount, err := body.ReadU32LE()
	require.NoError(t, err)
	assert.Equal(t, uint32(len(stub)), maxCount)
	got, err := body.ReadBytes(len(stub))
	require.NoError(t, err)
	assert.Equal(t, stub, got)
}

func TestFaultEncodesNCAOpRngError(t *testing.T) {
	frame := EncodeFault(5, 0, NCAOpRngError)
	header, body, err := ReadFrame(bytes.NewReader(frame))
	require.NoError(t, err)
	assert.Equal(t, PTypeFault, header.PType)

	if _, err := body.ReadU32LE(); err != nil { // alloc_hint
		t.Fatal(err)
	}
	if _, err := body.ReadU16LE(); err != nil { // context_id
		t.Fatal(err)
	}
	if _, err := body.ReadU8(); err != nil {
		t.Fatal(err)
	}
	if _, err := body.ReadU8(); err != nil {
		t.Fatal(err)
	}
	status, err := body.ReadU32LE()
	require.NoError(t, err)
	assert.Equal(t, NCAOpRngError, status)
}

func TestReassemblerAccumulatesAcrossFragments(t *testing.T) {
	reasm := NewReassembler()

	first := RequestPDU{
		Header:    CommonHeader{PType: PTypeRequest, PFCFlags: PFCFirstFrag, CallID: 7},
		ContextID: 0,
		Opnum:     0,
		Stub:      []byte("part-one-"),
	}
	_, ok := reasm.Feed(first)
	assert.False(t, ok)

	last := RequestPDU{
		Header:    CommonHeader{PType: PTypeRequest, PFCFlags: PFCLastFrag, CallID: 7},
		ContextID: 0,
		Opnum:     0,
		Stub:      []byte("part-two"),
	}
	complete, ok := reasm.Feed(last)
	require.True(t, ok)
	assert.Equal(t, []byte("part-one-part-two"), complete.Stub)
}

func TestSplitResponseSinglesWhenSmall(t *testing.T) {
	frames := SplitResponse(1, 0, []byte("short"), 4096)
	assert.Len(t, frames, 1)
}

func TestSplitResponseFragmentsWhenOversized(t *testing.T) {
	stub := bytes.Repeat([]byte("x"), 500)
	frames := SplitResponse(1, 0, stub, 128)
	require.Greater(t, len(frames), 1)

	var reassembled []byte
	reasm := NewReassembler()
	for _, frame := range frames {
		header, body, err := ReadFrame(bytes.NewReader(frame))
		require.NoError(t, err)
		if _, err := body.ReadU32LE(); err != nil {
			t.Fatal(err)
		}
		contextID, err := body.ReadU16LE()
		require.NoError(t, err)
		if _, err := body.ReadU8(); err != nil {
			t.Fatal(err)
		}
		if _, err := body.ReadU8(); err != nil {
			t.Fatal(err)
		}
		chunk, err := body.ReadBytes(body.Remaining())
		require.NoError(t, err)
		complete, ok := reasm.Feed(RequestPDU{Header: header, ContextID: contextID, Stub: chunk})
		if ok {
			reassembled = complete.Stub
		}
	}
	assert.Equal(t, stub, reassembled)
}
