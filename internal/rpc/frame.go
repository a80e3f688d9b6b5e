package rpc

import (
	"fmt"
	"io"

	"github.com/shalu066900/pykms/internal/wire"
)

// ReadFrame reads exactly one PDU (header plus body) from r, using the
// common header's frag_length to size the read. It returns the parsed
// header and a wire.Reader positioned at the start of the PDU-specific
// body.
func ReadFrame(r io.Reader) (CommonHeader, *wire.Reader, error) {
	headerBuf := make([]byte, commonHeaderSize)
	if _, err := io.ReadFull(r, headerBuf); err != nil {
		return CommonHeader{}, nil, err
	}
	header, err := decodeCommonHeader(wire.NewReader(headerBuf))
	if err != nil {
		return CommonHeader{}, nil, err
	}
	if int(header.FragLen) < commonHeaderSize {
		return CommonHeader{}, nil, fmt.Errorf("%w: frag_length %d shorter than header", wire.ErrMalformedField, header.FragLen)
	}

	bodyLen := int(header.FragLen) - commonHeaderSize
	bodyBuf := make([]byte, bodyLen)
	if bodyLen > 0 {
		if _, err := io.ReadFull(r, bodyBuf); err != nil {
			return CommonHeader{}, nil, err
		}
	}
	return header, wire.NewReader(bodyBuf), nil
}
