package kmsproto

import (
	"testing"

	"github.com/shalu066900/pykms/internal/wire"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func buildRequestBody(t *testing.T, version Version, machineName string) []byte {
	t.Helper()
	w := wire.NewWriter()
	w.WriteU32LE(uint32(version))
	w.WriteU32LE(0) // isClientVm
	w.WriteU32LE(0) // licenseStatus
	w.WriteU32LE(0) // graceTime
	w.WriteGUID(wire.GUID{0x01})
	w.WriteGUID(wire.GUID{0x02})
	w.WriteGUID(wire.GUID{0x03})
	w.WriteGUID(wire.GUID{0x04})
	w.WriteU32LE(25) // requiredClientCount
	w.WriteU64LE(132000000000000000)
	w.WriteGUID(wire.GUID{}) // previousClientMachineId
	w.WriteFixedUTF16LE(machineName, 128)
	if version == VersionV6 {
		w.WriteBytes(make([]byte, 8))
	}
	return w.Bytes()
}

func TestDecodeRequestV4(t *testing.T) {
	body := buildRequestBody(t, VersionV4, "TESTPC")
	require.Len(t, body, plaintextSizeV4V5)

	req, err := DecodeRequest(body)
	require.NoError(t, err)
	assert.Equal(t, VersionV4, req.Version)
	assert.Equal(t, "TESTPC", req.MachineName)
	assert.Equal(t, uint32(25), req.RequiredClientCount)
	assert.Equal(t, uint64(132000000000000000), req.RequestTimeTicks)
}

func TestDecodeRequestV6IncludesHWInfo(t *testing.T) {
	body := buildRequestBody(t, VersionV6, "TESTPC")
	require.Len(t, body, plaintextSizeV6)

	req, err := DecodeRequest(body)
	require.NoError(t, err)
	assert.Equal(t, VersionV6, req.Version)
}

func TestDecodeRequestRejectsUnknownVersion(t *testing.T) {
	body := buildRequestBody(t, VersionV4, "TESTPC")
	body[0] = 0x99 // corrupt version low byte
	_, err := DecodeRequest(body)
	assert.ErrorIs(t, err, ErrUnknownVersion)
}

func TestEncodeDecodeResponseRoundTrip(t *testing.T) {
	resp := Response{
		Version:              VersionV5,
		ClientMachineID:      wire.GUID{0x04},
		ResponseTimeTicks:    132000000000000000,
		CurrentClientCount:   50,
		VLActivationInterval: 120,
		VLRenewalInterval:    10080,
		KMSEpid:              "05426-00206-100-270206-00-2024",
	}
	resp.RandomSalt[0] = 0xAA

	body := EncodeResponse(resp)
	got, err := DecodeResponse(body, 0)
	require.NoError(t, err)

	assert.Equal(t, resp.Version, got.Version)
	assert.Equal(t, resp.ClientMachineID, got.ClientMachineID)
	assert.Equal(t, resp.ResponseTimeTicks, got.ResponseTimeTicks)
	assert.Equal(t, resp.CurrentClientCount, got.CurrentClientCount)
	assert.Equal(t, resp.KMSEpid, got.KMSEpid)
	assert.Equal(t, resp.RandomSalt, got.RandomSalt)
}
