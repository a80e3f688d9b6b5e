package dispatch

import (
	"bytes"
	"context"
	"testing"
	"time"

	"github.com/shalu066900/pykms/internal/identity"
	"github.com/shalu066900/pykms/internal/kmscrypto"
	"github.com/shalu066900/pykms/internal/kmsproto"
	"github.com/shalu066900/pykms/internal/store"
	"github.com/shalu066900/pykms/internal/wire"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func buildRequestPlaintext(t *testing.T, version kmsproto.Version, clientMachineID wire.GUID, skuID wire.GUID, requiredClientCount uint32, requestTimeTicks uint64, machineName string) []byte {
	t.Helper()
	w := wire.NewWriter()
	w.WriteU32LE(uint32(version))
	w.WriteU32LE(0) // isClientVM
	w.WriteU32LE(0) // licenseStatus
	w.WriteU32LE(0) // graceTime
	w.WriteGUID(wire.GUID{0xAA})
	w.WriteGUID(skuID)
	w.WriteGUID(wire.GUID{0xBB})
	w.WriteGUID(clientMachineID)
	w.WriteU32LE(requiredClientCount)
	w.WriteU64LE(requestTimeTicks)
	w.WriteGUID(wire.GUID{})
	w.WriteFixedUTF16LE(machineName, 128)
	if version == kmsproto.VersionV6 {
		w.WriteBytes(make([]byte, 8))
	}
	return w.Bytes()
}

func buildStub(t *testing.T, version kmsproto.Version, plaintext []byte) []byte {
	t.Helper()
	switch version {
	case kmsproto.VersionV4:
		tag, err := kmscrypto.HashV4(kmscrypto.DefaultKey(kmscrypto.V4), plaintext)
		require.NoError(t, err)
		return append(append([]byte{}, plaintext...), tag[:]...)
	case kmsproto.VersionV5:
		iv, err := kmscrypto.RandomSalt()
		require.NoError(t, err)
		stub, err := kmscrypto.EncryptV5(kmscrypto.DefaultKey(kmscrypto.V5), iv, plaintext)
		require.NoError(t, err)
		return stub
	default:
		iv, err := kmscrypto.RandomSalt()
		require.NoError(t, err)
		stub, err := kmscrypto.EncryptV5(kmscrypto.DefaultKey(kmscrypto.V6), iv, plaintext)
		require.NoError(t, err)
		return stub
	}
}

func TestDispatchV4RoundTrip(t *testing.T) {
	st := store.NewMemoryStore()
	ident := identity.New([8]byte{1, 2, 3, 4, 5, 6, 7, 8}, "", 50, 100)
	cfg := Config{ActivationIntervalMinutes: 120, RenewalIntervalMinutes: 10080, Now: func() time.Time { return time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC) }}

	clientID := wire.GUID{0x01, 0x02}
	plaintext := buildRequestPlaintext(t, kmsproto.VersionV4, clientID, wire.GUID{0x10}, 24, 132000000000000000, "HOST-A")
	stub := buildStub(t, kmsproto.VersionV4, plaintext)

	respStub, err := Dispatch(context.Background(), stub, ident, st, cfg)
	require.NoError(t, err)

	respPlaintext := respStub[:len(respStub)-16]
	var tag [16]byte
	copy(tag[:], respStub[len(respStub)-16:])
	require.NoError(t, kmscrypto.VerifyV4(kmscrypto.DefaultKey(kmscrypto.V4), respPlaintext, tag))

	resp, err := kmsproto.DecodeResponse(respPlaintext, 0)
	require.NoError(t, err)
	assert.Equal(t, clientID, resp.ClientMachineID)
	assert.Equal(t, uint64(132000000000000000), resp.ResponseTimeTicks)
	// requiredClientCount+1 (25) is below the configured baseline (50),
	// so the baseline wins (spec.md §4.6, S1 scenario).
	assert.Equal(t, uint32(50), resp.CurrentClientCount)

	rec, err := st.Get(context.Background(), clientID)
	require.NoError(t, err)
	assert.Equal(t, uint32(24), rec.NCount)
}

func TestDispatchV5RoundTrip(t *testing.T) {
	st := store.NewMemoryStore()
	ident := identity.New([8]byte{}, "", 0, 100)
	cfg := DefaultConfig()
	cfg.Now = func() time.Time { return time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC) }

	clientID := wire.GUID{0x05}
	plaintext := buildRequestPlaintext(t, kmsproto.VersionV5, clientID, wire.GUID{0x20}, 10, 132000000000000000, "HOST-B")
	stub := buildStub(t, kmsproto.VersionV5, plaintext)

	respStub, err := Dispatch(context.Background(), stub, ident, st, cfg)
	require.NoError(t, err)

	respPlaintext, err := kmscrypto.DecryptV5(kmscrypto.DefaultKey(kmscrypto.V5), respStub)
	require.NoError(t, err)
	resp, err := kmsproto.DecodeResponse(respPlaintext, 0)
	require.NoError(t, err)
	assert.Equal(t, clientID, resp.ClientMachineID)
	assert.Equal(t, uint32(11), resp.CurrentClientCount)
	assert.NotEqual(t, [16]byte{}, resp.RandomSalt)
}

func TestDispatchV6RoundTrip(t *testing.T) {
	st := store.NewMemoryStore()
	ident := identity.New([8]byte{9, 9}, "", 0, 1000)
	cfg := DefaultConfig()
	cfg.Now = func() time.Time { return time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC) }

	clientID := wire.GUID{0x07}
	requestTicks := uint64(132000000000000000)
	plaintext := buildRequestPlaintext(t, kmsproto.VersionV6, clientID, wire.GUID{0x30}, 5, requestTicks, "HOST-C")
	stub := buildStub(t, kmsproto.VersionV6, plaintext)

	respStub, err := Dispatch(context.Background(), stub, ident, st, cfg)
	require.NoError(t, err)

	require.GreaterOrEqual(t, len(respStub), 32)
	ciphertext := respStub[:len(respStub)-32]
	var tag [32]byte
	copy(tag[:], respStub[len(respStub)-32:])

	salt := ciphertext[:16]
	var saltArr [16]byte
	copy(saltArr[:], salt)
	var ticksLE [8]byte
	for i := range ticksLE {
		ticksLE[i] = byte(requestTicks >> (8 * i))
	}
	hmacKey, err := kmscrypto.DeriveHMACKeyV6(kmscrypto.DefaultKey(kmscrypto.V6), saltArr, ticksLE)
	require.NoError(t, err)
	require.NoError(t, kmscrypto.VerifyTagV6(hmacKey, ciphertext, tag))

	respPlaintext, err := kmscrypto.DecryptV5(kmscrypto.DefaultKey(kmscrypto.V6), ciphertext)
	require.NoError(t, err)
	resp, err := kmsproto.DecodeResponse(respPlaintext, 0)
	require.NoError(t, err)
	assert.Equal(t, clientID, resp.ClientMachineID)
	assert.Equal(t, ident.HWID, resp.HWID)
}

func TestDispatchIsIdempotentUnderReplay(t *testing.T) {
	st := store.NewMemoryStore()
	ident := identity.New([8]byte{}, "", 0, 100)
	cfg := DefaultConfig()
	cfg.Now = func() time.Time { return time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC) }

	clientID := wire.GUID{0x0C}
	plaintext := buildRequestPlaintext(t, kmsproto.VersionV4, clientID, wire.GUID{0x40}, 3, 132000000000000000, "HOST-D")
	stub := buildStub(t, kmsproto.VersionV4, plaintext)

	for i := 0; i < 5; i++ {
		_, err := Dispatch(context.Background(), stub, ident, st, cfg)
		require.NoError(t, err)
	}

	records, err := st.List(context.Background())
	require.NoError(t, err)
	count := 0
	for _, r := range records {
		if r.ClientMachineID == clientID {
			count++
		}
	}
	assert.Equal(t, 1, count)
}

func TestReportedClientCountClampsToMax(t *testing.T) {
	ident := identity.New([8]byte{}, "", 0, 5)
	n := reportedClientCount(ident, 100)
	assert.Equal(t, uint32(5), n)
}

func TestUnwrapRejectsGarbageLength(t *testing.T) {
	_, _, err := unwrap(bytes.Repeat([]byte{0x01}, 17))
	assert.ErrorIs(t, err, kmscrypto.ErrDecryptMismatch)
}
