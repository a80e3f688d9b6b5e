// Package dispatch implements the pure KMS request-handling pipeline:
// given an already-unframed RPC stub, a ServerIdentity, and a
// store.ClientStore, it decrypts/verifies the request, records the
// activation, and returns the encrypted response stub. It knows
// nothing about PDUs, sockets, or fragmentation — internal/server calls
// it once per reassembled Request.
package dispatch

import (
	"context"
	"crypto/rand"
	"fmt"
	"io"
	"time"

	"github.com/shalu066900/pykms/internal/epid"
	"github.com/shalu066900/pykms/internal/identity"
	"github.com/shalu066900/pykms/internal/kmscrypto"
	"github.com/shalu066900/pykms/internal/kmsproto"
	"github.com/shalu066900/pykms/internal/logger"
	"github.com/shalu066900/pykms/internal/store"
	"github.com/shalu066900/pykms/internal/wire"
)

// Wire sizes of the three generations' request stubs. Each generation's
// plaintext size (spec.md §4.3) pads to a distinct total, which is what
// lets the dispatcher pick a protocol version and AES key before
// decrypting anything (V5/V6 requests carry no cleartext version tag).
const (
	v4WireSize = 236 + 16 // plaintext + HashV4 trailer
	v5WireSize = 16 + 240 // iv + CBC(pad(236))
	v6WireSize = 16 + 256 // iv + CBC(pad(244))
)

// Config carries the operator-tunable knobs Dispatch needs beyond the
// identity and store collaborators.
type Config struct {
	ActivationIntervalMinutes uint32
	RenewalIntervalMinutes    uint32
	RNG                       io.Reader
	Now                       func() time.Time
}

// DefaultConfig returns spec.md's default activation (2 hours) and
// renewal (7 days) intervals, wired to real randomness and the system
// clock.
func DefaultConfig() Config {
	return Config{
		ActivationIntervalMinutes: 120,
		RenewalIntervalMinutes:    10080,
		RNG:                       rand.Reader,
		Now:                       time.Now,
	}
}

func (c Config) now() time.Time {
	if c.Now != nil {
		return c.Now()
	}
	return time.Now()
}

func (c Config) rng() io.Reader {
	if c.RNG != nil {
		return c.RNG
	}
	return rand.Reader
}

// Dispatch decrypts stub, decodes the KMS request, upserts its
// activation into st, and returns the encrypted response stub ready for
// the RPC framer to wrap in a Response PDU.
func Dispatch(ctx context.Context, stub []byte, ident *identity.ServerIdentity, st store.ClientStore, cfg Config) ([]byte, error) {
	version, plaintext, err := unwrap(stub)
	if err != nil {
		return nil, fmt.Errorf("dispatch: unwrap request: %w", err)
	}

	req, err := kmsproto.DecodeRequest(plaintext)
	if err != nil {
		return nil, fmt.Errorf("dispatch: decode request: %w", err)
	}
	if req.Version != version {
		return nil, fmt.Errorf("dispatch: %w: envelope version 0x%08x does not match inner version 0x%08x", kmscrypto.ErrDecryptMismatch, version, req.Version)
	}

	rec := store.ClientRecord{
		ClientMachineID: req.ClientMachineID,
		ApplicationID:   req.ApplicationID,
		SkuID:           req.SkuID,
		LicenseStatus:   req.LicenseStatus,
		LastActivation:  wire.FileTimeFromTicks(req.RequestTimeTicks),
		NCount:          req.RequiredClientCount,
		MachineName:     req.MachineName,
	}
	// Persistence is advisory to the protocol: a store failure is logged
	// but must not stop the client from activating (spec's PersistenceError
	// handling — build and send the response anyway).
	if err := st.Upsert(ctx, rec); err != nil {
		logger.WarnCtx(ctx, "dispatch: persist activation failed", logger.Err(err), logger.ClientMachineID(req.ClientMachineID.String()))
	}

	reported := reportedClientCount(ident, req.RequiredClientCount)
	ident.SetClientCount(reported)

	epidValue, err := epid.Generate(req.ApplicationID, ident.FixedEpid, cfg.rng(), cfg.now())
	if err != nil {
		return nil, fmt.Errorf("dispatch: generate epid: %w", err)
	}

	resp := kmsproto.Response{
		Version:              version,
		ClientMachineID:      req.ClientMachineID,
		ResponseTimeTicks:    req.RequestTimeTicks,
		CurrentClientCount:   reported,
		VLActivationInterval: cfg.ActivationIntervalMinutes,
		VLRenewalInterval:    cfg.RenewalIntervalMinutes,
		KMSEpid:              epidValue,
		HWID:                 ident.HWID,
	}

	return wrap(version, resp, req, ident, cfg)
}

// reportedClientCount implements spec.md §4.6's formula exactly:
// currentClientCount = min(configured_max_clients, max(configured_count,
// requiredClientCount + 1)). The operator's configured baseline (typically
// 50) wins unless the client's own threshold is higher, and the result
// never exceeds the configured ceiling (the product will not activate
// if the ceiling is below the client's threshold — spec.md's open
// question on this is resolved in favor of reporting the configured max).
func reportedClientCount(ident *identity.ServerIdentity, requiredClientCount uint32) uint32 {
	n := requiredClientCount + 1
	if configured := ident.ConfiguredCount(); configured > n {
		n = configured
	}
	if max := ident.MaxClients(); max > 0 && n > max {
		n = max
	}
	return n
}

// unwrap determines the request's protocol generation from stub's
// length alone (each generation's padded size is distinct, spec.md
// §4.3) and returns its decrypted/verified plaintext.
func unwrap(stub []byte) (kmsproto.Version, []byte, error) {
	switch len(stub) {
	case v4WireSize:
		body := stub[:236]
		var tag [16]byte
		copy(tag[:], stub[236:])
		if err := kmscrypto.VerifyV4(kmscrypto.DefaultKey(kmscrypto.V4), body, tag); err != nil {
			return 0, nil, err
		}
		return kmsproto.VersionV4, body, nil
	case v5WireSize:
		plaintext, err := kmscrypto.DecryptV5(kmscrypto.DefaultKey(kmscrypto.V5), stub)
		if err != nil {
			return 0, nil, err
		}
		if err := kmscrypto.CheckVersionEcho(plaintext, uint32(kmsproto.VersionV5)); err != nil {
			return 0, nil, err
		}
		return kmsproto.VersionV5, plaintext, nil
	case v6WireSize:
		plaintext, err := kmscrypto.DecryptV5(kmscrypto.DefaultKey(kmscrypto.V6), stub)
		if err != nil {
			return 0, nil, err
		}
		if err := kmscrypto.CheckVersionEcho(plaintext, uint32(kmsproto.VersionV6)); err != nil {
			return 0, nil, err
		}
		return kmsproto.VersionV6, plaintext, nil
	default:
		return 0, nil, fmt.Errorf("dispatch: %w: unrecognized request size %d", kmscrypto.ErrDecryptMismatch, len(stub))
	}
}

// wrap encrypts/tags resp's plaintext encoding per version and returns
// the wire stub the framer sends back.
func wrap(version kmsproto.Version, resp kmsproto.Response, req kmsproto.Request, ident *identity.ServerIdentity, cfg Config) ([]byte, error) {
	plaintext := kmsproto.EncodeResponse(resp)

	switch version {
	case kmsproto.VersionV4:
		tag, err := kmscrypto.HashV4(kmscrypto.DefaultKey(kmscrypto.V4), plaintext)
		if err != nil {
			return nil, err
		}
		return append(append([]byte{}, plaintext...), tag[:]...), nil

	case kmsproto.VersionV5:
		iv, err := kmscrypto.RandomSalt()
		if err != nil {
			return nil, err
		}
		resp.RandomSalt = iv
		plaintext = kmsproto.EncodeResponse(resp)
		return kmscrypto.EncryptV5(kmscrypto.DefaultKey(kmscrypto.V5), iv, plaintext)

	case kmsproto.VersionV6:
		salt, err := kmscrypto.RandomSalt()
		if err != nil {
			return nil, err
		}
		resp.RandomSalt = salt
		plaintext = kmsproto.EncodeResponse(resp)

		var ticksLE [8]byte
		for i := range ticksLE {
			ticksLE[i] = byte(req.RequestTimeTicks >> (8 * i))
		}
		hmacKey, err := kmscrypto.DeriveHMACKeyV6(kmscrypto.DefaultKey(kmscrypto.V6), salt, ticksLE)
		if err != nil {
			return nil, err
		}

		ciphertext, err := kmscrypto.EncryptV5(kmscrypto.DefaultKey(kmscrypto.V6), salt, plaintext)
		if err != nil {
			return nil, err
		}
		tag := kmscrypto.TagV6(hmacKey, ciphertext)
		return append(ciphertext, tag[:]...), nil

	default:
		return nil, fmt.Errorf("dispatch: %w: cannot encode unknown version 0x%08x", kmscrypto.ErrDecryptMismatch, version)
	}
}
