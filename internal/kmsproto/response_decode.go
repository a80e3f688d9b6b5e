package kmsproto

import "github.com/shalu066900/pykms/internal/wire"

// DecodeResponse parses a Response plaintext body as produced by
// EncodeResponse. It is primarily used by tests asserting round-trip
// fidelity (spec.md testable properties §8.4-8.6) and by clients
// embedded in integration tests, not by the server itself.
func DecodeResponse(body []byte, pidSize int) (Response, error) {
	r := wire.NewReader(body)
	var resp Response

	rawVersion, err := r.ReadU32LE()
	if err != nil {
		return Response{}, err
	}
	resp.Version = Version(rawVersion)

	if resp.ClientMachineID, err = r.ReadGUID(); err != nil {
		return Response{}, err
	}
	if resp.ResponseTimeTicks, err = r.ReadU64LE(); err != nil {
		return Response{}, err
	}
	if resp.CurrentClientCount, err = r.ReadU32LE(); err != nil {
		return Response{}, err
	}
	if resp.VLActivationInterval, err = r.ReadU32LE(); err != nil {
		return Response{}, err
	}
	if resp.VLRenewalInterval, err = r.ReadU32LE(); err != nil {
		return Response{}, err
	}
	declaredSize, err := r.ReadU16LE()
	if err != nil {
		return Response{}, err
	}
	if pidSize == 0 {
		pidSize = int(declaredSize)
	}
	epid, err := r.ReadFixedUTF16LE(pidSize)
	if err != nil {
		return Response{}, err
	}
	resp.KMSEpid = epid

	if resp.Version == VersionV5 || resp.Version == VersionV6 {
		salt, err := r.ReadBytes(16)
		if err != nil {
			return Response{}, err
		}
		copy(resp.RandomSalt[:], salt)
	}
	if resp.Version == VersionV6 {
		hwid, err := r.ReadBytes(8)
		if err != nil {
			return Response{}, err
		}
		copy(resp.HWID[:], hwid)
	}
	return resp, nil
}
