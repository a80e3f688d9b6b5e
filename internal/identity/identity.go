// Package identity holds the small amount of state a KMS host carries
// about itself across every connection: its hardware ID, the source of
// its ePID (fixed or generated), and the client count it reports. It is
// threaded explicitly through the dispatcher rather than held as a
// package-level global.
package identity

import "sync/atomic"

// ServerIdentity is the KMS host's own identity, shared read-mostly
// across all connections.
type ServerIdentity struct {
	HWID          [8]byte
	FixedEpid     string // empty means "generate per product on demand"
	configured    uint32 // configured baseline client count (spec.md §4.6 "configured_count"), typically 50
	maxClients    uint32
	observedCount atomic.Uint32
}

// New builds a ServerIdentity with the given hardware ID, optional
// fixed ePID override, the operator-configured baseline client count
// (spec.md §4.6's "configured_count", typically 50), and the
// configured client-count ceiling ("configured_max_clients").
func New(hwid [8]byte, fixedEpid string, configuredCount, maxClients uint32) *ServerIdentity {
	return &ServerIdentity{HWID: hwid, FixedEpid: fixedEpid, configured: configuredCount, maxClients: maxClients}
}

// ConfiguredCount returns the operator-configured baseline client count
// reported to clients regardless of how many have actually activated.
func (s *ServerIdentity) ConfiguredCount() uint32 {
	return s.configured
}

// CurrentClientCount returns the host's most recently reported activated
// client count (set by the dispatcher after each accepted request).
func (s *ServerIdentity) CurrentClientCount() uint32 {
	return s.observedCount.Load()
}

// SetClientCount updates the reported client count, clamped to
// maxClients.
func (s *ServerIdentity) SetClientCount(n uint32) {
	if s.maxClients > 0 && n > s.maxClients {
		n = s.maxClients
	}
	s.observedCount.Store(n)
}

// MaxClients returns the configured client-count ceiling. 0 means
// unlimited.
func (s *ServerIdentity) MaxClients() uint32 {
	return s.maxClients
}
