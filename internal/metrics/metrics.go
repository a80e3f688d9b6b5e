// Package metrics declares the small observability interface
// internal/server and internal/dispatch call into, following the
// teacher's pkg/metrics split: a plain interface here, a concrete
// Prometheus implementation in internal/metrics/prometheus. Passing a
// nil Metrics disables collection with zero overhead, exactly like the
// teacher's NFSMetrics/nfsMetrics parameter.
package metrics

// Metrics is the observability collaborator for the KMS server loop and
// dispatcher. An implementation may be nil, in which case callers must
// guard every call site (matching the teacher's "nil metrics = disabled"
// convention) — this package provides no nil-receiver methods itself.
type Metrics interface {
	// RecordConnectionAccepted increments the total accepted connections
	// counter.
	RecordConnectionAccepted()

	// RecordConnectionClosed increments the total closed connections
	// counter.
	RecordConnectionClosed()

	// RecordConnectionForceClosed increments the force-closed connections
	// counter (connections still open when the shutdown timeout expired).
	RecordConnectionForceClosed()

	// SetActiveConnections updates the current connection gauge.
	SetActiveConnections(count int32)

	// RecordRequest records one dispatched KMS request: its protocol
	// generation, processing duration, and outcome ("" on success, an
	// error kind name otherwise).
	RecordRequest(kmsVersion uint32, duration float64, errorCode string)

	// RecordAuthFailure records a V4 hash or V6 HMAC verification
	// failure for the given protocol generation.
	RecordAuthFailure(kmsVersion uint32)

	// RecordPersistenceError records a failed ClientStore.Upsert/Get
	// call (advisory — the request still succeeds).
	RecordPersistenceError()

	// SetActiveClientCount updates the currently-reported activated
	// client count gauge.
	SetActiveClientCount(count uint32)
}
