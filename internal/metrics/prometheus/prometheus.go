// Package prometheus is the Prometheus-backed implementation of
// internal/metrics.Metrics, grounded on the teacher's
// pkg/metrics/prometheus (promauto-registered Counter/Gauge/HistogramVec
// families, one constructor per subsystem). The teacher's own metrics
// registry helper (pkg/metrics.GetRegistry/IsEnabled) was not present in
// the retrieved copy of the teacher repo, so New registers directly
// against a caller-supplied prometheus.Registerer instead — callers pass
// prometheus.DefaultRegisterer for the global registry, or a fresh
// prometheus.NewRegistry() in tests to avoid cross-test collisions.
package prometheus

import (
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/shalu066900/pykms/internal/metrics"
)

type kmsMetrics struct {
	connectionsAccepted    prometheus.Counter
	connectionsClosed      prometheus.Counter
	connectionsForceClosed prometheus.Counter
	activeConnections      prometheus.Gauge
	requestsTotal          *prometheus.CounterVec
	requestDuration        *prometheus.HistogramVec
	authFailures           *prometheus.CounterVec
	persistenceErrors      prometheus.Counter
	activeClientCount      prometheus.Gauge
}

// New registers the KMS server's Prometheus collectors against reg and
// returns a metrics.Metrics backed by them.
func New(reg prometheus.Registerer) metrics.Metrics {
	return &kmsMetrics{
		connectionsAccepted: promauto.With(reg).NewCounter(prometheus.CounterOpts{
			Name: "kmsd_connections_accepted_total",
			Help: "Total number of accepted TCP connections.",
		}),
		connectionsClosed: promauto.With(reg).NewCounter(prometheus.CounterOpts{
			Name: "kmsd_connections_closed_total",
			Help: "Total number of connections closed normally.",
		}),
		connectionsForceClosed: promauto.With(reg).NewCounter(prometheus.CounterOpts{
			Name: "kmsd_connections_force_closed_total",
			Help: "Total number of connections force-closed after the shutdown timeout expired.",
		}),
		activeConnections: promauto.With(reg).NewGauge(prometheus.GaugeOpts{
			Name: "kmsd_active_connections",
			Help: "Current number of open connections.",
		}),
		requestsTotal: promauto.With(reg).NewCounterVec(prometheus.CounterOpts{
			Name: "kmsd_requests_total",
			Help: "Total number of dispatched KMS requests by protocol generation and outcome.",
		}, []string{"kms_version", "error_code"}),
		requestDuration: promauto.With(reg).NewHistogramVec(prometheus.HistogramOpts{
			Name:    "kmsd_request_duration_milliseconds",
			Help:    "Dispatch duration in milliseconds by protocol generation.",
			Buckets: []float64{0.1, 0.5, 1, 5, 10, 50, 100},
		}, []string{"kms_version"}),
		authFailures: promauto.With(reg).NewCounterVec(prometheus.CounterOpts{
			Name: "kmsd_auth_failures_total",
			Help: "Total number of V4 hash or V6 HMAC verification failures by protocol generation.",
		}, []string{"kms_version"}),
		persistenceErrors: promauto.With(reg).NewCounter(prometheus.CounterOpts{
			Name: "kmsd_persistence_errors_total",
			Help: "Total number of ClientStore failures (advisory - requests still succeed).",
		}),
		activeClientCount: promauto.With(reg).NewGauge(prometheus.GaugeOpts{
			Name: "kmsd_active_client_count",
			Help: "Currently reported activated client count.",
		}),
	}
}

func (m *kmsMetrics) RecordConnectionAccepted()    { m.connectionsAccepted.Inc() }
func (m *kmsMetrics) RecordConnectionClosed()      { m.connectionsClosed.Inc() }
func (m *kmsMetrics) RecordConnectionForceClosed() { m.connectionsForceClosed.Inc() }

func (m *kmsMetrics) SetActiveConnections(count int32) {
	m.activeConnections.Set(float64(count))
}

func (m *kmsMetrics) RecordRequest(kmsVersion uint32, duration float64, errorCode string) {
	m.requestsTotal.WithLabelValues(versionLabel(kmsVersion), errorCode).Inc()
	m.requestDuration.WithLabelValues(versionLabel(kmsVersion)).Observe(duration)
}

func (m *kmsMetrics) RecordAuthFailure(kmsVersion uint32) {
	m.authFailures.WithLabelValues(versionLabel(kmsVersion)).Inc()
}

func (m *kmsMetrics) RecordPersistenceError() { m.persistenceErrors.Inc() }

func (m *kmsMetrics) SetActiveClientCount(count uint32) {
	m.activeClientCount.Set(float64(count))
}

func versionLabel(kmsVersion uint32) string {
	return strconv.FormatUint(uint64(kmsVersion>>16), 10)
}
