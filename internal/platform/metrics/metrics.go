package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds all Prometheus metrics for the application.
type Metrics struct {
	SyncCycles           *prometheus.CounterVec
	FilteredOffsetNs     prometheus.Gauge
	JitterNs             prometheus.Gauge
	DriftPPB             prometheus.Gauge
	ReachablePeers       prometheus.Gauge
	CalibrationJumps     prometheus.Counter
	CertificatesIssued   prometheus.Counter
	CertificatesRevoked  prometheus.Counter
	CertificateChecks    *prometheus.CounterVec
	VerificationFailures prometheus.Counter
	HTTPDuration         *prometheus.HistogramVec
}

// New creates and registers all Prometheus metrics.
func New() *Metrics {
	return &Metrics{
		SyncCycles: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "chronocert_sync_cycles_total",
			Help: "Completed HPTP sync cycles, partitioned by outcome",
		}, []string{"outcome"}),
		FilteredOffsetNs: promauto.NewGauge(prometheus.GaugeOpts{
			Name: "chronocert_filtered_offset_nanoseconds",
			Help: "Current filtered clock offset from peer consensus",
		}),
		JitterNs: promauto.NewGauge(prometheus.GaugeOpts{
			Name: "chronocert_jitter_nanoseconds",
			Help: "RMS jitter of successive offset samples",
		}),
		DriftPPB: promauto.NewGauge(prometheus.GaugeOpts{
			Name: "chronocert_drift_ppb",
			Help: "Estimated clock drift in parts per billion",
		}),
		ReachablePeers: promauto.NewGauge(prometheus.GaugeOpts{
			Name: "chronocert_reachable_peers",
			Help: "Peers that responded in the last sync cycle",
		}),
		CalibrationJumps: promauto.NewCounter(prometheus.CounterOpts{
			Name: "chronocert_calibration_jumps_total",
			Help: "Calibration corrections large enough to be logged as jumps",
		}),
		CertificatesIssued: promauto.NewCounter(prometheus.CounterOpts{
			Name: "chronocert_certificates_issued_total",
			Help: "Timing certificates issued",
		}),
		CertificatesRevoked: promauto.NewCounter(prometheus.CounterOpts{
			Name: "chronocert_certificates_revoked_total",
			Help: "Timing certificates revoked",
		}),
		CertificateChecks: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "chronocert_certificate_checks_total",
			Help: "Certificate verification checks, partitioned by result",
		}, []string{"result"}),
		VerificationFailures: promauto.NewCounter(prometheus.CounterOpts{
			Name: "chronocert_verification_failures_total",
			Help: "Timestamp verifications that produced failure reasons",
		}),
		HTTPDuration: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "chronocert_http_request_duration_seconds",
			Help:    "HTTP request latency by route and status",
			Buckets: prometheus.DefBuckets,
		}, []string{"route", "status"}),
	}
}

// ObserveHTTP records one HTTP request observation.
func (m *Metrics) ObserveHTTP(route, status string, d time.Duration) {
	m.HTTPDuration.WithLabelValues(route, status).Observe(d.Seconds())
}
