package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds all Prometheus metrics for the application.
type Metrics struct {
	ConsentChanges   *prometheus.CounterVec
	ConsentDenials   prometheus.Counter
	FieldsEncrypted  prometheus.Counter
	FieldsDecrypted  prometheus.Counter
	TamperDetections prometheus.Counter
	AuditAppends     prometheus.Counter
	ErasureRequests  prometheus.Counter
	ErasureSweepRuns prometheus.Counter
	ErasureClaims    prometheus.Counter
	ErasureCompleted prometheus.Counter
	ErasureFailed    prometheus.Counter
	RequestDuration  *prometheus.HistogramVec
}

// New creates and registers all Prometheus metrics.
func New() *Metrics {
	return &Metrics{
		ConsentChanges: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "nuca_consent_changes_total",
			Help: "Consent records appended, labelled by consent type and decision",
		}, []string{"consent_type", "granted"}),
		ConsentDenials: promauto.NewCounter(prometheus.CounterOpts{
			Name: "nuca_consent_denials_total",
			Help: "Gated operations rejected for missing consent",
		}),
		FieldsEncrypted: promauto.NewCounter(prometheus.CounterOpts{
			Name: "nuca_fields_encrypted_total",
			Help: "Scalar values sealed into envelopes",
		}),
		FieldsDecrypted: promauto.NewCounter(prometheus.CounterOpts{
			Name: "nuca_fields_decrypted_total",
			Help: "Envelopes successfully opened",
		}),
		TamperDetections: promauto.NewCounter(prometheus.CounterOpts{
			Name: "nuca_tamper_detections_total",
			Help: "Envelope authentication failures",
		}),
		AuditAppends: promauto.NewCounter(prometheus.CounterOpts{
			Name: "nuca_audit_appends_total",
			Help: "Audit entries appended",
		}),
		ErasureRequests: promauto.NewCounter(prometheus.CounterOpts{
			Name: "nuca_erasure_requests_total",
			Help: "Erasure requests created",
		}),
		ErasureSweepRuns: promauto.NewCounter(prometheus.CounterOpts{
			Name: "nuca_erasure_sweep_runs_total",
			Help: "Erasure sweep iterations",
		}),
		ErasureClaims: promauto.NewCounter(prometheus.CounterOpts{
			Name: "nuca_erasure_claims_total",
			Help: "Erasure requests claimed for execution",
		}),
		ErasureCompleted: promauto.NewCounter(prometheus.CounterOpts{
			Name: "nuca_erasure_completed_total",
			Help: "Erasure requests completed",
		}),
		ErasureFailed: promauto.NewCounter(prometheus.CounterOpts{
			Name: "nuca_erasure_failed_total",
			Help: "Erasure requests transitioned to failed",
		}),
		RequestDuration: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "nuca_http_request_duration_seconds",
			Help:    "HTTP request latency",
			Buckets: prometheus.DefBuckets,
		}, []string{"method", "path", "status"}),
	}
}
