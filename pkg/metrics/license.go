package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// LicenseMetrics records issuance, revocation and validation outcomes.
type LicenseMetrics struct {
	duration    *prometheus.HistogramVec
	issued      prometheus.Counter
	revoked     *prometheus.CounterVec
	validations *prometheus.CounterVec
	failures    *prometheus.CounterVec
}

// NewLicenseMetrics registers the license metrics on the provided registerer.
// A nil registerer yields a no-op recorder.
func NewLicenseMetrics(reg prometheus.Registerer) *LicenseMetrics {
	if reg == nil {
		return &LicenseMetrics{}
	}
	duration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "license_operation_duration_seconds",
		Help:    "Duration of license operations in seconds.",
		Buckets: prometheus.DefBuckets,
	}, []string{"operation"})
	issued := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "license_issued_total",
		Help: "License keys issued.",
	})
	revoked := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "license_revoked_total",
		Help: "Revocation requests by resulting status.",
	}, []string{"status"})
	validations := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "license_validations_total",
		Help: "Validation decisions by outcome.",
	}, []string{"outcome"})
	failures := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "license_operation_failures_total",
		Help: "License operations that returned an error.",
	}, []string{"operation"})
	reg.MustRegister(duration, issued, revoked, validations, failures)
	return &LicenseMetrics{
		duration:    duration,
		issued:      issued,
		revoked:     revoked,
		validations: validations,
		failures:    failures,
	}
}

// ObserveDuration records the duration for the named operation.
func (m *LicenseMetrics) ObserveDuration(op string, duration time.Duration) {
	if m == nil || m.duration == nil {
		return
	}
	m.duration.WithLabelValues(normalizeLabel(op)).Observe(duration.Seconds())
}

func (m *LicenseMetrics) IncIssued() {
	if m == nil || m.issued == nil {
		return
	}
	m.issued.Inc()
}

func (m *LicenseMetrics) IncRevoked(status string) {
	if m == nil || m.revoked == nil {
		return
	}
	m.revoked.WithLabelValues(normalizeLabel(status)).Inc()
}

// IncValidation counts a validation decision; outcome is "valid" or the failure reason.
func (m *LicenseMetrics) IncValidation(outcome string) {
	if m == nil || m.validations == nil {
		return
	}
	m.validations.WithLabelValues(normalizeLabel(outcome)).Inc()
}

func (m *LicenseMetrics) IncFailure(op string) {
	if m == nil || m.failures == nil {
		return
	}
	m.failures.WithLabelValues(normalizeLabel(op)).Inc()
}

func normalizeLabel(value string) string {
	if value == "" {
		return "unknown"
	}
	return value
}
