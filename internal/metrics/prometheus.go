// Package metrics exposes Prometheus collectors for the vendor rates service.
//
// All methods are safe on a nil *Metrics so components can run without
// instrumentation in tests.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "vendorrates"

// Upload outcomes used as the "outcome" label.
const (
	OutcomeSucceeded = "succeeded"
	OutcomeFailed    = "failed"
	OutcomeRejected  = "rejected"
	OutcomeBusy      = "busy"
)

// Metrics holds all Prometheus metrics.
type Metrics struct {
	// Cache metrics
	SnapshotsTotal          prometheus.Counter
	SubscriptionErrorsTotal prometheus.Counter
	CachedVendors           prometheus.Gauge

	// Upload metrics
	UploadsTotal   *prometheus.CounterVec
	UploadDuration prometheus.Histogram

	// Web metrics
	ActiveSessions prometheus.Gauge
	RequestsTotal  *prometheus.CounterVec
}

// New creates the collectors and registers them with reg.
func New(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)

	return &Metrics{
		SnapshotsTotal: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "snapshots_total",
			Help:      "Store snapshots applied to the vendor cache",
		}),
		SubscriptionErrorsTotal: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "subscription_errors_total",
			Help:      "Errors delivered by the store subscription",
		}),
		CachedVendors: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "cached_vendors",
			Help:      "Vendors held in the cache after the last snapshot",
		}),
		UploadsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "uploads_total",
			Help:      "Rate sheet submissions by outcome",
		}, []string{"outcome"}),
		UploadDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "upload_duration_seconds",
			Help:      "Time spent writing a rate sheet to the store",
			Buckets:   prometheus.DefBuckets,
		}),
		ActiveSessions: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "active_sessions",
			Help:      "Operator sessions currently tracked",
		}),
		RequestsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "HTTP requests by method and status code",
		}, []string{"method", "code"}),
	}
}

// SnapshotApplied records a snapshot holding vendors documents.
func (m *Metrics) SnapshotApplied(vendors int) {
	if m == nil {
		return
	}
	m.SnapshotsTotal.Inc()
	m.CachedVendors.Set(float64(vendors))
}

// SubscriptionError records a failed store notification.
func (m *Metrics) SubscriptionError() {
	if m == nil {
		return
	}
	m.SubscriptionErrorsTotal.Inc()
}

// UploadFinished records a submission outcome. Duration is observed only for
// attempts that reached the store.
func (m *Metrics) UploadFinished(outcome string, d time.Duration) {
	if m == nil {
		return
	}
	m.UploadsTotal.WithLabelValues(outcome).Inc()
	if outcome == OutcomeSucceeded || outcome == OutcomeFailed {
		m.UploadDuration.Observe(d.Seconds())
	}
}

// SetSessions records the number of live operator sessions.
func (m *Metrics) SetSessions(n int) {
	if m == nil {
		return
	}
	m.ActiveSessions.Set(float64(n))
}

// RequestServed counts a finished HTTP request.
func (m *Metrics) RequestServed(method, code string) {
	if m == nil {
		return
	}
	m.RequestsTotal.WithLabelValues(method, code).Inc()
}
