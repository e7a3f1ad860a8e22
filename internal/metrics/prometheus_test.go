package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNilMetricsIsNoop(t *testing.T) {
	var m *Metrics
	assert.NotPanics(t, func() {
		m.SnapshotApplied(3)
		m.SubscriptionError()
		m.UploadFinished(OutcomeSucceeded, time.Second)
		m.SetSessions(2)
		m.RequestServed("GET", "200")
	})
}

func TestSnapshotApplied(t *testing.T) {
	m := New(prometheus.NewRegistry())
	m.SnapshotApplied(4)
	m.SnapshotApplied(2)

	assert.Equal(t, 2.0, testutil.ToFloat64(m.SnapshotsTotal))
	assert.Equal(t, 2.0, testutil.ToFloat64(m.CachedVendors))
}

func TestUploadFinished(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := New(reg)
	m.UploadFinished(OutcomeSucceeded, 20*time.Millisecond)
	m.UploadFinished(OutcomeFailed, 5*time.Millisecond)
	m.UploadFinished(OutcomeRejected, 0)
	m.UploadFinished(OutcomeBusy, 0)

	assert.Equal(t, 1.0, testutil.ToFloat64(m.UploadsTotal.WithLabelValues(OutcomeSucceeded)))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.UploadsTotal.WithLabelValues(OutcomeBusy)))
	assert.Equal(t, 4, testutil.CollectAndCount(m.UploadsTotal))

	// rejected and busy never reach the store
	families, err := reg.Gather()
	require.NoError(t, err)
	var samples uint64
	for _, f := range families {
		if f.GetName() == "vendorrates_upload_duration_seconds" {
			samples = f.GetMetric()[0].GetHistogram().GetSampleCount()
		}
	}
	assert.Equal(t, uint64(2), samples)
}

func TestNewRegistersAllCollectors(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := New(reg)
	m.RequestServed("GET", "200")
	m.UploadFinished(OutcomeSucceeded, time.Millisecond)

	families, err := reg.Gather()
	require.NoError(t, err)
	names := make(map[string]bool, len(families))
	for _, f := range families {
		names[f.GetName()] = true
	}
	for _, want := range []string{
		"vendorrates_snapshots_total",
		"vendorrates_subscription_errors_total",
		"vendorrates_cached_vendors",
		"vendorrates_uploads_total",
		"vendorrates_upload_duration_seconds",
		"vendorrates_active_sessions",
		"vendorrates_http_requests_total",
	} {
		assert.True(t, names[want], want)
	}
}
