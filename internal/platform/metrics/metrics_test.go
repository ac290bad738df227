package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestNilMetricsAreSafe(t *testing.T) {
	var m *Metrics
	assert.NotPanics(t, func() {
		m.IncrementRecompute("submit", true)
		m.IncrementSubmission("create", "success")
		m.ObserveSubmissionLatency(time.Second)
		m.IncrementRejectedUpload("file_too_large")
		m.SessionOpened()
		m.SessionClosed()
		m.ObserveVisaAPI("create_visa", "ok", time.Millisecond)
	})
}

func TestCounters(t *testing.T) {
	m := NewWithRegistry(prometheus.NewRegistry())

	m.IncrementSubmission("create", "success")
	m.IncrementSubmission("create", "success")
	m.IncrementRecompute("debounce", false)
	m.SessionOpened()
	m.SessionOpened()
	m.SessionClosed()

	assert.Equal(t, 2.0, testutil.ToFloat64(m.Submissions.WithLabelValues("create", "success")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.ValidityRecomputations.WithLabelValues("debounce", "false")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.OpenSessions))
}
