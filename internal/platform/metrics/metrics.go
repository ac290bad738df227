// Package metrics exposes Prometheus instruments for the intake engine and its collaborators.
// Every method is safe on a nil *Metrics so tests and the terminal form can skip registration.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds all Prometheus metrics for the application.
type Metrics struct {
	ValidityRecomputations *prometheus.CounterVec
	Submissions            *prometheus.CounterVec
	SubmissionLatency      prometheus.Histogram
	RejectedUploads        *prometheus.CounterVec
	OpenSessions           prometheus.Gauge
	VisaAPILatency         *prometheus.HistogramVec
	Events                 *prometheus.CounterVec
	EventBacklog           prometheus.Gauge
}

// New registers the metrics on the default registry.
func New() *Metrics {
	return NewWithRegistry(prometheus.DefaultRegisterer)
}

// NewWithRegistry registers the metrics on reg. Tests pass prometheus.NewRegistry().
func NewWithRegistry(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		ValidityRecomputations: f.NewCounterVec(prometheus.CounterOpts{
			Name: "visaintake_validity_recomputations_total",
			Help: "Aggregate validity recomputations by trigger and result",
		}, []string{"trigger", "valid"}), // trigger: "debounce", "membership", "submit", "manual"

		Submissions: f.NewCounterVec(prometheus.CounterOpts{
			Name: "visaintake_submissions_total",
			Help: "Submission attempts by target and outcome",
		}, []string{"target", "outcome"}), // outcome: "success", "invalid", "failed", "in_flight"

		SubmissionLatency: f.NewHistogram(prometheus.HistogramOpts{
			Name:    "visaintake_submission_duration_seconds",
			Help:    "Duration of submissions from encode to backend acknowledgement",
			Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
		}),

		RejectedUploads: f.NewCounterVec(prometheus.CounterOpts{
			Name: "visaintake_rejected_uploads_total",
			Help: "Document uploads rejected before reaching a slot",
		}, []string{"reason"}),

		OpenSessions: f.NewGauge(prometheus.GaugeOpts{
			Name: "visaintake_open_sessions",
			Help: "Intake sessions currently held in memory",
		}),

		VisaAPILatency: f.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "visaintake_visa_api_duration_seconds",
			Help:    "Visa API call duration by operation and outcome",
			Buckets: []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
		}, []string{"operation", "outcome"}),

		Events: f.NewCounterVec(prometheus.CounterOpts{
			Name: "visaintake_events_total",
			Help: "Submission events by outcome",
		}, []string{"outcome"}), // outcome: "published", "failed", "dropped"

		EventBacklog: f.NewGauge(prometheus.GaugeOpts{
			Name: "visaintake_event_backlog",
			Help: "Submission events waiting to be published",
		}),
	}
}

// IncrementRecompute records one validity recomputation.
func (m *Metrics) IncrementRecompute(trigger string, valid bool) {
	if m != nil {
		v := "false"
		if valid {
			v = "true"
		}
		m.ValidityRecomputations.WithLabelValues(trigger, v).Inc()
	}
}

// IncrementSubmission records a submission outcome.
func (m *Metrics) IncrementSubmission(target, outcome string) {
	if m != nil {
		m.Submissions.WithLabelValues(target, outcome).Inc()
	}
}

// ObserveSubmissionLatency records how long a backend submission took.
func (m *Metrics) ObserveSubmissionLatency(d time.Duration) {
	if m != nil {
		m.SubmissionLatency.Observe(d.Seconds())
	}
}

// IncrementRejectedUpload records an upload refused before attachment.
func (m *Metrics) IncrementRejectedUpload(reason string) {
	if m != nil {
		m.RejectedUploads.WithLabelValues(reason).Inc()
	}
}

// SessionOpened increments the open sessions gauge.
func (m *Metrics) SessionOpened() {
	if m != nil {
		m.OpenSessions.Inc()
	}
}

// SessionClosed decrements the open sessions gauge.
func (m *Metrics) SessionClosed() {
	if m != nil {
		m.OpenSessions.Dec()
	}
}

// ObserveVisaAPI records a Visa API call.
func (m *Metrics) ObserveVisaAPI(operation, outcome string, d time.Duration) {
	if m != nil {
		m.VisaAPILatency.WithLabelValues(operation, outcome).Observe(d.Seconds())
	}
}

// IncrementEvent records the outcome of one submission event.
func (m *Metrics) IncrementEvent(outcome string) {
	if m != nil {
		m.Events.WithLabelValues(outcome).Inc()
	}
}

// SetEventBacklog records how many events are waiting to be published.
func (m *Metrics) SetEventBacklog(n int) {
	if m != nil {
		m.EventBacklog.Set(float64(n))
	}
}
