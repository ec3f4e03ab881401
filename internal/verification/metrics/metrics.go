package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics provides observability for the verification workflow.
type Metrics struct {
	Registrations    *prometheus.CounterVec
	Submissions      *prometheus.CounterVec
	Decisions        *prometheus.CounterVec
	Reapplications   *prometheus.CounterVec
	Reopened         prometheus.Counter
	DecisionDuration prometheus.Histogram
}

// New registers the verification metrics on reg. Pass
// prometheus.DefaultRegisterer in production and a fresh registry in tests.
func New(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		Registrations: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "portal_registrations_total",
			Help: "Step 1 registrations by kind (new or reapplication)",
		}, []string{"kind"}),
		Submissions: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "portal_evidence_submissions_total",
			Help: "Evidence submissions by registration step",
		}, []string{"step"}),
		Decisions: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "portal_decisions_total",
			Help: "Validator decisions by action",
		}, []string{"action"}),
		Reapplications: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "portal_reapplications_total",
			Help: "Reapplications after rejection by kind (quick or with_changes)",
		}, []string{"kind"}),
		Reopened: factory.NewCounter(prometheus.CounterOpts{
			Name: "portal_applications_reopened_total",
			Help: "Decided applications sent back to the queue",
		}),
		DecisionDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "portal_decision_duration_seconds",
			Help:    "Duration of the decision transaction",
			Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1},
		}),
	}
}

func (m *Metrics) IncrementRegistration(reapplication bool) {
	kind := "new"
	if reapplication {
		kind = "reapplication"
	}
	m.Registrations.WithLabelValues(kind).Inc()
}

func (m *Metrics) IncrementSubmission(step string) {
	m.Submissions.WithLabelValues(step).Inc()
}

func (m *Metrics) IncrementDecision(action string) {
	m.Decisions.WithLabelValues(action).Inc()
}

func (m *Metrics) IncrementReapplication(kind string) {
	m.Reapplications.WithLabelValues(kind).Inc()
}

func (m *Metrics) IncrementReopened() {
	m.Reopened.Inc()
}

// ObserveDecision records the duration of a decision.
// Call with time.Now() at the start of the operation.
func (m *Metrics) ObserveDecision(start time.Time) {
	m.DecisionDuration.Observe(time.Since(start).Seconds())
}
