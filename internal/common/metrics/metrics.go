// internal/common/metrics/metrics.go
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	WizardStepTransitions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "wizard_step_transitions_total",
			Help: "Total number of wizard step transitions",
		},
		[]string{"direction"},
	)

	ValidationFailures = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "wizard_validation_failures_total",
			Help: "Total number of field validation failures",
		},
		[]string{"step", "field"},
	)

	LeadSubmissions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "lead_submissions_total",
			Help: "Total number of lead submission attempts by outcome",
		},
		[]string{"outcome"},
	)

	LeadSubmissionDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name: "lead_submission_duration_seconds",
			Help: "Duration of lead submission calls in seconds",
		},
	)

	TokenVerifications = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "auth_token_verifications_total",
			Help: "Total number of startup token verifications by result",
		},
		[]string{"result"},
	)

	SessionsActive = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "wizard_sessions_active",
			Help: "Number of wizard sessions currently held in memory",
		},
	)

	RequestErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_request_errors_total",
			Help: "Total number of refused HTTP requests by error category",
		},
		[]string{"category"},
	)
)

// Submission outcome label values.
const (
	OutcomeSuccess   = "success"
	OutcomeRejected  = "rejected"
	OutcomeTransport = "transport_error"
	OutcomeStale     = "stale_discarded"
)
