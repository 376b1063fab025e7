// Package metrics holds the Prometheus collectors for account, enrollment and survey outcomes.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics tracks registrations, approval decisions, logins, enrollment attempts and survey answers.
// A nil *Metrics is valid and records nothing.
type Metrics struct {
	Registrations      *prometheus.CounterVec
	Decisions          *prometheus.CounterVec
	Logins             *prometheus.CounterVec
	EnrollmentAttempts *prometheus.CounterVec
	ActivitiesCreated  prometheus.Counter
	EnrollDuration     prometheus.Histogram
	SurveyResponses    *prometheus.CounterVec
}

// New registers all collectors on reg. Pass prometheus.DefaultRegisterer in production
// and a fresh prometheus.NewRegistry() in tests.
func New(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		Registrations: f.NewCounterVec(prometheus.CounterOpts{
			Name: "alumni_registrations_total",
			Help: "Accounts registered, by role",
		}, []string{"role"}),
		Decisions: f.NewCounterVec(prometheus.CounterOpts{
			Name: "alumni_approval_decisions_total",
			Help: "Approval decisions, by outcome (approved, rejected, not_pending, denied)",
		}, []string{"outcome"}),
		Logins: f.NewCounterVec(prometheus.CounterOpts{
			Name: "alumni_logins_total",
			Help: "Login attempts, by outcome",
		}, []string{"outcome"}),
		EnrollmentAttempts: f.NewCounterVec(prometheus.CounterOpts{
			Name: "alumni_enrollment_attempts_total",
			Help: "Enrollment attempts, by outcome (ok, already_enrolled, capacity_exceeded, inactive, not_found, error)",
		}, []string{"outcome"}),
		ActivitiesCreated: f.NewCounter(prometheus.CounterOpts{
			Name: "alumni_activities_created_total",
			Help: "Total number of activities created",
		}),
		EnrollDuration: f.NewHistogram(prometheus.HistogramOpts{
			Name:    "alumni_enroll_duration_seconds",
			Help:    "Duration of Enroll operations including store round trips",
			Buckets: []float64{0.0005, 0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1},
		}),
		SurveyResponses: f.NewCounterVec(prometheus.CounterOpts{
			Name: "alumni_survey_responses_total",
			Help: "Survey submissions, by outcome (ok, already_responded, inactive, invalid, not_found, error)",
		}, []string{"outcome"}),
	}
}

// IncRegistration records a successful registration for role.
func (m *Metrics) IncRegistration(role string) {
	if m == nil {
		return
	}
	m.Registrations.WithLabelValues(role).Inc()
}

// IncDecision records an approval decision outcome.
func (m *Metrics) IncDecision(outcome string) {
	if m == nil {
		return
	}
	m.Decisions.WithLabelValues(outcome).Inc()
}

// IncLogin records a login outcome.
func (m *Metrics) IncLogin(outcome string) {
	if m == nil {
		return
	}
	m.Logins.WithLabelValues(outcome).Inc()
}

// IncActivityCreated records a created activity.
func (m *Metrics) IncActivityCreated() {
	if m == nil {
		return
	}
	m.ActivitiesCreated.Inc()
}

// ObserveEnroll records the outcome and duration of an Enroll call started at start.
func (m *Metrics) ObserveEnroll(outcome string, start time.Time) {
	if m == nil {
		return
	}
	m.EnrollmentAttempts.WithLabelValues(outcome).Inc()
	m.EnrollDuration.Observe(time.Since(start).Seconds())
}

// IncSurveyResponse records a survey submission outcome.
func (m *Metrics) IncSurveyResponse(outcome string) {
	if m == nil {
		return
	}
	m.SurveyResponses.WithLabelValues(outcome).Inc()
}
