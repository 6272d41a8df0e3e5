package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Login outcomes.
const (
	OutcomeSuccess      = "success"
	OutcomeInvalid      = "invalid_request"
	OutcomeRejected     = "rejected"
	OutcomeRateLimited  = "rate_limited"
	OutcomeServerError  = "error"
	ResultAuthenticated = "authenticated"
	ResultAnonymous     = "anonymous"
)

type Metrics struct {
	LoginAttempts  *prometheus.CounterVec
	TokenRejected  *prometheus.CounterVec
	IdentityChecks *prometheus.CounterVec
	GuardDecisions *prometheus.CounterVec
}

func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		LoginAttempts: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "auth_session",
			Name:      "login_attempts_total",
			Help:      "Login attempts by outcome.",
		}, []string{"user_type", "outcome"}),
		TokenRejected: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "auth_session",
			Name:      "token_rejected_total",
			Help:      "Session tokens rejected, by internal reason.",
		}, []string{"reason"}),
		IdentityChecks: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "auth_session",
			Name:      "identity_checks_total",
			Help:      "Identity checks by result.",
		}, []string{"result"}),
		GuardDecisions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "auth_session",
			Name:      "guard_decisions_total",
			Help:      "Route guard decisions by area and action.",
		}, []string{"area", "action"}),
	}
	if reg != nil {
		reg.MustRegister(m.LoginAttempts, m.TokenRejected, m.IdentityChecks, m.GuardDecisions)
	}
	return m
}

func (m *Metrics) ObserveLogin(userType, outcome string) {
	m.LoginAttempts.WithLabelValues(userType, outcome).Inc()
}

// ObserveTokenRejected has the signature of auth.WithFailureHook.
func (m *Metrics) ObserveTokenRejected(reason string) {
	m.TokenRejected.WithLabelValues(reason).Inc()
}

func (m *Metrics) ObserveIdentityCheck(result string) {
	m.IdentityChecks.WithLabelValues(result).Inc()
}

func (m *Metrics) ObserveGuard(area, action string) {
	m.GuardDecisions.WithLabelValues(area, action).Inc()
}
