package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics counts login lockout activity.
type Metrics struct {
	Failures    prometheus.Counter
	Lockouts    prometheus.Counter
	Rejected    prometheus.Counter
	StoreErrors prometheus.Counter
}

// New registers the lockout metrics with reg. A nil reg uses the default
// Prometheus registerer.
func New(reg prometheus.Registerer) *Metrics {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	f := promauto.With(reg)
	return &Metrics{
		Failures: f.NewCounter(prometheus.CounterOpts{
			Name: "dynforms_login_failures_total",
			Help: "Failed login attempts counted against a lockout key",
		}),
		Lockouts: f.NewCounter(prometheus.CounterOpts{
			Name: "dynforms_login_lockouts_total",
			Help: "Lockouts imposed after too many failed logins",
		}),
		Rejected: f.NewCounter(prometheus.CounterOpts{
			Name: "dynforms_login_rejected_total",
			Help: "Login attempts rejected while the key was locked",
		}),
		StoreErrors: f.NewCounter(prometheus.CounterOpts{
			Name: "dynforms_login_lockout_store_errors_total",
			Help: "Lockout store failures; the check fails open",
		}),
	}
}

func (m *Metrics) IncFailures() {
	if m != nil {
		m.Failures.Inc()
	}
}

func (m *Metrics) IncLockouts() {
	if m != nil {
		m.Lockouts.Inc()
	}
}

func (m *Metrics) IncRejected() {
	if m != nil {
		m.Rejected.Inc()
	}
}

func (m *Metrics) IncStoreErrors() {
	if m != nil {
		m.StoreErrors.Inc()
	}
}
