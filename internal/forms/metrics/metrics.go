package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics covers the form instance engine and step ledger.
type Metrics struct {
	InstancesCreated  prometheus.Counter
	InstancesDeleted  prometheus.Counter
	StatusTransitions *prometheus.CounterVec
	StepUpserts       *prometheus.CounterVec
}

// New registers the forms metrics with reg. A nil reg uses the default
// Prometheus registerer.
func New(reg prometheus.Registerer) *Metrics {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	f := promauto.With(reg)
	return &Metrics{
		InstancesCreated: f.NewCounter(prometheus.CounterOpts{
			Name: "dynforms_form_instances_created_total",
			Help: "Total number of form instances created",
		}),
		InstancesDeleted: f.NewCounter(prometheus.CounterOpts{
			Name: "dynforms_form_instances_deleted_total",
			Help: "Total number of form instances deleted with their children",
		}),
		StatusTransitions: f.NewCounterVec(prometheus.CounterOpts{
			Name: "dynforms_form_status_transitions_total",
			Help: "Form status changes by target status",
		}, []string{"to"}),
		StepUpserts: f.NewCounterVec(prometheus.CounterOpts{
			Name: "dynforms_form_step_upserts_total",
			Help: "Step upserts by outcome (created or replaced)",
		}, []string{"outcome"}),
	}
}
