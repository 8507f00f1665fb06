package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics covers evidence attachment and its file churn.
type Metrics struct {
	DocumentsAdded  prometheus.Counter
	BiometricsAdded prometheus.Counter
	FilesReplaced   *prometheus.CounterVec
	EvidenceDeleted *prometheus.CounterVec
}

// New registers the evidence metrics with reg. A nil reg uses the default
// Prometheus registerer.
func New(reg prometheus.Registerer) *Metrics {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	f := promauto.With(reg)
	return &Metrics{
		DocumentsAdded: f.NewCounter(prometheus.CounterOpts{
			Name: "dynforms_identity_documents_added_total",
			Help: "Total number of identity documents attached",
		}),
		BiometricsAdded: f.NewCounter(prometheus.CounterOpts{
			Name: "dynforms_biometric_captures_added_total",
			Help: "Total number of biometric captures attached",
		}),
		FilesReplaced: f.NewCounterVec(prometheus.CounterOpts{
			Name: "dynforms_evidence_files_replaced_total",
			Help: "Evidence slots repointed at a new file, by slot",
		}, []string{"slot"}),
		EvidenceDeleted: f.NewCounterVec(prometheus.CounterOpts{
			Name: "dynforms_evidence_deleted_total",
			Help: "Evidence rows deleted, by kind",
		}, []string{"kind"}),
	}
}
