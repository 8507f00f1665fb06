package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics provides observability for the template catalog.
type Metrics struct {
	TemplatesCreated      prometheus.Counter
	VersionsCreated       prometheus.Counter
	VersionsPublished     prometheus.Counter
	VersionConflicts      prometheus.Counter
	CreateVersionDuration prometheus.Histogram
	LatestVersionDuration prometheus.Histogram
}

// New registers the catalog metrics with reg. A nil reg uses the default
// Prometheus registerer.
func New(reg prometheus.Registerer) *Metrics {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	f := promauto.With(reg)
	return &Metrics{
		TemplatesCreated: f.NewCounter(prometheus.CounterOpts{
			Name: "dynforms_templates_created_total",
			Help: "Total number of templates created",
		}),
		VersionsCreated: f.NewCounter(prometheus.CounterOpts{
			Name: "dynforms_template_versions_created_total",
			Help: "Total number of template versions created",
		}),
		VersionsPublished: f.NewCounter(prometheus.CounterOpts{
			Name: "dynforms_template_versions_published_total",
			Help: "Total number of template versions published",
		}),
		VersionConflicts: f.NewCounter(prometheus.CounterOpts{
			Name: "dynforms_template_version_conflicts_total",
			Help: "CreateVersion calls that lost a version-number race",
		}),
		CreateVersionDuration: f.NewHistogram(prometheus.HistogramOpts{
			Name:    "dynforms_create_version_duration_seconds",
			Help:    "Duration of CreateVersion operations",
			Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1},
		}),
		LatestVersionDuration: f.NewHistogram(prometheus.HistogramOpts{
			Name:    "dynforms_latest_version_duration_seconds",
			Help:    "Duration of GetLatestVersion operations",
			Buckets: []float64{0.0005, 0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25},
		}),
	}
}

// ObserveCreateVersion records the duration of a CreateVersion operation.
// Call with time.Now() at the start of the operation.
func (m *Metrics) ObserveCreateVersion(start time.Time) {
	m.CreateVersionDuration.Observe(time.Since(start).Seconds())
}

// ObserveLatestVersion records the duration of a GetLatestVersion operation.
func (m *Metrics) ObserveLatestVersion(start time.Time) {
	m.LatestVersionDuration.Observe(time.Since(start).Seconds())
}
