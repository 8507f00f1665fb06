package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics tracks file creation, reference-counted release and blob purges.
type Metrics struct {
	FilesCreated   prometheus.Counter
	FilesReleased  prometheus.Counter
	FilesRetained  prometheus.Counter
	PurgeFailures  prometheus.Counter
	ReleaseBatches prometheus.Histogram
}

// New registers the content metrics with reg. A nil reg uses the default
// Prometheus registerer.
func New(reg prometheus.Registerer) *Metrics {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	f := promauto.With(reg)
	return &Metrics{
		FilesCreated: f.NewCounter(prometheus.CounterOpts{
			Name: "dynforms_files_created_total",
			Help: "Total number of file objects created",
		}),
		FilesReleased: f.NewCounter(prometheus.CounterOpts{
			Name: "dynforms_files_released_total",
			Help: "Total number of file objects deleted after losing their last reference",
		}),
		FilesRetained: f.NewCounter(prometheus.CounterOpts{
			Name: "dynforms_files_retained_total",
			Help: "Release candidates kept because another evidence row still references them",
		}),
		PurgeFailures: f.NewCounter(prometheus.CounterOpts{
			Name: "dynforms_blob_purge_failures_total",
			Help: "Blob purges that failed after the metadata release committed",
		}),
		ReleaseBatches: f.NewHistogram(prometheus.HistogramOpts{
			Name:    "dynforms_file_release_candidates",
			Help:    "Number of candidate file ids per release call",
			Buckets: []float64{0, 1, 2, 4, 8, 16, 32, 64},
		}),
	}
}
