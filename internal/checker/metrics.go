package checker

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// ProbesTotal counts finished probes by result (online / offline).
	ProbesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "streamscout_probes_total",
		Help: "Total number of channel reachability probes",
	}, []string{"result"})

	// CheckDuration observes how long a full reachability pass takes.
	CheckDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "streamscout_check_duration_seconds",
		Help:    "Duration of a full reachability pass",
		Buckets: []float64{0.5, 1, 2.5, 5, 10, 30, 60, 120, 300, 600},
	})

	// CheckBatches counts probe batches started.
	CheckBatches = promauto.NewCounter(prometheus.CounterOpts{
		Name: "streamscout_check_batches_total",
		Help: "Total number of probe batches executed",
	})
)
