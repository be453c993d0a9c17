package dispatch

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	jobsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "phishreview_dispatch_jobs_total",
			Help: "Executed dispatch jobs by kind and status.",
		},
		[]string{"kind", "status"},
	)
	jobDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "phishreview_dispatch_job_duration_seconds",
			Help:    "Duration of the Gateway call made by a dispatch job.",
			Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
		},
		[]string{"kind"},
	)
	queueWait = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "phishreview_dispatch_queue_wait_seconds",
			Help:    "Time between enqueue and execution start.",
			Buckets: []float64{0.01, 0.1, 0.5, 1, 2, 5, 10, 30, 60},
		},
		[]string{"kind"},
	)
	queueDepth = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "phishreview_dispatch_queue_depth",
		Help: "Jobs waiting for the dispatch worker.",
	})
	statsDropped = promauto.NewCounter(prometheus.CounterOpts{
		Name: "phishreview_dispatch_stats_dropped_total",
		Help: "Stats events dropped because the recorder fell behind.",
	})
)
