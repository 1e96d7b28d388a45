package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

func init() { register(scanJobsTotal, analysisDuration) }

var scanJobsTotal = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Name: "scan_jobs_total",
		Help: "Resolved scan jobs by outcome and winning completion channel.",
	},
	[]string{"outcome", "channel"}, // outcome: done/failed/empty/timeout, channel: poll/push
)

var analysisDuration = prometheus.NewHistogramVec(
	prometheus.HistogramOpts{
		Name:    "scan_analysis_duration_seconds",
		Help:    "Wall time from image submission to pipeline resolution.",
		Buckets: []float64{0.5, 1, 2, 5, 10, 20, 30, 60},
	},
	[]string{"outcome"},
)

func IncScanJob(outcome, channel string) {
	scanJobsTotal.WithLabelValues(norm(outcome), norm(channel)).Inc()
}

func ObserveAnalysis(outcome string, d time.Duration) {
	analysisDuration.WithLabelValues(norm(outcome)).Observe(d.Seconds())
}
