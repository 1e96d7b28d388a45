package metrics

import "github.com/prometheus/client_golang/prometheus"

func init() { register(submissionsTotal, activePipelines, pushEventsTotal) }

var submissionsTotal = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Name: "record_submissions_total",
		Help: "Record submissions by status (succeeded/failed).",
	},
	[]string{"status"},
)

var activePipelines = prometheus.NewGauge(
	prometheus.GaugeOpts{
		Name: "registration_pipelines_active",
		Help: "Number of live per-user registration pipelines.",
	},
)

var pushEventsTotal = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Name: "push_events_total",
		Help: "Webhook push events by reported job status.",
	},
	[]string{"status"},
)

func IncSubmission(status string) {
	submissionsTotal.WithLabelValues(norm(status)).Inc()
}

func SetActivePipelines(n int) {
	activePipelines.Set(float64(n))
}

func IncPushEvent(status string) {
	pushEventsTotal.WithLabelValues(norm(status)).Inc()
}
