package run

import "github.com/prometheus/client_golang/prometheus"

// Prometheus run metrics.
var (
	jobsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "netaudit_jobs_total",
			Help: "Total number of collection jobs by terminal status.",
		},
		[]string{"status"},
	)
	commandsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "netaudit_commands_total",
			Help: "Total number of device commands by result kind.",
		},
		[]string{"kind"},
	)
	sessionsInUse = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "netaudit_sessions_in_use",
			Help: "Device sessions currently held by workers.",
		},
	)
	jobDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "netaudit_job_duration_seconds",
			Help:    "Collection job duration in seconds.",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"layer"},
	)
)

func init() {
	prometheus.MustRegister(jobsTotal)
	prometheus.MustRegister(commandsTotal)
	prometheus.MustRegister(sessionsInUse)
	prometheus.MustRegister(jobDuration)
}
