package jobs

import "github.com/prometheus/client_golang/prometheus"

var (
	jobRuns = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "classroom_job_runs_total",
			Help: "Total background job runs",
		},
		[]string{"job"},
	)

	jobErrors = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "classroom_job_errors_total",
			Help: "Total background job errors",
		},
		[]string{"job"},
	)

	jobPanics = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "classroom_job_panics_total",
			Help: "Background job panics recovered by the runner",
		},
		[]string{"job"},
	)

	syncAlerts = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "classroom_autosync_auth_alerts_total",
			Help: "Auth-expired alerts sent by the auto-sync job",
		},
	)

	jobDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "classroom_job_duration_seconds",
			Help:    "Background job duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"job"},
	)
)

func init() {
	prometheus.MustRegister(jobRuns, jobErrors, jobPanics, syncAlerts, jobDuration)
}
