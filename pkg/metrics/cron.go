package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const (
	resultSuccess = "success"
	resultFailure = "failure"
)

// CronJobMetrics tracks scheduled job runs. A nil value is a no-op.
type CronJobMetrics struct {
	duration    *prometheus.HistogramVec
	runs        *prometheus.CounterVec
	lastSuccess *prometheus.GaugeVec
}

func NewCronJobMetrics(reg prometheus.Registerer) *CronJobMetrics {
	if reg == nil {
		return nil
	}
	m := &CronJobMetrics{
		duration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "cron",
			Name:      "job_duration_seconds",
			Help:      "Duration of cron jobs in seconds.",
			Buckets:   []float64{0.01, 0.05, 0.1, 0.5, 1, 5, 15, 60},
		}, []string{"job"}),
		runs: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "cron",
			Name:      "job_runs_total",
			Help:      "Cron job runs by result.",
		}, []string{"job", "result"}),
		lastSuccess: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "cron",
			Name:      "job_last_success_timestamp_seconds",
			Help:      "Unix time of the last successful run.",
		}, []string{"job"}),
	}
	reg.MustRegister(m.duration, m.runs, m.lastSuccess)
	return m
}

// Record stores one finished run of job. A nil err counts as success.
func (c *CronJobMetrics) Record(job string, elapsed time.Duration, err error) {
	if c == nil {
		return
	}
	job = normalizeLabel(job)
	c.duration.WithLabelValues(job).Observe(elapsed.Seconds())
	if err != nil {
		c.runs.WithLabelValues(job, resultFailure).Inc()
		return
	}
	c.runs.WithLabelValues(job, resultSuccess).Inc()
	c.lastSuccess.WithLabelValues(job).SetToCurrentTime()
}

func normalizeLabel(job string) string {
	if job == "" {
		return "unknown"
	}
	return job
}
