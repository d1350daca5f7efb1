// Package metrics exposes the worker's Prometheus instrumentation. All
// counters live on one Collector so the consumer and the serving mux share
// a single registration point.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Outcome labels recorded per handled message.
const (
	OutcomeProcessed = "processed"
	OutcomeFailed    = "failed"
)

// Collector holds all Prometheus metrics for the ingest worker.
type Collector struct {
	MessagesReceived prometheus.Counter
	MessagesDeleted  prometheus.Counter
	PoisonMessages   prometheus.Counter
	LockSkips        prometheus.Counter
	JobsTotal        *prometheus.CounterVec
	JobsActive       prometheus.Gauge
	JobDuration      prometheus.Histogram
}

// NewCollector creates a metrics collector registered against reg. Tests
// pass a private registry; the worker passes the default one.
func NewCollector(reg prometheus.Registerer) *Collector {
	f := promauto.With(reg)
	return &Collector{
		MessagesReceived: f.NewCounter(prometheus.CounterOpts{
			Name: "ingest_messages_received_total",
			Help: "Total number of queue messages received",
		}),
		MessagesDeleted: f.NewCounter(prometheus.CounterOpts{
			Name: "ingest_messages_deleted_total",
			Help: "Total number of queue messages deleted after handling",
		}),
		PoisonMessages: f.NewCounter(prometheus.CounterOpts{
			Name: "ingest_poison_messages_total",
			Help: "Total number of malformed queue messages dropped",
		}),
		LockSkips: f.NewCounter(prometheus.CounterOpts{
			Name: "ingest_lock_skips_total",
			Help: "Total number of messages left for redelivery because the job was locked",
		}),
		JobsTotal: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "ingest_jobs_total",
				Help: "Total number of job runs by outcome",
			},
			[]string{"outcome"},
		),
		JobsActive: f.NewGauge(prometheus.GaugeOpts{
			Name: "ingest_jobs_active",
			Help: "Number of jobs currently being processed",
		}),
		JobDuration: f.NewHistogram(prometheus.HistogramOpts{
			Name:    "ingest_job_duration_seconds",
			Help:    "Duration of job runs in seconds",
			Buckets: prometheus.ExponentialBuckets(0.1, 2, 14), // 100ms to ~14min
		}),
	}
}

// RecordJobStarted records the start of one job run.
func (c *Collector) RecordJobStarted() {
	c.JobsActive.Inc()
}

// RecordJobFinished records the outcome and duration of one job run.
func (c *Collector) RecordJobFinished(outcome string, seconds float64) {
	c.JobsActive.Dec()
	c.JobsTotal.WithLabelValues(outcome).Inc()
	c.JobDuration.Observe(seconds)
}
