package infrastructure

import (
	"github.com/prometheus/client_golang/prometheus"

	"github.com/yourusername/yt-convert-go/internal/domain"
)

// Metrics holds the prometheus collectors for conversion jobs
type Metrics struct {
	jobsTotal   *prometheus.CounterVec
	inFlight    prometheus.Gauge
	duration    *prometheus.HistogramVec
	bytesSource prometheus.Counter
}

// NewMetrics creates the job collectors and registers them with reg
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		jobsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "ytconvert",
			Name:      "jobs_total",
			Help:      "Conversion jobs by requested format and outcome.",
		}, []string{"format", "outcome"}),
		inFlight: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "ytconvert",
			Name:      "jobs_in_flight",
			Help:      "Conversion jobs currently running.",
		}),
		duration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "ytconvert",
			Name:      "job_duration_seconds",
			Help:      "Wall time of finished conversion jobs.",
			Buckets:   []float64{1, 5, 15, 30, 60, 120, 300, 600, 1800},
		}, []string{"format", "outcome"}),
		bytesSource: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "ytconvert",
			Name:      "source_bytes_total",
			Help:      "Bytes read from source streams.",
		}),
	}

	if reg != nil {
		reg.MustRegister(m.jobsTotal, m.inFlight, m.duration, m.bytesSource)
	}
	return m
}

// JobStarted marks a job as running
func (m *Metrics) JobStarted() {
	m.inFlight.Inc()
}

// JobFinished records a terminal job. outcome is "succeeded" or the
// failure stage.
func (m *Metrics) JobFinished(job *domain.Job, sourceBytes int64) {
	m.inFlight.Dec()

	outcome := string(domain.StateSucceeded)
	if job.State == domain.StateFailed {
		outcome = string(job.FailureStage)
	}
	format := string(job.Request.Format)

	m.jobsTotal.WithLabelValues(format, outcome).Inc()
	m.duration.WithLabelValues(format, outcome).Observe(job.Elapsed().Seconds())
	if sourceBytes > 0 {
		m.bytesSource.Add(float64(sourceBytes))
	}
}

// Rejected counts a request refused before a job was created
func (m *Metrics) Rejected(format string, stage domain.FailureStage) {
	m.jobsTotal.WithLabelValues(format, string(stage)).Inc()
}
