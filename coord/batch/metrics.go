package batch

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics counts executor traffic. A nil *Metrics records nothing.
type Metrics struct {
	Requests   prometheus.Counter
	Jobs       prometheus.Counter
	Failures   prometheus.Counter
	JobSeconds prometheus.Histogram
}

// NewMetrics creates executor metrics labelled with executor and registers
// them with reg. A nil reg leaves them unregistered.
func NewMetrics(reg prometheus.Registerer, executor string) (*Metrics, error) {
	labels := prometheus.Labels{"executor": executor}
	m := &Metrics{
		Requests: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "poptim", Subsystem: "executor", Name: "requests_total",
			Help: "Encoded requests evaluated.", ConstLabels: labels,
		}),
		Jobs: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "poptim", Subsystem: "executor", Name: "jobs_total",
			Help: "Executor jobs run; one job carries at most batch-capacity requests.", ConstLabels: labels,
		}),
		Failures: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "poptim", Subsystem: "executor", Name: "job_failures_total",
			Help: "Executor jobs that returned an error.", ConstLabels: labels,
		}),
		JobSeconds: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "poptim", Subsystem: "executor", Name: "job_duration_seconds",
			Help: "Wall time of one executor job.", ConstLabels: labels,
			Buckets: prometheus.ExponentialBuckets(0.001, 4, 10),
		}),
	}
	if reg == nil {
		return m, nil
	}
	for _, c := range []prometheus.Collector{m.Requests, m.Jobs, m.Failures, m.JobSeconds} {
		if err := reg.Register(c); err != nil {
			return nil, err
		}
	}
	return m, nil
}

func (m *Metrics) observeJob(requests int, elapsed time.Duration, err error) {
	if m == nil {
		return
	}
	m.Jobs.Inc()
	m.JobSeconds.Observe(elapsed.Seconds())
	if err != nil {
		m.Failures.Inc()
		return
	}
	m.Requests.Add(float64(requests))
}
