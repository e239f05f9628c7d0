// Package metrics exports prometheus metrics about top-level invocations.
package metrics

import (
	"errors"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/govm-net/vmhost/budget"
	"github.com/govm-net/vmhost/types"
)

const namespace = "vmhost"

// Metrics records invocation outcomes and resource usage. A nil *Metrics is
// valid and records nothing.
type Metrics struct {
	invocations *prometheus.CounterVec
	failures    *prometheus.CounterVec
	duration    prometheus.Histogram
	usage       *prometheus.CounterVec
	uploads     prometheus.Counter
}

// New creates the metrics and registers them with reg.
func New(reg prometheus.Registerer) (*Metrics, error) {
	m := &Metrics{
		invocations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "invocations_total",
			Help:      "Top-level invocations by kind and result",
		}, []string{"kind", "result"}),
		failures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "failures_total",
			Help:      "Failed top-level invocations by error category",
		}, []string{"category"}),
		duration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "invocation_duration_seconds",
			Help:      "Wall time of top-level invocations",
			Buckets:   prometheus.ExponentialBuckets(0.0005, 2, 14),
		}),
		usage: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "budget_used_total",
			Help:      "Budget consumed by top-level invocations per counter",
		}, []string{"counter"}),
		uploads: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "wasm_uploads_total",
			Help:      "Contract code uploads",
		}),
	}
	errs := []error{}
	for _, c := range []prometheus.Collector{m.invocations, m.failures, m.duration, m.usage, m.uploads} {
		errs = append(errs, reg.Register(c))
	}
	if err := errors.Join(errs...); err != nil {
		return nil, err
	}
	return m, nil
}

// ObserveInvocation records one finished top-level invocation.
func (m *Metrics) ObserveInvocation(kind string, elapsed time.Duration, usage budget.Usage, err error) {
	if m == nil {
		return
	}
	result := "ok"
	if err != nil {
		result = "failed"
		m.failures.WithLabelValues(types.AsHostError(err).Err.Category.String()).Inc()
	}
	m.invocations.WithLabelValues(kind, result).Inc()
	m.duration.Observe(elapsed.Seconds())
	for c := budget.Counter(0); int(c) < budget.CounterCount; c++ {
		m.usage.WithLabelValues(c.String()).Add(float64(usage.Get(c)))
	}
}

// ObserveUpload counts a code upload.
func (m *Metrics) ObserveUpload() {
	if m == nil {
		return
	}
	m.uploads.Inc()
}
