package metrics

import (
	"time"

	"minibus-console/internal/models"

	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "minibus"

type Metrics struct {
	operations    *prometheus.CounterVec
	partialWrites prometheus.Counter
	evictions     prometheus.Counter
	sweepRuns     *prometheus.CounterVec
	sweepDuration prometheus.Histogram
	httpRequests  *prometheus.CounterVec
	httpDuration  *prometheus.HistogramVec
}

func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		operations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "assignment_operations_total",
			Help:      "Coordinator operations by operation and outcome kind.",
		}, []string{"operation", "result"}),
		partialWrites: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "partial_writes_total",
			Help:      "Operations that left a one-sided rider-bus link.",
		}),
		evictions: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "expired_links_evicted_total",
			Help:      "Rider-bus links removed by the expiry sweeper.",
		}),
		sweepRuns: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "sweep_runs_total",
			Help:      "Expiry sweeps by outcome.",
		}, []string{"outcome"}),
		sweepDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "sweep_duration_seconds",
			Help:      "Duration of expiry sweeps.",
			Buckets:   prometheus.DefBuckets,
		}),
		httpRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "HTTP requests by method, route and status.",
		}, []string{"method", "route", "status"}),
		httpDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request latency.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method", "route"}),
	}

	reg.MustRegister(
		m.operations, m.partialWrites, m.evictions,
		m.sweepRuns, m.sweepDuration, m.httpRequests, m.httpDuration,
	)
	return m
}

// ObserveOperation counts one coordinator call; result is "ok" or the error kind.
func (m *Metrics) ObserveOperation(operation string, err error) {
	if m == nil {
		return
	}
	result := "ok"
	if err != nil {
		result = string(models.KindOf(err))
		if result == "" {
			result = "error"
		}
	}
	m.operations.WithLabelValues(operation, result).Inc()
	if models.KindOf(err) == models.KindPartialWriteInconsistency {
		m.partialWrites.Inc()
	}
}

func (m *Metrics) ObserveSweep(report *models.SweepReport, err error, took time.Duration) {
	if m == nil {
		return
	}
	outcome := "ok"
	if err != nil {
		outcome = "error"
	}
	m.sweepRuns.WithLabelValues(outcome).Inc()
	m.sweepDuration.Observe(took.Seconds())
	if report != nil {
		m.evictions.Add(float64(len(report.Evicted)))
	}
}

func (m *Metrics) ObserveHTTP(method, route string, status int, took time.Duration) {
	if m == nil {
		return
	}
	m.httpRequests.WithLabelValues(method, route, statusClass(status)).Inc()
	m.httpDuration.WithLabelValues(method, route).Observe(took.Seconds())
}

func statusClass(status int) string {
	switch {
	case status >= 500:
		return "5xx"
	case status >= 400:
		return "4xx"
	case status >= 300:
		return "3xx"
	}
	return "2xx"
}
