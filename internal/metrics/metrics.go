// Package metrics adapts the teacher's internal/monitoring metrics manager
// into three narrow prometheus.Collector groups (fetch, rate limiter,
// storage) registered against a caller-supplied Registry rather than the
// global DefaultRegisterer, per SPEC_FULL.md B.2 ("no process-wide
// singleton in the core").
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Registry wraps a *prometheus.Registry so callers construct exactly one
// and pass it into every metrics group they want wired.
type Registry struct {
	reg *prometheus.Registry
}

// NewRegistry creates an empty registry. Callers register Go/process
// collectors themselves if they want them; this package stays narrow.
func NewRegistry() *Registry {
	return &Registry{reg: prometheus.NewRegistry()}
}

// Prometheus exposes the underlying registry, e.g. for promhttp.HandlerFor.
func (r *Registry) Prometheus() *prometheus.Registry {
	return r.reg
}

// Fetch holds the fetch-layer metrics: request count/latency by status,
// and the "short/empty HTML" retry signal used by internal/retry.
type Fetch struct {
	requestsTotal   *prometheus.CounterVec
	requestDuration *prometheus.HistogramVec
	retriesTotal    *prometheus.CounterVec
}

// NewFetch registers and returns a Fetch metrics group.
func NewFetch(reg *Registry, namespace string) *Fetch {
	f := &Fetch{
		requestsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "fetch",
				Name:      "requests_total",
				Help:      "Total fetch attempts by host and outcome status.",
			},
			[]string{"host", "status"},
		),
		requestDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Subsystem: "fetch",
				Name:      "request_duration_seconds",
				Help:      "Fetch latency in seconds by host.",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"host"},
		),
		retriesTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "fetch",
				Name:      "retries_total",
				Help:      "Total fetch retries by host and reason.",
			},
			[]string{"host", "reason"},
		),
	}
	reg.reg.MustRegister(f.requestsTotal, f.requestDuration, f.retriesTotal)
	return f
}

// Observe records one fetch attempt's outcome and duration.
func (f *Fetch) Observe(host, status string, d time.Duration) {
	f.requestsTotal.WithLabelValues(host, status).Inc()
	f.requestDuration.WithLabelValues(host).Observe(d.Seconds())
}

// Retry records a retry attempt for a given reason (e.g. "status_503",
// "short_html", "timeout").
func (f *Fetch) Retry(host, reason string) {
	f.retriesTotal.WithLabelValues(host, reason).Inc()
}

// RateLimiter holds the per-fetcher acquisition wait histogram.
type RateLimiter struct {
	waitDuration *prometheus.HistogramVec
}

// NewRateLimiter registers and returns a RateLimiter metrics group.
func NewRateLimiter(reg *Registry, namespace string) *RateLimiter {
	r := &RateLimiter{
		waitDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Subsystem: "ratelimit",
				Name:      "wait_seconds",
				Help:      "Time spent waiting in Limiter.Acquire by fetcher name.",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"fetcher"},
		),
	}
	reg.reg.MustRegister(r.waitDuration)
	return r
}

// Observe records the time a caller spent blocked in Acquire.
func (r *RateLimiter) Observe(fetcher string, d time.Duration) {
	r.waitDuration.WithLabelValues(fetcher).Observe(d.Seconds())
}

// Storage holds per-operation, per-backend count and latency metrics for
// the storage engine (FileStore and the optional sql/document backends).
type Storage struct {
	opsTotal    *prometheus.CounterVec
	opsDuration *prometheus.HistogramVec
	opsErrors   *prometheus.CounterVec
}

// NewStorage registers and returns a Storage metrics group.
func NewStorage(reg *Registry, namespace string) *Storage {
	s := &Storage{
		opsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "storage",
				Name:      "operations_total",
				Help:      "Total storage operations by backend and operation.",
			},
			[]string{"backend", "op"},
		),
		opsDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Subsystem: "storage",
				Name:      "operation_duration_seconds",
				Help:      "Storage operation latency in seconds.",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"backend", "op"},
		),
		opsErrors: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "storage",
				Name:      "operation_errors_total",
				Help:      "Total storage operation errors by backend, operation and category.",
			},
			[]string{"backend", "op", "category"},
		),
	}
	reg.reg.MustRegister(s.opsTotal, s.opsDuration, s.opsErrors)
	return s
}

// Observe records one storage operation's outcome.
func (s *Storage) Observe(backend, op string, d time.Duration, err error, category string) {
	s.opsTotal.WithLabelValues(backend, op).Inc()
	s.opsDuration.WithLabelValues(backend, op).Observe(d.Seconds())
	if err != nil {
		s.opsErrors.WithLabelValues(backend, op, category).Inc()
	}
}
