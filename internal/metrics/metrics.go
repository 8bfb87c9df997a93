// Package metrics exposes Prometheus collectors for the ledger engine.
// All recording methods are safe on a nil *Metrics, so components can run without metrics.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds the collectors registered on a private registry.
type Metrics struct {
	registry *prometheus.Registry

	joinDrops    *prometheus.CounterVec
	joinLatency  prometheus.Histogram
	writes       *prometheus.CounterVec
	replications *prometheus.CounterVec
	rpcs         *prometheus.HistogramVec
}

// New creates and registers all collectors.
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		joinDrops: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "splitbill",
			Name:      "join_dropped_total",
			Help:      "Branches dropped while reconstructing expenses, by reason.",
		}, []string{"reason"}),
		joinLatency: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "splitbill",
			Name:      "join_duration_seconds",
			Help:      "Time to reconstruct a user's expenses.",
			Buckets:   prometheus.DefBuckets,
		}),
		writes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "splitbill",
			Name:      "ledger_writes_total",
			Help:      "Ledger mutations by operation and result.",
		}, []string{"op", "result"}),
		replications: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "splitbill",
			Name:      "companion_pushes_total",
			Help:      "Companion snapshot push attempts by outcome.",
		}, []string{"outcome"}),
		rpcs: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "splitbill",
			Name:      "rpc_duration_seconds",
			Help:      "RPC latency by procedure and code.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"procedure", "code"}),
	}

	m.registry.MustRegister(
		m.joinDrops,
		m.joinLatency,
		m.writes,
		m.replications,
		m.rpcs,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return m
}

// Handler serves the registry in the Prometheus text format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// Registry exposes the underlying registry, mainly for tests.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

func (m *Metrics) JoinDropped(reason string) {
	if m == nil {
		return
	}
	m.joinDrops.WithLabelValues(reason).Inc()
}

func (m *Metrics) JoinFinished(start time.Time) {
	if m == nil {
		return
	}
	m.joinLatency.Observe(time.Since(start).Seconds())
}

func (m *Metrics) Write(op string, err error) {
	if m == nil {
		return
	}
	result := "ok"
	if err != nil {
		result = "error"
	}
	m.writes.WithLabelValues(op, result).Inc()
}

func (m *Metrics) Replication(outcome string) {
	if m == nil {
		return
	}
	m.replications.WithLabelValues(outcome).Inc()
}

func (m *Metrics) RPC(procedure, code string, d time.Duration) {
	if m == nil {
		return
	}
	m.rpcs.WithLabelValues(procedure, code).Observe(d.Seconds())
}
