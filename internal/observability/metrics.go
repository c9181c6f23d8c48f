// Package observability provides Prometheus metrics for the scan engine.
package observability

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "triarb"

// Metrics holds all Prometheus metrics for the engine. A nil *Metrics is
// valid and records nothing.
type Metrics struct {
	registry *prometheus.Registry

	// Cycle metrics
	CyclesTotal     *prometheus.CounterVec
	CycleDuration   prometheus.Histogram
	Candidates      prometheus.Gauge
	PairsDiscovered prometheus.Gauge

	// Evaluation metrics
	Evaluations   *prometheus.CounterVec
	FastTracks    prometheus.Counter
	Executions    *prometheus.CounterVec
	VenueFailures *prometheus.CounterVec
	InFlight      prometheus.Gauge

	// Dedup metrics
	DedupSize *prometheus.GaugeVec

	// RPC metrics
	RPCCallLatency *prometheus.HistogramVec
}

// NewMetrics creates a Metrics instance registered on its own registry, so
// several instances can coexist in tests.
func NewMetrics() *Metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	f := promauto.With(reg)

	return &Metrics{
		registry: reg,

		CyclesTotal: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "scanner",
			Name:      "cycles_total",
			Help:      "Scan cycles by result",
		}, []string{"result"}),
		CycleDuration: f.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "scanner",
			Name:      "cycle_duration_seconds",
			Help:      "Time spent by the driver on one scan cycle",
			Buckets:   prometheus.ExponentialBuckets(0.05, 2, 12),
		}),
		Candidates: f.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "scanner",
			Name:      "candidates",
			Help:      "Candidate triples generated in the last cycle",
		}),
		PairsDiscovered: f.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "scanner",
			Name:      "pairs",
			Help:      "Token pairs resolved in the last cycle",
		}),

		Evaluations: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "evaluator",
			Name:      "evaluations_total",
			Help:      "Evaluation units by outcome",
		}, []string{"outcome"}),
		FastTracks: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "scanner",
			Name:      "fast_tracks_total",
			Help:      "Executions triggered from the high-profit set without re-quoting",
		}),
		Executions: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "executor",
			Name:      "executions_total",
			Help:      "Execution requests by path and result",
		}, []string{"path", "result"}),
		VenueFailures: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "aggregator",
			Name:      "venue_failures_total",
			Help:      "Failed venue quotes",
		}, []string{"venue"}),
		InFlight: f.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "scanner",
			Name:      "units_in_flight",
			Help:      "Evaluation units submitted but not finished",
		}),

		DedupSize: f.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "scanner",
			Name:      "dedup_keys",
			Help:      "Keys held in each dedup set",
		}, []string{"set"}),

		RPCCallLatency: f.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "chain",
			Name:      "rpc_call_latency_seconds",
			Help:      "RPC call latency in seconds",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method"}),
	}
}

// Handler returns an HTTP handler for the /metrics endpoint.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return promhttp.Handler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// Registry exposes the underlying registry.
func (m *Metrics) Registry() *prometheus.Registry {
	if m == nil {
		return nil
	}
	return m.registry
}

// RecordCycle records a finished driver pass.
func (m *Metrics) RecordCycle(result string, d time.Duration, pairs, candidates int) {
	if m == nil {
		return
	}
	m.CyclesTotal.WithLabelValues(result).Inc()
	m.CycleDuration.Observe(d.Seconds())
	m.PairsDiscovered.Set(float64(pairs))
	m.Candidates.Set(float64(candidates))
}

// RecordEvaluation counts one evaluation unit outcome.
func (m *Metrics) RecordEvaluation(outcome string) {
	if m == nil {
		return
	}
	m.Evaluations.WithLabelValues(outcome).Inc()
}

// RecordFastTrack counts one execution from the high-profit set.
func (m *Metrics) RecordFastTrack() {
	if m == nil {
		return
	}
	m.FastTracks.Inc()
}

// RecordExecution counts an execution request.
func (m *Metrics) RecordExecution(path string, ok bool) {
	if m == nil {
		return
	}
	result := "ok"
	if !ok {
		result = "failed"
	}
	m.Executions.WithLabelValues(path, result).Inc()
}

// RecordVenueFailures adds n failed quotes for venue.
func (m *Metrics) RecordVenueFailures(venue string, n int) {
	if m == nil || n <= 0 {
		return
	}
	m.VenueFailures.WithLabelValues(venue).Add(float64(n))
}

// AddInFlight moves the in-flight gauge by delta.
func (m *Metrics) AddInFlight(delta float64) {
	if m == nil {
		return
	}
	m.InFlight.Add(delta)
}

// SetDedupSizes updates the dedup set gauges.
func (m *Metrics) SetDedupSizes(skipped, highProfit int) {
	if m == nil {
		return
	}
	m.DedupSize.WithLabelValues("skipped").Set(float64(skipped))
	m.DedupSize.WithLabelValues("high_profit").Set(float64(highProfit))
}

// RecordRPCLatency records RPC call latency.
func (m *Metrics) RecordRPCLatency(method string, d time.Duration) {
	if m == nil {
		return
	}
	m.RPCCallLatency.WithLabelValues(method).Observe(d.Seconds())
}
