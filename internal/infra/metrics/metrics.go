// Package metrics provides Prometheus metrics for Nexus Pulse.
// Counters, gauges and histograms for synthesis calls, refresh gating,
// trigger events and the live insight feed.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// ─── Synthesis ──────────────────────────────────────────────────────────────

// SynthesisCalls counts external synthesis calls by outcome (ok, error, timeout).
var SynthesisCalls = promauto.NewCounterVec(prometheus.CounterOpts{
	Namespace: "pulse",
	Name:      "synthesis_calls_total",
	Help:      "External synthesis calls by outcome.",
}, []string{"outcome"})

// SynthesisLatency tracks external synthesis call duration in seconds.
var SynthesisLatency = promauto.NewHistogram(prometheus.HistogramOpts{
	Namespace: "pulse",
	Name:      "synthesis_latency_seconds",
	Help:      "External synthesis call duration in seconds.",
	Buckets:   []float64{0.25, 0.5, 1, 2.5, 5, 10, 20, 30},
})

// RefreshSkipped counts refresh requests dropped before a call (in_flight, cooldown).
var RefreshSkipped = promauto.NewCounterVec(prometheus.CounterOpts{
	Namespace: "pulse",
	Name:      "refresh_skipped_total",
	Help:      "Refresh requests dropped without calling the provider.",
}, []string{"reason"})

// ─── Triggers & Insights ────────────────────────────────────────────────────

// Events counts detected trigger events by name.
var Events = promauto.NewCounterVec(prometheus.CounterOpts{
	Namespace: "pulse",
	Name:      "events_total",
	Help:      "Trigger events detected from state transitions.",
}, []string{"event"})

// InsightsCurrent tracks the live insight count by severity.
var InsightsCurrent = promauto.NewGaugeVec(prometheus.GaugeOpts{
	Namespace: "pulse",
	Name:      "insights_current",
	Help:      "Insights in the current evaluation by severity.",
}, []string{"severity"})

// LiveSubscribers tracks connected live-feed websocket clients.
var LiveSubscribers = promauto.NewGauge(prometheus.GaugeOpts{
	Namespace: "pulse",
	Name:      "live_subscribers",
	Help:      "Connected live synthesis feed clients.",
})
