// Package metrics provides Prometheus metrics for actuation latency and
// telemetry delivery.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "edgelatency"

var (
	latencySeconds = promauto.NewHistogram(prometheus.HistogramOpts{
		Namespace: namespace,
		Subsystem: "actuation",
		Name:      "latency_seconds",
		Help:      "Time from input edge to indicator update",
		// 1µs .. ~260ms
		Buckets: prometheus.ExponentialBuckets(1e-6, 4, 10),
	})

	latencyCycles = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Subsystem: "actuation",
		Name:      "latency_cycles",
		Help:      "Cycle count of the most recent actuation",
	})

	eventsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "actuation",
		Name:      "events_total",
		Help:      "Processed actuation events",
	})

	actuatorOn = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Subsystem: "actuation",
		Name:      "on",
		Help:      "Actuator state (1 on, 0 off)",
	})

	sendTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "transport",
		Name:      "send_total",
		Help:      "Telemetry send attempts by result",
	}, []string{"transport", "result"})

	recipientActive = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: namespace,
		Subsystem: "transport",
		Name:      "recipient_active",
		Help:      "Whether the transport currently has a recipient",
	}, []string{"transport"})

	edgesSignalled = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Subsystem: "edges",
		Name:      "signalled",
		Help:      "Edges delivered to the notifier since start",
	})

	edgesCoalesced = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Subsystem: "edges",
		Name:      "coalesced",
		Help:      "Edges folded into an already pending wake-up",
	})

	logEntries = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "log_entries_total",
		Help:      "Log entries written by level",
	}, []string{"level"})
)

// ObserveLatency records one actuation.
func ObserveLatency(seconds float64, cycles uint32, on bool) {
	latencySeconds.Observe(seconds)
	latencyCycles.Set(float64(cycles))
	eventsTotal.Inc()
	if on {
		actuatorOn.Set(1)
	} else {
		actuatorOn.Set(0)
	}
}

// IncSend counts a send attempt.
func IncSend(transport, result string) {
	sendTotal.WithLabelValues(transport, result).Inc()
}

// SetRecipientActive records whether transport has a recipient.
func SetRecipientActive(transport string, active bool) {
	v := 0.0
	if active {
		v = 1
	}
	recipientActive.WithLabelValues(transport).Set(v)
}

// SetEdgeCounters publishes the notifier counters.
func SetEdgeCounters(signalled, coalesced uint64) {
	edgesSignalled.Set(float64(signalled))
	edgesCoalesced.Set(float64(coalesced))
}

// IncLogEntry counts a log entry at level.
func IncLogEntry(level string) {
	logEntries.WithLabelValues(level).Inc()
}
