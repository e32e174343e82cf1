// Package metrics provides Prometheus instrumentation for the Heartlink
// chat service. It exposes gauges for session and connection counts,
// counters for message throughput, and histograms for send latency.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// ActiveSessions tracks the current number of open chat sessions.
	ActiveSessions = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "heartlink_active_sessions",
		Help: "Current number of open chat sessions",
	})

	// SessionFailures counts session initialization failures, labeled by
	// the stage that failed: "counterpart", "conversation", "history",
	// "feed".
	SessionFailures = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "heartlink_session_failures_total",
		Help: "Total number of session initialization failures",
	}, []string{"stage"})

	// MessagesTotal counts messages processed, labeled by outcome:
	// "sent", "received", "duplicate", or "failed".
	MessagesTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "heartlink_messages_total",
		Help: "Total number of messages processed",
	}, []string{"outcome"})

	// SendLatency records message persistence latency in seconds.
	SendLatency = prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "heartlink_send_latency_seconds",
		Help:    "Message send latency in seconds",
		Buckets: []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1},
	})

	// TypingSignalsTotal counts typing signals written to the backend.
	TypingSignalsTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "heartlink_typing_signals_total",
		Help: "Total number of typing signals written",
	})

	// ConnectionsTotal tracks the current number of gateway WebSocket
	// connections.
	ConnectionsTotal = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "heartlink_connections_total",
		Help: "Current number of active WebSocket connections",
	})
)

func init() {
	prometheus.MustRegister(
		ActiveSessions,
		SessionFailures,
		MessagesTotal,
		SendLatency,
		TypingSignalsTotal,
		ConnectionsTotal,
	)
}

// Handler returns the Prometheus metrics HTTP handler.
func Handler() http.Handler {
	return promhttp.Handler()
}
