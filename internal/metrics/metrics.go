package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// HTTP metrics
	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "chatsync_http_requests_total",
			Help: "Total HTTP requests",
		},
		[]string{"method", "path", "status"},
	)

	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "chatsync_http_request_duration_seconds",
			Help:    "HTTP request duration",
			Buckets: []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1},
		},
		[]string{"method", "path"},
	)

	// Engine metrics
	EventsApplied = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "chatsync_events_applied_total",
			Help: "Inbound events reconciled into the store",
		},
		[]string{"event_type", "changed"},
	)

	EventsDropped = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "chatsync_events_dropped_total",
			Help: "Inbound events that could not be applied",
		},
		[]string{"reason"}, // "decode" or "unknown_reference"
	)

	CommandsSent = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "chatsync_commands_sent_total",
			Help: "Outbound commands accepted by the transport",
		},
		[]string{"command_type"},
	)

	CommandsFailed = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "chatsync_commands_failed_total",
			Help: "Outbound commands the transport could not deliver",
		},
		[]string{"command_type", "retryable"},
	)

	Rollbacks = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "chatsync_rollbacks_total",
			Help: "Optimistic changes undone after a rejection or terminal failure",
		},
		[]string{"command_type"},
	)

	// Infrastructure metrics
	TransportReconnects = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "chatsync_transport_reconnects_total",
			Help: "Transport sessions re-established",
		},
	)

	FetchLatency = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "chatsync_fetch_latency_seconds",
			Help:    "Conversation list and history fetch latency",
			Buckets: []float64{.005, .01, .025, .05, .1, .25, .5, 1, 2.5},
		},
		[]string{"kind"}, // "conversations" or "history"
	)
)
