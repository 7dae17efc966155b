// Package metrics holds the Prometheus collectors exported on /metrics.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// HTTP metrics
	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "wachat_http_requests_total",
			Help: "Total HTTP requests",
		},
		[]string{"method", "path", "status"},
	)

	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "wachat_http_request_duration_seconds",
			Help:    "HTTP request duration",
			Buckets: []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1},
		},
		[]string{"method", "path"},
	)

	// Hub metrics
	HubConnections = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "wachat_hub_connections",
			Help: "Currently registered hub connections",
		},
	)

	HubEnvelopes = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "wachat_hub_envelopes_total",
			Help: "Envelopes received by the hub, by kind",
		},
		[]string{"kind"},
	)

	HubDeliveries = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "wachat_hub_fanout_deliveries_total",
			Help: "Envelopes queued to connections by fan-out",
		},
	)

	HubDropped = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "wachat_hub_dropped_total",
			Help: "Envelopes dropped by the hub, by reason",
		},
		[]string{"reason"},
	)

	HubEvictions = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "wachat_hub_evictions_total",
			Help: "Connections closed for inactivity",
		},
	)

	BusDropped = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "wachat_bus_dropped_events",
			Help: "Bus events discarded because a subscriber was full",
		},
	)

	// Ingestion metrics
	IngestedMessages = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "wachat_ingested_messages_total",
			Help: "Webhook messages processed, by result",
		},
		[]string{"result"},
	)

	StatusUpdates = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "wachat_status_updates_total",
			Help: "Webhook status updates processed, by result",
		},
		[]string{"result"},
	)
)
