package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// ActiveSessions tracks live sessions in the registry.
	ActiveSessions = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "classpulse_active_sessions",
			Help: "Number of live sessions",
		},
	)

	// ConnectedClients tracks open websocket connections.
	ConnectedClients = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "classpulse_connected_clients",
			Help: "Number of open realtime connections",
		},
	)

	// EventsProcessed counts gateway events by name and outcome code
	// (ok or the stable error code returned to the client).
	EventsProcessed = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "classpulse_events_total",
			Help: "Total number of gateway events processed",
		},
		[]string{"event", "result"},
	)

	// Broadcasts counts messages fanned out to session and room channels.
	Broadcasts = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "classpulse_broadcasts_total",
			Help: "Total number of broadcast messages delivered to channels",
		},
		[]string{"event"},
	)

	// SweptSessions counts sessions reaped by the expiry sweeper.
	SweptSessions = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "classpulse_swept_sessions_total",
			Help: "Total number of sessions removed by the expiry sweeper",
		},
	)

	// APILatency measures HTTP request latencies for the plain HTTP surface.
	APILatency = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "classpulse_api_latency_seconds",
			Help:    "API endpoint latency",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "path", "status"},
	)
)
