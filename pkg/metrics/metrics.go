package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// ActiveSessions tracks sessions currently held in the cache.
	ActiveSessions = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "careview_active_sessions",
			Help: "Number of active user sessions",
		},
	)

	// WebsocketConnections tracks live websocket connections by user role.
	WebsocketConnections = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "careview_websocket_connections",
			Help: "Live websocket connections",
		},
		[]string{"role"},
	)

	// WebsocketRooms tracks the number of active ad-hoc rooms.
	WebsocketRooms = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "careview_websocket_rooms",
			Help: "Number of active websocket rooms",
		},
	)

	// NotificationsCreated counts notifications created by type.
	NotificationsCreated = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "careview_notifications_created_total",
			Help: "Total number of notifications created",
		},
		[]string{"type"},
	)

	// PushesDelivered counts websocket pushes by outcome (sent|skipped).
	PushesDelivered = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "careview_pushes_total",
			Help: "Total number of websocket push attempts",
		},
		[]string{"result"},
	)

	// RateLimited counts requests rejected by the rate limiter.
	RateLimited = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "careview_rate_limited_total",
			Help: "Total number of rate-limited requests",
		},
	)
)
