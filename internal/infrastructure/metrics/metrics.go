package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// Room lifecycle
	RoomsCreated = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "cucme_rooms_created_total",
			Help: "Total rooms created",
		},
	)

	RoomsDeleted = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "cucme_rooms_deleted_total",
			Help: "Total rooms deleted",
		},
		[]string{"reason"}, // "empty" or "expired"
	)

	JoinAttempts = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "cucme_join_attempts_total",
			Help: "Total join attempts by outcome",
		},
		[]string{"outcome"}, // "joined", "not_found", "expired", "bad_credential", "full", "error"
	)

	LocationUpdates = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "cucme_location_updates_total",
			Help: "Total location updates applied",
		},
	)

	SweptRooms = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "cucme_swept_rooms_total",
			Help: "Total expired rooms reclaimed by the sweeper",
		},
	)

	// Transport
	ActiveConnections = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "cucme_ws_active_connections",
			Help: "Active WebSocket connections",
		},
	)

	EventsSent = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "cucme_ws_events_sent_total",
			Help: "Total events enqueued for delivery to clients",
		},
		[]string{"event"},
	)

	EventsDropped = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "cucme_ws_events_dropped_total",
			Help: "Total events dropped because a client send buffer was full",
		},
	)
)
