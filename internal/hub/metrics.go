package hub

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	hubConnectionsGauge = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "kanban_hub_connections",
		Help: "Current number of registered websocket connections",
	})

	hubRoomsGauge = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "kanban_hub_rooms",
		Help: "Current number of non-empty board rooms",
	})

	hubBroadcastsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "kanban_hub_broadcasts_total",
		Help: "Total number of events broadcast to board rooms",
	}, []string{"event"})

	hubDroppedMessagesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "kanban_hub_dropped_messages_total",
		Help: "Number of messages dropped because a queue was full",
	}, []string{"queue"})

	hubEditingExpiredTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "kanban_hub_editing_expired_total",
		Help: "Number of editing indicators removed by the expiry timer",
	})
)
