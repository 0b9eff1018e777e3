package bridge

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	connectedContexts = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "notehub_bridge_connected_contexts",
		Help: "Live contexts currently attached to the bridge hub.",
	})
	requestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "notehub_bridge_requests_total",
		Help: "Bridge requests dispatched, by operation and outcome.",
	}, []string{"op", "outcome"})
	broadcastsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "notehub_bridge_broadcasts_total",
		Help: "Changed events enqueued for delivery to contexts.",
	})
	droppedEventsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "notehub_bridge_dropped_events_total",
		Help: "Changed events dropped because a context outbox was full.",
	})
)
