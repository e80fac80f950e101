// Package metrics holds the process-wide prometheus instruments, exposed on
// the /metrics endpoint.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// MessagesRelayed counts records accepted by the relay, labeled by
	// ingress surface ("ws" or "http").
	MessagesRelayed = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "veery",
		Name:      "messages_relayed_total",
		Help:      "Messages persisted by the relay.",
	}, []string{"ingress"})

	// DeliveriesDropped counts peers dropped from the broadcast set after a
	// failed delivery.
	DeliveriesDropped = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "veery",
		Name:      "deliveries_dropped_total",
		Help:      "Broadcast deliveries that failed and dropped the session.",
	})

	// OpenSessions tracks the currently registered realtime sessions.
	OpenSessions = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "veery",
		Name:      "open_sessions",
		Help:      "Currently open realtime sessions.",
	})
)
