// Package metrics exposes the mailbox and transport counters a running
// session publishes for operational visibility. None of these feed back
// into coordination decisions; they are pure observation.
package metrics

import "github.com/prometheus/client_golang/prometheus"

// Collectors groups every metric a session publishes. Construct one
// with NewCollectors and register it on a prometheus.Registerer before
// starting a session.
type Collectors struct {
	BatchesSent       prometheus.Counter
	BatchesReceived   prometheus.Counter
	EventLoopEvents   *prometheus.CounterVec
	PeerConnections   prometheus.Gauge
	ChannelsAllocated prometheus.Gauge
}

// NewCollectors builds a fresh, unregistered set of collectors.
func NewCollectors() *Collectors {
	return &Collectors{
		BatchesSent: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "husky",
			Subsystem: "mailbox",
			Name:      "batches_sent_total",
			Help:      "Batches handed off to the event loop via LocalMailbox.Send.",
		}),
		BatchesReceived: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "husky",
			Subsystem: "mailbox",
			Name:      "batches_received_total",
			Help:      "Batches delivered into a LocalMailbox's incoming queue.",
		}),
		EventLoopEvents: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "husky",
			Subsystem: "eventloop",
			Name:      "completions_total",
			Help:      "OutComplete/InComplete transitions processed, by direction.",
		}, []string{"direction"}),
		PeerConnections: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "husky",
			Subsystem: "peer",
			Name:      "connections",
			Help:      "Currently open outgoing peer-sender connections.",
		}),
		ChannelsAllocated: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "husky",
			Subsystem: "factory",
			Name:      "channels_allocated",
			Help:      "Channel ids with a live accessor or shuffle-combiner set.",
		}),
	}
}

// MustRegister registers every collector on reg, panicking on a
// duplicate registration (mirrors prometheus.MustRegister's contract).
func (c *Collectors) MustRegister(reg prometheus.Registerer) {
	reg.MustRegister(
		c.BatchesSent,
		c.BatchesReceived,
		c.EventLoopEvents,
		c.PeerConnections,
		c.ChannelsAllocated,
	)
}
