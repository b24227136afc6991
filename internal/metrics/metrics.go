// Package metrics backs the Message Router's counters (spec §4.6) and
// the Server's observable pool/registry state (spec §4.1, §7) with
// real prometheus instruments instead of hand-rolled atomics.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// RouterCounters are the Message Router's five running totals: messages
// processed, commands processed, messages sent, bytes received, bytes
// sent. Each is a prometheus.Counter, which is atomic by construction.
type RouterCounters struct {
	ProcessedMessages prometheus.Counter
	ProcessedCommands prometheus.Counter
	SentMessages      prometheus.Counter
	ReceivedBytes     prometheus.Counter
	SentBytes         prometheus.Counter
}

// Registry bundles the router counters with the gauges exposed through
// an optional /metrics HTTP endpoint.
type Registry struct {
	reg *prometheus.Registry

	Router RouterCounters
}

// New constructs a fresh, unregistered-with-the-default-registry
// metrics registry so tests and multiple server instances in the same
// process never collide on global collector names.
func New() *Registry {
	reg := prometheus.NewRegistry()

	router := RouterCounters{
		ProcessedMessages: promauto.With(reg).NewCounter(prometheus.CounterOpts{
			Namespace: "wirechat",
			Subsystem: "router",
			Name:      "processed_messages_total",
			Help:      "Total lines handed to the message router.",
		}),
		ProcessedCommands: promauto.With(reg).NewCounter(prometheus.CounterOpts{
			Namespace: "wirechat",
			Subsystem: "router",
			Name:      "processed_commands_total",
			Help:      "Total slash-command lines dispatched.",
		}),
		SentMessages: promauto.With(reg).NewCounter(prometheus.CounterOpts{
			Namespace: "wirechat",
			Subsystem: "router",
			Name:      "sent_messages_total",
			Help:      "Total outbound message sends (broadcast, channel, private, server).",
		}),
		ReceivedBytes: promauto.With(reg).NewCounter(prometheus.CounterOpts{
			Namespace: "wirechat",
			Subsystem: "router",
			Name:      "received_bytes_total",
			Help:      "Total raw bytes of inbound lines handed to the router.",
		}),
		SentBytes: promauto.With(reg).NewCounter(prometheus.CounterOpts{
			Namespace: "wirechat",
			Subsystem: "router",
			Name:      "sent_bytes_total",
			Help:      "Total bytes of message payload sent (excludes formatting).",
		}),
	}

	return &Registry{reg: reg, Router: router}
}

// GaugeSource is implemented by whatever owns the value a gauge should
// report at scrape time — the Worker Pool for queue depth/active
// workers, the registries for client/channel counts.
type GaugeSource func() float64

// RegisterGauge wires a named gauge to a live value source.
func (r *Registry) RegisterGauge(name, help string, source GaugeSource) {
	promauto.With(r.reg).NewGaugeFunc(prometheus.GaugeOpts{
		Namespace: "wirechat",
		Name:      name,
		Help:      help,
	}, source)
}

// Handler serves the registry's collectors for scraping.
func (r *Registry) Handler() http.Handler {
	return promhttp.HandlerFor(r.reg, promhttp.HandlerOpts{})
}
