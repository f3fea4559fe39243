// Package metric provides Prometheus metrics for nox.
//
// It exposes counters and gauges for connection lifecycle, command
// throughput, key expiration and pub/sub delivery, served in
// Prometheus exposition format at /metrics.
package metric

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Registry holds all application metrics.
type Registry struct {
	// Connection metrics
	ConnectionsActive prometheus.Gauge
	ConnectionsTotal  prometheus.Counter

	// Command metrics
	CommandsTotal *prometheus.CounterVec
	CommandErrors prometheus.Counter

	// Store metrics
	KeysExpired prometheus.Counter

	// Pub/sub metrics
	DeliveriesDropped prometheus.Counter

	prom *prometheus.Registry
}

// NewRegistry creates and registers all application metrics.
func NewRegistry() *Registry {
	prom := prometheus.NewRegistry()
	prom.MustRegister(collectors.NewGoCollector())

	r := &Registry{
		ConnectionsActive: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "nox_connections_active",
			Help: "Number of currently open client connections.",
		}),
		ConnectionsTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "nox_connections_total",
			Help: "Total number of accepted client connections.",
		}),
		CommandsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "nox_commands_total",
			Help: "Total number of commands processed, by command name.",
		}, []string{"command"}),
		CommandErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "nox_command_errors_total",
			Help: "Total number of commands answered with an error frame.",
		}),
		KeysExpired: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "nox_keys_expired_total",
			Help: "Total number of keys purged by the expiration reaper.",
		}),
		DeliveriesDropped: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "nox_pubsub_deliveries_dropped_total",
			Help: "Total number of pub/sub deliveries dropped on full subscriber buffers.",
		}),
		prom: prom,
	}

	prom.MustRegister(
		r.ConnectionsActive,
		r.ConnectionsTotal,
		r.CommandsTotal,
		r.CommandErrors,
		r.KeysExpired,
		r.DeliveriesDropped,
	)

	return r
}

// MustRegister adds extra collectors, e.g. the store size collector.
func (r *Registry) MustRegister(cs ...prometheus.Collector) {
	r.prom.MustRegister(cs...)
}

// Handler returns the HTTP handler for the /metrics endpoint.
func (r *Registry) Handler() http.Handler {
	return promhttp.HandlerFor(r.prom, promhttp.HandlerOpts{})
}
