// Package config defines the server configuration structure.
package config

import "time"

// ServerConfig is the root configuration for nox-server.
type ServerConfig struct {
	Server  ServerSection  `koanf:"server"`
	Limits  LimitsSection  `koanf:"limits"`
	PubSub  PubSubSection  `koanf:"pubsub"`
	Metrics MetricsSection `koanf:"metrics"`
	Log     LogSection     `koanf:"log"`
}

// ServerSection configures the wire protocol listener.
type ServerSection struct {
	// Addr is the TCP address clients connect to.
	Addr string `koanf:"addr"`

	// MaxConnections bounds how many clients may be served at once.
	// Further accepts wait until a slot frees up.
	MaxConnections int `koanf:"max_connections"`

	// ShutdownGrace is how long in-flight connections get to finish
	// after a shutdown signal before being closed.
	ShutdownGrace time.Duration `koanf:"shutdown_grace"`
}

// LimitsSection configures per-client rate limiting.
type LimitsSection struct {
	// RateLimitEnabled turns per-address command rate limiting on.
	RateLimitEnabled bool `koanf:"rate_limit_enabled"`

	// RatePerSecond is the sustained commands-per-second allowance
	// for a single remote address.
	RatePerSecond float64 `koanf:"rate_per_second"`

	// RateBurst is the burst allowance on top of the sustained rate.
	RateBurst int `koanf:"rate_burst"`
}

// PubSubSection configures publish/subscribe delivery.
type PubSubSection struct {
	// SinkBuffer is the per-subscriber delivery buffer. Messages to a
	// subscriber whose buffer is full are dropped.
	SinkBuffer int `koanf:"sink_buffer"`
}

// MetricsSection configures the Prometheus endpoint.
type MetricsSection struct {
	Enabled bool   `koanf:"enabled"`
	Addr    string `koanf:"addr"`
}

// LogSection configures logging.
type LogSection struct {
	Level  string `koanf:"level"`
	Format string `koanf:"format"`
}
