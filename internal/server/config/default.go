// Package config defines the server configuration structure.
package config

import "time"

// Default configuration values.
const (
	DefaultAddr           = "127.0.0.1:6380"
	DefaultMaxConnections = 256
	DefaultShutdownGrace  = 10 * time.Second

	DefaultRatePerSecond = 1000.0
	DefaultRateBurst     = 2000

	DefaultSinkBuffer = 1024

	DefaultMetricsAddr = "127.0.0.1:9091"

	DefaultLogLevel  = "info"
	DefaultLogFormat = "json"
)

// Default returns the default server configuration.
func Default() *ServerConfig {
	return &ServerConfig{
		Server: ServerSection{
			Addr:           DefaultAddr,
			MaxConnections: DefaultMaxConnections,
			ShutdownGrace:  DefaultShutdownGrace,
		},
		Limits: LimitsSection{
			RateLimitEnabled: false,
			RatePerSecond:    DefaultRatePerSecond,
			RateBurst:        DefaultRateBurst,
		},
		PubSub: PubSubSection{
			SinkBuffer: DefaultSinkBuffer,
		},
		Metrics: MetricsSection{
			Enabled: false,
			Addr:    DefaultMetricsAddr,
		},
		Log: LogSection{
			Level:  DefaultLogLevel,
			Format: DefaultLogFormat,
		},
	}
}
