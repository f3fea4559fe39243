// Package config defines the server configuration structure.
package config

import (
	"errors"
	"fmt"
	"net"
)

// Verify validates the configuration.
func Verify(cfg *ServerConfig) error {
	if err := verifyServer(&cfg.Server); err != nil {
		return err
	}
	if err := verifyLimits(&cfg.Limits); err != nil {
		return err
	}
	if cfg.PubSub.SinkBuffer < 1 {
		return errors.New("pubsub.sink_buffer must be at least 1")
	}
	if cfg.Metrics.Enabled {
		if _, _, err := net.SplitHostPort(cfg.Metrics.Addr); err != nil {
			return fmt.Errorf("metrics.addr: %w", err)
		}
	}
	switch cfg.Log.Level {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("log.level %q is not one of debug, info, warn, error", cfg.Log.Level)
	}
	switch cfg.Log.Format {
	case "json", "text":
	default:
		return fmt.Errorf("log.format %q is not one of json, text", cfg.Log.Format)
	}
	return nil
}

func verifyServer(cfg *ServerSection) error {
	if _, _, err := net.SplitHostPort(cfg.Addr); err != nil {
		return fmt.Errorf("server.addr: %w", err)
	}
	if cfg.MaxConnections < 1 {
		return errors.New("server.max_connections must be at least 1")
	}
	if cfg.ShutdownGrace < 0 {
		return errors.New("server.shutdown_grace cannot be negative")
	}
	return nil
}

func verifyLimits(cfg *LimitsSection) error {
	if !cfg.RateLimitEnabled {
		return nil
	}
	if cfg.RatePerSecond <= 0 {
		return errors.New("limits.rate_per_second must be positive")
	}
	if cfg.RateBurst < 1 {
		return errors.New("limits.rate_burst must be at least 1")
	}
	return nil
}
