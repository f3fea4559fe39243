// Package main provides the entry point for nox-server.
//
// nox-server is an in-memory key-value store speaking a RESP-like wire
// protocol with publish/subscribe support.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"time"

	"github.com/noxkv/nox-go/internal/infra/buildinfo"
	"github.com/noxkv/nox-go/internal/infra/confloader"
	"github.com/noxkv/nox-go/internal/infra/shutdown"
	"github.com/noxkv/nox-go/internal/pubsub"
	"github.com/noxkv/nox-go/internal/server/config"
	"github.com/noxkv/nox-go/internal/server/httpserver"
	"github.com/noxkv/nox-go/internal/server/kvserver"
	"github.com/noxkv/nox-go/internal/storage/memory"
	"github.com/noxkv/nox-go/internal/telemetry/logger"
	"github.com/noxkv/nox-go/internal/telemetry/metric"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	var (
		configFile  = flag.String("config", "", "Path to configuration file")
		listenAddr  = flag.String("addr", "", "Listen address (overrides config)")
		showVersion = flag.Bool("version", false, "Show version information")
	)
	flag.Parse()

	if *showVersion {
		fmt.Printf("nox-server %s\n", buildinfo.Get())
		return nil
	}

	cfg, err := loadConfig(*configFile, *listenAddr)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	log, err := initLogger(cfg)
	if err != nil {
		return fmt.Errorf("init logger: %w", err)
	}

	info := buildinfo.Get()
	log.Info("starting nox-server",
		"version", info.Version,
		"commit", info.Commit,
		"config", *configFile)

	metrics := metric.NewRegistry()

	store := memory.New(
		memory.WithLogger(log.With("component", "store")),
		memory.WithMetrics(metrics),
	)

	registry := pubsub.NewRegistry(pubsub.WithMetrics(metrics))

	metrics.MustRegister(&metric.Collector{
		KeyCount:     store.Len,
		ChannelCount: registry.NumChannels,
	})

	srv := kvserver.New(
		&kvserver.Config{
			Addr:             cfg.Server.Addr,
			MaxConnections:   cfg.Server.MaxConnections,
			ShutdownGrace:    cfg.Server.ShutdownGrace,
			RateLimitEnabled: cfg.Limits.RateLimitEnabled,
			RatePerSecond:    cfg.Limits.RatePerSecond,
			RateBurst:        cfg.Limits.RateBurst,
			SinkBuffer:       cfg.PubSub.SinkBuffer,
		},
		store,
		registry,
		kvserver.WithLogger(log.With("component", "kvserver")),
		kvserver.WithMetrics(metrics),
	)

	shutdownHandler := shutdown.NewHandler(cfg.Server.ShutdownGrace + 5*time.Second)

	// Hooks run in reverse order: wire server first, then store.
	shutdownHandler.OnShutdown(func(ctx context.Context) error {
		log.Info("shutting down store")
		store.Close()
		return nil
	})
	shutdownHandler.OnShutdown(func(ctx context.Context) error {
		log.Info("shutting down server")
		return srv.Shutdown(ctx)
	})

	if cfg.Metrics.Enabled {
		metricsServer := httpserver.New(cfg.Metrics.Addr, httpserver.NewRouter(metrics))
		shutdownHandler.OnShutdown(func(ctx context.Context) error {
			log.Info("shutting down metrics server")
			return metricsServer.Shutdown(ctx)
		})
		go func() {
			log.Info("metrics server listening", "addr", cfg.Metrics.Addr)
			if err := metricsServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				log.Error("metrics server error", "error", err)
			}
		}()
	}

	if *configFile != "" {
		watcher, err := watchLogLevel(*configFile, log)
		if err != nil {
			log.Warn("config watcher disabled", "error", err)
		} else {
			shutdownHandler.OnShutdown(func(ctx context.Context) error {
				return watcher.Stop()
			})
		}
	}

	go func() {
		if err := srv.ListenAndServe(); err != nil {
			log.Error("server error", "error", err)
			shutdownHandler.Trigger()
		}
	}()

	log.Info("server started, press Ctrl+C to stop")
	if err := shutdownHandler.Wait(); err != nil {
		log.Error("shutdown error", "error", err)
		return err
	}

	log.Info("server stopped gracefully")
	return nil
}

// loadConfig loads configuration from file, environment and flags.
func loadConfig(configFile, listenAddr string) (*config.ServerConfig, error) {
	cfg := config.Default()

	opts := []confloader.Option{}
	if configFile != "" {
		opts = append(opts, confloader.WithConfigFile(configFile))
	}
	loader := confloader.NewLoader(opts...)

	if listenAddr != "" {
		if err := loader.LoadMap(map[string]any{"server.addr": listenAddr}); err != nil {
			return nil, err
		}
	}

	if err := loader.Load(cfg); err != nil {
		return nil, err
	}
	// Flag overrides win over file and environment.
	if listenAddr != "" {
		cfg.Server.Addr = listenAddr
	}

	if err := config.Verify(cfg); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

func initLogger(cfg *config.ServerConfig) (logger.Logger, error) {
	log, err := logger.New(logger.Config{
		Level:  cfg.Log.Level,
		Format: cfg.Log.Format,
		Output: os.Stdout,
	})
	if err != nil {
		return nil, err
	}
	logger.SetDefault(log)
	return log, nil
}

// watchLogLevel reloads the log level when the config file changes.
// Other settings stay fixed for the process lifetime.
func watchLogLevel(configFile string, log logger.Logger) (*confloader.Watcher, error) {
	watcher, err := confloader.NewWatcher(confloader.WithWatcherLogger(log.With("component", "confwatcher")))
	if err != nil {
		return nil, err
	}
	if err := watcher.Watch(configFile); err != nil {
		_ = watcher.Stop()
		return nil, err
	}

	watcher.OnChange(func(string) {
		loader := confloader.NewLoader(confloader.WithConfigFile(configFile))
		cfg := config.Default()
		if err := loader.Load(cfg); err != nil {
			log.Warn("config reload failed", "error", err)
			return
		}
		if cfg.Log.Level != logger.GetLevel() {
			logger.SetLevel(cfg.Log.Level)
			log.Info("log level changed", "level", cfg.Log.Level)
		}
	})

	watcher.StartAsync()
	return watcher, nil
}
