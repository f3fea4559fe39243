// Package kvserver provides the TCP wire protocol server.
package kvserver

import (
	"context"
	"errors"
	"net"
	"sync"
	"sync/atomic"
	"time"

	"github.com/noxkv/nox-go/internal/pubsub"
	"github.com/noxkv/nox-go/internal/storage/memory"
	"github.com/noxkv/nox-go/internal/telemetry/logger"
	"github.com/noxkv/nox-go/internal/telemetry/metric"
)

// Config holds the wire protocol server configuration.
type Config struct {
	// Addr is the TCP address to listen on.
	Addr string
	// MaxConnections bounds concurrently served clients. Accepts wait
	// for a free slot instead of being refused.
	MaxConnections int
	// ShutdownGrace is how long Shutdown waits for in-flight
	// connections before giving up.
	ShutdownGrace time.Duration
	// RateLimitEnabled turns on per-address command rate limiting.
	RateLimitEnabled bool
	// RatePerSecond is the sustained per-address command rate.
	RatePerSecond float64
	// RateBurst is the per-address burst allowance.
	RateBurst int
	// SinkBuffer is the per-subscriber delivery buffer size.
	SinkBuffer int
}

// DefaultConfig returns the default configuration.
func DefaultConfig() *Config {
	return &Config{
		Addr:           "127.0.0.1:6380",
		MaxConnections: 256,
		ShutdownGrace:  10 * time.Second,
		RatePerSecond:  1000,
		RateBurst:      2000,
		SinkBuffer:     pubsub.DefaultSinkBuffer,
	}
}

// Server serves the RESP wire protocol over TCP.
type Server struct {
	cfg    *Config
	store  *memory.Store
	pubsub *pubsub.Registry

	log     logger.Logger
	metrics *metric.Registry
	limiter *addrLimiter

	ln       net.Listener
	permits  chan struct{}
	running  atomic.Bool
	shutdown chan struct{}
	wg       sync.WaitGroup
}

// Option configures the Server.
type Option func(*Server)

// WithLogger sets the server logger.
func WithLogger(l logger.Logger) Option {
	return func(s *Server) { s.log = l }
}

// WithMetrics attaches a metrics registry.
func WithMetrics(m *metric.Registry) Option {
	return func(s *Server) { s.metrics = m }
}

// New creates a new wire protocol server over the given store and
// pub/sub registry.
func New(cfg *Config, store *memory.Store, reg *pubsub.Registry, opts ...Option) *Server {
	if cfg == nil {
		cfg = DefaultConfig()
	}

	s := &Server{
		cfg:      cfg,
		store:    store,
		pubsub:   reg,
		log:      logger.Default(),
		permits:  make(chan struct{}, cfg.MaxConnections),
		shutdown: make(chan struct{}),
	}
	for _, opt := range opts {
		opt(s)
	}

	if cfg.RateLimitEnabled && cfg.RatePerSecond > 0 {
		s.limiter = newAddrLimiter(cfg.RatePerSecond, cfg.RateBurst)
	}

	return s
}

// ListenAndServe listens on the configured address and serves until
// Shutdown is called. It returns nil after a clean shutdown.
func (s *Server) ListenAndServe() error {
	ln, err := net.Listen("tcp", s.cfg.Addr)
	if err != nil {
		return err
	}
	return s.Serve(ln)
}

// Serve accepts connections on ln. A connection slot is reserved before
// each accept, so at most MaxConnections clients are served at once and
// further clients queue in the listen backlog.
func (s *Server) Serve(ln net.Listener) error {
	s.ln = ln
	s.running.Store(true)
	s.log.Info("server listening", "address", ln.Addr().String())

	for {
		select {
		case s.permits <- struct{}{}:
		case <-s.shutdown:
			return nil
		}

		c, err := ln.Accept()
		if err != nil {
			<-s.permits
			if !s.running.Load() || errors.Is(err, net.ErrClosed) {
				return nil
			}
			return err
		}

		if s.metrics != nil {
			s.metrics.ConnectionsTotal.Inc()
			s.metrics.ConnectionsActive.Inc()
		}

		s.wg.Add(1)
		go func() {
			defer s.wg.Done()
			defer func() {
				<-s.permits
				if s.metrics != nil {
					s.metrics.ConnectionsActive.Dec()
				}
			}()
			newConnHandler(s, c).serve()
		}()
	}
}

// Addr returns the bound listen address, or nil before Serve.
func (s *Server) Addr() net.Addr {
	if s.ln == nil {
		return nil
	}
	return s.ln.Addr()
}

// Shutdown stops accepting connections and waits for in-flight
// connections to finish, bounded by ctx and the configured grace
// period. Handlers observe the shutdown signal, complete the command
// they are serving and close.
func (s *Server) Shutdown(ctx context.Context) error {
	if !s.running.CompareAndSwap(true, false) {
		return nil
	}

	if s.cfg.ShutdownGrace > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.cfg.ShutdownGrace)
		defer cancel()
	}

	close(s.shutdown)
	var firstErr error
	if s.ln != nil {
		if err := s.ln.Close(); err != nil && !errors.Is(err, net.ErrClosed) {
			firstErr = err
		}
	}

	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
	case <-ctx.Done():
		return ctx.Err()
	}

	s.log.Info("server stopped")
	return firstErr
}
