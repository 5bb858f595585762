package http

import (
	"context"
	"errors"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/rhuss/mcpgate/pkg/capability"
	"github.com/rhuss/mcpgate/pkg/storage"
	"github.com/rhuss/mcpgate/pkg/transport"
)

// Server owns the gateway's http.Server and its shutdown.
type Server struct {
	httpServer *http.Server
	adapter    *Adapter
	config     ServerConfig
	logger     *slog.Logger
}

// ServerConfig holds configuration for the transport server.
type ServerConfig struct {
	Addr            string
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration // 0 disables
	ShutdownTimeout time.Duration
	Logger          *slog.Logger
	Adapter         Config
}

// DefaultServerConfig listens on :8080 with a 30s read timeout and no
// write timeout.
func DefaultServerConfig() ServerConfig {
	return ServerConfig{
		Addr:            ":8080",
		ReadTimeout:     30 * time.Second,
		ShutdownTimeout: 30 * time.Second,
		Logger:          slog.Default(),
		Adapter:         DefaultConfig(),
	}
}

// ServerOption configures a Server.
type ServerOption func(*Server)

// WithAddr sets the listen address.
func WithAddr(addr string) ServerOption {
	return func(s *Server) { s.config.Addr = addr }
}

// WithMaxBodySize sets the maximum request body size.
func WithMaxBodySize(n int64) ServerOption {
	return func(s *Server) { s.config.Adapter.MaxBodySize = n }
}

// WithTimeouts sets the read and write timeouts of the http.Server.
func WithTimeouts(read, write time.Duration) ServerOption {
	return func(s *Server) { s.config.ReadTimeout, s.config.WriteTimeout = read, write }
}

// WithShutdownTimeout sets the graceful shutdown deadline.
func WithShutdownTimeout(d time.Duration) ServerOption {
	return func(s *Server) { s.config.ShutdownTimeout = d }
}

// WithLogger sets the structured logger.
func WithLogger(l *slog.Logger) ServerOption {
	return func(s *Server) { s.config.Logger = l; s.logger = l }
}

// WithRegistry exposes the registry's providers on the servers route.
func WithRegistry(r capability.Registry) ServerOption {
	return func(s *Server) { s.config.Adapter.Registry = r }
}

// WithLedger records usage for every request and serves the usage routes.
func WithLedger(l storage.Ledger) ServerOption {
	return func(s *Server) { s.config.Adapter.Ledger = l }
}

// WithAuth wraps every route with the given HTTP middleware.
func WithAuth(mw func(http.Handler) http.Handler) ServerOption {
	return func(s *Server) { s.config.Adapter.Auth = mw }
}

// WithAllowedOrigins restricts WebSocket upgrades to the given origins.
func WithAllowedOrigins(origins ...string) ServerOption {
	return func(s *Server) { s.config.Adapter.AllowedOrigins = origins }
}

// WithoutMetrics removes the /metrics route.
func WithoutMetrics() ServerOption {
	return func(s *Server) { s.config.Adapter.DisableMetrics = true }
}

// NewServer builds the gateway HTTP server around processor. Every
// request passes through recovery, request ids, access logging and the
// usage ledger, in that order.
func NewServer(processor transport.Processor, opts ...ServerOption) *Server {
	s := &Server{config: DefaultServerConfig(), logger: slog.Default()}
	for _, opt := range opts {
		opt(s)
	}

	s.adapter = NewAdapter(processor, s.config.Adapter,
		transport.Recovery(),
		transport.RequestID(),
		transport.Logging(s.logger),
		transport.Ledger(s.config.Adapter.Ledger),
	)
	s.httpServer = &http.Server{
		Addr:              s.config.Addr,
		Handler:           s.adapter.Handler(),
		ReadTimeout:       s.config.ReadTimeout,
		ReadHeaderTimeout: s.config.ReadTimeout,
		WriteTimeout:      s.config.WriteTimeout,
	}
	return s
}

// Handler returns the routed handler, for use with httptest.
func (s *Server) Handler() http.Handler {
	return s.httpServer.Handler
}

// ListenAndServe listens on the configured address and serves until
// SIGINT or SIGTERM, then drains in-flight requests.
func (s *Server) ListenAndServe() error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	ln, err := net.Listen("tcp", s.config.Addr)
	if err != nil {
		return err
	}
	return s.ServeOn(ctx, ln)
}

// ServeOn serves on ln until ctx is done or serving fails. On
// cancellation it shuts down within the shutdown timeout.
func (s *Server) ServeOn(ctx context.Context, ln net.Listener) error {
	g, gctx := errgroup.WithContext(ctx)
	stopped := make(chan struct{})

	g.Go(func() error {
		defer close(stopped)
		s.logger.Info("listening", "addr", ln.Addr().String())
		if err := s.httpServer.Serve(ln); !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		select {
		case <-stopped:
			return nil
		case <-gctx.Done():
		}
		if ctx.Err() == nil {
			// Serve failed; nothing to drain.
			return nil
		}
		shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.config.ShutdownTimeout)
		defer cancel()
		s.logger.Info("draining connections", "timeout", s.config.ShutdownTimeout)
		if err := s.httpServer.Shutdown(shutdownCtx); err != nil {
			s.logger.Error("shutdown incomplete", "error", err)
			return err
		}
		s.logger.Info("server stopped")
		return nil
	})
	return g.Wait()
}

// Shutdown stops accepting connections and waits for in-flight requests
// until ctx expires.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}
