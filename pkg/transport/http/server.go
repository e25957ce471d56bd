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

	"github.com/ShivangMishra/veda-auth-central/pkg/observability"
	"github.com/ShivangMishra/veda-auth-central/pkg/transport"
)

// Server wraps an http.Server with the transport adapter and manages
// the full lifecycle including startup and graceful shutdown.
type Server struct {
	httpServer *http.Server
	adapter    *Adapter
	config     Config
	logger     *slog.Logger
}

// ServerOption configures a Server.
type ServerOption func(*Server)

// WithConfig replaces the adapter configuration.
func WithConfig(cfg Config) ServerOption {
	return func(s *Server) { s.config = cfg }
}

// WithAddr sets the listen address.
func WithAddr(addr string) ServerOption {
	return func(s *Server) { s.config.Addr = addr }
}

// WithMaxBodySize sets the maximum request body size.
func WithMaxBodySize(n int64) ServerOption {
	return func(s *Server) { s.config.MaxBodySize = n }
}

// WithShutdownTimeout sets the graceful shutdown deadline.
func WithShutdownTimeout(d time.Duration) ServerOption {
	return func(s *Server) { s.config.ShutdownTimeout = d }
}

// WithLogger sets the structured logger.
func WithLogger(l *slog.Logger) ServerOption {
	return func(s *Server) { s.logger = l }
}

// WithTimeouts sets the http.Server read and write timeouts.
func WithTimeouts(read, write time.Duration) ServerOption {
	return func(s *Server) {
		s.httpServer.ReadTimeout = read
		s.httpServer.WriteTimeout = write
	}
}

// NewServer creates a new transport server for handler. checks back the
// /readyz endpoint. Default middleware (recovery, request ID, tracing,
// metrics, logging) is applied automatically.
func NewServer(handler transport.IdentityHandler, checks map[string]transport.HealthChecker, opts ...ServerOption) *Server {
	s := &Server{
		httpServer: &http.Server{ReadHeaderTimeout: 10 * time.Second},
		config:     DefaultConfig(),
		logger:     slog.Default(),
	}

	for _, opt := range opts {
		opt(s)
	}

	defaultMW := []transport.Middleware{
		transport.Recovery(),
		transport.RequestID(),
		observability.TracingMiddleware,
		observability.MetricsMiddleware,
		transport.Logging(s.logger),
	}

	s.adapter = NewAdapter(handler, s.config, checks, defaultMW...)
	s.httpServer.Addr = s.config.Addr
	s.httpServer.Handler = s.adapter.Handler()

	return s
}

// Handler returns the fully wrapped handler, for tests.
func (s *Server) Handler() http.Handler {
	return s.httpServer.Handler
}

// ListenAndServe starts the server and blocks until a shutdown signal
// (SIGINT or SIGTERM) is received. It then gracefully shuts down,
// waiting for in-flight requests to complete within the configured timeout.
func (s *Server) ListenAndServe() error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	return s.Run(ctx)
}

// Run starts the server and blocks until ctx is done, then shuts down
// gracefully.
func (s *Server) Run(ctx context.Context) error {
	ln, err := net.Listen("tcp", s.config.Addr)
	if err != nil {
		return err
	}
	return s.serve(ctx, ln)
}

// ServeOn starts the server on the given listener and blocks until ctx is
// done. Used for testing.
func (s *Server) ServeOn(ctx context.Context, ln net.Listener) error {
	return s.serve(ctx, ln)
}

func (s *Server) serve(ctx context.Context, ln net.Listener) error {
	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("server starting", slog.String("addr", ln.Addr().String()), slog.String("base_path", s.config.BasePath))
		if err := s.httpServer.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		s.logger.Info("shutdown signal received")
	}

	return s.shutdown()
}

func (s *Server) shutdown() error {
	shutdownCtx, cancel := context.WithTimeout(context.Background(), s.config.ShutdownTimeout)
	defer cancel()

	s.logger.Info("shutting down gracefully", slog.Duration("timeout", s.config.ShutdownTimeout))
	if err := s.httpServer.Shutdown(shutdownCtx); err != nil {
		s.logger.Error("shutdown error", slog.String("error", err.Error()))
		return err
	}
	s.logger.Info("server stopped")
	return nil
}

// Shutdown gracefully shuts down the server with the given context.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}
