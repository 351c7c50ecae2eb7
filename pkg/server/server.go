package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"sync"

	"github.com/gorilla/mux"

	"mercator-hq/mixer/pkg/config"
	"mercator-hq/mixer/pkg/policy/engine"
	"mercator-hq/mixer/pkg/policy/manager"
	"mercator-hq/mixer/pkg/telemetry/health"
	"mercator-hq/mixer/pkg/telemetry/metrics"
	"mercator-hq/mixer/pkg/telemetry/tracing"
)

// ErrRunning is returned by Start on a server that is already running.
var ErrRunning = errors.New("server is already running")

// Options configures a Server.
type Options struct {
	// Config holds the listen address and timeouts. Required.
	Config *config.ServerConfig

	// Engine serves checks. Required.
	Engine *engine.Engine

	// Manager enables /v1/reload and reload status. May be nil.
	Manager *manager.Manager

	// Checker serves /healthz and /readyz. Default: a checker with the
	// engine's checks registered.
	Checker *health.Checker

	// Metrics records HTTP metrics and serves MetricsPath. May be nil.
	Metrics *metrics.Collector

	// MetricsPath is where metrics are served. Default: "/metrics".
	MetricsPath string

	// Tracer records a span per check. May be nil.
	Tracer *tracing.Tracer

	// Version is served on /version.
	Version health.VersionInfo
}

// Server is the HTTP surface of the engine.
type Server struct {
	config       *config.ServerConfig
	engine       *engine.Engine
	manager      *manager.Manager
	checker      *health.Checker
	metrics      *metrics.Collector
	metricsPath  string
	tracer       *tracing.Tracer
	version      health.VersionInfo
	maxBodyBytes int64
	logger       *slog.Logger

	mu         sync.Mutex
	httpServer *http.Server
	listener   net.Listener
	running    bool
}

// New creates a server.
func New(opts Options, logger *slog.Logger) (*Server, error) {
	if opts.Config == nil {
		return nil, errors.New("server config cannot be nil")
	}
	if opts.Engine == nil {
		return nil, errors.New("engine cannot be nil")
	}
	if logger == nil {
		logger = slog.Default()
	}

	checker := opts.Checker
	if checker == nil {
		checker = health.New(0)
		opts.Engine.RegisterHealthChecks(checker)
	}

	metricsPath := opts.MetricsPath
	if metricsPath == "" {
		metricsPath = config.DefaultMetricsPath
	}

	maxBody := opts.Config.MaxBodyBytes
	if maxBody <= 0 {
		maxBody = config.DefaultMaxBodyBytes
	}

	return &Server{
		config:       opts.Config,
		engine:       opts.Engine,
		manager:      opts.Manager,
		checker:      checker,
		metrics:      opts.Metrics,
		metricsPath:  metricsPath,
		tracer:       opts.Tracer,
		version:      opts.Version,
		maxBodyBytes: maxBody,
		logger:       logger.With("component", "server"),
	}, nil
}

// Handler returns the routed handler with its middleware chain.
func (s *Server) Handler() http.Handler {
	r := mux.NewRouter()

	r.HandleFunc("/v1/check", s.handleCheck).Methods(http.MethodPost)
	r.HandleFunc("/v1/snapshot", s.handleSnapshot).Methods(http.MethodGet)
	r.HandleFunc("/v1/reload", s.handleReload).Methods(http.MethodPost)
	r.HandleFunc("/healthz", s.checker.LivenessHandler()).Methods(http.MethodGet)
	r.HandleFunc("/readyz", s.checker.ReadinessHandler()).Methods(http.MethodGet)
	r.HandleFunc("/version", health.VersionHandler(s.version.Version, s.version.Commit, s.version.BuildTime)).Methods(http.MethodGet)
	if s.metrics != nil {
		r.Handle(s.metricsPath, s.metrics.Handler()).Methods(http.MethodGet)
	}

	r.NotFoundHandler = http.HandlerFunc(s.handleNotFound)
	r.MethodNotAllowedHandler = http.HandlerFunc(s.handleMethodNotAllowed)

	// Outermost first.
	r.Use(
		recoveryMiddleware(s.logger),
		mux.MiddlewareFunc(tracing.HTTPMiddleware),
		mux.MiddlewareFunc(requestIDMiddleware),
		loggingMiddleware(s.logger),
		metricsMiddleware(s.metrics),
	)
	return r
}

// Start listens on the configured address and serves until ctx is done,
// then shuts down gracefully.
func (s *Server) Start(ctx context.Context) error {
	ln, err := net.Listen("tcp", s.config.ListenAddress)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", s.config.ListenAddress, err)
	}
	return s.Serve(ctx, ln)
}

// Serve serves on ln until ctx is done, then shuts down gracefully.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		_ = ln.Close()
		return ErrRunning
	}
	s.running = true
	s.listener = ln
	s.httpServer = &http.Server{
		Handler:      s.Handler(),
		ReadTimeout:  s.config.ReadTimeout,
		WriteTimeout: s.config.WriteTimeout,
		IdleTimeout:  s.config.IdleTimeout,
	}
	srv := s.httpServer
	s.mu.Unlock()

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("starting server", "address", ln.Addr().String())
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- fmt.Errorf("server error: %w", err)
		}
		close(errCh)
	}()

	select {
	case <-ctx.Done():
		s.logger.Info("context cancelled, initiating shutdown")
		return s.Shutdown(context.Background())
	case err, ok := <-errCh:
		if ok {
			return err
		}
		return nil
	}
}

// Addr returns the address the server listens on, or nil before Serve.
func (s *Server) Addr() net.Addr {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.listener == nil {
		return nil
	}
	return s.listener.Addr()
}

// Shutdown gracefully stops the server within the configured shutdown
// timeout.
func (s *Server) Shutdown(ctx context.Context) error {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return nil
	}
	s.running = false
	srv := s.httpServer
	s.mu.Unlock()

	timeout := s.config.ShutdownTimeout
	if timeout <= 0 {
		timeout = config.DefaultShutdownTimeout
	}
	s.logger.Info("initiating graceful shutdown", "timeout", timeout.String())

	shutdownCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		s.logger.Error("error during server shutdown", "error", err)
		return fmt.Errorf("server shutdown error: %w", err)
	}

	s.logger.Info("server stopped")
	return nil
}
