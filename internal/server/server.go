// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Sigil Contributors

// Package server exposes graph sessions over HTTP: a huma REST API, an SSE
// notification stream and a websocket view-sync channel per session.
package server

import (
	"context"
	"errors"
	"log/slog"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/danielgtaylor/huma/v2"
	"github.com/danielgtaylor/huma/v2/adapters/humachi"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/sigil-dev/graphscope/internal/config"
	"github.com/sigil-dev/graphscope/internal/resolver"
	"github.com/sigil-dev/graphscope/internal/session"
	"github.com/sigil-dev/graphscope/internal/store"
	"github.com/sigil-dev/graphscope/pkg/health"
	"github.com/sigil-dev/graphscope/pkg/rdf"
	sigilerr "github.com/sigil-dev/graphscope/pkg/errors"
)

// Config holds HTTP server configuration.
type Config struct {
	ListenAddr  string
	CORSOrigins []string
	ReadTimeout time.Duration
	// WriteTimeout bounds ordinary responses. Event streams clear it.
	WriteTimeout time.Duration
	RateLimit    RateLimitConfig
	Version      string
}

// ConfigFrom derives the server settings from the application config.
func ConfigFrom(cfg *config.Config, version string) Config {
	return Config{
		ListenAddr:  cfg.Networking.Listen,
		CORSOrigins: cfg.Networking.CORSOrigins,
		RateLimit: RateLimitConfig{
			RequestsPerSecond: cfg.Networking.RateLimit.RequestsPerSecond,
			Burst:             cfg.Networking.RateLimit.Burst,
			MaxStreams:        cfg.Networking.RateLimit.MaxStreams,
		},
		Version: version,
	}
}

// Lookup answers the stateless property and related-node queries.
type Lookup interface {
	FetchProperties(ctx context.Context, subject rdf.Term, progress resolver.ProgressFunc) []resolver.Property
	FetchRelatedNodes(ctx context.Context, subject rdf.Term, property string) []resolver.Related
}

// EndpointStatus reports the health of the SPARQL endpoint.
type EndpointStatus interface {
	Health() health.Metrics
}

// Services are the dependencies behind the routes. Sessions is required;
// routes whose dependency is nil answer 503.
type Services struct {
	Sessions  *session.Manager
	Lookup    Lookup
	Endpoint  EndpointStatus
	Snapshots store.SnapshotStore
	Metrics   http.Handler
	Logger    *slog.Logger
}

// Server wraps a chi router with huma API and HTTP server.
type Server struct {
	router  chi.Router
	api     huma.API
	cfg     Config
	svc     Services
	logger  *slog.Logger
	limiter *rateLimiter

	done      chan struct{}
	closeOnce sync.Once
}

// New creates a Server with every route registered.
func New(cfg Config, svc Services) (*Server, error) {
	if cfg.ListenAddr == "" {
		return nil, sigilerr.New(sigilerr.CodeServerConfigInvalid, "listen address is required")
	}
	if svc.Sessions == nil {
		return nil, sigilerr.New(sigilerr.CodeServerConfigInvalid, "session manager is required")
	}
	if err := cfg.RateLimit.Validate(); err != nil {
		return nil, err
	}
	if cfg.ReadTimeout == 0 {
		cfg.ReadTimeout = 30 * time.Second
	}
	if cfg.WriteTimeout == 0 {
		cfg.WriteTimeout = 2 * time.Minute
	}
	if cfg.Version == "" {
		cfg.Version = "dev"
	}
	logger := svc.Logger
	if logger == nil {
		logger = slog.Default()
	}

	done := make(chan struct{})
	limiter := newRateLimiter(cfg.RateLimit, done)

	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(middleware.RequestID)
	r.Use(corsMiddleware(cfg.CORSOrigins))
	r.Use(limiter.middleware)

	humaConfig := huma.DefaultConfig("graphscope", cfg.Version)
	humaConfig.Info.Description = "Interactive SPARQL knowledge-graph explorer API"
	api := humachi.New(r, humaConfig)

	s := &Server{
		router:  r,
		api:     api,
		cfg:     cfg,
		svc:     svc,
		logger:  logger,
		limiter: limiter,
		done:    done,
	}

	s.registerSystemRoutes()
	s.registerSessionRoutes()
	s.registerGraphRoutes()
	s.registerLookupRoutes()
	s.registerSnapshotRoutes()
	s.registerStreamRoutes()

	return s, nil
}

// Handler returns the underlying http.Handler for testing.
func (s *Server) Handler() http.Handler {
	return s.router
}

// API returns the huma API for registering additional operations.
func (s *Server) API() huma.API {
	return s.api
}

// Close stops the rate limiter's background cleanup.
func (s *Server) Close() error {
	s.closeOnce.Do(func() { close(s.done) })
	return nil
}

// Start runs the HTTP server and blocks until the context is cancelled,
// then performs graceful shutdown.
func (s *Server) Start(ctx context.Context) error {
	ln, err := net.Listen("tcp", s.cfg.ListenAddr)
	if err != nil {
		return sigilerr.Errorf(sigilerr.CodeServerStartFailure, "listening on %s: %w", s.cfg.ListenAddr, err)
	}
	return s.Serve(ctx, ln)
}

// Serve is Start on an existing listener.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	srv := &http.Server{
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       s.cfg.ReadTimeout,
		WriteTimeout:      s.cfg.WriteTimeout,
		BaseContext:       func(net.Listener) context.Context { return ctx },
	}

	errCh := make(chan error, 1)
	go func() {
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()
	s.logger.Info("http server listening", "addr", ln.Addr().String())

	select {
	case err := <-errCh:
		if err != nil {
			return sigilerr.Errorf(sigilerr.CodeServerStartFailure, "serving: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		return sigilerr.Errorf(sigilerr.CodeServerShutdownFailure, "shutting down: %w", err)
	}
	return <-errCh
}

func corsMiddleware(origins []string) func(http.Handler) http.Handler {
	if len(origins) == 0 {
		origins = []string{"http://localhost:5173", "http://127.0.0.1:18790"}
	}

	return cors.Handler(cors.Options{
		AllowedOrigins:   origins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "If-None-Match"},
		ExposedHeaders:   []string{"ETag", "Link"},
		AllowCredentials: true,
		MaxAge:           300,
	})
}

// apiError maps a domain error onto a huma status error. Server-side
// failures are logged and their detail withheld.
func (s *Server) apiError(op string, err error) error {
	status := sigilerr.HTTPStatus(err)
	if status >= http.StatusInternalServerError && status != http.StatusBadGateway &&
		status != http.StatusServiceUnavailable && status != http.StatusGatewayTimeout {
		s.logger.Error("request failed", "op", op, "code", sigilerr.CodeOf(err), "error", err)
		return huma.Error500InternalServerError("internal server error")
	}
	return huma.NewError(status, op+": "+err.Error())
}
