// Package api provides the HTTP API server for the text-to-SQL service.
//
// This package implements the service layer using the go-chi/chi router:
// routing, middleware chaining, and server lifecycle. The middleware chain
// is RequestID -> RealIP -> Logger -> Recoverer -> Timeout.
//
// Usage:
//
//	cfg := config.MustLoad()
//	server := api.NewServer(cfg, service, logger)
//	if err := server.Start(ctx); err != nil {
//	    log.Fatal("Server failed:", err)
//	}
package api

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"

	"github.com/Yerdna1/Text-to-SQL/internal/api/handlers"
	"github.com/Yerdna1/Text-to-SQL/internal/config"
)

// Server represents the HTTP API server.
type Server struct {
	config     *config.Config
	logger     *slog.Logger
	router     *chi.Mux
	httpServer *http.Server
	service    *handlers.Service
}

// NewServer creates a new API server instance around the query service.
func NewServer(cfg *config.Config, service *handlers.Service, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}

	s := &Server{
		config:  cfg,
		logger:  logger.With(slog.String("component", "api")),
		router:  chi.NewRouter(),
		service: service,
	}

	s.setupMiddleware()
	s.registerRoutes()
	return s
}

// setupMiddleware configures the middleware chain in order.
func (s *Server) setupMiddleware() {
	s.router.Use(chimiddleware.RequestID)
	s.router.Use(chimiddleware.RealIP)
	s.router.Use(requestLogger(s.logger))
	s.router.Use(chimiddleware.Recoverer)
	s.router.Use(chimiddleware.Timeout(60 * time.Second))
}

// registerRoutes wires handlers onto the router.
func (s *Server) registerRoutes() {
	s.router.Get("/healthz", s.service.Health)

	s.router.Route("/api", func(r chi.Router) {
		r.Post("/query/process", s.service.ProcessQuery)
		r.Get("/providers", s.service.Providers)
		r.Get("/schema", s.service.Schema)
	})

	s.router.Get("/ws/query", s.service.QueryStream)
}

// Router exposes the configured router, mainly for tests.
func (s *Server) Router() http.Handler { return s.router }

// Start runs the HTTP server until the context is cancelled, then shuts
// down gracefully.
func (s *Server) Start(ctx context.Context) error {
	addr := fmt.Sprintf("%s:%d", s.config.Server.Host, s.config.Server.Port)
	s.httpServer = &http.Server{
		Addr:         addr,
		Handler:      s.router,
		ReadTimeout:  s.config.Server.ReadTimeout,
		WriteTimeout: s.config.Server.WriteTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("server listening", slog.String("addr", addr))
		if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return fmt.Errorf("api: serve: %w", err)
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), s.config.Server.ShutdownTimeout)
	defer cancel()

	s.logger.Info("server shutting down")
	if err := s.httpServer.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("api: shutdown: %w", err)
	}
	return nil
}

// requestLogger logs each request with its status and duration.
func requestLogger(logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			ww := chimiddleware.NewWrapResponseWriter(w, r.ProtoMajor)

			next.ServeHTTP(ww, r)

			logger.Info("http request",
				slog.String("method", r.Method),
				slog.String("path", r.URL.Path),
				slog.Int("status", ww.Status()),
				slog.Int64("duration_ms", time.Since(start).Milliseconds()),
				slog.String("request_id", chimiddleware.GetReqID(r.Context())),
			)
		})
	}
}
