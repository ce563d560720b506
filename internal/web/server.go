// Package web is the thin HTTP adapter over the recommendation engine: it
// resolves the caller, invokes a strategy and serializes the result. All
// recommendation logic lives in the recs package.
package web

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"github.com/auralis-fm/auralis/internal/recs"
)

// ServerConfig holds server configuration.
type ServerConfig struct {
	Addr   string
	Engine *recs.Engine
	Logger zerolog.Logger
}

// Server is the HTTP server exposing the engine's operations.
type Server struct {
	router   chi.Router
	server   *http.Server
	handlers *Handlers
	log      zerolog.Logger
}

// NewServer creates a new API server.
func NewServer(cfg ServerConfig) *Server {
	router := chi.NewRouter()

	s := &Server{
		router:   router,
		handlers: NewHandlers(cfg.Engine, cfg.Logger),
		log:      cfg.Logger.With().Str("component", "web").Logger(),
	}

	s.setupMiddleware()
	s.setupRoutes()

	s.server = &http.Server{
		Addr:         cfg.Addr,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	return s
}

// setupMiddleware configures middleware for the router.
func (s *Server) setupMiddleware() {
	s.router.Use(middleware.RequestID)
	s.router.Use(middleware.RealIP)
	s.router.Use(requestLogger(s.log))
	s.router.Use(middleware.Recoverer)
	s.router.Use(middleware.Compress(5))
}

// setupRoutes configures routes for the application.
func (s *Server) setupRoutes() {
	s.router.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
	s.router.Method(http.MethodGet, "/metrics", promhttp.Handler())

	s.router.Route("/api", func(r chi.Router) {
		r.Get("/mixes", s.handlers.DailyMixes)
		r.Get("/discover-weekly", s.handlers.DiscoverWeekly)
		r.Get("/on-repeat", s.handlers.OnRepeat)
		r.Get("/on-repeat-rewind", s.handlers.OnRepeatRewind)
		r.Get("/featured", s.handlers.Featured)
		r.Get("/playlists/for-you", s.handlers.PlaylistsForYou)
		r.Get("/releases/new", s.handlers.NewReleases)
	})
}

// requestLogger logs each request at debug with method, path and duration.
func requestLogger(log zerolog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			next.ServeHTTP(ww, r)
			log.Debug().
				Str("method", r.Method).
				Str("path", r.URL.Path).
				Int("status", ww.Status()).
				Dur("duration", time.Since(start)).
				Msg("request")
		})
	}
}

// Start starts the HTTP server.
func (s *Server) Start() error {
	s.log.Info().Str("addr", s.server.Addr).Msg("starting server")
	return s.server.ListenAndServe()
}

// Shutdown gracefully shuts down the server.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.server.Shutdown(ctx)
}

// Run starts the server and handles graceful shutdown on interrupt signals.
func (s *Server) Run() error {
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)

	errCh := make(chan error, 1)
	go func() {
		if err := s.Start(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return err
	case <-stop:
		s.log.Info().Msg("shutting down server")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := s.Shutdown(ctx); err != nil {
		return fmt.Errorf("server shutdown: %w", err)
	}

	s.log.Info().Msg("server stopped")
	return nil
}
