// Package server exposes the voice-cloning pipeline over HTTP.
package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/book-expert/logger"
	"github.com/book-expert/voiceclone-service/internal/config"
	"github.com/book-expert/voiceclone-service/internal/core"
	"github.com/book-expert/voiceclone-service/internal/extract"
	"github.com/book-expert/voiceclone-service/internal/scratch"
	"github.com/book-expert/voiceclone-service/internal/text"
	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
)

// ServiceName identifies the service in health responses.
const ServiceName = "voiceclone-service"

const idleTimeout = 120 * time.Second

// ErrMissingDependency indicates that a required component was not supplied.
var ErrMissingDependency = errors.New("missing server dependency")

// Dependencies are the components the server wires into its handlers.
// Normalizer and Archiver are optional.
type Dependencies struct {
	Scratch     *scratch.Store
	Extractors  *extract.Registry
	Normalizer  *text.Normalizer
	Synthesizer core.Synthesizer
	Archiver    core.Archiver
}

// Server is the HTTP front end of the service.
type Server struct {
	config      config.ServerConfig
	synthesizer core.Synthesizer
	metrics     *Metrics
	router      chi.Router
	log         *logger.Logger
}

// New builds the router for cfg.
func New(cfg config.ServerConfig, deps Dependencies, log *logger.Logger) (*Server, error) {
	if deps.Scratch == nil || deps.Extractors == nil || deps.Synthesizer == nil {
		return nil, fmt.Errorf("%w: scratch, extractors and synthesizer are required", ErrMissingDependency)
	}

	metrics := NewMetrics()

	process := &ProcessHandler{
		scratch:        deps.Scratch,
		extractors:     deps.Extractors,
		normalizer:     deps.Normalizer,
		synthesizer:    deps.Synthesizer,
		archiver:       deps.Archiver,
		metrics:        metrics,
		maxUploadBytes: cfg.MaxUploadBytes(),
		log:            log,
	}

	srv := &Server{
		config:      cfg,
		synthesizer: deps.Synthesizer,
		metrics:     metrics,
		log:         log,
	}

	router := chi.NewRouter()
	router.Use(chimw.RequestID)
	router.Use(chimw.RealIP)
	router.Use(srv.requestLogger)
	router.Use(chimw.Recoverer)

	router.Method(http.MethodPost, "/process/", process)
	router.Method(http.MethodPost, "/process", process)
	router.Get("/healthz", srv.handleHealth)
	router.Get("/readyz", srv.handleReady)
	router.Method(http.MethodGet, "/metrics", metrics.Handler())

	srv.router = router

	return srv, nil
}

// Handler returns the root HTTP handler.
func (s *Server) Handler() http.Handler {
	return s.router
}

// Run serves until ctx is cancelled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context) error {
	httpServer := &http.Server{
		Addr:              s.config.Addr(),
		Handler:           s.router,
		ReadHeaderTimeout: time.Duration(s.config.ReadHeaderTimeoutSeconds) * time.Second,
		IdleTimeout:       idleTimeout,
	}

	serveErr := make(chan error, 1)

	go func() {
		s.log.System("Listening on http://%s", httpServer.Addr)

		err := httpServer.ListenAndServe()
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- fmt.Errorf("http server failed: %w", err)

			return
		}

		serveErr <- nil
	}()

	select {
	case err := <-serveErr:
		return err
	case <-ctx.Done():
	}

	s.log.System("Shutting down HTTP server")

	shutdownCtx, cancel := context.WithTimeout(context.Background(),
		time.Duration(s.config.ShutdownTimeoutSeconds)*time.Second)
	defer cancel()

	err := httpServer.Shutdown(shutdownCtx)
	if err != nil {
		return fmt.Errorf("failed to shut down http server: %w", err)
	}

	return <-serveErr
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{
		"status":  "healthy",
		"service": ServiceName,
	})
}

func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	err := s.synthesizer.HealthCheck(r.Context())
	if err != nil {
		s.log.Warn("Readiness check failed: %v", err)
		writeJSON(w, http.StatusServiceUnavailable, map[string]any{
			"status": "unavailable",
			"dependencies": map[string]string{
				"synthesis": err.Error(),
			},
		})

		return
	}

	writeJSON(w, http.StatusOK, map[string]string{"status": "ready"})
}

func (s *Server) requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		started := time.Now()
		wrapped := chimw.NewWrapResponseWriter(w, r.ProtoMajor)

		next.ServeHTTP(wrapped, r)

		s.log.Info("%s %s %d %dB %s [%s]", r.Method, r.URL.Path, wrapped.Status(),
			wrapped.BytesWritten(), time.Since(started).Round(time.Millisecond), chimw.GetReqID(r.Context()))
	})
}
