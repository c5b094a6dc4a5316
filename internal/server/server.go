// Package server exposes the assessment flow over HTTP.
package server

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"golang.org/x/sync/errgroup"

	"symptomguide/internal/assessment"
	"symptomguide/internal/logging"
)

// Server is the HTTP front end over the orchestrator.
type Server struct {
	orch            *assessment.Orchestrator
	httpServer      *http.Server
	shutdownTimeout time.Duration
}

// Options configures the server.
type Options struct {
	Addr            string
	ShutdownTimeout time.Duration
}

// New builds the server with its routes mounted.
func New(orch *assessment.Orchestrator, opts Options) *Server {
	if opts.Addr == "" {
		opts.Addr = ":8080"
	}
	if opts.ShutdownTimeout <= 0 {
		opts.ShutdownTimeout = 10 * time.Second
	}

	s := &Server{orch: orch, shutdownTimeout: opts.ShutdownTimeout}

	r := chi.NewRouter()
	r.Use(requestID)
	r.Use(logRequests)

	r.Get("/healthz", s.handleHealth)
	r.Route("/api/assessments", func(r chi.Router) {
		r.Post("/", s.handleCreate)
		r.Route("/{id}", func(r chi.Router) {
			r.Get("/", s.handleGet)
			r.Post("/profile", s.handleSubmitProfile)
			r.Post("/image", s.handleSubmitImage)
			r.Post("/skip-image", s.handleSkipImage)
			r.Post("/mismatch", s.handleResolveMismatch)
			r.Post("/answers", s.handleSubmitAnswers)
			r.Post("/reset", s.handleReset)
		})
	})

	s.httpServer = &http.Server{
		Addr:              opts.Addr,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}
	return s
}

// Handler exposes the router, mainly for httptest.
func (s *Server) Handler() http.Handler {
	return s.httpServer.Handler
}

// Run serves until the context is cancelled, then drains connections
// within the shutdown timeout.
func (s *Server) Run(ctx context.Context) error {
	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		logging.Server("listening on %s", s.httpServer.Addr)
		if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})

	g.Go(func() error {
		<-ctx.Done()
		logging.Server("shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), s.shutdownTimeout)
		defer cancel()
		return s.httpServer.Shutdown(shutdownCtx)
	})

	return g.Wait()
}
