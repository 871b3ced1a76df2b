// Package server exposes the engine over HTTP: persona CRUD, the
// respond pipeline, mood and drift surfaces, a websocket event stream,
// and the prometheus scrape endpoint.
package server

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/gorilla/websocket"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog/log"

	"github.com/praxislabs/praxis/internal/bus"
	"github.com/praxislabs/praxis/internal/config"
	"github.com/praxislabs/praxis/internal/engine"
)

// Server wires the HTTP surface over an engine and its bus.
type Server struct {
	engine   *engine.Engine
	bus      *bus.Bus
	cfg      config.ServerConfig
	upgrader websocket.Upgrader
	http     *http.Server
}

// New builds the server. Start runs it; Router is exposed separately for
// tests.
func New(cfg config.ServerConfig, eng *engine.Engine, b *bus.Bus) *Server {
	s := &Server{
		engine: eng,
		bus:    b,
		cfg:    cfg,
		upgrader: websocket.Upgrader{
			// The service sits behind the platform's ingress; origin
			// policy is enforced there.
			CheckOrigin: func(*http.Request) bool { return true },
		},
	}
	s.http = &http.Server{
		Addr:         cfg.Addr,
		Handler:      s.Router(),
		ReadTimeout:  time.Duration(cfg.ReadTimeoutSec) * time.Second,
		WriteTimeout: time.Duration(cfg.WriteTimeoutSec) * time.Second,
		IdleTimeout:  2 * time.Minute,
	}
	return s
}

// Router assembles the chi routing tree.
func (s *Server) Router() http.Handler {
	r := chi.NewRouter()

	r.Use(chimw.RequestID)
	r.Use(chimw.RealIP)
	r.Use(requestLogger)
	r.Use(chimw.Recoverer)

	r.Get("/healthz", s.handleHealth)
	r.Handle("/metrics", promhttp.Handler())

	r.Route("/api", func(r chi.Router) {
		r.Get("/events", s.handleEvents)

		r.Route("/personas", func(r chi.Router) {
			r.Get("/", s.handleListPersonas)
			r.Post("/", s.handleCreatePersona)

			r.Route("/{id}", func(r chi.Router) {
				r.Get("/", s.handleGetPersona)
				r.Put("/", s.handleUpdatePersona)
				r.Delete("/", s.handleDeletePersona)

				r.Post("/respond", s.handleRespond)
				r.Get("/moods", s.handleListMoods)
				r.Post("/moods", s.handleAddMood)
				r.Get("/analytics", s.handleAnalytics)
				r.Get("/consistency", s.handleConsistency)
				r.Get("/drift", s.handleDrift)
				r.Post("/corrections", s.handleCorrect)
				r.Get("/corrections", s.handleCorrectionHistory)
				r.Get("/adaptation", s.handleAdaptation)
			})
		})
	})

	return r
}

// Start listens until Shutdown or a listener error.
func (s *Server) Start() error {
	log.Info().Str("addr", s.cfg.Addr).Msg("http server listening")
	err := s.http.ListenAndServe()
	if errors.Is(err, http.ErrServerClosed) {
		return nil
	}
	return err
}

// Shutdown drains connections within the given context.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.http.Shutdown(ctx)
}

// requestLogger emits one debug line per request.
func requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := chimw.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()
		next.ServeHTTP(ww, r)
		log.Debug().
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Int("status", ww.Status()).
			Dur("elapsed", time.Since(start)).
			Msg("http request")
	})
}
