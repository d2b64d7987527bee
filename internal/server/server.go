// Package server provides the HTTP server and handlers.
package server

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/bryan-buckman/todod/internal/metrics"
	"github.com/bryan-buckman/todod/internal/model"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/hlog"
)

// Repository is the data access the handlers need.
type Repository interface {
	Create(ctx context.Context, in model.NewTodo) (model.Todo, error)
	List(ctx context.Context) ([]model.Todo, error)
	Get(ctx context.Context, id int64) (model.Todo, error)
	Update(ctx context.Context, id int64, cs model.Changeset) (model.Todo, error)
	SetDone(ctx context.Context, id int64, done bool) error
	Delete(ctx context.Context, id int64) error
}

// Pinger reports whether storage is reachable.
type Pinger interface {
	Ping(ctx context.Context) error
}

const readyTimeout = 2 * time.Second

// Server is the main HTTP server.
type Server struct {
	repo       Repository
	pinger     Pinger
	metrics    *metrics.Metrics
	log        zerolog.Logger
	router     chi.Router
	httpServer *http.Server
}

// New creates a new server. m may be nil to disable instrumentation.
func New(repo Repository, pinger Pinger, m *metrics.Metrics, log zerolog.Logger) *Server {
	s := &Server{
		repo:    repo,
		pinger:  pinger,
		metrics: m,
		log:     log.With().Str("component", "server").Logger(),
	}
	s.setupRoutes()
	s.httpServer = &http.Server{
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
		IdleTimeout:       60 * time.Second,
	}
	return s
}

func (s *Server) setupRoutes() {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(hlog.NewHandler(s.log))
	r.Use(hlog.AccessHandler(accessLog))
	r.Use(middleware.Recoverer)
	r.Use(middleware.StripSlashes)
	r.Use(middleware.Compress(5))
	if s.metrics != nil {
		r.Use(s.metrics.Middleware)
		r.Handle("/metrics", s.metrics.Handler())
	}

	r.Get("/healthz", s.handleHealthz)
	r.Get("/readyz", s.handleReadyz)

	r.Get("/todos", s.handleList)
	r.With(requireJSON).Post("/todos", s.handleCreate)
	r.Get("/todos/{id}", s.handleGet)
	r.With(requireJSON).Patch("/todos/{id}", s.handleUpdate)
	r.With(requireJSON).Put("/todos/{id}", s.handleDone)
	r.Delete("/todos/{id}", s.handleDelete)

	s.router = r
}

func accessLog(r *http.Request, status, size int, duration time.Duration) {
	log := hlog.FromRequest(r)
	var e *zerolog.Event
	switch {
	case status >= 500:
		e = log.Error()
	case status >= 400:
		e = log.Warn()
	default:
		e = log.Info()
	}
	e.Str("request_id", middleware.GetReqID(r.Context())).
		Str("method", r.Method).
		Str("uri", r.URL.RequestURI()).
		Str("ip", r.RemoteAddr).
		Int("status", status).
		Int("size", size).
		Dur("latency", duration).
		Msg("request")
}

// Handler returns the routed handler, for tests and embedding.
func (s *Server) Handler() http.Handler {
	return s.router
}

// Start listens on addr until Shutdown is called. Calling it after Shutdown
// returns immediately.
func (s *Server) Start(addr string) error {
	s.httpServer.Addr = addr
	s.log.Info().Str("addr", addr).Msg("server starting")
	if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Shutdown stops accepting connections and waits for in-flight requests.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}

func (s *Server) handleHealthz(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	w.Write([]byte("ok"))
}

func (s *Server) handleReadyz(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), readyTimeout)
	defer cancel()
	if err := s.pinger.Ping(ctx); err != nil {
		hlog.FromRequest(r).Warn().Err(err).Msg("storage not ready")
		writeHTTPError(w, notReady)
		return
	}
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	w.Write([]byte("ready"))
}
