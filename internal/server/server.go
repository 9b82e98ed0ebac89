// Package server exposes the question-to-SQL pipeline over HTTP/JSON.
package server

import (
	"context"
	"errors"
	"net"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"github.com/koustreak/askdb/internal/audit"
	"github.com/koustreak/askdb/internal/config"
	"github.com/koustreak/askdb/internal/logger"
	"github.com/koustreak/askdb/internal/metrics"
	"github.com/koustreak/askdb/internal/nl2sql"
	"github.com/koustreak/askdb/internal/query"
	"github.com/koustreak/askdb/internal/session"
)

// Dependencies are the collaborators behind the routes. Sessions and
// Executor are required; a nil Translator disables /generate-sql and a nil
// Recorder disables history.
type Dependencies struct {
	Sessions          *session.Manager
	Translator        *nl2sql.Translator
	Executor          *query.Executor
	Recorder          audit.Recorder
	Logger            *logger.Logger
	IntrospectTimeout time.Duration
}

// Server is the HTTP front end.
type Server struct {
	cfg    config.ServerConfig
	deps   Dependencies
	log    *logger.Logger
	router chi.Router
}

// New wires the router.
func New(cfg config.ServerConfig, deps Dependencies) *Server {
	if deps.Recorder == nil {
		deps.Recorder = audit.Nop{}
	}
	if deps.Logger == nil {
		deps.Logger = logger.Nop()
	}
	if deps.Executor == nil {
		deps.Executor = &query.Executor{}
	}

	s := &Server{cfg: cfg, deps: deps, log: deps.Logger}
	s.router = s.routes()
	return s
}

// Handler returns the root handler, for tests and embedding.
func (s *Server) Handler() http.Handler {
	return s.router
}

func (s *Server) routes() chi.Router {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(logger.Middleware(s.log))
	r.Use(metrics.Middleware)
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{s.cfg.AllowedOrigin},
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowedHeaders: []string{"Accept", "Content-Type", "X-Request-Id"},
		MaxAge:         300,
	}))

	// /connect replaces the session, so it must never hold a lease.
	r.Post("/connect", s.handleConnect)
	r.Get("/healthz", s.handleHealth)
	r.Get("/history", s.handleHistory)
	r.Method(http.MethodGet, "/metrics", metrics.Handler())

	r.Group(func(r chi.Router) {
		r.Use(s.deps.Sessions.Middleware)

		r.Get("/tables", s.handleTables)
		r.Get("/schema", s.handleSchema)
		r.Get("/tables/{table}/preview", s.handlePreview)
		r.Post("/generate-sql", s.handleGenerate)
		r.Post("/execute", s.handleExecute)
	})

	return r
}

// Run listens on the configured address until ctx is cancelled.
func (s *Server) Run(ctx context.Context) error {
	ln, err := net.Listen("tcp", s.cfg.Addr)
	if err != nil {
		return err
	}
	return s.Serve(ctx, ln)
}

// Serve accepts connections on ln until ctx is cancelled, then drains
// in-flight requests and closes the live database connection.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	srv := &http.Server{
		Handler:           s.router,
		ReadTimeout:       s.cfg.ReadTimeout,
		ReadHeaderTimeout: 10 * time.Second,
		WriteTimeout:      s.cfg.WriteTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		s.log.Infof("listening on %s", ln.Addr())
		errCh <- srv.Serve(ln)
	}()

	var serveErr error
	select {
	case err := <-errCh:
		if !errors.Is(err, http.ErrServerClosed) {
			serveErr = err
		}
	case <-ctx.Done():
		timeout := s.cfg.ShutdownTimeout
		if timeout <= 0 {
			timeout = 10 * time.Second
		}
		shutdownCtx, cancel := context.WithTimeout(context.Background(), timeout)
		defer cancel()

		s.log.Info("shutting down")
		if err := srv.Shutdown(shutdownCtx); err != nil {
			serveErr = err
		}
	}

	if err := s.deps.Sessions.Close(); err != nil {
		s.log.WarnWith("closing database connection", err, nil)
	}
	return serveErr
}
