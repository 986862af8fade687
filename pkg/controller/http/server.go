package http

import (
	"context"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/m-mizutani/sfbackup/pkg/domain/interfaces"
	"github.com/m-mizutani/sfbackup/pkg/utils/async"
)

// config holds internal HTTP server configuration
type config struct {
	addr         string
	triggerToken string
	recorder     interfaces.RunRecorder
}

// Option is a functional option for Server configuration
type Option func(*config)

// WithAddr sets the server address
func WithAddr(addr string) Option {
	return func(c *config) {
		c.addr = addr
	}
}

// WithTriggerToken requires "Authorization: Bearer <token>" on POST /backup
func WithTriggerToken(token string) Option {
	return func(c *config) {
		c.triggerToken = token
	}
}

// WithRecorder enables the run history endpoints
func WithRecorder(recorder interfaces.RunRecorder) Option {
	return func(c *config) {
		c.recorder = recorder
	}
}

// Server represents the HTTP server
type Server struct {
	*http.Server
	background *async.Group
}

// NewServer creates a new HTTP server
func NewServer(
	ctx context.Context,
	backupUC interfaces.BackupUseCase,
	opts ...Option,
) (*Server, error) {
	// Default configuration
	cfg := &config{
		addr: "localhost:8080",
	}

	// Apply options
	for _, opt := range opts {
		opt(cfg)
	}

	var running atomic.Bool
	background := &async.Group{}

	router := chi.NewRouter()

	// Global middleware
	router.Use(middleware.RequestID)
	router.Use(middleware.RealIP)
	router.Use(LoggingMiddleware(ctx))
	router.Use(middleware.Recoverer)

	// Health check
	router.Get("/health", healthHandler(&running))

	backupHandler := NewBackupHandler(backupUC, cfg.triggerToken, &running, background)
	runsHandler := NewRunsHandler(cfg.recorder)

	router.Route("/backup", func(r chi.Router) {
		r.Post("/", backupHandler.Handle)
		r.Get("/runs", runsHandler.List)
		r.Get("/runs/{id}", runsHandler.Get)
	})

	server := &Server{
		Server: &http.Server{
			Addr:              cfg.addr,
			Handler:           router,
			ReadHeaderTimeout: 15 * time.Second,
		},
		background: background,
	}

	return server, nil
}

// Shutdown stops accepting requests and waits for background backup runs
func (s *Server) Shutdown(ctx context.Context) error {
	if err := s.Server.Shutdown(ctx); err != nil {
		return err
	}
	return s.background.Wait(ctx)
}
