// File: internal/server/server.go

// Package server exposes the scan and schedule engine over HTTP. Every
// response uses the `{"success": bool, ...}` envelope; handlers never write
// raw bodies.
package server

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/tagprobe/tagprobe-cli/api/schemas"
	"github.com/tagprobe/tagprobe-cli/internal/config"
)

// ScanRunner runs one scan end to end. Satisfied by *scanner.Scanner.
type ScanRunner interface {
	Run(ctx context.Context, kind schemas.ScanKind, targetURL string) (*schemas.ScanResult, error)
}

// Repository is the slice of the store the HTTP layer needs.
type Repository interface {
	SaveScan(ctx context.Context, result *schemas.ScanResult) error
	LatestScan(ctx context.Context, kind schemas.ScanKind) (*schemas.ScanResult, error)
	ScansInRange(ctx context.Context, from, to time.Time) ([]schemas.ScanResult, error)
	ClearScans(ctx context.Context, kind schemas.ScanKind) error

	CreateTask(ctx context.Context, task *schemas.ScheduledTask) error
	GetTask(ctx context.Context, id string) (*schemas.ScheduledTask, error)
	ListTasks(ctx context.Context) ([]schemas.ScheduledTask, error)
	UpdateTask(ctx context.Context, task *schemas.ScheduledTask) error
	UpdateTaskStatus(ctx context.Context, id string, status schemas.TaskStatus) error
	DeleteTask(ctx context.Context, id string) error
}

// Server hosts the HTTP API.
type Server struct {
	cfg        config.ServerConfig
	logger     *zap.Logger
	httpServer *http.Server
	handlers   *Handlers
}

// New assembles the router and handlers.
func New(cfg config.ServerConfig, defaultTargetURL string, runner ScanRunner, repo Repository, logger *zap.Logger) *Server {
	handlers := NewHandlers(runner, repo, defaultTargetURL, logger)

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	// Scans hold a browser open for a while; the timeout has to cover a full
	// navigate-consent-scroll cycle.
	r.Use(middleware.Timeout(3 * time.Minute))

	handlers.RegisterRoutes(r)

	return &Server{
		cfg:    cfg,
		logger: logger.Named("server"),
		httpServer: &http.Server{
			Addr:              cfg.Addr,
			Handler:           r,
			ReadHeaderTimeout: 10 * time.Second,
		},
		handlers: handlers,
	}
}

// Start runs the listener until ctx is canceled, then drains in-flight
// requests within the configured shutdown timeout.
func (s *Server) Start(ctx context.Context) error {
	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		s.logger.Info("HTTP API listening.", zap.String("addr", s.cfg.Addr))
		if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})

	g.Go(func() error {
		<-gctx.Done()

		shutdownCtx, cancel := context.WithTimeout(context.Background(), s.cfg.ShutdownTimeout)
		defer cancel()

		s.logger.Info("Shutting down HTTP API.")
		return s.httpServer.Shutdown(shutdownCtx)
	})

	return g.Wait()
}
