// Package server wires the HTTP surface: comment write operations, the
// moderation admin surface, health, and metrics.
package server

import (
	"context"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/lumacms/lumacms/internal/config"
	"github.com/lumacms/lumacms/internal/server/handlers"
	"github.com/lumacms/lumacms/internal/service/comment"
	"github.com/lumacms/lumacms/internal/service/safety"
	"github.com/lumacms/lumacms/pkg/auth"
)

// Deps are the services the HTTP surface exposes.
type Deps struct {
	Comments *comment.Service
	Admin    *safety.AdminService
	Settings handlers.SafetySettingsStore
}

// Server hosts the application and metrics listeners.
type Server struct {
	log     *zap.Logger
	app     *http.Server
	metrics *http.Server
}

// New builds the server with all routes registered.
func New(cfg *config.Config, deps Deps, log *zap.Logger) *Server {
	mux := http.NewServeMux()
	mux.HandleFunc("/api/comment_ops", handlers.CommentOpsHandler(deps.Comments, log))
	mux.HandleFunc("/api/safety_ops", handlers.SafetyOpsHandler(deps.Admin, deps.Settings, log))
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		if _, err := w.Write([]byte("ok")); err != nil {
			log.Warn("Failed to write health response", zap.Error(err))
		}
	})

	metricsMux := http.NewServeMux()
	metricsMux.Handle("/metrics", promhttp.Handler())

	return &Server{
		log: log,
		app: &http.Server{
			Addr:              ":" + cfg.AppPort,
			Handler:           auth.Middleware(cfg.JWTSecret, mux),
			ReadHeaderTimeout: 10 * time.Second,
			ReadTimeout:       30 * time.Second,
			WriteTimeout:      30 * time.Second,
		},
		metrics: &http.Server{
			Addr:              ":" + cfg.MetricsPort,
			Handler:           metricsMux,
			ReadHeaderTimeout: 10 * time.Second,
		},
	}
}

// Run serves until ctx is canceled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context) error {
	errCh := make(chan error, 2)

	go func() {
		s.log.Info("metrics server listening", zap.String("addr", s.metrics.Addr))
		if err := s.metrics.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()
	go func() {
		s.log.Info("http server listening", zap.String("addr", s.app.Addr))
		if err := s.app.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	select {
	case <-ctx.Done():
	case err := <-errCh:
		return err
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	s.log.Info("shutting down http servers")
	if err := s.app.Shutdown(shutdownCtx); err != nil {
		s.log.Warn("app server shutdown failed", zap.Error(err))
	}
	if err := s.metrics.Shutdown(shutdownCtx); err != nil {
		s.log.Warn("metrics server shutdown failed", zap.Error(err))
	}
	return nil
}
