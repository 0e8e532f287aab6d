package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"
)

const shutdownTimeout = 15 * time.Second

// Server is the local instance: content delivery with remote asset syncing plus the
// management endpoints.
type Server struct {
	config *Config
	server *http.Server
	svc    *Services
}

func New(config *Config, svc *Services) (*Server, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}
	if svc == nil || svc.Repository == nil || svc.Remote == nil {
		return nil, errors.New("server: repository and remote assets service are required")
	}

	return &Server{
		config: config,
		svc:    svc,
		server: &http.Server{
			Addr:              config.HTTP.Addr,
			Handler:           SetupRoutes(config, svc),
			ReadHeaderTimeout: 10 * time.Second,
		},
	}, nil
}

func (s *Server) Handler() http.Handler {
	return s.server.Handler
}

func (s *Server) Start(ctx context.Context) error {
	slog.Info("server start", "http", &s.config.HTTP)
	defer slog.Info("server stopped")

	if err := s.svc.Start(ctx); err != nil {
		return err
	}

	errCh := make(chan error, 1)
	go func() {
		if err := s.runHttpServer(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case <-ctx.Done():
		slog.Info("server shutdown signal")
	case err := <-errCh:
		if err != nil {
			slog.Error("http server", "error", err)
			_ = s.svc.Shutdown(context.Background())
			return fmt.Errorf("http server: %w", err)
		}
	}

	return s.Stop(context.WithoutCancel(ctx))
}

func (s *Server) Stop(ctx context.Context) error {
	shutdownCtx, cancel := context.WithTimeout(ctx, shutdownTimeout)
	defer cancel()

	var errs []error
	if err := s.server.Shutdown(shutdownCtx); err != nil {
		errs = append(errs, fmt.Errorf("http shutdown: %w", err))
	}
	if err := s.svc.Shutdown(shutdownCtx); err != nil {
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}

func (s *Server) runHttpServer() error {
	if s.config.HTTP.TLSEnabled() {
		slog.Info("server start tls", "addr", s.config.HTTP.Addr, "cert", s.config.HTTP.CertFile, "key", s.config.HTTP.KeyFile)
		return s.server.ListenAndServeTLS(s.config.HTTP.CertFile, s.config.HTTP.KeyFile)
	}
	slog.Info("server start http", "addr", s.config.HTTP.Addr)
	return s.server.ListenAndServe()
}
