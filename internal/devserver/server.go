package devserver

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"
)

// Server is the development sync server: a simulator behind the same
// three progress surfaces production exposes.
type Server struct {
	config  *Config
	server  *http.Server
	hub     *Hub
	service *SyncService
}

func New(config *Config) (*Server, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}

	hub, err := NewHub()
	if err != nil {
		return nil, err
	}
	service := NewSyncService(hub, config.TickInterval, config.HeartbeatInterval)

	return &Server{
		config:  config,
		hub:     hub,
		service: service,
		server: &http.Server{
			Addr:    config.HTTPAddr,
			Handler: SetupRoutes(config, hub, service),
		},
	}, nil
}

// Service exposes the job controller, e.g. for autostarting a scenario
// at boot.
func (s *Server) Service() *SyncService {
	return s.service
}

func (s *Server) Start(ctx context.Context) error {
	slog.Info("devserver start", "addr", s.config.HTTPAddr)
	defer slog.Info("devserver stop")

	errCh := make(chan error, 1)
	go func() {
		if err := s.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	slog.Info("devserver shutdown signal")
	return s.Stop(context.Background())
}

func (s *Server) Stop(ctx context.Context) error {
	shutdownCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	s.service.Shutdown()
	s.hub.Shutdown()

	return s.server.Shutdown(shutdownCtx)
}
