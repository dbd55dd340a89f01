// Package statusapi provides a read-only HTTP status surface for
// operations visibility: device registry snapshots and driver instance
// health. It is deliberately not the external query/subscription/
// mutation protocol: no settings are accepted here, and no
// authentication is required, since it carries no control-plane
// capability.
//
// It follows the same lifecycle pattern as other infrastructure
// components:
//
//	server, err := statusapi.New(deps)
//	server.Start(ctx)
//	defer server.Close()
package statusapi

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/nerrad567/drmemd/internal/backend"
	"github.com/nerrad567/drmemd/internal/driver"
	"github.com/nerrad567/drmemd/internal/infrastructure/config"
	"github.com/nerrad567/drmemd/internal/infrastructure/logging"
	"github.com/nerrad567/drmemd/internal/observer"
)

// gracefulShutdownTimeout is the maximum time to wait for in-flight
// requests to complete during shutdown.
const gracefulShutdownTimeout = 10 * time.Second

// Deps holds the dependencies required by the status server.
type Deps struct {
	Config     config.StatusAPIConfig
	Logger     *logging.Logger
	Backend    backend.Backend
	Supervisor *driver.Supervisor
	Debug      *observer.DebugServer // optional: mounts GET /ws/devices if set
	Version    string
}

// Server is the status HTTP server.
type Server struct {
	cfg        config.StatusAPIConfig
	logger     *logging.Logger
	be         backend.Backend
	supervisor *driver.Supervisor
	debug      *observer.DebugServer
	version    string

	server *http.Server
}

// New creates a status server with the given dependencies. The server is
// not started until Start is called.
func New(deps Deps) (*Server, error) {
	if deps.Logger == nil {
		return nil, fmt.Errorf("logger is required")
	}
	if deps.Backend == nil {
		return nil, fmt.Errorf("backend is required")
	}
	if deps.Supervisor == nil {
		return nil, fmt.Errorf("driver supervisor is required")
	}

	return &Server{
		cfg:        deps.Config,
		logger:     deps.Logger,
		be:         deps.Backend,
		supervisor: deps.Supervisor,
		debug:      deps.Debug,
		version:    deps.Version,
	}, nil
}

// Start builds the router and begins listening in a background
// goroutine. It returns once the listener is configured, not once it has
// accepted its first connection.
func (s *Server) Start(_ context.Context) error {
	s.server = &http.Server{
		Addr:              fmt.Sprintf("%s:%d", s.cfg.Host, s.cfg.Port),
		Handler:           s.buildRouter(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		if err := s.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error("status api server error", "error", err)
		}
	}()

	s.logger.Info("status api listening", "address", s.server.Addr)
	return nil
}

// Close gracefully shuts down the server, waiting up to
// gracefulShutdownTimeout for in-flight requests to complete.
func (s *Server) Close() error {
	if s.server == nil {
		return nil
	}
	ctx, cancel := context.WithTimeout(context.Background(), gracefulShutdownTimeout)
	defer cancel()

	s.logger.Info("status api shutting down")
	if err := s.server.Shutdown(ctx); err != nil {
		return fmt.Errorf("shutting down status api: %w", err)
	}
	return nil
}

// HealthCheck reports an error if Start has not been called. It does not
// probe the listener, and it still returns nil after Close.
func (s *Server) HealthCheck(ctx context.Context) error {
	select {
	case <-ctx.Done():
		return fmt.Errorf("status api health check: %w", ctx.Err())
	default:
	}
	if s.server == nil {
		return fmt.Errorf("status api not started")
	}
	return nil
}
