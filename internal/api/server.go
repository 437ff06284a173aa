package api

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/nerrad567/pettracker-core/internal/audit"
	"github.com/nerrad567/pettracker-core/internal/home"
	"github.com/nerrad567/pettracker-core/internal/infrastructure/config"
	"github.com/nerrad567/pettracker-core/internal/infrastructure/logging"
)

// gracefulShutdownTimeout is the maximum time to wait for in-flight requests
// to complete during shutdown.
const gracefulShutdownTimeout = 10 * time.Second

// ConnectionStatus reports whether a transport is connected.
type ConnectionStatus interface {
	IsConnected() bool
}

// TwinCounter reports how many twins are currently acquired.
type TwinCounter interface {
	Live() int
}

// Deps holds the dependencies required by the API server.
type Deps struct {
	Config   config.APIConfig
	Logger   *logging.Logger
	Homes    *home.Manager
	Registry *prometheus.Registry // Serves /metrics and receives the HTTP counters

	// Hub serves /ws when set.
	Hub *Hub

	// Audit records API changes and serves /audit when set.
	Audit audit.Repository

	// Optional, reported by /system.
	MQTT  ConnectionStatus
	DB    *sql.DB
	Twins TwinCounter

	Version string
}

// Server is the HTTP API server for the pet tracker core.
//
// The server is created with New() and started with Start().
type Server struct {
	cfg       config.APIConfig
	logger    *logging.Logger
	homes     *home.Manager
	registry  *prometheus.Registry
	metrics   *httpMetrics
	hub       *Hub
	audit     audit.Repository
	mqtt      ConnectionStatus
	db        *sql.DB
	twins     TwinCounter
	version   string
	startTime time.Time
	server    *http.Server
}

// New creates a new API server with the given dependencies.
//
// The server is not started until Start() is called.
func New(deps Deps) (*Server, error) {
	if deps.Logger == nil {
		return nil, fmt.Errorf("logger is required")
	}
	if deps.Homes == nil {
		return nil, fmt.Errorf("home manager is required")
	}
	if deps.Registry == nil {
		return nil, fmt.Errorf("metrics registry is required")
	}

	return &Server{
		cfg:       deps.Config,
		logger:    deps.Logger,
		homes:     deps.Homes,
		registry:  deps.Registry,
		metrics:   newHTTPMetrics(deps.Registry),
		hub:       deps.Hub,
		audit:     deps.Audit,
		mqtt:      deps.MQTT,
		db:        deps.DB,
		twins:     deps.Twins,
		version:   deps.Version,
		startTime: time.Now(),
	}, nil
}

// Start begins listening for HTTP connections in a background goroutine.
// The server can be stopped with Close().
func (s *Server) Start(_ context.Context) error {
	s.server = &http.Server{
		Addr:              fmt.Sprintf("%s:%d", s.cfg.Host, s.cfg.Port),
		Handler:           s.buildRouter(),
		ReadTimeout:       time.Duration(s.cfg.Timeouts.Read) * time.Second,
		ReadHeaderTimeout: time.Duration(s.cfg.Timeouts.Read) * time.Second,
		WriteTimeout:      time.Duration(s.cfg.Timeouts.Write) * time.Second,
		IdleTimeout:       time.Duration(s.cfg.Timeouts.Idle) * time.Second,
	}

	go func() {
		s.logger.Info("API server starting", "address", s.server.Addr)
		if err := s.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error("API server error", "error", err)
		}
	}()

	return nil
}

// Close gracefully shuts down the API server.
//
// It waits up to 10 seconds for in-flight requests to complete,
// then forcefully closes remaining connections.
func (s *Server) Close() error {
	if s.server == nil {
		return nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), gracefulShutdownTimeout)
	defer cancel()

	s.logger.Info("API server shutting down")
	if err := s.server.Shutdown(ctx); err != nil {
		return fmt.Errorf("shutting down API server: %w", err)
	}
	return nil
}

// HealthCheck verifies the API server is running and responsive.
func (s *Server) HealthCheck(ctx context.Context) error {
	select {
	case <-ctx.Done():
		return fmt.Errorf("api health check: %w", ctx.Err())
	default:
	}

	if s.server == nil {
		return fmt.Errorf("api server not started")
	}

	return nil
}
