// Package api provides the HTTP REST API and WebSocket server for the
// AirCore backend.
//
// It exposes reading ingestion for purifier firmware, device and command
// management for dashboards, and a WebSocket stream of live status updates.
//
// The server follows the same lifecycle pattern as other infrastructure
// components:
//
//	server, err := api.New(deps)
//	server.Start(ctx)
//	defer server.Close()
//
// Thread Safety: All methods are safe for concurrent use from multiple goroutines.
package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/electronicsideas/aircore/internal/auth"
	"github.com/electronicsideas/aircore/internal/command"
	"github.com/electronicsideas/aircore/internal/device"
	"github.com/electronicsideas/aircore/internal/infrastructure/config"
	"github.com/electronicsideas/aircore/internal/infrastructure/logging"
)

// gracefulShutdownTimeout is the maximum time to wait for in-flight requests
// to complete during shutdown.
const gracefulShutdownTimeout = 10 * time.Second

// HealthChecker reports the health of a backing component.
// Implemented by the database, MQTT, and InfluxDB clients.
type HealthChecker interface {
	HealthCheck(ctx context.Context) error
}

// Deps holds the dependencies required by the API server.
type Deps struct {
	Config   config.APIConfig
	WS       config.WebSocketConfig
	Security config.SecurityConfig
	Logger   *logging.Logger

	Devices  device.Repository
	Status   device.StatusRepository
	Readings device.ReadingRepository
	Settings device.SettingsRepository
	Ingestor *device.Ingestor
	Monitor  *device.Monitor
	Queue    command.Queue
	Users    auth.UserRepository

	// Checks are named component health checks reported by GET /health.
	Checks map[string]HealthChecker

	ExternalHub *Hub // If set, the server uses this hub instead of creating its own
	Version     string
}

// Server is the HTTP API server for the AirCore backend.
//
// It manages the HTTP listener, routes, middleware, WebSocket hub, and
// the single-use ticket store that authenticates WebSocket upgrades.
type Server struct {
	cfg    config.APIConfig
	wsCfg  config.WebSocketConfig
	secCfg config.SecurityConfig
	logger *logging.Logger

	devices  device.Repository
	status   device.StatusRepository
	readings device.ReadingRepository
	settings device.SettingsRepository
	ingestor *device.Ingestor
	monitor  *device.Monitor
	queue    command.Queue
	users    auth.UserRepository
	checks   map[string]HealthChecker

	version     string
	server      *http.Server
	hub         *Hub
	externalHub bool // true if hub was injected externally
	tickets     *ticketStore
	cancel      context.CancelFunc // cancels background goroutines on Close()
}

// New creates a new API server with the given dependencies.
//
// The server is not started until Start() is called.
func New(deps Deps) (*Server, error) {
	if deps.Logger == nil {
		return nil, fmt.Errorf("logger is required")
	}
	if deps.Devices == nil || deps.Status == nil || deps.Readings == nil {
		return nil, fmt.Errorf("device repositories are required")
	}
	if deps.Ingestor == nil {
		return nil, fmt.Errorf("ingestor is required")
	}
	if deps.Monitor == nil {
		return nil, fmt.Errorf("liveness monitor is required")
	}
	if deps.Queue == nil {
		return nil, fmt.Errorf("command queue is required")
	}
	if deps.Users == nil {
		return nil, fmt.Errorf("user repository is required")
	}

	s := &Server{
		cfg:      deps.Config,
		wsCfg:    deps.WS,
		secCfg:   deps.Security,
		logger:   deps.Logger,
		devices:  deps.Devices,
		status:   deps.Status,
		readings: deps.Readings,
		settings: deps.Settings,
		ingestor: deps.Ingestor,
		monitor:  deps.Monitor,
		queue:    deps.Queue,
		users:    deps.Users,
		checks:   deps.Checks,
		version:  deps.Version,
		tickets:  newTicketStore(),
	}

	// Use externally-provided hub if available (needed when the ingest
	// pipeline also requires the hub for WebSocket broadcasting).
	if deps.ExternalHub != nil {
		s.hub = deps.ExternalHub
		s.externalHub = true
	}

	return s, nil
}

// Hub returns the server's WebSocket hub. May be nil before Start() when
// no external hub was injected.
func (s *Server) Hub() *Hub {
	return s.hub
}

// Start begins listening for HTTP connections.
//
// It sets up the router, starts the WebSocket hub, and launches the HTTP
// listener in a background goroutine. The server can be stopped with Close().
func (s *Server) Start(ctx context.Context) error {
	// Create internal context so Close() can stop background goroutines
	// independently of the parent context.
	var srvCtx context.Context
	srvCtx, s.cancel = context.WithCancel(ctx)

	// Create WebSocket hub (unless one was injected externally)
	if s.hub == nil {
		s.hub = NewHub(s.wsCfg, s.logger)
		go s.hub.Run(srvCtx)
	}

	// Start periodic ticket cleanup to prevent memory leaks
	go s.cleanTicketsLoop(srvCtx)

	// Build router
	router := s.buildRouter()

	// Create HTTP server
	s.server = &http.Server{
		Addr:              fmt.Sprintf("%s:%d", s.cfg.Host, s.cfg.Port),
		Handler:           router,
		ReadTimeout:       time.Duration(s.cfg.Timeouts.Read) * time.Second,
		ReadHeaderTimeout: time.Duration(s.cfg.Timeouts.Read) * time.Second,
		WriteTimeout:      time.Duration(s.cfg.Timeouts.Write) * time.Second,
		IdleTimeout:       time.Duration(s.cfg.Timeouts.Idle) * time.Second,
	}

	// Start listening in background
	go func() {
		var err error
		if s.cfg.TLS.Enabled {
			s.logger.Info("API server starting with TLS",
				"address", s.server.Addr,
				"cert", s.cfg.TLS.CertFile,
			)
			err = s.server.ListenAndServeTLS(s.cfg.TLS.CertFile, s.cfg.TLS.KeyFile)
		} else {
			err = s.server.ListenAndServe()
		}
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
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

	// Cancel background goroutines (hub, ticket cleanup)
	if s.cancel != nil {
		s.cancel()
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
