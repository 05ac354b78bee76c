// Package api provides the HTTP REST API and WebSocket server for SoundMesh Core.
//
// It exposes speaker registration, group topology, and group control
// operations to user interfaces, and streams state changes over WebSocket.
//
// The server follows the same lifecycle pattern as other infrastructure components:
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

	"github.com/nerrad567/soundmesh-core/internal/group"
	"github.com/nerrad567/soundmesh-core/internal/infrastructure/config"
	"github.com/nerrad567/soundmesh-core/internal/infrastructure/logging"
	"github.com/nerrad567/soundmesh-core/internal/speaker"
)

// gracefulShutdownTimeout is the maximum time to wait for in-flight requests
// to complete during shutdown.
const gracefulShutdownTimeout = 10 * time.Second

// Poller manages polling loops for registered speakers. Registration
// through the API must start a loop; deregistration must stop it.
type Poller interface {
	Add(id string) error
	Remove(id string)
}

// Forgetter clears missing-device notification state on deregistration.
type Forgetter interface {
	Forget(id string)
}

// Commander sends direct control commands to a single speaker.
type Commander interface {
	SetVolume(ctx context.Context, address string, level float64) error
	SetMute(ctx context.Context, address string, muted bool) error
}

// OperationRecorder receives group fan-out reports for telemetry.
type OperationRecorder interface {
	RecordOperation(report group.OperationReport)
}

// Deps holds the dependencies required by the API server.
type Deps struct {
	Config      config.APIConfig
	Logger      *logging.Logger
	Registry    *speaker.Registry
	Groups      *speaker.Groups
	Coordinator *group.Coordinator
	Commander   Commander
	Store       speaker.Store     // optional; registration is memory-only without it
	Poller      Poller            // optional
	Resolver    Forgetter         // optional
	Recorder    OperationRecorder // optional
	ExternalHub *Hub              // If set, the server uses this hub instead of creating its own
	Version     string
}

// Server is the HTTP API server for SoundMesh Core.
//
// It manages the HTTP listener, routes, middleware, and WebSocket hub.
// The server is created with New() and started with Start().
type Server struct {
	cfg         config.APIConfig
	logger      *logging.Logger
	registry    *speaker.Registry
	groups      *speaker.Groups
	coordinator *group.Coordinator
	commander   Commander
	store       speaker.Store
	poller      Poller
	resolver    Forgetter
	recorder    OperationRecorder
	version     string
	server      *http.Server
	hub         *Hub
	externalHub bool               // true if hub was injected externally
	cancel      context.CancelFunc // cancels background goroutines on Close()
}

// New creates a new API server with the given dependencies.
//
// The server is not started until Start() is called.
//
// Parameters:
//   - deps: Required dependencies (config, logger, registry, groups, coordinator)
//
// Returns:
//   - *Server: Configured server ready to start
//   - error: If required dependencies are missing
func New(deps Deps) (*Server, error) {
	if deps.Logger == nil {
		return nil, fmt.Errorf("logger is required")
	}
	if deps.Registry == nil {
		return nil, fmt.Errorf("speaker registry is required")
	}
	if deps.Groups == nil {
		return nil, fmt.Errorf("group view is required")
	}
	if deps.Coordinator == nil {
		return nil, fmt.Errorf("group coordinator is required")
	}

	s := &Server{
		cfg:         deps.Config,
		logger:      deps.Logger,
		registry:    deps.Registry,
		groups:      deps.Groups,
		coordinator: deps.Coordinator,
		commander:   deps.Commander,
		store:       deps.Store,
		poller:      deps.Poller,
		resolver:    deps.Resolver,
		recorder:    deps.Recorder,
		version:     deps.Version,
	}

	// Use externally-provided hub if available (needed when the registry
	// snapshot hook also requires the hub for WebSocket broadcasting).
	if deps.ExternalHub != nil {
		s.hub = deps.ExternalHub
		s.externalHub = true
	}

	return s, nil
}

// Start begins listening for HTTP connections.
//
// It sets up the router, starts the WebSocket hub, and launches the HTTP
// listener in a background goroutine. The server can be stopped with Close().
//
// Parameters:
//   - ctx: Context for cancellation (not used for listener lifetime)
//
// Returns:
//   - error: If the server fails to start (port in use, etc.)
func (s *Server) Start(ctx context.Context) error {
	// Create internal context so Close() can stop background goroutines
	// independently of the parent context.
	var srvCtx context.Context
	srvCtx, s.cancel = context.WithCancel(ctx)

	// Create WebSocket hub (unless one was injected externally)
	if s.hub == nil {
		s.hub = NewHub(s.cfg.WebSocket, s.logger)
		go s.hub.Run(srvCtx)
	}

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
		err := s.server.ListenAndServe()
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error("API server error", "error", err)
		}
	}()

	return nil
}

// Hub returns the server's WebSocket hub, creating one if needed.
// Used to wire the registry snapshot hook for state broadcasts before Start().
func (s *Server) Hub() *Hub {
	if s.hub == nil {
		s.hub = NewHub(s.cfg.WebSocket, s.logger)
	}
	return s.hub
}

// Close gracefully shuts down the API server.
//
// It waits up to 10 seconds for in-flight requests to complete,
// then forcefully closes remaining connections.
//
// Returns:
//   - error: If shutdown encounters an error
func (s *Server) Close() error {
	if s.server == nil {
		return nil
	}

	// Cancel background goroutines (hub)
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
//
// Parameters:
//   - ctx: Context for timeout/cancellation
//
// Returns:
//   - error: nil if healthy, error describing the issue otherwise
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
