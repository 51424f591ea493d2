package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/nerrad567/rabbitlink/internal/connmgr"
	"github.com/nerrad567/rabbitlink/internal/infrastructure/config"
	"github.com/nerrad567/rabbitlink/internal/infrastructure/logging"
	"github.com/nerrad567/rabbitlink/internal/journal"
)

// gracefulShutdownTimeout is the maximum time to wait for in-flight requests
// to complete during shutdown.
const gracefulShutdownTimeout = 10 * time.Second

// Manager is the part of the connection manager the API drives.
// *connmgr.Manager satisfies it.
type Manager interface {
	Connect(ctx context.Context) error
	Disconnect(ctx context.Context) error
	HealthCheck(ctx context.Context) error
	Stats() connmgr.Stats
}

// Deps holds the dependencies required by the API server.
type Deps struct {
	Config  config.APIConfig
	WS      config.WebSocketConfig
	Logger  *logging.Logger
	Manager Manager
	Journal journal.Repository // optional; /events answers 503 without it
	Broker  string             // redacted broker URL shown in responses
	Version string
}

// Server is the HTTP status and control API.
//
// It manages the HTTP listener, routes, middleware and the websocket hub.
// The server is created with New() and started with Start().
type Server struct {
	cfg     config.APIConfig
	wsCfg   config.WebSocketConfig
	logger  *logging.Logger
	manager Manager
	journal journal.Repository
	broker  string
	version string
	server  *http.Server
	hub     *Hub

	// ctx bounds lifecycle commands and the hub. Start replaces it with a
	// child of the caller's context.
	ctx    context.Context
	cancel context.CancelFunc

	busy atomic.Bool
	wg   sync.WaitGroup
}

// New creates a new API server with the given dependencies.
//
// The server is not started until Start() is called, but HandleEvent may be
// registered with the manager straight away.
//
// Parameters:
//   - deps: Required dependencies (config, logger, manager)
//
// Returns:
//   - *Server: Configured server ready to start
//   - error: If required dependencies are missing
func New(deps Deps) (*Server, error) {
	if deps.Logger == nil {
		return nil, fmt.Errorf("logger is required")
	}
	if deps.Manager == nil {
		return nil, fmt.Errorf("connection manager is required")
	}

	ctx, cancel := context.WithCancel(context.Background())
	return &Server{
		cfg:     deps.Config,
		wsCfg:   deps.WS,
		logger:  deps.Logger,
		manager: deps.Manager,
		journal: deps.Journal,
		broker:  deps.Broker,
		version: deps.Version,
		hub:     NewHub(deps.WS, deps.Logger),
		ctx:     ctx,
		cancel:  cancel,
	}, nil
}

// HandleEvent relays a lifecycle event to websocket subscribers.
// It has the connmgr.Handler signature.
func (s *Server) HandleEvent(ev connmgr.Event) {
	s.hub.Broadcast(string(ev.Kind), newEventPayload(ev))
}

// Start begins listening for HTTP connections.
//
// It starts the websocket hub and launches the HTTP listener in a background
// goroutine. The server can be stopped with Close().
//
// Parameters:
//   - ctx: Parent context for lifecycle commands and the hub
//
// Returns:
//   - error: If the server was already started
func (s *Server) Start(ctx context.Context) error {
	if s.server != nil {
		return fmt.Errorf("api server already started")
	}

	s.cancel()
	s.ctx, s.cancel = context.WithCancel(ctx)
	go s.hub.Run(s.ctx)

	s.server = &http.Server{
		Addr:              fmt.Sprintf("%s:%d", s.cfg.Host, s.cfg.Port),
		Handler:           s.buildRouter(),
		ReadTimeout:       time.Duration(s.cfg.Timeouts.Read) * time.Second,
		ReadHeaderTimeout: time.Duration(s.cfg.Timeouts.Read) * time.Second,
		WriteTimeout:      time.Duration(s.cfg.Timeouts.Write) * time.Second,
		IdleTimeout:       time.Duration(s.cfg.Timeouts.Idle) * time.Second,
	}

	go func() {
		var err error
		if s.cfg.TLS.Enabled {
			s.logger.Info("API server starting with TLS",
				"address", s.server.Addr,
				"cert", s.cfg.TLS.CertFile,
			)
			err = s.server.ListenAndServeTLS(s.cfg.TLS.CertFile, s.cfg.TLS.KeyFile)
		} else {
			s.logger.Info("API server starting", "address", s.server.Addr)
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
// It cancels running lifecycle commands, waits up to 10 seconds for in-flight
// requests to complete, then forcefully closes remaining connections.
//
// Returns:
//   - error: If shutdown encounters an error
func (s *Server) Close() error {
	s.cancel()
	defer s.wg.Wait()

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

// HealthCheck verifies the API server is running.
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
