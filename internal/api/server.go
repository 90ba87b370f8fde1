package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/nerrad567/meshsim/internal/audit"
	"github.com/nerrad567/meshsim/internal/device"
	"github.com/nerrad567/meshsim/internal/infrastructure/config"
	"github.com/nerrad567/meshsim/internal/infrastructure/database"
	"github.com/nerrad567/meshsim/internal/infrastructure/logging"
	"github.com/nerrad567/meshsim/internal/mesh"
)

// gracefulShutdownTimeout is the maximum time to wait for in-flight requests
// to complete during shutdown.
const gracefulShutdownTimeout = 10 * time.Second

// HistoryReader reads recorded device status snapshots.
// *device.SQLiteStatusHistoryRepository implements it.
type HistoryReader interface {
	GetHistory(ctx context.Context, deviceID int, limit int) ([]device.StatusHistoryEntry, error)
}

// SchemaReporter reports the database schema version. *database.DB implements it.
type SchemaReporter interface {
	SchemaStatus(ctx context.Context) (database.SchemaStatus, error)
}

// Deps holds the dependencies required by the API server.
type Deps struct {
	Config       config.APIConfig
	WS           config.WebSocketConfig
	Logger       *logging.Logger
	Network      *mesh.Network
	History      HistoryReader    // optional: history endpoint returns 503 without it
	AuditRepo    audit.Repository // optional: audit endpoint returns 503 without it
	Schema       SchemaReporter   // optional: adds schema status to /health
	ExternalHub  *Hub             // If set, the server uses this hub instead of creating its own
	JWTSecret    string           // optional: guards the control routes when set
	SimulationID string
	Version      string
}

// Server is the HTTP diagnostic API for a running simulation.
//
// It manages the HTTP listener, routes, middleware and the WebSocket hub.
// The server is created with New() and started with Start().
type Server struct {
	cfg          config.APIConfig
	wsCfg        config.WebSocketConfig
	logger       *logging.Logger
	network      *mesh.Network
	registry     *device.Registry
	history      HistoryReader
	auditRepo    audit.Repository
	schema       SchemaReporter
	simulationID string
	jwtSecret    string
	version      string
	server       *http.Server
	hub          *Hub
	externalHub  bool               // true if hub was injected externally
	cancel       context.CancelFunc // cancels the hub on Close()
}

// New creates a new API server with the given dependencies.
//
// The server is not started until Start() is called.
func New(deps Deps) (*Server, error) {
	if deps.Logger == nil {
		return nil, fmt.Errorf("logger is required")
	}
	if deps.Network == nil {
		return nil, fmt.Errorf("mesh network is required")
	}

	s := &Server{
		cfg:          deps.Config,
		wsCfg:        deps.WS,
		logger:       deps.Logger,
		network:      deps.Network,
		registry:     deps.Network.Registry(),
		history:      deps.History,
		auditRepo:    deps.AuditRepo,
		schema:       deps.Schema,
		simulationID: deps.SimulationID,
		jwtSecret:    deps.JWTSecret,
		version:      deps.Version,
	}

	// The hub is usually created up front so it can be registered as a mesh
	// observer before devices start talking.
	if deps.ExternalHub != nil {
		s.hub = deps.ExternalHub
		s.externalHub = true
	}

	return s, nil
}

// Start begins listening for HTTP connections.
//
// It sets up the router, starts the WebSocket hub if the server owns it,
// and launches the HTTP listener in a background goroutine. The server can
// be stopped with Close().
func (s *Server) Start(ctx context.Context) error {
	var srvCtx context.Context
	srvCtx, s.cancel = context.WithCancel(ctx)

	if s.hub == nil {
		s.hub = NewHub(s.wsCfg, s.logger)
		s.network.AddObserver(s.hub.Observe)
	}
	if !s.externalHub {
		go s.hub.Run(srvCtx)
	}

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

// HealthCheck verifies the API server is running.
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
