// meshsim - device mesh simulator
//
// meshsim registers a set of simulated devices, wires them into a line,
// ring or fully connected neighbour graph, and relays traffic between the
// mesh and the physical devices behind each simulated one (over MQTT, or an
// in-process loopback when no broker is available).
//
// Lightweight devices run a small aggregate program locally; remote devices
// delegate execution to their physical counterpart. Either kind can be
// switched at runtime through the HTTP API.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	_ "github.com/nerrad567/meshsim/migrations"

	"github.com/nerrad567/meshsim/internal/api"
	"github.com/nerrad567/meshsim/internal/audit"
	"github.com/nerrad567/meshsim/internal/device"
	"github.com/nerrad567/meshsim/internal/endpoint"
	"github.com/nerrad567/meshsim/internal/execution"
	"github.com/nerrad567/meshsim/internal/infrastructure/config"
	"github.com/nerrad567/meshsim/internal/infrastructure/database"
	"github.com/nerrad567/meshsim/internal/infrastructure/influxdb"
	"github.com/nerrad567/meshsim/internal/infrastructure/logging"
	"github.com/nerrad567/meshsim/internal/infrastructure/mqtt"
	"github.com/nerrad567/meshsim/internal/mesh"
)

// Version information - set at build time via ldflags
// Example: go build -ldflags "-X main.version=1.0.0 -X main.commit=abc123"
var (
	version = "dev"     // Semantic version (e.g., "1.0.0")
	commit  = "unknown" // Git commit hash
	date    = "unknown" // Build date
)

// Default configuration file path
const defaultConfigPath = "configs/config.yaml"

// maxPruneInterval caps how long expired history can linger.
const maxPruneInterval = time.Hour

func main() {
	// Cancel on Ctrl+C or SIGTERM so deferred cleanup runs.
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if len(os.Args) > 1 && os.Args[1] == "token" {
		if err := runToken(os.Args[2:], os.Stdout); err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
		return
	}

	if err := run(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// run is the application logic, separated from main for testability.
// It returns nil on a clean shutdown.
func run(ctx context.Context) error { //nolint:gocognit,gocyclo // startup sequence: one step per component
	// Use default logger until config is loaded
	log := logging.Default()
	log.Info("starting meshsim",
		"version", version,
		"commit", commit,
		"build_date", date,
	)

	configPath := getConfigPath()
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	log = logging.New(cfg.Logging, version).With("simulation", cfg.Simulation.ID)
	log.Info("configuration loaded",
		"path", configPath,
		"topology", cfg.Simulation.Topology,
		"transport", cfg.Simulation.Transport,
	)

	// Database
	db, err := database.Open(cfg.Database)
	if err != nil {
		return fmt.Errorf("opening database: %w", err)
	}
	defer func() {
		log.Info("closing database")
		if closeErr := db.Close(); closeErr != nil {
			log.Error("error closing database", "error", closeErr)
		}
	}()
	if migrateErr := db.Migrate(ctx); migrateErr != nil {
		return fmt.Errorf("running migrations: %w", migrateErr)
	}
	schema, err := db.SchemaStatus(ctx)
	if err != nil {
		return fmt.Errorf("reading schema status: %w", err)
	}
	log.Info("database ready", "path", cfg.Database.Path, "schema_version", schema.Version)

	history := device.NewSQLiteStatusHistoryRepository(db.DB)
	auditRepo := audit.NewSQLiteRepository(db.DB)

	// Transport
	var (
		transport  mesh.Transport
		mqttClient *mqtt.Client
		loopback   *endpoint.Loopback
	)
	switch cfg.Simulation.Transport {
	case config.TransportMQTT:
		mqttClient, err = mqtt.Connect(cfg.MQTT)
		if err != nil {
			return fmt.Errorf("connecting to MQTT: %w", err)
		}
		defer func() {
			log.Info("disconnecting from MQTT")
			if closeErr := mqttClient.Close(); closeErr != nil {
				log.Error("error closing MQTT", "error", closeErr)
			}
		}()
		mqttClient.SetLogger(log)
		mqttClient.SetOnConnect(func() {
			log.Info("MQTT reconnected")
		})
		mqttClient.SetOnDisconnect(func(err error) {
			log.Warn("MQTT disconnected", "error", err)
		})
		log.Info("MQTT connected",
			"broker", fmt.Sprintf("%s:%d", cfg.MQTT.Broker.Host, cfg.MQTT.Broker.Port),
			"client_id", mqttClient.ClientID(),
		)
		transport = endpoint.NewMQTTTransport(mqttClient, cfg.Simulation.ID, mqttClient.QoS())
	default:
		loopback = endpoint.NewLoopback()
		loopback.SetResponder(endpoint.CounterResponder())
		transport = loopback
		log.Info("using loopback transport")
	}

	// InfluxDB (optional)
	var influxClient *influxdb.Client
	if cfg.InfluxDB.Enabled {
		influxClient, err = influxdb.Connect(cfg.InfluxDB)
		if err != nil {
			return fmt.Errorf("connecting to InfluxDB: %w", err)
		}
		defer func() {
			log.Info("closing InfluxDB connection")
			if closeErr := influxClient.Close(); closeErr != nil {
				log.Error("error closing InfluxDB", "error", closeErr)
			}
		}()
		influxClient.SetOnError(func(err error) {
			log.Error("InfluxDB write error", "error", err)
		})
		log.Info("InfluxDB connected",
			"url", cfg.InfluxDB.URL,
			"org", cfg.InfluxDB.Org,
			"bucket", cfg.InfluxDB.Bucket,
		)
	} else {
		log.Info("InfluxDB disabled")
	}

	// Mesh
	registry := device.NewRegistry()
	registry.SetLogger(log)

	program, err := execution.ParseProgram(cfg.Simulation.Program)
	if err != nil {
		return fmt.Errorf("execution program: %w", err)
	}

	network, err := mesh.New(registry, mesh.Options{
		Transport:   transport,
		Adapter:     execution.Builder(registry, program, cfg.Simulation.Field),
		History:     history,
		Concurrency: cfg.Simulation.ExecutionConcurrency,
		Logger:      log,
	})
	if err != nil {
		return fmt.Errorf("creating mesh: %w", err)
	}

	// Observers are registered before any device exists so finalize and
	// every later replace are seen by all of them.
	network.AddObserver(audit.NewRecorder(auditRepo, cfg.Simulation.ID, log).Observe)
	if influxClient != nil {
		network.AddObserver(telemetryObserver(influxClient, cfg.Simulation.ID, registry.GetStats))
	}
	if mqttClient != nil {
		network.AddObserver(eventPublisher(mqttClient, cfg.Simulation.ID, log))
	}
	var hub *api.Hub
	if cfg.API.Enabled {
		hub = api.NewHub(cfg.WebSocket, log)
		network.AddObserver(hub.Observe)
	}

	if err := buildMesh(network, cfg); err != nil {
		return err
	}
	log.Info("mesh finalized", "devices", registry.Count(), "edges", registry.GetStats().Edges)

	// Inbound traffic
	switch {
	case mqttClient != nil:
		listener := endpoint.NewListener(mqttClient, cfg.Simulation.ID, mqttClient.QoS(), network)
		listener.SetLogger(log)
		if err := listener.Start(); err != nil {
			return fmt.Errorf("starting MQTT listener: %w", err)
		}
		defer func() {
			if stopErr := listener.Stop(); stopErr != nil {
				log.Warn("error stopping MQTT listener", "error", stopErr)
			}
		}()
		log.Info("listening for device traffic", "topic", listener.Topic())
	case loopback != nil:
		loopback.SetTarget(network)
	}

	if err := healthCheck(ctx, db, mqttClient, influxClient); err != nil {
		return fmt.Errorf("health check failed: %w", err)
	}
	log.Info("all health checks passed")

	// API server (optional)
	if cfg.API.Enabled {
		server, err := api.New(api.Deps{
			Config:       cfg.API,
			WS:           cfg.WebSocket,
			Logger:       log,
			Network:      network,
			History:      history,
			AuditRepo:    auditRepo,
			Schema:       db,
			ExternalHub:  hub,
			JWTSecret:    cfg.Security.JWT.Secret,
			SimulationID: cfg.Simulation.ID,
			Version:      version,
		})
		if err != nil {
			return fmt.Errorf("creating API server: %w", err)
		}
		if err := server.Start(ctx); err != nil {
			return fmt.Errorf("starting API server: %w", err)
		}
		if cfg.Security.JWT.Secret == "" {
			log.Warn("security.jwt.secret not set: control routes are unauthenticated")
		}
		defer func() {
			if closeErr := server.Close(); closeErr != nil {
				log.Error("error closing API server", "error", closeErr)
			}
		}()
	}

	log.Info("initialisation complete, running until shutdown signal",
		"execution_interval", cfg.Simulation.ExecutionInterval,
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return network.Run(gctx, cfg.Simulation.ExecutionInterval)
	})
	if hub != nil {
		g.Go(func() error {
			hub.Run(gctx)
			return nil
		})
	}
	if cfg.Simulation.HistoryRetention > 0 {
		g.Go(func() error {
			pruneLoop(gctx, history, cfg.Simulation.HistoryRetention, log)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return fmt.Errorf("simulation: %w", err)
	}

	log.Info("shutdown signal received, cleaning up")
	network.Reset()

	log.Info("meshsim stopped")
	return nil
}

// getConfigPath returns the configuration file path.
// Uses MESHSIM_CONFIG environment variable if set, otherwise default.
func getConfigPath() string {
	if path := os.Getenv("MESHSIM_CONFIG"); path != "" {
		return path
	}
	return defaultConfigPath
}

// buildMesh registers the configured devices in order and finalizes the
// topology.
func buildMesh(network *mesh.Network, cfg *config.Config) error {
	for i, d := range cfg.Simulation.Devices {
		mode, err := device.ParseMode(d.Mode)
		if err != nil {
			return fmt.Errorf("device %d: %w", i, err)
		}
		if _, err := network.AddDevice(d.Address, mode); err != nil {
			return fmt.Errorf("adding device %d (%s): %w", i, d.Address, err)
		}
	}
	if err := network.Finalize(cfg.TopologyKind()); err != nil {
		return fmt.Errorf("finalizing topology: %w", err)
	}
	return nil
}

// healthCheck verifies all infrastructure connections are healthy.
// mqttClient and influxClient may be nil when not configured.
func healthCheck(ctx context.Context, db *database.DB, mqttClient *mqtt.Client, influxClient *influxdb.Client) error {
	if err := db.HealthCheck(ctx); err != nil {
		return fmt.Errorf("database: %w", err)
	}

	if mqttClient != nil {
		if err := mqttClient.HealthCheck(ctx); err != nil {
			return fmt.Errorf("mqtt: %w", err)
		}
	}

	if influxClient != nil {
		if err := influxClient.HealthCheck(ctx); err != nil {
			return fmt.Errorf("influxdb: %w", err)
		}
	}

	return nil
}

// historyPruner removes old status snapshots.
// *device.SQLiteStatusHistoryRepository implements it.
type historyPruner interface {
	PruneHistory(ctx context.Context, olderThan time.Duration) (int64, error)
}

// pruneLoop deletes history older than retention until ctx is cancelled.
func pruneLoop(ctx context.Context, repo historyPruner, retention time.Duration, log *logging.Logger) {
	interval := min(retention, maxPruneInterval)
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			removed, err := repo.PruneHistory(ctx, retention)
			if err != nil {
				log.Warn("pruning status history failed", "error", err)
				continue
			}
			if removed > 0 {
				log.Debug("pruned status history", "removed", removed)
			}
		}
	}
}
