package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/nerrad567/meshsim/internal/device"
	"github.com/nerrad567/meshsim/internal/execution"
	"github.com/nerrad567/meshsim/internal/topology"
)

// Transport names accepted by simulation.transport.
const (
	TransportMQTT     = "mqtt"
	TransportLoopback = "loopback"
)

// Config is the root configuration structure for meshsim.
// All configuration is loaded from YAML and can be overridden by environment variables.
type Config struct {
	Simulation SimulationConfig `yaml:"simulation"`
	Database   DatabaseConfig   `yaml:"database"`
	MQTT       MQTTConfig       `yaml:"mqtt"`
	API        APIConfig        `yaml:"api"`
	Security   SecurityConfig   `yaml:"security"`
	WebSocket  WebSocketConfig  `yaml:"websocket"`
	InfluxDB   InfluxDBConfig   `yaml:"influxdb"`
	Logging    LoggingConfig    `yaml:"logging"`
}

// SimulationConfig describes the device mesh to build.
type SimulationConfig struct {
	ID string `yaml:"id"`

	// Topology is one of line, ring, fully_connected.
	Topology string `yaml:"topology"`

	// Transport is mqtt or loopback. Loopback keeps all traffic in process.
	Transport string `yaml:"transport"`

	// Program and Field select the built-in execution adapter used by
	// lightweight devices.
	Program string `yaml:"program"`
	Field   string `yaml:"field"`

	// ExecutionInterval is the period between execution rounds. Zero disables
	// periodic rounds; they can still be triggered through the API.
	ExecutionInterval time.Duration `yaml:"execution_interval"`

	// ExecutionConcurrency bounds how many devices execute at once in a round.
	ExecutionConcurrency int `yaml:"execution_concurrency"`

	// HistoryRetention is how long status history is kept. Zero keeps everything.
	HistoryRetention time.Duration `yaml:"history_retention"`

	// Devices are registered in order; the order defines the topology.
	Devices []DeviceConfig `yaml:"devices"`
}

// DeviceConfig describes one simulated device.
type DeviceConfig struct {
	Address string `yaml:"address"`
	Mode    string `yaml:"mode"`
}

// DatabaseConfig contains SQLite database settings.
type DatabaseConfig struct {
	Path        string `yaml:"path"`
	WALMode     bool   `yaml:"wal_mode"`
	BusyTimeout int    `yaml:"busy_timeout"`
}

// MQTTConfig contains MQTT broker connection settings.
type MQTTConfig struct {
	Broker    MQTTBrokerConfig    `yaml:"broker"`
	Auth      MQTTAuthConfig      `yaml:"auth"`
	QoS       int                 `yaml:"qos"`
	Reconnect MQTTReconnectConfig `yaml:"reconnect"`
}

// MQTTBrokerConfig contains MQTT broker connection details.
type MQTTBrokerConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	TLS      bool   `yaml:"tls"`
	ClientID string `yaml:"client_id"`
}

// MQTTAuthConfig contains MQTT authentication credentials.
type MQTTAuthConfig struct {
	Username string `yaml:"username"`
	Password string `yaml:"password"`
}

// MQTTReconnectConfig contains MQTT reconnection settings in seconds.
type MQTTReconnectConfig struct {
	InitialDelay int `yaml:"initial_delay"`
	MaxDelay     int `yaml:"max_delay"`
}

// APIConfig contains HTTP API server settings.
type APIConfig struct {
	Enabled  bool             `yaml:"enabled"`
	Host     string           `yaml:"host"`
	Port     int              `yaml:"port"`
	Timeouts APITimeoutConfig `yaml:"timeouts"`
	CORS     CORSConfig       `yaml:"cors"`
}

// APITimeoutConfig contains HTTP timeout settings in seconds.
type APITimeoutConfig struct {
	Read  int `yaml:"read"`
	Write int `yaml:"write"`
	Idle  int `yaml:"idle"`
}

// CORSConfig contains Cross-Origin Resource Sharing settings.
type CORSConfig struct {
	AllowedOrigins []string `yaml:"allowed_origins"`
}

// SecurityConfig contains API security settings.
type SecurityConfig struct {
	JWT JWTConfig `yaml:"jwt"`
}

// JWTConfig contains JWT token settings.
// An empty Secret leaves the control routes unauthenticated.
type JWTConfig struct {
	Secret         string `yaml:"secret"`
	AccessTokenTTL int    `yaml:"access_token_ttl"` // minutes
}

// minJWTSecretLength is the shortest accepted HS256 secret.
const minJWTSecretLength = 32

// WebSocketConfig contains WebSocket server settings.
type WebSocketConfig struct {
	Path           string `yaml:"path"`
	MaxMessageSize int    `yaml:"max_message_size"`
	PingInterval   int    `yaml:"ping_interval"`
	PongTimeout    int    `yaml:"pong_timeout"`
}

// InfluxDBConfig contains InfluxDB connection settings.
type InfluxDBConfig struct {
	Enabled       bool   `yaml:"enabled"`
	URL           string `yaml:"url"`
	Token         string `yaml:"token"`
	Org           string `yaml:"org"`
	Bucket        string `yaml:"bucket"`
	BatchSize     int    `yaml:"batch_size"`
	FlushInterval int    `yaml:"flush_interval"`
}

// LoggingConfig contains logging settings.
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
	Output string `yaml:"output"`
}

// Load reads configuration from a YAML file and applies environment variable overrides.
//
// The configuration loading order is:
//  1. Default values (hardcoded)
//  2. YAML file values (override defaults)
//  3. Environment variables (override file values)
//
// Environment variables follow the pattern: MESHSIM_SECTION_KEY
// For example: MESHSIM_DATABASE_PATH, MESHSIM_SIMULATION_TOPOLOGY
func Load(path string) (*Config, error) {
	cfg := defaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config file: %w", err)
	}

	applyEnvOverrides(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	return cfg, nil
}

// defaultConfig returns a Config with sensible defaults.
func defaultConfig() *Config {
	return &Config{
		Simulation: SimulationConfig{
			ID:                   "meshsim",
			Topology:             "ring",
			Transport:            TransportLoopback,
			Program:              string(execution.ProgramAverage),
			Field:                "value",
			ExecutionInterval:    5 * time.Second,
			ExecutionConcurrency: 8,
			HistoryRetention:     7 * 24 * time.Hour,
		},
		Database: DatabaseConfig{
			Path:        "./data/meshsim.db",
			WALMode:     true,
			BusyTimeout: 5,
		},
		MQTT: MQTTConfig{
			Broker: MQTTBrokerConfig{
				Host:     "localhost",
				Port:     1883,
				ClientID: "meshsim",
			},
			QoS: 1,
			Reconnect: MQTTReconnectConfig{
				InitialDelay: 1,
				MaxDelay:     60,
			},
		},
		API: APIConfig{
			Enabled: true,
			Host:    "0.0.0.0",
			Port:    8080,
			Timeouts: APITimeoutConfig{
				Read:  30,
				Write: 30,
				Idle:  60,
			},
		},
		Security: SecurityConfig{
			JWT: JWTConfig{
				AccessTokenTTL: 60,
			},
		},
		WebSocket: WebSocketConfig{
			Path:           "/ws",
			MaxMessageSize: 8192,
			PingInterval:   30,
			PongTimeout:    10,
		},
		InfluxDB: InfluxDBConfig{
			BatchSize:     100,
			FlushInterval: 10,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
			Output: "stdout",
		},
	}
}

// applyEnvOverrides applies environment variable overrides to the configuration.
// Environment variables follow the pattern: MESHSIM_SECTION_KEY
func applyEnvOverrides(cfg *Config) {
	// Simulation
	if v := os.Getenv("MESHSIM_SIMULATION_TOPOLOGY"); v != "" {
		cfg.Simulation.Topology = v
	}
	if v := os.Getenv("MESHSIM_SIMULATION_TRANSPORT"); v != "" {
		cfg.Simulation.Transport = v
	}
	if v := os.Getenv("MESHSIM_SIMULATION_EXECUTION_INTERVAL"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			cfg.Simulation.ExecutionInterval = d
		}
	}

	// Database
	if v := os.Getenv("MESHSIM_DATABASE_PATH"); v != "" {
		cfg.Database.Path = v
	}

	// MQTT
	if v := os.Getenv("MESHSIM_MQTT_HOST"); v != "" {
		cfg.MQTT.Broker.Host = v
	}
	if v := os.Getenv("MESHSIM_MQTT_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			cfg.MQTT.Broker.Port = port
		}
	}
	if v := os.Getenv("MESHSIM_MQTT_USERNAME"); v != "" {
		cfg.MQTT.Auth.Username = v
	}
	if v := os.Getenv("MESHSIM_MQTT_PASSWORD"); v != "" {
		cfg.MQTT.Auth.Password = v
	}

	// API
	if v := os.Getenv("MESHSIM_API_HOST"); v != "" {
		cfg.API.Host = v
	}

	// Security
	if v := os.Getenv("MESHSIM_JWT_SECRET"); v != "" {
		cfg.Security.JWT.Secret = v
	}

	// InfluxDB
	if v := os.Getenv("MESHSIM_INFLUXDB_TOKEN"); v != "" {
		cfg.InfluxDB.Token = v
	}
}

// Validate checks the configuration for errors.
// Every problem found is reported, not just the first.
func (c *Config) Validate() error {
	var errs []string

	// Simulation validation
	if c.Simulation.ID == "" {
		errs = append(errs, "simulation.id is required")
	}
	if _, err := topology.ParseKind(c.Simulation.Topology); err != nil {
		errs = append(errs, "simulation.topology must be line, ring or fully_connected")
	}
	switch c.Simulation.Transport {
	case TransportMQTT, TransportLoopback:
	default:
		errs = append(errs, "simulation.transport must be mqtt or loopback")
	}
	if _, err := execution.ParseProgram(c.Simulation.Program); err != nil {
		errs = append(errs, "simulation.program must be count, sum, average, min or max")
	}
	if c.Simulation.ExecutionInterval < 0 {
		errs = append(errs, "simulation.execution_interval must not be negative")
	}
	if c.Simulation.ExecutionConcurrency < 1 {
		errs = append(errs, "simulation.execution_concurrency must be at least 1")
	}
	for i, d := range c.Simulation.Devices {
		if _, err := device.ParseMode(d.Mode); err != nil {
			errs = append(errs, fmt.Sprintf("simulation.devices[%d].mode must be remote, lightweight or stub", i))
		}
	}

	// Database validation
	if c.Database.Path == "" {
		errs = append(errs, "database.path is required")
	}

	// MQTT validation
	if c.MQTT.QoS < 0 || c.MQTT.QoS > 2 {
		errs = append(errs, "mqtt.qos must be 0, 1, or 2")
	}
	if c.Simulation.Transport == TransportMQTT && c.MQTT.Broker.Host == "" {
		errs = append(errs, "mqtt.broker.host is required for the mqtt transport")
	}

	// API validation
	if c.API.Enabled && (c.API.Port < 1 || c.API.Port > 65535) {
		errs = append(errs, "api.port must be between 1 and 65535")
	}

	// Security validation
	if c.Security.JWT.Secret != "" && len(c.Security.JWT.Secret) < minJWTSecretLength {
		errs = append(errs, fmt.Sprintf("security.jwt.secret must be at least %d characters", minJWTSecretLength))
	}
	if c.Security.JWT.AccessTokenTTL < 1 {
		errs = append(errs, "security.jwt.access_token_ttl must be at least 1 minute")
	}

	// InfluxDB validation
	if c.InfluxDB.Enabled && c.InfluxDB.URL == "" {
		errs = append(errs, "influxdb.url is required when influxdb is enabled")
	}

	if len(errs) > 0 {
		return fmt.Errorf("configuration errors: %s", strings.Join(errs, "; "))
	}

	return nil
}

// TopologyKind returns the parsed simulation topology.
// Call only on a validated Config.
func (c *Config) TopologyKind() topology.Kind {
	kind, _ := topology.ParseKind(c.Simulation.Topology) //nolint:errcheck // validated
	return kind
}

// GetReadTimeout returns the API read timeout as a Duration.
func (c *Config) GetReadTimeout() time.Duration {
	return time.Duration(c.API.Timeouts.Read) * time.Second
}

// GetWriteTimeout returns the API write timeout as a Duration.
func (c *Config) GetWriteTimeout() time.Duration {
	return time.Duration(c.API.Timeouts.Write) * time.Second
}

// GetAccessTokenTTL returns the JWT access token lifetime as a Duration.
func (c *Config) GetAccessTokenTTL() time.Duration {
	return time.Duration(c.Security.JWT.AccessTokenTTL) * time.Minute
}

// GetIdleTimeout returns the API idle timeout as a Duration.
func (c *Config) GetIdleTimeout() time.Duration {
	return time.Duration(c.API.Timeouts.Idle) * time.Second
}
