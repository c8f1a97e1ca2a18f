package cfg

import (
	"flag"
	"fmt"
	"hash/fnv"
	"os"

	"github.com/BurntSushi/toml"
	"github.com/denisbrodbeck/machineid"
	"github.com/rs/zerolog/log"
)

// ClusterConfiguration controls the managed cluster's identity and
// seed-host bootstrap.
type ClusterConfiguration struct {
	ClusterName   string `toml:"cluster_name"`
	SeedSize      int    `toml:"seed_size"`      // Number of seed hosts to bootstrap (K)
	ServiceDomain string `toml:"service_domain"` // Headless service domain for seed DNS names
}

// BackendConfiguration controls access to the cluster's management API
type BackendConfiguration struct {
	Scheme           string `toml:"scheme"`
	Host             string `toml:"host"`
	Port             int    `toml:"port"`
	RequestTimeoutMS int    `toml:"request_timeout_ms"`
}

// OrchestratorConfiguration controls the membership event bus
type OrchestratorConfiguration struct {
	NATSUrl          string `toml:"nats_url"`
	TopologySubject  string `toml:"topology_subject"` // Defaults to <app_name>.topology
	HealthTickSecond int    `toml:"health_tick_seconds"`
}

// StateConfiguration controls the persisted desired-state store
type StateConfiguration struct {
	PersistSeeds bool `toml:"persist_seeds"`
}

// AdminConfiguration for the status/health HTTP API
type AdminConfiguration struct {
	Enabled   bool   `toml:"enabled"`
	Address   string `toml:"address"`
	Port      int    `toml:"port"`
	APISecret string `toml:"api_secret"`
}

// LoggingConfiguration controls logging behavior
type LoggingConfiguration struct {
	Verbose bool   `toml:"verbose"`
	Format  string `toml:"format"` // "console" or "json"
}

// PrometheusConfiguration for metrics
type PrometheusConfiguration struct {
	Enabled bool   `toml:"enabled"`
	Address string `toml:"address"`
	Port    int    `toml:"port"`
}

// Configuration is the main configuration structure
type Configuration struct {
	AppName     string `toml:"app_name"`
	UnitName    string `toml:"unit_name"`    // This replica's identity (auto-generated if empty)
	UnitOrdinal int    `toml:"unit_ordinal"` // This replica's ordinal within the peer group
	DataDir     string `toml:"data_dir"`

	Cluster      ClusterConfiguration      `toml:"cluster"`
	Backend      BackendConfiguration      `toml:"backend"`
	Orchestrator OrchestratorConfiguration `toml:"orchestrator"`
	State        StateConfiguration        `toml:"state"`
	Admin        AdminConfiguration        `toml:"admin"`
	Logging      LoggingConfiguration      `toml:"logging"`
	Prometheus   PrometheusConfiguration   `toml:"prometheus"`
}

// Command line flags
var (
	ConfigPathFlag  = flag.String("config", "config.toml", "Path to configuration file")
	UnitNameFlag    = flag.String("unit-name", "", "Unit name (overrides config)")
	BackendPortFlag = flag.Int("backend-port", 0, "Backend API port (overrides config)")
	AdminPortFlag   = flag.Int("admin-port", 0, "Admin API port (overrides config)")
)

// Default configuration
var Config = &Configuration{
	AppName:     "elasticsearch",
	UnitName:    "", // Auto-generate
	UnitOrdinal: 0,
	DataDir:     "./operator-data",

	Cluster: ClusterConfiguration{
		ClusterName:   "elasticsearch",
		SeedSize:      3,
		ServiceDomain: "elasticsearch-endpoints.default.svc.cluster.local",
	},

	Backend: BackendConfiguration{
		Scheme:           "http",
		Host:             "localhost",
		Port:             9200,
		RequestTimeoutMS: 3000,
	},

	Orchestrator: OrchestratorConfiguration{
		NATSUrl:          "",
		TopologySubject:  "",
		HealthTickSecond: 30,
	},

	State: StateConfiguration{
		PersistSeeds: false,
	},

	Admin: AdminConfiguration{
		Enabled: true,
		Address: "0.0.0.0",
		Port:    8080,
	},

	Logging: LoggingConfiguration{
		Verbose: false,
		Format:  "console",
	},

	Prometheus: PrometheusConfiguration{
		Enabled: true,
		Address: "0.0.0.0",
		Port:    9090,
	},
}

// Load loads configuration from file and applies CLI overrides
func Load(configPath string) error {
	// Load from file if it exists
	if configPath != "" {
		if _, err := os.Stat(configPath); err == nil {
			log.Info().Str("path", configPath).Msg("Loading configuration")
			if _, err := toml.DecodeFile(configPath, Config); err != nil {
				return fmt.Errorf("failed to decode config: %w", err)
			}
		} else {
			log.Warn().Str("path", configPath).Msg("Config file not found, using defaults")
		}
	}

	// Apply CLI overrides
	if *UnitNameFlag != "" {
		Config.UnitName = *UnitNameFlag
	}
	if *BackendPortFlag != 0 {
		Config.Backend.Port = *BackendPortFlag
	}
	if *AdminPortFlag != 0 {
		Config.Admin.Port = *AdminPortFlag
	}

	// Auto-generate unit name if not set
	if Config.UnitName == "" {
		name, err := generateUnitName()
		if err != nil {
			return fmt.Errorf("failed to generate unit name: %w", err)
		}
		Config.UnitName = name
		log.Info().Str("unit_name", Config.UnitName).Msg("Auto-generated unit name")
	}

	// Default the topology subject to <app_name>.topology
	if Config.Orchestrator.TopologySubject == "" {
		Config.Orchestrator.TopologySubject = fmt.Sprintf("%s.topology", Config.AppName)
	}

	// Ensure data directory exists
	if err := os.MkdirAll(Config.DataDir, 0755); err != nil {
		return fmt.Errorf("failed to create data directory: %w", err)
	}

	return nil
}

// generateUnitName creates a stable unit name based on machine ID
func generateUnitName() (string, error) {
	id, err := machineid.ProtectedID("elasticsearch-operator")
	if err != nil {
		return "", err
	}

	h := fnv.New64a()
	h.Write([]byte(id))
	return fmt.Sprintf("%s-%x", Config.AppName, h.Sum64()), nil
}

// Validate checks configuration for errors
func Validate() error {
	if Config.AppName == "" {
		return fmt.Errorf("app name must not be empty")
	}

	if Config.Cluster.SeedSize < 1 {
		return fmt.Errorf("seed size must be >= 1, got %d", Config.Cluster.SeedSize)
	}

	if Config.Cluster.ServiceDomain == "" {
		return fmt.Errorf("service domain must not be empty")
	}

	if Config.UnitOrdinal < 0 {
		return fmt.Errorf("unit ordinal must be >= 0, got %d", Config.UnitOrdinal)
	}

	if Config.Backend.Scheme != "http" && Config.Backend.Scheme != "https" {
		return fmt.Errorf("invalid backend scheme: %s", Config.Backend.Scheme)
	}

	if Config.Backend.Port < 1 || Config.Backend.Port > 65535 {
		return fmt.Errorf("invalid backend port: %d", Config.Backend.Port)
	}

	if Config.Backend.RequestTimeoutMS < 1 {
		return fmt.Errorf("backend request timeout must be >= 1ms")
	}

	if Config.Orchestrator.HealthTickSecond < 1 {
		return fmt.Errorf("health tick interval must be >= 1 second")
	}

	if Config.Admin.Enabled && (Config.Admin.Port < 1 || Config.Admin.Port > 65535) {
		return fmt.Errorf("invalid admin port: %d", Config.Admin.Port)
	}

	if Config.Prometheus.Enabled && (Config.Prometheus.Port < 1 || Config.Prometheus.Port > 65535) {
		return fmt.Errorf("invalid prometheus port: %d", Config.Prometheus.Port)
	}

	if Config.Logging.Format != "console" && Config.Logging.Format != "json" {
		return fmt.Errorf("invalid logging format: %s", Config.Logging.Format)
	}

	return nil
}

// BackendBaseURL returns the base URL for the cluster management API
func BackendBaseURL() string {
	return fmt.Sprintf("%s://%s:%d", Config.Backend.Scheme, Config.Backend.Host, Config.Backend.Port)
}

// IsAdminAuthEnabled returns true when admin endpoints require a secret
func IsAdminAuthEnabled() bool {
	return Config.Admin.APISecret != ""
}

// GetAdminSecret returns the configured admin API secret
func GetAdminSecret() string {
	return Config.Admin.APISecret
}
