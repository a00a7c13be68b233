package config

import (
	"fmt"
	"os"
	"time"

	"github.com/goccy/go-yaml"
	"github.com/kelseyhightower/envconfig"
)

// Transport modes accepted by Daemon.Transport.
const (
	TransportUSB        = "usb"
	TransportWiFi       = "wifi"
	TransportSimulation = "simulation"
)

// Config holds all bridge configuration.
type Config struct {
	Server    ServerConfig    `yaml:"server"`
	Daemon    DaemonConfig    `yaml:"daemon"`
	Startup   StartupConfig   `yaml:"startup"`
	Catalog   CatalogConfig   `yaml:"catalog"`
	Logging   LogConfig       `yaml:"logging"`
	RateLimit RateLimitConfig `yaml:"rate_limit"`
}

// ServerConfig holds the control API server configuration.
// The bridge serves the desktop UI only, so it binds loopback by default.
type ServerConfig struct {
	Host string `yaml:"host" envconfig:"HOST"`
	Port string `yaml:"port" envconfig:"PORT"`
}

// DaemonConfig holds robot daemon connection and process settings.
type DaemonConfig struct {
	BaseURL        string        `yaml:"base_url" envconfig:"DAEMON_URL"`
	StreamURL      string        `yaml:"stream_url" envconfig:"DAEMON_STREAM_URL"`
	Transport      string        `yaml:"transport" envconfig:"TRANSPORT_MODE"`
	Command        string        `yaml:"command" envconfig:"DAEMON_CMD"`
	RequestTimeout time.Duration `yaml:"request_timeout" envconfig:"DAEMON_REQUEST_TIMEOUT"`
	LogLines       int           `yaml:"log_lines" envconfig:"DAEMON_LOG_LINES"`
}

// StartupConfig holds the startup sequence tuning knobs.
type StartupConfig struct {
	PollInterval      time.Duration `yaml:"poll_interval" envconfig:"STARTUP_POLL_INTERVAL"`
	DaemonTimeout     time.Duration `yaml:"daemon_timeout" envconfig:"STARTUP_DAEMON_TIMEOUT"`
	MovementTimeout   time.Duration `yaml:"movement_timeout" envconfig:"STARTUP_MOVEMENT_TIMEOUT"`
	SyncTimeout       time.Duration `yaml:"sync_timeout" envconfig:"STARTUP_SYNC_TIMEOUT"`
	SyncMinFrames     uint64        `yaml:"sync_min_frames" envconfig:"STARTUP_SYNC_MIN_FRAMES"`
	MovementTolerance float64       `yaml:"movement_tolerance" envconfig:"STARTUP_MOVEMENT_TOLERANCE"`
	MovementMinReads  int           `yaml:"movement_min_reads" envconfig:"STARTUP_MOVEMENT_MIN_READS"`
	LoadingDelay      time.Duration `yaml:"loading_delay" envconfig:"STARTUP_LOADING_DELAY"`
}

// CatalogConfig holds app catalog source settings.
type CatalogConfig struct {
	OfficialIndexURL string        `yaml:"official_index_url" envconfig:"CATALOG_OFFICIAL_URL"`
	RequestTimeout   time.Duration `yaml:"request_timeout" envconfig:"CATALOG_REQUEST_TIMEOUT"`
}

// LogConfig holds logging configuration.
type LogConfig struct {
	Level       string `yaml:"level" envconfig:"LOG_LEVEL"`
	Development bool   `yaml:"development" envconfig:"LOG_DEV"`
}

// RateLimitConfig holds rate limiting configuration.
type RateLimitConfig struct {
	RequestsPerSecond int  `yaml:"requests_per_second" envconfig:"RATE_LIMIT_RPS"`
	Burst             int  `yaml:"burst" envconfig:"RATE_LIMIT_BURST"`
	Enabled           bool `yaml:"enabled" envconfig:"RATE_LIMIT_ENABLED"`
}

// Load builds configuration in three layers: defaults, then the optional
// YAML file, then environment variables. Later layers win.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read config file: %w", err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config file %s: %w", path, err)
		}
	}

	if err := envconfig.Process("", cfg); err != nil {
		return nil, fmt.Errorf("process environment: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// LoadOrDefault loads configuration or returns defaults when loading fails.
func LoadOrDefault(path string) *Config {
	cfg, err := Load(path)
	if err != nil {
		return Default()
	}
	return cfg
}

// Default returns default configuration.
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Host: "127.0.0.1",
			Port: "8400",
		},
		Daemon: DaemonConfig{
			BaseURL:        "http://localhost:8000",
			StreamURL:      "ws://localhost:8000/api/state/stream",
			Transport:      TransportUSB,
			Command:        "reachy-mini-daemon",
			RequestTimeout: 5 * time.Second,
			LogLines:       500,
		},
		Startup: StartupConfig{
			PollInterval:      time.Second,
			DaemonTimeout:     30 * time.Second,
			MovementTimeout:   20 * time.Second,
			SyncTimeout:       8 * time.Second,
			SyncMinFrames:     3,
			MovementTolerance: 0.001,
			MovementMinReads:  2,
			LoadingDelay:      1500 * time.Millisecond,
		},
		Catalog: CatalogConfig{
			OfficialIndexURL: "https://pollen-robotics.github.io/reachy-mini-apps/index.json",
			RequestTimeout:   10 * time.Second,
		},
		Logging: LogConfig{
			Level:       "info",
			Development: false,
		},
		RateLimit: RateLimitConfig{
			RequestsPerSecond: 100,
			Burst:             200,
			Enabled:           false,
		},
	}
}

// Validate rejects values the rest of the bridge cannot work with.
func (c *Config) Validate() error {
	switch c.Daemon.Transport {
	case TransportUSB, TransportWiFi, TransportSimulation:
	default:
		return fmt.Errorf("unknown transport mode %q", c.Daemon.Transport)
	}
	if c.Startup.PollInterval <= 0 {
		return fmt.Errorf("poll interval must be positive, got %s", c.Startup.PollInterval)
	}
	if c.Startup.MovementMinReads < 1 {
		return fmt.Errorf("movement min reads must be at least 1, got %d", c.Startup.MovementMinReads)
	}
	return nil
}

// LocalDaemon reports whether the bridge owns the daemon process.
// In wifi mode the daemon runs on the robot and cannot be respawned here.
func (c *DaemonConfig) LocalDaemon() bool {
	return c.Transport != TransportWiFi
}
