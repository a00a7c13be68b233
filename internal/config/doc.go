// Package config provides layered configuration for the bridge.
//
// Values come from three layers, later layers winning: built-in defaults,
// an optional YAML file (written by the desktop installer), and environment
// variables.
//
// Configuration Sections:
//   - Server: control API settings (loopback host, port)
//   - Daemon: robot daemon connection, transport mode, sidecar command
//   - Startup: startup sequence timeouts and thresholds
//   - Catalog: app catalog source settings
//   - Logging: log level and output format
//   - RateLimit: per-IP rate limiting configuration
//
// Example Usage:
//
//	cfg, err := config.Load("/etc/reachy-mini/bridge.yaml")
//
// Environment Variables:
//   - HOST, PORT
//   - DAEMON_URL, DAEMON_STREAM_URL, TRANSPORT_MODE, DAEMON_CMD
//   - STARTUP_POLL_INTERVAL, STARTUP_DAEMON_TIMEOUT, STARTUP_MOVEMENT_TIMEOUT
//   - STARTUP_SYNC_TIMEOUT, STARTUP_SYNC_MIN_FRAMES, STARTUP_MOVEMENT_TOLERANCE
//   - CATALOG_OFFICIAL_URL, LOG_LEVEL, LOG_DEV
package config
