package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

// Config represents the application configuration
type Config struct {
	Server   ServerConfig   `yaml:"server"`
	Database DatabaseConfig `yaml:"database"`
	Logging  LoggingConfig  `yaml:"logging"`
	Presence PresenceConfig `yaml:"presence"`
}

// ServerConfig represents HTTP server configuration
type ServerConfig struct {
	Host         string        `yaml:"host"`
	Port         int           `yaml:"port"`
	ReadTimeout  time.Duration `yaml:"read_timeout"`
	WriteTimeout time.Duration `yaml:"write_timeout"`
}

// DatabaseConfig represents the settings-persistence database configuration
type DatabaseConfig struct {
	Driver string `yaml:"driver"` // "sqlite" or "postgres"
	DSN    string `yaml:"dsn"`
	MaxOpenConns int `yaml:"max_open_conns"`
	MaxIdleConns int `yaml:"max_idle_conns"`
}

// LoggingConfig represents logging configuration
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// PresenceConfig tunes the presence subsystem's background behavior
type PresenceConfig struct {
	SweepInterval     time.Duration `yaml:"sweep_interval"`      // how often stale connections are collected
	IdleTimeout       time.Duration `yaml:"idle_timeout"`        // connection staleness threshold
	AutoAwayInterval  time.Duration `yaml:"auto_away_interval"`  // how often auto-away is evaluated
	ReconcileInterval time.Duration `yaml:"reconcile_interval"`  // connection-count drift check period
	SendBuffer        int           `yaml:"send_buffer"`         // per-client outbound event buffer
}

// Load loads configuration from file and environment variables
func Load() (*Config, error) {
	cfg := defaultConfig()

	configPath := getConfigPath()
	if _, err := os.Stat(configPath); err == nil {
		data, err := os.ReadFile(configPath)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config file: %w", err)
		}
	}

	cfg.applyEnv()

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

// defaultConfig returns a configuration with default values
func defaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Host:         "0.0.0.0",
			Port:         8080,
			ReadTimeout:  15 * time.Second,
			WriteTimeout: 15 * time.Second,
		},
		Database: DatabaseConfig{
			Driver:       "sqlite",
			DSN:          "presence.db",
			MaxOpenConns: 20,
			MaxIdleConns: 2,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
		},
		Presence: PresenceConfig{
			SweepInterval:     30 * time.Second,
			IdleTimeout:       90 * time.Second,
			AutoAwayInterval:  time.Minute,
			ReconcileInterval: 5 * time.Minute,
			SendBuffer:        64,
		},
	}
}

func getConfigPath() string {
	if path := os.Getenv("PRESENCE_CONFIG"); path != "" {
		return path
	}
	return "config.yaml"
}

// applyEnv overrides configuration from environment variables
func (c *Config) applyEnv() {
	if v := os.Getenv("PRESENCE_SERVER_HOST"); v != "" {
		c.Server.Host = v
	}
	if v := os.Getenv("PRESENCE_SERVER_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			c.Server.Port = port
		}
	}
	if v := os.Getenv("PRESENCE_DB_DRIVER"); v != "" {
		c.Database.Driver = v
	}
	if v := os.Getenv("PRESENCE_DB_DSN"); v != "" {
		c.Database.DSN = v
	}
	if v := os.Getenv("PRESENCE_LOG_LEVEL"); v != "" {
		c.Logging.Level = v
	}
	if v := os.Getenv("PRESENCE_LOG_FORMAT"); v != "" {
		c.Logging.Format = v
	}
	if v := os.Getenv("PRESENCE_IDLE_TIMEOUT"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			c.Presence.IdleTimeout = d
		}
	}
	if v := os.Getenv("PRESENCE_SWEEP_INTERVAL"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			c.Presence.SweepInterval = d
		}
	}
}

// Validate checks the configuration for invalid values
func (c *Config) Validate() error {
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("server port must be between 1 and 65535, got %d", c.Server.Port)
	}
	if c.Server.Host == "" {
		return fmt.Errorf("server host must not be empty")
	}
	switch c.Database.Driver {
	case "sqlite", "postgres":
	default:
		return fmt.Errorf("database driver must be sqlite or postgres, got %q", c.Database.Driver)
	}
	if c.Database.DSN == "" {
		return fmt.Errorf("database dsn must not be empty")
	}
	switch c.Logging.Level {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("unknown log level %q", c.Logging.Level)
	}
	switch c.Logging.Format {
	case "json", "console":
	default:
		return fmt.Errorf("log format must be json or console, got %q", c.Logging.Format)
	}
	if c.Presence.SweepInterval <= 0 {
		return fmt.Errorf("sweep interval must be positive")
	}
	if c.Presence.IdleTimeout <= 0 {
		return fmt.Errorf("idle timeout must be positive")
	}
	if c.Presence.IdleTimeout <= c.Presence.SweepInterval {
		return fmt.Errorf("idle timeout must exceed the sweep interval")
	}
	if c.Presence.AutoAwayInterval <= 0 {
		return fmt.Errorf("auto-away interval must be positive")
	}
	if c.Presence.ReconcileInterval <= 0 {
		return fmt.Errorf("reconcile interval must be positive")
	}
	if c.Presence.SendBuffer < 1 {
		return fmt.Errorf("send buffer must be at least 1")
	}
	return nil
}

// Addr returns the listen address as host:port
func (c *ServerConfig) Addr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}
