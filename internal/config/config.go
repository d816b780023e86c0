// Package config loads the service configuration from YAML with
// environment overrides.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds all service configuration.
type Config struct {
	Server ServerConfig `yaml:"server"`
	Store  StoreConfig  `yaml:"store"`
	Rules  RulesConfig  `yaml:"rules"`
	Log    LogConfig    `yaml:"log"`
}

// ServerConfig configures the HTTP adapter.
type ServerConfig struct {
	Addr string `yaml:"addr"`
	// MessageCap limits user messages per conversation; 0 disables it.
	MessageCap     int    `yaml:"message_cap"`
	RequestTimeout string `yaml:"request_timeout"`
}

// StoreConfig selects the session store.
type StoreConfig struct {
	Driver        string `yaml:"driver"` // postgres, sqlite, memory
	DSN           string `yaml:"dsn"`
	EncryptionKey string `yaml:"encryption_key"`
	NotifyChannel string `yaml:"notify_channel"`
}

// RulesConfig points at the clinical rule file. Empty means the embedded
// defaults.
type RulesConfig struct {
	Path string `yaml:"path"`
}

// LogConfig configures zap.
type LogConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"` // json, console
}

// DefaultConfig returns the configuration used when nothing is set.
func DefaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Addr:           ":8080",
			MessageCap:     50,
			RequestTimeout: "10s",
		},
		Store: StoreConfig{
			Driver:        "sqlite",
			DSN:           "data/triage.db",
			EncryptionKey: "dev-key",
			NotifyChannel: "handoff_tickets",
		},
		Log: LogConfig{
			Level:  "info",
			Format: "json",
		},
	}
}

// Load reads path (when non-empty), then applies environment overrides.
// A path that was given but does not exist is an error.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config: %w", err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config: %w", err)
		}
	}

	if err := cfg.applyEnvOverrides(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) applyEnvOverrides() error {
	if v := os.Getenv("PORT"); v != "" {
		c.Server.Addr = ":" + v
	}
	if v := os.Getenv("MESSAGE_CAP"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("MESSAGE_CAP: %w", err)
		}
		c.Server.MessageCap = n
	}
	if v := os.Getenv("STORE_DRIVER"); v != "" {
		c.Store.Driver = v
	}
	if v := os.Getenv("DATABASE_URL"); v != "" {
		c.Store.DSN = v
	}
	if v := os.Getenv("TRIAGE_ENCRYPTION_KEY"); v != "" {
		c.Store.EncryptionKey = v
	}
	if v := os.Getenv("POSTGRES_NOTIFY_CHANNEL"); v != "" {
		c.Store.NotifyChannel = v
	}
	if v := os.Getenv("TRIAGE_RULES_PATH"); v != "" {
		c.Rules.Path = v
	}
	if v := os.Getenv("LOG_LEVEL"); v != "" {
		c.Log.Level = v
	}
	if v := os.Getenv("LOG_FORMAT"); v != "" {
		c.Log.Format = v
	}
	return nil
}

// GetRequestTimeout returns the per-request timeout, falling back to 10s.
func (c *Config) GetRequestTimeout() time.Duration {
	d, err := time.ParseDuration(c.Server.RequestTimeout)
	if err != nil || d <= 0 {
		return 10 * time.Second
	}
	return d
}

// Validate checks the configuration for invalid values.
func (c *Config) Validate() error {
	var errs []error
	switch c.Store.Driver {
	case "postgres", "sqlite", "memory":
	default:
		errs = append(errs, fmt.Errorf("store.driver: unsupported %q", c.Store.Driver))
	}
	if c.Store.Driver != "memory" && c.Store.DSN == "" {
		errs = append(errs, errors.New("store.dsn: required"))
	}
	if c.Store.EncryptionKey == "" {
		errs = append(errs, errors.New("store.encryption_key: required"))
	}
	if c.Server.MessageCap < 0 {
		errs = append(errs, fmt.Errorf("server.message_cap: must not be negative, got %d", c.Server.MessageCap))
	}
	if c.Server.RequestTimeout != "" {
		if _, err := time.ParseDuration(c.Server.RequestTimeout); err != nil {
			errs = append(errs, fmt.Errorf("server.request_timeout: %w", err))
		}
	}
	switch c.Log.Level {
	case "debug", "info", "warn", "error":
	default:
		errs = append(errs, fmt.Errorf("log.level: unsupported %q", c.Log.Level))
	}
	switch c.Log.Format {
	case "json", "console":
	default:
		errs = append(errs, fmt.Errorf("log.format: unsupported %q", c.Log.Format))
	}
	return errors.Join(errs...)
}
