// Package config loads the hub's yaml configuration with sane defaults:
// a missing file section falls back to values that boot a sandbox-only
// in-memory deployment.
package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/Vladdy-1988/medlink-claims-hub-sub000/internal/domain/connector"
)

type Config struct {
	Server     ServerConfig    `yaml:"server"`
	Store      StoreConfig     `yaml:"store"`
	Queue      QueueConfig     `yaml:"queue"`
	Scheduler  SchedulerConfig `yaml:"scheduler"`
	Sandbox    SandboxConfig   `yaml:"sandbox"`
	Webhook    WebhookConfig   `yaml:"webhook"`
	Connectors []ConnectorSeed `yaml:"connectors"`
	Log        LogConfig       `yaml:"log"`
}

type ServerConfig struct {
	Port int `yaml:"port"`
}

type StoreConfig struct {
	// Driver selects the backend: memory, sqlite or postgres.
	Driver string `yaml:"driver"`
	// DSN is the sqlite file path or the postgres connection string.
	DSN string `yaml:"dsn"`
}

type QueueConfig struct {
	Workers            int `yaml:"workers"`
	MaxAttempts        int `yaml:"max_attempts"`
	BackoffBaseSeconds int `yaml:"backoff_base_seconds"`
}

func (c QueueConfig) BackoffBase() time.Duration {
	return time.Duration(c.BackoffBaseSeconds) * time.Second
}

type SchedulerConfig struct {
	IntervalSeconds    int `yaml:"interval_seconds"`
	MaxAttempts        int `yaml:"max_attempts"`
	BackoffBaseSeconds int `yaml:"backoff_base_seconds"`
	PollTimeoutSeconds int `yaml:"poll_timeout_seconds"`
}

func (c SchedulerConfig) Interval() time.Duration {
	return time.Duration(c.IntervalSeconds) * time.Second
}

func (c SchedulerConfig) BackoffBase() time.Duration {
	return time.Duration(c.BackoffBaseSeconds) * time.Second
}

func (c SchedulerConfig) PollTimeout() time.Duration {
	return time.Duration(c.PollTimeoutSeconds) * time.Second
}

type SandboxConfig struct {
	// AllowedPrefixes extends the outbound allowlist beyond localhost.
	AllowedPrefixes []string `yaml:"allowed_prefixes"`
}

type WebhookConfig struct {
	// Seed is the deployment-wide checksum seed; orgs can override it in
	// their connector settings under webhookSeed.
	Seed string `yaml:"seed"`
}

// ConnectorSeed enables a rail for an org at startup. Meant for dev and
// test deployments; production configs live in the store.
type ConnectorSeed struct {
	OrgID    string            `yaml:"org_id"`
	Rail     string            `yaml:"rail"`
	Enabled  bool              `yaml:"enabled"`
	Mode     string            `yaml:"mode"`
	Settings map[string]string `yaml:"settings"`
}

type LogConfig struct {
	Level  string `yaml:"level"`  // debug, info, warn, error
	Format string `yaml:"format"` // json, text
}

// Default returns the configuration an empty file would produce.
func Default() *Config {
	cfg := &Config{}
	cfg.applyDefaults()
	return cfg
}

// Load reads and validates a yaml configuration file.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}

	cfg.applyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return &cfg, nil
}

func (c *Config) applyDefaults() {
	if c.Server.Port == 0 {
		c.Server.Port = 8080
	}
	if c.Store.Driver == "" {
		c.Store.Driver = "memory"
	}
	if c.Queue.Workers == 0 {
		c.Queue.Workers = 4
	}
	if c.Queue.MaxAttempts == 0 {
		c.Queue.MaxAttempts = 3
	}
	if c.Queue.BackoffBaseSeconds == 0 {
		c.Queue.BackoffBaseSeconds = 30
	}
	if c.Scheduler.IntervalSeconds == 0 {
		c.Scheduler.IntervalSeconds = 300
	}
	if c.Scheduler.MaxAttempts == 0 {
		c.Scheduler.MaxAttempts = 10
	}
	if c.Scheduler.BackoffBaseSeconds == 0 {
		c.Scheduler.BackoffBaseSeconds = 30
	}
	if c.Scheduler.PollTimeoutSeconds == 0 {
		c.Scheduler.PollTimeoutSeconds = 15
	}
	if c.Log.Level == "" {
		c.Log.Level = "info"
	}
	if c.Log.Format == "" {
		c.Log.Format = "text"
	}
}

// Validate rejects configurations that cannot boot.
func (c *Config) Validate() error {
	switch c.Store.Driver {
	case "memory", "sqlite", "postgres":
	default:
		return fmt.Errorf("unknown store driver %q", c.Store.Driver)
	}
	if c.Store.Driver != "memory" && c.Store.DSN == "" {
		return fmt.Errorf("store driver %s requires a dsn", c.Store.Driver)
	}

	if c.Scheduler.PollTimeoutSeconds < 10 || c.Scheduler.PollTimeoutSeconds > 30 {
		return fmt.Errorf("scheduler poll_timeout_seconds %d outside 10-30", c.Scheduler.PollTimeoutSeconds)
	}

	switch c.Log.Level {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("unknown log level %q", c.Log.Level)
	}
	switch c.Log.Format {
	case "json", "text":
	default:
		return fmt.Errorf("unknown log format %q", c.Log.Format)
	}

	for _, seed := range c.Connectors {
		if _, err := connector.ParseRail(seed.Rail); err != nil {
			return fmt.Errorf("connector seed for org %q: %w", seed.OrgID, err)
		}
		if seed.OrgID == "" {
			return fmt.Errorf("connector seed for rail %s missing org_id", seed.Rail)
		}
		switch connector.Mode(seed.Mode) {
		case connector.ModeSandbox, connector.ModeLive, "":
		default:
			return fmt.Errorf("connector seed for org %q: unknown mode %q", seed.OrgID, seed.Mode)
		}
	}

	return nil
}
