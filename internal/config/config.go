package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	serrors "git.home.luguber.info/inful/syncd/internal/errors"
)

// Config represents the syncd configuration file.
type Config struct {
	Daemon     DaemonConfig     `yaml:"daemon"`
	Status     StatusConfig     `yaml:"status"`
	History    HistoryConfig    `yaml:"history"`
	Events     EventsConfig     `yaml:"events"`
	Monitoring MonitoringConfig `yaml:"monitoring"`
	Diff       DiffConfig       `yaml:"diff"`
}

// DaemonConfig controls the update loop.
type DaemonConfig struct {
	Interval     string       `yaml:"interval"`  // Time between the starts of two cycles
	Heartbeat    string       `yaml:"heartbeat"` // How often the sleeping status is refreshed
	Repositories []Repository `yaml:"repositories"`
}

// Repository is one repository processed every cycle.
type Repository struct {
	Name      string `yaml:"name"`
	HumanName string `yaml:"human_name,omitempty"` // Defaults to a title-cased Name
	Path      string `yaml:"path"`                 // Local working copy
	Base      string `yaml:"base,omitempty"`       // Revision the head is compared against
	Head      string `yaml:"head,omitempty"`
}

// StatusConfig configures where snapshots are published.
type StatusConfig struct {
	File        string      `yaml:"file"`
	LockTimeout string      `yaml:"lock_timeout,omitempty"` // Empty waits for the lock indefinitely
	Memory      bool        `yaml:"memory"`                 // Keep an in-process mirror for the admin endpoint
	Retry       RetryConfig `yaml:"retry"`
}

// RetryBackoffMode selects how the delay between write retries grows.
type RetryBackoffMode string

const (
	RetryBackoffFixed       RetryBackoffMode = "fixed"
	RetryBackoffLinear      RetryBackoffMode = "linear"
	RetryBackoffExponential RetryBackoffMode = "exponential"
)

// RetryConfig controls retries of failed writes to the history and NATS
// sinks. The status file is never retried.
type RetryConfig struct {
	Backoff    RetryBackoffMode `yaml:"backoff"`
	Initial    string           `yaml:"initial"`
	Max        string           `yaml:"max"`
	MaxRetries int              `yaml:"max_retries"` // -1 disables retries
}

// InitialDelay returns the parsed base delay.
func (r RetryConfig) InitialDelay() time.Duration { return durationOr(r.Initial, 0) }

// MaxDelay returns the parsed delay cap.
func (r RetryConfig) MaxDelay() time.Duration { return durationOr(r.Max, 0) }

// HistoryConfig configures the SQLite snapshot history.
type HistoryConfig struct {
	Enabled bool   `yaml:"enabled"`
	Path    string `yaml:"path"`
}

// EventsConfig configures snapshot broadcast over NATS.
type EventsConfig struct {
	Enabled bool   `yaml:"enabled"`
	NATSURL string `yaml:"nats_url"`
	Bucket  string `yaml:"bucket"`  // JetStream key-value bucket
	Key     string `yaml:"key"`     // Key holding the latest snapshot
	Subject string `yaml:"subject"` // Optional core NATS subject for change notifications
}

// MonitoringConfig represents monitoring and observability configuration
type MonitoringConfig struct {
	Metrics MonitoringMetrics `yaml:"metrics"`
	Logging MonitoringLogging `yaml:"logging"`
}

// MonitoringMetrics represents metrics configuration
type MonitoringMetrics struct {
	Enabled bool   `yaml:"enabled"`
	Addr    string `yaml:"addr"`
	Path    string `yaml:"path"`
}

// MonitoringLogging represents logging configuration
type MonitoringLogging struct {
	Level  LogLevel  `yaml:"level"`
	Format LogFormat `yaml:"format"`
}

// DiffConfig bounds the raw diffs computed per repository.
type DiffConfig struct {
	MaxSize int `yaml:"max_size"`
}

// Load reads, normalizes, defaults and validates the configuration at configPath.
func Load(configPath string) (*Config, error) {
	if err := loadEnvFile(); err != nil {
		slog.Debug("No .env file loaded", slog.String("reason", err.Error()))
	}

	if _, err := os.Stat(configPath); os.IsNotExist(err) {
		return nil, serrors.ConfigNotFound(configPath)
	}

	data, err := os.ReadFile(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	cfg, err := Parse(data)
	if err != nil {
		return nil, err
	}
	return cfg, nil
}

// Parse decodes configuration content after expanding ${VAR} references,
// then normalizes, defaults and validates it.
func Parse(data []byte) (*Config, error) {
	expanded := os.ExpandEnv(string(data))

	var cfg Config
	dec := yaml.NewDecoder(bytes.NewReader([]byte(expanded)))
	dec.KnownFields(true)
	if err := dec.Decode(&cfg); err != nil && !errors.Is(err, io.EOF) {
		return nil, serrors.Wrap(err, serrors.CategoryConfig, serrors.SeverityFatal, "failed to unmarshal config")
	}

	res := NormalizeConfig(&cfg)
	for _, w := range res.Warnings {
		slog.Warn("Config normalization", slog.String("warning", w))
	}
	applyDefaults(&cfg)

	if err := Validate(&cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Default returns a configuration with every default applied and no repositories.
func Default() *Config {
	var cfg Config
	applyDefaults(&cfg)
	return &cfg
}

// Init writes an example configuration file.
func Init(configPath string, force bool) error {
	if _, err := os.Stat(configPath); err == nil && !force {
		return fmt.Errorf("configuration file already exists: %s (use --force to overwrite)", configPath)
	}

	example := Default()
	example.Daemon.Repositories = []Repository{
		{Name: "service-api", Path: "/srv/repos/service-api", Base: "main", Head: "HEAD"},
		{Name: "web-frontend", HumanName: "Web Frontend", Path: "/srv/repos/web-frontend", Base: "main", Head: "HEAD"},
	}
	example.Status.Memory = true
	example.Monitoring.Metrics.Enabled = true

	data, err := yaml.Marshal(example)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}
	if err := os.WriteFile(configPath, data, 0o644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}
	return nil
}

// CycleInterval returns the parsed daemon interval.
func (c *Config) CycleInterval() time.Duration {
	return durationOr(c.Daemon.Interval, defaultInterval)
}

// HeartbeatInterval returns the parsed sleep heartbeat period.
func (c *Config) HeartbeatInterval() time.Duration {
	return durationOr(c.Daemon.Heartbeat, defaultHeartbeat)
}

// StatusLockTimeout returns the parsed lock timeout; zero means wait forever.
func (c *Config) StatusLockTimeout() time.Duration {
	return durationOr(c.Status.LockTimeout, 0)
}

func durationOr(raw string, def time.Duration) time.Duration {
	if raw == "" {
		return def
	}
	d, err := time.ParseDuration(raw)
	if err != nil {
		return def
	}
	return d
}
