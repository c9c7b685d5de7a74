// Package config loads nostrbackup configuration from YAML.
package config

import (
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"git.home.luguber.info/inful/nostrbackup/internal/foundation/errors"
)

// Config is the complete configuration file.
type Config struct {
	Relays   []string       `yaml:"relays"`
	Exchange ExchangeConfig `yaml:"exchange"`
	Backup   BackupConfig   `yaml:"backup"`
	Log      LogConfig      `yaml:"log"`
	Metrics  MetricsConfig  `yaml:"metrics"`
	NATS     NATSConfig     `yaml:"nats"`
	Daemon   DaemonConfig   `yaml:"daemon"`
}

// ExchangeConfig bounds relay exchanges.
type ExchangeConfig struct {
	BatchSize   int           `yaml:"batch_size"`   // relays contacted concurrently
	IdleTimeout time.Duration `yaml:"idle_timeout"` // fetch: max gap between events
	AckTimeout  time.Duration `yaml:"ack_timeout"`  // publish: max wait for each OK
}

// BackupConfig configures local persistence.
type BackupConfig struct {
	Database  string `yaml:"database"`
	ChunkSize int    `yaml:"chunk_size"`
}

// LogConfig configures the slog handler.
type LogConfig struct {
	Level  LogLevel  `yaml:"level"`
	Format LogFormat `yaml:"format"`
}

// MetricsConfig enables Prometheus metrics on the daemon API.
type MetricsConfig struct {
	Enabled bool `yaml:"enabled"`
}

// NATSConfig configures status fan-out.
type NATSConfig struct {
	Enabled bool   `yaml:"enabled"`
	URL     string `yaml:"url"`
	Subject string `yaml:"subject"`
}

// DaemonConfig configures scheduled backups.
type DaemonConfig struct {
	Pubkey     string        `yaml:"pubkey"`
	Kinds      []int         `yaml:"kinds"`
	Interval   time.Duration `yaml:"interval"`
	Schedule   string        `yaml:"schedule"` // cron expression; overrides interval
	Listen     string        `yaml:"listen"`
	Token      string        `yaml:"token"` // bearer token for POST /runs; empty disables
	BackupName string        `yaml:"backup_name"`
	Retry      RetryConfig   `yaml:"retry"`
}

// RetryConfig configures retries of backup writes.
type RetryConfig struct {
	Backoff    RetryBackoffMode `yaml:"backoff"`
	Initial    time.Duration    `yaml:"initial"`
	Max        time.Duration    `yaml:"max"`
	MaxRetries int              `yaml:"max_retries"`
}

// Load reads the configuration at path. .env and .env.local in the working
// directory are loaded first without overriding the process environment,
// then ${VAR} references in the file are expanded.
func Load(path string) (*Config, error) {
	loadEnvFiles(".env", ".env.local")

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, errors.ConfigError("configuration file not found").
				WithCause(err).
				WithContext("path", path).
				Build()
		}
		return nil, errors.ConfigError("failed to read configuration file").
			WithCause(err).
			WithContext("path", path).
			Build()
	}
	cfg, err := Parse(data)
	if err != nil {
		if ce, ok := errors.AsClassified(err); ok {
			return nil, ce.WithContext("path", path)
		}
		return nil, err
	}
	return cfg, nil
}

// Parse decodes, normalizes and validates configuration content.
func Parse(data []byte) (*Config, error) {
	cfg := &Config{}
	if err := yaml.Unmarshal([]byte(os.ExpandEnv(string(data))), cfg); err != nil {
		return nil, errors.ConfigError("failed to parse configuration").WithCause(err).Build()
	}
	applyDefaults(cfg)
	normalize(cfg)
	if err := Validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}
