package config

import (
	"strings"
	"time"

	"git.home.luguber.info/inful/nostrbackup/internal/exchange"
)

const (
	DefaultDatabase   = "nostrbackup.db"
	DefaultNATSURL    = "nats://127.0.0.1:4222"
	DefaultNATSSubj   = "nostrbackup.status"
	DefaultListen     = "127.0.0.1:8787"
	DefaultInterval   = 24 * time.Hour
	DefaultBackupName = "nostr-backup.json"
)

// Default returns a configuration with every default applied and no relays.
func Default() *Config {
	cfg := &Config{}
	applyDefaults(cfg)
	return cfg
}

func applyDefaults(cfg *Config) {
	ex := exchange.DefaultConfig()
	if cfg.Exchange.BatchSize == 0 {
		cfg.Exchange.BatchSize = ex.BatchSize
	}
	if cfg.Exchange.IdleTimeout == 0 {
		cfg.Exchange.IdleTimeout = ex.IdleTimeout
	}
	if cfg.Exchange.AckTimeout == 0 {
		cfg.Exchange.AckTimeout = ex.AckTimeout
	}
	if cfg.Backup.Database == "" {
		cfg.Backup.Database = DefaultDatabase
	}
	if cfg.Log.Level == "" {
		cfg.Log.Level = LogLevelInfo
	}
	if cfg.Log.Format == "" {
		cfg.Log.Format = LogFormatText
	}
	if cfg.NATS.URL == "" {
		cfg.NATS.URL = DefaultNATSURL
	}
	if cfg.NATS.Subject == "" {
		cfg.NATS.Subject = DefaultNATSSubj
	}
	if cfg.Daemon.Interval == 0 {
		cfg.Daemon.Interval = DefaultInterval
	}
	if cfg.Daemon.Listen == "" {
		cfg.Daemon.Listen = DefaultListen
	}
	if cfg.Daemon.BackupName == "" {
		cfg.Daemon.BackupName = DefaultBackupName
	}
	if cfg.Daemon.Retry.Backoff == "" {
		cfg.Daemon.Retry.Backoff = RetryBackoffExponential
	}
	if cfg.Daemon.Retry.Initial == 0 {
		cfg.Daemon.Retry.Initial = time.Second
	}
	if cfg.Daemon.Retry.Max == 0 {
		cfg.Daemon.Retry.Max = 30 * time.Second
	}
	if cfg.Daemon.Retry.MaxRetries == 0 {
		cfg.Daemon.Retry.MaxRetries = 3
	}
}

// normalize canonicalizes enumerations and de-duplicates the relay list,
// keeping first occurrences in order.
func normalize(cfg *Config) {
	cfg.Log.Level = NormalizeLogLevel(string(cfg.Log.Level))
	cfg.Log.Format = NormalizeLogFormat(string(cfg.Log.Format))
	cfg.Daemon.Retry.Backoff = NormalizeRetryBackoff(string(cfg.Daemon.Retry.Backoff))
	cfg.Relays = NormalizeRelays(cfg.Relays)
}

// NormalizeRelays trims relay URLs, drops empty entries and trailing slashes,
// and removes duplicates.
func NormalizeRelays(relays []string) []string {
	seen := make(map[string]struct{}, len(relays))
	out := make([]string, 0, len(relays))
	for _, r := range relays {
		r = strings.TrimRight(strings.TrimSpace(r), "/")
		if r == "" {
			continue
		}
		if _, dup := seen[r]; dup {
			continue
		}
		seen[r] = struct{}{}
		out = append(out, r)
	}
	return out
}
