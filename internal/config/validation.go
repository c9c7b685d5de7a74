package config

import (
	"fmt"
	"net/url"
	"time"

	"git.home.luguber.info/inful/nostrbackup/internal/foundation/errors"
	"git.home.luguber.info/inful/nostrbackup/internal/keys"
)

// Validate checks a normalized configuration.
func Validate(cfg *Config) error {
	for _, r := range cfg.Relays {
		u, err := url.Parse(r)
		if err != nil || (u.Scheme != "wss" && u.Scheme != "ws") || u.Host == "" {
			return invalid("relays", fmt.Sprintf("relay %q must be a ws:// or wss:// URL", r))
		}
	}

	ex := cfg.Exchange
	if ex.BatchSize < 1 {
		return invalid("exchange.batch_size", "batch size must be at least 1")
	}
	if ex.IdleTimeout < 0 || ex.AckTimeout < 0 {
		return invalid("exchange", "timeouts cannot be negative")
	}
	if cfg.Backup.ChunkSize < 0 {
		return invalid("backup.chunk_size", "chunk size cannot be negative")
	}
	if cfg.Log.Level == "" {
		return invalid("log.level", "log level must be one of debug, info, warn, error")
	}
	if cfg.Log.Format == "" {
		return invalid("log.format", "log format must be text or json")
	}
	if cfg.NATS.Enabled && cfg.NATS.Subject == "" {
		return invalid("nats.subject", "subject is required when NATS is enabled")
	}

	d := cfg.Daemon
	if d.Pubkey != "" {
		if _, err := keys.ParsePubkey(d.Pubkey); err != nil {
			return invalid("daemon.pubkey", "pubkey must be an npub or 64 hex characters")
		}
	}
	if d.Interval < 0 {
		return invalid("daemon.interval", "interval cannot be negative")
	}
	if d.Retry.Backoff == "" {
		return invalid("daemon.retry.backoff", "backoff must be fixed, linear or exponential")
	}
	if d.Retry.MaxRetries < 0 {
		return invalid("daemon.retry.max_retries", "max retries cannot be negative")
	}
	return nil
}

// ValidateDaemon checks the settings a daemon run needs beyond Validate.
func ValidateDaemon(cfg *Config) error {
	if len(cfg.Relays) == 0 {
		return invalid("relays", "at least one relay is required")
	}
	if cfg.Daemon.Pubkey == "" {
		return invalid("daemon.pubkey", "pubkey is required to run the daemon")
	}
	if cfg.Daemon.Schedule == "" && cfg.Daemon.Interval < time.Minute {
		return invalid("daemon.interval", "interval must be at least 1m")
	}
	return nil
}

func invalid(field, msg string) error {
	return errors.ValidationError(msg).WithContext("field", field).Build()
}
