package config

import (
	"os"

	"git.home.luguber.info/inful/nostrbackup/internal/foundation/errors"
)

const starter = `# nostrbackup configuration
relays:
  - wss://relay.damus.io
  - wss://nos.lol
  - wss://relay.nostr.band

exchange:
  batch_size: 10
  idle_timeout: 10s
  ack_timeout: 10s

backup:
  database: nostrbackup.db
  chunk_size: 1048576

log:
  level: info
  format: text

metrics:
  enabled: false

nats:
  enabled: false
  url: ${NATS_URL}
  subject: nostrbackup.status

daemon:
  pubkey: ${NOSTR_PUBKEY}
  interval: 24h
  # schedule: "0 3 * * *"
  listen: 127.0.0.1:8787
  # token: ${NOSTRBACKUP_API_TOKEN}
  backup_name: nostr-backup.json
  retry:
    backoff: exponential
    initial: 1s
    max: 30s
    max_retries: 3
`

// Init writes a starter configuration to path. An existing file is only
// replaced when force is set.
func Init(path string, force bool) error {
	if _, err := os.Stat(path); err == nil && !force {
		return errors.ValidationError("configuration file already exists (use --force to overwrite)").
			WithContext("path", path).
			Build()
	}
	if err := os.WriteFile(path, []byte(starter), 0o600); err != nil {
		return errors.ConfigError("failed to write configuration file").
			WithCause(err).
			WithContext("path", path).
			Build()
	}
	return nil
}
