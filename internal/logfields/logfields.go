package logfields

import (
	"log/slog"
	"strings"
)

// Canonical log field name constants to avoid drift across packages.
const (
	KeyRelay        = "relay"
	KeyPhase        = "phase"
	KeySubscription = "subscription"
	KeyCount        = "count"
	KeyEvents       = "events"
	KeyWave         = "wave"
	KeyWaves        = "waves"
	KeyOperation    = "operation"
	KeyRunID        = "run_id"
	KeyBackup       = "backup"
	KeyDurationMS   = "duration_ms"
	KeyError        = "error"
)

// Simple helpers returning slog.Attr. Keeping each granular means callers can compose.
func Relay(url string) slog.Attr       { return slog.String(KeyRelay, url) }
func Phase(p string) slog.Attr         { return slog.String(KeyPhase, p) }
func Subscription(id string) slog.Attr { return slog.String(KeySubscription, id) }
func Count(n int) slog.Attr            { return slog.Int(KeyCount, n) }
func Events(n int) slog.Attr           { return slog.Int(KeyEvents, n) }
func Wave(i int) slog.Attr             { return slog.Int(KeyWave, i) }
func Waves(n int) slog.Attr            { return slog.Int(KeyWaves, n) }
func Operation(op string) slog.Attr    { return slog.String(KeyOperation, op) }
func RunID(id string) slog.Attr        { return slog.String(KeyRunID, id) }
func Backup(name string) slog.Attr     { return slog.String(KeyBackup, name) }
func DurationMS(ms float64) slog.Attr  { return slog.Float64(KeyDurationMS, ms) }
func Error(err error) slog.Attr {
	if err == nil {
		return slog.String(KeyError, "")
	}
	return slog.String(KeyError, err.Error())
}

// RelayHost strips the websocket scheme so relay names stay short in logs and status lines.
func RelayHost(url string) string {
	return strings.TrimPrefix(strings.TrimPrefix(url, "wss://"), "ws://")
}
