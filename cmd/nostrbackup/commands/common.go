// Package commands implements the nostrbackup command line.
package commands

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/alecthomas/kong"

	"git.home.luguber.info/inful/nostrbackup/internal/backup"
	"git.home.luguber.info/inful/nostrbackup/internal/config"
	"git.home.luguber.info/inful/nostrbackup/internal/exchange"
	"git.home.luguber.info/inful/nostrbackup/internal/logfields"
	"git.home.luguber.info/inful/nostrbackup/internal/notify"
	"git.home.luguber.info/inful/nostrbackup/internal/relay"
	"git.home.luguber.info/inful/nostrbackup/internal/status"
)

// Global carries process-wide collaborators into commands.
type Global struct {
	Out io.Writer
	// Dialer defaults to websocket.
	Dialer relay.Dialer
	// Logger receives relay status changes; defaults to slog.Default().
	Logger *slog.Logger
}

func (g *Global) out() io.Writer {
	if g == nil || g.Out == nil {
		return os.Stdout
	}
	return g.Out
}

func (g *Global) logger() *slog.Logger {
	if g == nil || g.Logger == nil {
		return slog.Default()
	}
	return g.Logger
}

func (g *Global) dialer() relay.Dialer {
	if g == nil {
		return nil
	}
	return g.Dialer
}

// CLI definition & global flags.
type CLI struct {
	Config  string           `short:"c" help:"Configuration file path" default:"nostrbackup.yaml" env:"NOSTRBACKUP_CONFIG"`
	Verbose bool             `short:"v" help:"Enable verbose logging"`
	Version kong.VersionFlag `name:"version" help:"Show version and exit"`

	Fetch   FetchCmd   `cmd:"" help:"Fetch a pubkey's events from every relay and store a backup"`
	Publish PublishCmd `cmd:"" help:"Publish a backup or JSON export to every relay"`
	Backups BackupsCmd `cmd:"" help:"Manage stored backups"`
	Key     KeyCmd     `cmd:"" help:"Convert public keys between hex and npub"`
	Init    InitCmd    `cmd:"" help:"Initialize a new configuration file"`
	Daemon  DaemonCmd  `cmd:"" help:"Run scheduled backups and the HTTP API"`
}

// AfterApply runs after flag parsing; setup logging once.
// nolint:unparam // AfterApply currently never returns an error.
func (c *CLI) AfterApply() error {
	level := slog.LevelInfo
	if c.Verbose {
		level = slog.LevelDebug
	}
	setupLogging(level, config.LogFormatText)
	return nil
}

// LoadConfig reads the configuration file and applies its log settings.
// --verbose keeps debug logging regardless of the file.
func (c *CLI) LoadConfig() (*config.Config, error) {
	cfg, err := config.Load(c.Config)
	if err != nil {
		return nil, err
	}
	level := cfg.Log.Level.Slog()
	if c.Verbose {
		level = slog.LevelDebug
	}
	setupLogging(level, cfg.Log.Format)
	return cfg, nil
}

func setupLogging(level slog.Level, format config.LogFormat) {
	opts := &slog.HandlerOptions{Level: level}
	var handler slog.Handler = slog.NewTextHandler(os.Stderr, opts)
	if format == config.LogFormatJSON {
		handler = slog.NewJSONHandler(os.Stderr, opts)
	}
	slog.SetDefault(slog.New(handler))
}

func openStore(cfg *config.Config) (*backup.SQLiteStore, error) {
	return backup.NewSQLiteStore(cfg.Backup.Database, cfg.Backup.ChunkSize)
}

func engineConfig(cfg *config.Config) exchange.Config {
	return exchange.Config{
		BatchSize:   cfg.Exchange.BatchSize,
		IdleTimeout: cfg.Exchange.IdleTimeout,
		AckTimeout:  cfg.Exchange.AckTimeout,
	}
}

// newEngine builds an engine that reports waves on w and logs every relay
// status change. When NATS is enabled status changes are also published.
// The returned close func is never nil.
func newEngine(g *Global, cfg *config.Config, runID string) (*exchange.Engine, func(), error) {
	w := g.out()
	logger := g.logger()
	engine := exchange.New(engineConfig(cfg), g.dialer()).
		WithProgress(func(p exchange.Progress) {
			_, _ = fmt.Fprintf(w, "%s wave %d/%d: %d/%d relays done, %d failed\n",
				p.Operation, p.Wave, p.Waves, p.Completed, p.Total, p.Failed)
		})

	if !cfg.NATS.Enabled {
		engine.WithObservers(func(op string) status.Observer {
			return status.LogObserver{Logger: logger, Operation: op}
		})
		return engine, func() {}, nil
	}
	client, err := notify.Connect(cfg.NATS, logger)
	if err != nil {
		return nil, nil, err
	}
	engine.WithObservers(func(op string) status.Observer {
		return status.Observers{
			status.LogObserver{Logger: logger, Operation: op},
			client.Observer(op, runID),
		}
	})
	return engine, func() {
		if err := client.Close(); err != nil {
			logger.Warn("Failed to close NATS connection", logfields.Error(err))
		}
	}, nil
}

// signalContext is cancelled on SIGINT or SIGTERM. Cancelling a fetch or
// publish still yields the partial result.
func signalContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
}

func printStatus(w io.Writer, snapshot map[string]status.Entry) {
	if s := status.Format(snapshot); s != "" {
		_, _ = fmt.Fprintln(w, s)
	}
}
