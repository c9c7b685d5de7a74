package commands

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"git.home.luguber.info/inful/nostrbackup/internal/api"
	"git.home.luguber.info/inful/nostrbackup/internal/config"
	"git.home.luguber.info/inful/nostrbackup/internal/daemon"
	"git.home.luguber.info/inful/nostrbackup/internal/foundation/errors"
	"git.home.luguber.info/inful/nostrbackup/internal/logfields"
	"git.home.luguber.info/inful/nostrbackup/internal/metrics"
	"git.home.luguber.info/inful/nostrbackup/internal/notify"
)

// DaemonCmd implements the 'daemon' command.
type DaemonCmd struct {
	Listen string `short:"l" help:"API listen address; defaults to daemon.listen"`
	RunNow bool   `name:"run-now" help:"Start a backup immediately"`
}

func (c *DaemonCmd) Run(g *Global, root *CLI) error {
	cfg, err := root.LoadConfig()
	if err != nil {
		return err
	}
	ctx, cancel := signalContext()
	defer cancel()
	return c.run(ctx, g, root.Config, cfg)
}

func (c *DaemonCmd) run(ctx context.Context, g *Global, configPath string, cfg *config.Config) error {
	logger := slog.Default()

	store, err := openStore(cfg)
	if err != nil {
		return err
	}
	defer func() { _ = store.Close() }()

	opts := daemon.Options{Dialer: g.dialer(), Logger: logger}

	var metricsHandler http.Handler
	if cfg.Metrics.Enabled {
		reg := prometheus.NewRegistry()
		opts.Recorder = metrics.NewPrometheusRecorder(reg)
		metricsHandler = metrics.HTTPHandler(reg)
	}
	if cfg.NATS.Enabled {
		client, err := notify.Connect(cfg.NATS, logger)
		if err != nil {
			return err
		}
		defer func() { _ = client.Close() }()
		opts.Notifier = client.Notifier
	}

	d, err := daemon.New(configPath, cfg, store, opts)
	if err != nil {
		return err
	}

	srv := api.NewServer(c.listen(cfg), d).WithToken(cfg.Daemon.Token).WithLogger(logger)
	if metricsHandler != nil {
		srv.WithMetrics(metricsHandler)
	}

	slog.Info("Starting daemon mode", slog.String("listen", srv.Addr), slog.String("database", cfg.Backup.Database))
	if err := d.Start(ctx); err != nil {
		return err
	}

	errChan := make(chan error, 1)
	go func() { errChan <- srv.Start() }()

	if c.RunNow {
		if _, err := d.TriggerRun("startup"); err != nil {
			logger.Warn("Failed to start initial backup", logfields.Error(err))
		}
	}

	var runErr error
	select {
	case runErr = <-errChan:
	case <-ctx.Done():
		slog.Info("Shutdown signal received, stopping daemon...")
	}

	stopCtx, stopCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer stopCancel()

	if err := srv.Shutdown(stopCtx); err != nil {
		logger.Warn("API server shutdown failed", logfields.Error(err))
	}
	if err := d.Stop(stopCtx); err != nil && runErr == nil {
		runErr = errors.WrapError(err, errors.CategoryDaemon, "failed to stop daemon").Build()
	}
	if runErr == nil {
		slog.Info("Daemon stopped successfully")
	}
	return runErr
}

func (c *DaemonCmd) listen(cfg *config.Config) string {
	if c.Listen != "" {
		return c.Listen
	}
	return cfg.Daemon.Listen
}
