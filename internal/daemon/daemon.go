// Package daemon runs scheduled backups of one pubkey's events.
package daemon

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"git.home.luguber.info/inful/nostrbackup/internal/backup"
	"git.home.luguber.info/inful/nostrbackup/internal/config"
	"git.home.luguber.info/inful/nostrbackup/internal/foundation/errors"
	"git.home.luguber.info/inful/nostrbackup/internal/logfields"
	"git.home.luguber.info/inful/nostrbackup/internal/metrics"
	"git.home.luguber.info/inful/nostrbackup/internal/notify"
	"git.home.luguber.info/inful/nostrbackup/internal/relay"
)

// Status represents the current state of the daemon.
type Status string

const (
	StatusStopped  Status = "stopped"
	StatusRunning  Status = "running"
	StatusStopping Status = "stopping"
)

// Options carries optional collaborators.
type Options struct {
	// Dialer defaults to websocket.
	Dialer   relay.Dialer
	Recorder metrics.Recorder
	Notifier *notify.Notifier
	Logger   *slog.Logger
}

// Daemon owns the scheduler, the configuration watcher and backup runs.
type Daemon struct {
	configPath string
	store      backup.Store
	opts       Options

	mu     sync.RWMutex
	cfg    *config.Config
	status atomic.Value // Status

	scheduler *Scheduler
	watcher   *ConfigWatcher
	workers   WorkerGroup
	startTime time.Time
	runCtx    context.Context
	cancelRun context.CancelFunc

	runMu   sync.Mutex
	stateMu sync.RWMutex
	current *activeRun
	lastRun *Run
}

// New creates a daemon. configPath may be empty, which disables reloads.
func New(configPath string, cfg *config.Config, store backup.Store, opts Options) (*Daemon, error) {
	if cfg == nil {
		return nil, errors.ConfigError("configuration is required").Build()
	}
	if store == nil {
		return nil, errors.InternalError("backup store is required").Build()
	}
	if err := config.ValidateDaemon(cfg); err != nil {
		return nil, err
	}
	if opts.Recorder == nil {
		opts.Recorder = metrics.NoopRecorder{}
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	d := &Daemon{configPath: configPath, cfg: cfg, store: store, opts: opts}
	d.status.Store(StatusStopped)
	return d, nil
}

// Start schedules backups and, when a config path is set, watches it.
func (d *Daemon) Start(ctx context.Context) error {
	scheduler, err := NewScheduler()
	if err != nil {
		return errors.WrapError(err, errors.CategoryDaemon, "failed to create scheduler").Build()
	}
	d.scheduler = scheduler
	d.runCtx, d.cancelRun = context.WithCancel(context.WithoutCancel(ctx))

	if err := d.schedule(d.GetConfig()); err != nil {
		d.cancelRun()
		return err
	}
	d.scheduler.Start(ctx)

	if d.configPath != "" {
		w, err := NewConfigWatcher(d.configPath, d)
		if err != nil {
			d.opts.Logger.Warn("Configuration reload disabled", logfields.Error(err))
		} else if err := w.Start(ctx); err != nil {
			d.opts.Logger.Warn("Configuration reload disabled", logfields.Error(err))
		} else {
			d.watcher = w
		}
	}

	d.startTime = time.Now()
	d.status.Store(StatusRunning)
	d.opts.Logger.Info("Daemon started", slog.Int("relays", len(d.GetConfig().Relays)))
	return nil
}

// Stop halts scheduling, aborts an active run and waits for it to settle.
func (d *Daemon) Stop(ctx context.Context) error {
	d.status.Store(StatusStopping)
	defer d.status.Store(StatusStopped)

	if d.watcher != nil {
		_ = d.watcher.Stop(ctx)
	}
	var firstErr error
	if d.scheduler != nil {
		if err := d.scheduler.Stop(ctx); err != nil {
			firstErr = err
		}
	}
	if d.cancelRun != nil {
		d.cancelRun()
	}
	if err := d.workers.StopAndWait(ctx); err != nil && firstErr == nil {
		firstErr = err
	}
	d.opts.Logger.Info("Daemon stopped")
	return firstErr
}

func (d *Daemon) schedule(cfg *config.Config) error {
	d.scheduler.Remove()
	job := func() {
		done := make(chan struct{})
		if !d.workers.Go(func() {
			defer close(done)
			if _, err := d.RunOnce(d.runCtx, "schedule"); err != nil {
				d.opts.Logger.Error("Scheduled backup failed", logfields.Error(err))
			}
		}) {
			return
		}
		<-done
	}
	var err error
	if cfg.Daemon.Schedule != "" {
		_, err = d.scheduler.ScheduleCron("backup", cfg.Daemon.Schedule, job)
	} else {
		_, err = d.scheduler.ScheduleEvery("backup", cfg.Daemon.Interval, job)
	}
	if err != nil {
		return errors.WrapError(err, errors.CategoryConfig, "invalid backup schedule").Build()
	}
	return nil
}

// TriggerRun starts a backup in the background and returns its run id.
func (d *Daemon) TriggerRun(trigger string) (string, error) {
	if d.GetStatus() != StatusRunning {
		return "", ErrNotRunning
	}
	if !d.runMu.TryLock() {
		return "", ErrRunInProgress
	}
	run := d.beginRun(trigger)
	if !d.workers.Go(func() {
		defer d.runMu.Unlock()
		_ = d.execute(d.runCtx, run)
	}) {
		d.stateMu.Lock()
		d.current = nil
		d.stateMu.Unlock()
		d.runMu.Unlock()
		return "", ErrNotRunning
	}
	return run.snapshot().ID, nil
}

// RunOnce performs a backup run and waits for it.
func (d *Daemon) RunOnce(ctx context.Context, trigger string) (*Run, error) {
	if !d.runMu.TryLock() {
		return nil, ErrRunInProgress
	}
	defer d.runMu.Unlock()
	run := d.beginRun(trigger)
	err := d.execute(ctx, run)
	r := run.snapshot()
	return &r, err
}

// GetStatus returns the lifecycle state.
func (d *Daemon) GetStatus() Status {
	return d.status.Load().(Status)
}

// GetConfig returns the active configuration.
func (d *Daemon) GetConfig() *config.Config {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.cfg
}

// ReloadConfig swaps in a new configuration. Relays, exchange limits and the
// schedule take effect from the next run; the listen address and database do not.
func (d *Daemon) ReloadConfig(_ context.Context, cfg *config.Config) error {
	if err := config.ValidateDaemon(cfg); err != nil {
		return err
	}
	old := d.GetConfig()
	if cfg.Daemon.Listen != old.Daemon.Listen || cfg.Backup.Database != old.Backup.Database {
		d.opts.Logger.Warn("Listen address and database changes require a restart")
	}
	if d.scheduler != nil && (cfg.Daemon.Interval != old.Daemon.Interval || cfg.Daemon.Schedule != old.Daemon.Schedule) {
		if err := d.schedule(cfg); err != nil {
			return err
		}
	}
	d.mu.Lock()
	d.cfg = cfg
	d.mu.Unlock()
	d.opts.Logger.Info("Configuration applied", slog.Int("relays", len(cfg.Relays)))
	return nil
}

// Info summarizes the daemon for the status endpoint.
type Info struct {
	Status     Status     `json:"status"`
	StartTime  time.Time  `json:"start_time"`
	Uptime     string     `json:"uptime"`
	ConfigFile string     `json:"config_file,omitempty"`
	Relays     int        `json:"relays"`
	NextRun    *time.Time `json:"next_run,omitempty"`
	Current    *Run       `json:"current_run,omitempty"`
	LastRun    *Run       `json:"last_run,omitempty"`
}

// Info returns the daemon summary.
func (d *Daemon) Info() Info {
	info := Info{
		Status:     d.GetStatus(),
		StartTime:  d.startTime,
		ConfigFile: d.configPath,
		Relays:     len(d.GetConfig().Relays),
	}
	if !d.startTime.IsZero() {
		info.Uptime = time.Since(d.startTime).Truncate(time.Second).String()
	}
	if d.scheduler != nil {
		if next, ok := d.scheduler.NextRun(); ok {
			info.NextRun = &next
		}
	}
	d.stateMu.RLock()
	defer d.stateMu.RUnlock()
	if d.current != nil {
		c := d.current.snapshot()
		info.Current = &c
	}
	if d.lastRun != nil {
		l := *d.lastRun
		info.LastRun = &l
	}
	return info
}

// LastRun returns the most recently finished run.
func (d *Daemon) LastRun() (Run, bool) {
	d.stateMu.RLock()
	defer d.stateMu.RUnlock()
	if d.lastRun == nil {
		return Run{}, false
	}
	return *d.lastRun, true
}

// Backups lists stored backups.
func (d *Daemon) Backups(ctx context.Context) ([]backup.Info, error) {
	return d.store.List(ctx)
}
