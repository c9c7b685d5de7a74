package daemon

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"git.home.luguber.info/inful/nostrbackup/internal/backup"
	"git.home.luguber.info/inful/nostrbackup/internal/config"
	"git.home.luguber.info/inful/nostrbackup/internal/event"
	"git.home.luguber.info/inful/nostrbackup/internal/exchange"
	"git.home.luguber.info/inful/nostrbackup/internal/keys"
	"git.home.luguber.info/inful/nostrbackup/internal/logfields"
	"git.home.luguber.info/inful/nostrbackup/internal/retry"
	"git.home.luguber.info/inful/nostrbackup/internal/status"
)

// Run records one backup run.
type Run struct {
	ID       string                  `json:"id"`
	Trigger  string                  `json:"trigger"`
	Started  time.Time               `json:"started"`
	Finished *time.Time              `json:"finished,omitempty"`
	Relays   int                     `json:"relays"`
	Failed   int                     `json:"failed"`
	Events   int                     `json:"events"`
	Backup   string                  `json:"backup,omitempty"`
	Error    string                  `json:"error,omitempty"`
	Status   map[string]status.Entry `json:"status"`
}

// activeRun is a run in progress. Status is read from live until the
// fetch settles.
type activeRun struct {
	mu   sync.Mutex
	run  Run
	live *status.Tracker
}

func (a *activeRun) update(fn func(r *Run)) {
	a.mu.Lock()
	defer a.mu.Unlock()
	fn(&a.run)
}

func (a *activeRun) snapshot() Run {
	a.mu.Lock()
	defer a.mu.Unlock()
	r := a.run
	if r.Status == nil {
		r.Status = a.live.Snapshot()
	}
	return r
}

func (d *Daemon) beginRun(trigger string) *activeRun {
	run := &activeRun{
		run:  Run{ID: uuid.NewString(), Trigger: trigger, Started: time.Now().UTC()},
		live: status.NewTracker(nil),
	}
	d.stateMu.Lock()
	d.current = run
	d.stateMu.Unlock()
	return run
}

func (d *Daemon) execute(ctx context.Context, run *activeRun) error {
	cfg := d.GetConfig()
	id := run.snapshot().ID
	logger := d.opts.Logger.With(logfields.RunID(id))
	logger.Info("Backup run started", slog.Int("relays", len(cfg.Relays)))

	err := d.fetchAndSave(ctx, cfg, id, run, logger)

	finished := time.Now().UTC()
	run.update(func(r *Run) {
		r.Finished = &finished
		if err != nil {
			r.Error = err.Error()
		}
	})

	done := run.snapshot()
	d.stateMu.Lock()
	d.current = nil
	d.lastRun = &done
	d.stateMu.Unlock()

	if err != nil {
		logger.Error("Backup run failed", logfields.Error(err))
		return err
	}
	logger.Info("Backup run finished",
		logfields.Events(done.Events),
		logfields.Backup(done.Backup),
		slog.Int("failed_relays", done.Failed),
		logfields.DurationMS(float64(finished.Sub(done.Started).Milliseconds())))
	return nil
}

func (d *Daemon) fetchAndSave(ctx context.Context, cfg *config.Config, id string, run *activeRun, logger *slog.Logger) error {
	pubkey, err := keys.ParsePubkey(cfg.Daemon.Pubkey)
	if err != nil {
		return err
	}

	engine := exchange.New(exchange.Config{
		BatchSize:   cfg.Exchange.BatchSize,
		IdleTimeout: cfg.Exchange.IdleTimeout,
		AckTimeout:  cfg.Exchange.AckTimeout,
	}, d.opts.Dialer).
		WithRecorder(d.opts.Recorder).
		WithLogger(logger).
		WithObservers(func(op string) status.Observer {
			observers := status.Observers{
				status.ObserverFunc(run.live.Update),
				status.LogObserver{Logger: logger, Operation: op},
			}
			if d.opts.Notifier != nil {
				observers = append(observers, d.opts.Notifier.Observer(op, id))
			}
			return observers
		})

	res := engine.Fetch(ctx, cfg.Relays, event.AuthorFilters(pubkey, cfg.Daemon.Kinds), pubkey)

	run.update(func(r *Run) {
		r.Relays = len(res.Outcomes)
		r.Failed = len(exchange.Failed(res.Outcomes))
		r.Events = len(res.Events)
		r.Status = res.Status
	})

	if len(res.Events) == 0 {
		logger.Warn("No events fetched, skipping backup")
		return nil
	}

	policy := retry.FromConfig(cfg.Daemon.Retry)
	var info backup.Info
	err = policy.Do(ctx, func(ctx context.Context) error {
		var saveErr error
		info, saveErr = d.store.Save(ctx, cfg.Daemon.BackupName, res.Events)
		return saveErr
	}, func(attempt int, err error) {
		d.opts.Recorder.IncSinkRetry()
		logger.Warn("Retrying backup write", slog.Int("attempt", attempt), logfields.Error(err))
	})
	if err != nil {
		d.opts.Recorder.IncSinkRetryExhausted()
		return err
	}

	run.update(func(r *Run) { r.Backup = info.Name })
	return nil
}
