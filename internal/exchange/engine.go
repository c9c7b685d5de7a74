// Package exchange fetches and publishes events across many relays in
// bounded concurrent waves.
package exchange

import (
	"context"
	"log/slog"
	"time"

	"git.home.luguber.info/inful/nostrbackup/internal/dedup"
	"git.home.luguber.info/inful/nostrbackup/internal/event"
	"git.home.luguber.info/inful/nostrbackup/internal/logfields"
	"git.home.luguber.info/inful/nostrbackup/internal/metrics"
	"git.home.luguber.info/inful/nostrbackup/internal/relay"
	"git.home.luguber.info/inful/nostrbackup/internal/status"
)

// Config bounds an operation.
type Config struct {
	BatchSize   int
	IdleTimeout time.Duration
	AckTimeout  time.Duration
}

// DefaultConfig returns batches of 10 with 10s idle and ack windows.
func DefaultConfig() Config {
	return Config{
		BatchSize:   DefaultBatchSize,
		IdleTimeout: relay.DefaultTimeout,
		AckTimeout:  relay.DefaultTimeout,
	}
}

func (c Config) withDefaults() Config {
	d := DefaultConfig()
	if c.BatchSize < 1 {
		c.BatchSize = d.BatchSize
	}
	if c.IdleTimeout <= 0 {
		c.IdleTimeout = d.IdleTimeout
	}
	if c.AckTimeout <= 0 {
		c.AckTimeout = d.AckTimeout
	}
	return c
}

// Progress describes a settled wave.
type Progress struct {
	Operation string
	Wave      int
	Waves     int
	Completed int
	Failed    int
	Total     int
}

// ProgressFunc receives wave progress.
type ProgressFunc func(Progress)

// ObserverFactory returns the status observer for one operation, or nil.
type ObserverFactory func(operation string) status.Observer

// Engine runs fetch and publish operations.
type Engine struct {
	cfg       Config
	dialer    relay.Dialer
	observers ObserverFactory
	recorder  metrics.Recorder
	logger    *slog.Logger
	progress  ProgressFunc
}

// New creates an engine. A nil dialer dials relays over websocket.
func New(cfg Config, dialer relay.Dialer) *Engine {
	if dialer == nil {
		dialer = relay.WebsocketDialer{}
	}
	return &Engine{
		cfg:      cfg.withDefaults(),
		dialer:   dialer,
		recorder: metrics.NoopRecorder{},
		logger:   slog.Default(),
	}
}

func (e *Engine) WithObservers(f ObserverFactory) *Engine {
	e.observers = f
	return e
}

func (e *Engine) WithRecorder(r metrics.Recorder) *Engine {
	if r != nil {
		e.recorder = r
	}
	return e
}

func (e *Engine) WithLogger(l *slog.Logger) *Engine {
	if l != nil {
		e.logger = l
	}
	return e
}

func (e *Engine) WithProgress(f ProgressFunc) *Engine {
	e.progress = f
	return e
}

// Config returns the effective configuration.
func (e *Engine) Config() Config { return e.cfg }

// FetchResult is the aggregate of a fetch operation.
type FetchResult struct {
	// Events are deduplicated by id in first-arrival order.
	Events   []event.Event
	Status   map[string]status.Entry
	Outcomes []Outcome
}

// PublishResult is the aggregate of a publish operation.
type PublishResult struct {
	Status   map[string]status.Entry
	Outcomes []Outcome
}

// Failed returns the outcomes of relays whose exchange failed.
func Failed(outcomes []Outcome) []Outcome {
	var out []Outcome
	for _, o := range outcomes {
		if !o.OK() {
			out = append(out, o)
		}
	}
	return out
}

// Fetch subscribes to every relay with filters and merges what they return.
// Contact lists not signed by author are dropped. Per-relay failures are
// reported through Status and Outcomes only.
func (e *Engine) Fetch(ctx context.Context, relays []string, filters []event.Filter, author string) *FetchResult {
	const op = metrics.OperationFetch
	start := time.Now()
	store := dedup.New()
	tracker := e.newTracker(op)

	outcomes := RunBatches(ctx, relays, e.cfg.BatchSize, func(ctx context.Context, url string) error {
		s := &relay.FetchSession{
			Relay:       url,
			Filters:     filters,
			Author:      author,
			Store:       store,
			Status:      tracker,
			Dialer:      e.dialer,
			IdleTimeout: e.cfg.IdleTimeout,
			Logger:      e.logger,
		}
		return s.Run(ctx)
	}, e.onWave(op, len(relays)))

	res := &FetchResult{Events: store.Values(), Status: tracker.Snapshot(), Outcomes: outcomes}
	e.finish(op, start, outcomes, logfields.Events(len(res.Events)))
	return res
}

// Publish sends every event, in order, to every relay.
func (e *Engine) Publish(ctx context.Context, relays []string, events []event.Event) *PublishResult {
	const op = metrics.OperationPublish
	start := time.Now()
	tracker := e.newTracker(op)

	outcomes := RunBatches(ctx, relays, e.cfg.BatchSize, func(ctx context.Context, url string) error {
		s := &relay.PublishSession{
			Relay:      url,
			Events:     events,
			Status:     tracker,
			Dialer:     e.dialer,
			AckTimeout: e.cfg.AckTimeout,
			Logger:     e.logger,
		}
		return s.Run(ctx)
	}, e.onWave(op, len(relays)))

	res := &PublishResult{Status: tracker.Snapshot(), Outcomes: outcomes}
	e.finish(op, start, outcomes, logfields.Events(len(events)))
	return res
}

func (e *Engine) newTracker(op string) *status.Tracker {
	observers := status.Observers{metrics.StatusObserver{Recorder: e.recorder, Operation: op}}
	if e.observers != nil {
		observers = append(observers, e.observers(op))
	}
	return status.NewTracker(observers)
}

func (e *Engine) onWave(op string, total int) WaveFunc {
	completed := 0
	last := time.Now()
	return func(wave, waves int, outcomes []Outcome) {
		e.recorder.ObserveWaveDuration(op, time.Since(last))
		e.recorder.SetWaveSize(len(outcomes))

		failed := 0
		for _, o := range outcomes {
			result := resultLabel(o.Err)
			e.recorder.ObserveSessionDuration(op, o.Duration, result)
			e.recorder.IncSessionResult(op, result)
			if !o.OK() {
				failed++
			}
		}
		completed += len(outcomes)

		e.logger.Debug("Wave settled",
			logfields.Operation(op),
			logfields.Wave(wave),
			logfields.Waves(waves),
			slog.Int("relays", len(outcomes)),
			slog.Int("failed", failed))

		if e.progress != nil {
			e.progress(Progress{Operation: op, Wave: wave, Waves: waves, Completed: completed, Failed: failed, Total: total})
		}
		last = time.Now()
	}
}

func (e *Engine) finish(op string, start time.Time, outcomes []Outcome, extra slog.Attr) {
	d := time.Since(start)
	e.recorder.ObserveOperationDuration(op, d)
	e.logger.Info("Operation complete",
		logfields.Operation(op),
		slog.Int("relays", len(outcomes)),
		slog.Int("failed", len(Failed(outcomes))),
		extra,
		logfields.DurationMS(float64(d.Milliseconds())))
}

func resultLabel(err error) metrics.ResultLabel {
	if err == nil {
		return metrics.ResultSuccess
	}
	if kind := relay.Kind(err); kind != "" {
		return metrics.ResultLabel(kind)
	}
	return metrics.ResultFailed
}
