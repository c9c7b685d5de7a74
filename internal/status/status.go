// Package status tracks the per-relay phase and transfer count of one
// fetch or publish operation and reports every change to an Observer.
package status

import (
	"fmt"
	"log/slog"
	"maps"
	"slices"
	"strings"
	"sync"

	"git.home.luguber.info/inful/nostrbackup/internal/logfields"
)

// Phase is the lifecycle stage of one relay exchange.
type Phase string

const (
	PhaseStarting    Phase = "Starting"
	PhaseDownloading Phase = "Downloading"
	PhaseSending     Phase = "Sending"
	PhaseDone        Phase = "Done"
	PhaseError       Phase = "Error"

	// PhaseUnchanged leaves the current phase as is (count-only update).
	PhaseUnchanged Phase = ""
)

// Terminal reports whether p ends a relay exchange.
func (p Phase) Terminal() bool {
	return p == PhaseDone || p == PhaseError
}

// Entry is the observable state of one relay.
type Entry struct {
	Phase Phase `json:"phase"`
	Count int   `json:"count"`
}

// Observer is notified after every status mutation. Implementations are
// called with the tracker lock held and must not call back into the tracker.
type Observer interface {
	OnStatusChange(relay string, phase Phase, delta int)
}

// ObserverFunc adapts a function to Observer.
type ObserverFunc func(relay string, phase Phase, delta int)

func (f ObserverFunc) OnStatusChange(relay string, phase Phase, delta int) { f(relay, phase, delta) }

// Observers fans one notification out to several observers in order.
type Observers []Observer

func (o Observers) OnStatusChange(relay string, phase Phase, delta int) {
	for _, obs := range o {
		if obs != nil {
			obs.OnStatusChange(relay, phase, delta)
		}
	}
}

// Tracker holds relay -> Entry for a single operation. Safe for concurrent use.
type Tracker struct {
	mu       sync.Mutex
	entries  map[string]*Entry
	observer Observer
}

// NewTracker creates an empty tracker. observer may be nil.
func NewTracker(observer Observer) *Tracker {
	return &Tracker{entries: make(map[string]*Entry), observer: observer}
}

// Update sets the relay phase (unless PhaseUnchanged) and adds delta to its
// count. Negative deltas are ignored so counts never decrease.
func (t *Tracker) Update(relay string, phase Phase, delta int) {
	if delta < 0 {
		delta = 0
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	e, ok := t.entries[relay]
	if !ok {
		e = &Entry{}
		t.entries[relay] = e
	}
	if phase != PhaseUnchanged {
		e.Phase = phase
	}
	e.Count += delta

	if t.observer != nil {
		t.observer.OnStatusChange(relay, e.Phase, delta)
	}
}

// Get returns the entry for relay.
func (t *Tracker) Get(relay string) (Entry, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	e, ok := t.entries[relay]
	if !ok {
		return Entry{}, false
	}
	return *e, true
}

// Snapshot copies the current state.
func (t *Tracker) Snapshot() map[string]Entry {
	t.mu.Lock()
	defer t.mu.Unlock()
	out := make(map[string]Entry, len(t.entries))
	for relay, e := range t.entries {
		out[relay] = *e
	}
	return out
}

// Format renders a snapshot as "host: Phase (count)" lines sorted by relay.
func Format(snapshot map[string]Entry) string {
	if len(snapshot) == 0 {
		return ""
	}
	lines := make([]string, 0, len(snapshot))
	for _, relay := range slices.Sorted(maps.Keys(snapshot)) {
		e := snapshot[relay]
		lines = append(lines, fmt.Sprintf("%s: %s (%d)", logfields.RelayHost(relay), e.Phase, e.Count))
	}
	return strings.Join(lines, "\n")
}

// LogObserver logs phase transitions at info and count increments at debug.
type LogObserver struct {
	Logger    *slog.Logger
	Operation string
}

func (o LogObserver) OnStatusChange(relay string, phase Phase, delta int) {
	logger := o.Logger
	if logger == nil {
		logger = slog.Default()
	}
	attrs := []any{logfields.Operation(o.Operation), logfields.Relay(relay), logfields.Phase(string(phase))}
	if delta > 0 {
		logger.Debug("Relay transferred events", append(attrs, logfields.Count(delta))...)
		return
	}
	logger.Info("Relay status changed", attrs...)
}
