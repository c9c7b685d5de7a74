package relay

import (
	"context"
	stderrors "errors"
	"log/slog"
	"time"

	"git.home.luguber.info/inful/nostrbackup/internal/event"
	"git.home.luguber.info/inful/nostrbackup/internal/logfields"
	"git.home.luguber.info/inful/nostrbackup/internal/status"
	"git.home.luguber.info/inful/nostrbackup/internal/wire"
)

// PublishSession sends events to one relay in order, waiting for each
// acknowledgement before sending the next. The first rejection or timeout
// aborts the remaining events.
type PublishSession struct {
	Relay  string
	Events []event.Event

	Status *status.Tracker
	Dialer Dialer

	// AckTimeout bounds connect time, each send and the wait for each OK.
	AckTimeout time.Duration
	Logger     *slog.Logger

	state State
}

// State returns the session state after Run returns.
func (s *PublishSession) State() State { return s.state }

// Run performs the exchange. Acknowledged events stay counted when a later
// event fails.
func (s *PublishSession) Run(ctx context.Context) error {
	window := s.ackTimeout()
	s.state = StateConnecting

	dialCtx, cancelDial := context.WithTimeout(ctx, window)
	conn, err := s.Dialer.Dial(dialCtx, s.Relay)
	dialTimedOut := dialCtx.Err() == context.DeadlineExceeded && ctx.Err() == nil
	cancelDial()
	if err != nil {
		if dialTimedOut {
			return s.fail(timeoutError(ErrDialTimeout, s.Relay, window))
		}
		return s.fail(sessionError(ErrDial, s.Relay, err))
	}
	defer func() { _ = conn.Close() }()

	s.Status.Update(s.Relay, status.PhaseStarting, 0)

	frames := make(chan frame)
	done := make(chan struct{})
	defer close(done)
	go pump(conn, frames, done)

	ack := time.NewTimer(window)
	defer ack.Stop()

	s.state = StateCollecting
	for _, ev := range s.Events {
		s.Status.Update(s.Relay, status.PhaseSending, 0)

		data, err := wire.EncodeEvent(ev)
		if err != nil {
			return s.fail(sessionError(ErrMalformedFrame, s.Relay, err))
		}
		if err := sendWithin(ctx, conn, data, s.Relay, window, ErrAckTimeout); err != nil {
			return s.fail(err.WithContext("event", ev.ID))
		}

		ack.Reset(window)
		if err := s.awaitAck(ctx, ev.ID, frames, ack.C, window); err != nil {
			return s.fail(err)
		}
		s.Status.Update(s.Relay, status.PhaseUnchanged, 1)
	}

	s.state = StateDone
	s.Status.Update(s.Relay, status.PhaseDone, 0)
	return nil
}

func (s *PublishSession) awaitAck(ctx context.Context, id string, frames <-chan frame, expired <-chan time.Time, window time.Duration) error {
	for {
		select {
		case <-ctx.Done():
			return sessionError(ErrAborted, s.Relay, ctx.Err())

		case <-expired:
			return timeoutError(ErrAckTimeout, s.Relay, window).WithContext("event", id)

		case f := <-frames:
			if f.err != nil {
				if isCleanClose(f.err) {
					return sessionError(ErrUnexpectedClose, s.Relay, f.err)
				}
				return sessionError(ErrReceive, s.Relay, f.err)
			}
			env, err := wire.Decode(f.data)
			if err != nil {
				return sessionError(ErrMalformedFrame, s.Relay, err)
			}
			if env.Label != wire.LabelOK {
				continue
			}
			if env.EventID != id {
				s.logger().Debug("Ignoring acknowledgement for another event",
					logfields.Relay(s.Relay), slog.String("event", env.EventID))
				continue
			}
			if !env.Accepted {
				return sessionError(ErrRejected, s.Relay, stderrors.New(env.Message)).WithContext("event", id)
			}
			return nil
		}
	}
}

func (s *PublishSession) fail(err error) error {
	s.state = StateFailed
	s.Status.Update(s.Relay, status.PhaseError, 0)
	s.logger().Warn("Publish to relay failed", logfields.Relay(s.Relay), logfields.Error(err))
	return err
}

func (s *PublishSession) ackTimeout() time.Duration {
	if s.AckTimeout > 0 {
		return s.AckTimeout
	}
	return DefaultTimeout
}

func (s *PublishSession) logger() *slog.Logger {
	if s.Logger != nil {
		return s.Logger
	}
	return slog.Default()
}
