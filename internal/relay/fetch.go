package relay

import (
	"context"
	stderrors "errors"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"git.home.luguber.info/inful/nostrbackup/internal/dedup"
	"git.home.luguber.info/inful/nostrbackup/internal/event"
	"git.home.luguber.info/inful/nostrbackup/internal/logfields"
	"git.home.luguber.info/inful/nostrbackup/internal/status"
	"git.home.luguber.info/inful/nostrbackup/internal/wire"
)

// FetchSession subscribes to one relay and collects events until the relay
// signals end of stored events, closes the connection, or goes idle.
type FetchSession struct {
	Relay   string
	Filters []event.Filter
	// Author is the requested pubkey. Contact lists from other authors are
	// dropped. Empty disables the check.
	Author string

	Store  *dedup.Store
	Status *status.Tracker
	Dialer Dialer

	// IdleTimeout bounds connect time, each send and the gap between
	// accepted events.
	IdleTimeout time.Duration
	Logger      *slog.Logger

	state State
}

// State returns the session state after Run returns.
func (s *FetchSession) State() State { return s.state }

// Run performs the exchange. The returned error is a classified session
// error; the relay status always ends in Done or Error.
func (s *FetchSession) Run(ctx context.Context) error {
	logger := s.logger()
	idleWindow := s.idleTimeout()
	s.state = StateConnecting
	s.Status.Update(s.Relay, status.PhaseStarting, 0)

	dialCtx, cancelDial := context.WithTimeout(ctx, idleWindow)
	conn, err := s.Dialer.Dial(dialCtx, s.Relay)
	dialTimedOut := dialCtx.Err() == context.DeadlineExceeded && ctx.Err() == nil
	cancelDial()
	if err != nil {
		if dialTimedOut {
			return s.fail(timeoutError(ErrDialTimeout, s.Relay, idleWindow))
		}
		return s.fail(sessionError(ErrDial, s.Relay, err))
	}
	defer func() { _ = conn.Close() }()

	idle := time.NewTimer(idleWindow)
	defer idle.Stop()

	subID := uuid.NewString()
	req, err := wire.EncodeReq(subID, s.Filters)
	if err != nil {
		return s.fail(sessionError(ErrMalformedFrame, s.Relay, err))
	}
	s.Status.Update(s.Relay, status.PhaseDownloading, 0)
	if err := sendWithin(ctx, conn, req, s.Relay, idleWindow, ErrIdleTimeout); err != nil {
		return s.fail(err)
	}
	s.state = StateSubscribed
	logger.Debug("Subscribed", logfields.Relay(s.Relay), logfields.Subscription(subID))

	frames := make(chan frame)
	done := make(chan struct{})
	defer close(done)
	go pump(conn, frames, done)

	for {
		select {
		case <-ctx.Done():
			return s.fail(sessionError(ErrAborted, s.Relay, ctx.Err()))

		case <-idle.C:
			return s.fail(timeoutError(ErrIdleTimeout, s.Relay, idleWindow))

		case f := <-frames:
			if f.err != nil {
				if isCleanClose(f.err) {
					// A relay hanging up ends its stream; what arrived is kept.
					return s.finish()
				}
				return s.fail(sessionError(ErrReceive, s.Relay, f.err))
			}

			env, err := wire.Decode(f.data)
			if err != nil {
				return s.fail(sessionError(ErrMalformedFrame, s.Relay, err))
			}

			switch env.Label {
			case wire.LabelEvent:
				if env.SubscriptionID != subID {
					continue
				}
				ev, err := env.ParseEvent()
				if err != nil {
					return s.fail(sessionError(ErrMalformedFrame, s.Relay, err))
				}
				idle.Reset(idleWindow)
				s.state = StateCollecting
				s.accept(ev)

			case wire.LabelEOSE:
				if env.SubscriptionID != subID {
					continue
				}
				s.state = StateClosing
				if closeFrame, err := wire.EncodeClose(subID); err == nil {
					_ = sendWithin(ctx, conn, closeFrame, s.Relay, idleWindow, ErrIdleTimeout)
				}
				return s.finish()

			case wire.LabelClosed:
				if env.SubscriptionID != subID {
					continue
				}
				return s.fail(sessionError(ErrSubscriptionShut, s.Relay, stderrors.New(env.Message)))

			case wire.LabelNotice:
				logger.Debug("Relay notice", logfields.Relay(s.Relay), slog.String("message", env.Message))
			}
		}
	}
}

func (s *FetchSession) accept(ev event.Event) {
	if ev.Kind == event.KindContactList && s.Author != "" && ev.PubKey != s.Author {
		return
	}
	s.Status.Update(s.Relay, status.PhaseUnchanged, 1)
	s.Store.Add(ev)
}

func (s *FetchSession) finish() error {
	s.state = StateDone
	s.Status.Update(s.Relay, status.PhaseDone, 0)
	return nil
}

func (s *FetchSession) fail(err error) error {
	s.state = StateFailed
	s.Status.Update(s.Relay, status.PhaseError, 0)
	s.logger().Warn("Fetch from relay failed", logfields.Relay(s.Relay), logfields.Error(err))
	return err
}

func (s *FetchSession) idleTimeout() time.Duration {
	if s.IdleTimeout > 0 {
		return s.IdleTimeout
	}
	return DefaultTimeout
}

func (s *FetchSession) logger() *slog.Logger {
	if s.Logger != nil {
		return s.Logger
	}
	return slog.Default()
}
