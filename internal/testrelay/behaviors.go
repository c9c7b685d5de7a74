package testrelay

import (
	"context"
	"fmt"
	"time"

	"git.home.luguber.info/inful/nostrbackup/internal/event"
)

// Serve answers a subscription with events followed by EOSE.
func Serve(events ...event.Event) Behavior {
	return func(ctx context.Context, p *Peer) {
		sub, err := p.ReadReq(ctx)
		if err != nil {
			return
		}
		for _, ev := range events {
			if p.Send("EVENT", sub, ev) != nil {
				return
			}
		}
		_ = p.Send("EOSE", sub)
	}
}

// Trickle answers a subscription with one event every interval, then EOSE.
func Trickle(interval time.Duration, events ...event.Event) Behavior {
	return func(ctx context.Context, p *Peer) {
		sub, err := p.ReadReq(ctx)
		if err != nil {
			return
		}
		for _, ev := range events {
			select {
			case <-time.After(interval):
			case <-ctx.Done():
				return
			}
			if p.Send("EVENT", sub, ev) != nil {
				return
			}
		}
		_ = p.Send("EOSE", sub)
	}
}

// Silent accepts the subscription and never answers.
func Silent() Behavior {
	return func(ctx context.Context, p *Peer) {
		_, _ = p.ReadReq(ctx)
		<-ctx.Done()
	}
}

// HangUpAfter sends events for the subscription and closes the connection
// without EOSE.
func HangUpAfter(events ...event.Event) Behavior {
	return func(ctx context.Context, p *Peer) {
		sub, err := p.ReadReq(ctx)
		if err != nil {
			return
		}
		for _, ev := range events {
			if p.Send("EVENT", sub, ev) != nil {
				return
			}
		}
		p.Hangup()
	}
}

// Accept acknowledges every published event.
func Accept() Behavior {
	return Acknowledge(func(event.Event) (bool, string) { return true, "" })
}

// RejectID acknowledges every event except id, which is rejected.
func RejectID(id string) Behavior {
	return Acknowledge(func(ev event.Event) (bool, string) {
		if ev.ID == id {
			return false, "blocked: test"
		}
		return true, ""
	})
}

// Acknowledge answers each published event with OK using decide.
func Acknowledge(decide func(event.Event) (bool, string)) Behavior {
	return func(ctx context.Context, p *Peer) {
		for {
			ev, err := p.ReadEvent(ctx)
			if err != nil {
				return
			}
			ok, msg := decide(ev)
			if p.Send("OK", ev.ID, ok, msg) != nil {
				return
			}
		}
	}
}

// Event builds a test event.
func Event(id, pubkey string, kind int) event.Event {
	ev, err := event.Parse(fmt.Appendf(nil, `{"id":%q,"pubkey":%q,"kind":%d,"created_at":1700000000,"tags":[],"content":"","sig":""}`, id, pubkey, kind))
	if err != nil {
		panic(err)
	}
	return ev
}
