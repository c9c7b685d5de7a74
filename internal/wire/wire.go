// Package wire encodes and decodes relay protocol frames.
//
// Every frame is a JSON array whose first element is a label:
//
//	client -> relay: ["REQ", sub, filter...] ["EVENT", event] ["CLOSE", sub]
//	relay -> client: ["EVENT", sub, event] ["EOSE", sub] ["OK", id, accepted, msg]
//	                 ["NOTICE", msg] ["CLOSED", sub, msg]
package wire

import (
	"encoding/json"
	"errors"
	"fmt"

	"git.home.luguber.info/inful/nostrbackup/internal/event"
)

// Frame labels.
const (
	LabelReq    = "REQ"
	LabelEvent  = "EVENT"
	LabelClose  = "CLOSE"
	LabelEOSE   = "EOSE"
	LabelOK     = "OK"
	LabelNotice = "NOTICE"
	LabelClosed = "CLOSED"
)

// ErrMalformed is returned for frames that are not a labelled JSON array or
// whose elements have the wrong shape for their label.
var ErrMalformed = errors.New("malformed frame")

// Envelope is a decoded relay-to-client frame. Fields are populated according
// to Label; unknown labels decode with only Label set. The payload of an EVENT
// frame is left raw until ParseEvent, so frames for other subscriptions are
// never parsed.
type Envelope struct {
	Label          string
	SubscriptionID string
	RawEvent       json.RawMessage
	EventID        string
	Accepted       bool
	Message        string
}

// EncodeReq builds a subscription request.
func EncodeReq(subscriptionID string, filters []event.Filter) ([]byte, error) {
	frame := make([]any, 0, 2+len(filters))
	frame = append(frame, LabelReq, subscriptionID)
	for _, f := range filters {
		frame = append(frame, f)
	}
	return json.Marshal(frame)
}

// EncodeEvent builds a publish frame.
func EncodeEvent(ev event.Event) ([]byte, error) {
	return json.Marshal([]any{LabelEvent, ev})
}

// EncodeClose builds a subscription close frame.
func EncodeClose(subscriptionID string) ([]byte, error) {
	return json.Marshal([]any{LabelClose, subscriptionID})
}

// Decode parses a relay-to-client frame.
func Decode(data []byte) (Envelope, error) {
	var parts []json.RawMessage
	if err := json.Unmarshal(data, &parts); err != nil {
		return Envelope{}, fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	if len(parts) == 0 {
		return Envelope{}, fmt.Errorf("%w: empty array", ErrMalformed)
	}

	var env Envelope
	if err := json.Unmarshal(parts[0], &env.Label); err != nil {
		return Envelope{}, fmt.Errorf("%w: label: %v", ErrMalformed, err)
	}

	switch env.Label {
	case LabelEvent:
		if len(parts) < 3 {
			return Envelope{}, fmt.Errorf("%w: EVENT needs subscription and event", ErrMalformed)
		}
		if err := json.Unmarshal(parts[1], &env.SubscriptionID); err != nil {
			return Envelope{}, fmt.Errorf("%w: subscription id: %v", ErrMalformed, err)
		}
		env.RawEvent = parts[2]
	case LabelEOSE:
		if len(parts) < 2 {
			return Envelope{}, fmt.Errorf("%w: EOSE needs subscription", ErrMalformed)
		}
		if err := json.Unmarshal(parts[1], &env.SubscriptionID); err != nil {
			return Envelope{}, fmt.Errorf("%w: subscription id: %v", ErrMalformed, err)
		}
	case LabelOK:
		if len(parts) < 3 {
			return Envelope{}, fmt.Errorf("%w: OK needs id and status", ErrMalformed)
		}
		if err := json.Unmarshal(parts[1], &env.EventID); err != nil {
			return Envelope{}, fmt.Errorf("%w: event id: %v", ErrMalformed, err)
		}
		if err := json.Unmarshal(parts[2], &env.Accepted); err != nil {
			return Envelope{}, fmt.Errorf("%w: accepted flag: %v", ErrMalformed, err)
		}
		if len(parts) > 3 {
			_ = json.Unmarshal(parts[3], &env.Message)
		}
	case LabelNotice:
		if len(parts) > 1 {
			_ = json.Unmarshal(parts[1], &env.Message)
		}
	case LabelClosed:
		if len(parts) < 2 {
			return Envelope{}, fmt.Errorf("%w: CLOSED needs subscription", ErrMalformed)
		}
		if err := json.Unmarshal(parts[1], &env.SubscriptionID); err != nil {
			return Envelope{}, fmt.Errorf("%w: subscription id: %v", ErrMalformed, err)
		}
		if len(parts) > 2 {
			_ = json.Unmarshal(parts[2], &env.Message)
		}
	}
	return env, nil
}

// ParseEvent parses the payload of an EVENT frame.
func (e Envelope) ParseEvent() (event.Event, error) {
	if e.Label != LabelEvent {
		return event.Event{}, fmt.Errorf("%w: %s frame carries no event", ErrMalformed, e.Label)
	}
	ev, err := event.Parse(e.RawEvent)
	if err != nil {
		return event.Event{}, fmt.Errorf("%w: event: %v", ErrMalformed, err)
	}
	return ev, nil
}
