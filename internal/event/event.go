// Package event holds the record and query types exchanged with relays.
package event

import (
	"bytes"
	"encoding/json"
	"errors"
)

// KindContactList is the kind number for contact lists. These are large and
// are only kept when authored by the requested pubkey.
const KindContactList = 3

// Event is an immutable relay record. The header fields are decoded for
// routing decisions; the original JSON object is kept and forwarded verbatim.
type Event struct {
	ID        string
	PubKey    string
	Kind      int
	CreatedAt int64

	raw json.RawMessage
}

type header struct {
	ID        string `json:"id"`
	PubKey    string `json:"pubkey"`
	Kind      int    `json:"kind"`
	CreatedAt int64  `json:"created_at"`
}

var errMissingID = errors.New("event has no id")

// Parse decodes a JSON event object. The input is copied.
func Parse(data []byte) (Event, error) {
	var h header
	if err := json.Unmarshal(data, &h); err != nil {
		return Event{}, err
	}
	if h.ID == "" {
		return Event{}, errMissingID
	}
	return Event{
		ID:        h.ID,
		PubKey:    h.PubKey,
		Kind:      h.Kind,
		CreatedAt: h.CreatedAt,
		raw:       bytes.Clone(data),
	}, nil
}

// Raw returns the original JSON object. Callers must not modify it.
func (e Event) Raw() json.RawMessage {
	return e.raw
}

// MarshalJSON emits the original bytes so unknown fields and signatures survive
// a fetch/publish round trip untouched.
func (e Event) MarshalJSON() ([]byte, error) {
	if len(e.raw) > 0 {
		return e.raw, nil
	}
	return json.Marshal(header{ID: e.ID, PubKey: e.PubKey, Kind: e.Kind, CreatedAt: e.CreatedAt})
}

// UnmarshalJSON implements json.Unmarshaler via Parse.
func (e *Event) UnmarshalJSON(data []byte) error {
	parsed, err := Parse(data)
	if err != nil {
		return err
	}
	*e = parsed
	return nil
}

// ParseList decodes a JSON array of events.
func ParseList(data []byte) ([]Event, error) {
	var events []Event
	if err := json.Unmarshal(data, &events); err != nil {
		return nil, err
	}
	return events, nil
}
