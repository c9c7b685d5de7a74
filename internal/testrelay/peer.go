package testrelay

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"git.home.luguber.info/inful/nostrbackup/internal/event"
)

// Peer is the relay side of one connection.
type Peer struct {
	URL  string
	conn *conn

	mu       sync.Mutex
	received [][]byte
}

// Next returns the next client frame split into its JSON elements.
// Frames the client sent before closing are still returned.
func (p *Peer) Next(ctx context.Context) ([]json.RawMessage, error) {
	var data []byte
	select {
	case data = <-p.conn.toRelay:
	default:
		select {
		case data = <-p.conn.toRelay:
		case <-p.conn.closed:
			return nil, errClosed
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	p.mu.Lock()
	p.received = append(p.received, data)
	p.mu.Unlock()
	var parts []json.RawMessage
	if err := json.Unmarshal(data, &parts); err != nil {
		return nil, err
	}
	return parts, nil
}

// ReadReq waits for a REQ frame and returns its subscription id.
func (p *Peer) ReadReq(ctx context.Context) (string, error) {
	parts, err := p.Next(ctx)
	if err != nil {
		return "", err
	}
	var label, sub string
	if len(parts) < 2 {
		return "", fmt.Errorf("short frame")
	}
	_ = json.Unmarshal(parts[0], &label)
	_ = json.Unmarshal(parts[1], &sub)
	if label != "REQ" {
		return "", fmt.Errorf("expected REQ, got %s", label)
	}
	return sub, nil
}

// ReadEvent waits for an EVENT frame and returns the published event.
func (p *Peer) ReadEvent(ctx context.Context) (event.Event, error) {
	parts, err := p.Next(ctx)
	if err != nil {
		return event.Event{}, err
	}
	var label string
	if len(parts) < 2 {
		return event.Event{}, fmt.Errorf("short frame")
	}
	_ = json.Unmarshal(parts[0], &label)
	if label != "EVENT" {
		return event.Event{}, fmt.Errorf("expected EVENT, got %s", label)
	}
	return event.Parse(parts[1])
}

// Send writes a frame built from elems to the client.
func (p *Peer) Send(elems ...any) error {
	data, err := json.Marshal(elems)
	if err != nil {
		return err
	}
	return p.SendRaw(data)
}

// SendRaw writes data to the client unchanged.
func (p *Peer) SendRaw(data []byte) error {
	select {
	case p.conn.fromRelay <- data:
		return nil
	case <-p.conn.closed:
		return errClosed
	}
}

// Hangup closes the connection from the relay side.
func (p *Peer) Hangup() {
	p.conn.hangupOnce.Do(func() { close(p.conn.hangup) })
}

// Closed is closed once the client closes the connection.
func (p *Peer) Closed() <-chan struct{} {
	return p.conn.closed
}

// Received returns every raw frame read so far.
func (p *Peer) Received() [][]byte {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([][]byte(nil), p.received...)
}
