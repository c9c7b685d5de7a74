package testrelay

import (
	"context"
	"errors"
	"io"
	"sync"
)

var errClosed = errors.New("use of closed connection")

// conn is the client side of an in-memory connection.
type conn struct {
	toRelay   chan []byte
	fromRelay chan []byte
	hangup    chan struct{}
	closed    chan struct{}

	hangupOnce sync.Once
	closeOnce  sync.Once
	onClose    func()
}

func newConn(onClose func()) *conn {
	return &conn{
		toRelay:   make(chan []byte, 1024),
		fromRelay: make(chan []byte),
		hangup:    make(chan struct{}),
		closed:    make(chan struct{}),
		onClose:   onClose,
	}
}

func (c *conn) Send(ctx context.Context, data []byte) error {
	select {
	case <-c.closed:
		return errClosed
	case <-c.hangup:
		return errClosed
	default:
	}
	select {
	case c.toRelay <- append([]byte(nil), data...):
		return nil
	case <-c.closed:
		return errClosed
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (c *conn) Receive() ([]byte, error) {
	select {
	case data := <-c.fromRelay:
		return data, nil
	case <-c.hangup:
		return nil, io.EOF
	case <-c.closed:
		return nil, errClosed
	}
}

func (c *conn) Close() error {
	c.closeOnce.Do(func() {
		close(c.closed)
		if c.onClose != nil {
			c.onClose()
		}
	})
	return nil
}
