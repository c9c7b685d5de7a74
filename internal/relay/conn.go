// Package relay runs single-relay fetch and publish exchanges.
package relay

import (
	"context"
	"errors"
	"io"
	"time"

	foundation "git.home.luguber.info/inful/nostrbackup/internal/foundation/errors"
)

// Conn is a message-oriented connection to one relay.
type Conn interface {
	// Send writes one text frame.
	Send(ctx context.Context, data []byte) error
	// Receive blocks for the next frame. It returns io.EOF once the relay
	// closes the connection cleanly, and an error after Close.
	Receive() ([]byte, error)
	Close() error
}

// Dialer opens relay connections.
type Dialer interface {
	Dial(ctx context.Context, url string) (Conn, error)
}

// DialerFunc adapts a function to Dialer.
type DialerFunc func(ctx context.Context, url string) (Conn, error)

func (f DialerFunc) Dial(ctx context.Context, url string) (Conn, error) { return f(ctx, url) }

type frame struct {
	data []byte
	err  error
}

// pump forwards frames from conn until Receive fails or done is closed.
// It is the only goroutine reading from conn.
func pump(conn Conn, out chan<- frame, done <-chan struct{}) {
	for {
		data, err := conn.Receive()
		select {
		case out <- frame{data: data, err: err}:
		case <-done:
			return
		}
		if err != nil {
			return
		}
	}
}

// sendWithin writes one frame, giving up after window. Expiry is reported as
// the timeout kind and cancellation of ctx as ErrAborted.
func sendWithin(ctx context.Context, conn Conn, data []byte, relay string, window time.Duration, timeout *foundation.ClassifiedError) *foundation.ClassifiedError {
	sendCtx, cancel := context.WithTimeout(ctx, window)
	defer cancel()

	err := conn.Send(sendCtx, data)
	if err == nil {
		return nil
	}
	switch {
	case ctx.Err() != nil:
		return sessionError(ErrAborted, relay, ctx.Err())
	case sendCtx.Err() == context.DeadlineExceeded:
		return timeoutError(timeout, relay, window)
	default:
		return sessionError(ErrSend, relay, err)
	}
}

func isCleanClose(err error) bool {
	return errors.Is(err, io.EOF)
}
