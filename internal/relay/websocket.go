package relay

import (
	"context"
	"sync"
	"time"

	"golang.org/x/net/websocket"
)

const defaultOrigin = "http://localhost/"

// WebsocketDialer dials relays over websocket.
type WebsocketDialer struct {
	// Origin is sent in the handshake; defaults to http://localhost/.
	Origin string
	// MaxFrameBytes caps a single inbound frame; zero keeps the library default.
	MaxFrameBytes int
}

// Dial opens a websocket connection bounded by ctx.
func (d WebsocketDialer) Dial(ctx context.Context, url string) (Conn, error) {
	origin := d.Origin
	if origin == "" {
		origin = defaultOrigin
	}
	cfg, err := websocket.NewConfig(url, origin)
	if err != nil {
		return nil, err
	}
	ws, err := cfg.DialContext(ctx)
	if err != nil {
		return nil, err
	}
	if d.MaxFrameBytes > 0 {
		ws.MaxPayloadBytes = d.MaxFrameBytes
	}
	return &wsConn{ws: ws}, nil
}

type wsConn struct {
	ws        *websocket.Conn
	sendMu    sync.Mutex
	closeOnce sync.Once
	closeErr  error
}

func (c *wsConn) Send(ctx context.Context, data []byte) error {
	c.sendMu.Lock()
	defer c.sendMu.Unlock()

	if err := ctx.Err(); err != nil {
		return err
	}
	deadline, _ := ctx.Deadline()
	if err := c.ws.SetWriteDeadline(deadline); err != nil {
		return err
	}
	// Cancellation interrupts a blocked write by expiring the deadline.
	stop := context.AfterFunc(ctx, func() {
		_ = c.ws.SetWriteDeadline(time.Now())
	})
	defer stop()

	if err := websocket.Message.Send(c.ws, string(data)); err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		return err
	}
	return nil
}

func (c *wsConn) Receive() ([]byte, error) {
	var data []byte
	if err := websocket.Message.Receive(c.ws, &data); err != nil {
		return nil, err
	}
	return data, nil
}

func (c *wsConn) Close() error {
	c.closeOnce.Do(func() {
		c.closeErr = c.ws.Close()
	})
	return c.closeErr
}
