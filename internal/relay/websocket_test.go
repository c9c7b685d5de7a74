package relay_test

import (
	"context"
	"encoding/json"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/net/websocket"

	"git.home.luguber.info/inful/nostrbackup/internal/dedup"
	"git.home.luguber.info/inful/nostrbackup/internal/event"
	foundation "git.home.luguber.info/inful/nostrbackup/internal/foundation/errors"
	"git.home.luguber.info/inful/nostrbackup/internal/relay"
	"git.home.luguber.info/inful/nostrbackup/internal/status"
)

func newWebsocketRelay(t *testing.T, handler func(ws *websocket.Conn)) string {
	t.Helper()
	srv := httptest.NewServer(websocket.Handler(handler))
	t.Cleanup(srv.Close)
	return "ws" + strings.TrimPrefix(srv.URL, "http")
}

func TestWebsocketFetchAndPublish(t *testing.T) {
	closed := make(chan string, 1)
	url := newWebsocketRelay(t, func(ws *websocket.Conn) {
		for {
			var msg string
			if err := websocket.Message.Receive(ws, &msg); err != nil {
				return
			}
			var parts []json.RawMessage
			if err := json.Unmarshal([]byte(msg), &parts); err != nil {
				return
			}
			var label string
			_ = json.Unmarshal(parts[0], &label)
			switch label {
			case "REQ":
				var sub string
				_ = json.Unmarshal(parts[1], &sub)
				_ = websocket.Message.Send(ws, `["EVENT","`+sub+`",{"id":"w1","pubkey":"aaaa","kind":1,"created_at":1,"content":"hi"}]`)
				_ = websocket.Message.Send(ws, `["EOSE","`+sub+`"]`)
			case "CLOSE":
				var sub string
				_ = json.Unmarshal(parts[1], &sub)
				closed <- sub
			case "EVENT":
				ev, err := event.Parse(parts[1])
				if err != nil {
					return
				}
				_ = websocket.Message.Send(ws, `["OK","`+ev.ID+`",true,""]`)
			}
		}
	})

	store := dedup.New()
	tracker := status.NewTracker(nil)
	fetch := &relay.FetchSession{
		Relay:       url,
		Filters:     []event.Filter{{Authors: []string{"aaaa"}}},
		Store:       store,
		Status:      tracker,
		Dialer:      relay.WebsocketDialer{},
		IdleTimeout: 2 * time.Second,
	}
	require.NoError(t, fetch.Run(t.Context()))
	require.Equal(t, 1, store.Len())

	select {
	case sub := <-closed:
		assert.NotEmpty(t, sub)
	case <-time.After(2 * time.Second):
		t.Fatal("relay never saw CLOSE")
	}

	publish := &relay.PublishSession{
		Relay:      url,
		Events:     store.Values(),
		Status:     tracker,
		Dialer:     relay.WebsocketDialer{},
		AckTimeout: 2 * time.Second,
	}
	require.NoError(t, publish.Run(t.Context()))

	e, _ := tracker.Get(url)
	assert.Equal(t, status.PhaseDone, e.Phase)
	assert.Equal(t, 2, e.Count, "one fetched plus one acknowledged in the shared tracker")
}

// stalledRelay accepts connections but never reads, so large writes fill the
// socket buffers and block.
func stalledRelay(t *testing.T) string {
	t.Helper()
	release := make(chan struct{})
	url := newWebsocketRelay(t, func(*websocket.Conn) { <-release })
	t.Cleanup(func() { close(release) })
	return url
}

func hugeEvent(t *testing.T) event.Event {
	t.Helper()
	raw := `{"id":"big","pubkey":"aaaa","kind":1,"created_at":1,"content":"` + strings.Repeat("x", 16<<20) + `"}`
	ev, err := event.Parse([]byte(raw))
	require.NoError(t, err)
	return ev
}

func TestWebsocketPublishStalledWriteTimesOut(t *testing.T) {
	url := stalledRelay(t)
	tracker := status.NewTracker(nil)
	publish := &relay.PublishSession{
		Relay:      url,
		Events:     []event.Event{hugeEvent(t)},
		Status:     tracker,
		Dialer:     relay.WebsocketDialer{},
		AckTimeout: 200 * time.Millisecond,
	}

	errc := make(chan error, 1)
	go func() { errc <- publish.Run(t.Context()) }()

	select {
	case err := <-errc:
		require.ErrorIs(t, err, relay.ErrAckTimeout)
		assert.Equal(t, foundation.CategoryTimeout, relay.Kind(err))
	case <-time.After(3 * time.Second):
		t.Fatal("publish stayed blocked on a relay that never reads")
	}
	e, _ := tracker.Get(url)
	assert.Equal(t, status.PhaseError, e.Phase)
	assert.Equal(t, relay.StateFailed, publish.State())
}

func TestWebsocketPublishStalledWriteHonoursCancel(t *testing.T) {
	url := stalledRelay(t)
	publish := &relay.PublishSession{
		Relay:      url,
		Events:     []event.Event{hugeEvent(t)},
		Status:     status.NewTracker(nil),
		Dialer:     relay.WebsocketDialer{},
		AckTimeout: 10 * time.Second,
	}

	ctx, cancel := context.WithCancel(t.Context())
	time.AfterFunc(100*time.Millisecond, cancel)

	errc := make(chan error, 1)
	go func() { errc <- publish.Run(ctx) }()

	select {
	case err := <-errc:
		require.ErrorIs(t, err, relay.ErrAborted)
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(3 * time.Second):
		t.Fatal("cancellation did not interrupt the write")
	}
}

func TestWebsocketConnSendCancelled(t *testing.T) {
	url := stalledRelay(t)
	conn, err := relay.WebsocketDialer{}.Dial(t.Context(), url)
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })

	ctx, cancel := context.WithCancel(t.Context())
	time.AfterFunc(100*time.Millisecond, cancel)

	errc := make(chan error, 1)
	go func() { errc <- conn.Send(ctx, hugeEvent(t).Raw()) }()

	select {
	case err := <-errc:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(3 * time.Second):
		t.Fatal("Send ignored cancellation")
	}
}
