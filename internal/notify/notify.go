// Package notify publishes relay status changes to NATS.
package notify

import (
	"encoding/json"
	"log/slog"
	"sync"
	"time"

	"github.com/nats-io/nats.go"

	"git.home.luguber.info/inful/nostrbackup/internal/config"
	"git.home.luguber.info/inful/nostrbackup/internal/foundation/errors"
	"git.home.luguber.info/inful/nostrbackup/internal/logfields"
	"git.home.luguber.info/inful/nostrbackup/internal/status"
)

// Publisher is the subset of *nats.Conn used for fan-out.
type Publisher interface {
	Publish(subject string, data []byte) error
}

// StatusMessage is the JSON payload of one status change.
type StatusMessage struct {
	Relay     string    `json:"relay"`
	Phase     string    `json:"phase"`
	Delta     int       `json:"delta"`
	Count     int       `json:"count"`
	Operation string    `json:"operation"`
	RunID     string    `json:"run_id,omitempty"`
	Time      time.Time `json:"time"`
}

// Notifier turns status changes into NATS messages on one subject.
type Notifier struct {
	pub     Publisher
	subject string
	logger  *slog.Logger
	now     func() time.Time
}

// New creates a notifier publishing through pub.
func New(pub Publisher, subject string, logger *slog.Logger) *Notifier {
	if logger == nil {
		logger = slog.Default()
	}
	return &Notifier{pub: pub, subject: subject, logger: logger, now: time.Now}
}

// Observer returns a status observer for one operation. Counts are kept per
// relay for the lifetime of the observer.
func (n *Notifier) Observer(operation, runID string) status.Observer {
	return &observer{n: n, operation: operation, runID: runID, counts: make(map[string]int)}
}

type observer struct {
	n         *Notifier
	operation string
	runID     string

	mu     sync.Mutex
	counts map[string]int
}

func (o *observer) OnStatusChange(relay string, phase status.Phase, delta int) {
	o.mu.Lock()
	o.counts[relay] += delta
	count := o.counts[relay]
	o.mu.Unlock()

	msg := StatusMessage{
		Relay:     relay,
		Phase:     string(phase),
		Delta:     delta,
		Count:     count,
		Operation: o.operation,
		RunID:     o.runID,
		Time:      o.n.now().UTC(),
	}
	data, err := json.Marshal(msg)
	if err != nil {
		return
	}
	if err := o.n.pub.Publish(o.n.subject, data); err != nil {
		o.n.logger.Debug("Failed to publish status change", logfields.Relay(relay), logfields.Error(err))
	}
}

// Client owns a NATS connection.
type Client struct {
	conn *nats.Conn
	*Notifier
}

// Connect dials the configured NATS server.
func Connect(cfg config.NATSConfig, logger *slog.Logger) (*Client, error) {
	conn, err := nats.Connect(cfg.URL,
		nats.Name("nostrbackup"),
		nats.MaxReconnects(-1),
	)
	if err != nil {
		return nil, errors.ConnectionError("failed to connect to NATS").
			WithCause(err).
			WithContext("url", cfg.URL).
			Build()
	}
	if logger == nil {
		logger = slog.Default()
	}
	logger.Info("NATS status notifier connected", slog.String("url", cfg.URL), slog.String("subject", cfg.Subject))
	return &Client{conn: conn, Notifier: New(conn, cfg.Subject, logger)}, nil
}

// Close flushes pending messages and closes the connection.
func (c *Client) Close() error {
	if c == nil || c.conn == nil {
		return nil
	}
	return c.conn.Drain()
}
