// Package backup persists fetched events locally.
package backup

import (
	"context"
	"time"

	"git.home.luguber.info/inful/nostrbackup/internal/event"
)

// DefaultChunkSize is the largest payload slice stored in one row.
const DefaultChunkSize = 1 << 20

// Info describes a stored backup.
type Info struct {
	Name    string    `json:"name"`
	Events  int       `json:"events"`
	Size    int64     `json:"size"`
	Chunks  int       `json:"chunks"`
	Created time.Time `json:"created"`
}

// Store defines the interface for persisting and retrieving backups.
type Store interface {
	// Save stores events under a unique name derived from name.
	Save(ctx context.Context, name string, events []event.Event) (Info, error)

	// List returns all backups, newest first.
	List(ctx context.Context) ([]Info, error)

	// Load returns the events of a backup in their stored order.
	Load(ctx context.Context, name string) ([]event.Event, error)

	// Delete removes a backup.
	Delete(ctx context.Context, name string) error

	// Close closes the store and releases resources.
	Close() error
}
