package backup

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	_ "modernc.org/sqlite"

	"git.home.luguber.info/inful/nostrbackup/internal/event"
)

// SQLiteStore implements Store using SQLite. Each backup is stored as its
// JSON encoding split into fixed-size chunks.
type SQLiteStore struct {
	db        *sql.DB
	mu        sync.RWMutex
	chunkSize int
	now       func() time.Time
}

// NewSQLiteStore creates a new SQLite-based backup store.
// Use ":memory:" for in-memory database, or a file path for persistent storage.
// A chunkSize below one uses DefaultChunkSize.
func NewSQLiteStore(dbPath string, chunkSize int) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, wrap(ErrOpenFailed, err, "")
	}
	// Each :memory: connection is a separate database.
	db.SetMaxOpenConns(1)

	if chunkSize < 1 {
		chunkSize = DefaultChunkSize
	}
	store := &SQLiteStore{db: db, chunkSize: chunkSize, now: time.Now}
	if err := store.initialize(); err != nil {
		_ = db.Close()
		return nil, wrap(ErrSchemaFailed, err, "")
	}
	return store, nil
}

func (s *SQLiteStore) initialize() error {
	schema := `
	CREATE TABLE IF NOT EXISTS backups (
		name TEXT PRIMARY KEY,
		created INTEGER NOT NULL,
		events INTEGER NOT NULL,
		size INTEGER NOT NULL,
		chunks INTEGER NOT NULL
	);
	CREATE TABLE IF NOT EXISTS backup_chunks (
		name TEXT NOT NULL REFERENCES backups(name) ON DELETE CASCADE,
		idx INTEGER NOT NULL,
		size INTEGER NOT NULL,
		data BLOB NOT NULL,
		PRIMARY KEY (name, idx)
	);
	CREATE INDEX IF NOT EXISTS idx_backups_created ON backups(created);
	`
	_, err := s.db.Exec(schema)
	return err
}

// UniqueName prefixes name with the creation time in unix milliseconds.
func UniqueName(name string, at time.Time) string {
	name = strings.TrimSpace(name)
	if name == "" {
		name = "backup"
	}
	return fmt.Sprintf("%d_%s", at.UnixMilli(), name)
}

// Save implements Store.
func (s *SQLiteStore) Save(ctx context.Context, name string, events []event.Event) (Info, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if events == nil {
		events = []event.Event{}
	}
	payload, err := json.Marshal(events)
	if err != nil {
		return Info{}, wrap(ErrEncodeFailed, err, name)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return Info{}, wrap(ErrSaveFailed, err, name)
	}
	defer func() { _ = tx.Rollback() }()

	created, err := s.freeSlot(ctx, tx, name, s.now().Truncate(time.Millisecond))
	if err != nil {
		return Info{}, wrap(ErrSaveFailed, err, name)
	}
	info := Info{
		Name:    UniqueName(name, created),
		Events:  len(events),
		Size:    int64(len(payload)),
		Created: created.UTC(),
	}

	info.Chunks = (len(payload) + s.chunkSize - 1) / s.chunkSize
	if _, err := tx.ExecContext(ctx,
		"INSERT INTO backups (name, created, events, size, chunks) VALUES (?, ?, ?, ?, ?)",
		info.Name, created.UnixMilli(), info.Events, info.Size, info.Chunks,
	); err != nil {
		return Info{}, wrap(ErrSaveFailed, err, info.Name)
	}

	for idx := 0; idx < info.Chunks; idx++ {
		offset := idx * s.chunkSize
		chunk := payload[offset:min(offset+s.chunkSize, len(payload))]
		if _, err := tx.ExecContext(ctx,
			"INSERT INTO backup_chunks (name, idx, size, data) VALUES (?, ?, ?, ?)",
			info.Name, idx, len(chunk), chunk,
		); err != nil {
			return Info{}, wrap(ErrSaveFailed, err, info.Name)
		}
	}
	if err := tx.Commit(); err != nil {
		return Info{}, wrap(ErrSaveFailed, err, info.Name)
	}
	return info, nil
}

// freeSlot returns the first millisecond at or after at whose unique name is
// not taken yet.
func (s *SQLiteStore) freeSlot(ctx context.Context, tx *sql.Tx, name string, at time.Time) (time.Time, error) {
	for {
		var taken int
		err := tx.QueryRowContext(ctx, "SELECT 1 FROM backups WHERE name = ?", UniqueName(name, at)).Scan(&taken)
		switch {
		case errors.Is(err, sql.ErrNoRows):
			return at, nil
		case err != nil:
			return time.Time{}, err
		}
		at = at.Add(time.Millisecond)
	}
}

// List implements Store.
func (s *SQLiteStore) List(ctx context.Context) ([]Info, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx,
		"SELECT name, created, events, size, chunks FROM backups ORDER BY created DESC, name DESC",
	)
	if err != nil {
		return nil, wrap(ErrQueryFailed, err, "")
	}
	defer rows.Close()

	var out []Info
	for rows.Next() {
		var info Info
		var created int64
		if err := rows.Scan(&info.Name, &created, &info.Events, &info.Size, &info.Chunks); err != nil {
			return nil, wrap(ErrQueryFailed, err, "")
		}
		info.Created = time.UnixMilli(created).UTC()
		out = append(out, info)
	}
	if err := rows.Err(); err != nil {
		return nil, wrap(ErrQueryFailed, err, "")
	}
	return out, nil
}

// Load implements Store.
func (s *SQLiteStore) Load(ctx context.Context, name string) ([]event.Event, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var expected int
	err := s.db.QueryRowContext(ctx, "SELECT chunks FROM backups WHERE name = ?", name).Scan(&expected)
	if err == sql.ErrNoRows {
		return nil, wrap(ErrNotFound, nil, name)
	}
	if err != nil {
		return nil, wrap(ErrQueryFailed, err, name)
	}

	rows, err := s.db.QueryContext(ctx,
		"SELECT data FROM backup_chunks WHERE name = ? ORDER BY idx", name,
	)
	if err != nil {
		return nil, wrap(ErrQueryFailed, err, name)
	}
	defer rows.Close()

	var payload []byte
	var got int
	for rows.Next() {
		var chunk []byte
		if err := rows.Scan(&chunk); err != nil {
			return nil, wrap(ErrQueryFailed, err, name)
		}
		payload = append(payload, chunk...)
		got++
	}
	if err := rows.Err(); err != nil {
		return nil, wrap(ErrQueryFailed, err, name)
	}
	if got != expected {
		return nil, wrap(ErrDecodeFailed, fmt.Errorf("found %d of %d chunks", got, expected), name)
	}

	events, err := event.ParseList(payload)
	if err != nil {
		return nil, wrap(ErrDecodeFailed, err, name)
	}
	return events, nil
}

// Delete implements Store.
func (s *SQLiteStore) Delete(ctx context.Context, name string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return wrap(ErrDeleteFailed, err, name)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, "DELETE FROM backup_chunks WHERE name = ?", name); err != nil {
		return wrap(ErrDeleteFailed, err, name)
	}
	res, err := tx.ExecContext(ctx, "DELETE FROM backups WHERE name = ?", name)
	if err != nil {
		return wrap(ErrDeleteFailed, err, name)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return wrap(ErrNotFound, nil, name)
	}
	if err := tx.Commit(); err != nil {
		return wrap(ErrDeleteFailed, err, name)
	}
	return nil
}

// Close closes the database connection.
func (s *SQLiteStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.db.Close()
}
