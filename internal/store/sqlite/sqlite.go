// Package sqlite is the reference message store: an append-only messages
// table with timestamps assigned on insert and full-snapshot fanout to live
// subscribers.
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/mattn/go-sqlite3"

	"github.com/vovakirdan/ctins/internal/store"
)

const schema = `
CREATE TABLE IF NOT EXISTS messages (
	id        TEXT PRIMARY KEY,
	room      TEXT NOT NULL,
	sender_id TEXT NOT NULL,
	text      TEXT NOT NULL,
	sent_at   INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_messages_room ON messages(room, sent_at);
`

// Store implements store.Store on SQLite.
type Store struct {
	db   *sql.DB
	subs *store.Subscribers

	mu     sync.Mutex // serializes inserts and snapshot publication
	last   time.Time
	closed bool
}

// New creates a SQLite store at dbPath and applies the schema.
func New(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}

	// SQLite works best with a single connection.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("apply schema: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping sqlite: %w", err)
	}

	return &Store{db: db, subs: store.NewSubscribers()}, nil
}

// Insert appends the document with a server-assigned timestamp and
// republishes the room's full set.
func (s *Store) Insert(ctx context.Context, room string, doc store.Document) (string, error) {
	if strings.TrimSpace(doc.Text) == "" || doc.ID == "" || doc.SenderID == "" {
		return "", store.ErrRejected
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return "", store.ErrClosed
	}

	at := s.serverTimeLocked()
	query := `INSERT INTO messages (id, room, sender_id, text, sent_at) VALUES (?, ?, ?, ?, ?)`
	if _, err := s.db.ExecContext(ctx, query, doc.ID, room, doc.SenderID, doc.Text, at.UnixMicro()); err != nil {
		var serr sqlite3.Error
		if errors.As(err, &serr) && serr.Code == sqlite3.ErrConstraint {
			return "", fmt.Errorf("duplicate document id %s: %w", doc.ID, store.ErrRejected)
		}
		return "", fmt.Errorf("insert message: %w", err)
	}

	snap, err := s.snapshotLocked(ctx, room)
	if err != nil {
		return "", err
	}
	s.subs.Publish(room, snap)
	return doc.ID, nil
}

// Subscribe registers fn and delivers the current set immediately. The feed
// of an embedded store cannot break, so errFn is never called.
func (s *Store) Subscribe(ctx context.Context, room string, fn func(store.Snapshot), _ func(error)) (func(), error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil, store.ErrClosed
	}

	snap, err := s.snapshotLocked(ctx, room)
	if err != nil {
		return nil, err
	}

	cancel := s.subs.Add(room, fn)
	fn(snap)
	return cancel, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	s.closed = true
	return s.db.Close()
}

// serverTimeLocked returns a strictly increasing timestamp. Caller holds the
// lock.
func (s *Store) serverTimeLocked() time.Time {
	t := time.Now()
	if !t.After(s.last) {
		t = s.last.Add(time.Microsecond)
	}
	s.last = t
	return t
}

// snapshotLocked reads the room's full set in insertion order.
func (s *Store) snapshotLocked(ctx context.Context, room string) (store.Snapshot, error) {
	query := `SELECT id, sender_id, text, sent_at FROM messages WHERE room = ? ORDER BY rowid`
	rows, err := s.db.QueryContext(ctx, query, room)
	if err != nil {
		return nil, fmt.Errorf("query snapshot: %w", err)
	}
	defer rows.Close()

	snap := make(store.Snapshot, 0, 16)
	for rows.Next() {
		var doc store.Document
		var micro int64
		if err := rows.Scan(&doc.ID, &doc.SenderID, &doc.Text, &micro); err != nil {
			return nil, fmt.Errorf("scan message: %w", err)
		}
		at := time.UnixMicro(micro)
		doc.SentAt = &at
		snap = append(snap, doc)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate snapshot: %w", err)
	}
	return snap, nil
}
