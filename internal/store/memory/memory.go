// Package memory provides an in-process message store. It backs the client's
// offline mode and unit tests.
package memory

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/vovakirdan/ctins/internal/store"
)

// Store is a mutex-guarded append-only collection per room.
type Store struct {
	mu     sync.Mutex
	rooms  map[string][]store.Document
	last   time.Time
	closed bool

	subs *store.Subscribers

	// now is swappable in tests.
	now func() time.Time
}

// New creates an empty in-memory store.
func New() *Store {
	return &Store{
		rooms: make(map[string][]store.Document),
		subs:  store.NewSubscribers(),
		now:   time.Now,
	}
}

// Insert appends the document, assigns a monotonic server timestamp and
// republishes the room's full set to all subscribers.
func (s *Store) Insert(ctx context.Context, room string, doc store.Document) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	if strings.TrimSpace(doc.Text) == "" || doc.ID == "" || doc.SenderID == "" {
		return "", store.ErrRejected
	}

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return "", store.ErrClosed
	}

	at := s.serverTime()
	doc.SentAt = &at
	s.rooms[room] = append(s.rooms[room], doc)
	snap := s.snapshotLocked(room)

	// Publish before releasing the lock so concurrent inserts cannot deliver
	// an older set after a newer one.
	s.subs.Publish(room, snap)
	s.mu.Unlock()

	return doc.ID, nil
}

// Subscribe registers fn and delivers the current set immediately. The feed
// of an in-process store cannot break, so errFn is never called.
func (s *Store) Subscribe(ctx context.Context, room string, fn func(store.Snapshot), _ func(error)) (func(), error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil, store.ErrClosed
	}

	// Register and deliver the initial set under the store lock so no insert
	// can slip in between and leave this subscriber one snapshot behind.
	cancel := s.subs.Add(room, fn)
	fn(s.snapshotLocked(room))
	return cancel, nil
}

// Close marks the store closed. Live subscriptions stop receiving because no
// further inserts are accepted.
func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	return nil
}

// serverTime returns a strictly increasing timestamp. Caller holds the lock.
func (s *Store) serverTime() time.Time {
	t := s.now()
	if !t.After(s.last) {
		t = s.last.Add(time.Microsecond)
	}
	s.last = t
	return t
}

func (s *Store) snapshotLocked(room string) store.Snapshot {
	docs := s.rooms[room]
	snap := make(store.Snapshot, len(docs))
	copy(snap, docs)
	return snap
}
