package sqlite

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"github.com/vovakirdan/ctins/internal/store"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()

	s, err := New(filepath.Join(t.TempDir(), "ctins.db"))
	if err != nil {
		t.Fatalf("failed to create store: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func TestInsertAssignsTimestamp(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	id, err := s.Insert(ctx, "lobby", store.Document{ID: "m1", SenderID: "u1", Text: "hi"})
	if err != nil {
		t.Fatalf("insert: %v", err)
	}
	if id != "m1" {
		t.Fatalf("expected returned id m1, got %s", id)
	}

	var snap store.Snapshot
	cancel, err := s.Subscribe(ctx, "lobby", func(sn store.Snapshot) { snap = sn }, nil)
	if err != nil {
		t.Fatalf("subscribe: %v", err)
	}
	defer cancel()

	if len(snap) != 1 || snap[0].SentAt == nil {
		t.Fatalf("expected one committed document, got %+v", snap)
	}
}

func TestTimestampsStrictlyIncrease(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	for i := 0; i < 10; i++ {
		doc := store.Document{ID: string(rune('a' + i)), SenderID: "u1", Text: "n"}
		if _, err := s.Insert(ctx, "lobby", doc); err != nil {
			t.Fatalf("insert %d: %v", i, err)
		}
	}

	var snap store.Snapshot
	cancel, err := s.Subscribe(ctx, "lobby", func(sn store.Snapshot) { snap = sn }, nil)
	if err != nil {
		t.Fatalf("subscribe: %v", err)
	}
	defer cancel()

	for i := 1; i < len(snap); i++ {
		if !snap[i-1].SentAt.Before(*snap[i].SentAt) {
			t.Fatalf("timestamps not strictly increasing at %d", i)
		}
	}
}

func TestSubscribersSeeEachInsert(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	deliveries := 0
	var last store.Snapshot
	cancel, err := s.Subscribe(ctx, "lobby", func(sn store.Snapshot) {
		deliveries++
		last = sn
	}, nil)
	if err != nil {
		t.Fatalf("subscribe: %v", err)
	}
	defer cancel()

	if _, err := s.Insert(ctx, "lobby", store.Document{ID: "a", SenderID: "u", Text: "one"}); err != nil {
		t.Fatalf("insert: %v", err)
	}
	if _, err := s.Insert(ctx, "lobby", store.Document{ID: "b", SenderID: "u", Text: "two"}); err != nil {
		t.Fatalf("insert: %v", err)
	}

	// Initial empty set plus one delivery per insert.
	if deliveries != 3 {
		t.Fatalf("expected 3 deliveries, got %d", deliveries)
	}
	if len(last) != 2 {
		t.Fatalf("expected full set of 2 documents, got %d", len(last))
	}
}

func TestDuplicateIDRejected(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	if _, err := s.Insert(ctx, "lobby", store.Document{ID: "a", SenderID: "u", Text: "one"}); err != nil {
		t.Fatalf("insert: %v", err)
	}
	if _, err := s.Insert(ctx, "lobby", store.Document{ID: "a", SenderID: "u", Text: "two"}); !errors.Is(err, store.ErrRejected) {
		t.Fatalf("expected ErrRejected for duplicate id, got %v", err)
	}
}

func TestSnapshotSurvivesReopen(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "ctins.db")
	ctx := context.Background()

	s, err := New(dbPath)
	if err != nil {
		t.Fatalf("create store: %v", err)
	}
	if _, err := s.Insert(ctx, "lobby", store.Document{ID: "a", SenderID: "u", Text: "persisted"}); err != nil {
		t.Fatalf("insert: %v", err)
	}
	if err := s.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}

	s2, err := New(dbPath)
	if err != nil {
		t.Fatalf("reopen store: %v", err)
	}
	defer s2.Close()

	var snap store.Snapshot
	cancel, err := s2.Subscribe(ctx, "lobby", func(sn store.Snapshot) { snap = sn }, nil)
	if err != nil {
		t.Fatalf("subscribe: %v", err)
	}
	defer cancel()

	if len(snap) != 1 || snap[0].Text != "persisted" {
		t.Fatalf("expected persisted message after reopen, got %+v", snap)
	}
}
