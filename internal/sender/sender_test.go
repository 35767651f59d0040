package sender

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/vovakirdan/ctins/internal/chat"
	"github.com/vovakirdan/ctins/internal/store"
)

// recordStore captures inserts and can fail or stall on demand.
type recordStore struct {
	mu      sync.Mutex
	inserts []store.Document
	err     error
	delay   time.Duration
}

func (r *recordStore) Insert(ctx context.Context, room string, doc store.Document) (string, error) {
	if r.delay > 0 {
		select {
		case <-time.After(r.delay):
		case <-ctx.Done():
			return "", ctx.Err()
		}
	}
	if r.err != nil {
		return "", r.err
	}
	r.mu.Lock()
	r.inserts = append(r.inserts, doc)
	r.mu.Unlock()
	return doc.ID, nil
}

func (r *recordStore) Subscribe(context.Context, string, func(store.Snapshot), func(error)) (func(), error) {
	return func() {}, nil
}

func (r *recordStore) Close() error { return nil }

func (r *recordStore) documents() []store.Document {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]store.Document, len(r.inserts))
	copy(out, r.inserts)
	return out
}

func authedSession() chat.ParticipantSession {
	return chat.ParticipantSession{ParticipantID: "p-1", Authenticated: true}
}

func testSender(st store.Store, session chat.ParticipantSession) *Sender {
	logger := zerolog.Nop()
	return New(st, "lobby", session, 0, &logger)
}

func TestSubmitTrimsAndInserts(t *testing.T) {
	rec := &recordStore{}
	s := testSender(rec, authedSession())

	if err := s.Submit(context.Background(), "  hi there  "); err != nil {
		t.Fatalf("submit: %v", err)
	}

	docs := rec.documents()
	if len(docs) != 1 {
		t.Fatalf("expected 1 insert, got %d", len(docs))
	}
	doc := docs[0]
	if doc.Text != "hi there" {
		t.Fatalf("text not trimmed: %q", doc.Text)
	}
	if doc.SenderID != "p-1" {
		t.Fatalf("wrong sender id: %q", doc.SenderID)
	}
	if doc.ID == "" {
		t.Fatal("document id must be set by the sender")
	}
	if doc.SentAt != nil {
		t.Fatal("sender must never stamp a send time")
	}
}

func TestSubmitEmptyTextIsNoOp(t *testing.T) {
	rec := &recordStore{}
	s := testSender(rec, authedSession())

	for _, text := range []string{"", "   ", "\n\t"} {
		if err := s.Submit(context.Background(), text); err != nil {
			t.Fatalf("blank submit %q must be silent, got %v", text, err)
		}
	}
	if len(rec.documents()) != 0 {
		t.Fatalf("blank submissions reached the store: %d", len(rec.documents()))
	}
}

func TestSubmitWithoutIdentityIsNoOp(t *testing.T) {
	rec := &recordStore{}
	s := testSender(rec, chat.ParticipantSession{})

	if err := s.Submit(context.Background(), "hello"); err != nil {
		t.Fatalf("unauthenticated submit must be silent, got %v", err)
	}
	if len(rec.documents()) != 0 {
		t.Fatal("unauthenticated submission reached the store")
	}
}

func TestSubmitClassifiesTimeout(t *testing.T) {
	rec := &recordStore{delay: time.Second}
	logger := zerolog.Nop()
	s := New(rec, "lobby", authedSession(), 10*time.Millisecond, &logger)

	err := s.Submit(context.Background(), "hello")
	var sendErr *chat.SendError
	if !errors.As(err, &sendErr) || sendErr.Kind != chat.SendTimeout {
		t.Fatalf("expected timeout SendError, got %v", err)
	}
}

func TestSubmitClassifiesRejection(t *testing.T) {
	rec := &recordStore{err: store.ErrRejected}
	s := testSender(rec, authedSession())

	err := s.Submit(context.Background(), "hello")
	var sendErr *chat.SendError
	if !errors.As(err, &sendErr) || sendErr.Kind != chat.SendRejected {
		t.Fatalf("expected rejected SendError, got %v", err)
	}
}

func TestSubmitClassifiesTransportFailure(t *testing.T) {
	rec := &recordStore{err: errors.New("connection reset")}
	s := testSender(rec, authedSession())

	err := s.Submit(context.Background(), "hello")
	var sendErr *chat.SendError
	if !errors.As(err, &sendErr) || sendErr.Kind != chat.SendTransport {
		t.Fatalf("expected transport SendError, got %v", err)
	}
}

func TestConcurrentSubmitsProduceDistinctDocuments(t *testing.T) {
	rec := &recordStore{}
	s := testSender(rec, authedSession())

	var wg sync.WaitGroup
	for _, text := range []string{"one", "two"} {
		wg.Add(1)
		go func(txt string) {
			defer wg.Done()
			if err := s.Submit(context.Background(), txt); err != nil {
				t.Errorf("submit %q: %v", txt, err)
			}
		}(text)
	}
	wg.Wait()

	docs := rec.documents()
	if len(docs) != 2 {
		t.Fatalf("expected 2 documents, got %d", len(docs))
	}
	if docs[0].ID == docs[1].ID {
		t.Fatal("concurrent submissions must get distinct ids")
	}
}

func TestSetRoomRedirectsSubmissions(t *testing.T) {
	captured := make(map[string]int)
	var mu sync.Mutex
	rec := &roomRecordStore{rooms: captured, mu: &mu}
	s := testSender(rec, authedSession())

	_ = s.Submit(context.Background(), "in lobby")
	s.SetRoom("den")
	_ = s.Submit(context.Background(), "in den")

	mu.Lock()
	defer mu.Unlock()
	if captured["lobby"] != 1 || captured["den"] != 1 {
		t.Fatalf("unexpected room routing: %v", captured)
	}
}

type roomRecordStore struct {
	mu    *sync.Mutex
	rooms map[string]int
}

func (r *roomRecordStore) Insert(_ context.Context, room string, doc store.Document) (string, error) {
	r.mu.Lock()
	r.rooms[room]++
	r.mu.Unlock()
	return doc.ID, nil
}

func (r *roomRecordStore) Subscribe(context.Context, string, func(store.Snapshot), func(error)) (func(), error) {
	return func() {}, nil
}

func (r *roomRecordStore) Close() error { return nil }
