// Package store defines the message store boundary: an append-only document
// collection with server-assigned timestamps and live full-snapshot
// subscriptions. Ordering is a client responsibility; the store only
// guarantees that assigned timestamps are monotonic.
package store

import (
	"context"
	"errors"
	"time"

	"github.com/vovakirdan/ctins/internal/chat"
)

var (
	// ErrRejected is returned when the store refuses a write (validation,
	// permission, quota).
	ErrRejected = errors.New("write rejected by store")
	// ErrClosed is returned for operations on a closed store.
	ErrClosed = errors.New("store is closed")
)

// Document is a message as the store holds it. SentAt is nil only for
// optimistic local entries that the store has not acknowledged yet.
type Document struct {
	ID       string
	SenderID string
	Text     string
	SentAt   *time.Time
}

// Snapshot is the complete current set of documents in a room collection, in
// store delivery order. Every change to the collection redelivers the whole
// set, not a diff.
type Snapshot []Document

// Messages converts a snapshot into domain messages, preserving delivery
// order.
func (s Snapshot) Messages() []chat.Message {
	out := make([]chat.Message, 0, len(s))
	for _, d := range s {
		out = append(out, chat.Message{
			ID:       d.ID,
			SenderID: d.SenderID,
			Text:     d.Text,
			SentAt:   d.SentAt,
		})
	}
	return out
}

// Store is the boundary to the backing message store.
type Store interface {
	// Insert appends a document to the room collection. The caller supplies
	// the opaque document id; the store assigns SentAt on commit and returns
	// the id. The client never stamps its own wall clock for ordering.
	Insert(ctx context.Context, room string, doc Document) (string, error)

	// Subscribe opens a live subscription on the room collection. fn is
	// invoked with the full current set immediately and again on every
	// change. errFn (optional) is invoked at most once, when the live feed
	// breaks; the subscription is dead afterwards and must be reopened.
	// Returned cancel synchronously stops delivery: once it returns, neither
	// callback is invoked again.
	Subscribe(ctx context.Context, room string, fn func(Snapshot), errFn func(error)) (cancel func(), err error)

	// Close releases the store handle.
	Close() error
}
