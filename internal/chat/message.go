package chat

import "time"

// Message is the domain model for a chat message.
//
// SentAt is assigned by the store on insert and is nil while the write is
// still in flight. The id is the reconciliation key: snapshots replace by id,
// never by position.
type Message struct {
	ID       string
	SenderID string
	Text     string
	SentAt   *time.Time
}

// Pending reports whether the store has not yet assigned a timestamp.
func (m Message) Pending() bool {
	return m.SentAt == nil
}

// sortTime is the ordering key. Pending messages sort as time zero, so they
// sit at the front until the store resolves them.
func (m Message) sortTime() time.Time {
	if m.SentAt == nil {
		return time.Time{}
	}
	return *m.SentAt
}
