// Package proto defines the JSON envelopes of the store protocol spoken over
// the websocket between a client and the reference server.
package proto

import (
	"encoding/json"
	"time"

	"github.com/vovakirdan/ctins/internal/store"
)

// Inbound is the envelope for frames coming from the client.
type Inbound struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data"`
}

// Outbound is the envelope for frames sent to the client.
type Outbound struct {
	Type  string          `json:"type"`
	Data  json.RawMessage `json:"data,omitempty"`
	Error *Error          `json:"error,omitempty"`
}

const (
	ProtocolVersion = 1

	// InboundTypeHello introduces the client and carries its token. It must
	// be the first frame on a connection.
	InboundTypeHello = "hello"
	// InboundTypeInsert appends a message document to the room collection.
	InboundTypeInsert = "insert"

	// OutboundTypeSnapshot carries the room's complete current document set.
	OutboundTypeSnapshot = "snapshot"
	// OutboundTypeAck confirms that an insert was committed.
	OutboundTypeAck = "ack"
	// OutboundTypeError reports a protocol or store error.
	OutboundTypeError = "error"
)

// HelloData is sent by the client to authenticate the connection.
type HelloData struct {
	Token    string `json:"token"`
	Room     string `json:"room"`
	Protocol int    `json:"protocol,omitempty"`
}

// InsertData is a message append request. The sender identity comes from the
// authenticated token, never from the payload.
type InsertData struct {
	ID   string `json:"id"`
	Text string `json:"text"`
}

// SnapshotDoc is one document of a snapshot. SentAt is microseconds since the
// Unix epoch; it is absent only for documents the store has not committed.
type SnapshotDoc struct {
	ID       string `json:"id"`
	SenderID string `json:"sender_id"`
	Text     string `json:"text"`
	SentAt   *int64 `json:"sent_at,omitempty"`
}

// SnapshotData is the full current set of the room collection.
type SnapshotData struct {
	Docs []SnapshotDoc `json:"docs"`
}

// AckData confirms a committed insert by document id.
type AckData struct {
	ID     string `json:"id"`
	SentAt int64  `json:"sent_at"`
}

// Error describes a protocol-level error response. ID is set when the error
// concerns a specific insert.
type Error struct {
	Code string `json:"code"`
	Msg  string `json:"msg"`
	ID   string `json:"id,omitempty"`
}

// SnapshotFromStore converts a store snapshot to its wire form.
func SnapshotFromStore(snap store.Snapshot) SnapshotData {
	docs := make([]SnapshotDoc, 0, len(snap))
	for _, d := range snap {
		wire := SnapshotDoc{ID: d.ID, SenderID: d.SenderID, Text: d.Text}
		if d.SentAt != nil {
			micro := d.SentAt.UnixMicro()
			wire.SentAt = &micro
		}
		docs = append(docs, wire)
	}
	return SnapshotData{Docs: docs}
}

// ToStore converts a wire snapshot back to the store form.
func (s SnapshotData) ToStore() store.Snapshot {
	snap := make(store.Snapshot, 0, len(s.Docs))
	for _, d := range s.Docs {
		doc := store.Document{ID: d.ID, SenderID: d.SenderID, Text: d.Text}
		if d.SentAt != nil {
			at := time.UnixMicro(*d.SentAt)
			doc.SentAt = &at
		}
		snap = append(snap, doc)
	}
	return snap
}
