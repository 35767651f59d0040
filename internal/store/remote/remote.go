// Package remote implements the message store over a WebSocket connection
// to the reference server. Snapshot frames carry the complete document set
// of the subscribed room; inserts are acknowledged per document id.
package remote

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"sync"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"
	"github.com/rs/zerolog"

	"github.com/vovakirdan/ctins/internal/chat"
	"github.com/vovakirdan/ctins/internal/proto"
	"github.com/vovakirdan/ctins/internal/store"
)

// Config holds the connection settings for a remote store.
type Config struct {
	// URL is the server base URL (http or https); the WebSocket path is
	// derived from it.
	URL string
	// Token is the bearer token presented in the hello frame.
	Token string
	// OptimisticEcho locally merges submitted documents into delivered
	// snapshots until the committed copy with the same id arrives.
	OptimisticEcho bool
}

type ackResult struct {
	sentAt int64
	err    error
}

// Store is a store.Store backed by the server's WebSocket feed. It holds a
// single subscription at a time; resubscribing replaces the connection.
type Store struct {
	wsURL      string
	token      string
	optimistic bool
	log        *zerolog.Logger

	mu     sync.Mutex
	closed bool
	gen    int
	conn   *websocket.Conn
	room   string
	fn     func(store.Snapshot)
	errFn  func(error)

	committed store.Snapshot
	echo      []store.Document
	acks      map[string]chan ackResult
}

// New builds a remote store. The connection is established on Subscribe.
func New(cfg Config, logger *zerolog.Logger) (*Store, error) {
	wsURL, err := WebSocketURL(cfg.URL)
	if err != nil {
		return nil, err
	}
	return &Store{
		wsURL:      wsURL,
		token:      cfg.Token,
		optimistic: cfg.OptimisticEcho,
		log:        logger,
		acks:       make(map[string]chan ackResult),
	}, nil
}

// WebSocketURL derives the ws endpoint from a server base URL.
func WebSocketURL(base string) (string, error) {
	u, err := url.Parse(base)
	if err != nil {
		return "", fmt.Errorf("parse server url: %w", err)
	}
	switch u.Scheme {
	case "http", "ws":
		u.Scheme = "ws"
	case "https", "wss":
		u.Scheme = "wss"
	default:
		return "", fmt.Errorf("unsupported server url scheme %q", u.Scheme)
	}
	u.Path = "/ws"
	return u.String(), nil
}

// Subscribe dials the server, announces the room and starts the read loop.
// The first snapshot arrives asynchronously once the server has processed
// the hello. Cancel is synchronous: after it returns neither fn nor errFn
// runs again for this subscription.
func (s *Store) Subscribe(ctx context.Context, room string, fn func(store.Snapshot), errFn func(error)) (func(), error) {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil, store.ErrClosed
	}
	s.teardownLocked(websocket.StatusNormalClosure, "resubscribe")
	s.mu.Unlock()

	conn, _, err := websocket.Dial(ctx, s.wsURL, nil)
	if err != nil {
		return nil, fmt.Errorf("dial %s: %w", s.wsURL, err)
	}

	hello, err := json.Marshal(proto.HelloData{Token: s.token, Room: room, Protocol: proto.ProtocolVersion})
	if err != nil {
		conn.Close(websocket.StatusInternalError, "encode hello")
		return nil, err
	}
	if err := wsjson.Write(ctx, conn, proto.Inbound{Type: proto.InboundTypeHello, Data: hello}); err != nil {
		conn.Close(websocket.StatusProtocolError, "hello failed")
		return nil, fmt.Errorf("send hello: %w", err)
	}

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		conn.Close(websocket.StatusNormalClosure, "store closed")
		return nil, store.ErrClosed
	}
	s.gen++
	myGen := s.gen
	s.conn = conn
	s.room = room
	s.fn = fn
	s.errFn = errFn
	s.committed = nil
	s.echo = nil
	s.mu.Unlock()

	go s.readLoop(conn, myGen)

	cancel := func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		if s.gen == myGen {
			s.teardownLocked(websocket.StatusNormalClosure, "unsubscribe")
		}
	}
	return cancel, nil
}

func (s *Store) readLoop(conn *websocket.Conn, gen int) {
	ctx := context.Background()
	for {
		var out proto.Outbound
		if err := wsjson.Read(ctx, conn, &out); err != nil {
			s.fail(gen, fmt.Errorf("read feed: %w", err))
			return
		}

		switch out.Type {
		case proto.OutboundTypeSnapshot:
			var data proto.SnapshotData
			if err := json.Unmarshal(out.Data, &data); err != nil {
				s.fail(gen, fmt.Errorf("decode snapshot: %w", err))
				return
			}
			s.applySnapshot(gen, data.ToStore())
		case proto.OutboundTypeAck:
			var data proto.AckData
			if err := json.Unmarshal(out.Data, &data); err != nil {
				s.fail(gen, fmt.Errorf("decode ack: %w", err))
				return
			}
			s.resolveAck(data.ID, ackResult{sentAt: data.SentAt})
		case proto.OutboundTypeError:
			if out.Error == nil {
				continue
			}
			if out.Error.ID != "" {
				s.resolveAck(out.Error.ID, ackResult{
					err: fmt.Errorf("%s: %w", out.Error.Msg, store.ErrRejected),
				})
				continue
			}
			// Connection-scoped error, the server is about to close.
			s.fail(gen, chat.NewError(out.Error.Code, out.Error.Msg))
			return
		default:
			s.log.Debug().Str("type", out.Type).Msg("ignoring unknown frame")
		}
	}
}

// applySnapshot replaces the committed set and re-merges optimistic echoes.
// Delivery happens under the mutex so a cancelled subscriber never hears a
// late snapshot.
func (s *Store) applySnapshot(gen int, snap store.Snapshot) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if gen != s.gen || s.fn == nil {
		return
	}

	s.committed = snap
	if len(s.echo) > 0 {
		confirmed := make(map[string]bool, len(snap))
		for _, doc := range snap {
			confirmed[doc.ID] = true
		}
		kept := s.echo[:0]
		for _, doc := range s.echo {
			if !confirmed[doc.ID] {
				kept = append(kept, doc)
			}
		}
		s.echo = kept
	}
	s.fn(s.mergedLocked())
}

func (s *Store) mergedLocked() store.Snapshot {
	merged := make(store.Snapshot, 0, len(s.committed)+len(s.echo))
	merged = append(merged, s.committed...)
	merged = append(merged, s.echo...)
	return merged
}

func (s *Store) resolveAck(id string, res ackResult) {
	s.mu.Lock()
	ch, ok := s.acks[id]
	if ok {
		delete(s.acks, id)
	}
	if res.err != nil {
		s.dropEchoLocked(id)
	}
	s.mu.Unlock()
	if ok {
		ch <- res
	}
}

// dropEchoLocked removes an optimistic echo and republishes the merged
// snapshot so the pending entry vanishes from the consumer's log.
func (s *Store) dropEchoLocked(id string) {
	for i, doc := range s.echo {
		if doc.ID == id {
			s.echo = append(s.echo[:i], s.echo[i+1:]...)
			if s.fn != nil {
				s.fn(s.mergedLocked())
			}
			return
		}
	}
}

// fail tears down the subscription and reports the cause once.
func (s *Store) fail(gen int, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if gen != s.gen {
		return
	}
	errFn := s.errFn
	s.teardownLocked(websocket.StatusInternalError, "feed broken")
	if errFn != nil {
		errFn(err)
	}
}

// teardownLocked closes the connection and fails outstanding inserts.
// Bumping gen invalidates the read loop and any stale cancel.
func (s *Store) teardownLocked(status websocket.StatusCode, reason string) {
	if s.conn != nil {
		s.conn.Close(status, reason)
		s.conn = nil
	}
	s.gen++
	s.fn = nil
	s.errFn = nil
	s.room = ""
	s.committed = nil
	s.echo = nil
	for id, ch := range s.acks {
		delete(s.acks, id)
		ch <- ackResult{err: fmt.Errorf("connection lost before ack")}
	}
}

// Insert submits a document and blocks until the server acknowledges it,
// the server rejects it, or ctx expires. With optimistic echo enabled the
// document appears in delivered snapshots immediately, pending.
func (s *Store) Insert(ctx context.Context, room string, doc store.Document) (string, error) {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return "", store.ErrClosed
	}
	if s.conn == nil || s.room != room {
		s.mu.Unlock()
		return "", fmt.Errorf("no active subscription for room %q", room)
	}
	conn := s.conn
	ch := make(chan ackResult, 1)
	s.acks[doc.ID] = ch
	if s.optimistic && s.fn != nil {
		pending := doc
		pending.SentAt = nil
		s.echo = append(s.echo, pending)
		s.fn(s.mergedLocked())
	}
	s.mu.Unlock()

	payload, err := json.Marshal(proto.InsertData{ID: doc.ID, Text: doc.Text})
	if err != nil {
		s.abandonInsert(doc.ID)
		return "", err
	}
	if err := wsjson.Write(ctx, conn, proto.Inbound{Type: proto.InboundTypeInsert, Data: payload}); err != nil {
		s.abandonInsert(doc.ID)
		return "", fmt.Errorf("send insert: %w", err)
	}

	select {
	case <-ctx.Done():
		s.abandonInsert(doc.ID)
		return "", ctx.Err()
	case res := <-ch:
		if res.err != nil {
			return "", res.err
		}
		return doc.ID, nil
	}
}

// abandonInsert forgets a pending ack and removes the optimistic echo. The
// document may still land on the server; the next snapshot settles it.
func (s *Store) abandonInsert(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.acks, id)
	s.dropEchoLocked(id)
}

// Close releases the connection. Further calls fail with ErrClosed.
func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	s.closed = true
	s.teardownLocked(websocket.StatusNormalClosure, "client closing")
	return nil
}
