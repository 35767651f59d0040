package http

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	stdhttp "net/http"
	"sync"
	"time"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"
	"github.com/rs/zerolog"

	"github.com/vovakirdan/ctins/internal/auth"
	"github.com/vovakirdan/ctins/internal/chat"
	"github.com/vovakirdan/ctins/internal/proto"
	"github.com/vovakirdan/ctins/internal/store"
)

const (
	helloTimeout = 10 * time.Second
	// eventBuffer bounds the per-connection outbound queue. A consumer that
	// falls this far behind is disconnected rather than slowing the room.
	eventBuffer = 32
)

// WSHandler upgrades HTTP connections and bridges them to the store: hello
// authenticates and subscribes, inserts append, snapshots flow back.
type WSHandler struct {
	store       store.Store
	authService *auth.Service
	rateLimit   int
	log         *zerolog.Logger
}

// NewWSHandler builds a new WebSocket handler.
func NewWSHandler(st store.Store, authService *auth.Service, rateLimit int, logger *zerolog.Logger) stdhttp.Handler {
	return &WSHandler{store: st, authService: authService, rateLimit: rateLimit, log: logger}
}

// wsClient is the per-connection state.
type wsClient struct {
	events chan proto.Outbound

	mu      sync.Mutex
	sentAts map[string]int64
	slow    bool
}

// enqueue hands a frame to the write loop without blocking the store.
func (c *wsClient) enqueue(frame proto.Outbound) bool {
	select {
	case c.events <- frame:
		return true
	default:
		c.mu.Lock()
		c.slow = true
		c.mu.Unlock()
		return false
	}
}

// noteSnapshot remembers committed timestamps so acks can quote them.
func (c *wsClient) noteSnapshot(snap store.Snapshot) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, doc := range snap {
		if doc.SentAt != nil {
			c.sentAts[doc.ID] = doc.SentAt.UnixMicro()
		}
	}
}

func (c *wsClient) sentAt(id string) int64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.sentAts[id]
}

func (c *wsClient) isSlow() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.slow
}

func (h *WSHandler) ServeHTTP(w stdhttp.ResponseWriter, r *stdhttp.Request) {
	ctx := r.Context()

	conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		InsecureSkipVerify: true,
	})
	if err != nil {
		h.log.Error().Err(err).Msg("ws accept error")
		return
	}
	defer conn.Close(websocket.StatusInternalError, "internal error")

	claims, room, err := h.handshake(ctx, conn)
	if err != nil {
		h.log.Warn().Err(err).Msg("ws handshake rejected")
		conn.Close(websocket.StatusPolicyViolation, "handshake rejected")
		return
	}

	client := &wsClient{
		events:  make(chan proto.Outbound, eventBuffer),
		sentAts: make(map[string]int64),
	}

	// Delivery is synchronous inside the store, so the initial snapshot is
	// queued before Subscribe returns.
	cancelSub, err := h.store.Subscribe(ctx, room, func(snap store.Snapshot) {
		client.noteSnapshot(snap)
		data, err := json.Marshal(proto.SnapshotFromStore(snap))
		if err != nil {
			return
		}
		client.enqueue(proto.Outbound{Type: proto.OutboundTypeSnapshot, Data: data})
	}, func(err error) {
		client.enqueue(proto.Outbound{
			Type:  proto.OutboundTypeError,
			Error: &proto.Error{Code: chat.ErrCodeSubscription, Msg: err.Error()},
		})
	})
	if err != nil {
		h.log.Error().Err(err).Str("room", room).Msg("subscribe failed")
		conn.Close(websocket.StatusInternalError, "subscribe failed")
		return
	}
	defer cancelSub()

	h.log.Info().Str("participant_id", claims.ParticipantID).Str("room", room).Msg("ws client joined")

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	limiter := newRateLimiter(h.rateLimit)
	limiter.startReset(ctx.Done())

	errCh := make(chan error, 2)
	go func() {
		errCh <- h.readLoop(ctx, conn, client, claims, room, limiter)
	}()
	go func() {
		errCh <- h.writeLoop(ctx, conn, client)
	}()

	err = <-errCh
	cancel() // stop the other goroutine
	<-errCh

	status := websocket.StatusNormalClosure
	reason := "closing"
	if client.isSlow() {
		status = websocket.StatusPolicyViolation
		reason = "slow consumer"
		h.log.Warn().Str("participant_id", claims.ParticipantID).Msg("disconnecting slow consumer")
	} else if err != nil && !errors.Is(err, context.Canceled) {
		if errors.Is(err, io.EOF) {
			err = nil
		}
		if s := websocket.CloseStatus(err); s != 0 {
			status = s
		}
		if status == websocket.StatusNormalClosure || status == websocket.StatusGoingAway {
			err = nil
		}
		if err != nil {
			if status == websocket.StatusNormalClosure {
				status = websocket.StatusInternalError
			}
			reason = err.Error()
			h.log.Warn().Err(err).Msg("ws connection closed with error")
		}
	}

	conn.Close(status, reason)
}

// handshake reads and validates the hello frame.
func (h *WSHandler) handshake(ctx context.Context, conn *websocket.Conn) (*auth.Claims, string, error) {
	ctx, cancel := context.WithTimeout(ctx, helloTimeout)
	defer cancel()

	var inbound proto.Inbound
	if err := wsjson.Read(ctx, conn, &inbound); err != nil {
		return nil, "", fmt.Errorf("read hello: %w", err)
	}
	if inbound.Type != proto.InboundTypeHello {
		h.writeError(ctx, conn, chat.ErrCodeBadRequest, "first frame must be hello", "")
		return nil, "", fmt.Errorf("unexpected first frame %q", inbound.Type)
	}

	var hello proto.HelloData
	if err := json.Unmarshal(inbound.Data, &hello); err != nil {
		h.writeError(ctx, conn, chat.ErrCodeBadRequest, "malformed hello", "")
		return nil, "", fmt.Errorf("decode hello: %w", err)
	}
	if hello.Protocol != 0 && hello.Protocol != proto.ProtocolVersion {
		h.writeError(ctx, conn, chat.ErrCodeBadRequest, "unsupported protocol version", "")
		return nil, "", fmt.Errorf("unsupported protocol version %d", hello.Protocol)
	}
	if hello.Room == "" {
		h.writeError(ctx, conn, chat.ErrCodeBadRequest, "room is required", "")
		return nil, "", errors.New("hello without room")
	}

	claims, err := h.authService.ValidateToken(hello.Token)
	if err != nil {
		h.writeError(ctx, conn, chat.ErrCodeAuthFailed, "invalid token", "")
		return nil, "", fmt.Errorf("validate token: %w", err)
	}

	return claims, hello.Room, nil
}

func (h *WSHandler) readLoop(ctx context.Context, conn *websocket.Conn, client *wsClient, claims *auth.Claims, room string, limiter *rateLimiter) error {
	for {
		var inbound proto.Inbound
		if err := wsjson.Read(ctx, conn, &inbound); err != nil {
			return err
		}

		switch inbound.Type {
		case proto.InboundTypeInsert:
			var ins proto.InsertData
			if err := json.Unmarshal(inbound.Data, &ins); err != nil {
				h.writeError(ctx, conn, chat.ErrCodeBadRequest, "malformed insert", "")
				continue
			}
			if ins.ID == "" || ins.Text == "" {
				h.writeError(ctx, conn, chat.ErrCodeBadRequest, "insert requires id and text", ins.ID)
				continue
			}
			if !limiter.allow() {
				h.writeError(ctx, conn, chat.ErrCodeRateLimited, "message rate limit exceeded", ins.ID)
				continue
			}

			doc := store.Document{ID: ins.ID, SenderID: claims.ParticipantID, Text: ins.Text}
			if _, err := h.store.Insert(ctx, room, doc); err != nil {
				if errors.Is(err, store.ErrRejected) {
					h.writeError(ctx, conn, chat.ErrCodeBadRequest, "insert rejected", ins.ID)
					continue
				}
				h.log.Error().Err(err).Str("id", ins.ID).Msg("insert failed")
				h.writeError(ctx, conn, chat.ErrCodeBadRequest, "insert failed", ins.ID)
				continue
			}

			ack, err := json.Marshal(proto.AckData{ID: ins.ID, SentAt: client.sentAt(ins.ID)})
			if err != nil {
				continue
			}
			if err := wsjson.Write(ctx, conn, proto.Outbound{Type: proto.OutboundTypeAck, Data: ack}); err != nil {
				return err
			}
		case proto.InboundTypeHello:
			h.writeError(ctx, conn, chat.ErrCodeBadRequest, "hello already received", "")
		default:
			h.writeError(ctx, conn, chat.ErrCodeBadRequest, "unknown frame type", "")
		}
	}
}

func (h *WSHandler) writeLoop(ctx context.Context, conn *websocket.Conn, client *wsClient) error {
	for {
		select {
		case frame := <-client.events:
			if err := wsjson.Write(ctx, conn, frame); err != nil {
				h.log.Error().Err(err).Msg("write ws frame")
				return err
			}
			if client.isSlow() {
				return errors.New("slow consumer")
			}
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

func (h *WSHandler) writeError(ctx context.Context, conn *websocket.Conn, code, msg, id string) {
	frame := proto.Outbound{
		Type:  proto.OutboundTypeError,
		Error: &proto.Error{Code: code, Msg: msg, ID: id},
	}
	if err := wsjson.Write(ctx, conn, frame); err != nil {
		h.log.Debug().Err(err).Msg("write ws error frame")
	}
}
