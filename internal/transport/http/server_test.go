package http

import (
	"context"
	"encoding/json"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"
	"github.com/rs/zerolog"

	"github.com/vovakirdan/ctins/internal/auth"
	"github.com/vovakirdan/ctins/internal/chat"
	"github.com/vovakirdan/ctins/internal/config"
	"github.com/vovakirdan/ctins/internal/proto"
	"github.com/vovakirdan/ctins/internal/store/memory"
)

func testJWTConfig() *auth.JWTConfig {
	return &auth.JWTConfig{
		Secret:   []byte("test-secret"),
		Issuer:   "ctins",
		Audience: "ctins-client",
		TTL:      time.Hour,
	}
}

func startTestServer(t *testing.T) (*httptest.Server, *auth.Service) {
	t.Helper()

	logger := zerolog.Nop()
	st := memory.New()
	t.Cleanup(func() { st.Close() })

	authService := auth.NewService(testJWTConfig())
	server := NewServer(st, authService, config.ServerConfig{
		Addr:              ":0",
		ReadHeaderTimeout: time.Second,
		MessageRateLimit:  0,
	}, &logger)

	ts := httptest.NewServer(server.Handler)
	t.Cleanup(ts.Close)

	return ts, authService
}

func dialWS(t *testing.T, ctx context.Context, ts *httptest.Server) *websocket.Conn {
	t.Helper()
	wsURL := strings.Replace(ts.URL, "http", "ws", 1) + "/ws"
	conn, _, err := websocket.Dial(ctx, wsURL, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	t.Cleanup(func() { conn.Close(websocket.StatusNormalClosure, "done") })
	return conn
}

func sendHello(t *testing.T, ctx context.Context, conn *websocket.Conn, token, room string) {
	t.Helper()
	payload, _ := json.Marshal(proto.HelloData{Token: token, Room: room, Protocol: proto.ProtocolVersion})
	if err := wsjson.Write(ctx, conn, proto.Inbound{Type: proto.InboundTypeHello, Data: payload}); err != nil {
		t.Fatalf("send hello: %v", err)
	}
}

func sendInsert(t *testing.T, ctx context.Context, conn *websocket.Conn, id, text string) {
	t.Helper()
	payload, _ := json.Marshal(proto.InsertData{ID: id, Text: text})
	if err := wsjson.Write(ctx, conn, proto.Inbound{Type: proto.InboundTypeInsert, Data: payload}); err != nil {
		t.Fatalf("send insert: %v", err)
	}
}

// readUntil reads frames until one of the wanted type arrives.
func readUntil(t *testing.T, ctx context.Context, conn *websocket.Conn, frameType string) proto.Outbound {
	t.Helper()
	for {
		var out proto.Outbound
		if err := wsjson.Read(ctx, conn, &out); err != nil {
			t.Fatalf("read waiting for %s: %v", frameType, err)
		}
		if out.Type == frameType {
			return out
		}
	}
}

func mintToken(t *testing.T, svc *auth.Service) (string, string) {
	t.Helper()
	participantID, token, err := svc.AuthenticateAnonymously(context.Background())
	if err != nil {
		t.Fatalf("mint token: %v", err)
	}
	return participantID, token
}

func TestHealthEndpoint(t *testing.T) {
	ts, _ := startTestServer(t)

	resp, err := ts.Client().Get(ts.URL + "/health")
	if err != nil {
		t.Fatalf("health request failed: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != 200 {
		t.Fatalf("unexpected status: %d", resp.StatusCode)
	}
}

func TestAnonymousAuthEndpoint(t *testing.T) {
	ts, svc := startTestServer(t)

	resp, err := ts.Client().Post(ts.URL+"/api/auth/anonymous", "application/json", nil)
	if err != nil {
		t.Fatalf("auth request failed: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != 200 {
		t.Fatalf("unexpected status: %d", resp.StatusCode)
	}

	var body AnonymousResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if body.ParticipantID == "" || body.Token == "" {
		t.Fatalf("incomplete response: %+v", body)
	}

	claims, err := svc.ValidateToken(body.Token)
	if err != nil {
		t.Fatalf("returned token does not validate: %v", err)
	}
	if claims.ParticipantID != body.ParticipantID {
		t.Fatalf("token participant %q != body participant %q", claims.ParticipantID, body.ParticipantID)
	}
}

func TestWebSocketHelloDeliversSnapshot(t *testing.T) {
	ts, svc := startTestServer(t)
	_, token := mintToken(t, svc)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	conn := dialWS(t, ctx, ts)
	sendHello(t, ctx, conn, token, "lobby")

	out := readUntil(t, ctx, conn, proto.OutboundTypeSnapshot)
	var snap proto.SnapshotData
	if err := json.Unmarshal(out.Data, &snap); err != nil {
		t.Fatalf("decode snapshot: %v", err)
	}
	if len(snap.Docs) != 0 {
		t.Fatalf("expected empty room, got %d docs", len(snap.Docs))
	}
}

func TestWebSocketInsertFansOut(t *testing.T) {
	ts, svc := startTestServer(t)
	senderID, senderToken := mintToken(t, svc)
	_, readerToken := mintToken(t, svc)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	sender := dialWS(t, ctx, ts)
	sendHello(t, ctx, sender, senderToken, "lobby")
	readUntil(t, ctx, sender, proto.OutboundTypeSnapshot)

	reader := dialWS(t, ctx, ts)
	sendHello(t, ctx, reader, readerToken, "lobby")
	readUntil(t, ctx, reader, proto.OutboundTypeSnapshot)

	sendInsert(t, ctx, sender, "m1", "hello everyone")

	ack := readUntil(t, ctx, sender, proto.OutboundTypeAck)
	var ackData proto.AckData
	if err := json.Unmarshal(ack.Data, &ackData); err != nil {
		t.Fatalf("decode ack: %v", err)
	}
	if ackData.ID != "m1" || ackData.SentAt == 0 {
		t.Fatalf("unexpected ack: %+v", ackData)
	}

	out := readUntil(t, ctx, reader, proto.OutboundTypeSnapshot)
	var snap proto.SnapshotData
	if err := json.Unmarshal(out.Data, &snap); err != nil {
		t.Fatalf("decode snapshot: %v", err)
	}
	for len(snap.Docs) == 0 {
		out = readUntil(t, ctx, reader, proto.OutboundTypeSnapshot)
		if err := json.Unmarshal(out.Data, &snap); err != nil {
			t.Fatalf("decode snapshot: %v", err)
		}
	}
	doc := snap.Docs[0]
	if doc.ID != "m1" || doc.Text != "hello everyone" || doc.SenderID != senderID {
		t.Fatalf("unexpected doc: %+v", doc)
	}
	if doc.SentAt == nil {
		t.Fatal("committed doc missing sent_at")
	}
}

func TestWebSocketRejectsBadToken(t *testing.T) {
	ts, _ := startTestServer(t)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	conn := dialWS(t, ctx, ts)
	sendHello(t, ctx, conn, "not-a-token", "lobby")

	out := readUntil(t, ctx, conn, proto.OutboundTypeError)
	if out.Error == nil || out.Error.Code != chat.ErrCodeAuthFailed {
		t.Fatalf("expected auth error, got %+v", out.Error)
	}
}

func TestWebSocketRejectsInsertBeforeHello(t *testing.T) {
	ts, _ := startTestServer(t)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	conn := dialWS(t, ctx, ts)
	sendInsert(t, ctx, conn, "m1", "sneaky")

	out := readUntil(t, ctx, conn, proto.OutboundTypeError)
	if out.Error == nil || out.Error.Code != chat.ErrCodeBadRequest {
		t.Fatalf("expected bad request error, got %+v", out.Error)
	}
}

func TestWebSocketRejectsWrongProtocolVersion(t *testing.T) {
	ts, svc := startTestServer(t)
	_, token := mintToken(t, svc)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	conn := dialWS(t, ctx, ts)
	payload, _ := json.Marshal(proto.HelloData{Token: token, Room: "lobby", Protocol: 99})
	if err := wsjson.Write(ctx, conn, proto.Inbound{Type: proto.InboundTypeHello, Data: payload}); err != nil {
		t.Fatalf("send hello: %v", err)
	}

	out := readUntil(t, ctx, conn, proto.OutboundTypeError)
	if out.Error == nil || out.Error.Code != chat.ErrCodeBadRequest {
		t.Fatalf("expected bad request error, got %+v", out.Error)
	}
}

func TestWebSocketRateLimitsInserts(t *testing.T) {
	logger := zerolog.Nop()
	st := memory.New()
	t.Cleanup(func() { st.Close() })

	authService := auth.NewService(testJWTConfig())
	server := NewServer(st, authService, config.ServerConfig{
		Addr:              ":0",
		ReadHeaderTimeout: time.Second,
		MessageRateLimit:  2,
	}, &logger)
	ts := httptest.NewServer(server.Handler)
	t.Cleanup(ts.Close)

	_, token, err := authService.AuthenticateAnonymously(context.Background())
	if err != nil {
		t.Fatalf("mint token: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	conn := dialWS(t, ctx, ts)
	sendHello(t, ctx, conn, token, "lobby")
	readUntil(t, ctx, conn, proto.OutboundTypeSnapshot)

	sendInsert(t, ctx, conn, "m1", "one")
	readUntil(t, ctx, conn, proto.OutboundTypeAck)
	sendInsert(t, ctx, conn, "m2", "two")
	readUntil(t, ctx, conn, proto.OutboundTypeAck)
	sendInsert(t, ctx, conn, "m3", "three")

	out := readUntil(t, ctx, conn, proto.OutboundTypeError)
	if out.Error == nil || out.Error.Code != chat.ErrCodeRateLimited {
		t.Fatalf("expected rate limit error, got %+v", out.Error)
	}
	if out.Error.ID != "m3" {
		t.Fatalf("rate limit error should name the insert, got %q", out.Error.ID)
	}
}
