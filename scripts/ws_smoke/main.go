// Command ws_smoke exercises a running server end to end: it mints an
// anonymous identity, joins a room over the websocket and inserts one
// message, printing every frame until the committed copy comes back.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"time"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"
	"github.com/google/uuid"

	"github.com/vovakirdan/ctins/internal/proto"
	"github.com/vovakirdan/ctins/internal/store/remote"
)

func main() {
	if err := run(); err != nil {
		log.Printf("ws_smoke: %v", err)
		os.Exit(1)
	}
}

func run() error {
	server := flag.String("server", "http://localhost:8080", "server base URL")
	room := flag.String("room", "lobby", "room name")
	text := flag.String("text", "hello from smoke test", "message text to send")
	timeout := flag.Duration("timeout", 5*time.Second, "total timeout for the run")
	flag.Parse()

	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
	defer cancel()

	token, err := authenticate(ctx, *server)
	if err != nil {
		return err
	}

	wsURL, err := remote.WebSocketURL(*server)
	if err != nil {
		return err
	}
	conn, _, err := websocket.Dial(ctx, wsURL, nil)
	if err != nil {
		return fmt.Errorf("dial: %w", err)
	}
	defer conn.Close(websocket.StatusNormalClosure, "bye")

	send := func(frameType string, v interface{}) error {
		payload, err := json.Marshal(v)
		if err != nil {
			return fmt.Errorf("marshal %s: %w", frameType, err)
		}
		if err := wsjson.Write(ctx, conn, proto.Inbound{Type: frameType, Data: payload}); err != nil {
			return fmt.Errorf("send %s: %w", frameType, err)
		}
		return nil
	}

	if err := send(proto.InboundTypeHello, proto.HelloData{Token: token, Room: *room, Protocol: proto.ProtocolVersion}); err != nil {
		return err
	}

	msgID := uuid.NewString()
	if err := send(proto.InboundTypeInsert, proto.InsertData{ID: msgID, Text: *text}); err != nil {
		return err
	}

	for {
		var outbound proto.Outbound
		if err := wsjson.Read(ctx, conn, &outbound); err != nil {
			return fmt.Errorf("read: %w", err)
		}

		fmt.Printf("Received outbound: type=%s\n", outbound.Type)
		if outbound.Error != nil {
			return fmt.Errorf("server error: %s (%s)", outbound.Error.Msg, outbound.Error.Code)
		}

		if outbound.Type != proto.OutboundTypeSnapshot {
			continue
		}
		var snap proto.SnapshotData
		if err := json.Unmarshal(outbound.Data, &snap); err != nil {
			return fmt.Errorf("unmarshal snapshot: %w", err)
		}
		for _, doc := range snap.Docs {
			if doc.ID == msgID && doc.SentAt != nil {
				fmt.Printf("Committed: sender=%s text=%q sent_at=%d\n", doc.SenderID, doc.Text, *doc.SentAt)
				return nil
			}
		}
	}
}

func authenticate(ctx context.Context, server string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, server+"/api/auth/anonymous", nil)
	if err != nil {
		return "", err
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("auth request: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("auth request: status %d", resp.StatusCode)
	}

	var body struct {
		ParticipantID string `json:"participant_id"`
		Token         string `json:"token"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return "", fmt.Errorf("decode auth response: %w", err)
	}
	fmt.Printf("Authenticated as %s\n", body.ParticipantID)
	return body.Token, nil
}
