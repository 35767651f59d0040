package identity

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/vovakirdan/ctins/internal/chat"
)

const (
	defaultAttempts = 5
	initialBackoff  = 500 * time.Millisecond
	requestTimeout  = 10 * time.Second
)

// Remote authenticates against the reference server's anonymous auth
// endpoint, retrying with exponential backoff before giving up.
type Remote struct {
	baseURL  string
	client   *http.Client
	log      *zerolog.Logger
	attempts int
	backoff  time.Duration

	mu      sync.Mutex
	session *chat.ParticipantSession
}

// NewRemote creates a provider for the server at baseURL (e.g.
// "http://localhost:8080").
func NewRemote(baseURL string, logger *zerolog.Logger) *Remote {
	return &Remote{
		baseURL:  baseURL,
		client:   &http.Client{Timeout: requestTimeout},
		log:      logger,
		attempts: defaultAttempts,
		backoff:  initialBackoff,
	}
}

type anonymousResponse struct {
	ParticipantID string `json:"participant_id"`
	Token         string `json:"token"`
}

// AuthenticateAnonymously returns this session's participant, requesting one
// from the server on first call.
func (r *Remote) AuthenticateAnonymously(ctx context.Context) (chat.ParticipantSession, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.session != nil {
		return *r.session, nil
	}

	var lastErr error
	backoff := r.backoff
	for attempt := 1; attempt <= r.attempts; attempt++ {
		session, err := r.authenticate(ctx)
		if err == nil {
			r.session = &session
			return session, nil
		}
		lastErr = err
		r.log.Warn().Err(err).Int("attempt", attempt).Msg("anonymous auth failed")

		if attempt == r.attempts {
			break
		}
		select {
		case <-ctx.Done():
			return chat.ParticipantSession{}, ctx.Err()
		case <-time.After(backoff):
		}
		backoff *= 2
	}

	return chat.ParticipantSession{}, fmt.Errorf("%s: %w",
		chat.ErrCodeAuthFailed, lastErr)
}

func (r *Remote) authenticate(ctx context.Context) (chat.ParticipantSession, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		r.baseURL+"/api/auth/anonymous", bytes.NewReader(nil))
	if err != nil {
		return chat.ParticipantSession{}, fmt.Errorf("build request: %w", err)
	}

	resp, err := r.client.Do(req)
	if err != nil {
		return chat.ParticipantSession{}, fmt.Errorf("auth request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return chat.ParticipantSession{}, fmt.Errorf("auth status %d", resp.StatusCode)
	}

	var body anonymousResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return chat.ParticipantSession{}, fmt.Errorf("decode auth response: %w", err)
	}
	if body.ParticipantID == "" || body.Token == "" {
		return chat.ParticipantSession{}, fmt.Errorf("auth response missing identity")
	}

	return chat.ParticipantSession{
		ParticipantID: body.ParticipantID,
		Token:         body.Token,
		Authenticated: true,
	}, nil
}
