// Package sender validates and submits new messages to the store.
package sender

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/vovakirdan/ctins/internal/chat"
	"github.com/vovakirdan/ctins/internal/store"
)

const defaultTimeout = 10 * time.Second

// Sender submits messages on behalf of one participant. It never stamps a
// send time: ordering comes from the store's clock, so client clock skew
// cannot corrupt the shared order.
type Sender struct {
	store   store.Store
	session chat.ParticipantSession
	timeout time.Duration
	log     *zerolog.Logger

	mu   sync.Mutex
	room string
}

// New creates a sender for the given participant and room. timeout bounds
// each submission; zero means the default.
func New(st store.Store, room string, session chat.ParticipantSession, timeout time.Duration, logger *zerolog.Logger) *Sender {
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	return &Sender{
		store:   st,
		session: session,
		timeout: timeout,
		log:     logger,
		room:    room,
	}
}

// SetRoom redirects future submissions to another room.
func (s *Sender) SetRoom(room string) {
	s.mu.Lock()
	s.room = room
	s.mu.Unlock()
}

// Submit trims and sends text. Empty text or a missing identity is a silent
// no-op: the caller is expected to gate the affordance, not to handle an
// error. Failures come back as *chat.SendError; the caller keeps the
// composed text so the participant can retry without retyping.
func (s *Sender) Submit(ctx context.Context, text string) error {
	text = strings.TrimSpace(text)
	if text == "" || !s.session.Authenticated || s.session.ParticipantID == "" {
		s.log.Debug().Msg("submission skipped: empty text or no identity")
		return nil
	}

	s.mu.Lock()
	room := s.room
	s.mu.Unlock()

	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	doc := store.Document{
		ID:       uuid.NewString(),
		SenderID: s.session.ParticipantID,
		Text:     text,
	}
	if _, err := s.store.Insert(ctx, room, doc); err != nil {
		return classify(err)
	}
	return nil
}

func classify(err error) *chat.SendError {
	switch {
	case errors.Is(err, context.DeadlineExceeded):
		return &chat.SendError{Kind: chat.SendTimeout, Cause: err}
	case errors.Is(err, store.ErrRejected):
		return &chat.SendError{Kind: chat.SendRejected, Cause: err}
	default:
		return &chat.SendError{Kind: chat.SendTransport, Cause: err}
	}
}
