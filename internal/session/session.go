// Package session holds one participant's attachment to a room: identity,
// store handle, sync engine and sender, with an explicit open/close
// lifecycle instead of ambient process globals.
package session

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/vovakirdan/ctins/internal/chat"
	"github.com/vovakirdan/ctins/internal/identity"
	"github.com/vovakirdan/ctins/internal/sender"
	"github.com/vovakirdan/ctins/internal/store"
	"github.com/vovakirdan/ctins/internal/syncer"
)

// Session is the surface the presentation layer consumes: the ordered log,
// the connection state, the current participant and the single mutating
// operation Submit.
type Session struct {
	participant chat.ParticipantSession
	store       store.Store
	engine      *syncer.Engine
	sender      *sender.Sender
	log         *zerolog.Logger
}

// Open authenticates and wires the core for one room. The store handle is
// owned by the session from here on: Close releases it.
func Open(ctx context.Context, provider identity.Provider, st store.Store, room string, sendTimeout time.Duration, logger *zerolog.Logger) (*Session, error) {
	participant, err := provider.AuthenticateAnonymously(ctx)
	if err != nil {
		return nil, fmt.Errorf("authenticate: %w", err)
	}
	logger.Info().Str("participant_id", participant.ParticipantID).Str("room", room).Msg("session opened")

	return &Session{
		participant: participant,
		store:       st,
		engine:      syncer.New(st, room, logger),
		sender:      sender.New(st, room, participant, sendTimeout, logger),
		log:         logger,
	}, nil
}

// Run drives the live subscription until ctx is done.
func (s *Session) Run(ctx context.Context) error {
	return s.engine.Run(ctx)
}

// Updates exposes the engine's consumer channel.
func (s *Session) Updates() <-chan syncer.Update {
	return s.engine.Updates()
}

// Messages returns the current ordered log.
func (s *Session) Messages() []chat.Message {
	return s.engine.Messages()
}

// State returns the current connection state.
func (s *Session) State() syncer.ConnState {
	return s.engine.State()
}

// ParticipantID returns the current participant's opaque id.
func (s *Session) ParticipantID() string {
	return s.participant.ParticipantID
}

// Mine reports whether a message was authored in this session. Display
// styling only; sender ids are writer-supplied and not verified here.
func (s *Session) Mine(m chat.Message) bool {
	return m.SenderID == s.participant.ParticipantID
}

// Submit validates and sends a message to the current room.
func (s *Session) Submit(ctx context.Context, text string) error {
	return s.sender.Submit(ctx, text)
}

// SwitchRoom moves the whole session to another room.
func (s *Session) SwitchRoom(room string) {
	s.engine.SwitchRoom(room)
	s.sender.SetRoom(room)
}

// Close releases the store handle.
func (s *Session) Close() error {
	return s.store.Close()
}
