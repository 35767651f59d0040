// Package cli renders a chat session on a terminal: incoming messages are
// appended to stdout, lines typed on stdin are submitted to the room.
package cli

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/rs/zerolog"

	"github.com/vovakirdan/ctins/internal/chat"
	"github.com/vovakirdan/ctins/internal/format"
	"github.com/vovakirdan/ctins/internal/session"
	"github.com/vovakirdan/ctins/internal/syncer"
)

const shortIDLen = 8

// UI drives one terminal chat session.
type UI struct {
	session *session.Session
	room    string
	in      io.Reader
	out     io.Writer
	log     *zerolog.Logger

	printed map[string]bool
	state   syncer.ConnState
}

// New builds a UI over an opened session.
func New(sess *session.Session, room string, in io.Reader, out io.Writer, logger *zerolog.Logger) *UI {
	return &UI{
		session: sess,
		room:    room,
		in:      in,
		out:     out,
		log:     logger,
		printed: make(map[string]bool),
		state:   syncer.StateConnecting,
	}
}

// Run blocks until ctx is done or stdin closes.
func (u *UI) Run(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	go func() {
		if err := u.session.Run(ctx); err != nil && ctx.Err() == nil {
			u.log.Error().Err(err).Msg("sync stopped")
		}
	}()

	fmt.Fprintf(u.out, "room %s | you are %s\n", u.room, shortID(u.session.ParticipantID()))
	fmt.Fprintln(u.out, "Type messages and press Enter to send. Ctrl+C to exit.")

	lines := make(chan string)
	go func() {
		defer close(lines)
		scanner := bufio.NewScanner(u.in)
		for scanner.Scan() {
			select {
			case lines <- scanner.Text():
			case <-ctx.Done():
				return
			}
		}
	}()

	for {
		select {
		case update, ok := <-u.session.Updates():
			if !ok {
				return nil
			}
			u.render(update)
		case line, ok := <-lines:
			if !ok {
				return nil
			}
			if err := u.session.Submit(ctx, line); err != nil {
				fmt.Fprintf(u.out, "!! send failed: %v\n", err)
			}
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

// render appends state transitions and not-yet-printed messages. Committed
// copies of optimistic echoes are skipped, their pending line already shown.
func (u *UI) render(update syncer.Update) {
	if update.State != u.state {
		u.state = update.State
		switch update.State {
		case syncer.StateConnected:
			fmt.Fprintf(u.out, "-- connected (%d messages)\n", len(update.Messages))
		case syncer.StateError:
			fmt.Fprintln(u.out, "-- connection lost, retrying")
		case syncer.StateConnecting:
			fmt.Fprintln(u.out, "-- connecting")
		}
	}

	for _, m := range update.Messages {
		if u.printed[m.ID] {
			continue
		}
		u.printed[m.ID] = true
		fmt.Fprintln(u.out, FormatLine(m, u.session.ParticipantID()))
	}
}

// FormatLine renders one message as a terminal line.
func FormatLine(m chat.Message, selfID string) string {
	sender := shortID(m.SenderID)
	if m.SenderID == selfID {
		sender = "you"
	}
	return fmt.Sprintf("[%s] %s: %s", format.Timestamp(m.SentAt), sender, m.Text)
}

// shortID truncates an opaque participant id for display.
func shortID(id string) string {
	id = strings.TrimSpace(id)
	if len(id) <= shortIDLen {
		return id
	}
	return id[:shortIDLen]
}
