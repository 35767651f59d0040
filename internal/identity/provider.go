// Package identity provides the identity provider boundary: anonymous,
// session-scoped participant ids. No identity survives a process restart.
package identity

import (
	"context"

	"github.com/vovakirdan/ctins/internal/chat"
)

// Provider authenticates the current process as an anonymous participant.
// Implementations are idempotent per session: repeated calls return the same
// participant until the provider is discarded.
type Provider interface {
	AuthenticateAnonymously(ctx context.Context) (chat.ParticipantSession, error)
}
