package identity

import (
	"context"
	"sync"

	"github.com/google/uuid"

	"github.com/vovakirdan/ctins/internal/chat"
)

// Local issues participant ids without any backing service. Used with the
// in-process store in offline mode and in tests.
type Local struct {
	mu      sync.Mutex
	session *chat.ParticipantSession
}

// NewLocal creates a local identity provider.
func NewLocal() *Local {
	return &Local{}
}

// AuthenticateAnonymously returns this session's participant, creating it on
// first call.
func (l *Local) AuthenticateAnonymously(ctx context.Context) (chat.ParticipantSession, error) {
	if err := ctx.Err(); err != nil {
		return chat.ParticipantSession{}, err
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	if l.session == nil {
		l.session = &chat.ParticipantSession{
			ParticipantID: uuid.NewString(),
			Authenticated: true,
		}
	}
	return *l.session, nil
}
