package chat

// ParticipantSession identifies an authenticated participant for the lifetime
// of one process. The id is opaque and stable for the session only; a restart
// may be issued a new one.
type ParticipantSession struct {
	ParticipantID string
	Token         string // bearer token for the store, empty in local mode
	Authenticated bool
}
