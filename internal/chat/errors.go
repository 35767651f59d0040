package chat

import "errors"

// Error codes for domain errors.
const (
	ErrCodeAuthFailed   = "auth_failed"
	ErrCodeSubscription = "subscription_failed"
	ErrCodeBadRequest   = "bad_request"
	ErrCodeUnauthorized = "unauthorized"
	ErrCodeRateLimited  = "rate_limited"
)

var (
	ErrUnauthorized = errors.New("unauthorized")
	ErrBadRequest   = errors.New("bad request")
)

// Error wraps a code and human-readable message.
type Error struct {
	Code    string
	Message string
}

func (e *Error) Error() string {
	return e.Message
}

// NewError builds a coded domain error.
func NewError(code, msg string) *Error {
	return &Error{Code: code, Message: msg}
}

// SendErrorKind classifies a failed submission.
type SendErrorKind int

const (
	// SendTransport means the write never reached the store.
	SendTransport SendErrorKind = iota
	// SendTimeout means the store did not acknowledge in time.
	SendTimeout
	// SendRejected means the store refused the write.
	SendRejected
)

func (k SendErrorKind) String() string {
	switch k {
	case SendTransport:
		return "transport"
	case SendTimeout:
		return "timeout"
	case SendRejected:
		return "rejected"
	default:
		return "unknown"
	}
}

// SendError describes a failed message submission. The composed text is not
// consumed on failure, so the participant can retry without retyping.
type SendError struct {
	Kind  SendErrorKind
	Cause error
}

func (e *SendError) Error() string {
	if e.Cause != nil {
		return "send " + e.Kind.String() + ": " + e.Cause.Error()
	}
	return "send " + e.Kind.String()
}

func (e *SendError) Unwrap() error {
	return e.Cause
}
