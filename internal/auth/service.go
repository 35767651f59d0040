package auth

import (
	"context"

	"github.com/google/uuid"
)

// Service provides anonymous authentication. Participants have no durable
// account: each session is a fresh opaque id plus a signed token for it.
type Service struct {
	jwtConfig *JWTConfig
}

// NewService creates a new authentication service.
func NewService(jwtConfig *JWTConfig) *Service {
	return &Service{jwtConfig: jwtConfig}
}

// AuthenticateAnonymously issues a new participant id and its token.
func (s *Service) AuthenticateAnonymously(ctx context.Context) (participantID, token string, err error) {
	if err := ctx.Err(); err != nil {
		return "", "", err
	}

	participantID = uuid.NewString()
	token, err = GenerateToken(s.jwtConfig, participantID)
	if err != nil {
		return "", "", err
	}
	return participantID, token, nil
}

// ValidateToken parses and validates a bearer token.
func (s *Service) ValidateToken(token string) (*Claims, error) {
	return ValidateToken(s.jwtConfig, token)
}
