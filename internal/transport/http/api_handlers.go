package http

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"github.com/vovakirdan/ctins/internal/auth"
)

// APIHandlers provides HTTP handlers for REST API endpoints.
type APIHandlers struct {
	authService *auth.Service
	log         *zerolog.Logger
}

// NewAPIHandlers creates a new API handlers instance.
func NewAPIHandlers(authService *auth.Service, logger *zerolog.Logger) *APIHandlers {
	return &APIHandlers{
		authService: authService,
		log:         logger,
	}
}

// AnonymousResponse represents the anonymous authentication response body.
type AnonymousResponse struct {
	ParticipantID string `json:"participant_id"`
	Token         string `json:"token"`
}

// ErrorResponse represents an error response body.
type ErrorResponse struct {
	Error string `json:"error"`
}

// AuthAnonymous mints a fresh anonymous participant and its token.
// POST /api/auth/anonymous
func (h *APIHandlers) AuthAnonymous(c *gin.Context) {
	participantID, token, err := h.authService.AuthenticateAnonymously(c.Request.Context())
	if err != nil {
		h.log.Error().Err(err).Msg("failed to create anonymous participant")
		c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "internal server error"})
		return
	}

	h.log.Info().Str("participant_id", participantID).Msg("anonymous participant created")
	c.JSON(http.StatusOK, AnonymousResponse{ParticipantID: participantID, Token: token})
}

// Health reports process liveness.
// GET /health
func (h *APIHandlers) Health(c *gin.Context) {
	c.String(http.StatusOK, "ok")
}
