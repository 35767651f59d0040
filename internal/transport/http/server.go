// Package http exposes the reference server's outer surface: anonymous
// authentication over REST and the message store feed over WebSocket.
package http

import (
	stdhttp "net/http"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"github.com/vovakirdan/ctins/internal/auth"
	"github.com/vovakirdan/ctins/internal/config"
	"github.com/vovakirdan/ctins/internal/store"
)

// NewServer builds the HTTP server with all routes wired.
func NewServer(st store.Store, authService *auth.Service, cfg config.ServerConfig, logger *zerolog.Logger) *stdhttp.Server {
	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(LoggerMiddleware(logger), gin.Recovery())

	api := NewAPIHandlers(authService, logger)
	router.GET("/health", api.Health)
	router.POST("/api/auth/anonymous", api.AuthAnonymous)

	wsHandler := NewWSHandler(st, authService, cfg.MessageRateLimit, logger)
	router.GET("/ws", gin.WrapH(wsHandler))

	return &stdhttp.Server{
		Addr:              cfg.Addr,
		Handler:           router,
		ReadHeaderTimeout: cfg.ReadHeaderTimeout,
	}
}
