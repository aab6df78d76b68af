package routes

import (
	"github.com/gin-gonic/gin"

	"commune_backend/internal/handlers"
	"commune_backend/internal/logger"
	"commune_backend/ws"
)

// AppHandlers groups the assembled HTTP handlers for route registration.
type AppHandlers struct {
	AuthHandler         *handlers.AuthHandler
	SectionHandler      *handlers.SectionHandler
	PostHandler         *handlers.PostHandler
	NotificationHandler *handlers.NotificationHandler
}

// RegisterRoutes wires the HTTP API and the websocket endpoint.
func RegisterRoutes(router *gin.Engine, appHandlers *AppHandlers, wsHandler *ws.Handler) {
	api := router.Group("/api/v1")
	{
		appHandlers.AuthHandler.RegisterRoutes(api)
		appHandlers.SectionHandler.RegisterRoutes(api)
		appHandlers.PostHandler.RegisterRoutes(api)
		appHandlers.NotificationHandler.RegisterRoutes(api)
	}

	// The websocket handshake does its own session validation before the
	// upgrade, so the route carries no auth middleware.
	router.GET("/ws", wsHandler.ServeWS)

	logger.Info("Routes registered")
}
