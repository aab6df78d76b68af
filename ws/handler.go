package ws

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"commune_backend/internal/auth"
	"commune_backend/internal/logger"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true // origin is enforced by the fronting proxy
	},
}

type Handler struct {
	hub          *Hub
	queueDepth   int
	writeTimeout time.Duration
	pongTimeout  time.Duration
}

func NewHandler(hub *Hub, queueDepth int, writeTimeout, pongTimeout time.Duration) *Handler {
	return &Handler{
		hub:          hub,
		queueDepth:   queueDepth,
		writeTimeout: writeTimeout,
		pongTimeout:  pongTimeout,
	}
}

// ServeWS upgrades an authenticated request to a websocket connection. The
// session is validated before the upgrade: an invalid or expired token is an
// authentication failure, not a generic error, and no subscribe message is
// accepted before validation has passed.
func (h *Handler) ServeWS(c *gin.Context) {
	token := sessionToken(c)
	if token == "" {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Missing session token"})
		return
	}

	claims, err := auth.ParseToken(token)
	if err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Invalid or expired session"})
		return
	}

	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		logger.Warn("Websocket upgrade failed", "error", err)
		return
	}

	client := newClient(uuid.NewString(), claims.UserID, conn, h.hub, h.queueDepth, h.writeTimeout, h.pongTimeout)
	if err := h.hub.Register(client); err != nil {
		logger.Warn("Websocket registration rejected", "error", err)
		conn.Close()
		return
	}

	go client.readPump()
	go client.writePump()
}

// sessionToken accepts the session from the Authorization header, the
// session cookie, or a token query parameter (browser websocket clients
// cannot set headers).
func sessionToken(c *gin.Context) string {
	if header := c.GetHeader("Authorization"); len(header) > 7 && header[:7] == "Bearer " {
		return header[7:]
	}
	if cookie, err := c.Cookie("session"); err == nil && cookie != "" {
		return cookie
	}
	return c.Query("token")
}
