package ws

import (
	"encoding/json"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"

	"commune_backend/internal/logger"
	"commune_backend/internal/realtime"
)

// IncomingMessage is the client -> server frame.
// {"type": "subscribe", "data": {"sectionIds": [...]}}
type IncomingMessage struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data"`
}

type subscribePayload struct {
	SectionIDs []string `json:"sectionIds"`
	PostIDs    []string `json:"postIds"`
}

const (
	pingInterval = 30 * time.Second
	maxFrameSize = 8 * 1024
)

// Client is one live websocket connection. It is owned by the hub of the
// process that accepted it and is never shared across processes.
type Client struct {
	ID       string
	UserID   string
	OpenedAt time.Time

	conn *websocket.Conn
	hub  *Hub

	// channels is the connection's subscription set; guarded by hub.mu.
	channels map[string]struct{}

	send       chan realtime.Event
	done       chan struct{}
	closeOnce  sync.Once
	needResync atomic.Bool

	writeTimeout time.Duration
	pongTimeout  time.Duration
}

func newClient(id, userID string, conn *websocket.Conn, hub *Hub, queueDepth int, writeTimeout, pongTimeout time.Duration) *Client {
	return &Client{
		ID:           id,
		UserID:       userID,
		OpenedAt:     time.Now(),
		conn:         conn,
		hub:          hub,
		channels:     make(map[string]struct{}),
		send:         make(chan realtime.Event, queueDepth),
		done:         make(chan struct{}),
		writeTimeout: writeTimeout,
		pongTimeout:  pongTimeout,
	}
}

// close marks the connection dead. In-flight enqueues become no-ops; the
// pumps observe done and exit. Safe to call any number of times.
func (c *Client) close() {
	c.closeOnce.Do(func() {
		close(c.done)
		c.conn.Close()
	})
}

// enqueue places an event on the outbound queue without ever blocking the
// caller. When the queue is full the oldest non-critical event is dropped to
// make room, and a resync hint is flagged so the client knows to re-pull
// state over REST.
func (c *Client) enqueue(event realtime.Event) {
	select {
	case <-c.done:
		return
	default:
	}

	select {
	case c.send <- event:
		return
	default:
	}

	// Queue overflow. Evict the oldest queued event, unless it is critical,
	// in which case the incoming non-critical event is the one sacrificed.
	select {
	case oldest := <-c.send:
		if oldest.Critical() {
			select {
			case c.send <- oldest:
			default:
			}
			if !event.Critical() {
				c.needResync.Store(true)
				return
			}
		}
	default:
	}

	select {
	case c.send <- event:
	default:
	}
	c.needResync.Store(true)
}

// readPump consumes client frames until the transport fails or closes.
// Any transport fault tears the connection down; there is no retry.
func (c *Client) readPump() {
	defer func() {
		c.hub.Unregister(c.ID)
	}()

	c.conn.SetReadLimit(maxFrameSize)
	_ = c.conn.SetReadDeadline(time.Now().Add(c.pongTimeout))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(c.pongTimeout))
	})

	for {
		_, raw, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				logger.Debug("Websocket read error", "connection_id", c.ID, "error", err)
			}
			return
		}

		var msg IncomingMessage
		if err := json.Unmarshal(raw, &msg); err != nil {
			logger.Debug("Ignoring malformed client frame", "connection_id", c.ID, "error", err)
			continue
		}
		c.handleMessage(msg)
	}
}

func (c *Client) handleMessage(msg IncomingMessage) {
	switch msg.Type {
	case "subscribe":
		var payload subscribePayload
		if err := json.Unmarshal(msg.Data, &payload); err != nil {
			logger.Debug("Invalid subscribe payload", "connection_id", c.ID, "error", err)
			return
		}
		if len(payload.SectionIDs) > 0 {
			c.hub.Subscribe(c.ID, payload.SectionIDs)
		}
		if len(payload.PostIDs) > 0 {
			c.hub.SubscribePost(c.ID, payload.PostIDs)
		}
	default:
		logger.Debug("Unhandled client frame type", "connection_id", c.ID, "type", msg.Type)
	}
}

// writePump drains the outbound queue onto the transport. A write fault or
// timeout tears the connection down; queued events are abandoned, since the
// client reconciles over REST after reconnecting.
func (c *Client) writePump() {
	ticker := time.NewTicker(pingInterval)
	defer func() {
		ticker.Stop()
		c.hub.Unregister(c.ID)
	}()

	for {
		select {
		case <-c.done:
			return
		case event := <-c.send:
			if !c.writeEvent(event) {
				return
			}
			// Once the queue has drained after an overflow, tell the client
			// to reconcile whatever was dropped.
			if len(c.send) == 0 && c.needResync.CompareAndSwap(true, false) {
				resync, err := realtime.NewEvent(realtime.EventResync, map[string]string{"reason": "queue_overflow"})
				if err == nil && !c.writeEvent(resync) {
					return
				}
			}
		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(c.writeTimeout))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

func (c *Client) writeEvent(event realtime.Event) bool {
	_ = c.conn.SetWriteDeadline(time.Now().Add(c.writeTimeout))
	if err := c.conn.WriteJSON(event); err != nil {
		logger.Debug("Websocket write error", "connection_id", c.ID, "error", err)
		return false
	}
	return true
}
