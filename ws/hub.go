// Package ws owns the live websocket side of the realtime core: the
// per-process connection registry and the delivery gateway that forwards bus
// events to locally attached clients.
package ws

import (
	"context"
	"errors"
	"sync"

	"commune_backend/internal/logger"
	"commune_backend/internal/realtime"
)

var ErrInvalidSession = errors.New("connection has no authenticated user")

// Hub is the per-process connection registry. It is exclusively owned by its
// process; nothing about who is connected here is ever shared cross-process.
// Events for users connected elsewhere simply find no local match.
type Hub struct {
	mu       sync.RWMutex
	conns    map[string]*Client
	channels map[string]map[string]*Client // channel -> connection id -> client
}

func NewHub() *Hub {
	return &Hub{
		conns:    make(map[string]*Client),
		channels: make(map[string]map[string]*Client),
	}
}

// Run attaches the hub to the bus. Every process fans in all channels it
// might need to serve and filters locally against its own registry.
func (h *Hub) Run(ctx context.Context, bus realtime.Bus) error {
	return bus.Subscribe(ctx, h.Deliver, realtime.ChannelPatterns...)
}

// Register adds a connection and seeds its two user-scoped subscriptions.
func (h *Hub) Register(client *Client) error {
	if client.UserID == "" {
		return ErrInvalidSession
	}

	h.mu.Lock()
	h.conns[client.ID] = client
	h.subscribeLocked(client, realtime.UserMentionsChannel(client.UserID))
	h.subscribeLocked(client, realtime.UserNotificationsChannel(client.UserID))
	total := len(h.conns)
	h.mu.Unlock()

	logger.Info("Client registered", "connection_id", client.ID, "user_id", client.UserID, "total", total)
	return nil
}

// Subscribe adds section channels to a connection's set. Idempotent; unknown
// connection ids are ignored (the connection may have just closed).
func (h *Hub) Subscribe(connectionID string, sectionIDs []string) {
	h.mu.Lock()
	defer h.mu.Unlock()

	client, ok := h.conns[connectionID]
	if !ok {
		return
	}
	for _, sectionID := range sectionIDs {
		h.subscribeLocked(client, realtime.SectionChannel(sectionID))
	}
}

// SubscribePost adds a post channel subscription, used when a client opens a
// post to follow its comments, reactions and metadata updates live.
func (h *Hub) SubscribePost(connectionID string, postIDs []string) {
	h.mu.Lock()
	defer h.mu.Unlock()

	client, ok := h.conns[connectionID]
	if !ok {
		return
	}
	for _, postID := range postIDs {
		h.subscribeLocked(client, realtime.PostChannel(postID))
	}
}

func (h *Hub) subscribeLocked(client *Client, channel string) {
	set, ok := h.channels[channel]
	if !ok {
		set = make(map[string]*Client)
		h.channels[channel] = set
	}
	set[client.ID] = client
	client.channels[channel] = struct{}{}
}

// Unregister removes a connection and all of its subscriptions. Idempotent,
// and safe to call while a delivery to the same connection is in flight: the
// client is marked closed first, turning any concurrent enqueue into a no-op.
func (h *Hub) Unregister(connectionID string) {
	h.mu.Lock()
	client, ok := h.conns[connectionID]
	if ok {
		delete(h.conns, connectionID)
		for channel := range client.channels {
			if set, exists := h.channels[channel]; exists {
				delete(set, connectionID)
				if len(set) == 0 {
					delete(h.channels, channel)
				}
			}
		}
	}
	total := len(h.conns)
	h.mu.Unlock()

	if ok {
		client.close()
		logger.Info("Client unregistered", "connection_id", connectionID, "total", total)
	}
}

// Deliver forwards one bus event to every locally-registered connection
// subscribed to the channel. Enqueueing is non-blocking per connection, so a
// slow client never stalls delivery to the others.
func (h *Hub) Deliver(channel string, event realtime.Event) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	for _, client := range h.channels[channel] {
		client.enqueue(event)
	}
}

// ConnectionCount reports the number of live connections on this process.
func (h *Hub) ConnectionCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.conns)
}

// Shutdown closes every live connection, releasing their registry entries.
func (h *Hub) Shutdown() {
	h.mu.Lock()
	clients := make([]*Client, 0, len(h.conns))
	for _, client := range h.conns {
		clients = append(clients, client)
	}
	h.mu.Unlock()

	for _, client := range clients {
		h.Unregister(client.ID)
	}
}
