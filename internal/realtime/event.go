package realtime

import (
	"encoding/json"
	"time"
)

// Event types carried on the bus and forwarded to clients verbatim.
const (
	EventNewPost             = "new_post"
	EventNewComment          = "new_comment"
	EventPostDeleted         = "post_deleted"
	EventCommentDeleted      = "comment_deleted"
	EventReactionAdded       = "reaction_added"
	EventReactionRemoved     = "reaction_removed"
	EventMention             = "mention"
	EventNotification        = "notification"
	EventLinkMetadataUpdated = "link_metadata_updated"

	// EventResync is synthesized locally when a connection's outbound queue
	// overflows; it never travels over the bus. The client reacts by
	// re-pulling state over REST.
	EventResync = "resync"
)

// Event is the immutable envelope published to the bus and written to
// clients: {type, data, timestamp}.
type Event struct {
	Type      string          `json:"type"`
	Data      json.RawMessage `json:"data"`
	Timestamp time.Time       `json:"timestamp"`
}

// NewEvent builds an envelope, marshaling data immediately so a later
// mutation of the source value cannot leak into an already-published event.
func NewEvent(eventType string, data any) (Event, error) {
	raw, err := json.Marshal(data)
	if err != nil {
		return Event{}, err
	}
	return Event{Type: eventType, Data: raw, Timestamp: time.Now().UTC()}, nil
}

// Critical reports whether the event must survive queue overflow. Resync
// hints are the only critical events: dropping one would strand a client
// without the signal telling it to reconcile.
func (e Event) Critical() bool {
	return e.Type == EventResync
}
