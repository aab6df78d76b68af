package realtime

import (
	"encoding/json"
	"time"

	"commune_backend/internal/models"
)

// Wire payloads for each event type. These are both produced by the domain
// services and decoded again by the notification materializer, so shapes are
// defined once here.

type PostData struct {
	ID        string     `json:"id"`
	SectionID string     `json:"sectionId"`
	UserID    string     `json:"userId"`
	Content   string     `json:"content"`
	CreatedAt time.Time  `json:"createdAt"`
	Links     []LinkData `json:"links,omitempty"`
}

type CommentData struct {
	ID        string     `json:"id"`
	PostID    string     `json:"postId"`
	UserID    string     `json:"userId"`
	Content   string     `json:"content"`
	CreatedAt time.Time  `json:"createdAt"`
	Links     []LinkData `json:"links,omitempty"`
}

type LinkData struct {
	ID       string          `json:"id"`
	URL      string          `json:"url"`
	Metadata json.RawMessage `json:"metadata,omitempty"`
}

type NewPostPayload struct {
	Post PostData          `json:"post"`
	User models.PublicUser `json:"user"`
}

type NewCommentPayload struct {
	Comment CommentData       `json:"comment"`
	User    models.PublicUser `json:"user"`
	PostID  string            `json:"postId"`
}

type PostDeletedPayload struct {
	PostID string `json:"postId"`
}

type CommentDeletedPayload struct {
	CommentID string `json:"commentId"`
}

type ReactionPayload struct {
	PostID    string  `json:"postId"`
	CommentID *string `json:"commentId"`
	UserID    string  `json:"userId"`
	Emoji     string  `json:"emoji"`
}

type MentionPayload struct {
	MentioningUser models.PublicUser `json:"mentioningUser"`
	PostID         string            `json:"postId"`
	CommentID      *string           `json:"commentId"`
	Excerpt        string            `json:"excerpt"`
}

type NotificationPayload struct {
	ID          string          `json:"id"`
	Type        string          `json:"type"`
	SectionName string          `json:"sectionName,omitempty"`
	Data        json.RawMessage `json:"data,omitempty"`
}

type LinkMetadataPayload struct {
	PostID   string          `json:"postId"`
	LinkID   string          `json:"linkId"`
	Metadata json.RawMessage `json:"metadata"`
}
