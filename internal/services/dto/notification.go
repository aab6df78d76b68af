package dto

import "encoding/json"

type NotificationResponse struct {
	ID        string          `json:"id"`
	Type      string          `json:"type"`
	PostID    string          `json:"postId,omitempty"`
	CommentID *string         `json:"commentId,omitempty"`
	Data      json.RawMessage `json:"data,omitempty"`
	IsRead    bool            `json:"isRead"`
	CreatedAt string          `json:"createdAt"`
}

type NotificationListResponse struct {
	Notifications []NotificationResponse `json:"notifications"`
	Total         int64                  `json:"total"`
	UnreadCount   int64                  `json:"unreadCount"`
}
