package models

import (
	"time"

	"gorm.io/datatypes"
)

const (
	NotificationTypeNewPost    = "new_post"
	NotificationTypeNewComment = "new_comment"
	NotificationTypeMention    = "mention"
	NotificationTypeReaction   = "reaction"
)

type Notification struct {
	BaseModel
	UserID        string `gorm:"not null;index"`
	Type          string `gorm:"not null;index"` // new_post, new_comment, mention, reaction
	PostID        string `gorm:"index"`
	CommentID     *string
	TriggeredByID string
	Data          datatypes.JSON `gorm:"type:jsonb"` // {"sectionName": "...", "excerpt": "..."}
	IsRead        bool           `gorm:"default:false;index"`
	ReadAt        *time.Time
}
