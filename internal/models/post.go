package models

import "gorm.io/datatypes"

type Post struct {
	BaseModel
	SectionID string `gorm:"not null;index"`
	UserID    string `gorm:"not null;index"`
	Content   string `gorm:"not null"`

	User  *User  `gorm:"foreignKey:UserID"`
	Links []Link `gorm:"foreignKey:PostID"`
}

type Comment struct {
	BaseModel
	PostID  string `gorm:"not null;index"`
	UserID  string `gorm:"not null;index"`
	Content string `gorm:"not null"`

	User  *User  `gorm:"foreignKey:UserID"`
	Links []Link `gorm:"foreignKey:CommentID"`
}

type Reaction struct {
	BaseModel
	PostID    string  `gorm:"not null;index"`
	CommentID *string `gorm:"index"`
	UserID    string  `gorm:"not null;index"`
	Emoji     string  `gorm:"not null"`
}

// Link is a URL shared in a post or comment. Metadata stays null until the
// metadata worker fills it in; a link with null metadata renders as a bare URL.
type Link struct {
	BaseModel
	PostID    *string        `gorm:"index"`
	CommentID *string        `gorm:"index"`
	URL       string         `gorm:"not null;index"`
	Metadata  datatypes.JSON `gorm:"type:jsonb"`
}
