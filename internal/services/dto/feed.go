package dto

import "encoding/json"

type CreatePostRequest struct {
	SectionID string `json:"sectionId" validate:"required"`
	Content   string `json:"content" validate:"required,min=1,max=10000"`
}

type CreateCommentRequest struct {
	Content string `json:"content" validate:"required,min=1,max=10000"`
}

type ReactionRequest struct {
	PostID    string  `json:"postId" validate:"required"`
	CommentID *string `json:"commentId"`
	Emoji     string  `json:"emoji" validate:"required,max=16"`
}

type SubscribeSectionsRequest struct {
	SectionIDs []string `json:"sectionIds" validate:"required,min=1"`
}

type LinkResponse struct {
	ID       string          `json:"id"`
	URL      string          `json:"url"`
	Metadata json.RawMessage `json:"metadata,omitempty"`
}

type PostResponse struct {
	ID        string         `json:"id"`
	SectionID string         `json:"sectionId"`
	UserID    string         `json:"userId"`
	Content   string         `json:"content"`
	CreatedAt string         `json:"createdAt"`
	Links     []LinkResponse `json:"links,omitempty"`
}

type CommentResponse struct {
	ID        string         `json:"id"`
	PostID    string         `json:"postId"`
	UserID    string         `json:"userId"`
	Content   string         `json:"content"`
	CreatedAt string         `json:"createdAt"`
	Links     []LinkResponse `json:"links,omitempty"`
}
