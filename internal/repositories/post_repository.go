package repositories

import (
	"errors"

	"gorm.io/gorm"

	"commune_backend/internal/models"
)

var (
	ErrPostNotFound    = errors.New("post not found")
	ErrCommentNotFound = errors.New("comment not found")
)

type PostRepository interface {
	Create(post *models.Post) error
	FindByID(id string) (*models.Post, error)
	ListBySection(sectionID string, limit, offset int) ([]models.Post, error)
	Delete(id string) error

	CreateComment(comment *models.Comment) error
	FindCommentByID(id string) (*models.Comment, error)
	ListComments(postID string) ([]models.Comment, error)
	CommenterIDs(postID string) ([]string, error)
	DeleteComment(id string) error

	CreateReaction(reaction *models.Reaction) error
	DeleteReaction(postID string, commentID *string, userID, emoji string) error
}

type PostRepositoryImpl struct {
	db *gorm.DB
}

func NewPostRepository(db *gorm.DB) PostRepository {
	return &PostRepositoryImpl{db: db}
}

func (r *PostRepositoryImpl) Create(post *models.Post) error {
	return r.db.Create(post).Error
}

func (r *PostRepositoryImpl) FindByID(id string) (*models.Post, error) {
	var post models.Post
	err := r.db.Preload("User").Preload("Links").First(&post, "id = ?", id).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrPostNotFound
		}
		return nil, err
	}
	return &post, nil
}

func (r *PostRepositoryImpl) ListBySection(sectionID string, limit, offset int) ([]models.Post, error) {
	var posts []models.Post
	err := r.db.Preload("User").Preload("Links").
		Where("section_id = ?", sectionID).
		Order("created_at DESC").
		Limit(limit).Offset(offset).
		Find(&posts).Error
	return posts, err
}

func (r *PostRepositoryImpl) Delete(id string) error {
	return r.db.Delete(&models.Post{}, "id = ?", id).Error
}

func (r *PostRepositoryImpl) CreateComment(comment *models.Comment) error {
	return r.db.Create(comment).Error
}

func (r *PostRepositoryImpl) FindCommentByID(id string) (*models.Comment, error) {
	var comment models.Comment
	err := r.db.Preload("User").Preload("Links").First(&comment, "id = ?", id).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrCommentNotFound
		}
		return nil, err
	}
	return &comment, nil
}

func (r *PostRepositoryImpl) ListComments(postID string) ([]models.Comment, error) {
	var comments []models.Comment
	err := r.db.Preload("User").Preload("Links").
		Where("post_id = ?", postID).
		Order("created_at ASC").
		Find(&comments).Error
	return comments, err
}

// CommenterIDs returns the distinct users who commented on a post, used by
// the materializer when fanning out new-comment notifications.
func (r *PostRepositoryImpl) CommenterIDs(postID string) ([]string, error) {
	var ids []string
	err := r.db.Model(&models.Comment{}).
		Distinct("user_id").
		Where("post_id = ?", postID).
		Pluck("user_id", &ids).Error
	return ids, err
}

func (r *PostRepositoryImpl) DeleteComment(id string) error {
	return r.db.Delete(&models.Comment{}, "id = ?", id).Error
}

func (r *PostRepositoryImpl) CreateReaction(reaction *models.Reaction) error {
	return r.db.Create(reaction).Error
}

func (r *PostRepositoryImpl) DeleteReaction(postID string, commentID *string, userID, emoji string) error {
	q := r.db.Where("post_id = ? AND user_id = ? AND emoji = ?", postID, userID, emoji)
	if commentID != nil {
		q = q.Where("comment_id = ?", *commentID)
	} else {
		q = q.Where("comment_id IS NULL")
	}
	return q.Delete(&models.Reaction{}).Error
}
