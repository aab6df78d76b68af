package services

import (
	"context"
	"time"

	"commune_backend/internal/models"
	"commune_backend/internal/realtime"
	"commune_backend/internal/repositories"
	"commune_backend/internal/services/dto"
)

type CommentService interface {
	CreateComment(ctx context.Context, userID, postID string, req *dto.CreateCommentRequest) (*dto.CommentResponse, error)
	ListComments(postID string) ([]dto.CommentResponse, error)
	DeleteComment(ctx context.Context, userID, commentID string) error
}

type commentService struct {
	postRepo    repositories.PostRepository
	userRepo    repositories.UserRepository
	linkService LinkService
	publisher   *realtime.Publisher
}

func NewCommentService(
	postRepo repositories.PostRepository,
	userRepo repositories.UserRepository,
	linkService LinkService,
	publisher *realtime.Publisher,
) CommentService {
	return &commentService{
		postRepo:    postRepo,
		userRepo:    userRepo,
		linkService: linkService,
		publisher:   publisher,
	}
}

func (s *commentService) CreateComment(ctx context.Context, userID, postID string, req *dto.CreateCommentRequest) (*dto.CommentResponse, error) {
	if _, err := s.postRepo.FindByID(postID); err != nil {
		return nil, err
	}

	user, err := s.userRepo.FindByID(userID)
	if err != nil {
		return nil, err
	}

	comment := &models.Comment{
		PostID:  postID,
		UserID:  userID,
		Content: req.Content,
	}
	if err := s.postRepo.CreateComment(comment); err != nil {
		return nil, err
	}

	links, err := s.linkService.AttachToComment(comment.ID, comment.Content)
	if err != nil {
		return nil, err
	}
	comment.Links = links

	s.publisher.Publish(ctx, realtime.PostChannel(postID), realtime.EventNewComment, realtime.NewCommentPayload{
		Comment: commentData(comment),
		User:    user.Public(),
		PostID:  postID,
	})

	return buildCommentResponse(comment), nil
}

func (s *commentService) ListComments(postID string) ([]dto.CommentResponse, error) {
	comments, err := s.postRepo.ListComments(postID)
	if err != nil {
		return nil, err
	}
	responses := make([]dto.CommentResponse, 0, len(comments))
	for i := range comments {
		responses = append(responses, *buildCommentResponse(&comments[i]))
	}
	return responses, nil
}

func (s *commentService) DeleteComment(ctx context.Context, userID, commentID string) error {
	comment, err := s.postRepo.FindCommentByID(commentID)
	if err != nil {
		return err
	}
	if comment.UserID != userID {
		return ErrNotOwner
	}

	if err := s.postRepo.DeleteComment(commentID); err != nil {
		return err
	}

	s.publisher.Publish(ctx, realtime.PostChannel(comment.PostID), realtime.EventCommentDeleted, realtime.CommentDeletedPayload{
		CommentID: commentID,
	})
	return nil
}

func commentData(comment *models.Comment) realtime.CommentData {
	return realtime.CommentData{
		ID:        comment.ID,
		PostID:    comment.PostID,
		UserID:    comment.UserID,
		Content:   comment.Content,
		CreatedAt: comment.CreatedAt,
		Links:     linkData(comment.Links),
	}
}

func buildCommentResponse(comment *models.Comment) *dto.CommentResponse {
	return &dto.CommentResponse{
		ID:        comment.ID,
		PostID:    comment.PostID,
		UserID:    comment.UserID,
		Content:   comment.Content,
		CreatedAt: comment.CreatedAt.UTC().Format(time.RFC3339),
		Links:     buildLinkResponses(comment.Links),
	}
}
