package services

import (
	"context"

	"commune_backend/internal/models"
	"commune_backend/internal/realtime"
	"commune_backend/internal/repositories"
	"commune_backend/internal/services/dto"
)

type ReactionService interface {
	AddReaction(ctx context.Context, userID string, req *dto.ReactionRequest) error
	RemoveReaction(ctx context.Context, userID string, req *dto.ReactionRequest) error
}

type reactionService struct {
	postRepo  repositories.PostRepository
	publisher *realtime.Publisher
}

func NewReactionService(postRepo repositories.PostRepository, publisher *realtime.Publisher) ReactionService {
	return &reactionService{postRepo: postRepo, publisher: publisher}
}

func (s *reactionService) AddReaction(ctx context.Context, userID string, req *dto.ReactionRequest) error {
	if _, err := s.postRepo.FindByID(req.PostID); err != nil {
		return err
	}
	if req.CommentID != nil {
		if _, err := s.postRepo.FindCommentByID(*req.CommentID); err != nil {
			return err
		}
	}

	reaction := &models.Reaction{
		PostID:    req.PostID,
		CommentID: req.CommentID,
		UserID:    userID,
		Emoji:     req.Emoji,
	}
	if err := s.postRepo.CreateReaction(reaction); err != nil {
		return err
	}

	s.publisher.Publish(ctx, realtime.PostChannel(req.PostID), realtime.EventReactionAdded, realtime.ReactionPayload{
		PostID:    req.PostID,
		CommentID: req.CommentID,
		UserID:    userID,
		Emoji:     req.Emoji,
	})
	return nil
}

func (s *reactionService) RemoveReaction(ctx context.Context, userID string, req *dto.ReactionRequest) error {
	if err := s.postRepo.DeleteReaction(req.PostID, req.CommentID, userID, req.Emoji); err != nil {
		return err
	}

	s.publisher.Publish(ctx, realtime.PostChannel(req.PostID), realtime.EventReactionRemoved, realtime.ReactionPayload{
		PostID:    req.PostID,
		CommentID: req.CommentID,
		UserID:    userID,
		Emoji:     req.Emoji,
	})
	return nil
}
