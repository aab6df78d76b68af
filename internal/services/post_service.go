package services

import (
	"context"
	"errors"
	"time"

	"commune_backend/internal/models"
	"commune_backend/internal/realtime"
	"commune_backend/internal/repositories"
	"commune_backend/internal/services/dto"
)

var (
	ErrSectionMissing = errors.New("section does not exist")
	ErrNotOwner       = errors.New("entity belongs to another user")
)

type PostService interface {
	CreatePost(ctx context.Context, userID string, req *dto.CreatePostRequest) (*dto.PostResponse, error)
	GetPost(postID string) (*dto.PostResponse, error)
	ListSectionPosts(sectionID string, limit, offset int) ([]dto.PostResponse, error)
	DeletePost(ctx context.Context, userID, postID string) error
}

type postService struct {
	postRepo    repositories.PostRepository
	sectionRepo repositories.SectionRepository
	userRepo    repositories.UserRepository
	linkService LinkService
	publisher   *realtime.Publisher
}

func NewPostService(
	postRepo repositories.PostRepository,
	sectionRepo repositories.SectionRepository,
	userRepo repositories.UserRepository,
	linkService LinkService,
	publisher *realtime.Publisher,
) PostService {
	return &postService{
		postRepo:    postRepo,
		sectionRepo: sectionRepo,
		userRepo:    userRepo,
		linkService: linkService,
		publisher:   publisher,
	}
}

// CreatePost persists the post, attaches its links, and only then publishes
// the new_post event: clients are never told about state that could still
// roll back.
func (s *postService) CreatePost(ctx context.Context, userID string, req *dto.CreatePostRequest) (*dto.PostResponse, error) {
	if _, err := s.sectionRepo.FindByID(req.SectionID); err != nil {
		if errors.Is(err, repositories.ErrSectionNotFound) {
			return nil, ErrSectionMissing
		}
		return nil, err
	}

	user, err := s.userRepo.FindByID(userID)
	if err != nil {
		return nil, err
	}

	post := &models.Post{
		SectionID: req.SectionID,
		UserID:    userID,
		Content:   req.Content,
	}
	if err := s.postRepo.Create(post); err != nil {
		return nil, err
	}

	links, err := s.linkService.AttachToPost(post.ID, post.Content)
	if err != nil {
		return nil, err
	}
	post.Links = links

	s.publisher.Publish(ctx, realtime.SectionChannel(post.SectionID), realtime.EventNewPost, realtime.NewPostPayload{
		Post: postData(post),
		User: user.Public(),
	})

	return buildPostResponse(post), nil
}

func (s *postService) GetPost(postID string) (*dto.PostResponse, error) {
	post, err := s.postRepo.FindByID(postID)
	if err != nil {
		return nil, err
	}
	return buildPostResponse(post), nil
}

func (s *postService) ListSectionPosts(sectionID string, limit, offset int) ([]dto.PostResponse, error) {
	posts, err := s.postRepo.ListBySection(sectionID, limit, offset)
	if err != nil {
		return nil, err
	}
	responses := make([]dto.PostResponse, 0, len(posts))
	for i := range posts {
		responses = append(responses, *buildPostResponse(&posts[i]))
	}
	return responses, nil
}

func (s *postService) DeletePost(ctx context.Context, userID, postID string) error {
	post, err := s.postRepo.FindByID(postID)
	if err != nil {
		return err
	}
	if post.UserID != userID {
		return ErrNotOwner
	}

	if err := s.postRepo.Delete(postID); err != nil {
		return err
	}

	s.publisher.Publish(ctx, realtime.SectionChannel(post.SectionID), realtime.EventPostDeleted, realtime.PostDeletedPayload{
		PostID: postID,
	})
	return nil
}

func postData(post *models.Post) realtime.PostData {
	return realtime.PostData{
		ID:        post.ID,
		SectionID: post.SectionID,
		UserID:    post.UserID,
		Content:   post.Content,
		CreatedAt: post.CreatedAt,
		Links:     linkData(post.Links),
	}
}

func linkData(links []models.Link) []realtime.LinkData {
	if len(links) == 0 {
		return nil
	}
	out := make([]realtime.LinkData, 0, len(links))
	for _, link := range links {
		out = append(out, realtime.LinkData{
			ID:       link.ID,
			URL:      link.URL,
			Metadata: []byte(link.Metadata),
		})
	}
	return out
}

func buildPostResponse(post *models.Post) *dto.PostResponse {
	return &dto.PostResponse{
		ID:        post.ID,
		SectionID: post.SectionID,
		UserID:    post.UserID,
		Content:   post.Content,
		CreatedAt: post.CreatedAt.UTC().Format(time.RFC3339),
		Links:     buildLinkResponses(post.Links),
	}
}

func buildLinkResponses(links []models.Link) []dto.LinkResponse {
	if len(links) == 0 {
		return nil
	}
	out := make([]dto.LinkResponse, 0, len(links))
	for _, link := range links {
		out = append(out, dto.LinkResponse{
			ID:       link.ID,
			URL:      link.URL,
			Metadata: []byte(link.Metadata),
		})
	}
	return out
}
