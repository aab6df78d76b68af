package services

import (
	"regexp"

	"commune_backend/internal/linkmeta"
	"commune_backend/internal/logger"
	"commune_backend/internal/models"
	"commune_backend/internal/repositories"
)

var urlPattern = regexp.MustCompile(`https?://[^\s<>"')\]]+`)

// LinkService turns URLs found in content into Link rows and enqueues
// metadata jobs for the ones without cached metadata. The enqueue is
// synchronous with the write; the fetch itself is deferred to the worker
// pool.
type LinkService interface {
	AttachToPost(postID, content string) ([]models.Link, error)
	AttachToComment(commentID, content string) ([]models.Link, error)
}

type linkService struct {
	linkRepo repositories.LinkRepository
	jobRepo  repositories.MetadataJobRepository
}

func NewLinkService(linkRepo repositories.LinkRepository, jobRepo repositories.MetadataJobRepository) LinkService {
	return &linkService{linkRepo: linkRepo, jobRepo: jobRepo}
}

func (s *linkService) AttachToPost(postID, content string) ([]models.Link, error) {
	return s.attach(&postID, nil, content)
}

func (s *linkService) AttachToComment(commentID, content string) ([]models.Link, error) {
	return s.attach(nil, &commentID, content)
}

func (s *linkService) attach(postID, commentID *string, content string) ([]models.Link, error) {
	urls := urlPattern.FindAllString(content, -1)
	if len(urls) == 0 {
		return nil, nil
	}

	seen := make(map[string]struct{}, len(urls))
	var links []models.Link

	for _, rawURL := range urls {
		if _, dup := seen[rawURL]; dup {
			continue
		}
		seen[rawURL] = struct{}{}

		link := models.Link{PostID: postID, CommentID: commentID, URL: rawURL}

		// Reuse metadata another link already fetched for the same URL; only
		// genuinely unknown URLs cost a job.
		cached, err := s.linkRepo.FindCachedMetadata(rawURL)
		if err != nil {
			return nil, err
		}
		link.Metadata = cached

		if err := s.linkRepo.Create(&link); err != nil {
			return nil, err
		}
		links = append(links, link)

		if cached != nil {
			continue
		}

		job := &models.MetadataJob{
			LinkID:       link.ID,
			URL:          rawURL,
			ProviderHint: linkmeta.HintFor(rawURL),
		}
		if err := s.jobRepo.EnqueueIfAbsent(job); err != nil {
			// The post itself is fine without a preview; log and move on.
			logger.Error("Failed to enqueue metadata job", "link_id", link.ID, "url", rawURL, "error", err)
		}
	}
	return links, nil
}
