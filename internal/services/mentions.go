package services

import (
	"regexp"

	"commune_backend/internal/models"
	"commune_backend/internal/repositories"
)

var mentionPattern = regexp.MustCompile(`(^|[^\w@])@([a-zA-Z0-9_]{3,32})\b`)

// MentionParser resolves @handle mentions in post and comment content. It is
// a read-only collaborator of the notification materializer.
type MentionParser interface {
	Resolve(content string) ([]models.User, error)
}

type mentionParser struct {
	userRepo repositories.UserRepository
}

func NewMentionParser(userRepo repositories.UserRepository) MentionParser {
	return &mentionParser{userRepo: userRepo}
}

// Resolve extracts distinct @handles from content and returns the users that
// actually exist; unknown handles are silently ignored.
func (p *mentionParser) Resolve(content string) ([]models.User, error) {
	matches := mentionPattern.FindAllStringSubmatch(content, -1)
	if len(matches) == 0 {
		return nil, nil
	}

	seen := make(map[string]struct{}, len(matches))
	handles := make([]string, 0, len(matches))
	for _, match := range matches {
		handle := match[2]
		if _, dup := seen[handle]; dup {
			continue
		}
		seen[handle] = struct{}{}
		handles = append(handles, handle)
	}

	return p.userRepo.FindByHandles(handles)
}

// Excerpt trims content for mention payloads so an event stays small even
// for long posts.
func Excerpt(content string, max int) string {
	runes := []rune(content)
	if len(runes) <= max {
		return content
	}
	return string(runes[:max]) + "…"
}
