package services

import (
	"context"
	"fmt"
	"sync"
	"time"

	"commune_backend/internal/models"
	"commune_backend/internal/realtime"
	"commune_backend/internal/repositories"
)

// recordingBus captures every publish so tests can assert on what went out,
// without the timing slack of a real consumer goroutine.
type recordingBus struct {
	mu        sync.Mutex
	published []publishedEvent
}

type publishedEvent struct {
	channel string
	event   realtime.Event
}

func (b *recordingBus) Publish(_ context.Context, channel string, event realtime.Event) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.published = append(b.published, publishedEvent{channel: channel, event: event})
	return nil
}

func (b *recordingBus) Subscribe(context.Context, realtime.Handler, ...string) error { return nil }
func (b *recordingBus) Close() error                                                 { return nil }

func (b *recordingBus) byType(eventType string) []publishedEvent {
	b.mu.Lock()
	defer b.mu.Unlock()
	var out []publishedEvent
	for _, p := range b.published {
		if p.event.Type == eventType {
			out = append(out, p)
		}
	}
	return out
}

// ---------------------------------------------------------------------------
// In-memory repositories
// ---------------------------------------------------------------------------

type fakeNotificationRepo struct {
	mu   sync.Mutex
	seq  int
	rows []*models.Notification
}

func (r *fakeNotificationRepo) Create(notification *models.Notification) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.seq++
	notification.ID = fmt.Sprintf("n%d", r.seq)
	notification.CreatedAt = time.Now()
	r.rows = append(r.rows, notification)
	return nil
}

func (r *fakeNotificationRepo) FindByID(id string) (*models.Notification, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, row := range r.rows {
		if row.ID == id {
			return row, nil
		}
	}
	return nil, repositories.ErrNotificationNotFound
}

func (r *fakeNotificationRepo) FindUserNotifications(userID string, _ repositories.NotificationCriteria) ([]models.Notification, int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []models.Notification
	for _, row := range r.rows {
		if row.UserID == userID {
			out = append(out, *row)
		}
	}
	return out, int64(len(out)), nil
}

func (r *fakeNotificationRepo) MarkAsRead(userID, notificationID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, row := range r.rows {
		if row.ID == notificationID && row.UserID == userID {
			row.IsRead = true
			return nil
		}
	}
	return repositories.ErrNotificationNotFound
}

func (r *fakeNotificationRepo) MarkAllAsRead(userID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, row := range r.rows {
		if row.UserID == userID {
			row.IsRead = true
		}
	}
	return nil
}

func (r *fakeNotificationRepo) GetUnreadCount(userID string) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var count int64
	for _, row := range r.rows {
		if row.UserID == userID && !row.IsRead {
			count++
		}
	}
	return count, nil
}

func (r *fakeNotificationRepo) Exists(userID, notificationType, postID string, commentID *string, since time.Time) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, row := range r.rows {
		if row.UserID != userID || row.Type != notificationType || row.PostID != postID {
			continue
		}
		if !equalStringPtr(row.CommentID, commentID) {
			continue
		}
		if row.CreatedAt.After(since) {
			return true, nil
		}
	}
	return false, nil
}

func (r *fakeNotificationRepo) forUser(userID string) []*models.Notification {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*models.Notification
	for _, row := range r.rows {
		if row.UserID == userID {
			out = append(out, row)
		}
	}
	return out
}

func (r *fakeNotificationRepo) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.rows)
}

func equalStringPtr(a, b *string) bool {
	if a == nil || b == nil {
		return a == b
	}
	return *a == *b
}

type fakeSectionRepo struct {
	sections    map[string]*models.Section
	subscribers map[string][]string
}

func newFakeSectionRepo() *fakeSectionRepo {
	return &fakeSectionRepo{
		sections:    make(map[string]*models.Section),
		subscribers: make(map[string][]string),
	}
}

func (r *fakeSectionRepo) Create(section *models.Section) error {
	r.sections[section.ID] = section
	return nil
}

func (r *fakeSectionRepo) FindByID(id string) (*models.Section, error) {
	section, ok := r.sections[id]
	if !ok {
		return nil, repositories.ErrSectionNotFound
	}
	return section, nil
}

func (r *fakeSectionRepo) List() ([]models.Section, error) {
	var out []models.Section
	for _, section := range r.sections {
		out = append(out, *section)
	}
	return out, nil
}

func (r *fakeSectionRepo) Subscribe(userID, sectionID string) error {
	r.subscribers[sectionID] = append(r.subscribers[sectionID], userID)
	return nil
}

func (r *fakeSectionRepo) Unsubscribe(userID, sectionID string) error {
	ids := r.subscribers[sectionID]
	for i, id := range ids {
		if id == userID {
			r.subscribers[sectionID] = append(ids[:i], ids[i+1:]...)
			break
		}
	}
	return nil
}

func (r *fakeSectionRepo) SubscriberIDs(sectionID string) ([]string, error) {
	return r.subscribers[sectionID], nil
}

type fakePostRepo struct {
	posts    map[string]*models.Post
	comments map[string]*models.Comment
}

func newFakePostRepo() *fakePostRepo {
	return &fakePostRepo{
		posts:    make(map[string]*models.Post),
		comments: make(map[string]*models.Comment),
	}
}

func (r *fakePostRepo) Create(post *models.Post) error {
	r.posts[post.ID] = post
	return nil
}

func (r *fakePostRepo) FindByID(id string) (*models.Post, error) {
	post, ok := r.posts[id]
	if !ok {
		return nil, repositories.ErrPostNotFound
	}
	return post, nil
}

func (r *fakePostRepo) ListBySection(string, int, int) ([]models.Post, error) { return nil, nil }

func (r *fakePostRepo) Delete(id string) error {
	delete(r.posts, id)
	return nil
}

func (r *fakePostRepo) CreateComment(comment *models.Comment) error {
	r.comments[comment.ID] = comment
	return nil
}

func (r *fakePostRepo) FindCommentByID(id string) (*models.Comment, error) {
	comment, ok := r.comments[id]
	if !ok {
		return nil, repositories.ErrCommentNotFound
	}
	return comment, nil
}

func (r *fakePostRepo) ListComments(postID string) ([]models.Comment, error) {
	var out []models.Comment
	for _, comment := range r.comments {
		if comment.PostID == postID {
			out = append(out, *comment)
		}
	}
	return out, nil
}

func (r *fakePostRepo) CommenterIDs(postID string) ([]string, error) {
	seen := make(map[string]struct{})
	var out []string
	for _, comment := range r.comments {
		if comment.PostID != postID {
			continue
		}
		if _, dup := seen[comment.UserID]; dup {
			continue
		}
		seen[comment.UserID] = struct{}{}
		out = append(out, comment.UserID)
	}
	return out, nil
}

func (r *fakePostRepo) DeleteComment(id string) error {
	delete(r.comments, id)
	return nil
}

func (r *fakePostRepo) CreateReaction(*models.Reaction) error { return nil }

func (r *fakePostRepo) DeleteReaction(string, *string, string, string) error { return nil }

type fakeMentionParser struct {
	users []models.User
}

func (p *fakeMentionParser) Resolve(string) ([]models.User, error) {
	return p.users, nil
}
