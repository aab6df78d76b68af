package services

import (
	"context"
	"encoding/json"
	"time"

	"gorm.io/datatypes"

	"commune_backend/internal/logger"
	"commune_backend/internal/models"
	"commune_backend/internal/realtime"
	"commune_backend/internal/repositories"
)

// NotificationMaterializer turns domain events into durable notification
// rows and re-publishes them on user-scoped channels, so a notification
// reaches the user's live connections no matter which process they are
// attached to. Bus delivery is at-least-once; the dedup-window existence
// check keeps redelivered events from duplicating rows.
type NotificationMaterializer struct {
	notificationRepo repositories.NotificationRepository
	sectionRepo      repositories.SectionRepository
	postRepo         repositories.PostRepository
	mentions         MentionParser
	publisher        *realtime.Publisher
}

func NewNotificationMaterializer(
	notificationRepo repositories.NotificationRepository,
	sectionRepo repositories.SectionRepository,
	postRepo repositories.PostRepository,
	mentions MentionParser,
	publisher *realtime.Publisher,
) *NotificationMaterializer {
	return &NotificationMaterializer{
		notificationRepo: notificationRepo,
		sectionRepo:      sectionRepo,
		postRepo:         postRepo,
		mentions:         mentions,
		publisher:        publisher,
	}
}

// Run attaches the materializer to the bus with its own consumer, separate
// from the delivery gateway's.
func (m *NotificationMaterializer) Run(ctx context.Context, bus realtime.Bus) error {
	return bus.Subscribe(ctx, func(channel string, event realtime.Event) {
		m.HandleEvent(ctx, channel, event)
	}, "section:*", "post:*")
}

// HandleEvent routes one domain event through the notification rules. All
// failures are logged and swallowed: materialization is best-effort and must
// never affect the write that produced the event.
func (m *NotificationMaterializer) HandleEvent(ctx context.Context, channel string, event realtime.Event) {
	var err error
	switch event.Type {
	case realtime.EventNewPost:
		var payload realtime.NewPostPayload
		if err = json.Unmarshal(event.Data, &payload); err == nil {
			m.handleNewPost(ctx, payload)
		}
	case realtime.EventNewComment:
		var payload realtime.NewCommentPayload
		if err = json.Unmarshal(event.Data, &payload); err == nil {
			m.handleNewComment(ctx, payload)
		}
	case realtime.EventReactionAdded:
		var payload realtime.ReactionPayload
		if err = json.Unmarshal(event.Data, &payload); err == nil {
			m.handleReaction(ctx, payload)
		}
	default:
		// Deletions, metadata updates and our own re-published events do not
		// materialize notifications.
	}
	if err != nil {
		logger.Error("Malformed event payload", "channel", channel, "type", event.Type, "error", err)
	}
}

// New post in a section: every subscriber of the section except the author
// gets a notification; mentioned users additionally get a mention.
func (m *NotificationMaterializer) handleNewPost(ctx context.Context, payload realtime.NewPostPayload) {
	subscriberIDs, err := m.sectionRepo.SubscriberIDs(payload.Post.SectionID)
	if err != nil {
		logger.Error("Failed to load section subscribers", "section_id", payload.Post.SectionID, "error", err)
		return
	}

	sectionName := m.sectionName(payload.Post.SectionID)
	excerpt := Excerpt(payload.Post.Content, 140)

	for _, userID := range subscriberIDs {
		if userID == payload.Post.UserID {
			continue
		}
		m.materialize(ctx, notificationSpec{
			recipientID: userID,
			notifType:   models.NotificationTypeNewPost,
			postID:      payload.Post.ID,
			triggeredBy: payload.User,
			sectionName: sectionName,
			excerpt:     excerpt,
		})
	}

	m.handleMentions(ctx, payload.Post.Content, payload.Post.ID, nil, payload.User, sectionName)
}

// New comment on a post: the post author and everyone who commented before
// get notified, deduplicated by user id and excluding the commenter.
func (m *NotificationMaterializer) handleNewComment(ctx context.Context, payload realtime.NewCommentPayload) {
	post, err := m.postRepo.FindByID(payload.PostID)
	if err != nil {
		logger.Error("Failed to load post for comment notification", "post_id", payload.PostID, "error", err)
		return
	}

	commenterIDs, err := m.postRepo.CommenterIDs(payload.PostID)
	if err != nil {
		logger.Error("Failed to load commenters", "post_id", payload.PostID, "error", err)
		return
	}

	recipients := make(map[string]struct{}, len(commenterIDs)+1)
	recipients[post.UserID] = struct{}{}
	for _, id := range commenterIDs {
		recipients[id] = struct{}{}
	}
	delete(recipients, payload.Comment.UserID)

	sectionName := m.sectionName(post.SectionID)
	excerpt := Excerpt(payload.Comment.Content, 140)
	commentID := payload.Comment.ID

	for userID := range recipients {
		m.materialize(ctx, notificationSpec{
			recipientID: userID,
			notifType:   models.NotificationTypeNewComment,
			postID:      payload.PostID,
			commentID:   &commentID,
			triggeredBy: payload.User,
			sectionName: sectionName,
			excerpt:     excerpt,
		})
	}

	m.handleMentions(ctx, payload.Comment.Content, payload.PostID, &commentID, payload.User, sectionName)
}

// Reaction added: the author of the reacted-to post or comment is notified,
// unless they reacted to their own content.
func (m *NotificationMaterializer) handleReaction(ctx context.Context, payload realtime.ReactionPayload) {
	var authorID string
	if payload.CommentID != nil {
		comment, err := m.postRepo.FindCommentByID(*payload.CommentID)
		if err != nil {
			logger.Error("Failed to load comment for reaction notification", "comment_id", *payload.CommentID, "error", err)
			return
		}
		authorID = comment.UserID
	} else {
		post, err := m.postRepo.FindByID(payload.PostID)
		if err != nil {
			logger.Error("Failed to load post for reaction notification", "post_id", payload.PostID, "error", err)
			return
		}
		authorID = post.UserID
	}

	if authorID == payload.UserID {
		return
	}

	m.materialize(ctx, notificationSpec{
		recipientID: authorID,
		notifType:   models.NotificationTypeReaction,
		postID:      payload.PostID,
		commentID:   payload.CommentID,
		triggeredBy: models.PublicUser{ID: payload.UserID},
		excerpt:     payload.Emoji,
	})
}

// handleMentions resolves @handles through the mention-parsing collaborator
// and fans a mention out to each mentioned user's mentions channel.
func (m *NotificationMaterializer) handleMentions(ctx context.Context, content, postID string, commentID *string, author models.PublicUser, sectionName string) {
	mentioned, err := m.mentions.Resolve(content)
	if err != nil {
		logger.Error("Failed to resolve mentions", "post_id", postID, "error", err)
		return
	}

	excerpt := Excerpt(content, 140)
	for i := range mentioned {
		user := &mentioned[i]
		if user.ID == author.ID {
			continue
		}

		created := m.materialize(ctx, notificationSpec{
			recipientID: user.ID,
			notifType:   models.NotificationTypeMention,
			postID:      postID,
			commentID:   commentID,
			triggeredBy: author,
			sectionName: sectionName,
			excerpt:     excerpt,
		})
		if !created {
			continue
		}

		m.publisher.Publish(ctx, realtime.UserMentionsChannel(user.ID), realtime.EventMention, realtime.MentionPayload{
			MentioningUser: author,
			PostID:         postID,
			CommentID:      commentID,
			Excerpt:        excerpt,
		})
	}
}

type notificationSpec struct {
	recipientID string
	notifType   string
	postID      string
	commentID   *string
	triggeredBy models.PublicUser
	sectionName string
	excerpt     string
}

// materialize writes at most one notification row per (recipient, type,
// related entity) within the dedup window, then pushes it to the user's
// notifications channel. Returns whether a new row was created.
func (m *NotificationMaterializer) materialize(ctx context.Context, spec notificationSpec) bool {
	since := time.Now().Add(-repositories.DedupWindow)
	exists, err := m.notificationRepo.Exists(spec.recipientID, spec.notifType, spec.postID, spec.commentID, since)
	if err != nil {
		logger.Error("Notification dedup check failed", "user_id", spec.recipientID, "type", spec.notifType, "error", err)
		return false
	}
	if exists {
		logger.Debug("Skipping duplicate notification",
			"user_id", spec.recipientID, "type", spec.notifType, "post_id", spec.postID)
		return false
	}

	data, err := json.Marshal(map[string]any{
		"postId":      spec.postID,
		"commentId":   spec.commentID,
		"triggeredBy": spec.triggeredBy,
		"excerpt":     spec.excerpt,
	})
	if err != nil {
		logger.Error("Failed to encode notification data", "error", err)
		return false
	}

	notification := &models.Notification{
		UserID:        spec.recipientID,
		Type:          spec.notifType,
		PostID:        spec.postID,
		CommentID:     spec.commentID,
		TriggeredByID: spec.triggeredBy.ID,
		Data:          datatypes.JSON(data),
	}
	if err := m.notificationRepo.Create(notification); err != nil {
		logger.Error("Failed to create notification", "user_id", spec.recipientID, "type", spec.notifType, "error", err)
		return false
	}

	m.publisher.Publish(ctx, realtime.UserNotificationsChannel(spec.recipientID), realtime.EventNotification, realtime.NotificationPayload{
		ID:          notification.ID,
		Type:        notification.Type,
		SectionName: spec.sectionName,
		Data:        data,
	})
	return true
}

func (m *NotificationMaterializer) sectionName(sectionID string) string {
	section, err := m.sectionRepo.FindByID(sectionID)
	if err != nil {
		return ""
	}
	return section.Name
}
