package handlers

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"commune_backend/internal/middleware"
	"commune_backend/internal/repositories"
	"commune_backend/internal/services"
	"commune_backend/internal/services/dto"
	"commune_backend/pkg/apperrors"
)

type PostHandler struct {
	*BaseHandler
	postService     services.PostService
	commentService  services.CommentService
	reactionService services.ReactionService
}

func NewPostHandler(
	base *BaseHandler,
	postService services.PostService,
	commentService services.CommentService,
	reactionService services.ReactionService,
) *PostHandler {
	return &PostHandler{
		BaseHandler:     base,
		postService:     postService,
		commentService:  commentService,
		reactionService: reactionService,
	}
}

func (h *PostHandler) RegisterRoutes(r *gin.RouterGroup) {
	posts := r.Group("/posts")
	posts.Use(middleware.AuthMiddleware())
	{
		posts.POST("", h.CreatePost)
		posts.GET("/:postId", h.GetPost)
		posts.DELETE("/:postId", h.DeletePost)
		posts.GET("/:postId/comments", h.ListComments)
		posts.POST("/:postId/comments", h.CreateComment)
	}

	comments := r.Group("/comments")
	comments.Use(middleware.AuthMiddleware())
	{
		comments.DELETE("/:commentId", h.DeleteComment)
	}

	reactions := r.Group("/reactions")
	reactions.Use(middleware.AuthMiddleware())
	{
		reactions.POST("", h.AddReaction)
		reactions.DELETE("", h.RemoveReaction)
	}
}

func (h *PostHandler) CreatePost(c *gin.Context) {
	userID, ok := h.RequireUserID(c)
	if !ok {
		return
	}

	var req dto.CreatePostRequest
	if !h.BindAndValidateJSON(c, &req) {
		return
	}

	post, err := h.postService.CreatePost(c.Request.Context(), userID, &req)
	if err != nil {
		if errors.Is(err, services.ErrSectionMissing) {
			apperrors.HandleError(c, apperrors.NewNotFoundError("section", "Section not found"))
			return
		}
		apperrors.HandleError(c, err)
		return
	}
	c.JSON(http.StatusCreated, post)
}

func (h *PostHandler) GetPost(c *gin.Context) {
	post, err := h.postService.GetPost(c.Param("postId"))
	if err != nil {
		handleFeedError(c, err)
		return
	}
	c.JSON(http.StatusOK, post)
}

func (h *PostHandler) DeletePost(c *gin.Context) {
	userID, ok := h.RequireUserID(c)
	if !ok {
		return
	}

	err := h.postService.DeletePost(c.Request.Context(), userID, c.Param("postId"))
	if err != nil {
		if errors.Is(err, services.ErrNotOwner) {
			apperrors.HandleError(c, apperrors.NewForbiddenError("Only the author can delete a post"))
			return
		}
		handleFeedError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *PostHandler) ListComments(c *gin.Context) {
	comments, err := h.commentService.ListComments(c.Param("postId"))
	if err != nil {
		handleFeedError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"comments": comments})
}

func (h *PostHandler) CreateComment(c *gin.Context) {
	userID, ok := h.RequireUserID(c)
	if !ok {
		return
	}

	var req dto.CreateCommentRequest
	if !h.BindAndValidateJSON(c, &req) {
		return
	}

	comment, err := h.commentService.CreateComment(c.Request.Context(), userID, c.Param("postId"), &req)
	if err != nil {
		handleFeedError(c, err)
		return
	}
	c.JSON(http.StatusCreated, comment)
}

func (h *PostHandler) DeleteComment(c *gin.Context) {
	userID, ok := h.RequireUserID(c)
	if !ok {
		return
	}

	err := h.commentService.DeleteComment(c.Request.Context(), userID, c.Param("commentId"))
	if err != nil {
		if errors.Is(err, services.ErrNotOwner) {
			apperrors.HandleError(c, apperrors.NewForbiddenError("Only the author can delete a comment"))
			return
		}
		handleFeedError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *PostHandler) AddReaction(c *gin.Context) {
	userID, ok := h.RequireUserID(c)
	if !ok {
		return
	}

	var req dto.ReactionRequest
	if !h.BindAndValidateJSON(c, &req) {
		return
	}

	if err := h.reactionService.AddReaction(c.Request.Context(), userID, &req); err != nil {
		handleFeedError(c, err)
		return
	}
	c.Status(http.StatusCreated)
}

func (h *PostHandler) RemoveReaction(c *gin.Context) {
	userID, ok := h.RequireUserID(c)
	if !ok {
		return
	}

	var req dto.ReactionRequest
	if !h.BindAndValidateJSON(c, &req) {
		return
	}

	if err := h.reactionService.RemoveReaction(c.Request.Context(), userID, &req); err != nil {
		handleFeedError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func handleFeedError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, repositories.ErrPostNotFound):
		apperrors.HandleError(c, apperrors.NewNotFoundError("post", "Post not found"))
	case errors.Is(err, repositories.ErrCommentNotFound):
		apperrors.HandleError(c, apperrors.NewNotFoundError("comment", "Comment not found"))
	default:
		apperrors.HandleError(c, err)
	}
}

// pagination helpers shared by the list endpoints

func limitParam(c *gin.Context) int {
	limit, err := strconv.Atoi(c.DefaultQuery("limit", "20"))
	if err != nil || limit < 1 || limit > 100 {
		return 20
	}
	return limit
}

func offsetParam(c *gin.Context) int {
	offset, err := strconv.Atoi(c.DefaultQuery("offset", "0"))
	if err != nil || offset < 0 {
		return 0
	}
	return offset
}
