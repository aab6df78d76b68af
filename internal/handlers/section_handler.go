package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"commune_backend/internal/middleware"
	"commune_backend/internal/repositories"
	"commune_backend/internal/services"
	"commune_backend/internal/services/dto"
	"commune_backend/pkg/apperrors"
)

type SectionHandler struct {
	*BaseHandler
	sectionService services.SectionService
	postService    services.PostService
}

func NewSectionHandler(base *BaseHandler, sectionService services.SectionService, postService services.PostService) *SectionHandler {
	return &SectionHandler{
		BaseHandler:    base,
		sectionService: sectionService,
		postService:    postService,
	}
}

func (h *SectionHandler) RegisterRoutes(r *gin.RouterGroup) {
	sections := r.Group("/sections")
	sections.Use(middleware.AuthMiddleware())
	{
		sections.GET("", h.ListSections)
		sections.GET("/:sectionId/posts", h.ListPosts)
		sections.POST("/subscriptions", h.Subscribe)
		sections.DELETE("/:sectionId/subscriptions", h.Unsubscribe)
	}
}

func (h *SectionHandler) ListSections(c *gin.Context) {
	sections, err := h.sectionService.ListSections()
	if err != nil {
		apperrors.HandleError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"sections": sections})
}

func (h *SectionHandler) ListPosts(c *gin.Context) {
	posts, err := h.postService.ListSectionPosts(c.Param("sectionId"), limitParam(c), offsetParam(c))
	if err != nil {
		apperrors.HandleError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"posts": posts})
}

func (h *SectionHandler) Subscribe(c *gin.Context) {
	userID, ok := h.RequireUserID(c)
	if !ok {
		return
	}

	var req dto.SubscribeSectionsRequest
	if !h.BindAndValidateJSON(c, &req) {
		return
	}

	if err := h.sectionService.Subscribe(userID, req.SectionIDs); err != nil {
		if errors.Is(err, repositories.ErrSectionNotFound) {
			apperrors.HandleError(c, apperrors.NewNotFoundError("section", "Section not found"))
			return
		}
		apperrors.HandleError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *SectionHandler) Unsubscribe(c *gin.Context) {
	userID, ok := h.RequireUserID(c)
	if !ok {
		return
	}

	if err := h.sectionService.Unsubscribe(userID, c.Param("sectionId")); err != nil {
		apperrors.HandleError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}
