package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	apperrors "jaudi-finance-backend/internal/common/errors"
	"jaudi-finance-backend/internal/common/middleware"
	"jaudi-finance-backend/internal/models"
	"jaudi-finance-backend/internal/notifications"
)

type NotificationHandler struct {
	service *notifications.Service
}

func NewNotificationHandler(service *notifications.Service) *NotificationHandler {
	return &NotificationHandler{service: service}
}

func (h *NotificationHandler) RegisterRoutes(router *gin.RouterGroup) {
	group := router.Group("/notifications")
	{
		group.POST("/token", h.registerToken)
		group.POST("/inbound", h.inbound)
	}
}

type tokenRequest struct {
	Token string `json:"token" binding:"required"`
}

func (h *NotificationHandler) registerToken(c *gin.Context) {
	var req tokenRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		middleware.AbortWithError(c, apperrors.Wrap(err, apperrors.ErrCodeValidation, "token is required"))
		return
	}
	if err := h.service.RegisterToken(c.Request.Context(), req.Token); err != nil {
		middleware.AbortWithError(c, err)
		return
	}
	respond(c, http.StatusOK, gin.H{"registered": true})
}

// inbound applies a push payload to local state, used by the push relay.
func (h *NotificationHandler) inbound(c *gin.Context) {
	var payload models.NotificationPayload
	if err := c.ShouldBindJSON(&payload); err != nil {
		middleware.AbortWithError(c, apperrors.Wrap(err, apperrors.ErrCodeValidation, "invalid notification payload"))
		return
	}
	if err := h.service.Apply(c.Request.Context(), payload); err != nil {
		middleware.AbortWithError(c, err)
		return
	}
	respond(c, http.StatusOK, gin.H{"applied": true})
}
