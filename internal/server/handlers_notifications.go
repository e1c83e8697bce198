package server

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/slated-app/slated/backend/internal/notify"
)

func (h *httpHandler) handleListNotifications(c *gin.Context) {
	userID := c.GetString(userIDContextKey)
	notifications, err := h.notifications.List(c.Request.Context(), userID)
	if err != nil {
		h.logger.Error("listing notifications failed", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal_error"})
		return
	}
	if notifications == nil {
		notifications = []notify.Notification{}
	}
	c.JSON(http.StatusOK, notifications)
}

func (h *httpHandler) handleMarkAllRead(c *gin.Context) {
	userID := c.GetString(userIDContextKey)
	if err := h.notifications.MarkRead(c.Request.Context(), userID, ""); err != nil {
		h.logger.Error("marking notifications read failed", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal_error"})
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *httpHandler) handleMarkRead(c *gin.Context) {
	userID := c.GetString(userIDContextKey)
	if err := h.notifications.MarkRead(c.Request.Context(), userID, c.Param("id")); err != nil {
		h.logger.Error("marking notification read failed", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal_error"})
		return
	}
	c.Status(http.StatusNoContent)
}
