package handlers

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/pr0br0/cyboard/internal/api/middleware"
	"github.com/pr0br0/cyboard/internal/services"
	"github.com/pr0br0/cyboard/internal/utils"
)

// RestNotificationHandler serves the signed-in user's notification inbox.
type RestNotificationHandler struct {
	notificationService services.INotificationService
	resp                Responder
}

func NewRestNotificationHandler(notificationService services.INotificationService, resp Responder) *RestNotificationHandler {
	return &RestNotificationHandler{notificationService: notificationService, resp: resp}
}

type idsRequest struct {
	IDs []utils.SixID `json:"ids"`
}

// ListNotifications handles GET /api/notifications?unreadOnly=true
func (h *RestNotificationHandler) ListNotifications(c *gin.Context) {
	page, limit := pageParams(c)
	unreadOnly, _ := strconv.ParseBool(c.Query("unreadOnly"))
	result, err := h.notificationService.List(c.Request.Context(), middleware.Actor(c).UserID, unreadOnly, page, limit)
	if err != nil {
		h.resp.Error(c, err, "Notification")
		return
	}
	respondPage(c, result.Items, result.Pagination)
}

// UnreadCount handles GET /api/notifications/unread-count
func (h *RestNotificationHandler) UnreadCount(c *gin.Context) {
	n, err := h.notificationService.UnreadCount(c.Request.Context(), middleware.Actor(c).UserID)
	if err != nil {
		h.resp.Error(c, err, "Notification")
		return
	}
	respond(c, http.StatusOK, gin.H{"count": n})
}

// MarkRead handles PUT /api/notifications/mark-read
func (h *RestNotificationHandler) MarkRead(c *gin.Context) {
	var req idsRequest
	if !bindJSON(c, &req) {
		return
	}
	n, err := h.notificationService.MarkRead(c.Request.Context(), middleware.Actor(c).UserID, req.IDs)
	if err != nil {
		h.resp.Error(c, err, "Notification")
		return
	}
	respondMessage(c, http.StatusOK, "Notifications marked as read", gin.H{"modified": n})
}

// DeleteNotifications handles DELETE /api/notifications
func (h *RestNotificationHandler) DeleteNotifications(c *gin.Context) {
	var req idsRequest
	if !bindJSON(c, &req) {
		return
	}
	n, err := h.notificationService.Delete(c.Request.Context(), middleware.Actor(c).UserID, req.IDs)
	if err != nil {
		h.resp.Error(c, err, "Notification")
		return
	}
	respondMessage(c, http.StatusOK, "Notifications deleted", gin.H{"deleted": n})
}
