package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/pr0br0/cyboard/internal/api/middleware"
	"github.com/pr0br0/cyboard/internal/services"
)

// RestMessageHandler serves direct messages between users about listings.
type RestMessageHandler struct {
	messageService services.IMessageService
	resp           Responder
}

func NewRestMessageHandler(messageService services.IMessageService, resp Responder) *RestMessageHandler {
	return &RestMessageHandler{messageService: messageService, resp: resp}
}

// SendMessage handles POST /api/messages
func (h *RestMessageHandler) SendMessage(c *gin.Context) {
	var in services.MessageInput
	if !bindJSON(c, &in) {
		return
	}
	msg, err := h.messageService.Send(c.Request.Context(), middleware.Actor(c).UserID, in)
	if err != nil {
		h.resp.Error(c, err, "Listing or recipient")
		return
	}
	respondMessage(c, http.StatusCreated, "Message sent", msg)
}

// GetConversations handles GET /api/messages/conversations
func (h *RestMessageHandler) GetConversations(c *gin.Context) {
	conversations, err := h.messageService.Conversations(c.Request.Context(), middleware.Actor(c).UserID)
	if err != nil {
		h.resp.Error(c, err, "Conversation")
		return
	}
	if conversations == nil {
		conversations = []services.ConversationView{}
	}
	respond(c, http.StatusOK, conversations)
}

// UnreadCount handles GET /api/messages/unread-count
func (h *RestMessageHandler) UnreadCount(c *gin.Context) {
	n, err := h.messageService.UnreadCount(c.Request.Context(), middleware.Actor(c).UserID)
	if err != nil {
		h.resp.Error(c, err, "Message")
		return
	}
	respond(c, http.StatusOK, gin.H{"count": n})
}

// GetThread handles GET /api/messages/:userId
func (h *RestMessageHandler) GetThread(c *gin.Context) {
	peer, ok := paramID(c, "userId")
	if !ok {
		return
	}
	page, limit := pageParams(c)
	result, err := h.messageService.Thread(c.Request.Context(), middleware.Actor(c).UserID, peer, page, limit)
	if err != nil {
		h.resp.Error(c, err, "User")
		return
	}
	respondPage(c, result.Items, result.Pagination)
}

// MarkRead handles PUT /api/messages/read/:userId
func (h *RestMessageHandler) MarkRead(c *gin.Context) {
	peer, ok := paramID(c, "userId")
	if !ok {
		return
	}
	n, err := h.messageService.MarkRead(c.Request.Context(), middleware.Actor(c).UserID, peer)
	if err != nil {
		h.resp.Error(c, err, "User")
		return
	}
	respondMessage(c, http.StatusOK, "Messages marked as read", gin.H{"modified": n})
}

// DeleteMessage handles DELETE /api/messages/:id
func (h *RestMessageHandler) DeleteMessage(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}
	if err := h.messageService.Delete(c.Request.Context(), middleware.Actor(c).UserID, id); err != nil {
		h.resp.Error(c, err, "Message")
		return
	}
	respondMessage(c, http.StatusOK, "Message deleted", nil)
}
