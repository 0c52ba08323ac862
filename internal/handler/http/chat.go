package http

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"collaborative-rooms/internal/service"
)

// ChatHandler 处理房间聊天
type ChatHandler struct {
	chat *service.ChatService
}

func NewChatHandler(chat *service.ChatService) *ChatHandler {
	return &ChatHandler{chat: chat}
}

type SendChatRequest struct {
	Text string `json:"text" binding:"required"`
}

// List 处理 GET /api/rooms/:code/chat，消息从旧到新
func (h *ChatHandler) List(c *gin.Context) {
	token, ok := sessionToken(c)
	if !ok {
		return
	}
	limit, ok := limitQuery(c)
	if !ok {
		return
	}
	entries, err := h.chat.List(c.Request.Context(), c.Param("code"), token, limit)
	if err != nil {
		HandleServiceError(c, err)
		return
	}
	SuccessResponse(c, http.StatusOK, gin.H{"messages": entries})
}

// Send 处理 POST /api/rooms/:code/chat
func (h *ChatHandler) Send(c *gin.Context) {
	token, ok := sessionToken(c)
	if !ok {
		return
	}
	var req SendChatRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		bindingError(c, err)
		return
	}
	entry, err := h.chat.Send(c.Request.Context(), c.Param("code"), token, req.Text)
	if err != nil {
		HandleServiceError(c, err)
		return
	}
	SuccessResponse(c, http.StatusCreated, entry)
}
