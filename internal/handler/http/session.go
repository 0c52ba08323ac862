package http

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"collaborative-rooms/internal/domain"
	"collaborative-rooms/internal/service"
)

// SessionHandler 处理匿名身份和会话
type SessionHandler struct {
	identity *service.IdentityService
}

// NewSessionHandler 创建 SessionHandler 实例
func NewSessionHandler(identity *service.IdentityService) *SessionHandler {
	return &SessionHandler{identity: identity}
}

// IdentifyRequest 定义建立会话的请求体。token 为空时签发新身份。
type IdentifyRequest struct {
	DisplayName string `json:"display_name" binding:"max=64"`
	Token       string `json:"token" binding:"omitempty,max=64"`
}

// SessionResponse 定义会话响应
type SessionResponse struct {
	User    *domain.User `json:"user"`
	Token   string       `json:"token"`
	Session string       `json:"session"`
	Created bool         `json:"created"`
}

// Identify 处理 POST /api/session
func (h *SessionHandler) Identify(c *gin.Context) {
	var req IdentifyRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		logrus.WithError(err).Warn("Handler.Identify: Invalid input format")
		bindingError(c, err)
		return
	}

	id, err := h.identity.Identify(c.Request.Context(), req.DisplayName, req.Token)
	if err != nil {
		HandleServiceError(c, err)
		return
	}

	status := http.StatusOK
	if id.Created {
		status = http.StatusCreated
	}
	logrus.WithFields(logrus.Fields{"user_id": id.User.ID, "created": id.Created}).Info("Handler.Identify: Session issued")
	SuccessResponse(c, status, SessionResponse{User: id.User, Token: id.Token, Session: id.Session, Created: id.Created})
}

// Current 处理 GET /api/session
func (h *SessionHandler) Current(c *gin.Context) {
	token, ok := sessionToken(c)
	if !ok {
		return
	}
	user, err := h.identity.CurrentUser(c.Request.Context(), token)
	if err != nil {
		HandleServiceError(c, err)
		return
	}
	SuccessResponse(c, http.StatusOK, gin.H{"user": user})
}

// Logout 处理 DELETE /api/session。会话是无状态的，客户端丢弃 token 即可。
func (h *SessionHandler) Logout(c *gin.Context) {
	SuccessResponse(c, http.StatusOK, gin.H{"message": "Logged out"})
}
