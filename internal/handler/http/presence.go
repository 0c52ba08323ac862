package http

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"collaborative-rooms/internal/service"
)

// PresenceHandler 提供在线状态查询和 HTTP 心跳
type PresenceHandler struct {
	rooms    *service.RoomService
	presence *service.PresenceService
}

func NewPresenceHandler(rooms *service.RoomService, presence *service.PresenceService) *PresenceHandler {
	return &PresenceHandler{rooms: rooms, presence: presence}
}

// List 处理 GET /api/rooms/:code/presence
func (h *PresenceHandler) List(c *gin.Context) {
	token, ok := sessionToken(c)
	if !ok {
		return
	}
	room, _, err := h.rooms.RequireMember(c.Request.Context(), c.Param("code"), token)
	if err != nil {
		HandleServiceError(c, err)
		return
	}
	entries, err := h.presence.List(c.Request.Context(), room.ID)
	if err != nil {
		HandleServiceError(c, err)
		return
	}
	SuccessResponse(c, http.StatusOK, gin.H{
		"presence":      entries,
		"grace_seconds": int(h.presence.Grace().Seconds()),
	})
}

// Heartbeat 处理 POST /api/rooms/:code/heartbeat，供没有 WebSocket 的客户端使用
func (h *PresenceHandler) Heartbeat(c *gin.Context) {
	token, ok := sessionToken(c)
	if !ok {
		return
	}
	room, user, err := h.rooms.RequireMember(c.Request.Context(), c.Param("code"), token)
	if err != nil {
		HandleServiceError(c, err)
		return
	}
	if err := h.presence.Heartbeat(c.Request.Context(), room.ID, user.ID); err != nil {
		HandleServiceError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}
