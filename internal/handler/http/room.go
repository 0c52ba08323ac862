package http

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"collaborative-rooms/internal/service"
)

// RoomHandler 封装了与房间管理相关的 HTTP 处理逻辑
type RoomHandler struct {
	roomService *service.RoomService
}

// NewRoomHandler 创建 RoomHandler 实例
func NewRoomHandler(roomService *service.RoomService) *RoomHandler {
	return &RoomHandler{roomService: roomService}
}

// CreateRoomRequest 定义创建房间的请求体
type CreateRoomRequest struct {
	Name string `json:"name" binding:"required,max=100"`
}

// CreateRoom 处理创建新房间的请求
func (h *RoomHandler) CreateRoom(c *gin.Context) {
	token, ok := sessionToken(c)
	if !ok {
		return
	}
	var req CreateRoomRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		logrus.WithError(err).Warn("Handler.CreateRoom: Invalid input format")
		ResultResponse(c, http.StatusBadRequest, false, "Room name is required", nil)
		return
	}

	room, err := h.roomService.CreateRoom(c.Request.Context(), req.Name, token)
	if err != nil {
		handleRoomError(c, err)
		return
	}

	logrus.WithFields(logrus.Fields{"room_id": room.ID, "room_code": room.Code}).Info("Handler.CreateRoom: Room created successfully")
	ResultResponse(c, http.StatusCreated, true, "Room created successfully", gin.H{"room_code": room.Code, "room": room})
}

// ListRooms 返回当前用户加入的房间
func (h *RoomHandler) ListRooms(c *gin.Context) {
	token, ok := sessionToken(c)
	if !ok {
		return
	}
	rooms, err := h.roomService.ListRoomsForUser(c.Request.Context(), token)
	if err != nil {
		handleRoomError(c, err)
		return
	}
	ResultResponse(c, http.StatusOK, true, "OK", gin.H{"rooms": rooms})
}

// CheckRoomExists 是加入前的预检查，不修改任何数据
func (h *RoomHandler) CheckRoomExists(c *gin.Context) {
	exists, err := h.roomService.CheckRoomExists(c.Request.Context(), c.Param("code"))
	if err != nil {
		handleRoomError(c, err)
		return
	}
	if !exists {
		ResultResponse(c, http.StatusNotFound, false, "Room not found", nil)
		return
	}
	ResultResponse(c, http.StatusOK, true, "Room found", nil)
}

// JoinRoomRequest 定义加入房间请求的结构体
type JoinRoomRequest struct {
	Code string `json:"code" binding:"required,max=16"`
}

// JoinRoom 处理用户加入房间的请求，重复加入同样成功
func (h *RoomHandler) JoinRoom(c *gin.Context) {
	token, ok := sessionToken(c)
	if !ok {
		return
	}
	var req JoinRoomRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		logrus.WithError(err).Warn("Handler.JoinRoom: Invalid input format")
		ResultResponse(c, http.StatusBadRequest, false, "Room code is required", nil)
		return
	}

	room, err := h.roomService.JoinRoom(c.Request.Context(), req.Code, token)
	if err != nil {
		handleRoomError(c, err)
		return
	}
	ResultResponse(c, http.StatusOK, true, "Joined room successfully", gin.H{"room_code": room.Code})
}

// ListMembers 返回房间成员
func (h *RoomHandler) ListMembers(c *gin.Context) {
	token, ok := sessionToken(c)
	if !ok {
		return
	}
	members, err := h.roomService.ListMembers(c.Request.Context(), c.Param("code"), token)
	if err != nil {
		handleRoomError(c, err)
		return
	}
	ResultResponse(c, http.StatusOK, true, "OK", gin.H{"members": members})
}
