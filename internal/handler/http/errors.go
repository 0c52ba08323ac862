package http

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"collaborative-rooms/internal/service"
)

// statusFor 将 Service 层错误映射为 HTTP 状态码，未知错误返回 0
func statusFor(err error) int {
	switch {
	case errors.Is(err, service.ErrRoomNotFound),
		errors.Is(err, service.ErrUserNotFound),
		errors.Is(err, service.ErrRoundNotFound),
		errors.Is(err, service.ErrStrokeNotFound):
		return http.StatusNotFound
	case errors.Is(err, service.ErrUnauthenticated):
		return http.StatusUnauthorized
	case errors.Is(err, service.ErrNotMember), errors.Is(err, service.ErrNotAuthor):
		return http.StatusForbidden
	case errors.Is(err, service.ErrValidation):
		return http.StatusBadRequest
	case errors.Is(err, service.ErrRoundAlreadyActive),
		errors.Is(err, service.ErrRoundCompleted),
		errors.Is(err, service.ErrStrokeSealed):
		return http.StatusConflict
	}
	return 0
}

// HandleServiceError 以 {error} 形式响应 Service 层错误。
// 未知错误只记录日志，不向客户端泄露原因。
func HandleServiceError(c *gin.Context, err error) {
	if status := statusFor(err); status != 0 {
		ErrorResponse(c, status, err.Error())
		return
	}
	logrus.WithError(err).WithField("path", c.FullPath()).Error("Unhandled internal server error")
	ErrorResponse(c, http.StatusInternalServerError, "An unexpected error occurred")
}

// handleRoomError 以 {success, message} 形式响应房间和成员相关的错误
func handleRoomError(c *gin.Context, err error) {
	if status := statusFor(err); status != 0 {
		ResultResponse(c, status, false, err.Error(), nil)
		return
	}
	logrus.WithError(err).WithField("path", c.FullPath()).Error("Unhandled internal server error")
	ResultResponse(c, http.StatusInternalServerError, false, "An unexpected error occurred", nil)
}
