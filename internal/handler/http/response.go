package http

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"collaborative-rooms/internal/middleware"
	"collaborative-rooms/internal/service"
)

func ErrorResponse(c *gin.Context, code int, message string) {
	c.JSON(code, gin.H{"error": message})
}

func SuccessResponse(c *gin.Context, code int, data interface{}) {
	c.JSON(code, data)
}

// ResultResponse 写出房间操作使用的 {success, message, ...} 结构
func ResultResponse(c *gin.Context, code int, success bool, message string, extra gin.H) {
	body := gin.H{"success": success, "message": message}
	for k, v := range extra {
		body[k] = v
	}
	c.JSON(code, body)
}

// bindingError 响应请求体绑定失败
func bindingError(c *gin.Context, err error) {
	ErrorResponse(c, http.StatusBadRequest, service.ErrValidation.Error()+": "+err.Error())
}

// sessionToken 从上下文读取 Auth 中间件保存的匿名 token
func sessionToken(c *gin.Context) (string, bool) {
	token := middleware.UserToken(c)
	if token == "" {
		ErrorResponse(c, http.StatusUnauthorized, service.ErrUnauthenticated.Error())
		return "", false
	}
	return token, true
}

// idParam 解析路径中的正整数 id
func idParam(c *gin.Context, name string) (uint, bool) {
	v, err := strconv.ParseUint(c.Param(name), 10, 32)
	if err != nil || v == 0 {
		ErrorResponse(c, http.StatusBadRequest, service.ErrValidation.Error()+": invalid "+name)
		return 0, false
	}
	return uint(v), true
}

// limitQuery 解析可选的 limit 查询参数，缺省为 0
func limitQuery(c *gin.Context) (int, bool) {
	raw := c.Query("limit")
	if raw == "" {
		return 0, true
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 0 {
		ErrorResponse(c, http.StatusBadRequest, service.ErrValidation.Error()+": invalid limit")
		return 0, false
	}
	return n, true
}
