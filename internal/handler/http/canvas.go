package http

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"collaborative-rooms/internal/domain"
	"collaborative-rooms/internal/service"
)

// CanvasHandler 处理笔画日志
type CanvasHandler struct {
	canvas *service.CanvasService
}

func NewCanvasHandler(canvas *service.CanvasService) *CanvasHandler {
	return &CanvasHandler{canvas: canvas}
}

type StartStrokeRequest struct {
	Tool   string         `json:"tool" binding:"required"`
	Color  string         `json:"color" binding:"required"`
	Width  int            `json:"width" binding:"required"`
	Points []domain.Point `json:"points"`
}

type PointsRequest struct {
	Points []domain.Point `json:"points"`
}

// ListStrokes 按创建顺序返回房间的全部笔画，用于重放画布
func (h *CanvasHandler) ListStrokes(c *gin.Context) {
	token, ok := sessionToken(c)
	if !ok {
		return
	}
	strokes, err := h.canvas.ListStrokes(c.Request.Context(), c.Param("code"), token)
	if err != nil {
		HandleServiceError(c, err)
		return
	}
	SuccessResponse(c, http.StatusOK, gin.H{"strokes": strokes})
}

// StartStroke 处理 POST /api/rooms/:code/strokes
func (h *CanvasHandler) StartStroke(c *gin.Context) {
	token, ok := sessionToken(c)
	if !ok {
		return
	}
	var req StartStrokeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		bindingError(c, err)
		return
	}
	style := service.StrokeStyle{Tool: domain.StrokeTool(req.Tool), Color: req.Color, Width: req.Width}
	stroke, err := h.canvas.StartStroke(c.Request.Context(), c.Param("code"), token, style, req.Points)
	if err != nil {
		HandleServiceError(c, err)
		return
	}
	SuccessResponse(c, http.StatusCreated, stroke)
}

// AppendPoints 处理 PATCH /api/strokes/:id
func (h *CanvasHandler) AppendPoints(c *gin.Context) {
	token, ok := sessionToken(c)
	if !ok {
		return
	}
	id, ok := idParam(c, "id")
	if !ok {
		return
	}
	var req PointsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		bindingError(c, err)
		return
	}
	stroke, err := h.canvas.AppendPoints(c.Request.Context(), id, token, req.Points)
	if err != nil {
		HandleServiceError(c, err)
		return
	}
	SuccessResponse(c, http.StatusOK, stroke)
}

// FinishStroke 处理 POST /api/strokes/:id/finish，请求体可省略
func (h *CanvasHandler) FinishStroke(c *gin.Context) {
	token, ok := sessionToken(c)
	if !ok {
		return
	}
	id, ok := idParam(c, "id")
	if !ok {
		return
	}
	var req PointsRequest
	if c.Request.ContentLength != 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			bindingError(c, err)
			return
		}
	}
	stroke, err := h.canvas.FinishStroke(c.Request.Context(), id, token, req.Points)
	if err != nil {
		HandleServiceError(c, err)
		return
	}
	SuccessResponse(c, http.StatusOK, stroke)
}
