package http

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"collaborative-rooms/internal/service"
)

// RoundHandler 处理投票轮次
type RoundHandler struct {
	rounds *service.RoundService
}

func NewRoundHandler(rounds *service.RoundService) *RoundHandler {
	return &RoundHandler{rounds: rounds}
}

type StartRoundRequest struct {
	Title       string `json:"title" binding:"required"`
	Description string `json:"description"`
}

type VoteRequest struct {
	Value string `json:"value" binding:"required"`
}

// StartRound 处理 POST /api/rooms/:code/rounds
func (h *RoundHandler) StartRound(c *gin.Context) {
	token, ok := sessionToken(c)
	if !ok {
		return
	}
	var req StartRoundRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		bindingError(c, err)
		return
	}
	round, err := h.rounds.StartRound(c.Request.Context(), c.Param("code"), token, req.Title, req.Description)
	if err != nil {
		HandleServiceError(c, err)
		return
	}
	logrus.WithFields(logrus.Fields{"round_id": round.ID, "room_id": round.RoomID}).Info("Handler.StartRound: Round started")
	SuccessResponse(c, http.StatusCreated, gin.H{"round": round})
}

// ListRounds 处理 GET /api/rooms/:code/rounds
func (h *RoundHandler) ListRounds(c *gin.Context) {
	token, ok := sessionToken(c)
	if !ok {
		return
	}
	limit, ok := limitQuery(c)
	if !ok {
		return
	}
	rounds, err := h.rounds.ListRounds(c.Request.Context(), c.Param("code"), token, limit)
	if err != nil {
		HandleServiceError(c, err)
		return
	}
	SuccessResponse(c, http.StatusOK, gin.H{"rounds": rounds})
}

// ActiveRound 处理 GET /api/rooms/:code/rounds/active
func (h *RoundHandler) ActiveRound(c *gin.Context) {
	token, ok := sessionToken(c)
	if !ok {
		return
	}
	view, err := h.rounds.ActiveRound(c.Request.Context(), c.Param("code"), token)
	if err != nil {
		HandleServiceError(c, err)
		return
	}
	SuccessResponse(c, http.StatusOK, view)
}

// GetRound 处理 GET /api/rounds/:id
func (h *RoundHandler) GetRound(c *gin.Context) {
	token, ok := sessionToken(c)
	if !ok {
		return
	}
	id, ok := idParam(c, "id")
	if !ok {
		return
	}
	view, err := h.rounds.GetRound(c.Request.Context(), id, token)
	if err != nil {
		HandleServiceError(c, err)
		return
	}
	SuccessResponse(c, http.StatusOK, view)
}

// SubmitVote 处理 POST /api/rounds/:id/votes
func (h *RoundHandler) SubmitVote(c *gin.Context) {
	token, ok := sessionToken(c)
	if !ok {
		return
	}
	id, ok := idParam(c, "id")
	if !ok {
		return
	}
	var req VoteRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		bindingError(c, err)
		return
	}
	if err := h.rounds.SubmitVote(c.Request.Context(), id, token, req.Value); err != nil {
		HandleServiceError(c, err)
		return
	}
	SuccessResponse(c, http.StatusOK, gin.H{"message": "Vote recorded"})
}

// CompleteRound 处理 POST /api/rounds/:id/complete，响应中包含揭晓后的投票
func (h *RoundHandler) CompleteRound(c *gin.Context) {
	token, ok := sessionToken(c)
	if !ok {
		return
	}
	id, ok := idParam(c, "id")
	if !ok {
		return
	}
	view, err := h.rounds.CompleteRound(c.Request.Context(), id, token)
	if err != nil {
		HandleServiceError(c, err)
		return
	}
	SuccessResponse(c, http.StatusOK, view)
}
