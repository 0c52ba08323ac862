package http

import "github.com/gin-gonic/gin"

// Handlers 汇总所有 REST handler
type Handlers struct {
	Session  *SessionHandler
	Room     *RoomHandler
	Presence *PresenceHandler
	Round    *RoundHandler
	Canvas   *CanvasHandler
	Chat     *ChatHandler
	Health   *HealthHandler
}

// RegisterRoutes 注册 REST 路由。auth 是会话认证中间件。
func RegisterRoutes(router gin.IRouter, h Handlers, auth gin.HandlerFunc) {
	api := router.Group("/api")
	api.POST("/session", h.Session.Identify)

	authed := api.Group("").Use(auth)
	{
		authed.GET("/session", h.Session.Current)
		authed.DELETE("/session", h.Session.Logout)

		authed.POST("/rooms", h.Room.CreateRoom)
		authed.GET("/rooms", h.Room.ListRooms)
		authed.POST("/rooms/join", h.Room.JoinRoom)
		authed.GET("/rooms/:code/exists", h.Room.CheckRoomExists)
		authed.GET("/rooms/:code/members", h.Room.ListMembers)

		authed.GET("/rooms/:code/presence", h.Presence.List)
		authed.POST("/rooms/:code/heartbeat", h.Presence.Heartbeat)

		authed.POST("/rooms/:code/rounds", h.Round.StartRound)
		authed.GET("/rooms/:code/rounds", h.Round.ListRounds)
		authed.GET("/rooms/:code/rounds/active", h.Round.ActiveRound)
		authed.GET("/rounds/:id", h.Round.GetRound)
		authed.POST("/rounds/:id/votes", h.Round.SubmitVote)
		authed.POST("/rounds/:id/complete", h.Round.CompleteRound)

		authed.GET("/rooms/:code/strokes", h.Canvas.ListStrokes)
		authed.POST("/rooms/:code/strokes", h.Canvas.StartStroke)
		authed.PATCH("/strokes/:id", h.Canvas.AppendPoints)
		authed.POST("/strokes/:id/finish", h.Canvas.FinishStroke)

		authed.GET("/rooms/:code/chat", h.Chat.List)
		authed.POST("/rooms/:code/chat", h.Chat.Send)
	}

	router.GET("/healthz", h.Health.Healthz)
	router.GET("/ping", h.Health.Ping)
}
