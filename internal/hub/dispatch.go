package hub

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/sirupsen/logrus"

	"collaborative-rooms/internal/domain"
	"collaborative-rooms/internal/dto"
	"collaborative-rooms/internal/service"
)

const inboundTimeout = 10 * time.Second

// handleInbound 解析客户端消息并调用对应的服务。
// 成功的结果通过 Redis 事件广播，这里只回复 ack 或 error 给发送者。
func (h *Hub) handleInbound(client *Client, raw []byte) {
	ctx, cancel := context.WithTimeout(context.Background(), inboundTimeout)
	defer cancel()
	logCtx := h.log.WithFields(logrus.Fields{"room_id": client.RoomID(), "user_id": client.UserID()})

	var msg dto.ClientMessage
	if err := json.Unmarshal(raw, &msg); err != nil {
		logCtx.WithError(err).Debug("Malformed client message")
		h.sendTo(client, dto.ErrorDTO{Type: domain.EventError, Message: "malformed message"})
		return
	}
	logCtx = logCtx.WithField("message_type", msg.Type)

	var (
		ack dto.AckDTO
		err error
	)
	switch msg.Type {
	case dto.TypeHeartbeat:
		// 心跳不回复 ack，在线列表会随后推送
		if err := h.presence.Heartbeat(ctx, client.RoomID(), client.UserID()); err != nil {
			h.replyError(client, msg.Ref, err, logCtx)
		}
		return
	case dto.TypeStrokeStart:
		var view *domain.StrokeView
		style := service.StrokeStyle{Tool: domain.StrokeTool(msg.Tool), Color: msg.Color, Width: msg.Width}
		view, err = h.canvas.StartStroke(ctx, client.RoomCode(), client.Token(), style, msg.Points)
		if err == nil {
			ack.StrokeID = view.ID
		}
	case dto.TypeStrokeAppend:
		_, err = h.canvas.AppendPoints(ctx, msg.StrokeID, client.Token(), msg.Points)
		ack.StrokeID = msg.StrokeID
	case dto.TypeStrokeEnd:
		_, err = h.canvas.FinishStroke(ctx, msg.StrokeID, client.Token(), msg.Points)
		ack.StrokeID = msg.StrokeID
	case dto.TypeChat:
		_, err = h.chat.Send(ctx, client.RoomCode(), client.Token(), msg.Text)
	default:
		h.sendTo(client, dto.ErrorDTO{Type: domain.EventError, Ref: msg.Ref, Message: "unknown message type"})
		return
	}
	if err != nil {
		h.replyError(client, msg.Ref, err, logCtx)
		return
	}
	ack.Type = dto.TypeAck
	ack.Ref = msg.Ref
	h.sendTo(client, ack)
}

func (h *Hub) replyError(client *Client, ref string, err error, logCtx *logrus.Entry) {
	message := err.Error()
	switch {
	case errors.Is(err, service.ErrValidation),
		errors.Is(err, service.ErrNotAuthor),
		errors.Is(err, service.ErrNotMember),
		errors.Is(err, service.ErrStrokeSealed),
		errors.Is(err, service.ErrStrokeNotFound),
		errors.Is(err, service.ErrRoomNotFound):
		logCtx.WithError(err).Debug("Client message rejected")
	default:
		logCtx.WithError(err).Error("Failed to handle client message")
		message = service.ErrInternalServer.Error()
	}
	h.sendTo(client, dto.ErrorDTO{Type: domain.EventError, Ref: ref, Message: message})
}
