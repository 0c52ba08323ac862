package service

import (
	"context"
	"time"

	"github.com/sirupsen/logrus"

	"collaborative-rooms/internal/domain"
	"collaborative-rooms/internal/repository"
)

// Clock 返回当前时间，测试中可以替换
type Clock func() time.Time

// SystemClock 返回 UTC 当前时间
func SystemClock() time.Time { return time.Now().UTC() }

func clockOrDefault(c Clock) Clock {
	if c == nil {
		return SystemClock
	}
	return c
}

// publishEvent 发布房间事件。实时推送是尽力而为，失败只记录日志。
func publishEvent(ctx context.Context, pub repository.EventPublisher, eventType string, roomID, userID uint, payload interface{}) {
	if pub == nil {
		return
	}
	logCtx := logrus.WithFields(logrus.Fields{"room_id": roomID, "event_type": eventType})
	ev, err := domain.NewRoomEvent(eventType, roomID, userID, payload)
	if err != nil {
		logCtx.WithError(err).Error("Failed to build room event")
		return
	}
	if err := pub.PublishRoomEvent(ctx, ev); err != nil {
		logCtx.WithError(err).Warn("Failed to publish room event")
	}
}
