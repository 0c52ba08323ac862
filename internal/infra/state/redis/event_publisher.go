package redisstate

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"github.com/go-redis/redis/v8"
	"github.com/sirupsen/logrus"

	"collaborative-rooms/internal/domain"
)

// RedisEventPublisher 通过 Redis Pub/Sub 广播房间事件，
// 每个服务实例的 Hub 订阅同一组频道。
type RedisEventPublisher struct {
	client    *redis.Client
	keyPrefix string
}

// NewRedisEventPublisher 创建 RedisEventPublisher 实例
func NewRedisEventPublisher(client *redis.Client, keyPrefix string) *RedisEventPublisher {
	if client == nil {
		panic("redis client cannot be nil for RedisEventPublisher")
	}
	return &RedisEventPublisher{client: client, keyPrefix: defaultPrefix(keyPrefix)}
}

// RoomEventsChannel 返回房间事件频道名
func RoomEventsChannel(keyPrefix string, roomID uint) string {
	return fmt.Sprintf("%sroom:%d:events", defaultPrefix(keyPrefix), roomID)
}

// RoomEventsPattern 返回匹配所有房间事件频道的模式
func RoomEventsPattern(keyPrefix string) string {
	return defaultPrefix(keyPrefix) + "room:*:events"
}

// PresenceTickKey 返回房间在线列表定时推送的去重 key
func PresenceTickKey(keyPrefix string, roomID uint) string {
	return fmt.Sprintf("%sroom:%d:presence_tick", defaultPrefix(keyPrefix), roomID)
}

// RoomIDFromChannel 从频道名中解析房间 ID
func RoomIDFromChannel(keyPrefix, channel string) (uint, bool) {
	rest := strings.TrimPrefix(channel, defaultPrefix(keyPrefix)+"room:")
	if rest == channel {
		return 0, false
	}
	idStr := strings.TrimSuffix(rest, ":events")
	if idStr == rest {
		return 0, false
	}
	id, err := strconv.ParseUint(idStr, 10, 64)
	if err != nil {
		return 0, false
	}
	return uint(id), true
}

// PublishRoomEvent 序列化并发布事件
func (p *RedisEventPublisher) PublishRoomEvent(ctx context.Context, event domain.RoomEvent) error {
	channel := RoomEventsChannel(p.keyPrefix, event.RoomID)
	payload, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("redis: failed to marshal %s event for room %d: %w", event.Type, event.RoomID, err)
	}
	if err := p.client.Publish(ctx, channel, payload).Err(); err != nil {
		logrus.WithFields(logrus.Fields{
			"channel":      channel,
			"payload_size": len(payload),
			"event_type":   event.Type,
			"room_id":      event.RoomID,
		}).WithError(err).Error("Redis Publish failed")
		return fmt.Errorf("redis: failed to publish to channel %s: %w", channel, err)
	}
	return nil
}
