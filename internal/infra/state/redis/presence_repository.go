package redisstate

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/sirupsen/logrus"
)

// presenceTTL 控制整个房间在线集合的存活时间，每次心跳都会刷新
const presenceTTL = 24 * time.Hour

// RedisPresenceRepository 是 PresenceRepository 接口的 Redis 实现。
// 每个房间一个 sorted set：member = user id，score = 最后心跳的毫秒时间戳。
type RedisPresenceRepository struct {
	client    *redis.Client
	keyPrefix string
}

// NewRedisPresenceRepository 创建 RedisPresenceRepository 实例
func NewRedisPresenceRepository(client *redis.Client, keyPrefix string) *RedisPresenceRepository {
	if client == nil {
		panic("redis client cannot be nil for RedisPresenceRepository")
	}
	return &RedisPresenceRepository{client: client, keyPrefix: defaultPrefix(keyPrefix)}
}

func (r *RedisPresenceRepository) presenceKey(roomID uint) string {
	return fmt.Sprintf("%sroom:%d:presence", r.keyPrefix, roomID)
}

// RecordHeartbeat 使用 ZADD GT，乱序到达的旧心跳不会覆盖新的时间戳
func (r *RedisPresenceRepository) RecordHeartbeat(ctx context.Context, roomID, userID uint, at time.Time) error {
	key := r.presenceKey(roomID)
	pipe := r.client.TxPipeline()
	pipe.ZAddArgs(ctx, key, redis.ZAddArgs{
		GT:      true,
		Members: []redis.Z{{Score: float64(at.UnixMilli()), Member: strconv.FormatUint(uint64(userID), 10)}},
	})
	pipe.Expire(ctx, key, presenceTTL)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("redis: failed to record heartbeat for room %d user %d: %w", roomID, userID, err)
	}
	return nil
}

// LastSeen 读取房间内所有用户的最后心跳时间
func (r *RedisPresenceRepository) LastSeen(ctx context.Context, roomID uint) (map[uint]time.Time, error) {
	key := r.presenceKey(roomID)
	entries, err := r.client.ZRangeWithScores(ctx, key, 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("redis: failed to read presence for room %d from %s: %w", roomID, key, err)
	}
	result := make(map[uint]time.Time, len(entries))
	for _, z := range entries {
		member, ok := z.Member.(string)
		if !ok {
			continue
		}
		id, parseErr := strconv.ParseUint(member, 10, 64)
		if parseErr != nil {
			logrus.Warnf("redis: ignoring malformed presence member %q in %s", member, key)
			continue
		}
		result[uint(id)] = time.UnixMilli(int64(z.Score)).UTC()
	}
	return result, nil
}

// ClearRoom 删除房间的在线集合
func (r *RedisPresenceRepository) ClearRoom(ctx context.Context, roomID uint) error {
	if err := r.client.Del(ctx, r.presenceKey(roomID)).Err(); err != nil {
		return fmt.Errorf("redis: failed to clear presence for room %d: %w", roomID, err)
	}
	return nil
}

func defaultPrefix(prefix string) string {
	if prefix == "" {
		return "rooms:"
	}
	return prefix
}
