package redisstate

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"
)

// RedisRunMarkerRepository 是 RunMarkerRepository 接口的 Redis 实现。
// 每个任务一个 string key，值为上次执行的毫秒时间戳，不过期。
type RedisRunMarkerRepository struct {
	client    *redis.Client
	keyPrefix string
}

// NewRedisRunMarkerRepository 创建 RedisRunMarkerRepository 实例
func NewRedisRunMarkerRepository(client *redis.Client, keyPrefix string) *RedisRunMarkerRepository {
	if client == nil {
		panic("redis client cannot be nil for RedisRunMarkerRepository")
	}
	return &RedisRunMarkerRepository{client: client, keyPrefix: defaultPrefix(keyPrefix)}
}

func (r *RedisRunMarkerRepository) markerKey(job string) string {
	return fmt.Sprintf("%sjob:%s:last_run", r.keyPrefix, job)
}

// ClaimDue 用 WATCH/MULTI 做检查并更新，多个实例同时检查时只有一个能抢到
func (r *RedisRunMarkerRepository) ClaimDue(ctx context.Context, job string, now time.Time, every time.Duration) (time.Time, bool, error) {
	key := r.markerKey(job)
	var (
		previous time.Time
		claimed  bool
	)
	err := r.client.Watch(ctx, func(tx *redis.Tx) error {
		last, err := tx.Get(ctx, key).Int64()
		if errors.Is(err, redis.Nil) {
			return tx.SetNX(ctx, key, now.UnixMilli(), 0).Err()
		}
		if err != nil {
			return err
		}
		previous = time.UnixMilli(last).UTC()
		if now.Sub(previous) < every {
			return nil
		}
		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, key, now.UnixMilli(), 0)
			return nil
		})
		if err != nil {
			return err
		}
		claimed = true
		return nil
	}, key)
	if errors.Is(err, redis.TxFailedErr) {
		// 其他实例先更新了记录
		return previous, false, nil
	}
	if err != nil {
		return time.Time{}, false, fmt.Errorf("redis: failed to claim job %s at %s: %w", job, key, err)
	}
	return previous, claimed, nil
}

// Restore 恢复上次执行时间
func (r *RedisRunMarkerRepository) Restore(ctx context.Context, job string, previous time.Time) error {
	key := r.markerKey(job)
	var err error
	if previous.IsZero() {
		err = r.client.Del(ctx, key).Err()
	} else {
		err = r.client.Set(ctx, key, previous.UnixMilli(), 0).Err()
	}
	if err != nil {
		return fmt.Errorf("redis: failed to restore job marker %s: %w", key, err)
	}
	return nil
}
