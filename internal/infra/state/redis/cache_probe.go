package redisstate

import (
	"context"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"
)

// RedisCacheProbe 通过 set/get/delete 一个临时 key 检查缓存是否可用
type RedisCacheProbe struct {
	client    *redis.Client
	keyPrefix string
}

// NewRedisCacheProbe 创建 RedisCacheProbe 实例
func NewRedisCacheProbe(client *redis.Client, keyPrefix string) *RedisCacheProbe {
	if client == nil {
		panic("redis client cannot be nil for RedisCacheProbe")
	}
	return &RedisCacheProbe{client: client, keyPrefix: defaultPrefix(keyPrefix)}
}

// Probe 执行一次 set → get → delete
func (p *RedisCacheProbe) Probe(ctx context.Context) error {
	key := p.keyPrefix + "healthcheck"
	value := time.Now().UTC().Format(time.RFC3339Nano)
	if err := p.client.Set(ctx, key, value, 10*time.Second).Err(); err != nil {
		return fmt.Errorf("redis: health probe set: %w", err)
	}
	got, err := p.client.Get(ctx, key).Result()
	if err != nil {
		return fmt.Errorf("redis: health probe get: %w", err)
	}
	if got != value {
		return fmt.Errorf("redis: health probe read back %q, want %q", got, value)
	}
	if err := p.client.Del(ctx, key).Err(); err != nil {
		return fmt.Errorf("redis: health probe delete: %w", err)
	}
	return nil
}
