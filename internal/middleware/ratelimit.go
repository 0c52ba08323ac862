package middleware

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/go-redis/redis/v8"
	"github.com/sirupsen/logrus"
)

// RateLimit 返回一个 Gin 中间件，用于基于客户端 IP 地址进行固定窗口限流。
// keyPrefix 与其他 Redis key 共用同一个前缀。
func RateLimit(redisClient *redis.Client, keyPrefix string, maxRequests int, window time.Duration) gin.HandlerFunc {
	if redisClient == nil {
		panic("Redis client cannot be nil for RateLimit middleware")
	}
	if maxRequests <= 0 {
		panic("maxRequests must be positive for RateLimit middleware")
	}
	if window <= 0 {
		panic("window duration must be positive for RateLimit middleware")
	}

	return func(c *gin.Context) {
		ctx := c.Request.Context()
		key := keyPrefix + "ratelimit:" + c.ClientIP()

		// SET NX PX 和 INCR 在同一个事务里：窗口从第一次请求开始计算，key 不会没有过期时间
		pipe := redisClient.TxPipeline()
		pipe.SetNX(ctx, key, 0, window)
		incrCmd := pipe.Incr(ctx, key)
		if _, err := pipe.Exec(ctx); err != nil {
			// Redis 故障时放行，不让限流拖垮整个服务
			logrus.WithError(err).Error("RateLimit: Redis pipeline failed")
			c.Next()
			return
		}
		count := incrCmd.Val()

		remaining := int64(maxRequests) - count
		if remaining < 0 {
			remaining = 0
		}
		c.Header("X-RateLimit-Limit", strconv.Itoa(maxRequests))
		c.Header("X-RateLimit-Remaining", strconv.FormatInt(remaining, 10))

		if count > int64(maxRequests) {
			c.JSON(http.StatusTooManyRequests, gin.H{"error": "Too many requests"})
			c.Abort()
			return
		}
		c.Next()
	}
}
