package http

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"

	"collaborative-rooms/internal/repository"
)

const healthTimeout = 2 * time.Second

// HealthHandler 检查数据库和缓存是否可用
type HealthHandler struct {
	db    *gorm.DB
	cache repository.CacheProbe
}

func NewHealthHandler(db *gorm.DB, cache repository.CacheProbe) *HealthHandler {
	return &HealthHandler{db: db, cache: cache}
}

// Healthz 处理 GET /healthz，任一依赖失败返回 503
func (h *HealthHandler) Healthz(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), healthTimeout)
	defer cancel()

	status := gin.H{"database": "ok", "cache": "ok"}
	healthy := true

	if err := h.pingDB(ctx); err != nil {
		logrus.WithError(err).Error("Health check: database ping failed")
		status["database"] = "unavailable"
		healthy = false
	}
	if err := h.cache.Probe(ctx); err != nil {
		logrus.WithError(err).Error("Health check: cache probe failed")
		status["cache"] = "unavailable"
		healthy = false
	}

	if !healthy {
		status["status"] = "degraded"
		c.JSON(http.StatusServiceUnavailable, status)
		return
	}
	status["status"] = "ok"
	c.JSON(http.StatusOK, status)
}

func (h *HealthHandler) pingDB(ctx context.Context) error {
	sqlDB, err := h.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.PingContext(ctx)
}

// Ping 处理 GET /ping
func (h *HealthHandler) Ping(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"message": "pong"})
}
