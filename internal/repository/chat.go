package repository

import (
	"context"
	"time"

	"collaborative-rooms/internal/domain"
)

// ChatRepository 定义了聊天记录的存储操作。
type ChatRepository interface {
	Create(ctx context.Context, msg *domain.ChatMessage) error

	// ListRecent 返回房间最近的 limit 条消息，按时间正序排列。
	ListRecent(ctx context.Context, roomID uint, limit int) ([]domain.ChatMessage, error)

	// DeleteBefore 删除创建时间早于 cutoff 的消息。
	DeleteBefore(ctx context.Context, cutoff time.Time) (int64, error)
}
