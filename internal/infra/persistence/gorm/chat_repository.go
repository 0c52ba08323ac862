package gormpersistence

import (
	"context"
	"fmt"
	"time"

	"gorm.io/gorm"

	"collaborative-rooms/internal/domain"
)

// GormChatRepository 是 ChatRepository 接口的 GORM 实现
type GormChatRepository struct {
	db *gorm.DB
}

// NewGormChatRepository 创建 GormChatRepository 实例
func NewGormChatRepository(db *gorm.DB) *GormChatRepository {
	if db == nil {
		panic("database connection cannot be nil for GormChatRepository")
	}
	return &GormChatRepository{db: db}
}

// Create 插入聊天消息
func (r *GormChatRepository) Create(ctx context.Context, msg *domain.ChatMessage) error {
	if err := r.db.WithContext(ctx).Create(msg).Error; err != nil {
		return fmt.Errorf("gorm: create chat message (room %d): %w", msg.RoomID, err)
	}
	return nil
}

// ListRecent 取最近的 limit 条消息后翻转为正序
func (r *GormChatRepository) ListRecent(ctx context.Context, roomID uint, limit int) ([]domain.ChatMessage, error) {
	if limit <= 0 {
		limit = 100
	}
	var msgs []domain.ChatMessage
	err := r.db.WithContext(ctx).
		Where("room_id = ?", roomID).
		Order("created_at DESC, id DESC").
		Limit(limit).
		Find(&msgs).Error
	if err != nil {
		return nil, fmt.Errorf("gorm: list chat for room %d: %w", roomID, err)
	}
	for i, j := 0, len(msgs)-1; i < j; i, j = i+1, j-1 {
		msgs[i], msgs[j] = msgs[j], msgs[i]
	}
	return msgs, nil
}

// DeleteBefore 删除早于 cutoff 的消息
func (r *GormChatRepository) DeleteBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	result := r.db.WithContext(ctx).Where("created_at < ?", cutoff).Delete(&domain.ChatMessage{})
	if result.Error != nil {
		return 0, fmt.Errorf("gorm: delete chat before %v: %w", cutoff, result.Error)
	}
	return result.RowsAffected, nil
}
