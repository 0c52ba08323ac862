package repository

import (
	"context"
	"time"

	"collaborative-rooms/internal/domain"
)

// StrokeRepository 定义了画布笔画的存储操作。
type StrokeRepository interface {
	Create(ctx context.Context, stroke *domain.Stroke) error

	FindByID(ctx context.Context, id uint) (*domain.Stroke, error)

	// UpdateOpen 只在笔画尚未完成时写入新的点列表和完成标记。
	// 笔画已完成时返回 ErrConditionFailed。
	UpdateOpen(ctx context.Context, id uint, points string, completed bool, at time.Time) error

	// ListByRoom 按创建顺序返回房间内的所有笔画，用于重放画布。
	ListByRoom(ctx context.Context, roomID uint) ([]domain.Stroke, error)

	// DeleteUpdatedBefore 删除最后更新时间早于 cutoff 的笔画。
	DeleteUpdatedBefore(ctx context.Context, cutoff time.Time) (int64, error)

	// DeleteAll 清空所有笔画 (周期性重置)。
	DeleteAll(ctx context.Context) (int64, error)
}
