package gormpersistence

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"

	"collaborative-rooms/internal/domain"
	"collaborative-rooms/internal/repository"
)

// GormStrokeRepository 是 StrokeRepository 接口的 GORM 实现
type GormStrokeRepository struct {
	db *gorm.DB
}

// NewGormStrokeRepository 创建 GormStrokeRepository 实例
func NewGormStrokeRepository(db *gorm.DB) *GormStrokeRepository {
	if db == nil {
		panic("database connection cannot be nil for GormStrokeRepository")
	}
	return &GormStrokeRepository{db: db}
}

// Create 插入新笔画
func (r *GormStrokeRepository) Create(ctx context.Context, stroke *domain.Stroke) error {
	if err := r.db.WithContext(ctx).Create(stroke).Error; err != nil {
		return fmt.Errorf("gorm: create stroke (room %d): %w", stroke.RoomID, err)
	}
	return nil
}

// FindByID 根据 ID 查找笔画
func (r *GormStrokeRepository) FindByID(ctx context.Context, id uint) (*domain.Stroke, error) {
	var stroke domain.Stroke
	err := r.db.WithContext(ctx).First(&stroke, id).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, repository.ErrStrokeNotFound
		}
		return nil, fmt.Errorf("gorm: find stroke by id %d: %w", id, err)
	}
	return &stroke, nil
}

// UpdateOpen 只更新未完成的笔画
func (r *GormStrokeRepository) UpdateOpen(ctx context.Context, id uint, points string, completed bool, at time.Time) error {
	result := r.db.WithContext(ctx).Model(&domain.Stroke{}).
		Where("id = ? AND completed = ?", id, false).
		Updates(map[string]interface{}{
			"points":     points,
			"completed":  completed,
			"updated_at": at,
		})
	if result.Error != nil {
		return fmt.Errorf("gorm: update stroke %d: %w", id, result.Error)
	}
	if result.RowsAffected == 0 {
		return repository.ErrConditionFailed
	}
	return nil
}

// ListByRoom 按创建顺序返回笔画
func (r *GormStrokeRepository) ListByRoom(ctx context.Context, roomID uint) ([]domain.Stroke, error) {
	var strokes []domain.Stroke
	err := r.db.WithContext(ctx).
		Where("room_id = ?", roomID).
		Order("created_at ASC, id ASC").
		Find(&strokes).Error
	if err != nil {
		return nil, fmt.Errorf("gorm: list strokes for room %d: %w", roomID, err)
	}
	return strokes, nil
}

// DeleteUpdatedBefore 删除过期笔画
func (r *GormStrokeRepository) DeleteUpdatedBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	result := r.db.WithContext(ctx).Where("updated_at < ?", cutoff).Delete(&domain.Stroke{})
	if result.Error != nil {
		return 0, fmt.Errorf("gorm: delete strokes updated before %v: %w", cutoff, result.Error)
	}
	return result.RowsAffected, nil
}

// DeleteAll 清空所有笔画
func (r *GormStrokeRepository) DeleteAll(ctx context.Context) (int64, error) {
	result := r.db.WithContext(ctx).Session(&gorm.Session{AllowGlobalUpdate: true}).Delete(&domain.Stroke{})
	if result.Error != nil {
		return 0, fmt.Errorf("gorm: delete all strokes: %w", result.Error)
	}
	return result.RowsAffected, nil
}
