package gormpersistence

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"collaborative-rooms/internal/domain"
	"collaborative-rooms/internal/repository"
)

// GormRoundRepository 是 RoundRepository 接口的 GORM 实现
type GormRoundRepository struct {
	db *gorm.DB
}

// NewGormRoundRepository 创建 GormRoundRepository 实例
func NewGormRoundRepository(db *gorm.DB) *GormRoundRepository {
	if db == nil {
		panic("database connection cannot be nil for GormRoundRepository")
	}
	return &GormRoundRepository{db: db}
}

// Create 插入 started 轮次。active_room_id 的唯一索引保证每个房间最多一个进行中的轮次。
func (r *GormRoundRepository) Create(ctx context.Context, round *domain.Round) error {
	round.Status = domain.RoundStarted
	activeRoom := round.RoomID
	round.ActiveRoomID = &activeRoom
	if err := r.db.WithContext(ctx).Create(round).Error; err != nil {
		round.ID = 0
		if isDuplicateEntryError(err) {
			return repository.ErrDuplicateEntry
		}
		return fmt.Errorf("gorm: create round (room %d): %w", round.RoomID, err)
	}
	return nil
}

// FindByID 根据 ID 查找轮次
func (r *GormRoundRepository) FindByID(ctx context.Context, id uint) (*domain.Round, error) {
	var round domain.Round
	err := r.db.WithContext(ctx).First(&round, id).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, repository.ErrRoundNotFound
		}
		return nil, fmt.Errorf("gorm: find round by id %d: %w", id, err)
	}
	return &round, nil
}

// FindActive 查找房间内进行中的轮次
func (r *GormRoundRepository) FindActive(ctx context.Context, roomID uint) (*domain.Round, error) {
	var round domain.Round
	err := r.db.WithContext(ctx).
		Where("room_id = ? AND status = ?", roomID, domain.RoundStarted).
		Order("created_at DESC").
		First(&round).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, repository.ErrRoundNotFound
		}
		return nil, fmt.Errorf("gorm: find active round for room %d: %w", roomID, err)
	}
	return &round, nil
}

// ListByRoom 按创建时间倒序列出轮次
func (r *GormRoundRepository) ListByRoom(ctx context.Context, roomID uint, limit int) ([]domain.Round, error) {
	if limit <= 0 {
		limit = 50
	}
	var rounds []domain.Round
	err := r.db.WithContext(ctx).
		Where("room_id = ?", roomID).
		Order("created_at DESC, id DESC").
		Limit(limit).
		Find(&rounds).Error
	if err != nil {
		return nil, fmt.Errorf("gorm: list rounds for room %d: %w", roomID, err)
	}
	return rounds, nil
}

// Complete 条件更新：只有 started 的轮次才会被标记为 completed
func (r *GormRoundRepository) Complete(ctx context.Context, id uint, at time.Time) error {
	result := r.db.WithContext(ctx).Model(&domain.Round{}).
		Where("id = ? AND status = ?", id, domain.RoundStarted).
		Updates(map[string]interface{}{
			"status":         domain.RoundCompleted,
			"active_room_id": nil,
			"completed_at":   at,
		})
	if result.Error != nil {
		return fmt.Errorf("gorm: complete round %d: %w", id, result.Error)
	}
	if result.RowsAffected == 0 {
		return repository.ErrConditionFailed
	}
	return nil
}

// UpsertVote 写入或覆盖投票。先对轮次行做一次条件更新拿到行锁，
// 与 Complete 和 DeleteStartedBefore 串行，轮次已结束或已删除时返回 ErrConditionFailed。
func (r *GormRoundRepository) UpsertVote(ctx context.Context, vote *domain.Vote) error {
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		result := tx.Model(&domain.Round{}).
			Where("id = ? AND status = ?", vote.RoundID, domain.RoundStarted).
			Update("status", gorm.Expr("status"))
		if result.Error != nil {
			return result.Error
		}
		if result.RowsAffected == 0 {
			return repository.ErrConditionFailed
		}
		return tx.Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "round_id"}, {Name: "user_id"}},
			DoUpdates: clause.AssignmentColumns([]string{"value", "updated_at"}),
		}).Create(vote).Error
	})
	if errors.Is(err, repository.ErrConditionFailed) {
		return err
	}
	if err != nil {
		return fmt.Errorf("gorm: upsert vote (round %d, user %d): %w", vote.RoundID, vote.UserID, err)
	}
	return nil
}

// ListVotes 返回轮次的投票，按首次投票时间排序
func (r *GormRoundRepository) ListVotes(ctx context.Context, roundID uint) ([]domain.Vote, error) {
	var votes []domain.Vote
	err := r.db.WithContext(ctx).Where("round_id = ?", roundID).Order("created_at ASC, id ASC").Find(&votes).Error
	if err != nil {
		return nil, fmt.Errorf("gorm: list votes for round %d: %w", roundID, err)
	}
	return votes, nil
}

// DeleteStartedBefore 删除超时的 started 轮次及其投票
func (r *GormRoundRepository) DeleteStartedBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	var deleted int64
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var ids []uint
		if err := tx.Model(&domain.Round{}).
			Where("status = ? AND created_at < ?", domain.RoundStarted, cutoff).
			Pluck("id", &ids).Error; err != nil {
			return err
		}
		if len(ids) == 0 {
			return nil
		}
		// 先删轮次拿到行锁，并发的投票会因条件更新失败而被拒绝
		result := tx.Where("id IN ? AND status = ?", ids, domain.RoundStarted).Delete(&domain.Round{})
		if result.Error != nil {
			return result.Error
		}
		deleted = result.RowsAffected
		remaining := tx.Model(&domain.Round{}).Select("id").Where("id IN ?", ids)
		return tx.Where("round_id IN ? AND round_id NOT IN (?)", ids, remaining).Delete(&domain.Vote{}).Error
	})
	if err != nil {
		return 0, fmt.Errorf("gorm: delete rounds started before %v: %w", cutoff, err)
	}
	return deleted, nil
}

// DeleteAll 清空轮次与投票
func (r *GormRoundRepository) DeleteAll(ctx context.Context) (int64, error) {
	var deleted int64
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Session(&gorm.Session{AllowGlobalUpdate: true}).Delete(&domain.Vote{}).Error; err != nil {
			return err
		}
		result := tx.Session(&gorm.Session{AllowGlobalUpdate: true}).Delete(&domain.Round{})
		deleted = result.RowsAffected
		return result.Error
	})
	if err != nil {
		return 0, fmt.Errorf("gorm: delete all rounds: %w", err)
	}
	return deleted, nil
}
