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

// GormRoomRepository 是 RoomRepository 接口的 GORM 实现
type GormRoomRepository struct {
	db *gorm.DB
}

// NewGormRoomRepository 创建 GormRoomRepository 实例
func NewGormRoomRepository(db *gorm.DB) *GormRoomRepository {
	if db == nil {
		panic("database connection cannot be nil for GormRoomRepository")
	}
	return &GormRoomRepository{db: db}
}

// FindByID 根据房间 ID 查找房间
func (r *GormRoomRepository) FindByID(ctx context.Context, id uint) (*domain.Room, error) {
	var room domain.Room
	err := r.db.WithContext(ctx).First(&room, id).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, repository.ErrRoomNotFound
		}
		return nil, fmt.Errorf("gorm: find room by id %d: %w", id, err)
	}
	return &room, nil
}

// FindByCode 根据房间码查找房间
func (r *GormRoomRepository) FindByCode(ctx context.Context, code string) (*domain.Room, error) {
	var room domain.Room
	err := r.db.WithContext(ctx).Where("code = ?", code).First(&room).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, repository.ErrRoomNotFound
		}
		return nil, fmt.Errorf("gorm: find room by code '%s': %w", code, err)
	}
	return &room, nil
}

// CreateWithOwner 在一个事务中创建房间和房主成员关系
func (r *GormRoomRepository) CreateWithOwner(ctx context.Context, room *domain.Room) error {
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(room).Error; err != nil {
			return err
		}
		membership := domain.Membership{RoomID: room.ID, UserID: room.OwnerID, JoinedAt: room.CreatedAt}
		return tx.Create(&membership).Error
	})
	if err != nil {
		room.ID = 0 // 事务已回滚
		if isDuplicateEntryError(err) {
			return repository.ErrDuplicateEntry
		}
		return fmt.Errorf("gorm: create room (code: %s): %w", room.Code, err)
	}
	return nil
}

// AddMember 幂等地添加成员
func (r *GormRoomRepository) AddMember(ctx context.Context, roomID, userID uint, at time.Time) error {
	membership := domain.Membership{RoomID: roomID, UserID: userID, JoinedAt: at}
	err := r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "room_id"}, {Name: "user_id"}},
			DoNothing: true,
		}).
		Create(&membership).Error
	if err != nil {
		return fmt.Errorf("gorm: add member (room %d, user %d): %w", roomID, userID, err)
	}
	return nil
}

// IsMember 检查成员关系是否存在
func (r *GormRoomRepository) IsMember(ctx context.Context, roomID, userID uint) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&domain.Membership{}).
		Where("room_id = ? AND user_id = ?", roomID, userID).
		Count(&count).Error
	if err != nil {
		return false, fmt.Errorf("gorm: count membership (room %d, user %d): %w", roomID, userID, err)
	}
	return count > 0, nil
}

// ListMembers 返回房间成员以及显示名
func (r *GormRoomRepository) ListMembers(ctx context.Context, roomID uint) ([]domain.Member, error) {
	var room domain.Room
	if err := r.db.WithContext(ctx).First(&room, roomID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, repository.ErrRoomNotFound
		}
		return nil, fmt.Errorf("gorm: find room %d for members: %w", roomID, err)
	}

	var rows []struct {
		UserID      uint
		DisplayName string
		JoinedAt    time.Time
	}
	err := r.db.WithContext(ctx).
		Table("memberships").
		Select("memberships.user_id, COALESCE(users.display_name, '') AS display_name, memberships.joined_at").
		Joins("LEFT JOIN users ON users.id = memberships.user_id").
		Where("memberships.room_id = ?", roomID).
		Order("memberships.joined_at ASC, memberships.id ASC").
		Scan(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("gorm: list members of room %d: %w", roomID, err)
	}

	members := make([]domain.Member, 0, len(rows))
	for _, row := range rows {
		name := row.DisplayName
		if name == "" {
			name = domain.UnknownDisplayName
		}
		members = append(members, domain.Member{
			UserID:      row.UserID,
			DisplayName: name,
			IsOwner:     row.UserID == room.OwnerID,
			JoinedAt:    row.JoinedAt,
		})
	}
	return members, nil
}

// ListForUser 返回用户加入的房间，最近活跃的在前
func (r *GormRoomRepository) ListForUser(ctx context.Context, userID uint) ([]domain.Room, error) {
	var rooms []domain.Room
	err := r.db.WithContext(ctx).
		Select("rooms.*").
		Joins("JOIN memberships ON memberships.room_id = rooms.id").
		Where("memberships.user_id = ?", userID).
		Order("rooms.last_active_at DESC").
		Find(&rooms).Error
	if err != nil {
		return nil, fmt.Errorf("gorm: list rooms for user %d: %w", userID, err)
	}
	return rooms, nil
}

// TouchActivity 更新房间最后活跃时间
func (r *GormRoomRepository) TouchActivity(ctx context.Context, roomID uint, at time.Time) error {
	err := r.db.WithContext(ctx).Model(&domain.Room{}).
		Where("id = ?", roomID).
		UpdateColumn("last_active_at", at).Error
	if err != nil {
		return fmt.Errorf("gorm: touch room %d: %w", roomID, err)
	}
	return nil
}

// DeleteIdleBefore 删除闲置房间及其成员、轮次、投票、笔画和聊天
func (r *GormRoomRepository) DeleteIdleBefore(ctx context.Context, cutoff time.Time) ([]uint, error) {
	var ids []uint
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Model(&domain.Room{}).Where("last_active_at < ?", cutoff).Pluck("id", &ids).Error; err != nil {
			return err
		}
		if len(ids) == 0 {
			return nil
		}
		roundIDs := tx.Model(&domain.Round{}).Select("id").Where("room_id IN ?", ids)
		if err := tx.Where("round_id IN (?)", roundIDs).Delete(&domain.Vote{}).Error; err != nil {
			return err
		}
		for _, model := range []interface{}{&domain.Round{}, &domain.Stroke{}, &domain.ChatMessage{}, &domain.Membership{}} {
			if err := tx.Where("room_id IN ?", ids).Delete(model).Error; err != nil {
				return err
			}
		}
		return tx.Where("id IN ?", ids).Delete(&domain.Room{}).Error
	})
	if err != nil {
		return nil, fmt.Errorf("gorm: delete rooms idle before %v: %w", cutoff, err)
	}
	return ids, nil
}
