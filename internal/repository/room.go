package repository

import (
	"context"
	"time"

	"collaborative-rooms/internal/domain"
)

// RoomRepository 定义了房间和成员关系的存储操作。
type RoomRepository interface {
	// FindByID 根据房间 ID 查找房间。
	FindByID(ctx context.Context, id uint) (*domain.Room, error)

	// FindByCode 根据 (已规范化的) 房间码查找房间，不存在时返回 ErrRoomNotFound。
	FindByCode(ctx context.Context, code string) (*domain.Room, error)

	// CreateWithOwner 在同一事务中创建房间和房主的成员关系。
	// 房间码冲突时返回 ErrDuplicateEntry，且不留下任何记录。
	CreateWithOwner(ctx context.Context, room *domain.Room) error

	// AddMember 幂等地添加成员：已存在时不报错也不产生重复记录。
	AddMember(ctx context.Context, roomID, userID uint, at time.Time) error

	// IsMember 检查用户是否属于房间。
	IsMember(ctx context.Context, roomID, userID uint) (bool, error)

	// ListMembers 返回房间成员 (带显示名)，按加入时间排序。
	ListMembers(ctx context.Context, roomID uint) ([]domain.Member, error)

	// ListForUser 返回用户加入的所有房间。
	ListForUser(ctx context.Context, userID uint) ([]domain.Room, error)

	// TouchActivity 更新房间最后活跃时间。
	TouchActivity(ctx context.Context, roomID uint, at time.Time) error

	// DeleteIdleBefore 删除最后活跃时间早于 cutoff 的房间及其所有关联数据，
	// 返回被删除的房间 ID。
	DeleteIdleBefore(ctx context.Context, cutoff time.Time) ([]uint, error)
}
