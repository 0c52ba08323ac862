package repository

import (
	"context"
	"time"

	"collaborative-rooms/internal/domain"
)

// UserRepository 定义了用户数据的存储和检索操作。
type UserRepository interface {
	// FindByToken 根据匿名 token 查找用户，不存在时返回 ErrUserNotFound。
	FindByToken(ctx context.Context, token string) (*domain.User, error)

	// FindByID 根据用户 ID 查找用户，不存在时返回 ErrUserNotFound。
	FindByID(ctx context.Context, id uint) (*domain.User, error)

	// FindByIDs 批量查找用户，缺失的 ID 直接忽略。
	FindByIDs(ctx context.Context, ids []uint) ([]domain.User, error)

	// Create 插入新用户，token 冲突时返回 ErrDuplicateEntry。
	Create(ctx context.Context, user *domain.User) error

	// Touch 更新用户的最后活跃时间，displayName 非空时一并更新。
	Touch(ctx context.Context, id uint, displayName string, at time.Time) error
}
