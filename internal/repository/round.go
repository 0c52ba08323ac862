package repository

import (
	"context"
	"time"

	"collaborative-rooms/internal/domain"
)

// RoundRepository 定义了投票轮次和投票的存储操作。
type RoundRepository interface {
	// Create 插入一个 started 状态的轮次。
	// 房间内已有 started 轮次时返回 ErrDuplicateEntry。
	Create(ctx context.Context, round *domain.Round) error

	FindByID(ctx context.Context, id uint) (*domain.Round, error)

	// FindActive 返回房间内 started 状态的轮次，没有时返回 ErrRoundNotFound。
	FindActive(ctx context.Context, roomID uint) (*domain.Round, error)

	// ListByRoom 按创建时间倒序列出房间的轮次。
	ListByRoom(ctx context.Context, roomID uint, limit int) ([]domain.Round, error)

	// Complete 将 started 轮次标记为 completed。
	// 轮次不是 started 状态时返回 ErrConditionFailed。
	Complete(ctx context.Context, id uint, at time.Time) error

	// UpsertVote 写入或覆盖 (round, user) 的投票 (last write wins)。
	// 轮次不是 started 状态或已不存在时返回 ErrConditionFailed，不写入。
	UpsertVote(ctx context.Context, vote *domain.Vote) error

	// ListVotes 返回轮次的所有投票。
	ListVotes(ctx context.Context, roundID uint) ([]domain.Vote, error)

	// DeleteStartedBefore 删除创建时间早于 cutoff 且仍为 started 的轮次及其投票。
	DeleteStartedBefore(ctx context.Context, cutoff time.Time) (int64, error)

	// DeleteAll 清空所有轮次和投票。
	DeleteAll(ctx context.Context) (int64, error)
}
