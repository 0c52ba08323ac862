package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"

	"collaborative-rooms/internal/repository"
)

// RetentionPolicy 定义各类数据的保留时长
type RetentionPolicy struct {
	RoundStaleAfter time.Duration // started 轮次超过该时长视为废弃
	ChatRetention   time.Duration
	StrokeRetention time.Duration // 按 updated_at 计算
	RoomIdleAfter   time.Duration
	RoundResetEvery time.Duration // 全量重置轮次和画布的周期
}

// JobResetRounds 是轮次重置在执行记录中的名字
const JobResetRounds = "round_reset"

// DefaultRetentionPolicy 返回默认保留策略
func DefaultRetentionPolicy() RetentionPolicy {
	return RetentionPolicy{
		RoundStaleAfter: time.Hour,
		ChatRetention:   24 * time.Hour,
		StrokeRetention: 24 * time.Hour,
		RoomIdleAfter:   21 * 24 * time.Hour,
		RoundResetEvery: 21 * 24 * time.Hour,
	}
}

// RetentionService 执行定期清理任务。每个清理都是一次批量删除，
// 只删除严格早于截止时间的记录。
type RetentionService struct {
	roomRepo     repository.RoomRepository
	roundRepo    repository.RoundRepository
	strokeRepo   repository.StrokeRepository
	chatRepo     repository.ChatRepository
	presenceRepo repository.PresenceRepository
	markers      repository.RunMarkerRepository
	policy       RetentionPolicy
	now          Clock
}

// NewRetentionService 创建 RetentionService 实例。presenceRepo 可以为 nil；
// markers 为 nil 时 ResetRoundsIfDue 每次都执行重置。
func NewRetentionService(
	roomRepo repository.RoomRepository,
	roundRepo repository.RoundRepository,
	strokeRepo repository.StrokeRepository,
	chatRepo repository.ChatRepository,
	presenceRepo repository.PresenceRepository,
	markers repository.RunMarkerRepository,
	policy RetentionPolicy,
	clock Clock,
) *RetentionService {
	if roomRepo == nil || roundRepo == nil || strokeRepo == nil || chatRepo == nil {
		panic("room, round, stroke and chat repositories cannot be nil for RetentionService")
	}
	def := DefaultRetentionPolicy()
	if policy.RoundStaleAfter <= 0 {
		policy.RoundStaleAfter = def.RoundStaleAfter
	}
	if policy.ChatRetention <= 0 {
		policy.ChatRetention = def.ChatRetention
	}
	if policy.StrokeRetention <= 0 {
		policy.StrokeRetention = def.StrokeRetention
	}
	if policy.RoomIdleAfter <= 0 {
		policy.RoomIdleAfter = def.RoomIdleAfter
	}
	if policy.RoundResetEvery <= 0 {
		policy.RoundResetEvery = def.RoundResetEvery
	}
	return &RetentionService{
		roomRepo:     roomRepo,
		roundRepo:    roundRepo,
		strokeRepo:   strokeRepo,
		chatRepo:     chatRepo,
		presenceRepo: presenceRepo,
		markers:      markers,
		policy:       policy,
		now:          clockOrDefault(clock),
	}
}

// Policy 返回生效的保留策略
func (s *RetentionService) Policy() RetentionPolicy { return s.policy }

// PruneStaleRounds 删除长时间未完成的轮次及其投票
func (s *RetentionService) PruneStaleRounds(ctx context.Context) (int64, error) {
	cutoff := s.now().Add(-s.policy.RoundStaleAfter)
	n, err := s.roundRepo.DeleteStartedBefore(ctx, cutoff)
	if err != nil {
		return 0, fmt.Errorf("prune stale rounds: %w", err)
	}
	logrus.WithFields(logrus.Fields{"deleted": n, "cutoff": cutoff}).Info("Pruned stale rounds")
	return n, nil
}

// ResetRounds 周期性清空全部轮次、投票和笔画
func (s *RetentionService) ResetRounds(ctx context.Context) (int64, error) {
	rounds, err := s.roundRepo.DeleteAll(ctx)
	if err != nil {
		return 0, fmt.Errorf("reset rounds: %w", err)
	}
	strokes, err := s.strokeRepo.DeleteAll(ctx)
	if err != nil {
		return rounds, fmt.Errorf("reset strokes: %w", err)
	}
	logrus.WithFields(logrus.Fields{"rounds": rounds, "strokes": strokes}).Info("Reset rounds and canvas")
	return rounds + strokes, nil
}

// ResetRoundsIfDue 按共享的执行记录判断是否到期，到期才重置。
// 周期从上次重置算起，与进程重启和实例数量无关；重置失败时恢复记录以便重试。
func (s *RetentionService) ResetRoundsIfDue(ctx context.Context) (int64, error) {
	if s.markers == nil {
		return s.ResetRounds(ctx)
	}
	now := s.now()
	previous, claimed, err := s.markers.ClaimDue(ctx, JobResetRounds, now, s.policy.RoundResetEvery)
	if err != nil {
		return 0, fmt.Errorf("claim round reset: %w", err)
	}
	if !claimed {
		logrus.WithField("last_reset", previous).Debug("Round reset not due")
		return 0, nil
	}
	n, err := s.ResetRounds(ctx)
	if err != nil {
		if restoreErr := s.markers.Restore(ctx, JobResetRounds, previous); restoreErr != nil {
			logrus.WithError(restoreErr).Error("Failed to restore round reset marker")
		}
		return n, err
	}
	return n, nil
}

// PruneChat 删除过期的聊天消息
func (s *RetentionService) PruneChat(ctx context.Context) (int64, error) {
	cutoff := s.now().Add(-s.policy.ChatRetention)
	n, err := s.chatRepo.DeleteBefore(ctx, cutoff)
	if err != nil {
		return 0, fmt.Errorf("prune chat: %w", err)
	}
	logrus.WithFields(logrus.Fields{"deleted": n, "cutoff": cutoff}).Info("Pruned chat messages")
	return n, nil
}

// PruneStrokes 删除长时间未更新的笔画
func (s *RetentionService) PruneStrokes(ctx context.Context) (int64, error) {
	cutoff := s.now().Add(-s.policy.StrokeRetention)
	n, err := s.strokeRepo.DeleteUpdatedBefore(ctx, cutoff)
	if err != nil {
		return 0, fmt.Errorf("prune strokes: %w", err)
	}
	logrus.WithFields(logrus.Fields{"deleted": n, "cutoff": cutoff}).Info("Pruned strokes")
	return n, nil
}

// PruneIdleRooms 删除长期不活跃的房间及其所有数据，包括 Redis 中的在线记录
func (s *RetentionService) PruneIdleRooms(ctx context.Context) (int64, error) {
	cutoff := s.now().Add(-s.policy.RoomIdleAfter)
	ids, err := s.roomRepo.DeleteIdleBefore(ctx, cutoff)
	if err != nil {
		return 0, fmt.Errorf("prune idle rooms: %w", err)
	}
	if s.presenceRepo != nil {
		for _, id := range ids {
			if err := s.presenceRepo.ClearRoom(ctx, id); err != nil {
				logrus.WithError(err).WithField("room_id", id).Warn("Failed to clear presence of deleted room")
			}
		}
	}
	logrus.WithFields(logrus.Fields{"deleted": len(ids), "cutoff": cutoff}).Info("Pruned idle rooms")
	return int64(len(ids)), nil
}

// SweepAll 依次执行所有清理 (不含 ResetRounds)，一个失败不影响其他
func (s *RetentionService) SweepAll(ctx context.Context) error {
	var errs []error
	for _, prune := range []func(context.Context) (int64, error){
		s.PruneStaleRounds,
		s.PruneChat,
		s.PruneStrokes,
		s.PruneIdleRooms,
	} {
		if _, err := prune(ctx); err != nil {
			logrus.WithError(err).Error("Retention prune failed")
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
