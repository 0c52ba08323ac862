package tasks

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/hibiken/asynq"
)

// 定义任务类型常量，每个清理任务一个类型，失败和重试互不影响
const (
	TypePruneStaleRounds = "retention:stale_rounds"
	TypeResetRounds      = "retention:round_reset"
	TypePruneChat        = "retention:chat"
	TypePruneStrokes     = "retention:strokes"
	TypePruneIdleRooms   = "retention:idle_rooms"
)

// RetentionMaxRetry 是清理任务失败后的最大重试次数
const RetentionMaxRetry = 3

// RetentionTypes 列出所有清理任务类型
func RetentionTypes() []string {
	return []string{TypePruneStaleRounds, TypeResetRounds, TypePruneChat, TypePruneStrokes, TypePruneIdleRooms}
}

// ScheduleEntry 描述一个周期性任务
type ScheduleEntry struct {
	TaskType string
	Cronspec string
}

// ScheduleUniqueFor 是周期任务的去重窗口，多个实例的 Scheduler 同一时刻只入队一次
const ScheduleUniqueFor = 10 * time.Minute

// RetentionSchedule 返回清理任务的调度表。
// 轮次重置按小时检查，是否到期由服务根据 Redis 中的上次执行时间判断，
// 不使用 "@every"：它从 Scheduler 启动时计时，每次重启都会推迟。
func RetentionSchedule() []ScheduleEntry {
	return []ScheduleEntry{
		{TaskType: TypePruneStaleRounds, Cronspec: "@hourly"},
		{TaskType: TypeResetRounds, Cronspec: "@hourly"},
		{TaskType: TypePruneChat, Cronspec: "@hourly"},
		{TaskType: TypePruneStrokes, Cronspec: "@hourly"},
		{TaskType: TypePruneIdleRooms, Cronspec: "@daily"},
	}
}

// NewRetentionTask 创建一个清理任务。清理任务没有 payload，截止时间在执行时计算。
func NewRetentionTask(taskType string) *asynq.Task {
	return asynq.NewTask(taskType, nil,
		asynq.MaxRetry(RetentionMaxRetry),
		asynq.Queue("low"),
		asynq.Timeout(10*time.Minute),
	)
}

// StartupSweepTypes 是启动时立即执行一次的清理任务。轮次重置只按自己的周期执行。
func StartupSweepTypes() []string {
	return []string{TypePruneStaleRounds, TypePruneChat, TypePruneStrokes, TypePruneIdleRooms}
}

// EnqueueStartupSweep 入队一次性清理任务。uniqueFor 内重复入队会被忽略，
// 多个实例同时启动时只执行一次。
func EnqueueStartupSweep(ctx context.Context, client *asynq.Client, uniqueFor time.Duration) error {
	var errs []error
	for _, t := range StartupSweepTypes() {
		_, err := client.EnqueueContext(ctx, NewRetentionTask(t), asynq.Unique(uniqueFor))
		if err != nil && !errors.Is(err, asynq.ErrDuplicateTask) {
			errs = append(errs, fmt.Errorf("enqueue %s: %w", t, err))
		}
	}
	return errors.Join(errs...)
}
