package worker

import (
	"context"
	"fmt"

	"github.com/hibiken/asynq"
	"github.com/sirupsen/logrus"

	"collaborative-rooms/internal/tasks"
)

// Retention 是清理任务依赖的服务接口，由 service.RetentionService 实现
type Retention interface {
	PruneStaleRounds(ctx context.Context) (int64, error)
	ResetRoundsIfDue(ctx context.Context) (int64, error)
	PruneChat(ctx context.Context) (int64, error)
	PruneStrokes(ctx context.Context) (int64, error)
	PruneIdleRooms(ctx context.Context) (int64, error)
}

// RetentionHandler 处理所有 retention:* 任务
type RetentionHandler struct {
	jobs map[string]func(context.Context) (int64, error)
}

// NewRetentionHandler 创建 Handler 实例
func NewRetentionHandler(retention Retention) *RetentionHandler {
	if retention == nil {
		panic("Retention cannot be nil for RetentionHandler")
	}
	return &RetentionHandler{jobs: map[string]func(context.Context) (int64, error){
		tasks.TypePruneStaleRounds: retention.PruneStaleRounds,
		tasks.TypeResetRounds:      retention.ResetRoundsIfDue,
		tasks.TypePruneChat:        retention.PruneChat,
		tasks.TypePruneStrokes:     retention.PruneStrokes,
		tasks.TypePruneIdleRooms:   retention.PruneIdleRooms,
	}}
}

// Register 把每个清理任务类型注册到 mux
func (h *RetentionHandler) Register(mux *asynq.ServeMux) {
	for taskType := range h.jobs {
		mux.HandleFunc(taskType, h.ProcessTask)
	}
}

// ProcessTask 实现 asynq.Handler 接口
func (h *RetentionHandler) ProcessTask(ctx context.Context, t *asynq.Task) error {
	taskID := ""
	if rw := t.ResultWriter(); rw != nil {
		taskID = rw.TaskID()
	}
	currentRetry, _ := asynq.GetRetryCount(ctx)
	logCtx := logrus.WithFields(logrus.Fields{
		"task_id":   taskID,
		"task_type": t.Type(),
		"retry":     currentRetry,
	})

	job, ok := h.jobs[t.Type()]
	if !ok {
		logCtx.Error("Unknown retention task type")
		return fmt.Errorf("unknown task type %q: %w", t.Type(), asynq.SkipRetry)
	}
	deleted, err := job(ctx)
	if err != nil {
		logCtx.WithError(err).Error("Retention task failed")
		return err
	}
	logCtx.WithField("deleted", deleted).Info("Retention task processed successfully")
	return nil
}
