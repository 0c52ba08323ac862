package worker

import (
	"context"
	"fmt"

	"github.com/hibiken/asynq"
	"github.com/sirupsen/logrus"

	"collaborative-rooms/internal/tasks"
)

// WorkerServer 封装了 Asynq Worker Server 和周期任务 Scheduler 的启动和关闭
type WorkerServer struct {
	server    *asynq.Server
	scheduler *asynq.Scheduler
	handler   *RetentionHandler
	schedule  []tasks.ScheduleEntry
	log       *logrus.Entry
}

// NewWorkerServer 创建一个新的 WorkerServer 实例
func NewWorkerServer(redisOpt asynq.RedisClientOpt, retention Retention, schedule []tasks.ScheduleEntry, concurrency int, logger *logrus.Logger) *WorkerServer {
	logEntry := logger.WithField("component", "worker_server")
	if concurrency <= 0 {
		concurrency = 2
	}

	server := asynq.NewServer(
		redisOpt,
		asynq.Config{
			Concurrency: concurrency,
			Queues: map[string]int{
				"default": 3,
				"low":     1,
			},
			ErrorHandler: asynq.ErrorHandlerFunc(func(ctx context.Context, task *asynq.Task, err error) {
				taskID := ""
				if rw := task.ResultWriter(); rw != nil {
					taskID = rw.TaskID()
				}
				retryCount, _ := asynq.GetRetryCount(ctx)
				maxRetry, _ := asynq.GetMaxRetry(ctx)
				logEntry.WithFields(logrus.Fields{
					"task_id":   taskID,
					"task_type": task.Type(),
					"retries":   retryCount,
					"max_retry": maxRetry,
				}).Errorf("Task failed: %v", err)
			}),
			Logger: logEntry,
		},
	)
	scheduler := asynq.NewScheduler(redisOpt, &asynq.SchedulerOpts{Logger: logEntry})

	return &WorkerServer{
		server:    server,
		scheduler: scheduler,
		handler:   NewRetentionHandler(retention),
		schedule:  schedule,
		log:       logEntry,
	}
}

// RegisterSchedule 向 Scheduler 注册所有周期任务
func (ws *WorkerServer) RegisterSchedule() error {
	for _, entry := range ws.schedule {
		entryID, err := ws.scheduler.Register(entry.Cronspec, tasks.NewRetentionTask(entry.TaskType), asynq.Unique(tasks.ScheduleUniqueFor))
		if err != nil {
			return err
		}
		ws.log.WithFields(logrus.Fields{
			"task_type": entry.TaskType,
			"schedule":  entry.Cronspec,
			"entry_id":  entryID,
		}).Info("Periodic task registered")
	}
	return nil
}

// Start 启动 Worker Server 和 Scheduler，两者都在后台运行
func (ws *WorkerServer) Start() error {
	mux := asynq.NewServeMux()
	ws.handler.Register(mux)

	ws.log.Info("Worker server starting...")
	if err := ws.server.Start(mux); err != nil {
		return fmt.Errorf("could not start worker server: %w", err)
	}
	ws.log.Info("Asynq scheduler starting...")
	if err := ws.scheduler.Start(); err != nil {
		ws.server.Shutdown()
		return fmt.Errorf("could not start scheduler: %w", err)
	}
	return nil
}

// Shutdown 优雅地关闭 Scheduler 和 Worker Server
func (ws *WorkerServer) Shutdown() {
	ws.log.Info("Shutting down worker server...")
	ws.scheduler.Shutdown()
	ws.server.Shutdown()
	ws.log.Info("Worker server shut down complete.")
}
