package tasks

import (
	"fmt"
	"time"

	"github.com/hibiken/asynq"
	"go.uber.org/zap"

	"github.com/pr0br0/cyboard/internal/config"
)

// Registrar is the part of *asynq.Scheduler used to register periodic tasks.
type Registrar interface {
	Register(cronspec string, task *asynq.Task, opts ...asynq.Option) (string, error)
}

// PeriodicTask is a task enqueued on a cron schedule.
type PeriodicTask struct {
	Cron    string
	Type    string
	Payload any
	Queue   string
}

// PeriodicTasks is the maintenance schedule run by the background worker.
var PeriodicTasks = []PeriodicTask{
	{Cron: "@every 1h", Type: TypeCategoryRecount, Queue: QueueLow},
	{Cron: "@every 1h", Type: TypeListingExpire, Queue: QueueDefault},
	{Cron: "@daily", Type: TypeNotificationPurge, Queue: QueueLow,
		Payload: PurgeTaskPayload{MaxAgeHours: int(NotificationRetention / time.Hour)}},
	{Cron: "@every 10m", Type: TypeCascadeReconcile, Queue: QueueDefault,
		Payload: ReconcileTaskPayload{StaleAfterSeconds: int(CascadeStaleAfter / time.Second), Limit: ReconcileBatch}},
}

func NewScheduler(cfg config.RedisConfig, logger *zap.Logger) *asynq.Scheduler {
	return asynq.NewScheduler(RedisOpt(cfg), &asynq.SchedulerOpts{
		Location: time.UTC,
		Logger:   logger.Sugar(),
		EnqueueErrorHandler: func(task *asynq.Task, _ []asynq.Option, err error) {
			logger.Error("Failed to enqueue periodic task", zap.String("type", task.Type()), zap.Error(err))
		},
	})
}

// RegisterPeriodic adds every entry of PeriodicTasks to r.
func RegisterPeriodic(r Registrar, logger *zap.Logger) error {
	for _, pt := range PeriodicTasks {
		payload := pt.Payload
		if payload == nil {
			payload = struct{}{}
		}
		task, err := newTask(pt.Type, payload)
		if err != nil {
			return err
		}
		// a slow run must not overlap the next tick
		id, err := r.Register(pt.Cron, task, asynq.Queue(pt.Queue), asynq.MaxRetry(1), asynq.Unique(30*time.Minute))
		if err != nil {
			return fmt.Errorf("register %s (%s): %w", pt.Type, pt.Cron, err)
		}
		logger.Info("Periodic task registered", zap.String("type", pt.Type), zap.String("cron", pt.Cron), zap.String("entry_id", id))
	}
	return nil
}
