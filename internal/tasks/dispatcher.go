package tasks

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/hibiken/asynq"
	"go.uber.org/zap"

	"github.com/pr0br0/cyboard/internal/services"
	"github.com/pr0br0/cyboard/internal/utils"
)

// Enqueuer is the part of *asynq.Client the dispatcher uses.
type Enqueuer interface {
	EnqueueContext(ctx context.Context, task *asynq.Task, opts ...asynq.Option) (*asynq.TaskInfo, error)
}

// cascadeRetryDelay gives a failing backend a moment before the first retry.
const cascadeRetryDelay = 30 * time.Second

// Dispatcher queues work for the background worker. It satisfies services.Mailer,
// services.CascadeScheduler and services.ImageScheduler.
type Dispatcher struct {
	client Enqueuer
	logger *zap.Logger
}

var (
	_ services.Mailer           = (*Dispatcher)(nil)
	_ services.CascadeScheduler = (*Dispatcher)(nil)
	_ services.ImageScheduler   = (*Dispatcher)(nil)
)

func NewDispatcher(client Enqueuer, logger *zap.Logger) *Dispatcher {
	return &Dispatcher{client: client, logger: logger}
}

func (d *Dispatcher) enqueue(ctx context.Context, taskType string, payload any, opts ...asynq.Option) error {
	task, err := newTask(taskType, payload)
	if err != nil {
		return err
	}
	info, err := d.client.EnqueueContext(ctx, task, opts...)
	if errors.Is(err, asynq.ErrTaskIDConflict) {
		// already queued
		return nil
	}
	if err != nil {
		return fmt.Errorf("enqueue %s: %w", taskType, err)
	}
	d.logger.Debug("Task enqueued", zap.String("type", taskType), zap.String("task_id", info.ID), zap.String("queue", info.Queue))
	return nil
}

func (d *Dispatcher) SendEmail(ctx context.Context, job services.EmailJob) error {
	return d.enqueue(ctx, TypeEmailDelivery, job, asynq.Queue(QueueCritical), asynq.MaxRetry(5))
}

func (d *Dispatcher) ScheduleCascade(ctx context.Context, jobID utils.SixID) error {
	return d.enqueue(ctx, TypeListingCascade, CascadeTaskPayload{JobID: jobID.String()},
		asynq.Queue(QueueDefault), asynq.MaxRetry(10), asynq.ProcessIn(cascadeRetryDelay),
		asynq.TaskID("cascade:"+jobID.String()))
}

func (d *Dispatcher) ScheduleImageProcessing(ctx context.Context, listingID, imageID utils.SixID) error {
	return d.enqueue(ctx, TypeImageProcess, ImageTaskPayload{ListingID: listingID.String(), ImageID: imageID.String()},
		asynq.Queue(QueueImages), asynq.MaxRetry(3))
}
