package tasks

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/hibiken/asynq"
	"go.uber.org/zap"

	"github.com/pr0br0/cyboard/internal/config"
	"github.com/pr0br0/cyboard/internal/services"
	"github.com/pr0br0/cyboard/internal/storage"
	"github.com/pr0br0/cyboard/internal/utils"
)

// Task types.
const (
	TypeEmailDelivery     = "email:deliver"
	TypeImageProcess      = "image:process"
	TypeListingCascade    = "listing:cascade"
	TypeListingExpire     = "listing:expire"
	TypeCategoryRecount   = "category:recount"
	TypeNotificationPurge = "notification:purge"
	TypeCascadeReconcile  = "cascade:reconcile"
)

// Queue names and their priorities.
const (
	QueueCritical = "critical"
	QueueImages   = "images"
	QueueDefault  = "default"
	QueueLow      = "low"
)

var queues = map[string]int{
	QueueCritical: 6,
	QueueImages:   5,
	QueueDefault:  3,
	QueueLow:      1,
}

const (
	NotificationRetention = 90 * 24 * time.Hour
	CascadeStaleAfter     = 10 * time.Minute
	ReconcileBatch        = 100
)

// RedisOpt converts the Redis section of the config into asynq's connection options.
func RedisOpt(cfg config.RedisConfig) asynq.RedisClientOpt {
	return asynq.RedisClientOpt{Addr: cfg.Addr, Password: cfg.Password, DB: cfg.DB}
}

func NewClient(cfg config.RedisConfig) *asynq.Client {
	return asynq.NewClient(RedisOpt(cfg))
}

// --- Payloads ---

// EmailTaskPayload mirrors services.EmailJob on the wire.
type EmailTaskPayload = services.EmailJob

type ImageTaskPayload struct {
	ListingID string `json:"listing_id"`
	ImageID   string `json:"image_id"`
}

type CascadeTaskPayload struct {
	JobID string `json:"job_id"`
}

type PurgeTaskPayload struct {
	MaxAgeHours int `json:"max_age_hours"`
}

type ReconcileTaskPayload struct {
	StaleAfterSeconds int `json:"stale_after_seconds"`
	Limit             int `json:"limit"`
}

func newTask(taskType string, payload any) (*asynq.Task, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("marshal %s payload: %w", taskType, err)
	}
	return asynq.NewTask(taskType, data), nil
}

// decode unmarshals a payload. A malformed payload can never succeed, so it is not retried.
func decode(t *asynq.Task, v any) error {
	if len(t.Payload()) == 0 {
		return nil
	}
	if err := json.Unmarshal(t.Payload(), v); err != nil {
		return fmt.Errorf("failed to unmarshal %s payload: %v: %w", t.Type(), err, asynq.SkipRetry)
	}
	return nil
}

func parseID(taskType, field, raw string) (utils.SixID, error) {
	id, err := utils.ParseSixID(raw)
	if err != nil {
		return id, fmt.Errorf("invalid %s in %s payload: %w", field, taskType, asynq.SkipRetry)
	}
	return id, nil
}

// --- Processor ---

// The processor depends only on the service methods the handlers call.
type (
	ImageProcessor interface {
		ProcessImage(ctx context.Context, listingID, imageID utils.SixID) error
	}
	ListingExpirer interface {
		ExpireDue(ctx context.Context) (int, error)
	}
	CascadeRunner interface {
		Run(ctx context.Context, jobID utils.SixID) error
		Reconcile(ctx context.Context, staleAfter time.Duration, limit int) (int, error)
	}
	CategoryCounter interface {
		UpdateAllListingCounts(ctx context.Context) (int, error)
	}
	NotificationPurger interface {
		PurgeOlderThan(ctx context.Context, age time.Duration) (int64, error)
	}
	// TaskObserver is told about every processed task.
	TaskObserver interface {
		ObserveTask(taskType string, duration time.Duration, err error)
	}
)

// TaskProcessor handles the processing of tasks.
type TaskProcessor struct {
	mailer        services.Mailer
	images        ImageProcessor
	listings      ListingExpirer
	cascade       CascadeRunner
	categories    CategoryCounter
	notifications NotificationPurger
	observer      TaskObserver
	logger        *zap.Logger
}

// NewTaskProcessor wires the handlers. mailer must deliver in-process (services.DirectMailer),
// never through the dispatcher, or email tasks would requeue themselves.
func NewTaskProcessor(
	mailer services.Mailer,
	images ImageProcessor,
	listings ListingExpirer,
	cascade CascadeRunner,
	categories CategoryCounter,
	notifications NotificationPurger,
	observer TaskObserver,
	logger *zap.Logger,
) *TaskProcessor {
	return &TaskProcessor{
		mailer:        mailer,
		images:        images,
		listings:      listings,
		cascade:       cascade,
		categories:    categories,
		notifications: notifications,
		observer:      observer,
		logger:        logger,
	}
}

// Mux registers every handler behind a logging and metrics middleware.
func (p *TaskProcessor) Mux() *asynq.ServeMux {
	mux := asynq.NewServeMux()
	mux.Use(p.observe)
	mux.HandleFunc(TypeEmailDelivery, p.HandleEmailDeliveryTask)
	mux.HandleFunc(TypeImageProcess, p.HandleImageProcessTask)
	mux.HandleFunc(TypeListingCascade, p.HandleListingCascadeTask)
	mux.HandleFunc(TypeListingExpire, p.HandleListingExpireTask)
	mux.HandleFunc(TypeCategoryRecount, p.HandleCategoryRecountTask)
	mux.HandleFunc(TypeNotificationPurge, p.HandleNotificationPurgeTask)
	mux.HandleFunc(TypeCascadeReconcile, p.HandleCascadeReconcileTask)
	return mux
}

func (p *TaskProcessor) observe(next asynq.Handler) asynq.Handler {
	return asynq.HandlerFunc(func(ctx context.Context, t *asynq.Task) error {
		start := time.Now()
		err := next.ProcessTask(ctx, t)
		elapsed := time.Since(start)
		if p.observer != nil {
			p.observer.ObserveTask(t.Type(), elapsed, err)
		}
		if err != nil {
			p.logger.Warn("Task failed", zap.String("type", t.Type()), zap.Duration("elapsed", elapsed),
				zap.Bool("retry", !errors.Is(err, asynq.SkipRetry)), zap.Error(err))
			return err
		}
		p.logger.Debug("Task processed", zap.String("type", t.Type()), zap.Duration("elapsed", elapsed))
		return nil
	})
}

// NewServer configures an asynq server for all queues.
func NewServer(cfg config.RedisConfig, concurrency int, logger *zap.Logger) *asynq.Server {
	return asynq.NewServer(
		RedisOpt(cfg),
		asynq.Config{
			Concurrency: concurrency,
			Queues:      queues,
			Logger:      logger.Sugar(),
			ErrorHandler: asynq.ErrorHandlerFunc(func(ctx context.Context, task *asynq.Task, err error) {
				retried, _ := asynq.GetRetryCount(ctx)
				maxRetry, _ := asynq.GetMaxRetry(ctx)
				logger.Error("Task error", zap.String("type", task.Type()),
					zap.Int("retried", retried), zap.Int("max_retry", maxRetry), zap.Error(err))
			}),
		},
	)
}

// --- Task Handlers ---

func (p *TaskProcessor) HandleEmailDeliveryTask(ctx context.Context, t *asynq.Task) error {
	var payload EmailTaskPayload
	if err := decode(t, &payload); err != nil {
		return err
	}
	if payload.To == "" || payload.TemplateID == "" {
		return fmt.Errorf("email task without recipient or template: %w", asynq.SkipRetry)
	}
	if err := p.mailer.SendEmail(ctx, payload); err != nil {
		if errors.Is(err, services.ErrTemplateNotFound) {
			return fmt.Errorf("%v: %w", err, asynq.SkipRetry)
		}
		return err
	}
	p.logger.Info("Email delivered", zap.String("to", payload.To), zap.String("template", payload.TemplateID))
	return nil
}

func (p *TaskProcessor) HandleImageProcessTask(ctx context.Context, t *asynq.Task) error {
	var payload ImageTaskPayload
	if err := decode(t, &payload); err != nil {
		return err
	}
	listingID, err := parseID(t.Type(), "listing_id", payload.ListingID)
	if err != nil {
		return err
	}
	imageID, err := parseID(t.Type(), "image_id", payload.ImageID)
	if err != nil {
		return err
	}

	err = p.images.ProcessImage(ctx, listingID, imageID)
	switch {
	case err == nil:
		return nil
	case errors.Is(err, services.ErrNotFound), errors.Is(err, storage.ErrObjectNotFound), errors.Is(err, storage.ErrUnsupportedImage):
		// listing or image gone, upload never landed, or not an image
		return fmt.Errorf("image %s of listing %s: %v: %w", imageID, listingID, err, asynq.SkipRetry)
	default:
		return err
	}
}

func (p *TaskProcessor) HandleListingCascadeTask(ctx context.Context, t *asynq.Task) error {
	var payload CascadeTaskPayload
	if err := decode(t, &payload); err != nil {
		return err
	}
	jobID, err := parseID(t.Type(), "job_id", payload.JobID)
	if err != nil {
		return err
	}
	if err := p.cascade.Run(ctx, jobID); err != nil {
		if errors.Is(err, services.ErrNotFound) {
			return fmt.Errorf("cascade job %s: %v: %w", jobID, err, asynq.SkipRetry)
		}
		return err
	}
	return nil
}

func (p *TaskProcessor) HandleListingExpireTask(ctx context.Context, _ *asynq.Task) error {
	n, err := p.listings.ExpireDue(ctx)
	if err != nil {
		return err
	}
	if n > 0 {
		p.logger.Info("Listings expired", zap.Int("count", n))
	}
	return nil
}

func (p *TaskProcessor) HandleCategoryRecountTask(ctx context.Context, _ *asynq.Task) error {
	n, err := p.categories.UpdateAllListingCounts(ctx)
	if err != nil {
		return err
	}
	p.logger.Info("Category listing counts updated", zap.Int("categories", n))
	return nil
}

func (p *TaskProcessor) HandleNotificationPurgeTask(ctx context.Context, t *asynq.Task) error {
	var payload PurgeTaskPayload
	if err := decode(t, &payload); err != nil {
		return err
	}
	age := NotificationRetention
	if payload.MaxAgeHours > 0 {
		age = time.Duration(payload.MaxAgeHours) * time.Hour
	}
	_, err := p.notifications.PurgeOlderThan(ctx, age)
	return err
}

func (p *TaskProcessor) HandleCascadeReconcileTask(ctx context.Context, t *asynq.Task) error {
	var payload ReconcileTaskPayload
	if err := decode(t, &payload); err != nil {
		return err
	}
	staleAfter := CascadeStaleAfter
	if payload.StaleAfterSeconds > 0 {
		staleAfter = time.Duration(payload.StaleAfterSeconds) * time.Second
	}
	limit := ReconcileBatch
	if payload.Limit > 0 {
		limit = payload.Limit
	}
	_, err := p.cascade.Reconcile(ctx, staleAfter, limit)
	return err
}
