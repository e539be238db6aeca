package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/pr0br0/cyboard/internal/events"
	"github.com/pr0br0/cyboard/internal/models"
	"github.com/pr0br0/cyboard/internal/repository"
	"github.com/pr0br0/cyboard/internal/storage"
	"github.com/pr0br0/cyboard/internal/utils"
)

// CascadeScheduler queues a retry of an unfinished cascade job.
type CascadeScheduler interface {
	ScheduleCascade(ctx context.Context, jobID utils.SixID) error
}

type ICascadeService interface {
	// Start marks the listing deleted, records a cascade job and runs it inline.
	// A failing step leaves the job pending for a retry; Start itself still succeeds.
	Start(ctx context.Context, l *models.Listing) (*models.CascadeJob, error)
	// Run executes the remaining steps of a job.
	Run(ctx context.Context, jobID utils.SixID) error
	// Reconcile resumes pending jobs untouched for longer than staleAfter.
	Reconcile(ctx context.Context, staleAfter time.Duration, limit int) (int, error)
}

type cascadeService struct {
	store      *repository.Store
	objects    storage.ObjectStore
	categories ICategoryService
	scheduler  CascadeScheduler
	publisher  events.Publisher
	logger     *zap.Logger
	now        func() time.Time
}

// NewCascadeService wires the delete saga. scheduler may be nil, in which case
// only the periodic reconcile retries failed jobs.
func NewCascadeService(store *repository.Store, objects storage.ObjectStore, categories ICategoryService,
	scheduler CascadeScheduler, publisher events.Publisher, logger *zap.Logger) ICascadeService {
	return &cascadeService{
		store:      store,
		objects:    objects,
		categories: categories,
		scheduler:  scheduler,
		publisher:  publisher,
		logger:     logger,
		now:        func() time.Time { return time.Now().UTC() },
	}
}

func (s *cascadeService) Start(ctx context.Context, l *models.Listing) (*models.CascadeJob, error) {
	now := s.now()
	if err := s.store.Listings.SetStatus(ctx, l.ID, models.ListingDeleted, "", now); err != nil {
		return nil, fmt.Errorf("mark listing %s deleted: %w", l.ID, err)
	}

	keys := make([]string, 0, len(l.Images))
	for _, img := range l.Images {
		if img.StorageKey != "" {
			keys = append(keys, img.StorageKey)
		}
	}
	job := &models.CascadeJob{
		Listing:     l.ID,
		Author:      l.Author,
		Category:    l.Category,
		StorageKeys: keys,
		Completed:   []models.CascadeStep{},
		Status:      models.CascadePending,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if err := s.store.Cascades.Create(ctx, job); err != nil {
		return nil, fmt.Errorf("record cascade for listing %s: %w", l.ID, err)
	}

	if err := s.Run(ctx, job.ID); err != nil {
		s.logger.Warn("Listing cascade incomplete, scheduling retry",
			zap.String("listing_id", l.ID.String()), zap.String("job_id", job.ID.String()), zap.Error(err))
		if s.scheduler != nil {
			if err := s.scheduler.ScheduleCascade(ctx, job.ID); err != nil {
				s.logger.Error("Failed to schedule cascade retry", zap.String("job_id", job.ID.String()), zap.Error(err))
			}
		}
	}
	if reloaded, err := s.store.Cascades.FindByID(ctx, job.ID); err == nil {
		job = reloaded
	}
	return job, nil
}

func (s *cascadeService) Run(ctx context.Context, jobID utils.SixID) error {
	job, err := s.store.Cascades.FindByID(ctx, jobID)
	if err != nil {
		return err
	}
	if job.Status == models.CascadeDone {
		return nil
	}

	for _, step := range models.CascadeSteps {
		if job.Done(step) {
			continue
		}
		if err := s.runStep(ctx, job, step); err != nil {
			job.Attempts++
			job.LastError = fmt.Sprintf("%s: %v", step, err)
			job.UpdatedAt = s.now()
			if uerr := s.store.Cascades.Update(ctx, job); uerr != nil {
				s.logger.Error("Failed to record cascade failure", zap.String("job_id", job.ID.String()), zap.Error(uerr))
			}
			return fmt.Errorf("cascade step %s for listing %s: %w", step, job.Listing, err)
		}
		job.Completed = append(job.Completed, step)
		job.UpdatedAt = s.now()
		if err := s.store.Cascades.Update(ctx, job); err != nil {
			return fmt.Errorf("record cascade step %s: %w", step, err)
		}
	}

	job.Status = models.CascadeDone
	job.LastError = ""
	job.UpdatedAt = s.now()
	if err := s.store.Cascades.Update(ctx, job); err != nil {
		return err
	}

	err = s.publisher.Publish(ctx, events.SubjectListingDeleted, events.ListingEvent{
		ListingID:  job.Listing.String(),
		AuthorID:   job.Author.String(),
		CategoryID: job.Category.String(),
		Status:     string(models.ListingDeleted),
		At:         s.now(),
	})
	if err != nil {
		s.logger.Warn("Failed to publish listing deletion", zap.String("listing_id", job.Listing.String()), zap.Error(err))
	}
	s.logger.Info("Listing cascade completed", zap.String("listing_id", job.Listing.String()), zap.Int("attempts", job.Attempts+1))
	return nil
}

// ignoreMissing treats an already removed target as a completed step.
func ignoreMissing(err error) error {
	if errors.Is(err, repository.ErrNotFound) {
		return nil
	}
	return err
}

func (s *cascadeService) runStep(ctx context.Context, job *models.CascadeJob, step models.CascadeStep) error {
	switch step {
	case models.StepReleaseImages:
		for _, key := range job.StorageKeys {
			if err := s.objects.Delete(ctx, key); err != nil {
				return err
			}
		}
		return nil
	case models.StepDetachAuthor:
		return ignoreMissing(s.store.Users.RemoveListing(ctx, job.Author, job.Listing))
	case models.StepStripFavorites:
		_, err := s.store.Users.StripFavorite(ctx, job.Listing)
		return err
	case models.StepDeleteListing:
		return ignoreMissing(s.store.Listings.Delete(ctx, job.Listing))
	case models.StepRecountCategory:
		return ignoreMissing(s.categories.UpdateListingCount(ctx, job.Category))
	}
	return fmt.Errorf("unknown cascade step %q", step)
}

func (s *cascadeService) Reconcile(ctx context.Context, staleAfter time.Duration, limit int) (int, error) {
	jobs, err := s.store.Cascades.ListPending(ctx, s.now().Add(-staleAfter), limit)
	if err != nil {
		return 0, err
	}
	resumed := 0
	for _, job := range jobs {
		if err := s.Run(ctx, job.ID); err != nil {
			s.logger.Warn("Cascade reconcile attempt failed", zap.String("job_id", job.ID.String()), zap.Error(err))
			continue
		}
		resumed++
	}
	if len(jobs) > 0 {
		s.logger.Info("Cascade reconcile finished", zap.Int("pending", len(jobs)), zap.Int("completed", resumed))
	}
	return resumed, nil
}
