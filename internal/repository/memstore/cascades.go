package memstore

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/pr0br0/cyboard/internal/models"
	"github.com/pr0br0/cyboard/internal/repository"
	"github.com/pr0br0/cyboard/internal/utils"
)

type Cascades struct {
	mu    sync.RWMutex
	items map[utils.SixID]*models.CascadeJob
}

func NewCascades() *Cascades {
	return &Cascades{items: make(map[utils.SixID]*models.CascadeJob)}
}

func (r *Cascades) Create(_ context.Context, j *models.CascadeJob) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	j.GenIDIfEmpty()
	if _, exists := r.items[j.ID]; exists {
		return fmt.Errorf("insert cascade job %s: %w", j.ID, repository.ErrDuplicate)
	}
	r.items[j.ID] = cloneCascade(j)
	return nil
}

func (r *Cascades) FindByID(_ context.Context, id utils.SixID) (*models.CascadeJob, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	j, ok := r.items[id]
	if !ok {
		return nil, fmt.Errorf("find cascade job %s: %w", id, repository.ErrNotFound)
	}
	return cloneCascade(j), nil
}

func (r *Cascades) Update(_ context.Context, j *models.CascadeJob) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.items[j.ID]; !ok {
		return fmt.Errorf("replace cascade job %s: %w", j.ID, repository.ErrNotFound)
	}
	r.items[j.ID] = cloneCascade(j)
	return nil
}

func (r *Cascades) ListPending(_ context.Context, olderThan time.Time, limit int) ([]*models.CascadeJob, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := []*models.CascadeJob{}
	for _, j := range r.items {
		if j.Status == models.CascadePending && j.UpdatedAt.Before(olderThan) {
			out = append(out, cloneCascade(j))
		}
	}
	sort.Slice(out, func(i, k int) bool { return out[i].UpdatedAt.Before(out[k].UpdatedAt) })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}
