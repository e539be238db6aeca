package memstore

import (
	"bytes"
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/pr0br0/cyboard/internal/models"
	"github.com/pr0br0/cyboard/internal/repository"
	"github.com/pr0br0/cyboard/internal/utils"
)

type Categories struct {
	mu    sync.RWMutex
	items map[utils.SixID]*models.Category
}

func NewCategories() *Categories {
	return &Categories{items: make(map[utils.SixID]*models.Category)}
}

func (r *Categories) slugTaken(slug string, except utils.SixID) bool {
	for id, c := range r.items {
		if id != except && c.Slug == slug {
			return true
		}
	}
	return false
}

func (r *Categories) Create(_ context.Context, c *models.Category) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	c.GenIDIfEmpty()
	if _, exists := r.items[c.ID]; exists || r.slugTaken(c.Slug, c.ID) {
		return fmt.Errorf("insert category %s: %w", c.Slug, repository.ErrDuplicate)
	}
	r.items[c.ID] = cloneCategory(c)
	return nil
}

func (r *Categories) FindByID(_ context.Context, id utils.SixID) (*models.Category, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	c, ok := r.items[id]
	if !ok {
		return nil, fmt.Errorf("find category %s: %w", id, repository.ErrNotFound)
	}
	return cloneCategory(c), nil
}

func (r *Categories) FindBySlug(_ context.Context, slug string) (*models.Category, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, c := range r.items {
		if c.Slug == slug {
			return cloneCategory(c), nil
		}
	}
	return nil, fmt.Errorf("find category %s: %w", slug, repository.ErrNotFound)
}

// collect returns matching categories in order, creation time, id order. Caller holds the lock.
func (r *Categories) collect(match func(*models.Category) bool) []*models.Category {
	out := []*models.Category{}
	for _, c := range r.items {
		if match(c) {
			out = append(out, cloneCategory(c))
		}
	}
	sort.Slice(out, func(i, j int) bool {
		a, b := out[i], out[j]
		if a.Order != b.Order {
			return a.Order < b.Order
		}
		if !a.CreatedAt.Equal(b.CreatedAt) {
			return a.CreatedAt.Before(b.CreatedAt)
		}
		return bytes.Compare(a.ID[:], b.ID[:]) < 0
	})
	return out
}

func (r *Categories) List(_ context.Context, f repository.CategoryFilter) ([]*models.Category, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.collect(func(c *models.Category) bool {
		if f.ActiveOnly && !c.IsActive {
			return false
		}
		switch {
		case f.Parent != nil:
			return c.Parent != nil && *c.Parent == *f.Parent
		case f.RootOnly:
			return c.Parent == nil
		}
		return true
	}), nil
}

func (r *Categories) Update(_ context.Context, c *models.Category) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.items[c.ID]; !ok {
		return fmt.Errorf("replace category %s: %w", c.ID, repository.ErrNotFound)
	}
	if r.slugTaken(c.Slug, c.ID) {
		return fmt.Errorf("replace category %s: %w", c.ID, repository.ErrDuplicate)
	}
	r.items[c.ID] = cloneCategory(c)
	return nil
}

func (r *Categories) Delete(_ context.Context, id utils.SixID) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.items[id]; !ok {
		return fmt.Errorf("delete category %s: %w", id, repository.ErrNotFound)
	}
	delete(r.items, id)
	return nil
}

func (r *Categories) Descendants(_ context.Context, id utils.SixID) ([]*models.Category, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.collect(func(c *models.Category) bool { return c.HasAncestor(id) }), nil
}

func (r *Categories) CountChildren(_ context.Context, id utils.SixID) (int64, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var n int64
	for _, c := range r.items {
		if c.Parent != nil && *c.Parent == id {
			n++
		}
	}
	return n, nil
}

func (r *Categories) mutate(id utils.SixID, fn func(*models.Category)) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	c, ok := r.items[id]
	if !ok {
		return fmt.Errorf("update category %s: %w", id, repository.ErrNotFound)
	}
	fn(c)
	return nil
}

func (r *Categories) SetAncestors(_ context.Context, id utils.SixID, ancestors []models.CategoryAncestor) error {
	return r.mutate(id, func(c *models.Category) {
		c.Ancestors = append([]models.CategoryAncestor{}, ancestors...)
	})
}

func (r *Categories) SetCounts(_ context.Context, id utils.SixID, active, total int) error {
	return r.mutate(id, func(c *models.Category) {
		c.ListingCount = active
		c.TotalListings = total
	})
}

func (r *Categories) SetOrder(_ context.Context, id utils.SixID, order int) error {
	return r.mutate(id, func(c *models.Category) { c.Order = order })
}

func (r *Categories) Search(_ context.Context, text string, limit int) ([]*models.Category, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	needle := strings.ToLower(text)
	out := r.collect(func(c *models.Category) bool {
		for _, name := range c.Name.Values() {
			if strings.Contains(strings.ToLower(name), needle) {
				return true
			}
		}
		return false
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}
