package services

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"
	"unicode/utf8"

	"go.uber.org/zap"

	"github.com/pr0br0/cyboard/internal/cache"
	"github.com/pr0br0/cyboard/internal/events"
	"github.com/pr0br0/cyboard/internal/models"
	"github.com/pr0br0/cyboard/internal/repository"
	"github.com/pr0br0/cyboard/internal/storage"
	"github.com/pr0br0/cyboard/internal/utils"
)

// Category cache keys.
const (
	cacheKeyCategories    = "categories:all"
	cacheKeyCategoryTree  = "categories:tree"
	categorySearchLimit   = 10
	categoryNameMaxLength = 100
)

// categoryActiveKey holds the live listing count shown on a category detail.
func categoryActiveKey(id utils.SixID) string {
	return "category:" + id.String() + ":active"
}

func categoryChildrenKey(id utils.SixID) string {
	return "category:" + id.String() + ":children"
}

// CategoryDetail is a category with its direct children and live listing count.
type CategoryDetail struct {
	*models.Category
	Children       []*models.Category `json:"children"`
	ActiveListings int64              `json:"activeListings"`
}

type ICategoryService interface {
	Create(ctx context.Context, in models.CategoryInput) (*models.Category, error)
	Update(ctx context.Context, id utils.SixID, patch models.CategoryPatch) (*models.Category, error)
	// Move reparents a category and rewrites the ancestor chains of its subtree.
	Move(ctx context.Context, id utils.SixID, parent *utils.SixID) (*models.Category, error)
	Delete(ctx context.Context, id utils.SixID) error
	// Resolve finds a category by id, falling back to slug.
	Resolve(ctx context.Context, identifier string) (*models.Category, error)
	Get(ctx context.Context, identifier string) (*CategoryDetail, error)
	List(ctx context.Context, activeOnly bool) ([]*models.Category, error)
	Tree(ctx context.Context, activeOnly bool) ([]*models.CategoryNode, error)
	Children(ctx context.Context, id utils.SixID) ([]*models.Category, error)
	Search(ctx context.Context, text string, limit int) ([]*models.Category, error)
	Popular(ctx context.Context, limit int) ([]models.CategoryCount, error)
	Reorder(ctx context.Context, orders []models.CategoryOrder) error
	// SubtreeIDs returns the category and all its descendants. found is false for an unknown identifier.
	SubtreeIDs(ctx context.Context, identifier string) (ids []utils.SixID, found bool, err error)
	UpdateListingCount(ctx context.Context, id utils.SixID) error
	UpdateAllListingCounts(ctx context.Context) (int, error)
}

type categoryService struct {
	categories repository.Categories
	listings   repository.Listings
	cache      cache.Store
	cacheTTL   time.Duration
	objects    storage.ObjectStore
	publisher  events.Publisher
	logger     *zap.Logger
	now        func() time.Time
}

func NewCategoryService(categories repository.Categories, listings repository.Listings, c cache.Store, cacheTTL time.Duration,
	objects storage.ObjectStore, publisher events.Publisher, logger *zap.Logger) ICategoryService {
	return &categoryService{
		categories: categories,
		listings:   listings,
		cache:      c,
		cacheTTL:   cacheTTL,
		objects:    objects,
		publisher:  publisher,
		logger:     logger,
		now:        func() time.Time { return time.Now().UTC() },
	}
}

// cached reads key into dest, filling it from load on a miss. Cache failures only cost a reload.
func cached[T any](ctx context.Context, s *categoryService, key string, load func() (T, error)) (T, error) {
	var v T
	if ok, err := s.cache.Get(ctx, key, &v); err == nil && ok {
		return v, nil
	} else if err != nil {
		s.logger.Warn("Category cache read failed", zap.String("key", key), zap.Error(err))
	}
	v, err := load()
	if err != nil {
		return v, err
	}
	if err := s.cache.Set(ctx, key, v, s.cacheTTL); err != nil {
		s.logger.Warn("Category cache write failed", zap.String("key", key), zap.Error(err))
	}
	return v, nil
}

// invalidate drops every cache entry a write to c can affect.
func (s *categoryService) invalidate(ctx context.Context, c *models.Category, parents ...*utils.SixID) {
	keys := []string{cacheKeyCategories, cacheKeyCategoryTree, categoryActiveKey(c.ID), categoryChildrenKey(c.ID)}
	for _, p := range parents {
		if p != nil {
			keys = append(keys, categoryChildrenKey(*p))
		}
	}
	if err := s.cache.Delete(ctx, keys...); err != nil {
		s.logger.Warn("Category cache invalidation failed", zap.String("category_id", c.ID.String()), zap.Error(err))
	}
}

func (s *categoryService) publish(ctx context.Context, id utils.SixID, action string) {
	err := s.publisher.Publish(ctx, events.SubjectCategoryChanged, events.CategoryEvent{
		CategoryID: id.String(),
		Action:     action,
		At:         s.now(),
	})
	if err != nil {
		s.logger.Warn("Failed to publish category event", zap.String("category_id", id.String()), zap.Error(err))
	}
}

func validateCategoryName(v *validator, name models.Localized) {
	v.check(strings.TrimSpace(name.En) != "", "name.en", "English name is required")
	for lang, value := range name.Values() {
		v.check(utf8.RuneCountInString(value) <= categoryNameMaxLength, "name."+lang,
			fmt.Sprintf("Name must be at most %d characters", categoryNameMaxLength))
	}
}

func (s *categoryService) loadParent(ctx context.Context, id utils.SixID) (*models.Category, error) {
	parent, err := s.categories.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, NewValidationError("parent", "Parent category not found")
		}
		return nil, err
	}
	return parent, nil
}

// ensureSlugFree fails with ErrSlugExists when another category owns slug.
func (s *categoryService) ensureSlugFree(ctx context.Context, slug string, self utils.SixID) error {
	other, err := s.categories.FindBySlug(ctx, slug)
	switch {
	case err == nil && other.ID != self:
		return ErrSlugExists
	case err != nil && !errors.Is(err, repository.ErrNotFound):
		return err
	}
	return nil
}

func (s *categoryService) Create(ctx context.Context, in models.CategoryInput) (*models.Category, error) {
	var v validator
	validateCategoryName(&v, in.Name)
	slug := in.Slug
	if slug == "" {
		slug = in.Name.En
	}
	slug = utils.Slugify(slug)
	if strings.TrimSpace(in.Name.En) != "" {
		v.check(slug != "", "slug", "Slug cannot be empty")
	}
	if err := v.err(); err != nil {
		return nil, err
	}

	now := s.now()
	c := &models.Category{
		Base:        models.NewBase(),
		Name:        in.Name,
		Description: in.Description,
		Slug:        slug,
		Ancestors:   []models.CategoryAncestor{},
		Order:       in.Order,
		IsActive:    in.IsActive == nil || *in.IsActive,
		Image:       in.Image,
		ImageKey:    in.ImageKey,
		Metadata:    in.Metadata,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if in.Parent != nil {
		parent, err := s.loadParent(ctx, *in.Parent)
		if err != nil {
			return nil, err
		}
		if parent.ID == c.ID || parent.HasAncestor(c.ID) {
			return nil, ErrCategoryCycle
		}
		pid := parent.ID
		c.Parent = &pid
		c.Ancestors = parent.Chain()
	}

	if err := s.ensureSlugFree(ctx, slug, c.ID); err != nil {
		return nil, err
	}
	if err := s.categories.Create(ctx, c); err != nil {
		if errors.Is(err, repository.ErrDuplicate) {
			return nil, ErrSlugExists
		}
		return nil, fmt.Errorf("create category: %w", err)
	}

	s.invalidate(ctx, c, c.Parent)
	s.publish(ctx, c.ID, "create")
	s.logger.Info("Category created", zap.String("category_id", c.ID.String()), zap.String("slug", c.Slug))
	return c, nil
}

func (s *categoryService) Update(ctx context.Context, id utils.SixID, patch models.CategoryPatch) (*models.Category, error) {
	c, err := s.categories.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	oldSlug := c.Slug
	oldName := c.Name
	oldParent := c.Parent

	var v validator
	if patch.Name != nil {
		validateCategoryName(&v, *patch.Name)
		c.Name = *patch.Name
	}
	switch {
	case patch.Slug != nil:
		c.Slug = utils.Slugify(*patch.Slug)
	case patch.Name != nil && patch.Name.En != oldName.En:
		c.Slug = utils.Slugify(patch.Name.En)
	}
	v.check(c.Slug != "", "slug", "Slug cannot be empty")
	if err := v.err(); err != nil {
		return nil, err
	}
	if patch.Description != nil {
		c.Description = *patch.Description
	}
	if patch.Order != nil {
		c.Order = *patch.Order
	}
	if patch.IsActive != nil {
		c.IsActive = *patch.IsActive
	}
	if patch.Image != nil {
		c.Image = *patch.Image
	}
	if patch.ImageKey != nil {
		c.ImageKey = *patch.ImageKey
	}
	if patch.Metadata != nil {
		c.Metadata = *patch.Metadata
	}

	moved := false
	switch {
	case patch.ClearParent:
		if c.Parent != nil {
			c.Parent = nil
			c.Ancestors = []models.CategoryAncestor{}
			moved = true
		}
	case patch.Parent != nil && (c.Parent == nil || *c.Parent != *patch.Parent):
		parent, err := s.validateNewParent(ctx, c.ID, *patch.Parent)
		if err != nil {
			return nil, err
		}
		pid := parent.ID
		c.Parent = &pid
		c.Ancestors = parent.Chain()
		moved = true
	}

	if c.Slug != oldSlug {
		if err := s.ensureSlugFree(ctx, c.Slug, c.ID); err != nil {
			return nil, err
		}
	}
	c.UpdatedAt = s.now()
	if err := s.categories.Update(ctx, c); err != nil {
		if errors.Is(err, repository.ErrDuplicate) {
			return nil, ErrSlugExists
		}
		return nil, fmt.Errorf("update category: %w", err)
	}

	if moved || c.Slug != oldSlug || c.Name != oldName {
		if err := s.rewriteDescendants(ctx, c); err != nil {
			return nil, err
		}
	}

	s.invalidate(ctx, c, oldParent, c.Parent)
	s.publish(ctx, c.ID, "update")
	return c, nil
}

// validateNewParent rejects self-parenting and moving a category under its own subtree.
func (s *categoryService) validateNewParent(ctx context.Context, id, parentID utils.SixID) (*models.Category, error) {
	if parentID == id {
		return nil, ErrCategoryCycle
	}
	parent, err := s.loadParent(ctx, parentID)
	if err != nil {
		return nil, err
	}
	if parent.HasAncestor(id) {
		return nil, ErrCategoryCycle
	}
	return parent, nil
}

// rewriteDescendants rebuilds every descendant chain below c from c's current chain.
func (s *categoryService) rewriteDescendants(ctx context.Context, c *models.Category) error {
	descendants, err := s.categories.Descendants(ctx, c.ID)
	if err != nil {
		return fmt.Errorf("load descendants of %s: %w", c.ID, err)
	}
	prefix := c.Chain()
	for _, d := range descendants {
		idx := -1
		for i, a := range d.Ancestors {
			if a.ID == c.ID {
				idx = i
				break
			}
		}
		if idx < 0 {
			continue
		}
		chain := make([]models.CategoryAncestor, 0, len(prefix)+len(d.Ancestors)-idx-1)
		chain = append(chain, prefix...)
		chain = append(chain, d.Ancestors[idx+1:]...)
		if err := s.categories.SetAncestors(ctx, d.ID, chain); err != nil {
			return fmt.Errorf("rewrite ancestors of %s: %w", d.ID, err)
		}
		s.invalidate(ctx, d)
	}
	return nil
}

func (s *categoryService) Move(ctx context.Context, id utils.SixID, parent *utils.SixID) (*models.Category, error) {
	if parent == nil {
		return s.Update(ctx, id, models.CategoryPatch{ClearParent: true})
	}
	return s.Update(ctx, id, models.CategoryPatch{Parent: parent})
}

func (s *categoryService) Delete(ctx context.Context, id utils.SixID) error {
	c, err := s.categories.FindByID(ctx, id)
	if err != nil {
		return err
	}
	children, err := s.categories.CountChildren(ctx, id)
	if err != nil {
		return err
	}
	if children > 0 {
		return ErrCategoryHasChildren
	}
	active, err := s.listings.Count(ctx, repository.ListingQuery{
		CategoryIDs: []utils.SixID{id},
		Statuses:    []models.ListingStatus{models.ListingActive},
	})
	if err != nil {
		return err
	}
	if active > 0 {
		return ErrCategoryHasActiveListings
	}

	if err := s.categories.Delete(ctx, id); err != nil {
		return err
	}
	if c.ImageKey != "" {
		if err := s.objects.Delete(ctx, c.ImageKey); err != nil {
			s.logger.Warn("Failed to release category image", zap.String("category_id", id.String()), zap.Error(err))
		}
	}
	s.invalidate(ctx, c, c.Parent)
	s.publish(ctx, id, "delete")
	s.logger.Info("Category deleted", zap.String("category_id", id.String()))
	return nil
}

func (s *categoryService) Resolve(ctx context.Context, identifier string) (*models.Category, error) {
	if id, err := utils.ParseSixID(identifier); err == nil {
		c, err := s.categories.FindByID(ctx, id)
		if err == nil {
			return c, nil
		}
		if !errors.Is(err, repository.ErrNotFound) {
			return nil, err
		}
	}
	return s.categories.FindBySlug(ctx, strings.ToLower(identifier))
}

// Get always resolves the identifier against the store; only derived data is cached, keyed by id.
func (s *categoryService) Get(ctx context.Context, identifier string) (*CategoryDetail, error) {
	c, err := s.Resolve(ctx, identifier)
	if err != nil {
		return nil, err
	}
	children, err := s.Children(ctx, c.ID)
	if err != nil {
		return nil, err
	}
	active, err := cached(ctx, s, categoryActiveKey(c.ID), func() (int64, error) {
		now := s.now()
		return s.listings.Count(ctx, repository.ListingQuery{CategoryIDs: []utils.SixID{c.ID}, LiveAt: &now})
	})
	if err != nil {
		return nil, err
	}
	return &CategoryDetail{Category: c, Children: children, ActiveListings: active}, nil
}

func (s *categoryService) all(ctx context.Context) ([]*models.Category, error) {
	return cached(ctx, s, cacheKeyCategories, func() ([]*models.Category, error) {
		return s.categories.List(ctx, repository.CategoryFilter{})
	})
}

func (s *categoryService) List(ctx context.Context, activeOnly bool) ([]*models.Category, error) {
	all, err := s.all(ctx)
	if err != nil {
		return nil, err
	}
	if !activeOnly {
		return all, nil
	}
	out := make([]*models.Category, 0, len(all))
	for _, c := range all {
		if c.IsActive {
			out = append(out, c)
		}
	}
	return out, nil
}

// BuildTree nests an ordered category list. Categories whose parent is absent from the list are dropped.
func BuildTree(categories []*models.Category) []*models.CategoryNode {
	nodes := make(map[utils.SixID]*models.CategoryNode, len(categories))
	for _, c := range categories {
		nodes[c.ID] = &models.CategoryNode{Category: c, Children: []*models.CategoryNode{}}
	}
	roots := []*models.CategoryNode{}
	for _, c := range categories {
		node := nodes[c.ID]
		if c.Parent == nil {
			roots = append(roots, node)
			continue
		}
		if parent, ok := nodes[*c.Parent]; ok {
			parent.Children = append(parent.Children, node)
		}
	}
	return roots
}

func (s *categoryService) Tree(ctx context.Context, activeOnly bool) ([]*models.CategoryNode, error) {
	build := func() ([]*models.CategoryNode, error) {
		list, err := s.List(ctx, activeOnly)
		if err != nil {
			return nil, err
		}
		return BuildTree(list), nil
	}
	if !activeOnly {
		return build()
	}
	return cached(ctx, s, cacheKeyCategoryTree, build)
}

func (s *categoryService) Children(ctx context.Context, id utils.SixID) ([]*models.Category, error) {
	return cached(ctx, s, categoryChildrenKey(id), func() ([]*models.Category, error) {
		return s.categories.List(ctx, repository.CategoryFilter{Parent: &id, ActiveOnly: true})
	})
}

func (s *categoryService) Search(ctx context.Context, text string, limit int) ([]*models.Category, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return []*models.Category{}, nil
	}
	if limit <= 0 || limit > categorySearchLimit {
		limit = categorySearchLimit
	}
	return s.categories.Search(ctx, text, limit)
}

func (s *categoryService) Popular(ctx context.Context, limit int) ([]models.CategoryCount, error) {
	list, err := s.List(ctx, true)
	if err != nil {
		return nil, err
	}
	sorted := append([]*models.Category(nil), list...)
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].ListingCount > sorted[j].ListingCount })
	if limit > 0 && len(sorted) > limit {
		sorted = sorted[:limit]
	}
	out := make([]models.CategoryCount, len(sorted))
	for i, c := range sorted {
		out[i] = models.CategoryCount{ID: c.ID, Name: c.Name, Slug: c.Slug, ListingCount: c.ListingCount}
	}
	return out, nil
}

func (s *categoryService) Reorder(ctx context.Context, orders []models.CategoryOrder) error {
	if len(orders) == 0 {
		return NewValidationError("categories", "At least one category is required")
	}
	for _, o := range orders {
		c, err := s.categories.FindByID(ctx, o.ID)
		if err != nil {
			return err
		}
		if err := s.categories.SetOrder(ctx, o.ID, o.Order); err != nil {
			return err
		}
		s.invalidate(ctx, c, c.Parent)
	}
	return nil
}

func (s *categoryService) SubtreeIDs(ctx context.Context, identifier string) ([]utils.SixID, bool, error) {
	c, err := s.Resolve(ctx, identifier)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, false, nil
		}
		return nil, false, err
	}
	descendants, err := s.categories.Descendants(ctx, c.ID)
	if err != nil {
		return nil, false, err
	}
	ids := make([]utils.SixID, 0, len(descendants)+1)
	ids = append(ids, c.ID)
	for _, d := range descendants {
		ids = append(ids, d.ID)
	}
	return ids, true, nil
}

func (s *categoryService) UpdateListingCount(ctx context.Context, id utils.SixID) error {
	now := s.now()
	active, err := s.listings.Count(ctx, repository.ListingQuery{CategoryIDs: []utils.SixID{id}, LiveAt: &now})
	if err != nil {
		return err
	}
	total, err := s.listings.Count(ctx, repository.ListingQuery{CategoryIDs: []utils.SixID{id}})
	if err != nil {
		return err
	}
	if err := s.categories.SetCounts(ctx, id, int(active), int(total)); err != nil {
		return err
	}
	// counts are part of cached list, tree and detail payloads
	if err := s.cache.Delete(ctx, cacheKeyCategories, cacheKeyCategoryTree, categoryActiveKey(id)); err != nil {
		s.logger.Warn("Category cache invalidation failed", zap.Error(err))
	}
	return nil
}

func (s *categoryService) UpdateAllListingCounts(ctx context.Context) (int, error) {
	list, err := s.categories.List(ctx, repository.CategoryFilter{})
	if err != nil {
		return 0, err
	}
	for _, c := range list {
		if err := s.UpdateListingCount(ctx, c.ID); err != nil {
			return 0, fmt.Errorf("recount category %s: %w", c.ID, err)
		}
	}
	s.logger.Info("Category listing counts updated", zap.Int("categories", len(list)))
	return len(list), nil
}
