package memstore

import (
	"bytes"
	"context"
	"fmt"
	"math"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/pr0br0/cyboard/internal/models"
	"github.com/pr0br0/cyboard/internal/repository"
	"github.com/pr0br0/cyboard/internal/utils"
)

type Listings struct {
	mu    sync.RWMutex
	items map[utils.SixID]*models.Listing
}

func NewListings() *Listings {
	return &Listings{items: make(map[utils.SixID]*models.Listing)}
}

func containsID(ids []utils.SixID, id utils.SixID) bool {
	for _, v := range ids {
		if v == id {
			return true
		}
	}
	return false
}

const earthRadiusMeters = 6378100.0

// distanceMeters is the haversine distance between two lat/lng points.
func distanceMeters(lat1, lng1, lat2, lng2 float64) float64 {
	rad := math.Pi / 180
	dLat := (lat2 - lat1) * rad
	dLng := (lng2 - lng1) * rad
	a := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(lat1*rad)*math.Cos(lat2*rad)*math.Sin(dLng/2)*math.Sin(dLng/2)
	return 2 * earthRadiusMeters * math.Asin(math.Sqrt(a))
}

// Matches applies q to a single listing with the same semantics as the Mongo filter.
func Matches(q repository.ListingQuery, l *models.Listing) bool {
	if q.MatchNone {
		return false
	}
	if len(q.IDs) > 0 && !containsID(q.IDs, l.ID) {
		return false
	}
	if len(q.CategoryIDs) > 0 && !containsID(q.CategoryIDs, l.Category) {
		return false
	}
	if q.AuthorID != nil && l.Author != *q.AuthorID {
		return false
	}
	if q.LiveAt != nil {
		if !l.IsLive(*q.LiveAt) {
			return false
		}
	} else if len(q.Statuses) > 0 {
		found := false
		for _, s := range q.Statuses {
			if s == l.Status {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	if q.LiveAt == nil && q.ExpiresBefore != nil && l.ExpiresAt.After(*q.ExpiresBefore) {
		return false
	}
	if q.PriceMin != nil && l.Price.Amount < *q.PriceMin {
		return false
	}
	if q.PriceMax != nil && l.Price.Amount > *q.PriceMax {
		return false
	}
	if q.Currency != "" && l.Price.Currency != q.Currency {
		return false
	}
	if q.Near != nil {
		p := l.Location.Point
		if p == nil {
			return false
		}
		radius := q.Near.RadiusMeters
		if radius <= 0 {
			radius = repository.DefaultNearRadius
		}
		if distanceMeters(q.Near.Lat, q.Near.Lng, p.Coordinates[1], p.Coordinates[0]) > radius {
			return false
		}
	} else {
		if q.City != "" && l.Location.City != q.City {
			return false
		}
		if q.District != "" && l.Location.District != q.District {
			return false
		}
	}
	if q.Text != "" {
		needle := strings.ToLower(q.Text)
		found := false
		for _, lang := range q.SearchLangs() {
			if containsFold(localizedValue(l.Title, lang), needle) || containsFold(localizedValue(l.Description, lang), needle) {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	return true
}

// localizedValue returns the exact translation without the English fallback of Localized.Get.
func localizedValue(l models.Localized, lang string) string {
	switch lang {
	case models.LangRu:
		return l.Ru
	case models.LangEl:
		return l.El
	default:
		return l.En
	}
}

func containsFold(haystack, lowerNeedle string) bool {
	return haystack != "" && strings.Contains(strings.ToLower(haystack), lowerNeedle)
}

func sortListings(out []*models.Listing, s repository.ListingSort) {
	sort.SliceStable(out, func(i, j int) bool {
		a, b := out[i], out[j]
		switch s {
		case repository.SortOldest:
			if !a.CreatedAt.Equal(b.CreatedAt) {
				return a.CreatedAt.Before(b.CreatedAt)
			}
		case repository.SortPriceAsc:
			if a.Price.Amount != b.Price.Amount {
				return a.Price.Amount < b.Price.Amount
			}
		case repository.SortPriceDesc:
			if a.Price.Amount != b.Price.Amount {
				return a.Price.Amount > b.Price.Amount
			}
		case repository.SortPopular:
			if a.Views.Total != b.Views.Total {
				return a.Views.Total > b.Views.Total
			}
		default:
			if !a.CreatedAt.Equal(b.CreatedAt) {
				return a.CreatedAt.After(b.CreatedAt)
			}
		}
		return bytes.Compare(a.ID[:], b.ID[:]) < 0
	})
}

func (r *Listings) Create(_ context.Context, l *models.Listing) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	l.GenIDIfEmpty()
	if _, exists := r.items[l.ID]; exists {
		return fmt.Errorf("insert listing %s: %w", l.ID, repository.ErrDuplicate)
	}
	for _, other := range r.items {
		if other.Slug == l.Slug {
			return fmt.Errorf("insert listing %s: %w", l.Slug, repository.ErrDuplicate)
		}
	}
	r.items[l.ID] = cloneListing(l)
	return nil
}

func (r *Listings) FindByID(_ context.Context, id utils.SixID) (*models.Listing, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	l, ok := r.items[id]
	if !ok {
		return nil, fmt.Errorf("find listing %s: %w", id, repository.ErrNotFound)
	}
	return cloneListing(l), nil
}

func (r *Listings) Update(_ context.Context, l *models.Listing) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.items[l.ID]; !ok {
		return fmt.Errorf("replace listing %s: %w", l.ID, repository.ErrNotFound)
	}
	r.items[l.ID] = cloneListing(l)
	return nil
}

func (r *Listings) Delete(_ context.Context, id utils.SixID) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.items[id]; !ok {
		return fmt.Errorf("delete listing %s: %w", id, repository.ErrNotFound)
	}
	delete(r.items, id)
	return nil
}

func (r *Listings) matching(q repository.ListingQuery) []*models.Listing {
	out := []*models.Listing{}
	for _, l := range r.items {
		if Matches(q, l) {
			out = append(out, cloneListing(l))
		}
	}
	return out
}

func (r *Listings) Find(_ context.Context, q repository.ListingQuery) ([]*models.Listing, int64, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	all := r.matching(q)
	total := int64(len(all))
	sortListings(all, q.Sort)

	if q.Skip < 0 || q.Skip >= len(all) {
		return []*models.Listing{}, total, nil
	}
	all = all[q.Skip:]
	if q.Limit > 0 && len(all) > q.Limit {
		all = all[:q.Limit]
	}
	return all, total, nil
}

func (r *Listings) Count(_ context.Context, q repository.ListingQuery) (int64, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var n int64
	for _, l := range r.items {
		if Matches(q, l) {
			n++
		}
	}
	return n, nil
}

func (r *Listings) mutate(id utils.SixID, fn func(*models.Listing)) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	l, ok := r.items[id]
	if !ok {
		return fmt.Errorf("update listing %s: %w", id, repository.ErrNotFound)
	}
	fn(l)
	return nil
}

func (r *Listings) IncrementViews(_ context.Context, id utils.SixID) error {
	return r.mutate(id, func(l *models.Listing) { l.Views.Total++ })
}

func (r *Listings) AddReport(_ context.Context, id utils.SixID, report models.Report) error {
	return r.mutate(id, func(l *models.Listing) { l.Reports = append(l.Reports, report) })
}

func (r *Listings) SetStatus(_ context.Context, id utils.SixID, status models.ListingStatus, note string, at time.Time) error {
	return r.mutate(id, func(l *models.Listing) {
		l.Status = status
		l.StatusNote = note
		l.UpdatedAt = at
	})
}

func (r *Listings) SuggestTitles(_ context.Context, text, lang string, now time.Time, limit int) ([]string, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	needle := strings.ToLower(text)
	counts := map[string]int{}
	for _, l := range r.items {
		if !l.IsLive(now) {
			continue
		}
		title := localizedValue(l.Title, lang)
		if containsFold(title, needle) {
			counts[title]++
		}
	}
	out := make([]string, 0, len(counts))
	for title := range counts {
		out = append(out, title)
	}
	sort.Slice(out, func(i, j int) bool {
		if counts[out[i]] != counts[out[j]] {
			return counts[out[i]] > counts[out[j]]
		}
		return out[i] < out[j]
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (r *Listings) PriceStats(_ context.Context, now time.Time) (models.PriceStats, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var stats models.PriceStats
	var sum float64
	for _, l := range r.items {
		if !l.IsLive(now) {
			continue
		}
		amount := l.Price.Amount
		if stats.Total == 0 || amount < stats.MinPrice {
			stats.MinPrice = amount
		}
		if stats.Total == 0 || amount > stats.MaxPrice {
			stats.MaxPrice = amount
		}
		sum += amount
		stats.Total++
	}
	if stats.Total > 0 {
		stats.AvgPrice = sum / float64(stats.Total)
	}
	return stats, nil
}
