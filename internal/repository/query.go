package repository

import (
	"time"

	"github.com/pr0br0/cyboard/internal/models"
	"github.com/pr0br0/cyboard/internal/utils"
)

type ListingSort string

const (
	SortNewest    ListingSort = "newest"
	SortOldest    ListingSort = "oldest"
	SortPriceAsc  ListingSort = "priceAsc"
	SortPriceDesc ListingSort = "priceDesc"
	SortPopular   ListingSort = "popular"
)

// ParseListingSort maps a query value to a sort, defaulting to newest.
func ParseListingSort(s string) ListingSort {
	switch ListingSort(s) {
	case SortOldest, SortPriceAsc, SortPriceDesc, SortPopular:
		return ListingSort(s)
	default:
		return SortNewest
	}
}

// DefaultNearRadius is used when a geo search gives no radius.
const DefaultNearRadius = 5000.0

// GeoNear restricts results to a circle around a point.
type GeoNear struct {
	Lat          float64
	Lng          float64
	RadiusMeters float64
}

// ListingQuery is the store-neutral listing filter. Zero fields do not filter.
type ListingQuery struct {
	IDs         []utils.SixID
	CategoryIDs []utils.SixID
	AuthorID    *utils.SixID
	Statuses    []models.ListingStatus
	// LiveAt restricts to active listings whose expiresAt is after it.
	LiveAt *time.Time
	// ExpiresBefore restricts to listings whose expiresAt is at or before it. Ignored with LiveAt.
	ExpiresBefore *time.Time
	PriceMin      *float64
	PriceMax      *float64
	Currency      string
	City          string
	District      string
	Near          *GeoNear
	// Text is matched case-insensitively against title and description in TextLangs
	// (every language when empty).
	Text      string
	TextLangs []string
	// MatchNone forces an empty result, e.g. for an unknown category.
	MatchNone bool
	Sort      ListingSort
	Skip      int
	Limit     int
}

// SearchLangs returns the languages text search runs against.
func (q ListingQuery) SearchLangs() []string {
	if len(q.TextLangs) == 0 {
		return models.Languages
	}
	return q.TextLangs
}
