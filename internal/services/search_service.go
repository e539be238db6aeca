package services

import (
	"context"
	"net/url"
	"strconv"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/pr0br0/cyboard/internal/models"
	"github.com/pr0br0/cyboard/internal/repository"
	"github.com/pr0br0/cyboard/internal/utils"
)

const (
	SuggestMinLen     = 2
	SuggestLimit      = 10
	PopularLimit      = 10
	maxSearchRadiusKm = 500
)

// SearchParams is the flat query-parameter set accepted by the listing index and search.
type SearchParams struct {
	Category string
	PriceMin *float64
	PriceMax *float64
	Currency string
	City     string
	District string
	Lat      *float64
	Lng      *float64
	// Radius is in meters; DefaultNearRadius applies when unset.
	Radius *float64
	Text   string
	// Lang restricts text search to one language. Empty searches every language.
	Lang   string
	Status string
	Sort   string
	Page   int
	Limit  int
	// AllStatuses lifts the live-only restriction; set by the service from the caller's role.
	AllStatuses bool
}

func parseFloat(v *validator, values url.Values, key string) *float64 {
	raw := strings.TrimSpace(values.Get(key))
	if raw == "" {
		return nil
	}
	f, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		v.add(key, "Must be a number")
		return nil
	}
	return &f
}

func parseInt(v *validator, values url.Values, key string) int {
	raw := strings.TrimSpace(values.Get(key))
	if raw == "" {
		return 0
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		v.add(key, "Must be an integer")
		return 0
	}
	return n
}

func firstOf(values url.Values, keys ...string) string {
	for _, k := range keys {
		if v := strings.TrimSpace(values.Get(k)); v != "" {
			return v
		}
	}
	return ""
}

// ParseSearchParams reads and validates listing search parameters.
func ParseSearchParams(values url.Values) (SearchParams, error) {
	var v validator
	p := SearchParams{
		Category: firstOf(values, "category"),
		Currency: strings.ToUpper(firstOf(values, "currency")),
		City:     firstOf(values, "city"),
		District: firstOf(values, "district"),
		Text:     firstOf(values, "search", "q", "query"),
		Lang:     firstOf(values, "lang"),
		Status:   firstOf(values, "status"),
		Sort:     firstOf(values, "sort"),
	}
	p.PriceMin = parseFloat(&v, values, "priceMin")
	p.PriceMax = parseFloat(&v, values, "priceMax")
	p.Lat = parseFloat(&v, values, "lat")
	p.Lng = parseFloat(&v, values, "lng")
	p.Radius = parseFloat(&v, values, "radius")
	p.Page = parseInt(&v, values, "page")
	p.Limit = parseInt(&v, values, "limit")

	if p.PriceMin != nil {
		v.check(*p.PriceMin >= 0, "priceMin", "Must be at least 0")
	}
	if p.PriceMax != nil {
		v.check(*p.PriceMax >= 0, "priceMax", "Must be at least 0")
	}
	if p.PriceMin != nil && p.PriceMax != nil {
		v.check(*p.PriceMin <= *p.PriceMax, "priceMax", "Must not be less than priceMin")
	}
	if p.Currency != "" {
		v.check(models.IsCurrency(p.Currency), "currency", "Unsupported currency")
	}
	if (p.Lat == nil) != (p.Lng == nil) {
		v.add("lat", "lat and lng must be given together")
	}
	if p.Lat != nil {
		v.check(*p.Lat >= -90 && *p.Lat <= 90, "lat", "Must be between -90 and 90")
	}
	if p.Lng != nil {
		v.check(*p.Lng >= -180 && *p.Lng <= 180, "lng", "Must be between -180 and 180")
	}
	if p.Radius != nil {
		v.check(*p.Radius > 0 && *p.Radius <= maxSearchRadiusKm*1000, "radius", "Out of range")
	}
	if p.Lang != "" {
		v.check(models.IsLanguage(p.Lang), "lang", "Unsupported language")
	}
	if p.Status != "" {
		v.check(models.ListingStatus(p.Status).Valid(), "status", "Unknown status")
	}
	v.check(p.Page >= 0, "page", "Must be at least 1")
	v.check(p.Limit >= 0, "limit", "Must be at least 1")
	if err := v.err(); err != nil {
		return SearchParams{}, err
	}
	return p, nil
}

// BuildListingQuery turns parameters into a store query and the page it covers.
// categoryIDs is the resolved subtree; a category filter that resolved to nothing matches no listing.
func BuildListingQuery(p SearchParams, categoryIDs []utils.SixID, now time.Time) (repository.ListingQuery, models.Page) {
	page := models.NewPage(p.Page, p.Limit, models.DefaultPageSize)
	q := repository.ListingQuery{
		PriceMin: p.PriceMin,
		PriceMax: p.PriceMax,
		Currency: p.Currency,
		Text:     p.Text,
		Sort:     repository.ParseListingSort(p.Sort),
		Skip:     page.Skip(),
		Limit:    page.Size,
	}
	if p.Category != "" {
		if len(categoryIDs) == 0 {
			q.MatchNone = true
		}
		q.CategoryIDs = categoryIDs
	}
	if p.Lang != "" && p.Text != "" {
		q.TextLangs = []string{p.Lang}
	}
	if p.Lat != nil && p.Lng != nil {
		radius := repository.DefaultNearRadius
		if p.Radius != nil {
			radius = *p.Radius
		}
		q.Near = &repository.GeoNear{Lat: *p.Lat, Lng: *p.Lng, RadiusMeters: radius}
	} else {
		q.City = p.City
		q.District = p.District
	}

	switch {
	case !p.AllStatuses:
		q.LiveAt = &now
	case p.Status != "":
		q.Statuses = []models.ListingStatus{models.ListingStatus(p.Status)}
	}
	return q, page
}

type ListingPage = PageResult[*models.Listing]

type ISearchService interface {
	SearchListings(ctx context.Context, actor Actor, p SearchParams) (*ListingPage, error)
	Suggest(ctx context.Context, text, lang string) ([]string, error)
	Popular(ctx context.Context, limit int) ([]models.CategoryCount, error)
	Stats(ctx context.Context) (models.PriceStats, error)
}

type searchService struct {
	listings   repository.Listings
	categories ICategoryService
	now        func() time.Time
}

func NewSearchService(listings repository.Listings, categories ICategoryService) ISearchService {
	return &searchService{
		listings:   listings,
		categories: categories,
		now:        func() time.Time { return time.Now().UTC() },
	}
}

func (s *searchService) SearchListings(ctx context.Context, actor Actor, p SearchParams) (*ListingPage, error) {
	p.AllStatuses = actor.Can(models.CapViewAllStatuses)

	var categoryIDs []utils.SixID
	if p.Category != "" {
		ids, found, err := s.categories.SubtreeIDs(ctx, p.Category)
		if err != nil {
			return nil, err
		}
		if found {
			categoryIDs = ids
		}
	}

	q, page := BuildListingQuery(p, categoryIDs, s.now())
	items, total, err := s.listings.Find(ctx, q)
	if err != nil {
		return nil, err
	}
	redactReports(actor, items...)
	return &ListingPage{Items: items, Pagination: page.Paginate(int(total))}, nil
}

func (s *searchService) Suggest(ctx context.Context, text, lang string) ([]string, error) {
	text = strings.TrimSpace(text)
	if utf8.RuneCountInString(text) < SuggestMinLen {
		return []string{}, nil
	}
	if !models.IsLanguage(lang) {
		lang = models.LangEn
	}
	return s.listings.SuggestTitles(ctx, text, lang, s.now(), SuggestLimit)
}

func (s *searchService) Popular(ctx context.Context, limit int) ([]models.CategoryCount, error) {
	if limit <= 0 || limit > models.MaxPageSize {
		limit = PopularLimit
	}
	return s.categories.Popular(ctx, limit)
}

func (s *searchService) Stats(ctx context.Context) (models.PriceStats, error) {
	return s.listings.PriceStats(ctx, s.now())
}
