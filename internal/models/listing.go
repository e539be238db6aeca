package models

import (
	"time"

	"github.com/pr0br0/cyboard/internal/utils"
)

// ListingStatus is the lifecycle state of a listing.
type ListingStatus string

const (
	ListingPending  ListingStatus = "pending"
	ListingActive   ListingStatus = "active"
	ListingInactive ListingStatus = "inactive"
	ListingExpired  ListingStatus = "expired"
	ListingRejected ListingStatus = "rejected"
	ListingDeleted  ListingStatus = "deleted"
	ListingReported ListingStatus = "reported"
)

var listingStatuses = []ListingStatus{
	ListingPending, ListingActive, ListingInactive, ListingExpired,
	ListingRejected, ListingDeleted, ListingReported,
}

func (s ListingStatus) Valid() bool {
	for _, v := range listingStatuses {
		if v == s {
			return true
		}
	}
	return false
}

const (
	CurrencyEUR = "EUR"
	CurrencyUSD = "USD"
)

func IsCurrency(c string) bool {
	return c == CurrencyEUR || c == CurrencyUSD
}

// Field limits for listings.
const (
	TitleMinLen       = 10
	TitleMaxLen       = 100
	DescriptionMinLen = 50
	DescriptionMaxLen = 5000
	PriceMax          = 999999999
)

type ReportReason string

const (
	ReportSpam          ReportReason = "spam"
	ReportFraud         ReportReason = "fraud"
	ReportInappropriate ReportReason = "inappropriate"
	ReportDuplicate     ReportReason = "duplicate"
	ReportWrongCategory ReportReason = "wrong_category"
	ReportOther         ReportReason = "other"
)

func (r ReportReason) Valid() bool {
	switch r {
	case ReportSpam, ReportFraud, ReportInappropriate, ReportDuplicate, ReportWrongCategory, ReportOther:
		return true
	}
	return false
}

type Price struct {
	Amount     float64 `bson:"amount" json:"amount"`
	Currency   string  `bson:"currency" json:"currency"`
	Negotiable bool    `bson:"negotiable" json:"negotiable"`
}

// GeoPoint is a GeoJSON point; Coordinates are [lng, lat].
type GeoPoint struct {
	Type        string     `bson:"type" json:"type"`
	Coordinates [2]float64 `bson:"coordinates" json:"coordinates"`
}

func NewGeoPoint(lat, lng float64) *GeoPoint {
	return &GeoPoint{Type: "Point", Coordinates: [2]float64{lng, lat}}
}

type ListingLocation struct {
	City     string    `bson:"city" json:"city"`
	District string    `bson:"district,omitempty" json:"district,omitempty"`
	Address  string    `bson:"address,omitempty" json:"address,omitempty"`
	Point    *GeoPoint `bson:"point,omitempty" json:"point,omitempty"`
}

type ListingImage struct {
	ID         utils.SixID `bson:"_id" json:"id"`
	URL        string      `bson:"url" json:"url"`
	StorageKey string      `bson:"storage_key" json:"storageKey"`
	Main       bool        `bson:"main" json:"main"`
	Order      int         `bson:"order" json:"order"`
}

type ListingViews struct {
	Total int `bson:"total" json:"total"`
}

type Report struct {
	Reporter    utils.SixID  `bson:"reporter" json:"reporter"`
	Reason      ReportReason `bson:"reason" json:"reason"`
	Description string       `bson:"description,omitempty" json:"description,omitempty"`
	CreatedAt   time.Time    `bson:"created_at" json:"createdAt"`
}

// Listing represents a classified listing.
type Listing struct {
	Base        `bson:",inline"`
	Title       Localized       `bson:"title" json:"title"`
	Description Localized       `bson:"description" json:"description"`
	Slug        string          `bson:"slug" json:"slug"`
	Category    utils.SixID     `bson:"category" json:"category"`
	Price       Price           `bson:"price" json:"price"`
	Location    ListingLocation `bson:"location" json:"location"`
	Images      []ListingImage  `bson:"images" json:"images"`
	Author      utils.SixID     `bson:"author" json:"author"`
	Status      ListingStatus   `bson:"status" json:"status"`
	StatusNote  string          `bson:"status_note,omitempty" json:"statusNote,omitempty"`
	Views       ListingViews    `bson:"views" json:"views"`
	ExpiresAt   time.Time       `bson:"expires_at" json:"expiresAt"`
	Reports     []Report        `bson:"reports,omitempty" json:"reports,omitempty"`
	CreatedAt   time.Time       `bson:"created_at" json:"createdAt"`
	UpdatedAt   time.Time       `bson:"updated_at" json:"updatedAt"`
}

// IsLive reports whether the listing is publicly visible at now.
func (l *Listing) IsLive(now time.Time) bool {
	return l.Status == ListingActive && l.ExpiresAt.After(now)
}

// MainImage returns the image flagged main, or the first one.
func (l *Listing) MainImage() *ListingImage {
	for i := range l.Images {
		if l.Images[i].Main {
			return &l.Images[i]
		}
	}
	if len(l.Images) > 0 {
		return &l.Images[0]
	}
	return nil
}

// ImageInput is an already stored image attached to a listing.
type ImageInput struct {
	URL        string `json:"url"`
	StorageKey string `json:"storageKey"`
}

// ListingInput is the writable subset used on create.
type ListingInput struct {
	Title       Localized       `json:"title"`
	Description Localized       `json:"description"`
	Category    utils.SixID     `json:"category"`
	Price       Price           `json:"price"`
	Location    ListingLocation `json:"location"`
	Images      []ImageInput    `json:"images"`
}

// ListingPatch carries optional listing updates. Images are appended.
type ListingPatch struct {
	Title       *Localized       `json:"title,omitempty"`
	Description *Localized       `json:"description,omitempty"`
	Category    *utils.SixID     `json:"category,omitempty"`
	Price       *Price           `json:"price,omitempty"`
	Location    *ListingLocation `json:"location,omitempty"`
	Status      *ListingStatus   `json:"status,omitempty"`
	Images      []ImageInput     `json:"images,omitempty"`
}

// PriceStats summarizes prices of live listings.
type PriceStats struct {
	Total    int     `json:"total"`
	AvgPrice float64 `json:"avgPrice"`
	MinPrice float64 `json:"minPrice"`
	MaxPrice float64 `json:"maxPrice"`
}
