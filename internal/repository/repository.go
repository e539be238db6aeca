// Package repository defines the persistence contracts for every entity.
// mongostore is the production implementation; memstore backs tests and
// single-process development runs.
package repository

import (
	"context"
	"errors"
	"time"

	"github.com/pr0br0/cyboard/internal/models"
	"github.com/pr0br0/cyboard/internal/utils"
)

var (
	ErrNotFound  = errors.New("not found")
	ErrDuplicate = errors.New("duplicate key")
)

type Users interface {
	// Create fails with ErrDuplicate when the email or phone number is taken.
	Create(ctx context.Context, u *models.User) error
	FindByID(ctx context.Context, id utils.SixID) (*models.User, error)
	FindByEmail(ctx context.Context, email string) (*models.User, error)
	FindByPhone(ctx context.Context, number string) (*models.User, error)
	FindByIDs(ctx context.Context, ids []utils.SixID) ([]*models.User, error)
	// Update replaces the stored document.
	Update(ctx context.Context, u *models.User) error
	Delete(ctx context.Context, id utils.SixID) error

	AddListing(ctx context.Context, userID, listingID utils.SixID) error
	RemoveListing(ctx context.Context, userID, listingID utils.SixID) error
	AddFavorite(ctx context.Context, userID, listingID utils.SixID) error
	RemoveFavorite(ctx context.Context, userID, listingID utils.SixID) error
	// StripFavorite removes the listing from every user's favorites.
	StripFavorite(ctx context.Context, listingID utils.SixID) (int64, error)
	SetStats(ctx context.Context, userID utils.SixID, stats models.UserStats) error
	Touch(ctx context.Context, userID utils.SixID, at time.Time, login bool) error
}

// CategoryFilter narrows List. A nil Parent with RootOnly lists the roots.
type CategoryFilter struct {
	ActiveOnly bool
	RootOnly   bool
	Parent     *utils.SixID
}

type Categories interface {
	// Create fails with ErrDuplicate when the slug is taken.
	Create(ctx context.Context, c *models.Category) error
	FindByID(ctx context.Context, id utils.SixID) (*models.Category, error)
	FindBySlug(ctx context.Context, slug string) (*models.Category, error)
	// List returns categories ordered by order, then creation time, then id.
	List(ctx context.Context, f CategoryFilter) ([]*models.Category, error)
	Update(ctx context.Context, c *models.Category) error
	Delete(ctx context.Context, id utils.SixID) error
	// Descendants returns every category whose ancestor chain contains id.
	Descendants(ctx context.Context, id utils.SixID) ([]*models.Category, error)
	CountChildren(ctx context.Context, id utils.SixID) (int64, error)
	SetAncestors(ctx context.Context, id utils.SixID, ancestors []models.CategoryAncestor) error
	SetCounts(ctx context.Context, id utils.SixID, active, total int) error
	SetOrder(ctx context.Context, id utils.SixID, order int) error
	// Search matches text case-insensitively against every localized name.
	Search(ctx context.Context, text string, limit int) ([]*models.Category, error)
}

type Listings interface {
	// Create fails with ErrDuplicate when the slug is taken.
	Create(ctx context.Context, l *models.Listing) error
	FindByID(ctx context.Context, id utils.SixID) (*models.Listing, error)
	Update(ctx context.Context, l *models.Listing) error
	Delete(ctx context.Context, id utils.SixID) error
	Find(ctx context.Context, q ListingQuery) ([]*models.Listing, int64, error)
	Count(ctx context.Context, q ListingQuery) (int64, error)
	IncrementViews(ctx context.Context, id utils.SixID) error
	AddReport(ctx context.Context, id utils.SixID, r models.Report) error
	SetStatus(ctx context.Context, id utils.SixID, status models.ListingStatus, note string, at time.Time) error
	// SuggestTitles returns distinct titles in lang containing text, most frequent first.
	SuggestTitles(ctx context.Context, text, lang string, now time.Time, limit int) ([]string, error)
	PriceStats(ctx context.Context, now time.Time) (models.PriceStats, error)
}

type Notifications interface {
	Create(ctx context.Context, n *models.Notification) error
	// List returns newest first.
	List(ctx context.Context, userID utils.SixID, unreadOnly bool, skip, limit int) ([]*models.Notification, int64, error)
	// MarkRead and Delete only touch notifications owned by userID.
	MarkRead(ctx context.Context, userID utils.SixID, ids []utils.SixID) (int64, error)
	Delete(ctx context.Context, userID utils.SixID, ids []utils.SixID) (int64, error)
	DeleteForUser(ctx context.Context, userID utils.SixID) (int64, error)
	CountUnread(ctx context.Context, userID utils.SixID) (int64, error)
	DeleteOlderThan(ctx context.Context, cutoff time.Time) (int64, error)
}

type Messages interface {
	Create(ctx context.Context, m *models.Message) error
	FindByID(ctx context.Context, id utils.SixID) (*models.Message, error)
	Delete(ctx context.Context, id utils.SixID) error
	// Thread returns the messages between a and b, oldest first.
	Thread(ctx context.Context, a, b utils.SixID, skip, limit int) ([]*models.Message, int64, error)
	// MarkRead flags every unread message from sender to recipient.
	MarkRead(ctx context.Context, recipient, sender utils.SixID, at time.Time) (int64, error)
	CountUnread(ctx context.Context, recipient utils.SixID) (int64, error)
	// Conversations groups userID's messages by peer, most recent first.
	Conversations(ctx context.Context, userID utils.SixID) ([]models.Conversation, error)
	DeleteForUser(ctx context.Context, userID utils.SixID) (int64, error)
}

type Cascades interface {
	Create(ctx context.Context, j *models.CascadeJob) error
	FindByID(ctx context.Context, id utils.SixID) (*models.CascadeJob, error)
	Update(ctx context.Context, j *models.CascadeJob) error
	// ListPending returns pending jobs last updated before olderThan, oldest first.
	ListPending(ctx context.Context, olderThan time.Time, limit int) ([]*models.CascadeJob, error)
}

// Store bundles one implementation of every repository.
type Store struct {
	Users         Users
	Categories    Categories
	Listings      Listings
	Notifications Notifications
	Messages      Messages
	Cascades      Cascades
}
