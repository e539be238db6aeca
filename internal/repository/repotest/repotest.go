// Package repotest holds behaviour tests shared by every repository implementation.
package repotest

import (
	"context"
	"testing"
	"time"

	"github.com/pr0br0/cyboard/internal/models"
	"github.com/pr0br0/cyboard/internal/repository"
	"github.com/pr0br0/cyboard/internal/utils"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Factory returns an empty store for one subtest.
type Factory func(t *testing.T) *repository.Store

// Run exercises the repository contracts against stores built by newStore.
func Run(t *testing.T, newStore Factory) {
	t.Run("Users", func(t *testing.T) { testUsers(t, newStore(t)) })
	t.Run("Categories", func(t *testing.T) { testCategories(t, newStore(t)) })
	t.Run("Listings", func(t *testing.T) { testListings(t, newStore(t)) })
	t.Run("Notifications", func(t *testing.T) { testNotifications(t, newStore(t)) })
	t.Run("Messages", func(t *testing.T) { testMessages(t, newStore(t)) })
	t.Run("Cascades", func(t *testing.T) { testCascades(t, newStore(t)) })
}

// now is truncated to the millisecond so values survive a BSON round trip unchanged.
func now() time.Time {
	return time.Now().UTC().Truncate(time.Millisecond)
}

func testUsers(t *testing.T, s *repository.Store) {
	ctx := context.Background()
	u := &models.User{Email: "ann@example.com", Name: "Ann", Role: models.RoleUser, Status: models.UserStatusActive, CreatedAt: now()}
	require.NoError(t, s.Users.Create(ctx, u))
	require.False(t, u.ID.IsZero())

	dup := &models.User{Email: "ann@example.com"}
	assert.ErrorIs(t, s.Users.Create(ctx, dup), repository.ErrDuplicate)

	got, err := s.Users.FindByEmail(ctx, "ann@example.com")
	require.NoError(t, err)
	assert.Equal(t, u.ID, got.ID)

	_, err = s.Users.FindByEmail(ctx, "nobody@example.com")
	assert.ErrorIs(t, err, repository.ErrNotFound)

	listing := utils.NewSixID()
	require.NoError(t, s.Users.AddFavorite(ctx, u.ID, listing))
	require.NoError(t, s.Users.AddFavorite(ctx, u.ID, listing))
	got, err = s.Users.FindByID(ctx, u.ID)
	require.NoError(t, err)
	assert.Equal(t, []utils.SixID{listing}, got.Favorites)

	bob := &models.User{Email: "bob@example.com", Favorites: []utils.SixID{listing}}
	require.NoError(t, s.Users.Create(ctx, bob))
	n, err := s.Users.StripFavorite(ctx, listing)
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)
	got, err = s.Users.FindByID(ctx, bob.ID)
	require.NoError(t, err)
	assert.Empty(t, got.Favorites)

	require.NoError(t, s.Users.AddListing(ctx, u.ID, listing))
	require.NoError(t, s.Users.RemoveListing(ctx, u.ID, listing))
	got, _ = s.Users.FindByID(ctx, u.ID)
	assert.Empty(t, got.Listings)

	got.Phone.Number = "+35799123456"
	require.NoError(t, s.Users.Update(ctx, got))
	byPhone, err := s.Users.FindByPhone(ctx, "+35799123456")
	require.NoError(t, err)
	assert.Equal(t, u.ID, byPhone.ID)

	users, err := s.Users.FindByIDs(ctx, []utils.SixID{u.ID, bob.ID, utils.NewSixID()})
	require.NoError(t, err)
	assert.Len(t, users, 2)

	require.NoError(t, s.Users.Delete(ctx, bob.ID))
	assert.ErrorIs(t, s.Users.Delete(ctx, bob.ID), repository.ErrNotFound)
	assert.ErrorIs(t, s.Users.AddFavorite(ctx, bob.ID, listing), repository.ErrNotFound)
}

func testCategories(t *testing.T, s *repository.Store) {
	ctx := context.Background()
	base := now()
	root := &models.Category{Name: models.Localized{En: "Electronics", Ru: "Электроника"}, Slug: "electronics", IsActive: true, CreatedAt: base}
	require.NoError(t, s.Categories.Create(ctx, root))
	assert.ErrorIs(t, s.Categories.Create(ctx, &models.Category{Slug: "electronics"}), repository.ErrDuplicate)

	phones := &models.Category{Name: models.Localized{En: "Phones"}, Slug: "phones", Parent: &root.ID, Ancestors: root.Chain(), Order: 2, IsActive: true, CreatedAt: base}
	laptops := &models.Category{Name: models.Localized{En: "Laptops"}, Slug: "laptops", Parent: &root.ID, Ancestors: root.Chain(), Order: 1, IsActive: false, CreatedAt: base}
	require.NoError(t, s.Categories.Create(ctx, phones))
	require.NoError(t, s.Categories.Create(ctx, laptops))

	roots, err := s.Categories.List(ctx, repository.CategoryFilter{RootOnly: true})
	require.NoError(t, err)
	require.Len(t, roots, 1)
	assert.Equal(t, root.ID, roots[0].ID)

	children, err := s.Categories.List(ctx, repository.CategoryFilter{Parent: &root.ID})
	require.NoError(t, err)
	require.Len(t, children, 2)
	assert.Equal(t, "laptops", children[0].Slug)

	active, err := s.Categories.List(ctx, repository.CategoryFilter{Parent: &root.ID, ActiveOnly: true})
	require.NoError(t, err)
	assert.Len(t, active, 1)

	desc, err := s.Categories.Descendants(ctx, root.ID)
	require.NoError(t, err)
	assert.Len(t, desc, 2)

	n, err := s.Categories.CountChildren(ctx, root.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)

	require.NoError(t, s.Categories.SetCounts(ctx, phones.ID, 3, 5))
	require.NoError(t, s.Categories.SetOrder(ctx, phones.ID, 0))
	require.NoError(t, s.Categories.SetAncestors(ctx, phones.ID, nil))
	got, err := s.Categories.FindBySlug(ctx, "phones")
	require.NoError(t, err)
	assert.Equal(t, 3, got.ListingCount)
	assert.Equal(t, 5, got.TotalListings)
	assert.Equal(t, 0, got.Order)
	assert.Empty(t, got.Ancestors)

	found, err := s.Categories.Search(ctx, "лектрон", 10)
	require.NoError(t, err)
	require.Len(t, found, 1)
	assert.Equal(t, root.ID, found[0].ID)

	require.NoError(t, s.Categories.Delete(ctx, laptops.ID))
	_, err = s.Categories.FindByID(ctx, laptops.ID)
	assert.ErrorIs(t, err, repository.ErrNotFound)
}

func newListing(author, category utils.SixID, title string, amount float64, created time.Time) *models.Listing {
	return &models.Listing{
		Title:       models.Localized{En: title, Ru: "ru " + title},
		Description: models.Localized{En: "description of " + title},
		Slug:        utils.Slugify(title) + "-" + utils.NewSixID().String(),
		Category:    category,
		Author:      author,
		Price:       models.Price{Amount: amount, Currency: models.CurrencyEUR},
		Location:    models.ListingLocation{City: "Limassol", Point: models.NewGeoPoint(34.68, 33.04)},
		Images:      []models.ListingImage{{ID: utils.NewSixID(), URL: "u", StorageKey: "k", Main: true}},
		Status:      models.ListingActive,
		ExpiresAt:   created.Add(30 * 24 * time.Hour),
		CreatedAt:   created,
		UpdatedAt:   created,
	}
}

func testListings(t *testing.T, s *repository.Store) {
	ctx := context.Background()
	at := now()
	author, cat := utils.NewSixID(), utils.NewSixID()

	cheap := newListing(author, cat, "Cheap bicycle", 50, at.Add(-3*time.Hour))
	mid := newListing(author, cat, "Mountain bicycle", 150, at.Add(-2*time.Hour))
	dear := newListing(author, utils.NewSixID(), "Road bicycle", 250, at.Add(-time.Hour))
	expired := newListing(author, cat, "Old bicycle", 120, at.Add(-40*24*time.Hour))
	expired.ExpiresAt = at.Add(-time.Minute)
	for _, l := range []*models.Listing{cheap, mid, dear, expired} {
		require.NoError(t, s.Listings.Create(ctx, l))
	}

	clash := newListing(author, cat, "Clash", 1, at)
	clash.Slug = cheap.Slug
	assert.ErrorIs(t, s.Listings.Create(ctx, clash), repository.ErrDuplicate)

	lo, hi := 100.0, 200.0
	items, total, err := s.Listings.Find(ctx, repository.ListingQuery{PriceMin: &lo, PriceMax: &hi, LiveAt: &at})
	require.NoError(t, err)
	assert.Equal(t, int64(1), total)
	require.Len(t, items, 1)
	assert.Equal(t, mid.ID, items[0].ID)

	items, total, err = s.Listings.Find(ctx, repository.ListingQuery{LiveAt: &at, Sort: repository.SortPriceDesc})
	require.NoError(t, err)
	assert.Equal(t, int64(3), total)
	assert.Equal(t, []utils.SixID{dear.ID, mid.ID, cheap.ID}, ids(items))

	items, _, err = s.Listings.Find(ctx, repository.ListingQuery{LiveAt: &at, Sort: repository.SortNewest, Skip: 1, Limit: 1})
	require.NoError(t, err)
	assert.Equal(t, []utils.SixID{mid.ID}, ids(items))

	items, total, err = s.Listings.Find(ctx, repository.ListingQuery{LiveAt: &at, Skip: 10, Limit: 10})
	require.NoError(t, err)
	assert.Equal(t, int64(3), total)
	assert.Empty(t, items)

	items, total, err = s.Listings.Find(ctx, repository.ListingQuery{LiveAt: &at, Skip: -50, Limit: 10})
	require.NoError(t, err)
	assert.Equal(t, int64(3), total)
	assert.Empty(t, items)

	n, err := s.Listings.Count(ctx, repository.ListingQuery{CategoryIDs: []utils.SixID{cat}})
	require.NoError(t, err)
	assert.Equal(t, int64(3), n)

	n, err = s.Listings.Count(ctx, repository.ListingQuery{Text: "MOUNTAIN", TextLangs: []string{models.LangEn}})
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	n, err = s.Listings.Count(ctx, repository.ListingQuery{Text: "ru mountain", TextLangs: []string{models.LangEn}})
	require.NoError(t, err)
	assert.Equal(t, int64(0), n)

	n, err = s.Listings.Count(ctx, repository.ListingQuery{Near: &repository.GeoNear{Lat: 34.68, Lng: 33.05}})
	require.NoError(t, err)
	assert.Equal(t, int64(4), n)

	n, err = s.Listings.Count(ctx, repository.ListingQuery{Near: &repository.GeoNear{Lat: 35.17, Lng: 33.36}})
	require.NoError(t, err)
	assert.Equal(t, int64(0), n)

	require.NoError(t, s.Listings.IncrementViews(ctx, cheap.ID))
	require.NoError(t, s.Listings.IncrementViews(ctx, cheap.ID))
	items, _, err = s.Listings.Find(ctx, repository.ListingQuery{LiveAt: &at, Sort: repository.SortPopular, Limit: 1})
	require.NoError(t, err)
	assert.Equal(t, []utils.SixID{cheap.ID}, ids(items))

	reporter := utils.NewSixID()
	require.NoError(t, s.Listings.AddReport(ctx, mid.ID, models.Report{Reporter: reporter, Reason: models.ReportSpam, CreatedAt: at}))
	require.NoError(t, s.Listings.SetStatus(ctx, dear.ID, models.ListingRejected, "blurry photos", at))
	got, err := s.Listings.FindByID(ctx, mid.ID)
	require.NoError(t, err)
	require.Len(t, got.Reports, 1)
	assert.Equal(t, reporter, got.Reports[0].Reporter)
	got, err = s.Listings.FindByID(ctx, dear.ID)
	require.NoError(t, err)
	assert.Equal(t, models.ListingRejected, got.Status)
	assert.Equal(t, "blurry photos", got.StatusNote)

	stats, err := s.Listings.PriceStats(ctx, at)
	require.NoError(t, err)
	assert.Equal(t, 2, stats.Total)
	assert.InDelta(t, 100.0, stats.AvgPrice, 0.001)
	assert.InDelta(t, 50.0, stats.MinPrice, 0.001)
	assert.InDelta(t, 150.0, stats.MaxPrice, 0.001)

	titles, err := s.Listings.SuggestTitles(ctx, "bicycle", models.LangEn, at, 10)
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"Cheap bicycle", "Mountain bicycle"}, titles)

	require.NoError(t, s.Listings.Delete(ctx, cheap.ID))
	_, err = s.Listings.FindByID(ctx, cheap.ID)
	assert.ErrorIs(t, err, repository.ErrNotFound)
}

func ids(items []*models.Listing) []utils.SixID {
	out := make([]utils.SixID, 0, len(items))
	for _, l := range items {
		out = append(out, l.ID)
	}
	return out
}

func testNotifications(t *testing.T, s *repository.Store) {
	ctx := context.Background()
	user, other := utils.NewSixID(), utils.NewSixID()
	at := now()
	var created []*models.Notification
	for i := 0; i < 3; i++ {
		n := &models.Notification{User: user, Type: models.NotificationSystem, CreatedAt: at.Add(time.Duration(i) * time.Minute)}
		require.NoError(t, s.Notifications.Create(ctx, n))
		created = append(created, n)
	}
	foreign := &models.Notification{User: other, Type: models.NotificationSystem, CreatedAt: at.Add(-100 * 24 * time.Hour)}
	require.NoError(t, s.Notifications.Create(ctx, foreign))

	list, total, err := s.Notifications.List(ctx, user, false, 0, 2)
	require.NoError(t, err)
	assert.Equal(t, int64(3), total)
	require.Len(t, list, 2)
	assert.Equal(t, created[2].ID, list[0].ID)

	n, err := s.Notifications.MarkRead(ctx, user, []utils.SixID{created[0].ID, foreign.ID})
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	unread, err := s.Notifications.CountUnread(ctx, user)
	require.NoError(t, err)
	assert.Equal(t, int64(2), unread)

	list, total, err = s.Notifications.List(ctx, user, true, 0, 20)
	require.NoError(t, err)
	assert.Equal(t, int64(2), total)
	assert.Len(t, list, 2)

	n, err = s.Notifications.Delete(ctx, user, []utils.SixID{created[1].ID, foreign.ID})
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	n, err = s.Notifications.DeleteOlderThan(ctx, at.Add(-90*24*time.Hour))
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	n, err = s.Notifications.DeleteForUser(ctx, user)
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)
}

func testMessages(t *testing.T, s *repository.Store) {
	ctx := context.Background()
	ann, bob, cid := utils.NewSixID(), utils.NewSixID(), utils.NewSixID()
	listing := utils.NewSixID()
	at := now()

	send := func(from, to utils.SixID, body string, offset time.Duration) *models.Message {
		m := &models.Message{Sender: from, Recipient: to, Listing: listing, Body: body, CreatedAt: at.Add(offset)}
		require.NoError(t, s.Messages.Create(ctx, m))
		return m
	}
	send(ann, bob, "hi", 0)
	send(bob, ann, "hello", time.Minute)
	send(bob, ann, "still there?", 2*time.Minute)
	last := send(cid, ann, "is it available?", 3*time.Minute)

	thread, total, err := s.Messages.Thread(ctx, ann, bob, 0, 0)
	require.NoError(t, err)
	assert.Equal(t, int64(3), total)
	require.Len(t, thread, 3)
	assert.Equal(t, "hi", thread[0].Body)

	unread, err := s.Messages.CountUnread(ctx, ann)
	require.NoError(t, err)
	assert.Equal(t, int64(3), unread)

	convs, err := s.Messages.Conversations(ctx, ann)
	require.NoError(t, err)
	require.Len(t, convs, 2)
	assert.Equal(t, cid, convs[0].Peer)
	assert.Equal(t, last.ID, convs[0].LastMessage.ID)
	assert.Equal(t, 1, convs[0].UnreadCount)
	assert.Equal(t, bob, convs[1].Peer)
	assert.Equal(t, 2, convs[1].UnreadCount)

	n, err := s.Messages.MarkRead(ctx, ann, bob, at)
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)
	unread, _ = s.Messages.CountUnread(ctx, ann)
	assert.Equal(t, int64(1), unread)

	require.NoError(t, s.Messages.Delete(ctx, last.ID))
	_, err = s.Messages.FindByID(ctx, last.ID)
	assert.ErrorIs(t, err, repository.ErrNotFound)

	n, err = s.Messages.DeleteForUser(ctx, bob)
	require.NoError(t, err)
	assert.Equal(t, int64(3), n)
}

func testCascades(t *testing.T, s *repository.Store) {
	ctx := context.Background()
	at := now()
	stale := &models.CascadeJob{Listing: utils.NewSixID(), Status: models.CascadePending, UpdatedAt: at.Add(-time.Hour)}
	fresh := &models.CascadeJob{Listing: utils.NewSixID(), Status: models.CascadePending, UpdatedAt: at}
	done := &models.CascadeJob{Listing: utils.NewSixID(), Status: models.CascadeDone, UpdatedAt: at.Add(-time.Hour)}
	for _, j := range []*models.CascadeJob{stale, fresh, done} {
		require.NoError(t, s.Cascades.Create(ctx, j))
	}

	pending, err := s.Cascades.ListPending(ctx, at.Add(-time.Minute), 10)
	require.NoError(t, err)
	require.Len(t, pending, 1)
	assert.Equal(t, stale.ID, pending[0].ID)

	stale.Completed = append(stale.Completed, models.StepReleaseImages)
	stale.Status = models.CascadeDone
	require.NoError(t, s.Cascades.Update(ctx, stale))
	got, err := s.Cascades.FindByID(ctx, stale.ID)
	require.NoError(t, err)
	assert.True(t, got.Done(models.StepReleaseImages))
	assert.Equal(t, models.CascadeDone, got.Status)
}
