package services

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"image/color"
	"image/png"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pr0br0/cyboard/internal/config"
	"github.com/pr0br0/cyboard/internal/events"
	"github.com/pr0br0/cyboard/internal/models"
	"github.com/pr0br0/cyboard/internal/repository"
	"github.com/pr0br0/cyboard/internal/utils"
)

func threeImages() []models.ImageInput {
	return []models.ImageInput{
		{URL: "/uploads/listings/1.jpg", StorageKey: "listings/1.jpg"},
		{URL: "/uploads/listings/2.jpg", StorageKey: "listings/2.jpg"},
		{URL: "/uploads/listings/3.jpg", StorageKey: "listings/3.jpg"},
	}
}

func mainImages(l *models.Listing) []utils.SixID {
	var out []utils.SixID
	for _, img := range l.Images {
		if img.Main {
			out = append(out, img.ID)
		}
	}
	return out
}

func TestListingService_Create(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	seller := env.createUser(t, "seller@example.com", models.RoleUser)
	cat := env.createCategory(t, "Bicycles", nil)

	before := time.Now().UTC()
	l := env.createListing(t, seller, cat.ID, "Vintage road bicycle", 250)

	assert.Equal(t, models.ListingActive, l.Status)
	assert.True(t, strings.HasPrefix(l.Slug, "vintage-road-bicycle-"), l.Slug)
	assert.Equal(t, seller.ID, l.Author)
	assert.WithinDuration(t, before.Add(30*24*time.Hour), l.ExpiresAt, time.Minute)
	require.Len(t, l.Images, 1)
	assert.True(t, l.Images[0].Main)
	assert.Equal(t, 0, l.Images[0].Order)

	u, err := env.store.Users.FindByID(ctx, seller.ID)
	require.NoError(t, err)
	assert.Contains(t, u.Listings, l.ID)
	assert.Contains(t, env.events.Subjects(), events.SubjectListingCreated)
}

func TestListingService_CreateWithModeration(t *testing.T) {
	env := newTestEnvWith(t, config.ListingsConfig{TTLDays: 30, Moderation: true, ViewDedupTTL: time.Hour})
	seller := env.createUser(t, "seller@example.com", models.RoleUser)
	cat := env.createCategory(t, "Bicycles", nil)

	l := env.createListing(t, seller, cat.ID, "Vintage road bicycle", 250)
	assert.Equal(t, models.ListingPending, l.Status)
}

func TestListingService_CreateValidation(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	seller := env.createUser(t, "seller@example.com", models.RoleUser)
	cat := env.createCategory(t, "Bicycles", nil)

	_, err := env.listings.Create(ctx, Actor{}, listingInput(cat.ID, "Vintage road bicycle", 10))
	assert.ErrorIs(t, err, ErrUnauthorized)

	in := listingInput(cat.ID, "Vintage road bicycle", 10)
	in.Images = nil
	in.Title.Ru = ""
	in.Price.Currency = "GBP"
	in.Category = utils.NewSixID()
	_, err = env.listings.Create(ctx, actorOf(seller), in)
	var ve *ValidationError
	require.ErrorAs(t, err, &ve)
	assert.Equal(t, "At least one image is required", ve.Fields["images"])
	assert.Contains(t, ve.Fields, "title.ru")
	assert.Contains(t, ve.Fields, "price.currency")
	assert.Contains(t, ve.Fields, "category")

	in = listingInput(cat.ID, "Short", 10)
	_, err = env.listings.Create(ctx, actorOf(seller), in)
	require.ErrorAs(t, err, &ve)
	assert.Contains(t, ve.Fields, "title.en")
}

func TestListingService_Visibility(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	seller := env.createUser(t, "seller@example.com", models.RoleUser)
	other := env.createUser(t, "other@example.com", models.RoleUser)
	mod := env.createUser(t, "mod@example.com", models.RoleModerator)
	cat := env.createCategory(t, "Bicycles", nil)
	l := env.createListing(t, seller, cat.ID, "Vintage road bicycle", 250)

	_, err := env.listings.Get(ctx, Actor{}, l.ID, "10.0.0.1")
	require.NoError(t, err)

	require.NoError(t, env.store.Listings.SetStatus(ctx, l.ID, models.ListingInactive, "", time.Now()))
	_, err = env.listings.Get(ctx, Actor{}, l.ID, "10.0.0.1")
	assert.ErrorIs(t, err, ErrNotFound)
	_, err = env.listings.Get(ctx, actorOf(other), l.ID, "")
	assert.ErrorIs(t, err, ErrNotFound)
	_, err = env.listings.Get(ctx, actorOf(seller), l.ID, "")
	assert.NoError(t, err)
	_, err = env.listings.Get(ctx, actorOf(mod), l.ID, "")
	assert.NoError(t, err)

	// active but past expiry is hidden as well
	stored, err := env.store.Listings.FindByID(ctx, l.ID)
	require.NoError(t, err)
	stored.Status = models.ListingActive
	stored.ExpiresAt = time.Now().Add(-time.Hour)
	require.NoError(t, env.store.Listings.Update(ctx, stored))
	_, err = env.listings.Get(ctx, actorOf(other), l.ID, "")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestListingService_ViewDedup(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	seller := env.createUser(t, "seller@example.com", models.RoleUser)
	buyer := env.createUser(t, "buyer@example.com", models.RoleUser)
	cat := env.createCategory(t, "Bicycles", nil)
	l := env.createListing(t, seller, cat.ID, "Vintage road bicycle", 250)

	got, err := env.listings.Get(ctx, Actor{}, l.ID, "10.0.0.1")
	require.NoError(t, err)
	assert.Equal(t, 1, got.Views.Total)
	got, err = env.listings.Get(ctx, Actor{}, l.ID, "10.0.0.1")
	require.NoError(t, err)
	assert.Equal(t, 1, got.Views.Total, "same visitor counts once")

	_, err = env.listings.Get(ctx, Actor{}, l.ID, "10.0.0.2")
	require.NoError(t, err)
	_, err = env.listings.Get(ctx, actorOf(buyer), l.ID, "10.0.0.1")
	require.NoError(t, err)
	_, err = env.listings.Get(ctx, actorOf(buyer), l.ID, "10.0.0.3")
	require.NoError(t, err)
	_, err = env.listings.Get(ctx, actorOf(seller), l.ID, "10.0.0.4")
	require.NoError(t, err)

	stored, err := env.store.Listings.FindByID(ctx, l.ID)
	require.NoError(t, err)
	assert.Equal(t, 3, stored.Views.Total)
}

func TestListingService_Update(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	seller := env.createUser(t, "seller@example.com", models.RoleUser)
	other := env.createUser(t, "other@example.com", models.RoleUser)
	admin := env.createUser(t, "admin@example.com", models.RoleAdmin)
	cat := env.createCategory(t, "Bicycles", nil)
	l := env.createListing(t, seller, cat.ID, "Vintage road bicycle", 250)

	price := models.Price{Amount: 199, Currency: models.CurrencyUSD}
	_, err := env.listings.Update(ctx, actorOf(other), l.ID, models.ListingPatch{Price: &price})
	assert.ErrorIs(t, err, ErrForbidden)

	updated, err := env.listings.Update(ctx, actorOf(seller), l.ID, models.ListingPatch{
		Price:  &price,
		Images: []models.ImageInput{{URL: "/uploads/listings/b.jpg", StorageKey: "listings/b.jpg"}},
	})
	require.NoError(t, err)
	assert.Equal(t, price, updated.Price)
	require.Len(t, updated.Images, 2, "new images are appended")
	assert.True(t, updated.Images[0].Main)
	assert.False(t, updated.Images[1].Main)
	assert.Equal(t, 1, updated.Images[1].Order)

	inactive := models.ListingInactive
	updated, err = env.listings.Update(ctx, actorOf(admin), l.ID, models.ListingPatch{Status: &inactive})
	require.NoError(t, err)
	assert.Equal(t, models.ListingInactive, updated.Status)

	rejected := models.ListingRejected
	_, err = env.listings.Update(ctx, actorOf(seller), l.ID, models.ListingPatch{Status: &rejected})
	var ve *ValidationError
	require.ErrorAs(t, err, &ve)
	assert.Contains(t, ve.Fields, "status")
}

func TestListingService_DeleteImagePromotesMain(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	seller := env.createUser(t, "seller@example.com", models.RoleUser)
	cat := env.createCategory(t, "Bicycles", nil)
	in := listingInput(cat.ID, "Vintage road bicycle", 250)
	in.Images = threeImages()
	l, err := env.listings.Create(ctx, actorOf(seller), in)
	require.NoError(t, err)
	first, second, third := l.Images[0], l.Images[1], l.Images[2]
	require.True(t, first.Main)

	l, err = env.listings.DeleteImage(ctx, actorOf(seller), l.ID, first.ID)
	require.NoError(t, err)
	require.Len(t, l.Images, 2)
	assert.Equal(t, second.ID, l.Images[0].ID)
	assert.True(t, l.Images[0].Main, "next image becomes main")
	assert.Equal(t, []utils.SixID{second.ID}, mainImages(l))
	assert.Equal(t, 0, l.Images[0].Order)
	assert.Equal(t, 1, l.Images[1].Order)
	assert.Contains(t, env.objects.deleted, first.StorageKey)

	_, err = env.listings.DeleteImage(ctx, actorOf(seller), l.ID, utils.NewSixID())
	assert.ErrorIs(t, err, ErrNotFound)

	l, err = env.listings.DeleteImage(ctx, actorOf(seller), l.ID, third.ID)
	require.NoError(t, err)
	_, err = env.listings.DeleteImage(ctx, actorOf(seller), l.ID, second.ID)
	assert.ErrorIs(t, err, ErrLastImage)
}

func TestListingService_ReorderAndSetMain(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	seller := env.createUser(t, "seller@example.com", models.RoleUser)
	cat := env.createCategory(t, "Bicycles", nil)
	in := listingInput(cat.ID, "Vintage road bicycle", 250)
	in.Images = threeImages()
	l, err := env.listings.Create(ctx, actorOf(seller), in)
	require.NoError(t, err)
	a, b, c := l.Images[0].ID, l.Images[1].ID, l.Images[2].ID

	l, err = env.listings.ReorderImages(ctx, actorOf(seller), l.ID, []utils.SixID{c, a, b})
	require.NoError(t, err)
	assert.Equal(t, []utils.SixID{c, a, b}, []utils.SixID{l.Images[0].ID, l.Images[1].ID, l.Images[2].ID})
	for i, img := range l.Images {
		assert.Equal(t, i, img.Order)
	}

	_, err = env.listings.ReorderImages(ctx, actorOf(seller), l.ID, []utils.SixID{a, b})
	assert.ErrorIs(t, err, ErrInvalidImageOrder)
	_, err = env.listings.ReorderImages(ctx, actorOf(seller), l.ID, []utils.SixID{a, a, b})
	assert.ErrorIs(t, err, ErrInvalidImageOrder)
	_, err = env.listings.ReorderImages(ctx, actorOf(seller), l.ID, []utils.SixID{a, b, utils.NewSixID()})
	assert.ErrorIs(t, err, ErrInvalidImageOrder)

	l, err = env.listings.SetMainImage(ctx, actorOf(seller), l.ID, b)
	require.NoError(t, err)
	assert.Equal(t, []utils.SixID{b}, mainImages(l))
}

func TestListingService_Favorites(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	seller := env.createUser(t, "seller@example.com", models.RoleUser)
	buyer := env.createUser(t, "buyer@example.com", models.RoleUser)
	cat := env.createCategory(t, "Bicycles", nil)
	l1 := env.createListing(t, seller, cat.ID, "Vintage road bicycle", 250)
	l2 := env.createListing(t, seller, cat.ID, "Mountain bike frame", 120)

	on, err := env.listings.ToggleFavorite(ctx, actorOf(buyer), l1.ID)
	require.NoError(t, err)
	assert.True(t, on)
	_, err = env.listings.ToggleFavorite(ctx, actorOf(buyer), l2.ID)
	require.NoError(t, err)

	page, err := env.listings.Favorites(ctx, actorOf(buyer), 1, 10)
	require.NoError(t, err)
	assert.Len(t, page.Items, 2)

	require.NoError(t, env.store.Listings.SetStatus(ctx, l2.ID, models.ListingInactive, "", time.Now()))
	page, err = env.listings.Favorites(ctx, actorOf(buyer), 1, 10)
	require.NoError(t, err)
	require.Len(t, page.Items, 1, "only live favorites are listed")
	assert.Equal(t, l1.ID, page.Items[0].ID)

	on, err = env.listings.ToggleFavorite(ctx, actorOf(buyer), l1.ID)
	require.NoError(t, err)
	assert.False(t, on)
	u, err := env.store.Users.FindByID(ctx, buyer.ID)
	require.NoError(t, err)
	assert.NotContains(t, u.Favorites, l1.ID)
}

func TestListingService_Report(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	seller := env.createUser(t, "seller@example.com", models.RoleUser)
	buyer := env.createUser(t, "buyer@example.com", models.RoleUser)
	cat := env.createCategory(t, "Bicycles", nil)
	l := env.createListing(t, seller, cat.ID, "Vintage road bicycle", 250)

	var ve *ValidationError
	require.ErrorAs(t, env.listings.Report(ctx, actorOf(buyer), l.ID, "boring", ""), &ve)
	require.NoError(t, env.listings.Report(ctx, actorOf(buyer), l.ID, models.ReportSpam, "posted five times"))

	stored, err := env.store.Listings.FindByID(ctx, l.ID)
	require.NoError(t, err)
	require.Len(t, stored.Reports, 1)
	assert.Equal(t, buyer.ID, stored.Reports[0].Reporter)
	assert.Equal(t, models.ReportSpam, stored.Reports[0].Reason)
	assert.Equal(t, models.ListingActive, stored.Status, "reports do not change status")
}

func TestListingService_ReportsVisibleToModeratorsOnly(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	seller := env.createUser(t, "seller@example.com", models.RoleUser)
	buyer := env.createUser(t, "buyer@example.com", models.RoleUser)
	moderator := env.createUser(t, "moderator@example.com", models.RoleModerator)
	cat := env.createCategory(t, "Bicycles", nil)
	l := env.createListing(t, seller, cat.ID, "Vintage road bicycle", 250)
	require.NoError(t, env.listings.Report(ctx, actorOf(buyer), l.ID, models.ReportFraud, "asks for prepayment"))

	for name, actor := range map[string]Actor{"anonymous": {}, "buyer": actorOf(buyer), "author": actorOf(seller)} {
		got, err := env.listings.Get(ctx, actor, l.ID, "10.0.0.1")
		require.NoError(t, err, name)
		assert.Nil(t, got.Reports, name)

		res, err := env.search.SearchListings(ctx, actor, SearchParams{})
		require.NoError(t, err, name)
		require.Len(t, res.Items, 1, name)
		assert.Nil(t, res.Items[0].Reports, name)
	}

	mine, err := env.listings.ListByUser(ctx, actorOf(seller), seller.ID, 1, 10)
	require.NoError(t, err)
	require.Len(t, mine.Items, 1)
	assert.Nil(t, mine.Items[0].Reports)

	extended, err := env.listings.Extend(ctx, actorOf(seller), l.ID)
	require.NoError(t, err)
	assert.Nil(t, extended.Reports)
	stored, err := env.store.Listings.FindByID(ctx, l.ID)
	require.NoError(t, err)
	require.Len(t, stored.Reports, 1, "redaction never reaches the store")

	got, err := env.listings.Get(ctx, actorOf(moderator), l.ID, "10.0.0.1")
	require.NoError(t, err)
	require.Len(t, got.Reports, 1)
	assert.Equal(t, buyer.ID, got.Reports[0].Reporter)

	res, err := env.search.SearchListings(ctx, actorOf(moderator), SearchParams{})
	require.NoError(t, err)
	require.Len(t, res.Items, 1)
	assert.Len(t, res.Items[0].Reports, 1)
}

func TestListingService_Extend(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	seller := env.createUser(t, "seller@example.com", models.RoleUser)
	cat := env.createCategory(t, "Bicycles", nil)
	l := env.createListing(t, seller, cat.ID, "Vintage road bicycle", 250)

	stored, err := env.store.Listings.FindByID(ctx, l.ID)
	require.NoError(t, err)
	stored.Status = models.ListingExpired
	stored.ExpiresAt = time.Now().Add(-time.Hour)
	require.NoError(t, env.store.Listings.Update(ctx, stored))

	extended, err := env.listings.Extend(ctx, actorOf(seller), l.ID)
	require.NoError(t, err)
	assert.Equal(t, models.ListingActive, extended.Status)
	assert.WithinDuration(t, time.Now().Add(30*24*time.Hour), extended.ExpiresAt, time.Minute)
}

func TestListingService_SetStatus(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	seller := env.createUser(t, "seller@example.com", models.RoleUser)
	mod := env.createUser(t, "mod@example.com", models.RoleModerator)
	cat := env.createCategory(t, "Bicycles", nil)
	l := env.createListing(t, seller, cat.ID, "Vintage road bicycle", 250)

	_, err := env.listings.SetStatus(ctx, actorOf(seller), l.ID, models.ListingActive, "")
	assert.ErrorIs(t, err, ErrForbidden)

	got, err := env.listings.SetStatus(ctx, actorOf(mod), l.ID, models.ListingRejected, "blurry photos")
	require.NoError(t, err)
	assert.Equal(t, models.ListingRejected, got.Status)
	assert.Equal(t, "blurry photos", got.StatusNote)

	_, err = env.listings.SetStatus(ctx, actorOf(mod), l.ID, models.ListingActive, "")
	require.NoError(t, err)

	notes, _, err := env.store.Notifications.List(ctx, seller.ID, false, 0, 10)
	require.NoError(t, err)
	require.Len(t, notes, 2)
	types := []models.NotificationType{notes[0].Type, notes[1].Type}
	assert.ElementsMatch(t, []models.NotificationType{models.NotificationListingRejected, models.NotificationListingApproved}, types)
	for _, n := range notes {
		if n.Type == models.NotificationListingRejected {
			assert.Contains(t, n.Message.En, "blurry photos")
			assert.Contains(t, n.Message.En, "Vintage road bicycle")
		}
	}
	assert.Contains(t, env.events.Subjects(), events.SubjectListingStatusChanged)
}

func TestListingService_DeleteRunsCascade(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	seller := env.createUser(t, "seller@example.com", models.RoleUser)
	buyer := env.createUser(t, "buyer@example.com", models.RoleUser)
	cat := env.createCategory(t, "Bicycles", nil)
	l := env.createListing(t, seller, cat.ID, "Vintage road bicycle", 250)
	_, err := env.listings.ToggleFavorite(ctx, actorOf(buyer), l.ID)
	require.NoError(t, err)

	assert.ErrorIs(t, env.listings.Delete(ctx, actorOf(buyer), l.ID), ErrForbidden)
	require.NoError(t, env.listings.Delete(ctx, actorOf(seller), l.ID))

	_, err = env.store.Listings.FindByID(ctx, l.ID)
	assert.ErrorIs(t, err, ErrNotFound)
	u, err := env.store.Users.FindByID(ctx, seller.ID)
	require.NoError(t, err)
	assert.NotContains(t, u.Listings, l.ID)
	b, err := env.store.Users.FindByID(ctx, buyer.ID)
	require.NoError(t, err)
	assert.NotContains(t, b.Favorites, l.ID)
	c, err := env.store.Categories.FindByID(ctx, cat.ID)
	require.NoError(t, err)
	assert.Equal(t, 0, c.TotalListings)
	assert.Contains(t, env.objects.deleted, "listings/a.jpg")
	assert.Contains(t, env.events.Subjects(), events.SubjectListingDeleted)
}

func TestListingService_ListByUser(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	seller := env.createUser(t, "seller@example.com", models.RoleUser)
	cat := env.createCategory(t, "Bicycles", nil)
	env.createListing(t, seller, cat.ID, "Vintage road bicycle", 250)
	hidden := env.createListing(t, seller, cat.ID, "Mountain bike frame", 120)
	require.NoError(t, env.store.Listings.SetStatus(ctx, hidden.ID, models.ListingInactive, "", time.Now()))

	own, err := env.listings.ListByUser(ctx, actorOf(seller), seller.ID, 1, 10)
	require.NoError(t, err)
	assert.Equal(t, 2, own.Pagination.Total)

	public, err := env.listings.ListByUser(ctx, Actor{}, seller.ID, 1, 10)
	require.NoError(t, err)
	assert.Equal(t, 1, public.Pagination.Total)

	_, err = env.listings.ListByUser(ctx, Actor{}, utils.NewSixID(), 1, 10)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestListingService_ExpireDue(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	seller := env.createUser(t, "seller@example.com", models.RoleUser)
	cat := env.createCategory(t, "Bicycles", nil)
	stale := env.createListing(t, seller, cat.ID, "Vintage road bicycle", 250)
	fresh := env.createListing(t, seller, cat.ID, "Mountain bike frame", 120)

	stored, err := env.store.Listings.FindByID(ctx, stale.ID)
	require.NoError(t, err)
	stored.ExpiresAt = time.Now().Add(-time.Minute)
	require.NoError(t, env.store.Listings.Update(ctx, stored))

	n, err := env.listings.ExpireDue(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	got, err := env.store.Listings.FindByID(ctx, stale.ID)
	require.NoError(t, err)
	assert.Equal(t, models.ListingExpired, got.Status)
	got, err = env.store.Listings.FindByID(ctx, fresh.ID)
	require.NoError(t, err)
	assert.Equal(t, models.ListingActive, got.Status)

	notes, _, err := env.store.Notifications.List(ctx, seller.ID, false, 0, 10)
	require.NoError(t, err)
	require.Len(t, notes, 1)
	assert.Equal(t, models.NotificationListingExpired, notes[0].Type)
}

func TestListingService_ExpireDueBatches(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	seller := env.createUser(t, "bulk@example.com", models.RoleUser)
	cat := env.createCategory(t, "Furniture", nil)

	overdue := time.Now().Add(-time.Hour)
	for i := 0; i < expireBatchSize+3; i++ {
		require.NoError(t, env.store.Listings.Create(ctx, &models.Listing{
			Title:     models.Localized{En: fmt.Sprintf("Oak chair %d", i)},
			Slug:      fmt.Sprintf("oak-chair-%d", i),
			Category:  cat.ID,
			Author:    seller.ID,
			Status:    models.ListingActive,
			ExpiresAt: overdue,
		}))
	}
	fresh := env.createListing(t, seller, cat.ID, "Walnut dining table", 900)

	n, err := env.listings.ExpireDue(ctx)
	require.NoError(t, err)
	assert.Equal(t, expireBatchSize+3, n)

	left, total, err := env.store.Listings.Find(ctx, repository.ListingQuery{
		Statuses: []models.ListingStatus{models.ListingActive},
	})
	require.NoError(t, err)
	assert.Equal(t, int64(1), total)
	assert.Equal(t, fresh.ID, left[0].ID)

	_, unread, err := env.store.Notifications.List(ctx, seller.ID, true, 0, 1)
	require.NoError(t, err)
	assert.Equal(t, int64(expireBatchSize+3), unread)

	n, err = env.listings.ExpireDue(ctx)
	require.NoError(t, err)
	assert.Zero(t, n)
}

func pngBytes(t *testing.T, w, h int) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for x := 0; x < w; x++ {
		for y := 0; y < h; y++ {
			img.Set(x, y, color.RGBA{R: uint8(x), G: uint8(y), B: 200, A: 255})
		}
	}
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return buf.Bytes()
}

func TestListingService_ProcessPresignedImage(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	seller := env.createUser(t, "seller@example.com", models.RoleUser)
	cat := env.createCategory(t, "Bicycles", nil)

	incoming := "incoming/" + seller.ID.String() + "/upload.png"
	_, err := env.objects.Put(ctx, incoming, "image/png", pngBytes(t, 40, 20))
	require.NoError(t, err)

	in := listingInput(cat.ID, "Vintage road bicycle", 250)
	in.Images = []models.ImageInput{{URL: env.objects.URL(incoming), StorageKey: incoming}}
	l, err := env.listings.Create(ctx, actorOf(seller), in)
	require.NoError(t, err)
	require.Len(t, env.scheduler.images, 1)
	assert.Equal(t, l.ID, env.scheduler.images[0][0])
	assert.Equal(t, l.Images[0].ID, env.scheduler.images[0][1])

	require.NoError(t, env.listings.ProcessImage(ctx, l.ID, l.Images[0].ID))
	got, err := env.store.Listings.FindByID(ctx, l.ID)
	require.NoError(t, err)
	key := got.Images[0].StorageKey
	assert.True(t, strings.HasPrefix(key, "listings/"+seller.ID.String()+"/"), key)
	assert.True(t, strings.HasSuffix(key, ".png"), key)
	assert.Equal(t, env.objects.URL(key), got.Images[0].URL)
	assert.Contains(t, env.objects.deleted, incoming)

	// a second run is a no-op once the image left the incoming prefix
	require.NoError(t, env.listings.ProcessImage(ctx, l.ID, l.Images[0].ID))
}
