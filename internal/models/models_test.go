package models

import (
	"math"
	"testing"
	"time"

	"github.com/pr0br0/cyboard/internal/utils"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRoleCan(t *testing.T) {
	assert.False(t, RoleUser.Can(CapModerateListings))
	assert.False(t, RoleUser.Can(CapManageCategories))

	assert.True(t, RoleModerator.Can(CapModerateListings))
	assert.True(t, RoleModerator.Can(CapViewHiddenListings))
	assert.False(t, RoleModerator.Can(CapManageCategories))
	assert.False(t, RoleModerator.Can(CapEditAnyListing))

	for _, c := range []Capability{CapManageCategories, CapModerateListings, CapViewHiddenListings, CapEditAnyListing, CapViewAllStatuses} {
		assert.True(t, RoleAdmin.Can(c), c)
	}

	assert.False(t, Role("root").Can(CapManageCategories))
}

func TestParseRole(t *testing.T) {
	r, err := ParseRole("moderator")
	require.NoError(t, err)
	assert.Equal(t, RoleModerator, r)

	_, err = ParseRole("superuser")
	assert.Error(t, err)
}

func TestLocalizedGet(t *testing.T) {
	l := Localized{En: "Electronics", Ru: "Электроника"}
	assert.Equal(t, "Электроника", l.Get(LangRu))
	assert.Equal(t, "Electronics", l.Get(LangEl))
	assert.Equal(t, "Electronics", l.Get("de"))
	assert.Len(t, l.Values(), 2)
}

func TestCategoryChain(t *testing.T) {
	root := &Category{Base: NewBase(), Name: Localized{En: "Electronics"}, Slug: "electronics"}
	phones := &Category{Base: NewBase(), Name: Localized{En: "Phones"}, Slug: "phones", Ancestors: root.Chain()}

	chain := phones.Chain()
	require.Len(t, chain, 2)
	assert.Equal(t, root.ID, chain[0].ID)
	assert.Equal(t, phones.ID, chain[1].ID)
	assert.True(t, phones.HasAncestor(root.ID))
	assert.False(t, phones.HasAncestor(phones.ID))

	// Chain must not alias the parent's slice.
	chain[0].Slug = "changed"
	assert.Equal(t, "electronics", phones.Ancestors[0].Slug)
}

func TestListingIsLive(t *testing.T) {
	now := time.Now()
	l := &Listing{Status: ListingActive, ExpiresAt: now.Add(time.Hour)}
	assert.True(t, l.IsLive(now))

	l.ExpiresAt = now.Add(-time.Second)
	assert.False(t, l.IsLive(now))

	l.ExpiresAt = now.Add(time.Hour)
	l.Status = ListingPending
	assert.False(t, l.IsLive(now))
}

func TestListingMainImage(t *testing.T) {
	l := &Listing{}
	assert.Nil(t, l.MainImage())

	a, b := utils.NewSixID(), utils.NewSixID()
	l.Images = []ListingImage{{ID: a}, {ID: b, Main: true}}
	assert.Equal(t, b, l.MainImage().ID)

	l.Images[1].Main = false
	assert.Equal(t, a, l.MainImage().ID)
}

func TestPagination(t *testing.T) {
	cases := []struct {
		page, size, total       int
		wantSize, wantSkip, pgs int
	}{
		{0, 0, 0, DefaultPageSize, 0, 0},
		{1, 10, 25, 10, 0, 3},
		{3, 10, 25, 10, 20, 3},
		{2, 500, 120, MaxPageSize, 50, 3},
		{1, 5, 5, 5, 0, 1},
		{math.MaxInt, MaxPageSize, 3, MaxPageSize, (MaxPageNumber - 1) * MaxPageSize, 1},
	}
	for _, c := range cases {
		p := NewPage(c.page, c.size, DefaultPageSize)
		assert.Equal(t, c.wantSize, p.Size)
		assert.Equal(t, c.wantSkip, p.Skip())
		env := p.Paginate(c.total)
		assert.Equal(t, c.pgs, env.Pages)
		assert.Equal(t, c.total, env.Total)
		assert.Equal(t, p.Size, env.PerPage)
	}
}

func TestCascadeJobDone(t *testing.T) {
	j := &CascadeJob{Completed: []CascadeStep{StepReleaseImages}}
	assert.True(t, j.Done(StepReleaseImages))
	assert.False(t, j.Done(StepDeleteListing))
}
