package memstore

import (
	"time"

	"github.com/pr0br0/cyboard/internal/models"
	"github.com/pr0br0/cyboard/internal/utils"
)

// Stored values are copied on the way in and out so callers never share memory with the store.

func cloneIDs(ids []utils.SixID) []utils.SixID {
	if ids == nil {
		return []utils.SixID{}
	}
	return append([]utils.SixID{}, ids...)
}

func cloneTime(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	v := *t
	return &v
}

func cloneUser(u *models.User) *models.User {
	c := *u
	c.Listings = cloneIDs(u.Listings)
	c.Favorites = cloneIDs(u.Favorites)
	c.Phone.CodeExpiresAt = cloneTime(u.Phone.CodeExpiresAt)
	c.ResetExpiresAt = cloneTime(u.ResetExpiresAt)
	c.LastLogin = cloneTime(u.LastLogin)
	c.LastActive = cloneTime(u.LastActive)
	return &c
}

func cloneCategory(cat *models.Category) *models.Category {
	c := *cat
	if cat.Parent != nil {
		p := *cat.Parent
		c.Parent = &p
	}
	c.Ancestors = append([]models.CategoryAncestor{}, cat.Ancestors...)
	return &c
}

func cloneListing(l *models.Listing) *models.Listing {
	c := *l
	c.Images = append([]models.ListingImage{}, l.Images...)
	if l.Reports != nil {
		c.Reports = append([]models.Report{}, l.Reports...)
	}
	if l.Location.Point != nil {
		p := *l.Location.Point
		c.Location.Point = &p
	}
	return &c
}

func cloneNotification(n *models.Notification) *models.Notification {
	c := *n
	if n.Metadata != nil {
		c.Metadata = make(map[string]string, len(n.Metadata))
		for k, v := range n.Metadata {
			c.Metadata[k] = v
		}
	}
	return &c
}

func cloneMessage(m *models.Message) *models.Message {
	c := *m
	c.ReadAt = cloneTime(m.ReadAt)
	return &c
}

func cloneCascade(j *models.CascadeJob) *models.CascadeJob {
	c := *j
	c.StorageKeys = append([]string{}, j.StorageKeys...)
	c.Completed = append([]models.CascadeStep{}, j.Completed...)
	return &c
}
