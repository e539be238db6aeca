// Package memstore implements the repositories in process memory.
// Every repository guards its map with a sync.RWMutex.
package memstore

import (
	"github.com/pr0br0/cyboard/internal/repository"
)

// New returns an empty in-memory store.
func New() *repository.Store {
	return &repository.Store{
		Users:         NewUsers(),
		Categories:    NewCategories(),
		Listings:      NewListings(),
		Notifications: NewNotifications(),
		Messages:      NewMessages(),
		Cascades:      NewCascades(),
	}
}
