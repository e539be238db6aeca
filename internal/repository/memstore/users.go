package memstore

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/pr0br0/cyboard/internal/models"
	"github.com/pr0br0/cyboard/internal/repository"
	"github.com/pr0br0/cyboard/internal/utils"
)

type Users struct {
	mu    sync.RWMutex
	items map[utils.SixID]*models.User
}

func NewUsers() *Users {
	return &Users{items: make(map[utils.SixID]*models.User)}
}

// conflict reports whether u's email or phone belongs to another user. Caller holds the lock.
func (r *Users) conflict(u *models.User) bool {
	for id, other := range r.items {
		if id == u.ID {
			continue
		}
		if other.Email == u.Email {
			return true
		}
		if u.Phone.Number != "" && other.Phone.Number == u.Phone.Number {
			return true
		}
	}
	return false
}

func (r *Users) Create(_ context.Context, u *models.User) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	u.GenIDIfEmpty()
	if _, exists := r.items[u.ID]; exists || r.conflict(u) {
		return fmt.Errorf("insert user %s: %w", u.Email, repository.ErrDuplicate)
	}
	r.items[u.ID] = cloneUser(u)
	return nil
}

func (r *Users) FindByID(_ context.Context, id utils.SixID) (*models.User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	u, ok := r.items[id]
	if !ok {
		return nil, fmt.Errorf("find user %s: %w", id, repository.ErrNotFound)
	}
	return cloneUser(u), nil
}

func (r *Users) findBy(match func(*models.User) bool) (*models.User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, u := range r.items {
		if match(u) {
			return cloneUser(u), nil
		}
	}
	return nil, fmt.Errorf("find user: %w", repository.ErrNotFound)
}

func (r *Users) FindByEmail(_ context.Context, email string) (*models.User, error) {
	return r.findBy(func(u *models.User) bool { return u.Email == email })
}

func (r *Users) FindByPhone(_ context.Context, number string) (*models.User, error) {
	return r.findBy(func(u *models.User) bool { return number != "" && u.Phone.Number == number })
}

func (r *Users) FindByIDs(_ context.Context, ids []utils.SixID) ([]*models.User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := []*models.User{}
	for _, id := range ids {
		if u, ok := r.items[id]; ok {
			out = append(out, cloneUser(u))
		}
	}
	return out, nil
}

func (r *Users) Update(_ context.Context, u *models.User) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.items[u.ID]; !ok {
		return fmt.Errorf("replace user %s: %w", u.ID, repository.ErrNotFound)
	}
	if r.conflict(u) {
		return fmt.Errorf("replace user %s: %w", u.ID, repository.ErrDuplicate)
	}
	r.items[u.ID] = cloneUser(u)
	return nil
}

func (r *Users) Delete(_ context.Context, id utils.SixID) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.items[id]; !ok {
		return fmt.Errorf("delete user %s: %w", id, repository.ErrNotFound)
	}
	delete(r.items, id)
	return nil
}

func (r *Users) mutate(id utils.SixID, fn func(*models.User)) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	u, ok := r.items[id]
	if !ok {
		return fmt.Errorf("update user %s: %w", id, repository.ErrNotFound)
	}
	fn(u)
	return nil
}

func addToSet(set []utils.SixID, id utils.SixID) []utils.SixID {
	for _, v := range set {
		if v == id {
			return set
		}
	}
	return append(set, id)
}

func pull(set []utils.SixID, id utils.SixID) []utils.SixID {
	out := set[:0]
	for _, v := range set {
		if v != id {
			out = append(out, v)
		}
	}
	return out
}

func (r *Users) AddListing(_ context.Context, userID, listingID utils.SixID) error {
	return r.mutate(userID, func(u *models.User) { u.Listings = addToSet(u.Listings, listingID) })
}

func (r *Users) RemoveListing(_ context.Context, userID, listingID utils.SixID) error {
	return r.mutate(userID, func(u *models.User) { u.Listings = pull(u.Listings, listingID) })
}

func (r *Users) AddFavorite(_ context.Context, userID, listingID utils.SixID) error {
	return r.mutate(userID, func(u *models.User) { u.Favorites = addToSet(u.Favorites, listingID) })
}

func (r *Users) RemoveFavorite(_ context.Context, userID, listingID utils.SixID) error {
	return r.mutate(userID, func(u *models.User) { u.Favorites = pull(u.Favorites, listingID) })
}

func (r *Users) StripFavorite(_ context.Context, listingID utils.SixID) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var n int64
	for _, u := range r.items {
		if u.HasFavorite(listingID) {
			u.Favorites = pull(u.Favorites, listingID)
			n++
		}
	}
	return n, nil
}

func (r *Users) SetStats(_ context.Context, userID utils.SixID, stats models.UserStats) error {
	return r.mutate(userID, func(u *models.User) { u.Stats = stats })
}

func (r *Users) Touch(_ context.Context, userID utils.SixID, at time.Time, login bool) error {
	return r.mutate(userID, func(u *models.User) {
		u.LastActive = &at
		if login {
			t := at
			u.LastLogin = &t
		}
	})
}
