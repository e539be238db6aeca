package memstore

import (
	"bytes"
	"context"
	"sort"
	"sync"
	"time"

	"github.com/pr0br0/cyboard/internal/models"
	"github.com/pr0br0/cyboard/internal/utils"
)

type Notifications struct {
	mu    sync.RWMutex
	items map[utils.SixID]*models.Notification
}

func NewNotifications() *Notifications {
	return &Notifications{items: make(map[utils.SixID]*models.Notification)}
}

func (r *Notifications) Create(_ context.Context, n *models.Notification) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	n.GenIDIfEmpty()
	r.items[n.ID] = cloneNotification(n)
	return nil
}

func (r *Notifications) List(_ context.Context, userID utils.SixID, unreadOnly bool, skip, limit int) ([]*models.Notification, int64, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := []*models.Notification{}
	for _, n := range r.items {
		if n.User != userID || (unreadOnly && n.IsRead) {
			continue
		}
		out = append(out, cloneNotification(n))
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.After(out[j].CreatedAt)
		}
		return bytes.Compare(out[i].ID[:], out[j].ID[:]) > 0
	})
	total := int64(len(out))
	if skip < 0 || skip >= len(out) {
		return []*models.Notification{}, total, nil
	}
	out = out[skip:]
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, total, nil
}

// each runs fn on every notification owned by userID whose id is in ids and counts the hits.
func (r *Notifications) each(userID utils.SixID, ids []utils.SixID, fn func(*models.Notification) bool) int64 {
	var n int64
	for _, id := range ids {
		item, ok := r.items[id]
		if !ok || item.User != userID {
			continue
		}
		if fn(item) {
			n++
		}
	}
	return n
}

func (r *Notifications) MarkRead(_ context.Context, userID utils.SixID, ids []utils.SixID) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.each(userID, ids, func(n *models.Notification) bool {
		if n.IsRead {
			return false
		}
		n.IsRead = true
		return true
	}), nil
}

func (r *Notifications) Delete(_ context.Context, userID utils.SixID, ids []utils.SixID) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.each(userID, ids, func(n *models.Notification) bool {
		delete(r.items, n.ID)
		return true
	}), nil
}

func (r *Notifications) deleteWhere(match func(*models.Notification) bool) int64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	var n int64
	for id, item := range r.items {
		if match(item) {
			delete(r.items, id)
			n++
		}
	}
	return n
}

func (r *Notifications) DeleteForUser(_ context.Context, userID utils.SixID) (int64, error) {
	return r.deleteWhere(func(n *models.Notification) bool { return n.User == userID }), nil
}

func (r *Notifications) CountUnread(_ context.Context, userID utils.SixID) (int64, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var n int64
	for _, item := range r.items {
		if item.User == userID && !item.IsRead {
			n++
		}
	}
	return n, nil
}

func (r *Notifications) DeleteOlderThan(_ context.Context, cutoff time.Time) (int64, error) {
	return r.deleteWhere(func(n *models.Notification) bool { return n.CreatedAt.Before(cutoff) }), nil
}
