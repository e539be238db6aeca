package memstore

import (
	"bytes"
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/pr0br0/cyboard/internal/models"
	"github.com/pr0br0/cyboard/internal/repository"
	"github.com/pr0br0/cyboard/internal/utils"
)

type Messages struct {
	mu    sync.RWMutex
	items map[utils.SixID]*models.Message
}

func NewMessages() *Messages {
	return &Messages{items: make(map[utils.SixID]*models.Message)}
}

func (r *Messages) Create(_ context.Context, m *models.Message) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	m.GenIDIfEmpty()
	r.items[m.ID] = cloneMessage(m)
	return nil
}

func (r *Messages) FindByID(_ context.Context, id utils.SixID) (*models.Message, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	m, ok := r.items[id]
	if !ok {
		return nil, fmt.Errorf("find message %s: %w", id, repository.ErrNotFound)
	}
	return cloneMessage(m), nil
}

func (r *Messages) Delete(_ context.Context, id utils.SixID) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.items[id]; !ok {
		return fmt.Errorf("delete message %s: %w", id, repository.ErrNotFound)
	}
	delete(r.items, id)
	return nil
}

func chronological(out []*models.Message) {
	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.Before(out[j].CreatedAt)
		}
		return bytes.Compare(out[i].ID[:], out[j].ID[:]) < 0
	})
}

func (r *Messages) Thread(_ context.Context, a, b utils.SixID, skip, limit int) ([]*models.Message, int64, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := []*models.Message{}
	for _, m := range r.items {
		if (m.Sender == a && m.Recipient == b) || (m.Sender == b && m.Recipient == a) {
			out = append(out, cloneMessage(m))
		}
	}
	chronological(out)
	total := int64(len(out))
	if skip < 0 || skip >= len(out) {
		return []*models.Message{}, total, nil
	}
	out = out[skip:]
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, total, nil
}

func (r *Messages) MarkRead(_ context.Context, recipient, sender utils.SixID, at time.Time) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var n int64
	for _, m := range r.items {
		if m.Recipient == recipient && m.Sender == sender && !m.Read {
			m.Read = true
			t := at
			m.ReadAt = &t
			n++
		}
	}
	return n, nil
}

func (r *Messages) CountUnread(_ context.Context, recipient utils.SixID) (int64, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var n int64
	for _, m := range r.items {
		if m.Recipient == recipient && !m.Read {
			n++
		}
	}
	return n, nil
}

func (r *Messages) Conversations(_ context.Context, userID utils.SixID) ([]models.Conversation, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	mine := []*models.Message{}
	for _, m := range r.items {
		if m.Sender == userID || m.Recipient == userID {
			mine = append(mine, cloneMessage(m))
		}
	}
	chronological(mine)

	byPeer := map[utils.SixID]*models.Conversation{}
	for _, m := range mine {
		peer := m.Sender
		if peer == userID {
			peer = m.Recipient
		}
		c, ok := byPeer[peer]
		if !ok {
			c = &models.Conversation{Peer: peer}
			byPeer[peer] = c
		}
		c.LastMessage = m
		if m.Recipient == userID && !m.Read {
			c.UnreadCount++
		}
	}

	out := make([]models.Conversation, 0, len(byPeer))
	for _, c := range byPeer {
		out = append(out, *c)
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].LastMessage.CreatedAt.After(out[j].LastMessage.CreatedAt)
	})
	return out, nil
}

func (r *Messages) DeleteForUser(_ context.Context, userID utils.SixID) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var n int64
	for id, m := range r.items {
		if m.Sender == userID || m.Recipient == userID {
			delete(r.items, id)
			n++
		}
	}
	return n, nil
}
