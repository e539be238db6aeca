package services

import (
	"context"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"go.uber.org/zap"

	"github.com/pr0br0/cyboard/internal/events"
	"github.com/pr0br0/cyboard/internal/models"
	"github.com/pr0br0/cyboard/internal/repository"
	"github.com/pr0br0/cyboard/internal/utils"
)

const DefaultThreadPageSize = 50

// MessageInput is a message about a listing. A zero Recipient means the listing author.
type MessageInput struct {
	Recipient utils.SixID `json:"recipient"`
	Listing   utils.SixID `json:"listing"`
	Body      string      `json:"body"`
}

// ConversationView is a conversation with the peer's public profile attached.
type ConversationView struct {
	models.Conversation
	PeerUser *models.PublicUser `json:"peerUser,omitempty"`
}

type MessagePage = PageResult[*models.Message]

type IMessageService interface {
	Send(ctx context.Context, senderID utils.SixID, in MessageInput) (*models.Message, error)
	Conversations(ctx context.Context, userID utils.SixID) ([]ConversationView, error)
	// Thread returns the messages exchanged with peer and marks the incoming ones read.
	Thread(ctx context.Context, userID, peer utils.SixID, page, limit int) (*MessagePage, error)
	MarkRead(ctx context.Context, userID, peer utils.SixID) (int64, error)
	UnreadCount(ctx context.Context, userID utils.SixID) (int64, error)
	// Delete removes a message; only its sender or recipient may do so.
	Delete(ctx context.Context, userID, messageID utils.SixID) error
}

type messageService struct {
	store         *repository.Store
	notifications INotificationService
	publisher     events.Publisher
	logger        *zap.Logger
	now           func() time.Time
}

func NewMessageService(store *repository.Store, notifications INotificationService, publisher events.Publisher, logger *zap.Logger) IMessageService {
	return &messageService{
		store:         store,
		notifications: notifications,
		publisher:     publisher,
		logger:        logger,
		now:           func() time.Time { return time.Now().UTC() },
	}
}

func (s *messageService) Send(ctx context.Context, senderID utils.SixID, in MessageInput) (*models.Message, error) {
	body := strings.TrimSpace(in.Body)
	var v validator
	v.check(body != "", "body", "Message cannot be empty")
	v.check(utf8.RuneCountInString(body) <= models.MessageMaxLen, "body", "Message must be at most 2000 characters")
	v.check(!in.Listing.IsZero(), "listing", "Required")
	if err := v.err(); err != nil {
		return nil, err
	}

	listing, err := s.store.Listings.FindByID(ctx, in.Listing)
	if err != nil {
		return nil, err
	}
	if listing.Status == models.ListingDeleted {
		return nil, fmt.Errorf("listing %s: %w", in.Listing, ErrNotFound)
	}
	recipientID := in.Recipient
	if recipientID.IsZero() {
		recipientID = listing.Author
	}
	if recipientID == senderID {
		return nil, ErrSelfMessage
	}
	if _, err := s.store.Users.FindByID(ctx, recipientID); err != nil {
		return nil, err
	}

	m := &models.Message{
		Sender:    senderID,
		Recipient: recipientID,
		Listing:   listing.ID,
		Body:      body,
		CreatedAt: s.now(),
	}
	if err := s.store.Messages.Create(ctx, m); err != nil {
		return nil, err
	}

	_, err = s.notifications.Send(ctx, NotificationInput{
		UserID: recipientID,
		Type:   models.NotificationNewMessage,
		Metadata: map[string]string{
			"listingId":    listing.ID.String(),
			"listingTitle": listing.Title.En,
			"senderId":     senderID.String(),
		},
		Link: "/messages/" + senderID.String(),
	})
	if err != nil {
		s.logger.Warn("Failed to notify message recipient", zap.String("message_id", m.ID.String()), zap.Error(err))
	}
	err = s.publisher.Publish(ctx, events.SubjectMessageSent, events.MessageEvent{
		MessageID:   m.ID.String(),
		SenderID:    senderID.String(),
		RecipientID: recipientID.String(),
		ListingID:   listing.ID.String(),
		At:          m.CreatedAt,
	})
	if err != nil {
		s.logger.Warn("Failed to publish message event", zap.String("message_id", m.ID.String()), zap.Error(err))
	}
	return m, nil
}

func (s *messageService) Conversations(ctx context.Context, userID utils.SixID) ([]ConversationView, error) {
	conversations, err := s.store.Messages.Conversations(ctx, userID)
	if err != nil {
		return nil, err
	}
	peers := make([]utils.SixID, len(conversations))
	for i, c := range conversations {
		peers[i] = c.Peer
	}
	users, err := s.store.Users.FindByIDs(ctx, peers)
	if err != nil {
		return nil, err
	}
	byID := make(map[utils.SixID]models.PublicUser, len(users))
	for _, u := range users {
		byID[u.ID] = u.Public()
	}

	out := make([]ConversationView, len(conversations))
	for i, c := range conversations {
		out[i] = ConversationView{Conversation: c}
		if p, ok := byID[c.Peer]; ok {
			out[i].PeerUser = &p
		}
	}
	return out, nil
}

func (s *messageService) Thread(ctx context.Context, userID, peer utils.SixID, page, limit int) (*MessagePage, error) {
	p := models.NewPage(page, limit, DefaultThreadPageSize)
	items, total, err := s.store.Messages.Thread(ctx, userID, peer, p.Skip(), p.Size)
	if err != nil {
		return nil, err
	}
	if _, err := s.store.Messages.MarkRead(ctx, userID, peer, s.now()); err != nil {
		s.logger.Warn("Failed to mark thread read", zap.String("user_id", userID.String()), zap.Error(err))
	}
	return &MessagePage{Items: items, Pagination: p.Paginate(int(total))}, nil
}

func (s *messageService) MarkRead(ctx context.Context, userID, peer utils.SixID) (int64, error) {
	return s.store.Messages.MarkRead(ctx, userID, peer, s.now())
}

func (s *messageService) UnreadCount(ctx context.Context, userID utils.SixID) (int64, error) {
	return s.store.Messages.CountUnread(ctx, userID)
}

func (s *messageService) Delete(ctx context.Context, userID, messageID utils.SixID) error {
	m, err := s.store.Messages.FindByID(ctx, messageID)
	if err != nil {
		return err
	}
	if m.Sender != userID && m.Recipient != userID {
		return ErrForbidden
	}
	return s.store.Messages.Delete(ctx, messageID)
}
