package services

import (
	"context"
	"fmt"
	"regexp"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/pr0br0/cyboard/internal/models"
	"github.com/pr0br0/cyboard/internal/repository"
	"github.com/pr0br0/cyboard/internal/utils"
)

// DefaultNotificationPageSize is used when List gets no limit.
const DefaultNotificationPageSize = 20

type notificationTemplate struct {
	title   models.Localized
	message models.Localized
}

var notificationTemplates = map[models.NotificationType]notificationTemplate{
	models.NotificationNewMessage: {
		title:   models.Localized{En: "New Message", Ru: "Новое сообщение"},
		message: models.Localized{En: `You have a new message regarding "{listingTitle}"`, Ru: `У вас новое сообщение по объявлению "{listingTitle}"`},
	},
	models.NotificationListingExpired: {
		title:   models.Localized{En: "Listing Expired", Ru: "Срок объявления истек"},
		message: models.Localized{En: `Your listing "{listingTitle}" has expired`, Ru: `Срок размещения объявления "{listingTitle}" истек`},
	},
	models.NotificationListingApproved: {
		title:   models.Localized{En: "Listing Approved", Ru: "Объявление одобрено"},
		message: models.Localized{En: `Your listing "{listingTitle}" has been approved`, Ru: `Ваше объявление "{listingTitle}" было одобрено`},
	},
	models.NotificationListingRejected: {
		title:   models.Localized{En: "Listing Rejected", Ru: "Объявление отклонено"},
		message: models.Localized{En: `Your listing "{listingTitle}" has been rejected: {reason}`, Ru: `Ваше объявление "{listingTitle}" было отклонено: {reason}`},
	},
	models.NotificationListingView: {
		title:   models.Localized{En: "Listing Views", Ru: "Просмотры объявления"},
		message: models.Localized{En: `Your listing "{listingTitle}" has reached {views} views`, Ru: `Ваше объявление "{listingTitle}" набрало {views} просмотров`},
	},
	models.NotificationAccountUpdate: {
		title:   models.Localized{En: "Account Updated", Ru: "Учетная запись обновлена"},
		message: models.Localized{En: "Your account has been updated: {change}", Ru: "Ваша учетная запись обновлена: {change}"},
	},
	models.NotificationSystem: {
		title:   models.Localized{En: "System Notice", Ru: "Системное уведомление"},
		message: models.Localized{En: "{message}", Ru: "{message}"},
	},
}

var placeholder = regexp.MustCompile(`\{(\w+)\}`)

// substitute replaces {key} with metadata[key]. Unknown or empty keys are left as is.
func substitute(text string, metadata map[string]string) string {
	return placeholder.ReplaceAllStringFunc(text, func(match string) string {
		key := match[1 : len(match)-1]
		if v := metadata[key]; v != "" {
			return v
		}
		return match
	})
}

// RenderNotification fills the template for t with metadata.
func RenderNotification(t models.NotificationType, metadata map[string]string) (title, message models.Localized, err error) {
	tmpl, ok := notificationTemplates[t]
	if !ok {
		return title, message, fmt.Errorf("%w: %s", ErrUnknownNotificationType, t)
	}
	title = models.Localized{En: substitute(tmpl.title.En, metadata), Ru: substitute(tmpl.title.Ru, metadata)}
	message = models.Localized{En: substitute(tmpl.message.En, metadata), Ru: substitute(tmpl.message.Ru, metadata)}
	return title, message, nil
}

// NotificationInput describes a notification to send.
type NotificationInput struct {
	UserID    utils.SixID
	Type      models.NotificationType
	Metadata  map[string]string
	Link      string
	SkipEmail bool
}

type NotificationPage = PageResult[*models.Notification]

type INotificationService interface {
	Send(ctx context.Context, in NotificationInput) (*models.Notification, error)
	List(ctx context.Context, userID utils.SixID, unreadOnly bool, page, limit int) (*NotificationPage, error)
	MarkRead(ctx context.Context, userID utils.SixID, ids []utils.SixID) (int64, error)
	Delete(ctx context.Context, userID utils.SixID, ids []utils.SixID) (int64, error)
	UnreadCount(ctx context.Context, userID utils.SixID) (int64, error)
	PurgeOlderThan(ctx context.Context, age time.Duration) (int64, error)
}

type notificationService struct {
	notifications repository.Notifications
	users         repository.Users
	mailer        Mailer
	baseURL       string
	logger        *zap.Logger
	now           func() time.Time
}

func NewNotificationService(notifications repository.Notifications, users repository.Users, mailer Mailer,
	baseURL string, logger *zap.Logger) INotificationService {
	return &notificationService{
		notifications: notifications,
		users:         users,
		mailer:        mailer,
		baseURL:       strings.TrimRight(baseURL, "/"),
		logger:        logger,
		now:           func() time.Time { return time.Now().UTC() },
	}
}

// Send persists the notification and, when the user opted in, emails it.
func (s *notificationService) Send(ctx context.Context, in NotificationInput) (*models.Notification, error) {
	title, message, err := RenderNotification(in.Type, in.Metadata)
	if err != nil {
		return nil, err
	}
	n := &models.Notification{
		User:      in.UserID,
		Type:      in.Type,
		Title:     title,
		Message:   message,
		Link:      in.Link,
		Metadata:  in.Metadata,
		CreatedAt: s.now(),
	}
	if err := s.notifications.Create(ctx, n); err != nil {
		return nil, fmt.Errorf("create notification: %w", err)
	}

	if !in.SkipEmail {
		s.email(ctx, n)
	}
	return n, nil
}

func (s *notificationService) email(ctx context.Context, n *models.Notification) {
	user, err := s.users.FindByID(ctx, n.User)
	if err != nil {
		s.logger.Warn("Notification email skipped, user lookup failed", zap.String("user_id", n.User.String()), zap.Error(err))
		return
	}
	if user.Email == "" || !user.Preferences.Notifications.Email {
		return
	}
	lang := user.Preferences.Language
	link := ""
	if n.Link != "" {
		link = s.baseURL + n.Link
	}
	err = s.mailer.SendEmail(ctx, EmailJob{
		To:         user.Email,
		TemplateID: TemplateNotification,
		Locale:     lang,
		Data: map[string]string{
			"name":    user.Name,
			"title":   n.Title.Get(lang),
			"message": n.Message.Get(lang),
			"link":    link,
		},
	})
	if err != nil {
		s.logger.Warn("Failed to send notification email", zap.String("notification_id", n.ID.String()), zap.Error(err))
	}
}

func (s *notificationService) List(ctx context.Context, userID utils.SixID, unreadOnly bool, page, limit int) (*NotificationPage, error) {
	p := models.NewPage(page, limit, DefaultNotificationPageSize)
	items, total, err := s.notifications.List(ctx, userID, unreadOnly, p.Skip(), p.Size)
	if err != nil {
		return nil, err
	}
	return &NotificationPage{Items: items, Pagination: p.Paginate(int(total))}, nil
}

func (s *notificationService) MarkRead(ctx context.Context, userID utils.SixID, ids []utils.SixID) (int64, error) {
	if len(ids) == 0 {
		return 0, NewValidationError("notificationIds", "At least one notification id is required")
	}
	return s.notifications.MarkRead(ctx, userID, ids)
}

func (s *notificationService) Delete(ctx context.Context, userID utils.SixID, ids []utils.SixID) (int64, error) {
	if len(ids) == 0 {
		return 0, NewValidationError("notificationIds", "At least one notification id is required")
	}
	return s.notifications.Delete(ctx, userID, ids)
}

func (s *notificationService) UnreadCount(ctx context.Context, userID utils.SixID) (int64, error) {
	return s.notifications.CountUnread(ctx, userID)
}

func (s *notificationService) PurgeOlderThan(ctx context.Context, age time.Duration) (int64, error) {
	n, err := s.notifications.DeleteOlderThan(ctx, s.now().Add(-age))
	if err != nil {
		return 0, err
	}
	s.logger.Info("Old notifications purged", zap.Int64("deleted", n), zap.Duration("age", age))
	return n, nil
}
