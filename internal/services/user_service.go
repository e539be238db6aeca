package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"go.uber.org/zap"

	"github.com/pr0br0/cyboard/internal/auth"
	"github.com/pr0br0/cyboard/internal/models"
	"github.com/pr0br0/cyboard/internal/repository"
	"github.com/pr0br0/cyboard/internal/utils"
)

const (
	LocationMaxLen = 100
	AvatarMaxLen   = 500
)

// IUserService covers profile management for the signed-in user and public profiles.
type IUserService interface {
	GetProfile(ctx context.Context, userID utils.SixID) (*models.User, error)
	UpdateProfile(ctx context.Context, userID utils.SixID, patch models.UserPatch) (*models.User, error)
	UpdateNotificationSettings(ctx context.Context, userID utils.SixID, prefs models.NotificationPreferences) (*models.User, error)
	// DeleteAccount removes the user after confirming the password. Their listings go through the delete cascade.
	DeleteAccount(ctx context.Context, userID utils.SixID, password string) error
	PublicProfile(ctx context.Context, userID utils.SixID) (*models.PublicUser, error)
	RefreshStats(ctx context.Context, userID utils.SixID) (models.UserStats, error)
}

type userService struct {
	store         *repository.Store
	cascade       ICascadeService
	notifications INotificationService
	logger        *zap.Logger
	now           func() time.Time
}

func NewUserService(store *repository.Store, cascade ICascadeService, notifications INotificationService, logger *zap.Logger) IUserService {
	return &userService{
		store:         store,
		cascade:       cascade,
		notifications: notifications,
		logger:        logger,
		now:           func() time.Time { return time.Now().UTC() },
	}
}

func (s *userService) GetProfile(ctx context.Context, userID utils.SixID) (*models.User, error) {
	return s.store.Users.FindByID(ctx, userID)
}

func (s *userService) UpdateProfile(ctx context.Context, userID utils.SixID, patch models.UserPatch) (*models.User, error) {
	user, err := s.store.Users.FindByID(ctx, userID)
	if err != nil {
		return nil, err
	}

	var v validator
	var changed []string
	if patch.Name != nil {
		name := strings.TrimSpace(*patch.Name)
		validateName(&v, name)
		user.Name = name
		changed = append(changed, "name")
	}
	if patch.Phone != nil {
		number := strings.TrimSpace(*patch.Phone)
		if number != user.Phone.Number {
			if number != "" {
				if other, err := s.store.Users.FindByPhone(ctx, number); err == nil && other.ID != userID {
					return nil, ErrPhoneExists
				} else if err != nil && !errors.Is(err, repository.ErrNotFound) {
					return nil, err
				}
			}
			user.Phone = models.PhoneInfo{Number: number}
			changed = append(changed, "phone")
		}
	}
	if patch.Avatar != nil {
		avatar := strings.TrimSpace(*patch.Avatar)
		v.check(utf8.RuneCountInString(avatar) <= AvatarMaxLen, "avatar", "Too long")
		user.Avatar = avatar
		changed = append(changed, "avatar")
	}
	if patch.Location != nil {
		location := strings.TrimSpace(*patch.Location)
		v.check(utf8.RuneCountInString(location) <= LocationMaxLen, "location", "Must be at most 100 characters")
		user.Location = location
		changed = append(changed, "location")
	}
	if p := patch.Preferences; p != nil {
		v.check(models.IsLanguage(p.Language), "preferences.language", "Unsupported language")
		v.check(models.IsCurrency(p.Currency), "preferences.currency", "Must be EUR or USD")
		user.Preferences = *p
		changed = append(changed, "preferences")
	}
	if err := v.err(); err != nil {
		return nil, err
	}
	if len(changed) == 0 {
		return user, nil
	}

	user.UpdatedAt = s.now()
	if err := s.store.Users.Update(ctx, user); err != nil {
		if errors.Is(err, repository.ErrDuplicate) {
			return nil, ErrPhoneExists
		}
		return nil, err
	}
	s.accountUpdated(ctx, userID, strings.Join(changed, ", "))
	return user, nil
}

func (s *userService) accountUpdated(ctx context.Context, userID utils.SixID, change string) {
	_, err := s.notifications.Send(ctx, NotificationInput{
		UserID:    userID,
		Type:      models.NotificationAccountUpdate,
		Metadata:  map[string]string{"change": change},
		Link:      "/profile",
		SkipEmail: true,
	})
	if err != nil {
		s.logger.Warn("Failed to record account update", zap.String("user_id", userID.String()), zap.Error(err))
	}
}

func (s *userService) UpdateNotificationSettings(ctx context.Context, userID utils.SixID, prefs models.NotificationPreferences) (*models.User, error) {
	user, err := s.store.Users.FindByID(ctx, userID)
	if err != nil {
		return nil, err
	}
	user.Preferences.Notifications = prefs
	user.UpdatedAt = s.now()
	if err := s.store.Users.Update(ctx, user); err != nil {
		return nil, err
	}
	return user, nil
}

func (s *userService) DeleteAccount(ctx context.Context, userID utils.SixID, password string) error {
	if password == "" {
		return NewValidationError("password", "Password is required")
	}
	user, err := s.store.Users.FindByID(ctx, userID)
	if err != nil {
		return err
	}
	if !auth.CheckPasswordHash(password, user.PasswordHash) {
		return ErrInvalidCredentials
	}

	listings, _, err := s.store.Listings.Find(ctx, repository.ListingQuery{AuthorID: &userID, Statuses: visibleStatuses})
	if err != nil {
		return err
	}
	for _, l := range listings {
		if _, err := s.cascade.Start(ctx, l); err != nil {
			return fmt.Errorf("delete listing %s of user %s: %w", l.ID, userID, err)
		}
	}
	if _, err := s.store.Notifications.DeleteForUser(ctx, userID); err != nil {
		return err
	}
	if _, err := s.store.Messages.DeleteForUser(ctx, userID); err != nil {
		return err
	}
	if err := s.store.Users.Delete(ctx, userID); err != nil {
		return err
	}
	s.logger.Info("Account deleted", zap.String("user_id", userID.String()), zap.Int("listings", len(listings)))
	return nil
}

func (s *userService) PublicProfile(ctx context.Context, userID utils.SixID) (*models.PublicUser, error) {
	user, err := s.store.Users.FindByID(ctx, userID)
	if err != nil {
		return nil, err
	}
	if user.Status == models.UserStatusBanned {
		return nil, fmt.Errorf("user %s: %w", userID, ErrNotFound)
	}
	public := user.Public()
	return &public, nil
}

func (s *userService) RefreshStats(ctx context.Context, userID utils.SixID) (models.UserStats, error) {
	user, err := s.store.Users.FindByID(ctx, userID)
	if err != nil {
		return models.UserStats{}, err
	}
	listings, total, err := s.store.Listings.Find(ctx, repository.ListingQuery{AuthorID: &userID, Statuses: visibleStatuses})
	if err != nil {
		return models.UserStats{}, err
	}
	now := s.now()
	stats := models.UserStats{TotalListings: int(total), TotalResponses: user.Stats.TotalResponses}
	for _, l := range listings {
		if l.IsLive(now) {
			stats.ActiveListings++
		}
		stats.TotalViews += l.Views.Total
	}
	if err := s.store.Users.SetStats(ctx, userID, stats); err != nil {
		return models.UserStats{}, err
	}
	return stats, nil
}
