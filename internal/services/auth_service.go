package services

import (
	"context"
	"errors"
	"fmt"
	"net/mail"
	"strings"
	"time"
	"unicode/utf8"

	"go.uber.org/zap"

	"github.com/pr0br0/cyboard/internal/auth"
	"github.com/pr0br0/cyboard/internal/config"
	"github.com/pr0br0/cyboard/internal/models"
	"github.com/pr0br0/cyboard/internal/repository"
	"github.com/pr0br0/cyboard/internal/utils"
)

const (
	PasswordMinLen = 6
	NameMinLen     = 2
	NameMaxLen     = 50
	phoneCodeLen   = 6
)

// RegisterInput is the body of a registration request.
type RegisterInput struct {
	Email    string `json:"email"`
	Password string `json:"password"`
	Name     string `json:"name"`
	Phone    string `json:"phone"`
	Language string `json:"language"`
}

// AuthResult is returned by every operation that signs a user in.
type AuthResult struct {
	Token string       `json:"token"`
	User  *models.User `json:"user"`
}

// IAuthService covers credentials, tokens and account verification.
type IAuthService interface {
	Register(ctx context.Context, in RegisterInput) (*AuthResult, error)
	Login(ctx context.Context, email, password string) (*AuthResult, error)
	// Authenticate resolves a bearer token to an active user.
	Authenticate(ctx context.Context, token string) (*models.User, error)
	VerifyEmail(ctx context.Context, token string) error
	SendPhoneCode(ctx context.Context, userID utils.SixID, number string) error
	VerifyPhone(ctx context.Context, userID utils.SixID, code string) error
	ForgotPassword(ctx context.Context, email string) error
	ResetPassword(ctx context.Context, token, password string) (*AuthResult, error)
	ChangePassword(ctx context.Context, userID utils.SixID, current, next string) error
	Logout(ctx context.Context, userID utils.SixID) error
}

type authService struct {
	users   repository.Users
	issuer  *auth.Issuer
	hasher  auth.Hasher
	mailer  Mailer
	codes   CodeSender
	cfg     config.AuthConfig
	baseURL string
	logger  *zap.Logger
	now     func() time.Time
}

// NewAuthService creates a new AuthService.
func NewAuthService(users repository.Users, issuer *auth.Issuer, cfg config.AuthConfig, baseURL string,
	mailer Mailer, codes CodeSender, logger *zap.Logger) IAuthService {
	return &authService{
		users:   users,
		issuer:  issuer,
		hasher:  auth.NewHasher(cfg.BcryptCost),
		mailer:  mailer,
		codes:   codes,
		cfg:     cfg,
		baseURL: strings.TrimRight(baseURL, "/"),
		logger:  logger,
		now:     func() time.Time { return time.Now().UTC() },
	}
}

// NormalizeEmail trims and lowercases an address.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

func validEmail(email string) bool {
	addr, err := mail.ParseAddress(email)
	return err == nil && addr.Address == email
}

func validatePassword(v *validator, field, password string) {
	v.check(utf8.RuneCountInString(password) >= PasswordMinLen, field,
		fmt.Sprintf("Password must be at least %d characters long", PasswordMinLen))
}

func validateName(v *validator, name string) {
	n := utf8.RuneCountInString(name)
	v.check(n >= NameMinLen && n <= NameMaxLen, "name",
		fmt.Sprintf("Name must be between %d and %d characters", NameMinLen, NameMaxLen))
}

func (s *authService) Register(ctx context.Context, in RegisterInput) (*AuthResult, error) {
	in.Email = NormalizeEmail(in.Email)
	in.Name = strings.TrimSpace(in.Name)
	in.Phone = strings.TrimSpace(in.Phone)

	var v validator
	v.check(validEmail(in.Email), "email", "Please enter a valid email")
	validatePassword(&v, "password", in.Password)
	validateName(&v, in.Name)
	if in.Language != "" {
		v.check(models.IsLanguage(in.Language), "language", "Unsupported language")
	}
	if err := v.err(); err != nil {
		return nil, err
	}

	if _, err := s.users.FindByEmail(ctx, in.Email); err == nil {
		return nil, ErrEmailExists
	} else if !errors.Is(err, repository.ErrNotFound) {
		return nil, err
	}
	if in.Phone != "" {
		if _, err := s.users.FindByPhone(ctx, in.Phone); err == nil {
			return nil, ErrPhoneExists
		} else if !errors.Is(err, repository.ErrNotFound) {
			return nil, err
		}
	}

	hash, err := s.hasher.HashPassword(in.Password)
	if err != nil {
		return nil, err
	}
	now := s.now()
	prefs := models.DefaultPreferences()
	if in.Language != "" {
		prefs.Language = in.Language
	}
	user := &models.User{
		Email:        in.Email,
		PasswordHash: hash,
		Name:         in.Name,
		Phone:        models.PhoneInfo{Number: in.Phone},
		Role:         models.RoleUser,
		Status:       models.UserStatusActive,
		Preferences:  prefs,
		Listings:     []utils.SixID{},
		Favorites:    []utils.SixID{},
		LastLogin:    &now,
		LastActive:   &now,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if err := s.users.Create(ctx, user); err != nil {
		if errors.Is(err, repository.ErrDuplicate) {
			return nil, ErrEmailExists
		}
		return nil, fmt.Errorf("create user: %w", err)
	}
	s.logger.Info("User registered", zap.String("user_id", user.ID.String()))

	s.sendVerification(ctx, user)
	if user.Phone.Number != "" {
		if err := s.issuePhoneCode(ctx, user); err != nil {
			s.logger.Warn("Failed to issue phone code on registration", zap.String("user_id", user.ID.String()), zap.Error(err))
		}
	}
	return s.signIn(user)
}

func (s *authService) signIn(user *models.User) (*AuthResult, error) {
	token, err := s.issuer.IssueAuthToken(user.ID, user.Role)
	if err != nil {
		return nil, err
	}
	return &AuthResult{Token: token, User: user}, nil
}

func (s *authService) sendVerification(ctx context.Context, user *models.User) {
	token, err := s.issuer.IssuePurposeToken(user.ID, auth.PurposeVerifyEmail, s.cfg.EmailTokenTTL)
	if err != nil {
		s.logger.Error("Failed to issue verification token", zap.String("user_id", user.ID.String()), zap.Error(err))
		return
	}
	s.mail(ctx, user, TemplateVerifyEmail, map[string]string{
		"url": s.baseURL + "/verify-email?token=" + token,
	})
}

// mail queues an email; failures are logged and never surface to the caller.
func (s *authService) mail(ctx context.Context, user *models.User, templateID string, data map[string]string) {
	if data == nil {
		data = map[string]string{}
	}
	data["name"] = user.Name
	err := s.mailer.SendEmail(ctx, EmailJob{
		To:         user.Email,
		TemplateID: templateID,
		Locale:     user.Preferences.Language,
		Data:       data,
	})
	if err != nil {
		s.logger.Warn("Failed to send email", zap.String("template", templateID), zap.String("user_id", user.ID.String()), zap.Error(err))
	}
}

func (s *authService) Login(ctx context.Context, email, password string) (*AuthResult, error) {
	user, err := s.users.FindByEmail(ctx, NormalizeEmail(email))
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrInvalidCredentials
		}
		return nil, err
	}
	if user.Status != models.UserStatusActive || !auth.CheckPasswordHash(password, user.PasswordHash) {
		return nil, ErrInvalidCredentials
	}

	now := s.now()
	if err := s.users.Touch(ctx, user.ID, now, true); err != nil {
		s.logger.Warn("Failed to record login", zap.String("user_id", user.ID.String()), zap.Error(err))
	}
	user.LastLogin, user.LastActive = &now, &now
	return s.signIn(user)
}

func (s *authService) Authenticate(ctx context.Context, token string) (*models.User, error) {
	claims, err := s.issuer.Validate(token, auth.PurposeAuth)
	if err != nil {
		return nil, err
	}
	id, err := claims.ID()
	if err != nil {
		return nil, auth.ErrTokenInvalid
	}
	user, err := s.users.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrUnauthorized
		}
		return nil, err
	}
	if user.Status != models.UserStatusActive {
		return nil, ErrAccountDisabled
	}
	return user, nil
}

func (s *authService) VerifyEmail(ctx context.Context, token string) error {
	claims, err := s.issuer.Validate(token, auth.PurposeVerifyEmail)
	if err != nil {
		return ErrInvalidOrExpired
	}
	id, _ := claims.ID()
	user, err := s.users.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return ErrInvalidOrExpired
		}
		return err
	}
	if user.EmailVerified {
		return nil
	}
	user.EmailVerified = true
	user.UpdatedAt = s.now()
	return s.users.Update(ctx, user)
}

// issuePhoneCode stores the bcrypt hash of a fresh code and hands the code to the CodeSender.
func (s *authService) issuePhoneCode(ctx context.Context, user *models.User) error {
	code, err := auth.IssueNumericCode(phoneCodeLen)
	if err != nil {
		return err
	}
	hash, err := s.hasher.HashPassword(code)
	if err != nil {
		return err
	}
	expires := s.now().Add(s.cfg.PhoneCodeTTL)
	user.Phone.CodeHash = hash
	user.Phone.CodeExpiresAt = &expires
	user.UpdatedAt = s.now()
	if err := s.users.Update(ctx, user); err != nil {
		if errors.Is(err, repository.ErrDuplicate) {
			return ErrPhoneExists
		}
		return err
	}
	return s.codes.SendCode(ctx, user.Phone.Number, code)
}

func (s *authService) SendPhoneCode(ctx context.Context, userID utils.SixID, number string) error {
	user, err := s.users.FindByID(ctx, userID)
	if err != nil {
		return err
	}
	number = strings.TrimSpace(number)
	if number != "" && number != user.Phone.Number {
		if other, err := s.users.FindByPhone(ctx, number); err == nil && other.ID != user.ID {
			return ErrPhoneExists
		} else if err != nil && !errors.Is(err, repository.ErrNotFound) {
			return err
		}
		user.Phone = models.PhoneInfo{Number: number}
	}
	if user.Phone.Number == "" {
		return NewValidationError("phone", "Phone number is required")
	}
	if user.Phone.Verified {
		return NewValidationError("phone", "Phone number is already verified")
	}
	return s.issuePhoneCode(ctx, user)
}

func (s *authService) VerifyPhone(ctx context.Context, userID utils.SixID, code string) error {
	user, err := s.users.FindByID(ctx, userID)
	if err != nil {
		return err
	}
	p := user.Phone
	if p.CodeHash == "" || p.CodeExpiresAt == nil || !s.now().Before(*p.CodeExpiresAt) ||
		!auth.CheckPasswordHash(strings.TrimSpace(code), p.CodeHash) {
		return ErrInvalidOrExpired
	}
	user.Phone = models.PhoneInfo{Number: p.Number, Verified: true}
	user.UpdatedAt = s.now()
	return s.users.Update(ctx, user)
}

// ForgotPassword never reveals whether the address is registered.
func (s *authService) ForgotPassword(ctx context.Context, email string) error {
	user, err := s.users.FindByEmail(ctx, NormalizeEmail(email))
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			s.logger.Info("Password reset requested for unknown email")
			return nil
		}
		return err
	}

	token, err := s.issuer.IssuePurposeToken(user.ID, auth.PurposeReset, s.cfg.ResetTokenTTL)
	if err != nil {
		return err
	}
	expires := s.now().Add(s.cfg.ResetTokenTTL)
	user.ResetTokenHash = auth.HashToken(token)
	user.ResetExpiresAt = &expires
	user.UpdatedAt = s.now()
	if err := s.users.Update(ctx, user); err != nil {
		return err
	}
	s.mail(ctx, user, TemplateResetPassword, map[string]string{
		"url": s.baseURL + "/reset-password?token=" + token,
	})
	return nil
}

func (s *authService) ResetPassword(ctx context.Context, token, password string) (*AuthResult, error) {
	var v validator
	validatePassword(&v, "password", password)
	if err := v.err(); err != nil {
		return nil, err
	}

	claims, err := s.issuer.Validate(token, auth.PurposeReset)
	if err != nil {
		return nil, ErrInvalidOrExpired
	}
	id, _ := claims.ID()
	user, err := s.users.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrInvalidOrExpired
		}
		return nil, err
	}
	if user.ResetTokenHash == "" || user.ResetTokenHash != auth.HashToken(token) ||
		user.ResetExpiresAt == nil || !s.now().Before(*user.ResetExpiresAt) {
		return nil, ErrInvalidOrExpired
	}

	hash, err := s.hasher.HashPassword(password)
	if err != nil {
		return nil, err
	}
	user.PasswordHash = hash
	user.ResetTokenHash = ""
	user.ResetExpiresAt = nil
	user.UpdatedAt = s.now()
	if err := s.users.Update(ctx, user); err != nil {
		return nil, err
	}
	s.mail(ctx, user, TemplatePasswordChanged, nil)
	return s.signIn(user)
}

func (s *authService) ChangePassword(ctx context.Context, userID utils.SixID, current, next string) error {
	var v validator
	validatePassword(&v, "newPassword", next)
	if err := v.err(); err != nil {
		return err
	}
	user, err := s.users.FindByID(ctx, userID)
	if err != nil {
		return err
	}
	if !auth.CheckPasswordHash(current, user.PasswordHash) {
		return ErrInvalidCredentials
	}
	hash, err := s.hasher.HashPassword(next)
	if err != nil {
		return err
	}
	user.PasswordHash = hash
	user.UpdatedAt = s.now()
	if err := s.users.Update(ctx, user); err != nil {
		return err
	}
	s.mail(ctx, user, TemplatePasswordChanged, nil)
	return nil
}

// Logout records activity. Tokens are stateless and expire on their own.
func (s *authService) Logout(ctx context.Context, userID utils.SixID) error {
	return s.users.Touch(ctx, userID, s.now(), false)
}
