package handlers_test

import (
	"context"
	"time"

	"github.com/stretchr/testify/mock"

	"github.com/pr0br0/cyboard/internal/models"
	"github.com/pr0br0/cyboard/internal/services"
	"github.com/pr0br0/cyboard/internal/storage"
	"github.com/pr0br0/cyboard/internal/utils"
)

// --- Mocks ---

// MockAuthService
type MockAuthService struct {
	mock.Mock
}

func authResult(args mock.Arguments) (*services.AuthResult, error) {
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*services.AuthResult), args.Error(1)
}

func (m *MockAuthService) Register(ctx context.Context, in services.RegisterInput) (*services.AuthResult, error) {
	return authResult(m.Called(ctx, in))
}
func (m *MockAuthService) Login(ctx context.Context, email, password string) (*services.AuthResult, error) {
	return authResult(m.Called(ctx, email, password))
}
func (m *MockAuthService) Authenticate(ctx context.Context, token string) (*models.User, error) {
	args := m.Called(ctx, token)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.User), args.Error(1)
}
func (m *MockAuthService) VerifyEmail(ctx context.Context, token string) error {
	return m.Called(ctx, token).Error(0)
}
func (m *MockAuthService) SendPhoneCode(ctx context.Context, userID utils.SixID, number string) error {
	return m.Called(ctx, userID, number).Error(0)
}
func (m *MockAuthService) VerifyPhone(ctx context.Context, userID utils.SixID, code string) error {
	return m.Called(ctx, userID, code).Error(0)
}
func (m *MockAuthService) ForgotPassword(ctx context.Context, email string) error {
	return m.Called(ctx, email).Error(0)
}
func (m *MockAuthService) ResetPassword(ctx context.Context, token, password string) (*services.AuthResult, error) {
	return authResult(m.Called(ctx, token, password))
}
func (m *MockAuthService) ChangePassword(ctx context.Context, userID utils.SixID, current, next string) error {
	return m.Called(ctx, userID, current, next).Error(0)
}
func (m *MockAuthService) Logout(ctx context.Context, userID utils.SixID) error {
	return m.Called(ctx, userID).Error(0)
}

// MockUserService
type MockUserService struct {
	mock.Mock
}

func userResult(args mock.Arguments) (*models.User, error) {
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.User), args.Error(1)
}

func (m *MockUserService) GetProfile(ctx context.Context, userID utils.SixID) (*models.User, error) {
	return userResult(m.Called(ctx, userID))
}
func (m *MockUserService) UpdateProfile(ctx context.Context, userID utils.SixID, patch models.UserPatch) (*models.User, error) {
	return userResult(m.Called(ctx, userID, patch))
}
func (m *MockUserService) UpdateNotificationSettings(ctx context.Context, userID utils.SixID, prefs models.NotificationPreferences) (*models.User, error) {
	return userResult(m.Called(ctx, userID, prefs))
}
func (m *MockUserService) DeleteAccount(ctx context.Context, userID utils.SixID, password string) error {
	return m.Called(ctx, userID, password).Error(0)
}
func (m *MockUserService) PublicProfile(ctx context.Context, userID utils.SixID) (*models.PublicUser, error) {
	args := m.Called(ctx, userID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.PublicUser), args.Error(1)
}
func (m *MockUserService) RefreshStats(ctx context.Context, userID utils.SixID) (models.UserStats, error) {
	args := m.Called(ctx, userID)
	return args.Get(0).(models.UserStats), args.Error(1)
}

// MockCategoryService
type MockCategoryService struct {
	mock.Mock
}

func categoryResult(args mock.Arguments) (*models.Category, error) {
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Category), args.Error(1)
}

func categoriesResult(args mock.Arguments) ([]*models.Category, error) {
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*models.Category), args.Error(1)
}

func (m *MockCategoryService) Create(ctx context.Context, in models.CategoryInput) (*models.Category, error) {
	return categoryResult(m.Called(ctx, in))
}
func (m *MockCategoryService) Update(ctx context.Context, id utils.SixID, patch models.CategoryPatch) (*models.Category, error) {
	return categoryResult(m.Called(ctx, id, patch))
}
func (m *MockCategoryService) Move(ctx context.Context, id utils.SixID, parent *utils.SixID) (*models.Category, error) {
	return categoryResult(m.Called(ctx, id, parent))
}
func (m *MockCategoryService) Delete(ctx context.Context, id utils.SixID) error {
	return m.Called(ctx, id).Error(0)
}
func (m *MockCategoryService) Resolve(ctx context.Context, identifier string) (*models.Category, error) {
	return categoryResult(m.Called(ctx, identifier))
}
func (m *MockCategoryService) Get(ctx context.Context, identifier string) (*services.CategoryDetail, error) {
	args := m.Called(ctx, identifier)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*services.CategoryDetail), args.Error(1)
}
func (m *MockCategoryService) List(ctx context.Context, activeOnly bool) ([]*models.Category, error) {
	return categoriesResult(m.Called(ctx, activeOnly))
}
func (m *MockCategoryService) Tree(ctx context.Context, activeOnly bool) ([]*models.CategoryNode, error) {
	args := m.Called(ctx, activeOnly)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*models.CategoryNode), args.Error(1)
}
func (m *MockCategoryService) Children(ctx context.Context, id utils.SixID) ([]*models.Category, error) {
	return categoriesResult(m.Called(ctx, id))
}
func (m *MockCategoryService) Search(ctx context.Context, text string, limit int) ([]*models.Category, error) {
	return categoriesResult(m.Called(ctx, text, limit))
}
func (m *MockCategoryService) Popular(ctx context.Context, limit int) ([]models.CategoryCount, error) {
	args := m.Called(ctx, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]models.CategoryCount), args.Error(1)
}
func (m *MockCategoryService) Reorder(ctx context.Context, orders []models.CategoryOrder) error {
	return m.Called(ctx, orders).Error(0)
}
func (m *MockCategoryService) SubtreeIDs(ctx context.Context, identifier string) ([]utils.SixID, bool, error) {
	args := m.Called(ctx, identifier)
	ids, _ := args.Get(0).([]utils.SixID)
	return ids, args.Bool(1), args.Error(2)
}
func (m *MockCategoryService) UpdateListingCount(ctx context.Context, id utils.SixID) error {
	return m.Called(ctx, id).Error(0)
}
func (m *MockCategoryService) UpdateAllListingCounts(ctx context.Context) (int, error) {
	args := m.Called(ctx)
	return args.Int(0), args.Error(1)
}

// MockListingService
type MockListingService struct {
	mock.Mock
}

func listingResult(args mock.Arguments) (*models.Listing, error) {
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Listing), args.Error(1)
}

func listingPageResult(args mock.Arguments) (*services.ListingPage, error) {
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*services.ListingPage), args.Error(1)
}

func (m *MockListingService) Create(ctx context.Context, actor services.Actor, in models.ListingInput) (*models.Listing, error) {
	return listingResult(m.Called(ctx, actor, in))
}
func (m *MockListingService) Get(ctx context.Context, actor services.Actor, id utils.SixID, visitor string) (*models.Listing, error) {
	return listingResult(m.Called(ctx, actor, id, visitor))
}
func (m *MockListingService) Update(ctx context.Context, actor services.Actor, id utils.SixID, patch models.ListingPatch) (*models.Listing, error) {
	return listingResult(m.Called(ctx, actor, id, patch))
}
func (m *MockListingService) Delete(ctx context.Context, actor services.Actor, id utils.SixID) error {
	return m.Called(ctx, actor, id).Error(0)
}
func (m *MockListingService) ListByUser(ctx context.Context, actor services.Actor, userID utils.SixID, page, limit int) (*services.ListingPage, error) {
	return listingPageResult(m.Called(ctx, actor, userID, page, limit))
}
func (m *MockListingService) AddImages(ctx context.Context, actor services.Actor, id utils.SixID, images []models.ImageInput) (*models.Listing, error) {
	return listingResult(m.Called(ctx, actor, id, images))
}
func (m *MockListingService) DeleteImage(ctx context.Context, actor services.Actor, id, imageID utils.SixID) (*models.Listing, error) {
	return listingResult(m.Called(ctx, actor, id, imageID))
}
func (m *MockListingService) ReorderImages(ctx context.Context, actor services.Actor, id utils.SixID, order []utils.SixID) (*models.Listing, error) {
	return listingResult(m.Called(ctx, actor, id, order))
}
func (m *MockListingService) SetMainImage(ctx context.Context, actor services.Actor, id, imageID utils.SixID) (*models.Listing, error) {
	return listingResult(m.Called(ctx, actor, id, imageID))
}
func (m *MockListingService) ProcessImage(ctx context.Context, listingID, imageID utils.SixID) error {
	return m.Called(ctx, listingID, imageID).Error(0)
}
func (m *MockListingService) ToggleFavorite(ctx context.Context, actor services.Actor, id utils.SixID) (bool, error) {
	args := m.Called(ctx, actor, id)
	return args.Bool(0), args.Error(1)
}
func (m *MockListingService) Favorites(ctx context.Context, actor services.Actor, page, limit int) (*services.ListingPage, error) {
	return listingPageResult(m.Called(ctx, actor, page, limit))
}
func (m *MockListingService) Report(ctx context.Context, actor services.Actor, id utils.SixID, reason models.ReportReason, description string) error {
	return m.Called(ctx, actor, id, reason, description).Error(0)
}
func (m *MockListingService) Extend(ctx context.Context, actor services.Actor, id utils.SixID) (*models.Listing, error) {
	return listingResult(m.Called(ctx, actor, id))
}
func (m *MockListingService) SetStatus(ctx context.Context, actor services.Actor, id utils.SixID, status models.ListingStatus, note string) (*models.Listing, error) {
	return listingResult(m.Called(ctx, actor, id, status, note))
}
func (m *MockListingService) ExpireDue(ctx context.Context) (int, error) {
	args := m.Called(ctx)
	return args.Int(0), args.Error(1)
}

// MockSearchService
type MockSearchService struct {
	mock.Mock
}

func (m *MockSearchService) SearchListings(ctx context.Context, actor services.Actor, p services.SearchParams) (*services.ListingPage, error) {
	return listingPageResult(m.Called(ctx, actor, p))
}
func (m *MockSearchService) Suggest(ctx context.Context, text, lang string) ([]string, error) {
	args := m.Called(ctx, text, lang)
	titles, _ := args.Get(0).([]string)
	return titles, args.Error(1)
}
func (m *MockSearchService) Popular(ctx context.Context, limit int) ([]models.CategoryCount, error) {
	args := m.Called(ctx, limit)
	counts, _ := args.Get(0).([]models.CategoryCount)
	return counts, args.Error(1)
}
func (m *MockSearchService) Stats(ctx context.Context) (models.PriceStats, error) {
	args := m.Called(ctx)
	return args.Get(0).(models.PriceStats), args.Error(1)
}

// MockNotificationService
type MockNotificationService struct {
	mock.Mock
}

func (m *MockNotificationService) Send(ctx context.Context, in services.NotificationInput) (*models.Notification, error) {
	args := m.Called(ctx, in)
	n, _ := args.Get(0).(*models.Notification)
	return n, args.Error(1)
}
func (m *MockNotificationService) List(ctx context.Context, userID utils.SixID, unreadOnly bool, page, limit int) (*services.NotificationPage, error) {
	args := m.Called(ctx, userID, unreadOnly, page, limit)
	p, _ := args.Get(0).(*services.NotificationPage)
	return p, args.Error(1)
}
func (m *MockNotificationService) MarkRead(ctx context.Context, userID utils.SixID, ids []utils.SixID) (int64, error) {
	args := m.Called(ctx, userID, ids)
	return args.Get(0).(int64), args.Error(1)
}
func (m *MockNotificationService) Delete(ctx context.Context, userID utils.SixID, ids []utils.SixID) (int64, error) {
	args := m.Called(ctx, userID, ids)
	return args.Get(0).(int64), args.Error(1)
}
func (m *MockNotificationService) UnreadCount(ctx context.Context, userID utils.SixID) (int64, error) {
	args := m.Called(ctx, userID)
	return args.Get(0).(int64), args.Error(1)
}
func (m *MockNotificationService) PurgeOlderThan(ctx context.Context, age time.Duration) (int64, error) {
	args := m.Called(ctx, age)
	return args.Get(0).(int64), args.Error(1)
}

// MockMessageService
type MockMessageService struct {
	mock.Mock
}

func (m *MockMessageService) Send(ctx context.Context, senderID utils.SixID, in services.MessageInput) (*models.Message, error) {
	args := m.Called(ctx, senderID, in)
	msg, _ := args.Get(0).(*models.Message)
	return msg, args.Error(1)
}
func (m *MockMessageService) Conversations(ctx context.Context, userID utils.SixID) ([]services.ConversationView, error) {
	args := m.Called(ctx, userID)
	views, _ := args.Get(0).([]services.ConversationView)
	return views, args.Error(1)
}
func (m *MockMessageService) Thread(ctx context.Context, userID, peer utils.SixID, page, limit int) (*services.MessagePage, error) {
	args := m.Called(ctx, userID, peer, page, limit)
	p, _ := args.Get(0).(*services.MessagePage)
	return p, args.Error(1)
}
func (m *MockMessageService) MarkRead(ctx context.Context, userID, peer utils.SixID) (int64, error) {
	args := m.Called(ctx, userID, peer)
	return args.Get(0).(int64), args.Error(1)
}
func (m *MockMessageService) UnreadCount(ctx context.Context, userID utils.SixID) (int64, error) {
	args := m.Called(ctx, userID)
	return args.Get(0).(int64), args.Error(1)
}
func (m *MockMessageService) Delete(ctx context.Context, userID, messageID utils.SixID) error {
	return m.Called(ctx, userID, messageID).Error(0)
}

// MockUploadService
type MockUploadService struct {
	mock.Mock
}

func (m *MockUploadService) Upload(ctx context.Context, owner utils.SixID, filename string, data []byte) (*services.UploadedImage, error) {
	args := m.Called(ctx, owner, filename, data)
	img, _ := args.Get(0).(*services.UploadedImage)
	return img, args.Error(1)
}
func (m *MockUploadService) Presign(ctx context.Context, owner utils.SixID, filename, contentType string) (*storage.PresignedUpload, error) {
	args := m.Called(ctx, owner, filename, contentType)
	p, _ := args.Get(0).(*storage.PresignedUpload)
	return p, args.Error(1)
}
