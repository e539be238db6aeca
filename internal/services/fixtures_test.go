package services

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"github.com/pr0br0/cyboard/internal/auth"
	"github.com/pr0br0/cyboard/internal/cache"
	"github.com/pr0br0/cyboard/internal/config"
	"github.com/pr0br0/cyboard/internal/events"
	"github.com/pr0br0/cyboard/internal/models"
	"github.com/pr0br0/cyboard/internal/repository"
	"github.com/pr0br0/cyboard/internal/repository/memstore"
	"github.com/pr0br0/cyboard/internal/storage"
	"github.com/pr0br0/cyboard/internal/utils"
)

const testPassword = "secret123"

type recordingMailer struct {
	mu   sync.Mutex
	jobs []EmailJob
	err  error
}

func (m *recordingMailer) SendEmail(_ context.Context, job EmailJob) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.jobs = append(m.jobs, job)
	return m.err
}

func (m *recordingMailer) Jobs() []EmailJob {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]EmailJob(nil), m.jobs...)
}

// last returns the most recent job for templateID.
func (m *recordingMailer) last(templateID string) (EmailJob, bool) {
	jobs := m.Jobs()
	for i := len(jobs) - 1; i >= 0; i-- {
		if jobs[i].TemplateID == templateID {
			return jobs[i], true
		}
	}
	return EmailJob{}, false
}

type recordingCodes struct {
	mu    sync.Mutex
	codes map[string]string
}

func (c *recordingCodes) SendCode(_ context.Context, phone, code string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.codes == nil {
		c.codes = map[string]string{}
	}
	c.codes[phone] = code
	return nil
}

func (c *recordingCodes) get(phone string) string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.codes[phone]
}

// flakyObjects fails the first failDeletes Delete calls.
type flakyObjects struct {
	storage.ObjectStore
	mu          sync.Mutex
	failDeletes int
	deleted     []string
}

func (f *flakyObjects) Delete(ctx context.Context, key string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failDeletes > 0 {
		f.failDeletes--
		return errors.New("storage unavailable")
	}
	f.deleted = append(f.deleted, key)
	return f.ObjectStore.Delete(ctx, key)
}

type recordingScheduler struct {
	mu      sync.Mutex
	cascade []utils.SixID
	images  [][2]utils.SixID
}

func (r *recordingScheduler) ScheduleCascade(_ context.Context, jobID utils.SixID) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.cascade = append(r.cascade, jobID)
	return nil
}

func (r *recordingScheduler) ScheduleImageProcessing(_ context.Context, listingID, imageID utils.SixID) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.images = append(r.images, [2]utils.SixID{listingID, imageID})
	return nil
}

type testEnv struct {
	store     *repository.Store
	cache     *cache.MemoryStore
	objects   *flakyObjects
	events    *events.Recorder
	mailer    *recordingMailer
	codes     *recordingCodes
	scheduler *recordingScheduler
	issuer    *auth.Issuer

	auth          IAuthService
	categories    ICategoryService
	notifications INotificationService
	cascade       ICascadeService
	listings      IListingService
	search        ISearchService
	users         IUserService
	messages      IMessageService
	uploads       IUploadService
}

var testAuthConfig = config.AuthConfig{
	JWTSecret:     "test-secret",
	JWTTTL:        time.Hour,
	EmailTokenTTL: 24 * time.Hour,
	ResetTokenTTL: time.Hour,
	PhoneCodeTTL:  10 * time.Minute,
	BcryptCost:    bcrypt.MinCost,
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	return newTestEnvWith(t, config.ListingsConfig{TTLDays: 30, ViewDedupTTL: time.Hour})
}

func newTestEnvWith(t *testing.T, listingsCfg config.ListingsConfig) *testEnv {
	t.Helper()
	files, err := storage.NewFileStore(t.TempDir(), "/uploads")
	require.NoError(t, err)

	logger := zap.NewNop()
	env := &testEnv{
		store:     memstore.New(),
		cache:     cache.NewMemoryStore(nil),
		objects:   &flakyObjects{ObjectStore: files},
		events:    &events.Recorder{},
		mailer:    &recordingMailer{},
		codes:     &recordingCodes{},
		scheduler: &recordingScheduler{},
		issuer:    auth.NewIssuer(testAuthConfig.JWTSecret, testAuthConfig.JWTTTL),
	}
	env.auth = NewAuthService(env.store.Users, env.issuer, testAuthConfig, "http://localhost:3000", env.mailer, env.codes, logger)
	env.categories = NewCategoryService(env.store.Categories, env.store.Listings, env.cache, time.Hour, env.objects, env.events, logger)
	env.notifications = NewNotificationService(env.store.Notifications, env.store.Users, env.mailer, "http://localhost:3000", logger)
	env.cascade = NewCascadeService(env.store, env.objects, env.categories, env.scheduler, env.events, logger)
	env.listings = NewListingService(env.store, env.categories, env.cascade, env.notifications, env.cache, env.objects,
		env.scheduler, env.events, listingsCfg, 1200, logger)
	env.search = NewSearchService(env.store.Listings, env.categories)
	env.users = NewUserService(env.store, env.cascade, env.notifications, logger)
	env.messages = NewMessageService(env.store, env.notifications, env.events, logger)
	env.uploads = NewUploadService(env.objects, config.StorageConfig{MaxDimension: 64, MaxSizeMB: 1}, logger)
	return env
}

// createUser stores a user directly with testPassword.
func (e *testEnv) createUser(t *testing.T, email string, role models.Role) *models.User {
	t.Helper()
	hash, err := auth.NewHasher(bcrypt.MinCost).HashPassword(testPassword)
	require.NoError(t, err)
	now := time.Now().UTC()
	u := &models.User{
		Email:        email,
		PasswordHash: hash,
		Name:         strings.Split(email, "@")[0],
		Role:         role,
		Status:       models.UserStatusActive,
		Preferences:  models.DefaultPreferences(),
		Listings:     []utils.SixID{},
		Favorites:    []utils.SixID{},
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	require.NoError(t, e.store.Users.Create(context.Background(), u))
	return u
}

func actorOf(u *models.User) Actor {
	return Actor{UserID: u.ID, Role: u.Role}
}

func (e *testEnv) createCategory(t *testing.T, name string, parent *utils.SixID) *models.Category {
	t.Helper()
	c, err := e.categories.Create(context.Background(), models.CategoryInput{
		Name:   models.Localized{En: name, Ru: name + " ru"},
		Parent: parent,
	})
	require.NoError(t, err)
	return c
}

const testDescription = "A well kept item in very good condition, pickup in the city centre."

func listingInput(category utils.SixID, title string, price float64) models.ListingInput {
	return models.ListingInput{
		Title:       models.Localized{En: title, Ru: title, El: title},
		Description: models.Localized{En: testDescription, Ru: testDescription, El: testDescription},
		Category:    category,
		Price:       models.Price{Amount: price, Currency: models.CurrencyEUR},
		Location:    models.ListingLocation{City: "Limassol", District: "Centre"},
		Images: []models.ImageInput{
			{URL: "/uploads/listings/a.jpg", StorageKey: "listings/a.jpg"},
		},
	}
}

func (e *testEnv) createListing(t *testing.T, author *models.User, category utils.SixID, title string, price float64) *models.Listing {
	t.Helper()
	l, err := e.listings.Create(context.Background(), actorOf(author), listingInput(category, title, price))
	require.NoError(t, err)
	return l
}
