package handlers_test

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/pr0br0/cyboard/internal/api"
	"github.com/pr0br0/cyboard/internal/api/handlers"
	"github.com/pr0br0/cyboard/internal/auth"
	"github.com/pr0br0/cyboard/internal/config"
	"github.com/pr0br0/cyboard/internal/models"
	"github.com/pr0br0/cyboard/internal/services"
	"github.com/pr0br0/cyboard/internal/utils"
)

const (
	userToken      = "user-token"
	adminToken     = "admin-token"
	moderatorToken = "moderator-token"
	testClientIP   = "192.0.2.10"
)

type testEnv struct {
	auth          *MockAuthService
	users         *MockUserService
	categories    *MockCategoryService
	listings      *MockListingService
	search        *MockSearchService
	notifications *MockNotificationService
	messages      *MockMessageService
	uploads       *MockUploadService

	user      *models.User
	admin     *models.User
	moderator *models.User
	dbErr     error

	router *gin.Engine
}

func newUser(role models.Role) *models.User {
	u := &models.User{Name: string(role), Email: string(role) + "@example.com", Role: role, Status: models.UserStatusActive}
	u.ID = utils.NewSixID()
	return u
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	gin.SetMode(gin.TestMode)
	env := &testEnv{
		auth:          new(MockAuthService),
		users:         new(MockUserService),
		categories:    new(MockCategoryService),
		listings:      new(MockListingService),
		search:        new(MockSearchService),
		notifications: new(MockNotificationService),
		messages:      new(MockMessageService),
		uploads:       new(MockUploadService),
		user:          newUser(models.RoleUser),
		admin:         newUser(models.RoleAdmin),
		moderator:     newUser(models.RoleModerator),
	}
	env.auth.On("Authenticate", mock.Anything, userToken).Return(env.user, nil).Maybe()
	env.auth.On("Authenticate", mock.Anything, adminToken).Return(env.admin, nil).Maybe()
	env.auth.On("Authenticate", mock.Anything, moderatorToken).Return(env.moderator, nil).Maybe()
	env.auth.On("Authenticate", mock.Anything, "expired").Return(nil, auth.ErrTokenExpired).Maybe()

	cfg := &config.Config{}
	cfg.App.Env = "development"
	cfg.Storage.MaxSizeMB = 1

	env.router = api.SetupRouter(api.Services{
		Auth:          env.auth,
		Users:         env.users,
		Categories:    env.categories,
		Listings:      env.listings,
		Search:        env.search,
		Notifications: env.notifications,
		Messages:      env.messages,
		Uploads:       env.uploads,
	}, api.Options{
		Config: cfg,
		Logger: zap.NewNop(),
		DB:     handlers.PingFunc(func(context.Context) error { return env.dbErr }),
	})

	t.Cleanup(func() {
		env.users.AssertExpectations(t)
		env.categories.AssertExpectations(t)
		env.listings.AssertExpectations(t)
		env.search.AssertExpectations(t)
		env.notifications.AssertExpectations(t)
		env.messages.AssertExpectations(t)
		env.uploads.AssertExpectations(t)
	})
	return env
}

func actorOf(u *models.User) services.Actor {
	return services.Actor{UserID: u.ID, Role: u.Role}
}

type response struct {
	Code int
	Body map[string]any
}

func (r response) data() map[string]any {
	d, _ := r.Body["data"].(map[string]any)
	return d
}

func (r response) list() []any {
	d, _ := r.Body["data"].([]any)
	return d
}

func (env *testEnv) do(t *testing.T, method, path, token string, body any) response {
	t.Helper()
	var reader io.Reader
	switch b := body.(type) {
	case nil:
	case string:
		reader = bytes.NewBufferString(b)
	default:
		raw, err := json.Marshal(b)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	}
	req := httptest.NewRequest(method, path, reader)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	return env.send(t, req, token)
}

func (env *testEnv) send(t *testing.T, req *http.Request, token string) response {
	t.Helper()
	req.RemoteAddr = testClientIP + ":4321"
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	env.router.ServeHTTP(w, req)
	var decoded map[string]any
	if w.Body.Len() > 0 {
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &decoded), w.Body.String())
	}
	return response{Code: w.Code, Body: decoded}
}
