package handlers_test

import (
	"bytes"
	"errors"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/pr0br0/cyboard/internal/models"
	"github.com/pr0br0/cyboard/internal/services"
	"github.com/pr0br0/cyboard/internal/storage"
	"github.com/pr0br0/cyboard/internal/utils"
)

func TestRestNotificationHandler(t *testing.T) {
	env := newTestEnv(t)
	n := &models.Notification{User: env.user.ID, Type: models.NotificationListingApproved, Title: models.Localized{En: "Approved"}}
	n.ID = utils.NewSixID()

	assert.Equal(t, http.StatusUnauthorized, env.do(t, http.MethodGet, "/api/notifications", "", nil).Code)

	env.notifications.On("List", mock.Anything, env.user.ID, true, 1, 20).
		Return(&services.NotificationPage{Items: []*models.Notification{n}, Pagination: models.NewPage(1, 20, 20).Paginate(1)}, nil).Once()
	res := env.do(t, http.MethodGet, "/api/notifications?unreadOnly=true&page=1&limit=20", userToken, nil)
	require.Equal(t, http.StatusOK, res.Code)
	assert.Len(t, res.list(), 1)

	env.notifications.On("UnreadCount", mock.Anything, env.user.ID).Return(int64(3), nil).Once()
	res = env.do(t, http.MethodGet, "/api/notifications/unread-count", userToken, nil)
	assert.Equal(t, float64(3), res.data()["count"])

	ids := []utils.SixID{n.ID}
	env.notifications.On("MarkRead", mock.Anything, env.user.ID, ids).Return(int64(1), nil).Once()
	res = env.do(t, http.MethodPut, "/api/notifications/mark-read", userToken, map[string]any{"ids": ids})
	assert.Equal(t, float64(1), res.data()["modified"])

	env.notifications.On("MarkRead", mock.Anything, env.user.ID, []utils.SixID(nil)).
		Return(int64(0), services.NewValidationError("notificationIds", "At least one notification id is required")).Once()
	res = env.do(t, http.MethodPut, "/api/notifications/mark-read", userToken, map[string]any{})
	assert.Equal(t, http.StatusBadRequest, res.Code)
	assert.Contains(t, res.Body["details"], "notificationIds")

	env.notifications.On("Delete", mock.Anything, env.user.ID, ids).Return(int64(1), nil).Once()
	res = env.do(t, http.MethodDelete, "/api/notifications", userToken, map[string]any{"ids": ids})
	assert.Equal(t, float64(1), res.data()["deleted"])
}

func TestRestMessageHandler(t *testing.T) {
	env := newTestEnv(t)
	listingID := utils.NewSixID()

	self := services.MessageInput{Recipient: env.user.ID, Listing: listingID, Body: "hi"}
	env.messages.On("Send", mock.Anything, env.user.ID, self).Return(nil, services.ErrSelfMessage).Once()
	res := env.do(t, http.MethodPost, "/api/messages", userToken, self)
	assert.Equal(t, http.StatusBadRequest, res.Code)
	assert.Equal(t, "Cannot send message to yourself", res.Body["error"])

	in := services.MessageInput{Recipient: env.admin.ID, Listing: listingID, Body: "Is it still available?"}
	sent := &models.Message{Sender: env.user.ID, Recipient: env.admin.ID, Listing: listingID, Body: in.Body, CreatedAt: time.Now()}
	sent.ID = utils.NewSixID()
	env.messages.On("Send", mock.Anything, env.user.ID, in).Return(sent, nil).Once()
	res = env.do(t, http.MethodPost, "/api/messages", userToken, in)
	require.Equal(t, http.StatusCreated, res.Code)
	assert.Equal(t, in.Body, res.data()["body"])

	env.messages.On("Conversations", mock.Anything, env.user.ID).Return(nil, nil).Once()
	res = env.do(t, http.MethodGet, "/api/messages/conversations", userToken, nil)
	require.Equal(t, http.StatusOK, res.Code)
	assert.NotNil(t, res.Body["data"])
	assert.Empty(t, res.list())

	env.messages.On("Thread", mock.Anything, env.user.ID, env.admin.ID, 0, 0).
		Return(&services.MessagePage{Items: []*models.Message{sent}, Pagination: models.NewPage(1, 20, 20).Paginate(1)}, nil).Once()
	res = env.do(t, http.MethodGet, "/api/messages/"+env.admin.ID.String(), userToken, nil)
	require.Equal(t, http.StatusOK, res.Code)
	assert.Len(t, res.list(), 1)

	env.messages.On("MarkRead", mock.Anything, env.user.ID, env.admin.ID).Return(int64(2), nil).Once()
	res = env.do(t, http.MethodPut, "/api/messages/read/"+env.admin.ID.String(), userToken, nil)
	assert.Equal(t, float64(2), res.data()["modified"])

	env.messages.On("UnreadCount", mock.Anything, env.user.ID).Return(int64(0), nil).Once()
	res = env.do(t, http.MethodGet, "/api/messages/unread-count", userToken, nil)
	assert.Equal(t, float64(0), res.data()["count"])

	env.messages.On("Delete", mock.Anything, env.user.ID, sent.ID).Return(services.ErrForbidden).Once()
	res = env.do(t, http.MethodDelete, "/api/messages/"+sent.ID.String(), userToken, nil)
	assert.Equal(t, http.StatusForbidden, res.Code)
}

func multipartImage(t *testing.T, field, filename string, data []byte) *http.Request {
	t.Helper()
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	part, err := w.CreateFormFile(field, filename)
	require.NoError(t, err)
	_, err = part.Write(data)
	require.NoError(t, err)
	require.NoError(t, w.Close())
	req := httptest.NewRequest(http.MethodPost, "/api/uploads", &buf)
	req.Header.Set("Content-Type", w.FormDataContentType())
	return req
}

func TestRestUploadHandler(t *testing.T) {
	env := newTestEnv(t)
	data := []byte("\x89PNG fake image bytes")

	uploaded := &services.UploadedImage{URL: "/uploads/listings/x.jpg", StorageKey: "listings/x.jpg", ContentType: "image/jpeg", Width: 10, Height: 10}
	env.uploads.On("Upload", mock.Anything, env.user.ID, "photo.png", data).Return(uploaded, nil).Once()
	res := env.send(t, multipartImage(t, "image", "photo.png", data), userToken)
	require.Equal(t, http.StatusCreated, res.Code)
	assert.Equal(t, "listings/x.jpg", res.data()["storageKey"])

	res = env.send(t, multipartImage(t, "file", "photo.png", data), userToken)
	assert.Equal(t, http.StatusBadRequest, res.Code)
	assert.Contains(t, res.Body["details"], "image")

	env.uploads.On("Upload", mock.Anything, env.user.ID, "doc.txt", data).Return(nil, services.NewValidationError("image", "Only JPEG, PNG and GIF images are allowed")).Once()
	res = env.send(t, multipartImage(t, "image", "doc.txt", data), userToken)
	assert.Equal(t, http.StatusBadRequest, res.Code)

	res = env.send(t, multipartImage(t, "image", "photo.png", data), "")
	assert.Equal(t, http.StatusUnauthorized, res.Code)

	presigned := &storage.PresignedUpload{UploadURL: "https://s3.example/put", Key: "incoming/a.jpg", PublicURL: "https://cdn.example/a.jpg"}
	env.uploads.On("Presign", mock.Anything, env.user.ID, "a.jpg", "image/jpeg").Return(presigned, nil).Once()
	res = env.do(t, http.MethodPost, "/api/uploads/presign", userToken, map[string]string{"filename": "a.jpg", "contentType": "image/jpeg"})
	require.Equal(t, http.StatusOK, res.Code)
	assert.Equal(t, "incoming/a.jpg", res.data()["key"])
}

func TestRestSearchHandler(t *testing.T) {
	env := newTestEnv(t)

	env.search.On("Suggest", mock.Anything, "b", "").Return(nil, nil).Once()
	res := env.do(t, http.MethodGet, "/api/search/suggest?q=b", "", nil)
	require.Equal(t, http.StatusOK, res.Code)
	assert.NotNil(t, res.Body["data"])
	assert.Empty(t, res.list())

	env.search.On("Popular", mock.Anything, services.PopularLimit).Return([]models.CategoryCount{{Slug: "cars", ListingCount: 9}}, nil).Once()
	res = env.do(t, http.MethodGet, "/api/search/popular", "", nil)
	require.Equal(t, http.StatusOK, res.Code)
	assert.Len(t, res.list(), 1)

	env.search.On("Stats", mock.Anything).Return(models.PriceStats{Total: 2, AvgPrice: 150, MinPrice: 100, MaxPrice: 200}, nil).Once()
	res = env.do(t, http.MethodGet, "/api/search/stats", "", nil)
	require.Equal(t, http.StatusOK, res.Code)
	assert.Equal(t, float64(150), res.data()["avgPrice"])
}

func TestHealthHandler(t *testing.T) {
	env := newTestEnv(t)

	res := env.do(t, http.MethodGet, "/health", "", nil)
	require.Equal(t, http.StatusOK, res.Code)
	assert.Equal(t, "ok", res.Body["status"])
	assert.Equal(t, "connected", res.Body["database"])
	assert.Contains(t, res.Body, "memory")

	assert.Equal(t, http.StatusOK, env.do(t, http.MethodGet, "/health/ready", "", nil).Code)

	env.dbErr = errors.New("server selection timeout")
	res = env.do(t, http.MethodGet, "/health/ready", "", nil)
	assert.Equal(t, http.StatusServiceUnavailable, res.Code)
	assert.Equal(t, "not ready", res.Body["status"])

	res = env.do(t, http.MethodGet, "/health/live", "", nil)
	assert.Equal(t, http.StatusOK, res.Code)
	assert.Equal(t, "alive", res.Body["status"])
}

func TestRouter_NotFoundAndServerErrors(t *testing.T) {
	env := newTestEnv(t)

	res := env.do(t, http.MethodGet, "/api/nothing-here", "", nil)
	assert.Equal(t, http.StatusNotFound, res.Code)
	assert.Equal(t, "Route not found", res.Body["error"])
	assert.Equal(t, false, res.Body["success"])

	// Outside production the error text is exposed.
	env.search.On("Stats", mock.Anything).Return(models.PriceStats{}, errors.New("aggregate failed")).Once()
	res = env.do(t, http.MethodGet, "/api/search/stats", "", nil)
	assert.Equal(t, http.StatusInternalServerError, res.Code)
	assert.Equal(t, "aggregate failed", res.Body["error"])
}
