package metrics

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pr0br0/cyboard/internal/events"
)

type failingPublisher struct{}

func (failingPublisher) Publish(context.Context, string, any) error { return errors.New("nats down") }

func TestMiddleware(t *testing.T) {
	gin.SetMode(gin.TestMode)
	m := New("test")
	r := gin.New()
	r.Use(m.Middleware())
	r.GET("/api/listings/:id", func(c *gin.Context) { c.Status(http.StatusOK) })
	r.GET("/metrics", gin.WrapH(m.Handler()))

	for _, path := range []string{"/api/listings/abc", "/api/listings/def", "/nope"} {
		r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, path, nil))
	}

	assert.Equal(t, 2.0, testutil.ToFloat64(m.HTTPRequests.WithLabelValues("GET", "/api/listings/:id", "200")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.HTTPRequests.WithLabelValues("GET", "unmatched", "404")))

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "test_http_requests_total")
	assert.Contains(t, w.Body.String(), "go_goroutines")
}

func TestPublisherAndTasks(t *testing.T) {
	m := New("test")
	ctx := context.Background()

	rec := &events.Recorder{}
	pub := m.Publisher(rec)
	require.NoError(t, pub.Publish(ctx, events.SubjectListingCreated, nil))
	require.NoError(t, pub.Publish(ctx, events.SubjectListingCreated, nil))
	assert.Equal(t, 2.0, testutil.ToFloat64(m.EventsPublished.WithLabelValues(events.SubjectListingCreated)))
	assert.Len(t, rec.Events(), 2)

	assert.Error(t, m.Publisher(failingPublisher{}).Publish(ctx, events.SubjectMessageSent, nil))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.EventErrors.WithLabelValues(events.SubjectMessageSent)))

	m.ObserveTask("email:deliver", 10*time.Millisecond, nil)
	m.ObserveTask("email:deliver", 10*time.Millisecond, errors.New("smtp"))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.TasksProcessed.WithLabelValues("email:deliver", "success")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.TasksProcessed.WithLabelValues("email:deliver", "failure")))
}
