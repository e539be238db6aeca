package metrics

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/pr0br0/cyboard/internal/events"
)

// Metrics holds the Prometheus registry and the collectors registered on it.
type Metrics struct {
	Registry *prometheus.Registry

	HTTPRequests    *prometheus.CounterVec
	HTTPLatency     *prometheus.HistogramVec
	EventsPublished *prometheus.CounterVec
	EventErrors     *prometheus.CounterVec
	TasksProcessed  *prometheus.CounterVec
	TaskLatency     *prometheus.HistogramVec
}

// New creates a registry with the HTTP, event and task collectors plus Go runtime and process metrics.
func New(namespace string) *Metrics {
	m := &Metrics{
		Registry: prometheus.NewRegistry(),
		HTTPRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "Total number of HTTP requests by method, route and status.",
		}, []string{"method", "route", "status"}),
		HTTPLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "Latency of HTTP requests by method and route.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method", "route"}),
		EventsPublished: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "events_published_total",
			Help:      "Domain events published by subject (listing.created, listing.deleted, ...).",
		}, []string{"subject"}),
		EventErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "event_publish_errors_total",
			Help:      "Domain events that failed to publish, by subject.",
		}, []string{"subject"}),
		TasksProcessed: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "tasks_processed_total",
			Help:      "Background tasks processed by type and result.",
		}, []string{"type", "result"}),
		TaskLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "task_duration_seconds",
			Help:      "Background task duration by type.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"type"}),
	}
	m.Registry.MustRegister(
		m.HTTPRequests,
		m.HTTPLatency,
		m.EventsPublished,
		m.EventErrors,
		m.TasksProcessed,
		m.TaskLatency,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return m
}

// Handler serves the registry in the Prometheus text format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.Registry, promhttp.HandlerOpts{})
}

// Middleware records request count and latency. Requests that matched no route share one label.
func (m *Metrics) Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		route := c.FullPath()
		if route == "" {
			route = "unmatched"
		}
		method := c.Request.Method
		m.HTTPRequests.WithLabelValues(method, route, strconv.Itoa(c.Writer.Status())).Inc()
		m.HTTPLatency.WithLabelValues(method, route).Observe(time.Since(start).Seconds())
	}
}

// ObserveTask records a processed background task.
func (m *Metrics) ObserveTask(taskType string, duration time.Duration, err error) {
	result := "success"
	if err != nil {
		result = "failure"
	}
	m.TasksProcessed.WithLabelValues(taskType, result).Inc()
	m.TaskLatency.WithLabelValues(taskType).Observe(duration.Seconds())
}

type countingPublisher struct {
	next events.Publisher
	m    *Metrics
}

// Publisher counts every event passed to next.
func (m *Metrics) Publisher(next events.Publisher) events.Publisher {
	return &countingPublisher{next: next, m: m}
}

func (p *countingPublisher) Publish(ctx context.Context, subject string, payload any) error {
	err := p.next.Publish(ctx, subject, payload)
	if err != nil {
		p.m.EventErrors.WithLabelValues(subject).Inc()
		return err
	}
	p.m.EventsPublished.WithLabelValues(subject).Inc()
	return nil
}
