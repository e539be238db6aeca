package handlers

import (
	"context"
	"net/http"
	"runtime"
	"time"

	"github.com/gin-gonic/gin"
)

const pingTimeout = 2 * time.Second

// Pinger reports whether a backing service is reachable.
type Pinger interface {
	Ping(ctx context.Context) error
}

// PingFunc adapts a function to Pinger.
type PingFunc func(ctx context.Context) error

func (f PingFunc) Ping(ctx context.Context) error { return f(ctx) }

// HealthHandler serves liveness and readiness probes.
type HealthHandler struct {
	db      Pinger
	version string
	started time.Time
	now     func() time.Time
}

func NewHealthHandler(db Pinger, version string) *HealthHandler {
	return &HealthHandler{db: db, version: version, started: time.Now(), now: time.Now}
}

func (h *HealthHandler) dbStatus(ctx context.Context) string {
	ctx, cancel := context.WithTimeout(ctx, pingTimeout)
	defer cancel()
	if err := h.db.Ping(ctx); err != nil {
		return "disconnected"
	}
	return "connected"
}

// Health handles GET /health
func (h *HealthHandler) Health(c *gin.Context) {
	var mem runtime.MemStats
	runtime.ReadMemStats(&mem)
	c.JSON(http.StatusOK, gin.H{
		"status":    "ok",
		"version":   h.version,
		"timestamp": h.now().UTC(),
		"uptime":    h.now().Sub(h.started).Round(time.Second).String(),
		"memory": gin.H{
			"alloc":     mem.Alloc,
			"sys":       mem.Sys,
			"heapInUse": mem.HeapInuse,
		},
		"goroutines": runtime.NumGoroutine(),
		"database":   h.dbStatus(c.Request.Context()),
	})
}

// Live handles GET /health/live
func (h *HealthHandler) Live(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "alive"})
}

// Ready handles GET /health/ready; 503 while the database is unreachable.
func (h *HealthHandler) Ready(c *gin.Context) {
	status := h.dbStatus(c.Request.Context())
	if status != "connected" {
		c.JSON(http.StatusServiceUnavailable, gin.H{"status": "not ready", "database": status})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "ready", "database": status})
}
