package middleware

import (
	"context"
	"math"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/pr0br0/cyboard/internal/config"
)

const (
	limiterIdleTTL         = 30 * time.Minute
	limiterCleanupInterval = 10 * time.Minute
)

// clientLimiter stores the token bucket of one client.
type clientLimiter struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// RateLimiterMiddleware limits requests per client IP with a token bucket
// that refills Requests tokens every Window.
type RateLimiterMiddleware struct {
	clients map[string]*clientLimiter
	mu      sync.Mutex
	limit   rate.Limit
	burst   int
	window  time.Duration
	logger  *zap.Logger
	now     func() time.Time
}

// NewRateLimiterMiddleware creates a limiter. Call Run to evict idle clients.
func NewRateLimiterMiddleware(cfg config.RateLimitConfig, logger *zap.Logger) *RateLimiterMiddleware {
	requests, window := cfg.Requests, cfg.Window
	if requests <= 0 {
		requests = 100
	}
	if window <= 0 {
		window = 15 * time.Minute
	}
	return &RateLimiterMiddleware{
		clients: make(map[string]*clientLimiter),
		limit:   rate.Limit(float64(requests) / window.Seconds()),
		burst:   requests,
		window:  window,
		logger:  logger,
		now:     time.Now,
	}
}

// getClientLimiter retrieves or creates the limiter for a client.
func (rm *RateLimiterMiddleware) getClientLimiter(key string) *rate.Limiter {
	rm.mu.Lock()
	defer rm.mu.Unlock()

	cl, exists := rm.clients[key]
	if !exists {
		cl = &clientLimiter{limiter: rate.NewLimiter(rm.limit, rm.burst)}
		rm.clients[key] = cl
	}
	cl.lastSeen = rm.now()
	return cl.limiter
}

// Cleanup removes clients idle for longer than the idle TTL and returns how many were removed.
func (rm *RateLimiterMiddleware) Cleanup() int {
	rm.mu.Lock()
	defer rm.mu.Unlock()
	removed := 0
	cutoff := rm.now().Add(-limiterIdleTTL)
	for key, cl := range rm.clients {
		if cl.lastSeen.Before(cutoff) {
			delete(rm.clients, key)
			removed++
		}
	}
	return removed
}

// Run evicts idle clients periodically until ctx is done.
func (rm *RateLimiterMiddleware) Run(ctx context.Context) {
	ticker := time.NewTicker(limiterCleanupInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if n := rm.Cleanup(); n > 0 {
				rm.logger.Debug("Rate limiter cleanup", zap.Int("removed", n))
			}
		}
	}
}

// Limit creates the Gin middleware handler.
func (rm *RateLimiterMiddleware) Limit() gin.HandlerFunc {
	return func(c *gin.Context) {
		ip := c.ClientIP()
		limiter := rm.getClientLimiter(ip)
		if !limiter.AllowN(rm.now(), 1) {
			retry := math.Ceil(1 / float64(rm.limit))
			c.Header("Retry-After", strconv.Itoa(int(retry)))
			rm.logger.Warn("Rate limit exceeded", zap.String("ip", ip), zap.String("path", c.Request.URL.Path))
			abort(c, http.StatusTooManyRequests, "Too many requests, please try again later.")
			return
		}
		c.Next()
	}
}
