package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/pr0br0/cyboard/internal/api/handlers"
	"github.com/pr0br0/cyboard/internal/api/middleware"
	"github.com/pr0br0/cyboard/internal/config"
	"github.com/pr0br0/cyboard/internal/email"
	"github.com/pr0br0/cyboard/internal/metrics"
	"github.com/pr0br0/cyboard/internal/models"
	"github.com/pr0br0/cyboard/internal/services"
	"github.com/pr0br0/cyboard/internal/tracing"
)

// Services are the domain services exposed over HTTP.
type Services struct {
	Auth          services.IAuthService
	Users         services.IUserService
	Categories    services.ICategoryService
	Listings      services.IListingService
	Search        services.ISearchService
	Notifications services.INotificationService
	Messages      services.IMessageService
	Uploads       services.IUploadService
}

// Options carries the infrastructure the router needs. Nil Metrics or Tracer disables that middleware.
type Options struct {
	Config      *config.Config
	Logger      *zap.Logger
	DB          handlers.Pinger
	RateLimiter *middleware.RateLimiterMiddleware
	Metrics     *metrics.Metrics
	Tracer      trace.TracerProvider
	// UploadsDir is served under /uploads when images are stored on local disk.
	UploadsDir string
	Version    string
}

// SetupRouter configures and returns the main Gin engine.
func SetupRouter(svc Services, opts Options) *gin.Engine {
	cfg := opts.Config
	resp := handlers.Responder{Logger: opts.Logger, Production: cfg.App.IsProduction()}

	r := gin.New()
	r.Use(middleware.Recovery(opts.Logger))
	if opts.Tracer != nil {
		r.Use(tracing.Middleware(opts.Tracer))
	}
	if opts.Metrics != nil {
		r.Use(opts.Metrics.Middleware())
	}
	r.Use(middleware.RequestLogger(opts.Logger))
	r.Use(middleware.CORSMiddleware(cfg.HTTP.CORSOrigin))

	health := handlers.NewHealthHandler(opts.DB, opts.Version)
	r.GET("/health", health.Health)
	r.GET("/health/live", health.Live)
	r.GET("/health/ready", health.Ready)
	if opts.Metrics != nil {
		r.GET("/metrics", gin.WrapH(opts.Metrics.Handler()))
	}
	if opts.UploadsDir != "" {
		r.Static("/uploads", opts.UploadsDir)
	}

	authHandler := handlers.NewRestAuthHandler(svc.Auth, svc.Users, resp)
	userHandler := handlers.NewRestUserHandler(svc.Users, svc.Listings, resp)
	categoryHandler := handlers.NewRestCategoryHandler(svc.Categories, resp)
	listingHandler := handlers.NewRestListingHandler(svc.Listings, svc.Search, resp)
	searchHandler := handlers.NewRestSearchHandler(svc.Search, resp)
	notificationHandler := handlers.NewRestNotificationHandler(svc.Notifications, resp)
	messageHandler := handlers.NewRestMessageHandler(svc.Messages, resp)
	uploadHandler := handlers.NewRestUploadHandler(svc.Uploads, int64(cfg.Storage.MaxSizeMB)<<20, resp)

	requireAuth := middleware.Authenticate(svc.Auth)
	optionalAuth := middleware.OptionalAuth(svc.Auth)
	manageCategories := middleware.RequireCapability(models.CapManageCategories)
	moderate := middleware.RequireCapability(models.CapModerateListings)

	apiGroup := r.Group("/api")
	if opts.RateLimiter != nil {
		apiGroup.Use(opts.RateLimiter.Limit())
	}

	authGroup := apiGroup.Group("/auth")
	{
		authGroup.POST("/register", authHandler.Register)
		authGroup.POST("/login", authHandler.Login)
		authGroup.GET("/verify-email/:token", authHandler.VerifyEmail)
		authGroup.POST("/verify-email/:token", authHandler.VerifyEmail)
		authGroup.POST("/forgot-password", authHandler.ForgotPassword)
		authGroup.POST("/reset-password", authHandler.ResetPassword)

		authGroup.POST("/send-phone-code", requireAuth, authHandler.SendPhoneCode)
		authGroup.POST("/verify-phone", requireAuth, authHandler.VerifyPhone)
		authGroup.GET("/profile", requireAuth, authHandler.GetProfile)
		authGroup.PUT("/profile", requireAuth, authHandler.UpdateProfile)
		authGroup.DELETE("/profile", requireAuth, authHandler.DeleteAccount)
		authGroup.PUT("/profile/notifications", requireAuth, authHandler.UpdateNotificationSettings)
		authGroup.POST("/change-password", requireAuth, authHandler.ChangePassword)
		authGroup.POST("/logout", requireAuth, authHandler.Logout)
	}

	userGroup := apiGroup.Group("/users", optionalAuth)
	{
		userGroup.GET("/:id", userHandler.GetUserByID)
		userGroup.GET("/:id/listings", userHandler.GetUserListings)
	}

	categoryGroup := apiGroup.Group("/categories")
	{
		categoryGroup.GET("", optionalAuth, categoryHandler.GetCategories)
		categoryGroup.GET("/search", categoryHandler.SearchCategories)
		categoryGroup.GET("/:identifier", categoryHandler.GetCategory)

		categoryGroup.POST("", requireAuth, manageCategories, categoryHandler.CreateCategory)
		categoryGroup.PUT("/order", requireAuth, manageCategories, categoryHandler.ReorderCategories)
		categoryGroup.POST("/update-counts", requireAuth, manageCategories, categoryHandler.UpdateCounts)
		categoryGroup.PUT("/:id", requireAuth, manageCategories, categoryHandler.UpdateCategory)
		categoryGroup.DELETE("/:id", requireAuth, manageCategories, categoryHandler.DeleteCategory)
	}

	listingGroup := apiGroup.Group("/listings")
	{
		listingGroup.GET("", optionalAuth, listingHandler.SearchListings)
		listingGroup.GET("/favorites", requireAuth, listingHandler.GetFavorites)
		listingGroup.GET("/:id", optionalAuth, listingHandler.GetListingByID)

		listingGroup.POST("", requireAuth, listingHandler.CreateListing)
		listingGroup.PUT("/:id", requireAuth, listingHandler.UpdateListing)
		listingGroup.DELETE("/:id", requireAuth, listingHandler.DeleteListing)
		listingGroup.POST("/:id/images", requireAuth, listingHandler.AddImages)
		listingGroup.PUT("/:id/images/order", requireAuth, listingHandler.ReorderImages)
		listingGroup.DELETE("/:id/images/:imageId", requireAuth, listingHandler.DeleteImage)
		listingGroup.PUT("/:id/images/:imageId/main", requireAuth, listingHandler.SetMainImage)
		listingGroup.POST("/:id/favorite", requireAuth, listingHandler.ToggleFavorite)
		listingGroup.POST("/:id/report", requireAuth, listingHandler.ReportListing)
		listingGroup.POST("/:id/extend", requireAuth, listingHandler.ExtendListing)
		listingGroup.PUT("/:id/status", requireAuth, moderate, listingHandler.SetStatus)
	}

	uploadGroup := apiGroup.Group("/uploads", requireAuth)
	{
		uploadGroup.POST("", uploadHandler.Upload)
		uploadGroup.POST("/presign", uploadHandler.Presign)
	}

	searchGroup := apiGroup.Group("/search")
	{
		searchGroup.GET("/listings", optionalAuth, listingHandler.SearchListings)
		searchGroup.GET("/suggest", searchHandler.Suggest)
		searchGroup.GET("/popular", searchHandler.Popular)
		searchGroup.GET("/stats", searchHandler.Stats)
	}

	notificationGroup := apiGroup.Group("/notifications", requireAuth)
	{
		notificationGroup.GET("", notificationHandler.ListNotifications)
		notificationGroup.GET("/unread-count", notificationHandler.UnreadCount)
		notificationGroup.PUT("/mark-read", notificationHandler.MarkRead)
		notificationGroup.DELETE("", notificationHandler.DeleteNotifications)
	}

	messageGroup := apiGroup.Group("/messages", requireAuth)
	{
		messageGroup.POST("", messageHandler.SendMessage)
		messageGroup.GET("/conversations", messageHandler.GetConversations)
		messageGroup.GET("/unread-count", messageHandler.UnreadCount)
		messageGroup.GET("/:userId", messageHandler.GetThread)
		messageGroup.PUT("/read/:userId", messageHandler.MarkRead)
		messageGroup.DELETE("/:id", messageHandler.DeleteMessage)
	}

	r.NoRoute(func(c *gin.Context) {
		c.JSON(http.StatusNotFound, handlers.Envelope{Error: "Route not found"})
	})

	return r
}

// SetupServiceRouter configures the internal service API: shutdown and, with mocked
// email, retrieval of the last email sent to an address.
func SetupServiceRouter(rdb redis.UniversalClient, logger *zap.Logger, shutdownChan chan<- struct{}) *gin.Engine {
	r := gin.New()
	r.Use(middleware.Recovery(logger), middleware.RequestLogger(logger))

	r.POST("/api", func(c *gin.Context) {
		var req struct {
			Method    string          `json:"method"`
			Arguments json.RawMessage `json:"arguments"`
		}
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, handlers.Envelope{Error: "Invalid request format"})
			return
		}

		switch req.Method {
		case "shutdown":
			logger.Info("Received shutdown command via service API")
			c.JSON(http.StatusOK, handlers.Envelope{Success: true, Message: "Shutdown initiated"})
			select {
			case shutdownChan <- struct{}{}:
			default:
				logger.Warn("Shutdown already signaled")
			}
		case "getTestEmail":
			if rdb == nil {
				c.JSON(http.StatusNotFound, handlers.Envelope{Error: "Mock email store is not configured"})
				return
			}
			var args []string // [templateID, email]
			if err := json.Unmarshal(req.Arguments, &args); err != nil || len(args) != 2 {
				c.JSON(http.StatusBadRequest, handlers.Envelope{Error: "Invalid arguments: expected JSON array [templateId, email]"})
				return
			}
			data, err := fetchTestEmail(c.Request.Context(), rdb, email.MockKey(args[1], args[0]))
			if err != nil {
				if errors.Is(err, redis.Nil) {
					c.JSON(http.StatusNotFound, handlers.Envelope{Error: fmt.Sprintf("Test email not found for %s", args[1])})
					return
				}
				logger.Error("Service API: failed to read mock email", zap.Error(err))
				c.JSON(http.StatusInternalServerError, handlers.Envelope{Error: "Redis error"})
				return
			}
			c.JSON(http.StatusOK, handlers.Envelope{Success: true, Data: data})
		default:
			c.JSON(http.StatusNotFound, handlers.Envelope{Error: fmt.Sprintf("Unknown service method: %s", req.Method)})
		}
	})
	return r
}

// fetchTestEmail polls briefly for the key since email delivery may be asynchronous, then deletes it.
func fetchTestEmail(ctx context.Context, rdb redis.UniversalClient, key string) (map[string]any, error) {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	var raw string
	var err error
	for i := 0; i < 10; i++ {
		raw, err = rdb.Get(ctx, key).Result()
		if err == nil {
			break
		}
		if !errors.Is(err, redis.Nil) {
			return nil, err
		}
		select {
		case <-ctx.Done():
			return nil, redis.Nil
		case <-time.After(200 * time.Millisecond):
		}
	}
	if err != nil {
		return nil, err
	}
	rdb.Del(ctx, key)

	var data map[string]any
	if err := json.Unmarshal([]byte(raw), &data); err != nil {
		return nil, fmt.Errorf("parse stored email: %w", err)
	}
	return data, nil
}
