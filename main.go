package main

import (
	"context"
	"errors"
	"flag"
	"log"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/hibiken/asynq"
	"github.com/redis/go-redis/v9"
	"go.mongodb.org/mongo-driver/mongo"
	"go.uber.org/zap"

	"github.com/pr0br0/cyboard/internal/api"
	"github.com/pr0br0/cyboard/internal/api/handlers"
	"github.com/pr0br0/cyboard/internal/api/middleware"
	"github.com/pr0br0/cyboard/internal/auth"
	"github.com/pr0br0/cyboard/internal/cache"
	"github.com/pr0br0/cyboard/internal/config"
	"github.com/pr0br0/cyboard/internal/db"
	"github.com/pr0br0/cyboard/internal/email"
	"github.com/pr0br0/cyboard/internal/events"
	"github.com/pr0br0/cyboard/internal/logger"
	"github.com/pr0br0/cyboard/internal/metrics"
	"github.com/pr0br0/cyboard/internal/repository"
	"github.com/pr0br0/cyboard/internal/repository/memstore"
	"github.com/pr0br0/cyboard/internal/repository/mongostore"
	"github.com/pr0br0/cyboard/internal/services"
	"github.com/pr0br0/cyboard/internal/storage"
	"github.com/pr0br0/cyboard/internal/tasks"
	"github.com/pr0br0/cyboard/internal/tracing"
)

// version is set at build time with -ldflags "-X main.version=...".
var version = "dev"

var runMode = flag.String("m", "all", "Run mode: 'api', 'bg' (background tasks), 'all' (default)")

const (
	cacheJanitorInterval = 5 * time.Minute
	redisKeyPrefix       = "cyboard:"
	metricsNamespace     = "cyboard"
)

func main() {
	flag.Parse()

	cfg, err := config.Load(*runMode)
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	zl, err := logger.New(cfg.App.Env, cfg.App.LogLevel)
	if err != nil {
		log.Fatalf("Failed to build logger: %v", err)
	}
	defer func() { _ = zl.Sync() }()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Store
	var (
		store       *repository.Store
		mongoClient *mongo.Client
		dbPinger    handlers.Pinger = handlers.PingFunc(func(context.Context) error { return nil })
	)
	switch cfg.Store.Driver {
	case "mongo":
		client, database, err := db.ConnectDB(ctx, cfg.Mongo.URI, cfg.Mongo.Database, cfg.Mongo.ConnectTimeout, zl)
		if err != nil {
			zl.Fatal("Failed to connect to database", zap.Error(err))
		}
		mongoClient = client
		defer func() {
			if err := db.DisconnectDB(mongoClient, zl); err != nil {
				zl.Error("Error disconnecting from MongoDB", zap.Error(err))
			}
		}()
		if err := mongostore.EnsureIndexes(ctx, database, zl); err != nil {
			zl.Fatal("Failed to create indexes", zap.Error(err))
		}
		store = mongostore.New(database)
		dbPinger = handlers.PingFunc(func(ctx context.Context) error { return db.Ping(ctx, mongoClient) })
	default:
		zl.Warn("Using the in-memory store; data is lost on restart")
		store = memstore.New()
	}

	// Redis backs the cache and the mock mailbox when either asks for it.
	var redisClient *redis.Client
	if cfg.Cache.Driver == "redis" || cfg.Email.MockServices {
		redisClient, err = cache.ConnectRedis(cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB, zl)
		if err != nil {
			zl.Fatal("Failed to connect to Redis", zap.Error(err))
		}
		defer func() {
			if err := cache.DisconnectRedis(redisClient, zl); err != nil {
				zl.Error("Error disconnecting from Redis", zap.Error(err))
			}
		}()
	}

	var keyCache cache.Store
	if cfg.Cache.Driver == "redis" {
		keyCache = cache.NewRedisStore(redisClient, redisKeyPrefix)
	} else {
		mem := cache.NewMemoryStore(time.Now)
		mem.StartJanitor(ctx, cacheJanitorInterval, zl)
		keyCache = mem
	}

	// Object storage
	var (
		objects    storage.ObjectStore
		uploadsDir string
	)
	switch cfg.Storage.Driver {
	case "s3":
		objects, err = storage.NewS3Store(ctx, cfg.Storage, zl)
	case "minio":
		objects, err = storage.NewMinioStore(ctx, cfg.Storage, zl)
	default:
		objects, err = storage.NewFileStore(cfg.Storage.LocalDir, cfg.Storage.PublicBaseURL)
		uploadsDir = cfg.Storage.LocalDir
	}
	if err != nil {
		zl.Fatal("Failed to initialize image storage", zap.String("driver", cfg.Storage.Driver), zap.Error(err))
	}

	// Email: the primary sender, plus the mock mailbox and the file log when configured.
	compositeSender := email.NewCompositeEmailSender(email.NewSMTPSender(cfg.SMTP, zl))
	if cfg.Email.MockServices {
		zl.Info("MOCK_SERVICES enabled: emails are also stored in Redis")
		compositeSender.AddSender(email.NewRedisSender(redisClient, cfg.SMTP.From, zl))
	}
	if cfg.Email.LogFile != "" {
		fileSender, err := email.NewFileEmailSender(cfg.Email.LogFile)
		if err != nil {
			zl.Warn("Failed to initialize file email sender, proceeding without it",
				zap.String("path", cfg.Email.LogFile), zap.Error(err))
		} else {
			compositeSender.AddSender(fileSender)
		}
	}
	directMailer := services.NewDirectMailer(services.NewEmailTemplateService(), compositeSender, cfg.SMTP.From, zl)

	// Metrics and tracing
	var (
		m        *metrics.Metrics
		observer tasks.TaskObserver
	)
	if cfg.Metrics.Enabled {
		m = metrics.New(metricsNamespace)
		observer = m
	}
	tp, err := tracing.Init(ctx, cfg.Tracing.ServiceName, cfg.Tracing.Endpoint, zl)
	if err != nil {
		zl.Fatal("Failed to initialize tracing", zap.Error(err))
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := tp.Shutdown(shutdownCtx); err != nil {
			zl.Warn("Tracer provider shutdown failed", zap.Error(err))
		}
	}()

	// Events
	var publisher events.Publisher = events.NewLogPublisher(zl)
	if cfg.NATS.URL != "" {
		natsPublisher, err := events.ConnectNATS(cfg.NATS.URL, cfg.NATS.Timeout, zl)
		if err != nil {
			zl.Fatal("Failed to connect to NATS", zap.Error(err))
		}
		defer natsPublisher.Close()
		publisher = natsPublisher
	}
	if m != nil {
		publisher = m.Publisher(publisher)
	}

	// With tasks enabled, email, image processing and cascade retries go through the queue.
	var (
		taskClient *asynq.Client
		mailer     services.Mailer = directMailer
		cascades   services.CascadeScheduler
		images     services.ImageScheduler
	)
	if cfg.Tasks.Enabled {
		taskClient = tasks.NewClient(cfg.Redis)
		defer func() {
			if err := taskClient.Close(); err != nil {
				zl.Warn("Task client close failed", zap.Error(err))
			}
		}()
		dispatcher := tasks.NewDispatcher(taskClient, zl)
		mailer, cascades, images = dispatcher, dispatcher, dispatcher
	}

	// Services
	issuer := auth.NewIssuer(cfg.Auth.JWTSecret, cfg.Auth.JWTTTL)
	notificationService := services.NewNotificationService(store.Notifications, store.Users, mailer, cfg.App.BaseURL, zl)
	categoryService := services.NewCategoryService(store.Categories, store.Listings, keyCache, cfg.Cache.TTL, objects, publisher, zl)
	cascadeService := services.NewCascadeService(store, objects, categoryService, cascades, publisher, zl)
	listingService := services.NewListingService(store, categoryService, cascadeService, notificationService,
		keyCache, objects, images, publisher, cfg.Listings, cfg.Storage.MaxDimension, zl)
	svc := api.Services{
		Auth:          services.NewAuthService(store.Users, issuer, cfg.Auth, cfg.App.BaseURL, mailer, services.NewLogCodeSender(zl), zl),
		Users:         services.NewUserService(store, cascadeService, notificationService, zl),
		Categories:    categoryService,
		Listings:      listingService,
		Search:        services.NewSearchService(store.Listings, categoryService),
		Notifications: notificationService,
		Messages:      services.NewMessageService(store, notificationService, publisher, zl),
		Uploads:       services.NewUploadService(objects, cfg.Storage, zl),
	}

	var wg sync.WaitGroup
	shutdownChan := make(chan struct{}, 1)

	var serviceSrv *http.Server
	if cfg.HTTP.ServicePort != "" {
		serviceSrv = &http.Server{
			Addr:    ":" + cfg.HTTP.ServicePort,
			Handler: api.SetupServiceRouter(redisClientOrNil(redisClient), zl, shutdownChan),
		}
		wg.Add(1)
		go func() {
			defer wg.Done()
			zl.Info("Service API listening", zap.String("addr", serviceSrv.Addr))
			if err := serviceSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				zl.Fatal("Service API ListenAndServe error", zap.Error(err))
			}
		}()
	}

	var (
		mainAPISrv *http.Server
		taskSrv    *asynq.Server
		scheduler  *asynq.Scheduler
	)

	apiMode := func() {
		limiter := middleware.NewRateLimiterMiddleware(cfg.RateLimit, zl)
		go limiter.Run(ctx)

		router := api.SetupRouter(svc, api.Options{
			Config:      cfg,
			Logger:      zl,
			DB:          dbPinger,
			RateLimiter: limiter,
			Metrics:     m,
			Tracer:      tp,
			UploadsDir:  uploadsDir,
			Version:     version,
		})
		mainAPISrv = &http.Server{
			Addr:              ":" + cfg.HTTP.Port,
			Handler:           router,
			ReadHeaderTimeout: 10 * time.Second,
		}
		wg.Add(1)
		go func() {
			defer wg.Done()
			zl.Info("Main API listening", zap.String("addr", mainAPISrv.Addr), zap.String("version", version))
			if err := mainAPISrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				zl.Fatal("Main API ListenAndServe error", zap.Error(err))
			}
		}()
	}

	bgMode := func() {
		if !cfg.Tasks.Enabled {
			zl.Warn("Background worker requested but TASKS_ENABLED is false; skipping")
			return
		}
		processor := tasks.NewTaskProcessor(directMailer, listingService, listingService, cascadeService,
			categoryService, notificationService, observer, zl)
		taskSrv = tasks.NewServer(cfg.Redis, cfg.Tasks.Concurrency, zl)
		scheduler = tasks.NewScheduler(cfg.Redis, zl)
		if err := tasks.RegisterPeriodic(scheduler, zl); err != nil {
			zl.Fatal("Failed to register periodic tasks", zap.Error(err))
		}

		zl.Info("Background task server starting", zap.Int("concurrency", cfg.Tasks.Concurrency))
		if err := taskSrv.Start(processor.Mux()); err != nil {
			zl.Fatal("Background task server error", zap.Error(err))
		}
		if err := scheduler.Start(); err != nil {
			zl.Fatal("Task scheduler error", zap.Error(err))
		}
	}

	zl.Info("Starting application", zap.String("mode", cfg.App.RunMode), zap.String("env", cfg.App.Env))
	switch cfg.App.RunMode {
	case "api":
		apiMode()
	case "bg":
		if !cfg.Tasks.Enabled {
			zl.Fatal("Run mode 'bg' requires TASKS_ENABLED=true")
		}
		bgMode()
	case "all":
		apiMode()
		bgMode()
	default:
		zl.Fatal("Invalid run mode", zap.String("mode", cfg.App.RunMode))
	}

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-quit:
		zl.Info("Received signal, shutting down", zap.String("signal", sig.String()))
	case <-shutdownChan:
		zl.Info("Shutdown requested via service API")
	}

	ctxShutdown, cancelShutdown := context.WithTimeout(context.Background(), cfg.HTTP.ShutdownTimeout)
	defer cancelShutdown()

	if mainAPISrv != nil {
		if err := mainAPISrv.Shutdown(ctxShutdown); err != nil {
			zl.Error("Main API server shutdown error", zap.Error(err))
		}
	}
	if serviceSrv != nil {
		if err := serviceSrv.Shutdown(ctxShutdown); err != nil {
			zl.Error("Service API server shutdown error", zap.Error(err))
		}
	}
	if scheduler != nil {
		scheduler.Shutdown()
	}
	if taskSrv != nil {
		taskSrv.Shutdown()
	}
	cancel()

	wg.Wait()
	zl.Info("Server gracefully stopped")
}

// redisClientOrNil keeps a nil *redis.Client from becoming a non-nil interface.
func redisClientOrNil(c *redis.Client) redis.UniversalClient {
	if c == nil {
		return nil
	}
	return c
}
