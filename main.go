package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"bounty-platform/config"
	"bounty-platform/handlers"
	"bounty-platform/logging"
	"bounty-platform/middleware"
	"bounty-platform/models"
	"bounty-platform/services"
	"bounty-platform/storage"
	"bounty-platform/workers"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	fiberlogger "github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

func main() {
	cfg, envLoaded := config.Load()
	logger := logging.New(cfg.LogLevel, cfg.LogFormat)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if !envLoaded {
		logger.Info(ctx, "no .env file found, reading environment variables directly")
	}
	if err := cfg.Validate(); err != nil {
		log.Fatalf("invalid configuration: %v", err)
	}

	db, err := gorm.Open(postgres.Open(cfg.DatabaseURL), &gorm.Config{
		Logger:  gormlogger.Default.LogMode(gormlogger.Warn),
		NowFunc: func() time.Time { return time.Now().UTC() },
	})
	if err != nil {
		log.Fatalf("failed to connect to database: %v", err)
	}
	if err := db.AutoMigrate(models.Tables()...); err != nil {
		log.Fatalf("failed to migrate database: %v", err)
	}

	store, err := newAttachmentStore(ctx, cfg)
	if err != nil {
		log.Fatalf("failed to initialize attachment storage: %v", err)
	}

	policy := services.NewXPPolicy(services.SeverityWeights{
		Critical: cfg.SeverityXP.Critical,
		High:     cfg.SeverityXP.High,
		Medium:   cfg.SeverityXP.Medium,
		Low:      cfg.SeverityXP.Low,
	})
	engine := services.NewProgressionEngine(policy)

	hub := services.NewHub(32)
	notificationService := services.NewNotificationService(db, hub, logger)
	reportService := services.NewReportService(db, engine, notificationService, logger)
	progressionService := services.NewProgressionService(db, engine, logger)
	leaderboardService := services.NewLeaderboardService(db, logger)
	analyticsService := services.NewAnalyticsService(db, logger)

	if cfg.SyncServiceURL != "" {
		workers.NewUserSyncWorker(db, cfg.SyncServiceURL, cfg.GatewayToken, cfg.SyncInterval, logger).Start(ctx)
		workers.NewProgramSyncWorker(db, cfg.SyncServiceURL, cfg.GatewayToken, cfg.SyncInterval, logger).Start(ctx)
	} else {
		logger.Warn(ctx, "SYNC_SERVICE_URL not set, user and program sync disabled")
	}

	sched, err := services.StartScheduler(ctx, services.ScheduleConfig{
		ReconcileInterval:   cfg.ReconcileInterval,
		RankRefreshInterval: cfg.RankRefreshInterval,
	}, progressionService, leaderboardService, logger)
	if err != nil {
		log.Fatalf("failed to start scheduler: %v", err)
	}

	app := fiber.New(fiber.Config{
		BodyLimit: 25 * 1024 * 1024,
	})
	app.Use(recover.New())
	app.Use(fiberlogger.New())
	app.Use(cors.New(cors.Config{
		AllowOrigins:     strings.Join(cfg.AllowedOrigins, ","),
		AllowMethods:     "GET,POST,PUT,OPTIONS",
		AllowHeaders:     "Origin, Content-Type, Accept, Authorization, X-Requested-With, X-Request-ID, X-User-ID, X-User-Role",
		ExposeHeaders:    "Content-Length, Content-Type, X-Request-ID",
		AllowCredentials: true,
		MaxAge:           86400,
	}))

	if cfg.Storage.Driver == config.StorageLocal {
		app.Static("/uploads", cfg.Storage.UploadDir)
	}

	handlers.Register(app, handlers.Deps{
		GatewayToken:  cfg.GatewayToken,
		StreamTokens:  middleware.NewStreamTokens(cfg.StreamSecret),
		Reports:       reportService,
		Progression:   progressionService,
		Leaderboard:   leaderboardService,
		Analytics:     analyticsService,
		Notifications: notificationService,
		Store:         store,
		Log:           logger,
	})

	go func() {
		if err := app.Listen(":" + cfg.Port); err != nil {
			logger.Error(ctx, "server error", "error", err)
			stop()
		}
	}()
	logger.Info(ctx, "server running", "port", cfg.Port, "storage", cfg.Storage.Driver, "origins", cfg.AllowedOrigins)

	<-ctx.Done()
	logger.Info(context.Background(), "shutting down server")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := app.ShutdownWithContext(shutdownCtx); err != nil {
		logger.Error(shutdownCtx, "server shutdown failed", "error", err)
	}
	if err := sched.Shutdown(); err != nil {
		logger.Error(shutdownCtx, "scheduler shutdown failed", "error", err)
	}
	reportService.Drain()
}

func newAttachmentStore(ctx context.Context, cfg *config.Config) (storage.AttachmentStore, error) {
	if cfg.Storage.Driver == config.StorageR2 {
		return storage.NewR2Store(ctx, storage.R2Config{
			AccountID:       cfg.Storage.AccountID,
			AccessKeyID:     cfg.Storage.AccessKeyID,
			AccessKeySecret: cfg.Storage.AccessKeySecret,
			Bucket:          cfg.Storage.Bucket,
			CDNBaseURL:      cfg.Storage.CDNBaseURL,
		})
	}
	return storage.NewLocalStore(cfg.Storage.UploadDir, "/uploads")
}
