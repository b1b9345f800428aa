package main

import (
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/getsentry/sentry-go"
	sentryfiber "github.com/getsentry/sentry-go/fiber"

	"github.com/ahmetcoskunkizilkaya/civic-portal/internal/cache"
	"github.com/ahmetcoskunkizilkaya/civic-portal/internal/config"
	"github.com/ahmetcoskunkizilkaya/civic-portal/internal/database"
	"github.com/ahmetcoskunkizilkaya/civic-portal/internal/events"
	"github.com/ahmetcoskunkizilkaya/civic-portal/internal/handlers"
	"github.com/ahmetcoskunkizilkaya/civic-portal/internal/llm"
	"github.com/ahmetcoskunkizilkaya/civic-portal/internal/logging"
	"github.com/ahmetcoskunkizilkaya/civic-portal/internal/mail"
	"github.com/ahmetcoskunkizilkaya/civic-portal/internal/metrics"
	"github.com/ahmetcoskunkizilkaya/civic-portal/internal/middleware"
	"github.com/ahmetcoskunkizilkaya/civic-portal/internal/routes"
	"github.com/ahmetcoskunkizilkaya/civic-portal/internal/services"
	"github.com/ahmetcoskunkizilkaya/civic-portal/internal/storage"
	"github.com/gofiber/fiber/v2"
	fiberlogger "github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/gofiber/fiber/v2/middleware/requestid"
)

func main() {
	cfg := config.Load()

	// Structured logging (JSON to stdout)
	stdoutHandler := logging.Setup(cfg.AppEnv)

	if cfg.JWTSecret == "" {
		slog.Error("JWT_SECRET environment variable is required")
		os.Exit(1)
	}
	if cfg.DBPassword == "" {
		slog.Error("DB_PASSWORD environment variable is required")
		os.Exit(1)
	}

	// Database
	if err := database.Connect(cfg); err != nil {
		slog.Error("database connection failed", "error", err)
		os.Exit(1)
	}
	if err := database.Migrate(database.DB); err != nil {
		slog.Error("migration failed", "error", err)
		os.Exit(1)
	}

	// Database log handler (ERROR+ async batch)
	dbLogHandler := logging.NewDBHandler(database.DB, 5*time.Second)
	slog.SetDefault(slog.New(logging.NewMultiHandler(stdoutHandler, dbLogHandler)))

	// Log cleanup (30-day retention)
	cleanupDone := make(chan struct{})
	logging.StartCleanup(database.DB, 30*24*time.Hour, cleanupDone)

	// Cache (optional; searches still work without it)
	var store cache.Store = cache.Nop{}
	var cachePinger handlers.Pinger
	if cfg.RedisURL != "" {
		redisCache, err := cache.NewRedisCache(cfg.RedisURL)
		if err != nil {
			slog.Warn("redis unavailable, caching disabled", "error", err)
		} else {
			defer redisCache.Close()
			store = redisCache
			cachePinger = redisCache
		}
	}

	// Moderation events
	var publisher events.Publisher = events.LogPublisher{}
	if len(cfg.KafkaBrokers) > 0 {
		publisher = events.NewKafkaPublisher(cfg.KafkaBrokers, cfg.KafkaTopic)
		slog.Info("kafka publisher enabled", "brokers", cfg.KafkaBrokers, "topic", cfg.KafkaTopic)
	}

	// Mail
	var mailer mail.Mailer = mail.LogMailer{}
	if cfg.SMTPHost != "" {
		mailer = mail.NewSMTPMailer(mail.SMTPConfig{
			Host:     cfg.SMTPHost,
			Port:     cfg.SMTPPort,
			Username: cfg.SMTPUser,
			Password: cfg.SMTPPassword,
			From:     cfg.SMTPFrom,
		})
	}

	fileStore := storage.NewLocalStore(cfg.StorageDir, cfg.PublicBaseURL)

	// Services
	roleService := services.NewRoleService(database.DB, cfg.AdminEmails)
	contentFilter := services.NewContentFilter()
	authService := services.NewAuthService(database.DB, cfg, roleService)
	inviteService := services.NewInviteService(database.DB, mailer, cfg.FrontendURL, cfg.InviteTTL)
	contentService := services.NewContentService(database.DB)
	submissionService := services.NewSubmissionService(database.DB, roleService, contentFilter, publisher)
	approvalService := services.NewApprovalService(database.DB, publisher)
	modificationService := services.NewModificationService(database.DB, roleService, publisher)
	reportService := services.NewReportService(database.DB)
	civicAuthService := services.NewCivicAuthService(database.DB, mailer, cfg.FrontendURL, cfg.CivicSessionTTL)
	civicContentService := services.NewCivicContentService(database.DB, fileStore)
	llmClient := llm.NewClient(cfg.OpenAIAPIURL, cfg.OpenAIAPIKey, cfg.OpenAIModel)
	agencyService := services.NewAgencyService(database.DB, llmClient, store, cfg.SearchCacheTTL, cfg.AITimeout)
	documentService := services.NewDocumentService(database.DB)

	// agency directory edits and document ingests retire cached matcher results
	submissionService.OnLiveWrite(agencyService.ContentChanged)
	modificationService.OnLiveWrite(agencyService.ContentChanged)
	documentService.OnIngest(agencyService.ContentChanged)

	// Handlers
	h := routes.Handlers{
		Auth:       handlers.NewAuthHandler(authService, inviteService),
		Health:     handlers.NewHealthHandler(cachePinger),
		Content:    handlers.NewContentHandler(contentService, submissionService, modificationService, fileStore),
		Moderation: handlers.NewModerationHandler(approvalService, modificationService, reportService),
		Civic:      handlers.NewCivicHandler(civicAuthService, civicContentService),
		Agency:     handlers.NewAgencyHandler(agencyService, documentService),
	}

	// Sentry error tracking
	if cfg.SentryDSN != "" {
		if err := sentry.Init(sentry.ClientOptions{
			Dsn:              cfg.SentryDSN,
			EnableTracing:    true,
			TracesSampleRate: 0.2,
			Environment:      cfg.AppEnv,
		}); err != nil {
			slog.Error("sentry init failed", "error", err)
		} else {
			defer sentry.Flush(2 * time.Second)
		}
	}

	// Fiber app
	app := fiber.New(fiber.Config{
		BodyLimit:    12 * 1024 * 1024,
		ErrorHandler: customErrorHandler,
	})

	// Sentry middleware
	app.Use(sentryfiber.New(sentryfiber.Options{
		Repanic:         true,
		WaitForDelivery: false,
	}))

	// Global middleware
	app.Use(recover.New())
	app.Use(requestid.New())
	app.Use(metrics.Middleware())
	app.Use(fiberlogger.New(fiberlogger.Config{
		Format: "${time} | ${status} | ${latency} | ${ip} | ${method} | ${path}\n",
	}))
	app.Use(middleware.CORS(cfg))
	app.Use(func(c *fiber.Ctx) error {
		c.Set("X-Content-Type-Options", "nosniff")
		c.Set("X-Frame-Options", "DENY")
		c.Set("X-XSS-Protection", "1; mode=block")
		return c.Next()
	})

	// Routes
	routes.Setup(app, cfg, roleService, civicAuthService, h)

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		slog.Info("server starting", "port", cfg.Port)
		if err := app.Listen(":" + cfg.Port); err != nil {
			slog.Error("server failed to start", "error", err)
			os.Exit(1)
		}
	}()

	<-quit
	slog.Info("shutting down server...")

	close(cleanupDone)
	dbLogHandler.Stop()
	if err := publisher.Close(); err != nil {
		slog.Error("event publisher close error", "error", err)
	}
	sentry.Flush(2 * time.Second)

	if err := app.Shutdown(); err != nil {
		slog.Error("server shutdown error", "error", err)
	}

	// Close database connections
	if sqlDB, err := database.DB.DB(); err == nil {
		if err := sqlDB.Close(); err != nil {
			slog.Error("database close error", "error", err)
		}
	}

	slog.Info("server stopped")
}

func customErrorHandler(c *fiber.Ctx, err error) error {
	code := fiber.StatusInternalServerError
	message := "Internal server error"
	if e, ok := err.(*fiber.Error); ok {
		code = e.Code
		message = e.Message
	}

	// Only expose error details for client errors (4xx), not server errors (5xx)
	if code >= 500 {
		slog.Error("unhandled server error", "method", c.Method(), "path", c.Path(), "error", err.Error())
		message = "Internal server error"
	}

	return c.Status(code).JSON(fiber.Map{
		"error":   true,
		"message": message,
	})
}
