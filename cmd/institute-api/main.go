package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	_ "github.com/fos7a/institute-api/api/swagger"
	"github.com/fos7a/institute-api/internal/catalog"
	"github.com/fos7a/institute-api/internal/handler"
	"github.com/fos7a/institute-api/internal/repository"
	"github.com/fos7a/institute-api/internal/service"
	"github.com/fos7a/institute-api/pkg/cache"
	"github.com/fos7a/institute-api/pkg/config"
	"github.com/fos7a/institute-api/pkg/database"
	"github.com/fos7a/institute-api/pkg/export"
	"github.com/fos7a/institute-api/pkg/jobs"
	"github.com/fos7a/institute-api/pkg/logger"
	"github.com/fos7a/institute-api/pkg/mail"
	"github.com/fos7a/institute-api/pkg/storage"
)

// @title Institute API
// @version 1.0.0
// @description Enrollment backend of a trilingual language institute: catalog, cart, admissions, portal, documents and gallery.
// @BasePath /api/v1
// @schemes http https
// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	logr, err := logger.New(cfg)
	if err != nil {
		log.Fatalf("failed to init logger: %v", err)
	}
	defer logr.Sync() //nolint:errcheck

	if cfg.Env == config.EnvProduction {
		gin.SetMode(gin.ReleaseMode)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	db, err := database.NewPostgres(ctx, cfg.Database)
	if err != nil {
		logr.Fatal("failed to connect to postgres", zap.Error(err))
	}
	defer db.Close() //nolint:errcheck

	var redisClient *redis.Client
	if cfg.Redis.Enabled {
		redisClient, err = cache.NewRedis(ctx, cfg.Redis)
		if err != nil {
			logr.Warn("redis unavailable, falling back to in-memory session store", zap.Error(err))
			redisClient = nil
		}
	}

	cat, err := catalog.Default()
	if err != nil {
		logr.Fatal("failed to load course catalog", zap.Error(err))
	}

	objects, err := storage.NewLocalStorage(cfg.Documents.StorageDir)
	if err != nil {
		logr.Fatal("failed to prepare document storage", zap.Error(err))
	}

	galleryObjects, err := storage.NewLocalStorage(cfg.Gallery.StorageDir)
	if err != nil {
		logr.Fatal("failed to prepare gallery storage", zap.Error(err))
	}

	var sender mail.Sender = mail.NewLogSender(logr)
	if cfg.Mail.Provider == config.MailProviderSendGrid {
		sender = mail.NewSendGridSender(cfg.Mail.SendGridAPIKey, cfg.Mail.FromName, cfg.Mail.FromAddress)
	}

	validate := validator.New()
	metrics := service.NewMetricsService()

	sessions := repository.NewCacheRepository(redisClient, logr)
	defer sessions.Close() //nolint:errcheck
	userRepo := repository.NewUserRepository(db)
	applicationRepo := repository.NewApplicationRepository(db)
	capacityRepo := repository.NewCapacityRepository(db)
	cartRepo := repository.NewCartRepository(sessions, cfg.Cart.TTL)
	documentRepo := repository.NewDocumentRepository(db)
	studentRepo := repository.NewStudentRepository(db)
	galleryRepo := repository.NewGalleryRepository(db)

	notifications := service.NewNotificationService(sender, metrics, logr, cfg.PublicURL, jobs.QueueConfig{
		Workers:    cfg.Notifications.Workers,
		BufferSize: cfg.Notifications.BufferSize,
		MaxRetries: cfg.Notifications.MaxRetries,
		RetryDelay: cfg.Notifications.RetryDelay,
		Logger:     logr,
	})
	notifications.Start(ctx)
	defer notifications.Stop()
	metrics.WatchNotificationQueue(notifications.Stats)

	authService := service.NewAuthService(userRepo, sessions, notifications, validate, logr, service.AuthConfig{
		AccessTokenSecret:  cfg.JWT.Secret,
		AccessTokenExpiry:  cfg.JWT.Expiration,
		RefreshTokenExpiry: cfg.JWT.RefreshExpiration,
		ResetTokenExpiry:   cfg.Auth.ResetTokenTTL,
		ResetCooldown:      cfg.Auth.ResendCooldown,
		Issuer:             cfg.Institute.Name,
	})
	capacityService := service.NewCapacityService(capacityRepo, cat, userRepo, metrics, logr)
	cartService := service.NewCartService(cartRepo, capacityRepo, userRepo, capacityService, cat, userRepo, metrics, logr)
	applicationService := service.NewApplicationService(applicationRepo, cat, userRepo, validate, logr)
	inboxService := service.NewInboxService(applicationRepo, userRepo, capacityService, cat, userRepo, notifications, metrics, logr)
	documentService := service.NewDocumentService(documentRepo, applicationRepo, objects,
		storage.NewSignedURLSigner(cfg.Documents.SignedURLSecret, cfg.Documents.SignedURLTTL),
		userRepo, logr, service.DocumentConfig{
			MaxFileSizeBytes: cfg.Documents.MaxFileSizeBytes,
			AllowedMIMEs:     cfg.Documents.AllowedMIMEs,
			DownloadURL:      cfg.APIPrefix + "/documents/:id/download",
		})
	studentService := service.NewStudentService(studentRepo, userRepo, userRepo, validate, logr)
	galleryService := service.NewGalleryService(galleryRepo, galleryObjects, userRepo, logr, service.GalleryConfig{
		MaxImageBytes: cfg.Gallery.MaxImageBytes,
		MaxVideoBytes: cfg.Gallery.MaxVideoBytes,
		MediaURL:      cfg.APIPrefix + "/gallery/:id/media",
	})
	portalService := service.NewPortalService(userRepo, applicationRepo, studentRepo, documentRepo, cat,
		export.NewPDFExporter(export.Letterhead{
			Name:    cfg.Institute.Name,
			City:    cfg.Institute.City,
			Address: cfg.Institute.Address,
			Email:   cfg.Institute.Email,
		}), logr)

	router := handler.NewRouter(handler.RouterDeps{
		Config:   cfg,
		Logger:   logr,
		Tokens:   authService,
		Audit:    userRepo,
		Observer: metrics,
	}, handler.Handlers{
		Auth:        handler.NewAuthHandler(authService),
		Course:      handler.NewCourseHandler(cat, capacityService),
		Cart:        handler.NewCartHandler(cartService),
		Application: handler.NewApplicationHandler(applicationService),
		Inbox:       handler.NewInboxHandler(inboxService),
		Portal:      handler.NewPortalHandler(portalService, studentService, cat),
		Document:    handler.NewDocumentHandler(documentService),
		Student:     handler.NewStudentHandler(studentService),
		Gallery:     handler.NewGalleryHandler(galleryService, cat),
		Metrics: handler.NewMetricsHandler(metrics, map[string]handler.Pinger{
			"postgres": db,
			"sessions": sessions,
		}),
	})

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Port),
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		logr.Sugar().Infow("server starting", "addr", srv.Addr, "env", cfg.Env)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logr.Sugar().Fatalw("server failed", "error", err)
		}
	}()

	<-ctx.Done()
	logr.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logr.Error("graceful shutdown failed", zap.Error(err))
	}
}
