package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	_ "github.com/noah-isme/dept-portal-api/api/swagger"
	"github.com/noah-isme/dept-portal-api/internal/bootstrap"
	"github.com/noah-isme/dept-portal-api/internal/cron"
	"github.com/noah-isme/dept-portal-api/internal/handler"
	internalmiddleware "github.com/noah-isme/dept-portal-api/internal/middleware"
	"github.com/noah-isme/dept-portal-api/internal/repository"
	"github.com/noah-isme/dept-portal-api/internal/service"
	"github.com/noah-isme/dept-portal-api/pkg/config"
	"github.com/noah-isme/dept-portal-api/pkg/jobs"
	"github.com/noah-isme/dept-portal-api/pkg/logger"
	"github.com/noah-isme/dept-portal-api/pkg/mail"
	corsmiddleware "github.com/noah-isme/dept-portal-api/pkg/middleware/cors"
	reqidmiddleware "github.com/noah-isme/dept-portal-api/pkg/middleware/requestid"
	"github.com/noah-isme/dept-portal-api/pkg/storage"
)

// @title Dept Portal API
// @version 1.0.0
// @description Department workspace: members, timetable, substitutes, merit scores, documents, demos and notices.
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

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, logr); err != nil {
		logr.Fatal("server exited", zap.Error(err))
	}
}

func run(ctx context.Context, cfg *config.Config, logr *zap.Logger) error {
	if cfg.Env == config.EnvProduction {
		gin.SetMode(gin.ReleaseMode)
	}

	metrics := service.NewMetricsService()
	calendar := service.NewCalendar(cfg.Timezone)
	validate := service.NewValidator()

	store, closeStore, err := bootstrap.OpenStore(ctx, cfg, metrics, logr)
	if err != nil {
		return fmt.Errorf("open record store: %w", err)
	}
	defer closeStore() //nolint:errcheck

	redisClient := bootstrap.OpenRedis(cfg, logr)
	cacheRepo := repository.NewCacheRepository(redisClient, logr)
	defer cacheRepo.Close() //nolint:errcheck
	cacheService := service.NewCacheService(cacheRepo, metrics, cfg.Cache.TTL, logr, cfg.Cache.Enabled && redisClient != nil)

	collectionOpts := []repository.CollectionOption{repository.WithLogger(logr)}
	if cacheService.Enabled() {
		collectionOpts = append(collectionOpts, repository.WithCache(cacheService, cfg.Cache.TTL))
	}
	repos := repository.NewCollections(store, collectionOpts...)
	settingsRepo := repository.NewSettingRepository(redisClient)

	exportFiles, err := storage.NewLocalStorage(cfg.Exports.StorageDir)
	if err != nil {
		return fmt.Errorf("init export storage: %w", err)
	}
	signer := storage.NewSignedURLSigner(cfg.Exports.SignedURLSecret, cfg.Exports.SignedURLTTL)
	exportService := service.NewExportService(exportFiles, signer, service.ExportConfig{
		APIPrefix: cfg.APIPrefix,
		ResultTTL: cfg.Cron.FileTTL,
	}, logr)

	staging, err := storage.NewLocalStorage(cfg.Uploads.StagingDir)
	if err != nil {
		return fmt.Errorf("init staging storage: %w", err)
	}
	uploader, err := bootstrap.OpenDrive(ctx, cfg, logr)
	if err != nil {
		return fmt.Errorf("init drive: %w", err)
	}
	tracker := service.NewUploadTracker(cacheService)
	uploadCfg := service.UploadConfig{MaxFileSize: cfg.Uploads.MaxFileSizeBytes, AllowedMIMEs: cfg.Uploads.AllowedMIMEs}

	var (
		documentService *service.DocumentService
		uploadQueue     *jobs.Queue
	)
	if uploader != nil {
		worker := service.NewUploadWorker(repos.Documents, staging, uploader, tracker, metrics, calendar, cfg.Uploads.Retries, logr)
		uploadQueue = jobs.NewQueue("drive-uploads", worker.Handle, jobs.QueueConfig{
			Workers:       cfg.Uploads.Workers,
			MaxRetries:    cfg.Uploads.Retries,
			RetryDelay:    2 * time.Second,
			MaxRetryDelay: time.Minute,
			Logger:        logr,
			OnFailure:     worker.OnFailure,
		})
		uploadQueue.Start(ctx)
		defer uploadQueue.Stop()
		documentService = service.NewDocumentService(repos.Documents, staging, uploader, uploadQueue, tracker, uploadCfg, validate, logr)
	} else {
		documentService = service.NewDocumentService(repos.Documents, staging, nil, nil, tracker, uploadCfg, validate, logr)
	}

	var mailer mail.Mailer = mail.NewLogMailer(logr)
	if cfg.Mail.SendGridKey != "" {
		mailer = mail.NewSendGrid(cfg.Mail.SendGridKey, cfg.Mail.AppName, cfg.Mail.FromEmail, "")
	}

	authService := service.NewAuthService(repos.Users, validate, logr, service.AuthConfig{
		AccessTokenSecret: cfg.JWT.Secret,
		AccessTokenExpiry: cfg.JWT.Expiration,
		Issuer:            cfg.JWT.Issuer,
		AdminUsernames:    cfg.Admin.Usernames,
	})
	if err := authService.EnsureBootstrapAdmin(ctx, cfg.Admin.BootstrapUsername, cfg.Admin.BootstrapPassword, cfg.Admin.BootstrapName); err != nil {
		logr.Warn("bootstrap admin not created", zap.Error(err))
	}

	userService := service.NewUserService(repos.Users, validate, logr)
	scheduleService := service.NewScheduleService(repos.Schedule, repos.Users, validate, logr)
	substituteService := service.NewSubstituteService(repos.Substitutes, repos.Schedule, repos.Users, calendar, validate, logr)
	scoreService := service.NewScoreService(repos.Scores, repos.Users, exportService, calendar, logr)
	demoService := service.NewDemoService(repos.Demos, repos.Schedule, repos.Users, calendar, validate, logr)
	lessonPlanService := service.NewLessonPlanService(repos.LessonPlans, repos.Users, exportService, calendar, cfg.Exports.PDFFontFile, validate, logr)
	notificationService := service.NewNotificationService(repos.Notifications, repos.Users, mailer, metrics, calendar, cfg.Mail.AppName, validate, logr)
	settingService := service.NewSettingService(settingsRepo, cfg.Google.OAuthClientID, logr)
	dashboardService := service.NewDashboardService(service.DashboardServiceParams{
		Users:         repos.Users,
		Schedule:      repos.Schedule,
		Substitutes:   substituteService,
		Demos:         repos.Demos,
		Notifications: notificationService,
		Calendar:      calendar,
		Cache:         cacheService,
		Logger:        logr,
		Config:        service.DashboardServiceConfig{CacheTTL: cfg.Cache.DashboardTTL},
	})

	handlers := handler.Handlers{
		Auth:          handler.NewAuthHandler(authService),
		Users:         handler.NewUserHandler(userService),
		Schedule:      handler.NewScheduleHandler(scheduleService),
		Substitutes:   handler.NewSubstituteHandler(substituteService),
		Scores:        handler.NewScoreHandler(scoreService),
		Documents:     handler.NewDocumentHandler(documentService),
		Demos:         handler.NewDemoHandler(demoService),
		LessonPlans:   handler.NewLessonPlanHandler(lessonPlanService),
		Notifications: handler.NewNotificationHandler(notificationService),
		Dashboard:     handler.NewDashboardHandler(dashboardService),
		Settings:      handler.NewSettingHandler(settingService),
		Exports:       handler.NewExportHandler(exportService),
		Meta:          handler.NewMetaHandler(),
		Metrics:       handler.NewMetricsHandler(metrics, store),
	}
	if uploadQueue != nil {
		handlers.Metrics.WithQueue("drive-uploads", uploadQueue)
	}

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(reqidmiddleware.Middleware())
	r.Use(logger.GinMiddleware(logr))
	r.Use(corsmiddleware.New(cfg.CORS.AllowedOrigins))
	r.Use(internalmiddleware.Metrics(metrics))
	r.Use(internalmiddleware.WithResponseMeta())
	r.MaxMultipartMemory = 8 << 20

	handler.RegisterRoutes(r, handlers, handler.RouterConfig{
		APIPrefix: cfg.APIPrefix,
		Tokens:    authService,
		Logger:    logr,
	})

	if cfg.Env != config.EnvProduction {
		r.GET("/docs/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	var scheduler *cron.Scheduler
	if cfg.Cron.Enabled {
		scheduler, err = cron.New(calendar.Location(), logr)
		if err != nil {
			return err
		}
		for _, job := range cron.MaintenanceJobs(cfg.Cron, cron.Maintenance{
			Staging:   documentService,
			Exports:   exportService,
			Reminders: notificationService,
		}, logr) {
			if err := scheduler.Add(ctx, job); err != nil {
				return err
			}
		}
		scheduler.Start()
	}

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Port),
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	group, groupCtx := errgroup.WithContext(ctx)
	group.Go(func() error {
		logr.Info("server starting", zap.String("addr", srv.Addr), zap.String("env", cfg.Env), zap.String("store", cfg.Store.Driver))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	group.Go(func() error {
		<-groupCtx.Done()
		logr.Info("shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()
		if scheduler != nil {
			if err := scheduler.Shutdown(); err != nil {
				logr.Warn("cron shutdown failed", zap.Error(err))
			}
		}
		return srv.Shutdown(shutdownCtx)
	})
	return group.Wait()
}
