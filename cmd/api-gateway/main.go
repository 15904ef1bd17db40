package main

import (
	"context"
	"fmt"
	"log"
	"net/http"

	"github.com/gin-gonic/gin"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"

	_ "github.com/noah-isme/peerobs-api/api/swagger"
	"github.com/noah-isme/peerobs-api/internal/handler"
	"github.com/noah-isme/peerobs-api/internal/lock"
	"github.com/noah-isme/peerobs-api/internal/middleware"
	"github.com/noah-isme/peerobs-api/internal/models"
	"github.com/noah-isme/peerobs-api/internal/repository"
	"github.com/noah-isme/peerobs-api/internal/service"
	"github.com/noah-isme/peerobs-api/pkg/cache"
	"github.com/noah-isme/peerobs-api/pkg/config"
	"github.com/noah-isme/peerobs-api/pkg/database"
	"github.com/noah-isme/peerobs-api/pkg/gcal"
	"github.com/noah-isme/peerobs-api/pkg/logger"
	corsmiddleware "github.com/noah-isme/peerobs-api/pkg/middleware/cors"
	reqidmiddleware "github.com/noah-isme/peerobs-api/pkg/middleware/requestid"
	"github.com/noah-isme/peerobs-api/pkg/notifier"
)

// @title Peer Observation API
// @version 1.0.0
// @description Peer classroom observation scheduling service
// @BasePath /api/v1
// @schemes http

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

	db, err := database.NewPostgres(cfg.Database)
	if err != nil {
		logr.Sugar().Fatalw("failed to connect to postgres", "error", err)
	}
	defer db.Close()

	cacheRepo := repository.NewCacheRepository(nil, logr)
	if cfg.Cache.Enabled {
		redisClient, err := cache.NewRedis(cfg.Redis)
		if err != nil {
			logr.Sugar().Warnw("redis unavailable, response cache disabled", "error", err)
		} else {
			cacheRepo = repository.NewCacheRepository(redisClient, logr)
		}
	}
	defer cacheRepo.Close()

	var mail notifier.Notifier = notifier.Noop{}
	if cfg.Mail.Enabled {
		mail = notifier.NewSMTP(cfg.Mail, logr)
	}

	var cal gcal.Calendar = gcal.Noop{}
	if cfg.Calendar.Enabled {
		client, err := gcal.NewClient(context.Background(), cfg.Calendar)
		if err != nil {
			logr.Sugar().Warnw("google calendar unavailable, event sync disabled", "error", err)
		} else {
			cal = client
		}
	}

	teacherRepo := repository.NewTeacherRepository(db)
	observationRepo := repository.NewObservationRepository(db)
	substituteRepo := repository.NewSubstituteRepository(db)
	bellScheduleRepo := repository.NewBellScheduleRepository(db)
	userRepo := repository.NewUserRepository(db)
	auditRepo := repository.NewAuditRepository(db)
	accessRepo := repository.NewAccessRequestRepository(db)

	guard := lock.New(cfg.Booking.LockTimeout)

	catalogSvc := service.NewCatalogService(bellScheduleRepo, logr)
	availabilitySvc := service.NewAvailabilityService(catalogSvc, teacherRepo, observationRepo, logr)
	requirementSvc := service.NewRequirementService(observationRepo, teacherRepo, cfg.SchoolYear, logr)
	bookingSvc := service.NewBookingService(teacherRepo, observationRepo, substituteRepo, auditRepo, catalogSvc, requirementSvc, guard, mail, cal, cfg.Mail.CoordinatorEmail, logr)
	substituteSvc := service.NewSubstituteService(substituteRepo, observationRepo, teacherRepo, auditRepo, catalogSvc, guard, mail, cal, logr)
	teacherSvc := service.NewTeacherService(teacherRepo, auditRepo, logr)
	accessSvc := service.NewAccessService(accessRepo, userRepo, teacherRepo, auditRepo, mail, logr)
	authSvc := service.NewAuthService(userRepo, auditRepo, service.AuthConfig{
		Secret:     cfg.JWT.Secret,
		Expiration: cfg.JWT.Expiration,
		Issuer:     cfg.JWT.Issuer,
	}, logr)
	exportSvc := service.NewExportService(observationRepo, teacherRepo, logr)
	metricsSvc := service.NewMetricsService()

	authHandler := handler.NewAuthHandler(authSvc)
	teacherHandler := handler.NewTeacherHandler(teacherSvc)
	availabilityHandler := handler.NewAvailabilityHandler(availabilitySvc, catalogSvc, cacheRepo, metricsSvc, cfg.Cache)
	bookingHandler := handler.NewBookingHandler(bookingSvc, metricsSvc, cacheRepo)
	substituteHandler := handler.NewSubstituteHandler(substituteSvc, metricsSvc, cacheRepo)
	requirementHandler := handler.NewRequirementHandler(requirementSvc)
	accessHandler := handler.NewAccessHandler(accessSvc)
	exportHandler := handler.NewExportHandler(exportSvc)

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(reqidmiddleware.Middleware())
	r.Use(logger.GinMiddleware(logr))
	r.Use(corsmiddleware.New(cfg.CORS.AllowedOrigins))
	r.Use(middleware.Metrics(metricsSvc))
	r.Use(middleware.WithResponseMeta())

	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	r.GET("/ready", func(c *gin.Context) {
		if err := db.PingContext(c.Request.Context()); err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "unready"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"status": "ready"})
	})
	r.GET("/metrics", gin.WrapH(metricsSvc.Handler()))

	if cfg.Env != config.EnvProduction {
		r.GET("/docs/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	api := r.Group(cfg.APIPrefix)

	api.POST("/auth/login", authHandler.Login)
	api.POST("/access-requests", accessHandler.Submit)

	authed := api.Group("")
	authed.Use(middleware.JWT(authSvc))
	{
		authed.GET("/auth/me", authHandler.Me)
		authed.PUT("/auth/password", authHandler.ChangePassword)

		authed.GET("/teachers", teacherHandler.List)
		authed.GET("/teachers/:id", teacherHandler.Get)
		authed.GET("/availability", availabilityHandler.Slots)
		authed.GET("/schedule/bell", availabilityHandler.BellSchedule)
		authed.GET("/bookings", bookingHandler.List)
		authed.GET("/bookings/:id", bookingHandler.Get)
		authed.GET("/requirements/me", requirementHandler.Mine)

		booking := authed.Group("")
		booking.Use(middleware.RequireRoles(models.RoleTeacher, models.RoleAdmin))
		{
			booking.POST("/bookings", bookingHandler.Create)
			booking.PUT("/bookings/:id", bookingHandler.Reschedule)
			booking.POST("/bookings/:id/cancel", bookingHandler.Cancel)
		}

		admin := authed.Group("")
		admin.Use(middleware.RequireRoles(models.RoleAdmin))
		{
			admin.POST("/teachers", teacherHandler.Create)
			admin.PUT("/teachers/:id", teacherHandler.Update)
			admin.DELETE("/teachers/:id", teacherHandler.Deactivate)

			admin.DELETE("/bookings/:id", bookingHandler.Delete)

			admin.GET("/substitutes", substituteHandler.List)
			admin.GET("/substitutes/:id", substituteHandler.Get)
			admin.POST("/substitutes/:id/approve", substituteHandler.Approve)
			admin.POST("/substitutes/:id/deny", substituteHandler.Deny)

			admin.GET("/requirements/teachers/:id", requirementHandler.ForTeacher)

			admin.GET("/access-requests", accessHandler.ListPending)
			admin.POST("/access-requests/:id/approve", accessHandler.Approve)
			admin.POST("/access-requests/:id/deny", accessHandler.Deny)

			admin.GET("/exports/observations.csv", exportHandler.CSV)
			admin.GET("/exports/observations.pdf", exportHandler.PDF)
		}
	}

	addr := fmt.Sprintf(":%d", cfg.Port)
	logr.Sugar().Infow("server starting", "addr", addr, "env", cfg.Env)
	if err := r.Run(addr); err != nil {
		logr.Sugar().Fatalw("server failed", "error", err)
	}
}
