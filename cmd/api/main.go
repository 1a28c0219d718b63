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
	"github.com/go-playground/validator/v10"
	"github.com/redis/go-redis/v9"

	"github.com/moodyoga/studio-api/internal/handler"
	"github.com/moodyoga/studio-api/internal/middleware"
	"github.com/moodyoga/studio-api/internal/models"
	"github.com/moodyoga/studio-api/internal/repository"
	"github.com/moodyoga/studio-api/internal/service"
	"github.com/moodyoga/studio-api/internal/store"
	"github.com/moodyoga/studio-api/pkg/cache"
	"github.com/moodyoga/studio-api/pkg/config"
	"github.com/moodyoga/studio-api/pkg/database"
	"github.com/moodyoga/studio-api/pkg/logger"
	corsmiddleware "github.com/moodyoga/studio-api/pkg/middleware/cors"
	reqidmiddleware "github.com/moodyoga/studio-api/pkg/middleware/requestid"
)

// @title Mood Yoga Studio API
// @version 1.0.0
// @description Enrollment, payment and catalog service for the studio
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

	var redisClient *redis.Client
	if cfg.Redis.Enabled {
		redisClient, err = cache.NewRedis(cfg.Redis)
		if err != nil {
			logr.Sugar().Warnw("redis unavailable, response cache disabled", "error", err)
			redisClient = nil
		} else {
			defer redisClient.Close()
		}
	}

	var remote store.CatalogRemote
	if cfg.Remote.Enabled {
		mongoCatalog, err := store.NewMongoCatalog(context.Background(), cfg.Remote)
		if err != nil {
			logr.Sugar().Warnw("remote catalog unavailable, running on local store only", "error", err)
		} else {
			remote = mongoCatalog
			defer mongoCatalog.Close(context.Background())
		}
	}

	fileStore, err := store.NewFileStore(cfg.Store.DataDir)
	if err != nil {
		logr.Sugar().Fatalw("failed to open ledger store", "error", err)
	}

	validate := validator.New()
	metricsService := service.NewMetricsService()

	catalogService, err := service.NewCatalogService(fileStore, remote, validate, logr, cfg.Studio.SeedCatalog)
	if err != nil {
		logr.Sugar().Fatalw("failed to load class catalog", "error", err)
	}
	enrollmentService, err := service.NewEnrollmentService(fileStore, catalogService, logr)
	if err != nil {
		logr.Sugar().Fatalw("failed to load enrollment ledger", "error", err)
	}
	paymentService, err := service.NewPaymentService(fileStore, enrollmentService, catalogService, cfg.Studio, logr)
	if err != nil {
		logr.Sugar().Fatalw("failed to load payment ledger", "error", err)
	}

	metricsService.SetLedgerSize(store.KeyClasses, len(catalogService.Cached()))
	metricsService.SetLedgerSize(store.KeyEnrollments, len(enrollmentService.All()))
	metricsService.SetLedgerSize(store.KeyPayments, len(paymentService.All()))

	userRepo := repository.NewUserRepository(db)
	authService := service.NewAuthService(userRepo, validate, logr, service.AuthConfig{
		TokenSecret: cfg.JWT.Secret,
		TokenExpiry: cfg.JWT.Expiration,
		Issuer:      cfg.JWT.Issuer,
	})
	exportService := service.NewExportService(catalogService, enrollmentService, paymentService, logr)
	dashboardService := service.NewDashboardService(catalogService, enrollmentService, paymentService, cfg.Studio, logr)

	invalidate := func(c *gin.Context) {
		middleware.InvalidateCache(c.Request.Context(), redisClient, logr)
	}

	authHandler := handler.NewAuthHandler(authService)
	classHandler := handler.NewClassHandler(catalogService, exportService, invalidate)
	enrollmentHandler := handler.NewEnrollmentHandler(enrollmentService, metricsService, invalidate)
	paymentHandler := handler.NewPaymentHandler(paymentService, metricsService)
	dashboardHandler := handler.NewDashboardHandler(dashboardService, exportService)
	metricsHandler := handler.NewMetricsHandler(metricsService)

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(reqidmiddleware.Middleware())
	r.Use(logger.GinMiddleware(logr))
	r.Use(corsmiddleware.New(cfg.CORS.AllowedOrigins))
	r.Use(middleware.Metrics(metricsService))

	r.GET("/health", metricsHandler.Health)
	r.GET("/ready", func(c *gin.Context) {
		if err := db.PingContext(c.Request.Context()); err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "degraded", "database": err.Error()})
			return
		}
		body := gin.H{"status": "ready"}
		if syncedAt, syncErr := catalogService.LastSync(); !syncedAt.IsZero() || syncErr != nil {
			body["catalog_synced_at"] = syncedAt
			body["catalog_sync_degraded"] = syncErr != nil
		}
		c.JSON(http.StatusOK, body)
	})
	r.GET("/metrics", metricsHandler.Prometheus)

	api := r.Group("/api/v1")

	auth := api.Group("/auth")
	{
		auth.POST("/register", authHandler.Register)
		auth.POST("/login", authHandler.Login)
		auth.GET("/me", middleware.JWT(authService), authHandler.Me)
		auth.PUT("/me", middleware.JWT(authService), authHandler.UpdateProfile)
		auth.POST("/change-password", middleware.JWT(authService), authHandler.ChangePassword)
	}

	classes := api.Group("/classes")
	{
		readCache := middleware.Cache(redisClient, cfg.Redis.CacheTTL, metricsService, logr)
		classes.GET("", middleware.OptionalJWT(authService), readCache, classHandler.List)
		classes.GET("/search", middleware.OptionalJWT(authService), classHandler.Search)
		classes.GET("/:id", middleware.OptionalJWT(authService), readCache, classHandler.Get)
		classes.GET("/:id/availability", classHandler.Availability)

		classes.POST("", middleware.JWT(authService), middleware.RequireRoles(models.RoleAdmin), classHandler.Create)
		classes.PUT("/:id", middleware.JWT(authService), middleware.RequireRoles(models.RoleAdmin), classHandler.Update)
		classes.DELETE("/:id", middleware.JWT(authService), middleware.RequireRoles(models.RoleAdmin), classHandler.Delete)

		classes.GET("/:id/enrollments", middleware.JWT(authService), middleware.RequireRoles(models.RoleAdmin, models.RoleInstructor), enrollmentHandler.ForClass)
		classes.GET("/:id/roster", middleware.JWT(authService), middleware.RequireRoles(models.RoleAdmin, models.RoleInstructor), classHandler.Roster)
	}

	enrollments := api.Group("/enrollments", middleware.JWT(authService))
	{
		enrollments.POST("", enrollmentHandler.Enroll)
		enrollments.GET("/me", enrollmentHandler.Mine)
		enrollments.DELETE("/:classId", enrollmentHandler.Drop)
		enrollments.PUT("/:id/attendance", middleware.RequireRoles(models.RoleAdmin, models.RoleInstructor), enrollmentHandler.UpdateAttendance)
	}

	payments := api.Group("/payments", middleware.JWT(authService))
	{
		payments.POST("", paymentHandler.Process)
		payments.GET("/me", paymentHandler.Mine)
		payments.GET("/pending", middleware.RequireRoles(models.RoleAdmin), paymentHandler.Pending)
		payments.GET("/stats", middleware.RequireRoles(models.RoleAdmin), paymentHandler.Stats)
		payments.GET("/:id", paymentHandler.Get)
		payments.POST("/:id/confirm", middleware.RequireRoles(models.RoleAdmin), paymentHandler.Confirm)
		payments.POST("/:id/fail", middleware.RequireRoles(models.RoleAdmin), paymentHandler.Fail)
	}

	dashboard := api.Group("/dashboard", middleware.JWT(authService))
	{
		dashboard.GET("", dashboardHandler.Dashboard)
		dashboard.GET("/revenue/export", middleware.RequireRoles(models.RoleAdmin), dashboardHandler.RevenueReport)
	}

	addr := fmt.Sprintf(":%d", cfg.Port)
	srv := &http.Server{Addr: addr, Handler: r}

	go func() {
		logr.Sugar().Infow("server starting", "addr", addr, "env", cfg.Env)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logr.Sugar().Fatalw("server failed", "error", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logr.Sugar().Errorw("forced shutdown", "error", err)
	}
	logr.Sugar().Infow("server stopped")
}
