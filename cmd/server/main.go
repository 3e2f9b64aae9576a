package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/obelousov/sntledger/internal/config"
	"github.com/obelousov/sntledger/internal/handlers"
	"github.com/obelousov/sntledger/internal/logger"
	"github.com/obelousov/sntledger/internal/metrics"
	"github.com/obelousov/sntledger/internal/middleware"
	"github.com/obelousov/sntledger/internal/notify"
	"github.com/obelousov/sntledger/internal/postgres"
	"github.com/obelousov/sntledger/internal/services"
	"github.com/obelousov/sntledger/internal/store"
)

const (
	shutdownTimeout = 30 * time.Second
)

// stores groups the six persistence interfaces so backend selection stays in
// one place.
type stores struct {
	parcels   store.ParcelStore
	owners    store.OwnerStore
	timeline  store.TimelineStore
	dues      store.DueStore
	audit     store.AuditStore
	templates store.TemplateStore
}

func main() {
	// Local development reads .env; absence is fine in containers
	_ = godotenv.Load()

	// Load configuration from environment variables
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	// Initialize structured logger
	log := logger.New(cfg.Server.Env)
	log.Info("Starting dues ledger API", map[string]interface{}{
		"version":     handlers.APIVersion,
		"environment": cfg.Server.Env,
		"port":        cfg.Server.Port,
		"store":       cfg.Store.Backend,
	})

	ctx := context.Background()

	// Select the persistence backend
	var st stores
	var db *postgres.Database
	switch cfg.Store.Backend {
	case config.StorePostgres:
		db, err = postgres.NewPool(ctx, cfg.Database)
		if err != nil {
			log.Fatal("Failed to connect to database", err, map[string]interface{}{
				"host": cfg.Database.Host,
				"port": cfg.Database.Port,
				"name": cfg.Database.Name,
			})
		}
		defer db.Close()

		if err := db.Migrate(ctx); err != nil {
			log.Fatal("Failed to apply database schema", err, nil)
		}
		log.Info("Database connection established", map[string]interface{}{
			"host":     cfg.Database.Host,
			"port":     cfg.Database.Port,
			"database": cfg.Database.Name,
			"pool_min": cfg.Database.PoolMin,
			"pool_max": cfg.Database.PoolMax,
		})

		st = stores{
			parcels:   postgres.NewParcelStore(db),
			owners:    postgres.NewOwnerStore(db),
			timeline:  postgres.NewTimelineStore(db),
			dues:      postgres.NewDueStore(db),
			audit:     postgres.NewAuditStore(db),
			templates: postgres.NewTemplateStore(db),
		}
	default:
		mem := store.NewMemory()
		st = stores{
			parcels:   mem.Parcels,
			owners:    mem.Owners,
			timeline:  mem.Timeline,
			dues:      mem.Dues,
			audit:     mem.Audit,
			templates: mem.Templates,
		}
		log.Info("Using in-memory store; data will not survive restarts", nil)
	}

	// Notification transports; unconfigured channels fail per recipient
	var email, telegram notify.Notifier
	if cfg.Notify.SendGridAPIKey != "" {
		email = notify.NewSendGridNotifier(cfg.Notify.SendGridAPIKey, "SNT Board", cfg.Notify.EmailFrom)
	}
	if cfg.Notify.TelegramToken != "" {
		telegram = notify.NewTelegramNotifier(cfg.Notify.TelegramToken)
	}
	notifier := notify.NewRouter(email, telegram)

	m := metrics.New()
	locks := store.NewParcelLocks()

	// Service layer
	auditService := services.NewAuditService(st.audit, log)
	if _, _, err := auditService.VerifyStatistics(ctx); err != nil {
		log.Error("Failed to warm audit statistics cache", err, nil)
	}
	identityService := services.NewIdentityService(st.parcels, st.owners, st.timeline, st.dues, auditService, log)
	timelineService := services.NewTimelineService(st.parcels, st.owners, st.timeline, locks, auditService, m, log)
	duesService := services.NewDuesService(st.parcels, st.dues, locks, auditService, m, log)
	reportingService := services.NewReportingService(st.parcels, st.owners, st.timeline, st.dues)
	notificationService := services.NewNotificationService(
		st.templates, reportingService, notifier, auditService, m, log, cfg.Notify.Concurrency)

	// Setup Gin router
	if cfg.Server.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}
	router := gin.New()

	// Add middleware in order: RequestID -> Logger -> Recovery -> CORS -> Actor -> Metrics
	router.Use(middleware.RequestID())
	router.Use(middleware.Logger(log))
	router.Use(middleware.Recovery(log))
	router.Use(middleware.CORS(cfg.CORS.Origins))
	router.Use(middleware.Actor())
	router.Use(middleware.Metrics(m))

	// Register health check routes
	var pinger handlers.Pinger
	if db != nil {
		pinger = db
	}
	healthHandler := handlers.NewHealthHandler(pinger, cfg.Server.Env)
	router.GET("/health", healthHandler.Health)
	router.GET("/health/ready", healthHandler.Ready)
	router.GET("/api/v1/info", healthHandler.Info)
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	// Initialize handlers
	parcelHandler := handlers.NewParcelHandler(identityService, timelineService)
	ownerHandler := handlers.NewOwnerHandler(identityService)
	duesHandler := handlers.NewDuesHandler(duesService)
	reportHandler := handlers.NewReportHandler(reportingService)
	notificationHandler := handlers.NewNotificationHandler(notificationService)
	auditHandler := handlers.NewAuditHandler(auditService)

	// Register API v1 routes
	v1 := router.Group("/api/v1")
	{
		parcels := v1.Group("/parcels")
		{
			parcels.POST("", parcelHandler.Create)
			parcels.GET("", parcelHandler.List)
			parcels.GET("/:id", parcelHandler.Get)
			parcels.PUT("/:id", parcelHandler.Update)
			parcels.DELETE("/:id", parcelHandler.Delete)
			parcels.POST("/:id/owners", parcelHandler.AssignOwner)
			parcels.GET("/:id/owners", parcelHandler.History)
			parcels.GET("/:id/owners/current", parcelHandler.CurrentOwner)
		}
		v1.PUT("/ownerships/:id", parcelHandler.CorrectInterval)

		owners := v1.Group("/owners")
		{
			owners.POST("", ownerHandler.Create)
			owners.GET("", ownerHandler.List)
			owners.GET("/:id", ownerHandler.Get)
			owners.PUT("/:id", ownerHandler.Update)
			owners.DELETE("/:id", ownerHandler.Delete)
		}

		dues := v1.Group("/dues")
		{
			dues.POST("", duesHandler.Assess)
			dues.GET("", duesHandler.ListYear)
			dues.GET("/:parcel_id/:year", duesHandler.Status)
			dues.POST("/:parcel_id/:year/payments", duesHandler.RecordPayment)
		}

		reports := v1.Group("/reports")
		{
			reports.GET("/statistics", reportHandler.Statistics)
			reports.GET("/debtors", reportHandler.Debtors)
			reports.GET("/income", reportHandler.Income)
			reports.GET("/calendar", reportHandler.Calendar)
		}

		notifications := v1.Group("/notifications")
		{
			templates := notifications.Group("/templates")
			{
				templates.POST("", notificationHandler.CreateTemplate)
				templates.GET("", notificationHandler.ListTemplates)
				templates.GET("/:id", notificationHandler.GetTemplate)
				templates.PUT("/:id", notificationHandler.UpdateTemplate)
				templates.DELETE("/:id", notificationHandler.DeleteTemplate)
			}
			notifications.GET("/recipients", notificationHandler.Recipients)
			notifications.POST("/bulk", notificationHandler.DispatchBulk)
		}

		audit := v1.Group("/audit")
		{
			audit.GET("", auditHandler.Filter)
			audit.GET("/recent", auditHandler.Recent)
			audit.GET("/statistics", auditHandler.Statistics)
		}
	}

	// Create HTTP server
	srv := &http.Server{
		Addr:    fmt.Sprintf(":%s", cfg.Server.Port),
		Handler: router,
	}

	// Start server in goroutine
	go func() {
		log.Info("Server listening", map[string]interface{}{
			"port": cfg.Server.Port,
			"addr": srv.Addr,
		})
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal("Server failed to start", err, nil)
		}
	}()

	// Wait for interrupt signal (SIGINT or SIGTERM)
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	// Graceful shutdown
	log.Info("Shutting down server...", nil)

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("Server forced to shutdown", err, map[string]interface{}{
			"timeout": shutdownTimeout.String(),
		})
	}

	log.Info("Server exited", nil)
}
