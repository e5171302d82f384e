package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	endorsementapp "github.com/averbaflow/backend/internal/application/endorsement"
	tenantapp "github.com/averbaflow/backend/internal/application/tenant"
	"github.com/averbaflow/backend/internal/domain/endorsement"
	"github.com/averbaflow/backend/internal/infrastructure/cache"
	"github.com/averbaflow/backend/internal/infrastructure/config"
	"github.com/averbaflow/backend/internal/infrastructure/endorser"
	"github.com/averbaflow/backend/internal/infrastructure/logger"
	"github.com/averbaflow/backend/internal/infrastructure/notify"
	"github.com/averbaflow/backend/internal/infrastructure/persistence"
	"github.com/averbaflow/backend/internal/infrastructure/reconciler"
	"github.com/averbaflow/backend/internal/infrastructure/source"
	"github.com/averbaflow/backend/internal/interfaces/http/handler"
	"github.com/averbaflow/backend/internal/interfaces/http/middleware"
	"github.com/averbaflow/backend/internal/interfaces/http/router"
)

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		panic("Failed to load configuration: " + err.Error())
	}

	// Initialize logger
	log, err := logger.New(&logger.Config{
		Level:  cfg.Log.Level,
		Format: cfg.Log.Format,
		Output: cfg.Log.Output,
	})
	if err != nil {
		panic("Failed to initialize logger: " + err.Error())
	}
	defer func() {
		_ = logger.Sync(log)
	}()

	log.Info("Starting AverbaFlow",
		zap.String("app", cfg.App.Name),
		zap.String("env", cfg.App.Env),
		zap.String("port", cfg.App.Port),
	)

	// Create GORM logger backed by zap
	gormLogLevel := logger.MapGormLogLevel(cfg.Log.Level)
	gormLog := logger.NewGormLogger(log, gormLogLevel)

	// Initialize database connection with custom logger
	db, err := persistence.NewDatabaseWithLogger(&cfg.Database, gormLog)
	if err != nil {
		log.Fatal("Failed to connect to database", zap.Error(err))
	}
	defer func() {
		if err := db.Close(); err != nil {
			log.Error("Error closing database", zap.Error(err))
		}
	}()
	log.Info("Database connected successfully")

	// Initialize repositories
	tenantRepo := persistence.NewGormTenantRepository(db.DB)
	documentLedger := persistence.NewGormDocumentLedger(db.DB)

	// ERP client
	erpClient, err := source.NewERPClient(&source.Config{
		BaseURL:            cfg.Source.BaseURL,
		Token:              cfg.Source.Token,
		Timeout:            cfg.Source.Timeout,
		PageWait:           cfg.Source.PageWait,
		InsecureSkipVerify: cfg.Source.InsecureSkipVerify,
	})
	if err != nil {
		log.Fatal("Failed to configure ERP client", zap.Error(err))
	}

	// Endorsement partner client
	atmClient, err := endorser.NewATMClient(&endorser.Config{
		BaseURL:            cfg.Endorser.BaseURL,
		User:               cfg.Endorser.User,
		Password:           cfg.Endorser.Password,
		PartnerCode:        cfg.Endorser.PartnerCode,
		Timeout:            cfg.Endorser.Timeout,
		InsecureSkipVerify: cfg.Endorser.InsecureSkipVerify,
	})
	if err != nil {
		log.Fatal("Failed to configure endorsement partner client", zap.Error(err))
	}

	// Operator alerts, only when enabled
	var notifier endorsement.Notifier
	if cfg.Alert.Enabled {
		emailNotifier, err := notify.NewEmailNotifier(&notify.Config{
			Host:     cfg.Alert.Host,
			Port:     cfg.Alert.Port,
			User:     cfg.Alert.User,
			Password: cfg.Alert.Password,
			From:     cfg.Alert.From,
			To:       cfg.Alert.To,
		})
		if err != nil {
			log.Fatal("Failed to configure email alerts", zap.Error(err))
		}
		notifier = emailNotifier
		log.Info("Email alerts enabled", zap.Strings("recipients", cfg.Alert.To))
	}

	// Cycle lock: Redis when configured so multiple instances never run
	// a cycle concurrently, in-process otherwise
	var cycleLock cache.CycleLock
	if cfg.Redis.Host != "" {
		redisLock, err := cache.NewRedisCycleLock(cache.RedisConfig{
			Host:     cfg.Redis.Host,
			Port:     cfg.Redis.Port,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		}, cfg.Reconciler.LockTTL)
		if err != nil {
			log.Fatal("Failed to connect to Redis", zap.Error(err))
		}
		defer func() {
			if err := redisLock.Close(); err != nil {
				log.Error("Error closing Redis connection", zap.Error(err))
			}
		}()
		cycleLock = redisLock
		log.Info("Using Redis cycle lock", zap.String("addr", cfg.Redis.Addr()))
	} else {
		cycleLock = cache.NewLocalCycleLock()
		log.Info("Using in-process cycle lock")
	}

	// Reconciler and its interval trigger
	rec, err := reconciler.New(reconciler.Config{
		LookbackDays: cfg.Reconciler.LookbackDays,
		SearchDate:   cfg.Reconciler.SearchDate,
	}, tenantRepo, documentLedger, erpClient, atmClient, notifier, log)
	if err != nil {
		log.Fatal("Failed to configure reconciler", zap.Error(err))
	}

	trigger := reconciler.NewIntervalTrigger(reconciler.TriggerConfig{
		Interval:     cfg.Reconciler.Interval,
		CycleTimeout: cfg.Reconciler.CycleTimeout,
	}, rec, cycleLock, log)

	if cfg.Reconciler.Enabled {
		if err := trigger.Start(context.Background()); err != nil {
			log.Fatal("Failed to start reconciliation trigger", zap.Error(err))
		}
		defer func() {
			ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
			defer cancel()
			if err := trigger.Stop(ctx); err != nil {
				log.Error("Error stopping reconciliation trigger", zap.Error(err))
			}
		}()
		log.Info("Reconciliation trigger started",
			zap.Duration("interval", cfg.Reconciler.Interval),
			zap.Duration("cycle_timeout", cfg.Reconciler.CycleTimeout),
		)
	} else {
		log.Warn("Reconciliation trigger disabled, documents are only processed on manual resubmission")
	}

	// Application services
	documentService := endorsementapp.NewDocumentService(documentLedger, rec)
	tenantService := tenantapp.NewService(tenantRepo)

	// HTTP handlers
	documentHandler := handler.NewDocumentHandler(documentService)
	tenantHandler := handler.NewTenantHandler(tenantService)
	systemHandler := handler.NewSystemHandler()

	// Set Gin mode based on environment
	if cfg.App.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	engine := gin.New()

	// Configure trusted proxies
	if len(cfg.HTTP.TrustedProxies) > 0 {
		if err := engine.SetTrustedProxies(cfg.HTTP.TrustedProxies); err != nil {
			log.Warn("Failed to set trusted proxies", zap.Error(err))
		}
	}

	// Middleware stack: request ID, panic recovery, request logging, CORS
	engine.Use(middleware.RequestID())
	engine.Use(logger.Recovery(log))
	engine.Use(logger.GinMiddleware(log))

	corsConfig := middleware.DefaultCORSConfig()
	if len(cfg.HTTP.CORSAllowOrigins) > 0 {
		corsConfig.AllowOrigins = cfg.HTTP.CORSAllowOrigins
	}
	if len(cfg.HTTP.CORSAllowMethods) > 0 {
		corsConfig.AllowMethods = cfg.HTTP.CORSAllowMethods
	}
	if len(cfg.HTTP.CORSAllowHeaders) > 0 {
		corsConfig.AllowHeaders = cfg.HTTP.CORSAllowHeaders
	}
	engine.Use(middleware.CORSWithConfig(corsConfig))

	// Health check endpoint (outside API versioning)
	engine.GET("/health", healthHandler(db))

	// Setup API routes
	r := router.NewRouter(engine, router.WithAPIVersion("v1"))

	documentRoutes := router.NewDomainGroup("documents", "/documents")
	documentRoutes.GET("", documentHandler.Search)
	documentRoutes.POST("/resubmit", documentHandler.Resubmit)
	r.Register(documentRoutes)

	dashboardRoutes := router.NewDomainGroup("dashboard", "/dashboard")
	dashboardRoutes.GET("", documentHandler.Dashboard)
	r.Register(dashboardRoutes)

	tenantRoutes := router.NewDomainGroup("tenants", "/tenants")
	tenantRoutes.POST("", tenantHandler.Create)
	tenantRoutes.GET("", tenantHandler.List)
	tenantRoutes.GET("/:id", tenantHandler.GetByID)
	tenantRoutes.PUT("/:id", tenantHandler.Update)
	tenantRoutes.DELETE("/:id", tenantHandler.Delete)
	r.Register(tenantRoutes)

	systemRoutes := router.NewDomainGroup("system", "/system")
	systemRoutes.GET("/info", systemHandler.GetSystemInfo)
	systemRoutes.GET("/ping", systemHandler.Ping)
	r.Register(systemRoutes)

	r.Setup()

	// Create HTTP server with config
	srv := &http.Server{
		Addr:           ":" + cfg.App.Port,
		Handler:        engine,
		ReadTimeout:    cfg.HTTP.ReadTimeout,
		WriteTimeout:   cfg.HTTP.WriteTimeout,
		IdleTimeout:    cfg.HTTP.IdleTimeout,
		MaxHeaderBytes: cfg.HTTP.MaxHeaderBytes,
	}

	// Start server in goroutine
	go func() {
		log.Info("Server starting", zap.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal("Failed to start server", zap.Error(err))
		}
	}()

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Info("Shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		log.Fatal("Server forced to shutdown", zap.Error(err))
	}

	log.Info("Server exited gracefully")
}

// healthHandler returns a handler for health check endpoints
func healthHandler(db *persistence.Database) gin.HandlerFunc {
	return func(c *gin.Context) {
		reqLog := logger.GetGinLogger(c)
		if err := db.Ping(); err != nil {
			reqLog.Warn("Health check failed", zap.Error(err))
			c.JSON(http.StatusServiceUnavailable, gin.H{
				"status":   "unhealthy",
				"time":     time.Now().Format(time.RFC3339),
				"database": "error",
			})
			return
		}
		c.JSON(http.StatusOK, gin.H{
			"status":   "healthy",
			"time":     time.Now().Format(time.RFC3339),
			"database": "ok",
		})
	}
}
