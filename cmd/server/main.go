package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	appbilling "github.com/propman/backend/internal/application/billing"
	appcredit "github.com/propman/backend/internal/application/credit"
	"github.com/propman/backend/internal/domain/billing"
	"github.com/propman/backend/internal/domain/shared/valueobject"
	"github.com/propman/backend/internal/infrastructure/cache"
	"github.com/propman/backend/internal/infrastructure/config"
	"github.com/propman/backend/internal/infrastructure/event"
	"github.com/propman/backend/internal/infrastructure/logger"
	"github.com/propman/backend/internal/infrastructure/persistence"
	"github.com/propman/backend/internal/infrastructure/telemetry"
	"github.com/propman/backend/internal/interfaces/http/handler"
	"github.com/propman/backend/internal/interfaces/http/middleware"
	"github.com/propman/backend/internal/interfaces/http/router"
	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		panic("Failed to load configuration: " + err.Error())
	}

	// Initialize logger
	log, err := logger.New(&logger.Config{
		Level:      cfg.Log.Level,
		Format:     cfg.Log.Format,
		Output:     cfg.Log.Output,
		TimeFormat: "2006-01-02T15:04:05.000Z07:00",
	})
	if err != nil {
		panic("Failed to initialize logger: " + err.Error())
	}
	defer func() {
		_ = log.Sync()
	}()

	log.Info("Starting billing engine",
		zap.String("app", cfg.App.Name),
		zap.String("env", cfg.App.Env),
		zap.String("port", cfg.App.Port),
	)

	// Tracing
	tracerProvider, err := telemetry.NewTracerProvider(context.Background(), telemetry.Config{
		Enabled:           cfg.Telemetry.Enabled,
		CollectorEndpoint: cfg.Telemetry.CollectorEndpoint,
		SamplingRatio:     cfg.Telemetry.SamplingRatio,
		ServiceName:       cfg.Telemetry.ServiceName,
		Insecure:          cfg.Telemetry.Insecure,
	}, log)
	if err != nil {
		log.Fatal("Failed to initialize tracing", zap.Error(err))
	}
	defer func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := tracerProvider.Shutdown(ctx); err != nil {
			log.Error("Error shutting down tracer provider", zap.Error(err))
		}
	}()

	// Continuous profiling
	profiler, err := telemetry.StartProfiler(telemetry.ProfilerConfig{
		Enabled:         cfg.Profiling.Enabled,
		ServerAddress:   cfg.Profiling.ServerAddress,
		ApplicationName: cfg.Profiling.ApplicationName,
		Tags:            map[string]string{"env": cfg.App.Env},
	}, log)
	if err != nil {
		log.Fatal("Failed to start profiler", zap.Error(err))
	}
	defer func() {
		if err := profiler.Stop(); err != nil {
			log.Error("Error stopping profiler", zap.Error(err))
		}
	}()

	// Database with zap-backed GORM logger
	gormLog := logger.NewGormLogger(log, logger.MapGormLogLevel(cfg.Log.Level))
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

	if cfg.Telemetry.Enabled && cfg.Telemetry.DBTraceEnabled {
		dbTracing := telemetry.NewDBTracingPlugin(telemetry.DefaultDBTracingConfig(), log)
		if err := dbTracing.RegisterOtelGorm(db.DB); err != nil {
			log.Warn("Failed to register database tracing", zap.Error(err))
		}
	}

	// Repositories
	uow := persistence.NewGormUnitOfWork(db.DB)
	billRepo := persistence.NewGormBillRepository(db.DB)
	readingRepo := persistence.NewGormMeterReadingRepository(db.DB)
	markerRepo := persistence.NewGormYearMarkerRepository(db.DB)
	balanceRepo := persistence.NewGormCreditBalanceRepository(db.DB)
	txnRepo := persistence.NewGormCreditTransactionRepository(db.DB)

	// Year view cache: Redis with in-memory fallback
	cacheFactory := cache.NewYearViewCacheFactory(cfg.Redis, cfg.Billing.YearViewCacheTTL,
		cache.WithLogger(log),
		cache.WithInMemoryFallback(true),
	)
	yearViewCache, err := cacheFactory.CreateCache()
	if err != nil {
		log.Fatal("Failed to create year view cache", zap.Error(err))
	}

	// Billing policy from configuration
	penaltyRate, err := decimal.NewFromString(cfg.Billing.PenaltyRate)
	if err != nil {
		log.Fatal("Invalid penalty rate in configuration",
			zap.String("penalty_rate", cfg.Billing.PenaltyRate), zap.Error(err))
	}
	policies := appbilling.NewStaticPolicyProvider(billing.Policy{
		FiscalStartMonth: time.Month(cfg.Billing.FiscalStartMonth),
		RatePerUnit:      valueobject.NewMoney(cfg.Billing.RatePerUnit),
		PenaltyRate:      penaltyRate,
		DueDayOffset:     cfg.Billing.DueDayOffset,
		PenaltyAccrual:   billing.PenaltyAccrual(cfg.Billing.PenaltyAccrual),
	})

	// Domain event bus with the audit trail subscribed
	eventBus := event.NewInMemoryEventBus(log)
	eventBus.Subscribe(event.NewAuditLogHandler(log))

	// Application services
	billingService := appbilling.NewBillingService(uow, policies, appbilling.WithEventPublisher(eventBus))
	allocationService := appbilling.NewAllocationService(uow, appbilling.WithEventPublisher(eventBus))
	adminService := appbilling.NewAdminService(uow, appbilling.WithEventPublisher(eventBus))
	yearViewService := appbilling.NewYearViewService(billRepo, readingRepo, markerRepo, yearViewCache)
	statementService := appbilling.NewStatementService(billRepo, balanceRepo)
	creditService := appcredit.NewCreditQueryService(balanceRepo, txnRepo)

	// HTTP handlers
	readingHandler := handler.NewReadingHandler(billingService)
	billHandler := handler.NewBillHandler(billingService)
	paymentHandler := handler.NewPaymentHandler(allocationService)
	yearViewHandler := handler.NewYearViewHandler(yearViewService, statementService)
	creditHandler := handler.NewCreditHandler(creditService)
	adminHandler := handler.NewAdminHandler(adminService)
	systemHandler := handler.NewSystemHandler(db)

	if cfg.App.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}
	middleware.SetupValidator()

	engine := gin.New()

	if len(cfg.HTTP.TrustedProxies) > 0 {
		if err := engine.SetTrustedProxies(cfg.HTTP.TrustedProxies); err != nil {
			log.Warn("Failed to set trusted proxies", zap.Error(err))
		}
	}

	// Middleware stack, outermost first
	engine.Use(middleware.RequestID())
	engine.Use(logger.Recovery(log))
	engine.Use(logger.GinMiddleware(log))
	engine.Use(middleware.CORSWithConfig(middleware.CORSConfig{
		AllowOrigins:  cfg.HTTP.CORSAllowOrigins,
		AllowMethods:  cfg.HTTP.CORSAllowMethods,
		AllowHeaders:  cfg.HTTP.CORSAllowHeaders,
		ExposeHeaders: []string{"X-Request-ID"},
		MaxAge:        12 * time.Hour,
	}))
	engine.Use(middleware.BodyLimit(cfg.HTTP.MaxBodySize))
	engine.Use(middleware.TracingWithConfig(middleware.TracingConfig{
		ServiceName: cfg.Telemetry.ServiceName,
		Enabled:     cfg.Telemetry.Enabled,
	}))

	// Probe and info endpoints stay outside the client-scoped API
	engine.GET("/health", systemHandler.Health)
	engine.GET("/ready", systemHandler.Ready)
	engine.GET("/api/v1/system/info", systemHandler.GetSystemInfo)

	// Every data-bearing route requires the client scope header
	r := router.NewRouter(engine,
		router.WithAPIVersion("v1"),
		router.WithMiddleware(middleware.ClientScope()),
	)
	r.Register(readingHandler).
		Register(billHandler).
		Register(paymentHandler).
		Register(yearViewHandler).
		Register(creditHandler).
		Register(adminHandler)
	r.Setup()

	srv := &http.Server{
		Addr:           ":" + cfg.App.Port,
		Handler:        engine,
		ReadTimeout:    cfg.HTTP.ReadTimeout,
		WriteTimeout:   cfg.HTTP.WriteTimeout,
		IdleTimeout:    cfg.HTTP.IdleTimeout,
		MaxHeaderBytes: cfg.HTTP.MaxHeaderBytes,
	}

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
