package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	appbilling "github.com/cflow/backend/internal/application/billing"
	"github.com/cflow/backend/internal/infrastructure/cache"
	"github.com/cflow/backend/internal/infrastructure/config"
	"github.com/cflow/backend/internal/infrastructure/logger"
	"github.com/cflow/backend/internal/infrastructure/persistence"
	"github.com/cflow/backend/internal/interfaces/http/handler"
	"github.com/cflow/backend/internal/interfaces/http/middleware"
	"github.com/cflow/backend/internal/interfaces/http/router"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic("Failed to load configuration: " + err.Error())
	}

	log, err := logger.New(&logger.Config{
		Level:  cfg.Log.Level,
		Format: cfg.Log.Format,
		Output: cfg.Log.Output,
	})
	if err != nil {
		panic("Failed to initialize logger: " + err.Error())
	}
	defer func() { _ = log.Sync() }()

	log.Info("Starting billing backend",
		zap.String("app", cfg.App.Name),
		zap.String("env", cfg.App.Env),
		zap.String("port", cfg.App.Port),
	)

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
	log.Info("Database connected")

	providerRepo := persistence.NewGormProviderRepository(db.DB)
	tariffRepo := persistence.NewGormTariffRepository(db.DB)
	meterRepo := persistence.NewGormMeterRepository(db.DB)
	readingRepo := persistence.NewGormMeterReadingRepository(db.DB)
	propertyRepo := persistence.NewGormPropertyRepository(db.DB)
	buildingRepo := persistence.NewGormBuildingRepository(db.DB)
	invoiceRepo := persistence.NewGormInvoiceRepository(db.DB)

	circulationCache, err := newCirculationCache(cfg)
	if err != nil {
		log.Fatal("Failed to initialize circulation cache", zap.Error(err))
	}
	log.Info("Circulation cache ready", zap.String("backend", cfg.Circulation.CacheBackend))

	circulationService := appbilling.NewCirculationService(
		buildingRepo, readingRepo, providerRepo, tariffRepo,
		circulationCache, circulationSettings(cfg), log,
	)
	billingService := appbilling.NewBillingService(
		propertyRepo, meterRepo, readingRepo, providerRepo, tariffRepo, invoiceRepo,
		circulationService, billingSettings(cfg), log,
	)

	if cfg.App.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}
	middleware.SetupValidator()

	engine := gin.New()
	if len(cfg.HTTP.TrustedProxies) > 0 {
		if err := engine.SetTrustedProxies(cfg.HTTP.TrustedProxies); err != nil {
			log.Warn("Failed to set trusted proxies", zap.Error(err))
		}
	}
	engine.Use(logger.RequestID())
	engine.Use(logger.Recovery(log))
	engine.Use(logger.GinMiddleware(log))

	r := router.NewRouter(engine)
	r.Register(handler.NewSystemHandler(db))
	r.Register(handler.NewBillingHandler(billingService, log))
	r.Register(handler.NewCirculationHandler(circulationService, log))
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

// newCirculationCache builds the cache backend selected in configuration
func newCirculationCache(cfg *config.Config) (appbilling.CirculationCache, error) {
	if cfg.Circulation.CacheBackend == "redis" {
		return cache.NewRedisCirculationCache(cache.RedisConfig{
			Host:     cfg.Redis.Host,
			Port:     cfg.Redis.Port,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		}, cfg.Circulation.CacheTTL)
	}
	return cache.NewInMemoryCirculationCache(cfg.Circulation.CacheTTL), nil
}

func billingSettings(cfg *config.Config) appbilling.BillingSettings {
	return appbilling.BillingSettings{
		ReadingBufferDays: cfg.Billing.ReadingBufferDays,
		DueDays:           cfg.Billing.DueDays,
		WaterSupplyRate:   decimal.NewFromFloat(cfg.Billing.WaterSupplyRate),
		WaterSewageRate:   decimal.NewFromFloat(cfg.Billing.WaterSewageRate),
		WaterFixedFee:     decimal.NewFromFloat(cfg.Billing.WaterFixedFee),
		StrictZones:       cfg.Billing.StrictZones,
	}
}

func circulationSettings(cfg *config.Config) appbilling.CirculationSettings {
	return appbilling.CirculationSettings{
		SummerMonths:          toMonths(cfg.Circulation.SummerMonths),
		WaterSpecificHeat:     decimal.NewFromFloat(cfg.Circulation.WaterSpecificHeat),
		TemperatureDelta:      decimal.NewFromFloat(cfg.Circulation.TemperatureDelta),
		PeakMonths:            toMonths(cfg.Circulation.PeakMonths),
		ShoulderMonths:        toMonths(cfg.Circulation.ShoulderMonths),
		PeakAdjustment:        decimal.NewFromFloat(cfg.Circulation.PeakAdjustment),
		ShoulderAdjustment:    decimal.NewFromFloat(cfg.Circulation.ShoulderAdjustment),
		DefaultAdjustment:     decimal.NewFromFloat(cfg.Circulation.DefaultAdjustment),
		AverageValidityMonths: cfg.Circulation.AverageValidityMonths,
	}
}

func toMonths(months []int) []time.Month {
	out := make([]time.Month, len(months))
	for i, m := range months {
		out[i] = time.Month(m)
	}
	return out
}
