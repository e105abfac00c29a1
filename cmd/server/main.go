package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/gin-gonic/gin"
	"github.com/hibiken/asynq"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/makkenzo/license-backoffice/internal/config"
	"github.com/makkenzo/license-backoffice/internal/domain/activity"
	"github.com/makkenzo/license-backoffice/internal/domain/apikey"
	"github.com/makkenzo/license-backoffice/internal/domain/device"
	"github.com/makkenzo/license-backoffice/internal/domain/invoice"
	"github.com/makkenzo/license-backoffice/internal/domain/license"
	"github.com/makkenzo/license-backoffice/internal/domain/plan"
	"github.com/makkenzo/license-backoffice/internal/domain/product"
	"github.com/makkenzo/license-backoffice/internal/domain/user"
	"github.com/makkenzo/license-backoffice/internal/handler"
	"github.com/makkenzo/license-backoffice/internal/service"
	"github.com/makkenzo/license-backoffice/internal/storage/memstorage"
	"github.com/makkenzo/license-backoffice/internal/storage/postgres"
	"github.com/makkenzo/license-backoffice/internal/storage/redis"
	"github.com/makkenzo/license-backoffice/internal/tasks"
	"github.com/makkenzo/license-backoffice/internal/worker"
	"github.com/makkenzo/license-backoffice/pkg/logger"
	goredis "github.com/redis/go-redis/v9"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

type repositories struct {
	products product.Repository
	plans    plan.Repository
	users    user.Repository
	licenses license.Repository
	devices  device.Repository
	invoices invoice.Repository
	activity activity.Repository
	apiKeys  apikey.Repository
}

func postgresRepositories(db *pgxpool.Pool, logger *zap.Logger) repositories {
	return repositories{
		products: postgres.NewProductRepository(db, logger),
		plans:    postgres.NewPlanRepository(db, logger),
		users:    postgres.NewUserRepository(db, logger),
		licenses: postgres.NewLicenseRepository(db, logger),
		devices:  postgres.NewDeviceRepository(db, logger),
		invoices: postgres.NewInvoiceRepository(db, logger),
		activity: postgres.NewActivityRepository(db),
		apiKeys:  postgres.NewAPIKeyRepository(db, logger),
	}
}

func memoryRepositories(store *memstorage.Store) repositories {
	return repositories{
		products: store.Products,
		plans:    store.Plans,
		users:    store.Users,
		licenses: store.Licenses,
		devices:  store.Devices,
		invoices: store.Invoices,
		activity: store.Activity,
		apiKeys:  store.APIKeys,
	}
}

func main() {
	configPath := flag.String("config", "./configs/config.dev.yaml", "Path to configuration file")
	flag.Parse()

	cfg, err := config.LoadConfig(*configPath)
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	appLogger, err := logger.NewZapLogger(cfg.Log.Level, cfg.Log.Format)
	if err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}
	defer func() { _ = appLogger.Sync() }()

	sugarLogger := appLogger.Sugar()
	sugarLogger.Infof("Starting application with %s storage, log level %s", cfg.Database.Driver, cfg.Log.Level)

	if cfg.JWT.Secret == "" {
		sugarLogger.Fatal("JWT secret is required (set JWT_SECRET)")
	}
	if cfg.Log.Level != "debug" {
		gin.SetMode(gin.ReleaseMode)
	}

	appCtx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	var (
		dbPool *pgxpool.Pool
		repos  repositories
	)
	switch cfg.Database.Driver {
	case config.DriverPostgres:
		dbPool, err = postgres.NewPgxPool(appCtx, &cfg.Database, appLogger)
		if err != nil {
			sugarLogger.Fatalf("Failed to connect to PostgreSQL: %v", err)
		}
		defer dbPool.Close()
		repos = postgresRepositories(dbPool, appLogger)
	case config.DriverMemory:
		store := memstorage.NewStore()
		if adminUser, adminPass := os.Getenv("ADMIN_USERNAME"), os.Getenv("ADMIN_PASSWORD"); adminUser != "" && adminPass != "" {
			if err := store.Users.SeedAdmin(adminUser, adminPass); err != nil {
				sugarLogger.Fatalf("Failed to seed admin user: %v", err)
			}
			sugarLogger.Infof("Seeded admin user %q", adminUser)
		}
		repos = memoryRepositories(store)
		sugarLogger.Warn("Using in-memory storage; data is lost on restart")
	default:
		sugarLogger.Fatalf("Unknown database driver %q", cfg.Database.Driver)
	}

	var (
		redisClient *goredis.Client
		planCache   service.PlanCache
		scheduler   service.RecomputeScheduler
	)
	if cfg.Redis.Addr != "" {
		redisClient, err = redis.NewRedisClient(appCtx, &cfg.Redis, appLogger)
		if err != nil {
			sugarLogger.Fatalf("Failed to connect to Redis: %v", err)
		}
		defer redisClient.Close()
		planCache = redis.NewPlanCache(redisClient, cfg.Cache.PlanTTL, appLogger)

		asynqClient := asynq.NewClient(worker.RedisConnOpt(&cfg.Redis))
		defer asynqClient.Close()
		scheduler = tasks.NewEnqueuer(asynqClient, appLogger)
	} else {
		sugarLogger.Info("Redis not configured: plan cache and background workers disabled")
	}

	activityLogger := service.NewActivityLogger(repos.activity, appLogger)
	catalog := service.NewPlanCatalog(repos.plans, repos.products, planCache, appLogger)
	registry := service.NewDeviceRegistry(repos.devices, repos.licenses, catalog, activityLogger, appLogger)
	licenseService := service.NewLicenseService(repos.licenses, repos.devices, repos.invoices, repos.products, catalog, activityLogger, appLogger)
	invoiceService := service.NewInvoiceService(repos.invoices, repos.users, catalog, licenseService, scheduler, activityLogger, appLogger)
	activationService := service.NewActivationService(repos.licenses, repos.products, repos.invoices, catalog, registry, licenseService, appLogger)
	authService := service.NewAuthService(repos.users, &cfg.JWT, appLogger)
	apiKeyService := service.NewAPIKeyService(repos.apiKeys, repos.products, appLogger)
	productService := service.NewProductService(repos.products, appLogger)
	userService := service.NewUserService(repos.users, appLogger)

	router := handler.NewRouter(handler.Handlers{
		Health:     handler.NewHealthHandler(dbPool, redisClient, appLogger),
		Auth:       handler.NewAuthHandler(authService, appLogger),
		Activation: handler.NewActivationHandler(activationService, appLogger),
		License:    handler.NewLicenseHandler(licenseService, registry, appLogger),
		Device:     handler.NewDeviceHandler(registry, appLogger),
		Invoice:    handler.NewInvoiceHandler(invoiceService, appLogger),
		Catalog:    handler.NewCatalogHandler(productService, catalog, appLogger),
		User:       handler.NewUserHandler(userService, appLogger),
		APIKey:     handler.NewAPIKeyHandler(apiKeyService, appLogger),
		Dashboard:  handler.NewDashboardHandler(licenseService, cfg.Dashboard.ExpiringWithinDays, appLogger),
	}, handler.RouterOptions{
		Tokens:        authService,
		APIKeys:       repos.apiKeys,
		RequireAPIKey: cfg.Client.RequireAPIKey,
		AllowOrigins:  cfg.CORS.AllowOrigins,
		AccessLog:     true,
	}, appLogger)

	g, groupCtx := errgroup.WithContext(appCtx)

	httpServer := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	g.Go(func() error {
		sugarLogger.Infof("HTTP server listening on port %s", cfg.Server.Port)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server failed: %w", err)
		}
		sugarLogger.Info("HTTP server stopped listening.")
		return nil
	})

	g.Go(func() error {
		<-groupCtx.Done()
		sugarLogger.Info("Shutting down HTTP server...")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownPeriod)
		defer cancel()
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("http server shutdown error: %w", err)
		}
		sugarLogger.Info("HTTP server shutdown complete.")
		return nil
	})

	if cfg.Worker.Enabled && redisClient != nil {
		g.Go(func() error {
			err := worker.RunWorkers(groupCtx, cfg, worker.Processors{
				LicenseExpire:    tasks.NewLicenseExpireHandler(licenseService, appLogger),
				InvoiceOverdue:   tasks.NewInvoiceOverdueHandler(invoiceService, appLogger),
				InvoiceRecompute: tasks.NewInvoiceRecomputeHandler(invoiceService, appLogger),
			}, appLogger)
			if err != nil {
				return fmt.Errorf("asynq worker error: %w", err)
			}
			sugarLogger.Info("Asynq workers finished gracefully.")
			return nil
		})
	}

	sugarLogger.Info("Application started. Waiting for interrupt signal (Ctrl+C) or component error...")

	waitErr := g.Wait()
	activityLogger.Wait()

	if waitErr != nil && !errors.Is(waitErr, context.Canceled) {
		sugarLogger.Errorf("Application shutdown finished with error: %v", waitErr)
		os.Exit(1)
	}
	sugarLogger.Info("Application shutdown successfully.")
}
