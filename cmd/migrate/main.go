package main

import (
	"errors"
	"flag"
	"log"

	"github.com/makkenzo/license-backoffice/internal/config"
	"github.com/makkenzo/license-backoffice/internal/storage/postgres"
	"github.com/makkenzo/license-backoffice/pkg/logger"
	"go.uber.org/zap"
)

func main() {
	configPath := flag.String("config", "./configs/config.dev.yaml", "Path to configuration file")
	direction := flag.String("direction", "up", "Migration direction: up or down")
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

	if err := postgres.Migrate(cfg.Database.URL, *direction); err != nil {
		if errors.Is(err, postgres.ErrNoChange) {
			appLogger.Info("Schema already up to date", zap.String("direction", *direction))
			return
		}
		appLogger.Fatal("Migration failed", zap.String("direction", *direction), zap.Error(err))
	}
	appLogger.Info("Migrations applied", zap.String("direction", *direction))
}
