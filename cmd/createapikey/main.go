package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"
	"github.com/makkenzo/license-backoffice/internal/config"
	"github.com/makkenzo/license-backoffice/internal/domain/apikey"
	"github.com/makkenzo/license-backoffice/internal/storage/postgres"
	"github.com/makkenzo/license-backoffice/internal/util"
	"github.com/makkenzo/license-backoffice/pkg/logger"
	"go.uber.org/zap"
)

// createapikey provisions a client API key directly in the database, for
// bootstrapping before any admin account exists.
func main() {
	configPath := flag.String("config", "./configs/config.dev.yaml", "Path to configuration file")
	description := flag.String("description", "Default client key", "Human readable description of the key")
	productFlag := flag.String("product", "", "Optional product id the key is restricted to")
	flag.Parse()

	var productID uuid.UUID
	if *productFlag != "" {
		id, err := uuid.Parse(*productFlag)
		if err != nil {
			log.Fatalf("Invalid product id %q: %v", *productFlag, err)
		}
		productID = id
	}

	cfg, err := config.LoadConfig(*configPath)
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}
	appLogger, err := logger.NewZapLogger(cfg.Log.Level, cfg.Log.Format)
	if err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}
	defer func() { _ = appLogger.Sync() }()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	pool, err := postgres.NewPgxPool(ctx, &cfg.Database, appLogger)
	if err != nil {
		appLogger.Fatal("Unable to connect to database", zap.Error(err))
	}
	defer pool.Close()

	fullKey, prefix, keyHash, err := util.GenerateAPIKey()
	if err != nil {
		appLogger.Fatal("Failed to generate API key", zap.Error(err))
	}

	key := &apikey.APIKey{
		KeyHash:     keyHash,
		Prefix:      prefix,
		Description: *description,
		ProductID:   productID,
		IsEnabled:   true,
	}
	keyID, err := postgres.NewAPIKeyRepository(pool, appLogger).Create(ctx, key)
	if err != nil {
		appLogger.Fatal("Failed to save API key", zap.Error(err))
	}

	fmt.Printf("Generated API Key (SAVE THIS securely!):\n%s\n\n", fullKey)
	fmt.Printf("ID:     %s\n", keyID)
	fmt.Printf("Prefix: %s\n", prefix)
	if key.ProductScoped() {
		fmt.Printf("Scope:  product %s\n", productID)
	}
}
