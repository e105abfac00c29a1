package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/makkenzo/license-backoffice/internal/domain/apikey"
	"github.com/makkenzo/license-backoffice/internal/domain/product"
	"github.com/makkenzo/license-backoffice/internal/handler/dto"
	"github.com/makkenzo/license-backoffice/internal/ierr"
	"github.com/makkenzo/license-backoffice/internal/util"
	"go.uber.org/zap"
)

type APIKeyService struct {
	repo     apikey.Repository
	products product.Repository
	logger   *zap.Logger
}

func NewAPIKeyService(repo apikey.Repository, products product.Repository, logger *zap.Logger) *APIKeyService {
	return &APIKeyService{
		repo:     repo,
		products: products,
		logger:   logger.Named("APIKeyService"),
	}
}

// CreateAPIKey mints a key for a client application. The full key is only
// ever returned here; the store keeps its SHA-256 hash.
func (s *APIKeyService) CreateAPIKey(ctx context.Context, description string, productID *uuid.UUID) (*dto.CreateAPIKeyResponse, error) {
	description = strings.TrimSpace(description)
	if description == "" {
		return nil, fmt.Errorf("%w: description is required", ierr.ErrValidation)
	}
	if productID != nil {
		if _, err := s.products.FindByID(ctx, *productID); err != nil {
			if errors.Is(err, product.ErrNotFound) {
				return nil, fmt.Errorf("%w: product %s does not exist", ierr.ErrValidation, *productID)
			}
			return nil, fmt.Errorf("failed to look up product: %w", err)
		}
	}

	fullKey, prefix, keyHash, err := util.GenerateAPIKey()
	if err != nil {
		s.logger.Error("Failed to generate api key components", zap.Error(err))
		return nil, fmt.Errorf("%w: failed generating key: %v", ierr.ErrInternalServer, err)
	}

	newKey := &apikey.APIKey{
		KeyHash:     keyHash,
		Prefix:      prefix,
		Description: description,
		IsEnabled:   true,
	}
	if productID != nil {
		newKey.ProductID = *productID
	}

	insertedID, err := s.repo.Create(ctx, newKey)
	if err != nil {
		s.logger.Error("Failed to save new api key", zap.Error(err))
		return nil, fmt.Errorf("repository error creating api key: %w", err)
	}

	s.logger.Info("API key created", zap.String("id", insertedID.String()), zap.String("prefix", prefix))
	newKey.ID = insertedID
	return &dto.CreateAPIKeyResponse{
		APIKeyResponse: *dto.NewAPIKeyResponse(newKey),
		FullKey:        fullKey,
	}, nil
}

func (s *APIKeyService) ListAPIKeys(ctx context.Context) ([]*dto.APIKeyResponse, error) {
	keys, err := s.repo.List(ctx)
	if err != nil {
		s.logger.Error("Failed to list api keys from repository", zap.Error(err))
		return nil, fmt.Errorf("repository error listing api keys: %w", err)
	}

	responses := make([]*dto.APIKeyResponse, len(keys))
	for i, key := range keys {
		responses[i] = dto.NewAPIKeyResponse(key)
	}
	return responses, nil
}

func (s *APIKeyService) RevokeAPIKey(ctx context.Context, id uuid.UUID) error {
	if err := s.repo.Disable(ctx, id); err != nil {
		s.logger.Warn("Failed to revoke api key", zap.String("id", id.String()), zap.Error(err))
		return fmt.Errorf("revoke api key %s: %w", id, err)
	}
	s.logger.Info("API key revoked", zap.String("id", id.String()))
	return nil
}
