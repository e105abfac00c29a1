package service

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/makkenzo/license-backoffice/internal/domain/product"
	"github.com/makkenzo/license-backoffice/internal/ierr"
	"go.uber.org/zap"
)

type ProductService struct {
	repo   product.Repository
	logger *zap.Logger
}

func NewProductService(repo product.Repository, logger *zap.Logger) *ProductService {
	return &ProductService{
		repo:   repo,
		logger: logger.Named("ProductService"),
	}
}

func (s *ProductService) Create(ctx context.Context, name string, description *string) (*product.Product, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, fmt.Errorf("%w: product name is required", ierr.ErrValidation)
	}

	p := &product.Product{ID: uuid.New(), Name: name}
	if description != nil {
		p.Description = sql.NullString{String: *description, Valid: true}
	}

	if err := s.repo.Create(ctx, p); err != nil {
		s.logger.Warn("Failed to create product", zap.String("name", name), zap.Error(err))
		return nil, err
	}
	s.logger.Info("Product created", zap.String("product_id", p.ID.String()), zap.String("name", name))
	return p, nil
}

func (s *ProductService) Get(ctx context.Context, id uuid.UUID) (*product.Product, error) {
	return s.repo.FindByID(ctx, id)
}

func (s *ProductService) List(ctx context.Context) ([]*product.Product, error) {
	return s.repo.List(ctx)
}
