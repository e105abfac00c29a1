package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/makkenzo/license-backoffice/internal/domain/plan"
	"github.com/makkenzo/license-backoffice/internal/domain/product"
	"github.com/makkenzo/license-backoffice/internal/ierr"
	"go.uber.org/zap"
)

// fallbackDeviceLimit applies when a license points at a plan that no longer exists.
const fallbackDeviceLimit = 1

// PlanCache is a read-through cache in front of the plan repository.
// Get returns (nil, nil) on a miss.
type PlanCache interface {
	Get(ctx context.Context, id uuid.UUID) (*plan.Plan, error)
	Set(ctx context.Context, p *plan.Plan) error
}

type PlanCatalog struct {
	plans    plan.Repository
	products product.Repository
	cache    PlanCache
	logger   *zap.Logger
}

// NewPlanCatalog builds the catalog. cache may be nil.
func NewPlanCatalog(plans plan.Repository, products product.Repository, cache PlanCache, logger *zap.Logger) *PlanCatalog {
	return &PlanCatalog{
		plans:    plans,
		products: products,
		cache:    cache,
		logger:   logger.Named("PlanCatalog"),
	}
}

type CreatePlanInput struct {
	ProductID    uuid.UUID
	Name         string
	PriceCents   int64
	DeviceLimit  int
	DurationDays int
}

func (c *PlanCatalog) Create(ctx context.Context, in CreatePlanInput) (*plan.Plan, error) {
	name := strings.TrimSpace(in.Name)
	switch {
	case name == "":
		return nil, fmt.Errorf("%w: plan name is required", ierr.ErrValidation)
	case in.PriceCents < 0:
		return nil, fmt.Errorf("%w: price must not be negative", ierr.ErrValidation)
	case in.DeviceLimit < 0:
		return nil, fmt.Errorf("%w: device limit must not be negative", ierr.ErrValidation)
	case in.DurationDays < 0:
		return nil, fmt.Errorf("%w: duration must not be negative", ierr.ErrValidation)
	}

	if _, err := c.products.FindByID(ctx, in.ProductID); err != nil {
		if errors.Is(err, product.ErrNotFound) {
			return nil, fmt.Errorf("%w: product %s does not exist", ierr.ErrValidation, in.ProductID)
		}
		return nil, fmt.Errorf("failed to look up product: %w", err)
	}

	p := &plan.Plan{
		ID:           uuid.New(),
		ProductID:    in.ProductID,
		Name:         name,
		PriceCents:   in.PriceCents,
		DeviceLimit:  in.DeviceLimit,
		DurationDays: in.DurationDays,
	}
	if err := c.plans.Create(ctx, p); err != nil {
		c.logger.Error("Failed to create plan", zap.String("name", name), zap.Error(err))
		return nil, fmt.Errorf("repository error creating plan: %w", err)
	}

	c.logger.Info("Plan created",
		zap.String("plan_id", p.ID.String()),
		zap.Int("device_limit", p.DeviceLimit),
		zap.Int("duration_days", p.DurationDays),
	)
	return p, nil
}

// GetByID serves from the cache when possible. Cache failures degrade to a
// repository read.
func (c *PlanCatalog) GetByID(ctx context.Context, id uuid.UUID) (*plan.Plan, error) {
	if c.cache != nil {
		cached, err := c.cache.Get(ctx, id)
		if err != nil {
			c.logger.Warn("Plan cache read failed", zap.String("plan_id", id.String()), zap.Error(err))
		} else if cached != nil {
			return cached, nil
		}
	}

	p, err := c.plans.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}

	if c.cache != nil {
		if err := c.cache.Set(ctx, p); err != nil {
			c.logger.Warn("Plan cache write failed", zap.String("plan_id", id.String()), zap.Error(err))
		}
	}
	return p, nil
}

func (c *PlanCatalog) List(ctx context.Context, productID *uuid.UUID) ([]*plan.Plan, error) {
	return c.plans.List(ctx, productID)
}

// DeviceLimit returns the plan's device limit, or 1 when the plan is gone.
func (c *PlanCatalog) DeviceLimit(ctx context.Context, planID uuid.UUID) (int, error) {
	p, err := c.GetByID(ctx, planID)
	if err != nil {
		if errors.Is(err, plan.ErrNotFound) {
			c.logger.Warn("Plan missing, using fallback device limit",
				zap.String("plan_id", planID.String()),
				zap.Int("limit", fallbackDeviceLimit),
			)
			return fallbackDeviceLimit, nil
		}
		return 0, fmt.Errorf("failed to load plan %s: %w", planID, err)
	}
	return p.DeviceLimit, nil
}
