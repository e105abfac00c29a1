package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/makkenzo/license-backoffice/internal/domain/plan"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

const planKeyPrefix = "plan:"

// PlanCache keeps plans as JSON under "plan:<id>". Plans are immutable once
// created, so entries are only ever written, never invalidated.
type PlanCache struct {
	client *redis.Client
	ttl    time.Duration
	logger *zap.Logger
}

func NewPlanCache(client *redis.Client, ttl time.Duration, logger *zap.Logger) *PlanCache {
	return &PlanCache{
		client: client,
		ttl:    ttl,
		logger: logger.Named("PlanCache"),
	}
}

// Get returns (nil, nil) on a cache miss.
func (c *PlanCache) Get(ctx context.Context, id uuid.UUID) (*plan.Plan, error) {
	raw, err := c.client.Get(ctx, planKeyPrefix+id.String()).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, nil
		}
		return nil, fmt.Errorf("redis get plan %s: %w", id, err)
	}

	var p plan.Plan
	if err := json.Unmarshal(raw, &p); err != nil {
		c.logger.Warn("Dropping undecodable cached plan", zap.String("plan_id", id.String()), zap.Error(err))
		c.client.Del(ctx, planKeyPrefix+id.String())
		return nil, nil
	}
	return &p, nil
}

func (c *PlanCache) Set(ctx context.Context, p *plan.Plan) error {
	raw, err := json.Marshal(p)
	if err != nil {
		return fmt.Errorf("encode plan %s: %w", p.ID, err)
	}
	if err := c.client.Set(ctx, planKeyPrefix+p.ID.String(), raw, c.ttl).Err(); err != nil {
		return fmt.Errorf("redis set plan %s: %w", p.ID, err)
	}
	return nil
}
