package redis

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/makkenzo/license-backoffice/internal/config"
	"github.com/makkenzo/license-backoffice/internal/domain/plan"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestPlanCacheRoundTrip(t *testing.T) {
	addr := os.Getenv("TEST_REDIS_ADDR")
	if addr == "" {
		t.Skip("TEST_REDIS_ADDR not set")
	}

	ctx := context.Background()
	client, err := NewRedisClient(ctx, &config.RedisConfig{Addr: addr}, zap.NewNop())
	require.NoError(t, err)
	defer client.Close()

	cache := NewPlanCache(client, time.Minute, zap.NewNop())

	p := &plan.Plan{ID: uuid.New(), ProductID: uuid.New(), Name: "Team", DeviceLimit: 5, DurationDays: 30}
	defer client.Del(ctx, planKeyPrefix+p.ID.String())

	missing, err := cache.Get(ctx, p.ID)
	require.NoError(t, err)
	assert.Nil(t, missing)

	require.NoError(t, cache.Set(ctx, p))

	got, err := cache.Get(ctx, p.ID)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, p.DeviceLimit, got.DeviceLimit)
	assert.Equal(t, p.DurationDays, got.DurationDays)

	ttl, err := client.TTL(ctx, planKeyPrefix+p.ID.String()).Result()
	require.NoError(t, err)
	assert.Greater(t, ttl, time.Duration(0))
}
