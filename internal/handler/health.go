package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

const (
	healthOK       = "ok"
	healthError    = "error"
	healthDisabled = "disabled"
)

// HealthHandler pings the optional backing stores. A nil pool or client is
// reported as disabled, which is the case for the in-memory driver.
type HealthHandler struct {
	db     *pgxpool.Pool
	redis  *redis.Client
	logger *zap.Logger
}

func NewHealthHandler(db *pgxpool.Pool, redis *redis.Client, logger *zap.Logger) *HealthHandler {
	return &HealthHandler{
		db:     db,
		redis:  redis,
		logger: logger.Named("HealthHandler"),
	}
}

func (h *HealthHandler) Check(c *gin.Context) {
	ctx := c.Request.Context()

	dbStatus := healthDisabled
	if h.db != nil {
		dbStatus = healthOK
		if err := h.db.Ping(ctx); err != nil {
			dbStatus = healthError
			h.logger.Error("Health check: PostgreSQL ping failed", zap.Error(err))
		}
	}

	redisStatus := healthDisabled
	if h.redis != nil {
		redisStatus = healthOK
		if err := h.redis.Ping(ctx).Err(); err != nil {
			redisStatus = healthError
			h.logger.Error("Health check: Redis ping failed", zap.Error(err))
		}
	}

	status, code := "ok", http.StatusOK
	if dbStatus == healthError || redisStatus == healthError {
		status, code = "unhealthy", http.StatusServiceUnavailable
	}

	c.JSON(code, gin.H{
		"status": status,
		"dependencies": gin.H{
			"database": dbStatus,
			"redis":    redisStatus,
		},
	})
}
