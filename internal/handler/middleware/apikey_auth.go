package middleware

import (
	"context"
	"crypto/subtle"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/makkenzo/license-backoffice/internal/domain/apikey"
	"github.com/makkenzo/license-backoffice/internal/handler/dto"
	"github.com/makkenzo/license-backoffice/internal/util"
)

const (
	apiKeyHeader     = "X-API-Key"
	apiKeyContextKey = "apiKey"
)

// APIKeyAuthMiddleware authenticates client applications on the activation
// protocol. With required false a request without the header passes through,
// but a header that is present must still be valid.
func APIKeyAuthMiddleware(apiKeyRepo apikey.Repository, required bool, logger *zap.Logger) gin.HandlerFunc {
	log := logger.Named("APIKeyAuthMiddleware")
	return func(c *gin.Context) {
		apiKeyFromHeader := c.GetHeader(apiKeyHeader)
		if apiKeyFromHeader == "" {
			if !required {
				c.Next()
				return
			}
			log.Debug("API Key header is missing", zap.String("header", apiKeyHeader))
			c.AbortWithStatusJSON(http.StatusUnauthorized, dto.NewProtocolError("API_KEY_REQUIRED", "API key required"))
			return
		}

		prefix, ok := util.ParseAPIKeyPrefix(apiKeyFromHeader)
		if !ok {
			log.Warn("Invalid API key format received")
			c.AbortWithStatusJSON(http.StatusUnauthorized, dto.NewProtocolError("INVALID_API_KEY", "Invalid API key format"))
			return
		}

		keyRecord, err := apiKeyRepo.FindByPrefix(c.Request.Context(), prefix)
		if err != nil {
			if errors.Is(err, apikey.ErrAPIKeyNotFound) {
				log.Warn("API key not found or disabled", zap.String("prefix", prefix))
				c.AbortWithStatusJSON(http.StatusForbidden, dto.NewProtocolError("INVALID_API_KEY", "Invalid or disabled API key"))
				return
			}

			log.Error("Failed to query API key repository", zap.String("prefix", prefix), zap.Error(err))
			c.AbortWithStatusJSON(http.StatusInternalServerError, dto.NewProtocolError("INTERNAL_ERROR", "Internal server error during API key validation"))
			return
		}

		receivedKeyHash := util.HashAPIKey(apiKeyFromHeader)
		if subtle.ConstantTimeCompare([]byte(receivedKeyHash), []byte(keyRecord.KeyHash)) != 1 {
			log.Warn("API key hash mismatch", zap.String("prefix", prefix), zap.String("key_id", keyRecord.ID.String()))
			c.AbortWithStatusJSON(http.StatusForbidden, dto.NewProtocolError("INVALID_API_KEY", "Invalid or disabled API key"))
			return
		}

		go func(id uuid.UUID, repo apikey.Repository, l *zap.Logger) {
			ctxAsync, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if errUpdate := repo.UpdateLastUsed(ctxAsync, id, time.Now().UTC()); errUpdate != nil {
				l.Error("Failed to update API key last used time asynchronously", zap.String("key_id", id.String()), zap.Error(errUpdate))
			}
		}(keyRecord.ID, apiKeyRepo, log)

		log.Debug("API key validated", zap.String("prefix", prefix), zap.String("key_id", keyRecord.ID.String()))
		c.Set(apiKeyContextKey, keyRecord)
		c.Next()
	}
}

// APIKeyProductScope returns the product the request's API key is limited to,
// or uuid.Nil when there is no key or it is unscoped.
func APIKeyProductScope(c *gin.Context) uuid.UUID {
	value, exists := c.Get(apiKeyContextKey)
	if !exists {
		return uuid.Nil
	}
	key, ok := value.(*apikey.APIKey)
	if !ok || !key.ProductScoped() {
		return uuid.Nil
	}
	return key.ProductID
}
