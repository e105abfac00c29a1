package middleware

import (
	"context"
	"fmt"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/makkenzo/license-backoffice/internal/domain/user"
	"github.com/makkenzo/license-backoffice/internal/ierr"
	"github.com/makkenzo/license-backoffice/internal/service"
	"go.uber.org/zap"
)

const (
	authorizationHeader = "Authorization"
	bearerPrefix        = "Bearer "
	claimsContextKey    = "authClaims"
)

type TokenValidator interface {
	ValidateToken(ctx context.Context, rawToken string) (*service.Claims, error)
}

func AuthMiddleware(validator TokenValidator, logger *zap.Logger) gin.HandlerFunc {
	log := logger.Named("AuthMiddleware")
	return func(c *gin.Context) {
		authHeader := c.GetHeader(authorizationHeader)
		if authHeader == "" {
			log.Debug("Authorization header is missing")
			_ = c.Error(fmt.Errorf("%w: authorization header required", ierr.ErrUnauthorized))
			c.Abort()
			return
		}

		if !strings.HasPrefix(authHeader, bearerPrefix) {
			log.Debug("Authorization header format is invalid")
			_ = c.Error(fmt.Errorf("%w: invalid authorization header format", ierr.ErrUnauthorized))
			c.Abort()
			return
		}

		tokenString := strings.TrimPrefix(authHeader, bearerPrefix)
		if tokenString == "" {
			log.Debug("Token is missing after Bearer prefix")
			_ = c.Error(fmt.Errorf("%w: token missing", ierr.ErrUnauthorized))
			c.Abort()
			return
		}

		claims, err := validator.ValidateToken(c.Request.Context(), tokenString)
		if err != nil {
			log.Info("Token validation failed", zap.Error(err))
			_ = c.Error(err)
			c.Abort()
			return
		}

		userID, _ := claims.UserID()
		c.Set(claimsContextKey, claims)
		c.Request = c.Request.WithContext(service.WithActor(c.Request.Context(), userID))

		c.Next()
	}
}

// RequireRole lets the request through only when the authenticated user holds
// one of roles. It must run after AuthMiddleware.
func RequireRole(roles ...user.Role) gin.HandlerFunc {
	return func(c *gin.Context) {
		claims := GetUserClaims(c)
		if claims == nil {
			_ = c.Error(fmt.Errorf("%w: no authenticated user", ierr.ErrUnauthorized))
			c.Abort()
			return
		}
		for _, r := range roles {
			if claims.Role == r {
				c.Next()
				return
			}
		}
		_ = c.Error(fmt.Errorf("%w: role %q may not access this resource", ierr.ErrForbidden, claims.Role))
		c.Abort()
	}
}

func GetUserClaims(c *gin.Context) *service.Claims {
	value, exists := c.Get(claimsContextKey)
	if !exists {
		return nil
	}
	claims, ok := value.(*service.Claims)
	if !ok {
		return nil
	}
	return claims
}
