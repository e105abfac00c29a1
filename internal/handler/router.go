package handler

import (
	"fmt"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/makkenzo/license-backoffice/internal/domain/apikey"
	"github.com/makkenzo/license-backoffice/internal/domain/user"
	"github.com/makkenzo/license-backoffice/internal/handler/middleware"
	"github.com/makkenzo/license-backoffice/internal/ierr"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
)

type Handlers struct {
	Health     *HealthHandler
	Auth       *AuthHandler
	Activation *ActivationHandler
	License    *LicenseHandler
	Device     *DeviceHandler
	Invoice    *InvoiceHandler
	Catalog    *CatalogHandler
	User       *UserHandler
	APIKey     *APIKeyHandler
	Dashboard  *DashboardHandler
}

type RouterOptions struct {
	Tokens        middleware.TokenValidator
	APIKeys       apikey.Repository
	RequireAPIKey bool
	AllowOrigins  []string
	// AccessLog toggles the gin request log line; tests turn it off.
	AccessLog bool
}

// NewRouter mounts the client protocol at the root and the admin API under
// /api/v1. Protocol routes answer with their own envelope, so the admin error
// middleware is only attached to the /api/v1 group.
func NewRouter(h Handlers, opts RouterOptions, logger *zap.Logger) *gin.Engine {
	router := gin.New()
	if opts.AccessLog {
		router.Use(gin.LoggerWithFormatter(func(param gin.LogFormatterParams) string {
			return fmt.Sprintf("%s - [%s] \"%s %s %s %d %s \"%s\" %s\"\n",
				param.ClientIP,
				param.TimeStamp.Format(time.RFC1123),
				param.Method,
				param.Path,
				param.Request.Proto,
				param.StatusCode,
				param.Latency,
				param.Request.UserAgent(),
				param.ErrorMessage,
			)
		}))
	}
	router.Use(gin.CustomRecovery(func(c *gin.Context, recovered any) {
		logger.Error("Panic recovered", zap.Any("panic", recovered), zap.Stack("stack"))
		_ = c.Error(ierr.ErrInternalServer)
		c.AbortWithStatus(500)
	}))

	if len(opts.AllowOrigins) > 0 {
		router.Use(cors.New(cors.Config{
			AllowOrigins:     opts.AllowOrigins,
			AllowMethods:     []string{"GET", "POST", "PATCH", "DELETE", "OPTIONS"},
			AllowHeaders:     []string{"Origin", "Content-Type", "Accept", "Authorization", "X-API-Key"},
			ExposeHeaders:    []string{"Content-Length"},
			AllowCredentials: true,
			MaxAge:           12 * time.Hour,
		}))
	}

	router.GET("/healthz", h.Health.Check)
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	client := router.Group("")
	client.Use(middleware.APIKeyAuthMiddleware(opts.APIKeys, opts.RequireAPIKey, logger))
	{
		client.POST("/licenses/activate", h.Activation.Activate)
		client.POST("/devices/heartbeat", h.Activation.Heartbeat)
	}

	api := router.Group("/api/v1")
	api.Use(middleware.ErrorHandlerMiddleware(logger))
	api.POST("/auth/login", h.Auth.Login)

	authed := api.Group("")
	authed.Use(middleware.AuthMiddleware(opts.Tokens, logger))

	backoffice := authed.Group("")
	backoffice.Use(middleware.RequireRole(user.RoleAdmin, user.RoleStaff))
	{
		backoffice.GET("/products", h.Catalog.ListProducts)
		backoffice.POST("/products", h.Catalog.CreateProduct)
		backoffice.GET("/products/:id", h.Catalog.GetProduct)

		backoffice.GET("/plans", h.Catalog.ListPlans)
		backoffice.POST("/plans", h.Catalog.CreatePlan)
		backoffice.GET("/plans/:id", h.Catalog.GetPlan)

		backoffice.GET("/licenses", h.License.List)
		backoffice.POST("/licenses/generate", h.License.Generate)
		backoffice.GET("/licenses/:id", h.License.GetByID)
		backoffice.PATCH("/licenses/:id", h.License.Update)
		backoffice.DELETE("/licenses/:id", h.License.Delete)
		backoffice.GET("/licenses/:id/devices", h.License.ListDevices)
		backoffice.POST("/licenses/:id/devices", h.License.AddDevice)

		backoffice.PATCH("/devices/:id", h.Device.Update)
		backoffice.DELETE("/devices/:id", h.Device.Deactivate)

		backoffice.GET("/invoices", h.Invoice.List)
		backoffice.POST("/invoices", h.Invoice.Create)
		backoffice.GET("/invoices/:id", h.Invoice.GetByID)
		backoffice.PATCH("/invoices/:id", h.Invoice.Update)
		backoffice.POST("/invoices/:id/mark-paid", h.Invoice.MarkPaid)

		backoffice.GET("/dashboard/summary", h.Dashboard.GetSummary)
	}

	admin := authed.Group("")
	admin.Use(middleware.RequireRole(user.RoleAdmin))
	{
		admin.GET("/users", h.User.List)
		admin.POST("/users", h.User.Create)

		admin.GET("/apikeys", h.APIKey.List)
		admin.POST("/apikeys", h.APIKey.Create)
		admin.DELETE("/apikeys/:id", h.APIKey.Revoke)
	}

	return router
}
