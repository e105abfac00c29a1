package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/makkenzo/license-backoffice/internal/handler/dto"
	"github.com/makkenzo/license-backoffice/internal/service"
	"go.uber.org/zap"
)

type CatalogHandler struct {
	products *service.ProductService
	plans    *service.PlanCatalog
	logger   *zap.Logger
}

func NewCatalogHandler(products *service.ProductService, plans *service.PlanCatalog, logger *zap.Logger) *CatalogHandler {
	return &CatalogHandler{
		products: products,
		plans:    plans,
		logger:   logger.Named("CatalogHandler"),
	}
}

func (h *CatalogHandler) CreateProduct(c *gin.Context) {
	var req dto.CreateProductRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		_ = c.Error(bindError(err))
		return
	}
	p, err := h.products.Create(c.Request.Context(), req.Name, req.Description)
	if err != nil {
		_ = c.Error(err)
		return
	}
	c.JSON(http.StatusCreated, dto.NewProductResponse(p))
}

func (h *CatalogHandler) ListProducts(c *gin.Context) {
	products, err := h.products.List(c.Request.Context())
	if err != nil {
		_ = c.Error(err)
		return
	}
	out := make([]*dto.ProductResponse, len(products))
	for i, p := range products {
		out[i] = dto.NewProductResponse(p)
	}
	c.JSON(http.StatusOK, out)
}

func (h *CatalogHandler) GetProduct(c *gin.Context) {
	id, ok := parseIDParam(c, "id")
	if !ok {
		return
	}
	p, err := h.products.Get(c.Request.Context(), id)
	if err != nil {
		_ = c.Error(err)
		return
	}
	c.JSON(http.StatusOK, dto.NewProductResponse(p))
}

func (h *CatalogHandler) CreatePlan(c *gin.Context) {
	var req dto.CreatePlanRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		_ = c.Error(bindError(err))
		return
	}
	p, err := h.plans.Create(c.Request.Context(), service.CreatePlanInput{
		ProductID:    req.ProductID,
		Name:         req.Name,
		PriceCents:   req.PriceCents,
		DeviceLimit:  req.DeviceLimit,
		DurationDays: req.DurationDays,
	})
	if err != nil {
		_ = c.Error(err)
		return
	}
	c.JSON(http.StatusCreated, p)
}

func (h *CatalogHandler) ListPlans(c *gin.Context) {
	var req dto.ListPlansRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		_ = c.Error(bindError(err))
		return
	}
	plans, err := h.plans.List(c.Request.Context(), req.ProductUUID())
	if err != nil {
		_ = c.Error(err)
		return
	}
	c.JSON(http.StatusOK, plans)
}

func (h *CatalogHandler) GetPlan(c *gin.Context) {
	id, ok := parseIDParam(c, "id")
	if !ok {
		return
	}
	p, err := h.plans.GetByID(c.Request.Context(), id)
	if err != nil {
		_ = c.Error(err)
		return
	}
	c.JSON(http.StatusOK, p)
}
