package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/makkenzo/license-backoffice/internal/handler/dto"
	"github.com/makkenzo/license-backoffice/internal/service"
	"go.uber.org/zap"
)

type LicenseHandler struct {
	service  *service.LicenseService
	registry *service.DeviceRegistry
	logger   *zap.Logger
}

func NewLicenseHandler(service *service.LicenseService, registry *service.DeviceRegistry, logger *zap.Logger) *LicenseHandler {
	return &LicenseHandler{
		service:  service,
		registry: registry,
		logger:   logger.Named("LicenseHandler"),
	}
}

func (h *LicenseHandler) Generate(c *gin.Context) {
	var req dto.GenerateLicensesRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.logger.Warn("Failed to bind generate request", zap.Error(err))
		_ = c.Error(bindError(err))
		return
	}

	lics, err := h.service.Generate(c.Request.Context(), service.GenerateInput{
		ProductID:     req.ProductID,
		PlanID:        req.PlanID,
		Count:         req.Count,
		UserID:        req.UserID,
		InvoiceID:     req.InvoiceID,
		InitialStatus: req.InitialStatus,
	}, requestTime())
	if err != nil {
		_ = c.Error(err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{"licenses": dto.NewLicenseResponses(lics)})
}

func (h *LicenseHandler) List(c *gin.Context) {
	var req dto.ListLicensesRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		h.logger.Warn("Failed to bind or validate query parameters", zap.Error(err))
		_ = c.Error(bindError(err))
		return
	}

	lics, totalCount, err := h.service.ListLicenses(c.Request.Context(), req.Params())
	if err != nil {
		_ = c.Error(err)
		return
	}

	c.JSON(http.StatusOK, dto.PaginatedLicenseResponse{
		Licenses:   dto.NewLicenseResponses(lics),
		TotalCount: totalCount,
		Limit:      req.Limit,
		Offset:     req.Offset,
	})
}

func (h *LicenseHandler) GetByID(c *gin.Context) {
	id, ok := parseIDParam(c, "id")
	if !ok {
		return
	}

	lic, err := h.service.GetLicense(c.Request.Context(), id)
	if err != nil {
		_ = c.Error(err)
		return
	}
	c.JSON(http.StatusOK, dto.NewLicenseResponse(lic))
}

func (h *LicenseHandler) Update(c *gin.Context) {
	id, ok := parseIDParam(c, "id")
	if !ok {
		return
	}

	var req dto.UpdateLicenseRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.logger.Warn("Failed to bind update request body", zap.String("id", id.String()), zap.Error(err))
		_ = c.Error(bindError(err))
		return
	}

	lic, err := h.service.EditLicense(c.Request.Context(), id, service.EditInput{
		Status:      req.Status,
		ExpiresAt:   req.ExpiresAt,
		ClearExpiry: req.ClearExpiry,
		UserID:      req.UserID,
	}, requestTime())
	if err != nil {
		_ = c.Error(err)
		return
	}

	h.logger.Info("License updated", zap.String("id", id.String()), zap.String("status", string(lic.Status)))
	c.JSON(http.StatusOK, dto.NewLicenseResponse(lic))
}

func (h *LicenseHandler) Delete(c *gin.Context) {
	id, ok := parseIDParam(c, "id")
	if !ok {
		return
	}
	if err := h.service.DeleteLicense(c.Request.Context(), id); err != nil {
		_ = c.Error(err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *LicenseHandler) ListDevices(c *gin.Context) {
	id, ok := parseIDParam(c, "id")
	if !ok {
		return
	}

	devices, err := h.registry.ListDevices(c.Request.Context(), id)
	if err != nil {
		_ = c.Error(err)
		return
	}

	out := make([]*dto.DeviceResponse, len(devices))
	for i, d := range devices {
		out[i] = dto.NewDeviceResponse(d)
	}
	c.JSON(http.StatusOK, gin.H{"devices": out})
}

func (h *LicenseHandler) AddDevice(c *gin.Context) {
	id, ok := parseIDParam(c, "id")
	if !ok {
		return
	}

	var req dto.DeviceRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		_ = c.Error(bindError(err))
		return
	}

	d, err := h.registry.AddDevice(c.Request.Context(), id, req.ComputerID, req.Hardware(), requestTime())
	if err != nil {
		_ = c.Error(err)
		return
	}
	c.JSON(http.StatusCreated, dto.NewDeviceResponse(d))
}
