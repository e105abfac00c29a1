package handler

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/makkenzo/license-backoffice/internal/domain/device"
	"github.com/makkenzo/license-backoffice/internal/handler/dto"
	"github.com/makkenzo/license-backoffice/internal/handler/middleware"
	"github.com/makkenzo/license-backoffice/internal/ierr"
	"github.com/makkenzo/license-backoffice/internal/service"
	"go.uber.org/zap"
)

// ActivationHandler serves the client protocol. It answers with its own
// {success, error, message} envelope instead of going through the admin
// error middleware.
type ActivationHandler struct {
	service *service.ActivationService
	logger  *zap.Logger
}

func NewActivationHandler(service *service.ActivationService, logger *zap.Logger) *ActivationHandler {
	return &ActivationHandler{
		service: service,
		logger:  logger.Named("ActivationHandler"),
	}
}

func (h *ActivationHandler) Activate(c *gin.Context) {
	var req dto.ActivateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.logger.Debug("Invalid activation request", zap.Error(err))
		c.JSON(http.StatusBadRequest, dto.NewProtocolError("INVALID_INPUT", "licenseKey, productName and device.computerId are required"))
		return
	}

	res, err := h.service.Activate(c.Request.Context(), service.ActivateInput{
		LicenseKey:     req.LicenseKey,
		ProductName:    req.ProductName,
		ComputerID:     req.Device.ComputerID,
		Hardware:       req.Device.Hardware(),
		ScopeProductID: middleware.APIKeyProductScope(c),
	}, requestTime())
	if err != nil {
		h.writeError(c, err)
		return
	}

	message := "License activated successfully"
	if res.Outcome == device.OutcomeAlreadyKnown {
		message = "Device already activated"
	}
	c.JSON(http.StatusOK, dto.NewActivateResponse(message, res.License, res.Device))
}

func (h *ActivationHandler) Heartbeat(c *gin.Context) {
	var req dto.HeartbeatRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.logger.Debug("Invalid heartbeat request", zap.Error(err))
		c.JSON(http.StatusBadRequest, dto.NewProtocolError("INVALID_INPUT", "licenseKey and computerId are required"))
		return
	}

	res, err := h.service.Heartbeat(c.Request.Context(), service.HeartbeatInput{
		LicenseKey:     req.LicenseKey,
		ComputerID:     req.ComputerID,
		ScopeProductID: middleware.APIKeyProductScope(c),
	}, requestTime())
	if err != nil {
		h.writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, dto.HeartbeatResponse{
		Success:       true,
		LicenseStatus: res.Status,
		Message:       "Heartbeat recorded",
	})
}

func (h *ActivationHandler) writeError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, ierr.ErrValidation):
		c.JSON(http.StatusBadRequest, dto.NewProtocolError("INVALID_INPUT", err.Error()))
	case errors.Is(err, ierr.ErrInvalidLicenseKey):
		c.JSON(http.StatusNotFound, dto.NewProtocolError("INVALID_LICENSE_KEY", "The license key is not valid for this product"))
	case errors.Is(err, ierr.ErrExpiredLicense):
		c.JSON(http.StatusBadRequest, dto.NewProtocolError("EXPIRED_LICENSE", "The license has expired"))
	case errors.Is(err, ierr.ErrDeviceLimitReached):
		c.JSON(http.StatusBadRequest, dto.NewProtocolError("DEVICE_LIMIT_REACHED", "The license has no free device slots"))
	case errors.Is(err, ierr.ErrLicenseNotFound):
		c.JSON(http.StatusNotFound, dto.NewProtocolError("LICENSE_NOT_FOUND", "License not found"))
	case errors.Is(err, ierr.ErrDeviceNotFound):
		c.JSON(http.StatusNotFound, dto.NewProtocolError("DEVICE_NOT_FOUND", "Device is not registered for this license"))
	default:
		h.logger.Error("Protocol request failed", zap.String("path", c.FullPath()), zap.Error(err))
		c.JSON(http.StatusInternalServerError, dto.NewProtocolError("INTERNAL_ERROR", "An unexpected error occurred"))
	}
}
