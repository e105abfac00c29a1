package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/makkenzo/license-backoffice/internal/handler/dto"
	"github.com/makkenzo/license-backoffice/internal/service"
	"go.uber.org/zap"
)

type DeviceHandler struct {
	registry *service.DeviceRegistry
	logger   *zap.Logger
}

func NewDeviceHandler(registry *service.DeviceRegistry, logger *zap.Logger) *DeviceHandler {
	return &DeviceHandler{
		registry: registry,
		logger:   logger.Named("DeviceHandler"),
	}
}

func (h *DeviceHandler) Update(c *gin.Context) {
	id, ok := parseIDParam(c, "id")
	if !ok {
		return
	}

	var req dto.UpdateDeviceRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		_ = c.Error(bindError(err))
		return
	}

	d, err := h.registry.UpdateHardware(c.Request.Context(), id, req.Hardware())
	if err != nil {
		_ = c.Error(err)
		return
	}
	c.JSON(http.StatusOK, dto.NewDeviceResponse(d))
}

func (h *DeviceHandler) Deactivate(c *gin.Context) {
	id, ok := parseIDParam(c, "id")
	if !ok {
		return
	}
	if err := h.registry.Deactivate(c.Request.Context(), id); err != nil {
		_ = c.Error(err)
		return
	}
	c.Status(http.StatusNoContent)
}
