package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/makkenzo/license-backoffice/internal/handler/dto"
	"github.com/makkenzo/license-backoffice/internal/service"
	"go.uber.org/zap"
)

type DashboardHandler struct {
	licenseService *service.LicenseService
	withinDays     int
	logger         *zap.Logger
}

func NewDashboardHandler(licenseService *service.LicenseService, withinDays int, logger *zap.Logger) *DashboardHandler {
	return &DashboardHandler{
		licenseService: licenseService,
		withinDays:     withinDays,
		logger:         logger.Named("DashboardHandler"),
	}
}

func (h *DashboardHandler) GetSummary(c *gin.Context) {
	now := requestTime()
	summary, err := h.licenseService.GetDashboardSummary(c.Request.Context(), now, h.withinDays)
	if err != nil {
		h.logger.Error("Failed to get dashboard summary", zap.Error(err))
		_ = c.Error(err)
		return
	}

	c.JSON(http.StatusOK, dto.DashboardSummaryResponse{
		GeneratedAt:   now,
		TotalLicenses: summary.TotalLicenses,
		StatusCounts:  summary.StatusCounts,
		BoundDevices:  summary.TotalDevices,
		ExpiringSoon: dto.ExpiringWindow{
			PeriodDays:   summary.ExpiringSoon.PeriodDays,
			Count:        summary.ExpiringSoon.Count,
			NextToExpire: dto.NewExpiringLicense(summary.ExpiringSoon.NextToExpire),
		},
	})
}
