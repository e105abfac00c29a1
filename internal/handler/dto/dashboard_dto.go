package dto

import (
	"time"

	"github.com/google/uuid"
	"github.com/makkenzo/license-backoffice/internal/domain/license"
)

type DashboardSummaryResponse struct {
	GeneratedAt   time.Time                       `json:"generatedAt"`
	TotalLicenses int64                           `json:"totalLicenses"`
	StatusCounts  map[license.LicenseStatus]int64 `json:"statusCounts"`
	BoundDevices  int64                           `json:"boundDevices"`
	ExpiringSoon  ExpiringWindow                  `json:"expiringSoon"`
}

// ExpiringWindow covers active licenses whose expiry falls within PeriodDays.
type ExpiringWindow struct {
	PeriodDays   int              `json:"periodDays"`
	Count        int64            `json:"count"`
	NextToExpire *ExpiringLicense `json:"nextToExpire,omitempty"`
}

type ExpiringLicense struct {
	ID         uuid.UUID `json:"id"`
	LicenseKey string    `json:"licenseKey"`
	ProductID  uuid.UUID `json:"productId"`
	ExpiresAt  time.Time `json:"expiresAt"`
}

func NewExpiringLicense(lic *license.License) *ExpiringLicense {
	if lic == nil || !lic.ExpiresAt.Valid {
		return nil
	}
	return &ExpiringLicense{
		ID:         lic.ID,
		LicenseKey: lic.LicenseKey,
		ProductID:  lic.ProductID,
		ExpiresAt:  lic.ExpiresAt.Time,
	}
}
