package dto

import (
	"time"

	"github.com/makkenzo/license-backoffice/internal/domain/device"
	"github.com/makkenzo/license-backoffice/internal/domain/license"
)

type DeviceInfo struct {
	ComputerID string  `json:"computerId" binding:"required"`
	Name       string  `json:"name"`
	OS         *string `json:"os"`
	Processor  *string `json:"processor"`
	RAM        *string `json:"ram"`
}

func (d DeviceInfo) Hardware() device.HardwareInfo {
	return device.HardwareInfo{Name: d.Name, OS: d.OS, Processor: d.Processor, RAM: d.RAM}
}

type ActivateRequest struct {
	LicenseKey  string     `json:"licenseKey" binding:"required"`
	ProductName string     `json:"productName" binding:"required"`
	Device      DeviceInfo `json:"device" binding:"required"`
}

type ActivatedLicense struct {
	Key       string     `json:"key"`
	IsActive  bool       `json:"isActive"`
	ExpiresAt *time.Time `json:"expiresAt"`
}

type ActivatedDevice struct {
	ID          string    `json:"id"`
	ComputerID  string    `json:"computerId"`
	Name        string    `json:"name"`
	OS          *string   `json:"os"`
	Processor   *string   `json:"processor"`
	RAM         *string   `json:"ram"`
	IsActive    bool      `json:"isActive"`
	ActivatedAt time.Time `json:"activatedAt"`
	LastSeenAt  time.Time `json:"lastSeenAt"`
}

type ActivateResponse struct {
	Success bool             `json:"success"`
	Message string           `json:"message"`
	License ActivatedLicense `json:"license"`
	Device  ActivatedDevice  `json:"device"`
}

func NewActivateResponse(message string, lic *license.License, d *device.Device) ActivateResponse {
	resp := ActivateResponse{
		Success: true,
		Message: message,
		License: ActivatedLicense{
			Key:      lic.LicenseKey,
			IsActive: lic.Status == license.StatusActive,
		},
		Device: ActivatedDevice{
			ID:          d.ID.String(),
			ComputerID:  d.ComputerID,
			Name:        d.Name,
			OS:          nullString(d.OS.String, d.OS.Valid),
			Processor:   nullString(d.Processor.String, d.Processor.Valid),
			RAM:         nullString(d.RAM.String, d.RAM.Valid),
			IsActive:    d.IsActive,
			ActivatedAt: d.ActivatedAt,
			LastSeenAt:  d.LastSeenAt,
		},
	}
	if lic.ExpiresAt.Valid {
		resp.License.ExpiresAt = &lic.ExpiresAt.Time
	}
	return resp
}

type HeartbeatRequest struct {
	LicenseKey string `json:"licenseKey" binding:"required"`
	ComputerID string `json:"computerId" binding:"required"`
}

type HeartbeatResponse struct {
	Success       bool                  `json:"success"`
	LicenseStatus license.LicenseStatus `json:"licenseStatus"`
	Message       string                `json:"message"`
}

func nullString(s string, valid bool) *string {
	if !valid {
		return nil
	}
	return &s
}
