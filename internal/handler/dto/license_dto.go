package dto

import (
	"time"

	"github.com/google/uuid"
	"github.com/makkenzo/license-backoffice/internal/domain/device"
	"github.com/makkenzo/license-backoffice/internal/domain/license"
)

type GenerateLicensesRequest struct {
	ProductID     uuid.UUID              `json:"product_id" binding:"required"`
	PlanID        uuid.UUID              `json:"plan_id" binding:"required"`
	Count         int                    `json:"count" binding:"required,gte=1,lte=1000"`
	UserID        *uuid.UUID             `json:"user_id"`
	InvoiceID     *uuid.UUID             `json:"invoice_id"`
	InitialStatus *license.LicenseStatus `json:"initial_status" binding:"omitempty,oneof=active inactive"`
}

type LicenseResponse struct {
	ID         uuid.UUID             `json:"id"`
	LicenseKey string                `json:"license_key"`
	ProductID  uuid.UUID             `json:"product_id"`
	PlanID     uuid.UUID             `json:"plan_id"`
	UserID     *uuid.UUID            `json:"user_id,omitempty"`
	InvoiceID  *uuid.UUID            `json:"invoice_id,omitempty"`
	Status     license.LicenseStatus `json:"status"`
	ExpiresAt  *time.Time            `json:"expires_at,omitempty"`
	CreatedAt  time.Time             `json:"created_at"`
	UpdatedAt  time.Time             `json:"updated_at"`
}

func NewLicenseResponse(lic *license.License) *LicenseResponse {
	resp := &LicenseResponse{
		ID:         lic.ID,
		LicenseKey: lic.LicenseKey,
		ProductID:  lic.ProductID,
		PlanID:     lic.PlanID,
		Status:     lic.Status,
		CreatedAt:  lic.CreatedAt,
		UpdatedAt:  lic.UpdatedAt,
	}
	if lic.UserID.Valid {
		resp.UserID = &lic.UserID.UUID
	}
	if lic.InvoiceID.Valid {
		resp.InvoiceID = &lic.InvoiceID.UUID
	}
	if lic.ExpiresAt.Valid {
		resp.ExpiresAt = &lic.ExpiresAt.Time
	}
	return resp
}

func NewLicenseResponses(lics []*license.License) []*LicenseResponse {
	out := make([]*LicenseResponse, len(lics))
	for i, lic := range lics {
		out[i] = NewLicenseResponse(lic)
	}
	return out
}

type ListLicensesRequest struct {
	Status    *license.LicenseStatus `form:"status" binding:"omitempty,oneof=active inactive expired"`
	ProductID string                 `form:"product_id" binding:"omitempty,uuid"`
	PlanID    string                 `form:"plan_id" binding:"omitempty,uuid"`
	UserID    string                 `form:"user_id" binding:"omitempty,uuid"`
	InvoiceID string                 `form:"invoice_id" binding:"omitempty,uuid"`
	Limit     int                    `form:"limit,default=20" binding:"omitempty,gte=0,lte=500"`
	Offset    int                    `form:"offset,default=0" binding:"omitempty,gte=0"`
	SortBy    string                 `form:"sort_by,default=created_at"`
	SortOrder string                 `form:"sort_order,default=DESC" binding:"omitempty,oneof=ASC DESC asc desc"`
}

func (r *ListLicensesRequest) Params() license.ListParams {
	return license.ListParams{
		Status:    r.Status,
		ProductID: optionalUUID(r.ProductID),
		PlanID:    optionalUUID(r.PlanID),
		UserID:    optionalUUID(r.UserID),
		InvoiceID: optionalUUID(r.InvoiceID),
		Limit:     r.Limit,
		Offset:    r.Offset,
		SortBy:    r.SortBy,
		SortOrder: r.SortOrder,
	}
}

type PaginatedLicenseResponse struct {
	Licenses   []*LicenseResponse `json:"licenses"`
	TotalCount int64              `json:"totalCount"`
	Limit      int                `json:"limit"`
	Offset     int                `json:"offset"`
}

type UpdateLicenseRequest struct {
	Status      *license.LicenseStatus `json:"status" binding:"omitempty,oneof=active inactive expired"`
	ExpiresAt   *time.Time             `json:"expires_at"`
	ClearExpiry bool                   `json:"clear_expiry"`
	UserID      *uuid.UUID             `json:"user_id"`
}

type DeviceRequest struct {
	ComputerID string  `json:"computer_id" binding:"required"`
	Name       string  `json:"name"`
	OS         *string `json:"os"`
	Processor  *string `json:"processor"`
	RAM        *string `json:"ram"`
}

func (r DeviceRequest) Hardware() device.HardwareInfo {
	return device.HardwareInfo{Name: r.Name, OS: r.OS, Processor: r.Processor, RAM: r.RAM}
}

type UpdateDeviceRequest struct {
	Name      string  `json:"name"`
	OS        *string `json:"os"`
	Processor *string `json:"processor"`
	RAM       *string `json:"ram"`
}

func (r UpdateDeviceRequest) Hardware() device.HardwareInfo {
	return device.HardwareInfo{Name: r.Name, OS: r.OS, Processor: r.Processor, RAM: r.RAM}
}

type DeviceResponse struct {
	ID          uuid.UUID `json:"id"`
	LicenseID   uuid.UUID `json:"license_id"`
	ComputerID  string    `json:"computer_id"`
	Name        string    `json:"name"`
	OS          *string   `json:"os,omitempty"`
	Processor   *string   `json:"processor,omitempty"`
	RAM         *string   `json:"ram,omitempty"`
	IsActive    bool      `json:"is_active"`
	ActivatedAt time.Time `json:"activated_at"`
	LastSeenAt  time.Time `json:"last_seen_at"`
}

func NewDeviceResponse(d *device.Device) *DeviceResponse {
	return &DeviceResponse{
		ID:          d.ID,
		LicenseID:   d.LicenseID,
		ComputerID:  d.ComputerID,
		Name:        d.Name,
		OS:          nullString(d.OS.String, d.OS.Valid),
		Processor:   nullString(d.Processor.String, d.Processor.Valid),
		RAM:         nullString(d.RAM.String, d.RAM.Valid),
		IsActive:    d.IsActive,
		ActivatedAt: d.ActivatedAt,
		LastSeenAt:  d.LastSeenAt,
	}
}

// optionalUUID parses an already validated query value; empty means unset.
func optionalUUID(s string) *uuid.UUID {
	if s == "" {
		return nil
	}
	id, err := uuid.Parse(s)
	if err != nil {
		return nil
	}
	return &id
}
