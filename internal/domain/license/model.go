package license

import (
	"database/sql"
	"errors"
	"time"

	"github.com/google/uuid"
)

type LicenseStatus string

const (
	StatusActive   LicenseStatus = "active"
	StatusInactive LicenseStatus = "inactive"
	StatusExpired  LicenseStatus = "expired"
)

func (s LicenseStatus) Valid() bool {
	switch s {
	case StatusActive, StatusInactive, StatusExpired:
		return true
	}
	return false
}

var (
	ErrNotFound       = errors.New("license not found")
	ErrUpdateFailed   = errors.New("license update failed")
	ErrDuplicateKey   = errors.New("license key already exists")
	// ErrAlreadyExpired is returned by writes that would move a stored expired
	// license to another status.
	ErrAlreadyExpired = errors.New("license already expired")
)

type License struct {
	ID         uuid.UUID     `db:"id" json:"id"`
	LicenseKey string        `db:"license_key" json:"license_key"`
	ProductID  uuid.UUID     `db:"product_id" json:"product_id"`
	PlanID     uuid.UUID     `db:"plan_id" json:"plan_id"`
	UserID     uuid.NullUUID `db:"user_id" json:"user_id,omitempty"`
	InvoiceID  uuid.NullUUID `db:"invoice_id" json:"invoice_id,omitempty"`
	Status     LicenseStatus `db:"status" json:"status"`
	ExpiresAt  sql.NullTime  `db:"expires_at" json:"expires_at,omitempty"`
	CreatedAt  time.Time     `db:"created_at" json:"created_at"`
	UpdatedAt  time.Time     `db:"updated_at" json:"updated_at"`
}

// HasInvoice reports whether the license was issued against an invoice.
func (l *License) HasInvoice() bool {
	return l.InvoiceID.Valid
}

type ListParams struct {
	Status    *LicenseStatus
	ProductID *uuid.UUID
	PlanID    *uuid.UUID
	UserID    *uuid.UUID
	InvoiceID *uuid.UUID
	// ExpiringBefore selects licenses with a non-null expiry strictly before the instant.
	ExpiringBefore *time.Time
	Limit          int
	Offset         int
	SortBy         string
	SortOrder      string
}

// SortColumns lists the columns ListParams.SortBy may name.
var SortColumns = map[string]bool{
	"created_at":  true,
	"updated_at":  true,
	"expires_at":  true,
	"status":      true,
	"license_key": true,
}
