package dto

import (
	"time"

	"github.com/google/uuid"
	"github.com/makkenzo/license-backoffice/internal/domain/invoice"
)

type LineItemRequest struct {
	PlanID         uuid.UUID `json:"plan_id" binding:"required"`
	Description    string    `json:"description"`
	Quantity       int       `json:"quantity" binding:"required,gte=1"`
	UnitPriceCents int64     `json:"unit_price_cents" binding:"gte=0"`
}

type CreateInvoiceRequest struct {
	InvoiceNumber string            `json:"invoice_number"`
	CompanyID     uuid.UUID         `json:"company_id" binding:"required"`
	IssueDate     time.Time         `json:"issue_date" binding:"required"`
	DueDate       time.Time         `json:"due_date" binding:"required"`
	Status        invoice.Status    `json:"status" binding:"omitempty,oneof=paid unpaid overdue"`
	PaymentMethod string            `json:"payment_method"`
	BankID        *string           `json:"bank_id"`
	LineItems     []LineItemRequest `json:"line_items" binding:"required,min=1,dive"`
}

type UpdateInvoiceRequest struct {
	DueDate       *time.Time      `json:"due_date"`
	Status        *invoice.Status `json:"status" binding:"omitempty,oneof=paid unpaid overdue"`
	PaymentMethod *string         `json:"payment_method"`
	BankID        *string         `json:"bank_id"`
}

type ListInvoicesRequest struct {
	Status    *invoice.Status `form:"status" binding:"omitempty,oneof=paid unpaid overdue"`
	CompanyID string          `form:"company_id" binding:"omitempty,uuid"`
	Limit     int             `form:"limit,default=20" binding:"omitempty,gte=0,lte=500"`
	Offset    int             `form:"offset,default=0" binding:"omitempty,gte=0"`
}

type LineItemResponse struct {
	ID             uuid.UUID `json:"id"`
	PlanID         uuid.UUID `json:"plan_id"`
	Description    string    `json:"description"`
	Quantity       int       `json:"quantity"`
	UnitPriceCents int64     `json:"unit_price_cents"`
	AmountCents    int64     `json:"amount_cents"`
}

type InvoiceResponse struct {
	ID            uuid.UUID          `json:"id"`
	InvoiceNumber string             `json:"invoice_number"`
	CompanyID     uuid.UUID          `json:"company_id"`
	IssueDate     time.Time          `json:"issue_date"`
	DueDate       time.Time          `json:"due_date"`
	TotalCents    int64              `json:"total_cents"`
	Status        invoice.Status     `json:"status"`
	PaymentMethod string             `json:"payment_method"`
	BankID        *string            `json:"bank_id,omitempty"`
	LineItems     []LineItemResponse `json:"line_items,omitempty"`
	CreatedAt     time.Time          `json:"created_at"`
	UpdatedAt     time.Time          `json:"updated_at"`
}

func NewInvoiceResponse(inv *invoice.Invoice) *InvoiceResponse {
	resp := &InvoiceResponse{
		ID:            inv.ID,
		InvoiceNumber: inv.InvoiceNumber,
		CompanyID:     inv.CompanyID,
		IssueDate:     inv.IssueDate,
		DueDate:       inv.DueDate,
		TotalCents:    inv.TotalCents,
		Status:        inv.Status,
		PaymentMethod: inv.PaymentMethod,
		BankID:        nullString(inv.BankID.String, inv.BankID.Valid),
		CreatedAt:     inv.CreatedAt,
		UpdatedAt:     inv.UpdatedAt,
	}
	for _, li := range inv.LineItems {
		resp.LineItems = append(resp.LineItems, LineItemResponse{
			ID:             li.ID,
			PlanID:         li.PlanID,
			Description:    li.Description,
			Quantity:       li.Quantity,
			UnitPriceCents: li.UnitPriceCents,
			AmountCents:    li.AmountCents(),
		})
	}
	return resp
}

type CreateInvoiceResponse struct {
	Invoice  *InvoiceResponse   `json:"invoice"`
	Licenses []*LicenseResponse `json:"licenses"`
}

type PaginatedInvoiceResponse struct {
	Invoices   []*InvoiceResponse `json:"invoices"`
	TotalCount int64              `json:"totalCount"`
	Limit      int                `json:"limit"`
	Offset     int                `json:"offset"`
}

func (r *ListInvoicesRequest) Params() invoice.ListParams {
	return invoice.ListParams{
		Status:    r.Status,
		CompanyID: optionalUUID(r.CompanyID),
		Limit:     r.Limit,
		Offset:    r.Offset,
	}
}
