package invoice

import (
	"database/sql"
	"errors"
	"time"

	"github.com/google/uuid"
)

type Status string

const (
	StatusPaid    Status = "paid"
	StatusUnpaid  Status = "unpaid"
	StatusOverdue Status = "overdue"
)

func (s Status) Valid() bool {
	switch s {
	case StatusPaid, StatusUnpaid, StatusOverdue:
		return true
	}
	return false
}

var (
	ErrNotFound        = errors.New("invoice not found")
	ErrDuplicateNumber = errors.New("invoice number already exists")
)

type LineItem struct {
	ID             uuid.UUID `db:"id" json:"id"`
	InvoiceID      uuid.UUID `db:"invoice_id" json:"invoice_id"`
	PlanID         uuid.UUID `db:"plan_id" json:"plan_id"`
	Description    string    `db:"description" json:"description"`
	Quantity       int       `db:"quantity" json:"quantity"`
	UnitPriceCents int64     `db:"unit_price_cents" json:"unit_price_cents"`
}

func (li LineItem) AmountCents() int64 {
	return int64(li.Quantity) * li.UnitPriceCents
}

type Invoice struct {
	ID            uuid.UUID      `db:"id" json:"id"`
	InvoiceNumber string         `db:"invoice_number" json:"invoice_number"`
	CompanyID     uuid.UUID      `db:"company_id" json:"company_id"`
	IssueDate     time.Time      `db:"issue_date" json:"issue_date"`
	DueDate       time.Time      `db:"due_date" json:"due_date"`
	TotalCents    int64          `db:"total_cents" json:"total_cents"`
	Status        Status         `db:"status" json:"status"`
	PaymentMethod string         `db:"payment_method" json:"payment_method"`
	BankID        sql.NullString `db:"bank_id" json:"bank_id,omitempty"`
	LineItems     []LineItem     `db:"-" json:"line_items"`
	CreatedAt     time.Time      `db:"created_at" json:"created_at"`
	UpdatedAt     time.Time      `db:"updated_at" json:"updated_at"`
}

func (i *Invoice) IsPaid() bool {
	return i.Status == StatusPaid
}

// Total sums quantity*unit price over the line items.
func Total(items []LineItem) int64 {
	var total int64
	for _, li := range items {
		total += li.AmountCents()
	}
	return total
}

type ListParams struct {
	Status    *Status
	CompanyID *uuid.UUID
	Limit     int
	Offset    int
}
