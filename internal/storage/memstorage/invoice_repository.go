package memstorage

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/makkenzo/license-backoffice/internal/domain/invoice"
)

type InvoiceRepository struct {
	mu       sync.RWMutex
	invoices map[uuid.UUID]*invoice.Invoice
}

func NewInvoiceRepository() *InvoiceRepository {
	return &InvoiceRepository{invoices: make(map[uuid.UUID]*invoice.Invoice)}
}

var _ invoice.Repository = (*InvoiceRepository)(nil)

func cloneInvoice(inv *invoice.Invoice) *invoice.Invoice {
	cp := *inv
	cp.LineItems = append([]invoice.LineItem(nil), inv.LineItems...)
	return &cp
}

func (r *InvoiceRepository) Create(ctx context.Context, inv *invoice.Invoice) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, existing := range r.invoices {
		if existing.InvoiceNumber == inv.InvoiceNumber {
			return invoice.ErrDuplicateNumber
		}
	}
	if inv.ID == uuid.Nil {
		inv.ID = uuid.New()
	}
	for i := range inv.LineItems {
		if inv.LineItems[i].ID == uuid.Nil {
			inv.LineItems[i].ID = uuid.New()
		}
		inv.LineItems[i].InvoiceID = inv.ID
	}
	ts := now()
	inv.CreatedAt = ts
	inv.UpdatedAt = ts
	r.invoices[inv.ID] = cloneInvoice(inv)
	return nil
}

func (r *InvoiceRepository) FindByID(ctx context.Context, id uuid.UUID) (*invoice.Invoice, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	inv, ok := r.invoices[id]
	if !ok {
		return nil, invoice.ErrNotFound
	}
	return cloneInvoice(inv), nil
}

func (r *InvoiceRepository) List(ctx context.Context, params invoice.ListParams) ([]*invoice.Invoice, int64, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]*invoice.Invoice, 0)
	for _, inv := range r.invoices {
		if params.Status != nil && inv.Status != *params.Status {
			continue
		}
		if params.CompanyID != nil && inv.CompanyID != *params.CompanyID {
			continue
		}
		out = append(out, cloneInvoice(inv))
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].IssueDate.Equal(out[j].IssueDate) {
			return out[i].InvoiceNumber > out[j].InvoiceNumber
		}
		return out[i].IssueDate.After(out[j].IssueDate)
	})
	total := int64(len(out))
	return paginate(out, params.Limit, params.Offset), total, nil
}

func (r *InvoiceRepository) Update(ctx context.Context, inv *invoice.Invoice) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	existing, ok := r.invoices[inv.ID]
	if !ok {
		return invoice.ErrNotFound
	}
	existing.InvoiceNumber = inv.InvoiceNumber
	existing.IssueDate = inv.IssueDate
	existing.DueDate = inv.DueDate
	existing.Status = inv.Status
	existing.PaymentMethod = inv.PaymentMethod
	existing.BankID = inv.BankID
	existing.UpdatedAt = now()
	inv.UpdatedAt = existing.UpdatedAt
	return nil
}

func (r *InvoiceRepository) ListUnpaidDueBefore(ctx context.Context, before time.Time) ([]*invoice.Invoice, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]*invoice.Invoice, 0)
	for _, inv := range r.invoices {
		if inv.Status == invoice.StatusUnpaid && inv.DueDate.Before(before) {
			out = append(out, cloneInvoice(inv))
		}
	}
	return out, nil
}
