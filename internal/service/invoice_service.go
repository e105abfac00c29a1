package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/makkenzo/license-backoffice/internal/domain/activity"
	"github.com/makkenzo/license-backoffice/internal/domain/invoice"
	"github.com/makkenzo/license-backoffice/internal/domain/license"
	"github.com/makkenzo/license-backoffice/internal/domain/plan"
	"github.com/makkenzo/license-backoffice/internal/domain/user"
	"github.com/makkenzo/license-backoffice/internal/ierr"
	"go.uber.org/multierr"
	"go.uber.org/zap"
)

// RecomputeScheduler queues a background re-derivation of an invoice's
// licenses, used when the inline recompute failed part-way.
type RecomputeScheduler interface {
	ScheduleInvoiceRecompute(ctx context.Context, invoiceID uuid.UUID) error
}

// IssuanceError reports that an invoice was stored but licensing stopped at a
// line item. Licenses of earlier line items remain.
type IssuanceError struct {
	InvoiceID       uuid.UUID
	LineItemIndex   int
	LineItemID      uuid.UUID
	LicensesCreated int
	Err             error
}

func (e *IssuanceError) Error() string {
	return fmt.Sprintf("license issuance for invoice %s failed at line item %d (%s) after %d licenses: %v",
		e.InvoiceID, e.LineItemIndex, e.LineItemID, e.LicensesCreated, e.Err)
}

func (e *IssuanceError) Unwrap() error {
	return e.Err
}

type InvoiceService struct {
	invoices  invoice.Repository
	users     user.Repository
	catalog   *PlanCatalog
	licenses  *LicenseService
	scheduler RecomputeScheduler
	activity  ActivityRecorder
	logger    *zap.Logger
}

// NewInvoiceService builds the service. scheduler may be nil, in which case a
// failed recompute is returned to the caller.
func NewInvoiceService(
	invoices invoice.Repository,
	users user.Repository,
	catalog *PlanCatalog,
	licenses *LicenseService,
	scheduler RecomputeScheduler,
	activity ActivityRecorder,
	logger *zap.Logger,
) *InvoiceService {
	return &InvoiceService{
		invoices:  invoices,
		users:     users,
		catalog:   catalog,
		licenses:  licenses,
		scheduler: scheduler,
		activity:  recorderOrNop(activity),
		logger:    logger.Named("InvoiceService"),
	}
}

type LineItemInput struct {
	PlanID         uuid.UUID
	Description    string
	Quantity       int
	UnitPriceCents int64
}

type CreateInvoiceInput struct {
	InvoiceNumber string
	CompanyID     uuid.UUID
	IssueDate     time.Time
	DueDate       time.Time
	// Status defaults to unpaid.
	Status        invoice.Status
	PaymentMethod string
	BankID        *string
	LineItems     []LineItemInput
}

type IssuanceResult struct {
	Invoice  *invoice.Invoice
	Licenses []*license.License
}

// CreateInvoice stores the invoice and issues one license per purchased unit,
// all assigned to the company's first user. Nothing is written when validation
// fails or the company has no users.
func (s *InvoiceService) CreateInvoice(ctx context.Context, in CreateInvoiceInput, now time.Time) (*IssuanceResult, error) {
	if in.Status == "" {
		in.Status = invoice.StatusUnpaid
	}
	if !in.Status.Valid() {
		return nil, fmt.Errorf("%w: unknown invoice status %q", ierr.ErrValidation, in.Status)
	}
	if len(in.LineItems) == 0 {
		return nil, fmt.Errorf("%w: an invoice needs at least one line item", ierr.ErrValidation)
	}
	if in.DueDate.Before(in.IssueDate) {
		return nil, fmt.Errorf("%w: due date precedes issue date", ierr.ErrValidation)
	}

	plans := make([]*plan.Plan, len(in.LineItems))
	items := make([]invoice.LineItem, len(in.LineItems))
	for i, li := range in.LineItems {
		if li.Quantity < 1 {
			return nil, fmt.Errorf("%w: line item %d: quantity must be at least 1", ierr.ErrValidation, i)
		}
		if li.UnitPriceCents < 0 {
			return nil, fmt.Errorf("%w: line item %d: unit price must not be negative", ierr.ErrValidation, i)
		}
		p, err := s.catalog.GetByID(ctx, li.PlanID)
		if err != nil {
			if errors.Is(err, plan.ErrNotFound) {
				return nil, fmt.Errorf("%w: line item %d: plan %s does not exist", ierr.ErrValidation, i, li.PlanID)
			}
			return nil, err
		}
		plans[i] = p
		items[i] = invoice.LineItem{
			ID:             uuid.New(),
			PlanID:         li.PlanID,
			Description:    li.Description,
			Quantity:       li.Quantity,
			UnitPriceCents: li.UnitPriceCents,
		}
	}

	users, err := s.users.ListByCompany(ctx, in.CompanyID)
	if err != nil {
		return nil, fmt.Errorf("repository error listing company users: %w", err)
	}
	if len(users) == 0 {
		return nil, fmt.Errorf("%w: company %s", ierr.ErrNoCompanyUsers, in.CompanyID)
	}
	assignee := users[0]

	number := strings.TrimSpace(in.InvoiceNumber)
	if number == "" {
		number = fmt.Sprintf("INV-%s-%s", in.IssueDate.UTC().Format("20060102"), strings.ToUpper(uuid.NewString()[:8]))
	}

	inv := &invoice.Invoice{
		ID:            uuid.New(),
		InvoiceNumber: number,
		CompanyID:     in.CompanyID,
		IssueDate:     in.IssueDate.UTC(),
		DueDate:       in.DueDate.UTC(),
		TotalCents:    invoice.Total(items),
		Status:        in.Status,
		PaymentMethod: in.PaymentMethod,
		LineItems:     items,
	}
	if in.BankID != nil {
		inv.BankID = sql.NullString{String: *in.BankID, Valid: true}
	}

	if err := s.invoices.Create(ctx, inv); err != nil {
		s.logger.Error("Failed to create invoice", zap.String("invoice_number", number), zap.Error(err))
		return nil, err
	}
	s.activity.Record(ctx, ActivityEntry{
		Action:     activity.ActionInvoiceCreated,
		EntityType: "invoice",
		EntityID:   inv.ID.String(),
		Details:    map[string]any{"invoice_number": inv.InvoiceNumber, "total_cents": inv.TotalCents},
	})

	issued := make([]*license.License, 0)
	for i, li := range inv.LineItems {
		lics, err := s.licenses.IssueForLineItem(ctx, inv, li, plans[i], assignee.ID, now)
		if err != nil {
			s.logger.Error("License issuance stopped",
				zap.String("invoice_id", inv.ID.String()),
				zap.Int("line_item_index", i),
				zap.Int("licenses_created", len(issued)),
				zap.Error(err),
			)
			return nil, &IssuanceError{
				InvoiceID:       inv.ID,
				LineItemIndex:   i,
				LineItemID:      li.ID,
				LicensesCreated: len(issued),
				Err:             err,
			}
		}
		issued = append(issued, lics...)
	}

	s.logger.Info("Invoice created",
		zap.String("invoice_id", inv.ID.String()),
		zap.String("invoice_number", inv.InvoiceNumber),
		zap.Int64("total_cents", inv.TotalCents),
		zap.Int("licenses_issued", len(issued)),
		zap.String("assignee", assignee.ID.String()),
	)
	return &IssuanceResult{Invoice: inv, Licenses: issued}, nil
}

func (s *InvoiceService) GetInvoice(ctx context.Context, id uuid.UUID) (*invoice.Invoice, error) {
	return s.invoices.FindByID(ctx, id)
}

func (s *InvoiceService) ListInvoices(ctx context.Context, params invoice.ListParams) ([]*invoice.Invoice, int64, error) {
	if params.Status != nil && !params.Status.Valid() {
		return nil, 0, fmt.Errorf("%w: unknown invoice status %q", ierr.ErrValidation, *params.Status)
	}
	return s.invoices.List(ctx, params)
}

type UpdateInvoiceInput struct {
	DueDate       *time.Time
	Status        *invoice.Status
	PaymentMethod *string
	BankID        *string
}

// UpdateInvoice writes the header fields. A status change re-derives the
// invoice's licenses when paid-ness flipped.
func (s *InvoiceService) UpdateInvoice(ctx context.Context, id uuid.UUID, in UpdateInvoiceInput, now time.Time) (*invoice.Invoice, error) {
	if in.Status != nil && !in.Status.Valid() {
		return nil, fmt.Errorf("%w: unknown invoice status %q", ierr.ErrValidation, *in.Status)
	}

	inv, err := s.invoices.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	previous := inv.Status

	if in.DueDate != nil {
		if in.DueDate.Before(inv.IssueDate) {
			return nil, fmt.Errorf("%w: due date precedes issue date", ierr.ErrValidation)
		}
		inv.DueDate = in.DueDate.UTC()
	}
	if in.Status != nil {
		inv.Status = *in.Status
	}
	if in.PaymentMethod != nil {
		inv.PaymentMethod = *in.PaymentMethod
	}
	if in.BankID != nil {
		inv.BankID = sql.NullString{String: *in.BankID, Valid: *in.BankID != ""}
	}

	if err := s.invoices.Update(ctx, inv); err != nil {
		s.logger.Error("Failed to update invoice", zap.String("invoice_id", id.String()), zap.Error(err))
		return nil, err
	}

	action := activity.ActionInvoiceUpdated
	if inv.IsPaid() && previous != invoice.StatusPaid {
		action = activity.ActionInvoicePaid
	}
	s.activity.Record(ctx, ActivityEntry{
		Action:     action,
		EntityType: "invoice",
		EntityID:   inv.ID.String(),
		Details:    map[string]any{"from": previous, "to": inv.Status},
	})

	if inv.Status != previous {
		if err := s.onStatusChange(ctx, inv, previous, now); err != nil {
			return nil, err
		}
	}
	return inv, nil
}

func (s *InvoiceService) MarkInvoicePaid(ctx context.Context, id uuid.UUID, now time.Time) (*invoice.Invoice, error) {
	paid := invoice.StatusPaid
	return s.UpdateInvoice(ctx, id, UpdateInvoiceInput{Status: &paid}, now)
}

// MarkOverdue moves unpaid invoices past their due date to overdue. Paid-ness
// does not change, so their licenses are left alone.
func (s *InvoiceService) MarkOverdue(ctx context.Context, now time.Time) (int, error) {
	due, err := s.invoices.ListUnpaidDueBefore(ctx, now)
	if err != nil {
		return 0, fmt.Errorf("repository error listing due invoices: %w", err)
	}

	var (
		marked int
		errs   error
	)
	for _, inv := range due {
		previous := inv.Status
		inv.Status = invoice.StatusOverdue
		if err := s.invoices.Update(ctx, inv); err != nil {
			errs = multierr.Append(errs, fmt.Errorf("invoice %s: %w", inv.ID, err))
			continue
		}
		marked++
		if err := s.onStatusChange(ctx, inv, previous, now); err != nil {
			errs = multierr.Append(errs, err)
		}
	}

	s.logger.Info("Overdue sweep finished", zap.Int("marked", marked), zap.Error(errs))
	return marked, errs
}

// RecomputeInvoice re-derives the licenses of one invoice from its current status.
func (s *InvoiceService) RecomputeInvoice(ctx context.Context, id uuid.UUID, now time.Time) (RecomputeResult, error) {
	inv, err := s.invoices.FindByID(ctx, id)
	if err != nil {
		return RecomputeResult{}, err
	}
	return s.licenses.RecomputeInvoiceLicenses(ctx, inv, now)
}

func (s *InvoiceService) onStatusChange(ctx context.Context, inv *invoice.Invoice, previous invoice.Status, now time.Time) error {
	res, err := s.licenses.OnInvoiceStatusChange(ctx, inv, previous, now)
	if err == nil {
		return nil
	}

	s.logger.Warn("Inline license recompute incomplete",
		zap.String("invoice_id", inv.ID.String()),
		zap.Int("changed", res.Changed),
		zap.Error(err),
	)
	if s.scheduler == nil {
		return fmt.Errorf("recompute licenses of invoice %s: %w", inv.ID, err)
	}
	if enqErr := s.scheduler.ScheduleInvoiceRecompute(ctx, inv.ID); enqErr != nil {
		s.logger.Error("Failed to schedule license recompute", zap.String("invoice_id", inv.ID.String()), zap.Error(enqErr))
		return multierr.Combine(
			fmt.Errorf("recompute licenses of invoice %s: %w", inv.ID, err),
			fmt.Errorf("schedule retry: %w", enqErr),
		)
	}
	return nil
}
