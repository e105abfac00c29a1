package postgres

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/makkenzo/license-backoffice/internal/domain/invoice"
	"go.uber.org/zap"
)

const invoiceColumns = `
    id, invoice_number, company_id, issue_date, due_date, total_cents,
    status, payment_method, bank_id, created_at, updated_at`

type InvoiceRepository struct {
	db     *pgxpool.Pool
	logger *zap.Logger
}

func NewInvoiceRepository(db *pgxpool.Pool, logger *zap.Logger) *InvoiceRepository {
	return &InvoiceRepository{db: db, logger: logger.Named("InvoiceRepository")}
}

var _ invoice.Repository = (*InvoiceRepository)(nil)

func (r *InvoiceRepository) Create(ctx context.Context, inv *invoice.Invoice) error {
	if inv.ID == uuid.Nil {
		inv.ID = uuid.New()
	}

	err := pgx.BeginFunc(ctx, r.db, func(tx pgx.Tx) error {
		err := tx.QueryRow(ctx, `
            INSERT INTO invoices (id, invoice_number, company_id, issue_date, due_date,
                                  total_cents, status, payment_method, bank_id)
            VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
            RETURNING created_at, updated_at`,
			inv.ID, inv.InvoiceNumber, inv.CompanyID, inv.IssueDate, inv.DueDate,
			inv.TotalCents, inv.Status, inv.PaymentMethod, inv.BankID,
		).Scan(&inv.CreatedAt, &inv.UpdatedAt)
		if err != nil {
			return err
		}

		batch := &pgx.Batch{}
		for i := range inv.LineItems {
			li := &inv.LineItems[i]
			if li.ID == uuid.Nil {
				li.ID = uuid.New()
			}
			li.InvoiceID = inv.ID
			batch.Queue(`
                INSERT INTO invoice_line_items (id, invoice_id, position, plan_id, description, quantity, unit_price_cents)
                VALUES ($1, $2, $3, $4, $5, $6, $7)`,
				li.ID, li.InvoiceID, i, li.PlanID, li.Description, li.Quantity, li.UnitPriceCents,
			)
		}
		return tx.SendBatch(ctx, batch).Close()
	})
	if err != nil {
		if _, ok := uniqueViolationOn(err); ok {
			return invoice.ErrDuplicateNumber
		}
		r.logger.Error("Failed to create invoice", zap.String("invoice_number", inv.InvoiceNumber), zap.Error(err))
		return fmt.Errorf("database error on create invoice: %w", err)
	}
	return nil
}

func (r *InvoiceRepository) FindByID(ctx context.Context, id uuid.UUID) (*invoice.Invoice, error) {
	inv, err := scanInvoice(r.db.QueryRow(ctx, `SELECT`+invoiceColumns+` FROM invoices WHERE id = $1`, id))
	if err != nil {
		return nil, err
	}

	rows, err := r.db.Query(ctx, `
        SELECT id, invoice_id, plan_id, description, quantity, unit_price_cents
        FROM invoice_line_items
        WHERE invoice_id = $1
        ORDER BY position`, id)
	if err != nil {
		return nil, fmt.Errorf("database error on load line items: %w", err)
	}
	defer rows.Close()

	inv.LineItems = make([]invoice.LineItem, 0)
	for rows.Next() {
		var li invoice.LineItem
		if err := rows.Scan(&li.ID, &li.InvoiceID, &li.PlanID, &li.Description, &li.Quantity, &li.UnitPriceCents); err != nil {
			return nil, fmt.Errorf("database scan error: %w", err)
		}
		inv.LineItems = append(inv.LineItems, li)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("database error on load line items: %w", err)
	}
	return inv, nil
}

func (r *InvoiceRepository) List(ctx context.Context, params invoice.ListParams) ([]*invoice.Invoice, int64, error) {
	var conds []string
	var args []any
	if params.Status != nil {
		args = append(args, *params.Status)
		conds = append(conds, fmt.Sprintf("status = $%d", len(args)))
	}
	if params.CompanyID != nil {
		args = append(args, *params.CompanyID)
		conds = append(conds, fmt.Sprintf("company_id = $%d", len(args)))
	}
	where := ""
	if len(conds) > 0 {
		where = " WHERE " + strings.Join(conds, " AND ")
	}

	var total int64
	if err := r.db.QueryRow(ctx, `SELECT COUNT(*) FROM invoices`+where, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("database error on count invoices: %w", err)
	}

	query := `SELECT` + invoiceColumns + ` FROM invoices` + where + ` ORDER BY issue_date DESC, id`
	if params.Limit > 0 {
		args = append(args, params.Limit)
		query += fmt.Sprintf(" LIMIT $%d", len(args))
	}
	if params.Offset > 0 {
		args = append(args, params.Offset)
		query += fmt.Sprintf(" OFFSET $%d", len(args))
	}

	invs, err := r.queryInvoices(ctx, query, args...)
	if err != nil {
		return nil, 0, err
	}
	return invs, total, nil
}

func (r *InvoiceRepository) Update(ctx context.Context, inv *invoice.Invoice) error {
	err := r.db.QueryRow(ctx, `
        UPDATE invoices
        SET due_date = $2, status = $3, payment_method = $4, bank_id = $5
        WHERE id = $1
        RETURNING updated_at`,
		inv.ID, inv.DueDate, inv.Status, inv.PaymentMethod, inv.BankID,
	).Scan(&inv.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return invoice.ErrNotFound
		}
		r.logger.Error("Failed to update invoice", zap.String("id", inv.ID.String()), zap.Error(err))
		return fmt.Errorf("database error on update invoice: %w", err)
	}
	return nil
}

func (r *InvoiceRepository) ListUnpaidDueBefore(ctx context.Context, before time.Time) ([]*invoice.Invoice, error) {
	query := `SELECT` + invoiceColumns + ` FROM invoices WHERE status = $1 AND due_date < $2 ORDER BY due_date, id`
	return r.queryInvoices(ctx, query, invoice.StatusUnpaid, before)
}

func (r *InvoiceRepository) queryInvoices(ctx context.Context, query string, args ...any) ([]*invoice.Invoice, error) {
	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		r.logger.Error("Failed to query invoices", zap.Error(err))
		return nil, fmt.Errorf("database error on query invoices: %w", err)
	}
	defer rows.Close()

	out := make([]*invoice.Invoice, 0)
	for rows.Next() {
		inv, err := scanInvoice(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, inv)
	}
	return out, rows.Err()
}

func scanInvoice(row pgx.Row) (*invoice.Invoice, error) {
	var inv invoice.Invoice
	err := row.Scan(
		&inv.ID, &inv.InvoiceNumber, &inv.CompanyID, &inv.IssueDate, &inv.DueDate, &inv.TotalCents,
		&inv.Status, &inv.PaymentMethod, &inv.BankID, &inv.CreatedAt, &inv.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, invoice.ErrNotFound
		}
		return nil, fmt.Errorf("database scan error: %w", err)
	}
	return &inv, nil
}
