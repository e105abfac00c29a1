package postgres

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/makkenzo/license-backoffice/internal/domain/license"
	"go.uber.org/zap"
)

const licenseColumns = `
            id, license_key, product_id, plan_id, user_id, invoice_id,
            status, expires_at, created_at, updated_at`

type LicenseRepository struct {
	db     *pgxpool.Pool
	logger *zap.Logger
}

func NewLicenseRepository(db *pgxpool.Pool, logger *zap.Logger) *LicenseRepository {
	return &LicenseRepository{
		db:     db,
		logger: logger.Named("LicenseRepository"),
	}
}

var _ license.Repository = (*LicenseRepository)(nil)

func (r *LicenseRepository) CreateBatch(ctx context.Context, lics []*license.License) error {
	if len(lics) == 0 {
		return nil
	}

	query := `
        INSERT INTO licenses (
            id, license_key, product_id, plan_id, user_id, invoice_id, status, expires_at
        ) VALUES (
            $1, $2, $3, $4, $5, $6, $7, $8
        ) RETURNING created_at, updated_at
    `

	err := pgx.BeginFunc(ctx, r.db, func(tx pgx.Tx) error {
		for _, lic := range lics {
			if lic.ID == uuid.Nil {
				lic.ID = uuid.New()
			}
			err := tx.QueryRow(ctx, query,
				lic.ID,
				lic.LicenseKey,
				lic.ProductID,
				lic.PlanID,
				lic.UserID,
				lic.InvoiceID,
				lic.Status,
				lic.ExpiresAt,
			).Scan(&lic.CreatedAt, &lic.UpdatedAt)
			if err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		if constraint, ok := uniqueViolationOn(err); ok {
			r.logger.Warn("Attempted to create license with duplicate key", zap.String("constraint", constraint))
			return license.ErrDuplicateKey
		}
		r.logger.Error("Failed to create license batch in database", zap.Int("size", len(lics)), zap.Error(err))
		return fmt.Errorf("database error on create licenses: %w", err)
	}

	r.logger.Info("Licenses created successfully", zap.Int("count", len(lics)))
	return nil
}

func (r *LicenseRepository) FindByID(ctx context.Context, id uuid.UUID) (*license.License, error) {
	query := `SELECT` + licenseColumns + ` FROM licenses WHERE id = $1`
	return r.scanLicense(r.db.QueryRow(ctx, query, id))
}

func (r *LicenseRepository) FindByKey(ctx context.Context, key string) (*license.License, error) {
	query := `SELECT` + licenseColumns + ` FROM licenses WHERE license_key = $1`
	return r.scanLicense(r.db.QueryRow(ctx, query, key))
}

func (r *LicenseRepository) List(ctx context.Context, params license.ListParams) ([]*license.License, int64, error) {
	where, args := licenseFilter(params)

	var total int64
	countQuery := `SELECT COUNT(*) FROM licenses` + where
	if err := r.db.QueryRow(ctx, countQuery, args...).Scan(&total); err != nil {
		r.logger.Error("Failed to count licenses", zap.Error(err))
		return nil, 0, fmt.Errorf("database error on count licenses: %w", err)
	}

	sortBy := "created_at"
	if license.SortColumns[params.SortBy] {
		sortBy = params.SortBy
	}
	sortOrder := "DESC"
	if strings.EqualFold(params.SortOrder, "ASC") {
		sortOrder = "ASC"
	}

	query := `SELECT` + licenseColumns + ` FROM licenses` + where +
		fmt.Sprintf(" ORDER BY %s %s, id", sortBy, sortOrder)
	if params.Limit > 0 {
		args = append(args, params.Limit)
		query += fmt.Sprintf(" LIMIT $%d", len(args))
	}
	if params.Offset > 0 {
		args = append(args, params.Offset)
		query += fmt.Sprintf(" OFFSET $%d", len(args))
	}

	lics, err := r.queryLicenses(ctx, query, args...)
	if err != nil {
		return nil, 0, err
	}
	return lics, total, nil
}

func (r *LicenseRepository) ListByInvoice(ctx context.Context, invoiceID uuid.UUID) ([]*license.License, error) {
	query := `SELECT` + licenseColumns + ` FROM licenses WHERE invoice_id = $1 ORDER BY created_at, id`
	return r.queryLicenses(ctx, query, invoiceID)
}

func (r *LicenseRepository) Update(ctx context.Context, lic *license.License) error {
	query := `
        UPDATE licenses SET
            license_key = $1,
            product_id = $2,
            plan_id = $3,
            user_id = $4,
            invoice_id = $5,
            status = $6,
            expires_at = $7
        WHERE id = $8 AND (status <> 'expired' OR $6 = 'expired')
        RETURNING updated_at
    `

	err := r.db.QueryRow(ctx, query,
		lic.LicenseKey,
		lic.ProductID,
		lic.PlanID,
		lic.UserID,
		lic.InvoiceID,
		lic.Status,
		lic.ExpiresAt,
		lic.ID,
	).Scan(&lic.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			r.logger.Warn("Attempted to update license, but no rows were affected", zap.String("id", lic.ID.String()))
			return r.missingOrExpired(ctx, lic.ID)
		}
		if _, ok := uniqueViolationOn(err); ok {
			return license.ErrDuplicateKey
		}
		r.logger.Error("Failed to update license in database", zap.String("id", lic.ID.String()), zap.Error(err))
		return fmt.Errorf("%w: %v", license.ErrUpdateFailed, err)
	}

	r.logger.Info("License updated successfully", zap.String("id", lic.ID.String()))
	return nil
}

func (r *LicenseRepository) UpdateStatus(ctx context.Context, id uuid.UUID, status license.LicenseStatus) error {
	cmdTag, err := r.db.Exec(ctx, `
        UPDATE licenses SET status = $1
        WHERE id = $2 AND (status <> 'expired' OR $1 = 'expired')
    `, status, id)
	if err != nil {
		r.logger.Error("Failed to update license status", zap.String("id", id.String()), zap.Error(err))
		return fmt.Errorf("%w: %v", license.ErrUpdateFailed, err)
	}
	if cmdTag.RowsAffected() == 0 {
		return r.missingOrExpired(ctx, id)
	}
	return nil
}

// missingOrExpired explains a guarded write that matched no row.
func (r *LicenseRepository) missingOrExpired(ctx context.Context, id uuid.UUID) error {
	var exists bool
	if err := r.db.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM licenses WHERE id = $1)`, id).Scan(&exists); err != nil {
		return fmt.Errorf("%w: %v", license.ErrUpdateFailed, err)
	}
	if !exists {
		return license.ErrNotFound
	}
	return license.ErrAlreadyExpired
}

func (r *LicenseRepository) Delete(ctx context.Context, id uuid.UUID) error {
	cmdTag, err := r.db.Exec(ctx, `DELETE FROM licenses WHERE id = $1`, id)
	if err != nil {
		r.logger.Error("Failed to delete license", zap.String("id", id.String()), zap.Error(err))
		return fmt.Errorf("database error on delete license: %w", err)
	}
	if cmdTag.RowsAffected() == 0 {
		return license.ErrNotFound
	}
	return nil
}

func (r *LicenseRepository) CountByStatus(ctx context.Context) (map[license.LicenseStatus]int64, error) {
	rows, err := r.db.Query(ctx, `SELECT status, COUNT(*) FROM licenses GROUP BY status`)
	if err != nil {
		r.logger.Error("Failed to count licenses by status", zap.Error(err))
		return nil, fmt.Errorf("database error on count by status: %w", err)
	}
	defer rows.Close()

	counts := make(map[license.LicenseStatus]int64)
	for rows.Next() {
		var status license.LicenseStatus
		var n int64
		if err := rows.Scan(&status, &n); err != nil {
			return nil, fmt.Errorf("database scan error on count by status: %w", err)
		}
		counts[status] = n
	}
	return counts, rows.Err()
}

func licenseFilter(p license.ListParams) (string, []any) {
	var conds []string
	var args []any
	add := func(cond string, v any) {
		args = append(args, v)
		conds = append(conds, fmt.Sprintf(cond, len(args)))
	}

	if p.Status != nil {
		add("status = $%d", *p.Status)
	}
	if p.ProductID != nil {
		add("product_id = $%d", *p.ProductID)
	}
	if p.PlanID != nil {
		add("plan_id = $%d", *p.PlanID)
	}
	if p.UserID != nil {
		add("user_id = $%d", *p.UserID)
	}
	if p.InvoiceID != nil {
		add("invoice_id = $%d", *p.InvoiceID)
	}
	if p.ExpiringBefore != nil {
		add("expires_at < $%d", *p.ExpiringBefore)
	}

	if len(conds) == 0 {
		return "", nil
	}
	return " WHERE " + strings.Join(conds, " AND "), args
}

func (r *LicenseRepository) queryLicenses(ctx context.Context, query string, args ...any) ([]*license.License, error) {
	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		r.logger.Error("Failed to query licenses", zap.Error(err))
		return nil, fmt.Errorf("database error on list licenses: %w", err)
	}
	defer rows.Close()

	licenses := make([]*license.License, 0)
	for rows.Next() {
		lic, err := r.scanLicense(rows)
		if err != nil {
			return nil, err
		}
		licenses = append(licenses, lic)
	}

	if err = rows.Err(); err != nil {
		r.logger.Error("Error iterating license rows", zap.Error(err))
		return nil, fmt.Errorf("database iteration error on list licenses: %w", err)
	}
	return licenses, nil
}

func (r *LicenseRepository) scanLicense(row pgx.Row) (*license.License, error) {
	var lic license.License
	err := row.Scan(
		&lic.ID,
		&lic.LicenseKey,
		&lic.ProductID,
		&lic.PlanID,
		&lic.UserID,
		&lic.InvoiceID,
		&lic.Status,
		&lic.ExpiresAt,
		&lic.CreatedAt,
		&lic.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, license.ErrNotFound
		}
		r.logger.Error("Failed to scan license row", zap.Error(err))
		return nil, fmt.Errorf("database scan error: %w", err)
	}
	return &lic, nil
}
