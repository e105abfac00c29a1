package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/makkenzo/license-backoffice/internal/domain/plan"
	"github.com/makkenzo/license-backoffice/internal/domain/product"
	"go.uber.org/zap"
)

type ProductRepository struct {
	db     *pgxpool.Pool
	logger *zap.Logger
}

func NewProductRepository(db *pgxpool.Pool, logger *zap.Logger) *ProductRepository {
	return &ProductRepository{db: db, logger: logger.Named("ProductRepository")}
}

var _ product.Repository = (*ProductRepository)(nil)

func (r *ProductRepository) Create(ctx context.Context, p *product.Product) error {
	if p.ID == uuid.Nil {
		p.ID = uuid.New()
	}
	err := r.db.QueryRow(ctx,
		`INSERT INTO products (id, name, description) VALUES ($1, $2, $3) RETURNING created_at`,
		p.ID, p.Name, p.Description,
	).Scan(&p.CreatedAt)
	if err != nil {
		if _, ok := uniqueViolationOn(err); ok {
			return product.ErrDuplicateName
		}
		r.logger.Error("Failed to create product", zap.String("name", p.Name), zap.Error(err))
		return fmt.Errorf("database error on create product: %w", err)
	}
	return nil
}

func (r *ProductRepository) FindByID(ctx context.Context, id uuid.UUID) (*product.Product, error) {
	return scanProduct(r.db.QueryRow(ctx, `SELECT id, name, description, created_at FROM products WHERE id = $1`, id))
}

func (r *ProductRepository) FindByName(ctx context.Context, name string) (*product.Product, error) {
	return scanProduct(r.db.QueryRow(ctx,
		`SELECT id, name, description, created_at FROM products WHERE LOWER(name) = LOWER($1)`, name))
}

func (r *ProductRepository) List(ctx context.Context) ([]*product.Product, error) {
	rows, err := r.db.Query(ctx, `SELECT id, name, description, created_at FROM products ORDER BY name`)
	if err != nil {
		return nil, fmt.Errorf("database error on list products: %w", err)
	}
	defer rows.Close()

	out := make([]*product.Product, 0)
	for rows.Next() {
		p, err := scanProduct(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

func scanProduct(row pgx.Row) (*product.Product, error) {
	var p product.Product
	if err := row.Scan(&p.ID, &p.Name, &p.Description, &p.CreatedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, product.ErrNotFound
		}
		return nil, fmt.Errorf("database scan error: %w", err)
	}
	return &p, nil
}

type PlanRepository struct {
	db     *pgxpool.Pool
	logger *zap.Logger
}

func NewPlanRepository(db *pgxpool.Pool, logger *zap.Logger) *PlanRepository {
	return &PlanRepository{db: db, logger: logger.Named("PlanRepository")}
}

var _ plan.Repository = (*PlanRepository)(nil)

const planColumns = `id, product_id, name, price_cents, device_limit, duration_days, created_at`

func (r *PlanRepository) Create(ctx context.Context, p *plan.Plan) error {
	if p.ID == uuid.Nil {
		p.ID = uuid.New()
	}
	err := r.db.QueryRow(ctx, `
        INSERT INTO plans (id, product_id, name, price_cents, device_limit, duration_days)
        VALUES ($1, $2, $3, $4, $5, $6)
        RETURNING created_at`,
		p.ID, p.ProductID, p.Name, p.PriceCents, p.DeviceLimit, p.DurationDays,
	).Scan(&p.CreatedAt)
	if err != nil {
		r.logger.Error("Failed to create plan", zap.String("name", p.Name), zap.Error(err))
		return fmt.Errorf("database error on create plan: %w", err)
	}
	return nil
}

func (r *PlanRepository) FindByID(ctx context.Context, id uuid.UUID) (*plan.Plan, error) {
	return scanPlan(r.db.QueryRow(ctx, `SELECT `+planColumns+` FROM plans WHERE id = $1`, id))
}

func (r *PlanRepository) List(ctx context.Context, productID *uuid.UUID) ([]*plan.Plan, error) {
	query := `SELECT ` + planColumns + ` FROM plans`
	var args []any
	if productID != nil {
		query += ` WHERE product_id = $1`
		args = append(args, *productID)
	}
	query += ` ORDER BY created_at`

	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("database error on list plans: %w", err)
	}
	defer rows.Close()

	out := make([]*plan.Plan, 0)
	for rows.Next() {
		p, err := scanPlan(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

func scanPlan(row pgx.Row) (*plan.Plan, error) {
	var p plan.Plan
	err := row.Scan(&p.ID, &p.ProductID, &p.Name, &p.PriceCents, &p.DeviceLimit, &p.DurationDays, &p.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, plan.ErrNotFound
		}
		return nil, fmt.Errorf("database scan error: %w", err)
	}
	return &p, nil
}
