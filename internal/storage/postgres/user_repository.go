package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/makkenzo/license-backoffice/internal/domain/user"
	"github.com/makkenzo/license-backoffice/internal/ierr"
	"go.uber.org/zap"
)

const userColumns = `id, company_id, username, email, password_hash, role, created_at`

type UserRepository struct {
	db     *pgxpool.Pool
	logger *zap.Logger
}

func NewUserRepository(db *pgxpool.Pool, logger *zap.Logger) *UserRepository {
	return &UserRepository{db: db, logger: logger.Named("UserRepository")}
}

var _ user.Repository = (*UserRepository)(nil)

func (r *UserRepository) Create(ctx context.Context, u *user.User) error {
	if u.ID == uuid.Nil {
		u.ID = uuid.New()
	}
	err := r.db.QueryRow(ctx, `
        INSERT INTO users (id, company_id, username, email, password_hash, role)
        VALUES ($1, $2, $3, $4, $5, $6)
        RETURNING created_at`,
		u.ID, u.CompanyID, u.Username, u.Email, u.PasswordHash, u.Role,
	).Scan(&u.CreatedAt)
	if err != nil {
		if constraint, ok := uniqueViolationOn(err); ok {
			r.logger.Warn("Duplicate username", zap.String("username", u.Username), zap.String("constraint", constraint))
			return fmt.Errorf("%w: username %q already taken", ierr.ErrConflict, u.Username)
		}
		r.logger.Error("Failed to create user", zap.Error(err))
		return fmt.Errorf("database error on create user: %w", err)
	}
	return nil
}

func (r *UserRepository) FindByID(ctx context.Context, id uuid.UUID) (*user.User, error) {
	return scanUser(r.db.QueryRow(ctx, `SELECT `+userColumns+` FROM users WHERE id = $1`, id))
}

func (r *UserRepository) FindByUsername(ctx context.Context, username string) (*user.User, error) {
	return scanUser(r.db.QueryRow(ctx, `SELECT `+userColumns+` FROM users WHERE LOWER(username) = LOWER($1)`, username))
}

func (r *UserRepository) ListByCompany(ctx context.Context, companyID uuid.UUID) ([]*user.User, error) {
	rows, err := r.db.Query(ctx,
		`SELECT `+userColumns+` FROM users WHERE company_id = $1 ORDER BY created_at, username`, companyID)
	if err != nil {
		r.logger.Error("Failed to list company users", zap.String("company_id", companyID.String()), zap.Error(err))
		return nil, fmt.Errorf("database error on list users: %w", err)
	}
	defer rows.Close()

	out := make([]*user.User, 0)
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, u)
	}
	return out, rows.Err()
}

func scanUser(row pgx.Row) (*user.User, error) {
	var u user.User
	err := row.Scan(&u.ID, &u.CompanyID, &u.Username, &u.Email, &u.PasswordHash, &u.Role, &u.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ierr.ErrUserNotFound
		}
		return nil, fmt.Errorf("database scan error: %w", err)
	}
	return &u, nil
}
