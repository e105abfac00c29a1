package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/makkenzo/license-backoffice/internal/domain/apikey"
	"go.uber.org/zap"
)

const apiKeyColumns = `id, key_hash, prefix, description, product_id, is_enabled, created_at, last_used_at`

type APIKeyRepository struct {
	db     *pgxpool.Pool
	logger *zap.Logger
}

func NewAPIKeyRepository(db *pgxpool.Pool, logger *zap.Logger) *APIKeyRepository {
	return &APIKeyRepository{
		db:     db,
		logger: logger.Named("APIKeyRepository"),
	}
}

var _ apikey.Repository = (*APIKeyRepository)(nil)

func (r *APIKeyRepository) FindByPrefix(ctx context.Context, prefix string) (*apikey.APIKey, error) {
	row := r.db.QueryRow(ctx, `SELECT `+apiKeyColumns+` FROM api_keys WHERE prefix = $1 AND is_enabled = TRUE`, prefix)
	key, err := scanAPIKey(row)
	if errors.Is(err, apikey.ErrAPIKeyNotFound) {
		r.logger.Debug("API key not found or disabled by prefix", zap.String("prefix", prefix))
	}
	return key, err
}

func (r *APIKeyRepository) Create(ctx context.Context, key *apikey.APIKey) (uuid.UUID, error) {
	productID := uuid.NullUUID{UUID: key.ProductID, Valid: key.ProductScoped()}

	var insertedID uuid.UUID
	err := r.db.QueryRow(ctx, `
        INSERT INTO api_keys (key_hash, prefix, description, product_id, is_enabled)
        VALUES ($1, $2, $3, $4, $5)
        RETURNING id, created_at`,
		key.KeyHash, key.Prefix, key.Description, productID, key.IsEnabled,
	).Scan(&insertedID, &key.CreatedAt)
	if err != nil {
		if constraint, ok := uniqueViolationOn(err); ok {
			r.logger.Warn("Failed to create API key due to unique constraint violation",
				zap.String("constraint", constraint),
				zap.String("prefix", key.Prefix),
			)
			return uuid.Nil, fmt.Errorf("api key constraint violation (%s)", constraint)
		}
		r.logger.Error("Failed to create api key in database", zap.Error(err))
		return uuid.Nil, fmt.Errorf("db error creating api key: %w", err)
	}

	key.ID = insertedID
	r.logger.Info("API key created", zap.String("id", insertedID.String()), zap.String("prefix", key.Prefix))
	return insertedID, nil
}

func (r *APIKeyRepository) List(ctx context.Context) ([]*apikey.APIKey, error) {
	rows, err := r.db.Query(ctx, `SELECT `+apiKeyColumns+` FROM api_keys ORDER BY created_at DESC`)
	if err != nil {
		return nil, fmt.Errorf("db error listing api keys: %w", err)
	}
	defer rows.Close()

	out := make([]*apikey.APIKey, 0)
	for rows.Next() {
		k, err := scanAPIKey(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, k)
	}
	return out, rows.Err()
}

func (r *APIKeyRepository) Disable(ctx context.Context, id uuid.UUID) error {
	tag, err := r.db.Exec(ctx, `UPDATE api_keys SET is_enabled = FALSE WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("db error disabling api key: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return apikey.ErrAPIKeyNotFound
	}
	return nil
}

func (r *APIKeyRepository) UpdateLastUsed(ctx context.Context, id uuid.UUID, lastUsed time.Time) error {
	tag, err := r.db.Exec(ctx, `UPDATE api_keys SET last_used_at = $1 WHERE id = $2`, lastUsed, id)
	if err != nil {
		r.logger.Error("Failed to update api key last_used_at", zap.String("id", id.String()), zap.Error(err))
		return fmt.Errorf("db error updating last used time: %w", err)
	}
	if tag.RowsAffected() == 0 {
		r.logger.Warn("API key not found when updating last_used_at", zap.String("id", id.String()))
	}
	return nil
}

func scanAPIKey(row pgx.Row) (*apikey.APIKey, error) {
	var (
		key       apikey.APIKey
		productID uuid.NullUUID
		lastUsed  *time.Time
	)
	err := row.Scan(&key.ID, &key.KeyHash, &key.Prefix, &key.Description, &productID, &key.IsEnabled, &key.CreatedAt, &lastUsed)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apikey.ErrAPIKeyNotFound
		}
		return nil, fmt.Errorf("db error scanning api key: %w", err)
	}
	if productID.Valid {
		key.ProductID = productID.UUID
	}
	key.LastUsedAt = lastUsed
	return &key, nil
}
