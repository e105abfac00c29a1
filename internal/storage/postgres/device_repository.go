package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/makkenzo/license-backoffice/internal/domain/device"
	"github.com/makkenzo/license-backoffice/internal/domain/license"
	"go.uber.org/zap"
)

const deviceColumns = `
            id, license_id, computer_id, name, os, processor, ram,
            is_active, activated_at, last_seen_at`

type DeviceRepository struct {
	db     *pgxpool.Pool
	logger *zap.Logger
}

func NewDeviceRepository(db *pgxpool.Pool, logger *zap.Logger) *DeviceRepository {
	return &DeviceRepository{
		db:     db,
		logger: logger.Named("DeviceRepository"),
	}
}

var _ device.Repository = (*DeviceRepository)(nil)

// Admit serializes admissions per license by locking the license row for the
// duration of the transaction. The (license_id, computer_id) unique constraint
// is the backstop for the known-device path.
func (r *DeviceRepository) Admit(ctx context.Context, candidate *device.Device, limit int) (device.AdmitResult, error) {
	var result device.AdmitResult

	err := pgx.BeginFunc(ctx, r.db, func(tx pgx.Tx) error {
		var locked uuid.UUID
		err := tx.QueryRow(ctx, `SELECT id FROM licenses WHERE id = $1 FOR UPDATE`, candidate.LicenseID).Scan(&locked)
		if err != nil {
			return err
		}

		existing, err := r.scanDevice(tx.QueryRow(ctx,
			`UPDATE devices SET last_seen_at = $3 WHERE license_id = $1 AND computer_id = $2 RETURNING`+deviceColumns,
			candidate.LicenseID, candidate.ComputerID, candidate.LastSeenAt,
		))
		switch {
		case err == nil:
			result = device.AdmitResult{Outcome: device.OutcomeAlreadyKnown, Device: existing}
			return nil
		case !errors.Is(err, device.ErrNotFound):
			return err
		}

		var bound int
		if err := tx.QueryRow(ctx, `SELECT COUNT(*) FROM devices WHERE license_id = $1`, candidate.LicenseID).Scan(&bound); err != nil {
			return err
		}
		if bound >= limit {
			result = device.AdmitResult{Outcome: device.OutcomeLimitReached}
			return nil
		}

		if candidate.ID == uuid.Nil {
			candidate.ID = uuid.New()
		}
		inserted, err := r.scanDevice(tx.QueryRow(ctx, `
            INSERT INTO devices (
                id, license_id, computer_id, name, os, processor, ram,
                is_active, activated_at, last_seen_at
            ) VALUES (
                $1, $2, $3, $4, $5, $6, $7, $8, $9, $10
            ) RETURNING`+deviceColumns,
			candidate.ID,
			candidate.LicenseID,
			candidate.ComputerID,
			candidate.Name,
			candidate.OS,
			candidate.Processor,
			candidate.RAM,
			candidate.IsActive,
			candidate.ActivatedAt,
			candidate.LastSeenAt,
		))
		if err != nil {
			return err
		}
		result = device.AdmitResult{Outcome: device.OutcomeAdmitted, Device: inserted}
		return nil
	})
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return device.AdmitResult{}, fmt.Errorf("%w: %s", license.ErrNotFound, candidate.LicenseID)
		}
		if constraint, ok := uniqueViolationOn(err); ok {
			r.logger.Warn("Device admission hit unique constraint", zap.String("constraint", constraint),
				zap.String("license_id", candidate.LicenseID.String()), zap.String("computer_id", candidate.ComputerID))
			return device.AdmitResult{}, device.ErrAlreadyBound
		}
		r.logger.Error("Failed to admit device", zap.String("license_id", candidate.LicenseID.String()), zap.Error(err))
		return device.AdmitResult{}, fmt.Errorf("database error on admit device: %w", err)
	}

	return result, nil
}

func (r *DeviceRepository) FindByID(ctx context.Context, id uuid.UUID) (*device.Device, error) {
	return r.scanDevice(r.db.QueryRow(ctx, `SELECT`+deviceColumns+` FROM devices WHERE id = $1`, id))
}

func (r *DeviceRepository) FindByLicenseAndComputer(ctx context.Context, licenseID uuid.UUID, computerID string) (*device.Device, error) {
	return r.scanDevice(r.db.QueryRow(ctx,
		`SELECT`+deviceColumns+` FROM devices WHERE license_id = $1 AND computer_id = $2`, licenseID, computerID))
}

func (r *DeviceRepository) ListByLicense(ctx context.Context, licenseID uuid.UUID) ([]*device.Device, error) {
	rows, err := r.db.Query(ctx,
		`SELECT`+deviceColumns+` FROM devices WHERE license_id = $1 ORDER BY activated_at, computer_id`, licenseID)
	if err != nil {
		r.logger.Error("Failed to list devices", zap.String("license_id", licenseID.String()), zap.Error(err))
		return nil, fmt.Errorf("database error on list devices: %w", err)
	}
	defer rows.Close()

	devices := make([]*device.Device, 0)
	for rows.Next() {
		d, err := r.scanDevice(rows)
		if err != nil {
			return nil, err
		}
		devices = append(devices, d)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("database iteration error on list devices: %w", err)
	}
	return devices, nil
}

func (r *DeviceRepository) TouchLastSeen(ctx context.Context, id uuid.UUID, at time.Time) error {
	cmdTag, err := r.db.Exec(ctx, `UPDATE devices SET last_seen_at = $1 WHERE id = $2`, at, id)
	if err != nil {
		r.logger.Error("Failed to update device last_seen_at", zap.String("id", id.String()), zap.Error(err))
		return fmt.Errorf("database error on touch device: %w", err)
	}
	if cmdTag.RowsAffected() == 0 {
		return device.ErrNotFound
	}
	return nil
}

func (r *DeviceRepository) UpdateHardware(ctx context.Context, d *device.Device) error {
	cmdTag, err := r.db.Exec(ctx,
		`UPDATE devices SET name = $1, os = $2, processor = $3, ram = $4 WHERE id = $5`,
		d.Name, d.OS, d.Processor, d.RAM, d.ID)
	if err != nil {
		r.logger.Error("Failed to update device hardware", zap.String("id", d.ID.String()), zap.Error(err))
		return fmt.Errorf("database error on update device: %w", err)
	}
	if cmdTag.RowsAffected() == 0 {
		return device.ErrNotFound
	}
	return nil
}

func (r *DeviceRepository) Delete(ctx context.Context, id uuid.UUID) error {
	cmdTag, err := r.db.Exec(ctx, `DELETE FROM devices WHERE id = $1`, id)
	if err != nil {
		r.logger.Error("Failed to delete device", zap.String("id", id.String()), zap.Error(err))
		return fmt.Errorf("database error on delete device: %w", err)
	}
	if cmdTag.RowsAffected() == 0 {
		return device.ErrNotFound
	}
	return nil
}

func (r *DeviceRepository) DeleteByLicense(ctx context.Context, licenseID uuid.UUID) (int64, error) {
	cmdTag, err := r.db.Exec(ctx, `DELETE FROM devices WHERE license_id = $1`, licenseID)
	if err != nil {
		return 0, fmt.Errorf("database error on delete devices by license: %w", err)
	}
	return cmdTag.RowsAffected(), nil
}

func (r *DeviceRepository) Count(ctx context.Context) (int64, error) {
	var n int64
	if err := r.db.QueryRow(ctx, `SELECT COUNT(*) FROM devices`).Scan(&n); err != nil {
		return 0, fmt.Errorf("database error on count devices: %w", err)
	}
	return n, nil
}

func (r *DeviceRepository) scanDevice(row pgx.Row) (*device.Device, error) {
	var d device.Device
	err := row.Scan(
		&d.ID,
		&d.LicenseID,
		&d.ComputerID,
		&d.Name,
		&d.OS,
		&d.Processor,
		&d.RAM,
		&d.IsActive,
		&d.ActivatedAt,
		&d.LastSeenAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, device.ErrNotFound
		}
		return nil, fmt.Errorf("database scan error: %w", err)
	}
	return &d, nil
}
