package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/makkenzo/license-backoffice/internal/domain/activity"
	"github.com/makkenzo/license-backoffice/internal/domain/device"
	"github.com/makkenzo/license-backoffice/internal/domain/license"
	"github.com/makkenzo/license-backoffice/internal/ierr"
	"go.uber.org/zap"
)

type DeviceRegistry struct {
	devices  device.Repository
	licenses license.Repository
	catalog  *PlanCatalog
	activity ActivityRecorder
	logger   *zap.Logger
}

func NewDeviceRegistry(
	devices device.Repository,
	licenses license.Repository,
	catalog *PlanCatalog,
	activity ActivityRecorder,
	logger *zap.Logger,
) *DeviceRegistry {
	return &DeviceRegistry{
		devices:  devices,
		licenses: licenses,
		catalog:  catalog,
		activity: recorderOrNop(activity),
		logger:   logger.Named("DeviceRegistry"),
	}
}

// AdmitDevice binds computerID to the license if a slot is free. A device
// that is already bound only has its LastSeenAt refreshed. Nothing is written
// when the limit is reached.
func (r *DeviceRegistry) AdmitDevice(
	ctx context.Context,
	licenseID uuid.UUID,
	deviceLimit int,
	computerID string,
	hw device.HardwareInfo,
	now time.Time,
) (device.AdmitResult, error) {
	computerID = strings.TrimSpace(computerID)
	if computerID == "" {
		return device.AdmitResult{}, fmt.Errorf("%w: computerId is required", ierr.ErrValidation)
	}

	candidate := &device.Device{
		ID:          uuid.New(),
		LicenseID:   licenseID,
		ComputerID:  computerID,
		IsActive:    true,
		ActivatedAt: now,
		LastSeenAt:  now,
	}
	hw.Apply(candidate)

	res, err := r.devices.Admit(ctx, candidate, deviceLimit)
	if err != nil {
		r.logger.Error("Device admission failed",
			zap.String("license_id", licenseID.String()),
			zap.String("computer_id", computerID),
			zap.Error(err),
		)
		return device.AdmitResult{}, fmt.Errorf("repository error admitting device: %w", err)
	}

	r.logger.Debug("Device admission evaluated",
		zap.String("license_id", licenseID.String()),
		zap.String("computer_id", computerID),
		zap.Int("limit", deviceLimit),
		zap.Stringer("outcome", res.Outcome),
	)

	if res.Outcome == device.OutcomeAdmitted {
		r.activity.Record(ctx, ActivityEntry{
			Action:     activity.ActionDeviceAdded,
			EntityType: "device",
			EntityID:   res.Device.ID.String(),
			Details: map[string]any{
				"license_id":  licenseID,
				"computer_id": computerID,
			},
		})
	}
	return res, nil
}

// Heartbeat refreshes LastSeenAt of a bound device. It never binds a new one.
func (r *DeviceRegistry) Heartbeat(ctx context.Context, licenseID uuid.UUID, computerID string, now time.Time) (*device.Device, error) {
	d, err := r.devices.FindByLicenseAndComputer(ctx, licenseID, strings.TrimSpace(computerID))
	if err != nil {
		if errors.Is(err, device.ErrNotFound) {
			return nil, ierr.ErrDeviceNotFound
		}
		return nil, fmt.Errorf("repository error finding device: %w", err)
	}

	if err := r.devices.TouchLastSeen(ctx, d.ID, now); err != nil {
		if errors.Is(err, device.ErrNotFound) {
			return nil, ierr.ErrDeviceNotFound
		}
		return nil, fmt.Errorf("repository error touching device: %w", err)
	}
	d.LastSeenAt = now
	return d, nil
}

// Deactivate unbinds the device, freeing its slot.
func (r *DeviceRegistry) Deactivate(ctx context.Context, deviceID uuid.UUID) error {
	d, err := r.devices.FindByID(ctx, deviceID)
	if err != nil {
		return err
	}
	if err := r.devices.Delete(ctx, deviceID); err != nil {
		r.logger.Error("Failed to delete device", zap.String("device_id", deviceID.String()), zap.Error(err))
		return err
	}

	r.logger.Info("Device deactivated",
		zap.String("device_id", deviceID.String()),
		zap.String("license_id", d.LicenseID.String()),
	)
	r.activity.Record(ctx, ActivityEntry{
		Action:     activity.ActionDeviceDeactivated,
		EntityType: "device",
		EntityID:   deviceID.String(),
		Details: map[string]any{
			"license_id":  d.LicenseID,
			"computer_id": d.ComputerID,
		},
	})
	return nil
}

func (r *DeviceRegistry) ListDevices(ctx context.Context, licenseID uuid.UUID) ([]*device.Device, error) {
	if _, err := r.licenses.FindByID(ctx, licenseID); err != nil {
		return nil, err
	}
	return r.devices.ListByLicense(ctx, licenseID)
}

// AddDevice is the admin path for binding a device by hand. The plan's device
// limit still applies and an already bound computerID is a conflict.
func (r *DeviceRegistry) AddDevice(
	ctx context.Context,
	licenseID uuid.UUID,
	computerID string,
	hw device.HardwareInfo,
	now time.Time,
) (*device.Device, error) {
	lic, err := r.licenses.FindByID(ctx, licenseID)
	if err != nil {
		return nil, err
	}
	if license.EffectiveStatus(lic.Status, lic.ExpiresAt, now) == license.StatusExpired {
		return nil, ierr.ErrExpiredLicense
	}

	// Checked before Admit, which would refresh last_seen_at of a known device.
	computerID = strings.TrimSpace(computerID)
	if computerID != "" {
		_, err := r.devices.FindByLicenseAndComputer(ctx, lic.ID, computerID)
		switch {
		case err == nil:
			return nil, fmt.Errorf("%w: computer %q is already bound to this license", ierr.ErrConflict, computerID)
		case !errors.Is(err, device.ErrNotFound):
			return nil, err
		}
	}

	limit, err := r.catalog.DeviceLimit(ctx, lic.PlanID)
	if err != nil {
		return nil, err
	}

	res, err := r.AdmitDevice(ctx, lic.ID, limit, computerID, hw, now)
	if err != nil {
		return nil, err
	}
	switch res.Outcome {
	case device.OutcomeLimitReached:
		return nil, ierr.ErrDeviceLimitReached
	case device.OutcomeAlreadyKnown:
		// Bound concurrently between the lookup and Admit.
		return nil, fmt.Errorf("%w: computer %q is already bound to this license", ierr.ErrConflict, res.Device.ComputerID)
	}
	return res.Device, nil
}

func (r *DeviceRegistry) UpdateHardware(ctx context.Context, deviceID uuid.UUID, hw device.HardwareInfo) (*device.Device, error) {
	d, err := r.devices.FindByID(ctx, deviceID)
	if err != nil {
		return nil, err
	}
	hw.Apply(d)
	if err := r.devices.UpdateHardware(ctx, d); err != nil {
		r.logger.Error("Failed to update device hardware", zap.String("device_id", deviceID.String()), zap.Error(err))
		return nil, err
	}

	r.activity.Record(ctx, ActivityEntry{
		Action:     activity.ActionDeviceUpdated,
		EntityType: "device",
		EntityID:   deviceID.String(),
	})
	return d, nil
}
