package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/makkenzo/license-backoffice/internal/domain/device"
	"github.com/makkenzo/license-backoffice/internal/domain/invoice"
	"github.com/makkenzo/license-backoffice/internal/domain/license"
	"github.com/makkenzo/license-backoffice/internal/domain/product"
	"github.com/makkenzo/license-backoffice/internal/ierr"
	"github.com/makkenzo/license-backoffice/internal/metrics"
	"github.com/makkenzo/license-backoffice/internal/util"
	"go.uber.org/zap"
)

// ActivationService implements the client protocol: binding a machine to a
// license key and the periodic heartbeat that follows.
type ActivationService struct {
	licenses  license.Repository
	products  product.Repository
	invoices  invoice.Repository
	catalog   *PlanCatalog
	registry  *DeviceRegistry
	lifecycle *LicenseService
	logger    *zap.Logger
}

func NewActivationService(
	licenses license.Repository,
	products product.Repository,
	invoices invoice.Repository,
	catalog *PlanCatalog,
	registry *DeviceRegistry,
	lifecycle *LicenseService,
	logger *zap.Logger,
) *ActivationService {
	return &ActivationService{
		licenses:  licenses,
		products:  products,
		invoices:  invoices,
		catalog:   catalog,
		registry:  registry,
		lifecycle: lifecycle,
		logger:    logger.Named("ActivationService"),
	}
}

type ActivateInput struct {
	LicenseKey  string
	ProductName string
	ComputerID  string
	Hardware    device.HardwareInfo
	// ScopeProductID restricts the call to one product; uuid.Nil allows any.
	ScopeProductID uuid.UUID
}

type ActivationResult struct {
	License *license.License
	Device  *device.Device
	Outcome device.AdmitOutcome
}

func (s *ActivationService) Activate(ctx context.Context, in ActivateInput, now time.Time) (*ActivationResult, error) {
	res, err := s.activate(ctx, in, now)
	metrics.ActivationsTotal.WithLabelValues(activationOutcome(res, err)).Inc()
	return res, err
}

func (s *ActivationService) activate(ctx context.Context, in ActivateInput, now time.Time) (*ActivationResult, error) {
	if strings.TrimSpace(in.LicenseKey) == "" || strings.TrimSpace(in.ProductName) == "" || strings.TrimSpace(in.ComputerID) == "" {
		return nil, fmt.Errorf("%w: licenseKey, productName and device.computerId are required", ierr.ErrValidation)
	}

	lic, err := s.resolveLicense(ctx, in.LicenseKey, in.ScopeProductID, ierr.ErrInvalidLicenseKey)
	if err != nil {
		return nil, err
	}

	p, err := s.products.FindByID(ctx, lic.ProductID)
	if err != nil {
		if errors.Is(err, product.ErrNotFound) {
			return nil, ierr.ErrInvalidLicenseKey
		}
		return nil, fmt.Errorf("failed to load product: %w", err)
	}
	if !strings.EqualFold(strings.TrimSpace(p.Name), strings.TrimSpace(in.ProductName)) {
		s.logger.Info("Activation for wrong product",
			zap.String("license_id", lic.ID.String()),
			zap.String("product_name", in.ProductName),
		)
		return nil, ierr.ErrInvalidLicenseKey
	}

	if license.EffectiveStatus(lic.Status, lic.ExpiresAt, now) == license.StatusExpired {
		if err := s.lifecycle.MarkExpired(ctx, lic, "activation"); err != nil {
			return nil, err
		}
		return nil, ierr.ErrExpiredLicense
	}

	limit, err := s.catalog.DeviceLimit(ctx, lic.PlanID)
	if err != nil {
		return nil, err
	}

	admit, err := s.registry.AdmitDevice(ctx, lic.ID, limit, in.ComputerID, in.Hardware, now)
	if err != nil {
		return nil, err
	}

	switch admit.Outcome {
	case device.OutcomeLimitReached:
		s.logger.Info("Device limit reached",
			zap.String("license_id", lic.ID.String()),
			zap.Int("limit", limit),
		)
		return &ActivationResult{License: lic, Outcome: admit.Outcome}, ierr.ErrDeviceLimitReached
	case device.OutcomeAdmitted:
		allowed, err := s.paymentAllowsActivation(ctx, lic)
		if err != nil {
			return nil, err
		}
		if allowed {
			if err := s.lifecycle.Activate(ctx, lic); err != nil {
				return nil, err
			}
		} else {
			s.logger.Info("Device bound to license with unpaid invoice, status unchanged",
				zap.String("license_id", lic.ID.String()),
				zap.String("status", string(lic.Status)),
			)
		}
	}

	s.logger.Info("Activation processed",
		zap.String("license_id", lic.ID.String()),
		zap.String("device_id", admit.Device.ID.String()),
		zap.Stringer("outcome", admit.Outcome),
	)
	return &ActivationResult{License: lic, Device: admit.Device, Outcome: admit.Outcome}, nil
}

// paymentAllowsActivation reports whether a first activation may flip the
// license to active: only licenses without an invoice or with a paid one.
func (s *ActivationService) paymentAllowsActivation(ctx context.Context, lic *license.License) (bool, error) {
	if !lic.HasInvoice() {
		return true, nil
	}
	inv, err := s.invoices.FindByID(ctx, lic.InvoiceID.UUID)
	if err != nil {
		if errors.Is(err, invoice.ErrNotFound) {
			return true, nil
		}
		return false, fmt.Errorf("failed to load invoice: %w", err)
	}
	return inv.IsPaid(), nil
}

type HeartbeatInput struct {
	LicenseKey     string
	ComputerID     string
	ScopeProductID uuid.UUID
}

type HeartbeatResult struct {
	Status license.LicenseStatus
	Device *device.Device
}

func (s *ActivationService) Heartbeat(ctx context.Context, in HeartbeatInput, now time.Time) (*HeartbeatResult, error) {
	res, err := s.heartbeat(ctx, in, now)
	outcome := "ok"
	switch {
	case errors.Is(err, ierr.ErrLicenseNotFound):
		outcome = "license_not_found"
	case errors.Is(err, ierr.ErrDeviceNotFound):
		outcome = "device_not_found"
	case err != nil:
		outcome = "error"
	}
	metrics.HeartbeatsTotal.WithLabelValues(outcome).Inc()
	return res, err
}

func (s *ActivationService) heartbeat(ctx context.Context, in HeartbeatInput, now time.Time) (*HeartbeatResult, error) {
	if strings.TrimSpace(in.LicenseKey) == "" || strings.TrimSpace(in.ComputerID) == "" {
		return nil, fmt.Errorf("%w: licenseKey and computerId are required", ierr.ErrValidation)
	}

	lic, err := s.resolveLicense(ctx, in.LicenseKey, in.ScopeProductID, ierr.ErrLicenseNotFound)
	if err != nil {
		return nil, err
	}

	d, err := s.registry.Heartbeat(ctx, lic.ID, in.ComputerID, now)
	if err != nil {
		return nil, err
	}

	if license.EffectiveStatus(lic.Status, lic.ExpiresAt, now) == license.StatusExpired {
		if err := s.lifecycle.MarkExpired(ctx, lic, "heartbeat"); err != nil {
			return nil, err
		}
	}
	return &HeartbeatResult{Status: lic.Status, Device: d}, nil
}

// resolveLicense loads a license by key, answering notFound for unknown keys
// and for keys outside the caller's product scope.
func (s *ActivationService) resolveLicense(ctx context.Context, key string, scope uuid.UUID, notFound error) (*license.License, error) {
	lic, err := s.licenses.FindByKey(ctx, util.NormalizeLicenseKey(key))
	if err != nil {
		if errors.Is(err, license.ErrNotFound) {
			return nil, notFound
		}
		return nil, fmt.Errorf("failed to look up license: %w", err)
	}
	if scope != uuid.Nil && lic.ProductID != scope {
		s.logger.Info("License outside API key product scope",
			zap.String("license_id", lic.ID.String()),
			zap.String("scope_product_id", scope.String()),
		)
		return nil, notFound
	}
	return lic, nil
}

func activationOutcome(res *ActivationResult, err error) string {
	switch {
	case errors.Is(err, ierr.ErrDeviceLimitReached):
		return device.OutcomeLimitReached.String()
	case errors.Is(err, ierr.ErrExpiredLicense):
		return "expired"
	case errors.Is(err, ierr.ErrInvalidLicenseKey):
		return "invalid_key"
	case errors.Is(err, ierr.ErrValidation):
		return "invalid_input"
	case err != nil:
		return "error"
	case res != nil:
		return res.Outcome.String()
	}
	return "unknown"
}
