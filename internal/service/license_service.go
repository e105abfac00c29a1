package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/makkenzo/license-backoffice/internal/domain/activity"
	"github.com/makkenzo/license-backoffice/internal/domain/device"
	"github.com/makkenzo/license-backoffice/internal/domain/invoice"
	"github.com/makkenzo/license-backoffice/internal/domain/license"
	"github.com/makkenzo/license-backoffice/internal/domain/plan"
	"github.com/makkenzo/license-backoffice/internal/domain/product"
	"github.com/makkenzo/license-backoffice/internal/ierr"
	"github.com/makkenzo/license-backoffice/internal/metrics"
	"github.com/makkenzo/license-backoffice/internal/util"
	"go.uber.org/multierr"
	"go.uber.org/zap"
)

const (
	maxGenerateCount = 1000
	// keyCollisionRetries bounds how often a batch is re-keyed after a unique violation.
	keyCollisionRetries = 3
	expirySweepPageSize = 500
)

type LicenseService struct {
	licenses license.Repository
	devices  device.Repository
	invoices invoice.Repository
	products product.Repository
	catalog  *PlanCatalog
	activity ActivityRecorder
	logger   *zap.Logger
}

func NewLicenseService(
	licenses license.Repository,
	devices device.Repository,
	invoices invoice.Repository,
	products product.Repository,
	catalog *PlanCatalog,
	activity ActivityRecorder,
	logger *zap.Logger,
) *LicenseService {
	return &LicenseService{
		licenses: licenses,
		devices:  devices,
		invoices: invoices,
		products: products,
		catalog:  catalog,
		activity: recorderOrNop(activity),
		logger:   logger.Named("LicenseService"),
	}
}

type GenerateInput struct {
	ProductID uuid.UUID
	PlanID    uuid.UUID
	Count     int
	UserID    *uuid.UUID
	InvoiceID *uuid.UUID
	// InitialStatus applies only without an invoice; defaults to inactive.
	InitialStatus *license.LicenseStatus
}

// Generate issues Count licenses for a plan, anchored at now. With an invoice
// the status follows the invoice's payment state.
func (s *LicenseService) Generate(ctx context.Context, in GenerateInput, now time.Time) ([]*license.License, error) {
	if in.Count < 1 || in.Count > maxGenerateCount {
		return nil, fmt.Errorf("%w: count must be between 1 and %d", ierr.ErrValidation, maxGenerateCount)
	}

	if _, err := s.products.FindByID(ctx, in.ProductID); err != nil {
		return nil, err
	}
	p, err := s.catalog.GetByID(ctx, in.PlanID)
	if err != nil {
		return nil, err
	}
	if p.ProductID != in.ProductID {
		return nil, fmt.Errorf("%w: plan %s does not belong to product %s", ierr.ErrValidation, p.ID, in.ProductID)
	}

	expiresAt := license.ComputeExpiry(now, p.DurationDays)

	var (
		status    license.LicenseStatus
		invoiceID uuid.NullUUID
	)
	if in.InvoiceID != nil {
		inv, err := s.invoices.FindByID(ctx, *in.InvoiceID)
		if err != nil {
			return nil, err
		}
		invoiceID = uuid.NullUUID{UUID: inv.ID, Valid: true}
		status = license.DeriveStatus(expiresAt, inv.IsPaid(), now)
	} else {
		status = license.StatusInactive
		if in.InitialStatus != nil {
			if *in.InitialStatus != license.StatusActive && *in.InitialStatus != license.StatusInactive {
				return nil, fmt.Errorf("%w: initial status must be active or inactive", ierr.ErrValidation)
			}
			status = *in.InitialStatus
		}
		status = license.EffectiveStatus(status, expiresAt, now)
	}

	var userID uuid.NullUUID
	if in.UserID != nil {
		userID = uuid.NullUUID{UUID: *in.UserID, Valid: true}
	}

	lics, err := s.issue(ctx, p, in.Count, userID, invoiceID, expiresAt, status)
	if err != nil {
		return nil, err
	}

	metrics.LicensesIssuedTotal.WithLabelValues("manual").Add(float64(len(lics)))
	for _, lic := range lics {
		s.activity.Record(ctx, ActivityEntry{
			Action:     activity.ActionLicenseGenerated,
			EntityType: "license",
			EntityID:   lic.ID.String(),
			Details:    map[string]any{"plan_id": p.ID, "status": lic.Status},
		})
	}
	s.logger.Info("Licenses generated",
		zap.String("plan_id", p.ID.String()),
		zap.Int("count", len(lics)),
		zap.String("status", string(status)),
	)
	return lics, nil
}

// IssueForLineItem writes the licenses for one invoice line item as a single
// batch, anchored at the invoice issue date.
func (s *LicenseService) IssueForLineItem(
	ctx context.Context,
	inv *invoice.Invoice,
	li invoice.LineItem,
	p *plan.Plan,
	userID uuid.UUID,
	now time.Time,
) ([]*license.License, error) {
	expiresAt := license.ComputeExpiry(inv.IssueDate, p.DurationDays)
	status := license.DeriveStatus(expiresAt, inv.IsPaid(), now)

	lics, err := s.issue(ctx, p, li.Quantity,
		uuid.NullUUID{UUID: userID, Valid: true},
		uuid.NullUUID{UUID: inv.ID, Valid: true},
		expiresAt, status,
	)
	if err != nil {
		return nil, err
	}

	metrics.LicensesIssuedTotal.WithLabelValues("invoice").Add(float64(len(lics)))
	for _, lic := range lics {
		s.activity.Record(ctx, ActivityEntry{
			Action:     activity.ActionLicenseGenerated,
			EntityType: "license",
			EntityID:   lic.ID.String(),
			Details:    map[string]any{"invoice_id": inv.ID, "line_item_id": li.ID, "status": lic.Status},
		})
	}
	return lics, nil
}

func (s *LicenseService) issue(
	ctx context.Context,
	p *plan.Plan,
	count int,
	userID, invoiceID uuid.NullUUID,
	expiresAt sql.NullTime,
	status license.LicenseStatus,
) ([]*license.License, error) {
	var lastErr error
	for attempt := 0; attempt < keyCollisionRetries; attempt++ {
		lics := make([]*license.License, count)
		for i := range lics {
			key, err := util.GenerateLicenseKey()
			if err != nil {
				return nil, fmt.Errorf("%w: failed generating license key: %v", ierr.ErrInternalServer, err)
			}
			lics[i] = &license.License{
				ID:         uuid.New(),
				LicenseKey: key,
				ProductID:  p.ProductID,
				PlanID:     p.ID,
				UserID:     userID,
				InvoiceID:  invoiceID,
				Status:     status,
				ExpiresAt:  expiresAt,
			}
		}

		err := s.licenses.CreateBatch(ctx, lics)
		if err == nil {
			return lics, nil
		}
		if !errors.Is(err, license.ErrDuplicateKey) {
			s.logger.Error("Failed to write license batch", zap.Int("count", count), zap.Error(err))
			return nil, fmt.Errorf("repository error creating licenses: %w", err)
		}
		s.logger.Warn("License key collision, regenerating batch", zap.Int("attempt", attempt+1))
		lastErr = err
	}
	return nil, fmt.Errorf("license key collisions persisted after %d attempts: %w", keyCollisionRetries, lastErr)
}

type RecomputeResult struct {
	Examined int
	Changed  int
}

// ApplyInvoicePaymentTransition re-derives the licenses of inv when its paid-ness
// flipped. Saving an invoice without a payment change is a no-op.
func (s *LicenseService) ApplyInvoicePaymentTransition(
	ctx context.Context,
	inv *invoice.Invoice,
	wasPaidBefore, isNowPaid bool,
	now time.Time,
) (RecomputeResult, error) {
	if wasPaidBefore == isNowPaid {
		return RecomputeResult{}, nil
	}
	return s.RecomputeInvoiceLicenses(ctx, inv, now)
}

// OnInvoiceStatusChange is called after an invoice status write.
func (s *LicenseService) OnInvoiceStatusChange(ctx context.Context, inv *invoice.Invoice, previous invoice.Status, now time.Time) (RecomputeResult, error) {
	return s.ApplyInvoicePaymentTransition(ctx, inv, previous == invoice.StatusPaid, inv.IsPaid(), now)
}

// RecomputeInvoiceLicenses sets every license of inv to the status the payment
// policy derives for it, writing only rows that change. A failing row does not
// stop the rest; all failures are returned together. Running it again after a
// partial failure completes the work.
func (s *LicenseService) RecomputeInvoiceLicenses(ctx context.Context, inv *invoice.Invoice, now time.Time) (RecomputeResult, error) {
	lics, err := s.licenses.ListByInvoice(ctx, inv.ID)
	if err != nil {
		return RecomputeResult{}, fmt.Errorf("repository error listing invoice licenses: %w", err)
	}

	var (
		res  RecomputeResult
		errs error
	)
	paid := inv.IsPaid()
	for _, lic := range lics {
		res.Examined++
		target := license.DeriveStatus(lic.ExpiresAt, paid, now)
		if lic.Status == license.StatusExpired {
			target = license.StatusExpired
		}
		if target == lic.Status {
			continue
		}

		if err := s.licenses.UpdateStatus(ctx, lic.ID, target); err != nil {
			if errors.Is(err, license.ErrAlreadyExpired) {
				s.logger.Info("License expired before recompute could write it, left expired",
					zap.String("license_id", lic.ID.String()),
					zap.String("invoice_id", inv.ID.String()),
				)
				lic.Status = license.StatusExpired
				continue
			}
			s.logger.Error("Failed to update license status during recompute",
				zap.String("license_id", lic.ID.String()),
				zap.String("invoice_id", inv.ID.String()),
				zap.Error(err),
			)
			errs = multierr.Append(errs, fmt.Errorf("license %s: %w", lic.ID, err))
			continue
		}
		res.Changed++
		s.recordTransition(ctx, lic, target, "invoice_payment")
	}

	s.logger.Info("Invoice licenses recomputed",
		zap.String("invoice_id", inv.ID.String()),
		zap.Bool("paid", paid),
		zap.Int("examined", res.Examined),
		zap.Int("changed", res.Changed),
	)
	return res, errs
}

type EditInput struct {
	Status      *license.LicenseStatus
	ExpiresAt   *time.Time
	ClearExpiry bool
	UserID      *uuid.UUID
}

// EditLicense applies an admin override. Expired is terminal, a license may
// only be marked expired once its expiry has passed, and an active request
// against a past expiry is stored as expired.
func (s *LicenseService) EditLicense(ctx context.Context, id uuid.UUID, in EditInput, now time.Time) (*license.License, error) {
	if in.Status != nil && !in.Status.Valid() {
		return nil, fmt.Errorf("%w: unknown status %q", ierr.ErrValidation, *in.Status)
	}
	if in.ClearExpiry && in.ExpiresAt != nil {
		return nil, fmt.Errorf("%w: expires_at and clear_expiry are mutually exclusive", ierr.ErrValidation)
	}

	lic, err := s.licenses.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	previous := lic.Status
	expiryChange := in.ClearExpiry || in.ExpiresAt != nil

	if license.EffectiveStatus(lic.Status, lic.ExpiresAt, now) == license.StatusExpired {
		if (in.Status != nil && *in.Status != license.StatusExpired) || expiryChange {
			return nil, fmt.Errorf("%w: license %s has expired", ierr.ErrInvalidTransition, lic.ID)
		}
		lic.Status = license.StatusExpired
	} else {
		switch {
		case in.ClearExpiry:
			lic.ExpiresAt = sql.NullTime{}
		case in.ExpiresAt != nil:
			lic.ExpiresAt = sql.NullTime{Time: in.ExpiresAt.UTC(), Valid: true}
		}

		requested := lic.Status
		if in.Status != nil {
			requested = *in.Status
		}
		if requested == license.StatusExpired && !license.IsExpired(lic.ExpiresAt, now) {
			return nil, fmt.Errorf("%w: a license can only be marked expired after its expiry date", ierr.ErrValidation)
		}
		lic.Status = license.EffectiveStatus(requested, lic.ExpiresAt, now)
	}

	if in.UserID != nil {
		lic.UserID = uuid.NullUUID{UUID: *in.UserID, Valid: true}
	}

	if err := s.licenses.Update(ctx, lic); err != nil {
		if errors.Is(err, license.ErrAlreadyExpired) {
			return nil, fmt.Errorf("%w: license %s has expired", ierr.ErrInvalidTransition, lic.ID)
		}
		s.logger.Error("Failed to update license", zap.String("license_id", lic.ID.String()), zap.Error(err))
		return nil, err
	}

	s.activity.Record(ctx, ActivityEntry{
		Action:     activity.ActionLicenseEdited,
		EntityType: "license",
		EntityID:   lic.ID.String(),
		Details:    map[string]any{"from": previous, "to": lic.Status, "expires_at": lic.ExpiresAt},
	})
	if lic.Status != previous {
		metrics.StatusTransitionsTotal.WithLabelValues(string(lic.Status), "manual").Inc()
	}
	return lic, nil
}

func (s *LicenseService) GetLicense(ctx context.Context, id uuid.UUID) (*license.License, error) {
	return s.licenses.FindByID(ctx, id)
}

func (s *LicenseService) GetLicenseByKey(ctx context.Context, key string) (*license.License, error) {
	return s.licenses.FindByKey(ctx, util.NormalizeLicenseKey(key))
}

func (s *LicenseService) ListLicenses(ctx context.Context, params license.ListParams) ([]*license.License, int64, error) {
	if params.Status != nil && !params.Status.Valid() {
		return nil, 0, fmt.Errorf("%w: unknown status %q", ierr.ErrValidation, *params.Status)
	}
	if params.SortBy != "" && !license.SortColumns[params.SortBy] {
		return nil, 0, fmt.Errorf("%w: cannot sort by %q", ierr.ErrValidation, params.SortBy)
	}
	return s.licenses.List(ctx, params)
}

// DeleteLicense removes the license together with its bound devices.
func (s *LicenseService) DeleteLicense(ctx context.Context, id uuid.UUID) error {
	lic, err := s.licenses.FindByID(ctx, id)
	if err != nil {
		return err
	}

	removed, err := s.devices.DeleteByLicense(ctx, id)
	if err != nil {
		return fmt.Errorf("repository error deleting devices: %w", err)
	}
	if err := s.licenses.Delete(ctx, id); err != nil {
		return err
	}

	s.logger.Info("License deleted", zap.String("license_id", id.String()), zap.Int64("devices_removed", removed))
	s.activity.Record(ctx, ActivityEntry{
		Action:     activity.ActionLicenseDeleted,
		EntityType: "license",
		EntityID:   id.String(),
		Details:    map[string]any{"license_key": lic.LicenseKey, "devices_removed": removed},
	})
	return nil
}

// ExpireDue rewrites every active or inactive license whose expiry has passed
// to expired and returns how many it changed.
func (s *LicenseService) ExpireDue(ctx context.Context, now time.Time) (int, error) {
	start := time.Now()
	defer func() { metrics.ExpirySweepDuration.Observe(time.Since(start).Seconds()) }()

	var (
		expired int
		errs    error
	)
	for _, status := range []license.LicenseStatus{license.StatusActive, license.StatusInactive} {
		status := status
		failed := 0
		for {
			batch, _, err := s.licenses.List(ctx, license.ListParams{
				Status:         &status,
				ExpiringBefore: &now,
				SortBy:         "expires_at",
				SortOrder:      "ASC",
				Limit:          expirySweepPageSize,
				Offset:         failed,
			})
			if err != nil {
				return expired, multierr.Append(errs, fmt.Errorf("repository error listing %s licenses: %w", status, err))
			}

			for _, lic := range batch {
				if err := s.licenses.UpdateStatus(ctx, lic.ID, license.StatusExpired); err != nil {
					failed++
					errs = multierr.Append(errs, fmt.Errorf("license %s: %w", lic.ID, err))
					continue
				}
				expired++
				s.recordTransition(ctx, lic, license.StatusExpired, "expiry_sweep")
			}

			// Updated rows leave the filter, so only failures shift the window.
			if len(batch) < expirySweepPageSize {
				break
			}
		}
	}

	s.logger.Info("Expiry sweep finished", zap.Int("expired", expired), zap.Error(errs))
	return expired, errs
}

// MarkExpired persists the expired status found during activation or heartbeat.
func (s *LicenseService) MarkExpired(ctx context.Context, lic *license.License, cause string) error {
	if lic.Status == license.StatusExpired {
		return nil
	}
	if err := s.licenses.UpdateStatus(ctx, lic.ID, license.StatusExpired); err != nil {
		return fmt.Errorf("repository error expiring license: %w", err)
	}
	s.recordTransition(ctx, lic, license.StatusExpired, cause)
	lic.Status = license.StatusExpired
	return nil
}

// Activate flips the license to active after its first device binding. A
// license expired in storage meanwhile stays expired and ErrExpiredLicense is
// returned.
func (s *LicenseService) Activate(ctx context.Context, lic *license.License) error {
	if lic.Status == license.StatusActive {
		return nil
	}
	if err := s.licenses.UpdateStatus(ctx, lic.ID, license.StatusActive); err != nil {
		if errors.Is(err, license.ErrAlreadyExpired) {
			lic.Status = license.StatusExpired
			return ierr.ErrExpiredLicense
		}
		return fmt.Errorf("repository error activating license: %w", err)
	}
	s.recordTransition(ctx, lic, license.StatusActive, "activation")
	s.activity.Record(ctx, ActivityEntry{
		Action:     activity.ActionLicenseActivated,
		EntityType: "license",
		EntityID:   lic.ID.String(),
	})
	lic.Status = license.StatusActive
	return nil
}

func (s *LicenseService) recordTransition(ctx context.Context, lic *license.License, to license.LicenseStatus, cause string) {
	metrics.StatusTransitionsTotal.WithLabelValues(string(to), cause).Inc()
	s.activity.Record(ctx, ActivityEntry{
		Action:     activity.ActionLicenseStatusChange,
		EntityType: "license",
		EntityID:   lic.ID.String(),
		Details:    map[string]any{"from": lic.Status, "to": to, "cause": cause},
	})
}

type DashboardSummary struct {
	TotalLicenses int64
	StatusCounts  map[license.LicenseStatus]int64
	TotalDevices  int64
	ExpiringSoon  ExpiringSoon
}

type ExpiringSoon struct {
	Count        int64
	PeriodDays   int
	NextToExpire *license.License
}

func (s *LicenseService) GetDashboardSummary(ctx context.Context, now time.Time, withinDays int) (*DashboardSummary, error) {
	counts, err := s.licenses.CountByStatus(ctx)
	if err != nil {
		return nil, fmt.Errorf("repository error counting licenses: %w", err)
	}

	summary := &DashboardSummary{
		StatusCounts: make(map[license.LicenseStatus]int64, 3),
		ExpiringSoon: ExpiringSoon{PeriodDays: withinDays},
	}
	for _, st := range []license.LicenseStatus{license.StatusActive, license.StatusInactive, license.StatusExpired} {
		summary.StatusCounts[st] = counts[st]
		summary.TotalLicenses += counts[st]
	}

	if summary.TotalDevices, err = s.devices.Count(ctx); err != nil {
		return nil, fmt.Errorf("repository error counting devices: %w", err)
	}

	active := license.StatusActive
	horizon := now.Add(time.Duration(withinDays) * 24 * time.Hour)
	next, total, err := s.licenses.List(ctx, license.ListParams{
		Status:         &active,
		ExpiringBefore: &horizon,
		SortBy:         "expires_at",
		SortOrder:      "ASC",
		Limit:          1,
	})
	if err != nil {
		return nil, fmt.Errorf("repository error listing expiring licenses: %w", err)
	}
	summary.ExpiringSoon.Count = total
	if len(next) > 0 {
		summary.ExpiringSoon.NextToExpire = next[0]
	}
	return summary, nil
}
