package tasks

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/hibiken/asynq"
	"github.com/makkenzo/license-backoffice/internal/domain/invoice"
	"github.com/makkenzo/license-backoffice/internal/service"
	"go.uber.org/zap"
)

type LicenseExpirer interface {
	ExpireDue(ctx context.Context, now time.Time) (int, error)
}

type InvoiceSweeper interface {
	MarkOverdue(ctx context.Context, now time.Time) (int, error)
	RecomputeInvoice(ctx context.Context, id uuid.UUID, now time.Time) (service.RecomputeResult, error)
}

var clock = func() time.Time { return time.Now().UTC() }

type LicenseExpireHandler struct {
	licenses LicenseExpirer
	logger   *zap.Logger
}

func NewLicenseExpireHandler(licenses LicenseExpirer, logger *zap.Logger) *LicenseExpireHandler {
	return &LicenseExpireHandler{
		licenses: licenses,
		logger:   logger.Named("LicenseExpireHandler"),
	}
}

func (h *LicenseExpireHandler) ProcessTask(ctx context.Context, t *asynq.Task) error {
	if t.Type() != TypeLicenseExpire {
		return fmt.Errorf("unexpected task type: %s", t.Type())
	}

	h.logger.Info("Processing license expiration check task...")
	expired, err := h.licenses.ExpireDue(ctx, clock())
	if err != nil {
		h.logger.Error("License expiration sweep finished with errors", zap.Int("updated_to_expired", expired), zap.Error(err))
		return err
	}
	h.logger.Info("License expiration check task finished", zap.Int("updated_to_expired", expired))
	return nil
}

type InvoiceOverdueHandler struct {
	invoices InvoiceSweeper
	logger   *zap.Logger
}

func NewInvoiceOverdueHandler(invoices InvoiceSweeper, logger *zap.Logger) *InvoiceOverdueHandler {
	return &InvoiceOverdueHandler{
		invoices: invoices,
		logger:   logger.Named("InvoiceOverdueHandler"),
	}
}

func (h *InvoiceOverdueHandler) ProcessTask(ctx context.Context, t *asynq.Task) error {
	if t.Type() != TypeInvoiceOverdue {
		return fmt.Errorf("unexpected task type: %s", t.Type())
	}

	marked, err := h.invoices.MarkOverdue(ctx, clock())
	if err != nil {
		h.logger.Error("Overdue sweep failed", zap.Int("marked", marked), zap.Error(err))
		return err
	}
	h.logger.Info("Overdue sweep finished", zap.Int("marked", marked))
	return nil
}

type InvoiceRecomputeHandler struct {
	invoices InvoiceSweeper
	logger   *zap.Logger
}

func NewInvoiceRecomputeHandler(invoices InvoiceSweeper, logger *zap.Logger) *InvoiceRecomputeHandler {
	return &InvoiceRecomputeHandler{
		invoices: invoices,
		logger:   logger.Named("InvoiceRecomputeHandler"),
	}
}

func (h *InvoiceRecomputeHandler) ProcessTask(ctx context.Context, t *asynq.Task) error {
	if t.Type() != TypeInvoiceRecompute {
		return fmt.Errorf("unexpected task type: %s", t.Type())
	}

	var p InvoiceRecomputePayload
	if err := json.Unmarshal(t.Payload(), &p); err != nil {
		h.logger.Error("Failed to unmarshal recompute payload", zap.ByteString("payload", t.Payload()), zap.Error(err))
		return fmt.Errorf("invalid payload: %v: %w", err, asynq.SkipRetry)
	}
	if p.InvoiceID == uuid.Nil {
		return fmt.Errorf("recompute payload has no invoice id: %w", asynq.SkipRetry)
	}

	res, err := h.invoices.RecomputeInvoice(ctx, p.InvoiceID, clock())
	if errors.Is(err, invoice.ErrNotFound) {
		h.logger.Info("Invoice gone, dropping recompute", zap.String("invoice_id", p.InvoiceID.String()))
		return fmt.Errorf("%w: %w", err, asynq.SkipRetry)
	}
	if err != nil {
		h.logger.Warn("Invoice recompute failed, will retry",
			zap.String("invoice_id", p.InvoiceID.String()),
			zap.Int("examined", res.Examined),
			zap.Int("changed", res.Changed),
			zap.Error(err),
		)
		return err
	}

	h.logger.Info("Invoice licenses recomputed",
		zap.String("invoice_id", p.InvoiceID.String()),
		zap.Int("examined", res.Examined),
		zap.Int("changed", res.Changed),
	)
	return nil
}
