package tasks

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/hibiken/asynq"
	"go.uber.org/zap"
)

const (
	TypeLicenseExpire    = "license:expire:check"
	TypeInvoiceOverdue   = "invoice:overdue:check"
	TypeInvoiceRecompute = "invoice:licenses:recompute"
)

const recomputeMaxRetry = 10

type InvoiceRecomputePayload struct {
	InvoiceID uuid.UUID `json:"invoice_id"`
}

// NewLicenseExpireTask builds the periodic sweep task. Uniqueness keeps a slow
// sweep from piling up behind itself.
func NewLicenseExpireTask(opts ...asynq.Option) *asynq.Task {
	opts = append(opts, asynq.Unique(time.Hour))
	return asynq.NewTask(TypeLicenseExpire, nil, opts...)
}

func NewInvoiceOverdueTask(opts ...asynq.Option) *asynq.Task {
	opts = append(opts, asynq.Unique(time.Hour))
	return asynq.NewTask(TypeInvoiceOverdue, nil, opts...)
}

func NewInvoiceRecomputeTask(invoiceID uuid.UUID, opts ...asynq.Option) (*asynq.Task, error) {
	payload, err := json.Marshal(InvoiceRecomputePayload{InvoiceID: invoiceID})
	if err != nil {
		return nil, err
	}
	opts = append(opts, asynq.MaxRetry(recomputeMaxRetry), asynq.Queue("critical"))
	return asynq.NewTask(TypeInvoiceRecompute, payload, opts...), nil
}

// Enqueuer schedules invoice recomputes that could not complete inline.
type Enqueuer struct {
	client *asynq.Client
	logger *zap.Logger
}

func NewEnqueuer(client *asynq.Client, logger *zap.Logger) *Enqueuer {
	return &Enqueuer{
		client: client,
		logger: logger.Named("TaskEnqueuer"),
	}
}

func (e *Enqueuer) ScheduleInvoiceRecompute(ctx context.Context, invoiceID uuid.UUID) error {
	task, err := NewInvoiceRecomputeTask(invoiceID)
	if err != nil {
		return fmt.Errorf("failed to build recompute task: %w", err)
	}

	info, err := e.client.EnqueueContext(ctx, task)
	if err != nil {
		return fmt.Errorf("failed to enqueue recompute for invoice %s: %w", invoiceID, err)
	}

	e.logger.Info("Scheduled invoice license recompute",
		zap.String("invoice_id", invoiceID.String()),
		zap.String("task_id", info.ID),
		zap.String("queue", info.Queue),
	)
	return nil
}
