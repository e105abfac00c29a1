package worker

import (
	"context"
	"fmt"

	"github.com/hibiken/asynq"
	"github.com/makkenzo/license-backoffice/internal/config"
	"github.com/makkenzo/license-backoffice/internal/tasks"
	"go.uber.org/zap"
)

// Processors are the task handlers served by the asynq server.
type Processors struct {
	LicenseExpire    asynq.Handler
	InvoiceOverdue   asynq.Handler
	InvoiceRecompute asynq.Handler
}

func RedisConnOpt(cfg *config.RedisConfig) asynq.RedisClientOpt {
	return asynq.RedisClientOpt{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	}
}

func NewServeMux(p Processors) *asynq.ServeMux {
	mux := asynq.NewServeMux()
	mux.Handle(tasks.TypeLicenseExpire, p.LicenseExpire)
	mux.Handle(tasks.TypeInvoiceOverdue, p.InvoiceOverdue)
	mux.Handle(tasks.TypeInvoiceRecompute, p.InvoiceRecompute)
	return mux
}

// RunWorkers starts the asynq server and the periodic scheduler and blocks
// until ctx is done, then shuts both down.
func RunWorkers(ctx context.Context, cfg *config.Config, p Processors, logger *zap.Logger) error {
	redisConnOpts := RedisConnOpt(&cfg.Redis)

	srv := asynq.NewServer(
		redisConnOpts,
		asynq.Config{
			Concurrency: cfg.Worker.Concurrency,
			Queues: map[string]int{
				"critical": 6,
				"default":  3,
				"low":      1,
			},
			ErrorHandler: asynq.ErrorHandlerFunc(func(ctx context.Context, task *asynq.Task, err error) {
				retried, _ := asynq.GetRetryCount(ctx)
				maxRetry, _ := asynq.GetMaxRetry(ctx)
				logger.Named("AsynqServerErrorHandler").Error("Asynq task processing failed",
					zap.String("task_type", task.Type()),
					zap.ByteString("payload", task.Payload()),
					zap.Int("retried", retried),
					zap.Int("max_retry", maxRetry),
					zap.Error(err),
				)
			}),
			Logger: NewAsynqLoggerAdapter(logger.Named("AsynqServer")),
		},
	)

	if err := srv.Start(NewServeMux(p)); err != nil {
		return fmt.Errorf("asynq server error: %w", err)
	}
	logger.Info("Asynq Server started", zap.Int("concurrency", cfg.Worker.Concurrency))

	scheduler := asynq.NewScheduler(
		redisConnOpts,
		&asynq.SchedulerOpts{
			Logger: NewAsynqLoggerAdapter(logger.Named("AsynqScheduler")),
		},
	)

	periodic := []struct {
		name     string
		schedule string
		task     *asynq.Task
	}{
		{"license expiration check", cfg.Worker.ExpireSchedule, tasks.NewLicenseExpireTask()},
		{"invoice overdue check", cfg.Worker.OverdueSchedule, tasks.NewInvoiceOverdueTask()},
	}
	for _, entry := range periodic {
		entryID, err := scheduler.Register(entry.schedule, entry.task)
		if err != nil {
			srv.Shutdown()
			return fmt.Errorf("scheduler registration error for %s: %w", entry.name, err)
		}
		logger.Info("Registered periodic task",
			zap.String("task", entry.name),
			zap.String("entry_id", entryID),
			zap.String("schedule", entry.schedule),
		)
	}

	if err := scheduler.Start(); err != nil {
		srv.Shutdown()
		return fmt.Errorf("asynq scheduler error: %w", err)
	}
	logger.Info("Asynq Scheduler started")

	<-ctx.Done()

	logger.Info("Shutting down Asynq Scheduler...")
	scheduler.Shutdown()
	logger.Info("Shutting down Asynq Server...")
	srv.Shutdown()
	logger.Info("Asynq workers stopped")
	return nil
}

type asynqLoggerAdapter struct {
	logger *zap.Logger
}

func NewAsynqLoggerAdapter(logger *zap.Logger) asynq.Logger {
	return &asynqLoggerAdapter{logger: logger.WithOptions(zap.AddCallerSkip(1))}
}

func (l *asynqLoggerAdapter) Debug(args ...any) {
	l.logger.Debug(fmt.Sprint(args...))
}
func (l *asynqLoggerAdapter) Info(args ...any) {
	l.logger.Info(fmt.Sprint(args...))
}
func (l *asynqLoggerAdapter) Warn(args ...any) {
	l.logger.Warn(fmt.Sprint(args...))
}
func (l *asynqLoggerAdapter) Error(args ...any) {
	l.logger.Error(fmt.Sprint(args...))
}
func (l *asynqLoggerAdapter) Fatal(args ...any) {
	l.logger.Fatal(fmt.Sprint(args...))
}
