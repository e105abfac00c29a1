package service

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/makkenzo/license-backoffice/internal/domain/activity"
	"go.uber.org/zap"
)

const activityWriteTimeout = 5 * time.Second

type actorKey struct{}

// WithActor attaches the authenticated user's id to ctx so activity entries
// can name who did what.
func WithActor(ctx context.Context, userID uuid.UUID) context.Context {
	return context.WithValue(ctx, actorKey{}, userID)
}

func ActorFromContext(ctx context.Context) uuid.NullUUID {
	id, ok := ctx.Value(actorKey{}).(uuid.UUID)
	if !ok {
		return uuid.NullUUID{}
	}
	return uuid.NullUUID{UUID: id, Valid: true}
}

type ActivityEntry struct {
	Action     string
	EntityType string
	EntityID   string
	Details    any
}

// ActivityRecorder appends to the audit trail. Record never fails the caller.
type ActivityRecorder interface {
	Record(ctx context.Context, entry ActivityEntry)
}

// ActivityLogger writes entries in the background with their own timeout, so
// a slow or failing audit store never affects the request that produced them.
type ActivityLogger struct {
	repo   activity.Repository
	logger *zap.Logger
	wg     sync.WaitGroup
}

func NewActivityLogger(repo activity.Repository, logger *zap.Logger) *ActivityLogger {
	return &ActivityLogger{
		repo:   repo,
		logger: logger.Named("ActivityLogger"),
	}
}

var _ ActivityRecorder = (*ActivityLogger)(nil)

func (l *ActivityLogger) Record(ctx context.Context, entry ActivityEntry) {
	if l == nil || l.repo == nil {
		return
	}

	event := &activity.Event{
		ID:         uuid.New(),
		ActorID:    ActorFromContext(ctx),
		Action:     entry.Action,
		EntityType: entry.EntityType,
		EntityID:   entry.EntityID,
		CreatedAt:  time.Now().UTC(),
	}
	if entry.Details != nil {
		raw, err := json.Marshal(entry.Details)
		if err != nil {
			l.logger.Warn("Failed to encode activity details", zap.String("action", entry.Action), zap.Error(err))
		} else {
			event.Details = raw
		}
	}

	l.wg.Add(1)
	go func() {
		defer l.wg.Done()
		writeCtx, cancel := context.WithTimeout(context.Background(), activityWriteTimeout)
		defer cancel()
		if err := l.repo.Create(writeCtx, event); err != nil {
			l.logger.Error("Failed to record activity",
				zap.String("action", event.Action),
				zap.String("entity_id", event.EntityID),
				zap.Error(err),
			)
		}
	}()
}

// Wait blocks until every pending write has finished. Called on shutdown.
func (l *ActivityLogger) Wait() {
	l.wg.Wait()
}

type nopRecorder struct{}

func (nopRecorder) Record(context.Context, ActivityEntry) {}

func recorderOrNop(r ActivityRecorder) ActivityRecorder {
	if r == nil {
		return nopRecorder{}
	}
	return r
}
