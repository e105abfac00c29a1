package memstorage

import (
	"context"
	"sync"

	"github.com/google/uuid"
	"github.com/makkenzo/license-backoffice/internal/domain/activity"
)

type ActivityRepository struct {
	mu     sync.Mutex
	events []*activity.Event
}

func NewActivityRepository() *ActivityRepository {
	return &ActivityRepository{}
}

var _ activity.Repository = (*ActivityRepository)(nil)

func (r *ActivityRepository) Create(ctx context.Context, e *activity.Event) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if e.ID == uuid.Nil {
		e.ID = uuid.New()
	}
	cp := *e
	r.events = append(r.events, &cp)
	return nil
}

// Events returns a snapshot of everything recorded so far.
func (r *ActivityRepository) Events() []*activity.Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]*activity.Event(nil), r.events...)
}
