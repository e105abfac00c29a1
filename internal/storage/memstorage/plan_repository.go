package memstorage

import (
	"context"
	"sort"
	"sync"

	"github.com/google/uuid"
	"github.com/makkenzo/license-backoffice/internal/domain/plan"
)

type PlanRepository struct {
	mu    sync.RWMutex
	plans map[uuid.UUID]*plan.Plan
}

func NewPlanRepository() *PlanRepository {
	return &PlanRepository{plans: make(map[uuid.UUID]*plan.Plan)}
}

var _ plan.Repository = (*PlanRepository)(nil)

func (r *PlanRepository) Create(ctx context.Context, p *plan.Plan) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if p.ID == uuid.Nil {
		p.ID = uuid.New()
	}
	if p.CreatedAt.IsZero() {
		p.CreatedAt = now()
	}
	cp := *p
	r.plans[p.ID] = &cp
	return nil
}

func (r *PlanRepository) FindByID(ctx context.Context, id uuid.UUID) (*plan.Plan, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	p, ok := r.plans[id]
	if !ok {
		return nil, plan.ErrNotFound
	}
	cp := *p
	return &cp, nil
}

func (r *PlanRepository) List(ctx context.Context, productID *uuid.UUID) ([]*plan.Plan, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]*plan.Plan, 0, len(r.plans))
	for _, p := range r.plans {
		if productID != nil && p.ProductID != *productID {
			continue
		}
		cp := *p
		out = append(out, &cp)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}
