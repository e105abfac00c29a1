package memstorage

import (
	"context"
	"sort"
	"strings"
	"sync"

	"github.com/google/uuid"
	"github.com/makkenzo/license-backoffice/internal/domain/license"
)

type LicenseRepository struct {
	mu       sync.RWMutex
	licenses map[uuid.UUID]*license.License
	byKey    map[string]uuid.UUID
}

func NewLicenseRepository() *LicenseRepository {
	return &LicenseRepository{
		licenses: make(map[uuid.UUID]*license.License),
		byKey:    make(map[string]uuid.UUID),
	}
}

var _ license.Repository = (*LicenseRepository)(nil)

func (r *LicenseRepository) CreateBatch(ctx context.Context, lics []*license.License) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	pending := make(map[string]struct{}, len(lics))
	for _, lic := range lics {
		if _, exists := r.byKey[lic.LicenseKey]; exists {
			return license.ErrDuplicateKey
		}
		if _, dup := pending[lic.LicenseKey]; dup {
			return license.ErrDuplicateKey
		}
		pending[lic.LicenseKey] = struct{}{}
	}

	ts := now()
	for _, lic := range lics {
		if lic.ID == uuid.Nil {
			lic.ID = uuid.New()
		}
		if lic.CreatedAt.IsZero() {
			lic.CreatedAt = ts
		}
		lic.UpdatedAt = ts
		cp := *lic
		r.licenses[lic.ID] = &cp
		r.byKey[lic.LicenseKey] = lic.ID
	}
	return nil
}

func (r *LicenseRepository) FindByID(ctx context.Context, id uuid.UUID) (*license.License, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	lic, ok := r.licenses[id]
	if !ok {
		return nil, license.ErrNotFound
	}
	cp := *lic
	return &cp, nil
}

func (r *LicenseRepository) FindByKey(ctx context.Context, key string) (*license.License, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	id, ok := r.byKey[key]
	if !ok {
		return nil, license.ErrNotFound
	}
	cp := *r.licenses[id]
	return &cp, nil
}

func (r *LicenseRepository) List(ctx context.Context, params license.ListParams) ([]*license.License, int64, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	matched := make([]*license.License, 0)
	for _, lic := range r.licenses {
		if !matchesLicense(lic, params) {
			continue
		}
		cp := *lic
		matched = append(matched, &cp)
	}

	sort.Slice(matched, func(i, j int) bool { return matched[i].LicenseKey < matched[j].LicenseKey })
	sortLicenses(matched, params.SortBy, params.SortOrder)

	total := int64(len(matched))
	return paginate(matched, params.Limit, params.Offset), total, nil
}

func (r *LicenseRepository) ListByInvoice(ctx context.Context, invoiceID uuid.UUID) ([]*license.License, error) {
	out, _, err := r.List(ctx, license.ListParams{InvoiceID: &invoiceID, SortBy: "created_at", SortOrder: "ASC"})
	return out, err
}

func (r *LicenseRepository) Update(ctx context.Context, lic *license.License) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	existing, ok := r.licenses[lic.ID]
	if !ok {
		return license.ErrNotFound
	}
	if existing.Status == license.StatusExpired && lic.Status != license.StatusExpired {
		return license.ErrAlreadyExpired
	}
	if existing.LicenseKey != lic.LicenseKey {
		if _, taken := r.byKey[lic.LicenseKey]; taken {
			return license.ErrDuplicateKey
		}
		delete(r.byKey, existing.LicenseKey)
		r.byKey[lic.LicenseKey] = lic.ID
	}
	lic.UpdatedAt = now()
	cp := *lic
	r.licenses[lic.ID] = &cp
	return nil
}

func (r *LicenseRepository) UpdateStatus(ctx context.Context, id uuid.UUID, status license.LicenseStatus) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	lic, ok := r.licenses[id]
	if !ok {
		return license.ErrNotFound
	}
	if lic.Status == license.StatusExpired && status != license.StatusExpired {
		return license.ErrAlreadyExpired
	}
	lic.Status = status
	lic.UpdatedAt = now()
	return nil
}

func (r *LicenseRepository) Delete(ctx context.Context, id uuid.UUID) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	lic, ok := r.licenses[id]
	if !ok {
		return license.ErrNotFound
	}
	delete(r.byKey, lic.LicenseKey)
	delete(r.licenses, id)
	return nil
}

func (r *LicenseRepository) CountByStatus(ctx context.Context) (map[license.LicenseStatus]int64, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	counts := make(map[license.LicenseStatus]int64)
	for _, lic := range r.licenses {
		counts[lic.Status]++
	}
	return counts, nil
}

func matchesLicense(lic *license.License, p license.ListParams) bool {
	if p.Status != nil && lic.Status != *p.Status {
		return false
	}
	if p.ProductID != nil && lic.ProductID != *p.ProductID {
		return false
	}
	if p.PlanID != nil && lic.PlanID != *p.PlanID {
		return false
	}
	if p.UserID != nil && (!lic.UserID.Valid || lic.UserID.UUID != *p.UserID) {
		return false
	}
	if p.InvoiceID != nil && (!lic.InvoiceID.Valid || lic.InvoiceID.UUID != *p.InvoiceID) {
		return false
	}
	if p.ExpiringBefore != nil && (!lic.ExpiresAt.Valid || !lic.ExpiresAt.Time.Before(*p.ExpiringBefore)) {
		return false
	}
	return true
}

func sortLicenses(lics []*license.License, sortBy, sortOrder string) {
	desc := strings.EqualFold(sortOrder, "DESC")
	less := func(a, b *license.License) bool {
		switch sortBy {
		case "updated_at":
			return a.UpdatedAt.Before(b.UpdatedAt)
		case "expires_at":
			// nulls last, as in Postgres ascending order
			if a.ExpiresAt.Valid != b.ExpiresAt.Valid {
				return a.ExpiresAt.Valid
			}
			return a.ExpiresAt.Time.Before(b.ExpiresAt.Time)
		case "status":
			return a.Status < b.Status
		case "license_key":
			return a.LicenseKey < b.LicenseKey
		default:
			return a.CreatedAt.Before(b.CreatedAt)
		}
	}
	sort.SliceStable(lics, func(i, j int) bool {
		if desc {
			return less(lics[j], lics[i])
		}
		return less(lics[i], lics[j])
	})
}

func paginate[T any](items []T, limit, offset int) []T {
	if offset >= len(items) {
		return []T{}
	}
	items = items[offset:]
	if limit > 0 && limit < len(items) {
		items = items[:limit]
	}
	return items
}
