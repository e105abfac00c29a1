package memstorage

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/makkenzo/license-backoffice/internal/domain/device"
)

type DeviceRepository struct {
	mu      sync.RWMutex
	devices map[uuid.UUID]*device.Device
}

func NewDeviceRepository() *DeviceRepository {
	return &DeviceRepository{devices: make(map[uuid.UUID]*device.Device)}
}

var _ device.Repository = (*DeviceRepository)(nil)

// Admit holds the write lock for the whole check-and-insert, which is what
// keeps concurrent activations from overshooting the limit.
func (r *DeviceRepository) Admit(ctx context.Context, candidate *device.Device, limit int) (device.AdmitResult, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	bound := 0
	for _, d := range r.devices {
		if d.LicenseID != candidate.LicenseID {
			continue
		}
		if d.ComputerID == candidate.ComputerID {
			d.LastSeenAt = candidate.LastSeenAt
			cp := *d
			return device.AdmitResult{Outcome: device.OutcomeAlreadyKnown, Device: &cp}, nil
		}
		bound++
	}

	if bound >= limit {
		return device.AdmitResult{Outcome: device.OutcomeLimitReached}, nil
	}

	if candidate.ID == uuid.Nil {
		candidate.ID = uuid.New()
	}
	cp := *candidate
	r.devices[candidate.ID] = &cp
	out := cp
	return device.AdmitResult{Outcome: device.OutcomeAdmitted, Device: &out}, nil
}

func (r *DeviceRepository) FindByID(ctx context.Context, id uuid.UUID) (*device.Device, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	d, ok := r.devices[id]
	if !ok {
		return nil, device.ErrNotFound
	}
	cp := *d
	return &cp, nil
}

func (r *DeviceRepository) FindByLicenseAndComputer(ctx context.Context, licenseID uuid.UUID, computerID string) (*device.Device, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	for _, d := range r.devices {
		if d.LicenseID == licenseID && d.ComputerID == computerID {
			cp := *d
			return &cp, nil
		}
	}
	return nil, device.ErrNotFound
}

func (r *DeviceRepository) ListByLicense(ctx context.Context, licenseID uuid.UUID) ([]*device.Device, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]*device.Device, 0)
	for _, d := range r.devices {
		if d.LicenseID == licenseID {
			cp := *d
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].ActivatedAt.Equal(out[j].ActivatedAt) {
			return out[i].ComputerID < out[j].ComputerID
		}
		return out[i].ActivatedAt.Before(out[j].ActivatedAt)
	})
	return out, nil
}

func (r *DeviceRepository) TouchLastSeen(ctx context.Context, id uuid.UUID, at time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	d, ok := r.devices[id]
	if !ok {
		return device.ErrNotFound
	}
	d.LastSeenAt = at
	return nil
}

func (r *DeviceRepository) UpdateHardware(ctx context.Context, upd *device.Device) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	d, ok := r.devices[upd.ID]
	if !ok {
		return device.ErrNotFound
	}
	d.Name = upd.Name
	d.OS = upd.OS
	d.Processor = upd.Processor
	d.RAM = upd.RAM
	return nil
}

func (r *DeviceRepository) Delete(ctx context.Context, id uuid.UUID) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.devices[id]; !ok {
		return device.ErrNotFound
	}
	delete(r.devices, id)
	return nil
}

func (r *DeviceRepository) DeleteByLicense(ctx context.Context, licenseID uuid.UUID) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var removed int64
	for id, d := range r.devices {
		if d.LicenseID == licenseID {
			delete(r.devices, id)
			removed++
		}
	}
	return removed, nil
}

func (r *DeviceRepository) Count(ctx context.Context) (int64, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return int64(len(r.devices)), nil
}
