package memstorage

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/makkenzo/license-backoffice/internal/domain/device"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func candidate(licenseID uuid.UUID, computerID string, at time.Time) *device.Device {
	return &device.Device{
		LicenseID:   licenseID,
		ComputerID:  computerID,
		Name:        computerID,
		IsActive:    true,
		ActivatedAt: at,
		LastSeenAt:  at,
	}
}

func TestDeviceRepositoryAdmit(t *testing.T) {
	ctx := context.Background()
	repo := NewDeviceRepository()
	licenseID := uuid.New()
	t0 := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)

	res, err := repo.Admit(ctx, candidate(licenseID, "pc-1", t0), 1)
	require.NoError(t, err)
	assert.Equal(t, device.OutcomeAdmitted, res.Outcome)
	require.NotNil(t, res.Device)
	assert.NotEqual(t, uuid.Nil, res.Device.ID)

	later := t0.Add(time.Hour)
	res, err = repo.Admit(ctx, candidate(licenseID, "pc-1", later), 1)
	require.NoError(t, err)
	assert.Equal(t, device.OutcomeAlreadyKnown, res.Outcome)
	assert.Equal(t, later, res.Device.LastSeenAt)
	assert.Equal(t, t0, res.Device.ActivatedAt)

	res, err = repo.Admit(ctx, candidate(licenseID, "pc-2", later), 1)
	require.NoError(t, err)
	assert.Equal(t, device.OutcomeLimitReached, res.Outcome)
	assert.Nil(t, res.Device)

	// other licenses have their own slots
	res, err = repo.Admit(ctx, candidate(uuid.New(), "pc-2", later), 1)
	require.NoError(t, err)
	assert.Equal(t, device.OutcomeAdmitted, res.Outcome)

	list, err := repo.ListByLicense(ctx, licenseID)
	require.NoError(t, err)
	assert.Len(t, list, 1)
}

func TestDeviceRepositoryAdmitConcurrent(t *testing.T) {
	ctx := context.Background()
	repo := NewDeviceRepository()
	licenseID := uuid.New()
	const limit, callers = 3, 40

	var wg sync.WaitGroup
	outcomes := make(chan device.AdmitOutcome, callers)
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			res, err := repo.Admit(ctx, candidate(licenseID, fmt.Sprintf("pc-%d", i), time.Now()), limit)
			if assert.NoError(t, err) {
				outcomes <- res.Outcome
			}
		}(i)
	}
	wg.Wait()
	close(outcomes)

	admitted := 0
	for o := range outcomes {
		if o == device.OutcomeAdmitted {
			admitted++
		}
	}
	assert.Equal(t, limit, admitted)

	list, err := repo.ListByLicense(ctx, licenseID)
	require.NoError(t, err)
	assert.Len(t, list, limit)
}

func TestDeviceRepositoryDeleteFreesSlot(t *testing.T) {
	ctx := context.Background()
	repo := NewDeviceRepository()
	licenseID := uuid.New()
	now := time.Now()

	res, err := repo.Admit(ctx, candidate(licenseID, "pc-1", now), 1)
	require.NoError(t, err)
	require.NoError(t, repo.Delete(ctx, res.Device.ID))
	assert.ErrorIs(t, repo.Delete(ctx, res.Device.ID), device.ErrNotFound)

	res, err = repo.Admit(ctx, candidate(licenseID, "pc-2", now), 1)
	require.NoError(t, err)
	assert.Equal(t, device.OutcomeAdmitted, res.Outcome)
}
