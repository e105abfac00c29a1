package service

import (
	"context"
	"database/sql"
	"testing"

	"github.com/google/uuid"
	"github.com/makkenzo/license-backoffice/internal/domain/license"
	"github.com/makkenzo/license-backoffice/internal/ierr"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGenerate(t *testing.T) {
	f := newFixture(t)

	t.Run("defaults to inactive", func(t *testing.T) {
		lics, err := f.lifecycle.Generate(f.ctx, GenerateInput{ProductID: f.product.ID, PlanID: f.plan.ID, Count: 4}, day0)
		require.NoError(t, err)
		require.Len(t, lics, 4)
		for _, lic := range lics {
			assert.Equal(t, license.StatusInactive, lic.Status)
			assert.Equal(t, daysAfter(30), lic.ExpiresAt.Time)
			assert.Regexp(t, `^[0-9A-Z]{5}(-[0-9A-Z]{5}){4}$`, lic.LicenseKey)
		}
	})

	t.Run("perpetual plan has no expiry", func(t *testing.T) {
		perpetual := f.addPlan(t, f.product.ID, 1, 0)
		lics, err := f.lifecycle.Generate(f.ctx, GenerateInput{ProductID: f.product.ID, PlanID: perpetual.ID, Count: 1}, day0)
		require.NoError(t, err)
		assert.False(t, lics[0].ExpiresAt.Valid)
	})

	t.Run("rejects bad input", func(t *testing.T) {
		other := f.addProduct(t, "Elsewhere")
		for name, in := range map[string]GenerateInput{
			"zero count":      {ProductID: f.product.ID, PlanID: f.plan.ID, Count: 0},
			"too many":        {ProductID: f.product.ID, PlanID: f.plan.ID, Count: 1001},
			"foreign plan":    {ProductID: other.ID, PlanID: f.plan.ID, Count: 1},
			"expired initial": {ProductID: f.product.ID, PlanID: f.plan.ID, Count: 1, InitialStatus: ptr(license.StatusExpired)},
		} {
			_, err := f.lifecycle.Generate(f.ctx, in, day0)
			assert.ErrorIs(t, err, ierr.ErrValidation, name)
		}
	})
}

func TestGenerateRetriesKeyCollisions(t *testing.T) {
	collisions := 0
	f := newFixture(t, withLicenseRepo(func(r license.Repository) license.Repository {
		return &collidingLicenses{Repository: r, remaining: 2, seen: &collisions}
	}))

	lics, err := f.lifecycle.Generate(f.ctx, GenerateInput{ProductID: f.product.ID, PlanID: f.plan.ID, Count: 2}, day0)
	require.NoError(t, err)
	assert.Len(t, lics, 2)
	assert.Equal(t, 2, collisions)
}

type collidingLicenses struct {
	license.Repository
	remaining int
	seen      *int
}

func (r *collidingLicenses) CreateBatch(ctx context.Context, lics []*license.License) error {
	if r.remaining > 0 {
		r.remaining--
		*r.seen++
		return license.ErrDuplicateKey
	}
	return r.Repository.CreateBatch(ctx, lics)
}

func TestEditLicense(t *testing.T) {
	f := newFixture(t)
	now := daysAfter(10)

	t.Run("deactivate and reactivate", func(t *testing.T) {
		lic := f.generate(t, license.StatusActive, day0)
		got, err := f.lifecycle.EditLicense(f.ctx, lic.ID, EditInput{Status: ptr(license.StatusInactive)}, now)
		require.NoError(t, err)
		assert.Equal(t, license.StatusInactive, got.Status)

		got, err = f.lifecycle.EditLicense(f.ctx, lic.ID, EditInput{Status: ptr(license.StatusActive)}, now)
		require.NoError(t, err)
		assert.Equal(t, license.StatusActive, got.Status)
	})

	t.Run("cannot mark expired before expiry", func(t *testing.T) {
		lic := f.generate(t, license.StatusActive, day0)
		_, err := f.lifecycle.EditLicense(f.ctx, lic.ID, EditInput{Status: ptr(license.StatusExpired)}, now)
		assert.ErrorIs(t, err, ierr.ErrValidation)
		assert.Equal(t, license.StatusActive, f.reload(t, lic.ID).Status)
	})

	t.Run("moving expiry into the past expires", func(t *testing.T) {
		lic := f.generate(t, license.StatusActive, day0)
		past := daysAfter(5)
		got, err := f.lifecycle.EditLicense(f.ctx, lic.ID, EditInput{ExpiresAt: &past}, now)
		require.NoError(t, err)
		assert.Equal(t, license.StatusExpired, got.Status)
	})

	t.Run("expired is terminal", func(t *testing.T) {
		lic := f.generate(t, license.StatusActive, day0)
		later := daysAfter(40)

		_, err := f.lifecycle.EditLicense(f.ctx, lic.ID, EditInput{Status: ptr(license.StatusActive)}, later)
		assert.ErrorIs(t, err, ierr.ErrInvalidTransition)

		extended := daysAfter(90)
		_, err = f.lifecycle.EditLicense(f.ctx, lic.ID, EditInput{ExpiresAt: &extended}, later)
		assert.ErrorIs(t, err, ierr.ErrInvalidTransition)

		_, err = f.lifecycle.EditLicense(f.ctx, lic.ID, EditInput{ClearExpiry: true}, later)
		assert.ErrorIs(t, err, ierr.ErrInvalidTransition)

		got, err := f.lifecycle.EditLicense(f.ctx, lic.ID, EditInput{Status: ptr(license.StatusExpired)}, later)
		require.NoError(t, err)
		assert.Equal(t, license.StatusExpired, got.Status)
	})

	t.Run("clearing expiry makes it perpetual", func(t *testing.T) {
		lic := f.generate(t, license.StatusInactive, day0)
		got, err := f.lifecycle.EditLicense(f.ctx, lic.ID, EditInput{ClearExpiry: true}, now)
		require.NoError(t, err)
		assert.False(t, got.ExpiresAt.Valid)
		assert.Equal(t, license.StatusInactive, got.Status)
	})

	t.Run("reassigns user", func(t *testing.T) {
		lic := f.generate(t, license.StatusInactive, day0)
		userID := uuid.New()
		got, err := f.lifecycle.EditLicense(f.ctx, lic.ID, EditInput{UserID: &userID}, now)
		require.NoError(t, err)
		assert.Equal(t, uuid.NullUUID{UUID: userID, Valid: true}, got.UserID)
	})

	t.Run("unknown license", func(t *testing.T) {
		_, err := f.lifecycle.EditLicense(f.ctx, uuid.New(), EditInput{}, now)
		assert.ErrorIs(t, err, license.ErrNotFound)
	})
}

func TestExpireDue(t *testing.T) {
	f := newFixture(t)
	active := f.generate(t, license.StatusActive, day0)
	inactive := f.generate(t, license.StatusInactive, day0)
	fresh := f.generate(t, license.StatusActive, daysAfter(20))

	perpetual := f.generate(t, license.StatusActive, day0)
	perpetual.ExpiresAt = sql.NullTime{}
	require.NoError(t, f.store.Licenses.Update(f.ctx, perpetual))

	expired, err := f.lifecycle.ExpireDue(f.ctx, daysAfter(35))
	require.NoError(t, err)
	assert.Equal(t, 2, expired)

	assert.Equal(t, license.StatusExpired, f.reload(t, active.ID).Status)
	assert.Equal(t, license.StatusExpired, f.reload(t, inactive.ID).Status)
	assert.Equal(t, license.StatusActive, f.reload(t, fresh.ID).Status)
	assert.Equal(t, license.StatusActive, f.reload(t, perpetual.ID).Status)

	expired, err = f.lifecycle.ExpireDue(f.ctx, daysAfter(35))
	require.NoError(t, err)
	assert.Zero(t, expired)
}

func TestDeleteLicenseRemovesDevices(t *testing.T) {
	f := newFixture(t)
	lic := f.generate(t, license.StatusActive, day0)
	_, err := f.activation.Activate(f.ctx, activateInput(lic, "pc-1"), daysAfter(1))
	require.NoError(t, err)

	require.NoError(t, f.lifecycle.DeleteLicense(f.ctx, lic.ID))

	_, err = f.lifecycle.GetLicense(f.ctx, lic.ID)
	assert.ErrorIs(t, err, license.ErrNotFound)
	devices, err := f.store.Devices.ListByLicense(f.ctx, lic.ID)
	require.NoError(t, err)
	assert.Empty(t, devices)

	assert.ErrorIs(t, f.lifecycle.DeleteLicense(f.ctx, lic.ID), license.ErrNotFound)
}

func TestListLicensesRejectsUnknownSort(t *testing.T) {
	f := newFixture(t)
	_, _, err := f.lifecycle.ListLicenses(f.ctx, license.ListParams{SortBy: "password"})
	assert.ErrorIs(t, err, ierr.ErrValidation)
}

func TestDashboardSummary(t *testing.T) {
	f := newFixture(t)
	soon := f.generate(t, license.StatusActive, day0)
	f.generate(t, license.StatusActive, daysAfter(60))
	f.generate(t, license.StatusInactive, day0)
	_, err := f.activation.Activate(f.ctx, activateInput(soon, "pc-1"), daysAfter(1))
	require.NoError(t, err)

	summary, err := f.lifecycle.GetDashboardSummary(f.ctx, daysAfter(10), 30)
	require.NoError(t, err)

	assert.Equal(t, int64(3), summary.TotalLicenses)
	assert.Equal(t, int64(2), summary.StatusCounts[license.StatusActive])
	assert.Equal(t, int64(1), summary.StatusCounts[license.StatusInactive])
	assert.Equal(t, int64(0), summary.StatusCounts[license.StatusExpired])
	assert.Equal(t, int64(1), summary.TotalDevices)
	assert.Equal(t, int64(1), summary.ExpiringSoon.Count)
	assert.Equal(t, 30, summary.ExpiringSoon.PeriodDays)
	require.NotNil(t, summary.ExpiringSoon.NextToExpire)
	assert.Equal(t, soon.ID, summary.ExpiringSoon.NextToExpire.ID)
}
