package service

import (
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/makkenzo/license-backoffice/internal/domain/device"
	"github.com/makkenzo/license-backoffice/internal/domain/invoice"
	"github.com/makkenzo/license-backoffice/internal/domain/license"
	"github.com/makkenzo/license-backoffice/internal/ierr"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func activateInput(lic *license.License, computerID string) ActivateInput {
	return ActivateInput{
		LicenseKey:  lic.LicenseKey,
		ProductName: "AwesomeApp",
		ComputerID:  computerID,
		Hardware:    device.HardwareInfo{Name: computerID, OS: ptr("linux")},
	}
}

func TestActivateThenExpireOverTime(t *testing.T) {
	f := newFixture(t)
	companyID := uuid.New()
	f.addCompanyUser(t, companyID, "owner", day0)

	res, err := f.invoices.CreateInvoice(f.ctx, CreateInvoiceInput{
		CompanyID: companyID,
		IssueDate: day0,
		DueDate:   daysAfter(14),
		Status:    invoice.StatusPaid,
		LineItems: []LineItemInput{{PlanID: f.plan.ID, Quantity: 1, UnitPriceCents: 1000}},
	}, day0)
	require.NoError(t, err)
	require.Len(t, res.Licenses, 1)
	lic := res.Licenses[0]
	require.True(t, lic.ExpiresAt.Valid)
	assert.Equal(t, daysAfter(30), lic.ExpiresAt.Time)

	act, err := f.activation.Activate(f.ctx, activateInput(lic, "pc-1"), daysAfter(29))
	require.NoError(t, err)
	assert.Equal(t, device.OutcomeAdmitted, act.Outcome)
	assert.Equal(t, license.StatusActive, act.License.Status)

	hb, err := f.activation.Heartbeat(f.ctx, HeartbeatInput{LicenseKey: lic.LicenseKey, ComputerID: "pc-1"}, daysAfter(31))
	require.NoError(t, err)
	assert.Equal(t, license.StatusExpired, hb.Status)
	assert.Equal(t, license.StatusExpired, f.reload(t, lic.ID).Status)

	_, err = f.activation.Activate(f.ctx, activateInput(lic, "pc-2"), daysAfter(32))
	assert.ErrorIs(t, err, ierr.ErrExpiredLicense)

	devices, err := f.store.Devices.ListByLicense(f.ctx, lic.ID)
	require.NoError(t, err)
	assert.Len(t, devices, 1)
}

func TestActivateFlipsStandaloneLicenseToActive(t *testing.T) {
	f := newFixture(t)
	lic := f.generate(t, license.StatusInactive, day0)

	res, err := f.activation.Activate(f.ctx, activateInput(lic, "pc-1"), daysAfter(1))
	require.NoError(t, err)
	assert.Equal(t, device.OutcomeAdmitted, res.Outcome)
	assert.Equal(t, license.StatusActive, res.License.Status)
	assert.Equal(t, license.StatusActive, f.reload(t, lic.ID).Status)
	require.NotNil(t, res.Device)
	assert.Equal(t, "pc-1", res.Device.ComputerID)
	assert.Equal(t, "linux", res.Device.OS.String)
}

func TestActivateLeavesUnpaidInvoiceLicenseInactive(t *testing.T) {
	f := newFixture(t)
	companyID := uuid.New()
	f.addCompanyUser(t, companyID, "owner", day0)

	res, err := f.invoices.CreateInvoice(f.ctx, CreateInvoiceInput{
		CompanyID: companyID,
		IssueDate: day0,
		DueDate:   daysAfter(14),
		LineItems: []LineItemInput{{PlanID: f.plan.ID, Quantity: 1}},
	}, day0)
	require.NoError(t, err)
	lic := res.Licenses[0]
	require.Equal(t, license.StatusInactive, lic.Status)

	act, err := f.activation.Activate(f.ctx, activateInput(lic, "pc-1"), daysAfter(1))
	require.NoError(t, err)
	assert.Equal(t, device.OutcomeAdmitted, act.Outcome)
	assert.Equal(t, license.StatusInactive, f.reload(t, lic.ID).Status)
}

func TestActivateIsIdempotentPerComputer(t *testing.T) {
	f := newFixture(t)
	lic := f.generate(t, license.StatusActive, day0)

	first, err := f.activation.Activate(f.ctx, activateInput(lic, "pc-1"), daysAfter(1))
	require.NoError(t, err)
	second, err := f.activation.Activate(f.ctx, activateInput(lic, "pc-1"), daysAfter(2))
	require.NoError(t, err)

	assert.Equal(t, device.OutcomeAlreadyKnown, second.Outcome)
	assert.Equal(t, first.Device.ID, second.Device.ID)
	assert.Equal(t, daysAfter(2), second.Device.LastSeenAt)

	devices, err := f.store.Devices.ListByLicense(f.ctx, lic.ID)
	require.NoError(t, err)
	assert.Len(t, devices, 1)
}

func TestActivateEnforcesDeviceLimit(t *testing.T) {
	f := newFixture(t)
	lic := f.generate(t, license.StatusActive, day0)

	_, err := f.activation.Activate(f.ctx, activateInput(lic, "pc-1"), daysAfter(1))
	require.NoError(t, err)
	_, err = f.activation.Activate(f.ctx, activateInput(lic, "pc-2"), daysAfter(1))
	require.NoError(t, err)

	res, err := f.activation.Activate(f.ctx, activateInput(lic, "pc-3"), daysAfter(1))
	assert.ErrorIs(t, err, ierr.ErrDeviceLimitReached)
	require.NotNil(t, res)
	assert.Equal(t, device.OutcomeLimitReached, res.Outcome)

	// a bound device still gets through at the limit
	_, err = f.activation.Activate(f.ctx, activateInput(lic, "pc-2"), daysAfter(2))
	assert.NoError(t, err)
}

func TestConcurrentActivationsRespectLimit(t *testing.T) {
	f := newFixture(t)
	lic := f.generate(t, license.StatusActive, day0)

	const attempts = 3
	var (
		wg       sync.WaitGroup
		mu       sync.Mutex
		admitted int
		rejected int
	)
	for i := 0; i < attempts; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, err := f.activation.Activate(f.ctx, activateInput(lic, "pc-"+string(rune('a'+i))), daysAfter(1))
			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				admitted++
			case assert.ErrorIs(t, err, ierr.ErrDeviceLimitReached):
				rejected++
			}
		}(i)
	}
	wg.Wait()

	assert.Equal(t, 2, admitted)
	assert.Equal(t, 1, rejected)
	devices, err := f.store.Devices.ListByLicense(f.ctx, lic.ID)
	require.NoError(t, err)
	assert.Len(t, devices, 2)
}

func TestActivateRejectsUnknownOrForeignKeys(t *testing.T) {
	f := newFixture(t)
	lic := f.generate(t, license.StatusActive, day0)
	other := f.addProduct(t, "OtherApp")

	tests := []struct {
		name string
		in   ActivateInput
		want error
	}{
		{"unknown key", ActivateInput{LicenseKey: "AAAAA-BBBBB", ProductName: "AwesomeApp", ComputerID: "pc"}, ierr.ErrInvalidLicenseKey},
		{"wrong product", ActivateInput{LicenseKey: lic.LicenseKey, ProductName: "OtherApp", ComputerID: "pc"}, ierr.ErrInvalidLicenseKey},
		{"foreign api key scope", ActivateInput{LicenseKey: lic.LicenseKey, ProductName: "AwesomeApp", ComputerID: "pc", ScopeProductID: other.ID}, ierr.ErrInvalidLicenseKey},
		{"missing computer id", ActivateInput{LicenseKey: lic.LicenseKey, ProductName: "AwesomeApp"}, ierr.ErrValidation},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := f.activation.Activate(f.ctx, tt.in, daysAfter(1))
			assert.ErrorIs(t, err, tt.want)
		})
	}

	devices, err := f.store.Devices.ListByLicense(f.ctx, lic.ID)
	require.NoError(t, err)
	assert.Empty(t, devices)
}

func TestActivateNormalizesKeyAndProductName(t *testing.T) {
	f := newFixture(t)
	lic := f.generate(t, license.StatusActive, day0)

	in := activateInput(lic, "pc-1")
	in.LicenseKey = "  " + strings.ToLower(lic.LicenseKey) + " "
	in.ProductName = "awesomeapp"
	in.ScopeProductID = f.product.ID

	_, err := f.activation.Activate(f.ctx, in, daysAfter(1))
	assert.NoError(t, err)
}

func TestActivateFallsBackToSingleDeviceWithoutPlan(t *testing.T) {
	f := newFixture(t)
	lic := f.generate(t, license.StatusActive, day0)
	lic.PlanID = uuid.New()
	require.NoError(t, f.store.Licenses.Update(f.ctx, lic))

	_, err := f.activation.Activate(f.ctx, activateInput(lic, "pc-1"), daysAfter(1))
	require.NoError(t, err)
	_, err = f.activation.Activate(f.ctx, activateInput(lic, "pc-2"), daysAfter(1))
	assert.ErrorIs(t, err, ierr.ErrDeviceLimitReached)
}

func TestHeartbeat(t *testing.T) {
	f := newFixture(t)
	lic := f.generate(t, license.StatusActive, day0)
	_, err := f.activation.Activate(f.ctx, activateInput(lic, "pc-1"), daysAfter(1))
	require.NoError(t, err)

	t.Run("refreshes last seen", func(t *testing.T) {
		seen := daysAfter(3).Add(5 * time.Minute)
		res, err := f.activation.Heartbeat(f.ctx, HeartbeatInput{LicenseKey: lic.LicenseKey, ComputerID: "pc-1"}, seen)
		require.NoError(t, err)
		assert.Equal(t, license.StatusActive, res.Status)

		d, err := f.store.Devices.FindByLicenseAndComputer(f.ctx, lic.ID, "pc-1")
		require.NoError(t, err)
		assert.Equal(t, seen, d.LastSeenAt)
	})

	t.Run("unknown device", func(t *testing.T) {
		_, err := f.activation.Heartbeat(f.ctx, HeartbeatInput{LicenseKey: lic.LicenseKey, ComputerID: "pc-9"}, daysAfter(3))
		assert.ErrorIs(t, err, ierr.ErrDeviceNotFound)

		_, err = f.store.Devices.FindByLicenseAndComputer(f.ctx, lic.ID, "pc-9")
		assert.ErrorIs(t, err, device.ErrNotFound)
	})

	t.Run("unknown license", func(t *testing.T) {
		_, err := f.activation.Heartbeat(f.ctx, HeartbeatInput{LicenseKey: "NOPE", ComputerID: "pc-1"}, daysAfter(3))
		assert.ErrorIs(t, err, ierr.ErrLicenseNotFound)
	})

	t.Run("foreign api key scope", func(t *testing.T) {
		_, err := f.activation.Heartbeat(f.ctx, HeartbeatInput{
			LicenseKey:     lic.LicenseKey,
			ComputerID:     "pc-1",
			ScopeProductID: uuid.New(),
		}, daysAfter(3))
		assert.ErrorIs(t, err, ierr.ErrLicenseNotFound)
	})
}
