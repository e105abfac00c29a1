package service

import (
	"testing"

	"github.com/google/uuid"
	"github.com/makkenzo/license-backoffice/internal/domain/device"
	"github.com/makkenzo/license-backoffice/internal/domain/license"
	"github.com/makkenzo/license-backoffice/internal/ierr"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDeviceRegistry_AddDevice(t *testing.T) {
	f := newFixture(t)
	lic := f.generate(t, license.StatusActive, day0)

	d, err := f.registry.AddDevice(f.ctx, lic.ID, "pc-1", device.HardwareInfo{Name: "Office PC", OS: ptr("Windows 11")}, daysAfter(1))
	require.NoError(t, err)
	assert.Equal(t, "pc-1", d.ComputerID)
	assert.Equal(t, "Office PC", d.Name)
	assert.Equal(t, "Windows 11", d.OS.String)
	assert.True(t, d.IsActive)

	t.Run("already bound is a conflict", func(t *testing.T) {
		_, err := f.registry.AddDevice(f.ctx, lic.ID, " pc-1 ", device.HardwareInfo{}, daysAfter(2))
		assert.ErrorIs(t, err, ierr.ErrConflict)

		stored, err := f.store.Devices.FindByID(f.ctx, d.ID)
		require.NoError(t, err)
		assert.True(t, stored.LastSeenAt.Equal(daysAfter(1)), "rejected add leaves the device untouched")
	})

	t.Run("limit applies", func(t *testing.T) {
		_, err := f.registry.AddDevice(f.ctx, lic.ID, "pc-2", device.HardwareInfo{}, daysAfter(1))
		require.NoError(t, err)
		_, err = f.registry.AddDevice(f.ctx, lic.ID, "pc-3", device.HardwareInfo{}, daysAfter(1))
		assert.ErrorIs(t, err, ierr.ErrDeviceLimitReached)
	})

	t.Run("blank computer id", func(t *testing.T) {
		other := f.generate(t, license.StatusActive, day0)
		_, err := f.registry.AddDevice(f.ctx, other.ID, "  ", device.HardwareInfo{}, daysAfter(1))
		assert.ErrorIs(t, err, ierr.ErrValidation)
	})

	t.Run("expired license", func(t *testing.T) {
		other := f.generate(t, license.StatusActive, day0)
		_, err := f.registry.AddDevice(f.ctx, other.ID, "pc-9", device.HardwareInfo{}, daysAfter(31))
		assert.ErrorIs(t, err, ierr.ErrExpiredLicense)
	})

	t.Run("unknown license", func(t *testing.T) {
		_, err := f.registry.AddDevice(f.ctx, uuid.New(), "pc-1", device.HardwareInfo{}, daysAfter(1))
		assert.ErrorIs(t, err, license.ErrNotFound)
	})
}

func TestDeviceRegistry_DeactivateFreesSlot(t *testing.T) {
	f := newFixture(t)
	lic := f.generate(t, license.StatusActive, day0)

	first, err := f.registry.AddDevice(f.ctx, lic.ID, "pc-1", device.HardwareInfo{}, day0)
	require.NoError(t, err)
	_, err = f.registry.AddDevice(f.ctx, lic.ID, "pc-2", device.HardwareInfo{}, day0)
	require.NoError(t, err)

	require.NoError(t, f.registry.Deactivate(f.ctx, first.ID))

	_, err = f.registry.AddDevice(f.ctx, lic.ID, "pc-3", device.HardwareInfo{}, day0)
	require.NoError(t, err)

	devices, err := f.registry.ListDevices(f.ctx, lic.ID)
	require.NoError(t, err)
	var ids []string
	for _, d := range devices {
		ids = append(ids, d.ComputerID)
	}
	assert.ElementsMatch(t, []string{"pc-2", "pc-3"}, ids)

	err = f.registry.Deactivate(f.ctx, first.ID)
	assert.ErrorIs(t, err, device.ErrNotFound)
}

func TestDeviceRegistry_UpdateHardware(t *testing.T) {
	f := newFixture(t)
	lic := f.generate(t, license.StatusActive, day0)
	d, err := f.registry.AddDevice(f.ctx, lic.ID, "pc-1", device.HardwareInfo{Name: "old", RAM: ptr("8GB")}, day0)
	require.NoError(t, err)

	updated, err := f.registry.UpdateHardware(f.ctx, d.ID, device.HardwareInfo{Name: "new", Processor: ptr("M3")})
	require.NoError(t, err)
	assert.Equal(t, "new", updated.Name)
	assert.Equal(t, "M3", updated.Processor.String)
	assert.Equal(t, "8GB", updated.RAM.String, "fields not supplied are kept")

	_, err = f.registry.UpdateHardware(f.ctx, uuid.New(), device.HardwareInfo{Name: "x"})
	assert.ErrorIs(t, err, device.ErrNotFound)
}

func TestDeviceRegistry_Heartbeat(t *testing.T) {
	f := newFixture(t)
	lic := f.generate(t, license.StatusActive, day0)
	_, err := f.registry.AddDevice(f.ctx, lic.ID, "pc-1", device.HardwareInfo{}, day0)
	require.NoError(t, err)

	d, err := f.registry.Heartbeat(f.ctx, lic.ID, "pc-1", daysAfter(3))
	require.NoError(t, err)
	assert.True(t, d.LastSeenAt.Equal(daysAfter(3)))

	_, err = f.registry.Heartbeat(f.ctx, lic.ID, "pc-unknown", daysAfter(3))
	assert.ErrorIs(t, err, ierr.ErrDeviceNotFound)
}

func TestDeviceRegistry_ListDevicesUnknownLicense(t *testing.T) {
	f := newFixture(t)
	_, err := f.registry.ListDevices(f.ctx, uuid.New())
	assert.ErrorIs(t, err, license.ErrNotFound)
}
