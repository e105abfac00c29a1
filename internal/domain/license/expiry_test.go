package license

import (
	"database/sql"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

var anchor = time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)

func at(t time.Time) sql.NullTime { return sql.NullTime{Time: t, Valid: true} }

func TestComputeExpiry(t *testing.T) {
	assert.False(t, ComputeExpiry(anchor, 0).Valid, "zero duration is perpetual")

	got := ComputeExpiry(anchor, 30)
	assert.True(t, got.Valid)
	assert.Equal(t, anchor.Add(30*24*time.Hour), got.Time)

	local := anchor.In(time.FixedZone("UTC+5", 5*3600))
	assert.Equal(t, time.UTC, ComputeExpiry(local, 1).Time.Location())
}

func TestIsExpired(t *testing.T) {
	tests := []struct {
		name      string
		expiresAt sql.NullTime
		now       time.Time
		want      bool
	}{
		{"perpetual", sql.NullTime{}, anchor.AddDate(100, 0, 0), false},
		{"future", at(anchor.Add(time.Hour)), anchor, false},
		{"exactly now", at(anchor), anchor, false},
		{"past", at(anchor.Add(-time.Nanosecond)), anchor, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, IsExpired(tt.expiresAt, tt.now))
		})
	}
}

func TestEffectiveStatus(t *testing.T) {
	past := at(anchor.Add(-time.Hour))
	future := at(anchor.Add(time.Hour))

	assert.Equal(t, StatusActive, EffectiveStatus(StatusActive, future, anchor))
	assert.Equal(t, StatusInactive, EffectiveStatus(StatusInactive, sql.NullTime{}, anchor))
	assert.Equal(t, StatusExpired, EffectiveStatus(StatusActive, past, anchor))
	assert.Equal(t, StatusExpired, EffectiveStatus(StatusInactive, past, anchor))

	// terminal even if the expiry was later pushed forward
	assert.Equal(t, StatusExpired, EffectiveStatus(StatusExpired, future, anchor))
}

func TestDeriveStatus(t *testing.T) {
	past := at(anchor.Add(-time.Hour))
	future := at(anchor.Add(time.Hour))

	assert.Equal(t, StatusExpired, DeriveStatus(past, true, anchor))
	assert.Equal(t, StatusExpired, DeriveStatus(past, false, anchor))
	assert.Equal(t, StatusActive, DeriveStatus(future, true, anchor))
	assert.Equal(t, StatusInactive, DeriveStatus(future, false, anchor))
	assert.Equal(t, StatusActive, DeriveStatus(sql.NullTime{}, true, anchor))
}

func TestLicenseStatusValid(t *testing.T) {
	assert.True(t, StatusActive.Valid())
	assert.True(t, StatusExpired.Valid())
	assert.False(t, LicenseStatus("revoked").Valid())
}
