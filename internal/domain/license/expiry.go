package license

import (
	"database/sql"
	"time"
)

const day = 24 * time.Hour

// ComputeExpiry returns anchor + durationDays days, or a null time for
// perpetual plans (durationDays == 0).
func ComputeExpiry(anchor time.Time, durationDays int) sql.NullTime {
	if durationDays <= 0 {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: anchor.UTC().Add(time.Duration(durationDays) * day), Valid: true}
}

// IsExpired reports whether expiresAt lies strictly before now. A null expiry never expires.
func IsExpired(expiresAt sql.NullTime, now time.Time) bool {
	if !expiresAt.Valid {
		return false
	}
	return expiresAt.Time.Before(now)
}

// EffectiveStatus folds expiry into the stored status. Expired is terminal:
// it is never mapped back to active or inactive.
func EffectiveStatus(current LicenseStatus, expiresAt sql.NullTime, now time.Time) LicenseStatus {
	if current == StatusExpired || IsExpired(expiresAt, now) {
		return StatusExpired
	}
	return current
}

// DeriveStatus is the issuance and payment-gating policy: expired wins,
// then a paid license is active, anything else is inactive.
func DeriveStatus(expiresAt sql.NullTime, paid bool, now time.Time) LicenseStatus {
	switch {
	case IsExpired(expiresAt, now):
		return StatusExpired
	case paid:
		return StatusActive
	default:
		return StatusInactive
	}
}
