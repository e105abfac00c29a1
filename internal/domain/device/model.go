package device

import (
	"database/sql"
	"errors"
	"time"

	"github.com/google/uuid"
)

var (
	ErrNotFound     = errors.New("device not found")
	ErrAlreadyBound = errors.New("device already bound to license")
)

// Device is a machine bound to a license. ComputerID is the client-supplied
// stable identifier; a license holds at most one row per ComputerID.
type Device struct {
	ID          uuid.UUID      `db:"id"`
	LicenseID   uuid.UUID      `db:"license_id"`
	ComputerID  string         `db:"computer_id"`
	Name        string         `db:"name"`
	OS          sql.NullString `db:"os"`
	Processor   sql.NullString `db:"processor"`
	RAM         sql.NullString `db:"ram"`
	IsActive    bool           `db:"is_active"`
	ActivatedAt time.Time      `db:"activated_at"`
	LastSeenAt  time.Time      `db:"last_seen_at"`
}

type HardwareInfo struct {
	Name      string
	OS        *string
	Processor *string
	RAM       *string
}

// Apply copies the hardware fields onto d. Nil pointers leave the field untouched.
func (h HardwareInfo) Apply(d *Device) {
	if h.Name != "" {
		d.Name = h.Name
	}
	if h.OS != nil {
		d.OS = sql.NullString{String: *h.OS, Valid: true}
	}
	if h.Processor != nil {
		d.Processor = sql.NullString{String: *h.Processor, Valid: true}
	}
	if h.RAM != nil {
		d.RAM = sql.NullString{String: *h.RAM, Valid: true}
	}
}

type AdmitOutcome int

const (
	OutcomeAdmitted AdmitOutcome = iota + 1
	OutcomeAlreadyKnown
	OutcomeLimitReached
)

func (o AdmitOutcome) String() string {
	switch o {
	case OutcomeAdmitted:
		return "admitted"
	case OutcomeAlreadyKnown:
		return "already_known"
	case OutcomeLimitReached:
		return "limit_reached"
	default:
		return "unknown"
	}
}

// AdmitResult carries the stored device for Admitted and AlreadyKnown; it is nil
// for LimitReached.
type AdmitResult struct {
	Outcome AdmitOutcome
	Device  *Device
}
