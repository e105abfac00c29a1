package device

import (
	"context"
	"time"

	"github.com/google/uuid"
)

type Repository interface {
	// Admit binds candidate to its license unless the license already holds
	// limit devices. A candidate whose ComputerID is already bound refreshes
	// that row's LastSeenAt instead. The whole check-and-insert is atomic per license.
	Admit(ctx context.Context, candidate *Device, limit int) (AdmitResult, error)
	FindByID(ctx context.Context, id uuid.UUID) (*Device, error)
	FindByLicenseAndComputer(ctx context.Context, licenseID uuid.UUID, computerID string) (*Device, error)
	ListByLicense(ctx context.Context, licenseID uuid.UUID) ([]*Device, error)
	TouchLastSeen(ctx context.Context, id uuid.UUID, at time.Time) error
	UpdateHardware(ctx context.Context, d *Device) error
	Delete(ctx context.Context, id uuid.UUID) error
	DeleteByLicense(ctx context.Context, licenseID uuid.UUID) (int64, error)
	Count(ctx context.Context) (int64, error)
}
