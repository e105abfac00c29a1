package license

import (
	"context"

	"github.com/google/uuid"
)

type Repository interface {
	// CreateBatch inserts all licenses or none of them.
	CreateBatch(ctx context.Context, licenses []*License) error
	FindByID(ctx context.Context, id uuid.UUID) (*License, error)
	FindByKey(ctx context.Context, key string) (*License, error)
	List(ctx context.Context, params ListParams) ([]*License, int64, error)
	ListByInvoice(ctx context.Context, invoiceID uuid.UUID) ([]*License, error)
	// Update and UpdateStatus never move a stored expired license to another
	// status; they return ErrAlreadyExpired instead.
	Update(ctx context.Context, license *License) error
	UpdateStatus(ctx context.Context, id uuid.UUID, status LicenseStatus) error
	Delete(ctx context.Context, id uuid.UUID) error
	CountByStatus(ctx context.Context) (map[LicenseStatus]int64, error)
}
