package invoice

import (
	"context"
	"time"

	"github.com/google/uuid"
)

type Repository interface {
	// Create stores the invoice together with its line items in one transaction.
	Create(ctx context.Context, inv *Invoice) error
	FindByID(ctx context.Context, id uuid.UUID) (*Invoice, error)
	List(ctx context.Context, params ListParams) ([]*Invoice, int64, error)
	// Update writes the header fields; line items are not touched.
	Update(ctx context.Context, inv *Invoice) error
	ListUnpaidDueBefore(ctx context.Context, before time.Time) ([]*Invoice, error)
}
