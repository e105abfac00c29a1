package activity

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

const (
	ActionLicenseGenerated    = "license.generated"
	ActionLicenseEdited       = "license.edited"
	ActionLicenseDeleted      = "license.deleted"
	ActionLicenseStatusChange = "license.status_changed"
	ActionLicenseActivated    = "license.activated"
	ActionDeviceAdded         = "device.added"
	ActionDeviceUpdated       = "device.updated"
	ActionDeviceDeactivated   = "device.deactivated"
	ActionInvoiceCreated      = "invoice.created"
	ActionInvoiceUpdated      = "invoice.updated"
	ActionInvoicePaid         = "invoice.paid"
)

type Event struct {
	ID         uuid.UUID       `db:"id"`
	ActorID    uuid.NullUUID   `db:"actor_id"`
	Action     string          `db:"action"`
	EntityType string          `db:"entity_type"`
	EntityID   string          `db:"entity_id"`
	Details    json.RawMessage `db:"details"`
	CreatedAt  time.Time       `db:"created_at"`
}

type Repository interface {
	Create(ctx context.Context, e *Event) error
}
