package plan

import (
	"errors"
	"time"

	"github.com/google/uuid"
)

var ErrNotFound = errors.New("plan not found")

// Plan carries the entitlements a license inherits: how many devices may be
// bound and for how long. DurationDays == 0 means the license never expires.
type Plan struct {
	ID           uuid.UUID `db:"id" json:"id"`
	ProductID    uuid.UUID `db:"product_id" json:"product_id"`
	Name         string    `db:"name" json:"name"`
	PriceCents   int64     `db:"price_cents" json:"price_cents"`
	DeviceLimit  int       `db:"device_limit" json:"device_limit"`
	DurationDays int       `db:"duration_days" json:"duration_days"`
	CreatedAt    time.Time `db:"created_at" json:"created_at"`
}

func (p *Plan) Perpetual() bool {
	return p.DurationDays == 0
}
