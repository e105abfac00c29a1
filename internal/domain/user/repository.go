package user

import (
	"context"

	"github.com/google/uuid"
)

type Repository interface {
	Create(ctx context.Context, u *User) error
	FindByID(ctx context.Context, id uuid.UUID) (*User, error)
	FindByUsername(ctx context.Context, username string) (*User, error)
	// ListByCompany returns the company's users ordered by creation time, oldest first.
	ListByCompany(ctx context.Context, companyID uuid.UUID) ([]*User, error)
}
