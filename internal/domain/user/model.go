package user

import (
	"time"

	"github.com/google/uuid"
)

type Role string

const (
	RoleAdmin    Role = "admin"
	RoleStaff    Role = "staff"
	RoleCustomer Role = "customer"
)

type User struct {
	ID           uuid.UUID     `db:"id"`
	CompanyID    uuid.NullUUID `db:"company_id"`
	Username     string        `db:"username"`
	Email        string        `db:"email"`
	PasswordHash string        `db:"password_hash"`
	Role         Role          `db:"role"`
	CreatedAt    time.Time     `db:"created_at"`
}
