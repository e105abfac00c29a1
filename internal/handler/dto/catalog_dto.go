package dto

import (
	"time"

	"github.com/google/uuid"
	"github.com/makkenzo/license-backoffice/internal/domain/product"
	"github.com/makkenzo/license-backoffice/internal/domain/user"
)

type CreateProductRequest struct {
	Name        string  `json:"name" binding:"required"`
	Description *string `json:"description"`
}

type ProductResponse struct {
	ID          uuid.UUID `json:"id"`
	Name        string    `json:"name"`
	Description *string   `json:"description,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
}

func NewProductResponse(p *product.Product) *ProductResponse {
	return &ProductResponse{
		ID:          p.ID,
		Name:        p.Name,
		Description: nullString(p.Description.String, p.Description.Valid),
		CreatedAt:   p.CreatedAt,
	}
}

type CreatePlanRequest struct {
	ProductID    uuid.UUID `json:"product_id" binding:"required"`
	Name         string    `json:"name" binding:"required"`
	PriceCents   int64     `json:"price_cents" binding:"gte=0"`
	DeviceLimit  int       `json:"device_limit" binding:"gte=0"`
	DurationDays int       `json:"duration_days" binding:"gte=0"`
}

type ListPlansRequest struct {
	ProductID string `form:"product_id" binding:"omitempty,uuid"`
}

type CreateUserRequest struct {
	Username  string     `json:"username" binding:"required"`
	Email     string     `json:"email" binding:"required,email"`
	Password  string     `json:"password" binding:"required,min=8"`
	Role      user.Role  `json:"role" binding:"required,oneof=admin staff customer"`
	CompanyID *uuid.UUID `json:"company_id"`
}

type ListUsersRequest struct {
	CompanyID string `form:"company_id" binding:"required,uuid"`
}

type UserResponse struct {
	ID        uuid.UUID  `json:"id"`
	CompanyID *uuid.UUID `json:"company_id,omitempty"`
	Username  string     `json:"username"`
	Email     string     `json:"email"`
	Role      user.Role  `json:"role"`
	CreatedAt time.Time  `json:"created_at"`
}

func NewUserResponse(u *user.User) *UserResponse {
	resp := &UserResponse{
		ID:        u.ID,
		Username:  u.Username,
		Email:     u.Email,
		Role:      u.Role,
		CreatedAt: u.CreatedAt,
	}
	if u.CompanyID.Valid {
		resp.CompanyID = &u.CompanyID.UUID
	}
	return resp
}

func (r *ListPlansRequest) ProductUUID() *uuid.UUID {
	return optionalUUID(r.ProductID)
}

func (r *ListUsersRequest) CompanyUUID() uuid.UUID {
	id, _ := uuid.Parse(r.CompanyID)
	return id
}
