package dto

import (
	"time"

	"github.com/google/uuid"
	"github.com/makkenzo/license-backoffice/internal/domain/apikey"
)

// CreateAPIKeyRequest omits product_id for a key that works with every product.
type CreateAPIKeyRequest struct {
	Description string     `json:"description" binding:"required,max=200"`
	ProductID   *uuid.UUID `json:"product_id"`
}

type CreateAPIKeyResponse struct {
	APIKeyResponse
	FullKey string `json:"full_key"`
}

type APIKeyResponse struct {
	ID          uuid.UUID  `json:"id"`
	Prefix      string     `json:"prefix"`
	Description string     `json:"description"`
	ProductID   *uuid.UUID `json:"product_id,omitempty"`
	IsEnabled   bool       `json:"is_enabled"`
	CreatedAt   time.Time  `json:"created_at"`
	LastUsedAt  *time.Time `json:"last_used_at,omitempty"`
}

func NewAPIKeyResponse(k *apikey.APIKey) *APIKeyResponse {
	resp := &APIKeyResponse{
		ID:          k.ID,
		Prefix:      k.Prefix,
		Description: k.Description,
		IsEnabled:   k.IsEnabled,
		CreatedAt:   k.CreatedAt,
		LastUsedAt:  k.LastUsedAt,
	}
	if k.ProductScoped() {
		id := k.ProductID
		resp.ProductID = &id
	}
	return resp
}
