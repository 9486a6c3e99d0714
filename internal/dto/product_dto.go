package dto

import (
	"time"

	"github.com/sigap-app/sigap-api/internal/models"
)

// PaginationMeta captures pagination metadata for list responses.
type PaginationMeta struct {
	Page       int   `json:"page"`
	PageSize   int   `json:"page_size"`
	TotalItems int64 `json:"total_items"`
	TotalPages int   `json:"total_pages"`
}

// ProductResponse serializes a catalog entry.
type ProductResponse struct {
	ID        uint      `json:"id"`
	SKU       string    `json:"sku"`
	Name      string    `json:"name"`
	Category  string    `json:"category"`
	Unit      string    `json:"unit"`
	Price     float64   `json:"price"`
	IsActive  bool      `json:"is_active"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// ProductListResponse wraps a paginated catalog listing.
type ProductListResponse struct {
	Items      []ProductResponse `json:"items"`
	Pagination PaginationMeta    `json:"pagination"`
	CacheHit   bool              `json:"cache_hit"`
}

// ProductSeedItem is one catalog row in a seed payload.
type ProductSeedItem struct {
	SKU      string  `json:"sku" validate:"required,min=1,max=64"`
	Name     string  `json:"name" validate:"required,min=1,max=255"`
	Category string  `json:"category" validate:"omitempty,max=64"`
	Unit     string  `json:"unit" validate:"omitempty,max=32"`
	Price    float64 `json:"price" validate:"gte=0"`
	IsActive *bool   `json:"is_active" validate:"omitempty"`
}

// ProductSeedRequest carries a batch of catalog rows to upsert.
type ProductSeedRequest struct {
	Items []ProductSeedItem `json:"items" validate:"required,min=1,max=500,dive"`
}

// ProductSeedResponse reports how many rows a seed run touched.
type ProductSeedResponse struct {
	Seeded int `json:"seeded"`
}

// NewProductResponse converts a product model into a DTO.
func NewProductResponse(model models.Product) ProductResponse {
	return ProductResponse{
		ID:        model.ID,
		SKU:       model.SKU,
		Name:      model.Name,
		Category:  model.Category,
		Unit:      model.Unit,
		Price:     model.Price,
		IsActive:  model.IsActive,
		CreatedAt: model.CreatedAt,
		UpdatedAt: model.UpdatedAt,
	}
}

// NewProductResponseSlice converts product models into DTOs.
func NewProductResponseSlice(products []models.Product) []ProductResponse {
	responses := make([]ProductResponse, 0, len(products))
	for _, product := range products {
		responses = append(responses, NewProductResponse(product))
	}
	return responses
}
