package models

import "time"

// Product is a catalog entry resolvable by SKU from the field app.
type Product struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	SKU       string    `gorm:"size:64;uniqueIndex;not null" json:"sku"`
	Name      string    `gorm:"size:255;not null" json:"name"`
	Category  string    `gorm:"size:64;index" json:"category"`
	Unit      string    `gorm:"size:32" json:"unit"`
	Price     float64   `json:"price"`
	IsActive  bool      `gorm:"index" json:"is_active"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}
