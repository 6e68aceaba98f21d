package models

import (
	"time"

	"github.com/google/uuid"
)

// ProductVariant is a sellable variation of a product. Prices and stock
// attach here, never to the parent product.
type ProductVariant struct {
	ID          uuid.UUID      `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	ProductID   uuid.UUID      `gorm:"column:product_id;type:uuid;not null;index"`
	SKU         string         `gorm:"column:sku;not null;uniqueIndex"`
	Name        string         `gorm:"column:name;not null"`
	IsActive    bool           `gorm:"column:is_active;not null;default:true"`
	Prices      []VariantPrice `gorm:"foreignKey:VariantID;constraint:OnDelete:CASCADE"`
	StockLevels []StockLevel   `gorm:"foreignKey:VariantID;constraint:OnDelete:CASCADE"`
	CreatedAt   time.Time      `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt   time.Time      `gorm:"column:updated_at;autoUpdateTime"`
}
