package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// VariantPrice is the price of one variant in one price group.
type VariantPrice struct {
	ID           uuid.UUID       `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	VariantID    uuid.UUID       `gorm:"column:variant_id;type:uuid;not null;uniqueIndex:uq_variant_prices_group"`
	PriceGroupID uuid.UUID       `gorm:"column:price_group_id;type:uuid;not null;uniqueIndex:uq_variant_prices_group"`
	Amount       decimal.Decimal `gorm:"column:amount;type:numeric(12,2);not null"`
	CreatedAt    time.Time       `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt    time.Time       `gorm:"column:updated_at;autoUpdateTime"`
}
