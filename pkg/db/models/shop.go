package models

import (
	"time"

	"github.com/google/uuid"
)

// Shop is a connected PrestaShop storefront.
type Shop struct {
	ID        uuid.UUID `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	Name      string    `gorm:"column:name;not null"`
	BaseURL   string    `gorm:"column:base_url;not null"`
	APIKey    string    `gorm:"column:api_key;not null"`
	IsActive  bool      `gorm:"column:is_active;not null;default:true"`
	CreatedAt time.Time `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt time.Time `gorm:"column:updated_at;autoUpdateTime"`
}
