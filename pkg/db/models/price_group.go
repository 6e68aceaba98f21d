package models

import (
	"time"

	"github.com/google/uuid"
)

// PriceGroup is a named price list (for example retail or wholesale).
type PriceGroup struct {
	ID        uuid.UUID `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	Code      string    `gorm:"column:code;not null;uniqueIndex"`
	Name      string    `gorm:"column:name;not null"`
	Currency  string    `gorm:"column:currency;not null;default:'PLN'"`
	CreatedAt time.Time `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt time.Time `gorm:"column:updated_at;autoUpdateTime"`
}
