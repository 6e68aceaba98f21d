package models

import (
	"time"

	"github.com/google/uuid"
)

// Warehouse is a physical or logical stock location. Whether stock may go
// below zero is a property of the location, not of the variant stored there.
type Warehouse struct {
	ID                 uuid.UUID `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	Code               string    `gorm:"column:code;not null;uniqueIndex"`
	Name               string    `gorm:"column:name;not null"`
	AllowNegativeStock bool      `gorm:"column:allow_negative_stock;not null;default:false"`
	CreatedAt          time.Time `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt          time.Time `gorm:"column:updated_at;autoUpdateTime"`
}
