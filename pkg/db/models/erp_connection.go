package models

import (
	"time"

	"github.com/google/uuid"
)

// ERPConnection is a connected warehouse/ERP account reached through the
// Baselinker connector API.
type ERPConnection struct {
	ID        uuid.UUID `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	Name      string    `gorm:"column:name;not null"`
	Token     string    `gorm:"column:token;not null"`
	IsActive  bool      `gorm:"column:is_active;not null;default:true"`
	CreatedAt time.Time `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt time.Time `gorm:"column:updated_at;autoUpdateTime"`
}
