package models

import (
	"time"

	dbtypes "github.com/pawelnowak/pimhub-backend/pkg/db/types"
	"github.com/google/uuid"

	"github.com/pawelnowak/pimhub-backend/pkg/enums"
)

// User is a back-office operator account.
type User struct {
	ID           uuid.UUID         `gorm:"type:uuid;default:gen_random_uuid();primaryKey"`
	Email        string            `gorm:"type:text;not null;uniqueIndex"`
	PasswordHash string            `gorm:"column:password_hash;not null"`
	FirstName    string            `gorm:"column:first_name;not null"`
	LastName     string            `gorm:"column:last_name;not null"`
	Role         enums.UserRole    `gorm:"column:role;type:text;not null;default:'viewer'"`
	IsActive     bool              `gorm:"column:is_active;not null;default:true"`
	LastLoginAt  *time.Time        `gorm:"column:last_login_at"`
	ShopIDs      dbtypes.UUIDArray `gorm:"type:uuid[];column:shop_ids;not null;default:ARRAY[]::uuid[]"`
	CreatedAt    time.Time         `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt    time.Time         `gorm:"column:updated_at;autoUpdateTime"`
}
