package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/pawelnowak/pimhub-backend/pkg/enums"
)

// Notification is a persisted toast shown in the back office.
type Notification struct {
	ID        uuid.UUID                  `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	UserID    *uuid.UUID                 `gorm:"column:user_id;type:uuid;index"`
	Severity  enums.NotificationSeverity `gorm:"column:severity;type:text;not null"`
	Title     string                     `gorm:"column:title;not null"`
	Body      *string                    `gorm:"column:body"`
	ReadAt    *time.Time                 `gorm:"column:read_at"`
	CreatedAt time.Time                  `gorm:"column:created_at;autoCreateTime"`
}
