package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/pawelnowak/pimhub-backend/pkg/enums"
)

// MediaMapping records the persisted link between a media item and one
// remote target. A row with Synced=true means the remote copy exists under
// ExternalID; absence of a row means the item was never synced there.
type MediaMapping struct {
	ID           uuid.UUID        `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	MediaItemID  uuid.UUID        `gorm:"column:media_item_id;type:uuid;not null;uniqueIndex:uq_media_mappings_item_target"`
	TargetType   enums.TargetType `gorm:"column:target_type;type:text;not null;uniqueIndex:uq_media_mappings_item_target"`
	TargetID     uuid.UUID        `gorm:"column:target_id;type:uuid;not null;uniqueIndex:uq_media_mappings_item_target"`
	ExternalID   *string          `gorm:"column:external_id;uniqueIndex:uq_media_mappings_target_external"`
	Synced       bool             `gorm:"column:synced;not null;default:false"`
	LastError    *string          `gorm:"column:last_error"`
	LastSyncedAt *time.Time       `gorm:"column:last_synced_at"`
	CreatedAt    time.Time        `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt    time.Time        `gorm:"column:updated_at;autoUpdateTime"`
}
