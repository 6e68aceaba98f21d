package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/pawelnowak/pimhub-backend/pkg/enums"
)

// MediaItem is one entry in a product's gallery.
type MediaItem struct {
	ID        uuid.UUID         `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	ProductID uuid.UUID         `gorm:"column:product_id;type:uuid;not null;index"`
	FileName  string            `gorm:"column:file_name;not null"`
	MimeType  string            `gorm:"column:mime_type;not null"`
	URL       *string           `gorm:"column:url"`
	SourceURL *string           `gorm:"column:source_url"`
	Checksum  string            `gorm:"column:checksum;not null;index"`
	Position  int               `gorm:"column:position;not null;default:0"`
	IsPrimary bool              `gorm:"column:is_primary;not null;default:false"`
	SizeBytes int64             `gorm:"column:size_bytes;not null;default:0"`
	Status    enums.MediaStatus `gorm:"column:status;type:text;not null;default:'ready'"`
	Mappings  []MediaMapping    `gorm:"foreignKey:MediaItemID;constraint:OnDelete:CASCADE"`
	CreatedAt time.Time         `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt time.Time         `gorm:"column:updated_at;autoUpdateTime"`
}
