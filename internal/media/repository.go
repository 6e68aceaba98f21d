package media

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/pawelnowak/pimhub-backend/pkg/db/models"
	"github.com/pawelnowak/pimhub-backend/pkg/enums"
)

// Repository persists gallery items and their per-target mappings.
type Repository struct {
	db *gorm.DB
}

// NewRepository constructs a media repository bound to the provided GORM DB.
func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

// WithTx returns a repository bound to the provided transaction.
func (r *Repository) WithTx(tx *gorm.DB) *Repository {
	return &Repository{db: tx}
}

// CreateItem persists a gallery item.
func (r *Repository) CreateItem(ctx context.Context, item *models.MediaItem) (*models.MediaItem, error) {
	if err := r.db.WithContext(ctx).Create(item).Error; err != nil {
		return nil, err
	}
	return item, nil
}

// FindItem retrieves a gallery item by id.
func (r *Repository) FindItem(ctx context.Context, id uuid.UUID) (*models.MediaItem, error) {
	var item models.MediaItem
	if err := r.db.WithContext(ctx).First(&item, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &item, nil
}

// FindItemByChecksum returns the ready item with the given checksum inside a
// product's gallery, or nil.
func (r *Repository) FindItemByChecksum(ctx context.Context, productID uuid.UUID, checksum string) (*models.MediaItem, error) {
	var item models.MediaItem
	err := r.db.WithContext(ctx).
		Where("product_id = ? AND checksum = ? AND status = ?", productID, checksum, enums.MediaStatusReady).
		First(&item).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &item, nil
}

// ListForProduct returns a product's gallery in display order. Rows marked
// removed await the cleanup sweep and are not part of the gallery.
func (r *Repository) ListForProduct(ctx context.Context, productID uuid.UUID) ([]models.MediaItem, error) {
	var items []models.MediaItem
	if err := r.db.WithContext(ctx).
		Where("product_id = ? AND status <> ?", productID, enums.MediaStatusRemoved).
		Order("position ASC, created_at ASC").
		Find(&items).Error; err != nil {
		return nil, err
	}
	return items, nil
}

// ListStaleBefore returns items stuck in a non-ready state since before the cutoff.
func (r *Repository) ListStaleBefore(ctx context.Context, cutoff time.Time) ([]models.MediaItem, error) {
	var items []models.MediaItem
	if err := r.db.WithContext(ctx).
		Where("status IN ?", []enums.MediaStatus{enums.MediaStatusPendingImport, enums.MediaStatusRemoved}).
		Where("updated_at < ?", cutoff).
		Order("updated_at ASC").
		Find(&items).Error; err != nil {
		return nil, err
	}
	return items, nil
}

// NextPosition returns the position for a newly appended gallery item.
func (r *Repository) NextPosition(ctx context.Context, productID uuid.UUID) (int, error) {
	var max *int
	err := r.db.WithContext(ctx).
		Model(&models.MediaItem{}).
		Where("product_id = ?", productID).
		Select("MAX(position)").
		Scan(&max).Error
	if err != nil {
		return 0, err
	}
	if max == nil {
		return 0, nil
	}
	return *max + 1, nil
}

// UpdateItem persists the mutable fields of a gallery item.
func (r *Repository) UpdateItem(ctx context.Context, item *models.MediaItem) error {
	return r.db.WithContext(ctx).
		Model(&models.MediaItem{}).
		Where("id = ?", item.ID).
		Updates(map[string]any{
			"url":        item.URL,
			"source_url": item.SourceURL,
			"checksum":   item.Checksum,
			"size_bytes": item.SizeBytes,
			"status":     item.Status,
		}).Error
}

// SetPositions rewrites gallery order in one transaction.
func (r *Repository) SetPositions(ctx context.Context, productID uuid.UUID, orderedIDs []uuid.UUID) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		for position, id := range orderedIDs {
			result := tx.Model(&models.MediaItem{}).
				Where("id = ? AND product_id = ?", id, productID).
				Update("position", position)
			if result.Error != nil {
				return result.Error
			}
			if result.RowsAffected == 0 {
				return gorm.ErrRecordNotFound
			}
		}
		return nil
	})
}

// DeleteItem removes a gallery item; its mappings cascade.
func (r *Repository) DeleteItem(ctx context.Context, id uuid.UUID) error {
	return r.db.WithContext(ctx).Where("id = ?", id).Delete(&models.MediaItem{}).Error
}

// SoftDeleteItem marks a gallery item removed so the cleanup sweep can purge
// the row and its storage object later. Removed items never stay primary.
func (r *Repository) SoftDeleteItem(ctx context.Context, id uuid.UUID) error {
	result := r.db.WithContext(ctx).
		Model(&models.MediaItem{}).
		Where("id = ?", id).
		Updates(map[string]any{
			"status":     enums.MediaStatusRemoved,
			"is_primary": false,
		})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

// SetPrimary promotes one gallery item to primary, demoting any previous one,
// in a single transaction.
func (r *Repository) SetPrimary(ctx context.Context, productID, itemID uuid.UUID) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Model(&models.MediaItem{}).
			Where("product_id = ? AND is_primary", productID).
			Update("is_primary", false).Error; err != nil {
			return err
		}
		result := tx.Model(&models.MediaItem{}).
			Where("id = ? AND product_id = ?", itemID, productID).
			Update("is_primary", true)
		if result.Error != nil {
			return result.Error
		}
		if result.RowsAffected == 0 {
			return gorm.ErrRecordNotFound
		}
		return nil
	})
}

// Find returns the mapping for a (media item, target) pair, or nil.
func (r *Repository) Find(ctx context.Context, mediaItemID uuid.UUID, targetType enums.TargetType, targetID uuid.UUID) (*models.MediaMapping, error) {
	var mapping models.MediaMapping
	err := r.db.WithContext(ctx).
		Where("media_item_id = ? AND target_type = ? AND target_id = ?", mediaItemID, targetType, targetID).
		First(&mapping).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &mapping, nil
}

// FindMappingByExternal returns the mapping holding the given remote image id
// on a target, or nil. It is how discovery imports recognize images that are
// already tracked locally.
func (r *Repository) FindMappingByExternal(ctx context.Context, targetType enums.TargetType, targetID uuid.UUID, externalID string) (*models.MediaMapping, error) {
	var mapping models.MediaMapping
	err := r.db.WithContext(ctx).
		Where("target_type = ? AND target_id = ? AND external_id = ?", targetType, targetID, externalID).
		First(&mapping).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &mapping, nil
}

// ListMappingsForProduct returns every mapping attached to a product's gallery.
func (r *Repository) ListMappingsForProduct(ctx context.Context, productID uuid.UUID) ([]models.MediaMapping, error) {
	var mappings []models.MediaMapping
	err := r.db.WithContext(ctx).
		Joins("JOIN media_items ON media_items.id = media_mappings.media_item_id").
		Where("media_items.product_id = ?", productID).
		Find(&mappings).Error
	if err != nil {
		return nil, err
	}
	return mappings, nil
}

// ListMappingsForItem returns the mappings of one gallery item.
func (r *Repository) ListMappingsForItem(ctx context.Context, mediaItemID uuid.UUID) ([]models.MediaMapping, error) {
	var mappings []models.MediaMapping
	if err := r.db.WithContext(ctx).
		Where("media_item_id = ?", mediaItemID).
		Find(&mappings).Error; err != nil {
		return nil, err
	}
	return mappings, nil
}

// Upsert writes the mapping for its (media item, target) pair, replacing the
// sync fields on conflict.
func (r *Repository) Upsert(ctx context.Context, mapping *models.MediaMapping) error {
	return r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns: []clause.Column{
				{Name: "media_item_id"},
				{Name: "target_type"},
				{Name: "target_id"},
			},
			DoUpdates: clause.AssignmentColumns([]string{
				"external_id", "synced", "last_error", "last_synced_at", "updated_at",
			}),
		}).
		Create(mapping).Error
}

// Delete removes the mapping for a (media item, target) pair.
func (r *Repository) Delete(ctx context.Context, mediaItemID uuid.UUID, targetType enums.TargetType, targetID uuid.UUID) error {
	return r.db.WithContext(ctx).
		Where("media_item_id = ? AND target_type = ? AND target_id = ?", mediaItemID, targetType, targetID).
		Delete(&models.MediaMapping{}).Error
}

// RecordFailure stores the last sync error on the pair's mapping, creating an
// unsynced mapping row when none exists yet.
func (r *Repository) RecordFailure(ctx context.Context, mediaItemID uuid.UUID, targetType enums.TargetType, targetID uuid.UUID, message string) error {
	now := time.Now().UTC()
	return r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns: []clause.Column{
				{Name: "media_item_id"},
				{Name: "target_type"},
				{Name: "target_id"},
			},
			DoUpdates: clause.Assignments(map[string]any{
				"last_error": message,
				"updated_at": now,
			}),
		}).
		Create(&models.MediaMapping{
			MediaItemID: mediaItemID,
			TargetType:  targetType,
			TargetID:    targetID,
			Synced:      false,
			LastError:   &message,
		}).Error
}
