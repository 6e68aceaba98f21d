package bulk

import (
	"context"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/pawelnowak/pimhub-backend/pkg/db/models"
)

// Repository reads and writes the variant prices and stock levels that bulk
// rules operate on.
type Repository struct {
	db *gorm.DB
}

// NewRepository builds a repository tied to the provided GORM DB.
func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

// WithTx returns a repository bound to the provided transaction.
func (r *Repository) WithTx(tx *gorm.DB) *Repository {
	return &Repository{db: tx}
}

// ListVariants loads the selected variants.
func (r *Repository) ListVariants(ctx context.Context, ids []uuid.UUID) ([]models.ProductVariant, error) {
	var variants []models.ProductVariant
	if err := r.db.WithContext(ctx).
		Where("id IN ?", ids).
		Find(&variants).Error; err != nil {
		return nil, err
	}
	return variants, nil
}

// ListPrices loads price rows for the selected variants. An empty group
// selection covers every price group.
func (r *Repository) ListPrices(ctx context.Context, variantIDs, priceGroupIDs []uuid.UUID) ([]models.VariantPrice, error) {
	query := r.db.WithContext(ctx).Where("variant_id IN ?", variantIDs)
	if len(priceGroupIDs) > 0 {
		query = query.Where("price_group_id IN ?", priceGroupIDs)
	}
	var prices []models.VariantPrice
	if err := query.
		Order("variant_id ASC, price_group_id ASC").
		Find(&prices).Error; err != nil {
		return nil, err
	}
	return prices, nil
}

// ListWarehouses loads the warehouses hosting the given stock rows.
func (r *Repository) ListWarehouses(ctx context.Context, ids []uuid.UUID) ([]models.Warehouse, error) {
	var warehouses []models.Warehouse
	if err := r.db.WithContext(ctx).
		Where("id IN ?", ids).
		Find(&warehouses).Error; err != nil {
		return nil, err
	}
	return warehouses, nil
}

// ListPriceGroupIDs returns every price group id, ordered by code. Callers
// use it to expand an all-groups selection into an explicit one.
func (r *Repository) ListPriceGroupIDs(ctx context.Context) ([]uuid.UUID, error) {
	var ids []uuid.UUID
	if err := r.db.WithContext(ctx).
		Model(&models.PriceGroup{}).
		Order("code ASC").
		Pluck("id", &ids).Error; err != nil {
		return nil, err
	}
	return ids, nil
}

// ListStock loads stock rows for the selected variants. An empty warehouse
// selection covers every warehouse.
func (r *Repository) ListStock(ctx context.Context, variantIDs, warehouseIDs []uuid.UUID) ([]models.StockLevel, error) {
	query := r.db.WithContext(ctx).Where("variant_id IN ?", variantIDs)
	if len(warehouseIDs) > 0 {
		query = query.Where("warehouse_id IN ?", warehouseIDs)
	}
	var levels []models.StockLevel
	if err := query.
		Order("variant_id ASC, warehouse_id ASC").
		Find(&levels).Error; err != nil {
		return nil, err
	}
	return levels, nil
}

// UpdatePriceAmount rewrites one price row. A missing row is an error so a
// surrounding transaction rolls back instead of silently skipping it.
func (r *Repository) UpdatePriceAmount(ctx context.Context, variantID, priceGroupID uuid.UUID, amount decimal.Decimal) error {
	result := r.db.WithContext(ctx).
		Model(&models.VariantPrice{}).
		Where("variant_id = ? AND price_group_id = ?", variantID, priceGroupID).
		Update("amount", amount)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

// UpdateStockQuantity rewrites one stock row. A missing row is an error so a
// surrounding transaction rolls back instead of silently skipping it.
func (r *Repository) UpdateStockQuantity(ctx context.Context, variantID, warehouseID uuid.UUID, quantity int) error {
	result := r.db.WithContext(ctx).
		Model(&models.StockLevel{}).
		Where("variant_id = ? AND warehouse_id = ?", variantID, warehouseID).
		Update("quantity", quantity)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}
