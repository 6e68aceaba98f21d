package targets

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/pawelnowak/pimhub-backend/pkg/db/models"
)

// Repository loads the connected shops and ERP accounts that media can sync to.
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

// ListShops returns every PrestaShop storefront, active first.
func (r *Repository) ListShops(ctx context.Context) ([]models.Shop, error) {
	var shops []models.Shop
	if err := r.db.WithContext(ctx).
		Order("is_active DESC, name ASC").
		Find(&shops).Error; err != nil {
		return nil, err
	}
	return shops, nil
}

// ListERPConnections returns every ERP connection, active first.
func (r *Repository) ListERPConnections(ctx context.Context) ([]models.ERPConnection, error) {
	var conns []models.ERPConnection
	if err := r.db.WithContext(ctx).
		Order("is_active DESC, name ASC").
		Find(&conns).Error; err != nil {
		return nil, err
	}
	return conns, nil
}

// FindShop loads one shop by id.
func (r *Repository) FindShop(ctx context.Context, id uuid.UUID) (*models.Shop, error) {
	var shop models.Shop
	if err := r.db.WithContext(ctx).First(&shop, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &shop, nil
}

// FindERPConnection loads one ERP connection by id.
func (r *Repository) FindERPConnection(ctx context.Context, id uuid.UUID) (*models.ERPConnection, error) {
	var conn models.ERPConnection
	if err := r.db.WithContext(ctx).First(&conn, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &conn, nil
}

// CreateShop persists a new storefront connection.
func (r *Repository) CreateShop(ctx context.Context, shop *models.Shop) error {
	return r.db.WithContext(ctx).Create(shop).Error
}

// CreateERPConnection persists a new ERP connection.
func (r *Repository) CreateERPConnection(ctx context.Context, conn *models.ERPConnection) error {
	return r.db.WithContext(ctx).Create(conn).Error
}

// SetShopActive flips the active flag on a shop.
func (r *Repository) SetShopActive(ctx context.Context, id uuid.UUID, active bool) error {
	return r.db.WithContext(ctx).
		Model(&models.Shop{}).
		Where("id = ?", id).
		Update("is_active", active).Error
}

// SetERPConnectionActive flips the active flag on an ERP connection.
func (r *Repository) SetERPConnectionActive(ctx context.Context, id uuid.UUID, active bool) error {
	return r.db.WithContext(ctx).
		Model(&models.ERPConnection{}).
		Where("id = ?", id).
		Update("is_active", active).Error
}
