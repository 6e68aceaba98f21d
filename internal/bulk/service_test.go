package bulk

import (
	"context"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/pawelnowak/pimhub-backend/pkg/db/models"
	"github.com/pawelnowak/pimhub-backend/pkg/enums"
	pkgerrors "github.com/pawelnowak/pimhub-backend/pkg/errors"
	"github.com/pawelnowak/pimhub-backend/pkg/logger"
)

func setupBulkTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	// A named shared-cache DB keeps every pooled connection on the same
	// schema while isolating tests from each other.
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", strings.ReplaceAll(t.Name(), "/", "_"))
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	require.NoError(t, err)

	variants := `
CREATE TABLE product_variants (
  id TEXT PRIMARY KEY,
  product_id TEXT NOT NULL,
  sku TEXT NOT NULL,
  name TEXT NOT NULL,
  is_active INTEGER NOT NULL DEFAULT 1,
  created_at DATETIME,
  updated_at DATETIME
);`
	groups := `
CREATE TABLE price_groups (
  id TEXT PRIMARY KEY,
  code TEXT NOT NULL,
  name TEXT NOT NULL,
  currency TEXT NOT NULL DEFAULT 'PLN',
  created_at DATETIME,
  updated_at DATETIME
);`
	prices := `
CREATE TABLE variant_prices (
  id TEXT PRIMARY KEY,
  variant_id TEXT NOT NULL,
  price_group_id TEXT NOT NULL,
  amount NUMERIC NOT NULL,
  created_at DATETIME,
  updated_at DATETIME
);`
	warehouses := `
CREATE TABLE warehouses (
  id TEXT PRIMARY KEY,
  code TEXT NOT NULL,
  name TEXT NOT NULL,
  allow_negative_stock INTEGER NOT NULL DEFAULT 0,
  created_at DATETIME,
  updated_at DATETIME
);`
	stock := `
CREATE TABLE stock_levels (
  id TEXT PRIMARY KEY,
  variant_id TEXT NOT NULL,
  warehouse_id TEXT NOT NULL,
  quantity INTEGER NOT NULL DEFAULT 0,
  created_at DATETIME,
  updated_at DATETIME
);`
	for _, stmt := range []string{variants, groups, prices, warehouses, stock} {
		require.NoError(t, db.Exec(stmt).Error)
	}
	return db
}

type gormTxRunner struct {
	db *gorm.DB
}

func (r *gormTxRunner) WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error {
	return r.db.WithContext(ctx).Transaction(fn)
}

type memPreviewStore struct {
	values map[string]string
}

func newMemPreviewStore() *memPreviewStore {
	return &memPreviewStore{values: map[string]string{}}
}

func (m *memPreviewStore) Set(_ context.Context, key string, value any, _ time.Duration) error {
	m.values[key] = value.(string)
	return nil
}

func (m *memPreviewStore) Get(_ context.Context, key string) (string, error) {
	if value, ok := m.values[key]; ok {
		return value, nil
	}
	return "", redis.Nil
}

func (m *memPreviewStore) Del(_ context.Context, keys ...string) error {
	for _, key := range keys {
		delete(m.values, key)
	}
	return nil
}

func (m *memPreviewStore) PreviewKey(previewID string) string {
	return "pim:preview:" + previewID
}

type bulkFixture struct {
	svc     Service
	db      *gorm.DB
	store   *memPreviewStore
	variant models.ProductVariant
	groupID uuid.UUID
	whID    uuid.UUID
}

func newBulkFixture(t *testing.T) *bulkFixture {
	t.Helper()

	db := setupBulkTestDB(t)
	store := newMemPreviewStore()
	svc, err := NewService(ServiceParams{
		Logger:       logger.New(logger.Options{ServiceName: "test"}),
		DB:           &gormTxRunner{db: db},
		Repo:         NewRepository(db),
		Store:        store,
		MaxSelection: 10,
	})
	require.NoError(t, err)

	variant := models.ProductVariant{
		ID:        uuid.New(),
		ProductID: uuid.New(),
		SKU:       "VAR-1",
		Name:      "Variant 1",
	}
	require.NoError(t, db.Create(&variant).Error)

	groupID := uuid.New()
	require.NoError(t, db.Create(&models.PriceGroup{
		ID:       groupID,
		Code:     "retail",
		Name:     "Retail",
		Currency: "PLN",
	}).Error)
	require.NoError(t, db.Create(&models.VariantPrice{
		ID:           uuid.New(),
		VariantID:    variant.ID,
		PriceGroupID: groupID,
		Amount:       decimal.RequireFromString("100.00"),
	}).Error)

	whID := uuid.New()
	require.NoError(t, db.Create(&models.Warehouse{
		ID:   whID,
		Code: "WH-1",
		Name: "Main",
	}).Error)
	require.NoError(t, db.Create(&models.StockLevel{
		ID:          uuid.New(),
		VariantID:   variant.ID,
		WarehouseID: whID,
		Quantity:    5,
	}).Error)

	return &bulkFixture{svc: svc, db: db, store: store, variant: variant, groupID: groupID, whID: whID}
}

func TestPreviewAndApplyPricePercentage(t *testing.T) {
	f := newBulkFixture(t)
	ctx := context.Background()

	preview, err := f.svc.Preview(ctx, PreviewRequest{
		Kind:       KindPrice,
		Change:     enums.ChangeTypePercentage,
		Amount:     decimal.RequireFromString("10"),
		VariantIDs: []uuid.UUID{f.variant.ID},
	})
	require.NoError(t, err)
	require.Len(t, preview.PriceRows, 1)
	assert.True(t, preview.PriceRows[0].OldAmount.Equal(decimal.RequireFromString("100")))
	assert.True(t, preview.PriceRows[0].NewAmount.Equal(decimal.RequireFromString("110")))
	assert.NotEmpty(t, preview.Checksum)

	// Nothing written yet.
	var before models.VariantPrice
	require.NoError(t, f.db.First(&before, "variant_id = ?", f.variant.ID).Error)
	assert.True(t, before.Amount.Equal(decimal.RequireFromString("100")))

	outcome, err := f.svc.Apply(ctx, preview.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, outcome.Rows)
	assert.Equal(t, KindPrice, outcome.Kind)

	var after models.VariantPrice
	require.NoError(t, f.db.First(&after, "variant_id = ?", f.variant.ID).Error)
	assert.True(t, after.Amount.Equal(decimal.RequireFromString("110")))

	// Preview is single-use.
	_, err = f.svc.Apply(ctx, preview.ID)
	assert.Equal(t, pkgerrors.CodeNotFound, pkgerrors.As(err).Code())
}

func TestApplyStalePreviewRejected(t *testing.T) {
	f := newBulkFixture(t)
	ctx := context.Background()

	preview, err := f.svc.Preview(ctx, PreviewRequest{
		Kind:       KindPrice,
		Change:     enums.ChangeTypeIncrease,
		Amount:     decimal.RequireFromString("5"),
		VariantIDs: []uuid.UUID{f.variant.ID},
	})
	require.NoError(t, err)

	// Concurrent edit lands between preview and apply.
	require.NoError(t, f.db.Model(&models.VariantPrice{}).
		Where("variant_id = ?", f.variant.ID).
		Update("amount", decimal.RequireFromString("90.00")).Error)

	_, err = f.svc.Apply(ctx, preview.ID)
	assert.Equal(t, pkgerrors.CodeStateConflict, pkgerrors.As(err).Code())

	// The edit survives untouched.
	var price models.VariantPrice
	require.NoError(t, f.db.First(&price, "variant_id = ?", f.variant.ID).Error)
	assert.True(t, price.Amount.Equal(decimal.RequireFromString("90")))
}

func TestPreviewAndApplyStockClamp(t *testing.T) {
	f := newBulkFixture(t)
	ctx := context.Background()

	preview, err := f.svc.Preview(ctx, PreviewRequest{
		Kind:       KindStock,
		Change:     enums.ChangeTypeDecrease,
		Amount:     decimal.RequireFromString("8"),
		VariantIDs: []uuid.UUID{f.variant.ID},
	})
	require.NoError(t, err)
	require.Len(t, preview.StockRows, 1)
	assert.Equal(t, 5, preview.StockRows[0].OldQuantity)
	assert.Equal(t, 0, preview.StockRows[0].NewQuantity)

	_, err = f.svc.Apply(ctx, preview.ID)
	require.NoError(t, err)

	var level models.StockLevel
	require.NoError(t, f.db.First(&level, "variant_id = ?", f.variant.ID).Error)
	assert.Equal(t, 0, level.Quantity)
}

func TestPreviewStockNegativeAllowed(t *testing.T) {
	f := newBulkFixture(t)
	ctx := context.Background()

	require.NoError(t, f.db.Model(&models.Warehouse{}).
		Where("id = ?", f.whID).
		Update("allow_negative_stock", true).Error)

	preview, err := f.svc.Preview(ctx, PreviewRequest{
		Kind:       KindStock,
		Change:     enums.ChangeTypeAdjust,
		Amount:     decimal.RequireFromString("-8"),
		VariantIDs: []uuid.UUID{f.variant.ID},
	})
	require.NoError(t, err)
	require.Len(t, preview.StockRows, 1)
	assert.Equal(t, -3, preview.StockRows[0].NewQuantity)
}

func TestPreviewStockClampPerWarehouse(t *testing.T) {
	f := newBulkFixture(t)
	ctx := context.Background()

	// Second location for the same variant, this one tolerating negatives.
	looseID := uuid.New()
	require.NoError(t, f.db.Create(&models.Warehouse{
		ID:                 looseID,
		Code:               "WH-2",
		Name:               "Overflow",
		AllowNegativeStock: true,
	}).Error)
	require.NoError(t, f.db.Create(&models.StockLevel{
		ID:          uuid.New(),
		VariantID:   f.variant.ID,
		WarehouseID: looseID,
		Quantity:    5,
	}).Error)

	preview, err := f.svc.Preview(ctx, PreviewRequest{
		Kind:       KindStock,
		Change:     enums.ChangeTypeAdjust,
		Amount:     decimal.RequireFromString("-8"),
		VariantIDs: []uuid.UUID{f.variant.ID},
	})
	require.NoError(t, err)
	require.Len(t, preview.StockRows, 2)

	byWarehouse := map[uuid.UUID]int{}
	for _, row := range preview.StockRows {
		byWarehouse[row.WarehouseID] = row.NewQuantity
	}
	assert.Equal(t, 0, byWarehouse[f.whID])
	assert.Equal(t, -3, byWarehouse[looseID])
}

func TestUpdateMissingRowsFail(t *testing.T) {
	f := newBulkFixture(t)
	ctx := context.Background()
	repo := NewRepository(f.db)

	err := repo.UpdatePriceAmount(ctx, f.variant.ID, uuid.New(), decimal.RequireFromString("1"))
	assert.ErrorIs(t, err, gorm.ErrRecordNotFound)

	err = repo.UpdateStockQuantity(ctx, f.variant.ID, uuid.New(), 1)
	assert.ErrorIs(t, err, gorm.ErrRecordNotFound)
}

func TestApplyTxRollsBackOnMissingRow(t *testing.T) {
	f := newBulkFixture(t)
	ctx := context.Background()
	runner := &gormTxRunner{db: f.db}

	err := runner.WithTx(ctx, func(tx *gorm.DB) error {
		repo := NewRepository(f.db).WithTx(tx)
		if err := repo.UpdatePriceAmount(ctx, f.variant.ID, f.groupID, decimal.RequireFromString("55")); err != nil {
			return err
		}
		return repo.UpdatePriceAmount(ctx, f.variant.ID, uuid.New(), decimal.RequireFromString("55"))
	})
	require.ErrorIs(t, err, gorm.ErrRecordNotFound)

	var price models.VariantPrice
	require.NoError(t, f.db.First(&price, "variant_id = ?", f.variant.ID).Error)
	assert.True(t, price.Amount.Equal(decimal.RequireFromString("100")),
		"first update must roll back with the failed one")
}

func TestAllPriceGroupIDs(t *testing.T) {
	f := newBulkFixture(t)
	ctx := context.Background()

	wholesaleID := uuid.New()
	require.NoError(t, f.db.Create(&models.PriceGroup{
		ID:       wholesaleID,
		Code:     "wholesale",
		Name:     "Wholesale",
		Currency: "PLN",
	}).Error)

	ids, err := f.svc.AllPriceGroupIDs(ctx)
	require.NoError(t, err)
	require.Len(t, ids, 2)
	assert.Equal(t, f.groupID, ids[0], "groups come back ordered by code")
	assert.Equal(t, wholesaleID, ids[1])
}

func TestPreviewValidation(t *testing.T) {
	f := newBulkFixture(t)
	ctx := context.Background()

	cases := []struct {
		name string
		req  PreviewRequest
	}{
		{name: "bad kind", req: PreviewRequest{Kind: "margin", Change: enums.ChangeTypeSet, VariantIDs: []uuid.UUID{f.variant.ID}}},
		{name: "bad change", req: PreviewRequest{Kind: KindPrice, Change: "halve", VariantIDs: []uuid.UUID{f.variant.ID}}},
		{name: "adjust on prices", req: PreviewRequest{Kind: KindPrice, Change: enums.ChangeTypeAdjust, VariantIDs: []uuid.UUID{f.variant.ID}}},
		{name: "negative set amount", req: PreviewRequest{Kind: KindPrice, Change: enums.ChangeTypeIncrease, Amount: decimal.RequireFromString("-1"), VariantIDs: []uuid.UUID{f.variant.ID}}},
		{name: "empty selection", req: PreviewRequest{Kind: KindPrice, Change: enums.ChangeTypeSet}},
	}
	for _, tc := range cases {
		_, err := f.svc.Preview(ctx, tc.req)
		assert.Equal(t, pkgerrors.CodeValidation, pkgerrors.As(err).Code(), tc.name)
	}
}

func TestPreviewSelectionLimit(t *testing.T) {
	f := newBulkFixture(t)
	ctx := context.Background()

	ids := make([]uuid.UUID, 11)
	for i := range ids {
		ids[i] = uuid.New()
	}
	_, err := f.svc.Preview(ctx, PreviewRequest{
		Kind:       KindPrice,
		Change:     enums.ChangeTypeSet,
		Amount:     decimal.RequireFromString("1"),
		VariantIDs: ids,
	})
	assert.Equal(t, pkgerrors.CodeValidation, pkgerrors.As(err).Code())
}

func TestPreviewUnknownVariant(t *testing.T) {
	f := newBulkFixture(t)
	ctx := context.Background()

	_, err := f.svc.Preview(ctx, PreviewRequest{
		Kind:       KindPrice,
		Change:     enums.ChangeTypeSet,
		Amount:     decimal.RequireFromString("1"),
		VariantIDs: []uuid.UUID{uuid.New()},
	})
	assert.Equal(t, pkgerrors.CodeNotFound, pkgerrors.As(err).Code())
}

func TestDiscardPreview(t *testing.T) {
	f := newBulkFixture(t)
	ctx := context.Background()

	preview, err := f.svc.Preview(ctx, PreviewRequest{
		Kind:       KindPrice,
		Change:     enums.ChangeTypeSet,
		Amount:     decimal.RequireFromString("1"),
		VariantIDs: []uuid.UUID{f.variant.ID},
	})
	require.NoError(t, err)

	require.NoError(t, f.svc.Discard(ctx, preview.ID))
	_, err = f.svc.GetPreview(ctx, preview.ID)
	assert.Equal(t, pkgerrors.CodeNotFound, pkgerrors.As(err).Code())
}
