package targets

import (
	"context"
	"os"
	"testing"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"

	"github.com/pawelnowak/pimhub-backend/pkg/db/models"
)

func openTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	dsn := os.Getenv("PIMHUB_DB_DSN")
	if dsn == "" {
		t.Skip("PIMHUB_DB_DSN is not set")
	}

	conn, err := gorm.Open(postgres.Open(dsn), &gorm.Config{})
	if err != nil {
		t.Fatalf("failed to open test db: %v", err)
	}
	return conn
}

func TestRepositoryShopRoundtrip(t *testing.T) {
	db := openTestDB(t)
	repo := NewRepository(db)
	ctx := context.Background()

	shop := &models.Shop{
		Name:     "Roundtrip Shop",
		BaseURL:  "https://roundtrip.example.com",
		APIKey:   "test-key",
		IsActive: true,
	}
	if err := repo.CreateShop(ctx, shop); err != nil {
		t.Fatalf("CreateShop: %v", err)
	}
	t.Cleanup(func() {
		db.Unscoped().Delete(&models.Shop{}, "id = ?", shop.ID)
	})

	loaded, err := repo.FindShop(ctx, shop.ID)
	if err != nil {
		t.Fatalf("FindShop: %v", err)
	}
	if loaded.Name != shop.Name || loaded.BaseURL != shop.BaseURL {
		t.Fatalf("loaded shop mismatch: %+v", loaded)
	}

	if err := repo.SetShopActive(ctx, shop.ID, false); err != nil {
		t.Fatalf("SetShopActive: %v", err)
	}
	loaded, err = repo.FindShop(ctx, shop.ID)
	if err != nil {
		t.Fatalf("FindShop after deactivate: %v", err)
	}
	if loaded.IsActive {
		t.Fatal("expected shop to be inactive")
	}
}

func TestRepositoryERPConnectionRoundtrip(t *testing.T) {
	db := openTestDB(t)
	repo := NewRepository(db)
	ctx := context.Background()

	conn := &models.ERPConnection{
		Name:     "Roundtrip ERP",
		Token:    "test-token",
		IsActive: true,
	}
	if err := repo.CreateERPConnection(ctx, conn); err != nil {
		t.Fatalf("CreateERPConnection: %v", err)
	}
	t.Cleanup(func() {
		db.Unscoped().Delete(&models.ERPConnection{}, "id = ?", conn.ID)
	})

	listed, err := repo.ListERPConnections(ctx)
	if err != nil {
		t.Fatalf("ListERPConnections: %v", err)
	}
	found := false
	for _, c := range listed {
		if c.ID == conn.ID {
			found = true
		}
	}
	if !found {
		t.Fatal("created connection missing from list")
	}
}
