package product

import (
	"context"
	"fmt"
	"os"
	"testing"

	"github.com/google/uuid"
	"github.com/lib/pq"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"

	"github.com/pawelnowak/pimhub-backend/pkg/db/models"
	"github.com/pawelnowak/pimhub-backend/pkg/pagination"
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

func mustCreateProduct(t *testing.T, db *gorm.DB, repo *Repository) *models.Product {
	t.Helper()

	product := &models.Product{
		SKU:      fmt.Sprintf("SKU-%s", uuid.NewString()),
		Name:     "Roundtrip Product",
		Tags:     pq.StringArray{"test"},
		IsActive: true,
	}
	created, err := repo.Create(context.Background(), product)
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	t.Cleanup(func() {
		db.Unscoped().Delete(&models.Product{}, "id = ?", created.ID)
	})
	return created
}

func TestRepositoryProductRoundtrip(t *testing.T) {
	db := openTestDB(t)
	repo := NewRepository(db)
	ctx := context.Background()

	created := mustCreateProduct(t, db, repo)

	loaded, err := repo.FindByID(ctx, created.ID)
	if err != nil {
		t.Fatalf("FindByID: %v", err)
	}
	if loaded.SKU != created.SKU || loaded.Name != created.Name {
		t.Fatalf("loaded product mismatch: %+v", loaded)
	}

	bySKU, err := repo.FindBySKU(ctx, created.SKU)
	if err != nil {
		t.Fatalf("FindBySKU: %v", err)
	}
	if bySKU.ID != created.ID {
		t.Fatalf("FindBySKU returned %s, want %s", bySKU.ID, created.ID)
	}

	loaded.Name = "Renamed Product"
	if _, err := repo.Update(ctx, loaded); err != nil {
		t.Fatalf("Update: %v", err)
	}
	reloaded, err := repo.FindByID(ctx, created.ID)
	if err != nil {
		t.Fatalf("FindByID after update: %v", err)
	}
	if reloaded.Name != "Renamed Product" {
		t.Fatalf("expected renamed product, got %q", reloaded.Name)
	}
}

func TestRepositoryVariantRoundtrip(t *testing.T) {
	db := openTestDB(t)
	repo := NewRepository(db)
	ctx := context.Background()

	product := mustCreateProduct(t, db, repo)

	variant := &models.ProductVariant{
		ProductID: product.ID,
		SKU:       fmt.Sprintf("VAR-%s", uuid.NewString()),
		Name:      "Default",
		IsActive:  true,
	}
	if _, err := repo.CreateVariant(ctx, variant); err != nil {
		t.Fatalf("CreateVariant: %v", err)
	}

	listed, err := repo.ListVariants(ctx, product.ID)
	if err != nil {
		t.Fatalf("ListVariants: %v", err)
	}
	if len(listed) != 1 || listed[0].ID != variant.ID {
		t.Fatalf("unexpected variant list: %+v", listed)
	}

	variant.Name = "Renamed"
	if err := repo.UpdateVariant(ctx, variant); err != nil {
		t.Fatalf("UpdateVariant: %v", err)
	}
	loaded, err := repo.FindVariant(ctx, variant.ID)
	if err != nil {
		t.Fatalf("FindVariant: %v", err)
	}
	if loaded.Name != "Renamed" {
		t.Fatalf("expected renamed variant, got %q", loaded.Name)
	}

	if err := repo.DeleteVariant(ctx, variant.ID); err != nil {
		t.Fatalf("DeleteVariant: %v", err)
	}
	if _, err := repo.FindVariant(ctx, variant.ID); err == nil {
		t.Fatal("expected the variant to be gone")
	}
}

func TestRepositoryProductWithMediaOrdering(t *testing.T) {
	db := openTestDB(t)
	repo := NewRepository(db)
	ctx := context.Background()

	product := mustCreateProduct(t, db, repo)

	for position, name := range []string{"b.jpg", "a.jpg"} {
		item := &models.MediaItem{
			ProductID: product.ID,
			FileName:  name,
			MimeType:  "image/jpeg",
			Checksum:  uuid.NewString(),
			Position:  1 - position,
		}
		if err := db.Create(item).Error; err != nil {
			t.Fatalf("create media item: %v", err)
		}
	}

	loaded, err := repo.ProductWithMedia(ctx, product.ID)
	if err != nil {
		t.Fatalf("ProductWithMedia: %v", err)
	}
	if len(loaded.Media) != 2 {
		t.Fatalf("expected two media items, got %d", len(loaded.Media))
	}
	if loaded.Media[0].Position > loaded.Media[1].Position {
		t.Fatal("expected media ordered by position")
	}
}

func TestRepositoryListSummaries(t *testing.T) {
	db := openTestDB(t)
	repo := NewRepository(db)
	ctx := context.Background()

	first := mustCreateProduct(t, db, repo)
	mustCreateProduct(t, db, repo)

	result, err := repo.ListSummaries(ctx, ListInput{
		Pagination: pagination.Params{Limit: 1},
	})
	if err != nil {
		t.Fatalf("ListSummaries: %v", err)
	}
	if len(result.Products) != 1 {
		t.Fatalf("expected one row, got %d", len(result.Products))
	}
	if result.NextCursor == "" {
		t.Fatal("expected a next cursor with more rows available")
	}

	next, err := repo.ListSummaries(ctx, ListInput{
		Pagination: pagination.Params{Limit: 1, Cursor: result.NextCursor},
	})
	if err != nil {
		t.Fatalf("ListSummaries next page: %v", err)
	}
	if len(next.Products) == 0 {
		t.Fatal("expected the next page to have rows")
	}
	if next.Products[0].ID == result.Products[0].ID {
		t.Fatal("expected the next page to advance past the cursor")
	}

	filtered, err := repo.ListSummaries(ctx, ListInput{
		Filters:    ListFilters{Query: first.SKU},
		Pagination: pagination.Params{Limit: 10},
	})
	if err != nil {
		t.Fatalf("ListSummaries filtered: %v", err)
	}
	if len(filtered.Products) != 1 || filtered.Products[0].ID != first.ID {
		t.Fatalf("sku filter returned unexpected rows: %+v", filtered.Products)
	}
}
