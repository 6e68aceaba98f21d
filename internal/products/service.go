package product

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/pawelnowak/pimhub-backend/pkg/db/models"
	pkgerrors "github.com/pawelnowak/pimhub-backend/pkg/errors"
)

// Service exposes catalog management operations.
type Service interface {
	Create(ctx context.Context, input CreateInput) (*models.Product, error)
	Update(ctx context.Context, id uuid.UUID, input UpdateInput) (*models.Product, error)
	Delete(ctx context.Context, id uuid.UUID) error
	Get(ctx context.Context, id uuid.UUID) (*models.Product, error)
	List(ctx context.Context, input ListInput) (*ListResult, error)
	AddVariant(ctx context.Context, productID uuid.UUID, input VariantInput) (*models.ProductVariant, error)
	UpdateVariant(ctx context.Context, variantID uuid.UUID, input UpdateVariantInput) (*models.ProductVariant, error)
	RemoveVariant(ctx context.Context, variantID uuid.UUID) error
}

// CreateInput holds the validated payload to create a product.
type CreateInput struct {
	SKU         string
	Name        string
	Description *string
	EAN         *string
	Tags        []string
}

// UpdateInput holds a partial product update; nil fields stay untouched.
type UpdateInput struct {
	Name        *string
	Description *string
	EAN         *string
	Tags        []string
	IsActive    *bool
}

// VariantInput holds the payload to add a sellable variant.
type VariantInput struct {
	SKU  string
	Name string
}

// UpdateVariantInput holds a partial variant update; nil fields stay untouched.
type UpdateVariantInput struct {
	Name     *string
	IsActive *bool
}

type service struct {
	repo *Repository
}

// NewService constructs the catalog service.
func NewService(repo *Repository) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("products repository required")
	}
	return &service{repo: repo}, nil
}

// Create validates and inserts a new catalog entry.
func (s *service) Create(ctx context.Context, input CreateInput) (*models.Product, error) {
	sku, err := normalizeSKU(input.SKU)
	if err != nil {
		return nil, err
	}
	name := strings.TrimSpace(input.Name)
	if name == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "product name is required")
	}
	ean, err := normalizeEAN(input.EAN)
	if err != nil {
		return nil, err
	}

	if existing, err := s.repo.FindBySKU(ctx, sku); err == nil && existing != nil {
		return nil, pkgerrors.New(pkgerrors.CodeConflict, "a product with this sku already exists")
	} else if err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "checking sku uniqueness")
	}

	product := &models.Product{
		SKU:         sku,
		Name:        name,
		Description: trimPtr(input.Description),
		EAN:         ean,
		Tags:        normalizeTags(input.Tags),
		IsActive:    true,
	}
	created, err := s.repo.Create(ctx, product)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "creating product")
	}
	return created, nil
}

// Update applies a partial update to an existing product.
func (s *service) Update(ctx context.Context, id uuid.UUID, input UpdateInput) (*models.Product, error) {
	product, err := s.findProduct(ctx, id)
	if err != nil {
		return nil, err
	}

	if input.Name != nil {
		name := strings.TrimSpace(*input.Name)
		if name == "" {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, "product name must not be empty")
		}
		product.Name = name
	}
	if input.Description != nil {
		product.Description = trimPtr(input.Description)
	}
	if input.EAN != nil {
		ean, err := normalizeEAN(input.EAN)
		if err != nil {
			return nil, err
		}
		product.EAN = ean
	}
	if input.Tags != nil {
		product.Tags = normalizeTags(input.Tags)
	}
	if input.IsActive != nil {
		product.IsActive = *input.IsActive
	}

	updated, err := s.repo.Update(ctx, product)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "updating product")
	}
	return updated, nil
}

// Delete removes a product with its variants and gallery.
func (s *service) Delete(ctx context.Context, id uuid.UUID) error {
	if _, err := s.findProduct(ctx, id); err != nil {
		return err
	}
	if err := s.repo.Delete(ctx, id); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "deleting product")
	}
	return nil
}

// Get returns the full detail view of a product.
func (s *service) Get(ctx context.Context, id uuid.UUID) (*models.Product, error) {
	if id == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "product id is required")
	}
	product, err := s.repo.GetDetail(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "product not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "loading product")
	}
	return product, nil
}

// List pages through the catalog.
func (s *service) List(ctx context.Context, input ListInput) (*ListResult, error) {
	result, err := s.repo.ListSummaries(ctx, input)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "listing products")
	}
	return result, nil
}

// AddVariant attaches a new sellable variant to a product.
func (s *service) AddVariant(ctx context.Context, productID uuid.UUID, input VariantInput) (*models.ProductVariant, error) {
	if _, err := s.findProduct(ctx, productID); err != nil {
		return nil, err
	}
	sku, err := normalizeSKU(input.SKU)
	if err != nil {
		return nil, err
	}
	name := strings.TrimSpace(input.Name)
	if name == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "variant name is required")
	}

	variant := &models.ProductVariant{
		ProductID: productID,
		SKU:       sku,
		Name:      name,
		IsActive:  true,
	}
	created, err := s.repo.CreateVariant(ctx, variant)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "creating variant")
	}
	return created, nil
}

// UpdateVariant applies a partial update to an existing variant.
func (s *service) UpdateVariant(ctx context.Context, variantID uuid.UUID, input UpdateVariantInput) (*models.ProductVariant, error) {
	variant, err := s.findVariant(ctx, variantID)
	if err != nil {
		return nil, err
	}

	if input.Name != nil {
		name := strings.TrimSpace(*input.Name)
		if name == "" {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, "variant name must not be empty")
		}
		variant.Name = name
	}
	if input.IsActive != nil {
		variant.IsActive = *input.IsActive
	}

	if err := s.repo.UpdateVariant(ctx, variant); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "updating variant")
	}
	return variant, nil
}

// RemoveVariant deletes a variant with its prices and stock.
func (s *service) RemoveVariant(ctx context.Context, variantID uuid.UUID) error {
	if _, err := s.findVariant(ctx, variantID); err != nil {
		return err
	}
	if err := s.repo.DeleteVariant(ctx, variantID); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "deleting variant")
	}
	return nil
}

func (s *service) findProduct(ctx context.Context, id uuid.UUID) (*models.Product, error) {
	if id == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "product id is required")
	}
	product, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "product not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "loading product")
	}
	return product, nil
}

func (s *service) findVariant(ctx context.Context, id uuid.UUID) (*models.ProductVariant, error) {
	if id == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "variant id is required")
	}
	variant, err := s.repo.FindVariant(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "variant not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "loading variant")
	}
	return variant, nil
}

func normalizeSKU(raw string) (string, error) {
	sku := strings.TrimSpace(raw)
	if sku == "" {
		return "", pkgerrors.New(pkgerrors.CodeValidation, "sku is required")
	}
	if strings.ContainsAny(sku, " \t\n") {
		return "", pkgerrors.New(pkgerrors.CodeValidation, "sku must not contain whitespace")
	}
	return sku, nil
}

func normalizeEAN(raw *string) (*string, error) {
	if raw == nil {
		return nil, nil
	}
	ean := strings.TrimSpace(*raw)
	if ean == "" {
		return nil, nil
	}
	if len(ean) < 8 || len(ean) > 14 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "ean must be 8 to 14 digits")
	}
	for _, r := range ean {
		if r < '0' || r > '9' {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, "ean must contain only digits")
		}
	}
	return &ean, nil
}

func normalizeTags(raw []string) []string {
	seen := make(map[string]struct{}, len(raw))
	out := make([]string, 0, len(raw))
	for _, tag := range raw {
		cleaned := strings.ToLower(strings.TrimSpace(tag))
		if cleaned == "" {
			continue
		}
		if _, dup := seen[cleaned]; dup {
			continue
		}
		seen[cleaned] = struct{}{}
		out = append(out, cleaned)
	}
	return out
}

func trimPtr(raw *string) *string {
	if raw == nil {
		return nil
	}
	trimmed := strings.TrimSpace(*raw)
	if trimmed == "" {
		return nil
	}
	return &trimmed
}
