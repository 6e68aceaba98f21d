package controllers

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	product "github.com/pawelnowak/pimhub-backend/internal/products"
	"github.com/pawelnowak/pimhub-backend/pkg/db/models"
	pkgerrors "github.com/pawelnowak/pimhub-backend/pkg/errors"
)

type stubProductService struct {
	created   *product.CreateInput
	lastList  *product.ListInput
	detailErr error
}

func (s *stubProductService) Create(ctx context.Context, input product.CreateInput) (*models.Product, error) {
	s.created = &input
	return &models.Product{ID: uuid.New(), SKU: input.SKU, Name: input.Name}, nil
}

func (s *stubProductService) Update(context.Context, uuid.UUID, product.UpdateInput) (*models.Product, error) {
	return &models.Product{}, nil
}

func (s *stubProductService) Delete(context.Context, uuid.UUID) error { return nil }

func (s *stubProductService) Get(ctx context.Context, id uuid.UUID) (*models.Product, error) {
	if s.detailErr != nil {
		return nil, s.detailErr
	}
	return &models.Product{ID: id}, nil
}

func (s *stubProductService) List(ctx context.Context, input product.ListInput) (*product.ListResult, error) {
	s.lastList = &input
	return &product.ListResult{}, nil
}

func (s *stubProductService) AddVariant(context.Context, uuid.UUID, product.VariantInput) (*models.ProductVariant, error) {
	return &models.ProductVariant{}, nil
}

func (s *stubProductService) UpdateVariant(context.Context, uuid.UUID, product.UpdateVariantInput) (*models.ProductVariant, error) {
	return &models.ProductVariant{}, nil
}

func (s *stubProductService) RemoveVariant(context.Context, uuid.UUID) error { return nil }

func TestProductCreateReturns201(t *testing.T) {
	t.Parallel()

	svc := &stubProductService{}
	handler := ProductCreate(svc, nil)

	body := `{"sku":"TS-001","name":"Tee Shirt","tags":["apparel"]}`
	req := httptest.NewRequest(http.MethodPost, "/api/v1/products", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusCreated {
		t.Fatalf("expected 201 got %d body=%s", rec.Code, rec.Body.String())
	}
	if svc.created == nil || svc.created.SKU != "TS-001" {
		t.Fatalf("service did not receive create input: %+v", svc.created)
	}
}

func TestProductCreateRejectsMissingSKU(t *testing.T) {
	t.Parallel()

	handler := ProductCreate(&stubProductService{}, nil)
	req := httptest.NewRequest(http.MethodPost, "/api/v1/products", strings.NewReader(`{"name":"No SKU"}`))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 got %d", rec.Code)
	}
}

func TestProductDetailRejectsMalformedID(t *testing.T) {
	t.Parallel()

	handler := ProductDetail(&stubProductService{}, nil)
	req := withURLParam(httptest.NewRequest(http.MethodGet, "/api/v1/products/not-a-uuid", nil), "productId", "not-a-uuid")
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 got %d", rec.Code)
	}
}

func TestProductDetailMapsNotFound(t *testing.T) {
	t.Parallel()

	svc := &stubProductService{detailErr: pkgerrors.New(pkgerrors.CodeNotFound, "product not found")}
	handler := ProductDetail(svc, nil)
	id := uuid.NewString()
	req := withURLParam(httptest.NewRequest(http.MethodGet, "/api/v1/products/"+id, nil), "productId", id)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404 got %d", rec.Code)
	}
}

func TestProductListParsesFilters(t *testing.T) {
	t.Parallel()

	svc := &stubProductService{}
	handler := ProductList(svc, nil)
	req := httptest.NewRequest(http.MethodGet, "/api/v1/products?q=shirt&tag=apparel&is_active=true&limit=25&cursor=abc", nil)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200 got %d body=%s", rec.Code, rec.Body.String())
	}
	got := svc.lastList
	if got == nil {
		t.Fatalf("service never called")
	}
	if got.Filters.Query != "shirt" || got.Filters.Tag != "apparel" {
		t.Fatalf("unexpected filters: %+v", got.Filters)
	}
	if got.Filters.IsActive == nil || !*got.Filters.IsActive {
		t.Fatalf("is_active not parsed")
	}
	if got.Pagination.Limit != 25 || got.Pagination.Cursor != "abc" {
		t.Fatalf("unexpected pagination: %+v", got.Pagination)
	}
}

func TestProductListRejectsBadBoolean(t *testing.T) {
	t.Parallel()

	handler := ProductList(&stubProductService{}, nil)
	req := httptest.NewRequest(http.MethodGet, "/api/v1/products?is_active=maybe", nil)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 got %d", rec.Code)
	}
}

func withURLParam(r *http.Request, key, value string) *http.Request {
	rctx := chi.NewRouteContext()
	rctx.URLParams.Add(key, value)
	return r.WithContext(context.WithValue(r.Context(), chi.RouteCtxKey, rctx))
}
