package targets

import (
	"context"
	"testing"

	"github.com/google/uuid"

	"github.com/pawelnowak/pimhub-backend/pkg/enums"
	pkgerrors "github.com/pawelnowak/pimhub-backend/pkg/errors"
)

func TestNewServiceRequiresRepository(t *testing.T) {
	t.Parallel()

	if _, err := NewService(nil); err == nil {
		t.Fatal("expected error for nil repository")
	}
}

func TestTargetKey(t *testing.T) {
	t.Parallel()

	id := uuid.MustParse("3f1d7c6a-9a1e-4a8e-a8c2-0f6f1b6f2d11")
	target := Target{Type: enums.TargetTypePrestaShop, ID: id}
	want := "prestashop:3f1d7c6a-9a1e-4a8e-a8c2-0f6f1b6f2d11"
	if got := target.Key(); got != want {
		t.Fatalf("Key() = %q, want %q", got, want)
	}
}

func TestGetValidation(t *testing.T) {
	t.Parallel()

	svc, err := NewService(NewRepository(nil))
	if err != nil {
		t.Fatalf("NewService: %v", err)
	}
	ctx := context.Background()

	if _, err := svc.Get(ctx, "ftp", uuid.New()); pkgerrors.As(err).Code() != pkgerrors.CodeValidation {
		t.Fatalf("expected validation error for bad type, got %v", err)
	}
	if _, err := svc.Get(ctx, enums.TargetTypeERP, uuid.Nil); pkgerrors.As(err).Code() != pkgerrors.CodeValidation {
		t.Fatalf("expected validation error for nil id, got %v", err)
	}
}

func TestRegisterShopValidation(t *testing.T) {
	t.Parallel()

	svc, err := NewService(NewRepository(nil))
	if err != nil {
		t.Fatalf("NewService: %v", err)
	}
	ctx := context.Background()

	cases := []struct {
		name  string
		input RegisterShopInput
	}{
		{name: "missing name", input: RegisterShopInput{BaseURL: "https://shop.example.com", APIKey: "key"}},
		{name: "missing base url", input: RegisterShopInput{Name: "Main", APIKey: "key"}},
		{name: "missing api key", input: RegisterShopInput{Name: "Main", BaseURL: "https://shop.example.com"}},
		{name: "blank name", input: RegisterShopInput{Name: "   ", BaseURL: "https://shop.example.com", APIKey: "key"}},
	}
	for _, tc := range cases {
		if _, err := svc.RegisterShop(ctx, tc.input); pkgerrors.As(err).Code() != pkgerrors.CodeValidation {
			t.Fatalf("%s: expected validation error, got %v", tc.name, err)
		}
	}
}

func TestRegisterERPConnectionValidation(t *testing.T) {
	t.Parallel()

	svc, err := NewService(NewRepository(nil))
	if err != nil {
		t.Fatalf("NewService: %v", err)
	}
	ctx := context.Background()

	if _, err := svc.RegisterERPConnection(ctx, RegisterERPInput{Token: "token"}); pkgerrors.As(err).Code() != pkgerrors.CodeValidation {
		t.Fatalf("expected validation error for missing name, got %v", err)
	}
	if _, err := svc.RegisterERPConnection(ctx, RegisterERPInput{Name: "Baselinker"}); pkgerrors.As(err).Code() != pkgerrors.CodeValidation {
		t.Fatalf("expected validation error for missing token, got %v", err)
	}
}
