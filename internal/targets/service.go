package targets

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/pawelnowak/pimhub-backend/pkg/db/models"
	"github.com/pawelnowak/pimhub-backend/pkg/enums"
	pkgerrors "github.com/pawelnowak/pimhub-backend/pkg/errors"
)

// Target is one destination media can be synced to, regardless of kind.
type Target struct {
	Type     enums.TargetType `json:"type"`
	ID       uuid.UUID        `json:"id"`
	Name     string           `json:"name"`
	IsActive bool             `json:"is_active"`
}

// Key returns the stable identity string used to address this target.
func (t Target) Key() string {
	return fmt.Sprintf("%s:%s", t.Type, t.ID)
}

// Service exposes the registry of connected sync targets.
type Service interface {
	List(ctx context.Context) ([]Target, error)
	ListActive(ctx context.Context) ([]Target, error)
	Get(ctx context.Context, targetType enums.TargetType, id uuid.UUID) (*Target, error)
	RegisterShop(ctx context.Context, input RegisterShopInput) (*Target, error)
	RegisterERPConnection(ctx context.Context, input RegisterERPInput) (*Target, error)
	SetActive(ctx context.Context, targetType enums.TargetType, id uuid.UUID, active bool) error
}

// RegisterShopInput holds the validated payload to connect a PrestaShop storefront.
type RegisterShopInput struct {
	Name    string
	BaseURL string
	APIKey  string
}

// RegisterERPInput holds the validated payload to connect an ERP account.
type RegisterERPInput struct {
	Name  string
	Token string
}

type service struct {
	repo *Repository
}

// NewService constructs the target registry service.
func NewService(repo *Repository) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("targets repository required")
	}
	return &service{repo: repo}, nil
}

// List returns all registered targets, shops before ERP connections.
func (s *service) List(ctx context.Context) ([]Target, error) {
	shops, err := s.repo.ListShops(ctx)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "listing shops")
	}
	conns, err := s.repo.ListERPConnections(ctx)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "listing erp connections")
	}

	out := make([]Target, 0, len(shops)+len(conns))
	for _, shop := range shops {
		out = append(out, Target{
			Type:     enums.TargetTypePrestaShop,
			ID:       shop.ID,
			Name:     shop.Name,
			IsActive: shop.IsActive,
		})
	}
	for _, conn := range conns {
		out = append(out, Target{
			Type:     enums.TargetTypeERP,
			ID:       conn.ID,
			Name:     conn.Name,
			IsActive: conn.IsActive,
		})
	}
	return out, nil
}

// ListActive returns only targets media can currently be synced to.
func (s *service) ListActive(ctx context.Context) ([]Target, error) {
	all, err := s.List(ctx)
	if err != nil {
		return nil, err
	}
	active := all[:0]
	for _, t := range all {
		if t.IsActive {
			active = append(active, t)
		}
	}
	return active, nil
}

// Get resolves one target by type and id.
func (s *service) Get(ctx context.Context, targetType enums.TargetType, id uuid.UUID) (*Target, error) {
	if !targetType.IsValid() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "invalid target type")
	}
	if id == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "target id required")
	}

	switch targetType {
	case enums.TargetTypePrestaShop:
		shop, err := s.repo.FindShop(ctx, id)
		if err != nil {
			return nil, wrapLookupErr(err, "shop")
		}
		return &Target{Type: targetType, ID: shop.ID, Name: shop.Name, IsActive: shop.IsActive}, nil
	default:
		conn, err := s.repo.FindERPConnection(ctx, id)
		if err != nil {
			return nil, wrapLookupErr(err, "erp connection")
		}
		return &Target{Type: targetType, ID: conn.ID, Name: conn.Name, IsActive: conn.IsActive}, nil
	}
}

// RegisterShop connects a new PrestaShop storefront.
func (s *service) RegisterShop(ctx context.Context, input RegisterShopInput) (*Target, error) {
	name := strings.TrimSpace(input.Name)
	baseURL := strings.TrimSpace(input.BaseURL)
	if name == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "shop name required")
	}
	if baseURL == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "shop base url required")
	}
	if strings.TrimSpace(input.APIKey) == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "shop api key required")
	}

	shop := &models.Shop{
		Name:     name,
		BaseURL:  strings.TrimRight(baseURL, "/"),
		APIKey:   strings.TrimSpace(input.APIKey),
		IsActive: true,
	}
	if err := s.repo.CreateShop(ctx, shop); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "creating shop")
	}
	return &Target{Type: enums.TargetTypePrestaShop, ID: shop.ID, Name: shop.Name, IsActive: true}, nil
}

// RegisterERPConnection connects a new ERP account.
func (s *service) RegisterERPConnection(ctx context.Context, input RegisterERPInput) (*Target, error) {
	name := strings.TrimSpace(input.Name)
	if name == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "connection name required")
	}
	if strings.TrimSpace(input.Token) == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "connection token required")
	}

	conn := &models.ERPConnection{
		Name:     name,
		Token:    strings.TrimSpace(input.Token),
		IsActive: true,
	}
	if err := s.repo.CreateERPConnection(ctx, conn); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "creating erp connection")
	}
	return &Target{Type: enums.TargetTypeERP, ID: conn.ID, Name: conn.Name, IsActive: true}, nil
}

// SetActive enables or disables a target without deleting its mappings.
func (s *service) SetActive(ctx context.Context, targetType enums.TargetType, id uuid.UUID, active bool) error {
	if _, err := s.Get(ctx, targetType, id); err != nil {
		return err
	}
	switch targetType {
	case enums.TargetTypePrestaShop:
		if err := s.repo.SetShopActive(ctx, id, active); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "updating shop")
		}
	default:
		if err := s.repo.SetERPConnectionActive(ctx, id, active); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "updating erp connection")
		}
	}
	return nil
}

func wrapLookupErr(err error, entity string) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return pkgerrors.New(pkgerrors.CodeNotFound, entity+" not found")
	}
	return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "loading "+entity)
}
