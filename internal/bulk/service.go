package bulk

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/pawelnowak/pimhub-backend/pkg/db/models"
	"github.com/pawelnowak/pimhub-backend/pkg/enums"
	pkgerrors "github.com/pawelnowak/pimhub-backend/pkg/errors"
	"github.com/pawelnowak/pimhub-backend/pkg/logger"
	"github.com/pawelnowak/pimhub-backend/pkg/metrics"
)

// PreviewRequest selects the rows a bulk rule covers and how to change them.
// An empty price-group or warehouse selection means every group or warehouse.
type PreviewRequest struct {
	Kind          Kind
	Change        enums.ChangeType
	Amount        decimal.Decimal
	VariantIDs    []uuid.UUID
	PriceGroupIDs []uuid.UUID
	WarehouseIDs  []uuid.UUID
}

// Preview is a computed, not yet applied, bulk change. It lives in Redis
// until applied or expired; the checksum pins the values it was computed
// from.
type Preview struct {
	ID        string            `json:"id"`
	Kind      Kind              `json:"kind"`
	Change    enums.ChangeType  `json:"change"`
	Amount    decimal.Decimal   `json:"amount"`
	PriceRows []PricePreviewRow `json:"price_rows,omitempty"`
	StockRows []StockPreviewRow `json:"stock_rows,omitempty"`
	Checksum  string            `json:"checksum"`
	CreatedAt time.Time         `json:"created_at"`
}

// Rows reports how many rows the preview covers.
func (p *Preview) Rows() int {
	if p.Kind == KindStock {
		return len(p.StockRows)
	}
	return len(p.PriceRows)
}

// ApplyOutcome summarizes a committed bulk apply.
type ApplyOutcome struct {
	PreviewID string
	Kind      Kind
	Rows      int
}

// Service previews and applies bulk price and stock changes.
type Service interface {
	Preview(ctx context.Context, req PreviewRequest) (*Preview, error)
	GetPreview(ctx context.Context, previewID string) (*Preview, error)
	Apply(ctx context.Context, previewID string) (*ApplyOutcome, error)
	Discard(ctx context.Context, previewID string) error
	AllPriceGroupIDs(ctx context.Context) ([]uuid.UUID, error)
}

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type previewStore interface {
	Set(ctx context.Context, key string, value any, ttl time.Duration) error
	Get(ctx context.Context, key string) (string, error)
	Del(ctx context.Context, keys ...string) error
	PreviewKey(previewID string) string
}

// ServiceParams configures the bulk engine service.
type ServiceParams struct {
	Logger       *logger.Logger
	DB           txRunner
	Repo         *Repository
	Store        previewStore
	Metrics      *metrics.SyncMetrics
	PreviewTTL   time.Duration
	MaxSelection int
}

type service struct {
	logg         *logger.Logger
	db           txRunner
	repo         *Repository
	store        previewStore
	metrics      *metrics.SyncMetrics
	previewTTL   time.Duration
	maxSelection int
}

const (
	defaultPreviewTTL   = 30 * time.Minute
	defaultMaxSelection = 500
)

// NewService builds the bulk service from its collaborators.
func NewService(params ServiceParams) (Service, error) {
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	if params.DB == nil {
		return nil, fmt.Errorf("db runner required")
	}
	if params.Repo == nil {
		return nil, fmt.Errorf("repository required")
	}
	if params.Store == nil {
		return nil, fmt.Errorf("preview store required")
	}
	ttl := params.PreviewTTL
	if ttl <= 0 {
		ttl = defaultPreviewTTL
	}
	maxSelection := params.MaxSelection
	if maxSelection <= 0 {
		maxSelection = defaultMaxSelection
	}
	return &service{
		logg:         params.Logger,
		db:           params.DB,
		repo:         params.Repo,
		store:        params.Store,
		metrics:      params.Metrics,
		previewTTL:   ttl,
		maxSelection: maxSelection,
	}, nil
}

// Preview computes the would-be values for the selection without writing
// anything, stores the result, and returns it for review.
func (s *service) Preview(ctx context.Context, req PreviewRequest) (*Preview, error) {
	if err := s.validate(req); err != nil {
		return nil, err
	}

	variants, err := s.repo.ListVariants(ctx, req.VariantIDs)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "loading variants")
	}
	if len(variants) != len(dedupe(req.VariantIDs)) {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "selection references unknown variants")
	}

	preview := &Preview{
		ID:        uuid.NewString(),
		Kind:      req.Kind,
		Change:    req.Change,
		Amount:    req.Amount,
		CreatedAt: time.Now().UTC(),
	}

	switch req.Kind {
	case KindStock:
		levels, err := s.repo.ListStock(ctx, req.VariantIDs, req.WarehouseIDs)
		if err != nil {
			return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "loading stock levels")
		}
		allowNegative, err := s.warehouseFlags(ctx, levels)
		if err != nil {
			return nil, err
		}
		preview.StockRows, err = computeStockRows(req, levels, allowNegative)
		if err != nil {
			return nil, err
		}
		preview.Checksum = stockChecksum(preview.StockRows)
	default:
		prices, err := s.repo.ListPrices(ctx, req.VariantIDs, req.PriceGroupIDs)
		if err != nil {
			return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "loading prices")
		}
		preview.PriceRows, err = computePriceRows(req, prices)
		if err != nil {
			return nil, err
		}
		preview.Checksum = priceChecksum(preview.PriceRows)
	}

	if preview.Rows() == 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "selection matches no rows")
	}

	payload, err := json.Marshal(preview)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "encoding preview")
	}
	if err := s.store.Set(ctx, s.store.PreviewKey(preview.ID), string(payload), s.previewTTL); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "storing preview")
	}
	return preview, nil
}

// GetPreview returns a stored preview, or not-found once it expired.
func (s *service) GetPreview(ctx context.Context, previewID string) (*Preview, error) {
	return s.loadPreview(ctx, previewID)
}

// Apply commits a stored preview in one transaction. If any covered value
// changed since the preview was computed, nothing is written and the caller
// gets a state conflict to re-preview.
func (s *service) Apply(ctx context.Context, previewID string) (*ApplyOutcome, error) {
	preview, err := s.loadPreview(ctx, previewID)
	if err != nil {
		return nil, err
	}

	if err := s.verifyFresh(ctx, preview); err != nil {
		return nil, err
	}

	err = s.db.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		for _, row := range preview.PriceRows {
			if err := repo.UpdatePriceAmount(ctx, row.VariantID, row.PriceGroupID, row.NewAmount); err != nil {
				return err
			}
		}
		for _, row := range preview.StockRows {
			if err := repo.UpdateStockQuantity(ctx, row.VariantID, row.WarehouseID, row.NewQuantity); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		s.metrics.AddBulkRows(preview.Kind.String(), "failure", preview.Rows())
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "committing bulk apply")
	}

	if err := s.store.Del(ctx, s.store.PreviewKey(preview.ID)); err != nil {
		s.logg.Error(ctx, "failed to discard applied preview", err)
	}
	s.metrics.AddBulkRows(preview.Kind.String(), "success", preview.Rows())

	logCtx := s.logg.WithFields(ctx, map[string]any{
		"preview_id": preview.ID,
		"kind":       preview.Kind.String(),
		"rows":       preview.Rows(),
	})
	s.logg.Info(logCtx, "bulk change applied")

	return &ApplyOutcome{PreviewID: preview.ID, Kind: preview.Kind, Rows: preview.Rows()}, nil
}

// AllPriceGroupIDs lists every price group id so clients can expand an
// all-groups rule into an explicit selection before previewing.
func (s *service) AllPriceGroupIDs(ctx context.Context) ([]uuid.UUID, error) {
	ids, err := s.repo.ListPriceGroupIDs(ctx)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "listing price groups")
	}
	return ids, nil
}

// Discard drops a stored preview without applying it.
func (s *service) Discard(ctx context.Context, previewID string) error {
	if previewID == "" {
		return pkgerrors.New(pkgerrors.CodeValidation, "preview id required")
	}
	if err := s.store.Del(ctx, s.store.PreviewKey(previewID)); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "discarding preview")
	}
	return nil
}

func (s *service) validate(req PreviewRequest) error {
	if !req.Kind.IsValid() {
		return pkgerrors.New(pkgerrors.CodeValidation, "invalid bulk kind")
	}
	if !req.Change.IsValid() {
		return pkgerrors.New(pkgerrors.CodeValidation, "invalid change type")
	}
	if req.Kind == KindPrice && req.Change == enums.ChangeTypeAdjust {
		return pkgerrors.New(pkgerrors.CodeValidation, "adjust is a stock-only change type")
	}
	if req.Amount.IsNegative() && !req.Change.AllowsNegativeAmount() {
		return pkgerrors.New(pkgerrors.CodeValidation, "amount must not be negative for this change type")
	}
	ids := dedupe(req.VariantIDs)
	if len(ids) == 0 {
		return pkgerrors.New(pkgerrors.CodeValidation, "variant selection is empty")
	}
	if len(ids) > s.maxSelection {
		return pkgerrors.New(pkgerrors.CodeValidation,
			fmt.Sprintf("selection exceeds the limit of %d variants", s.maxSelection))
	}
	for _, id := range ids {
		if id == uuid.Nil {
			return pkgerrors.New(pkgerrors.CodeValidation, "selection contains an empty variant id")
		}
	}
	return nil
}

func (s *service) loadPreview(ctx context.Context, previewID string) (*Preview, error) {
	if previewID == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "preview id required")
	}
	raw, err := s.store.Get(ctx, s.store.PreviewKey(previewID))
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "preview not found or expired")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "loading preview")
	}
	var preview Preview
	if err := json.Unmarshal([]byte(raw), &preview); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "decoding preview")
	}
	return &preview, nil
}

// verifyFresh recomputes the checksum over the live rows the preview covers.
// Any drift, including a deleted row, makes the preview stale.
func (s *service) verifyFresh(ctx context.Context, preview *Preview) error {
	var current string
	switch preview.Kind {
	case KindStock:
		rows, err := s.reloadStockRows(ctx, preview)
		if err != nil {
			return err
		}
		current = stockChecksum(rows)
	default:
		rows, err := s.reloadPriceRows(ctx, preview)
		if err != nil {
			return err
		}
		current = priceChecksum(rows)
	}
	if current != preview.Checksum {
		return pkgerrors.New(pkgerrors.CodeStateConflict, "preview is stale, values changed since it was computed")
	}
	return nil
}

func (s *service) reloadPriceRows(ctx context.Context, preview *Preview) ([]PricePreviewRow, error) {
	variantIDs := make([]uuid.UUID, 0, len(preview.PriceRows))
	wanted := make(map[string]bool, len(preview.PriceRows))
	for _, row := range preview.PriceRows {
		variantIDs = append(variantIDs, row.VariantID)
		wanted[row.VariantID.String()+"|"+row.PriceGroupID.String()] = true
	}
	prices, err := s.repo.ListPrices(ctx, dedupe(variantIDs), nil)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "reloading prices")
	}
	rows := make([]PricePreviewRow, 0, len(preview.PriceRows))
	for _, price := range prices {
		if !wanted[price.VariantID.String()+"|"+price.PriceGroupID.String()] {
			continue
		}
		rows = append(rows, PricePreviewRow{
			VariantID:    price.VariantID,
			PriceGroupID: price.PriceGroupID,
			OldAmount:    price.Amount,
		})
	}
	if len(rows) != len(preview.PriceRows) {
		return nil, pkgerrors.New(pkgerrors.CodeStateConflict, "preview is stale, covered rows were removed")
	}
	return rows, nil
}

func (s *service) reloadStockRows(ctx context.Context, preview *Preview) ([]StockPreviewRow, error) {
	variantIDs := make([]uuid.UUID, 0, len(preview.StockRows))
	wanted := make(map[string]bool, len(preview.StockRows))
	for _, row := range preview.StockRows {
		variantIDs = append(variantIDs, row.VariantID)
		wanted[row.VariantID.String()+"|"+row.WarehouseID.String()] = true
	}
	levels, err := s.repo.ListStock(ctx, dedupe(variantIDs), nil)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "reloading stock levels")
	}
	rows := make([]StockPreviewRow, 0, len(preview.StockRows))
	for _, level := range levels {
		if !wanted[level.VariantID.String()+"|"+level.WarehouseID.String()] {
			continue
		}
		rows = append(rows, StockPreviewRow{
			VariantID:   level.VariantID,
			WarehouseID: level.WarehouseID,
			OldQuantity: level.Quantity,
		})
	}
	if len(rows) != len(preview.StockRows) {
		return nil, pkgerrors.New(pkgerrors.CodeStateConflict, "preview is stale, covered rows were removed")
	}
	return rows, nil
}

func computePriceRows(req PreviewRequest, prices []models.VariantPrice) ([]PricePreviewRow, error) {
	rows := make([]PricePreviewRow, 0, len(prices))
	for _, price := range prices {
		next, err := nextPrice(req.Change, price.Amount, req.Amount)
		if err != nil {
			return nil, err
		}
		rows = append(rows, PricePreviewRow{
			VariantID:    price.VariantID,
			PriceGroupID: price.PriceGroupID,
			OldAmount:    price.Amount,
			NewAmount:    next,
		})
	}
	return rows, nil
}

// warehouseFlags resolves the negative-stock policy of every warehouse the
// stock rows live in.
func (s *service) warehouseFlags(ctx context.Context, levels []models.StockLevel) (map[uuid.UUID]bool, error) {
	ids := make([]uuid.UUID, 0, len(levels))
	for _, level := range levels {
		ids = append(ids, level.WarehouseID)
	}
	warehouses, err := s.repo.ListWarehouses(ctx, dedupe(ids))
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "loading warehouses")
	}
	allowNegative := make(map[uuid.UUID]bool, len(warehouses))
	for _, warehouse := range warehouses {
		allowNegative[warehouse.ID] = warehouse.AllowNegativeStock
	}
	return allowNegative, nil
}

func computeStockRows(req PreviewRequest, levels []models.StockLevel, allowNegative map[uuid.UUID]bool) ([]StockPreviewRow, error) {
	rows := make([]StockPreviewRow, 0, len(levels))
	for _, level := range levels {
		next, err := nextStock(req.Change, level.Quantity, req.Amount, allowNegative[level.WarehouseID])
		if err != nil {
			return nil, err
		}
		rows = append(rows, StockPreviewRow{
			VariantID:   level.VariantID,
			WarehouseID: level.WarehouseID,
			OldQuantity: level.Quantity,
			NewQuantity: next,
		})
	}
	return rows, nil
}

func dedupe(ids []uuid.UUID) []uuid.UUID {
	seen := make(map[uuid.UUID]bool, len(ids))
	out := make([]uuid.UUID, 0, len(ids))
	for _, id := range ids {
		if seen[id] {
			continue
		}
		seen[id] = true
		out = append(out, id)
	}
	return out
}
