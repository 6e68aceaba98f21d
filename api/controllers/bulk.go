package controllers

import (
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/pawelnowak/pimhub-backend/api/responses"
	"github.com/pawelnowak/pimhub-backend/api/validators"
	"github.com/pawelnowak/pimhub-backend/internal/bulk"
	"github.com/pawelnowak/pimhub-backend/pkg/enums"
	pkgerrors "github.com/pawelnowak/pimhub-backend/pkg/errors"
	"github.com/pawelnowak/pimhub-backend/pkg/logger"
)

type bulkPreviewBody struct {
	Kind          string          `json:"kind" validate:"required"`
	Change        string          `json:"change" validate:"required"`
	Amount        decimal.Decimal `json:"amount"`
	VariantIDs    []uuid.UUID     `json:"variant_ids" validate:"required,min=1"`
	PriceGroupIDs []uuid.UUID     `json:"price_group_ids,omitempty"`
	WarehouseIDs  []uuid.UUID     `json:"warehouse_ids,omitempty"`
}

// BulkPreview computes the before/after rows for a bulk price or stock
// change without touching any data.
func BulkPreview(svc bulk.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var body bulkPreviewBody
		if err := validators.DecodeJSONBody(r, &body); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		kind := bulk.Kind(body.Kind)
		if !kind.IsValid() {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeValidation, "kind must be price or stock"))
			return
		}
		change, err := enums.ParseChangeType(body.Change)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid change"))
			return
		}

		preview, err := svc.Preview(r.Context(), bulk.PreviewRequest{
			Kind:          kind,
			Change:        change,
			Amount:        body.Amount,
			VariantIDs:    body.VariantIDs,
			PriceGroupIDs: body.PriceGroupIDs,
			WarehouseIDs:  body.WarehouseIDs,
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccessStatus(w, http.StatusCreated, preview)
	}
}

func BulkPreviewDetail(svc bulk.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		previewID, err := pathPreviewID(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		preview, err := svc.GetPreview(r.Context(), previewID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, preview)
	}
}

// BulkApply commits a stored preview. The engine re-checksums current
// rows first, so a preview invalidated by concurrent edits is rejected.
func BulkApply(svc bulk.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		previewID, err := pathPreviewID(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		outcome, err := svc.Apply(r.Context(), previewID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, map[string]any{
			"preview_id": outcome.PreviewID,
			"kind":       outcome.Kind,
			"rows":       outcome.Rows,
		})
	}
}

// BulkPriceGroups lists the price group ids a preview can scope to.
func BulkPriceGroups(svc bulk.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ids, err := svc.AllPriceGroupIDs(r.Context())
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, map[string]any{"price_group_ids": ids})
	}
}

func BulkDiscard(svc bulk.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		previewID, err := pathPreviewID(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		if err := svc.Discard(r.Context(), previewID); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, map[string]string{"status": "discarded"})
	}
}

func pathPreviewID(r *http.Request) (string, error) {
	id := strings.TrimSpace(chi.URLParam(r, "previewId"))
	if id == "" {
		return "", pkgerrors.New(pkgerrors.CodeValidation, "previewId is required")
	}
	return id, nil
}
