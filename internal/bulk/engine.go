package bulk

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"sort"
	"strings"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/pawelnowak/pimhub-backend/pkg/enums"
	pkgerrors "github.com/pawelnowak/pimhub-backend/pkg/errors"
)

// Kind selects which values a bulk rule rewrites.
type Kind string

const (
	KindPrice Kind = "price"
	KindStock Kind = "stock"
)

// IsValid reports whether the kind is known.
func (k Kind) IsValid() bool {
	return k == KindPrice || k == KindStock
}

// String returns the literal string for the kind.
func (k Kind) String() string {
	return string(k)
}

var oneHundred = decimal.NewFromInt(100)

// nextPrice computes the new amount for one price row. Results are rounded
// to two decimal places, half away from zero, and never go below zero.
func nextPrice(change enums.ChangeType, current, amount decimal.Decimal) (decimal.Decimal, error) {
	var next decimal.Decimal
	switch change {
	case enums.ChangeTypeSet:
		next = amount
	case enums.ChangeTypeIncrease:
		next = current.Add(amount)
	case enums.ChangeTypeDecrease:
		next = current.Sub(amount)
	case enums.ChangeTypePercentage:
		next = current.Mul(oneHundred.Add(amount)).Div(oneHundred)
	default:
		return decimal.Zero, pkgerrors.New(pkgerrors.CodeValidation,
			fmt.Sprintf("change type %s not supported for prices", change))
	}
	next = next.Round(2)
	if next.IsNegative() {
		next = decimal.Zero.Round(2)
	}
	return next, nil
}

// nextStock computes the new on-hand quantity for one stock row. Negative
// results are clamped to zero unless the variant allows negative stock.
func nextStock(change enums.ChangeType, current int, amount decimal.Decimal, allowNegative bool) (int, error) {
	if change != enums.ChangeTypePercentage && !amount.IsInteger() {
		return 0, pkgerrors.New(pkgerrors.CodeValidation, "stock amount must be a whole number")
	}
	var next int64
	switch change {
	case enums.ChangeTypeSet:
		next = amount.IntPart()
	case enums.ChangeTypeIncrease:
		next = int64(current) + amount.IntPart()
	case enums.ChangeTypeDecrease:
		next = int64(current) - amount.IntPart()
	case enums.ChangeTypeAdjust:
		next = int64(current) + amount.IntPart()
	case enums.ChangeTypePercentage:
		scaled := decimal.NewFromInt(int64(current)).Mul(oneHundred.Add(amount)).Div(oneHundred)
		next = scaled.Round(0).IntPart()
	default:
		return 0, pkgerrors.New(pkgerrors.CodeValidation,
			fmt.Sprintf("change type %s not supported for stock", change))
	}
	if next < 0 && !allowNegative {
		next = 0
	}
	return int(next), nil
}

// PricePreviewRow is one computed price change, old value alongside new.
type PricePreviewRow struct {
	VariantID    uuid.UUID       `json:"variant_id"`
	PriceGroupID uuid.UUID       `json:"price_group_id"`
	OldAmount    decimal.Decimal `json:"old_amount"`
	NewAmount    decimal.Decimal `json:"new_amount"`
}

// StockPreviewRow is one computed stock change, old value alongside new.
type StockPreviewRow struct {
	VariantID   uuid.UUID `json:"variant_id"`
	WarehouseID uuid.UUID `json:"warehouse_id"`
	OldQuantity int       `json:"old_quantity"`
	NewQuantity int       `json:"new_quantity"`
}

// priceChecksum fingerprints the current amounts a price preview was computed
// from. Apply recomputes it against live data to detect concurrent edits.
func priceChecksum(rows []PricePreviewRow) string {
	lines := make([]string, 0, len(rows))
	for _, row := range rows {
		lines = append(lines, fmt.Sprintf("%s|%s|%s", row.VariantID, row.PriceGroupID, row.OldAmount.StringFixed(2)))
	}
	return checksumLines(lines)
}

// stockChecksum fingerprints the current quantities a stock preview was
// computed from.
func stockChecksum(rows []StockPreviewRow) string {
	lines := make([]string, 0, len(rows))
	for _, row := range rows {
		lines = append(lines, fmt.Sprintf("%s|%s|%d", row.VariantID, row.WarehouseID, row.OldQuantity))
	}
	return checksumLines(lines)
}

func checksumLines(lines []string) string {
	sort.Strings(lines)
	sum := sha256.Sum256([]byte(strings.Join(lines, "\n")))
	return hex.EncodeToString(sum[:])
}
