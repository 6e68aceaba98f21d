package product

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/pawelnowak/pimhub-backend/pkg/pagination"
)

// ListFilters describe the supported filter knobs for the catalog browse endpoint.
type ListFilters struct {
	Query    string  `json:"q,omitempty"`
	Tag      string  `json:"tag,omitempty"`
	IsActive *bool   `json:"is_active,omitempty"`
	EAN      *string `json:"ean,omitempty"`
}

// ListInput captures the inputs needed to paginate and filter the catalog.
type ListInput struct {
	Filters    ListFilters
	Pagination pagination.Params
}

// Summary is the catalog row shape returned by list queries.
type Summary struct {
	ID           uuid.UUID `json:"id"`
	SKU          string    `json:"sku"`
	Name         string    `json:"name"`
	EAN          *string   `json:"ean,omitempty"`
	IsActive     bool      `json:"is_active"`
	VariantCount int       `json:"variant_count"`
	MediaCount   int       `json:"media_count"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// ListResult wraps one page of catalog rows and the cursor for the next page.
type ListResult struct {
	Products   []Summary `json:"products"`
	NextCursor string    `json:"next_cursor,omitempty"`
}

// ListSummaries pages through catalog rows newest first.
func (r *Repository) ListSummaries(ctx context.Context, input ListInput) (*ListResult, error) {
	pageSize := pagination.NormalizeLimit(input.Pagination.Limit)
	limitWithBuffer := pagination.LimitWithBuffer(input.Pagination.Limit)
	if limitWithBuffer <= pageSize {
		limitWithBuffer = pageSize + 1
	}

	cursor, err := pagination.ParseCursor(input.Pagination.Cursor)
	if err != nil {
		return nil, err
	}

	qb := r.db.WithContext(ctx).
		Table("products p").
		Select(strings.Join([]string{
			"p.id",
			"p.sku",
			"p.name",
			"p.ean",
			"p.is_active",
			"(SELECT COUNT(*) FROM product_variants v WHERE v.product_id = p.id) AS variant_count",
			"(SELECT COUNT(*) FROM media_items m WHERE m.product_id = p.id) AS media_count",
			"p.created_at",
			"p.updated_at",
		}, ", "))

	filter := input.Filters
	if filter.IsActive != nil {
		qb = qb.Where("p.is_active = ?", *filter.IsActive)
	}
	if filter.EAN != nil {
		qb = qb.Where("p.ean = ?", *filter.EAN)
	}
	if tag := strings.TrimSpace(filter.Tag); tag != "" {
		qb = qb.Where("? = ANY(p.tags)", tag)
	}
	if search := strings.TrimSpace(filter.Query); search != "" {
		pattern := "%" + strings.ToLower(search) + "%"
		qb = qb.Where("(LOWER(p.name) LIKE ? OR LOWER(p.sku) LIKE ?)", pattern, pattern)
	}

	if cursor != nil {
		qb = qb.Where("(p.created_at < ?) OR (p.created_at = ? AND p.id < ?)", cursor.CreatedAt, cursor.CreatedAt, cursor.ID)
	}

	qb = qb.Order("p.created_at DESC").Order("p.id DESC").Limit(limitWithBuffer)

	var records []summaryRecord
	if err := qb.Scan(&records).Error; err != nil {
		return nil, err
	}

	resultRows := records
	nextCursor := ""
	if len(records) > pageSize {
		resultRows = records[:pageSize]
		last := resultRows[len(resultRows)-1]
		nextCursor = pagination.EncodeCursor(pagination.Cursor{CreatedAt: last.CreatedAt, ID: last.ID})
	}

	summaries := make([]Summary, 0, len(resultRows))
	for _, record := range resultRows {
		summaries = append(summaries, record.toSummary())
	}

	return &ListResult{
		Products:   summaries,
		NextCursor: nextCursor,
	}, nil
}

type summaryRecord struct {
	ID           uuid.UUID
	SKU          string
	Name         string
	EAN          *string
	IsActive     bool
	VariantCount int
	MediaCount   int
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

func (r summaryRecord) toSummary() Summary {
	return Summary{
		ID:           r.ID,
		SKU:          r.SKU,
		Name:         r.Name,
		EAN:          r.EAN,
		IsActive:     r.IsActive,
		VariantCount: r.VariantCount,
		MediaCount:   r.MediaCount,
		CreatedAt:    r.CreatedAt,
		UpdatedAt:    r.UpdatedAt,
	}
}
