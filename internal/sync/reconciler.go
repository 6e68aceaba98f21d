package sync

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/multierr"

	"github.com/pawelnowak/pimhub-backend/internal/ledger"
	"github.com/pawelnowak/pimhub-backend/internal/targets"
	"github.com/pawelnowak/pimhub-backend/pkg/db/models"
	"github.com/pawelnowak/pimhub-backend/pkg/enums"
	pkgerrors "github.com/pawelnowak/pimhub-backend/pkg/errors"
	"github.com/pawelnowak/pimhub-backend/pkg/logger"
	"github.com/pawelnowak/pimhub-backend/pkg/metrics"
)

// ImagePush describes one image to place on a remote target. Products are
// addressed by SKU so remote and local catalogs need no shared ids.
type ImagePush struct {
	ProductSKU  string
	MediaItemID uuid.UUID
	FileName    string
	MimeType    string
	SourceURL   string
	Checksum    string
	Position    int
}

// ImageRemove identifies a remote image to take down.
type ImageRemove struct {
	ProductSKU string
	ExternalID string
}

// RemoteImage describes one image already present on a target, as reported
// by its gallery listing.
type RemoteImage struct {
	ExternalID string
	SourceURL  string
	Checksum   string
}

// Adapter talks to one kind of external target. Implementations return the
// remote id of a pushed image so the mapping can be persisted, and must not
// create a second remote copy when the image is already in the gallery.
type Adapter interface {
	PushImage(ctx context.Context, targetID uuid.UUID, push ImagePush) (string, error)
	RemoveImage(ctx context.Context, targetID uuid.UUID, remove ImageRemove) error
	ListImages(ctx context.Context, targetID uuid.UUID, productSKU string) ([]RemoteImage, error)
}

type ledgerStore interface {
	List(ctx context.Context, sessionID, productID string) ([]ledger.Entry, error)
	Remove(ctx context.Context, sessionID, productID string, entry ledger.Entry) error
}

type catalog interface {
	ProductWithMedia(ctx context.Context, id uuid.UUID) (*models.Product, error)
}

type mappingStore interface {
	Find(ctx context.Context, mediaItemID uuid.UUID, targetType enums.TargetType, targetID uuid.UUID) (*models.MediaMapping, error)
	Upsert(ctx context.Context, mapping *models.MediaMapping) error
	Delete(ctx context.Context, mediaItemID uuid.UUID, targetType enums.TargetType, targetID uuid.UUID) error
	RecordFailure(ctx context.Context, mediaItemID uuid.UUID, targetType enums.TargetType, targetID uuid.UUID, message string) error
}

type targetRegistry interface {
	Get(ctx context.Context, targetType enums.TargetType, id uuid.UUID) (*targets.Target, error)
}

type notifier interface {
	Notify(ctx context.Context, severity enums.NotificationSeverity, title, message string) error
}

// ApplyResult summarizes one reconciliation run. Failed entries stay staged
// so a later run can retry them; dropped entries referenced state that no
// longer exists and were discarded.
type ApplyResult struct {
	Synced  int   `json:"synced"`
	Removed int   `json:"removed"`
	Failed  int   `json:"failed"`
	Dropped int   `json:"dropped"`
	Errs    error `json:"-"`
}

// Applied is the total number of entries that took effect, regardless of
// direction.
func (r *ApplyResult) Applied() int {
	return r.Synced + r.Removed
}

// ReconcilerParams configures the pending-change reconciler.
type ReconcilerParams struct {
	Logger   *logger.Logger
	Ledger   ledgerStore
	Catalog  catalog
	Mappings mappingStore
	Registry targetRegistry
	Adapters map[enums.TargetType]Adapter
	Notifier notifier
	Metrics  *metrics.SyncMetrics
}

// Reconciler applies staged media sync changes against their targets, one
// entry at a time in staging order. A failing entry never blocks the rest.
type Reconciler struct {
	logg     *logger.Logger
	ledger   ledgerStore
	catalog  catalog
	mappings mappingStore
	registry targetRegistry
	adapters map[enums.TargetType]Adapter
	notifier notifier
	metrics  *metrics.SyncMetrics
}

// NewReconciler builds a reconciler from its collaborators.
func NewReconciler(params ReconcilerParams) (*Reconciler, error) {
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	if params.Ledger == nil {
		return nil, fmt.Errorf("ledger required")
	}
	if params.Catalog == nil {
		return nil, fmt.Errorf("catalog required")
	}
	if params.Mappings == nil {
		return nil, fmt.Errorf("mapping store required")
	}
	if params.Registry == nil {
		return nil, fmt.Errorf("target registry required")
	}
	if len(params.Adapters) == 0 {
		return nil, fmt.Errorf("at least one adapter required")
	}
	if params.Notifier == nil {
		return nil, fmt.Errorf("notifier required")
	}
	return &Reconciler{
		logg:     params.Logger,
		ledger:   params.Ledger,
		catalog:  params.Catalog,
		mappings: params.Mappings,
		registry: params.Registry,
		adapters: params.Adapters,
		notifier: params.Notifier,
		metrics:  params.Metrics,
	}, nil
}

// Apply reconciles every staged change for the session and product, then
// notifies the back office with a summary.
func (r *Reconciler) Apply(ctx context.Context, sessionID string, productID uuid.UUID) (*ApplyResult, error) {
	return r.apply(ctx, sessionID, productID, false)
}

// ApplyQuiet reconciles exactly like Apply but emits no notification. It is
// used when reconciliation runs as a side effect of another operation, such
// as deleting media remotely.
func (r *Reconciler) ApplyQuiet(ctx context.Context, sessionID string, productID uuid.UUID) (*ApplyResult, error) {
	return r.apply(ctx, sessionID, productID, true)
}

func (r *Reconciler) apply(ctx context.Context, sessionID string, productID uuid.UUID, quiet bool) (*ApplyResult, error) {
	if productID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "product id required")
	}
	logCtx := r.logg.WithProductID(ctx, productID.String())

	entries, err := r.ledger.List(logCtx, sessionID, productID.String())
	if err != nil {
		return nil, err
	}
	result := &ApplyResult{}
	if len(entries) == 0 {
		return result, nil
	}

	product, err := r.catalog.ProductWithMedia(logCtx, productID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "loading product")
	}

	for _, entry := range entries {
		if err := r.applyEntry(logCtx, sessionID, product, entry); err != nil {
			if pkgerrors.As(err).Code() == pkgerrors.CodeConsistency {
				r.dropEntry(logCtx, sessionID, productID.String(), entry, err)
				result.Dropped++
				continue
			}
			result.Failed++
			result.Errs = multierr.Append(result.Errs, err)
			continue
		}
		if entry.Action == enums.PendingActionUnsync {
			result.Removed++
		} else {
			result.Synced++
		}
	}

	if !quiet {
		r.notify(logCtx, product, result)
	}
	return result, nil
}

func (r *Reconciler) applyEntry(ctx context.Context, sessionID string, product *models.Product, entry ledger.Entry) error {
	start := time.Now()
	logCtx := r.logg.WithTarget(ctx, fmt.Sprintf("%s:%s", entry.TargetType, entry.TargetID))

	adapter, ok := r.adapters[entry.TargetType]
	if !ok {
		return pkgerrors.New(pkgerrors.CodeConsistency, "no adapter for target type "+entry.TargetType.String())
	}

	target, err := r.registry.Get(logCtx, entry.TargetType, entry.TargetID)
	if err != nil {
		if pkgerrors.As(err).Code() == pkgerrors.CodeNotFound {
			return pkgerrors.Wrap(pkgerrors.CodeConsistency, err, "target no longer registered")
		}
		return r.recordFailure(logCtx, entry, err)
	}
	if !target.IsActive {
		return r.recordFailure(logCtx, entry,
			pkgerrors.New(pkgerrors.CodeStateConflict, "target is inactive"))
	}

	var opErr error
	switch entry.Action {
	case enums.PendingActionUnsync:
		opErr = r.applyUnsync(logCtx, adapter, product, entry)
	default:
		opErr = r.applySync(logCtx, adapter, product, entry)
	}
	r.observe(entry, opErr, time.Since(start))
	if opErr != nil {
		if pkgerrors.As(opErr).Code() == pkgerrors.CodeConsistency {
			return opErr
		}
		return r.recordFailure(logCtx, entry, opErr)
	}

	if err := r.ledger.Remove(logCtx, sessionID, product.ID.String(), entry); err != nil {
		return err
	}
	return nil
}

func (r *Reconciler) applySync(ctx context.Context, adapter Adapter, product *models.Product, entry ledger.Entry) error {
	item := findMediaItem(product, entry.MediaItemID)
	if item == nil {
		return pkgerrors.New(pkgerrors.CodeConsistency, "media item no longer exists")
	}
	if item.Status != enums.MediaStatusReady {
		return pkgerrors.New(pkgerrors.CodeStateConflict, "media item is not ready")
	}
	sourceURL := item.SourceURL
	if item.URL != nil {
		sourceURL = item.URL
	}
	if sourceURL == nil || *sourceURL == "" {
		return pkgerrors.New(pkgerrors.CodeStateConflict, "media item has no readable url")
	}

	externalID, err := adapter.PushImage(ctx, entry.TargetID, ImagePush{
		ProductSKU:  product.SKU,
		MediaItemID: item.ID,
		FileName:    item.FileName,
		MimeType:    item.MimeType,
		SourceURL:   *sourceURL,
		Checksum:    item.Checksum,
		Position:    item.Position,
	})
	if err != nil {
		return err
	}

	now := time.Now().UTC()
	mapping := &models.MediaMapping{
		MediaItemID:  item.ID,
		TargetType:   entry.TargetType,
		TargetID:     entry.TargetID,
		ExternalID:   &externalID,
		Synced:       true,
		LastError:    nil,
		LastSyncedAt: &now,
	}
	if err := r.mappings.Upsert(ctx, mapping); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "persisting mapping")
	}
	r.logg.Info(ctx, "media item synced")
	return nil
}

func (r *Reconciler) applyUnsync(ctx context.Context, adapter Adapter, product *models.Product, entry ledger.Entry) error {
	mapping, err := r.mappings.Find(ctx, entry.MediaItemID, entry.TargetType, entry.TargetID)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "loading mapping")
	}
	// No mapping or no remote id means there is nothing to take down; the
	// unsync is trivially complete.
	if mapping != nil && mapping.ExternalID != nil {
		if err := adapter.RemoveImage(ctx, entry.TargetID, ImageRemove{
			ProductSKU: product.SKU,
			ExternalID: *mapping.ExternalID,
		}); err != nil {
			return err
		}
	}
	if mapping != nil {
		if err := r.mappings.Delete(ctx, entry.MediaItemID, entry.TargetType, entry.TargetID); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "deleting mapping")
		}
	}
	r.logg.Info(ctx, "media item unsynced")
	return nil
}

// recordFailure persists the error on the mapping and keeps the ledger entry
// staged so a later run retries it.
func (r *Reconciler) recordFailure(ctx context.Context, entry ledger.Entry, cause error) error {
	if err := r.mappings.RecordFailure(ctx, entry.MediaItemID, entry.TargetType, entry.TargetID, cause.Error()); err != nil {
		r.logg.Error(ctx, "failed to record sync failure", err)
	}
	r.logg.Error(ctx, "sync entry failed; kept staged for retry", cause)
	return fmt.Errorf("entry %s: %w", entry.Field(), cause)
}

// dropEntry discards an entry whose referenced state disappeared between
// staging and apply.
func (r *Reconciler) dropEntry(ctx context.Context, sessionID, productID string, entry ledger.Entry, cause error) {
	r.logg.Warn(r.logg.WithField(ctx, "entry", entry.Field()), "dropping stale sync entry: "+cause.Error())
	if err := r.ledger.Remove(ctx, sessionID, productID, entry); err != nil {
		r.logg.Error(ctx, "failed to drop stale sync entry", err)
	}
}

func (r *Reconciler) observe(entry ledger.Entry, err error, took time.Duration) {
	outcome := "success"
	if err != nil {
		outcome = "failure"
	}
	r.metrics.IncOperation(entry.TargetType.String(), entry.Action.String(), outcome)
	r.metrics.ObserveApplyDuration(entry.TargetType.String(), took)
}

func (r *Reconciler) notify(ctx context.Context, product *models.Product, result *ApplyResult) {
	severity := enums.NotificationSuccess
	message := fmt.Sprintf("%d synced, %d removed for %s", result.Synced, result.Removed, product.SKU)
	switch {
	case result.Failed > 0:
		severity = enums.NotificationError
		message = fmt.Sprintf("%d synced, %d removed, %d error(s) for %s",
			result.Synced, result.Removed, result.Failed, product.SKU)
	case result.Dropped > 0:
		severity = enums.NotificationWarning
		message = fmt.Sprintf("%d synced, %d removed, %d stale change(s) discarded for %s",
			result.Synced, result.Removed, result.Dropped, product.SKU)
	}
	if err := r.notifier.Notify(ctx, severity, "Media sync", message); err != nil {
		r.logg.Error(ctx, "failed to publish sync notification", err)
	}
}

func findMediaItem(product *models.Product, id uuid.UUID) *models.MediaItem {
	for i := range product.Media {
		if product.Media[i].ID == id {
			return &product.Media[i]
		}
	}
	return nil
}
