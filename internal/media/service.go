package media

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"path"
	"regexp"
	"strings"
	"time"

	pubsub "cloud.google.com/go/pubsub/v2"
	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/pawelnowak/pimhub-backend/internal/ledger"
	"github.com/pawelnowak/pimhub-backend/internal/sync"
	"github.com/pawelnowak/pimhub-backend/internal/targets"
	"github.com/pawelnowak/pimhub-backend/pkg/db/models"
	"github.com/pawelnowak/pimhub-backend/pkg/enums"
	pkgerrors "github.com/pawelnowak/pimhub-backend/pkg/errors"
	"github.com/pawelnowak/pimhub-backend/pkg/logger"
)

const maxUploadBytes = 32 << 20

// allowedImageMimeTypes lists the content types accepted into product galleries.
var allowedImageMimeTypes = map[string]struct{}{
	"image/jpeg": {},
	"image/png":  {},
	"image/webp": {},
	"image/gif":  {},
}

type mediaRepository interface {
	CreateItem(ctx context.Context, item *models.MediaItem) (*models.MediaItem, error)
	FindItem(ctx context.Context, id uuid.UUID) (*models.MediaItem, error)
	FindItemByChecksum(ctx context.Context, productID uuid.UUID, checksum string) (*models.MediaItem, error)
	ListForProduct(ctx context.Context, productID uuid.UUID) ([]models.MediaItem, error)
	NextPosition(ctx context.Context, productID uuid.UUID) (int, error)
	UpdateItem(ctx context.Context, item *models.MediaItem) error
	SetPositions(ctx context.Context, productID uuid.UUID, orderedIDs []uuid.UUID) error
	SetPrimary(ctx context.Context, productID, itemID uuid.UUID) error
	DeleteItem(ctx context.Context, id uuid.UUID) error
	SoftDeleteItem(ctx context.Context, id uuid.UUID) error
	Find(ctx context.Context, mediaItemID uuid.UUID, targetType enums.TargetType, targetID uuid.UUID) (*models.MediaMapping, error)
	ListMappingsForProduct(ctx context.Context, productID uuid.UUID) ([]models.MediaMapping, error)
	ListMappingsForItem(ctx context.Context, mediaItemID uuid.UUID) ([]models.MediaMapping, error)
}

type productDirectory interface {
	FindByID(ctx context.Context, id uuid.UUID) (*models.Product, error)
}

type gcsClient interface {
	SignedURL(bucket, object, contentType string, expires time.Duration) (string, error)
	SignedReadURL(bucket, object string, expires time.Duration) (string, error)
	DeleteObject(ctx context.Context, bucket, object string) error
	DefaultBucket() string
}

type changeLedger interface {
	Stage(ctx context.Context, sessionID, productID string, entry ledger.Entry) (*ledger.Entry, error)
	Get(ctx context.Context, sessionID, productID string, mediaItemID uuid.UUID, targetType enums.TargetType, targetID uuid.UUID) (*ledger.Entry, error)
	List(ctx context.Context, sessionID, productID string) ([]ledger.Entry, error)
	Remove(ctx context.Context, sessionID, productID string, entry ledger.Entry) error
	Clear(ctx context.Context, sessionID, productID string) error
}

type applyRunner interface {
	Apply(ctx context.Context, sessionID string, productID uuid.UUID) (*sync.ApplyResult, error)
	ApplyQuiet(ctx context.Context, sessionID string, productID uuid.UUID) (*sync.ApplyResult, error)
}

type targetRegistry interface {
	ListActive(ctx context.Context) ([]targets.Target, error)
	Get(ctx context.Context, targetType enums.TargetType, id uuid.UUID) (*targets.Target, error)
}

type importPublisher interface {
	Publish(ctx context.Context, data []byte) error
}

// ImportQueue adapts a Pub/Sub publisher to the import queue.
type ImportQueue struct {
	publisher *pubsub.Publisher
}

// NewImportQueue wraps the media import topic publisher.
func NewImportQueue(publisher *pubsub.Publisher) (*ImportQueue, error) {
	if publisher == nil {
		return nil, fmt.Errorf("pubsub publisher is required")
	}
	return &ImportQueue{publisher: publisher}, nil
}

// Publish sends one message and waits for the server acknowledgement.
func (q *ImportQueue) Publish(ctx context.Context, data []byte) error {
	result := q.publisher.Publish(ctx, &pubsub.Message{Data: data})
	_, err := result.Get(ctx)
	return err
}

// Import job kinds. URL jobs download one source into an existing pending
// row; discover jobs walk a target's remote gallery and pull in images the
// gallery does not have yet.
const (
	ImportKindURL      = "url"
	ImportKindDiscover = "discover"
)

// ImportMessage is the payload published for asynchronous imports. An empty
// Kind means a URL import, which predates the field.
type ImportMessage struct {
	Kind        string           `json:"kind,omitempty"`
	MediaItemID uuid.UUID        `json:"media_item_id"`
	ProductID   uuid.UUID        `json:"product_id"`
	SourceURL   string           `json:"source_url,omitempty"`
	TargetType  enums.TargetType `json:"target_type,omitempty"`
	TargetID    uuid.UUID        `json:"target_id"`
}

// PresignInput describes the file a client wants to upload directly to storage.
type PresignInput struct {
	FileName  string
	MimeType  string
	SizeBytes int64
}

// PresignOutput carries the created gallery row and the one-time upload URL.
type PresignOutput struct {
	Item      *models.MediaItem `json:"item"`
	UploadURL string            `json:"upload_url"`
	ObjectKey string            `json:"object_key"`
	ExpiresAt time.Time         `json:"expires_at"`
}

// CompleteUploadInput finalizes a presigned upload.
type CompleteUploadInput struct {
	Checksum  string
	SizeBytes int64
}

// StageInput identifies one media/target pair to toggle in the pending ledger.
type StageInput struct {
	MediaItemID uuid.UUID
	TargetType  enums.TargetType
	TargetID    uuid.UUID
	Action      enums.PendingAction
}

// StageResult reports whether the toggle staged a new change or cancelled one.
type StageResult struct {
	Staged  bool          `json:"staged"`
	Removed *ledger.Entry `json:"removed,omitempty"`
}

// GalleryItem is one media row with its per-target sync statuses.
type GalleryItem struct {
	Item     models.MediaItem         `json:"item"`
	Statuses []sync.MediaTargetStatus `json:"statuses"`
}

// GalleryView is the full gallery of a product with pending-change context.
type GalleryView struct {
	ProductID    uuid.UUID     `json:"product_id"`
	Items        []GalleryItem `json:"items"`
	PendingCount int           `json:"pending_count"`
}

// Service manages product gallery media and its deferred target sync.
type Service interface {
	Gallery(ctx context.Context, sessionID string, productID uuid.UUID) (*GalleryView, error)
	PresignUpload(ctx context.Context, productID uuid.UUID, input PresignInput) (*PresignOutput, error)
	CompleteUpload(ctx context.Context, itemID uuid.UUID, input CompleteUploadInput) (*models.MediaItem, error)
	ImportFromURL(ctx context.Context, productID uuid.UUID, sourceURL string) (*models.MediaItem, error)
	ImportFromTarget(ctx context.Context, productID uuid.UUID, targetType enums.TargetType, targetID uuid.UUID) error
	DownloadURL(ctx context.Context, itemID uuid.UUID) (string, error)
	Reorder(ctx context.Context, productID uuid.UUID, orderedIDs []uuid.UUID) error
	SetPrimary(ctx context.Context, productID, itemID uuid.UUID) (*models.MediaItem, error)
	Stage(ctx context.Context, sessionID string, productID uuid.UUID, input StageInput) (*StageResult, error)
	DiscardPending(ctx context.Context, sessionID string, productID uuid.UUID) error
	Apply(ctx context.Context, sessionID string, productID uuid.UUID) (*sync.ApplyResult, error)
	Delete(ctx context.Context, sessionID string, itemID uuid.UUID, scope enums.DeleteScope) error
}

// ServiceParams wires the media service dependencies.
type ServiceParams struct {
	Logger      *logger.Logger
	Repo        mediaRepository
	Products    productDirectory
	GCS         gcsClient
	Ledger      changeLedger
	Reconciler  applyRunner
	Targets     targetRegistry
	Publisher   importPublisher
	UploadTTL   time.Duration
	DownloadTTL time.Duration
}

type service struct {
	logg        *logger.Logger
	repo        mediaRepository
	products    productDirectory
	gcs         gcsClient
	ledger      changeLedger
	reconciler  applyRunner
	targets     targetRegistry
	publisher   importPublisher
	uploadTTL   time.Duration
	downloadTTL time.Duration
}

// NewService constructs the media service.
func NewService(params ServiceParams) (Service, error) {
	if params.Logger == nil {
		return nil, fmt.Errorf("logger is required")
	}
	if params.Repo == nil {
		return nil, fmt.Errorf("media repository is required")
	}
	if params.Products == nil {
		return nil, fmt.Errorf("product directory is required")
	}
	if params.GCS == nil {
		return nil, fmt.Errorf("gcs client is required")
	}
	if params.Ledger == nil {
		return nil, fmt.Errorf("change ledger is required")
	}
	if params.Reconciler == nil {
		return nil, fmt.Errorf("reconciler is required")
	}
	if params.Targets == nil {
		return nil, fmt.Errorf("target registry is required")
	}
	if params.Publisher == nil {
		return nil, fmt.Errorf("import publisher is required")
	}
	uploadTTL := params.UploadTTL
	if uploadTTL <= 0 {
		uploadTTL = 15 * time.Minute
	}
	downloadTTL := params.DownloadTTL
	if downloadTTL <= 0 {
		downloadTTL = time.Hour
	}
	return &service{
		logg:        params.Logger,
		repo:        params.Repo,
		products:    params.Products,
		gcs:         params.GCS,
		ledger:      params.Ledger,
		reconciler:  params.Reconciler,
		targets:     params.Targets,
		publisher:   params.Publisher,
		uploadTTL:   uploadTTL,
		downloadTTL: downloadTTL,
	}, nil
}

// Gallery returns the ordered gallery with projected per-target statuses.
func (s *service) Gallery(ctx context.Context, sessionID string, productID uuid.UUID) (*GalleryView, error) {
	if err := validateScope(sessionID, productID); err != nil {
		return nil, err
	}

	items, err := s.repo.ListForProduct(ctx, productID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "listing gallery items")
	}
	mappings, err := s.repo.ListMappingsForProduct(ctx, productID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "listing media mappings")
	}
	entries, err := s.ledger.List(ctx, sessionID, productID.String())
	if err != nil {
		return nil, err
	}
	active, err := s.targets.ListActive(ctx)
	if err != nil {
		return nil, err
	}

	statuses := sync.Project(items, mappings, entries, active)
	byItem := make(map[uuid.UUID][]sync.MediaTargetStatus, len(items))
	for _, status := range statuses {
		byItem[status.MediaItemID] = append(byItem[status.MediaItemID], status)
	}

	view := &GalleryView{
		ProductID:    productID,
		Items:        make([]GalleryItem, 0, len(items)),
		PendingCount: len(entries),
	}
	for _, item := range items {
		view.Items = append(view.Items, GalleryItem{
			Item:     item,
			Statuses: byItem[item.ID],
		})
	}
	return view, nil
}

// PresignUpload validates the file, creates a pending gallery row and signs a PUT URL.
func (s *service) PresignUpload(ctx context.Context, productID uuid.UUID, input PresignInput) (*PresignOutput, error) {
	if productID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "product id is required")
	}
	fileName := strings.TrimSpace(input.FileName)
	if fileName == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "file name is required")
	}
	mimeType := strings.ToLower(strings.TrimSpace(input.MimeType))
	if _, ok := allowedImageMimeTypes[mimeType]; !ok {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "unsupported image type")
	}
	if input.SizeBytes <= 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "file size is required")
	}
	if input.SizeBytes > maxUploadBytes {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "file exceeds the upload size limit")
	}
	if _, err := s.products.FindByID(ctx, productID); err != nil {
		return nil, err
	}

	position, err := s.repo.NextPosition(ctx, productID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "resolving gallery position")
	}

	item := &models.MediaItem{
		ProductID: productID,
		FileName:  fileName,
		MimeType:  mimeType,
		SizeBytes: input.SizeBytes,
		Position:  position,
		Status:    enums.MediaStatusPendingImport,
	}
	created, err := s.repo.CreateItem(ctx, item)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "creating media item")
	}

	key := ObjectKey(created)
	uploadURL, err := s.gcs.SignedURL(s.gcs.DefaultBucket(), key, mimeType, s.uploadTTL)
	if err != nil {
		// The pending row is useless without an upload URL.
		if delErr := s.repo.DeleteItem(ctx, created.ID); delErr != nil {
			s.logg.Error(ctx, "failed to roll back media item after signing error", delErr)
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "signing upload url")
	}

	return &PresignOutput{
		Item:      created,
		UploadURL: uploadURL,
		ObjectKey: key,
		ExpiresAt: time.Now().Add(s.uploadTTL),
	}, nil
}

// CompleteUpload marks a presigned upload as ready, rejecting duplicate content.
func (s *service) CompleteUpload(ctx context.Context, itemID uuid.UUID, input CompleteUploadInput) (*models.MediaItem, error) {
	if itemID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "media item id is required")
	}
	checksum := strings.ToLower(strings.TrimSpace(input.Checksum))
	if checksum == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "checksum is required")
	}

	item, err := s.findItem(ctx, itemID)
	if err != nil {
		return nil, err
	}
	if item.Status != enums.MediaStatusPendingImport {
		return nil, pkgerrors.New(pkgerrors.CodeStateConflict, "upload is already completed")
	}

	dup, err := s.repo.FindItemByChecksum(ctx, item.ProductID, checksum)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "checking for duplicate media")
	}
	if dup != nil && dup.ID != item.ID {
		key := ObjectKey(item)
		if err := s.gcs.DeleteObject(ctx, s.gcs.DefaultBucket(), key); err != nil {
			s.logg.Error(ctx, "failed to remove duplicate upload object", err)
		}
		if err := s.repo.DeleteItem(ctx, item.ID); err != nil {
			return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "removing duplicate media item")
		}
		return nil, pkgerrors.New(pkgerrors.CodeConflict, "an identical image is already in the gallery")
	}

	publicURL := PublicURL(s.gcs.DefaultBucket(), ObjectKey(item))
	item.Checksum = checksum
	if input.SizeBytes > 0 {
		item.SizeBytes = input.SizeBytes
	}
	item.URL = &publicURL
	item.Status = enums.MediaStatusReady
	if err := s.repo.UpdateItem(ctx, item); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "finalizing media item")
	}
	return item, nil
}

// ImportFromURL creates a pending gallery row and queues the download for the worker.
func (s *service) ImportFromURL(ctx context.Context, productID uuid.UUID, sourceURL string) (*models.MediaItem, error) {
	if productID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "product id is required")
	}
	parsed, err := url.Parse(strings.TrimSpace(sourceURL))
	if err != nil || (parsed.Scheme != "http" && parsed.Scheme != "https") || parsed.Host == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "source url must be a valid http(s) url")
	}
	if _, err := s.products.FindByID(ctx, productID); err != nil {
		return nil, err
	}

	position, err := s.repo.NextPosition(ctx, productID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "resolving gallery position")
	}

	fileName := path.Base(parsed.Path)
	if fileName == "" || fileName == "/" || fileName == "." {
		fileName = "import"
	}
	source := parsed.String()
	item := &models.MediaItem{
		ProductID: productID,
		FileName:  fileName,
		MimeType:  "application/octet-stream",
		SourceURL: &source,
		Position:  position,
		Status:    enums.MediaStatusPendingImport,
	}
	created, err := s.repo.CreateItem(ctx, item)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "creating media item")
	}

	payload, err := json.Marshal(ImportMessage{
		Kind:        ImportKindURL,
		MediaItemID: created.ID,
		ProductID:   productID,
		SourceURL:   source,
	})
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "encoding import message")
	}
	if err := s.publisher.Publish(ctx, payload); err != nil {
		if delErr := s.repo.DeleteItem(ctx, created.ID); delErr != nil {
			s.logg.Error(ctx, "failed to roll back media item after publish error", delErr)
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "queueing media import")
	}

	logCtx := s.logg.WithProductID(ctx, productID.String())
	s.logg.Info(logCtx, "queued media import")
	return created, nil
}

// ImportFromTarget queues a discovery job that walks the target's remote
// gallery and imports images the local gallery does not have yet.
func (s *service) ImportFromTarget(ctx context.Context, productID uuid.UUID, targetType enums.TargetType, targetID uuid.UUID) error {
	if productID == uuid.Nil {
		return pkgerrors.New(pkgerrors.CodeValidation, "product id is required")
	}
	if _, err := s.products.FindByID(ctx, productID); err != nil {
		return err
	}
	target, err := s.targets.Get(ctx, targetType, targetID)
	if err != nil {
		return err
	}
	if !target.IsActive {
		return pkgerrors.New(pkgerrors.CodeStateConflict, "target is inactive")
	}

	payload, err := json.Marshal(ImportMessage{
		Kind:       ImportKindDiscover,
		ProductID:  productID,
		TargetType: targetType,
		TargetID:   targetID,
	})
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "encoding import message")
	}
	if err := s.publisher.Publish(ctx, payload); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "queueing target import")
	}

	logCtx := s.logg.WithProductID(ctx, productID.String())
	s.logg.Info(s.logg.WithTarget(logCtx, fmt.Sprintf("%s:%s", targetType, targetID)), "queued target gallery import")
	return nil
}

// DownloadURL signs a short-lived read URL for one gallery item.
func (s *service) DownloadURL(ctx context.Context, itemID uuid.UUID) (string, error) {
	item, err := s.findItem(ctx, itemID)
	if err != nil {
		return "", err
	}
	if item.Status != enums.MediaStatusReady {
		return "", pkgerrors.New(pkgerrors.CodeStateConflict, "media item is not ready")
	}
	signed, err := s.gcs.SignedReadURL(s.gcs.DefaultBucket(), ObjectKey(item), s.downloadTTL)
	if err != nil {
		return "", pkgerrors.Wrap(pkgerrors.CodeDependency, err, "signing download url")
	}
	return signed, nil
}

// Reorder persists a full permutation of the product gallery.
func (s *service) Reorder(ctx context.Context, productID uuid.UUID, orderedIDs []uuid.UUID) error {
	if productID == uuid.Nil {
		return pkgerrors.New(pkgerrors.CodeValidation, "product id is required")
	}
	if len(orderedIDs) == 0 {
		return pkgerrors.New(pkgerrors.CodeValidation, "ordering must not be empty")
	}
	seen := make(map[uuid.UUID]struct{}, len(orderedIDs))
	for _, id := range orderedIDs {
		if id == uuid.Nil {
			return pkgerrors.New(pkgerrors.CodeValidation, "ordering contains an empty media item id")
		}
		if _, dup := seen[id]; dup {
			return pkgerrors.New(pkgerrors.CodeValidation, "ordering contains a duplicate media item id")
		}
		seen[id] = struct{}{}
	}

	items, err := s.repo.ListForProduct(ctx, productID)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "listing gallery items")
	}
	if len(items) != len(orderedIDs) {
		return pkgerrors.New(pkgerrors.CodeValidation, "ordering must cover the whole gallery")
	}
	for _, item := range items {
		if _, ok := seen[item.ID]; !ok {
			return pkgerrors.New(pkgerrors.CodeValidation, "ordering must cover the whole gallery")
		}
	}

	if err := s.repo.SetPositions(ctx, productID, orderedIDs); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return pkgerrors.New(pkgerrors.CodeValidation, "ordering references unknown media items")
		}
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "saving gallery order")
	}
	return nil
}

// Stage toggles one media/target pending change in the session ledger.
func (s *service) Stage(ctx context.Context, sessionID string, productID uuid.UUID, input StageInput) (*StageResult, error) {
	if err := validateScope(sessionID, productID); err != nil {
		return nil, err
	}
	if !input.Action.IsValid() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "invalid pending action")
	}

	item, err := s.findItem(ctx, input.MediaItemID)
	if err != nil {
		return nil, err
	}
	if item.ProductID != productID {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "media item does not belong to this product")
	}
	if input.Action == enums.PendingActionSync && item.Status != enums.MediaStatusReady {
		return nil, pkgerrors.New(pkgerrors.CodeStateConflict, "only ready media can be staged for sync")
	}

	target, err := s.targets.Get(ctx, input.TargetType, input.TargetID)
	if err != nil {
		return nil, err
	}
	if !target.IsActive {
		return nil, pkgerrors.New(pkgerrors.CodeStateConflict, "target is inactive")
	}

	// With nothing staged for the pair, a toggle that matches the persisted
	// sync state has no work to do and must not create an entry.
	staged, err := s.ledger.Get(ctx, sessionID, productID.String(), input.MediaItemID, input.TargetType, input.TargetID)
	if err != nil {
		return nil, err
	}
	if staged == nil {
		mapping, err := s.repo.Find(ctx, input.MediaItemID, input.TargetType, input.TargetID)
		if err != nil {
			return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "loading media mapping")
		}
		currentlySynced := mapping != nil && mapping.Synced && mapping.ExternalID != nil
		if currentlySynced == (input.Action == enums.PendingActionSync) {
			return &StageResult{Staged: false}, nil
		}
	}

	removed, err := s.ledger.Stage(ctx, sessionID, productID.String(), ledger.Entry{
		MediaItemID: input.MediaItemID,
		TargetType:  input.TargetType,
		TargetID:    input.TargetID,
		Action:      input.Action,
	})
	if err != nil {
		return nil, err
	}
	return &StageResult{Staged: removed == nil, Removed: removed}, nil
}

// DiscardPending drops every staged change of the session for the product.
func (s *service) DiscardPending(ctx context.Context, sessionID string, productID uuid.UUID) error {
	if err := validateScope(sessionID, productID); err != nil {
		return err
	}
	return s.ledger.Clear(ctx, sessionID, productID.String())
}

// Apply reconciles every staged change for the product against its targets.
func (s *service) Apply(ctx context.Context, sessionID string, productID uuid.UUID) (*sync.ApplyResult, error) {
	if err := validateScope(sessionID, productID); err != nil {
		return nil, err
	}
	return s.reconciler.Apply(ctx, sessionID, productID)
}

// SetPrimary marks one ready gallery item as the product's primary image,
// demoting whichever item held it.
func (s *service) SetPrimary(ctx context.Context, productID, itemID uuid.UUID) (*models.MediaItem, error) {
	if productID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "product id is required")
	}
	item, err := s.findItem(ctx, itemID)
	if err != nil {
		return nil, err
	}
	if item.ProductID != productID {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "media item does not belong to this product")
	}
	if item.Status != enums.MediaStatusReady {
		return nil, pkgerrors.New(pkgerrors.CodeStateConflict, "only ready media can be primary")
	}
	if err := s.repo.SetPrimary(ctx, productID, itemID); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "setting primary media item")
	}
	item.IsPrimary = true
	return item, nil
}

// Delete removes a gallery item locally, remotely, or both.
func (s *service) Delete(ctx context.Context, sessionID string, itemID uuid.UUID, scope enums.DeleteScope) error {
	if strings.TrimSpace(sessionID) == "" {
		return pkgerrors.New(pkgerrors.CodeValidation, "session id is required")
	}
	if !scope.IsValid() {
		return pkgerrors.New(pkgerrors.CodeValidation, "invalid delete scope")
	}

	item, err := s.findItem(ctx, itemID)
	if err != nil {
		return err
	}
	productKey := item.ProductID.String()

	if scope.IncludesRemote() {
		if err := s.removeRemoteCopies(ctx, sessionID, item); err != nil {
			return err
		}
	}

	if !scope.IncludesLocal() {
		return nil
	}

	// Staged changes referencing a deleted row can never apply.
	entries, err := s.ledger.List(ctx, sessionID, productKey)
	if err != nil {
		return err
	}
	for _, entry := range entries {
		if entry.MediaItemID != item.ID {
			continue
		}
		if err := s.ledger.Remove(ctx, sessionID, productKey, entry); err != nil {
			return err
		}
	}

	// The row is only marked removed here. The cleanup sweep purges the
	// storage object and the row once the grace period has passed.
	if err := s.repo.SoftDeleteItem(ctx, item.ID); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "deleting media item")
	}
	return nil
}

// removeRemoteCopies stages an unsync for every mapped target and reconciles quietly.
func (s *service) removeRemoteCopies(ctx context.Context, sessionID string, item *models.MediaItem) error {
	mappings, err := s.repo.ListMappingsForItem(ctx, item.ID)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "listing media mappings")
	}
	if len(mappings) == 0 {
		return nil
	}

	productKey := item.ProductID.String()
	for _, mapping := range mappings {
		if mapping.ExternalID == nil {
			continue
		}
		entry := ledger.Entry{
			MediaItemID: item.ID,
			TargetType:  mapping.TargetType,
			TargetID:    mapping.TargetID,
			Action:      enums.PendingActionUnsync,
		}
		removed, err := s.ledger.Stage(ctx, sessionID, productKey, entry)
		if err != nil {
			return err
		}
		// Staging toggles, so an already staged pair comes back out. Stage
		// again to land on an unsync regardless of prior session state.
		if removed != nil {
			if _, err := s.ledger.Stage(ctx, sessionID, productKey, entry); err != nil {
				return err
			}
		}
	}

	result, err := s.reconciler.ApplyQuiet(ctx, sessionID, item.ProductID)
	if err != nil {
		return err
	}
	if result.Failed > 0 {
		return pkgerrors.New(pkgerrors.CodeDependency, "remote removal failed for one or more targets")
	}
	return nil
}

func (s *service) findItem(ctx context.Context, itemID uuid.UUID) (*models.MediaItem, error) {
	if itemID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "media item id is required")
	}
	item, err := s.repo.FindItem(ctx, itemID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "media item not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "loading media item")
	}
	return item, nil
}

func validateScope(sessionID string, productID uuid.UUID) error {
	if strings.TrimSpace(sessionID) == "" {
		return pkgerrors.New(pkgerrors.CodeValidation, "session id is required")
	}
	if productID == uuid.Nil {
		return pkgerrors.New(pkgerrors.CodeValidation, "product id is required")
	}
	return nil
}

var unsafeFileNameChars = regexp.MustCompile(`[^a-zA-Z0-9._-]+`)

// ObjectKey derives the storage object key for a gallery item.
func ObjectKey(item *models.MediaItem) string {
	return fmt.Sprintf("media/%s/%s/%s", item.ProductID, item.ID, sanitizeFileName(item.FileName))
}

// PublicURL returns the canonical storage URL for an object.
func PublicURL(bucket, object string) string {
	return fmt.Sprintf("https://storage.googleapis.com/%s/%s", bucket, object)
}

func sanitizeFileName(name string) string {
	cleaned := unsafeFileNameChars.ReplaceAllString(strings.TrimSpace(name), "-")
	cleaned = strings.Trim(cleaned, "-.")
	if cleaned == "" {
		return "file"
	}
	return cleaned
}
