package consumer

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"path"
	"strings"
	"time"

	pubsub "cloud.google.com/go/pubsub/v2"
	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/pawelnowak/pimhub-backend/internal/media"
	"github.com/pawelnowak/pimhub-backend/internal/sync"
	"github.com/pawelnowak/pimhub-backend/pkg/db/models"
	"github.com/pawelnowak/pimhub-backend/pkg/enums"
	"github.com/pawelnowak/pimhub-backend/pkg/logger"
)

const (
	maxImportBytes  = 32 << 20
	downloadTimeout = 2 * time.Minute
)

// importableMimeTypes mirrors the gallery upload allowlist.
var importableMimeTypes = map[string]struct{}{
	"image/jpeg": {},
	"image/png":  {},
	"image/webp": {},
	"image/gif":  {},
}

type repository interface {
	CreateItem(ctx context.Context, item *models.MediaItem) (*models.MediaItem, error)
	FindItem(ctx context.Context, id uuid.UUID) (*models.MediaItem, error)
	FindItemByChecksum(ctx context.Context, productID uuid.UUID, checksum string) (*models.MediaItem, error)
	NextPosition(ctx context.Context, productID uuid.UUID) (int, error)
	UpdateItem(ctx context.Context, item *models.MediaItem) error
	DeleteItem(ctx context.Context, id uuid.UUID) error
	FindMappingByExternal(ctx context.Context, targetType enums.TargetType, targetID uuid.UUID, externalID string) (*models.MediaMapping, error)
	Upsert(ctx context.Context, mapping *models.MediaMapping) error
}

type productDirectory interface {
	FindByID(ctx context.Context, id uuid.UUID) (*models.Product, error)
}

type objectStore interface {
	SignedURL(bucket, object, contentType string, expires time.Duration) (string, error)
	DefaultBucket() string
}

// ImageLister is the slice of a target adapter discovery needs.
type ImageLister interface {
	ListImages(ctx context.Context, targetID uuid.UUID, productSKU string) ([]sync.RemoteImage, error)
}

// Consumer processes queued media imports: URL downloads into pending gallery
// rows and discovery walks over a target's remote gallery.
type Consumer struct {
	repo         repository
	products     productDirectory
	store        objectStore
	subscription *pubsub.Subscriber
	listers      map[enums.TargetType]ImageLister
	httpClient   *http.Client
	logg         *logger.Logger
}

// Params wires the consumer dependencies.
type Params struct {
	Repo         repository
	Products     productDirectory
	Store        objectStore
	Subscription *pubsub.Subscriber
	Listers      map[enums.TargetType]ImageLister
	Logger       *logger.Logger
	HTTPClient   *http.Client
}

// NewConsumer constructs a consumer that watches the import subscription.
func NewConsumer(params Params) (*Consumer, error) {
	if params.Repo == nil {
		return nil, errors.New("media repository is required")
	}
	if params.Products == nil {
		return nil, errors.New("product directory is required")
	}
	if params.Store == nil {
		return nil, errors.New("object store is required")
	}
	if params.Subscription == nil {
		return nil, errors.New("import subscription is required")
	}
	if len(params.Listers) == 0 {
		return nil, errors.New("at least one target adapter is required")
	}
	if params.Logger == nil {
		return nil, errors.New("logger is required")
	}
	httpClient := params.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: downloadTimeout}
	}
	return &Consumer{
		repo:         params.Repo,
		products:     params.Products,
		store:        params.Store,
		subscription: params.Subscription,
		listers:      params.Listers,
		httpClient:   httpClient,
		logg:         params.Logger,
	}, nil
}

// Run processes messages until the context is canceled or the subscription errors.
func (c *Consumer) Run(ctx context.Context) error {
	return c.subscription.Receive(ctx, func(ctx context.Context, msg *pubsub.Message) {
		result := c.process(ctx, msg)
		if result.nack {
			msg.Nack()
			return
		}
		msg.Ack()
	})
}

type processResult struct {
	ack  bool
	nack bool
}

func (c *Consumer) process(ctx context.Context, msg *pubsub.Message) processResult {
	var payload media.ImportMessage
	if err := json.Unmarshal(msg.Data, &payload); err != nil {
		logCtx := c.logg.WithField(ctx, "message_id", msg.ID)
		c.logg.Error(logCtx, "failed to unmarshal import message", err)
		return processResult{ack: true}
	}

	logCtx := c.logg.WithFields(ctx, map[string]any{
		"message_id":    msg.ID,
		"media_item_id": payload.MediaItemID.String(),
		"product_id":    payload.ProductID.String(),
	})

	if payload.Kind == media.ImportKindDiscover {
		return c.discover(logCtx, payload)
	}

	if payload.MediaItemID == uuid.Nil || strings.TrimSpace(payload.SourceURL) == "" {
		c.logg.Error(logCtx, "import message missing required fields", fmt.Errorf("incomplete payload"))
		return processResult{ack: true}
	}

	item, err := c.repo.FindItem(logCtx, payload.MediaItemID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			c.logg.Warn(logCtx, "media item no longer exists, dropping import")
			return processResult{ack: true}
		}
		return c.handleDBError(logCtx, err)
	}
	if item.Status != enums.MediaStatusPendingImport {
		c.logg.Info(logCtx, "media item already imported")
		return processResult{ack: true}
	}

	body, contentType, err := c.download(logCtx, payload.SourceURL)
	if err != nil {
		c.logg.Error(logCtx, "failed to download import source", err)
		if isTransientError(err) {
			return processResult{nack: true}
		}
		c.markRemoved(logCtx, item)
		return processResult{ack: true}
	}

	sum := sha256.Sum256(body)
	checksum := hex.EncodeToString(sum[:])

	dup, err := c.repo.FindItemByChecksum(logCtx, item.ProductID, checksum)
	if err != nil {
		return c.handleDBError(logCtx, err)
	}
	if dup != nil && dup.ID != item.ID {
		c.logg.Info(logCtx, "identical image already in gallery, dropping import")
		if err := c.repo.DeleteItem(logCtx, item.ID); err != nil {
			return c.handleDBError(logCtx, err)
		}
		return processResult{ack: true}
	}

	item.MimeType = contentType
	item.Checksum = checksum
	item.SizeBytes = int64(len(body))

	if err := c.upload(logCtx, item, body, contentType); err != nil {
		c.logg.Error(logCtx, "failed to store imported image", err)
		return processResult{nack: true}
	}

	publicURL := media.PublicURL(c.store.DefaultBucket(), media.ObjectKey(item))
	item.URL = &publicURL
	item.Status = enums.MediaStatusReady
	if err := c.repo.UpdateItem(logCtx, item); err != nil {
		return c.handleDBError(logCtx, err)
	}

	c.logg.Info(logCtx, "media import completed")
	return processResult{ack: true}
}

// discover pulls the remote gallery of a target and imports every image that
// is not yet tracked locally. Transient failures nack the whole message so the
// walk is retried; a single broken image is logged and skipped.
func (c *Consumer) discover(ctx context.Context, payload media.ImportMessage) processResult {
	if payload.ProductID == uuid.Nil || payload.TargetID == uuid.Nil {
		c.logg.Error(ctx, "discovery message missing required fields", fmt.Errorf("incomplete payload"))
		return processResult{ack: true}
	}
	lister, ok := c.listers[payload.TargetType]
	if !ok {
		c.logg.Error(ctx, "no adapter for target type", fmt.Errorf("unsupported target type %q", payload.TargetType))
		return processResult{ack: true}
	}

	product, err := c.products.FindByID(ctx, payload.ProductID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			c.logg.Warn(ctx, "product no longer exists, dropping discovery")
			return processResult{ack: true}
		}
		return c.handleDBError(ctx, err)
	}

	remotes, err := lister.ListImages(ctx, payload.TargetID, product.SKU)
	if err != nil {
		c.logg.Error(ctx, "failed to list remote gallery", err)
		if isTransientError(err) {
			return processResult{nack: true}
		}
		return processResult{ack: true}
	}

	imported := 0
	for _, remote := range remotes {
		if strings.TrimSpace(remote.ExternalID) == "" {
			continue
		}
		existing, err := c.repo.FindMappingByExternal(ctx, payload.TargetType, payload.TargetID, remote.ExternalID)
		if err != nil {
			return c.handleDBError(ctx, err)
		}
		if existing != nil {
			continue
		}
		result, err := c.importRemote(ctx, payload, remote)
		if err != nil {
			if isTransientError(err) {
				c.logg.Error(ctx, "transient failure during discovery import", err)
				return processResult{nack: true}
			}
			c.logg.Error(ctx, "skipping undownloadable remote image", err)
			continue
		}
		if result {
			imported++
		}
	}

	c.logg.Info(c.logg.WithField(ctx, "imported", imported), "remote gallery discovery completed")
	return processResult{ack: true}
}

// importRemote brings one remote image under local management. When the bytes
// already exist in the gallery only the mapping is attached; otherwise a new
// ready item is created. Returns true when a new item was created.
func (c *Consumer) importRemote(ctx context.Context, payload media.ImportMessage, remote sync.RemoteImage) (bool, error) {
	body, contentType, err := c.download(ctx, remote.SourceURL)
	if err != nil {
		return false, err
	}

	sum := sha256.Sum256(body)
	checksum := hex.EncodeToString(sum[:])
	now := time.Now().UTC()

	dup, err := c.repo.FindItemByChecksum(ctx, payload.ProductID, checksum)
	if err != nil {
		return false, err
	}
	if dup != nil {
		// The bytes are already in the gallery under another item. The remote
		// copy becomes that item's synced presence on this target.
		mapping := &models.MediaMapping{
			MediaItemID:  dup.ID,
			TargetType:   payload.TargetType,
			TargetID:     payload.TargetID,
			Synced:       true,
			ExternalID:   &remote.ExternalID,
			LastSyncedAt: &now,
		}
		if err := c.repo.Upsert(ctx, mapping); err != nil {
			return false, err
		}
		return false, nil
	}

	position, err := c.repo.NextPosition(ctx, payload.ProductID)
	if err != nil {
		return false, err
	}
	sourceURL := remote.SourceURL
	item := &models.MediaItem{
		ProductID: payload.ProductID,
		FileName:  remoteFilename(remote.SourceURL),
		MimeType:  contentType,
		SourceURL: &sourceURL,
		SizeBytes: int64(len(body)),
		Checksum:  checksum,
		Position:  position,
		Status:    enums.MediaStatusPendingImport,
	}
	item, err = c.repo.CreateItem(ctx, item)
	if err != nil {
		return false, err
	}

	if err := c.upload(ctx, item, body, contentType); err != nil {
		return false, err
	}

	publicURL := media.PublicURL(c.store.DefaultBucket(), media.ObjectKey(item))
	item.URL = &publicURL
	item.Status = enums.MediaStatusReady
	if err := c.repo.UpdateItem(ctx, item); err != nil {
		return false, err
	}

	mapping := &models.MediaMapping{
		MediaItemID:  item.ID,
		TargetType:   payload.TargetType,
		TargetID:     payload.TargetID,
		Synced:       true,
		ExternalID:   &remote.ExternalID,
		LastSyncedAt: &now,
	}
	if err := c.repo.Upsert(ctx, mapping); err != nil {
		return false, err
	}
	return true, nil
}

// remoteFilename derives a gallery filename from the remote URL path.
func remoteFilename(sourceURL string) string {
	parsed, err := url.Parse(sourceURL)
	if err != nil || path.Base(parsed.Path) == "." || path.Base(parsed.Path) == "/" {
		return "imported-image"
	}
	return path.Base(parsed.Path)
}

func (c *Consumer) download(ctx context.Context, sourceURL string) ([]byte, string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, sourceURL, nil)
	if err != nil {
		return nil, "", err
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, "", err
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode >= http.StatusInternalServerError {
		return nil, "", &transientStatusError{status: resp.Status}
	}
	if resp.StatusCode != http.StatusOK {
		return nil, "", fmt.Errorf("source returned %s", resp.Status)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxImportBytes+1))
	if err != nil {
		return nil, "", err
	}
	if len(body) > maxImportBytes {
		return nil, "", fmt.Errorf("source exceeds the import size limit")
	}
	if len(body) == 0 {
		return nil, "", fmt.Errorf("source returned an empty body")
	}

	contentType := strings.ToLower(strings.TrimSpace(resp.Header.Get("Content-Type")))
	if idx := strings.Index(contentType, ";"); idx >= 0 {
		contentType = strings.TrimSpace(contentType[:idx])
	}
	if contentType == "" {
		contentType = http.DetectContentType(body)
	}
	if _, ok := importableMimeTypes[contentType]; !ok {
		return nil, "", fmt.Errorf("unsupported image type %q", contentType)
	}
	return body, contentType, nil
}

func (c *Consumer) upload(ctx context.Context, item *models.MediaItem, body []byte, contentType string) error {
	signedURL, err := c.store.SignedURL(c.store.DefaultBucket(), media.ObjectKey(item), contentType, 10*time.Minute)
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPut, signedURL, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", contentType)
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("storage returned %s", resp.Status)
	}
	return nil
}

// markRemoved parks a permanently failed import so it stops showing as pending.
func (c *Consumer) markRemoved(ctx context.Context, item *models.MediaItem) {
	item.Status = enums.MediaStatusRemoved
	if err := c.repo.UpdateItem(ctx, item); err != nil {
		c.logg.Error(ctx, "failed to mark failed import as removed", err)
	}
}

func (c *Consumer) handleDBError(ctx context.Context, err error) processResult {
	c.logg.Error(ctx, "media persistence error", err)
	if isTransientError(err) {
		return processResult{nack: true}
	}
	return processResult{ack: true}
}

// transientStatusError marks upstream 5xx responses as retryable.
type transientStatusError struct {
	status string
}

func (e *transientStatusError) Error() string {
	return "source returned " + e.status
}

func isTransientError(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return true
	}
	var statusErr *transientStatusError
	if errors.As(err, &statusErr) {
		return true
	}
	var netErr interface{ Timeout() bool }
	if errors.As(err, &netErr) && netErr.Timeout() {
		return true
	}
	return false
}
