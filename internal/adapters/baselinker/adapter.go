package baselinker

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/pawelnowak/pimhub-backend/internal/sync"
	"github.com/pawelnowak/pimhub-backend/pkg/db/models"
	pkgerrors "github.com/pawelnowak/pimhub-backend/pkg/errors"
)

const (
	defaultConnectorURL         = "https://api.baselinker.com/connector.php"
	responseBodyReadLimit int64 = 1 << 20
)

var errConnectionDirectoryRequired = errors.New("erp connection directory is required")

// connectionDirectory resolves the token of a registered ERP connection.
type connectionDirectory interface {
	FindERPConnection(ctx context.Context, id uuid.UUID) (*models.ERPConnection, error)
}

// Adapter pushes gallery images into Baselinker catalogs through the
// connector endpoint. Every call is a form-encoded POST carrying a method
// name and a JSON parameter blob, authenticated with the connection token.
type Adapter struct {
	httpClient   *http.Client
	connections  connectionDirectory
	connectorURL string
}

// Option configures optional adapter behavior.
type Option func(*Adapter)

// WithHTTPClient overrides the default HTTP client.
func WithHTTPClient(client *http.Client) Option {
	return func(a *Adapter) {
		if client != nil {
			a.httpClient = client
		}
	}
}

// WithConnectorURL overrides the connector endpoint, mainly for tests.
func WithConnectorURL(connectorURL string) Option {
	return func(a *Adapter) {
		trimmed := strings.TrimSpace(connectorURL)
		if trimmed != "" {
			a.connectorURL = trimmed
		}
	}
}

// NewAdapter builds a Baselinker adapter over the registered connections.
func NewAdapter(connections connectionDirectory, opts ...Option) (*Adapter, error) {
	if connections == nil {
		return nil, errConnectionDirectoryRequired
	}
	adapter := &Adapter{
		httpClient:   &http.Client{Timeout: 30 * time.Second},
		connections:  connections,
		connectorURL: defaultConnectorURL,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(adapter)
		}
	}
	return adapter, nil
}

// PushImage attaches the image to the remote product by SKU and returns the
// remote image id. When the catalog already lists the image, matched by
// checksum or by source URL, the existing id is returned without a second
// attach call.
func (a *Adapter) PushImage(ctx context.Context, targetID uuid.UUID, push sync.ImagePush) (string, error) {
	existing, err := a.ListImages(ctx, targetID, push.ProductSKU)
	if err != nil {
		return "", err
	}
	for _, remote := range existing {
		if (push.Checksum != "" && remote.Checksum == push.Checksum) || remote.SourceURL == push.SourceURL {
			return remote.ExternalID, nil
		}
	}

	var result struct {
		ImageID string `json:"image_id"`
	}
	err = a.call(ctx, targetID, "addProductImage", map[string]any{
		"sku":       push.ProductSKU,
		"image_url": push.SourceURL,
		"position":  push.Position,
	}, &result)
	if err != nil {
		return "", err
	}
	if strings.TrimSpace(result.ImageID) == "" {
		return "", pkgerrors.New(pkgerrors.CodeAdapter, "connector returned no image id")
	}
	return result.ImageID, nil
}

// ListImages reports the images currently attached to the remote product.
func (a *Adapter) ListImages(ctx context.Context, targetID uuid.UUID, productSKU string) ([]sync.RemoteImage, error) {
	var result struct {
		Images []struct {
			ImageID  string `json:"image_id"`
			URL      string `json:"url"`
			Checksum string `json:"checksum"`
		} `json:"images"`
	}
	err := a.call(ctx, targetID, "getProductImages", map[string]any{
		"sku": productSKU,
	}, &result)
	if err != nil {
		return nil, err
	}
	images := make([]sync.RemoteImage, 0, len(result.Images))
	for _, remote := range result.Images {
		images = append(images, sync.RemoteImage{
			ExternalID: remote.ImageID,
			SourceURL:  remote.URL,
			Checksum:   remote.Checksum,
		})
	}
	return images, nil
}

// RemoveImage detaches a previously pushed image from the remote product.
func (a *Adapter) RemoveImage(ctx context.Context, targetID uuid.UUID, remove sync.ImageRemove) error {
	return a.call(ctx, targetID, "deleteProductImage", map[string]any{
		"sku":      remove.ProductSKU,
		"image_id": remove.ExternalID,
	}, nil)
}

// call executes one connector method and decodes its payload into out.
func (a *Adapter) call(ctx context.Context, targetID uuid.UUID, method string, parameters map[string]any, out any) error {
	conn, err := a.connections.FindERPConnection(ctx, targetID)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "loading erp connection")
	}

	encodedParams, err := json.Marshal(parameters)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "encoding connector parameters")
	}
	form := url.Values{}
	form.Set("method", method)
	form.Set("parameters", string(encodedParams))

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, a.connectorURL, strings.NewReader(form.Encode()))
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "building connector request")
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("X-BLToken", conn.Token)

	resp, err := a.httpClient.Do(req)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeAdapter, err, "executing connector request")
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return pkgerrors.Wrap(pkgerrors.CodeAdapter,
			fmt.Errorf("status %d", resp.StatusCode), "connector request failed")
	}

	var envelope struct {
		Status       string `json:"status"`
		ErrorCode    string `json:"error_code"`
		ErrorMessage string `json:"error_message"`
	}
	body, err := readBody(resp)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(body, &envelope); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeAdapter, err, "decoding connector response")
	}
	if !strings.EqualFold(envelope.Status, "SUCCESS") {
		return pkgerrors.New(pkgerrors.CodeAdapter,
			fmt.Sprintf("connector method %s failed: %s %s", method, envelope.ErrorCode, envelope.ErrorMessage))
	}
	if out != nil {
		if err := json.Unmarshal(body, out); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeAdapter, err, "decoding connector payload")
		}
	}
	return nil
}

func readBody(resp *http.Response) ([]byte, error) {
	body, err := io.ReadAll(io.LimitReader(resp.Body, responseBodyReadLimit))
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeAdapter, err, "reading connector response")
	}
	return body, nil
}

var _ sync.Adapter = (*Adapter)(nil)
