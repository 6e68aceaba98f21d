package prestashop

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
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
	errorBodyReadLimit int64 = 1024
	imageDownloadLimit int64 = 32 << 20
)

var errShopDirectoryRequired = errors.New("shop directory is required")

// shopDirectory resolves the credentials of a registered storefront.
type shopDirectory interface {
	FindShop(ctx context.Context, id uuid.UUID) (*models.Shop, error)
}

// Adapter pushes gallery images into PrestaShop storefronts through the
// webservice API. Products are located by their reference, which carries the
// catalog SKU, so local and remote product ids never need to match.
type Adapter struct {
	httpClient *http.Client
	shops      shopDirectory
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

// NewAdapter builds a PrestaShop adapter over the registered shops.
func NewAdapter(shops shopDirectory, opts ...Option) (*Adapter, error) {
	if shops == nil {
		return nil, errShopDirectoryRequired
	}
	adapter := &Adapter{
		httpClient: &http.Client{Timeout: 30 * time.Second},
		shops:      shops,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(adapter)
		}
	}
	return adapter, nil
}

// PushImage downloads the image bytes and uploads them to the product's
// gallery on the shop. It returns the remote image id. When the gallery
// already carries an image with the same bytes the existing id is returned
// and nothing is uploaded.
func (a *Adapter) PushImage(ctx context.Context, targetID uuid.UUID, push sync.ImagePush) (string, error) {
	shop, err := a.shops.FindShop(ctx, targetID)
	if err != nil {
		return "", pkgerrors.Wrap(pkgerrors.CodeDependency, err, "loading shop credentials")
	}

	remoteProductID, err := a.lookupProductID(ctx, shop, push.ProductSKU)
	if err != nil {
		return "", err
	}

	image, err := a.downloadImage(ctx, push.SourceURL)
	if err != nil {
		return "", err
	}

	if existingID, err := a.findExistingImage(ctx, shop, remoteProductID, checksumOf(image)); err != nil {
		return "", err
	} else if existingID != "" {
		return existingID, nil
	}

	body := &bytes.Buffer{}
	writer := multipart.NewWriter(body)
	part, err := writer.CreateFormFile("image", push.FileName)
	if err != nil {
		return "", pkgerrors.Wrap(pkgerrors.CodeInternal, err, "building image upload form")
	}
	if _, err := part.Write(image); err != nil {
		return "", pkgerrors.Wrap(pkgerrors.CodeInternal, err, "writing image upload form")
	}
	if err := writer.Close(); err != nil {
		return "", pkgerrors.Wrap(pkgerrors.CodeInternal, err, "closing image upload form")
	}

	uploadURL := fmt.Sprintf("%s/api/images/products/%s", strings.TrimRight(shop.BaseURL, "/"), remoteProductID)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, uploadURL, body)
	if err != nil {
		return "", pkgerrors.Wrap(pkgerrors.CodeInternal, err, "building image upload request")
	}
	req.SetBasicAuth(shop.APIKey, "")
	req.Header.Set("Content-Type", writer.FormDataContentType())

	resp, err := a.httpClient.Do(req)
	if err != nil {
		return "", pkgerrors.Wrap(pkgerrors.CodeAdapter, err, "uploading image to prestashop")
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return "", adapterStatusError(resp, "image upload rejected")
	}

	var uploaded struct {
		Image struct {
			ID string `xml:"id"`
		} `xml:"image"`
	}
	if err := xml.NewDecoder(resp.Body).Decode(&uploaded); err != nil {
		return "", pkgerrors.Wrap(pkgerrors.CodeAdapter, err, "decoding image upload response")
	}
	imageID := strings.TrimSpace(uploaded.Image.ID)
	if imageID == "" {
		return "", pkgerrors.New(pkgerrors.CodeAdapter, "prestashop returned no image id")
	}
	return imageID, nil
}

// RemoveImage deletes a previously pushed image from the shop.
func (a *Adapter) RemoveImage(ctx context.Context, targetID uuid.UUID, remove sync.ImageRemove) error {
	shop, err := a.shops.FindShop(ctx, targetID)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "loading shop credentials")
	}

	remoteProductID, err := a.lookupProductID(ctx, shop, remove.ProductSKU)
	if err != nil {
		return err
	}

	deleteURL := fmt.Sprintf("%s/api/images/products/%s/%s",
		strings.TrimRight(shop.BaseURL, "/"), remoteProductID, url.PathEscape(remove.ExternalID))
	req, err := http.NewRequestWithContext(ctx, http.MethodDelete, deleteURL, nil)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "building image delete request")
	}
	req.SetBasicAuth(shop.APIKey, "")

	resp, err := a.httpClient.Do(req)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeAdapter, err, "deleting image from prestashop")
	}
	defer func() { _ = resp.Body.Close() }()

	// A missing image means someone already removed it; the takedown holds.
	if resp.StatusCode == http.StatusNotFound {
		return nil
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return adapterStatusError(resp, "image delete rejected")
	}
	return nil
}

// ListImages reports the product's current gallery on the shop. The returned
// source URLs carry the webservice key so callers can fetch the bytes without
// holding shop credentials themselves. PrestaShop recompresses uploads, so no
// checksum is reported.
func (a *Adapter) ListImages(ctx context.Context, targetID uuid.UUID, productSKU string) ([]sync.RemoteImage, error) {
	shop, err := a.shops.FindShop(ctx, targetID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "loading shop credentials")
	}

	remoteProductID, err := a.lookupProductID(ctx, shop, productSKU)
	if err != nil {
		return nil, err
	}

	ids, err := a.listImageIDs(ctx, shop, remoteProductID)
	if err != nil {
		return nil, err
	}
	images := make([]sync.RemoteImage, 0, len(ids))
	for _, id := range ids {
		images = append(images, sync.RemoteImage{
			ExternalID: id,
			SourceURL:  a.galleryImageURL(shop, remoteProductID, id, true),
		})
	}
	return images, nil
}

// listImageIDs fetches the declared image ids of the product's gallery. A 404
// means the product has no gallery yet.
func (a *Adapter) listImageIDs(ctx context.Context, shop *models.Shop, remoteProductID string) ([]string, error) {
	listURL := fmt.Sprintf("%s/api/images/products/%s", strings.TrimRight(shop.BaseURL, "/"), remoteProductID)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, listURL, nil)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "building gallery listing request")
	}
	req.SetBasicAuth(shop.APIKey, "")

	resp, err := a.httpClient.Do(req)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeAdapter, err, "listing gallery on prestashop")
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode == http.StatusNotFound {
		return nil, nil
	}
	if resp.StatusCode != http.StatusOK {
		return nil, adapterStatusError(resp, "gallery listing rejected")
	}

	var listing struct {
		Image struct {
			Declination []struct {
				ID string `xml:"id,attr"`
			} `xml:"declination"`
		} `xml:"image"`
	}
	if err := xml.NewDecoder(resp.Body).Decode(&listing); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeAdapter, err, "decoding gallery listing response")
	}
	ids := make([]string, 0, len(listing.Image.Declination))
	for _, declination := range listing.Image.Declination {
		if id := strings.TrimSpace(declination.ID); id != "" {
			ids = append(ids, id)
		}
	}
	return ids, nil
}

// findExistingImage scans the product's gallery for an image whose bytes
// match the given checksum. Unreadable gallery entries are skipped so one
// broken declination never blocks a push.
func (a *Adapter) findExistingImage(ctx context.Context, shop *models.Shop, remoteProductID, checksum string) (string, error) {
	ids, err := a.listImageIDs(ctx, shop, remoteProductID)
	if err != nil {
		return "", err
	}
	for _, id := range ids {
		data, err := a.downloadAuthenticated(ctx, shop, a.galleryImageURL(shop, remoteProductID, id, false))
		if err != nil {
			continue
		}
		if checksumOf(data) == checksum {
			return id, nil
		}
	}
	return "", nil
}

func (a *Adapter) galleryImageURL(shop *models.Shop, remoteProductID, imageID string, withKey bool) string {
	imageURL := fmt.Sprintf("%s/api/images/products/%s/%s",
		strings.TrimRight(shop.BaseURL, "/"), remoteProductID, url.PathEscape(imageID))
	if withKey {
		imageURL += "?ws_key=" + url.QueryEscape(shop.APIKey)
	}
	return imageURL
}

func (a *Adapter) downloadAuthenticated(ctx context.Context, shop *models.Shop, imageURL string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, imageURL, nil)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "building gallery image request")
	}
	req.SetBasicAuth(shop.APIKey, "")

	resp, err := a.httpClient.Do(req)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeAdapter, err, "downloading gallery image")
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return nil, adapterStatusError(resp, "gallery image download failed")
	}
	return io.ReadAll(io.LimitReader(resp.Body, imageDownloadLimit))
}

func checksumOf(data []byte) string {
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}

// lookupProductID resolves the remote product id whose reference equals the SKU.
func (a *Adapter) lookupProductID(ctx context.Context, shop *models.Shop, sku string) (string, error) {
	query := url.Values{}
	query.Set("filter[reference]", sku)
	query.Set("display", "[id]")
	lookupURL := fmt.Sprintf("%s/api/products?%s", strings.TrimRight(shop.BaseURL, "/"), query.Encode())

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, lookupURL, nil)
	if err != nil {
		return "", pkgerrors.Wrap(pkgerrors.CodeInternal, err, "building product lookup request")
	}
	req.SetBasicAuth(shop.APIKey, "")

	resp, err := a.httpClient.Do(req)
	if err != nil {
		return "", pkgerrors.Wrap(pkgerrors.CodeAdapter, err, "looking up product on prestashop")
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return "", adapterStatusError(resp, "product lookup rejected")
	}

	var listing struct {
		Products struct {
			Product []struct {
				ID string `xml:"id"`
			} `xml:"product"`
		} `xml:"products"`
	}
	if err := xml.NewDecoder(resp.Body).Decode(&listing); err != nil {
		return "", pkgerrors.Wrap(pkgerrors.CodeAdapter, err, "decoding product lookup response")
	}
	if len(listing.Products.Product) == 0 {
		return "", pkgerrors.New(pkgerrors.CodeAdapter, fmt.Sprintf("no product with reference %q on shop", sku))
	}
	id := strings.TrimSpace(listing.Products.Product[0].ID)
	if id == "" {
		return "", pkgerrors.New(pkgerrors.CodeAdapter, "prestashop product listing carried no id")
	}
	return id, nil
}

func (a *Adapter) downloadImage(ctx context.Context, sourceURL string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, sourceURL, nil)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "building image download request")
	}
	resp, err := a.httpClient.Do(req)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "downloading image")
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return nil, adapterStatusError(resp, "image download failed")
	}
	data, err := io.ReadAll(io.LimitReader(resp.Body, imageDownloadLimit))
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "reading image bytes")
	}
	if len(data) == 0 {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "image download returned no bytes")
	}
	return data, nil
}

func adapterStatusError(resp *http.Response, message string) error {
	body, _ := io.ReadAll(io.LimitReader(resp.Body, errorBodyReadLimit))
	return pkgerrors.Wrap(pkgerrors.CodeAdapter,
		fmt.Errorf("status %d: %s", resp.StatusCode, strings.TrimSpace(string(body))), message)
}

var _ sync.Adapter = (*Adapter)(nil)
