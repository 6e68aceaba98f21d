package sync

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/google/uuid"

	"github.com/pawelnowak/pimhub-backend/internal/ledger"
	"github.com/pawelnowak/pimhub-backend/internal/targets"
	"github.com/pawelnowak/pimhub-backend/pkg/db/models"
	"github.com/pawelnowak/pimhub-backend/pkg/enums"
	pkgerrors "github.com/pawelnowak/pimhub-backend/pkg/errors"
	"github.com/pawelnowak/pimhub-backend/pkg/logger"
)

type fakeLedger struct {
	entries []ledger.Entry
}

func (f *fakeLedger) List(context.Context, string, string) ([]ledger.Entry, error) {
	out := make([]ledger.Entry, len(f.entries))
	copy(out, f.entries)
	return out, nil
}

func (f *fakeLedger) Remove(_ context.Context, _, _ string, entry ledger.Entry) error {
	kept := f.entries[:0]
	for _, e := range f.entries {
		if e.Field() != entry.Field() {
			kept = append(kept, e)
		}
	}
	f.entries = kept
	return nil
}

type fakeCatalog struct {
	product *models.Product
}

func (f *fakeCatalog) ProductWithMedia(context.Context, uuid.UUID) (*models.Product, error) {
	return f.product, nil
}

type fakeMappings struct {
	byField  map[string]*models.MediaMapping
	failures []string
}

func newFakeMappings() *fakeMappings {
	return &fakeMappings{byField: map[string]*models.MediaMapping{}}
}

func mappingField(mediaItemID uuid.UUID, targetType enums.TargetType, targetID uuid.UUID) string {
	return ledger.EntryField(mediaItemID, targetType, targetID)
}

func (f *fakeMappings) Find(_ context.Context, mediaItemID uuid.UUID, targetType enums.TargetType, targetID uuid.UUID) (*models.MediaMapping, error) {
	return f.byField[mappingField(mediaItemID, targetType, targetID)], nil
}

func (f *fakeMappings) Upsert(_ context.Context, mapping *models.MediaMapping) error {
	f.byField[mappingField(mapping.MediaItemID, mapping.TargetType, mapping.TargetID)] = mapping
	return nil
}

func (f *fakeMappings) Delete(_ context.Context, mediaItemID uuid.UUID, targetType enums.TargetType, targetID uuid.UUID) error {
	delete(f.byField, mappingField(mediaItemID, targetType, targetID))
	return nil
}

func (f *fakeMappings) RecordFailure(_ context.Context, mediaItemID uuid.UUID, targetType enums.TargetType, targetID uuid.UUID, message string) error {
	f.failures = append(f.failures, message)
	field := mappingField(mediaItemID, targetType, targetID)
	if existing, ok := f.byField[field]; ok {
		existing.LastError = &message
		return nil
	}
	f.byField[field] = &models.MediaMapping{
		MediaItemID: mediaItemID,
		TargetType:  targetType,
		TargetID:    targetID,
		LastError:   &message,
	}
	return nil
}

type fakeRegistry struct {
	targets map[string]*targets.Target
}

func (f *fakeRegistry) Get(_ context.Context, targetType enums.TargetType, id uuid.UUID) (*targets.Target, error) {
	target, ok := f.targets[fmt.Sprintf("%s:%s", targetType, id)]
	if !ok {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "target not found")
	}
	return target, nil
}

type fakeAdapter struct {
	pushErr error
	pushed  []ImagePush
	removed []ImageRemove
	nextID  int
}

func (f *fakeAdapter) PushImage(_ context.Context, _ uuid.UUID, push ImagePush) (string, error) {
	if f.pushErr != nil {
		return "", f.pushErr
	}
	f.pushed = append(f.pushed, push)
	f.nextID++
	return fmt.Sprintf("ext-%d", f.nextID), nil
}

func (f *fakeAdapter) RemoveImage(_ context.Context, _ uuid.UUID, remove ImageRemove) error {
	f.removed = append(f.removed, remove)
	return nil
}

func (f *fakeAdapter) ListImages(_ context.Context, _ uuid.UUID, _ string) ([]RemoteImage, error) {
	return nil, nil
}

type fakeNotifier struct {
	calls    []enums.NotificationSeverity
	messages []string
}

func (f *fakeNotifier) Notify(_ context.Context, severity enums.NotificationSeverity, _, message string) error {
	f.calls = append(f.calls, severity)
	f.messages = append(f.messages, message)
	return nil
}

type reconcilerFixture struct {
	reconciler *Reconciler
	ledger     *fakeLedger
	mappings   *fakeMappings
	adapter    *fakeAdapter
	notifier   *fakeNotifier
	product    *models.Product
	shopID     uuid.UUID
}

func newFixture(t *testing.T) *reconcilerFixture {
	t.Helper()

	shopID := uuid.New()
	url := "https://cdn.example.com/img.jpg"
	product := &models.Product{
		ID:  uuid.New(),
		SKU: "SKU-1",
		Media: []models.MediaItem{{
			ID:       uuid.New(),
			FileName: "img.jpg",
			MimeType: "image/jpeg",
			URL:      &url,
			Checksum: "abc",
			Status:   enums.MediaStatusReady,
		}},
	}

	led := &fakeLedger{}
	mappings := newFakeMappings()
	adapter := &fakeAdapter{}
	notif := &fakeNotifier{}
	registry := &fakeRegistry{targets: map[string]*targets.Target{
		fmt.Sprintf("%s:%s", enums.TargetTypePrestaShop, shopID): {
			Type:     enums.TargetTypePrestaShop,
			ID:       shopID,
			Name:     "Main",
			IsActive: true,
		},
	}}

	reconciler, err := NewReconciler(ReconcilerParams{
		Logger:   logger.New(logger.Options{ServiceName: "test"}),
		Ledger:   led,
		Catalog:  &fakeCatalog{product: product},
		Mappings: mappings,
		Registry: registry,
		Adapters: map[enums.TargetType]Adapter{enums.TargetTypePrestaShop: adapter},
		Notifier: notif,
	})
	if err != nil {
		t.Fatalf("NewReconciler: %v", err)
	}
	return &reconcilerFixture{
		reconciler: reconciler,
		ledger:     led,
		mappings:   mappings,
		adapter:    adapter,
		notifier:   notif,
		product:    product,
		shopID:     shopID,
	}
}

func (f *reconcilerFixture) stage(action enums.PendingAction) ledger.Entry {
	entry := ledger.Entry{
		MediaItemID: f.product.Media[0].ID,
		TargetType:  enums.TargetTypePrestaShop,
		TargetID:    f.shopID,
		Action:      action,
		Seq:         int64(len(f.ledger.entries) + 1),
	}
	f.ledger.entries = append(f.ledger.entries, entry)
	return entry
}

func TestApplySyncSuccess(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	entry := f.stage(enums.PendingActionSync)

	result, err := f.reconciler.Apply(context.Background(), "sess", f.product.ID)
	if err != nil {
		t.Fatalf("Apply: %v", err)
	}
	if result.Synced != 1 || result.Removed != 0 || result.Failed != 0 || result.Dropped != 0 {
		t.Fatalf("unexpected result: %+v", result)
	}
	if len(f.adapter.pushed) != 1 || f.adapter.pushed[0].ProductSKU != "SKU-1" {
		t.Fatalf("expected one push for SKU-1, got %+v", f.adapter.pushed)
	}
	mapping := f.mappings.byField[mappingField(entry.MediaItemID, entry.TargetType, entry.TargetID)]
	if mapping == nil || !mapping.Synced || mapping.ExternalID == nil {
		t.Fatalf("expected synced mapping with external id, got %+v", mapping)
	}
	if len(f.ledger.entries) != 0 {
		t.Fatal("expected applied entry removed from ledger")
	}
	if len(f.notifier.calls) != 1 || f.notifier.calls[0] != enums.NotificationSuccess {
		t.Fatalf("expected one success notification, got %v", f.notifier.calls)
	}
	if !strings.Contains(f.notifier.messages[0], "1 synced, 0 removed") {
		t.Fatalf("expected per-action counts in the notification, got %q", f.notifier.messages[0])
	}
}

func TestApplyUnsyncRemovesRemoteAndMapping(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	entry := f.stage(enums.PendingActionUnsync)
	ext := "ext-7"
	f.mappings.byField[mappingField(entry.MediaItemID, entry.TargetType, entry.TargetID)] = &models.MediaMapping{
		MediaItemID: entry.MediaItemID,
		TargetType:  entry.TargetType,
		TargetID:    entry.TargetID,
		ExternalID:  &ext,
		Synced:      true,
	}

	result, err := f.reconciler.Apply(context.Background(), "sess", f.product.ID)
	if err != nil {
		t.Fatalf("Apply: %v", err)
	}
	if result.Removed != 1 || result.Synced != 0 {
		t.Fatalf("unexpected result: %+v", result)
	}
	if len(f.adapter.removed) != 1 || f.adapter.removed[0].ExternalID != "ext-7" {
		t.Fatalf("expected remote removal of ext-7, got %+v", f.adapter.removed)
	}
	if len(f.mappings.byField) != 0 {
		t.Fatal("expected mapping deleted")
	}
	if !strings.Contains(f.notifier.messages[0], "0 synced, 1 removed") {
		t.Fatalf("expected the removal counted separately, got %q", f.notifier.messages[0])
	}
}

func TestApplyFailureKeepsEntryStaged(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	f.stage(enums.PendingActionSync)
	f.adapter.pushErr = errors.New("remote unavailable")

	result, err := f.reconciler.Apply(context.Background(), "sess", f.product.ID)
	if err != nil {
		t.Fatalf("Apply: %v", err)
	}
	if result.Applied() != 0 || result.Failed != 1 {
		t.Fatalf("unexpected result: %+v", result)
	}
	if result.Errs == nil {
		t.Fatal("expected aggregated error for failed entry")
	}
	if len(f.ledger.entries) != 1 {
		t.Fatal("expected failed entry kept staged for retry")
	}
	if len(f.mappings.failures) != 1 {
		t.Fatalf("expected failure recorded on mapping, got %v", f.mappings.failures)
	}
	if len(f.notifier.calls) != 1 || f.notifier.calls[0] != enums.NotificationError {
		t.Fatalf("expected error notification, got %v", f.notifier.calls)
	}
}

func TestApplyDropsEntryForMissingMedia(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	entry := ledger.Entry{
		MediaItemID: uuid.New(),
		TargetType:  enums.TargetTypePrestaShop,
		TargetID:    f.shopID,
		Action:      enums.PendingActionSync,
		Seq:         1,
	}
	f.ledger.entries = append(f.ledger.entries, entry)

	result, err := f.reconciler.Apply(context.Background(), "sess", f.product.ID)
	if err != nil {
		t.Fatalf("Apply: %v", err)
	}
	if result.Dropped != 1 || result.Failed != 0 {
		t.Fatalf("unexpected result: %+v", result)
	}
	if len(f.ledger.entries) != 0 {
		t.Fatal("expected stale entry discarded")
	}
	if len(f.notifier.calls) != 1 || f.notifier.calls[0] != enums.NotificationWarning {
		t.Fatalf("expected warning notification, got %v", f.notifier.calls)
	}
}

func TestApplyContinuesPastFailures(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	// First entry references a vanished media item, second one is valid.
	f.ledger.entries = append(f.ledger.entries, ledger.Entry{
		MediaItemID: uuid.New(),
		TargetType:  enums.TargetTypePrestaShop,
		TargetID:    f.shopID,
		Action:      enums.PendingActionSync,
		Seq:         1,
	})
	f.stage(enums.PendingActionSync)

	result, err := f.reconciler.Apply(context.Background(), "sess", f.product.ID)
	if err != nil {
		t.Fatalf("Apply: %v", err)
	}
	if result.Synced != 1 || result.Dropped != 1 {
		t.Fatalf("unexpected result: %+v", result)
	}
	if len(f.adapter.pushed) != 1 {
		t.Fatalf("expected valid entry still pushed, got %d pushes", len(f.adapter.pushed))
	}
}

func TestApplyQuietSuppressesNotification(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	f.stage(enums.PendingActionSync)

	result, err := f.reconciler.ApplyQuiet(context.Background(), "sess", f.product.ID)
	if err != nil {
		t.Fatalf("ApplyQuiet: %v", err)
	}
	if result.Synced != 1 {
		t.Fatalf("unexpected result: %+v", result)
	}
	if len(f.notifier.calls) != 0 {
		t.Fatalf("expected no notifications, got %v", f.notifier.calls)
	}
}

func TestApplyInactiveTargetFails(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	entry := f.stage(enums.PendingActionSync)
	key := fmt.Sprintf("%s:%s", entry.TargetType, entry.TargetID)
	registry := &fakeRegistry{targets: map[string]*targets.Target{
		key: {Type: entry.TargetType, ID: entry.TargetID, IsActive: false},
	}}
	reconciler, err := NewReconciler(ReconcilerParams{
		Logger:   logger.New(logger.Options{ServiceName: "test"}),
		Ledger:   f.ledger,
		Catalog:  &fakeCatalog{product: f.product},
		Mappings: f.mappings,
		Registry: registry,
		Adapters: map[enums.TargetType]Adapter{enums.TargetTypePrestaShop: f.adapter},
		Notifier: f.notifier,
	})
	if err != nil {
		t.Fatalf("NewReconciler: %v", err)
	}

	result, err := reconciler.Apply(context.Background(), "sess", f.product.ID)
	if err != nil {
		t.Fatalf("Apply: %v", err)
	}
	if result.Failed != 1 {
		t.Fatalf("unexpected result: %+v", result)
	}
	if len(f.ledger.entries) != 1 {
		t.Fatal("expected entry kept staged while target is inactive")
	}
}

func TestApplyEmptyLedgerIsNoop(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	result, err := f.reconciler.Apply(context.Background(), "sess", f.product.ID)
	if err != nil {
		t.Fatalf("Apply: %v", err)
	}
	if result.Applied() != 0 || result.Failed != 0 || result.Dropped != 0 {
		t.Fatalf("unexpected result: %+v", result)
	}
	if len(f.notifier.calls) != 0 {
		t.Fatal("expected no notification for empty ledger")
	}
}
