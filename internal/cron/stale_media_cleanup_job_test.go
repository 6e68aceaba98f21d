package cron

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/pawelnowak/pimhub-backend/pkg/db/models"
	"github.com/pawelnowak/pimhub-backend/pkg/enums"
	"github.com/pawelnowak/pimhub-backend/pkg/logger"
)

type fakeStaleMediaRepo struct {
	stale   []models.MediaItem
	deleted []uuid.UUID
	listErr error
}

func (f *fakeStaleMediaRepo) ListStaleBefore(_ context.Context, _ time.Time) ([]models.MediaItem, error) {
	return f.stale, f.listErr
}

func (f *fakeStaleMediaRepo) DeleteItem(_ context.Context, id uuid.UUID) error {
	f.deleted = append(f.deleted, id)
	return nil
}

type fakeMediaObjects struct {
	removed []string
	err     error
}

func (f *fakeMediaObjects) DeleteObject(_ context.Context, _, object string) error {
	if f.err != nil {
		return f.err
	}
	f.removed = append(f.removed, object)
	return nil
}

func (f *fakeMediaObjects) DefaultBucket() string { return "test-bucket" }

func staleItem(status enums.MediaStatus) models.MediaItem {
	return models.MediaItem{
		ID:        uuid.New(),
		ProductID: uuid.New(),
		FileName:  "front.png",
		Status:    status,
	}
}

func TestStaleMediaCleanupJobDeletesRowsAndObjects(t *testing.T) {
	logg := logger.New(logger.Options{ServiceName: "cron-test"})
	repo := &fakeStaleMediaRepo{stale: []models.MediaItem{
		staleItem(enums.MediaStatusPendingImport),
		staleItem(enums.MediaStatusRemoved),
	}}
	objects := &fakeMediaObjects{}
	job, err := NewStaleMediaCleanupJob(StaleMediaCleanupJobParams{
		Logger:    logg,
		MediaRepo: repo,
		Objects:   objects,
	})
	if err != nil {
		t.Fatalf("construct job: %v", err)
	}

	if err := job.Run(context.Background()); err != nil {
		t.Fatalf("run: %v", err)
	}
	if len(repo.deleted) != 2 {
		t.Fatalf("expected 2 deleted rows, got %d", len(repo.deleted))
	}
	if len(objects.removed) != 2 {
		t.Fatalf("expected 2 deleted objects, got %d", len(objects.removed))
	}
}

func TestStaleMediaCleanupJobToleratesObjectDeleteFailure(t *testing.T) {
	logg := logger.New(logger.Options{ServiceName: "cron-test"})
	repo := &fakeStaleMediaRepo{stale: []models.MediaItem{staleItem(enums.MediaStatusPendingImport)}}
	objects := &fakeMediaObjects{err: errors.New("gcs unavailable")}
	job, err := NewStaleMediaCleanupJob(StaleMediaCleanupJobParams{
		Logger:    logg,
		MediaRepo: repo,
		Objects:   objects,
	})
	if err != nil {
		t.Fatalf("construct job: %v", err)
	}

	if err := job.Run(context.Background()); err != nil {
		t.Fatalf("run: %v", err)
	}
	if len(repo.deleted) != 1 {
		t.Fatalf("expected the row to be deleted anyway, got %d", len(repo.deleted))
	}
}

func TestStaleMediaCleanupJobPropagatesListError(t *testing.T) {
	logg := logger.New(logger.Options{ServiceName: "cron-test"})
	job, err := NewStaleMediaCleanupJob(StaleMediaCleanupJobParams{
		Logger:    logg,
		MediaRepo: &fakeStaleMediaRepo{listErr: errors.New("db down")},
		Objects:   &fakeMediaObjects{},
	})
	if err != nil {
		t.Fatalf("construct job: %v", err)
	}
	if err := job.Run(context.Background()); err == nil {
		t.Fatal("expected error when listing fails")
	}
}
