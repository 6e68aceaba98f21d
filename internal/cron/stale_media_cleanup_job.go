package cron

import (
	"context"
	"fmt"
	"time"

	"github.com/pawelnowak/pimhub-backend/internal/media"
	"github.com/pawelnowak/pimhub-backend/pkg/db/models"
	"github.com/pawelnowak/pimhub-backend/pkg/logger"

	"github.com/google/uuid"
)

const defaultStaleMediaMaxAge = 24 * time.Hour

type StaleMediaCleanupJobParams struct {
	Logger    *logger.Logger
	MediaRepo staleMediaRepo
	Objects   mediaObjectStore
	MaxAge    time.Duration
}

type staleMediaRepo interface {
	ListStaleBefore(ctx context.Context, cutoff time.Time) ([]models.MediaItem, error)
	DeleteItem(ctx context.Context, id uuid.UUID) error
}

type mediaObjectStore interface {
	DeleteObject(ctx context.Context, bucket, object string) error
	DefaultBucket() string
}

// NewStaleMediaCleanupJob builds the job that drops gallery items whose
// upload or import never finished.
func NewStaleMediaCleanupJob(params StaleMediaCleanupJobParams) (Job, error) {
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	if params.MediaRepo == nil {
		return nil, fmt.Errorf("media repository required")
	}
	if params.Objects == nil {
		return nil, fmt.Errorf("object store required")
	}
	maxAge := params.MaxAge
	if maxAge <= 0 {
		maxAge = defaultStaleMediaMaxAge
	}
	return &staleMediaCleanupJob{
		logg:    params.Logger,
		repo:    params.MediaRepo,
		objects: params.Objects,
		maxAge:  maxAge,
		now:     time.Now,
	}, nil
}

type staleMediaCleanupJob struct {
	logg    *logger.Logger
	repo    staleMediaRepo
	objects mediaObjectStore
	maxAge  time.Duration
	now     func() time.Time
}

func (j *staleMediaCleanupJob) Name() string { return "stale-media-cleanup" }

func (j *staleMediaCleanupJob) Run(ctx context.Context) error {
	cutoff := j.now().UTC().Add(-j.maxAge)
	rows, err := j.repo.ListStaleBefore(ctx, cutoff)
	if err != nil {
		return fmt.Errorf("query stale media: %w", err)
	}

	var deleted int
	for i := range rows {
		item := &rows[i]
		// The object may never have been written; a failed delete must not
		// keep the row around forever.
		if err := j.objects.DeleteObject(ctx, j.objects.DefaultBucket(), media.ObjectKey(item)); err != nil {
			warnCtx := j.logg.WithField(ctx, "media_item_id", item.ID.String())
			j.logg.Warn(warnCtx, "could not remove stale media object")
		}
		if err := j.repo.DeleteItem(ctx, item.ID); err != nil {
			return fmt.Errorf("delete stale media row: %w", err)
		}
		deleted++
	}

	logCtx := j.logg.WithFields(ctx, map[string]any{
		"cutoff":     cutoff,
		"max_age":    j.maxAge.String(),
		"candidates": len(rows),
		"deleted":    deleted,
	})
	j.logg.Info(logCtx, "stale media cleanup complete")
	return nil
}
