package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"

	"github.com/joho/godotenv"

	"github.com/pawelnowak/pimhub-backend/internal/adapters/baselinker"
	"github.com/pawelnowak/pimhub-backend/internal/adapters/prestashop"
	"github.com/pawelnowak/pimhub-backend/internal/media"
	"github.com/pawelnowak/pimhub-backend/internal/media/consumer"
	product "github.com/pawelnowak/pimhub-backend/internal/products"
	"github.com/pawelnowak/pimhub-backend/internal/targets"
	"github.com/pawelnowak/pimhub-backend/pkg/config"
	"github.com/pawelnowak/pimhub-backend/pkg/db"
	"github.com/pawelnowak/pimhub-backend/pkg/enums"
	"github.com/pawelnowak/pimhub-backend/pkg/instance"
	"github.com/pawelnowak/pimhub-backend/pkg/logger"
	"github.com/pawelnowak/pimhub-backend/pkg/pubsub"
	"github.com/pawelnowak/pimhub-backend/pkg/storage/gcs"
)

func main() {
	ctx := context.Background()
	logg := logger.New(logger.Options{ServiceName: "media-import-worker"})

	if err := godotenv.Load(); err != nil {
		logg.Warn(ctx, ".env file not found, relying on environment")
	}

	cfg, err := config.Load()
	requireResource(ctx, logg, "config", err)

	logg = logger.New(logger.Options{
		ServiceName: "media-import-worker",
		Level:       logger.ParseLevel(cfg.App.LogLevel),
		WarnStack:   cfg.App.LogWarnStack,
	})

	dbClient, err := db.New(ctx, cfg.DB, logg)
	requireResource(ctx, logg, "database", err)
	defer func() {
		if err := dbClient.Close(); err != nil {
			logg.Error(ctx, "error closing database", err)
		}
	}()

	gcsClient, err := gcs.NewClient(ctx, cfg.GCS, cfg.GCP, logg)
	requireResource(ctx, logg, "object storage", err)
	defer gcsClient.Close()

	pubsubClient, err := pubsub.NewClient(ctx, cfg.GCP, cfg.PubSub, logg)
	requireResource(ctx, logg, "pubsub", err)
	defer pubsubClient.Close()

	targetsRepo := targets.NewRepository(dbClient.DB())

	shopAdapter, err := prestashop.NewAdapter(targetsRepo,
		prestashop.WithHTTPClient(&http.Client{Timeout: cfg.PrestaShop.RequestTimeout}))
	requireResource(ctx, logg, "prestashop adapter", err)

	erpAdapter, err := baselinker.NewAdapter(targetsRepo,
		baselinker.WithHTTPClient(&http.Client{Timeout: cfg.Baselinker.RequestTimeout}),
		baselinker.WithConnectorURL(cfg.Baselinker.Endpoint))
	requireResource(ctx, logg, "baselinker adapter", err)

	importConsumer, err := consumer.NewConsumer(consumer.Params{
		Repo:         media.NewRepository(dbClient.DB()),
		Products:     product.NewRepository(dbClient.DB()),
		Store:        gcsClient,
		Subscription: pubsubClient.MediaImportSubscription(),
		Listers: map[enums.TargetType]consumer.ImageLister{
			enums.TargetTypePrestaShop: shopAdapter,
			enums.TargetTypeERP:        erpAdapter,
		},
		Logger: logg,
	})
	requireResource(ctx, logg, "media import consumer", err)

	runCtx, stop := signal.NotifyContext(ctx, os.Interrupt)
	defer stop()
	runCtx = logg.WithFields(runCtx, map[string]any{
		"env":      cfg.App.Env,
		"instance": instance.GetID(),
	})
	logg.Info(runCtx, "media import worker ready")

	if err := importConsumer.Run(runCtx); err != nil && !errors.Is(err, context.Canceled) {
		logg.Error(runCtx, "media import worker stopped unexpectedly", err)
		os.Exit(1)
	}
}

func requireResource(ctx context.Context, logg *logger.Logger, resource string, err error) {
	if err == nil {
		return
	}
	logg.Error(ctx, "failed to bootstrap "+resource, err)
	os.Exit(1)
}
