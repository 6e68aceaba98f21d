package main

import (
	"context"
	"net/http"
	"os"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/pawelnowak/pimhub-backend/api/routes"
	"github.com/pawelnowak/pimhub-backend/internal/adapters/baselinker"
	"github.com/pawelnowak/pimhub-backend/internal/adapters/prestashop"
	"github.com/pawelnowak/pimhub-backend/internal/auth"
	"github.com/pawelnowak/pimhub-backend/internal/bulk"
	"github.com/pawelnowak/pimhub-backend/internal/ledger"
	"github.com/pawelnowak/pimhub-backend/internal/media"
	"github.com/pawelnowak/pimhub-backend/internal/notifications"
	product "github.com/pawelnowak/pimhub-backend/internal/products"
	internalsync "github.com/pawelnowak/pimhub-backend/internal/sync"
	"github.com/pawelnowak/pimhub-backend/internal/targets"
	"github.com/pawelnowak/pimhub-backend/internal/users"
	"github.com/pawelnowak/pimhub-backend/pkg/auth/session"
	"github.com/pawelnowak/pimhub-backend/pkg/config"
	"github.com/pawelnowak/pimhub-backend/pkg/db"
	"github.com/pawelnowak/pimhub-backend/pkg/enums"
	"github.com/pawelnowak/pimhub-backend/pkg/logger"
	"github.com/pawelnowak/pimhub-backend/pkg/metrics"
	"github.com/pawelnowak/pimhub-backend/pkg/migrate"
	"github.com/pawelnowak/pimhub-backend/pkg/pubsub"
	"github.com/pawelnowak/pimhub-backend/pkg/redis"
	"github.com/pawelnowak/pimhub-backend/pkg/storage/gcs"
)

func main() {
	ctx := context.Background()
	logg := logger.New(logger.Options{ServiceName: "api"})

	if err := godotenv.Load(); err != nil {
		logg.Warn(ctx, ".env file not found, relying on environment")
	}

	cfg, err := config.Load()
	requireResource(ctx, logg, "config", err)

	logg = logger.New(logger.Options{
		ServiceName: "api",
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

	err = migrate.MaybeRunDev(ctx, cfg, logg, dbClient)
	requireResource(ctx, logg, "dev migrations", err)

	redisClient, err := redis.New(ctx, cfg.Redis, logg)
	requireResource(ctx, logg, "redis", err)
	defer func() {
		if err := redisClient.Close(); err != nil {
			logg.Error(ctx, "error closing redis", err)
		}
	}()

	gcsClient, err := gcs.NewClient(ctx, cfg.GCS, cfg.GCP, logg)
	requireResource(ctx, logg, "object storage", err)
	defer gcsClient.Close()

	pubsubClient, err := pubsub.NewClient(ctx, cfg.GCP, cfg.PubSub, logg)
	requireResource(ctx, logg, "pubsub", err)
	defer pubsubClient.Close()

	sessionManager, err := session.NewManager(redisClient, cfg.JWT)
	requireResource(ctx, logg, "session manager", err)

	usersRepo := users.NewRepository(dbClient.DB())
	userService, err := users.NewService(usersRepo, cfg.Password)
	requireResource(ctx, logg, "user service", err)

	authService, err := auth.NewService(auth.ServiceParams{
		UserRepo:       usersRepo,
		SessionManager: sessionManager,
		JWTConfig:      cfg.JWT,
	})
	requireResource(ctx, logg, "auth service", err)

	productsRepo := product.NewRepository(dbClient.DB())
	productService, err := product.NewService(productsRepo)
	requireResource(ctx, logg, "product service", err)

	targetsRepo := targets.NewRepository(dbClient.DB())
	targetService, err := targets.NewService(targetsRepo)
	requireResource(ctx, logg, "target service", err)

	notificationService, err := notifications.NewService(notifications.NewRepository(dbClient.DB()))
	requireResource(ctx, logg, "notification service", err)

	changeLedger, err := ledger.New(redisClient, cfg.Sync.LedgerTTL)
	requireResource(ctx, logg, "change ledger", err)

	syncMetrics := metrics.NewSyncMetrics(prometheus.DefaultRegisterer)

	shopAdapter, err := prestashop.NewAdapter(targetsRepo,
		prestashop.WithHTTPClient(&http.Client{Timeout: cfg.PrestaShop.RequestTimeout}))
	requireResource(ctx, logg, "prestashop adapter", err)

	erpAdapter, err := baselinker.NewAdapter(targetsRepo,
		baselinker.WithHTTPClient(&http.Client{Timeout: cfg.Baselinker.RequestTimeout}),
		baselinker.WithConnectorURL(cfg.Baselinker.Endpoint))
	requireResource(ctx, logg, "baselinker adapter", err)

	mediaRepo := media.NewRepository(dbClient.DB())
	reconciler, err := internalsync.NewReconciler(internalsync.ReconcilerParams{
		Logger:   logg,
		Ledger:   changeLedger,
		Catalog:  productsRepo,
		Mappings: mediaRepo,
		Registry: targetService,
		Adapters: map[enums.TargetType]internalsync.Adapter{
			enums.TargetTypePrestaShop: shopAdapter,
			enums.TargetTypeERP:        erpAdapter,
		},
		Notifier: notificationService,
		Metrics:  syncMetrics,
	})
	requireResource(ctx, logg, "sync reconciler", err)

	importQueue, err := media.NewImportQueue(pubsubClient.MediaImportPublisher())
	requireResource(ctx, logg, "import queue", err)

	mediaService, err := media.NewService(media.ServiceParams{
		Logger:      logg,
		Repo:        mediaRepo,
		Products:    productsRepo,
		GCS:         gcsClient,
		Ledger:      changeLedger,
		Reconciler:  reconciler,
		Targets:     targetService,
		Publisher:   importQueue,
		UploadTTL:   cfg.GCS.UploadTTL,
		DownloadTTL: cfg.GCS.DownloadTTL,
	})
	requireResource(ctx, logg, "media service", err)

	bulkService, err := bulk.NewService(bulk.ServiceParams{
		Logger:       logg,
		DB:           dbClient,
		Repo:         bulk.NewRepository(dbClient.DB()),
		Store:        redisClient,
		Metrics:      syncMetrics,
		PreviewTTL:   cfg.Bulk.PreviewTTL,
		MaxSelection: cfg.Bulk.MaxSelectionLen,
	})
	requireResource(ctx, logg, "bulk service", err)

	router, err := routes.NewRouter(routes.RouterParams{
		Config:   cfg,
		Logger:   logg,
		Redis:    redisClient,
		Sessions: sessionManager,
		DB:       dbClient,
		Storage:  gcsClient,

		AuthService:         authService,
		UserService:         userService,
		ProductService:      productService,
		MediaService:        mediaService,
		TargetService:       targetService,
		BulkService:         bulkService,
		NotificationService: notificationService,
	})
	requireResource(ctx, logg, "router", err)

	port := os.Getenv("PORT")
	if port == "" {
		port = cfg.App.Port
	}
	addr := ":" + port
	ctx = logg.WithFields(ctx, map[string]any{
		"env":  cfg.App.Env,
		"addr": addr,
	})
	logg.Info(ctx, "starting api server")

	server := &http.Server{
		Addr:    addr,
		Handler: router,
	}
	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logg.Error(ctx, "api server stopped unexpectedly", err)
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
