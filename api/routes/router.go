package routes

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/pawelnowak/pimhub-backend/api/controllers"
	"github.com/pawelnowak/pimhub-backend/api/middleware"
	"github.com/pawelnowak/pimhub-backend/internal/auth"
	"github.com/pawelnowak/pimhub-backend/internal/bulk"
	"github.com/pawelnowak/pimhub-backend/internal/media"
	"github.com/pawelnowak/pimhub-backend/internal/notifications"
	product "github.com/pawelnowak/pimhub-backend/internal/products"
	"github.com/pawelnowak/pimhub-backend/internal/targets"
	"github.com/pawelnowak/pimhub-backend/internal/users"
	"github.com/pawelnowak/pimhub-backend/pkg/auth/session"
	"github.com/pawelnowak/pimhub-backend/pkg/config"
	"github.com/pawelnowak/pimhub-backend/pkg/db"
	pkgerrors "github.com/pawelnowak/pimhub-backend/pkg/errors"
	"github.com/pawelnowak/pimhub-backend/pkg/logger"
	pkgredis "github.com/pawelnowak/pimhub-backend/pkg/redis"
	"github.com/pawelnowak/pimhub-backend/pkg/storage/gcs"
)

// RouterParams wires every dependency the HTTP surface needs.
type RouterParams struct {
	Config   *config.Config
	Logger   *logger.Logger
	Redis    *pkgredis.Client
	Sessions session.AccessSessionChecker
	DB       db.Pinger
	Storage  gcs.Pinger

	AuthService         auth.Service
	UserService         users.Service
	ProductService      product.Service
	MediaService        media.Service
	TargetService       targets.Service
	BulkService         bulk.Service
	NotificationService notifications.Service
}

// NewRouter assembles the chi mux: health and metrics endpoints, the
// public auth group, and the authenticated API behind JWT + idempotency.
func NewRouter(params RouterParams) (*chi.Mux, error) {
	if params.Config == nil {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "config required")
	}
	if params.Logger == nil {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "logger required")
	}
	if params.Redis == nil {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "redis client required")
	}
	if params.Sessions == nil {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "session manager required")
	}

	cfg := params.Config
	logg := params.Logger

	r := chi.NewRouter()
	r.Use(middleware.RequestID(logg))
	r.Use(middleware.Logging(logg))
	r.Use(middleware.Recoverer(logg))
	r.Use(middleware.CORS())

	r.Get("/health/live", controllers.HealthLive(cfg))
	r.Get("/health/ready", controllers.HealthReady(cfg, logg, controllers.ReadinessDeps(params.DB, params.Redis, params.Storage)))
	r.Method(http.MethodGet, "/metrics", promhttp.Handler())

	authenticated := middleware.Auth(cfg.JWT, params.Sessions, logg)
	idempotent := middleware.Idempotency(params.Redis, logg)
	writer := middleware.RequireWriter(logg)

	r.Route("/api", func(api chi.Router) {
		api.Route("/v1", func(v1 chi.Router) {
			v1.Route("/auth", func(ar chi.Router) {
				loginPolicy := middleware.NewAuthRateLimitPolicy(
					"login",
					cfg.AuthRateLimit.LoginWindow,
					cfg.AuthRateLimit.LoginIPLimit,
					cfg.AuthRateLimit.LoginEmailLimit,
				)
				ar.With(middleware.AuthRateLimit(loginPolicy, params.Redis, logg)).
					Post("/login", controllers.AuthLogin(params.AuthService, logg))
				ar.Post("/refresh", controllers.AuthRefresh(params.AuthService, logg))
				ar.Post("/logout", controllers.AuthLogout(params.AuthService, logg))
			})

			v1.Group(func(pr chi.Router) {
				pr.Use(authenticated)
				pr.Use(idempotent)

				pr.Route("/products", func(pp chi.Router) {
					pp.Get("/", controllers.ProductList(params.ProductService, logg))
					pp.With(writer).Post("/", controllers.ProductCreate(params.ProductService, logg))

					pp.Route("/{productId}", func(one chi.Router) {
						one.Get("/", controllers.ProductDetail(params.ProductService, logg))
						one.With(writer).Patch("/", controllers.ProductUpdate(params.ProductService, logg))
						one.With(writer).Delete("/", controllers.ProductDelete(params.ProductService, logg))
						one.With(writer).Post("/variants", controllers.VariantCreate(params.ProductService, logg))

						one.Route("/media", func(mm chi.Router) {
							mm.Get("/", controllers.MediaGallery(params.MediaService, logg))
							mm.With(writer).Post("/presign", controllers.MediaPresignUpload(params.MediaService, logg))
							mm.With(writer).Post("/import", controllers.MediaImportFromURL(params.MediaService, logg))
							mm.With(writer).Post("/reorder", controllers.MediaReorder(params.MediaService, logg))
							mm.With(writer).Post("/stage", controllers.MediaStage(params.MediaService, logg))
							mm.With(writer).Post("/apply", controllers.MediaApply(params.MediaService, logg))
							mm.With(writer).Delete("/pending", controllers.MediaDiscardPending(params.MediaService, logg))
							mm.With(writer).Post("/import-from-target", controllers.MediaImportFromTarget(params.MediaService, logg))
							mm.With(writer).Post("/{mediaId}/primary", controllers.MediaSetPrimary(params.MediaService, logg))
						})
					})
				})

				pr.Route("/variants/{variantId}", func(vv chi.Router) {
					vv.With(writer).Patch("/", controllers.VariantUpdate(params.ProductService, logg))
					vv.With(writer).Delete("/", controllers.VariantDelete(params.ProductService, logg))
				})

				pr.Route("/media/{mediaId}", func(mm chi.Router) {
					mm.Get("/download-url", controllers.MediaDownloadURL(params.MediaService, logg))
					mm.With(writer).Post("/complete", controllers.MediaCompleteUpload(params.MediaService, logg))
					mm.With(writer).Delete("/", controllers.MediaDelete(params.MediaService, logg))
				})

				pr.Route("/targets", func(tt chi.Router) {
					tt.Get("/", controllers.TargetList(params.TargetService, logg))
					tt.With(writer).Post("/shops", controllers.TargetRegisterShop(params.TargetService, logg))
					tt.With(writer).Post("/erp", controllers.TargetRegisterERP(params.TargetService, logg))
					tt.With(writer).Patch("/{targetType}/{targetId}/active", controllers.TargetSetActive(params.TargetService, logg))
				})

				pr.Route("/bulk", func(bb chi.Router) {
					bb.Get("/price-groups", controllers.BulkPriceGroups(params.BulkService, logg))
					bb.With(writer).Post("/preview", controllers.BulkPreview(params.BulkService, logg))
					bb.Get("/{previewId}", controllers.BulkPreviewDetail(params.BulkService, logg))
					bb.With(writer).Post("/{previewId}/apply", controllers.BulkApply(params.BulkService, logg))
					bb.With(writer).Delete("/{previewId}", controllers.BulkDiscard(params.BulkService, logg))
				})

				pr.Route("/notifications", func(nn chi.Router) {
					nn.Get("/", controllers.NotificationList(params.NotificationService, logg))
					nn.Post("/{notificationId}/read", controllers.NotificationMarkRead(params.NotificationService, logg))
					nn.Post("/read-all", controllers.NotificationMarkAllRead(params.NotificationService, logg))
				})

				pr.Post("/users/change-password", controllers.UserChangePassword(params.UserService, logg))
			})
		})

		api.Route("/admin/v1", func(admin chi.Router) {
			admin.Use(authenticated)
			admin.Use(idempotent)
			admin.Use(middleware.RequireAdmin(logg))

			admin.Route("/users", func(uu chi.Router) {
				uu.Get("/", controllers.UserList(params.UserService, logg))
				uu.Post("/", controllers.UserInvite(params.UserService, logg))
				uu.Get("/{userId}", controllers.UserDetail(params.UserService, logg))
				uu.Patch("/{userId}/role", controllers.UserSetRole(params.UserService, logg))
				uu.Patch("/{userId}/active", controllers.UserSetActive(params.UserService, logg))
			})
		})
	})

	return r, nil
}
