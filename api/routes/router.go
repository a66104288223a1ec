package routes

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/sunshinecowhides/gallery-backend/api/controllers"
	"github.com/sunshinecowhides/gallery-backend/api/middleware"
	adminsvc "github.com/sunshinecowhides/gallery-backend/internal/admin"
	"github.com/sunshinecowhides/gallery-backend/internal/availability"
	"github.com/sunshinecowhides/gallery-backend/internal/catalog"
	checkoutsvc "github.com/sunshinecowhides/gallery-backend/internal/checkout"
	"github.com/sunshinecowhides/gallery-backend/internal/reporter"
	"github.com/sunshinecowhides/gallery-backend/internal/reservation"
	"github.com/sunshinecowhides/gallery-backend/pkg/cde"
	"github.com/sunshinecowhides/gallery-backend/pkg/config"
	"github.com/sunshinecowhides/gallery-backend/pkg/db"
	"github.com/sunshinecowhides/gallery-backend/pkg/logger"
	"github.com/sunshinecowhides/gallery-backend/pkg/redis"
	"github.com/sunshinecowhides/gallery-backend/pkg/storage/s3"
)

func NewRouter(
	cfg *config.Config,
	logg *logger.Logger,
	dbP db.Pinger,
	redisClient *redis.Client,
	storageClient *s3.Client,
	cdeClient *cde.Client,
	catalogSvc *catalog.Service,
	ledger *reservation.Ledger,
	projector *availability.Service,
	checkoutService *checkoutsvc.Service,
	adminService *adminsvc.Service,
	reporterService *reporter.Service,
) http.Handler {
	r := chi.NewRouter()
	r.Use(
		middleware.Recoverer(logg),
		middleware.RequestID(logg),
		middleware.Logging(logg),
		middleware.CORS(),
	)

	r.Route("/health", func(r chi.Router) {
		r.Get("/live", controllers.HealthLive(cfg))
		r.Get("/ready", controllers.HealthReady(cfg, logg, dbP, redisClient, storageClient, cdeClient))
	})

	r.Route("/api/public", func(r chi.Router) {
		r.Get("/ping", controllers.PublicPing())
	})

	r.Route("/api/v1", func(r chi.Router) {
		r.Route("/gallery", func(r chi.Router) {
			r.Get("/", controllers.GalleryList(catalogSvc, logg))
			r.Get("/{photoNumber}", controllers.GalleryPhoto(catalogSvc, logg))
		})

		r.Group(func(r chi.Router) {
			r.Use(middleware.HolderContext(logg))

			r.Route("/claims", func(r chi.Router) {
				r.Get("/", controllers.ClaimList(ledger, logg))
				r.Post("/", controllers.ClaimCreate(ledger, projector, cfg.Claims, logg))
				r.Delete("/{photoNumber}", controllers.ClaimRelease(ledger, projector, logg))
				r.Post("/{photoNumber}/extend", controllers.ClaimExtend(ledger, logg))
			})

			r.Post("/checkout", controllers.CheckoutConfirm(checkoutService, logg))
		})
	})

	r.Route("/api/admin", func(r chi.Router) {
		r.Use(middleware.AdminAuth(cfg.AdminJWT, logg))
		r.Get("/ping", controllers.AdminPing())

		r.Route("/v1", func(r chi.Router) {
			r.Route("/discrepancies", func(r chi.Router) {
				r.Get("/", controllers.AdminDiscrepancyList(reporterService, logg))
				r.Post("/{discrepancyId}/ack", controllers.AdminDiscrepancyAck(reporterService, logg))
			})
			r.Route("/photos", func(r chi.Router) {
				r.Post("/{photoNumber}/override", controllers.AdminOverride(adminService, logg))
				r.Post("/{photoNumber}/release-claim", controllers.AdminReleaseClaim(adminService, logg))
			})
		})
	})

	return r
}
