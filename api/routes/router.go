package routes

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/angelmondragon/licensegate/api/controllers"
	"github.com/angelmondragon/licensegate/api/middleware"
	"github.com/angelmondragon/licensegate/internal/licenses"
	"github.com/angelmondragon/licensegate/pkg/config"
	"github.com/angelmondragon/licensegate/pkg/logger"
	"github.com/angelmondragon/licensegate/pkg/redis"
)

// NewRouter wires the license API. idempotency, redisPinger and metrics may be nil
// when Redis or Prometheus are not configured.
func NewRouter(
	cfg *config.Config,
	logg *logger.Logger,
	licenseService licenses.Service,
	idempotency redis.IdempotencyStore,
	redisPinger controllers.Pinger,
	metrics http.Handler,
) http.Handler {
	r := chi.NewRouter()
	r.Use(
		middleware.Recoverer(logg),
		middleware.RequestID(logg),
		middleware.Logging(logg),
		middleware.CORS(cfg.App.CORSOrigins),
	)

	r.Route("/health", func(r chi.Router) {
		r.Get("/live", controllers.HealthLive(cfg))
		r.Get("/ready", controllers.HealthReady(cfg, logg, licenseService, redisPinger))
	})

	if metrics != nil {
		r.Handle("/metrics", metrics)
	}

	validateRoutes := func(r chi.Router) {
		r.Post("/api/validate", controllers.LicenseValidate(licenseService, logg))
		r.Get("/api/check/{key}", controllers.LicenseCheck(licenseService, logg))
	}

	if !cfg.License.ValidateRequiresSecret {
		r.Group(validateRoutes)
	}

	r.Group(func(r chi.Router) {
		r.Use(middleware.AdminSecret(cfg.License.AdminSecret, logg))
		r.Use(middleware.Idempotency(idempotency, logg))

		r.Post("/api/create", controllers.LicenseCreate(licenseService, logg))
		r.Post("/api/genkey", controllers.LicenseGenerate(licenseService, logg))
		r.Post("/api/revoke", controllers.LicenseRevoke(licenseService, logg))
		r.Get("/api/list", controllers.LicenseList(licenseService, logg))
		r.Get("/api/lookup", controllers.LicenseLookup(licenseService, logg))

		if cfg.License.ValidateRequiresSecret {
			validateRoutes(r)
		}
	})

	return r
}
