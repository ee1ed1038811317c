package routes

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/calderapay/connector/api/controllers"
	"github.com/calderapay/connector/api/middleware"
	"github.com/calderapay/connector/pkg/config"
	"github.com/calderapay/connector/pkg/db"
	"github.com/calderapay/connector/pkg/logger"
	"github.com/calderapay/connector/pkg/redis"
)

func NewRouter(
	cfg *config.Config,
	logg *logger.Logger,
	dbP db.Pinger,
	redisP redis.Pinger,
	chargeService controllers.ChargeService,
	credentialService controllers.CredentialService,
) http.Handler {
	r := chi.NewRouter()
	r.Use(
		middleware.Recoverer(logg),
		middleware.RequestID(logg),
		middleware.Logging(logg),
	)

	r.Route("/health", func(r chi.Router) {
		r.Get("/live", controllers.HealthLive(cfg))
		r.Get("/ready", controllers.HealthReady(cfg, logg, dbP, redisP))
	})

	r.Route("/v1", func(r chi.Router) {
		r.Route("/accounts/{accountId}", func(r chi.Router) {
			r.Route("/credentials", func(r chi.Router) {
				r.Get("/", controllers.CredentialsList(credentialService, logg))
				r.Post("/", controllers.CredentialCreate(credentialService, logg))
				r.Get("/current", controllers.CredentialCurrent(credentialService, logg))
			})
			r.Get("/google-pay-eligibility", controllers.GooglePayEligibility(credentialService, logg))
			r.Put("/3ds-flex-credentials", controllers.Worldpay3DSFlexUpsert(credentialService, logg))
			r.Get("/3ds-flex-credentials", controllers.Worldpay3DSFlexGet(credentialService, logg))
			r.Post("/charges", controllers.ChargeCreate(chargeService, logg))
		})

		r.Route("/credentials/{credentialId}", func(r chi.Router) {
			r.Post("/activate", controllers.CredentialActivate(credentialService, logg))
			r.Post("/retire", controllers.CredentialRetire(credentialService, logg))
		})

		r.Route("/charges/{chargeId}", func(r chi.Router) {
			r.Get("/", controllers.ChargeGet(chargeService, logg))
			r.Get("/events", controllers.ChargeEvents(chargeService, logg))
			r.Post("/cancel", controllers.ChargeCancel(chargeService, logg))
			r.Put("/status", controllers.ChargeTransition(chargeService, logg))
			r.Patch("/card-details", controllers.ChargeCardDetails(chargeService, logg))
			r.Put("/parity-check", controllers.ChargeParityCheck(chargeService, logg))
		})
	})

	return r
}
