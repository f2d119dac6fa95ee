package routes

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/angelmondragon/gigledger-backend/api/controllers"
	"github.com/angelmondragon/gigledger-backend/api/middleware"
	"github.com/angelmondragon/gigledger-backend/internal/admin"
	"github.com/angelmondragon/gigledger-backend/internal/contracts"
	"github.com/angelmondragon/gigledger-backend/internal/disputes"
	"github.com/angelmondragon/gigledger-backend/internal/milestones"
	"github.com/angelmondragon/gigledger-backend/internal/reviews"
	"github.com/angelmondragon/gigledger-backend/pkg/config"
	"github.com/angelmondragon/gigledger-backend/pkg/logger"
	"github.com/angelmondragon/gigledger-backend/pkg/metrics"
	"github.com/angelmondragon/gigledger-backend/pkg/redis"
)

// Dependencies carries everything the router mounts. Nil services answer 500;
// a nil Redis client disables idempotency replay and rate limiting.
type Dependencies struct {
	DB             controllers.Pinger
	Redis          *redis.Client
	HTTPMetrics    *metrics.HTTPMetrics
	MetricsHandler http.Handler

	Contracts  contracts.Service
	Milestones milestones.Service
	Reviews    reviews.Service
	Disputes   disputes.Service
	Admin      admin.Service
}

func NewRouter(cfg *config.Config, logg *logger.Logger, deps Dependencies) http.Handler {
	r := chi.NewRouter()
	r.Use(
		middleware.Recoverer(logg),
		middleware.RequestID(logg),
		middleware.Logging(logg, deps.HTTPMetrics),
		middleware.CORS(cfg.App.CORSOrigins),
	)

	pingers := map[string]controllers.Pinger{}
	if deps.DB != nil {
		pingers["db"] = deps.DB
	}
	if deps.Redis != nil {
		pingers["redis"] = deps.Redis
	}

	r.Route("/health", func(r chi.Router) {
		r.Get("/live", controllers.HealthLive(cfg))
		r.Get("/ready", controllers.HealthReady(cfg, logg, pingers))
	})
	if deps.MetricsHandler != nil {
		r.Handle("/metrics", deps.MetricsHandler)
	}

	moneyPolicy := middleware.NewRateLimitPolicy("money", cfg.RateLimit.MoneyWindow, cfg.RateLimit.MoneyLimit)
	money := func(next http.Handler) http.Handler { return next }
	idempotency := func(next http.Handler) http.Handler { return next }
	if deps.Redis != nil {
		money = middleware.RateLimit(moneyPolicy, deps.Redis, logg)
		idempotency = middleware.Idempotency(deps.Redis, logg)
	}

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(middleware.Auth(cfg.JWT, logg))
		r.Use(idempotency)

		r.Route("/contracts", func(r chi.Router) {
			r.Post("/", controllers.CreateContract(deps.Contracts, logg))
			r.Route("/{contractId}", func(r chi.Router) {
				r.Get("/", controllers.GetContract(deps.Contracts, logg))
				r.Get("/escrow", controllers.ContractEscrow(deps.Contracts, logg))
				r.Post("/developer", controllers.AssignDeveloper(deps.Contracts, logg))
				r.Post("/activate", controllers.ActivateContract(deps.Contracts, logg))
				r.Post("/pause", controllers.PauseContract(deps.Contracts, logg))
				r.Post("/resume", controllers.ResumeContract(deps.Contracts, logg))
				r.Post("/complete", controllers.CompleteContract(deps.Contracts, logg))
				r.With(money).Post("/fund", controllers.FundContract(deps.Contracts, logg))
				r.With(money).Post("/cancel", controllers.CancelContract(deps.Contracts, logg))

				r.Get("/milestones", controllers.ListMilestones(deps.Milestones, logg))
				r.Post("/milestones", controllers.CreateMilestone(deps.Milestones, logg))
				r.Get("/disputes", controllers.ListDisputes(deps.Disputes, logg))
				r.Post("/disputes", controllers.OpenDispute(deps.Disputes, logg))
			})
		})

		r.Route("/milestones/{milestoneId}", func(r chi.Router) {
			r.Get("/", controllers.GetMilestone(deps.Milestones, logg))
			r.Get("/submissions", controllers.ListSubmissions(deps.Milestones, logg))
			r.Get("/reviews", controllers.ListReviews(deps.Milestones, logg))
			r.Post("/start", controllers.StartMilestone(deps.Milestones, logg))
			r.Post("/submit", controllers.SubmitMilestone(deps.Milestones, logg))
			r.Post("/review", controllers.ReviewMilestone(deps.Reviews, logg))
			r.With(money).Post("/release", controllers.ReleaseMilestone(deps.Reviews, logg))
		})

		r.Get("/disputes/{disputeId}", controllers.GetDispute(deps.Disputes, logg))

		r.Route("/admin", func(r chi.Router) {
			r.Use(middleware.RequireAdmin(logg))
			r.Use(money)

			r.Post("/disputes/{disputeId}/resolve", controllers.ResolveDispute(deps.Disputes, logg))
			r.Route("/contracts/{contractId}", func(r chi.Router) {
				r.Post("/accept-funds", controllers.AdminAcceptFunds(deps.Admin, logg))
				r.Post("/pause", controllers.AdminPauseContract(deps.Admin, logg))
				r.Post("/resume", controllers.AdminResumeContract(deps.Admin, logg))
				r.Post("/cancel", controllers.AdminCancelContract(deps.Admin, logg))
				r.Post("/milestones/{milestoneId}/release", controllers.AdminReleaseMilestone(deps.Admin, logg))
				r.Get("/reconciliation", controllers.AdminReconciliation(deps.Admin, logg))
				r.Get("/audit", controllers.AdminAuditTrail(deps.Admin, logg))
			})
		})
	})

	return r
}
